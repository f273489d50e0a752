package pattern

import (
	"fmt"
	"regexp"

	"github.com/spf13/viper"
)

const (
	CategoryCloudKey         = "cloud-key"
	CategoryAPIKey           = "api-key"
	CategoryToken            = "token"
	CategoryPrivateKey       = "private-key"
	CategoryPassword         = "password"
	CategoryConnectionString = "connection-string"
)

const PatternAWSAccessKey = "AWS_ACCESS_KEY"

// SignaturePattern is a named detector for one kind of credential.
type SignaturePattern struct {
	Name     string
	Category string
	Regex    *regexp.Regexp
	// SecretGroup is the capture group holding the literal value, 0 for the whole match.
	SecretGroup int
	// Extract enables the entropy gate on the literal value.
	Extract bool
	// Remediable marks literals that identify a cloud access key which can be deactivated.
	Remediable bool
}

// secret returns the literal value of a submatch.
func (p *SignaturePattern) secret(match []string) string {
	if p.SecretGroup < len(match) && match[p.SecretGroup] != "" {
		return match[p.SecretGroup]
	}
	return match[0]
}

// DefaultPatterns returns the built-in pattern set. Every call returns fresh values.
func DefaultPatterns() []SignaturePattern {
	return []SignaturePattern{
		{
			Name:        PatternAWSAccessKey,
			Category:    CategoryCloudKey,
			Regex:       regexp.MustCompile(`\b(AKIA[0-9A-Z]{16})\b`),
			SecretGroup: 1,
			Remediable:  true,
		},
		{
			Name:        "AWS_SECRET_ACCESS_KEY",
			Category:    CategoryCloudKey,
			Regex:       regexp.MustCompile(`(?i)aws_?secret_?(?:access_?)?key["']?\s*[:=]\s*["']?([A-Za-z0-9/+=]{40})`),
			SecretGroup: 1,
			Extract:     true,
		},
		{
			Name:     "GCP_API_KEY",
			Category: CategoryAPIKey,
			Regex:    regexp.MustCompile(`\bAIza[0-9A-Za-z_\-]{35}`),
			Extract:  true,
		},
		{
			Name:     "GITHUB_TOKEN",
			Category: CategoryToken,
			Regex:    regexp.MustCompile(`\b(?:ghp|gho|ghu|ghs|ghr)_[0-9A-Za-z]{36}\b`),
			Extract:  true,
		},
		{
			Name:     "SLACK_TOKEN",
			Category: CategoryToken,
			Regex:    regexp.MustCompile(`\bxox[baprs]-[0-9A-Za-z\-]{10,72}`),
			Extract:  true,
		},
		{
			Name:     "STRIPE_KEY",
			Category: CategoryAPIKey,
			Regex:    regexp.MustCompile(`\b(?:sk|rk)_live_[0-9A-Za-z]{24,99}\b`),
			Extract:  true,
		},
		{
			Name:     "PRIVATE_KEY",
			Category: CategoryPrivateKey,
			Regex:    regexp.MustCompile(`-----BEGIN (?:RSA |EC |DSA |OPENSSH |PGP |ENCRYPTED )?PRIVATE KEY(?: BLOCK)?-----`),
		},
		{
			Name:     "JWT",
			Category: CategoryToken,
			Regex:    regexp.MustCompile(`\beyJ[A-Za-z0-9_\-]{10,}\.eyJ[A-Za-z0-9_\-]{10,}\.[A-Za-z0-9_\-]{10,}`),
			Extract:  true,
		},
		{
			Name:        "DATABASE_URL",
			Category:    CategoryConnectionString,
			Regex:       regexp.MustCompile(`(?i)\b(?:postgres(?:ql)?|mysql|mongodb(?:\+srv)?|redis|amqp)://[^\s:@/]+:([^\s:@/]+)@[^\s'"]+`),
			SecretGroup: 1,
		},
		{
			Name:        "PASSWORD_ASSIGNMENT",
			Category:    CategoryPassword,
			Regex:       regexp.MustCompile(`(?i)\b(?:password|passwd|pwd)["']?\s*[:=]\s*["']([^"'\s]{8,})["']`),
			SecretGroup: 1,
		},
	}
}

// Registry is an immutable, validated set of patterns.
type Registry struct {
	patterns []SignaturePattern
}

func NewRegistry(patterns []SignaturePattern) (*Registry, error) {
	seen := make(map[string]struct{}, len(patterns))
	list := make([]SignaturePattern, 0, len(patterns))
	for _, p := range patterns {
		if p.Name == "" {
			return nil, fmt.Errorf("pattern name is required")
		}
		if p.Regex == nil {
			return nil, fmt.Errorf("pattern regex is required: name=%s", p.Name)
		}
		if p.SecretGroup < 0 || p.SecretGroup > p.Regex.NumSubexp() {
			return nil, fmt.Errorf("invalid secret group: name=%s, group=%d", p.Name, p.SecretGroup)
		}
		if _, ok := seen[p.Name]; ok {
			return nil, fmt.Errorf("duplicated pattern name: %s", p.Name)
		}
		seen[p.Name] = struct{}{}
		list = append(list, p)
	}
	return &Registry{patterns: list}, nil
}

// Patterns returns a copy of the registered patterns.
func (r *Registry) Patterns() []SignaturePattern {
	cp := make([]SignaturePattern, len(r.patterns))
	copy(cp, r.patterns)
	return cp
}

type patternConfig struct {
	Name        string `mapstructure:"name"`
	Category    string `mapstructure:"category"`
	Regex       string `mapstructure:"regex"`
	SecretGroup int    `mapstructure:"secret_group"`
	Extract     bool   `mapstructure:"extract"`
	Remediable  bool   `mapstructure:"remediable"`
}

// LoadRegistry builds a registry from the default patterns plus the patterns of the
// file at path (any format viper understands). An empty path yields the defaults.
func LoadRegistry(path string) (*Registry, error) {
	patterns := DefaultPatterns()
	if path == "" {
		return NewRegistry(patterns)
	}
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read pattern config: path=%s, err=%w", path, err)
	}
	var confs []patternConfig
	if err := v.UnmarshalKey("patterns", &confs); err != nil {
		return nil, fmt.Errorf("failed to unmarshal pattern config: path=%s, err=%w", path, err)
	}
	for _, c := range confs {
		re, err := regexp.Compile(c.Regex)
		if err != nil {
			return nil, fmt.Errorf("failed to compile pattern: name=%s, err=%w", c.Name, err)
		}
		category := c.Category
		if category == "" {
			category = CategoryToken
		}
		patterns = append(patterns, SignaturePattern{
			Name:        c.Name,
			Category:    category,
			Regex:       re,
			SecretGroup: c.SecretGroup,
			Extract:     c.Extract,
			Remediable:  c.Remediable,
		})
	}
	return NewRegistry(patterns)
}

package gitleaks

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/ca-risken/common/pkg/logging"
	"github.com/spf13/viper"
	"github.com/zricethezav/gitleaks/v8/config"
	"github.com/zricethezav/gitleaks/v8/detect"

	"github.com/ca-risken/secretops/pkg/pattern"
)

type GitleaksConfig struct {
	ConfigPath string
}

// Client runs the gitleaks rule set over in-memory text.
type Client struct {
	mu       sync.Mutex
	detector *detect.Detector
	logger   logging.Logger
}

// NewClient builds the detector once. A custom config file replaces the default rule set.
func NewClient(ctx context.Context, conf *GitleaksConfig, l logging.Logger) (*Client, error) {
	d, err := detect.NewDetectorDefaultConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize detector: %w", err)
	}

	if conf != nil && conf.ConfigPath != "" {
		v := viper.New()
		v.SetConfigFile(conf.ConfigPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read gitleaks config: %w", err)
		}

		var vc config.ViperConfig
		if err := v.Unmarshal(&vc); err != nil {
			return nil, fmt.Errorf("failed to unmarshal gitleaks config: %w", err)
		}
		cfg, err := vc.Translate()
		if err != nil {
			return nil, fmt.Errorf("failed to translate gitleaks config: %w", err)
		}
		if len(cfg.Rules) == 0 {
			l.Warnf(ctx, "Gitleaks config has no rules: path=%s", conf.ConfigPath)
		}
		d = detect.NewDetector(cfg)
		l.Infof(ctx, "Use custom gitleaks config: path=%s", conf.ConfigPath)
	}
	return &Client{detector: d, logger: l}, nil
}

// Scan reports gitleaks findings in text as added content.
func (c *Client) Scan(ctx context.Context, text string) (findings []pattern.Finding, err error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	defer func() {
		if r := recover(); r != nil {
			findings = nil
			err = fmt.Errorf("gitleaks detector panicked: %v", r)
		}
	}()

	c.mu.Lock()
	leaks := c.detector.DetectString(text)
	c.mu.Unlock()

	c.logger.Debugf(ctx, "Gitleaks raw findings: count=%d", len(leaks))
	return toFindings(leaks), nil
}

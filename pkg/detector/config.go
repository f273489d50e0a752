package detector

import "time"

type AppConfig struct {
	EnvName         string   `default:"local" split_words:"true"`
	ProfileExporter string   `split_words:"true" default:"nop"`
	ProfileTypes    []string `split_words:"true"`
	TraceDebug      bool     `split_words:"true" default:"false"`
	Debug           string   `default:"false"`

	// http
	HTTPPort string `envconfig:"http_port" default:"8080"`

	// sqs
	SQSEnabled         bool   `envconfig:"sqs_enabled" default:"false"`
	AWSRegion          string `envconfig:"aws_region"    default:"ap-northeast-1"`
	SQSEndpoint        string `envconfig:"sqs_endpoint"`
	DetectorQueueName  string `split_words:"true" default:"secretops-detector"`
	DetectorQueueURL   string `split_words:"true"`
	MaxNumberOfMessage int32  `split_words:"true" default:"10"`
	WaitTimeSecond     int32  `split_words:"true" default:"20"`

	// verification
	GithubWebhookSecret string `split_words:"true"`
	AllowUnsignedEvents bool   `split_words:"true" default:"false"`
	DataKey             string `split_words:"true"`

	// scan
	EntropyThreshold   float64       `split_words:"true" default:"3.7"`
	PatternConfigPath  string        `split_words:"true"`
	GitleaksEnabled    bool          `split_words:"true" default:"false"`
	GitleaksConfigPath string        `split_words:"true"`
	GithubToken        string        `split_words:"true"`
	GithubBaseURL      string        `envconfig:"github_base_url"`
	RemoteFetchTimeout time.Duration `split_words:"true" default:"10s"`

	// remediation
	IAMCallTimeout         time.Duration `envconfig:"iam_call_timeout" default:"5s"`
	RemediationTimeout     time.Duration `split_words:"true" default:"30s"`
	RemediationConcurrency int           `split_words:"true" default:"4"`

	// alert
	SNSTopicARN           string `envconfig:"sns_topic_arn"`
	AlertOnClean          bool   `split_words:"true" default:"false"`
	AlertOnInvalidPayload bool   `split_words:"true" default:"false"`
	FallbackAlertLogPath  string `split_words:"true" default:"logs/undelivered-alerts.log"`
}

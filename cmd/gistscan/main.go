package main

import (
	"context"
	"crypto/aes"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/ca-risken/common/pkg/logging"
	"github.com/ca-risken/common/pkg/profiler"
	"github.com/ca-risken/common/pkg/tracer"
	"github.com/gassara-kys/envconfig"
	"github.com/joho/godotenv"

	"github.com/ca-risken/secretops/pkg/alert"
	"github.com/ca-risken/secretops/pkg/crypto"
	"github.com/ca-risken/secretops/pkg/gistscan"
	"github.com/ca-risken/secretops/pkg/github"
	"github.com/ca-risken/secretops/pkg/gitleaks"
	"github.com/ca-risken/secretops/pkg/pattern"
)

const (
	nameSpace   = "secretops"
	serviceName = "gistscan"
)

var (
	appLogger            = logging.NewLogger()
	samplingRate float64 = 0.3000
)

func getFullServiceName() string {
	return fmt.Sprintf("%s.%s", nameSpace, serviceName)
}

type AppConfig struct {
	EnvName         string   `default:"local" split_words:"true"`
	ProfileExporter string   `split_words:"true" default:"nop"`
	ProfileTypes    []string `split_words:"true"`
	TraceDebug      bool     `split_words:"true" default:"false"`
	Debug           string   `default:"false"`

	AWSRegion string `envconfig:"aws_region" default:"ap-northeast-1"`

	// github
	GithubToken   string        `split_words:"true"`
	GithubBaseURL string        `envconfig:"github_base_url"`
	GithubTimeout time.Duration `split_words:"true" default:"10s"`
	DataKey       string        `split_words:"true"`

	// scan
	GistLimit          int     `split_words:"true" default:"10"`
	EntropyThreshold   float64 `split_words:"true" default:"3.7"`
	PatternConfigPath  string  `split_words:"true"`
	GitleaksEnabled    bool    `split_words:"true" default:"false"`
	GitleaksConfigPath string  `split_words:"true"`

	// alert
	SNSTopicARN          string `envconfig:"sns_topic_arn"`
	FallbackAlertLogPath string `split_words:"true" default:"logs/undelivered-alerts.log"`
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// .env is optional
	_ = godotenv.Load()

	var conf AppConfig
	err := envconfig.Process("", &conf)
	if err != nil {
		appLogger.Fatal(ctx, err.Error())
	}
	if conf.Debug == "true" {
		appLogger.Level(logging.DebugLevel)
	}

	pTypes, err := profiler.ConvertProfileTypeFrom(conf.ProfileTypes)
	if err != nil {
		appLogger.Fatal(ctx, err.Error())
	}
	pExporter, err := profiler.ConvertExporterTypeFrom(conf.ProfileExporter)
	if err != nil {
		appLogger.Fatal(ctx, err.Error())
	}
	pc := profiler.Config{
		ServiceName:  getFullServiceName(),
		EnvName:      conf.EnvName,
		ProfileTypes: pTypes,
		ExporterType: pExporter,
	}
	err = pc.Start()
	if err != nil {
		appLogger.Fatal(ctx, err.Error())
	}
	defer pc.Stop()

	tc := &tracer.Config{
		ServiceName:  getFullServiceName(),
		Environment:  conf.EnvName,
		Debug:        conf.TraceDebug,
		SamplingRate: &samplingRate,
	}
	tracer.Start(tc)
	defer tracer.Stop()

	token := conf.GithubToken
	if conf.DataKey != "" && token != "" {
		block, err := aes.NewCipher([]byte(conf.DataKey))
		if err != nil {
			appLogger.Fatalf(ctx, "Failed to create new cipher, err=%+v", err)
		}
		token, err = crypto.DecryptWithBase64(&block, token)
		if err != nil {
			appLogger.Fatalf(ctx, "Failed to decrypt github token, err=%+v", err)
		}
	}
	if token == "" {
		appLogger.Warn(ctx, "GitHub token is not set, requests are subject to the anonymous rate limit")
	}
	ghc, err := github.NewGithubClient(ctx, token, conf.GithubBaseURL, conf.GithubTimeout, appLogger)
	if err != nil {
		appLogger.Fatalf(ctx, "Failed to create github client, err=%+v", err)
	}

	registry, err := pattern.LoadRegistry(conf.PatternConfigPath)
	if err != nil {
		appLogger.Fatalf(ctx, "Failed to load patterns, err=%+v", err)
	}
	scanner := pattern.NewScanner(registry, conf.EntropyThreshold, appLogger)

	var gc gistscan.SupplementalScanner
	if conf.GitleaksEnabled {
		c, err := gitleaks.NewClient(ctx, &gitleaks.GitleaksConfig{ConfigPath: conf.GitleaksConfigPath}, appLogger)
		if err != nil {
			appLogger.Fatalf(ctx, "Failed to create gitleaks client, err=%+v", err)
		}
		gc = c
	}

	awsConf, err := config.LoadDefaultConfig(ctx, config.WithRegion(conf.AWSRegion))
	if err != nil {
		appLogger.Fatalf(ctx, "Failed to load aws config, err=%+v", err)
	}
	dispatcher := alert.NewSNSDispatcher(
		sns.NewFromConfig(awsConf),
		conf.SNSTopicARN,
		alert.NewFallbackLogger(conf.FallbackAlertLogPath),
		appLogger,
	)

	sweeper := gistscan.NewSweeper(ghc, scanner, gc, dispatcher, conf.GistLimit, appLogger)
	if _, err := sweeper.Sweep(ctx); err != nil {
		appLogger.Fatalf(ctx, "Failed to sweep public gists, err=%+v", err)
	}
}

package main

import (
	"context"
	"crypto/aes"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/ca-risken/common/pkg/logging"
	"github.com/ca-risken/common/pkg/profiler"
	mimosasqs "github.com/ca-risken/common/pkg/sqs"
	"github.com/ca-risken/common/pkg/tracer"
	"github.com/gassara-kys/envconfig"
	"github.com/joho/godotenv"

	"github.com/ca-risken/secretops/pkg/alert"
	"github.com/ca-risken/secretops/pkg/crypto"
	"github.com/ca-risken/secretops/pkg/detector"
	"github.com/ca-risken/secretops/pkg/github"
	"github.com/ca-risken/secretops/pkg/gitleaks"
	"github.com/ca-risken/secretops/pkg/identity"
	"github.com/ca-risken/secretops/pkg/pattern"
	"github.com/ca-risken/secretops/pkg/server"
	"github.com/ca-risken/secretops/pkg/sqs"
)

const (
	nameSpace       = "secretops"
	serviceName     = "detector"
	shutdownTimeout = 30 * time.Second
)

var (
	appLogger            = logging.NewLogger()
	samplingRate float64 = 0.3000
)

func getFullServiceName() string {
	return fmt.Sprintf("%s.%s", nameSpace, serviceName)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// .env is optional
	_ = godotenv.Load()

	var conf detector.AppConfig
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

	if err := decryptSecrets(&conf); err != nil {
		appLogger.Fatalf(ctx, "Failed to decrypt secrets, err=%+v", err)
	}
	if conf.GithubWebhookSecret == "" {
		if conf.AllowUnsignedEvents {
			appLogger.Warn(ctx, "Webhook secret is not set, unsigned events are accepted")
		} else {
			appLogger.Warn(ctx, "Webhook secret is not set, every event will be rejected")
		}
	}

	awsConf, err := config.LoadDefaultConfig(ctx, config.WithRegion(conf.AWSRegion))
	if err != nil {
		appLogger.Fatalf(ctx, "Failed to load aws config, err=%+v", err)
	}

	registry, err := pattern.LoadRegistry(conf.PatternConfigPath)
	if err != nil {
		appLogger.Fatalf(ctx, "Failed to load patterns, err=%+v", err)
	}
	scanner := pattern.NewScanner(registry, conf.EntropyThreshold, appLogger)

	var opts []detector.Option
	if conf.GitleaksEnabled {
		gc, err := gitleaks.NewClient(ctx, &gitleaks.GitleaksConfig{ConfigPath: conf.GitleaksConfigPath}, appLogger)
		if err != nil {
			appLogger.Fatalf(ctx, "Failed to create gitleaks client, err=%+v", err)
		}
		opts = append(opts, detector.WithGitleaks(gc))
	}
	if conf.GithubToken != "" {
		ghc, err := github.NewGithubClient(ctx, conf.GithubToken, conf.GithubBaseURL, conf.RemoteFetchTimeout, appLogger)
		if err != nil {
			appLogger.Fatalf(ctx, "Failed to create github client, err=%+v", err)
		}
		opts = append(opts, detector.WithDiffFetcher(ghc))
	} else {
		appLogger.Info(ctx, "GitHub token is not set, commits without a diff are scanned on metadata only")
	}

	ic := identity.NewClient(iam.NewFromConfig(awsConf), conf.IAMCallTimeout, appLogger)
	dispatcher := alert.NewSNSDispatcher(
		sns.NewFromConfig(awsConf),
		conf.SNSTopicARN,
		alert.NewFallbackLogger(conf.FallbackAlertLogPath),
		appLogger,
	)
	if conf.SNSTopicARN == "" {
		appLogger.Warnf(ctx, "SNS topic is not set, alerts are written to %s", conf.FallbackAlertLogPath)
	}

	handler := detector.NewHandler(&conf, scanner, ic, ic, dispatcher, appLogger, opts...)

	if conf.SQSEnabled {
		sqsConf := &sqs.SQSConfig{
			Debug:              conf.Debug,
			AWSRegion:          conf.AWSRegion,
			SQSEndpoint:        conf.SQSEndpoint,
			QueueName:          conf.DetectorQueueName,
			QueueURL:           conf.DetectorQueueURL,
			MaxNumberOfMessage: conf.MaxNumberOfMessage,
			WaitTimeSecond:     conf.WaitTimeSecond,
		}
		consumer, err := sqs.NewSQSConsumer(ctx, sqsConf, appLogger)
		if err != nil {
			appLogger.Fatalf(ctx, "Failed to create SQS consumer, err=%+v", err)
		}
		appLogger.Info(ctx, "Start the detector SQS consumer...")
		go consumer.Start(ctx,
			mimosasqs.InitializeHandler(
				mimosasqs.RetryableErrorHandler(
					mimosasqs.TracingHandler(getFullServiceName(),
						mimosasqs.StatusLoggingHandler(appLogger, sqs.NewHandler(handler, appLogger))))))
	}

	srv := server.NewServer(conf.HTTPPort, server.NewRouter(handler, appLogger))
	go func() {
		appLogger.Infof(ctx, "Start the detector server: port=%s", conf.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Fatalf(ctx, "Failed to serve, err=%+v", err)
		}
	}()

	<-ctx.Done()
	appLogger.Info(ctx, "Shutting down the detector server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.Errorf(shutdownCtx, "Failed to shutdown gracefully, err=%+v", err)
	}
}

// decryptSecrets replaces the webhook secret and GitHub token with their plaintext
// when a data key is set. Both values are then expected to be AES-CBC ciphertext in base64.
func decryptSecrets(conf *detector.AppConfig) error {
	if conf.DataKey == "" {
		return nil
	}
	block, err := aes.NewCipher([]byte(conf.DataKey))
	if err != nil {
		return fmt.Errorf("failed to create new cipher, err=%w", err)
	}
	for _, v := range []*string{&conf.GithubWebhookSecret, &conf.GithubToken} {
		if *v == "" {
			continue
		}
		plain, err := crypto.DecryptWithBase64(&block, *v)
		if err != nil {
			return err
		}
		*v = plain
	}
	return nil
}

package alert

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
	"github.com/ca-risken/common/pkg/logging"
	"go.uber.org/zap"

	"github.com/ca-risken/secretops/pkg/common"
)

const (
	maxSubjectLength = 100
	maxMessageLength = 60000
	publishTimeout   = 5 * time.Second
	kindAttribute    = "alert_kind"
	defaultSubject   = "Secrets Detection Alert"
)

// Dispatcher delivers alerts. Dispatch never fails from the caller's point of view.
type Dispatcher interface {
	Dispatch(ctx context.Context, a *Alert)
}

type SNSAPI interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

type SNSDispatcher struct {
	client   SNSAPI
	topicARN string
	fallback *zap.Logger
	logger   logging.Logger
}

// NewSNSDispatcher publishes to topicARN. Alerts that cannot be published are written to fallback.
func NewSNSDispatcher(client SNSAPI, topicARN string, fallback *zap.Logger, l logging.Logger) *SNSDispatcher {
	if fallback == nil {
		fallback = zap.NewNop()
	}
	return &SNSDispatcher{
		client:   client,
		topicARN: topicARN,
		fallback: fallback,
		logger:   l,
	}
}

func (d *SNSDispatcher) Dispatch(ctx context.Context, a *Alert) {
	if a == nil {
		return
	}
	if err := d.publish(ctx, a); err != nil {
		d.logger.Notifyf(ctx, logging.ErrorLevel, "Failed to publish alert, written to fallback: id=%s, kind=%s, err=%+v", a.ID, a.Kind, err)
		d.writeFallback(a, err)
		return
	}
	d.logger.Infof(ctx, "Alert published: id=%s, kind=%s, subject=%s", a.ID, a.Kind, a.Subject)
}

func (d *SNSDispatcher) publish(ctx context.Context, a *Alert) error {
	if d.topicARN == "" {
		return errors.New("alert topic is not configured")
	}
	if d.client == nil {
		return errors.New("alert client is not configured")
	}
	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	out, err := d.client.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(d.topicARN),
		Subject:  aws.String(Subject(a.Subject)),
		Message:  aws.String(common.CutString(a.Body(), maxMessageLength)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			kindAttribute: {
				DataType:    aws.String("String"),
				StringValue: aws.String(string(a.Kind)),
			},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to publish: %w", err)
	}
	d.logger.Debugf(ctx, "Published alert: id=%s, message_id=%s", a.ID, aws.ToString(out.MessageId))
	return nil
}

func (d *SNSDispatcher) writeFallback(a *Alert, cause error) {
	d.fallback.Error("undelivered alert",
		zap.String("alert_id", a.ID),
		zap.String("kind", string(a.Kind)),
		zap.String("subject", a.Subject),
		zap.String("message", a.Message),
		zap.Any("payload", a.Payload),
		zap.Time("created_at", a.CreatedAt),
		zap.Error(cause),
	)
	_ = d.fallback.Sync()
}

// Subject returns a subject accepted by the alert channel: printable ASCII on one line.
// Over-long subjects are shortened, never rejected.
func Subject(s string) string {
	s = strings.TrimSpace(strings.Map(func(r rune) rune {
		switch {
		case r == '\n' || r == '\r' || r == '\t':
			return ' '
		case r < 0x20 || r > 0x7e:
			return -1
		}
		return r
	}, s))
	if s == "" {
		return defaultSubject
	}
	return common.CutString(s, maxSubjectLength)
}

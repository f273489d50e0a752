package alert

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/ca-risken/common/pkg/logging"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/ca-risken/secretops/pkg/event"
)

type fakeSNS struct {
	inputs []*sns.PublishInput
	err    error
}

func (f *fakeSNS) Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error) {
	f.inputs = append(f.inputs, params)
	if f.err != nil {
		return nil, f.err
	}
	return &sns.PublishOutput{MessageId: aws.String("message-id")}, nil
}

func TestDispatch(t *testing.T) {
	cases := []struct {
		name         string
		client       *fakeSNS
		topic        string
		wantPublish  int
		wantFallback int
	}{
		{
			name:        "OK",
			client:      &fakeSNS{},
			topic:       "arn:aws:sns:ap-northeast-1:123456789012:alerts",
			wantPublish: 1,
		},
		{
			name:         "NG publish failure",
			client:       &fakeSNS{err: errors.New("throttled")},
			topic:        "arn:aws:sns:ap-northeast-1:123456789012:alerts",
			wantPublish:  1,
			wantFallback: 1,
		},
		{
			name:         "NG topic not configured",
			client:       &fakeSNS{},
			topic:        "",
			wantPublish:  0,
			wantFallback: 1,
		},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			core, logs := observer.New(zapcore.InfoLevel)
			d := NewSNSDispatcher(c.client, c.topic, zap.New(core), logging.NewLogger())
			a := NewErrorAlert("boom", nil)
			d.Dispatch(context.Background(), a)
			if len(c.client.inputs) != c.wantPublish {
				t.Fatalf("Unexpected publish count: want=%d, got=%d", c.wantPublish, len(c.client.inputs))
			}
			if logs.Len() != c.wantFallback {
				t.Fatalf("Unexpected fallback count: want=%d, got=%d", c.wantFallback, logs.Len())
			}
			if c.wantFallback > 0 {
				fields := logs.All()[0].ContextMap()
				if fields["alert_id"] != a.ID {
					t.Errorf("Unexpected fallback record: %+v", fields)
				}
			}
			if c.wantPublish > 0 {
				in := c.client.inputs[0]
				if aws.ToString(in.Subject) != "Secrets Detector Error" {
					t.Errorf("Unexpected subject: %s", aws.ToString(in.Subject))
				}
				if got := aws.ToString(in.MessageAttributes[kindAttribute].StringValue); got != string(KindError) {
					t.Errorf("Unexpected kind attribute: %s", got)
				}
				if !strings.Contains(aws.ToString(in.Message), "boom") {
					t.Errorf("Unexpected message: %s", aws.ToString(in.Message))
				}
			}
		})
	}
}

func TestDispatchLongSubject(t *testing.T) {
	client := &fakeSNS{}
	d := NewSNSDispatcher(client, "arn:topic", nil, logging.NewLogger())
	summary := event.Summary{Repository: strings.Repeat("r", 300), Pusher: "p", Ref: "main", CommitsCount: 1}
	d.Dispatch(context.Background(), NewCleanAlert(summary))
	if len(client.inputs) != 1 {
		t.Fatalf("Unexpected publish count: %d", len(client.inputs))
	}
	if n := utf8.RuneCountInString(aws.ToString(client.inputs[0].Subject)); n > maxSubjectLength {
		t.Errorf("Subject too long: %d", n)
	}
}

func TestDispatchNil(t *testing.T) {
	client := &fakeSNS{}
	d := NewSNSDispatcher(client, "arn:topic", nil, logging.NewLogger())
	d.Dispatch(context.Background(), nil)
	if len(client.inputs) != 0 {
		t.Errorf("Nil alert must not be published")
	}
}

func TestSubject(t *testing.T) {
	cases := []struct {
		name  string
		input string
		want  string
	}{
		{name: "OK short", input: "AWS Key Detected", want: "AWS Key Detected"},
		{name: "OK empty", input: "", want: "Secrets Detection Alert"},
		{name: "OK long", input: strings.Repeat("a", 120), want: strings.Repeat("a", 97) + "..."},
		{name: "OK non-ASCII dropped", input: "Public Gist Secret Detected: 鍵.env", want: "Public Gist Secret Detected: .env"},
		{name: "OK only non-ASCII", input: strings.Repeat("鍵", 101), want: "Secrets Detection Alert"},
		{name: "OK control characters", input: "Public Gist Secret Detected: a\nb\r\x00c.env\t", want: "Public Gist Secret Detected: a b c.env"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := Subject(c.input); got != c.want {
				t.Errorf("Unexpected subject: want=%q, got=%q", c.want, got)
			}
		})
	}
}

func TestNewFallbackLogger(t *testing.T) {
	l := NewFallbackLogger(filepath.Join(t.TempDir(), "fallback.log"))
	l.Info("record", zap.String("alert_id", "x"))
	if err := l.Sync(); err != nil {
		t.Errorf("Unexpected error: %+v", err)
	}
}

func TestDispatchGistSubjectIsASCII(t *testing.T) {
	client := &fakeSNS{}
	d := NewSNSDispatcher(client, "arn:topic", nil, logging.NewLogger())
	d.Dispatch(context.Background(), NewGistAlert("https://gist.github.com/g1", "認証情報\n.env", nil))
	if len(client.inputs) != 1 {
		t.Fatalf("Unexpected publish count: %d", len(client.inputs))
	}
	if got := aws.ToString(client.inputs[0].Subject); got != "Public Gist Secret Detected:  .env" {
		t.Errorf("Unexpected subject: %q", got)
	}
}

package sqs

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/ca-risken/common/pkg/logging"
	mimosasqs "github.com/ca-risken/common/pkg/sqs"

	"github.com/ca-risken/secretops/pkg/detector"
	"github.com/ca-risken/secretops/pkg/event"
)

type EventHandler interface {
	Handle(ctx context.Context, req *event.Request) *detector.Response
}

type sqsHandler struct {
	handler EventHandler
	logger  logging.Logger
}

// NewHandler adapts the detector to queue messages whose body is a gateway-shaped envelope.
func NewHandler(h EventHandler, l logging.Logger) *sqsHandler {
	return &sqsHandler{handler: h, logger: l}
}

// HandleMessage only fails for envelopes that cannot be decoded. Pipeline outcomes,
// including rejections and errors, are alerted by the detector and never retried.
func (s *sqsHandler) HandleMessage(ctx context.Context, sqsMsg *types.Message) error {
	msgBody := aws.ToString(sqsMsg.Body)
	var req event.Request
	if err := json.Unmarshal([]byte(msgBody), &req); err != nil {
		s.logger.Errorf(ctx, "Invalid message: message_id=%s, err=%+v", aws.ToString(sqsMsg.MessageId), err)
		return mimosasqs.WrapNonRetryable(fmt.Errorf("failed to decode envelope: %w", err))
	}
	resp := s.handler.Handle(ctx, &req)
	s.logger.Infof(ctx, "Handled queued event: message_id=%s, status=%s, keys_detected=%d, findings=%d",
		aws.ToString(sqsMsg.MessageId), resp.Status, resp.KeysDetected, resp.Findings)
	return nil
}

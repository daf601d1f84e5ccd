package iot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/rs/zerolog/log"

	"github.com/codecurser/park-vision-control-system/internal/domain"
	"github.com/codecurser/park-vision-control-system/internal/preprocess"
	"github.com/codecurser/park-vision-control-system/internal/service"
)

// SQSAPI is the part of *sqs.Client the consumer needs.
type SQSAPI interface {
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
}

type CaptureProcessor interface {
	Capture(ctx context.Context, in service.CaptureInput) (*domain.CaptureResultDTO, error)
}

// SQSConsumer feeds camera gateway captures through the capture pipeline.
type SQSConsumer struct {
	sqsClient SQSAPI
	queueURL  string
	captures  CaptureProcessor
	retryWait time.Duration
}

func NewSQSConsumer(client SQSAPI, queueURL string, captures CaptureProcessor) *SQSConsumer {
	return &SQSConsumer{
		sqsClient: client,
		queueURL:  queueURL,
		captures:  captures,
		retryWait: 5 * time.Second,
	}
}

func (c *SQSConsumer) Start(ctx context.Context) {
	logger := log.With().Str("component", "SQS").Logger()
	logger.Info().Str("queue", c.queueURL).Msg("consumer started")
	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("context cancelled, stopping")
			return
		default:
			result, err := c.sqsClient.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
				QueueUrl:            &c.queueURL,
				MaxNumberOfMessages: 10,
				WaitTimeSeconds:     20,
				VisibilityTimeout:   60,
			})
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				logger.Error().Err(err).Msg("receive failed")
				select {
				case <-time.After(c.retryWait):
				case <-ctx.Done():
					return
				}
				continue
			}

			if len(result.Messages) > 0 {
				logger.Debug().Int("count", len(result.Messages)).Msg("messages received")
			}
			for _, message := range result.Messages {
				if message.Body == nil {
					logger.Warn().Msg("empty message body, deleting")
					c.deleteMessage(ctx, message.ReceiptHandle)
					continue
				}

				err := c.Handle(ctx, *message.Body)
				if err == nil || !Retryable(err) {
					if err != nil {
						logger.Warn().Err(err).Str("message_id", deref(message.MessageId)).Msg("capture rejected, dropping message")
					}
					c.deleteMessage(ctx, message.ReceiptHandle)
					continue
				}
				logger.Error().Err(err).Str("message_id", deref(message.MessageId)).
					Msg("capture failed, message will be redelivered after visibility timeout")
			}
		}
	}
}

// Handle decodes one CaptureMessage body and runs it through the pipeline.
func (c *SQSConsumer) Handle(ctx context.Context, body string) error {
	var msg domain.CaptureMessage
	if err := json.Unmarshal([]byte(body), &msg); err != nil {
		return fmt.Errorf("%w: %v", errBadMessage, err)
	}
	entryType, err := domain.ParseEntryType(msg.EntryType)
	if err != nil {
		return err
	}
	frame, err := preprocess.DecodeBase64(msg.ImageBase64)
	if err != nil {
		return fmt.Errorf("%w: %v", service.ErrInvalidFrame, err)
	}

	res, err := c.captures.Capture(ctx, service.CaptureInput{
		Frame:      frame,
		EntryType:  entryType,
		CameraID:   msg.CameraID,
		RecordedBy: "sqs",
	})
	if err != nil {
		return err
	}
	log.Info().Str("component", "SQS").
		Str("capture_id", res.CaptureID).
		Str("plate", res.DetectedPlate).
		Str("camera_id", msg.CameraID).
		Msg("capture logged")
	return nil
}

var errBadMessage = errors.New("malformed capture message")

// Retryable reports whether a failed message should stay on the queue.
// Store outages and a busy pipeline are transient; everything else
// (bad payload, OCR failure, rejected plate, duplicate) will fail again.
func Retryable(err error) bool {
	return errors.Is(err, service.ErrStoreFailure) || errors.Is(err, service.ErrCaptureInFlight)
}

func (c *SQSConsumer) deleteMessage(ctx context.Context, receiptHandle *string) {
	if receiptHandle == nil {
		log.Warn().Str("component", "SQS").Msg("missing receipt handle, cannot delete message")
		return
	}
	_, err := c.sqsClient.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      &c.queueURL,
		ReceiptHandle: receiptHandle,
	})
	if err != nil {
		log.Error().Err(err).Str("component", "SQS").Msg("delete failed")
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

package iot

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/iotdataplane"
	"github.com/rs/zerolog/log"

	"github.com/codecurser/park-vision-control-system/internal/domain"
)

const defaultGate = "default"

type PublishAPI interface {
	Publish(ctx context.Context, params *iotdataplane.PublishInput, optFns ...func(*iotdataplane.Options)) (*iotdataplane.PublishOutput, error)
}

// GatePublisher forwards logged entries to the gate controller topic
// {prefix}/{camera_id}/events so barriers can react.
type GatePublisher struct {
	client PublishAPI
	prefix string
}

func NewGatePublisher(client PublishAPI, prefix string) *GatePublisher {
	return &GatePublisher{client: client, prefix: strings.TrimRight(prefix, "/")}
}

func (p *GatePublisher) Topic(cameraID string) string {
	if cameraID == "" {
		cameraID = defaultGate
	}
	return fmt.Sprintf("%s/%s/events", p.prefix, cameraID)
}

func (p *GatePublisher) NotifyEntry(ctx context.Context, n domain.EntryNotification) error {
	payload, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("GatePublisher.NotifyEntry: %w", err)
	}
	topic := p.Topic(n.Entry.CameraID.String)
	_, err = p.client.Publish(ctx, &iotdataplane.PublishInput{
		Topic:   aws.String(topic),
		Qos:     1,
		Payload: payload,
	})
	if err != nil {
		return fmt.Errorf("GatePublisher.NotifyEntry: publish to %s: %w", topic, err)
	}
	log.Debug().Str("component", "IOT").Str("topic", topic).Str("plate", n.Entry.PlateNumber).Msg("entry published")
	return nil
}

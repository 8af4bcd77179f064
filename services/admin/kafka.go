package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/clinigo/clinic-platform/shared/config"
	"github.com/clinigo/clinic-platform/shared/tenant"
)

// ProvisionPublisher hands provisioning requests to the background worker
// over Kafka. It satisfies tenant.ProvisionRequester.
type ProvisionPublisher struct {
	writer *kafka.Writer
	topic  string
}

// NewProvisionPublisher creates a publisher for the provisioning topic
func NewProvisionPublisher(cfg *config.KafkaConfig) (*ProvisionPublisher, error) {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Broker),
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 10 * time.Millisecond,
		BatchSize:    1,
	}

	return &ProvisionPublisher{
		writer: writer,
		topic:  cfg.ProvisioningTopic,
	}, nil
}

// RequestProvision publishes one provisioning request. Clinic creation is
// rare, so the write is synchronous; the caller decides what a publish
// failure means.
func (p *ProvisionPublisher) RequestProvision(ctx context.Context, req tenant.ProvisionRequest) error {
	message, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to marshal provisioning request: %w", err)
	}

	msg := kafka.Message{
		Topic: p.topic,
		Key:   []byte(req.Subdomain),
		Value: message,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte("clinic_provision")},
			{Key: "clinic_id", Value: []byte(req.ClinicID.String())},
		},
	}

	wctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := p.writer.WriteMessages(wctx, msg); err != nil {
		return fmt.Errorf("failed to write provisioning request to Kafka: %w", err)
	}

	return nil
}

// Close closes the Kafka writer
func (p *ProvisionPublisher) Close() error {
	return p.writer.Close()
}

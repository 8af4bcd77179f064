package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"

	"github.com/clinigo/clinic-platform/shared/config"
	"github.com/clinigo/clinic-platform/shared/tenant"
)

// ProvisionConsumer reads provisioning requests from Kafka and hands them
// to the worker
type ProvisionConsumer struct {
	reader *kafka.Reader
	worker *Worker
	log    *logrus.Entry
}

// NewProvisionConsumer creates a consumer for the provisioning topic
func NewProvisionConsumer(cfg *config.KafkaConfig, worker *Worker) *ProvisionConsumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        []string{cfg.Broker},
		Topic:          cfg.ProvisioningTopic,
		GroupID:        "provisioner",
		MinBytes:       1,
		MaxBytes:       10e6,
		CommitInterval: time.Second,
	})

	return &ProvisionConsumer{
		reader: reader,
		worker: worker,
		log:    logrus.WithField("component", "provision-consumer"),
	}
}

// Run consumes provisioning requests until the context is cancelled.
// Failed provisions land in the retry table instead of being redelivered.
func (pc *ProvisionConsumer) Run(ctx context.Context) {
	pc.log.Info("Starting provisioning consumer")

	for {
		rctx, cancel := context.WithTimeout(ctx, 10*time.Second)
		msg, err := pc.reader.ReadMessage(rctx)
		cancel()

		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if errors.Is(err, context.DeadlineExceeded) {
				continue
			}
			pc.log.WithError(err).Error("Error reading provisioning message")
			time.Sleep(time.Second)
			continue
		}

		var req tenant.ProvisionRequest
		if err := json.Unmarshal(msg.Value, &req); err != nil {
			pc.log.WithError(err).Error("Error unmarshaling provisioning request")
			continue
		}

		pctx, pcancel := context.WithTimeout(ctx, 2*time.Minute)
		err = pc.worker.Provision(pctx, req)
		pcancel()

		if err != nil {
			pc.log.WithError(err).WithField("clinic", req.Subdomain).Error("Provisioning failed, scheduling retry")
			pc.worker.recordFailure(ctx, req, err)
			continue
		}
	}
}

// Close closes the Kafka reader
func (pc *ProvisionConsumer) Close() error {
	if err := pc.reader.Close(); err != nil {
		return fmt.Errorf("failed to close provisioning reader: %w", err)
	}
	return nil
}

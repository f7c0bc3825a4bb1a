// Package kafka publishes observations and render payloads for the renderer.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/metar-etl/internal/config"
	"github.com/couchcryptid/metar-etl/internal/domain"
)

// messageWriter is the subset of *kafkago.Writer used here.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Writer produces observation and plan messages.
// It implements pipeline.Publisher.
type Writer struct {
	observations messageWriter
	plans        messageWriter
	logger       *slog.Logger
}

// NewWriter creates Kafka producers for the configured observation and plan topics.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	return &Writer{
		observations: newTopicWriter(cfg.KafkaBrokers, cfg.KafkaObservationsTopic),
		plans:        newTopicWriter(cfg.KafkaBrokers, cfg.KafkaPlansTopic),
		logger:       logger,
	}
}

func newTopicWriter(brokers []string, topic string) *kafkago.Writer {
	return &kafkago.Writer{
		Addr:                   kafkago.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafkago.Hash{},
		RequiredAcks:           kafkago.RequireAll,
		AllowAutoTopicCreation: true,
	}
}

// Publish writes every observation keyed by station, then the payload keyed
// by region. The plan is only written once its observations are accepted.
func (w *Writer) Publish(ctx context.Context, payload *domain.RenderPayload) error {
	if len(payload.Observations) > 0 {
		msgs := make([]kafkago.Message, len(payload.Observations))
		for i := range payload.Observations {
			msg, err := serializeObservation(payload.Region, payload.Observations[i])
			if err != nil {
				return err
			}
			msgs[i] = msg
		}
		if err := w.observations.WriteMessages(ctx, msgs...); err != nil {
			return fmt.Errorf("write observations: %w", err)
		}
	}

	msg, err := serializePlan(payload)
	if err != nil {
		return err
	}
	if err := w.plans.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write plan: %w", err)
	}
	w.logger.Debug("plan published", "region", payload.Region, "observations", len(payload.Observations), "image", payload.Image)
	return nil
}

// Close flushes and closes both producers.
func (w *Writer) Close() error {
	errObs := w.observations.Close()
	errPlans := w.plans.Close()
	if errObs != nil {
		return errObs
	}
	return errPlans
}

// serializeObservation marshals one observation into a Kafka message.
func serializeObservation(region string, obs domain.Observation) (kafkago.Message, error) {
	data, err := json.Marshal(obs)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize observation: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(obs.StationID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "region", Value: []byte(domain.NormalizeRegionKey(region))},
			{Key: "report_time", Value: []byte(obs.ReportTime.UTC().Format(time.RFC3339))},
		},
	}, nil
}

// serializePlan marshals a render payload into a Kafka message.
func serializePlan(payload *domain.RenderPayload) (kafkago.Message, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize plan: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(domain.NormalizeRegionKey(payload.Region)),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "image", Value: []byte(payload.Image)},
			{Key: "report_time", Value: []byte(payload.ReportTime.UTC().Format(time.RFC3339))},
		},
	}, nil
}

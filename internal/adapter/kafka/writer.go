// Package kafka publishes spectrogram label events to a Kafka topic.
// The sink is optional; training runs that only consume the JSONL
// exports leave it disabled.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/seismocat/seismic-etl/internal/config"
	"github.com/seismocat/seismic-etl/internal/domain"
)

// Writer produces label events to the configured topic.
// It implements pipeline.LabelPublisher.
type Writer struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the label topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaLabelTopic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Writer{writer: w, logger: logger}
}

// PublishLabels serializes and publishes a batch of label events in a
// single WriteMessages call.
func (w *Writer) PublishLabels(ctx context.Context, events []domain.LabelEvent) error {
	if len(events) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(events))
	for i := range events {
		msg, err := serializeToMessage(events[i])
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	return w.writer.WriteMessages(ctx, msgs...)
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals a LabelEvent into a Kafka message keyed
// by the trace identity so relabeling compacts cleanly.
func serializeToMessage(event domain.LabelEvent) (kafkago.Message, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize label event: %w", err)
	}
	key := event.Code + "_" + event.Station + "_" + event.Component
	return kafkago.Message{
		Key:   []byte(key),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "split", Value: []byte(event.Split)},
			{Key: "class", Value: []byte(event.Box.Class)},
		},
	}, nil
}

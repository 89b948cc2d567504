package kafka

import (
	"context"
	"encoding/json"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/segmentio/kafka-go"

	"github.com/Ramsey-B/heather/pkg/metrics"
	"github.com/Ramsey-B/heather/pkg/models"
	"github.com/Ramsey-B/heather/pkg/tracing"
)

// SchemaVersion is the current review event schema version
const SchemaVersion = "1.0"

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer publishes review events
type Producer struct {
	writer messageWriter
	logger ectologger.Logger
	topic  string
}

// ProducerConfig holds Kafka producer configuration
type ProducerConfig struct {
	Brokers      []string
	Topic        string
	BatchSize    int
	BatchTimeout time.Duration
	RequiredAcks int
	Compression  string
}

// NewProducer creates a new Kafka producer
func NewProducer(cfg ProducerConfig, logger ectologger.Logger) *Producer {
	compression := kafka.Snappy
	switch cfg.Compression {
	case "gzip":
		compression = kafka.Gzip
	case "lz4":
		compression = kafka.Lz4
	case "zstd":
		compression = kafka.Zstd
	case "none":
		compression = 0
	}

	writer := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Balancer:               &kafka.Hash{},
		BatchSize:              cfg.BatchSize,
		BatchTimeout:           cfg.BatchTimeout,
		RequiredAcks:           kafka.RequiredAcks(cfg.RequiredAcks),
		Compression:            compression,
		AllowAutoTopicCreation: true,
	}

	return &Producer{
		writer: writer,
		logger: logger,
		topic:  cfg.Topic,
	}
}

// Close closes the producer
func (p *Producer) Close() error {
	return p.writer.Close()
}

// PublishReviewEvent publishes one review event keyed by authority key, so all
// events for an identity land on the same partition in order.
func (p *Producer) PublishReviewEvent(ctx context.Context, event *models.ReviewEvent) error {
	ctx, span := tracing.StartSpan(ctx, "kafka.Producer.PublishReviewEvent")
	defer span.End()

	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}

	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	msg := kafka.Message{
		Topic: p.topic,
		Key:   []byte(event.AuthorityKey),
		Value: data,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.Type)},
			{Key: "authority_key", Value: []byte(event.AuthorityKey)},
			{Key: "schema_version", Value: []byte(SchemaVersion)},
		},
	}
	for key, value := range tracing.Carrier(ctx) {
		msg.Headers = append(msg.Headers, kafka.Header{Key: key, Value: []byte(value)})
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		metrics.RecordKafkaMessage("out", p.topic, "error")
		p.logger.WithContext(ctx).WithError(err).Error("Failed to publish review event")
		return err
	}
	metrics.RecordKafkaMessage("out", p.topic, "ok")

	p.logger.WithContext(ctx).WithFields(map[string]any{
		"event_type":    event.Type,
		"authority_key": event.AuthorityKey,
		"items":         len(event.ItemIDs),
	}).Debug("Published review event")

	return nil
}

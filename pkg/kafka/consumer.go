package kafka

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/segmentio/kafka-go"

	"github.com/Ramsey-B/heather/pkg/metrics"
	"github.com/Ramsey-B/heather/pkg/tracing"
)

// MessageHandler processes one identity change
type MessageHandler func(ctx context.Context, msg *IncomingMessage) error

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

const (
	defaultMaxAttempts  = 3
	defaultRetryBackoff = time.Second
)

// Consumer reads identity change events. Messages are handled one at a time in
// partition order and committed once handled or given up on.
type Consumer struct {
	reader       messageReader
	topic        string
	logger       ectologger.Logger
	handler      MessageHandler
	maxAttempts  int
	retryBackoff time.Duration

	running atomic.Bool
	wg      sync.WaitGroup
	cancel  context.CancelFunc
}

type ConsumerConfig struct {
	Brokers       []string
	Topic         string
	ConsumerGroup string
	// MaxAttempts bounds handler calls per message before it is skipped. Defaults to 3.
	MaxAttempts  int
	RetryBackoff time.Duration
}

func NewConsumer(cfg ConsumerConfig, logger ectologger.Logger, handler MessageHandler) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		Topic:       cfg.Topic,
		GroupID:     cfg.ConsumerGroup,
		MinBytes:    1,
		MaxBytes:    1e6,
		MaxWait:     500 * time.Millisecond,
		StartOffset: kafka.LastOffset,
	})

	return newConsumer(reader, cfg, logger, handler)
}

func newConsumer(reader messageReader, cfg ConsumerConfig, logger ectologger.Logger, handler MessageHandler) *Consumer {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaultMaxAttempts
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = defaultRetryBackoff
	}
	return &Consumer{
		reader:       reader,
		topic:        cfg.Topic,
		logger:       logger,
		handler:      handler,
		maxAttempts:  cfg.MaxAttempts,
		retryBackoff: cfg.RetryBackoff,
	}
}

// Start launches the consume loop and returns immediately.
func (c *Consumer) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.running.Store(true)

	c.wg.Add(1)
	go c.consumeLoop(ctx)

	c.logger.WithContext(ctx).WithField("topic", c.topic).Info("Identity change consumer started")
	return nil
}

// Stop ends the loop, waits for the in-flight message and closes the reader.
func (c *Consumer) Stop() error {
	if c.cancel != nil {
		c.cancel()
	}
	c.wg.Wait()
	return c.reader.Close()
}

// Running reports whether the consume loop is alive.
func (c *Consumer) Running() bool {
	return c.running.Load()
}

func (c *Consumer) consumeLoop(ctx context.Context) {
	defer c.wg.Done()
	defer c.running.Store(false)

	for ctx.Err() == nil {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, io.EOF) {
				return
			}
			c.logger.WithContext(ctx).WithError(err).Error("Failed to fetch identity change")
			if !sleep(ctx, c.retryBackoff) {
				return
			}
			continue
		}

		c.processMessage(ctx, msg)
	}
}

func (c *Consumer) processMessage(ctx context.Context, msg kafka.Message) {
	headers := make(map[string]string, len(msg.Headers))
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}

	// continue the producer's trace when it sent one
	ctx = tracing.ContextFromCarrier(ctx, headers)
	ctx, span := tracing.StartSpan(ctx, "kafka.Consumer.processMessage")
	defer span.End()

	log := c.logger.WithContext(ctx).WithFields(map[string]any{
		"topic":     msg.Topic,
		"partition": msg.Partition,
		"offset":    msg.Offset,
	})

	incoming := &IncomingMessage{
		Key:       string(msg.Key),
		Value:     msg.Value,
		Headers:   headers,
		Partition: msg.Partition,
		Offset:    msg.Offset,
		Timestamp: msg.Time,
		Topic:     msg.Topic,
	}

	status := "ok"
	if err := incoming.ParseIdentityChange(); err != nil {
		status = "invalid"
		log.WithError(err).Warn("Skipping unreadable identity change")
	} else if err := c.handle(ctx, incoming); err != nil {
		if ctx.Err() != nil {
			// shutting down; leave it uncommitted for the next member
			return
		}
		status = "error"
		log.WithError(err).WithField("authority_key", incoming.Change.AuthorityKey).
			Error("Giving up on identity change after retries")
	}
	metrics.RecordKafkaMessage("in", msg.Topic, status)

	if err := c.reader.CommitMessages(ctx, msg); err != nil {
		log.WithError(err).Error("Failed to commit identity change")
	}
}

func (c *Consumer) handle(ctx context.Context, msg *IncomingMessage) error {
	var err error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		if err = c.handler(ctx, msg); err == nil {
			return nil
		}
		if attempt < c.maxAttempts && !sleep(ctx, c.retryBackoff*time.Duration(attempt)) {
			return ctx.Err()
		}
	}
	return err
}

// sleep waits d or until ctx ends, reporting whether the full wait elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

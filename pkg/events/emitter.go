// Package events publishes review changes and reacts to identity changes.
package events

import (
	"context"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/heather/pkg/models"
	"github.com/Ramsey-B/heather/pkg/tracing"
)

type Publisher interface {
	PublishReviewEvent(ctx context.Context, event *models.ReviewEvent) error
}

// Emitter forwards committed review events to Kafka
type Emitter struct {
	producer Publisher
	logger   ectologger.Logger
}

// NewEmitter creates a new event emitter
func NewEmitter(producer Publisher, logger ectologger.Logger) *Emitter {
	return &Emitter{
		producer: producer,
		logger:   logger,
	}
}

// OnReviewEvent emits the event. The ledger change is already committed.
func (e *Emitter) OnReviewEvent(ctx context.Context, event models.ReviewEvent) error {
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.OnReviewEvent")
	defer span.End()

	if err := e.producer.PublishReviewEvent(ctx, &event); err != nil {
		e.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"event_type":    event.Type,
			"authority_key": event.AuthorityKey,
		}).Errorf("Failed to emit %s event", event.Type)
		return err
	}

	return nil
}

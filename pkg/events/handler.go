package events

import (
	"context"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/heather/pkg/authority"
	"github.com/Ramsey-B/heather/pkg/kafka"
	"github.com/Ramsey-B/heather/pkg/models"
	"github.com/Ramsey-B/heather/pkg/tracing"
)

type Regenerator interface {
	GeneratePotentialMatches(ctx context.Context, authorityKey string) ([]models.PotentialMatch, error)
}

type Binder interface {
	Run(ctx context.Context, keys []string) (authority.RunSummary, error)
}

type MatchCleaner interface {
	DeleteByAuthorityKey(ctx context.Context, authorityKey string) error
}

// IdentityChangeHandler keeps an identity's potential matches current as its
// names change, and optionally binds its records right away.
type IdentityChangeHandler struct {
	review  Regenerator
	binder  Binder
	matches MatchCleaner
	logger  ectologger.Logger
}

// NewIdentityChangeHandler builds the handler. A nil binder disables auto-binding.
func NewIdentityChangeHandler(review Regenerator, binder Binder, matches MatchCleaner, logger ectologger.Logger) *IdentityChangeHandler {
	return &IdentityChangeHandler{
		review:  review,
		binder:  binder,
		matches: matches,
		logger:  logger,
	}
}

// Handle is a kafka.MessageHandler.
func (h *IdentityChangeHandler) Handle(ctx context.Context, msg *kafka.IncomingMessage) error {
	ctx, span := tracing.StartSpan(ctx, "events.IdentityChangeHandler.Handle")
	defer span.End()

	change := msg.Change
	log := h.logger.WithContext(ctx).WithFields(map[string]any{
		"authority_key": change.AuthorityKey,
		"change":        change.Type,
	})

	if change.Type == kafka.IdentityDeleted {
		if err := h.matches.DeleteByAuthorityKey(ctx, change.AuthorityKey); err != nil {
			log.WithError(err).Error("Failed to clear potential matches for deleted identity")
			return err
		}
		log.Info("Cleared potential matches for deleted identity")
		return nil
	}

	matches, err := h.review.GeneratePotentialMatches(ctx, change.AuthorityKey)
	if err != nil {
		if httperror.IsHTTPError(err) && httperror.GetStatusCode(err) == http.StatusNotFound {
			// the identity is gone already; a delete event follows
			log.Warn("Identity not found, skipping change")
			return nil
		}
		log.WithError(err).Error("Failed to regenerate potential matches")
		return err
	}
	log.WithField("potential_matches", len(matches)).Info("Regenerated potential matches")

	if h.binder == nil {
		return nil
	}

	summary, err := h.binder.Run(ctx, []string{change.AuthorityKey})
	if err != nil {
		log.WithError(err).Error("Failed to bind identity")
		return err
	}
	summary.Log(ctx, h.logger)
	return nil
}

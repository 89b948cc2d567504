// Package review keeps the potential match ledger and its accept/reject workflow.
package review

import (
	"context"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectolinq"
	"github.com/Gobusters/ectologger"

	appctx "github.com/Ramsey-B/heather/pkg/context"
	"github.com/Ramsey-B/heather/pkg/database"
	"github.com/Ramsey-B/heather/pkg/metrics"
	"github.com/Ramsey-B/heather/pkg/models"
	"github.com/Ramsey-B/heather/pkg/search"
	"github.com/Ramsey-B/heather/pkg/tracing"
	"github.com/Ramsey-B/heather/pkg/variants"
)

type IdentityStore interface {
	GetByAuthorityKey(ctx context.Context, authorityKey string) (*models.Identity, error)
}

type ItemStore interface {
	Get(ctx context.Context, itemID string) (*models.Item, error)
	GetFieldValues(ctx context.Context, itemID string, field models.Field) ([]models.MetadataValue, error)
	ReplaceFieldValues(ctx context.Context, itemID string, field models.Field, values []models.MetadataValue) error
}

type PotentialMatchStore interface {
	ListByAuthorityKey(ctx context.Context, authorityKey string) ([]models.PotentialMatch, error)
	DeleteByAuthorityKey(ctx context.Context, authorityKey string) error
	Delete(ctx context.Context, authorityKey string, itemIDs []string) error
	CreateBatch(ctx context.Context, matches []models.PotentialMatch) error
	Upsert(ctx context.Context, authorityKey, itemID string, pending bool) error
}

type PreferenceStore interface {
	Get(ctx context.Context, ownerID, relationName, itemID string) (*models.RelationPreference, error)
	FindByOwnerRelationStatus(ctx context.Context, ownerID, relationName string, statuses ...models.PreferenceStatus) ([]string, error)
	SetStatus(ctx context.Context, ownerID, relationName string, itemIDs []string, status models.PreferenceStatus) error
}

// Observer is told about review changes after they commit.
type Observer interface {
	OnReviewEvent(ctx context.Context, event models.ReviewEvent) error
}

// ExclusionStatuses are the decisions that keep an item out of an identity's candidates.
var ExclusionStatuses = []models.PreferenceStatus{models.PreferenceRejected, models.PreferenceUnlinked}

type Config struct {
	RelationName string
	Scope        string
	Fields       []models.Field
}

type Deps struct {
	DB          database.DB
	Identities  IdentityStore
	Items       ItemStore
	Matches     PotentialMatchStore
	Preferences PreferenceStore
	Retriever   *search.Retriever
	Observers   []Observer
	Logger      ectologger.Logger
}

type Service struct {
	deps   Deps
	config Config
	logger ectologger.Logger
}

func NewService(deps Deps, config Config) *Service {
	return &Service{
		deps:   deps,
		config: config,
		logger: deps.Logger,
	}
}

// AddObserver registers an observer notified after each committed change.
func (s *Service) AddObserver(observer Observer) {
	s.deps.Observers = append(s.deps.Observers, observer)
}

// Variants returns the identity's name variants with its current exclusion set.
func (s *Service) Variants(ctx context.Context, authorityKey string) ([]models.NameVariant, error) {
	ctx, span := tracing.StartSpan(ctx, "review.Service.Variants", tracing.AuthorityKey(authorityKey))
	defer span.End()

	identity, excluded, err := s.loadIdentity(ctx, authorityKey)
	if err != nil {
		return nil, err
	}
	return variants.Expand(identity, excluded), nil
}

// GeneratePotentialMatches replaces the identity's potential matches with the
// records the index currently finds for any of its name variants, minus the
// ones it rejected or unlinked. Rows that survive keep their pending flag.
func (s *Service) GeneratePotentialMatches(ctx context.Context, authorityKey string) ([]models.PotentialMatch, error) {
	ctx, span := tracing.StartSpan(ctx, "review.Service.GeneratePotentialMatches", tracing.AuthorityKey(authorityKey))
	defer span.End()

	identity, excluded, err := s.loadIdentity(ctx, authorityKey)
	if err != nil {
		return nil, err
	}

	candidates := s.candidates(ctx, variants.Expand(identity, excluded))

	ctx, tx, err := s.deps.DB.GetTx(ctx, nil)
	if err != nil {
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to begin transaction")
	}
	defer tx.Rollback(ctx)

	existing, err := s.deps.Matches.ListByAuthorityKey(ctx, authorityKey)
	if err != nil {
		return nil, err
	}
	previous := make(map[string]models.PotentialMatch, len(existing))
	for _, m := range existing {
		previous[m.ItemID] = m
	}

	rows := make([]models.PotentialMatch, 0, len(candidates))
	for _, itemID := range candidates {
		row := models.PotentialMatch{AuthorityKey: authorityKey, ItemID: itemID}
		if prev, ok := previous[itemID]; ok {
			row = prev
		}
		rows = append(rows, row)
	}

	if err := s.deps.Matches.DeleteByAuthorityKey(ctx, authorityKey); err != nil {
		return nil, err
	}
	if err := s.deps.Matches.CreateBatch(ctx, rows); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		s.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"authority_key": authorityKey}).Error("Failed to commit potential matches")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to save potential matches")
	}

	metrics.PotentialMatchesGenerated.Observe(float64(len(rows)))
	metrics.RecordReviewTransition("generated")
	s.logger.WithContext(ctx).WithFields(map[string]any{
		"authority_key": authorityKey,
		"count":         len(rows),
		"excluded":      len(excluded),
	}).Info("Generated potential matches")

	s.notify(ctx, models.ReviewEvent{
		Type:         models.ReviewEventGenerated,
		AuthorityKey: authorityKey,
		IdentityID:   identity.ID,
		ItemIDs:      candidates,
	})

	return s.deps.Matches.ListByAuthorityKey(ctx, authorityKey)
}

// GetPotentialMatches returns the identity's current potential matches ordered by item id.
func (s *Service) GetPotentialMatches(ctx context.Context, authorityKey string) ([]models.PotentialMatch, error) {
	ctx, span := tracing.StartSpan(ctx, "review.Service.GetPotentialMatches", tracing.AuthorityKey(authorityKey))
	defer span.End()

	return s.deps.Matches.ListByAuthorityKey(ctx, authorityKey)
}

// Accept confirms a link. Below full confidence the row stays as pending;
// at full confidence it is removed. Either way the item is selected for the
// identity and its matching unlinked values are bound at confidence. An unset
// confidence selects the item and parks it as pending without binding values.
func (s *Service) Accept(ctx context.Context, itemID, authorityKey string, confidence models.Confidence) error {
	ctx, span := tracing.StartSpan(ctx, "review.Service.Accept", tracing.AuthorityKey(authorityKey))
	defer span.End()

	if !validConfidence(confidence) {
		return httperror.NewHTTPErrorf(http.StatusBadRequest, "invalid confidence %s", confidence)
	}

	identity, err := s.deps.Identities.GetByAuthorityKey(ctx, authorityKey)
	if err != nil {
		return err
	}

	ctx, tx, err := s.deps.DB.GetTx(ctx, nil)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to begin transaction")
	}
	defer tx.Rollback(ctx)

	if confidence == models.ConfidenceAccepted {
		err = s.deps.Matches.Delete(ctx, authorityKey, []string{itemID})
	} else {
		err = s.deps.Matches.Upsert(ctx, authorityKey, itemID, true)
	}
	if err != nil {
		return err
	}

	if err := s.deps.Preferences.SetStatus(ctx, identity.ID, s.config.RelationName, []string{itemID}, models.PreferenceSelected); err != nil {
		return err
	}

	if err := s.bindItem(ctx, identity, itemID, confidence); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		s.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"authority_key": authorityKey, "item_id": itemID}).Error("Failed to commit accept")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to accept potential match")
	}

	metrics.RecordReviewTransition(ectolinq.Ternary(confidence == models.ConfidenceAccepted, "accepted", "pending"))

	s.notify(ctx, models.ReviewEvent{
		Type:         models.ReviewEventAccepted,
		AuthorityKey: authorityKey,
		IdentityID:   identity.ID,
		ItemIDs:      []string{itemID},
		Confidence:   &confidence,
	})

	return nil
}

// Reject removes the rows for itemIDs and records the rejection so the items
// are never proposed to this identity again.
func (s *Service) Reject(ctx context.Context, itemIDs []string, authorityKey string) error {
	ctx, span := tracing.StartSpan(ctx, "review.Service.Reject", tracing.AuthorityKey(authorityKey))
	defer span.End()

	if len(itemIDs) == 0 {
		return httperror.NewHTTPError(http.StatusBadRequest, "at least one item id is required")
	}

	identity, err := s.deps.Identities.GetByAuthorityKey(ctx, authorityKey)
	if err != nil {
		return err
	}

	ctx, tx, err := s.deps.DB.GetTx(ctx, nil)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to begin transaction")
	}
	defer tx.Rollback(ctx)

	if err := s.deps.Matches.Delete(ctx, authorityKey, itemIDs); err != nil {
		return err
	}
	if err := s.deps.Preferences.SetStatus(ctx, identity.ID, s.config.RelationName, itemIDs, models.PreferenceRejected); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		s.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"authority_key": authorityKey, "item_ids": itemIDs}).Error("Failed to commit reject")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to reject potential matches")
	}

	metrics.RecordReviewTransition("rejected")

	s.notify(ctx, models.ReviewEvent{
		Type:         models.ReviewEventRejected,
		AuthorityKey: authorityKey,
		IdentityID:   identity.ID,
		ItemIDs:      itemIDs,
	})

	return nil
}

// Unlink strips the identity's key from the item's values, drops any
// potential match and excludes the item from future candidates. Repeating an
// unlink is a no-op; unlinking an item the identity never touched is a 404.
func (s *Service) Unlink(ctx context.Context, itemID, authorityKey string) error {
	ctx, span := tracing.StartSpan(ctx, "review.Service.Unlink", tracing.AuthorityKey(authorityKey))
	defer span.End()

	identity, err := s.deps.Identities.GetByAuthorityKey(ctx, authorityKey)
	if err != nil {
		return err
	}

	ctx, tx, err := s.deps.DB.GetTx(ctx, nil)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to begin transaction")
	}
	defer tx.Rollback(ctx)

	preference, err := s.deps.Preferences.Get(ctx, identity.ID, s.config.RelationName, itemID)
	if err != nil && httperror.GetStatusCode(err) != http.StatusNotFound {
		return err
	}

	stripped := false
	sysCtx := appctx.WithSystemScope(ctx)
	for _, field := range s.config.Fields {
		values, err := s.deps.Items.GetFieldValues(ctx, itemID, field)
		if err != nil {
			return err
		}
		changed := false
		for i, v := range values {
			if v.HasAuthority() && *v.Authority == authorityKey {
				values[i].Authority = nil
				values[i].Confidence = models.ConfidenceUnset
				changed = true
			}
		}
		if changed {
			if err := s.deps.Items.ReplaceFieldValues(sysCtx, itemID, field, values); err != nil {
				return err
			}
			stripped = true
		}
	}

	if !stripped {
		if preference == nil {
			return httperror.NewHTTPErrorf(http.StatusNotFound, "item %s is not linked to %s", itemID, authorityKey)
		}
		if preference.Status == models.PreferenceUnlinked {
			return nil
		}
	}

	if err := s.deps.Matches.Delete(ctx, authorityKey, []string{itemID}); err != nil {
		return err
	}
	if err := s.deps.Preferences.SetStatus(ctx, identity.ID, s.config.RelationName, []string{itemID}, models.PreferenceUnlinked); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		s.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"authority_key": authorityKey, "item_id": itemID}).Error("Failed to commit unlink")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to unlink item")
	}

	metrics.RecordReviewTransition("unlinked")

	s.notify(ctx, models.ReviewEvent{
		Type:         models.ReviewEventUnlinked,
		AuthorityKey: authorityKey,
		IdentityID:   identity.ID,
		ItemIDs:      []string{itemID},
	})

	return nil
}

func (s *Service) loadIdentity(ctx context.Context, authorityKey string) (*models.Identity, map[string]struct{}, error) {
	identity, err := s.deps.Identities.GetByAuthorityKey(ctx, authorityKey)
	if err != nil {
		return nil, nil, err
	}

	excludedIDs, err := s.deps.Preferences.FindByOwnerRelationStatus(ctx, identity.ID, s.config.RelationName, ExclusionStatuses...)
	if err != nil {
		return nil, nil, err
	}

	return identity, models.NewExclusionSet(excludedIDs...), nil
}

// candidates collects the distinct record ids found for the variants, in first-seen order.
func (s *Service) candidates(ctx context.Context, nameVariants []models.NameVariant) []string {
	seen := make(map[string]struct{})
	ids := []string{}
	for _, variant := range nameVariants {
		result := s.deps.Retriever.Retrieve(ctx, variant, search.Options{
			Mode:          search.ModeBatch,
			Scope:         s.config.Scope,
			ExcludeLinked: true,
		})
		for _, id := range result.IDs {
			if variant.Excludes(id) {
				continue
			}
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}
	return ids
}

// bindItem links the item's unlinked values that name one of the identity's variants.
func (s *Service) bindItem(ctx context.Context, identity *models.Identity, itemID string, confidence models.Confidence) error {
	item, err := s.deps.Items.Get(ctx, itemID)
	if err != nil {
		return err
	}
	if confidence == models.ConfidenceUnset {
		return nil
	}

	texts := variants.Texts(variants.Expand(identity, nil))
	sysCtx := appctx.WithSystemScope(ctx)
	for _, field := range s.config.Fields {
		values := item.Values(field)
		changed := false
		for i, v := range values {
			if v.HasAuthority() {
				continue
			}
			matched := ectolinq.Find(texts, func(text string) bool { return variants.Matches(v.Value, text) })
			if matched == "" {
				continue
			}
			key := identity.AuthorityKey
			values[i].Authority = &key
			values[i].Confidence = confidence
			changed = true
		}
		if changed {
			if err := s.deps.Items.ReplaceFieldValues(sysCtx, itemID, field, values); err != nil {
				return err
			}
		}
	}

	return nil
}

func (s *Service) notify(ctx context.Context, event models.ReviewEvent) {
	event.OccurredAt = time.Now().UTC()
	for _, observer := range s.deps.Observers {
		if err := observer.OnReviewEvent(ctx, event); err != nil {
			s.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
				"event":         event.Type,
				"authority_key": event.AuthorityKey,
			}).Warn("Review observer failed")
		}
	}
}

func validConfidence(c models.Confidence) bool {
	_, err := models.ParseConfidence(c.String())
	return err == nil
}

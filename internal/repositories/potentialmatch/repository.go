package potentialmatch

import (
	"context"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/heather/pkg/database"
	"github.com/Ramsey-B/heather/pkg/models"
	"github.com/Ramsey-B/heather/pkg/tracing"
)

// Repository handles potential match persistence. Callers own the transaction;
// every method runs on the one carried by ctx when present.
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// ListByAuthorityKey returns the rows for key ordered by item id.
func (r *Repository) ListByAuthorityKey(ctx context.Context, authorityKey string) ([]models.PotentialMatch, error) {
	ctx, span := tracing.StartSpan(ctx, "potentialmatch.Repository.ListByAuthorityKey")
	defer span.End()

	sb := database.NewSelectBuilder(r.db.Flavor())
	sb.Select("authority_key", "item_id", "pending", "created_at", "updated_at")
	sb.From("potential_matches")
	sb.Where(sb.Equal("authority_key", authorityKey))
	sb.OrderBy("item_id")

	query, args := sb.Build()
	matches := []models.PotentialMatch{}
	if err := database.Conn(ctx, r.db).SelectContext(ctx, &matches, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"authority_key": authorityKey}).Error("Failed to list potential matches")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list potential matches")
	}

	return matches, nil
}

// DeleteByAuthorityKey removes every row for key.
func (r *Repository) DeleteByAuthorityKey(ctx context.Context, authorityKey string) error {
	ctx, span := tracing.StartSpan(ctx, "potentialmatch.Repository.DeleteByAuthorityKey")
	defer span.End()

	del := database.NewDeleteBuilder(r.db.Flavor())
	del.DeleteFrom("potential_matches")
	del.Where(del.Equal("authority_key", authorityKey))

	query, args := del.Build()
	if _, err := database.Conn(ctx, r.db).ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"authority_key": authorityKey}).Error("Failed to delete potential matches")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to delete potential matches")
	}

	return nil
}

// Delete removes the rows for key and each of itemIDs.
func (r *Repository) Delete(ctx context.Context, authorityKey string, itemIDs []string) error {
	ctx, span := tracing.StartSpan(ctx, "potentialmatch.Repository.Delete")
	defer span.End()

	if len(itemIDs) == 0 {
		return nil
	}

	del := database.NewDeleteBuilder(r.db.Flavor())
	del.DeleteFrom("potential_matches")
	del.Where(
		del.Equal("authority_key", authorityKey),
		del.In("item_id", database.ToAny(itemIDs)...),
	)

	query, args := del.Build()
	if _, err := database.Conn(ctx, r.db).ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"authority_key": authorityKey,
			"item_ids":      itemIDs,
		}).Error("Failed to delete potential match")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to delete potential match")
	}

	return nil
}

// CreateBatch inserts rows, keeping any timestamps already set on them.
// Duplicates of an existing (key, item) pair are skipped.
func (r *Repository) CreateBatch(ctx context.Context, matches []models.PotentialMatch) error {
	ctx, span := tracing.StartSpan(ctx, "potentialmatch.Repository.CreateBatch")
	defer span.End()

	if len(matches) == 0 {
		return nil
	}

	now := time.Now().UTC()
	ib := database.NewInsertBuilder(r.db.Flavor())
	ib.InsertInto("potential_matches")
	ib.Cols("authority_key", "item_id", "pending", "created_at", "updated_at")
	for _, m := range matches {
		created := m.CreatedAt
		if created.IsZero() {
			created = now
		}
		updated := m.UpdatedAt
		if updated.IsZero() {
			updated = now
		}
		ib.Values(m.AuthorityKey, m.ItemID, m.Pending, created, updated)
	}
	ib.OnConflictDoNothing()

	query, args := ib.Build()
	if _, err := database.Conn(ctx, r.db).ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"count": len(matches)}).Error("Failed to create potential matches")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to create potential matches")
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{"count": len(matches)}).Debug("Created potential matches batch")
	return nil
}

// Upsert creates or updates the row for (key, item) with the given pending flag.
func (r *Repository) Upsert(ctx context.Context, authorityKey, itemID string, pending bool) error {
	ctx, span := tracing.StartSpan(ctx, "potentialmatch.Repository.Upsert")
	defer span.End()

	now := time.Now().UTC()
	ib := database.NewInsertBuilder(r.db.Flavor())
	ib.InsertInto("potential_matches")
	ib.Cols("authority_key", "item_id", "pending", "created_at", "updated_at")
	ib.Values(authorityKey, itemID, pending, now, now)
	ib.OnConflictDoUpdate([]string{"authority_key", "item_id"}, database.Excluded("pending"), database.Excluded("updated_at"))

	query, args := ib.Build()
	if _, err := database.Conn(ctx, r.db).ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"authority_key": authorityKey,
			"item_id":       itemID,
		}).Error("Failed to upsert potential match")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to upsert potential match")
	}

	return nil
}

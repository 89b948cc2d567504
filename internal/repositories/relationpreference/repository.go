package relationpreference

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectolinq"
	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/heather/pkg/database"
	"github.com/Ramsey-B/heather/pkg/models"
	"github.com/Ramsey-B/heather/pkg/tracing"
)

// Repository is the relation preference ledger.
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

// FindByOwnerRelationStatus returns the item ids with any of statuses, ordered by item id.
func (r *Repository) FindByOwnerRelationStatus(ctx context.Context, ownerID, relationName string, statuses ...models.PreferenceStatus) ([]string, error) {
	ctx, span := tracing.StartSpan(ctx, "relationpreference.Repository.FindByOwnerRelationStatus")
	defer span.End()

	if len(statuses) == 0 {
		return []string{}, nil
	}

	sb := database.NewSelectBuilder(r.db.Flavor())
	sb.Select("item_id")
	sb.From("relation_preferences")
	sb.Where(
		sb.Equal("owner_id", ownerID),
		sb.Equal("relation_name", relationName),
		sb.In("status", database.ToAny(ectolinq.Map(statuses, func(s models.PreferenceStatus) string { return string(s) }))...),
	)
	sb.OrderBy("item_id")

	query, args := sb.Build()
	itemIDs := []string{}
	if err := database.Conn(ctx, r.db).SelectContext(ctx, &itemIDs, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"owner_id": ownerID,
			"relation": relationName,
		}).Error("Failed to find relation preferences")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to find relation preferences")
	}

	return itemIDs, nil
}

// Get returns the preference for one item.
func (r *Repository) Get(ctx context.Context, ownerID, relationName, itemID string) (*models.RelationPreference, error) {
	ctx, span := tracing.StartSpan(ctx, "relationpreference.Repository.Get")
	defer span.End()

	sb := database.NewSelectBuilder(r.db.Flavor())
	sb.Select("owner_id", "relation_name", "item_id", "status", "updated_at")
	sb.From("relation_preferences")
	sb.Where(
		sb.Equal("owner_id", ownerID),
		sb.Equal("relation_name", relationName),
		sb.Equal("item_id", itemID),
	)

	query, args := sb.Build()
	var preference models.RelationPreference
	if err := database.Conn(ctx, r.db).GetContext(ctx, &preference, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, httperror.NewHTTPError(http.StatusNotFound, fmt.Sprintf("no %s preference for item %s", relationName, itemID))
		}
		r.logger.WithContext(ctx).WithError(err).Error("Failed to get relation preference")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get relation preference")
	}

	return &preference, nil
}

// SetStatus records status for each item, creating or updating the rows.
func (r *Repository) SetStatus(ctx context.Context, ownerID, relationName string, itemIDs []string, status models.PreferenceStatus) error {
	ctx, span := tracing.StartSpan(ctx, "relationpreference.Repository.SetStatus")
	defer span.End()

	if len(itemIDs) == 0 {
		return nil
	}

	now := time.Now().UTC()
	ib := database.NewInsertBuilder(r.db.Flavor())
	ib.InsertInto("relation_preferences")
	ib.Cols("owner_id", "relation_name", "item_id", "status", "updated_at")
	for _, itemID := range itemIDs {
		ib.Values(ownerID, relationName, itemID, string(status), now)
	}
	ib.OnConflictDoUpdate([]string{"owner_id", "relation_name", "item_id"}, database.Excluded("status"), database.Excluded("updated_at"))

	query, args := ib.Build()
	if _, err := database.Conn(ctx, r.db).ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"owner_id": ownerID,
			"relation": relationName,
			"status":   status,
		}).Error("Failed to set relation preference status")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to set relation preference")
	}

	return nil
}

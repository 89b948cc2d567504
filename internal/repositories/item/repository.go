package item

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"

	appctx "github.com/Ramsey-B/heather/pkg/context"
	"github.com/Ramsey-B/heather/pkg/database"
	"github.com/Ramsey-B/heather/pkg/models"
	"github.com/Ramsey-B/heather/pkg/tracing"
)

var valueColumns = []string{"id", "item_id", "schema_name", "element", "qualifier", "language", "value", "authority", "confidence", "place"}

// Repository is the bibliographic record store.
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

// Get returns the item with all of its metadata in field and place order.
func (r *Repository) Get(ctx context.Context, itemID string) (*models.Item, error) {
	ctx, span := tracing.StartSpan(ctx, "item.Repository.Get")
	defer span.End()

	sb := database.NewSelectBuilder(r.db.Flavor())
	sb.Select("id", "submitter_id")
	sb.From("items")
	sb.Where(sb.Equal("id", itemID))

	query, args := sb.Build()
	var item models.Item
	if err := database.Conn(ctx, r.db).GetContext(ctx, &item, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, httperror.NewHTTPError(http.StatusNotFound, fmt.Sprintf("item %s not found", itemID))
		}
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"item_id": itemID}).Error("Failed to get item")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get item")
	}

	vb := database.NewSelectBuilder(r.db.Flavor())
	vb.Select(valueColumns...)
	vb.From("metadata_values")
	vb.Where(vb.Equal("item_id", itemID))
	vb.OrderBy("schema_name", "element", "qualifier", "place")

	query, args = vb.Build()
	if err := database.Conn(ctx, r.db).SelectContext(ctx, &item.Metadata, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"item_id": itemID}).Error("Failed to get item metadata")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get item metadata")
	}

	return &item, nil
}

// GetMany returns the items that exist among itemIDs, in the order given. Missing ids are skipped.
func (r *Repository) GetMany(ctx context.Context, itemIDs []string) ([]models.Item, error) {
	ctx, span := tracing.StartSpan(ctx, "item.Repository.GetMany")
	defer span.End()

	items := make([]models.Item, 0, len(itemIDs))
	for _, id := range itemIDs {
		item, err := r.Get(ctx, id)
		if err != nil {
			if httperror.GetStatusCode(err) == http.StatusNotFound {
				r.logger.WithContext(ctx).WithFields(map[string]any{"item_id": id}).Warn("Candidate item not found in record store")
				continue
			}
			return nil, err
		}
		items = append(items, *item)
	}

	return items, nil
}

// GetFieldValues returns the item's values for one field in place order.
func (r *Repository) GetFieldValues(ctx context.Context, itemID string, field models.Field) ([]models.MetadataValue, error) {
	ctx, span := tracing.StartSpan(ctx, "item.Repository.GetFieldValues")
	defer span.End()

	sb := database.NewSelectBuilder(r.db.Flavor())
	sb.Select(valueColumns...)
	sb.From("metadata_values")
	sb.Where(
		sb.Equal("item_id", itemID),
		sb.Equal("schema_name", field.Schema),
		sb.Equal("element", field.Element),
		sb.Equal("qualifier", field.Qualifier),
	)
	sb.OrderBy("place")

	query, args := sb.Build()
	var values []models.MetadataValue
	if err := database.Conn(ctx, r.db).SelectContext(ctx, &values, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"item_id": itemID,
			"field":   field.String(),
		}).Error("Failed to get field values")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get field values")
	}

	return values, nil
}

// ReplaceFieldValues replaces all of the item's values for field with values,
// renumbering places in order. It requires the system scope.
func (r *Repository) ReplaceFieldValues(ctx context.Context, itemID string, field models.Field, values []models.MetadataValue) error {
	ctx, span := tracing.StartSpan(ctx, "item.Repository.ReplaceFieldValues")
	defer span.End()

	if !appctx.IsSystemScope(ctx) {
		return httperror.NewHTTPError(http.StatusForbidden, "replacing metadata values requires the system scope")
	}

	ctx, tx, err := r.db.GetTx(ctx, nil)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to begin transaction")
	}
	defer tx.Rollback(ctx)

	del := database.NewDeleteBuilder(r.db.Flavor())
	del.DeleteFrom("metadata_values")
	del.Where(
		del.Equal("item_id", itemID),
		del.Equal("schema_name", field.Schema),
		del.Equal("element", field.Element),
		del.Equal("qualifier", field.Qualifier),
	)

	query, args := del.Build()
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"item_id": itemID, "field": field.String()}).Error("Failed to delete field values")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to replace field values")
	}

	if len(values) > 0 {
		ib := database.NewInsertBuilder(r.db.Flavor())
		ib.InsertInto("metadata_values")
		ib.Cols(valueColumns...)
		for place, v := range values {
			if v.ID == "" {
				v.ID = uuid.New().String()
			}
			ib.Values(v.ID, itemID, field.Schema, field.Element, field.Qualifier, v.Language, v.Value, v.Authority, int(v.Confidence), place)
		}

		query, args = ib.Build()
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"item_id": itemID, "field": field.String()}).Error("Failed to insert field values")
			return httperror.NewHTTPError(http.StatusInternalServerError, "failed to replace field values")
		}
	}

	if err := r.touch(ctx, tx, itemID); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to commit field values")
	}

	return nil
}

// ListBySubmitter returns the ids of items submitted by a user.
func (r *Repository) ListBySubmitter(ctx context.Context, userID string) ([]string, error) {
	ctx, span := tracing.StartSpan(ctx, "item.Repository.ListBySubmitter")
	defer span.End()

	sb := database.NewSelectBuilder(r.db.Flavor())
	sb.Select("id")
	sb.From("items")
	sb.Where(sb.Equal("submitter_id", userID))
	sb.OrderBy("id")

	query, args := sb.Build()
	var ids []string
	if err := database.Conn(ctx, r.db).SelectContext(ctx, &ids, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"user_id": userID}).Error("Failed to list items by submitter")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list items")
	}

	return ids, nil
}

func (r *Repository) touch(ctx context.Context, tx database.Tx, itemID string) error {
	ub := database.NewUpdateBuilder(r.db.Flavor())
	ub.Update("items")
	ub.Set(ub.Assign("updated_at", time.Now().UTC()))
	ub.Where(ub.Equal("id", itemID))

	query, args := ub.Build()
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"item_id": itemID}).Error("Failed to touch item")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to update item")
	}
	return nil
}

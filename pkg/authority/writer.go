// Package authority applies scoring decisions to bibliographic records and runs bulk linking.
package authority

import (
	"context"

	"github.com/Gobusters/ectologger"

	appctx "github.com/Ramsey-B/heather/pkg/context"
	"github.com/Ramsey-B/heather/pkg/database"
	"github.com/Ramsey-B/heather/pkg/metrics"
	"github.com/Ramsey-B/heather/pkg/models"
	"github.com/Ramsey-B/heather/pkg/scoring"
	"github.com/Ramsey-B/heather/pkg/tracing"
)

// RecordStore replaces a record's values for one field.
type RecordStore interface {
	ReplaceFieldValues(ctx context.Context, itemID string, field models.Field, values []models.MetadataValue) error
}

type WriteStatus string

const (
	WriteStatusWritten   WriteStatus = "written"
	WriteStatusUnchanged WriteStatus = "unchanged"
	WriteStatusFailed    WriteStatus = "failed"
)

type WriteResult struct {
	ItemID string
	Status WriteStatus
	Bound  int
	Err    error
}

// Writer persists rewrites one record per transaction.
type Writer struct {
	db     database.DB
	store  RecordStore
	logger ectologger.Logger
}

func NewWriter(db database.DB, store RecordStore, logger ectologger.Logger) *Writer {
	return &Writer{
		db:     db,
		store:  store,
		logger: logger,
	}
}

// Write replaces the changed fields of one record under the system scope and
// commits. Unchanged records are not touched. The record is released from the
// batch cache whatever the outcome.
func (w *Writer) Write(ctx context.Context, batch *scoring.Batch, rewrite scoring.Rewrite) WriteResult {
	ctx, span := tracing.StartSpan(ctx, "authority.Writer.Write")
	defer span.End()

	if batch != nil {
		defer batch.Release(rewrite.ItemID)
	}

	if !rewrite.Changed() {
		metrics.RecordRecordWrite(string(WriteStatusUnchanged))
		return WriteResult{ItemID: rewrite.ItemID, Status: WriteStatusUnchanged}
	}

	if err := w.write(appctx.WithSystemScope(ctx), rewrite); err != nil {
		metrics.RecordRecordWrite(string(WriteStatusFailed))
		w.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"item_id": rewrite.ItemID}).Error("Failed to write record authorities")
		return WriteResult{ItemID: rewrite.ItemID, Status: WriteStatusFailed, Err: err}
	}

	metrics.RecordRecordWrite(string(WriteStatusWritten))
	w.logger.WithContext(ctx).WithFields(map[string]any{
		"item_id": rewrite.ItemID,
		"bound":   rewrite.Bound(),
	}).Debug("Wrote record authorities")

	return WriteResult{ItemID: rewrite.ItemID, Status: WriteStatusWritten, Bound: rewrite.Bound()}
}

func (w *Writer) write(ctx context.Context, rewrite scoring.Rewrite) error {
	ctx, tx, err := w.db.GetTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for _, field := range rewrite.Fields {
		if !field.Changed {
			continue
		}
		if err := w.store.ReplaceFieldValues(ctx, rewrite.ItemID, field.Field, field.Values); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

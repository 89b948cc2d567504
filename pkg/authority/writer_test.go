package authority

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/heather/internal/testutil"
	"github.com/Ramsey-B/heather/pkg/models"
	"github.com/Ramsey-B/heather/pkg/scoring"
)

type recordingStore struct {
	calls int
}

func (s *recordingStore) ReplaceFieldValues(ctx context.Context, itemID string, field models.Field, values []models.MetadataValue) error {
	s.calls++
	return nil
}

func TestWriterSkipsUnchangedRecords(t *testing.T) {
	d := testutil.NewDB(t)
	store := &recordingStore{}
	writer := NewWriter(d, store, testutil.Logger())
	batch := scoring.NewBatch(nil, testutil.Logger())

	_, err := batch.Item(context.Background(), "10", func(ctx context.Context, id string) (*models.Item, error) {
		return &models.Item{ID: id}, nil
	})
	require.NoError(t, err)

	result := writer.Write(context.Background(), batch, scoring.Rewrite{
		ItemID: "10",
		Fields: []scoring.FieldRewrite{{Field: author, Values: []models.MetadataValue{testutil.Author("Doe, Jane", 0)}}},
	})

	assert.Equal(t, WriteStatusUnchanged, result.Status)
	assert.Zero(t, store.calls)
	assert.Zero(t, batch.CachedItems())
}

func TestWriterRequiresNoCallerScope(t *testing.T) {
	f := newFixture(t)
	testutil.SeedItem(t, f.db, models.Item{ID: "10", Metadata: []models.MetadataValue{testutil.Author("Smith, John", 0)}})
	writer := NewWriter(f.db, f.items, testutil.Logger())

	bound := testutil.Author("Smith, John", 0)
	bound.Authority = testutil.Ptr("rp00042")
	bound.Confidence = models.ConfidenceUncertain

	// a plain user context is elevated to the system scope for the write
	result := writer.Write(context.Background(), nil, scoring.Rewrite{
		ItemID: "10",
		Fields: []scoring.FieldRewrite{
			{Field: author, Values: []models.MetadataValue{bound}, Changed: true, Bound: 1},
			{Field: models.Field{Schema: "dc", Element: "contributor", Qualifier: "editor"}},
		},
	})

	require.NoError(t, result.Err)
	assert.Equal(t, WriteStatusWritten, result.Status)
	assert.Equal(t, 1, result.Bound)
	assert.Equal(t, "rp00042", *f.authorValue(t, "10", 0).Authority)
}

package graph

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/heather/pkg/models"
)

type call struct {
	cypher string
	params map[string]any
}

type fakeExecutor struct {
	calls []call
	rows  []map[string]any
	err   error
}

func (e *fakeExecutor) Exec(ctx context.Context, cypher string, params map[string]any) error {
	e.calls = append(e.calls, call{cypher, params})
	return e.err
}

func (e *fakeExecutor) Query(ctx context.Context, cypher string, params map[string]any) ([]map[string]any, error) {
	e.calls = append(e.calls, call{cypher, params})
	return e.rows, e.err
}

func newProjection(exec *fakeExecutor) *AuthorshipProjection {
	return NewAuthorshipProjection(exec, ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {}))
}

func TestAuthorshipProjection(t *testing.T) {
	ctx := context.Background()
	uncertain := models.ConfidenceUncertain

	t.Run("accepted merges edge", func(t *testing.T) {
		exec := &fakeExecutor{}
		err := newProjection(exec).OnReviewEvent(ctx, models.ReviewEvent{
			Type:         models.ReviewEventAccepted,
			AuthorityKey: "rp00042",
			ItemIDs:      []string{"10"},
			Confidence:   &uncertain,
			OccurredAt:   time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
		})
		require.NoError(t, err)
		require.Len(t, exec.calls, 1)
		assert.Equal(t, acceptCypher, exec.calls[0].cypher)
		assert.Equal(t, "uncertain", exec.calls[0].params["confidence"])
		assert.Equal(t, "2024-01-02T03:04:05Z", exec.calls[0].params["occurred_at"])
	})

	t.Run("rejected and unlinked detach", func(t *testing.T) {
		exec := &fakeExecutor{}
		p := newProjection(exec)
		require.NoError(t, p.OnReviewEvent(ctx, models.ReviewEvent{Type: models.ReviewEventRejected, AuthorityKey: "rp1", ItemIDs: []string{"1", "2"}}))
		require.NoError(t, p.OnReviewEvent(ctx, models.ReviewEvent{Type: models.ReviewEventUnlinked, AuthorityKey: "rp1", ItemIDs: []string{"3"}}))
		require.Len(t, exec.calls, 2)
		assert.Equal(t, detachCypher, exec.calls[0].cypher)
		assert.Equal(t, []string{"1", "2"}, exec.calls[0].params["item_ids"])
	})

	t.Run("generated and empty events are ignored", func(t *testing.T) {
		exec := &fakeExecutor{}
		p := newProjection(exec)
		require.NoError(t, p.OnReviewEvent(ctx, models.ReviewEvent{Type: models.ReviewEventGenerated, AuthorityKey: "rp1", ItemIDs: []string{"1"}}))
		require.NoError(t, p.OnReviewEvent(ctx, models.ReviewEvent{Type: models.ReviewEventAccepted, AuthorityKey: "rp1"}))
		assert.Empty(t, exec.calls)
	})

	t.Run("errors are returned", func(t *testing.T) {
		exec := &fakeExecutor{err: errors.New("bolt down")}
		err := newProjection(exec).OnReviewEvent(ctx, models.ReviewEvent{Type: models.ReviewEventRejected, AuthorityKey: "rp1", ItemIDs: []string{"1"}})
		assert.Error(t, err)
	})
}

func TestAuthoredItems(t *testing.T) {
	ctx := context.Background()

	exec := &fakeExecutor{rows: []map[string]any{{"item_id": "10"}, {"item_id": nil}, {"item_id": "12"}}}
	ids, err := newProjection(exec).AuthoredItems(ctx, "rp00042")
	require.NoError(t, err)
	assert.Equal(t, []string{"10", "12"}, ids)
	require.Len(t, exec.calls, 1)
	assert.Equal(t, authoredCypher, exec.calls[0].cypher)
	assert.Equal(t, "rp00042", exec.calls[0].params["authority_key"])

	_, err = newProjection(&fakeExecutor{err: errors.New("bolt down")}).AuthoredItems(ctx, "rp00042")
	assert.Error(t, err)
}

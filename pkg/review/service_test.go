package review

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectolinq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/heather/internal/repositories/identity"
	"github.com/Ramsey-B/heather/internal/repositories/item"
	"github.com/Ramsey-B/heather/internal/repositories/potentialmatch"
	"github.com/Ramsey-B/heather/internal/repositories/relationpreference"
	"github.com/Ramsey-B/heather/internal/testutil"
	"github.com/Ramsey-B/heather/pkg/database"
	"github.com/Ramsey-B/heather/pkg/models"
	"github.com/Ramsey-B/heather/pkg/search"
	"github.com/Ramsey-B/heather/pkg/search/searchtest"
)

var author = models.Field{Schema: "dc", Element: "contributor", Qualifier: "author"}

type fixture struct {
	db          database.DB
	index       *searchtest.Index
	items       *item.Repository
	matches     *potentialmatch.Repository
	preferences *relationpreference.Repository
	service     *Service
}

func newFixture(t *testing.T, observers ...Observer) *fixture {
	d := testutil.NewDB(t)
	testutil.SeedIdentity(t, d, models.Identity{
		ID:           "id-42",
		AuthorityKey: "rp00042",
		FullName:     "Smith, John",
		Variants:     []models.NameForm{{Text: "J. Smith", Visible: true}},
	})
	for _, id := range []string{"10", "11", "12"} {
		testutil.SeedItem(t, d, models.Item{ID: id, Metadata: []models.MetadataValue{
			testutil.Author("Smith, John", 0),
			testutil.Author("Doe, Jane", 1),
		}})
	}

	logger := testutil.Logger()
	f := &fixture{
		db:          d,
		index:       searchtest.NewIndex(),
		items:       item.NewRepository(d, logger),
		matches:     potentialmatch.NewRepository(d, logger),
		preferences: relationpreference.NewRepository(d, logger),
	}
	f.service = NewService(Deps{
		DB:          d,
		Identities:  identity.NewRepository(d, logger),
		Items:       f.items,
		Matches:     f.matches,
		Preferences: f.preferences,
		Retriever:   search.NewRetriever(f.index, search.RetrieverConfig{IndexName: "items", AuthorityField: "author_authority"}, logger),
		Observers:   observers,
		Logger:      logger,
	}, Config{RelationName: "publications", Fields: []models.Field{author}})
	return f
}

func itemIDs(matches []models.PotentialMatch) []string {
	return ectolinq.Map(matches, func(m models.PotentialMatch) string { return m.ItemID })
}

func (f *fixture) rows(t *testing.T) []models.PotentialMatch {
	rows, err := f.service.GetPotentialMatches(context.Background(), "rp00042")
	require.NoError(t, err)
	return rows
}

func (f *fixture) status(t *testing.T, itemID string) models.PreferenceStatus {
	preference, err := f.preferences.Get(context.Background(), "id-42", "publications", itemID)
	require.NoError(t, err)
	return preference.Status
}

func TestGeneratePotentialMatchesExcludesRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.index.Set("Smith, John", "10", "11").Set("J. Smith", "11", "12")
	require.NoError(t, f.preferences.SetStatus(ctx, "id-42", "publications", []string{"11"}, models.PreferenceRejected))

	generated, err := f.service.GeneratePotentialMatches(ctx, "rp00042")
	require.NoError(t, err)
	assert.Equal(t, []string{"10", "12"}, itemIDs(generated))
	assert.Equal(t, []string{"10", "12"}, itemIDs(f.rows(t)))

	for _, q := range f.index.Queries() {
		assert.Equal(t, search.MatchPhrase, q.Match)
		assert.Contains(t, q.Filters, search.Filter{Field: "author_authority", Value: "rp00042", Negate: true})
	}
}

func TestGeneratePotentialMatchesIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.index.Set("Smith, John", "12", "10").Set("J. Smith", "10")

	_, err := f.service.GeneratePotentialMatches(ctx, "rp00042")
	require.NoError(t, err)
	first := f.rows(t)

	_, err = f.service.GeneratePotentialMatches(ctx, "rp00042")
	require.NoError(t, err)
	second := f.rows(t)

	require.Len(t, second, len(first))
	for i := range first {
		assert.Equal(t, first[i].ItemID, second[i].ItemID)
		assert.Equal(t, first[i].Pending, second[i].Pending)
		assert.True(t, first[i].CreatedAt.Equal(second[i].CreatedAt))
	}
}

func TestGeneratePotentialMatchesReplacesAndKeepsPending(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.index.Set("Smith, John", "10", "11")
	_, err := f.service.GeneratePotentialMatches(ctx, "rp00042")
	require.NoError(t, err)
	require.NoError(t, f.service.Accept(ctx, "10", "rp00042", models.ConfidenceUncertain))

	f.index.Set("Smith, John", "10", "12")
	generated, err := f.service.GeneratePotentialMatches(ctx, "rp00042")
	require.NoError(t, err)

	assert.Equal(t, []string{"10", "12"}, itemIDs(generated))
	assert.True(t, generated[0].Pending)
	assert.False(t, generated[1].Pending)
}

func TestGeneratePotentialMatchesSurvivesIndexFailure(t *testing.T) {
	f := newFixture(t)
	f.index.Fail("Smith, John", errors.New("index down")).Set("J. Smith", "12")

	generated, err := f.service.GeneratePotentialMatches(context.Background(), "rp00042")
	require.NoError(t, err)
	assert.Equal(t, []string{"12"}, itemIDs(generated))
}

func TestAccept(t *testing.T) {
	tests := []struct {
		name       string
		confidence models.Confidence
		wantRows   []string
	}{
		{name: "full confidence removes the row", confidence: models.ConfidenceAccepted, wantRows: []string{"12"}},
		{name: "partial confidence leaves a pending row", confidence: models.ConfidenceUncertain, wantRows: []string{"10", "12"}},
		{name: "unset confidence leaves a pending row", confidence: models.ConfidenceUnset, wantRows: []string{"10", "12"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()
			f.index.Set("Smith, John", "10", "12")
			_, err := f.service.GeneratePotentialMatches(ctx, "rp00042")
			require.NoError(t, err)

			require.NoError(t, f.service.Accept(ctx, "10", "rp00042", tt.confidence))

			rows := f.rows(t)
			assert.Equal(t, tt.wantRows, itemIDs(rows))
			if tt.confidence != models.ConfidenceAccepted {
				assert.True(t, rows[0].Pending)
			}
			assert.Equal(t, models.PreferenceSelected, f.status(t, "10"))

			values, err := f.items.GetFieldValues(ctx, "10", author)
			require.NoError(t, err)
			assert.Nil(t, values[1].Authority)
			if tt.confidence == models.ConfidenceUnset {
				assert.Nil(t, values[0].Authority)
				assert.Equal(t, models.ConfidenceUnset, values[0].Confidence)
				return
			}
			require.NotNil(t, values[0].Authority)
			assert.Equal(t, "rp00042", *values[0].Authority)
			assert.Equal(t, tt.confidence, values[0].Confidence)
		})
	}
}

func TestAcceptValidation(t *testing.T) {
	f := newFixture(t)

	err := f.service.Accept(context.Background(), "10", "rp00042", models.Confidence(42))
	assert.Equal(t, http.StatusBadRequest, httperror.GetStatusCode(err))

	err = f.service.Accept(context.Background(), "10", "rp99999", models.ConfidenceAccepted)
	assert.Equal(t, http.StatusNotFound, httperror.GetStatusCode(err))
}

func TestAcceptRollsBackBothLedgers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.index.Set("Smith, John", "10")
	_, err := f.service.GeneratePotentialMatches(ctx, "rp00042")
	require.NoError(t, err)

	// the item lookup fails after the ledger writes, inside the same transaction
	err = f.service.Accept(ctx, "99", "rp00042", models.ConfidenceUncertain)
	require.Error(t, err)

	assert.Equal(t, []string{"10"}, itemIDs(f.rows(t)))
	_, err = f.preferences.Get(ctx, "id-42", "publications", "99")
	assert.Equal(t, http.StatusNotFound, httperror.GetStatusCode(err))
}

func TestRejectIsNeverReproposed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.index.Set("Smith, John", "10", "11").Set("J. Smith", "12")
	_, err := f.service.GeneratePotentialMatches(ctx, "rp00042")
	require.NoError(t, err)

	require.NoError(t, f.service.Reject(ctx, []string{"11", "12"}, "rp00042"))
	assert.Equal(t, []string{"10"}, itemIDs(f.rows(t)))
	assert.Equal(t, models.PreferenceRejected, f.status(t, "11"))
	assert.Equal(t, models.PreferenceRejected, f.status(t, "12"))

	generated, err := f.service.GeneratePotentialMatches(ctx, "rp00042")
	require.NoError(t, err)
	assert.Equal(t, []string{"10"}, itemIDs(generated))

	err = f.service.Reject(ctx, nil, "rp00042")
	assert.Equal(t, http.StatusBadRequest, httperror.GetStatusCode(err))
}

func TestUnlink(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.index.Set("Smith, John", "10")
	require.NoError(t, f.service.Accept(ctx, "10", "rp00042", models.ConfidenceAccepted))

	require.NoError(t, f.service.Unlink(ctx, "10", "rp00042"))

	values, err := f.items.GetFieldValues(ctx, "10", author)
	require.NoError(t, err)
	assert.Nil(t, values[0].Authority)
	assert.Equal(t, models.ConfidenceUnset, values[0].Confidence)
	assert.Equal(t, models.PreferenceUnlinked, f.status(t, "10"))

	generated, err := f.service.GeneratePotentialMatches(ctx, "rp00042")
	require.NoError(t, err)
	assert.Empty(t, generated)
}

func TestUnlinkRepeatsAndUnknownItems(t *testing.T) {
	recording := &recordingObserver{}
	f := newFixture(t, recording)
	ctx := context.Background()
	require.NoError(t, f.service.Accept(ctx, "10", "rp00042", models.ConfidenceUncertain))
	require.NoError(t, f.service.Reject(ctx, []string{"12"}, "rp00042"))

	require.NoError(t, f.service.Unlink(ctx, "10", "rp00042"))
	require.NoError(t, f.service.Unlink(ctx, "10", "rp00042"))
	assert.Empty(t, f.rows(t))

	// a rejected item has no bound values but its decision still moves to unlinked
	require.NoError(t, f.service.Unlink(ctx, "12", "rp00042"))
	assert.Equal(t, models.PreferenceUnlinked, f.status(t, "12"))

	err := f.service.Unlink(ctx, "11", "rp00042")
	assert.Equal(t, http.StatusNotFound, httperror.GetStatusCode(err))
	err = f.service.Unlink(ctx, "99", "rp00042")
	assert.Equal(t, http.StatusNotFound, httperror.GetStatusCode(err))

	unlinked := ectolinq.Filter(recording.events, func(e models.ReviewEvent) bool { return e.Type == models.ReviewEventUnlinked })
	require.Len(t, unlinked, 2)
	assert.Equal(t, []string{"10"}, unlinked[0].ItemIDs)
	assert.Equal(t, []string{"12"}, unlinked[1].ItemIDs)
}

func TestVariants(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.preferences.SetStatus(context.Background(), "id-42", "publications", []string{"11"}, models.PreferenceRejected))

	got, err := f.service.Variants(context.Background(), "rp00042")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Smith, John", got[0].Text)
	assert.True(t, got[1].Excludes("11"))
}

type recordingObserver struct {
	events []models.ReviewEvent
	err    error
}

func (o *recordingObserver) OnReviewEvent(ctx context.Context, event models.ReviewEvent) error {
	o.events = append(o.events, event)
	return o.err
}

func TestObserversSeeCommittedChanges(t *testing.T) {
	failing := &recordingObserver{err: errors.New("broker down")}
	recording := &recordingObserver{}
	f := newFixture(t, failing, recording)
	ctx := context.Background()
	f.index.Set("Smith, John", "10", "11")

	_, err := f.service.GeneratePotentialMatches(ctx, "rp00042")
	require.NoError(t, err)
	require.NoError(t, f.service.Accept(ctx, "10", "rp00042", models.ConfidenceAccepted))
	require.NoError(t, f.service.Reject(ctx, []string{"11"}, "rp00042"))

	require.Len(t, recording.events, 3)
	assert.Equal(t, models.ReviewEventGenerated, recording.events[0].Type)
	assert.Equal(t, []string{"10", "11"}, recording.events[0].ItemIDs)
	assert.Equal(t, models.ReviewEventAccepted, recording.events[1].Type)
	require.NotNil(t, recording.events[1].Confidence)
	assert.Equal(t, models.ConfidenceAccepted, *recording.events[1].Confidence)
	assert.Equal(t, models.ReviewEventRejected, recording.events[2].Type)
	assert.Equal(t, "id-42", recording.events[2].IdentityID)
	assert.Len(t, failing.events, 3)
}

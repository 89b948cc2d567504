package authority

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/heather/internal/repositories/identity"
	"github.com/Ramsey-B/heather/internal/repositories/item"
	"github.com/Ramsey-B/heather/internal/repositories/relationpreference"
	"github.com/Ramsey-B/heather/internal/testutil"
	"github.com/Ramsey-B/heather/pkg/database"
	"github.com/Ramsey-B/heather/pkg/models"
	"github.com/Ramsey-B/heather/pkg/redis"
	"github.com/Ramsey-B/heather/pkg/scoring"
	"github.com/Ramsey-B/heather/pkg/search"
	"github.com/Ramsey-B/heather/pkg/search/searchtest"
)

var author = models.Field{Schema: "dc", Element: "contributor", Qualifier: "author"}

type fixture struct {
	db          database.DB
	items       *item.Repository
	preferences *relationpreference.Repository
	itemIndex   *searchtest.Index
	nameIndex   *searchtest.Index
	store       RecordStore
	locker      IdentityLocker
}

func newFixture(t *testing.T) *fixture {
	d := testutil.NewDB(t)
	testutil.SeedUser(t, d, models.User{ID: "u-1", FirstName: "John", LastName: "Smith"})
	testutil.SeedIdentity(t, d, models.Identity{
		ID:           "id-42",
		AuthorityKey: "rp00042",
		OwnerUserID:  testutil.Ptr("u-1"),
		FullName:     "Smith, John",
		Variants:     []models.NameForm{{Text: "J. Smith", Visible: true}},
	})

	items := item.NewRepository(d, testutil.Logger())
	return &fixture{
		db:          d,
		items:       items,
		preferences: relationpreference.NewRepository(d, testutil.Logger()),
		itemIndex:   searchtest.NewIndex(),
		nameIndex:   searchtest.NewIndex(),
		store:       items,
	}
}

func (f *fixture) runner(t *testing.T) *Runner {
	logger := testutil.Logger()
	runner, err := NewRunner(RunnerDeps{
		Identities:  identity.NewRepository(f.db, logger),
		Items:       f.items,
		Preferences: f.preferences,
		Retriever: search.NewRetriever(f.itemIndex, search.RetrieverConfig{
			IndexName:      "items",
			AuthorityField: "author_authority",
		}, logger),
		Scorer:     scoring.NewScorer([]models.Field{author}, scoring.PolicyIntended, logger),
		NameScorer: scoring.NewIndexNameScorer(f.nameIndex, "identities"),
		Writer:     NewWriter(f.db, f.store, logger),
		Locker:     f.locker,
		Logger:     logger,
	}, RunnerConfig{RelationName: "publications"})
	require.NoError(t, err)
	return runner
}

func (f *fixture) authorValue(t *testing.T, itemID string, place int) models.MetadataValue {
	values, err := f.items.GetFieldValues(context.Background(), itemID, author)
	require.NoError(t, err)
	require.Greater(t, len(values), place)
	return values[place]
}

func TestRunBindsSharedNameAsAmbiguous(t *testing.T) {
	f := newFixture(t)
	testutil.SeedItem(t, f.db, models.Item{ID: "10", Metadata: []models.MetadataValue{testutil.Author("Smith, John", 0)}})
	testutil.SeedItem(t, f.db, models.Item{ID: "12", Metadata: []models.MetadataValue{
		testutil.Author("Doe, Jane", 0),
		testutil.Author("Smith, John", 1),
	}})
	f.itemIndex.Set("Smith, John", "10", "12")
	f.nameIndex.SetTotal("Smith, John", 2, "id-42", "id-77")

	summary, err := f.runner(t).Run(context.Background(), []string{"rp00042"})
	require.NoError(t, err)

	for _, tc := range []struct {
		itemID string
		place  int
	}{{"10", 0}, {"12", 1}} {
		v := f.authorValue(t, tc.itemID, tc.place)
		require.NotNil(t, v.Authority, tc.itemID)
		assert.Equal(t, "rp00042", *v.Authority)
		assert.Equal(t, models.ConfidenceAmbiguous, v.Confidence)
	}
	assert.Nil(t, f.authorValue(t, "12", 0).Authority)

	assert.Equal(t, 1, f.nameIndex.Count("Smith, John"))
	assert.Equal(t, 1, summary.MatchCountLookups)
	assert.Equal(t, 1, summary.Identities)
	assert.Equal(t, 2, summary.Variants)
	assert.Equal(t, 2, summary.RecordsWritten)
	assert.Equal(t, 2, summary.ValuesBound)
	assert.False(t, summary.Failed())

	queries := f.itemIndex.Queries()
	require.NotEmpty(t, queries)
	assert.Equal(t, search.MatchPhrase, queries[0].Match)
	assert.Contains(t, queries[0].Filters, search.Filter{Field: "author_authority", Value: "rp00042", Negate: true})
}

func TestRunLeavesLinkedAndRejectedRecordsAlone(t *testing.T) {
	f := newFixture(t)
	testutil.SeedItem(t, f.db, models.Item{ID: "11", Metadata: []models.MetadataValue{testutil.Author("Smith, John", 0)}})
	linked := testutil.Author("Smith, John", 0)
	linked.Authority = testutil.Ptr("rp00077")
	linked.Confidence = models.ConfidenceAccepted
	testutil.SeedItem(t, f.db, models.Item{ID: "13", Metadata: []models.MetadataValue{linked}})
	require.NoError(t, f.preferences.SetStatus(context.Background(), "id-42", "publications", []string{"11"}, models.PreferenceRejected))

	f.itemIndex.Set("Smith, John", "11", "13")
	f.nameIndex.SetTotal("Smith, John", 1, "id-42")

	summary, err := f.runner(t).Run(context.Background(), []string{"rp00042"})
	require.NoError(t, err)

	assert.Nil(t, f.authorValue(t, "11", 0).Authority)
	kept := f.authorValue(t, "13", 0)
	assert.Equal(t, "rp00077", *kept.Authority)
	assert.Equal(t, models.ConfidenceAccepted, kept.Confidence)

	assert.Equal(t, 0, summary.RecordsWritten)
	assert.Equal(t, 1, summary.RecordsUnchanged)
	assert.Equal(t, 0, summary.MatchCountLookups)
}

type failingStore struct {
	RecordStore
	failItem string
}

func (s failingStore) ReplaceFieldValues(ctx context.Context, itemID string, field models.Field, values []models.MetadataValue) error {
	if itemID == s.failItem {
		return errors.New("disk full")
	}
	return s.RecordStore.ReplaceFieldValues(ctx, itemID, field, values)
}

func TestRunIsolatesRecordFailures(t *testing.T) {
	f := newFixture(t)
	testutil.SeedItem(t, f.db, models.Item{ID: "10", Metadata: []models.MetadataValue{testutil.Author("Smith, John", 0)}})
	testutil.SeedItem(t, f.db, models.Item{ID: "12", Metadata: []models.MetadataValue{testutil.Author("Smith, John", 0)}})
	f.itemIndex.Set("Smith, John", "10", "12")
	f.nameIndex.SetTotal("Smith, John", 1, "id-42")
	f.store = failingStore{RecordStore: f.items, failItem: "10"}

	summary, err := f.runner(t).Run(context.Background(), []string{"rp00042", "rp99999"})
	require.NoError(t, err)

	assert.Nil(t, f.authorValue(t, "10", 0).Authority)
	written := f.authorValue(t, "12", 0)
	require.NotNil(t, written.Authority)
	assert.Equal(t, models.ConfidenceUncertain, written.Confidence)

	assert.True(t, summary.Failed())
	assert.Equal(t, 1, summary.RecordsFailed)
	assert.Equal(t, 1, summary.RecordsWritten)
	assert.Equal(t, 2, summary.Identities)
	assert.Equal(t, 1, summary.IdentitiesFailed)
	require.Len(t, summary.Failures, 2)
	assert.Equal(t, Failure{AuthorityKey: "rp00042", ItemID: "10", Error: "disk full"}, summary.Failures[0])
	assert.Equal(t, "rp99999", summary.Failures[1].AuthorityKey)
}

func TestRunSurvivesIndexOutage(t *testing.T) {
	f := newFixture(t)
	testutil.SeedItem(t, f.db, models.Item{ID: "12", Metadata: []models.MetadataValue{testutil.Author("J. Smith", 0)}})
	f.itemIndex.Fail("Smith, John", errors.New("timeout")).Set("J. Smith", "12")
	f.nameIndex.SetTotal("J. Smith", 1, "id-42")

	summary, err := f.runner(t).Run(context.Background(), nil)
	require.NoError(t, err)

	assert.Equal(t, "rp00042", *f.authorValue(t, "12", 0).Authority)
	assert.Equal(t, 1, summary.RecordsWritten)
	assert.False(t, summary.Failed())
}

func TestClaim(t *testing.T) {
	f := newFixture(t)
	testutil.SeedItem(t, f.db, models.Item{ID: "20", SubmitterID: testutil.Ptr("u-1"), Metadata: []models.MetadataValue{
		testutil.Author("SMITH, J.", 0),
		testutil.Author("Doe, Jane", 1),
	}})
	testutil.SeedItem(t, f.db, models.Item{ID: "21", SubmitterID: testutil.Ptr("u-1"), Metadata: []models.MetadataValue{testutil.Author("Smith, John", 0)}})
	testutil.SeedItem(t, f.db, models.Item{ID: "22", Metadata: []models.MetadataValue{testutil.Author("Smith, John", 0)}})
	require.NoError(t, f.preferences.SetStatus(context.Background(), "id-42", "publications", []string{"21"}, models.PreferenceRejected))

	summary, err := f.runner(t).Claim(context.Background(), "rp00042")
	require.NoError(t, err)

	claimed := f.authorValue(t, "20", 0)
	require.NotNil(t, claimed.Authority)
	assert.Equal(t, "rp00042", *claimed.Authority)
	assert.Equal(t, models.ConfidenceAccepted, claimed.Confidence)
	assert.Nil(t, f.authorValue(t, "20", 1).Authority)
	assert.Nil(t, f.authorValue(t, "21", 0).Authority)
	assert.Nil(t, f.authorValue(t, "22", 0).Authority)

	assert.Equal(t, 1, summary.Candidates)
	assert.Equal(t, 1, summary.RecordsWritten)
}

func TestClaimWithoutOwner(t *testing.T) {
	f := newFixture(t)
	testutil.SeedIdentity(t, f.db, models.Identity{ID: "id-50", AuthorityKey: "ou00050", Kind: models.IdentityKindOrgUnit, FullName: "Names Dept"})

	_, err := f.runner(t).Claim(context.Background(), "ou00050")
	assert.Error(t, err)
}

type busyLocker struct{}

func (busyLocker) WithLock(ctx context.Context, key string, ttl time.Duration, fn func() error) error {
	return redis.ErrLockNotAcquired
}

func TestRunSkipsLockedIdentities(t *testing.T) {
	f := newFixture(t)
	f.locker = busyLocker{}

	summary, err := f.runner(t).Run(context.Background(), []string{"rp00042"})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.IdentitiesSkipped)
	assert.Equal(t, 0, summary.Identities)
	assert.Empty(t, f.itemIndex.Queries())
}

func TestNewRunnerConfigurationMissing(t *testing.T) {
	logger := testutil.Logger()
	retriever := search.NewRetriever(searchtest.NewIndex(), search.RetrieverConfig{IndexName: "items"}, logger)
	scorer := scoring.NewScorer([]models.Field{author}, scoring.PolicyIntended, logger)
	nameScorer := scoring.NewIndexNameScorer(searchtest.NewIndex(), "identities")

	tests := []struct {
		name   string
		deps   RunnerDeps
		config RunnerConfig
	}{
		{name: "no retriever", deps: RunnerDeps{Scorer: scorer, NameScorer: nameScorer}, config: RunnerConfig{RelationName: "publications"}},
		{name: "no strategy", deps: RunnerDeps{Retriever: retriever, Scorer: scorer}, config: RunnerConfig{RelationName: "publications"}},
		{name: "no fields", deps: RunnerDeps{Retriever: retriever, Scorer: scoring.NewScorer(nil, "", logger), NameScorer: nameScorer}, config: RunnerConfig{RelationName: "publications"}},
		{name: "no relation", deps: RunnerDeps{Retriever: retriever, Scorer: scorer, NameScorer: nameScorer}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.deps.Logger = logger
			_, err := NewRunner(tt.deps, tt.config)
			assert.ErrorIs(t, err, ErrConfigurationMissing)
		})
	}
}

package item

import (
	"context"
	"net/http"
	"testing"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/heather/internal/testutil"
	appctx "github.com/Ramsey-B/heather/pkg/context"
	"github.com/Ramsey-B/heather/pkg/models"
)

var author = models.Field{Schema: "dc", Element: "contributor", Qualifier: "author"}

func seed(t *testing.T) *Repository {
	d := testutil.NewDB(t)
	testutil.SeedUser(t, d, models.User{ID: "u-1", LastName: "Smith"})
	testutil.SeedItem(t, d, models.Item{ID: "10", SubmitterID: testutil.Ptr("u-1"), Metadata: []models.MetadataValue{
		testutil.Author("Smith, John", 0),
		testutil.Author("Doe, Jane", 1),
		{Schema: "dc", Element: "title", Value: "On Names", Confidence: models.ConfidenceUnset},
	}})
	testutil.SeedItem(t, d, models.Item{ID: "11"})
	return NewRepository(d, testutil.Logger())
}

func TestGetAndFieldValues(t *testing.T) {
	repo := seed(t)
	ctx := context.Background()

	item, err := repo.Get(ctx, "10")
	require.NoError(t, err)
	assert.Len(t, item.Metadata, 3)
	require.NotNil(t, item.SubmitterID)

	values, err := repo.GetFieldValues(ctx, "10", author)
	require.NoError(t, err)
	require.Len(t, values, 2)
	assert.Equal(t, "Smith, John", values[0].Value)
	assert.Equal(t, models.ConfidenceUnset, values[0].Confidence)
	assert.Nil(t, values[0].Authority)

	_, err = repo.Get(ctx, "99")
	assert.Equal(t, http.StatusNotFound, httperror.GetStatusCode(err))

	items, err := repo.GetMany(ctx, []string{"11", "99", "10"})
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "11", items[0].ID)
	assert.Equal(t, "10", items[1].ID)
}

func TestReplaceFieldValues(t *testing.T) {
	repo := seed(t)
	ctx := appctx.WithSystemScope(context.Background())

	values, err := repo.GetFieldValues(ctx, "10", author)
	require.NoError(t, err)

	values[0].Authority = testutil.Ptr("rp00042")
	values[0].Confidence = models.ConfidenceUncertain
	require.NoError(t, repo.ReplaceFieldValues(ctx, "10", author, values))

	stored, err := repo.GetFieldValues(ctx, "10", author)
	require.NoError(t, err)
	require.Len(t, stored, 2)
	require.NotNil(t, stored[0].Authority)
	assert.Equal(t, "rp00042", *stored[0].Authority)
	assert.Equal(t, models.ConfidenceUncertain, stored[0].Confidence)
	assert.Equal(t, "Doe, Jane", stored[1].Value)
	assert.Equal(t, 1, stored[1].Place)

	item, err := repo.Get(ctx, "10")
	require.NoError(t, err)
	assert.Len(t, item.Values(models.Field{Schema: "dc", Element: "title"}), 1)
}

func TestReplaceFieldValuesRequiresSystemScope(t *testing.T) {
	repo := seed(t)

	err := repo.ReplaceFieldValues(context.Background(), "10", author, nil)
	require.Error(t, err)
	assert.Equal(t, http.StatusForbidden, httperror.GetStatusCode(err))

	values, err := repo.GetFieldValues(context.Background(), "10", author)
	require.NoError(t, err)
	assert.Len(t, values, 2)
}

func TestListBySubmitter(t *testing.T) {
	repo := seed(t)

	ids, err := repo.ListBySubmitter(context.Background(), "u-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"10"}, ids)
}

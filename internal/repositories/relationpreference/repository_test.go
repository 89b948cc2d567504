package relationpreference

import (
	"context"
	"net/http"
	"testing"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/heather/internal/testutil"
	"github.com/Ramsey-B/heather/pkg/models"
)

func TestSetStatusAndFind(t *testing.T) {
	repo := NewRepository(testutil.NewDB(t), testutil.Logger())
	ctx := context.Background()

	require.NoError(t, repo.SetStatus(ctx, "id-42", "publications", []string{"11", "13"}, models.PreferenceRejected))
	require.NoError(t, repo.SetStatus(ctx, "id-42", "publications", []string{"10"}, models.PreferenceSelected))
	require.NoError(t, repo.SetStatus(ctx, "id-42", "publications", []string{"14"}, models.PreferenceUnlinked))
	require.NoError(t, repo.SetStatus(ctx, "id-43", "publications", []string{"12"}, models.PreferenceRejected))

	rejected, err := repo.FindByOwnerRelationStatus(ctx, "id-42", "publications", models.PreferenceRejected)
	require.NoError(t, err)
	assert.Equal(t, []string{"11", "13"}, rejected)

	excluded, err := repo.FindByOwnerRelationStatus(ctx, "id-42", "publications", models.PreferenceRejected, models.PreferenceUnlinked)
	require.NoError(t, err)
	assert.Equal(t, []string{"11", "13", "14"}, excluded)

	// a later decision overwrites the earlier one
	require.NoError(t, repo.SetStatus(ctx, "id-42", "publications", []string{"13"}, models.PreferenceSelected))
	rejected, err = repo.FindByOwnerRelationStatus(ctx, "id-42", "publications", models.PreferenceRejected)
	require.NoError(t, err)
	assert.Equal(t, []string{"11"}, rejected)

	preference, err := repo.Get(ctx, "id-42", "publications", "13")
	require.NoError(t, err)
	assert.Equal(t, models.PreferenceSelected, preference.Status)

	_, err = repo.Get(ctx, "id-42", "projects", "13")
	assert.Equal(t, http.StatusNotFound, httperror.GetStatusCode(err))

	none, err := repo.FindByOwnerRelationStatus(ctx, "id-42", "publications")
	require.NoError(t, err)
	assert.Empty(t, none)
}

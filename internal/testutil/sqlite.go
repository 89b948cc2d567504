// Package testutil opens throwaway SQLite databases carrying the service schema.
package testutil

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/Ramsey-B/heather/db"
	"github.com/Ramsey-B/heather/pkg/database"
	"github.com/Ramsey-B/heather/pkg/models"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

var dbCounter atomic.Int64

func Logger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

// NewDB returns an in-memory database with every migration applied.
func NewDB(t *testing.T) database.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:heather-%d?mode=memory&cache=shared", dbCounter.Add(1))
	sqlxDB, err := sqlx.Open("sqlite", dsn)
	require.NoError(t, err)
	sqlxDB.SetMaxOpenConns(1)

	instance := database.NewDatabaseInstance(sqlxDB, Logger())
	require.NoError(t, database.ApplySchema(context.Background(), instance, db.Migrations()))

	t.Cleanup(func() { _ = instance.Close() })
	return instance
}

// SeedUser inserts a user row.
func SeedUser(t *testing.T, d database.DB, user models.User) {
	t.Helper()

	ib := d.Flavor().NewInsertBuilder()
	ib.InsertInto("users").Cols("id", "first_name", "last_name", "email").
		Values(user.ID, user.FirstName, user.LastName, user.Email)
	query, args := ib.Build()
	_, err := d.ExecContext(context.Background(), query, args...)
	require.NoError(t, err)
}

// SeedIdentity inserts an identity and its aliases.
func SeedIdentity(t *testing.T, d database.DB, identity models.Identity) {
	t.Helper()
	ctx := context.Background()

	if identity.Kind == "" {
		identity.Kind = models.IdentityKindResearcher
	}
	now := time.Now().UTC()

	ib := d.Flavor().NewInsertBuilder()
	ib.InsertInto("identities").
		Cols("id", "authority_key", "owner_user_id", "kind", "full_name", "preferred_name", "preferred_visible", "translated_name", "translated_visible", "created_at", "updated_at").
		Values(identity.ID, identity.AuthorityKey, identity.OwnerUserID, string(identity.Kind), identity.FullName, identity.PreferredName, identity.PreferredVisible, identity.TranslatedName, identity.TranslatedVisible, now, now)
	query, args := ib.Build()
	_, err := d.ExecContext(ctx, query, args...)
	require.NoError(t, err)

	for i, form := range identity.Variants {
		ib := d.Flavor().NewInsertBuilder()
		ib.InsertInto("identity_name_variants").Cols("identity_id", "position", "text", "visible").
			Values(identity.ID, i, form.Text, form.Visible)
		query, args := ib.Build()
		_, err := d.ExecContext(ctx, query, args...)
		require.NoError(t, err)
	}
}

// SeedItem inserts an item and its metadata. Value ids and places are filled in when empty.
func SeedItem(t *testing.T, d database.DB, item models.Item) {
	t.Helper()
	ctx := context.Background()

	ib := d.Flavor().NewInsertBuilder()
	ib.InsertInto("items").Cols("id", "submitter_id").Values(item.ID, item.SubmitterID)
	query, args := ib.Build()
	_, err := d.ExecContext(ctx, query, args...)
	require.NoError(t, err)

	for i, value := range item.Metadata {
		if value.ID == "" {
			value.ID = fmt.Sprintf("%s-%d", item.ID, i)
		}
		if value.Confidence == 0 {
			value.Confidence = models.ConfidenceUnset
		}
		ib := d.Flavor().NewInsertBuilder()
		ib.InsertInto("metadata_values").
			Cols("id", "item_id", "schema_name", "element", "qualifier", "language", "value", "authority", "confidence", "place").
			Values(value.ID, item.ID, value.Schema, value.Element, value.Qualifier, value.Language, value.Value, value.Authority, int(value.Confidence), value.Place)
		query, args := ib.Build()
		_, err := d.ExecContext(ctx, query, args...)
		require.NoError(t, err)
	}
}

// Author builds an unlinked dc.contributor.author value.
func Author(value string, place int) models.MetadataValue {
	return models.MetadataValue{
		Schema:     "dc",
		Element:    "contributor",
		Qualifier:  "author",
		Value:      value,
		Confidence: models.ConfidenceUnset,
		Place:      place,
	}
}

func Ptr[T any](v T) *T {
	return &v
}

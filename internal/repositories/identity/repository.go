package identity

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/heather/pkg/database"
	"github.com/Ramsey-B/heather/pkg/models"
	"github.com/Ramsey-B/heather/pkg/tracing"
)

var identityColumns = []string{"id", "authority_key", "owner_user_id", "kind", "full_name", "preferred_name", "preferred_visible", "translated_name", "translated_visible", "created_at", "updated_at"}

// Repository reads identity records and their owning users. The core never writes them.
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

// GetByAuthorityKey returns the identity with its aliases.
func (r *Repository) GetByAuthorityKey(ctx context.Context, authorityKey string) (*models.Identity, error) {
	ctx, span := tracing.StartSpan(ctx, "identity.Repository.GetByAuthorityKey")
	defer span.End()

	sb := database.NewSelectBuilder(r.db.Flavor())
	sb.Select(identityColumns...)
	sb.From("identities")
	sb.Where(sb.Equal("authority_key", authorityKey))

	query, args := sb.Build()
	var identity models.Identity
	if err := database.Conn(ctx, r.db).GetContext(ctx, &identity, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, httperror.NewHTTPError(http.StatusNotFound, fmt.Sprintf("identity %s not found", authorityKey))
		}
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"authority_key": authorityKey}).Error("Failed to get identity")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get identity")
	}

	variants, err := r.listVariants(ctx, identity.ID)
	if err != nil {
		return nil, err
	}
	identity.Variants = variants

	return &identity, nil
}

// ListByOwnerUser returns the identities owned by a user, without aliases.
func (r *Repository) ListByOwnerUser(ctx context.Context, userID string) ([]models.Identity, error) {
	ctx, span := tracing.StartSpan(ctx, "identity.Repository.ListByOwnerUser")
	defer span.End()

	sb := database.NewSelectBuilder(r.db.Flavor())
	sb.Select(identityColumns...)
	sb.From("identities")
	sb.Where(sb.Equal("owner_user_id", userID))
	sb.OrderBy("authority_key")

	query, args := sb.Build()
	var identities []models.Identity
	if err := database.Conn(ctx, r.db).SelectContext(ctx, &identities, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"user_id": userID}).Error("Failed to list identities by owner")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list identities")
	}

	return identities, nil
}

// ListAuthorityKeys returns every authority key, optionally restricted to one kind.
func (r *Repository) ListAuthorityKeys(ctx context.Context, kind models.IdentityKind) ([]string, error) {
	ctx, span := tracing.StartSpan(ctx, "identity.Repository.ListAuthorityKeys")
	defer span.End()

	sb := database.NewSelectBuilder(r.db.Flavor())
	sb.Select("authority_key")
	sb.From("identities")
	if kind != "" {
		sb.Where(sb.Equal("kind", string(kind)))
	}
	sb.OrderBy("authority_key")

	query, args := sb.Build()
	var keys []string
	if err := database.Conn(ctx, r.db).SelectContext(ctx, &keys, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list authority keys")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list authority keys")
	}

	return keys, nil
}

// CountByName counts identities whose full name, visible preferred or translated
// name, or visible alias equals name, ignoring case.
func (r *Repository) CountByName(ctx context.Context, name string) (int, error) {
	ctx, span := tracing.StartSpan(ctx, "identity.Repository.CountByName")
	defer span.End()

	normalized := strings.ToLower(strings.TrimSpace(name))

	aliases := database.NewSelectBuilder(r.db.Flavor())
	aliases.Select("identity_id")
	aliases.From("identity_name_variants")
	aliases.Where(
		aliases.Equal("LOWER(text)", normalized),
		aliases.Equal("visible", true),
	)

	sb := database.NewSelectBuilder(r.db.Flavor())
	sb.Select("COUNT(*)")
	sb.From("identities")
	sb.Where(sb.Or(
		sb.Equal("LOWER(full_name)", normalized),
		sb.And(sb.Equal("LOWER(preferred_name)", normalized), sb.Equal("preferred_visible", true)),
		sb.And(sb.Equal("LOWER(translated_name)", normalized), sb.Equal("translated_visible", true)),
		sb.In("id", aliases),
	))

	query, args := sb.Build()
	var count int
	if err := database.Conn(ctx, r.db).GetContext(ctx, &count, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"name": name}).Error("Failed to count identities by name")
		return 0, httperror.NewHTTPError(http.StatusInternalServerError, "failed to count identities")
	}

	return count, nil
}

// GetUser returns the user with the given id.
func (r *Repository) GetUser(ctx context.Context, userID string) (*models.User, error) {
	ctx, span := tracing.StartSpan(ctx, "identity.Repository.GetUser")
	defer span.End()

	sb := database.NewSelectBuilder(r.db.Flavor())
	sb.Select("id", "first_name", "last_name", "email")
	sb.From("users")
	sb.Where(sb.Equal("id", userID))

	query, args := sb.Build()
	var user models.User
	if err := database.Conn(ctx, r.db).GetContext(ctx, &user, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, httperror.NewHTTPError(http.StatusNotFound, fmt.Sprintf("user %s not found", userID))
		}
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"user_id": userID}).Error("Failed to get user")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get user")
	}

	return &user, nil
}

func (r *Repository) listVariants(ctx context.Context, identityID string) ([]models.NameForm, error) {
	sb := database.NewSelectBuilder(r.db.Flavor())
	sb.Select("text", "visible")
	sb.From("identity_name_variants")
	sb.Where(sb.Equal("identity_id", identityID))
	sb.OrderBy("position")

	query, args := sb.Build()
	var variants []models.NameForm
	if err := database.Conn(ctx, r.db).SelectContext(ctx, &variants, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"identity_id": identityID}).Error("Failed to list name variants")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list name variants")
	}

	return variants, nil
}

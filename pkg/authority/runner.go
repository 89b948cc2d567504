package authority

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectolinq"
	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/heather/pkg/models"
	"github.com/Ramsey-B/heather/pkg/redis"
	"github.com/Ramsey-B/heather/pkg/scoring"
	"github.com/Ramsey-B/heather/pkg/search"
	"github.com/Ramsey-B/heather/pkg/tracing"
	"github.com/Ramsey-B/heather/pkg/variants"
)

// ErrConfigurationMissing is returned before any work when required settings are absent.
var ErrConfigurationMissing = errors.New("configuration missing")

type IdentityStore interface {
	GetByAuthorityKey(ctx context.Context, authorityKey string) (*models.Identity, error)
	ListAuthorityKeys(ctx context.Context, kind models.IdentityKind) ([]string, error)
	GetUser(ctx context.Context, userID string) (*models.User, error)
}

type ItemStore interface {
	RecordStore
	Get(ctx context.Context, itemID string) (*models.Item, error)
	GetMany(ctx context.Context, itemIDs []string) ([]models.Item, error)
	ListBySubmitter(ctx context.Context, userID string) ([]string, error)
}

type PreferenceStore interface {
	FindByOwnerRelationStatus(ctx context.Context, ownerID, relationName string, statuses ...models.PreferenceStatus) ([]string, error)
}

// IdentityLocker serializes runs for the same identity across processes.
type IdentityLocker interface {
	WithLock(ctx context.Context, key string, ttl time.Duration, fn func() error) error
}

// ExclusionStatuses are the review decisions that keep an item away from an identity.
var ExclusionStatuses = []models.PreferenceStatus{models.PreferenceRejected, models.PreferenceUnlinked}

type RunnerConfig struct {
	RelationName string
	Scope        string
	LockTTL      time.Duration
}

type RunnerDeps struct {
	Identities  IdentityStore
	Items       ItemStore
	Preferences PreferenceStore
	Retriever   *search.Retriever
	Scorer      *scoring.Scorer
	NameScorer  scoring.NameScorer
	Writer      *Writer
	// Locker is optional. Without it concurrent runs for one key are last-writer-wins.
	Locker IdentityLocker
	Logger ectologger.Logger
}

// Runner drives bulk auto-binding and self-claims.
type Runner struct {
	deps   RunnerDeps
	config RunnerConfig
	logger ectologger.Logger
}

func NewRunner(deps RunnerDeps, config RunnerConfig) (*Runner, error) {
	switch {
	case deps.Retriever == nil:
		return nil, fmt.Errorf("%w: search index", ErrConfigurationMissing)
	case deps.NameScorer == nil:
		return nil, fmt.Errorf("%w: name scoring strategy", ErrConfigurationMissing)
	case deps.Scorer == nil || len(deps.Scorer.Fields()) == 0:
		return nil, fmt.Errorf("%w: authority fields", ErrConfigurationMissing)
	case config.RelationName == "":
		return nil, fmt.Errorf("%w: relation name", ErrConfigurationMissing)
	}

	if config.LockTTL == 0 {
		config.LockTTL = 10 * time.Minute
	}

	return &Runner{
		deps:   deps,
		config: config,
		logger: deps.Logger,
	}, nil
}

// Run auto-binds every identity in keys, or every identity when keys is empty.
// One batch, and so one match count memo, spans the whole run. A failing
// identity or record is reported in the summary and the run continues.
func (r *Runner) Run(ctx context.Context, keys []string) (RunSummary, error) {
	ctx, span := tracing.StartSpan(ctx, "authority.Runner.Run")
	defer span.End()

	summary := newSummary(RunKindBind)

	if len(keys) == 0 {
		all, err := r.deps.Identities.ListAuthorityKeys(ctx, "")
		if err != nil {
			return *summary, err
		}
		keys = all
	}

	batch := scoring.NewBatch(r.deps.NameScorer, r.logger)
	for _, key := range keys {
		if err := ctx.Err(); err != nil {
			summary.FinishedAt = time.Now().UTC()
			return *summary, err
		}

		err := r.locked(ctx, key, func() error {
			return r.bindIdentity(ctx, batch, key, summary)
		})
		if r.skipped(ctx, key, err, summary) {
			continue
		}
		summary.addIdentity(key, err)
	}

	summary.MatchCountLookups = batch.Lookups()
	summary.FinishedAt = time.Now().UTC()
	summary.Log(ctx, r.logger)

	return *summary, nil
}

// Claim binds the identity's key to the owner's own submissions wherever a
// value contains the owner's surname.
func (r *Runner) Claim(ctx context.Context, key string) (RunSummary, error) {
	ctx, span := tracing.StartSpan(ctx, "authority.Runner.Claim", tracing.AuthorityKey(key))
	defer span.End()

	summary := newSummary(RunKindClaim)
	err := r.locked(ctx, key, func() error {
		return r.claimIdentity(ctx, key, summary)
	})
	if !r.skipped(ctx, key, err, summary) {
		summary.addIdentity(key, err)
	}

	summary.FinishedAt = time.Now().UTC()
	summary.Log(ctx, r.logger)

	// caller mistakes surface as errors, persistence failures stay in the summary
	if err != nil && httperror.IsHTTPError(err) && httperror.GetStatusCode(err) < http.StatusInternalServerError {
		return *summary, err
	}
	return *summary, nil
}

func (r *Runner) bindIdentity(ctx context.Context, batch *scoring.Batch, key string, summary *RunSummary) error {
	identity, excluded, err := r.load(ctx, key)
	if err != nil {
		return err
	}

	for _, variant := range variants.Expand(identity, excluded) {
		summary.Variants++

		result := r.deps.Retriever.Retrieve(ctx, variant, search.Options{
			Mode:          search.ModeBatch,
			Scope:         r.config.Scope,
			ExcludeLinked: true,
		})
		summary.Candidates += len(result.IDs)

		items := r.loadItems(ctx, batch, variant, result.IDs, summary)
		for _, rewrite := range r.deps.Scorer.ScoreCandidates(ctx, batch, variant, items) {
			summary.addWrite(key, r.deps.Writer.Write(ctx, batch, rewrite))
		}
	}

	return nil
}

func (r *Runner) claimIdentity(ctx context.Context, key string, summary *RunSummary) error {
	identity, excluded, err := r.load(ctx, key)
	if err != nil {
		return err
	}
	if identity.OwnerUserID == nil || *identity.OwnerUserID == "" {
		return httperror.NewHTTPErrorf(http.StatusBadRequest, "identity %s has no owning user", key)
	}

	user, err := r.deps.Identities.GetUser(ctx, *identity.OwnerUserID)
	if err != nil {
		return err
	}

	itemIDs, err := r.deps.Items.ListBySubmitter(ctx, user.ID)
	if err != nil {
		return err
	}

	candidates := ectolinq.Filter(itemIDs, func(id string) bool {
		_, rejected := excluded[id]
		return !rejected
	})
	summary.Candidates += len(candidates)

	// submissions deleted since listing are skipped by GetMany
	items, err := r.deps.Items.GetMany(ctx, candidates)
	if err != nil {
		return err
	}
	for _, item := range items {
		rewrite := r.deps.Scorer.ScoreSelfClaim(identity, user.LastName, item)
		summary.addWrite(key, r.deps.Writer.Write(ctx, nil, rewrite))
	}

	return nil
}

func (r *Runner) load(ctx context.Context, key string) (*models.Identity, map[string]struct{}, error) {
	identity, err := r.deps.Identities.GetByAuthorityKey(ctx, key)
	if err != nil {
		return nil, nil, err
	}

	excludedIDs, err := r.deps.Preferences.FindByOwnerRelationStatus(ctx, identity.ID, r.config.RelationName, ExclusionStatuses...)
	if err != nil {
		return nil, nil, err
	}

	return identity, models.NewExclusionSet(excludedIDs...), nil
}

func (r *Runner) loadItems(ctx context.Context, batch *scoring.Batch, variant models.NameVariant, ids []string, summary *RunSummary) []models.Item {
	items := make([]models.Item, 0, len(ids))
	for _, id := range ids {
		if variant.Excludes(id) {
			continue
		}
		item, err := batch.Item(ctx, id, r.deps.Items.Get)
		if err != nil {
			if httperror.GetStatusCode(err) == http.StatusNotFound {
				r.logger.WithContext(ctx).WithFields(map[string]any{"item_id": id}).Warn("Index returned an item missing from the record store")
				continue
			}
			summary.addWrite(variant.OwnerAuthorityKey, WriteResult{ItemID: id, Status: WriteStatusFailed, Err: err})
			continue
		}
		items = append(items, *item)
	}
	return items
}

func (r *Runner) locked(ctx context.Context, key string, fn func() error) error {
	if r.deps.Locker == nil {
		return fn()
	}
	return r.deps.Locker.WithLock(ctx, "identity:"+key, r.config.LockTTL, fn)
}

// skipped records identities another process is already working on.
func (r *Runner) skipped(ctx context.Context, key string, err error, summary *RunSummary) bool {
	if err == nil || !isLockContention(err) {
		return false
	}
	r.logger.WithContext(ctx).WithFields(map[string]any{"authority_key": key}).Info("Identity is locked by another run, skipping")
	summary.skipIdentity()
	return true
}

func isLockContention(err error) bool {
	return errors.Is(err, redis.ErrLockNotAcquired)
}

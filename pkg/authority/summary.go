package authority

import (
	"context"
	"time"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/heather/pkg/metrics"
)

type RunKind string

const (
	RunKindBind  RunKind = "bind"
	RunKindClaim RunKind = "claim"
)

// Failure is one unit of work that did not complete. ItemID is empty when the
// whole identity failed.
type Failure struct {
	AuthorityKey string `json:"authority_key"`
	ItemID       string `json:"item_id,omitempty"`
	Error        string `json:"error"`
}

// RunSummary reports per-unit counts and failures of one run.
type RunSummary struct {
	Kind              RunKind   `json:"kind"`
	Identities        int       `json:"identities"`
	IdentitiesFailed  int       `json:"identities_failed"`
	IdentitiesSkipped int       `json:"identities_skipped"`
	Variants          int       `json:"variants"`
	Candidates        int       `json:"candidates"`
	RecordsWritten    int       `json:"records_written"`
	RecordsUnchanged  int       `json:"records_unchanged"`
	RecordsFailed     int       `json:"records_failed"`
	ValuesBound       int       `json:"values_bound"`
	MatchCountLookups int       `json:"match_count_lookups"`
	Failures          []Failure `json:"failures,omitempty"`
	StartedAt         time.Time `json:"started_at"`
	FinishedAt        time.Time `json:"finished_at"`
}

func newSummary(kind RunKind) *RunSummary {
	return &RunSummary{Kind: kind, StartedAt: time.Now().UTC()}
}

func (s *RunSummary) addWrite(authorityKey string, result WriteResult) {
	switch result.Status {
	case WriteStatusWritten:
		s.RecordsWritten++
		s.ValuesBound += result.Bound
	case WriteStatusUnchanged:
		s.RecordsUnchanged++
	case WriteStatusFailed:
		s.RecordsFailed++
		s.Failures = append(s.Failures, Failure{AuthorityKey: authorityKey, ItemID: result.ItemID, Error: result.Err.Error()})
	}
}

func (s *RunSummary) addIdentity(authorityKey string, err error) {
	s.Identities++
	status := "ok"
	if err != nil {
		s.IdentitiesFailed++
		s.Failures = append(s.Failures, Failure{AuthorityKey: authorityKey, Error: err.Error()})
		status = "failed"
	}
	metrics.RecordIdentityRun(string(s.Kind), status)
}

func (s *RunSummary) skipIdentity() {
	s.IdentitiesSkipped++
	metrics.RecordIdentityRun(string(s.Kind), "skipped")
}

// Failed reports whether any unit failed.
func (s RunSummary) Failed() bool {
	return s.IdentitiesFailed > 0 || s.RecordsFailed > 0
}

func (s RunSummary) Log(ctx context.Context, logger ectologger.Logger) {
	entry := logger.WithContext(ctx).WithFields(map[string]any{
		"kind":                s.Kind,
		"identities":          s.Identities,
		"identities_failed":   s.IdentitiesFailed,
		"identities_skipped":  s.IdentitiesSkipped,
		"variants":            s.Variants,
		"candidates":          s.Candidates,
		"records_written":     s.RecordsWritten,
		"records_unchanged":   s.RecordsUnchanged,
		"records_failed":      s.RecordsFailed,
		"values_bound":        s.ValuesBound,
		"match_count_lookups": s.MatchCountLookups,
		"duration_ms":         s.FinishedAt.Sub(s.StartedAt).Milliseconds(),
	})
	if s.Failed() {
		entry.Warn("Authority run finished with failures")
		return
	}
	entry.Info("Authority run finished")
}

// Package scoring decides which metadata values to bind to an identity and at what confidence.
package scoring

import (
	"context"
	"strings"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/heather/pkg/metrics"
	"github.com/Ramsey-B/heather/pkg/models"
	"github.com/Ramsey-B/heather/pkg/tracing"
	"github.com/Ramsey-B/heather/pkg/variants"
)

// FieldRewrite is the full value set of one field after scoring.
type FieldRewrite struct {
	Field   models.Field           `json:"field"`
	Values  []models.MetadataValue `json:"values"`
	Changed bool                   `json:"changed"`
	Bound   int                    `json:"bound"`
}

// Rewrite is the scoring outcome for one record.
type Rewrite struct {
	ItemID string         `json:"item_id"`
	Fields []FieldRewrite `json:"fields"`
}

// Changed reports whether any field of the record changed.
func (r Rewrite) Changed() bool {
	for _, f := range r.Fields {
		if f.Changed {
			return true
		}
	}
	return false
}

// Bound counts the values that received an authority.
func (r Rewrite) Bound() int {
	n := 0
	for _, f := range r.Fields {
		n += f.Bound
	}
	return n
}

type Scorer struct {
	fields []models.Field
	policy Policy
	logger ectologger.Logger
}

// NewScorer scores the given authority-eligible fields.
func NewScorer(fields []models.Field, policy Policy, logger ectologger.Logger) *Scorer {
	if policy == "" {
		policy = PolicyIntended
	}
	return &Scorer{
		fields: fields,
		policy: policy,
		logger: logger,
	}
}

func (s *Scorer) Fields() []models.Field {
	return s.fields
}

func (s *Scorer) Policy() Policy {
	return s.policy
}

// ScoreSelfClaim binds the identity's key at accepted confidence to every
// unlinked value on item that contains surname, ignoring case.
func (s *Scorer) ScoreSelfClaim(identity *models.Identity, surname string, item models.Item) Rewrite {
	rewrite := Rewrite{ItemID: item.ID}

	needle := strings.ToLower(strings.TrimSpace(surname))
	for _, field := range s.fields {
		values := item.Values(field)
		if len(values) == 0 {
			continue
		}

		fr := FieldRewrite{Field: field, Values: make([]models.MetadataValue, len(values))}
		for i, v := range values {
			if needle != "" && !v.HasAuthority() && strings.Contains(strings.ToLower(v.Value), needle) {
				v = bind(v, identity.AuthorityKey, models.ConfidenceAccepted)
				fr.Changed = true
				fr.Bound++
			}
			fr.Values[i] = v
		}
		rewrite.Fields = append(rewrite.Fields, fr)
	}

	return rewrite
}

// ScoreCandidates binds the variant owner's key to every unlinked value on the
// candidate items whose text names the variant. Items in the owner's reject set
// are skipped and produce no rewrite.
func (s *Scorer) ScoreCandidates(ctx context.Context, batch *Batch, variant models.NameVariant, items []models.Item) []Rewrite {
	ctx, span := tracing.StartSpan(ctx, "scoring.Scorer.ScoreCandidates")
	defer span.End()

	rewrites := make([]Rewrite, 0, len(items))
	for _, item := range items {
		if variant.Excludes(item.ID) {
			s.logger.WithContext(ctx).WithFields(map[string]any{
				"item_id":       item.ID,
				"authority_key": variant.OwnerAuthorityKey,
			}).Info("Skipping item rejected by identity")
			continue
		}
		rewrites = append(rewrites, s.scoreItem(ctx, batch, variant, item))
	}

	return rewrites
}

func (s *Scorer) scoreItem(ctx context.Context, batch *Batch, variant models.NameVariant, item models.Item) Rewrite {
	rewrite := Rewrite{ItemID: item.ID}

	for _, field := range s.fields {
		values := item.Values(field)
		if len(values) == 0 {
			continue
		}

		fr := FieldRewrite{Field: field, Values: make([]models.MetadataValue, len(values))}
		for i, v := range values {
			if !v.HasAuthority() && variants.Matches(v.Value, variant.Text) {
				confidence := s.policy.Confidence(batch.MatchCount(ctx, variant.Text))
				v = bind(v, variant.OwnerAuthorityKey, confidence)
				fr.Changed = true
				fr.Bound++
			}
			fr.Values[i] = v
		}
		rewrite.Fields = append(rewrite.Fields, fr)
	}

	return rewrite
}

func bind(v models.MetadataValue, authorityKey string, confidence models.Confidence) models.MetadataValue {
	key := authorityKey
	v.Authority = &key
	v.Confidence = confidence
	metrics.RecordValueBound(confidence.String())
	return v
}

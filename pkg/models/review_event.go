package models

import "time"

type ReviewEventType string

const (
	ReviewEventGenerated ReviewEventType = "potential_matches.generated"
	ReviewEventAccepted  ReviewEventType = "potential_match.accepted"
	ReviewEventRejected  ReviewEventType = "potential_match.rejected"
	ReviewEventUnlinked  ReviewEventType = "potential_match.unlinked"
)

// ReviewEvent describes a committed change to an identity's links.
type ReviewEvent struct {
	Type         ReviewEventType `json:"type"`
	AuthorityKey string          `json:"authority_key"`
	IdentityID   string          `json:"identity_id"`
	ItemIDs      []string        `json:"item_ids"`
	Confidence   *Confidence     `json:"confidence,omitempty"`
	OccurredAt   time.Time       `json:"occurred_at"`
}

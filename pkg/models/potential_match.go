package models

import "time"

// PotentialMatch is a proposed, unconfirmed link between an identity and a record.
type PotentialMatch struct {
	AuthorityKey string    `json:"authority_key" db:"authority_key"`
	ItemID       string    `json:"item_id" db:"item_id"`
	Pending      bool      `json:"pending" db:"pending"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

type AcceptMatchRequest struct {
	ItemID     string     `json:"item_id" validate:"required"`
	Confidence Confidence `json:"confidence"`
}

type RejectMatchesRequest struct {
	ItemIDs []string `json:"item_ids" validate:"required,min=1,dive,required"`
}

type UnlinkMatchRequest struct {
	ItemID string `json:"item_id" validate:"required"`
}

type LookupRequest struct {
	Text  string `json:"text" validate:"required"`
	Scope string `json:"scope,omitempty"`
}

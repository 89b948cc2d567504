package models

import "time"

type PreferenceStatus string

const (
	PreferenceUnlinked PreferenceStatus = "UNLINKED"
	PreferenceSelected PreferenceStatus = "SELECTED"
	PreferenceRejected PreferenceStatus = "REJECTED"
)

// RelationPreference records an owner's review decision about one item for one relation.
type RelationPreference struct {
	OwnerID      string           `json:"owner_id" db:"owner_id"`
	RelationName string           `json:"relation_name" db:"relation_name"`
	ItemID       string           `json:"item_id" db:"item_id"`
	Status       PreferenceStatus `json:"status" db:"status"`
	UpdatedAt    time.Time        `json:"updated_at" db:"updated_at"`
}

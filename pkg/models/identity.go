package models

import (
	"strings"
	"time"
)

// IdentityKind is the registry entity type an identity describes.
type IdentityKind string

const (
	IdentityKindResearcher     IdentityKind = "researcher"
	IdentityKindOrgUnit        IdentityKind = "orgunit"
	IdentityKindProject        IdentityKind = "project"
	IdentityKindResearchObject IdentityKind = "research_object"
)

// Identity is a canonical registry record that authored text can be linked to.
type Identity struct {
	ID                string       `json:"id" db:"id"`
	AuthorityKey      string       `json:"authority_key" db:"authority_key"`
	OwnerUserID       *string      `json:"owner_user_id,omitempty" db:"owner_user_id"`
	Kind              IdentityKind `json:"kind" db:"kind"`
	FullName          string       `json:"full_name" db:"full_name"`
	PreferredName     string       `json:"preferred_name,omitempty" db:"preferred_name"`
	PreferredVisible  bool         `json:"preferred_visible" db:"preferred_visible"`
	TranslatedName    string       `json:"translated_name,omitempty" db:"translated_name"`
	TranslatedVisible bool         `json:"translated_visible" db:"translated_visible"`
	Variants          []NameForm   `json:"variants" db:"-"`
	CreatedAt         time.Time    `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time    `json:"updated_at" db:"updated_at"`
}

// NameForm is a declared alias of an identity with its visibility flag.
type NameForm struct {
	Text    string `json:"text" db:"text"`
	Visible bool   `json:"visible" db:"visible"`
}

// Usable reports whether the form is visible and has non-blank text.
func (f NameForm) Usable() bool {
	return f.Visible && strings.TrimSpace(f.Text) != ""
}

type User struct {
	ID        string `json:"id" db:"id"`
	FirstName string `json:"first_name" db:"first_name"`
	LastName  string `json:"last_name" db:"last_name"`
	Email     string `json:"email" db:"email"`
}

package models

import (
	"fmt"
	"strings"
)

// Field identifies a metadata field by schema, element and optional qualifier.
type Field struct {
	Schema    string `json:"schema" yaml:"schema"`
	Element   string `json:"element" yaml:"element"`
	Qualifier string `json:"qualifier,omitempty" yaml:"qualifier"`
}

// ParseField reads the dotted form, e.g. "dc.contributor.author" or "dc.title".
func ParseField(value string) (Field, error) {
	parts := strings.Split(strings.TrimSpace(value), ".")
	switch {
	case len(parts) == 2 && parts[0] != "" && parts[1] != "":
		return Field{Schema: parts[0], Element: parts[1]}, nil
	case len(parts) == 3 && parts[0] != "" && parts[1] != "" && parts[2] != "":
		return Field{Schema: parts[0], Element: parts[1], Qualifier: parts[2]}, nil
	default:
		return Field{}, fmt.Errorf("invalid field %q", value)
	}
}

func (f Field) String() string {
	if f.Qualifier == "" {
		return f.Schema + "." + f.Element
	}
	return f.Schema + "." + f.Element + "." + f.Qualifier
}

// MetadataValue is one value of a field on a bibliographic record.
type MetadataValue struct {
	ID         string     `json:"id" db:"id"`
	ItemID     string     `json:"item_id" db:"item_id"`
	Schema     string     `json:"schema" db:"schema_name"`
	Element    string     `json:"element" db:"element"`
	Qualifier  string     `json:"qualifier,omitempty" db:"qualifier"`
	Language   string     `json:"language,omitempty" db:"language"`
	Value      string     `json:"value" db:"value"`
	Authority  *string    `json:"authority,omitempty" db:"authority"`
	Confidence Confidence `json:"confidence" db:"confidence"`
	Place      int        `json:"place" db:"place"`
}

func (v MetadataValue) Field() Field {
	return Field{Schema: v.Schema, Element: v.Element, Qualifier: v.Qualifier}
}

// HasAuthority reports whether the value is already linked to any identity.
func (v MetadataValue) HasAuthority() bool {
	return v.Authority != nil && *v.Authority != ""
}

// Item is a bibliographic record with its metadata.
type Item struct {
	ID          string          `json:"id" db:"id"`
	SubmitterID *string         `json:"submitter_id,omitempty" db:"submitter_id"`
	Metadata    []MetadataValue `json:"metadata" db:"-"`
}

// Values returns the item's values for field in place order.
func (i Item) Values(field Field) []MetadataValue {
	var values []MetadataValue
	for _, value := range i.Metadata {
		if value.Field() == field {
			values = append(values, value)
		}
	}
	return values
}

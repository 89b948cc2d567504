package models

// NameVariant is one textual form under which an identity may appear in authored text.
// It is derived per run and never stored.
type NameVariant struct {
	Text              string              `json:"text"`
	OwnerAuthorityKey string              `json:"owner_authority_key"`
	OwnerID           string              `json:"owner_id"`
	ExcludedItemIDs   map[string]struct{} `json:"-"`
}

// Excludes reports whether itemID is in the owner's reject set.
func (v NameVariant) Excludes(itemID string) bool {
	_, ok := v.ExcludedItemIDs[itemID]
	return ok
}

// NewExclusionSet builds a reject set from item ids.
func NewExclusionSet(itemIDs ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(itemIDs))
	for _, id := range itemIDs {
		set[id] = struct{}{}
	}
	return set
}

// Package variants derives the name forms under which an identity may appear in authored text.
package variants

import (
	"strings"

	"github.com/Ramsey-B/heather/pkg/models"
)

// Expand returns the identity's name variants: the full name first, then the
// preferred name, the translated name and each alias in declaration order. Only
// visible, non-blank forms beyond the full name are included. Every variant
// carries the identity's key, id and the given reject set.
func Expand(identity *models.Identity, excluded map[string]struct{}) []models.NameVariant {
	if identity == nil {
		return nil
	}

	forms := []string{identity.FullName}
	if usable(identity.PreferredName, identity.PreferredVisible) {
		forms = append(forms, identity.PreferredName)
	}
	if usable(identity.TranslatedName, identity.TranslatedVisible) {
		forms = append(forms, identity.TranslatedName)
	}
	for _, alias := range identity.Variants {
		if alias.Usable() {
			forms = append(forms, alias.Text)
		}
	}

	if excluded == nil {
		excluded = map[string]struct{}{}
	}

	result := make([]models.NameVariant, 0, len(forms))
	for _, text := range forms {
		result = append(result, models.NameVariant{
			Text:              text,
			OwnerAuthorityKey: identity.AuthorityKey,
			OwnerID:           identity.ID,
			ExcludedItemIDs:   excluded,
		})
	}
	return result
}

func usable(text string, visible bool) bool {
	return models.NameForm{Text: text, Visible: visible}.Usable()
}

// Texts returns the variant texts in order.
func Texts(variants []models.NameVariant) []string {
	texts := make([]string, len(variants))
	for i, v := range variants {
		texts[i] = v.Text
	}
	return texts
}

// Matches reports whether value names the variant: equal to its text, or equal to
// the first segment of a semicolon-delimited compound value.
func Matches(value, variantText string) bool {
	if value == variantText {
		return true
	}
	if first, _, compound := strings.Cut(value, ";"); compound {
		return strings.TrimSpace(first) == variantText
	}
	return false
}

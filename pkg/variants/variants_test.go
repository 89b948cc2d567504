package variants

import (
	"testing"

	"github.com/Ramsey-B/heather/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpand(t *testing.T) {
	tests := []struct {
		name     string
		identity models.Identity
		want     []string
	}{
		{
			name:     "full name only",
			identity: models.Identity{FullName: "Smith, John"},
			want:     []string{"Smith, John"},
		},
		{
			name: "all visible forms in order",
			identity: models.Identity{
				FullName:          "Smith, John",
				PreferredName:     "Smith, Johnny",
				PreferredVisible:  true,
				TranslatedName:    "Смит, Джон",
				TranslatedVisible: true,
				Variants: []models.NameForm{
					{Text: "J. Smith", Visible: true},
					{Text: "Smith J.", Visible: true},
				},
			},
			want: []string{"Smith, John", "Smith, Johnny", "Смит, Джон", "J. Smith", "Smith J."},
		},
		{
			name: "invisible and blank forms dropped",
			identity: models.Identity{
				FullName:          "Smith, John",
				PreferredName:     "Smith, Johnny",
				PreferredVisible:  false,
				TranslatedName:    "   ",
				TranslatedVisible: true,
				Variants: []models.NameForm{
					{Text: "Hidden Alias", Visible: false},
					{Text: "", Visible: true},
					{Text: "J. Smith", Visible: true},
				},
			},
			want: []string{"Smith, John", "J. Smith"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.identity.ID = "id-42"
			tt.identity.AuthorityKey = "rp00042"

			got := Expand(&tt.identity, models.NewExclusionSet("11"))
			assert.Equal(t, tt.want, Texts(got))
			for _, v := range got {
				assert.Equal(t, "rp00042", v.OwnerAuthorityKey)
				assert.Equal(t, "id-42", v.OwnerID)
				assert.True(t, v.Excludes("11"))
			}
		})
	}
}

func TestExpandIsStable(t *testing.T) {
	identity := &models.Identity{
		FullName: "Smith, John",
		Variants: []models.NameForm{{Text: "J. Smith", Visible: true}, {Text: "John S.", Visible: true}},
	}
	first := Texts(Expand(identity, nil))
	second := Texts(Expand(identity, nil))
	assert.Equal(t, first, second)
}

func TestExpandNil(t *testing.T) {
	assert.Nil(t, Expand(nil, nil))

	got := Expand(&models.Identity{FullName: "Smith, John"}, nil)
	require.Len(t, got, 1)
	assert.False(t, got[0].Excludes("10"))
}

func TestMatches(t *testing.T) {
	tests := []struct {
		value string
		text  string
		want  bool
	}{
		{value: "Smith, John", text: "Smith, John", want: true},
		{value: "Smith, John; University of Somewhere", text: "Smith, John", want: true},
		{value: "  Smith, John ;0000-0001", text: "Smith, John", want: true},
		{value: "Smith, Johnny", text: "Smith, John", want: false},
		{value: "smith, john", text: "Smith, John", want: false},
		{value: "University; Smith, John", text: "Smith, John", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			assert.Equal(t, tt.want, Matches(tt.value, tt.text))
		})
	}
}

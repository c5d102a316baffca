package normalize

import (
	"testing"

	"github.com/alfredjeanlab/campusevents/internal/model"
)

func TestCleanCategory(t *testing.T) {
	for _, tc := range []struct{ in, want string }{
		{"Arts & Culture", "arts culture"},
		{`  ["Athletics"] `, "athletics"},
		{"---", ""},
		{"Talk/Lecture", "talk lecture"},
	} {
		if got := CleanCategory(tc.in); got != tc.want {
			t.Errorf("CleanCategory(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestCategorizer_Categorize(t *testing.T) {
	c := NewCategorizer(model.DefaultCategoryRules(), 0)
	for _, tc := range []struct{ text, want string }{
		{"Varsity basketball game: tournament semifinal", "Athletics"},
		{"Orchestra and choir concert", "Concert"},
		{"Guided meditation and prayer", "Spirituality"},
		{"Guest lecture on research in economics", "Thoughtful Learning"},
		{"Volunteer at the food donation drive", "Community Service"},
		{"Room 101", model.CategoryOther},
		{"", model.CategoryOther},
	} {
		if got := c.Categorize(tc.text); got != tc.want {
			t.Errorf("Categorize(%q) = %q, want %q", tc.text, got, tc.want)
		}
	}

	var nilCat *Categorizer
	if nilCat.Categorize("concert") != model.CategoryOther {
		t.Error("nil categorizer should return Other")
	}
}

func TestCategorizer_Threshold(t *testing.T) {
	c := NewCategorizer(model.DefaultCategoryRules(), 0.99)
	if got := c.Categorize("concert in the quad with friends"); got != model.CategoryOther {
		t.Errorf("high threshold: got %q", got)
	}
}

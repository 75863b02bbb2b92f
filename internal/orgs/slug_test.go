package orgs

import "testing"

func TestSlugify(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "lowercases and hyphenates", in: "The Shire", want: "the-shire"},
		{name: "already a slug", in: "fellowship", want: "fellowship"},
		{name: "collapses repeated separators", in: "Ring  --  Bearers", want: "ring-bearers"},
		{name: "strips punctuation", in: "Sam's Garden!", want: "sams-garden"},
		{name: "transliterates accents", in: "Théoden's Éored", want: "theodens-eored"},
		{name: "trims leading and trailing separators", in: "  hobbits  ", want: "hobbits"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Slugify(tt.in); got != tt.want {
				t.Errorf("Slugify(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestSlugifyDeterministic(t *testing.T) {
	if Slugify("The Shire") != Slugify("The Shire") {
		t.Error("expected identical names to produce identical slugs")
	}
}

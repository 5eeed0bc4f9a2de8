package genre

import (
	"errors"
	"testing"

	"Tunora/core/apperr"
	"Tunora/model"
)

func TestResolve(t *testing.T) {
	tests := []struct {
		in   string
		want Resolution
	}{
		{"all", Resolution{Mode: ModeAll}},
		{" ALL ", Resolution{Mode: ModeAll}},
		{"for_you", Resolution{Mode: ModeForYou}},
		{"For_You", Resolution{Mode: ModeForYou}},
		{"Hip-Hop", Resolution{Mode: ModeGenre, Genre: model.GenreHipHop}},
		{"hiphop", Resolution{Mode: ModeGenre, Genre: model.GenreHipHop}},
		{"HIP-HOP", Resolution{Mode: ModeGenre, Genre: model.GenreHipHop}},
		{"hip hop", Resolution{Mode: ModeGenre, Genre: model.GenreHipHop}},
		{"R&B", Resolution{Mode: ModeGenre, Genre: model.GenreRnB}},
		{"rnb", Resolution{Mode: ModeGenre, Genre: model.GenreRnB}},
		{"Afrobeats", Resolution{Mode: ModeGenre, Genre: model.GenreAfrobeat}},
		{"electronic", Resolution{Mode: ModeGenre, Genre: model.GenreEDM}},
		{"  jazz\t", Resolution{Mode: ModeGenre, Genre: model.GenreJazz}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := Resolve(tt.in)
			if err != nil {
				t.Fatalf("Resolve(%q) error: %v", tt.in, err)
			}
			if got != tt.want {
				t.Fatalf("Resolve(%q) = %+v, want %+v", tt.in, got, tt.want)
			}
		})
	}
}

func TestResolveUnknown(t *testing.T) {
	for _, in := range []string{"mambo", "", "hip_hop", "foryou"} {
		_, err := Resolve(in)
		if !errors.Is(err, apperr.ErrInvalidCategory) {
			t.Errorf("Resolve(%q) err = %v, want ErrInvalidCategory", in, err)
		}
		if apperr.KindOf(err) != apperr.InvalidInput {
			t.Errorf("Resolve(%q) kind = %v", in, apperr.KindOf(err))
		}
	}
}

func TestSynonymsAgree(t *testing.T) {
	a, _ := Resolve("Hip-Hop")
	b, _ := Resolve("hiphop")
	c, _ := Resolve("HIP-HOP")
	if a != b || b != c {
		t.Fatalf("synonyms resolved differently: %+v %+v %+v", a, b, c)
	}
}

func TestCanonical(t *testing.T) {
	if !Canonical("Hip-Hop") || !Canonical("R&B") {
		t.Fatalf("expected canonical values to be accepted")
	}
	if Canonical("hiphop") || Canonical("all") {
		t.Fatalf("synonyms and reserved words are not canonical")
	}
	if got := len(All()); got != 12 {
		t.Fatalf("All() returned %d genres, want 12", got)
	}
	for _, g := range All() {
		if n, ok := Normalize(string(g)); !ok || n != g {
			t.Errorf("canonical %q does not normalize to itself", g)
		}
	}
}

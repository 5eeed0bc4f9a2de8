// Package genre maps free-text category strings onto canonical genres.
package genre

import (
	"strings"

	"Tunora/core/apperr"
	"Tunora/model"
)

// Mode is the browsing mode a category resolves to.
type Mode int

const (
	ModeGenre Mode = iota
	ModeAll
	ModeForYou
)

const (
	CategoryAll    = "all"
	CategoryForYou = "for_you"
)

// Resolution is the outcome of Resolve. Genre is set only for ModeGenre.
type Resolution struct {
	Mode  Mode
	Genre model.Genre
}

var canonical = []model.Genre{
	model.GenreAfrobeat,
	model.GenrePop,
	model.GenreHipHop,
	model.GenreRnB,
	model.GenreReggae,
	model.GenreRock,
	model.GenreEDM,
	model.GenreJazz,
	model.GenreGospel,
	model.GenreCountry,
	model.GenreClassical,
	model.GenreOther,
}

// synonyms is read-only after init.
var synonyms = map[string]model.Genre{
	"afrobeat":   model.GenreAfrobeat,
	"afrobeats":  model.GenreAfrobeat,
	"pop":        model.GenrePop,
	"hiphop":     model.GenreHipHop,
	"hip-hop":    model.GenreHipHop,
	"hip hop":    model.GenreHipHop,
	"rnb":        model.GenreRnB,
	"r&b":        model.GenreRnB,
	"r-and-b":    model.GenreRnB,
	"reggae":     model.GenreReggae,
	"rock":       model.GenreRock,
	"edm":        model.GenreEDM,
	"electronic": model.GenreEDM,
	"jazz":       model.GenreJazz,
	"gospel":     model.GenreGospel,
	"country":    model.GenreCountry,
	"classical":  model.GenreClassical,
	"other":      model.GenreOther,
}

// Resolve maps a category onto a browsing mode. Matching ignores case and
// surrounding whitespace.
func Resolve(category string) (Resolution, error) {
	key := strings.ToLower(strings.TrimSpace(category))
	switch key {
	case CategoryAll:
		return Resolution{Mode: ModeAll}, nil
	case CategoryForYou:
		return Resolution{Mode: ModeForYou}, nil
	}
	if g, ok := synonyms[key]; ok {
		return Resolution{Mode: ModeGenre, Genre: g}, nil
	}
	return Resolution{}, apperr.ErrInvalidCategory
}

// Normalize resolves text to a single canonical genre. Reserved categories
// are not genres.
func Normalize(text string) (model.Genre, bool) {
	g, ok := synonyms[strings.ToLower(strings.TrimSpace(text))]
	return g, ok
}

// Canonical reports whether s is exactly one of the canonical genre values.
func Canonical(s string) bool {
	for _, g := range canonical {
		if string(g) == s {
			return true
		}
	}
	return false
}

// All returns the canonical genres in declaration order.
func All() []model.Genre {
	out := make([]model.Genre, len(canonical))
	copy(out, canonical)
	return out
}

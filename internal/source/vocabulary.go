package source

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/DokushoHQ/backends/internal/domain"
)

// Pair maps a canonical value to its catalog spelling.
type Pair[T ~string] struct {
	Canonical T
	Native    string
}

// Table is a bidirectional lookup between canonical values and a catalog's
// native strings. Native lookups ignore case and diacritics.
type Table[T ~string] struct {
	field      string
	order      []T
	toNative   map[T]string
	fromNative map[string]T
}

// NewTable builds a table for field. Later pairs win on duplicate natives.
func NewTable[T ~string](field string, pairs ...Pair[T]) *Table[T] {
	t := &Table[T]{
		field:      field,
		toNative:   make(map[T]string, len(pairs)),
		fromNative: make(map[string]T, len(pairs)),
	}
	for _, p := range pairs {
		if _, ok := t.toNative[p.Canonical]; !ok {
			t.order = append(t.order, p.Canonical)
		}
		t.toNative[p.Canonical] = p.Native
		t.fromNative[Fold(p.Native)] = p.Canonical
	}
	return t
}

// Native translates a canonical value, failing for values the catalog lacks.
func (t *Table[T]) Native(v T) (string, error) {
	if t == nil {
		return "", Unmapped(t.fieldName(), string(v))
	}
	n, ok := t.toNative[v]
	if !ok {
		return "", Unmapped(t.field, string(v))
	}
	return n, nil
}

// Canonical translates a catalog string, failing for unknown strings.
func (t *Table[T]) Canonical(native string) (T, error) {
	var zero T
	if t == nil {
		return zero, Unmapped(t.fieldName(), native)
	}
	v, ok := t.fromNative[Fold(native)]
	if !ok {
		return zero, Unmapped(t.field, native)
	}
	return v, nil
}

// Values lists the canonical values in declaration order.
func (t *Table[T]) Values() []T {
	if t == nil {
		return nil
	}
	out := make([]T, len(t.order))
	copy(out, t.order)
	return out
}

func (t *Table[T]) fieldName() string {
	if t == nil {
		return "unsupported field"
	}
	return t.field
}

// Vocabulary is an adapter's translation tables. Unknown genres fall back to
// domain.GenreUnknown; every other field fails loudly.
type Vocabulary struct {
	Genres *Table[domain.Genre]
	Status *Table[domain.SerieStatus]
	Types  *Table[domain.SerieType]
	Sorts  *Table[domain.Sort]
	Orders *Table[domain.Order]
}

// Genre translates a catalog genre, keeping unknown ones as GenreUnknown.
func (v *Vocabulary) Genre(native string) domain.Genre {
	g, err := v.Genres.Canonical(native)
	if err != nil {
		return domain.GenreUnknown
	}
	return g
}

// GenresOf translates and dedupes a list of catalog genres.
func (v *Vocabulary) GenresOf(natives []string) []domain.Genre {
	out := make([]domain.Genre, 0, len(natives))
	for _, n := range natives {
		if strings.TrimSpace(n) == "" {
			continue
		}
		out = append(out, v.Genre(n))
	}
	return domain.UniqueGenres(out)
}

// Filters derives the supported search filters from the tables.
func (v *Vocabulary) Filters(query, people, genreInclude, genreExclude bool, types []domain.SerieType) domain.SupportedFilters {
	return domain.SupportedFilters{
		Query:   query,
		Order:   v.Orders.Values(),
		Sort:    v.Sorts.Values(),
		Artists: people,
		Authors: people,
		Types:   types,
		Genres: domain.SupportedGenreFilter{
			Include:        genreInclude,
			Exclude:        genreExclude,
			AcceptedValues: v.Genres.Values(),
		},
		Status: v.Status.Values(),
	}
}

// Fold lowercases s, strips diacritics and trims it: "Terminé " → "termine".
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	return strings.ToLower(strings.TrimSpace(folded))
}

// Package lexicon holds the compiled, read-only morpheme data: the
// dense known-morpheme table, homonym groups, the transition-cost
// matrix, and the unknown-word templates grouped by character class.
package lexicon

import "github.com/morphgo/kaiseki/internal/charclass"

// BOSEOSContextID is the fixed context ID used for the virtual
// beginning/end-of-sentence morphemes in the transition matrix.
const BOSEOSContextID = 0

// Morpheme is the compact per-ID cost record. It intentionally omits
// the surface form and features; those live in the double-array trie
// and the feature map respectively.
type Morpheme struct {
	LeftContextID  uint16
	RightContextID uint16
	Cost           int16
}

// UnknownEntry pairs an unknown-word template ID with its morpheme
// cost record, in loader-appearance order.
type UnknownEntry struct {
	TemplateID int
	Morpheme   Morpheme
}

// Lexicon is the full compiled dictionary. It is built once by the
// loader (or reconstructed by the artifact codec) and never mutated
// again.
type Lexicon struct {
	// Known holds dense morpheme records indexed [1, len(Known)); index
	// 0 is unused (reserved for "none / BOS / EOS").
	Known []Morpheme

	// Homonyms maps a known morpheme ID to every ID (including itself)
	// sharing its surface form, in loader insertion order.
	Homonyms map[int][]int

	// Matrix is a dense R x R transition-cost table, Matrix[left][right].
	Matrix [][]int16

	// Unknown maps a character class name to its ordered unknown-word
	// templates.
	Unknown map[string][]UnknownEntry

	Classifier *charclass.Classifier
}

// New returns an empty, ready-to-populate Lexicon. Known[0] is a
// sentinel so that IDs can be used directly as slice indices.
func New() *Lexicon {
	return &Lexicon{
		Known:    []Morpheme{{}},
		Homonyms: make(map[int][]int),
		Unknown:  make(map[string][]UnknownEntry),
	}
}

// AddKnown appends a known morpheme and returns its assigned ID. IDs
// are sequential starting at 1; two calls always return distinct IDs,
// even for an identical (surface, morpheme) pair. Homonym bookkeeping
// is the loader's job (RegisterHomonym), since Lexicon has no notion
// of "surface" once compiled.
func (l *Lexicon) AddKnown(m Morpheme) int {
	id := len(l.Known)
	l.Known = append(l.Known, m)
	return id
}

// RegisterHomonym records that every ID in group shares one surface
// form (group is the canonical list of IDs for that surface, built
// incrementally by the loader).
func (l *Lexicon) RegisterHomonym(group []int) {
	for _, id := range group {
		l.Homonyms[id] = group
	}
}

// KnownMorpheme returns the morpheme record for a known ID.
func (l *Lexicon) KnownMorpheme(id int) (Morpheme, bool) {
	if id <= 0 || id >= len(l.Known) {
		return Morpheme{}, false
	}
	return l.Known[id], true
}

// HomonymsOf returns every ID sharing id's surface form, id included.
func (l *Lexicon) HomonymsOf(id int) []int {
	if group, ok := l.Homonyms[id]; ok {
		return group
	}
	return []int{id}
}

// TransitionCost returns Matrix[left][right], defaulting to -1 (per
// §4.7, "no penalty known") for any cell the loader never populated.
func (l *Lexicon) TransitionCost(left, right uint16) int16 {
	if int(left) >= len(l.Matrix) {
		return -1
	}
	row := l.Matrix[left]
	if int(right) >= len(row) {
		return -1
	}
	return row[right]
}

// UnknownMorphemes returns the templates registered for class, in
// loader-appearance order.
func (l *Lexicon) UnknownMorphemes(class string) []UnknownEntry {
	return l.Unknown[class]
}

// AddUnknown appends a template for class and returns its ID (scoped
// per class, starting at 1, per §4.7).
func (l *Lexicon) AddUnknown(class string, m Morpheme) int {
	entries := l.Unknown[class]
	id := len(entries) + 1
	l.Unknown[class] = append(entries, UnknownEntry{TemplateID: id, Morpheme: m})
	return id
}

// UnknownMorpheme looks up a specific class/template-ID pair, used by
// the Viterbi stage and the analyzer to resolve an Unknown candidate.
func (l *Lexicon) UnknownMorpheme(class string, templateID int) (Morpheme, bool) {
	for _, e := range l.Unknown[class] {
		if e.TemplateID == templateID {
			return e.Morpheme, true
		}
	}
	return Morpheme{}, false
}

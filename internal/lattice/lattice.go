// Package lattice builds the position-indexed candidate graph an
// analysis walks: every known dictionary match and every synthesised
// unknown-word guess reachable from each scalar offset of the input,
// per §4.5. The lattice itself carries no notion of "best" path; that
// is the viterbi package's job.
package lattice

import (
	"github.com/morphgo/kaiseki/internal/charclass"
	"github.com/morphgo/kaiseki/internal/doublearray"
	"github.com/morphgo/kaiseki/internal/lexicon"
)

// Kind distinguishes a dictionary hit from a synthesised guess.
type Kind int

const (
	Known Kind = iota
	Unknown
)

// Candidate is one edge starting at some position p, consuming Length
// scalars of the input.
type Candidate struct {
	Kind Kind
	// ID is a known morpheme ID when Kind == Known, or a per-class
	// unknown-word template ID when Kind == Unknown.
	ID int
	// Class names the character class an Unknown candidate was
	// generated from; empty for Known candidates.
	Class  string
	Length int
}

// Lattice is the full candidate graph for one input.
type Lattice struct {
	Text       []rune
	candidates [][]Candidate // candidates[p], p in [0, len(Text))
}

// Candidates returns the candidates starting at position p, in the
// insertion order construction produced (Viterbi indexes into this).
func (l *Lattice) Candidates(p int) []Candidate {
	if p < 0 || p >= len(l.candidates) {
		return nil
	}
	return l.candidates[p]
}

// Len returns the scalar length of the parsed input.
func (l *Lattice) Len() int { return len(l.Text) }

// Parse builds the lattice for text against da and lex.
func Parse(text []rune, da *doublearray.DoubleArray, lex *lexicon.Lexicon) *Lattice {
	l := &Lattice{
		Text:       text,
		candidates: make([][]Candidate, len(text)),
	}

	open := []int{0}
	visited := make([]bool, len(text))
	for len(open) > 0 {
		p := open[0]
		open = open[1:]
		if p >= len(text) || visited[p] {
			continue
		}
		visited[p] = true

		def := lex.Classifier.Classify(text[p])
		if def.Timing == charclass.Always {
			l.generateUnknown(lex, def, p, &open)
		}

		started := l.walkKnown(da, lex, p, &open)

		if !started && def.Timing == charclass.Fallback {
			l.generateUnknown(lex, def, p, &open)
		}
	}

	return l
}

// generateUnknown appends every unknown-word template registered for
// def's class as a candidate starting at p, and schedules the position
// immediately past the synthesised run for expansion. A zero-length
// run generates nothing, per §4.5's "if ℓ == 0 push nothing, to avoid
// an infinite loop".
func (l *Lattice) generateUnknown(lex *lexicon.Lexicon, def *charclass.Definition, p int, open *[]int) {
	run := lex.Classifier.TakeUnknownRun(def, l.Text, p)
	length := len(run)
	if length == 0 {
		return
	}
	for _, entry := range lex.UnknownMorphemes(def.Class) {
		l.candidates[p] = append(l.candidates[p], Candidate{
			Kind:   Unknown,
			ID:     entry.TemplateID,
			Class:  def.Class,
			Length: length,
		})
	}
	*open = append(*open, p+length)
}

// walkKnown consumes text[p:] against the double array, appending a
// Known candidate (with homonym expansion) for every prefix that
// terminates a trie entry, and scheduling the position past each such
// match for expansion. It returns whether the very first transition
// from the root succeeded, which the caller uses to decide whether a
// Fallback-timed unknown generator should also fire at p.
func (l *Lattice) walkKnown(da *doublearray.DoubleArray, lex *lexicon.Lexicon, p int, open *[]int) bool {
	return da.CommonPrefixWalk(l.Text, p, func(id0 int32, length int) {
		for _, homonymID := range lex.HomonymsOf(int(id0)) {
			l.candidates[p] = append(l.candidates[p], Candidate{
				Kind:   Known,
				ID:     homonymID,
				Length: length,
			})
		}
		*open = append(*open, p+length)
	})
}

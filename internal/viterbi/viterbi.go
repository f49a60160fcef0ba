// Package viterbi finds the minimum-cost path through a lattice: the
// dense DP table of §4.6, including its documented double-counting of
// every morpheme's cost. That accounting is deliberate, not a bug; see
// the package-level note on BuildTable.
package viterbi

import (
	"math"

	"github.com/morphgo/kaiseki/internal/lattice"
	"github.com/morphgo/kaiseki/internal/lexicon"
)

const infCost = math.MaxInt32

// nodeBOS marks a cell whose back-pointer resolves to the virtual
// beginning-of-sentence node rather than a real lattice candidate.
const nodeBOS = 0

type cell struct {
	cost    int32
	backPos int
	backJ   int
}

// Table is the full dense DP grid, rows 0..len(text)+1, columns
// 0..width-1. Row 0 is BOS, row len+1 is EOS; row p+1 holds the cells
// reached by the candidates starting at lattice position p. Exposed so
// callers that need more than the best path (the DOT renderer wants
// every candidate's cumulative cost, not just the winning ones) don't
// have to recompute it.
type Table struct {
	cells [][]cell
	width int
}

// Cost returns the minimum cumulative cost to reach row p, column j,
// or false if that cell was never reached.
func (t *Table) Cost(p, j int) (int32, bool) {
	if p < 0 || p >= len(t.cells) || j < 0 || j >= t.width {
		return 0, false
	}
	c := t.cells[p][j]
	if c.cost >= infCost {
		return 0, false
	}
	return c.cost, true
}

// Step is one resolved edge of a best path, naming the lattice
// position and choice index a caller can resolve back to a
// lattice.Candidate.
type Step struct {
	Position int
	Choice   int
}

// Path is nil when no path exists (§4.6: dp[L+1][0].cost stays +INF),
// which can only happen for empty input or an input containing a
// position with no candidates at all.
type Path []Step

// BuildTable computes the dense DP grid for l, per §4.6.
//
// The cost accounting intentionally double-counts: a candidate's own
// cost is charged once when its cell is first created (as the "right"
// side of a transition from its predecessor, or from BOS) and again
// when it is later used to extend the path further (as the "left"
// side of the next transition, or the final transition to EOS). Every
// morpheme in the returned path is charged twice, including the first
// and the last. This mirrors the reference behaviour this package is
// ported from and must not be "corrected" — doing so would change
// which paths rank best.
func BuildTable(l *lattice.Lattice, lex *lexicon.Lexicon) *Table {
	length := l.Len()
	width := 0
	for p := 0; p < length; p++ {
		if n := len(l.Candidates(p)); n > width {
			width = n
		}
	}
	if width == 0 {
		width = 1
	}

	dp := make([][]cell, length+2)
	for i := range dp {
		dp[i] = make([]cell, width)
		for j := range dp[i] {
			dp[i][j] = cell{cost: infCost}
		}
	}
	dp[0][0] = cell{cost: 0}

	for j, cand := range l.Candidates(0) {
		right, ok := morphemeOf(lex, cand)
		if !ok {
			continue
		}
		cost := int32(lex.TransitionCost(lexicon.BOSEOSContextID, right.RightContextID)) + int32(right.Cost)
		if cost < dp[1][j].cost {
			dp[1][j] = cell{cost: cost, backPos: nodeBOS, backJ: 0}
		}
	}

	for p := 0; p < length; p++ {
		for j, leftCand := range l.Candidates(p) {
			before := dp[p+1][j]
			if before.cost >= infCost {
				continue
			}
			left, ok := morphemeOf(lex, leftCand)
			if !ok {
				continue
			}
			w := leftCand.Length
			if w <= 0 {
				continue
			}

			if p+w >= length {
				cost := before.cost + int32(lex.TransitionCost(left.LeftContextID, lexicon.BOSEOSContextID)) + int32(left.Cost)
				if cost < dp[p+w+1][0].cost {
					dp[p+w+1][0] = cell{cost: cost, backPos: p + 1, backJ: j}
				}
				continue
			}

			for k, rightCand := range l.Candidates(p + w) {
				right, ok := morphemeOf(lex, rightCand)
				if !ok {
					continue
				}
				cost := before.cost +
					int32(lex.TransitionCost(left.LeftContextID, right.RightContextID)) +
					int32(left.Cost) + int32(right.Cost)
				if cost < dp[p+1+w][k].cost {
					dp[p+1+w][k] = cell{cost: cost, backPos: p + 1, backJ: j}
				}
			}
		}
	}

	return &Table{cells: dp, width: width}
}

// Solve computes the minimum-cost path through l and returns it as an
// ordered list of lattice coordinates, or nil if no path exists.
func Solve(l *lattice.Lattice, lex *lexicon.Lexicon) Path {
	t := BuildTable(l, lex)
	return t.BestPath()
}

// BestPath backtracks from EOS to BOS over an already-built table.
func (t *Table) BestPath() Path {
	length := len(t.cells) - 2
	final := t.cells[length+1][0]
	if final.cost >= infCost {
		return nil
	}

	var path Path
	pos, choice := length+1, 0
	for {
		c := t.cells[pos][choice]
		if c.backPos == nodeBOS {
			break
		}
		path = append(path, Step{Position: c.backPos - 1, Choice: c.backJ})
		pos, choice = c.backPos, c.backJ
	}
	reverse(path)
	return path
}

func reverse(path Path) {
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
}

// morphemeOf resolves a candidate's underlying cost record, whichever
// of the known/unknown tables it lives in.
func morphemeOf(lex *lexicon.Lexicon, c lattice.Candidate) (lexicon.Morpheme, bool) {
	if c.Kind == lattice.Known {
		return lex.KnownMorpheme(c.ID)
	}
	return lex.UnknownMorpheme(c.Class, c.ID)
}

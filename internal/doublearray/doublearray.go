// Package doublearray implements the minimal two-array encoding of the
// lexicon's surface-form trie: a dense base/check pair supporting
// exact-match and common-prefix-walk queries in O(length of the probe
// string), independent of dictionary size.
package doublearray

import (
	"fmt"
	"sort"

	"github.com/morphgo/kaiseki/internal/cpt"
)

// indexRoot is the fixed root state. Index 0 is never a valid state;
// it is reserved so that check[i] == 0 can double as "slot i is free".
const indexRoot = 1

// termChar is the synthetic terminator consumed by Stop/ExactMatch.
const termChar = rune(0)

// DoubleArray is a read-only, immutable-after-build trie encoding.
type DoubleArray struct {
	codes     []rune         // codes[i] is the scalar assigned code i; codes[0] == '\0'
	codeIndex map[rune]int32 // reverse lookup of codes
	base      []int32
	check     []int32
}

// TransitionError enumerates the lattice walker's expected, non-fatal
// "no match from here" signals. They carry no payload and allocate
// nothing so that a failed probe is as cheap as a possible one.
type TransitionError struct{ kind string }

func (e *TransitionError) Error() string { return "doublearray: " + e.kind }

var (
	ErrUnknownChar    = &TransitionError{"unknown character"}
	ErrOutOfBounds    = &TransitionError{"transition out of bounds"}
	ErrCheckMismatch  = &TransitionError{"check mismatch"}
	ErrAlreadyStopped = &TransitionError{"state already terminal"}
)

// ConstructionError reports a build-time invariant violation. Building
// aborts rather than producing a silently malformed trie.
type ConstructionError struct{ msg string }

func (e *ConstructionError) Error() string { return "doublearray: " + e.msg }

// CodeOf returns the code assigned to c, if any.
func (d *DoubleArray) CodeOf(c rune) (int32, bool) {
	code, ok := d.codeIndex[c]
	return code, ok
}

// Codes, Base and Check expose the raw arrays for the artifact codec.
// Callers must treat the returned slices as read-only.
func (d *DoubleArray) Codes() []rune  { return d.codes }
func (d *DoubleArray) Base() []int32  { return d.base }
func (d *DoubleArray) Check() []int32 { return d.check }

// FromParts reconstructs a DoubleArray from codec-deserialised arrays
// without re-running construction.
func FromParts(codes []rune, base, check []int32) *DoubleArray {
	codeIndex := make(map[rune]int32, len(codes))
	for i, c := range codes {
		codeIndex[c] = int32(i)
	}
	return &DoubleArray{codes: codes, codeIndex: codeIndex, base: base, check: check}
}

// NumStates returns the size of the base/check arrays (for diagnostics
// and the artifact codec, not a query primitive).
func (d *DoubleArray) NumStates() int { return len(d.base) }

// Transition attempts state s --c--> t. The returned terminalID is
// non-zero (with a nil error) when t is itself terminal, i.e. carries a
// negative base encoding a morpheme ID.
func (d *DoubleArray) Transition(s int32, c rune) (t int32, terminalID int32, err error) {
	code, ok := d.codeIndex[c]
	if !ok {
		return 0, 0, ErrUnknownChar
	}
	if int(s) >= len(d.base) {
		return 0, 0, ErrOutOfBounds
	}
	baseS := d.base[s]
	t = baseS + code
	if t < 0 {
		return 0, 0, ErrAlreadyStopped
	}
	if int(t) >= len(d.check) {
		return 0, 0, ErrOutOfBounds
	}
	if d.check[t] != s {
		return 0, 0, ErrCheckMismatch
	}
	if d.base[t] < 0 {
		return t, -d.base[t], nil
	}
	return t, 0, nil
}

// Stop probes the '\0' transition from s, the encoding of "does a
// surface form end exactly here". ok is true iff s is terminal.
func (d *DoubleArray) Stop(s int32) (id int32, ok bool) {
	_, terminalID, err := d.Transition(s, termChar)
	if err != nil || terminalID == 0 {
		return 0, false
	}
	return terminalID, true
}

// ExactMatch walks surface from the root, then probes '\0'. It returns
// the terminal morpheme ID, or ok=false if surface is not a complete
// entry in the trie.
func (d *DoubleArray) ExactMatch(surface string) (id int32, ok bool) {
	s := int32(indexRoot)
	for _, c := range surface {
		next, _, err := d.Transition(s, c)
		if err != nil {
			return 0, false
		}
		s = next
	}
	return d.Stop(s)
}

// Visitor receives one common-prefix match: the morpheme ID stamped on
// the trie's '\0' sink and the number of scalars consumed to reach it.
type Visitor func(id int32, length int)

// CommonPrefixWalk walks the trie consuming scalars of text starting at
// offset start, invoking visit for every prefix of text[start:] that is
// a complete trie entry. It stops at the first failed transition.
// startable reports whether the very first transition succeeded (the
// caller uses this to decide whether Fallback unknown generation
// should run for a position the trie knows nothing about).
func (d *DoubleArray) CommonPrefixWalk(text []rune, start int, visit Visitor) (startable bool) {
	s := int32(indexRoot)
	for i := start; i < len(text); i++ {
		next, _, err := d.Transition(s, text[i])
		if err != nil {
			return i > start
		}
		s = next
		if id, ok := d.Stop(s); ok {
			visit(id, i-start+1)
		}
	}
	return true
}

// Builder accumulates base/check state while walking a cpt.Tree
// depth-first. It is not reusable across trees.
type Builder struct {
	codes     []rune
	codeIndex map[rune]int32
	base      []int32
	check     []int32
	cursor    int32 // monotonic search cursor, avoids O(n^2) rescans
}

// Build encodes tree into a DoubleArray. It is the only entry point;
// construction failures (a missing cached state, internal duplicate
// base/check writes) abort with a ConstructionError. Empty and
// duplicate surfaces never reach Build: cpt.Tree.Append rejects them.
func Build(tree *cpt.Tree) (*DoubleArray, error) {
	b := &Builder{
		codeIndex: make(map[rune]int32),
		base:      []int32{0, 1},
		check:     []int32{0, 0},
		cursor:    indexRoot + 1,
	}
	b.codeIndex[termChar] = 0
	b.codes = []rune{termChar}

	entries := tree.DFSEntries()
	b.assignCodes(entries)

	stateOf := make(map[string]int32)

	for _, e := range entries {
		if e.Node.CanStop() {
			// Terminal nodes are sinks; their single incoming edge was
			// already wired by the parent that reached them.
			continue
		}

		if e.Prefix == "" {
			root := e.Node
			for _, c := range root.Children() {
				code := b.codeIndex[c]
				t := int32(indexRoot) + code
				if err := b.setCheck(t, indexRoot); err != nil {
					return nil, err
				}
				stateOf[e.Prefix+string(c)] = t
			}
			continue
		}

		s, ok := stateOf[e.Prefix]
		if !ok {
			return nil, &ConstructionError{fmt.Sprintf("no cached state for prefix %q", e.Prefix)}
		}
		offset := b.findNextBase(e.Node)
		if err := b.setBase(s, offset); err != nil {
			return nil, err
		}
		for _, c := range e.Node.Children() {
			code := b.codeIndex[c]
			t := b.base[s] + code
			if err := b.setCheck(t, s); err != nil {
				return nil, err
			}
			child := e.Node.Child(c)
			if child.CanStop() {
				if err := b.setBase(t, -int32(child.ID)); err != nil {
					return nil, err
				}
			} else {
				stateOf[e.Prefix+string(c)] = t
			}
		}
	}

	return &DoubleArray{
		codes:     b.codes,
		codeIndex: b.codeIndex,
		base:      b.base,
		check:     b.check,
	}, nil
}

// assignCodes gives every scalar appearing anywhere in entries a stable
// code, sorted ascending (codes[0] == '\0' already holds that spot).
func (b *Builder) assignCodes(entries []cpt.Entry) {
	seen := make(map[rune]struct{})
	for _, e := range entries {
		for _, r := range e.Prefix {
			seen[r] = struct{}{}
		}
	}
	var runes []rune
	for r := range seen {
		if r == termChar {
			continue
		}
		runes = append(runes, r)
	}
	sort.Slice(runes, func(i, j int) bool { return runes[i] < runes[j] })
	for _, r := range runes {
		b.codeIndex[r] = int32(len(b.codes))
		b.codes = append(b.codes, r)
	}
}

func (b *Builder) grow(size int32) {
	if int32(len(b.base)) >= size {
		return
	}
	// append grows the backing arrays geometrically, so repeated small
	// extensions do not reallocate every time; len stays exactly size.
	extra := int(size) - len(b.base)
	b.base = append(b.base, make([]int32, extra)...)
	b.check = append(b.check, make([]int32, extra)...)
}

func (b *Builder) setBase(index int32, value int32) error {
	b.grow(index + 1)
	if b.base[index] != 0 {
		return &ConstructionError{fmt.Sprintf("base[%d] already written (have %d, want %d)", index, b.base[index], value)}
	}
	b.base[index] = value
	return nil
}

func (b *Builder) setCheck(index int32, value int32) error {
	b.grow(index + 1)
	if b.check[index] != 0 {
		return &ConstructionError{fmt.Sprintf("check[%d] already written (have %d, want %d)", index, b.check[index], value)}
	}
	b.check[index] = value
	return nil
}

// findNextBase finds the smallest base offset p - minCode such that
// every child of node can be written without colliding with an
// occupied check slot, starting the search from the builder's cursor
// rather than rescanning from the beginning every time.
func (b *Builder) findNextBase(node *cpt.Node) int32 {
	minChar, _ := node.MinChild()
	minCode := b.codeIndex[minChar]

	children := node.Children()
	offsets := make([]int32, len(children))
	for i, c := range children {
		offsets[i] = b.codeIndex[c] - minCode
	}

	p := b.cursor
	if p < indexRoot+1 {
		p = indexRoot + 1
	}
	for {
		collision := false
		for _, off := range offsets {
			idx := p + off
			if int(idx) < len(b.check) && b.check[idx] != 0 {
				collision = true
				break
			}
		}
		if !collision {
			break
		}
		p++
	}
	b.cursor = p
	return p - minCode
}

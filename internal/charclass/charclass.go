// Package charclass implements the character-class table that governs
// unknown-word synthesis: which code points belong to which named
// bucket, and how a run of same-class scalars should be coalesced into
// a single unknown-word candidate.
package charclass

import "sort"

// DefaultClass is used when no range in the classifier matches a
// scalar.
const DefaultClass = "DEFAULT"

// InvokeTiming controls when a class's unknown-word generator fires.
type InvokeTiming int

const (
	// Fallback fires only when the trie cannot consume even the first
	// scalar at this position.
	Fallback InvokeTiming = iota
	// Always fires unconditionally, in addition to any trie match.
	Always
)

// Definition is one named character class.
type Definition struct {
	Class            string
	Timing           InvokeTiming
	GroupBySameKind  bool
	Len              int // 0 == unbounded
	Compatibilities  map[string]struct{}
}

// CompatibleWith reports whether className may be coalesced into a run
// started by this class.
func (d *Definition) CompatibleWith(className string) bool {
	if d.Class == className {
		return true
	}
	_, ok := d.Compatibilities[className]
	return ok
}

// codeRange is an inclusive code-point range: [lo, hi].
type codeRange struct {
	lo, hi rune
	class  string
}

func (r codeRange) contains(c rune) bool { return c >= r.lo && c <= r.hi }

// Classifier maps code points to classes via an ordered list of ranges,
// falling back to DefaultClass when nothing matches.
type Classifier struct {
	defs   map[string]*Definition
	ranges []codeRange
}

// New builds a Classifier from the parsed class definitions and ranges
// (either may be nil). It adds no DefaultClass definition of its own;
// the loader always registers one.
func New(defs map[string]*Definition, ranges []codeRange) *Classifier {
	return &Classifier{defs: defs, ranges: ranges}
}

// AddRange registers a range -> class mapping. Ranges are searched in
// registration order; the first match wins.
func (c *Classifier) AddRange(lo, hi rune, class string) {
	c.ranges = append(c.ranges, codeRange{lo, hi, class})
}

// AddDefinition registers (or replaces) a named class definition.
func (c *Classifier) AddDefinition(d *Definition) {
	if c.defs == nil {
		c.defs = make(map[string]*Definition)
	}
	c.defs[d.Class] = d
}

// Definition returns the named class definition.
func (c *Classifier) Definition(name string) (*Definition, bool) {
	d, ok := c.defs[name]
	return d, ok
}

// RangeEntry is one registered code-point range, exported for the
// artifact codec.
type RangeEntry struct {
	Lo, Hi rune
	Class  string
}

// Ranges returns the registered ranges in registration order.
func (c *Classifier) Ranges() []RangeEntry {
	out := make([]RangeEntry, len(c.ranges))
	for i, r := range c.ranges {
		out[i] = RangeEntry{Lo: r.lo, Hi: r.hi, Class: r.class}
	}
	return out
}

// Definitions returns every registered class definition, sorted by
// name so callers (the artifact codec) get a deterministic order.
func (c *Classifier) Definitions() []*Definition {
	names := make([]string, 0, len(c.defs))
	for name := range c.defs {
		names = append(names, name)
	}
	sort.Strings(names)
	out := make([]*Definition, len(names))
	for i, name := range names {
		out[i] = c.defs[name]
	}
	return out
}

// Classify returns the definition governing c's code point.
func (c *Classifier) Classify(r rune) *Definition {
	name := DefaultClass
	for _, rg := range c.ranges {
		if rg.contains(r) {
			name = rg.class
			break
		}
	}
	if d, ok := c.defs[name]; ok {
		return d
	}
	// A DEFAULT entry is required of every char.def; if the loader
	// somehow produced a classifier without one, that is a loader bug,
	// not a recoverable runtime condition.
	panic("charclass: no definition for class " + name)
}

// TakeUnknownRun extracts the substring of text (a rune slice) starting
// at start that the class def governs as a single unknown-word
// candidate, per §7.1.
func (c *Classifier) TakeUnknownRun(def *Definition, text []rune, start int) []rune {
	if !def.GroupBySameKind {
		if def.Len == 0 || start >= len(text) {
			return nil
		}
		end := start + def.Len
		if end > len(text) {
			end = len(text)
		}
		return text[start:end]
	}

	count := 0
	i := start
	for i < len(text) {
		if def.Len != 0 && count >= def.Len {
			break
		}
		className := c.classNameOf(text[i])
		if !def.CompatibleWith(className) {
			break
		}
		count++
		i++
	}
	return text[start:i]
}

func (c *Classifier) classNameOf(r rune) string {
	for _, rg := range c.ranges {
		if rg.contains(r) {
			return rg.class
		}
	}
	return DefaultClass
}

package lexicon

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAddKnownAssignsSequentialIDs(t *testing.T) {
	lex := New()
	id1 := lex.AddKnown(Morpheme{Cost: 100})
	id2 := lex.AddKnown(Morpheme{Cost: 50})

	assert.Equal(t, 1, id1)
	assert.Equal(t, 2, id2)

	m, ok := lex.KnownMorpheme(id2)
	assert.True(t, ok)
	assert.EqualValues(t, 50, m.Cost)
}

// TestHomonymClosure covers §8's homonym closure invariant: every ID
// is in its own group, and two IDs' groups are equal iff they share a
// surface (RegisterHomonym is how the loader records that).
func TestHomonymClosure(t *testing.T) {
	lex := New()
	id1 := lex.AddKnown(Morpheme{Cost: 1})
	id7 := lex.AddKnown(Morpheme{Cost: 2})
	lone := lex.AddKnown(Morpheme{Cost: 3})

	lex.RegisterHomonym([]int{id1, id7})

	assert.Contains(t, lex.HomonymsOf(id1), id1)
	assert.Contains(t, lex.HomonymsOf(id1), id7)
	assert.Equal(t, lex.HomonymsOf(id1), lex.HomonymsOf(id7))
	assert.Equal(t, []int{lone}, lex.HomonymsOf(lone))
}

func TestTransitionCostDefaultsToMinusOne(t *testing.T) {
	lex := New()
	assert.EqualValues(t, -1, lex.TransitionCost(0, 0))

	lex.Matrix = [][]int16{{42}}
	assert.EqualValues(t, 42, lex.TransitionCost(0, 0))
	assert.EqualValues(t, -1, lex.TransitionCost(0, 5))
	assert.EqualValues(t, -1, lex.TransitionCost(5, 0))
}

func TestUnknownTemplatesScopedPerClass(t *testing.T) {
	lex := New()
	id1 := lex.AddUnknown("ALPHA", Morpheme{Cost: 10})
	id2 := lex.AddUnknown("ALPHA", Morpheme{Cost: 20})
	otherID := lex.AddUnknown("NUMERIC", Morpheme{Cost: 30})

	assert.Equal(t, 1, id1)
	assert.Equal(t, 2, id2)
	assert.Equal(t, 1, otherID)

	m, ok := lex.UnknownMorpheme("ALPHA", id2)
	assert.True(t, ok)
	assert.EqualValues(t, 20, m.Cost)

	_, ok = lex.UnknownMorpheme("ALPHA", 99)
	assert.False(t, ok)
}

func TestKnownMorphemeBoundsChecked(t *testing.T) {
	lex := New()
	_, ok := lex.KnownMorpheme(0)
	assert.False(t, ok)
	_, ok = lex.KnownMorpheme(-1)
	assert.False(t, ok)
	_, ok = lex.KnownMorpheme(1)
	assert.False(t, ok)
}

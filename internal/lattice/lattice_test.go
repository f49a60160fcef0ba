package lattice

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/morphgo/kaiseki/internal/charclass"
	"github.com/morphgo/kaiseki/internal/cpt"
	"github.com/morphgo/kaiseki/internal/doublearray"
	"github.com/morphgo/kaiseki/internal/lexicon"
)

func buildDA(t *testing.T, surfaces map[string]int) *doublearray.DoubleArray {
	t.Helper()
	tree := cpt.New()
	for s, id := range surfaces {
		require.NoError(t, tree.Append(id, s))
	}
	da, err := doublearray.Build(tree)
	require.NoError(t, err)
	return da
}

func fallbackDefaultLexicon() *lexicon.Lexicon {
	lex := lexicon.New()
	classifier := charclass.New(nil, nil)
	classifier.AddDefinition(&charclass.Definition{
		Class:           charclass.DefaultClass,
		Timing:          charclass.Fallback,
		GroupBySameKind: false,
		Len:             1,
		Compatibilities: map[string]struct{}{},
	})
	lex.Classifier = classifier
	return lex
}

// TestParseSingleKnownWord covers spec scenario 1.
func TestParseSingleKnownWord(t *testing.T) {
	da := buildDA(t, map[string]int{"a": 1})
	lex := fallbackDefaultLexicon()
	lex.AddKnown(lexicon.Morpheme{Cost: 100})
	lex.RegisterHomonym([]int{1})

	l := Parse([]rune("a"), da, lex)

	cands := l.Candidates(0)
	require.Len(t, cands, 1)
	assert.Equal(t, Known, cands[0].Kind)
	assert.Equal(t, 1, cands[0].ID)
	assert.Equal(t, 1, cands[0].Length)
}

// TestParseHomonymExpansion covers spec scenario 4: "a" assigned IDs
// {1, 7}, both must appear at position 0 in loader order.
func TestParseHomonymExpansion(t *testing.T) {
	da := buildDA(t, map[string]int{"a": 1})
	lex := fallbackDefaultLexicon()
	lex.AddKnown(lexicon.Morpheme{Cost: 100})
	for i := 1; i < 7; i++ {
		lex.AddKnown(lexicon.Morpheme{})
	}
	lex.AddKnown(lexicon.Morpheme{Cost: 50})
	lex.RegisterHomonym([]int{1, 7})

	l := Parse([]rune("a"), da, lex)
	cands := l.Candidates(0)
	require.Len(t, cands, 2)
	assert.Equal(t, 1, cands[0].ID)
	assert.Equal(t, 7, cands[1].ID)
}

// TestParseFallbackUnknownWhenNoMatch covers the boundary behaviour:
// a Fallback-timed class with len > 0 synthesises an Unknown run when
// the trie has no match at all starting at that position.
func TestParseFallbackUnknownWhenNoMatch(t *testing.T) {
	da := buildDA(t, map[string]int{"a": 1})
	lex := fallbackDefaultLexicon()
	lex.AddKnown(lexicon.Morpheme{Cost: 100})
	lex.RegisterHomonym([]int{1})
	lex.AddUnknown(charclass.DefaultClass, lexicon.Morpheme{Cost: 500})

	l := Parse([]rune("z"), da, lex)
	cands := l.Candidates(0)
	require.Len(t, cands, 1)
	assert.Equal(t, Unknown, cands[0].Kind)
	assert.Equal(t, charclass.DefaultClass, cands[0].Class)
	assert.Equal(t, 1, cands[0].Length)
}

// TestParseAlwaysTimingFiresAlongsideKnownMatch covers spec scenario 5
// style behaviour generalised: an Always-timing class emits its
// Unknown candidate in addition to any DA match at the same position.
func TestParseAlwaysTimingFiresAlongsideKnownMatch(t *testing.T) {
	da := buildDA(t, map[string]int{"a": 1})
	lex := lexicon.New()
	classifier := charclass.New(nil, nil)
	classifier.AddDefinition(&charclass.Definition{
		Class:           charclass.DefaultClass,
		Timing:          charclass.Always,
		GroupBySameKind: false,
		Len:             1,
		Compatibilities: map[string]struct{}{},
	})
	lex.Classifier = classifier
	lex.AddKnown(lexicon.Morpheme{Cost: 100})
	lex.RegisterHomonym([]int{1})
	lex.AddUnknown(charclass.DefaultClass, lexicon.Morpheme{Cost: 500})

	l := Parse([]rune("a"), da, lex)
	cands := l.Candidates(0)

	var kinds []Kind
	for _, c := range cands {
		kinds = append(kinds, c.Kind)
	}
	assert.Contains(t, kinds, Known)
	assert.Contains(t, kinds, Unknown)
}

// TestParseSpaceRunCoalescesAndResumes covers spec scenario 5 exactly:
// SPACE is Always-timing, group_by_same_kind, len 0; "  x" should
// produce a length-2 Unknown run at position 0 and normal candidates
// resuming at position 2.
func TestParseSpaceRunCoalescesAndResumes(t *testing.T) {
	da := buildDA(t, map[string]int{"x": 1})
	lex := lexicon.New()
	classifier := charclass.New(nil, nil)
	classifier.AddDefinition(&charclass.Definition{
		Class:           charclass.DefaultClass,
		Timing:          charclass.Fallback,
		GroupBySameKind: false,
		Len:             1,
		Compatibilities: map[string]struct{}{},
	})
	classifier.AddDefinition(&charclass.Definition{
		Class:           "SPACE",
		Timing:          charclass.Always,
		GroupBySameKind: true,
		Len:             0,
		Compatibilities: map[string]struct{}{"SPACE": {}},
	})
	classifier.AddRange(' ', ' ', "SPACE")
	lex.Classifier = classifier
	lex.AddKnown(lexicon.Morpheme{Cost: 10})
	lex.RegisterHomonym([]int{1})
	lex.AddUnknown("SPACE", lexicon.Morpheme{Cost: 5})

	l := Parse([]rune("  x"), da, lex)

	spaceCands := l.Candidates(0)
	require.Len(t, spaceCands, 1)
	assert.Equal(t, Unknown, spaceCands[0].Kind)
	assert.Equal(t, 2, spaceCands[0].Length)

	xCands := l.Candidates(2)
	require.Len(t, xCands, 1)
	assert.Equal(t, Known, xCands[0].Kind)
	assert.Equal(t, 1, xCands[0].Length)
}

func TestLenAndOutOfRangeCandidates(t *testing.T) {
	da := buildDA(t, map[string]int{"a": 1})
	lex := fallbackDefaultLexicon()
	lex.AddKnown(lexicon.Morpheme{Cost: 100})
	lex.RegisterHomonym([]int{1})

	l := Parse([]rune("a"), da, lex)
	assert.Equal(t, 1, l.Len())
	assert.Nil(t, l.Candidates(-1))
	assert.Nil(t, l.Candidates(5))
}

package artifact

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/morphgo/kaiseki/internal/charclass"
	"github.com/morphgo/kaiseki/internal/cpt"
	"github.com/morphgo/kaiseki/internal/doublearray"
	"github.com/morphgo/kaiseki/internal/featuremap"
	"github.com/morphgo/kaiseki/internal/lexicon"
)

func buildSampleDA(t *testing.T) *doublearray.DoubleArray {
	t.Helper()
	tree := cpt.New()
	require.NoError(t, tree.Append(1, "a"))
	require.NoError(t, tree.Append(2, "ab"))
	da, err := doublearray.Build(tree)
	require.NoError(t, err)
	return da
}

func buildSampleLexicon(t *testing.T) *lexicon.Lexicon {
	t.Helper()
	lex := lexicon.New()
	lex.Matrix = [][]int16{{0, -1}, {-1, 5}}
	id1 := lex.AddKnown(lexicon.Morpheme{LeftContextID: 0, RightContextID: 0, Cost: 100})
	id7 := lex.AddKnown(lexicon.Morpheme{LeftContextID: 1, RightContextID: 1, Cost: 50})
	lex.RegisterHomonym([]int{id1, id7})

	classifier := charclass.New(nil, nil)
	classifier.AddDefinition(&charclass.Definition{
		Class:           charclass.DefaultClass,
		Timing:          charclass.Fallback,
		GroupBySameKind: false,
		Len:             1,
		Compatibilities: map[string]struct{}{},
	})
	classifier.AddDefinition(&charclass.Definition{
		Class:           "ALPHA",
		Timing:          charclass.Fallback,
		GroupBySameKind: true,
		Len:             0,
		Compatibilities: map[string]struct{}{"ALPHA": {}, "NUMERIC": {}},
	})
	classifier.AddRange('a', 'z', "ALPHA")
	lex.Classifier = classifier
	lex.AddUnknown("ALPHA", lexicon.Morpheme{Cost: 30})

	return lex
}

func buildSampleFeatureMap(t *testing.T) *featuremap.FeatureMap {
	t.Helper()
	fm := featuremap.New()
	fm.AddKnown([]string{"名詞", "一般"})
	fm.AddKnown([]string{"名詞", "固有名詞"})
	fm.AddUnknown("ALPHA", []string{"記号"})
	return fm
}

// buildSampleBuildID derives the shared BuildID a real compile run
// would stamp across all three files, from a matching (da, lex, fm)
// triple.
func buildSampleBuildID(t *testing.T, da *doublearray.DoubleArray, lex *lexicon.Lexicon, fm *featuremap.FeatureMap) BuildID {
	t.Helper()
	build, err := NewBuildID(da, lex, fm)
	require.NoError(t, err)
	return build
}

func TestDoubleArrayRoundTrip(t *testing.T) {
	da := buildSampleDA(t)
	build := buildSampleBuildID(t, da, buildSampleLexicon(t), buildSampleFeatureMap(t))

	path := filepath.Join(t.TempDir(), "da.bin")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, WriteDoubleArray(f, build, da))
	require.NoError(t, f.Close())

	loaded, loadedBuild, err := LoadDoubleArray(path)
	require.NoError(t, err)
	assert.Equal(t, build, loadedBuild)

	id, ok := loaded.ExactMatch("ab")
	require.True(t, ok)
	assert.EqualValues(t, 2, id)
}

func TestLexiconRoundTrip(t *testing.T) {
	lex := buildSampleLexicon(t)
	build := buildSampleBuildID(t, buildSampleDA(t), lex, buildSampleFeatureMap(t))

	path := filepath.Join(t.TempDir(), "dict.bin")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, WriteLexicon(f, build, lex))
	require.NoError(t, f.Close())

	loaded, loadedBuild, err := LoadLexicon(path)
	require.NoError(t, err)
	assert.Equal(t, build, loadedBuild)

	m, ok := loaded.KnownMorpheme(1)
	require.True(t, ok)
	assert.EqualValues(t, 100, m.Cost)

	assert.ElementsMatch(t, []int{1, 2}, loaded.HomonymsOf(1))
	assert.EqualValues(t, 5, loaded.TransitionCost(1, 1))

	def, ok := loaded.Classifier.Definition("ALPHA")
	require.True(t, ok)
	assert.True(t, def.CompatibleWith("NUMERIC"))

	um, ok := loaded.UnknownMorpheme("ALPHA", 1)
	require.True(t, ok)
	assert.EqualValues(t, 30, um.Cost)
}

func TestFeatureMapRoundTrip(t *testing.T) {
	fm := buildSampleFeatureMap(t)
	build := buildSampleBuildID(t, buildSampleDA(t), buildSampleLexicon(t), fm)

	path := filepath.Join(t.TempDir(), "features.bin")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, WriteFeatureMap(f, build, fm))
	require.NoError(t, f.Close())

	loaded, loadedBuild, err := LoadFeatureMap(path)
	require.NoError(t, err)
	assert.Equal(t, build, loadedBuild)
	assert.Equal(t, []string{"名詞", "一般"}, loaded.Known(1))
	assert.Equal(t, []string{"記号"}, loaded.Unknown("ALPHA", 1))
}

func TestLoadDoubleArrayRejectsBadMagic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "da.bin")
	require.NoError(t, os.WriteFile(path, []byte("not an artifact file at all, long enough"), 0o644))

	_, _, err := LoadDoubleArray(path)
	assert.Error(t, err)
}

// TestDeterministicEncoding covers §8's determinism property at the
// codec layer: encoding the same lexicon twice produces byte-identical
// complex blocks, independent of Go's randomised map iteration order.
func TestDeterministicEncoding(t *testing.T) {
	lex := buildSampleLexicon(t)
	a, err := encodeDictComplex(lex)
	require.NoError(t, err)
	b, err := encodeDictComplex(lex)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

// TestBuildIDIsDeterministic covers §4.8's "bytes are bit-identical"
// requirement at the header-stamp level: two independently built
// (da, lex, fm) triples over identical inputs must derive the
// identical BuildID, and the full on-disk da.bin bytes (header
// included) must match too. This is the path TestDeterministicEncoding
// above does not reach, since it only hashes the complex block, never
// the header's Build field.
func TestBuildIDIsDeterministic(t *testing.T) {
	da1, lex1, fm1 := buildSampleDA(t), buildSampleLexicon(t), buildSampleFeatureMap(t)
	da2, lex2, fm2 := buildSampleDA(t), buildSampleLexicon(t), buildSampleFeatureMap(t)

	build1, err := NewBuildID(da1, lex1, fm1)
	require.NoError(t, err)
	build2, err := NewBuildID(da2, lex2, fm2)
	require.NoError(t, err)
	assert.Equal(t, build1, build2)

	var buf1, buf2 bytes.Buffer
	require.NoError(t, WriteDoubleArray(&buf1, build1, da1))
	require.NoError(t, WriteDoubleArray(&buf2, build2, da2))
	assert.Equal(t, buf1.Bytes(), buf2.Bytes())
}

func TestMergeParts(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "dict.bin.part-aa"), []byte("hello, "), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "dict.bin.part-ab"), []byte("world"), 0o644))

	out := filepath.Join(dir, "dict.bin")
	require.NoError(t, MergeParts(dir, "dict.bin.part-", out))

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "hello, world", string(data))
}

package featuremap

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAddKnownInternsAndResolves(t *testing.T) {
	fm := New()
	id := fm.AddKnown([]string{"名詞", "一般"})

	assert.Equal(t, []string{"名詞", "一般"}, fm.Known(id))
}

func TestSharedFeaturesInternOnce(t *testing.T) {
	fm := New()
	fm.AddKnown([]string{"名詞", "一般"})
	fm.AddKnown([]string{"名詞", "固有名詞"})

	assert.Len(t, fm.Pool(), 3)
}

func TestAddUnknownScopedPerClass(t *testing.T) {
	fm := New()
	id1 := fm.AddUnknown("ALPHA", []string{"記号"})
	id2 := fm.AddUnknown("NUMERIC", []string{"数"})

	assert.Equal(t, 1, id1)
	assert.Equal(t, 1, id2)
	assert.Equal(t, []string{"記号"}, fm.Unknown("ALPHA", id1))
	assert.Equal(t, []string{"数"}, fm.Unknown("NUMERIC", id2))
}

func TestUnknownOutOfRangeReturnsNil(t *testing.T) {
	fm := New()
	fm.AddUnknown("ALPHA", []string{"記号"})
	assert.Nil(t, fm.Unknown("ALPHA", 2))
	assert.Nil(t, fm.Unknown("NOPE", 1))
}

func TestFromPartsRoundTrip(t *testing.T) {
	fm := New()
	id := fm.AddKnown([]string{"名詞", "一般"})
	fm.AddUnknown("ALPHA", []string{"記号"})

	clone := FromParts(fm.Pool(), fm.KnownIndices(), fm.UnknownIndices())

	assert.Equal(t, fm.Known(id), clone.Known(id))
	assert.Equal(t, fm.Unknown("ALPHA", 1), clone.Unknown("ALPHA", 1))
}

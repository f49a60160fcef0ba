// Package featuremap implements the string-interned side table from
// morpheme ID to its feature tuple (part-of-speech, inflection, lemma,
// reading, ...). Known and unknown morphemes are looked up through
// separate sub-mappings, per §3.
package featuremap

// FeatureMap interns every distinct feature string once and stores
// per-morpheme feature tuples as index slices into that pool.
type FeatureMap struct {
	pool    []string
	index   map[string]int
	known   [][]int // index = known morpheme ID
	unknown map[string][][]int // index = (class, template ID - 1)
}

// New returns an empty FeatureMap. known[0] is a sentinel so that
// known morpheme IDs can be used directly as slice indices.
func New() *FeatureMap {
	return &FeatureMap{
		index:   make(map[string]int),
		known:   [][]int{nil},
		unknown: make(map[string][][]int),
	}
}

func (m *FeatureMap) intern(s string) int {
	if idx, ok := m.index[s]; ok {
		return idx
	}
	idx := len(m.pool)
	m.pool = append(m.pool, s)
	m.index[s] = idx
	return idx
}

// AddKnown interns features and appends them as the next known
// morpheme's feature tuple, returning the assigned ID. The caller
// (loader) must call this in exact lockstep with lexicon.AddKnown so
// IDs line up.
func (m *FeatureMap) AddKnown(features []string) int {
	id := len(m.known)
	m.known = append(m.known, m.internAll(features))
	return id
}

// AddUnknown interns features for an unknown-word template of class,
// returning its (per-class) template ID.
func (m *FeatureMap) AddUnknown(class string, features []string) int {
	entries := m.unknown[class]
	id := len(entries) + 1
	m.unknown[class] = append(entries, m.internAll(features))
	return id
}

func (m *FeatureMap) internAll(features []string) []int {
	idxs := make([]int, len(features))
	for i, f := range features {
		idxs[i] = m.intern(f)
	}
	return idxs
}

// Known resolves a known morpheme ID back to its feature strings.
func (m *FeatureMap) Known(id int) []string {
	if id <= 0 || id >= len(m.known) {
		return nil
	}
	return m.resolve(m.known[id])
}

// Unknown resolves an unknown template (class, templateID) to its
// feature strings.
func (m *FeatureMap) Unknown(class string, templateID int) []string {
	entries := m.unknown[class]
	i := templateID - 1
	if i < 0 || i >= len(entries) {
		return nil
	}
	return m.resolve(entries[i])
}

func (m *FeatureMap) resolve(idxs []int) []string {
	if idxs == nil {
		return nil
	}
	out := make([]string, len(idxs))
	for i, idx := range idxs {
		out[i] = m.pool[idx]
	}
	return out
}

// Pool returns the interned string table, for the artifact codec.
func (m *FeatureMap) Pool() []string { return m.pool }

// KnownIndices returns the raw per-ID index tuples, for the artifact
// codec.
func (m *FeatureMap) KnownIndices() [][]int { return m.known }

// UnknownIndices returns the raw per-class index tuples, for the
// artifact codec.
func (m *FeatureMap) UnknownIndices() map[string][][]int { return m.unknown }

// FromParts reconstructs a FeatureMap from codec-deserialised parts
// without re-interning (the pool is already deduplicated on disk).
func FromParts(pool []string, known [][]int, unknown map[string][][]int) *FeatureMap {
	index := make(map[string]int, len(pool))
	for i, s := range pool {
		index[s] = i
	}
	return &FeatureMap{pool: pool, index: index, known: known, unknown: unknown}
}

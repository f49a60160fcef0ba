// Package artifact implements the compiled, on-disk binary format for
// the three pieces a compile run produces: the double array (da.bin),
// the lexicon (dict.bin) and the feature map (features.bin). Files are
// little-endian, version-stamped, and loaded via mmap so that reading
// a multi-gigabyte dictionary costs no more than a handful of page
// faults rather than a full copy into the Go heap. See §4.8.
package artifact

import (
	"bytes"
	"compress/gzip"
	"encoding/binary"
	"encoding/gob"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strings"
	"unsafe"

	"github.com/edsrzf/mmap-go"
	"github.com/google/uuid"

	"github.com/morphgo/kaiseki/internal/charclass"
	"github.com/morphgo/kaiseki/internal/doublearray"
	"github.com/morphgo/kaiseki/internal/featuremap"
	"github.com/morphgo/kaiseki/internal/lexicon"
)

const formatVersion uint16 = 1

var (
	magicDA   = [4]byte{'K', 'D', 'A', '1'}
	magicDict = [4]byte{'K', 'D', 'I', '1'}
	magicFeat = [4]byte{'K', 'F', 'T', '1'}
)

// BuildID stamps a single compile run across all three files so a
// loader can refuse to mix artifacts from two different compiles. It
// is the only integrity check beyond per-field bounds checks, per
// §4.8's "no second pass to validate referential integrity".
//
// It must itself be a pure function of the compiled contents: §4.8
// requires that compiling the same loader inputs twice produces
// bit-identical files, and a random stamp would defeat that on its
// own. NewBuildID therefore derives it with uuid.NewSHA1 over the
// three payloads' deterministic encodings, rather than uuid.New.
type BuildID [16]byte

// NewBuildID derives the build stamp from da, lex and fm's own
// deterministic encodings, so identical compiled contents always
// yield the identical BuildID (and therefore identical bytes on
// disk), while still changing whenever the underlying dictionary
// does.
func NewBuildID(da *doublearray.DoubleArray, lex *lexicon.Lexicon, fm *featuremap.FeatureMap) (BuildID, error) {
	var seed bytes.Buffer

	daPayload, err := encodeDoubleArrayPayload(da)
	if err != nil {
		return BuildID{}, err
	}
	seed.Write(daPayload)

	if err := binary.Write(&seed, binary.LittleEndian, lex.Known); err != nil {
		return BuildID{}, fmt.Errorf("artifact: hash known table: %w", err)
	}
	dictComplex, err := encodeDictComplex(lex)
	if err != nil {
		return BuildID{}, err
	}
	seed.Write(dictComplex)

	featComplex, err := encodeFeatureComplex(fm)
	if err != nil {
		return BuildID{}, err
	}
	seed.Write(featComplex)

	return BuildID(uuid.NewSHA1(uuid.NameSpaceOID, seed.Bytes())), nil
}

// FormatError reports a file that doesn't match what this package
// writes: wrong magic, unsupported version, or a section running past
// the end of the file. Build IDs are returned, not compared, here;
// analyzer.Load checks them across the da.bin/dict.bin/features.bin
// triple.
type FormatError struct{ msg string }

func (e *FormatError) Error() string { return "artifact: " + e.msg }

type daHeader struct {
	Magic       [4]byte
	Version     uint16
	Build       BuildID
	CodesCount  int64
	BaseCount   int64
	CheckCount  int64
}

type dictHeader struct {
	Magic        [4]byte
	Version      uint16
	Build        BuildID
	KnownCount   int64
	ComplexBytes int64
}

type featHeader struct {
	Magic        [4]byte
	Version      uint16
	Build        BuildID
	ComplexBytes int64
}

// --- da.bin -----------------------------------------------------------

// WriteDoubleArray serialises da to w.
func WriteDoubleArray(w io.Writer, build BuildID, da *doublearray.DoubleArray) error {
	codes := da.Codes()
	base := da.Base()
	check := da.Check()

	header := daHeader{
		Magic:      magicDA,
		Version:    formatVersion,
		Build:      build,
		CodesCount: int64(len(codes)),
		BaseCount:  int64(len(base)),
		CheckCount: int64(len(check)),
	}
	if err := binary.Write(w, binary.LittleEndian, header); err != nil {
		return fmt.Errorf("artifact: write da header: %w", err)
	}
	payload, err := encodeDoubleArrayPayload(da)
	if err != nil {
		return err
	}
	if _, err := w.Write(payload); err != nil {
		return fmt.Errorf("artifact: write da payload: %w", err)
	}
	return nil
}

// encodeDoubleArrayPayload encodes da's codes/base/check arrays (but
// not the header) exactly as WriteDoubleArray lays them out on disk,
// so NewBuildID can hash the same bytes a load would later read back.
func encodeDoubleArrayPayload(da *doublearray.DoubleArray) ([]byte, error) {
	codes := da.Codes()
	codesI32 := make([]int32, len(codes))
	for i, c := range codes {
		codesI32[i] = int32(c)
	}

	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.LittleEndian, codesI32); err != nil {
		return nil, fmt.Errorf("artifact: encode da codes: %w", err)
	}
	if err := binary.Write(&buf, binary.LittleEndian, da.Base()); err != nil {
		return nil, fmt.Errorf("artifact: encode da base: %w", err)
	}
	if err := binary.Write(&buf, binary.LittleEndian, da.Check()); err != nil {
		return nil, fmt.Errorf("artifact: encode da check: %w", err)
	}
	return buf.Bytes(), nil
}

// LoadDoubleArray mmaps path and reinterprets its contents in place,
// without copying the base/check arrays onto the heap.
func LoadDoubleArray(path string) (*doublearray.DoubleArray, BuildID, error) {
	data, err := mapFile(path)
	if err != nil {
		return nil, BuildID{}, err
	}

	var header daHeader
	headerSize := binary.Size(header)
	if len(data) < headerSize {
		return nil, BuildID{}, &FormatError{"da.bin shorter than header"}
	}
	if err := binary.Read(bytes.NewReader(data[:headerSize]), binary.LittleEndian, &header); err != nil {
		return nil, BuildID{}, fmt.Errorf("artifact: read da header: %w", err)
	}
	if header.Magic != magicDA {
		return nil, BuildID{}, &FormatError{"da.bin: bad magic"}
	}
	if header.Version != formatVersion {
		return nil, BuildID{}, &FormatError{fmt.Sprintf("da.bin: unsupported version %d", header.Version)}
	}

	off := headerSize
	codesI32, off, err := sliceAt[int32](data, off, int(header.CodesCount))
	if err != nil {
		return nil, BuildID{}, err
	}
	base, off, err := sliceAt[int32](data, off, int(header.BaseCount))
	if err != nil {
		return nil, BuildID{}, err
	}
	check, _, err := sliceAt[int32](data, off, int(header.CheckCount))
	if err != nil {
		return nil, BuildID{}, err
	}

	codes := make([]rune, len(codesI32))
	for i, c := range codesI32 {
		codes[i] = rune(c)
	}
	return doublearray.FromParts(codes, base, check), header.Build, nil
}

// --- dict.bin -----------------------------------------------------------

type homonymGroup struct{ IDs []int32 }

type unknownClassBlock struct {
	Class   string
	Entries []lexicon.UnknownEntry
}

type classDefBlock struct {
	Class           string
	Timing          int32
	GroupBySameKind bool
	Len             int32
	Compat          []string
}

type dictComplex struct {
	Homonyms  []homonymGroup
	GroupOf   []int32 // index into Homonyms, per known ID; -1 if ungrouped
	Matrix    [][]int16
	Unknown   []unknownClassBlock
	ClassDefs []classDefBlock
	Ranges    []charclass.RangeEntry
}

// WriteLexicon serialises lex to w.
func WriteLexicon(w io.Writer, build BuildID, lex *lexicon.Lexicon) error {
	complexBlock, err := encodeDictComplex(lex)
	if err != nil {
		return err
	}

	header := dictHeader{
		Magic:        magicDict,
		Version:      formatVersion,
		Build:        build,
		KnownCount:   int64(len(lex.Known)),
		ComplexBytes: int64(len(complexBlock)),
	}
	if err := binary.Write(w, binary.LittleEndian, header); err != nil {
		return fmt.Errorf("artifact: write dict header: %w", err)
	}
	if err := binary.Write(w, binary.LittleEndian, lex.Known); err != nil {
		return fmt.Errorf("artifact: write known table: %w", err)
	}
	if _, err := w.Write(complexBlock); err != nil {
		return fmt.Errorf("artifact: write dict complex block: %w", err)
	}
	return nil
}

func encodeDictComplex(lex *lexicon.Lexicon) ([]byte, error) {
	groupIndex := make(map[int]int)
	var groups []homonymGroup
	groupOf := make([]int32, len(lex.Known))
	for id := range groupOf {
		groupOf[id] = -1
	}
	for id := 1; id < len(lex.Known); id++ {
		group := lex.HomonymsOf(id)
		key := group[0]
		idx, ok := groupIndex[key]
		if !ok {
			idx = len(groups)
			groupIndex[key] = idx
			ids := make([]int32, len(group))
			for i, g := range group {
				ids[i] = int32(g)
			}
			groups = append(groups, homonymGroup{IDs: ids})
		}
		groupOf[id] = int32(idx)
	}

	var unknown []unknownClassBlock
	for _, class := range sortedKeys(lex.Unknown) {
		unknown = append(unknown, unknownClassBlock{Class: class, Entries: lex.Unknown[class]})
	}

	var classDefs []classDefBlock
	if lex.Classifier != nil {
		for _, def := range lex.Classifier.Definitions() {
			var compat []string
			for c := range def.Compatibilities {
				compat = append(compat, c)
			}
			compat = sortStringSlice(compat)
			classDefs = append(classDefs, classDefBlock{
				Class:           def.Class,
				Timing:          int32(def.Timing),
				GroupBySameKind: def.GroupBySameKind,
				Len:             int32(def.Len),
				Compat:          compat,
			})
		}
	}

	var ranges []charclass.RangeEntry
	if lex.Classifier != nil {
		ranges = lex.Classifier.Ranges()
	}

	payload := dictComplex{
		Homonyms:  groups,
		GroupOf:   groupOf,
		Matrix:    lex.Matrix,
		Unknown:   unknown,
		ClassDefs: classDefs,
		Ranges:    ranges,
	}
	return gobGzip(payload)
}

// LoadLexicon mmaps path and reconstructs a Lexicon. The known-morpheme
// table reads straight out of the mapping; everything else (small,
// variable-length) is gob-decoded once into ordinary heap structures.
func LoadLexicon(path string) (*lexicon.Lexicon, BuildID, error) {
	data, err := mapFile(path)
	if err != nil {
		return nil, BuildID{}, err
	}

	var header dictHeader
	headerSize := binary.Size(header)
	if len(data) < headerSize {
		return nil, BuildID{}, &FormatError{"dict.bin shorter than header"}
	}
	if err := binary.Read(bytes.NewReader(data[:headerSize]), binary.LittleEndian, &header); err != nil {
		return nil, BuildID{}, fmt.Errorf("artifact: read dict header: %w", err)
	}
	if header.Magic != magicDict {
		return nil, BuildID{}, &FormatError{"dict.bin: bad magic"}
	}
	if header.Version != formatVersion {
		return nil, BuildID{}, &FormatError{fmt.Sprintf("dict.bin: unsupported version %d", header.Version)}
	}

	known, off, err := sliceAt[lexicon.Morpheme](data, headerSize, int(header.KnownCount))
	if err != nil {
		return nil, BuildID{}, err
	}
	if off+int(header.ComplexBytes) > len(data) {
		return nil, BuildID{}, &FormatError{"dict.bin: complex block out of bounds"}
	}

	var payload dictComplex
	if err := gobGunzip(data[off:off+int(header.ComplexBytes)], &payload); err != nil {
		return nil, BuildID{}, fmt.Errorf("artifact: decode dict complex block: %w", err)
	}

	lex := &lexicon.Lexicon{
		Known:    known,
		Homonyms: make(map[int][]int),
		Matrix:   payload.Matrix,
		Unknown:  make(map[string][]lexicon.UnknownEntry),
	}
	for id, groupIdx := range payload.GroupOf {
		if id == 0 || groupIdx < 0 {
			continue
		}
		group := payload.Homonyms[groupIdx]
		ids := make([]int, len(group.IDs))
		for i, v := range group.IDs {
			ids[i] = int(v)
		}
		lex.Homonyms[id] = ids
	}
	for _, block := range payload.Unknown {
		lex.Unknown[block.Class] = block.Entries
	}

	classifier := charclass.New(nil, nil)
	for _, def := range payload.ClassDefs {
		compat := make(map[string]struct{}, len(def.Compat))
		for _, c := range def.Compat {
			compat[c] = struct{}{}
		}
		classifier.AddDefinition(&charclass.Definition{
			Class:           def.Class,
			Timing:          charclass.InvokeTiming(def.Timing),
			GroupBySameKind: def.GroupBySameKind,
			Len:             int(def.Len),
			Compatibilities: compat,
		})
	}
	for _, r := range payload.Ranges {
		classifier.AddRange(r.Lo, r.Hi, r.Class)
	}
	lex.Classifier = classifier

	return lex, header.Build, nil
}

// --- features.bin -------------------------------------------------------

type unknownFeatureBlock struct {
	Class  string
	Tuples [][]int
}

type featComplex struct {
	Pool    []string
	Known   [][]int
	Unknown []unknownFeatureBlock
}

// WriteFeatureMap serialises fm to w.
func WriteFeatureMap(w io.Writer, build BuildID, fm *featuremap.FeatureMap) error {
	complexBlock, err := encodeFeatureComplex(fm)
	if err != nil {
		return err
	}

	header := featHeader{
		Magic:        magicFeat,
		Version:      formatVersion,
		Build:        build,
		ComplexBytes: int64(len(complexBlock)),
	}
	if err := binary.Write(w, binary.LittleEndian, header); err != nil {
		return fmt.Errorf("artifact: write features header: %w", err)
	}
	if _, err := w.Write(complexBlock); err != nil {
		return fmt.Errorf("artifact: write features complex block: %w", err)
	}
	return nil
}

// encodeFeatureComplex builds and gob+gzip-encodes fm's variable-length
// block (string pool, per-ID index tuples), shared by WriteFeatureMap
// and NewBuildID so both hash/write exactly the same bytes.
func encodeFeatureComplex(fm *featuremap.FeatureMap) ([]byte, error) {
	var unknown []unknownFeatureBlock
	raw := fm.UnknownIndices()
	for _, class := range sortedKeys(raw) {
		unknown = append(unknown, unknownFeatureBlock{Class: class, Tuples: raw[class]})
	}

	payload := featComplex{
		Pool:    fm.Pool(),
		Known:   fm.KnownIndices(),
		Unknown: unknown,
	}
	return gobGzip(payload)
}

// LoadFeatureMap reads and gob-decodes path. Unlike da.bin/dict.bin this
// file is small relative to the dictionary (one string pool plus index
// tuples) so it is read in full rather than mmapped, per §4.8's "may use
// a separate format" allowance.
func LoadFeatureMap(path string) (*featuremap.FeatureMap, BuildID, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, BuildID{}, fmt.Errorf("artifact: open features.bin: %w", err)
	}

	var header featHeader
	headerSize := binary.Size(header)
	if len(data) < headerSize {
		return nil, BuildID{}, &FormatError{"features.bin shorter than header"}
	}
	if err := binary.Read(bytes.NewReader(data[:headerSize]), binary.LittleEndian, &header); err != nil {
		return nil, BuildID{}, fmt.Errorf("artifact: read features header: %w", err)
	}
	if header.Magic != magicFeat {
		return nil, BuildID{}, &FormatError{"features.bin: bad magic"}
	}
	if header.Version != formatVersion {
		return nil, BuildID{}, &FormatError{fmt.Sprintf("features.bin: unsupported version %d", header.Version)}
	}
	if headerSize+int(header.ComplexBytes) > len(data) {
		return nil, BuildID{}, &FormatError{"features.bin: complex block out of bounds"}
	}

	var payload featComplex
	if err := gobGunzip(data[headerSize:headerSize+int(header.ComplexBytes)], &payload); err != nil {
		return nil, BuildID{}, fmt.Errorf("artifact: decode features complex block: %w", err)
	}

	unknown := make(map[string][][]int, len(payload.Unknown))
	for _, block := range payload.Unknown {
		unknown[block.Class] = block.Tuples
	}
	return featuremap.FromParts(payload.Pool, payload.Known, unknown), header.Build, nil
}

// --- shared helpers -------------------------------------------------------

func gobGzip(v interface{}) ([]byte, error) {
	var raw bytes.Buffer
	if err := gob.NewEncoder(&raw).Encode(v); err != nil {
		return nil, fmt.Errorf("artifact: gob-encode: %w", err)
	}
	var out bytes.Buffer
	gz := gzip.NewWriter(&out)
	if _, err := gz.Write(raw.Bytes()); err != nil {
		return nil, fmt.Errorf("artifact: gzip-compress: %w", err)
	}
	if err := gz.Close(); err != nil {
		return nil, fmt.Errorf("artifact: gzip-close: %w", err)
	}
	return out.Bytes(), nil
}

func gobGunzip(compressed []byte, v interface{}) error {
	gz, err := gzip.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return fmt.Errorf("gzip reader: %w", err)
	}
	defer gz.Close()
	raw, err := io.ReadAll(gz)
	if err != nil {
		return fmt.Errorf("gzip read: %w", err)
	}
	return gob.NewDecoder(bytes.NewReader(raw)).Decode(v)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortStringSlice(s []string) []string {
	sort.Strings(s)
	return s
}

func mapFile(path string) (mmap.MMap, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("artifact: open %s: %w", path, err)
	}
	defer f.Close()
	data, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		return nil, fmt.Errorf("artifact: mmap %s: %w", path, err)
	}
	return data, nil
}

// sliceAt reinterprets data[off:off+n*sizeof(T)] as a []T without
// copying, returning the offset immediately past the consumed bytes.
func sliceAt[T any](data []byte, off int, n int) ([]T, int, error) {
	var zero T
	size := int(unsafe.Sizeof(zero))
	end := off + n*size
	if n < 0 || end > len(data) {
		return nil, off, &FormatError{"section extends past end of file"}
	}
	if n == 0 {
		return nil, end, nil
	}
	slice := bytesToSlice[T](data[off:end])
	return slice, end, nil
}

// bytesToSlice reinterprets a byte range as a []T in place, the same
// zero-copy trick the mmap-backed loader uses throughout this package.
func bytesToSlice[T any](b []byte) []T {
	if len(b) == 0 {
		return nil
	}
	var t T
	size := int(unsafe.Sizeof(t))
	header := reflect.SliceHeader{Data: uintptr(unsafe.Pointer(&b[0])), Len: len(b) / size, Cap: len(b) / size}
	return *(*[]T)(unsafe.Pointer(&header))
}

// MergeParts concatenates split artifact parts (produced by an
// external `split`-style tool for transfer) into a single file, in
// lexicographic part-name order. Adapted from the split-dictionary
// recovery path distributors of large compiled dictionaries rely on:
// a dict.bin too large for a single git-release asset gets split into
// prefix-named chunks (`dict.bin.part-aa`, `dict.bin.part-ab`, ...) and
// reassembled here on first load.
func MergeParts(sourceDir, prefix, outputPath string) error {
	var parts []string
	err := filepath.WalkDir(sourceDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && filepath.Base(path) != filepath.Base(outputPath) && strings.HasPrefix(filepath.Base(path), prefix) {
			parts = append(parts, path)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("artifact: scanning %s for %q parts: %w", sourceDir, prefix, err)
	}
	if len(parts) == 0 {
		return fmt.Errorf("artifact: no parts with prefix %q in %s", prefix, sourceDir)
	}
	sort.Strings(parts)

	out, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("artifact: create %s: %w", outputPath, err)
	}
	defer out.Close()

	for _, part := range parts {
		if err := appendPart(out, part); err != nil {
			return err
		}
	}
	return nil
}

func appendPart(out *os.File, part string) error {
	in, err := os.Open(part)
	if err != nil {
		return fmt.Errorf("artifact: open part %s: %w", part, err)
	}
	defer in.Close()
	if _, err := io.Copy(out, in); err != nil {
		return fmt.Errorf("artifact: copy part %s into %s: %w", part, out.Name(), err)
	}
	return nil
}

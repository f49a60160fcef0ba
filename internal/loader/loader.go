// Package loader ingests the raw, EUC-JP-encoded lexicon source files
// (word CSVs, matrix.def, char.def, unk.def) and produces the
// in-memory structures the rest of the compile pipeline needs: a
// common-prefix tree of surface forms, a populated Lexicon, and a
// FeatureMap. See §4.7.
package loader

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/dlclark/regexp2"
	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/transform"

	"github.com/morphgo/kaiseki/internal/charclass"
	"github.com/morphgo/kaiseki/internal/cpt"
	"github.com/morphgo/kaiseki/internal/featuremap"
	"github.com/morphgo/kaiseki/internal/lexicon"
)

// ParseError reports a malformed lexicon source file. Compilation
// aborts on the first one.
type ParseError struct {
	File string
	Line int
	Msg  string
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("loader: %s:%d: %s", e.File, e.Line, e.Msg)
	}
	return fmt.Sprintf("loader: %s: %s", e.File, e.Msg)
}

const (
	colSurface = 0
	colLeft    = 1
	colRight   = 2
	colCost    = 3
	colFeature = 4
)

// Result is everything the loader produced, ready to hand to the
// double-array builder and the artifact codec.
type Result struct {
	Tree       *cpt.Tree
	Lexicon    *lexicon.Lexicon
	FeatureMap *featuremap.FeatureMap
	KnownCount int
}

// trailingComment strips a `# ...` suffix from a def-file line. The
// original MeCab/IPADIC def files use a bare `#` to start a comment;
// regexp2 is used here (rather than stdlib regexp) to match the rest
// of this module's text tooling.
var trailingComment = regexp2.MustCompile(`#.*$`, regexp2.None)

func stripComment(line string) string {
	out, err := trailingComment.Replace(line, "", -1, -1)
	if err != nil {
		return line
	}
	return out
}

// Load reads every *.csv, matrix.def, char.def and unk.def file under
// dir and builds the compile-time structures.
func Load(dir string) (*Result, error) {
	classifier, err := loadCharDef(filepath.Join(dir, "char.def"))
	if err != nil {
		return nil, err
	}
	matrix, err := loadMatrixDef(filepath.Join(dir, "matrix.def"))
	if err != nil {
		return nil, err
	}

	lex := lexicon.New()
	lex.Classifier = classifier
	lex.Matrix = matrix
	fm := featuremap.New()
	tree := cpt.New()

	csvFiles, err := listCSVFiles(dir)
	if err != nil {
		return nil, err
	}

	homonyms := make(map[string][]int)
	nextID := 1
	for _, path := range csvFiles {
		rows, err := loadEUCJPCSV(path)
		if err != nil {
			return nil, err
		}
		for lineNo, row := range rows {
			word, err := parseWordRow(path, lineNo+1, row)
			if err != nil {
				return nil, err
			}
			id := nextID
			nextID++
			lex.AddKnown(word.morpheme)
			fm.AddKnown(word.features)

			// The trie has room for exactly one terminal ID per surface;
			// homonyms share that slot via the first occurrence and are
			// otherwise tracked only in the homonym group below (the DA's
			// exact_match returns this representative, per §8).
			if _, seen := homonyms[word.surface]; !seen {
				if err := tree.Append(id, word.surface); err != nil {
					return nil, &ParseError{File: path, Line: lineNo + 1, Msg: err.Error()}
				}
			}
			homonyms[word.surface] = append(homonyms[word.surface], id)
		}
	}
	for _, group := range homonyms {
		lex.RegisterHomonym(group)
	}

	if err := loadUnkDef(filepath.Join(dir, "unk.def"), lex, fm); err != nil {
		return nil, err
	}

	return &Result{Tree: tree, Lexicon: lex, FeatureMap: fm, KnownCount: nextID - 1}, nil
}

type wordRow struct {
	surface  string
	morpheme lexicon.Morpheme
	features []string
}

func parseWordRow(file string, line int, row []string) (wordRow, error) {
	if len(row) <= colCost {
		return wordRow{}, &ParseError{file, line, "truncated row: fewer than 4 columns"}
	}
	left, err := strconv.ParseUint(row[colLeft], 10, 16)
	if err != nil {
		return wordRow{}, &ParseError{file, line, "bad left_context_id: " + err.Error()}
	}
	right, err := strconv.ParseUint(row[colRight], 10, 16)
	if err != nil {
		return wordRow{}, &ParseError{file, line, "bad right_context_id: " + err.Error()}
	}
	cost, err := strconv.ParseInt(row[colCost], 10, 16)
	if err != nil {
		return wordRow{}, &ParseError{file, line, "bad cost: " + err.Error()}
	}
	var features []string
	if len(row) > colFeature {
		features = append(features, row[colFeature:]...)
	}
	return wordRow{
		surface: row[colSurface],
		morpheme: lexicon.Morpheme{
			LeftContextID:  uint16(left),
			RightContextID: uint16(right),
			Cost:           int16(cost),
		},
		features: features,
	}, nil
}

func listCSVFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, &ParseError{File: dir, Msg: err.Error()}
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if strings.HasSuffix(e.Name(), ".csv") {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}

// loadEUCJPCSV transcodes an EUC-JP file to UTF-8 and parses it as CSV.
func loadEUCJPCSV(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &ParseError{File: path, Msg: err.Error()}
	}
	defer f.Close()

	r := transform.NewReader(f, japanese.EUCJP.NewDecoder())
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	var rows [][]string
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, &ParseError{File: path, Msg: err.Error()}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// readEUCJPLines transcodes an EUC-JP file to UTF-8 and splits it into
// non-empty, comment-stripped lines.
func readEUCJPLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &ParseError{File: path, Msg: err.Error()}
	}
	defer f.Close()

	r := transform.NewReader(f, japanese.EUCJP.NewDecoder())
	scanner := bufio.NewScanner(r)
	var lines []string
	for scanner.Scan() {
		line := stripComment(scanner.Text())
		if strings.TrimSpace(line) == "" {
			continue
		}
		lines = append(lines, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, &ParseError{File: path, Msg: err.Error()}
	}
	return lines, nil
}

func loadMatrixDef(path string) ([][]int16, error) {
	lines, err := readEUCJPLines(path)
	if err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		return nil, &ParseError{File: path, Msg: "empty matrix.def"}
	}
	header := strings.Fields(lines[0])
	if len(header) != 2 {
		return nil, &ParseError{path, 1, "header must be 'R_left R_right'"}
	}
	rLeft, err1 := strconv.Atoi(header[0])
	rRight, err2 := strconv.Atoi(header[1])
	if err1 != nil || err2 != nil {
		return nil, &ParseError{path, 1, "header must be two integers"}
	}

	matrix := make([][]int16, rLeft)
	for i := range matrix {
		matrix[i] = make([]int16, rRight)
		for j := range matrix[i] {
			matrix[i][j] = -1
		}
	}
	for i, line := range lines[1:] {
		parts := strings.Fields(line)
		if len(parts) != 3 {
			return nil, &ParseError{path, i + 2, "body line must be 'left right cost'"}
		}
		left, errL := strconv.Atoi(parts[0])
		right, errR := strconv.Atoi(parts[1])
		cost, errC := strconv.ParseInt(parts[2], 10, 16)
		if errL != nil || errR != nil || errC != nil {
			return nil, &ParseError{path, i + 2, "malformed matrix row"}
		}
		if left < 0 || left >= rLeft || right < 0 || right >= rRight {
			return nil, &ParseError{path, i + 2, "matrix cell out of declared range"}
		}
		matrix[left][right] = int16(cost)
	}
	return matrix, nil
}

func loadCharDef(path string) (*charclass.Classifier, error) {
	lines, err := readEUCJPLines(path)
	if err != nil {
		return nil, err
	}

	classifier := charclass.New(nil, nil)
	split := 0
	for i, line := range lines {
		if strings.HasPrefix(strings.Fields(line)[0], "0x") {
			split = i
			break
		}
		split = i + 1
	}

	for i, line := range lines[:split] {
		parts := strings.Fields(line)
		if len(parts) < 4 {
			return nil, &ParseError{path, i + 1, "class definition needs at least 4 fields"}
		}
		timing := charclass.Fallback
		if parts[1] != "0" {
			timing = charclass.Always
		}
		groupBySameKind := parts[2] == "1"
		length, err := strconv.Atoi(parts[3])
		if err != nil {
			return nil, &ParseError{path, i + 1, "bad len: " + err.Error()}
		}
		classifier.AddDefinition(&charclass.Definition{
			Class:           parts[0],
			Timing:          timing,
			GroupBySameKind: groupBySameKind,
			Len:             length,
			Compatibilities: map[string]struct{}{},
		})
	}

	for i, line := range lines[split:] {
		parts := strings.Fields(line)
		if len(parts) < 2 {
			return nil, &ParseError{path, split + i + 1, "range entry needs at least 2 fields"}
		}
		lo, hi, err := parseHexRange(parts[0])
		if err != nil {
			return nil, &ParseError{path, split + i + 1, err.Error()}
		}
		className := parts[1]
		def, ok := classifier.Definition(className)
		if !ok {
			return nil, &ParseError{path, split + i + 1, "unknown character class " + className}
		}
		for _, compat := range parts[2:] {
			def.Compatibilities[compat] = struct{}{}
		}
		classifier.AddRange(lo, hi, className)
	}

	if _, ok := classifier.Definition(charclass.DefaultClass); !ok {
		classifier.AddDefinition(&charclass.Definition{
			Class:           charclass.DefaultClass,
			Timing:          charclass.Fallback,
			GroupBySameKind: false,
			Len:             1,
			Compatibilities: map[string]struct{}{},
		})
	}

	return classifier, nil
}

func parseHexRange(field string) (lo, hi rune, err error) {
	parts := strings.SplitN(field, "..", 2)
	first, err := strconv.ParseInt(strings.TrimPrefix(parts[0], "0x"), 16, 32)
	if err != nil {
		return 0, 0, fmt.Errorf("bad hex code point %q: %w", parts[0], err)
	}
	if len(parts) == 1 {
		return rune(first), rune(first), nil
	}
	second, err := strconv.ParseInt(strings.TrimPrefix(parts[1], "0x"), 16, 32)
	if err != nil {
		return 0, 0, fmt.Errorf("bad hex code point %q: %w", parts[1], err)
	}
	return rune(first), rune(second), nil
}

func loadUnkDef(path string, lex *lexicon.Lexicon, fm *featuremap.FeatureMap) error {
	rows, err := loadEUCJPCSV(path)
	if err != nil {
		return err
	}
	for lineNo, row := range rows {
		word, err := parseWordRow(path, lineNo+1, row)
		if err != nil {
			return err
		}
		lex.AddUnknown(word.surface, word.morpheme)
		fm.AddUnknown(word.surface, word.features)
	}
	return nil
}

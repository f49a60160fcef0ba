// Package analyzer loads a compiled dictionary artifact and performs
// Japanese morphological analysis against it: segmentation, per-token
// part-of-speech and reading lookup, and lattice inspection. It is the
// one mutable-free entry point the rest of the module (the CLI, the
// cgo binding) drives.
package analyzer

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/morphgo/kaiseki/internal/artifact"
	"github.com/morphgo/kaiseki/internal/doublearray"
	"github.com/morphgo/kaiseki/internal/featuremap"
	"github.com/morphgo/kaiseki/internal/lattice"
	"github.com/morphgo/kaiseki/internal/lexicon"
	"github.com/morphgo/kaiseki/internal/viterbi"
)

// EnvDictPath overrides the artifact directory Load uses when no
// explicit path is given.
const EnvDictPath = "KAISEKI_DICT_PATH"

// DefaultDictDir is where Load looks absent an explicit path or
// environment override.
func DefaultDictDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".goya", "dict")
}

const (
	daFile       = "da.bin"
	dictFile     = "dict.bin"
	featuresFile = "features.bin"
	partsPrefix  = "dict.bin.part-"
)

// LoadError reports that an artifact directory could not be turned
// into a usable Analyser: a missing file, a version mismatch, or a
// build-ID mismatch across the da.bin/dict.bin/features.bin triple.
type LoadError struct{ msg string }

func (e *LoadError) Error() string { return "analyzer: " + e.msg }

// Analyser is immutable after Load; concurrent callers may share one
// instance freely, each analysis owning its own lattice and DP table.
type Analyser struct {
	da  *doublearray.DoubleArray
	lex *lexicon.Lexicon
	fm  *featuremap.FeatureMap
}

// Load reads the three artifact files from dir (or EnvDictPath, or
// DefaultDictDir if dir is empty) and builds an Analyser.
func Load(dir string) (*Analyser, error) {
	if dir == "" {
		if env := os.Getenv(EnvDictPath); env != "" {
			dir = env
		} else {
			dir = DefaultDictDir()
		}
	}

	dictPath := filepath.Join(dir, dictFile)
	if _, err := os.Stat(dictPath); os.IsNotExist(err) {
		if mergeErr := artifact.MergeParts(dir, partsPrefix, dictPath); mergeErr != nil {
			return nil, &LoadError{fmt.Sprintf("dict.bin missing and no parts to reassemble it in %s: %v", dir, mergeErr)}
		}
	}

	da, daBuild, err := artifact.LoadDoubleArray(filepath.Join(dir, daFile))
	if err != nil {
		return nil, &LoadError{err.Error()}
	}
	lex, dictBuild, err := artifact.LoadLexicon(dictPath)
	if err != nil {
		return nil, &LoadError{err.Error()}
	}
	fm, featBuild, err := artifact.LoadFeatureMap(filepath.Join(dir, featuresFile))
	if err != nil {
		return nil, &LoadError{err.Error()}
	}

	if daBuild != dictBuild || dictBuild != featBuild {
		return nil, &LoadError{"da.bin, dict.bin and features.bin come from different compiles"}
	}

	return &Analyser{da: da, lex: lex, fm: fm}, nil
}

// Morpheme is one segmented token of an analysis.
type Morpheme struct {
	Surface      string
	IsKnown      bool
	Features     []string
	LeftContext  uint16
	RightContext uint16
	Cost         int16
}

// Analyse segments text and resolves each morpheme's features. A nil,
// nil result means the input admits no path (§4.6's AnalysisNoPath):
// not an error, just nothing to render.
func (a *Analyser) Analyse(text string) ([]Morpheme, error) {
	runes := []rune(text)
	l := lattice.Parse(runes, a.da, a.lex)
	path := viterbi.Solve(l, a.lex)
	if path == nil {
		return nil, nil
	}

	out := make([]Morpheme, 0, len(path))
	for _, step := range path {
		cand := l.Candidates(step.Position)[step.Choice]
		surface := string(runes[step.Position : step.Position+cand.Length])
		m, features, ok := a.resolve(cand)
		if !ok {
			continue
		}
		out = append(out, Morpheme{
			Surface:      surface,
			IsKnown:      cand.Kind == lattice.Known,
			Features:     features,
			LeftContext:  m.LeftContextID,
			RightContext: m.RightContextID,
			Cost:         m.Cost,
		})
	}
	return out, nil
}

// AnalyseWakachi segments text and returns only the surface forms
// ("wakachi-gaki", space-separated tokenisation without annotation).
func (a *Analyser) AnalyseWakachi(text string) ([]string, error) {
	morphemes, err := a.Analyse(text)
	if err != nil {
		return nil, err
	}
	surfaces := make([]string, len(morphemes))
	for i, m := range morphemes {
		surfaces[i] = m.Surface
	}
	return surfaces, nil
}

func (a *Analyser) resolve(c lattice.Candidate) (lexicon.Morpheme, []string, bool) {
	if c.Kind == lattice.Known {
		m, ok := a.lex.KnownMorpheme(c.ID)
		if !ok {
			return lexicon.Morpheme{}, nil, false
		}
		return m, a.fm.Known(c.ID), true
	}
	m, ok := a.lex.UnknownMorpheme(c.Class, c.ID)
	if !ok {
		return lexicon.Morpheme{}, nil, false
	}
	return m, a.fm.Unknown(c.Class, c.ID), true
}

// LatticeDOT renders text's full candidate lattice (not just the
// winning path) as Graphviz DOT: every node labelled with its surface
// form, its running minimum cost and its own cost in parentheses, and
// the winning edges drawn heavier than the rest. Grounded on the
// reference lattice-to-DOT renderer this module's DP table was ported
// from.
func (a *Analyser) LatticeDOT(text string) (string, error) {
	runes := []rune(text)
	l := lattice.Parse(runes, a.da, a.lex)
	table := viterbi.BuildTable(l, a.lex)
	path := table.BestPath()

	onPath := make(map[[2]int]bool, len(path))
	for _, step := range path {
		onPath[[2]int{step.Position + 1, step.Choice}] = true
	}

	var b strings.Builder
	b.WriteString("digraph lattice {\n")
	b.WriteString("  labelloc=\"t\";\n")
	b.WriteString("  label=\"N = gross min, (N) = individual cost\";\n")
	b.WriteString("  BOS [label=\"BOS\\n0 (0)\" shape=\"doublecircle\"];\n")
	b.WriteString("  EOS [label=\"EOS\\n(0)\" shape=\"doublecircle\"];\n")

	length := l.Len()
	for p := 0; p < length; p++ {
		for j, cand := range l.Candidates(p) {
			m, _, ok := a.resolve(cand)
			if !ok {
				continue
			}
			surface := string(runes[p : p+cand.Length])
			cost, _ := table.Cost(p+1, j)
			fmt.Fprintf(&b, "  \"%d_%d\" [label=\"%s\\n%d (%d)\"];\n", p, j, surface, cost, m.Cost)

			nodeOnPath := onPath[[2]int{p + 1, j}]

			if p == 0 {
				bosCost := a.lex.TransitionCost(lexicon.BOSEOSContextID, m.RightContextID)
				fmt.Fprintf(&b, "  BOS -> \"%d_%d\" [label=\"(%d)\"%s];\n", p, j, bosCost, edgeStyle(nodeOnPath))
			}

			if p+cand.Length >= length {
				eosCost := a.lex.TransitionCost(m.LeftContextID, lexicon.BOSEOSContextID)
				fmt.Fprintf(&b, "  \"%d_%d\" -> EOS [label=\"(%d)\"%s];\n", p, j, eosCost, edgeStyle(nodeOnPath))
				continue
			}

			for k, rightCand := range l.Candidates(p + cand.Length) {
				right, _, ok := a.resolve(rightCand)
				if !ok {
					continue
				}
				cost := a.lex.TransitionCost(m.LeftContextID, right.RightContextID)
				bold := nodeOnPath && onPath[[2]int{p + cand.Length + 1, k}]
				fmt.Fprintf(&b, "  \"%d_%d\" -> \"%d_%d\" [label=\"(%d)\"%s];\n", p, j, p+cand.Length, k, cost, edgeStyle(bold))
			}
		}
	}

	b.WriteString("}\n")
	return b.String(), nil
}

func edgeStyle(bold bool) string {
	if bold {
		return " penwidth=3"
	}
	return ""
}

// Result pairs an input string with its analysis, for AnalyseList.
type Result struct {
	Text      string
	Morphemes []Morpheme
	Err       error
}

// AnalyseList analyses every text concurrently across a worker pool,
// preserving input order in the returned slice. Adapted from the
// channel-based chunk dispatcher used for batch word processing
// elsewhere in this lineage, generalised from one morpheme list per
// word to one morpheme sequence per input string.
func (a *Analyser) AnalyseList(texts []string) []Result {
	const chunkSize = 1000
	numWorkers := runtime.NumCPU()

	type chunk struct {
		start int
		texts []string
	}
	type outcome struct {
		start   int
		results []Result
	}

	chunksCh := make(chan chunk, numWorkers)
	resultCh := make(chan outcome, numWorkers)

	var wg sync.WaitGroup
	wg.Add(numWorkers)
	for i := 0; i < numWorkers; i++ {
		go func() {
			defer wg.Done()
			for c := range chunksCh {
				results := make([]Result, len(c.texts))
				for i, text := range c.texts {
					morphemes, err := a.Analyse(text)
					results[i] = Result{Text: text, Morphemes: morphemes, Err: err}
				}
				resultCh <- outcome{start: c.start, results: results}
			}
		}()
	}

	go func() {
		for i := 0; i < len(texts); i += chunkSize {
			end := i + chunkSize
			if end > len(texts) {
				end = len(texts)
			}
			chunksCh <- chunk{start: i, texts: texts[i:end]}
		}
		close(chunksCh)
	}()

	go func() {
		wg.Wait()
		close(resultCh)
	}()

	out := make([]Result, len(texts))
	for o := range resultCh {
		copy(out[o.start:o.start+len(o.results)], o.results)
	}
	return out
}

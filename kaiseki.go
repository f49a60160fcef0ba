// Package kaiseki re-exports the analyzer package's public API at the
// module root, so that importing the module itself is enough for the
// common case of "load a dictionary, analyse some text".
package kaiseki

import "github.com/morphgo/kaiseki/analyzer"

// Analyser segments Japanese text against a compiled dictionary.
type Analyser = analyzer.Analyser

// Morpheme is one segmented, annotated token of an analysis.
type Morpheme = analyzer.Morpheme

// Result pairs an input string with its analysis, for AnalyseList.
type Result = analyzer.Result

// EnvDictPath is the environment variable Load consults when no
// explicit directory is given.
const EnvDictPath = analyzer.EnvDictPath

// DefaultDictDir is where Load looks absent an explicit path or
// environment override.
func DefaultDictDir() string { return analyzer.DefaultDictDir() }

// Load reads a compiled dictionary directory and builds an Analyser.
func Load(dir string) (*Analyser, error) { return analyzer.Load(dir) }

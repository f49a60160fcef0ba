package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/morphgo/kaiseki/internal/artifact"
	"github.com/morphgo/kaiseki/internal/doublearray"
	"github.com/morphgo/kaiseki/internal/loader"
)

// CompileReport summarises one compile run, the source for the final
// "done in" line printed after the per-step progress output.
type CompileReport struct {
	KnownCount   int
	UnknownCount int
	DAStates     int
	Elapsed      time.Duration
}

func runCompile(sourceDir, dictDir string) error {
	if dictDir == "" {
		dictDir = defaultOrEnvDictDir()
	}
	report, err := compile(sourceDir, dictDir)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "done in %s (%d known, %d unknown templates, %d trie states)\n",
		report.Elapsed, report.KnownCount, report.UnknownCount, report.DAStates)
	return nil
}

func compile(sourceDir, dictDir string) (CompileReport, error) {
	start := time.Now()

	fmt.Fprintln(os.Stderr, "[1/4] loading dictionary sources...")
	result, err := loader.Load(sourceDir)
	if err != nil {
		return CompileReport{}, fmt.Errorf("load: %w", err)
	}

	fmt.Fprintln(os.Stderr, "[2/4] recompiling trie...")
	da, err := doublearray.Build(result.Tree)
	if err != nil {
		return CompileReport{}, fmt.Errorf("build trie: %w", err)
	}

	fmt.Fprintln(os.Stderr, "[3/4] exporting dictionary...")
	if err := os.MkdirAll(dictDir, 0o755); err != nil {
		return CompileReport{}, fmt.Errorf("create %s: %w", dictDir, err)
	}
	build, err := artifact.NewBuildID(da, result.Lexicon, result.FeatureMap)
	if err != nil {
		return CompileReport{}, fmt.Errorf("derive build id: %w", err)
	}
	if err := writeArtifact(dictDir, "da.bin", func(f *os.File) error {
		return artifact.WriteDoubleArray(f, build, da)
	}); err != nil {
		return CompileReport{}, err
	}
	if err := writeArtifact(dictDir, "dict.bin", func(f *os.File) error {
		return artifact.WriteLexicon(f, build, result.Lexicon)
	}); err != nil {
		return CompileReport{}, err
	}
	if err := writeArtifact(dictDir, "features.bin", func(f *os.File) error {
		return artifact.WriteFeatureMap(f, build, result.FeatureMap)
	}); err != nil {
		return CompileReport{}, err
	}

	fmt.Fprintln(os.Stderr, "[4/4] done.")

	unknownCount := 0
	for _, templates := range result.Lexicon.Unknown {
		unknownCount += len(templates)
	}

	return CompileReport{
		KnownCount:   result.KnownCount,
		UnknownCount: unknownCount,
		DAStates:     da.NumStates(),
		Elapsed:      time.Since(start),
	}, nil
}

func writeArtifact(dir, name string, write func(*os.File) error) error {
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()
	if err := write(f); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func runClean(dictDir string) error {
	if dictDir == "" {
		dictDir = defaultOrEnvDictDir()
	}
	for _, name := range []string{"da.bin", "dict.bin", "features.bin"} {
		path := filepath.Join(dictDir, name)
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove %s: %w", path, err)
		}
	}
	return nil
}

package main

import (
	"bytes"
	"io"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/morphgo/kaiseki/analyzer"
)

func captureStdout(t *testing.T, fn func()) string {
	t.Helper()
	old := os.Stdout
	r, w, err := os.Pipe()
	require.NoError(t, err)
	os.Stdout = w

	fn()

	require.NoError(t, w.Close())
	os.Stdout = old
	var buf bytes.Buffer
	_, err = io.Copy(&buf, r)
	require.NoError(t, err)
	return buf.String()
}

func TestRenderLinePlainFormatEndsWithEOS(t *testing.T) {
	a, err := analyzer.Load(testdataDirForCompiledDict(t))
	require.NoError(t, err)

	out := captureStdout(t, func() {
		renderLine(a, "plain", "あ")
	})
	assert.Contains(t, out, "EOS")
}

func TestRenderLineDotFormatRendersDigraph(t *testing.T) {
	a, err := analyzer.Load(testdataDirForCompiledDict(t))
	require.NoError(t, err)

	out := captureStdout(t, func() {
		renderLine(a, "dot", "あ")
	})
	assert.Contains(t, out, "digraph lattice")
}

// testdataDirForCompiledDict compiles the fixture sources into a fresh
// artifact directory so renderLine can exercise a real Analyser.
func testdataDirForCompiledDict(t *testing.T) string {
	t.Helper()
	dictDir := t.TempDir()
	_, err := compile(testdataDir, dictDir)
	require.NoError(t, err)
	return dictDir
}

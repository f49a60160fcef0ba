package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/morphgo/kaiseki/analyzer"
)

// defaultOrEnvDictDir mirrors analyzer.Load's own resolution order so
// the CLI's --dicdir default and the library's default never diverge.
func defaultOrEnvDictDir() string {
	if env := os.Getenv(analyzer.EnvDictPath); env != "" {
		return env
	}
	return analyzer.DefaultDictDir()
}

// runREPL reads lines from stdin, analyses each, and prints
// "surface\tfeatures" rows terminated by an EOS marker. --format dot
// prints a Graphviz rendering of the full lattice instead. A "> "
// prompt is shown only when stdin is an actual terminal, so piped
// input (scripts, tests) stays prompt-free.
func runREPL() error {
	dictDir := ""
	format := "plain"
	for i, a := range os.Args[1:] {
		if a == "--dicdir" && i+2 < len(os.Args) {
			dictDir = os.Args[i+2]
		}
		if a == "--format" && i+2 < len(os.Args) {
			format = os.Args[i+2]
		}
	}

	a, err := analyzer.Load(dictDir)
	if err != nil {
		return err
	}

	interactive := term.IsTerminal(int(os.Stdin.Fd()))
	scanner := bufio.NewScanner(os.Stdin)

	return readNonEmptyLines(scanner, func(line string) error {
		if interactive {
			fmt.Fprint(os.Stderr, "> ")
		}
		renderLine(a, format, strings.TrimSpace(line))
		return nil
	})
}

// renderLine analyses one line of input and writes its result to
// stdout, or an error line to stderr. Errors here never abort the
// REPL loop; a bad line just produces no output.
func renderLine(a *analyzer.Analyser, format, line string) {
	if format == "dot" {
		dot, err := a.LatticeDOT(line)
		if err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			return
		}
		fmt.Println(dot)
		return
	}

	morphemes, err := a.Analyse(line)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return
	}
	for _, m := range morphemes {
		fmt.Printf("%s\t%s\n", m.Surface, strings.Join(m.Features, ","))
	}
	fmt.Println("EOS")
}

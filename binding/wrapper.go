// Package main is a cgo export shim exposing the analyzer to other
// languages via a C ABI: load a dictionary once, analyse words one at
// a time, release on shutdown.
package main

import (
	// #include <stdlib.h>
	"C"
	"encoding/json"
	"unsafe"

	"github.com/morphgo/kaiseki/analyzer"
)

var morphAnalyzer *analyzer.Analyser

//export CreateAnalyzer
func CreateAnalyzer() {
	morphAnalyzer, _ = analyzer.Load("")
}

//export AnalyzeWord
func AnalyzeWord(word *C.char) *C.char {
	goWord := C.GoString(word)

	morphemes, err := morphAnalyzer.Analyse(goWord)
	if err != nil {
		return C.CString("")
	}
	out, _ := json.Marshal(morphemes)
	return C.CString(string(out))
}

//export FreeString
func FreeString(str *C.char) {
	if str != nil {
		C.free(unsafe.Pointer(str))
	}
}

//export ReleaseAnalyzer
func ReleaseAnalyzer() {
	morphAnalyzer = nil
}

func main() {}

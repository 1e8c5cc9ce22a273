// Package lang compiles the tiny imperative source language (integer
// variables, if/while, and a single read(port) builtin) to textual
// assembly consumed by pkg/asm. It has no knowledge of ROM layout or
// execution; it only ever emits text.
package lang

import "io"

// Compile lexes, parses, and lowers source to a newline-separated
// assembly listing ready for asm.Assemble. If trace is non-nil, the
// generated listing is also written there before being returned,
// a "-show-asm" style tracing hook for callers that want it.
func Compile(source string, trace io.Writer) (string, error) {
	tokens, err := Lex(source)
	if err != nil {
		return "", err
	}
	stmts, err := Parse(tokens)
	if err != nil {
		return "", err
	}
	asmText, err := Generate(stmts)
	if err != nil {
		return "", err
	}
	if trace != nil {
		if _, err := io.WriteString(trace, asmText); err != nil {
			return "", err
		}
	}
	return asmText, nil
}

// Package asm assembles the word-oriented textual IR into the tagged
// isa.Instruction records pkg/vm executes. Assembly is two passes: the
// first only locates labels, the second parses and specializes every
// instruction line against the now-complete label table.
package asm

import (
	"strings"

	"wordcpu/pkg/diag"
	"wordcpu/pkg/isa"
)

type parsedLine struct {
	lineNo   int
	label    string
	mnemonic string
	operands []string
}

// Assemble parses source text into a fully padded instruction ROM: the
// user's instructions, a terminating halt, and isa.PadNops no-ops.
// sourceMap maps each ROM index back to the 1-based source line it was
// assembled from, for use in runtime diagnostics.
func Assemble(source string) ([]isa.Instruction, map[int]int, error) {
	lines := strings.Split(source, "\n")

	labels, err := pass1(lines)
	if err != nil {
		return nil, nil, err
	}

	return pass2(lines, labels)
}

func pass1(lines []string) (map[string]int, error) {
	labels := make(map[string]int)
	count := 0

	for i, raw := range lines {
		lineNo := i + 1
		p, err := parseLine(raw, lineNo)
		if err != nil {
			return nil, err
		}
		if p.label != "" {
			if _, exists := labels[p.label]; exists {
				return nil, diag.NewAsmError(lineNo, "duplicate label %q", p.label)
			}
			labels[p.label] = count
		}
		if p.mnemonic != "" {
			count++
		}
	}

	if count > isa.MaxUserInstructions {
		return nil, diag.NewAsmError(len(lines), "program has %d instructions, exceeding the limit of %d", count, isa.MaxUserInstructions)
	}

	return labels, nil
}

func pass2(lines []string, labels map[string]int) ([]isa.Instruction, map[int]int, error) {
	var program []isa.Instruction
	sourceMap := make(map[int]int)

	for i, raw := range lines {
		lineNo := i + 1
		p, err := parseLine(raw, lineNo)
		if err != nil {
			return nil, nil, err
		}
		if p.mnemonic == "" {
			continue
		}

		instr, err := buildInstruction(p.mnemonic, p.operands, lineNo, labels)
		if err != nil {
			return nil, nil, err
		}
		sourceMap[len(program)] = lineNo
		program = append(program, instr)
	}

	haltLine := len(lines)
	program = append(program, isa.Instruction{Kind: isa.KindHalt, Line: haltLine})
	for i := 0; i < isa.PadNops; i++ {
		program = append(program, isa.Instruction{Kind: isa.KindNop, Line: haltLine})
	}

	return program, sourceMap, nil
}

// parseLine splits one line of source into an optional leading label, a
// lowercased mnemonic, and its raw operand tokens. ':', ';' and '\n' are
// all treated as statement-ending punctuation by pkg/lang, but at the
// assembly-text level only ':' introduces a label and ';' introduces a
// comment; a line may carry at most one label, matching the one
// instruction-per-line ROM layout.
func parseLine(raw string, lineNo int) (parsedLine, error) {
	p := parsedLine{lineNo: lineNo}

	line := stripComment(raw)
	line = strings.TrimSpace(line)
	if line == "" {
		return p, nil
	}

	if colon := strings.IndexByte(line, ':'); colon >= 0 {
		label := strings.TrimSpace(line[:colon])
		if label == "" || !isIdentifier(label) {
			return p, diag.NewAsmError(lineNo, "invalid label %q", label)
		}
		p.label = label
		line = strings.TrimSpace(line[colon+1:])
		if line == "" {
			return p, nil
		}
	}

	fields := strings.Fields(line)
	p.mnemonic = strings.ToLower(fields[0])
	if len(fields) > 1 {
		rest := strings.Join(fields[1:], " ")
		rest = strings.ReplaceAll(rest, ",", " ")
		p.operands = tokenizeOperands(rest)
	}
	return p, nil
}

func stripComment(line string) string {
	if idx := strings.IndexByte(line, ';'); idx >= 0 {
		return line[:idx]
	}
	return line
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_':
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}

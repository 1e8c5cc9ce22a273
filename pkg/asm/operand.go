package asm

import (
	"strconv"
	"strings"

	"wordcpu/pkg/diag"
	"wordcpu/pkg/isa"
)

// tokenizeOperands splits the operand portion of a line into atoms,
// treating '[' and ']' as their own tokens even when they abut other
// characters, so "[s0]" and "[ s0 ]" tokenize identically and "[[x0]]"
// nests correctly.
func tokenizeOperands(s string) []string {
	var toks []string
	var cur strings.Builder
	flush := func() {
		if cur.Len() > 0 {
			toks = append(toks, cur.String())
			cur.Reset()
		}
	}
	for _, r := range s {
		switch {
		case r == '[' || r == ']':
			flush()
			toks = append(toks, string(r))
		case r == ' ' || r == '\t':
			flush()
		default:
			cur.WriteRune(r)
		}
	}
	flush()
	return toks
}

// parseRegister resolves a register token ("x0".."x7" or an alias) to
// its index 0..7. Matching is case-insensitive; the caller is expected
// to have already lowercased the token, but parseRegister tolerates
// either case.
func parseRegister(tok string) (int, bool) {
	low := strings.ToLower(tok)
	if idx, ok := isa.RegisterAliases[low]; ok {
		return idx, true
	}
	if len(low) == 2 && low[0] == 'x' && low[1] >= '0' && low[1] <= '7' {
		return int(low[1] - '0'), true
	}
	return 0, false
}

// parseImmediate parses a decimal or 0x-prefixed hex literal into a
// Word, erroring (with the given line number) on malformed input or
// overflow of 32 bits.
func parseImmediate(tok string, line int) (isa.Word, error) {
	v, err := strconv.ParseInt(tok, 0, 64)
	if err != nil {
		return 0, diag.NewAsmError(line, "invalid immediate %q", tok)
	}
	if v < -(1<<31) || v > (1<<32-1) {
		return 0, diag.NewAsmError(line, "immediate %q out of 32-bit range", tok)
	}
	return isa.Word(v), nil
}

// parseOneOperand parses a single operand (imm | reg | [operand]) out
// of tokens starting at pos, returning the operand and the index of
// the next unconsumed token.
func parseOneOperand(tokens []string, pos int, line int) (isa.Operand, int, error) {
	if pos >= len(tokens) {
		return isa.Operand{}, pos, diag.NewAsmError(line, "expected operand, found end of line")
	}
	tok := tokens[pos]
	if tok == "[" {
		inner, next, err := parseOneOperand(tokens, pos+1, line)
		if err != nil {
			return isa.Operand{}, next, err
		}
		if next >= len(tokens) || tokens[next] != "]" {
			return isa.Operand{}, next, diag.NewAsmError(line, "unterminated memory operand")
		}
		return isa.Operand{Kind: isa.OperandMem, Inner: &inner}, next + 1, nil
	}
	if tok == "]" {
		return isa.Operand{}, pos, diag.NewAsmError(line, "unexpected ']'")
	}
	if reg, ok := parseRegister(tok); ok {
		return isa.Operand{Kind: isa.OperandReg, Reg: reg}, pos + 1, nil
	}
	imm, err := parseImmediate(tok, line)
	if err != nil {
		return isa.Operand{}, pos, err
	}
	return isa.Operand{Kind: isa.OperandImm, Imm: imm}, pos + 1, nil
}

// parseOperandList parses exactly n top-level operands from tokens,
// erroring if the token stream runs out early or has leftover tokens.
func parseOperandList(tokens []string, n int, line int) ([]isa.Operand, error) {
	ops := make([]isa.Operand, 0, n)
	pos := 0
	for i := 0; i < n; i++ {
		op, next, err := parseOneOperand(tokens, pos, line)
		if err != nil {
			return nil, err
		}
		ops = append(ops, op)
		pos = next
	}
	if pos != len(tokens) {
		return nil, diag.NewAsmError(line, "unexpected extra operand tokens: %v", tokens[pos:])
	}
	return ops, nil
}

// parseVariadicOperands parses as many operands as remain in tokens,
// used by push/pop.
func parseVariadicOperands(tokens []string, line int) ([]isa.Operand, error) {
	var ops []isa.Operand
	pos := 0
	for pos < len(tokens) {
		op, next, err := parseOneOperand(tokens, pos, line)
		if err != nil {
			return nil, err
		}
		ops = append(ops, op)
		pos = next
	}
	if len(ops) == 0 {
		return nil, diag.NewAsmError(line, "expected at least one operand")
	}
	return ops, nil
}

// asPortOperand reinterprets an already-parsed operand as a Port
// operand. The id is parsed but, with a single input and output port,
// never used to distinguish multiple ports.
func asPortOperand(op isa.Operand, line int) (isa.Operand, error) {
	if op.Kind != isa.OperandImm {
		return isa.Operand{}, diag.NewAsmError(line, "port operand must be an immediate")
	}
	return isa.Operand{Kind: isa.OperandPort, Imm: op.Imm}, nil
}

// isWritable reports whether op may appear in a destination position.
func isWritable(op isa.Operand) bool {
	return op.Kind == isa.OperandReg || op.Kind == isa.OperandMem || op.Kind == isa.OperandPort
}

package asm

import (
	"testing"

	"wordcpu/pkg/isa"
)

func TestIsIdentifier(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"abc", true},
		{"_abc", true},
		{"abc1", true},
		{"1abc", false},
		{"", false},
		{"ab-c", false},
	}
	for _, tc := range tests {
		if got := isIdentifier(tc.input); got != tc.want {
			t.Errorf("isIdentifier(%q) = %v; want %v", tc.input, got, tc.want)
		}
	}
}

func TestParseLine(t *testing.T) {
	tests := []struct {
		line string
		want parsedLine
	}{
		{
			"mv s0, 5",
			parsedLine{lineNo: 1, mnemonic: "mv", operands: []string{"s0", "5"}},
		},
		{
			"  c+ s0 s0 s1  ; add",
			parsedLine{lineNo: 1, mnemonic: "c+", operands: []string{"s0", "s0", "s1"}},
		},
		{
			"loop: mv s1 0",
			parsedLine{lineNo: 1, label: "loop", mnemonic: "mv", operands: []string{"s1", "0"}},
		},
		{
			"done:",
			parsedLine{lineNo: 1, label: "done"},
		},
		{
			"",
			parsedLine{lineNo: 1},
		},
		{
			"mv [s0] [s1]",
			parsedLine{lineNo: 1, mnemonic: "mv", operands: []string{"[", "s0", "]", "[", "s1", "]"}},
		},
	}
	for _, tc := range tests {
		got, err := parseLine(tc.line, 1)
		if err != nil {
			t.Fatalf("parseLine(%q): unexpected error: %v", tc.line, err)
		}
		if got.mnemonic != tc.want.mnemonic || got.label != tc.want.label || len(got.operands) != len(tc.want.operands) {
			t.Fatalf("parseLine(%q) = %+v; want %+v", tc.line, got, tc.want)
		}
		for i := range got.operands {
			if got.operands[i] != tc.want.operands[i] {
				t.Fatalf("parseLine(%q) operand %d = %q; want %q", tc.line, i, got.operands[i], tc.want.operands[i])
			}
		}
	}
}

func TestAssembleMvSpecializesRegImm(t *testing.T) {
	prog, _, err := Assemble("mv s0 7\n")
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if prog[0].Kind != isa.KindMvRegImm || prog[0].Imm != 7 {
		t.Fatalf("mv s0 7 = %+v; want KindMvRegImm imm=7", prog[0])
	}
}

func TestAssembleAddCommutesImmediate(t *testing.T) {
	prog, _, err := Assemble("c+ s0 3 s1\n")
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	instr := prog[0]
	if instr.Kind != isa.KindAluRegRegImm || instr.RegSrc1 != isa.RegisterAliases["s1"] || instr.Imm != 3 {
		t.Fatalf("c+ s0 3 s1 = %+v; want RegSrc1=s1 imm=3", instr)
	}
}

func TestAssembleComparisonSynonymsSwapOperands(t *testing.T) {
	greater, _, err := Assemble("c> s0 s1 5\n")
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	less, _, err := Assemble("c< s0 5 s1\n")
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if greater[0].Alu != isa.AluLt || less[0].Alu != isa.AluLt {
		t.Fatalf("c> and c< should both lower to AluLt, got %v and %v", greater[0].Alu, less[0].Alu)
	}
	if greater[0].Src1 != less[0].Src1 || greater[0].Src2 != less[0].Src2 {
		t.Fatalf("c> s1 5 should swap to match c< 5 s1: got %+v vs %+v", greater[0], less[0])
	}
}

func TestAssembleBranchSynonymSpecializesRegImm(t *testing.T) {
	prog, _, err := Assemble("b<= s0 10 end\nmv s1 1\nend:\n")
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	branch := prog[0]
	if branch.Kind != isa.KindBranchRegImm {
		t.Fatalf("b<= s0 10 end = %+v; want KindBranchRegImm", branch)
	}
	// s0 <= 10 swaps to 10 >= s0; with the register first that is
	// s0 < 11, i.e. AluLt against an immediate of 11.
	if branch.Alu != isa.AluLt {
		t.Fatalf("b<= s0 10 should canonicalize to AluLt, got %v", branch.Alu)
	}
	if branch.RegSrc1 != isa.RegisterAliases["s0"] || branch.Imm != 11 {
		t.Fatalf("b<= s0 10 should become s0 < 11: %+v", branch)
	}
	// "end:" sits after two instructions (b<= itself and mv), so its
	// label index is 2; the branch target is rewritten to index-1 so
	// the dispatch loop's unconditional pc++ lands on the label.
	if branch.Target != 1 {
		t.Fatalf("branch target = %d; want 1", branch.Target)
	}
}

func TestAssemblePopReversesOperandOrder(t *testing.T) {
	prog, _, err := Assemble("pop s0 s1 s2\n")
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	pop := prog[0]
	if len(pop.Operands) != 3 {
		t.Fatalf("pop operand count = %d; want 3", len(pop.Operands))
	}
	want := []int{isa.RegisterAliases["s2"], isa.RegisterAliases["s1"], isa.RegisterAliases["s0"]}
	for i, reg := range want {
		if pop.Operands[i].Reg != reg {
			t.Fatalf("pop operand %d = reg %d; want %d", i, pop.Operands[i].Reg, reg)
		}
	}
}

func TestAssembleDuplicateLabelErrors(t *testing.T) {
	_, _, err := Assemble("top:\nmv s0 1\ntop:\nmv s1 2\n")
	if err == nil {
		t.Fatal("expected duplicate label error")
	}
}

func TestAssembleUndefinedLabelErrors(t *testing.T) {
	_, _, err := Assemble("j nowhere\n")
	if err == nil {
		t.Fatal("expected undefined label error")
	}
}

func TestAssembleAppendsTerminatorAndPadding(t *testing.T) {
	prog, _, err := Assemble("mv s0 1\n")
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if len(prog) != 1+1+isa.PadNops {
		t.Fatalf("program length = %d; want %d", len(prog), 1+1+isa.PadNops)
	}
	if prog[1].Kind != isa.KindHalt {
		t.Fatalf("prog[1].Kind = %v; want KindHalt", prog[1].Kind)
	}
	for i := 2; i < len(prog); i++ {
		if prog[i].Kind != isa.KindNop {
			t.Fatalf("prog[%d].Kind = %v; want KindNop", i, prog[i].Kind)
		}
	}
}

func TestAssembleProgramTooLargeErrors(t *testing.T) {
	var src string
	for i := 0; i <= isa.MaxUserInstructions; i++ {
		src += "mv s0 1\n"
	}
	_, _, err := Assemble(src)
	if err == nil {
		t.Fatal("expected program-too-large error")
	}
}

func TestAssembleJumpIndirectUsesRegister(t *testing.T) {
	prog, _, err := Assemble("j ra\n")
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if prog[0].Kind != isa.KindJumpIndirect || prog[0].RegSrc1 != isa.RegisterAliases["ra"] {
		t.Fatalf("j ra = %+v; want KindJumpIndirect reg=ra", prog[0])
	}
}

func TestAssembleInOutBuildPortOperands(t *testing.T) {
	prog, _, err := Assemble("in s0 0\nout 0 s0\n")
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if prog[0].Kind != isa.KindIn || prog[0].Src1.Kind != isa.OperandPort {
		t.Fatalf("in s0 0 = %+v; want KindIn with Port source", prog[0])
	}
	if prog[1].Kind != isa.KindOut || prog[1].Dst.Kind != isa.OperandPort {
		t.Fatalf("out 0 s0 = %+v; want KindOut with Port destination", prog[1])
	}
}

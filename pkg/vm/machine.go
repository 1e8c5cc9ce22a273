// Package vm interprets an assembled instruction ROM against a fixed
// register bank and RAM-as-stack, one instruction per Step. Execution is
// host-cooperative and single-threaded: a sync instruction pauses the
// dispatch loop so the embedding program can service I/O before
// resuming, exactly like a microcontroller waiting on WFI.
package vm

import (
	"wordcpu/pkg/asm"
	"wordcpu/pkg/diag"
	"wordcpu/pkg/isa"
)

// IOFunc services a sync instruction. input lets the host push the next
// value a following "in" will read; output is the value the program
// last wrote with "out".
type IOFunc func(input *isa.Word, output isa.Word)

// Machine is the whole of the interpreter's mutable state: the register
// bank, RAM (which doubles as the downward-growing stack), the loaded
// ROM, and the two I/O latches a sync instruction hands to the host.
type Machine struct {
	Regs [isa.RegBankSize]isa.Word
	RAM  [isa.RAMSize]isa.Word

	ROM       []isa.Instruction
	SourceMap map[int]int

	PC     int
	Halted bool
	Sync   bool

	inputLatch  isa.Word
	outputLatch isa.Word

	io IOFunc

	faultPC int
}

const (
	regRA = 0
	regSP = 1
)

// New returns a Machine with no program loaded; call Program before
// stepping it.
func New() *Machine {
	m := &Machine{}
	m.Reset()
	return m
}

// Program assembles text and loads the result, replacing any previously
// loaded ROM, then resets runtime state.
func (m *Machine) Program(text string) error {
	rom, sourceMap, err := asm.Assemble(text)
	if err != nil {
		return err
	}
	m.ROM = rom
	m.SourceMap = sourceMap
	m.Reset()
	return nil
}

// Reset restores registers, RAM, and the program counter to their
// initial state without discarding the loaded ROM.
func (m *Machine) Reset() {
	m.Regs = [isa.RegBankSize]isa.Word{}
	m.Regs[regSP] = isa.InitialSP
	m.RAM = [isa.RAMSize]isa.Word{}
	m.PC = 0
	m.Halted = false
	m.Sync = false
	m.inputLatch = 0
	m.outputLatch = 0
}

// SetIOCallback registers the function invoked whenever the program
// executes sync. A nil callback makes Steps pause and return to the
// caller on sync instead of servicing it inline.
func (m *Machine) SetIOCallback(cb IOFunc) {
	m.io = cb
}

// Steps runs up to budget instructions, stopping early if the program
// halts or (with no IOFunc registered) reaches a sync. It returns the
// number of instructions actually executed.
func (m *Machine) Steps(budget int) (int, error) {
	executed := 0
	for executed < budget {
		if m.Halted {
			return executed, nil
		}
		if m.Sync {
			if m.io == nil {
				return executed, nil
			}
			m.io(&m.inputLatch, m.outputLatch)
			m.Sync = false
		}
		if err := m.Step(); err != nil {
			return executed, err
		}
		executed++
		if m.Halted {
			return executed, nil
		}
	}
	return executed, nil
}

// Step dispatches exactly one instruction. It is a no-op once Halted or
// while Sync is pending service.
func (m *Machine) Step() error {
	if m.Halted || m.Sync {
		return nil
	}
	if m.PC < 0 || m.PC >= len(m.ROM) {
		return diag.NewRuntimeError(m.PC, "program counter out of range")
	}

	at := m.PC
	m.faultPC = at
	instr := m.ROM[at]
	m.PC = at

	switch instr.Kind {
	case isa.KindHalt:
		m.Halted = true

	case isa.KindNop:
		// nothing

	case isa.KindSync:
		m.Sync = true

	case isa.KindMvRegImm:
		m.Regs[instr.RegDst] = instr.Imm

	case isa.KindMvGeneric:
		v, err := instr.Src1.Get(m)
		if err != nil {
			return err
		}
		if err := instr.Dst.Set(m, v); err != nil {
			return err
		}

	case isa.KindAluRegRegImm:
		m.Regs[instr.RegDst] = aluValue(instr.Alu, m.Regs[instr.RegSrc1], instr.Imm)

	case isa.KindAluGeneric:
		a, err := instr.Src1.Get(m)
		if err != nil {
			return err
		}
		b, err := instr.Src2.Get(m)
		if err != nil {
			return err
		}
		if err := instr.Dst.Set(m, aluValue(instr.Alu, a, b)); err != nil {
			return err
		}

	case isa.KindPush:
		if err := m.push(instr.Operands); err != nil {
			return err
		}

	case isa.KindPop:
		if err := m.pop(instr.Operands); err != nil {
			return err
		}

	case isa.KindBranchRegReg:
		if compareTrue(instr.Alu, m.Regs[instr.RegSrc1], m.Regs[instr.RegSrc2]) {
			m.PC = instr.Target
		}

	case isa.KindBranchRegImm:
		if compareTrue(instr.Alu, m.Regs[instr.RegSrc1], instr.Imm) {
			m.PC = instr.Target
		}

	case isa.KindBranchGeneric:
		a, err := instr.Src1.Get(m)
		if err != nil {
			return err
		}
		b, err := instr.Src2.Get(m)
		if err != nil {
			return err
		}
		if compareTrue(instr.Alu, a, b) {
			m.PC = instr.Target
		}

	case isa.KindJump:
		m.PC = instr.Target

	case isa.KindJumpIndirect:
		m.PC = int(m.Regs[instr.RegSrc1]) - 1

	case isa.KindAPC:
		m.Regs[instr.RegDst] = isa.Word(at) + instr.Imm

	case isa.KindIn:
		if err := m.in(instr); err != nil {
			return err
		}

	case isa.KindOut:
		if err := m.out(instr); err != nil {
			return err
		}

	default:
		return diag.NewRuntimeError(at, "unhandled instruction kind %v", instr.Kind)
	}

	m.PC++
	return nil
}

func (m *Machine) in(instr isa.Instruction) error {
	cur, err := instr.Dst.Get(m)
	if err != nil {
		return err
	}
	port, err := instr.Src1.Get(m)
	if err != nil {
		return err
	}
	shift := uint32(instr.Shift) & 31
	return instr.Dst.Set(m, cur|(port<<shift))
}

func (m *Machine) out(instr isa.Instruction) error {
	src, err := instr.Src1.Get(m)
	if err != nil {
		return err
	}
	shift := uint32(instr.Shift) & 31
	return instr.Dst.Set(m, src>>shift)
}

// push writes operands onto RAM from the current sp downward, one per
// operand, in the order given.
func (m *Machine) push(operands []isa.Operand) error {
	for _, op := range operands {
		v, err := op.Get(m)
		if err != nil {
			return err
		}
		sp := m.Regs[regSP]
		if sp < 0 || int(sp) >= isa.RAMSize {
			return diag.NewRuntimeError(m.faultPC, "stack overflow")
		}
		m.RAM[sp] = v
		m.Regs[regSP] = sp - 1
	}
	return nil
}

// pop restores operands from RAM. Its operand list has already been
// reversed by the assembler, so walking it forward with sp pre-
// incremented lands each value back on the name that pushed it.
func (m *Machine) pop(operands []isa.Operand) error {
	for _, op := range operands {
		sp := m.Regs[regSP] + 1
		if int(sp) >= isa.RAMSize {
			return diag.NewRuntimeError(m.faultPC, "stack underflow")
		}
		v := m.RAM[sp]
		if err := op.Set(m, v); err != nil {
			return err
		}
		m.Regs[regSP] = sp
	}
	return nil
}

// MachineState is the gob-encodable snapshot of everything about a
// Machine that changes between instructions: registers, RAM, the
// program counter, the halted/sync flags, and the I/O latches. Used
// for hibernating a running program and resuming it later. ROM and
// SourceMap are not part of it; pkg/image snapshots those separately
// since they only change on reprogramming, not on every step.
type MachineState struct {
	Regs        [isa.RegBankSize]isa.Word
	RAM         [isa.RAMSize]isa.Word
	PC          int
	Halted      bool
	Sync        bool
	InputLatch  isa.Word
	OutputLatch isa.Word
}

// GetState copies out the current mutable state.
func (m *Machine) GetState() MachineState {
	return MachineState{
		Regs:        m.Regs,
		RAM:         m.RAM,
		PC:          m.PC,
		Halted:      m.Halted,
		Sync:        m.Sync,
		InputLatch:  m.inputLatch,
		OutputLatch: m.outputLatch,
	}
}

// SetState replaces the current mutable state wholesale. The loaded
// ROM is untouched; callers restoring a full image set ROM separately.
func (m *Machine) SetState(s MachineState) {
	m.Regs = s.Regs
	m.RAM = s.RAM
	m.PC = s.PC
	m.Halted = s.Halted
	m.Sync = s.Sync
	m.inputLatch = s.InputLatch
	m.outputLatch = s.OutputLatch
}

// The isa.State methods below let Operand.Get/Set resolve against this
// Machine without pkg/isa ever importing pkg/vm.

func (m *Machine) Reg(i int) isa.Word { return m.Regs[i] }

func (m *Machine) SetReg(i int, v isa.Word) { m.Regs[i] = v }

func (m *Machine) Mem(addr isa.Word) (isa.Word, error) {
	if addr < 0 || int(addr) >= isa.RAMSize {
		return 0, diag.NewRuntimeError(m.faultPC, "memory address %d out of range", addr)
	}
	return m.RAM[addr], nil
}

func (m *Machine) SetMem(addr isa.Word, v isa.Word) error {
	if addr < 0 || int(addr) >= isa.RAMSize {
		return diag.NewRuntimeError(m.faultPC, "memory address %d out of range", addr)
	}
	m.RAM[addr] = v
	return nil
}

func (m *Machine) Input() isa.Word { return m.inputLatch }

func (m *Machine) SetOutput(v isa.Word) { m.outputLatch = v }

package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/peterh/liner"
	"go.uber.org/zap"
	"golang.org/x/term"

	"wordcpu/pkg/isa"
	"wordcpu/pkg/vm"
)

const (
	replBanner = "wordcpu repl. Ctrl+C cancels a line, Ctrl+D exits. Type :help for commands."
	replHelp   = `
:step [n]     execute n instructions (default 1)
:regs         print the register bank
:mem lo [hi]  print RAM[lo:hi] (hi defaults to lo+1)
:in           read one raw byte from the terminal and feed it as input
:out          print the last word written with "out"
:reset        reset registers/RAM, keep the loaded ROM
:quit         exit
`
)

// cmdRepl loads a program, then lets the user single-step it and
// inspect state between steps. file is optional: an empty machine with
// no ROM still accepts :regs/:mem/:reset, useful for poking at a
// freshly constructed Machine before wiring up a real program.
func cmdRepl(log *zap.Logger, args []string) error {
	fs := flag.NewFlagSet("repl", flag.ExitOnError)
	isAsm := fs.Bool("asm", false, "treat the input file as assembly text rather than source")
	showAsm := fs.Bool("show-asm", false, "echo the generated assembly listing to stderr before running")
	fs.Parse(args)

	m := vm.New()
	if fs.NArg() == 1 {
		if err := loadProgram(m, fs.Arg(0), *isAsm, *showAsm); err != nil {
			return err
		}
	} else if fs.NArg() > 1 {
		return fmt.Errorf("usage: wordcpu repl [-asm] [-show-asm] [file]")
	}

	ln := liner.NewLiner()
	defer ln.Close()
	ln.SetCtrlCAborts(true)

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(sigc)
	go func() {
		<-sigc
		ln.Close()
		os.Exit(130)
	}()

	fmt.Println(replBanner)
	for {
		line, err := ln.Prompt("wordcpu> ")
		if errors.Is(err, io.EOF) {
			fmt.Println()
			return nil
		}
		if err != nil {
			return nil
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		ln.AppendHistory(line)

		if err := replDispatch(log, m, line); err != nil {
			if errors.Is(err, errQuit) {
				return nil
			}
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
	}
}

var errQuit = errors.New("quit")

func replDispatch(log *zap.Logger, m *vm.Machine, line string) error {
	fields := strings.Fields(line)
	switch fields[0] {
	case ":quit":
		return errQuit
	case ":help":
		fmt.Print(replHelp)
	case ":reset":
		m.Reset()
	case ":regs":
		printRegs(m)
	case ":out":
		fmt.Printf("output = %d\n", outputLatch(m))
	case ":in":
		return replReadInput(m)
	case ":mem":
		return replMem(m, fields[1:])
	case ":step":
		return replStep(log, m, fields[1:])
	default:
		return fmt.Errorf("unknown command %q (:help for a list)", fields[0])
	}
	return nil
}

func outputLatch(m *vm.Machine) isa.Word {
	// Machine has no direct getter for outputLatch beyond GetState; the
	// REPL only needs it occasionally so paying for a full snapshot is fine.
	return m.GetState().OutputLatch
}

func replMem(m *vm.Machine, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: :mem lo [hi]")
	}
	lo, err := strconv.Atoi(args[0])
	if err != nil {
		return err
	}
	hi := lo + 1
	if len(args) > 1 {
		hi, err = strconv.Atoi(args[1])
		if err != nil {
			return err
		}
	}
	if lo < 0 || hi > isa.RAMSize || lo >= hi {
		return fmt.Errorf("range [%d:%d) out of bounds", lo, hi)
	}
	for i := lo; i < hi; i++ {
		fmt.Printf("ram[%d] = %d\n", i, m.RAM[i])
	}
	return nil
}

func replStep(log *zap.Logger, m *vm.Machine, args []string) error {
	n := 1
	if len(args) > 0 {
		v, err := strconv.Atoi(args[0])
		if err != nil {
			return err
		}
		n = v
	}
	executed, err := m.Steps(n)
	if err != nil {
		return err
	}
	log.Debug("stepped", zap.Int("requested", n), zap.Int("executed", executed))
	if m.Halted {
		fmt.Println("halted")
	}
	if m.Sync {
		fmt.Println("paused on sync (:in to service it, then :step to continue)")
	}
	return nil
}

// replReadInput puts the terminal into raw mode just long enough to
// read a single byte, then clears the pending sync so :step resumes
// the program with that byte loaded in the input latch.
func replReadInput(m *vm.Machine) error {
	fd := int(os.Stdin.Fd())
	old, err := term.MakeRaw(fd)
	if err != nil {
		return fmt.Errorf("raw mode: %w", err)
	}
	defer term.Restore(fd, old)

	buf := make([]byte, 1)
	if _, err := os.Stdin.Read(buf); err != nil {
		return err
	}

	state := m.GetState()
	state.InputLatch = isa.Word(buf[0])
	m.SetState(state)
	m.Sync = false
	fmt.Printf("\r\ninput = %d\n", buf[0])
	return nil
}

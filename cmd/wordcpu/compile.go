package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"

	"wordcpu/pkg/asm"
	"wordcpu/pkg/image"
	"wordcpu/pkg/lang"
	"wordcpu/pkg/vm"
)

// cmdCompile lowers a source file to assembly text and prints it. It
// never needs -show-asm itself: the assembly listing is its whole
// output.
func cmdCompile(log *zap.Logger, args []string) error {
	fs := flag.NewFlagSet("compile", flag.ExitOnError)
	fs.Parse(args)
	if fs.NArg() != 1 {
		return fmt.Errorf("usage: wordcpu compile file.src")
	}

	src, err := os.ReadFile(fs.Arg(0))
	if err != nil {
		return err
	}
	asmText, err := lang.Compile(string(src), nil)
	if err != nil {
		return err
	}
	log.Debug("compiled", zap.String("file", fs.Arg(0)), zap.Int("bytes", len(asmText)))
	fmt.Print(asmText)
	return nil
}

// cmdAssemble assembles a text file and reports the resulting ROM size,
// without running it.
func cmdAssemble(log *zap.Logger, args []string) error {
	fs := flag.NewFlagSet("assemble", flag.ExitOnError)
	fs.Parse(args)
	if fs.NArg() != 1 {
		return fmt.Errorf("usage: wordcpu assemble file.asm")
	}

	text, err := os.ReadFile(fs.Arg(0))
	if err != nil {
		return err
	}
	rom, sourceMap, err := asm.Assemble(string(text))
	if err != nil {
		return err
	}
	log.Debug("assembled", zap.Int("instructions", len(rom)), zap.Int("mapped lines", len(sourceMap)))
	fmt.Printf("%d instructions assembled\n", len(rom))
	return nil
}

// loadProgram reads path and, unless isAsm is set (the -asm flag),
// compiles it as source before assembling; otherwise it treats path as
// already-assembled text. If showAsm is true and path
// is source, the generated listing is echoed to stderr as it's
// compiled, the same way "-show-asm" works on other console CLIs.
func loadProgram(m *vm.Machine, path string, isAsm bool, showAsm bool) error {
	text, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if isAsm {
		return m.Program(string(text))
	}
	var trace io.Writer
	if showAsm {
		trace = os.Stderr
	}
	asmText, err := lang.Compile(string(text), trace)
	if err != nil {
		return err
	}
	return m.Program(asmText)
}

// cmdRun compiles/assembles and runs a program to completion or to its
// first sync, then reports final register state.
func cmdRun(log *zap.Logger, args []string) error {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	isAsm := fs.Bool("asm", false, "treat the input file as assembly text rather than source")
	budget := fs.Int("budget", 1_000_000, "maximum instructions to execute")
	showAsm := fs.Bool("show-asm", false, "echo the generated assembly listing to stderr before running")
	fs.Parse(args)
	if fs.NArg() != 1 {
		return fmt.Errorf("usage: wordcpu run [-asm] [-show-asm] [-budget n] file")
	}

	m := vm.New()
	if err := loadProgram(m, fs.Arg(0), *isAsm, *showAsm); err != nil {
		return err
	}

	executed, err := m.Steps(*budget)
	if err != nil {
		return err
	}
	log.Info("run finished",
		zap.Int("executed", executed),
		zap.Bool("halted", m.Halted),
		zap.Bool("sync", m.Sync),
	)
	printRegs(m)
	return nil
}

func printRegs(m *vm.Machine) {
	names := []string{"ra", "sp", "s0", "s1", "s2", "s3", "s4", "s5"}
	for i, name := range names {
		fmt.Printf("%-3s = %d\n", name, m.Regs[i])
	}
}

// cmdSave runs a program to its first sync (or halt, or budget
// exhaustion) and writes a restartable image of it to -out.
func cmdSave(log *zap.Logger, args []string) error {
	fs := flag.NewFlagSet("save", flag.ExitOnError)
	isAsm := fs.Bool("asm", false, "treat the input file as assembly text rather than source")
	budget := fs.Int("budget", 1_000_000, "maximum instructions to execute before snapshotting")
	out := fs.String("out", "", "path to write the image to")
	showAsm := fs.Bool("show-asm", false, "echo the generated assembly listing to stderr before running")
	fs.Parse(args)
	if fs.NArg() != 1 || *out == "" {
		return fmt.Errorf("usage: wordcpu save [-asm] [-show-asm] [-budget n] -out image.bin file")
	}

	m := vm.New()
	if err := loadProgram(m, fs.Arg(0), *isAsm, *showAsm); err != nil {
		return err
	}
	if _, err := m.Steps(*budget); err != nil {
		return err
	}

	blob, err := image.Save(m)
	if err != nil {
		return err
	}
	if err := os.WriteFile(*out, blob, 0o644); err != nil {
		return err
	}
	log.Info("saved image", zap.String("path", *out), zap.Int("bytes", len(blob)))
	return nil
}

// cmdResume restores a saved image and runs it onward.
func cmdResume(log *zap.Logger, args []string) error {
	fs := flag.NewFlagSet("resume", flag.ExitOnError)
	budget := fs.Int("budget", 1_000_000, "maximum instructions to execute")
	fs.Parse(args)
	if fs.NArg() != 1 {
		return fmt.Errorf("usage: wordcpu resume [-budget n] image.bin")
	}

	blob, err := os.ReadFile(fs.Arg(0))
	if err != nil {
		return err
	}
	m := vm.New()
	if err := image.Load(blob, m); err != nil {
		return err
	}
	m.Sync = false // resuming past the sync that was pending when the image was saved

	executed, err := m.Steps(*budget)
	if err != nil {
		return err
	}
	log.Info("resumed", zap.Int("executed", executed), zap.Bool("halted", m.Halted), zap.Bool("sync", m.Sync))
	printRegs(m)
	return nil
}

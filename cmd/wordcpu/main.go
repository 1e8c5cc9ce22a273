package main

import (
	"fmt"
	"os"

	"go.uber.org/zap"

	"wordcpu/internal/obslog"
)

const usage = `wordcpu is the compile/assemble/run toolchain for the word CPU.

Usage:

	wordcpu compile   file.src
	wordcpu assemble  file.asm
	wordcpu run       [-budget n] [-asm] file
	wordcpu repl      [-asm] [file]
	wordcpu batch     [-budget n] file...
	wordcpu save      [-budget n] -out image.bin file
	wordcpu resume    [-budget n] image.bin

Run "wordcpu <command> -h" for flags specific to that command.
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	verbose := os.Getenv("WORDCPU_VERBOSE") != ""
	log, err := obslog.New(verbose)
	if err != nil {
		fmt.Fprintf(os.Stderr, "wordcpu: logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	cmd, args := os.Args[1], os.Args[2:]
	var runErr error
	switch cmd {
	case "compile":
		runErr = cmdCompile(log, args)
	case "assemble":
		runErr = cmdAssemble(log, args)
	case "run":
		runErr = cmdRun(log, args)
	case "repl":
		runErr = cmdRepl(log, args)
	case "batch":
		runErr = cmdBatch(log, args)
	case "save":
		runErr = cmdSave(log, args)
	case "resume":
		runErr = cmdResume(log, args)
	case "-h", "--help", "help":
		fmt.Fprint(os.Stderr, usage)
		return
	default:
		fmt.Fprintf(os.Stderr, "wordcpu: unknown command %q\n\n%s", cmd, usage)
		os.Exit(2)
	}

	if runErr != nil {
		log.Error("command failed", zap.String("command", cmd), zap.Error(runErr))
		fmt.Fprintf(os.Stderr, "wordcpu %s: %v\n", cmd, runErr)
		os.Exit(1)
	}
}

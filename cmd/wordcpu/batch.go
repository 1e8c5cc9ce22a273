package main

import (
	"flag"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"wordcpu/pkg/vm"
)

// cmdBatch runs each file argument on its own Machine concurrently and
// prints a one-line result per file once all have finished.
func cmdBatch(log *zap.Logger, args []string) error {
	fs := flag.NewFlagSet("batch", flag.ExitOnError)
	isAsm := fs.Bool("asm", false, "treat input files as assembly text rather than source")
	budget := fs.Int("budget", 1_000_000, "maximum instructions to execute per file")
	fs.Parse(args)
	if fs.NArg() == 0 {
		return fmt.Errorf("usage: wordcpu batch [-asm] [-budget n] file...")
	}

	for _, r := range runBatch(log, fs.Args(), *isAsm, *budget) {
		fmt.Println(r)
	}
	return nil
}

// runBatch runs each file on its own Machine concurrently and returns
// one result line per file, in the same order as files. Machines never
// share state; each goroutine writes only its own result slot, and
// errgroup is used only to wait for all of them. A single file's load or
// runtime error is recorded in its own result line rather than aborting
// the rest of the batch.
func runBatch(log *zap.Logger, files []string, isAsm bool, budget int) []string {
	results := make([]string, len(files))

	var eg errgroup.Group
	var mu sync.Mutex
	for i, file := range files {
		i, file := i, file
		eg.Go(func() error {
			m := vm.New()
			if err := loadProgram(m, file, isAsm, false); err != nil {
				mu.Lock()
				results[i] = fmt.Sprintf("%s: load error: %v", file, err)
				mu.Unlock()
				return nil
			}
			executed, err := m.Steps(budget)
			if err != nil {
				mu.Lock()
				results[i] = fmt.Sprintf("%s: runtime error after %d instructions: %v", file, executed, err)
				mu.Unlock()
				return nil
			}
			mu.Lock()
			results[i] = fmt.Sprintf("%s: executed=%d halted=%v sync=%v s0=%d", file, executed, m.Halted, m.Sync, m.Regs[2])
			mu.Unlock()
			log.Info("batch file finished", zap.String("file", file), zap.Int("executed", executed))
			return nil
		})
	}
	// eg.Wait's error is always nil here: per-file failures are recorded
	// in results rather than aborting the rest of the batch.
	_ = eg.Wait()
	return results
}

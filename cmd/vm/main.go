// Command vm runs a duovm binary image to completion (spec.md §6.4):
// `vm <binary>` exits 0 on a clean EXIT, 100 on a runtime fault or when
// the image cannot be loaded, 101 on a stack overflow.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/duovm/duovm/config"
	"github.com/duovm/duovm/vm"
)

var (
	Version = "dev"
	Commit  = "unknown"
)

func main() {
	var (
		showVersion = flag.Bool("version", false, "Show version information")
		stackWords  = flag.Int("stack-words", 0, "Stack size in words (0: use config default)")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("duovm %s (%s)\n", Version, Commit)
		os.Exit(0)
	}

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: vm [flags] <binary>")
		os.Exit(2)
	}
	binPath := flag.Arg(0)

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "loading config: %v\n", err)
		os.Exit(vm.ExitFailure)
	}

	img, err := vm.LoadImage(binPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "loading %s: %v\n", binPath, err)
		os.Exit(vm.ExitFailure)
	}

	words := *stackWords
	if words <= 0 {
		words = int(cfg.VM.StackWords)
	}

	m, err := vm.New(img, words, os.Stdin, os.Stdout)
	if err != nil {
		fmt.Fprintf(os.Stderr, "initializing machine: %v\n", err)
		os.Exit(vm.ExitFailure)
	}

	os.Exit(m.Run())
}

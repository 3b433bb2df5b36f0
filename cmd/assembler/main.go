// Command assembler turns a duovm source file into a binary image
// (spec.md §6.4): `assembler <source.asm>` writes `<source>.bin` next
// to it, or to the path given by -o.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/duovm/duovm/asm"
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
		outPath     = flag.String("o", "", "Output binary path (default: <source>.bin)")
		maxErrors   = flag.Int("max-errors", 0, "Stop accumulating errors after this many (0: use config default)")
		quiet       = flag.Bool("quiet", false, "Suppress warnings")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("duovm assembler %s (%s)\n", Version, Commit)
		os.Exit(0)
	}

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: assembler [flags] <source.asm>")
		os.Exit(2)
	}
	srcPath := flag.Arg(0)

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "loading config: %v\n", err)
		os.Exit(1)
	}

	source, err := os.ReadFile(srcPath) // #nosec G304 -- path is an explicit CLI argument
	if err != nil {
		fmt.Fprintf(os.Stderr, "reading %s: %v\n", srcPath, err)
		os.Exit(1)
	}

	opts := asm.Options{
		MaxErrors:              cfg.Assembler.MaxErrors,
		WarnUnreferencedLabels: cfg.Assembler.WarnUnreferencedLabels,
	}
	if *maxErrors > 0 {
		opts.MaxErrors = *maxErrors
	}

	img, diags, err := asm.Assemble(srcPath, string(source), opts)
	if !*quiet {
		fmt.Fprint(os.Stderr, diags.WarningText())
	}
	if err != nil {
		fmt.Fprint(os.Stderr, diags.Error())
		os.Exit(1)
	}

	dest := *outPath
	if dest == "" {
		dest = strings.TrimSuffix(srcPath, filepath.Ext(srcPath)) + ".bin"
	}

	out, err := os.Create(dest) // #nosec G304 -- path is an explicit CLI argument or derived from one
	if err != nil {
		fmt.Fprintf(os.Stderr, "creating %s: %v\n", dest, err)
		os.Exit(1)
	}
	defer out.Close()

	if _, err := vm.WriteImage(out, img.Header, img.Program); err != nil {
		fmt.Fprintf(os.Stderr, "writing %s: %v\n", dest, err)
		os.Exit(1)
	}
}

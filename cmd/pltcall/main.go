// Command pltcall scans an ELF64 x86-64 shared object or executable for
// call-oriented gadgets: backward-extended instruction prefixes that fall
// through into a direct call or jmp landing inside the PLT stub range.
package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/zboralski/pltcall/internal/config"
	"github.com/zboralski/pltcall/internal/decoder"
	"github.com/zboralski/pltcall/internal/elfview"
	"github.com/zboralski/pltcall/internal/format"
	glog "github.com/zboralski/pltcall/internal/log"
	"github.com/zboralski/pltcall/internal/scanner"
	"github.com/zboralski/pltcall/internal/symbols"

	"github.com/zboralski/pltcall/internal/gadget"
)

var (
	filePath    string
	outputPath  string
	noColor     bool
	forceColor  bool
	jobs        int
	verbose     bool
	configPath  string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "pltcall",
		Short: "Find call-oriented gadgets that land in an ELF binary's PLT",
		Long: `pltcall scans an ELF64 x86-64 binary for call-oriented gadgets: short
instruction sequences ending in a direct call or jmp into the binary's
.plt.sec stub section.

For every such terminal, pltcall tries every backward prefix length below
256 bytes and emits one gadget line per prefix that decodes as an
uninterrupted run of fall-through instructions landing exactly on the
terminal.

Examples:
  pltcall -f libc.so.6                  # gadgets, colorized if stdout is a TTY
  pltcall -f libc.so.6 -o gadgets.txt   # write to a file instead
  pltcall -f libc.so.6 --force-color -o gadgets.txt | less -R`,
		RunE: runScan,
	}

	rootCmd.Flags().StringVarP(&filePath, "file", "f", "", "ELF file to analyze (required)")
	rootCmd.Flags().StringVarP(&outputPath, "output", "o", "", "write gadget listing here instead of stdout")
	rootCmd.Flags().BoolVar(&noColor, "no-color", false, "disable ANSI coloring unconditionally")
	rootCmd.Flags().BoolVar(&forceColor, "force-color", false, "enable ANSI coloring unconditionally")
	rootCmd.Flags().IntVar(&jobs, "jobs", 0, "scan sections in parallel with this many workers (0 = use the config file's jobs value; 0 or 1 scans sequentially)")
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "verbose debug logging")
	rootCmd.Flags().StringVar(&configPath, "config", "", "path to config file (default $PLTCALL_CONFIG or ~/.config/pltcall/config.yaml)")
	rootCmd.MarkFlagRequired("file")

	infoCmd := &cobra.Command{
		Use:   "info <binary>",
		Short: "Show ELF/PLT layout information without scanning for gadgets",
		Args:  cobra.ExactArgs(1),
		RunE:  runInfo,
	}
	rootCmd.AddCommand(infoCmd)
	rootCmd.AddCommand(newBrowseCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func resolveColor(cfg *config.Config, out *os.File) bool {
	if noColor {
		return false
	}
	if forceColor {
		return true
	}
	switch cfg.Color {
	case config.ColorNever:
		return false
	case config.ColorAlways:
		return true
	default:
		return isatty.IsTerminal(out.Fd()) || isatty.IsCygwinTerminal(out.Fd())
	}
}

func loadConfig() (*config.Config, error) {
	path := configPath
	if path == "" {
		path = config.DefaultPath()
	}
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}

func runScan(cmd *cobra.Command, args []string) error {
	glog.Init(verbose)
	logger := glog.L.WithCategory("scan")

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if jobs == 0 {
		jobs = cfg.Jobs
	}

	buf, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("read %s: %w", filePath, err)
	}

	view, err := elfview.Open(buf)
	if err != nil {
		return classifyOpenErr(err)
	}

	plt, err := view.NamedSection(".plt.sec")
	if err != nil {
		return fmt.Errorf("pltcall: %w", err)
	}

	dec := decoder.New(buf)
	sections := view.ExecutableSections()

	symMap, err := symbols.Build(view, dec)
	if err != nil {
		return fmt.Errorf("pltcall: resolve symbols: %w", err)
	}
	for addr, name := range symMap {
		logger.SymbolResolved(addr, name)
	}

	var terms []scanner.Terminal
	if jobs > 1 {
		terms, err = scanner.ScanSectionsParallel(buf, sections, plt.BaseVAddr, plt.Size, jobs)
		if err != nil {
			return fmt.Errorf("pltcall: scan: %w", err)
		}
	} else {
		terms = scanner.New(dec, sections, plt.BaseVAddr, plt.Size).All()
	}
	logger.ScanDone(".text", len(terms))

	src := &sliceTerminalSource{terms: terms}
	enum := gadget.New(src, dec, sections)

	out, closeOut, err := openOutput(cfg)
	if err != nil {
		return err
	}
	defer closeOut()

	f := format.New(dec).WithSymbols(symMap).WithColor(resolveColor(cfg, out))

	w := bufio.NewWriterSize(out, 64*1024)
	defer w.Flush()

	for {
		g, ok := enum.Next()
		if !ok {
			break
		}
		if cfg.Blocked(symMap[g.Terminal.Target]) {
			continue
		}
		logger.GadgetFound(g.VAddr, g.Terminal.FAddr-g.FAddr)
		fmt.Fprintln(w, f.Render(g))
	}

	return nil
}

func sectionBaseOf(sections []elfview.ExecutableSection, faddr int) int {
	for _, sec := range sections {
		lo := int(sec.BaseFAddr)
		hi := lo + int(sec.Size)
		if faddr >= lo && faddr < hi {
			return lo
		}
	}
	return faddr
}

func openOutput(cfg *config.Config) (*os.File, func(), error) {
	if outputPath == "" {
		return os.Stdout, func() {}, nil
	}
	path := outputPath
	// A bare filename (no directory component, not already absolute)
	// resolves under the config file's default output directory; a path
	// the user actually typed a directory into is never second-guessed.
	if cfg.OutputDir != "" && !filepath.IsAbs(path) && filepath.Dir(path) == "." {
		path = filepath.Join(cfg.OutputDir, path)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("create %s: %w", path, err)
	}
	return f, func() { f.Close() }, nil
}

func classifyOpenErr(err error) error {
	switch {
	case errors.Is(err, elfview.ErrNotELF):
		return fmt.Errorf("pltcall: not an ELF file: %w", err)
	case errors.Is(err, elfview.ErrUnsupportedObject):
		return fmt.Errorf("pltcall: unsupported object format: %w", err)
	default:
		return fmt.Errorf("pltcall: %w", err)
	}
}

type sliceTerminalSource struct {
	terms []scanner.Terminal
	i     int
}

func (s *sliceTerminalSource) Next() (scanner.Terminal, bool) {
	if s.i >= len(s.terms) {
		return scanner.Terminal{}, false
	}
	t := s.terms[s.i]
	s.i++
	return t, true
}

func runInfo(cmd *cobra.Command, args []string) error {
	buf, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read %s: %w", args[0], err)
	}
	view, err := elfview.Open(buf)
	if err != nil {
		return classifyOpenErr(err)
	}

	sections := view.ExecutableSections()
	fmt.Printf("Binary: %s\n", args[0])
	fmt.Printf("Executable sections: %d\n", len(sections))
	for _, sec := range sections {
		fmt.Printf("  %-12s vaddr=0x%-10x faddr=0x%-10x size=%d\n", sec.Name, sec.BaseVAddr, sec.BaseFAddr, sec.Size)
	}

	plt, err := view.NamedSection(".plt.sec")
	if err != nil {
		fmt.Println(".plt.sec: absent")
	} else {
		fmt.Printf(".plt.sec: vaddr=0x%x size=%d (%d stubs)\n", plt.BaseVAddr, plt.Size, plt.Size/symbols.StubEntrySize)
	}

	relocs, err := view.PltRelocations()
	if err == nil {
		fmt.Printf("PLT relocations: %d\n", len(relocs))
	}

	funcSyms, err := view.DynFunctionSymbols()
	if err == nil {
		fmt.Printf("Dynamic function symbols: %d\n", len(funcSyms))
	}

	dec := decoder.New(buf)
	symMap, err := symbols.Build(view, dec)
	if err != nil {
		fmt.Printf("PLT symbol resolution failed: %v\n", err)
	} else {
		fmt.Printf("Resolved PLT stubs: %d\n", len(symMap))
	}

	return nil
}

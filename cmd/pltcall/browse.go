package main

import (
	"fmt"
	"os"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/zboralski/pltcall/internal/decoder"
	"github.com/zboralski/pltcall/internal/elfview"
	"github.com/zboralski/pltcall/internal/format"
	"github.com/zboralski/pltcall/internal/gadget"
	"github.com/zboralski/pltcall/internal/scanner"
	"github.com/zboralski/pltcall/internal/symbols"
)

// newBrowseCmd builds the optional interactive gadget browser: a
// scrollable, filterable list over every gadget the enumerator produces,
// one terminal screen instead of a scrolling log. Useful for picking a
// single gadget out of a libc with tens of thousands of them.
func newBrowseCmd() *cobra.Command {
	var browseFile string
	cmd := &cobra.Command{
		Use:   "browse",
		Short: "Interactively browse discovered gadgets",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBrowse(browseFile)
		},
	}
	cmd.Flags().StringVarP(&browseFile, "file", "f", "", "ELF file to analyze (required)")
	cmd.MarkFlagRequired("file")
	return cmd
}

type gadgetItem struct {
	line string
	addr uint64
}

func (i gadgetItem) Title() string       { return fmt.Sprintf("0x%X", i.addr) }
func (i gadgetItem) Description() string { return i.line }
func (i gadgetItem) FilterValue() string  { return i.line }

type browseModel struct {
	list list.Model
}

func (m browseModel) Init() tea.Cmd { return nil }

func (m browseModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.list.SetSize(msg.Width, msg.Height)
		return m, nil
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		}
	}
	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m browseModel) View() string {
	return docStyle.Render(m.list.View())
}

var docStyle = lipgloss.NewStyle().Margin(1, 2)

func runBrowse(filePath string) error {
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

	terms := scanner.New(dec, sections, plt.BaseVAddr, plt.Size).All()
	src := &sliceTerminalSource{terms: terms}
	enum := gadget.New(src, dec, sections)
	f := format.New(dec).WithSymbols(symMap).WithColor(false)

	var items []list.Item
	for {
		g, ok := enum.Next()
		if !ok {
			break
		}
		items = append(items, gadgetItem{line: f.Render(g), addr: g.VAddr})
	}

	l := list.New(items, list.NewDefaultDelegate(), 0, 0)
	l.Title = fmt.Sprintf("pltcall — %d gadgets", len(items))

	p := tea.NewProgram(browseModel{list: l}, tea.WithAltScreen())
	_, err = p.Run()
	return err
}

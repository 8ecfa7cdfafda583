package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	bundlelower "github.com/wippyai/bundle-lower"
	"github.com/wippyai/bundle-lower/hw"
	"github.com/wippyai/bundle-lower/hwtext"
)

// listWidth is the width of the module list column.
const listWidth = 28

type browserModel struct {
	err      error
	design   *hw.Design
	opts     bundlelower.Options
	filename string
	stats    string
	modules  []moduleView
	view     viewport.Model
	selected int
	lowered  bool
	showing  pane
}

type moduleView struct {
	name   string
	kind   string
	before string
	after  string
}

type pane int

const (
	paneBefore pane = iota
	paneAfter
)

type loweredMsg struct {
	err   error
	after []string
	stats string
}

func newBrowserModel(filename string, d *hw.Design, opts bundlelower.Options, width, height int) *browserModel {
	m := &browserModel{
		design:   d,
		opts:     opts,
		filename: filename,
		view:     viewport.New(width-listWidth, height-4),
	}
	for _, mod := range d.Modules() {
		m.modules = append(m.modules, moduleView{
			name:   mod.Name,
			kind:   mod.Kind.String(),
			before: hwtext.PrintModule(d, mod.ID()),
		})
	}
	m.refresh()
	return m
}

func (m *browserModel) Init() tea.Cmd {
	return m.lower
}

func (m *browserModel) lower() tea.Msg {
	stats, err := bundlelower.LowerDesign(m.design, m.opts)
	if err != nil {
		return loweredMsg{err: err}
	}
	var after []string
	for _, mod := range m.design.Modules() {
		after = append(after, hwtext.PrintModule(m.design, mod.ID()))
	}
	return loweredMsg{after: after, stats: formatStats(stats)}
}

func (m *browserModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit

		case "up", "k":
			if m.selected > 0 {
				m.selected--
				m.refresh()
			}
			return m, nil

		case "down", "j":
			if m.selected < len(m.modules)-1 {
				m.selected++
				m.refresh()
			}
			return m, nil

		case "tab":
			if m.lowered {
				m.showing = 1 - m.showing
				m.refresh()
			}
			return m, nil
		}

	case tea.WindowSizeMsg:
		m.view.Width = msg.Width - listWidth
		m.view.Height = msg.Height - 4

	case loweredMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		for i := range m.modules {
			if i < len(msg.after) {
				m.modules[i].after = msg.after[i]
			}
		}
		m.stats = msg.stats
		m.lowered = true
		m.showing = paneAfter
		m.refresh()
		return m, nil
	}

	var cmd tea.Cmd
	m.view, cmd = m.view.Update(msg)
	return m, cmd
}

// refresh loads the selected module's text into the viewport.
func (m *browserModel) refresh() {
	if len(m.modules) == 0 {
		return
	}
	mv := m.modules[m.selected]
	text := mv.before
	if m.showing == paneAfter {
		text = mv.after
	}
	m.view.SetContent(text)
	m.view.GotoTop()
}

func (m *browserModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Bundle Lowering"))
	b.WriteString(" ")
	b.WriteString(m.filename)
	b.WriteString("\n\n")

	if m.err != nil {
		b.WriteString(errorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
		b.WriteString("\n\n")
	}

	var list strings.Builder
	for i, mv := range m.modules {
		if i == m.selected {
			list.WriteString(selectedStyle.Render("> " + mv.name))
		} else {
			list.WriteString("  " + mv.name)
		}
		list.WriteString(" " + typeStyle.Render(mv.kind) + "\n")
	}

	label := "before"
	if m.showing == paneAfter {
		label = "after"
	}
	right := moduleStyle.Render(label) + "\n" + m.view.View()

	left := lipgloss.NewStyle().Width(listWidth).Render(list.String())
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, left, right))
	b.WriteString("\n")
	if m.stats != "" {
		b.WriteString(okStyle.Render(m.stats))
		b.WriteString("\n")
	}
	b.WriteString(helpStyle.Render("↑/↓ select module • tab before/after • q quit"))
	return b.String()
}

func (a *app) browse(filename string, d *hw.Design) error {
	w, h := terminalSize(a.out)
	p := tea.NewProgram(newBrowserModel(filename, d, a.options(), w, h), tea.WithAltScreen())
	_, err := p.Run()
	return err
}

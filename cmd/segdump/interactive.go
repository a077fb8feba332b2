package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/wippyai/memseg/layout"
	"github.com/wippyai/memseg/segment"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

type modelState int

const (
	stateBrowse modelState = iota
	stateGoto
)

type interactiveModel struct {
	err      error
	seg      *segment.Segment
	filename string
	input    textinput.Model
	viewport viewport.Model
	view     view
	state    modelState
	ready    bool
}

func newInteractiveModel(filename string, seg *segment.Segment, v view) *interactiveModel {
	ti := textinput.New()
	ti.Prompt = "offset: "
	ti.Placeholder = "0x100, 4KiB"
	ti.Width = 24
	return &interactiveModel{
		filename: filename,
		seg:      seg,
		view:     v,
		input:    ti,
	}
}

func (m *interactiveModel) Init() tea.Cmd {
	return nil
}

func (m *interactiveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		height := msg.Height - 4
		if !m.ready {
			m.viewport = viewport.New(msg.Width, height)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = height
		}
		m.refresh()

	case tea.KeyMsg:
		if m.state == stateGoto {
			return m.updateGoto(msg)
		}
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case "c":
			m.view.carrier = nextCarrier(m.view.carrier)
			m.refresh()
			return m, nil
		case "o":
			if m.view.order == layout.LittleEndian {
				m.view.order = layout.BigEndian
			} else {
				m.view.order = layout.LittleEndian
			}
			m.refresh()
			return m, nil
		case "g":
			m.state = stateGoto
			m.input.SetValue("")
			return m, m.input.Focus()
		}
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m *interactiveModel) updateGoto(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.state = stateBrowse
		m.input.Blur()
		return m, nil
	case "enter":
		m.state = stateBrowse
		m.input.Blur()
		m.jump(m.input.Value())
		return m, nil
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// jump scrolls to the line holding the given byte offset.
func (m *interactiveModel) jump(s string) {
	off, err := parseOffset(s)
	if err != nil {
		m.err = err
		return
	}
	if off >= m.seg.Size() {
		m.err = fmt.Errorf("offset %d past end of %s", off, humanize.IBytes(m.seg.Size()))
		return
	}
	m.err = nil
	m.viewport.SetYOffset(int(off / m.bytesPerLine()))
}

func (m *interactiveModel) bytesPerLine() uint64 {
	if m.view.carrier == 0 {
		return uint64(max(m.view.width, 1))
	}
	if m.view.stride != 0 {
		return m.view.stride
	}
	return m.view.carrier.ByteSize()
}

func (m *interactiveModel) refresh() {
	if !m.ready {
		return
	}
	var b strings.Builder
	if err := render(&b, m.seg, m.view); err != nil {
		m.err = err
	}
	m.viewport.SetContent(b.String())
}

func (m *interactiveModel) View() string {
	if !m.ready {
		return "Loading segment..."
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("Segment Dump"))
	b.WriteString(" ")
	b.WriteString(m.filename)
	b.WriteString(" ")
	b.WriteString(infoStyle.Render(m.describe()))
	b.WriteString("\n")
	b.WriteString(m.viewport.View())
	b.WriteString("\n")

	switch {
	case m.state == stateGoto:
		b.WriteString(m.input.View())
	case m.err != nil:
		b.WriteString(errorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
	default:
		b.WriteString(helpStyle.Render("↑/↓ scroll • c carrier • o byte order • g goto • q quit"))
	}
	return b.String()
}

func (m *interactiveModel) describe() string {
	as := "hex"
	if m.view.carrier != 0 {
		as = fmt.Sprintf("%s %s", m.view.carrier, m.view.order)
	}
	return fmt.Sprintf("%s %s, %d%%", humanize.IBytes(m.seg.Size()), as, int(m.viewport.ScrollPercent()*100))
}

func nextCarrier(c layout.Carrier) layout.Carrier {
	for i, x := range carrierCycle {
		if x == c {
			return carrierCycle[(i+1)%len(carrierCycle)]
		}
	}
	return 0
}

// parseOffset accepts hex with a 0x prefix or anything humanize parses.
func parseOffset(s string) (uint64, error) {
	s = strings.TrimSpace(s)
	if rest, ok := strings.CutPrefix(strings.ToLower(s), "0x"); ok {
		var off uint64
		if _, err := fmt.Sscanf(rest, "%x", &off); err != nil {
			return 0, fmt.Errorf("parse offset %q: %w", s, err)
		}
		return off, nil
	}
	return humanize.ParseBytes(s)
}

func runInteractive(filename string, seg *segment.Segment, v view) error {
	p := tea.NewProgram(newInteractiveModel(filename, seg, v), tea.WithAltScreen())
	_, err := p.Run()
	return err
}

// Package tui provides a terminal grid editor for beatbox
package tui

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/bubbles/filepicker"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/james-see/beatbox/pkg/grid"
	"github.com/james-see/beatbox/pkg/instrument"
	"github.com/james-see/beatbox/pkg/persist"
	"github.com/james-see/beatbox/pkg/playback"
)

// Drum machine color scheme
var (
	padOrange  = lipgloss.Color("#FF8C00")
	acidYellow = lipgloss.Color("#FFFF00")
	silverGray = lipgloss.Color("#C0C0C0")
	darkGray   = lipgloss.Color("#333333")
	dimGray    = lipgloss.Color("#666666")

	// Styles
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(padOrange).
			Background(darkGray).
			Padding(0, 2).
			MarginBottom(1)

	nameStyle = lipgloss.NewStyle().
			Foreground(silverGray).
			Width(16)

	cursorNameStyle = nameStyle.
			Foreground(padOrange).
			Bold(true)

	onStyle = lipgloss.NewStyle().
		Foreground(padOrange).
		Bold(true)

	offStyle = lipgloss.NewStyle().
			Foreground(dimGray)

	cursorStyle = lipgloss.NewStyle().
			Reverse(true)

	statusStyle = lipgloss.NewStyle().
			Foreground(acidYellow).
			PaddingTop(1)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF0000")).
			Bold(true)

	helpStyle = lipgloss.NewStyle().
			Foreground(dimGray).
			MarginTop(1)

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(padOrange).
			Padding(1, 2)
)

// State represents the current TUI state
type State int

const (
	StateGrid State = iota
	StateFilePicker
)

// Model represents the TUI model
type Model struct {
	state      State
	ctrl       *playback.Controller
	filePicker filepicker.Model
	spinner    spinner.Model
	row, step  int
	path       string
	message    string
	err        error
	width      int
	height     int
}

// fileDoneMsg signals the end of a save or load
type fileDoneMsg struct {
	message string
	err     error
}

// New creates a grid editor bound to ctrl. path is where w saves.
func New(ctrl *playback.Controller, path string) Model {
	// Initialize file picker
	fp := filepicker.New()
	fp.AllowedTypes = []string{".ser", ".beatbox", ".yml", ".yaml", ".mid", ".midi"}
	fp.CurrentDirectory, _ = os.Getwd()
	if path != "" {
		if info, err := os.Stat(filepath.Dir(path)); err == nil && info.IsDir() {
			fp.CurrentDirectory = filepath.Dir(path)
		}
	}

	// Initialize spinner
	s := spinner.New()
	s.Spinner = spinner.MiniDot
	s.Style = lipgloss.NewStyle().Foreground(padOrange)

	return Model{
		state:      StateGrid,
		ctrl:       ctrl,
		filePicker: fp,
		spinner:    s,
		path:       path,
	}
}

// Init initializes the TUI model
func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles TUI updates
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	// The file picker needs to receive all messages
	if m.state == StateFilePicker {
		if keyMsg, ok := msg.(tea.KeyMsg); ok {
			switch keyMsg.String() {
			case "esc":
				m.state = StateGrid
				return m, nil
			case "ctrl+c":
				return m, tea.Quit
			}
		}

		var cmd tea.Cmd
		m.filePicker, cmd = m.filePicker.Update(msg)

		if didSelect, path := m.filePicker.DidSelectFile(msg); didSelect {
			m.state = StateGrid
			return m, m.loadFile(path)
		}

		return m, cmd
	}

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.filePicker.SetHeight(msg.Height - 10)
		return m, nil

	case tea.KeyMsg:
		return m.updateGrid(msg)

	case spinner.TickMsg:
		if m.ctrl.State() != playback.Playing {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case fileDoneMsg:
		m.message = msg.message
		m.err = msg.err
		return m, nil
	}

	return m, nil
}

func (m Model) updateGrid(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	m.err = nil
	m.message = ""

	switch msg.String() {
	case "up", "k":
		if m.row > 0 {
			m.row--
		}
	case "down", "j":
		if m.row < grid.Rows-1 {
			m.row++
		}
	case "left", "h":
		if m.step > 0 {
			m.step--
		}
	case "right", "l":
		if m.step < grid.Steps-1 {
			m.step++
		}
	case " ", "space", "enter":
		m.err = m.ctrl.ToggleCell(m.row, m.step)
	case "c":
		m.ctrl.Clear()
		m.message = "Grid cleared"
	case "p":
		if m.err = m.ctrl.Start(); m.err == nil {
			m.message = "Playing"
			return m, m.spinner.Tick
		}
	case "x":
		m.ctrl.Stop()
		m.message = "Stopped"
	case "+", "=":
		_, m.err = m.ctrl.TempoUp()
	case "-", "_":
		_, m.err = m.ctrl.TempoDown()
	case "0":
		m.err = m.ctrl.TempoReset()
	case "w":
		return m, m.saveFile()
	case "o":
		m.state = StateFilePicker
		return m, m.filePicker.Init()
	case "q", "ctrl+c":
		return m, tea.Quit
	}
	return m, nil
}

func (m Model) saveFile() tea.Cmd {
	path := m.path
	g := m.ctrl.Grid()
	return func() tea.Msg {
		if path == "" {
			return fileDoneMsg{err: errors.New("no pattern file to save to")}
		}
		if err := persist.WriteFile(path, g); err != nil {
			return fileDoneMsg{err: err}
		}
		return fileDoneMsg{message: "Saved " + filepath.Base(path)}
	}
}

func (m Model) loadFile(path string) tea.Cmd {
	ctrl := m.ctrl
	return func() tea.Msg {
		g, err := persist.ReadFile(path)
		if err != nil {
			return fileDoneMsg{err: err}
		}
		ctrl.LoadMatrix(g)
		return fileDoneMsg{message: "Loaded " + filepath.Base(path)}
	}
}

// View renders the TUI
func (m Model) View() string {
	var s strings.Builder

	switch m.state {
	case StateGrid:
		s.WriteString(m.viewGrid())
	case StateFilePicker:
		s.WriteString(m.viewFilePicker())
	}

	// Footer help
	s.WriteString("\n")
	s.WriteString(helpStyle.Render("←↑↓→: move • space: toggle • p: play • x: stop • +/-/0: tempo • c: clear • w: save • o: open • q: quit"))

	return s.String()
}

func (m Model) viewGrid() string {
	var s strings.Builder

	s.WriteString(titleStyle.Render(" BEATBOX "))
	s.WriteString("\n\n")

	g := m.ctrl.Grid()
	for _, slot := range instrument.All() {
		if slot.Index == m.row {
			s.WriteString(cursorNameStyle.Render(slot.Name))
		} else {
			s.WriteString(nameStyle.Render(slot.Name))
		}
		for j := 0; j < grid.Steps; j++ {
			if j > 0 && j%4 == 0 {
				s.WriteString(offStyle.Render("│"))
			}
			s.WriteString(m.renderCell(g, slot.Index, j))
		}
		s.WriteString("\n")
	}

	status := m.ctrl.Status()
	indicator := " "
	if status.State == playback.Playing {
		indicator = m.spinner.View()
	}
	s.WriteString(statusStyle.Render(fmt.Sprintf("%s %-7s tempo x%.3f (%.1f BPM)  %d active",
		indicator, status.State, status.TempoFactor, status.BPM, status.Active)))
	s.WriteString("\n")

	switch {
	case m.err != nil:
		s.WriteString(errorStyle.Render("✗ " + m.err.Error()))
	case m.message != "":
		s.WriteString(m.message)
	case m.path != "":
		s.WriteString(offStyle.Render(m.path))
	}

	return boxStyle.Render(s.String())
}

func (m Model) renderCell(g grid.Matrix, row, step int) string {
	cell := offStyle.Render(" · ")
	if g[row][step] {
		cell = onStyle.Render(" ■ ")
	}
	if row == m.row && step == m.step {
		return cursorStyle.Render(cell)
	}
	return cell
}

func (m Model) viewFilePicker() string {
	var s strings.Builder

	s.WriteString(titleStyle.Render(" OPEN PATTERN "))
	s.WriteString("\n\n")
	s.WriteString(m.filePicker.View())
	s.WriteString("\n")
	s.WriteString(helpStyle.Render("esc: back to grid"))

	return s.String()
}

// Run starts the TUI application
func Run(ctrl *playback.Controller, path string) error {
	p := tea.NewProgram(New(ctrl, path), tea.WithAltScreen())
	_, err := p.Run()
	return err
}

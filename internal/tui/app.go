// Package tui provides the interactive terminal dashboard for stint.
package tui

import (
	"fmt"
	"sort"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/davrk/stint/internal/project"
	"github.com/davrk/stint/internal/timer"
)

var (
	// Colors
	primaryColor = lipgloss.Color("#7C3AED")
	successColor = lipgloss.Color("#10B981")
	warningColor = lipgloss.Color("#F59E0B")
	errorColor   = lipgloss.Color("#EF4444")
	mutedColor   = lipgloss.Color("#6B7280")
	fgColor      = lipgloss.Color("#F9FAFB")

	// Styles
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(primaryColor).
			Padding(0, 1)

	rowStyle = lipgloss.NewStyle().
			Padding(0, 2)

	selectedStyle = lipgloss.NewStyle().
			Background(primaryColor).
			Foreground(fgColor).
			Bold(true).
			Padding(0, 2)

	runningStyle = lipgloss.NewStyle().Foreground(successColor).Bold(true)
	pausedStyle  = lipgloss.NewStyle().Foreground(warningColor)
	idleStyle    = lipgloss.NewStyle().Foreground(mutedColor)
	messageStyle = lipgloss.NewStyle().Foreground(errorColor)

	helpStyle = lipgloss.NewStyle().
			Foreground(mutedColor).
			Italic(true)

	inputBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(primaryColor).
			Padding(0, 1)
)

// tickMsg drives the once-per-second view refresh.
type tickMsg time.Time

// App is the dashboard model: one row per project with its live countdown.
type App struct {
	projects *project.Store
	timers   *timer.Engine

	ids         []string
	selectedIdx int
	input       textinput.Model
	adding      bool
	message     string
	width       int
	height      int
}

// New creates the dashboard over the given stores.
func New(projects *project.Store, timers *timer.Engine) *App {
	ti := textinput.New()
	ti.Placeholder = "New project name"
	ti.CharLimit = 64
	ti.Width = 40

	a := &App{projects: projects, timers: timers, input: ti}
	a.reload()
	return a
}

// Run starts the bubbletea program.
func (a *App) Run() error {
	p := tea.NewProgram(a, tea.WithAltScreen())
	_, err := p.Run()
	return err
}

// reload refreshes the sorted project id list.
func (a *App) reload() {
	doc := a.projects.Export()
	ids := make([]string, 0, len(doc))
	for id := range doc {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	a.ids = ids
	if a.selectedIdx >= len(ids) {
		a.selectedIdx = len(ids) - 1
	}
	if a.selectedIdx < 0 {
		a.selectedIdx = 0
	}
}

func (a *App) Init() tea.Cmd {
	return tick()
}

func tick() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		return a, nil

	case tickMsg:
		return a, tick()

	case tea.KeyMsg:
		if a.adding {
			return a.updateAdding(msg)
		}
		return a.updateList(msg)
	}
	return a, nil
}

func (a *App) updateAdding(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		name := a.input.Value()
		if err := a.projects.AddProject(name); err != nil {
			a.message = err.Error()
		} else {
			a.message = ""
			a.reload()
		}
		a.adding = false
		a.input.SetValue("")
		return a, nil
	case "esc":
		a.adding = false
		a.input.SetValue("")
		return a, nil
	}
	var cmd tea.Cmd
	a.input, cmd = a.input.Update(msg)
	return a, cmd
}

func (a *App) updateList(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return a, tea.Quit

	case "up", "k":
		if a.selectedIdx > 0 {
			a.selectedIdx--
		}

	case "down", "j":
		if a.selectedIdx < len(a.ids)-1 {
			a.selectedIdx++
		}

	case "a":
		a.adding = true
		a.message = ""
		a.input.Focus()
		return a, textinput.Blink

	case "s":
		if id, ok := a.selected(); ok {
			a.timers.Start(id)
			a.message = ""
		}

	case "p":
		if id, ok := a.selected(); ok {
			a.timers.Stop(id)
			a.message = ""
		}

	case "c":
		if id, ok := a.selected(); ok {
			if err := a.timers.CommitPartial(id); err != nil {
				a.message = err.Error()
			} else {
				a.message = ""
			}
		}

	case "r":
		if id, ok := a.selected(); ok {
			if err := a.timers.Reset(id, false); err != nil {
				a.message = "unsaved partial time: press R to discard, c to commit"
			}
		}

	case "R":
		if id, ok := a.selected(); ok {
			a.timers.Reset(id, true)
			a.message = ""
		}
	}
	return a, nil
}

func (a *App) selected() (string, bool) {
	if len(a.ids) == 0 {
		return "", false
	}
	return a.ids[a.selectedIdx], true
}

func (a *App) View() string {
	s := titleStyle.Render("stint") + "\n\n"

	doc := a.projects.Export()
	for i, id := range a.ids {
		p, ok := doc[id]
		if !ok {
			continue
		}
		snap := a.timers.Snapshot(id)

		status := idleStyle.Render("idle")
		switch {
		case snap.Running:
			status = runningStyle.Render(fmt.Sprintf("▶ %02d:%02d", snap.Time/60, snap.Time%60))
		case snap.PendingPartialMinutes > 0:
			status = pausedStyle.Render(fmt.Sprintf("⏸ %02d:%02d (+%dm pending)",
				snap.Time/60, snap.Time%60, snap.PendingPartialMinutes))
		}

		total := fmt.Sprintf("%dh %02dm", p.Time/60, p.Time%60)
		if pct, ok := p.BudgetPercent(); ok {
			total = fmt.Sprintf("%s · %.0f%% of budget", total, pct)
		}

		line := fmt.Sprintf("%-24s %-32s %s", p.Name, status, total)
		if i == a.selectedIdx {
			s += selectedStyle.Render(line) + "\n"
		} else {
			s += rowStyle.Render(line) + "\n"
		}
	}
	if len(a.ids) == 0 {
		s += rowStyle.Render("No projects yet. Press 'a' to add one.") + "\n"
	}

	if a.adding {
		s += "\n" + inputBoxStyle.Render(a.input.View()) + "\n"
	}
	if a.message != "" {
		s += "\n" + messageStyle.Render(a.message) + "\n"
	}

	s += "\n" + helpStyle.Render("a add · s start · p pause · c commit partial · r reset · q quit")
	return s
}

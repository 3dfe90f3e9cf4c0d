package cmd

import (
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
)

var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Live TUI view of pending goal sets, with a cancel action",
	Long: `dashboard is a CLI-native rendering of the chat surface's
"list goal sets" / "cancel goal sets" commands, for operators without a
chat backend configured. Use the arrow keys to select a goal set and
"c" to cancel it.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		p := tea.NewProgram(newDashboardModel())
		_, err := p.Run()
		return err
	},
}

func init() {
	rootCmd.AddCommand(dashboardCmd)
}

var (
	dashboardTitleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("6"))
	dashboardSelectedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("2")).Bold(true)
	dashboardDimStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	dashboardErrStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
)

type tickMsg time.Time

type setsLoadedMsg struct {
	sets []goalSetSummary
	err  error
}

type canceledMsg struct {
	id  string
	err error
}

type dashboardModel struct {
	sets     []goalSetSummary
	cursor   int
	err      error
	status   string
	quitting bool
}

func newDashboardModel() dashboardModel {
	return dashboardModel{}
}

func (m dashboardModel) Init() tea.Cmd {
	return tea.Batch(loadSets, tick())
}

func tick() tea.Cmd {
	return tea.Tick(3*time.Second, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func loadSets() tea.Msg {
	var sets []goalSetSummary
	err := adminGet("/goal-sets", &sets)
	return setsLoadedMsg{sets: sets, err: err}
}

func cancelSet(id string) tea.Cmd {
	return func() tea.Msg {
		err := adminDo("DELETE", "/goal-sets/"+id, nil)
		return canceledMsg{id: id, err: err}
	}
}

func (m dashboardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
			}
		case "down", "j":
			if m.cursor < len(m.sets)-1 {
				m.cursor++
			}
		case "c":
			if m.cursor < len(m.sets) {
				return m, cancelSet(m.sets[m.cursor].GoalSetID)
			}
		}
	case tickMsg:
		return m, tea.Batch(loadSets, tick())
	case setsLoadedMsg:
		m.err = msg.err
		if msg.err == nil {
			m.sets = msg.sets
			if m.cursor >= len(m.sets) {
				m.cursor = max(0, len(m.sets)-1)
			}
		}
	case canceledMsg:
		if msg.err != nil {
			m.status = fmt.Sprintf("cancel %s failed: %v", msg.id, msg.err)
		} else {
			m.status = fmt.Sprintf("canceled %s", msg.id)
		}
		return m, loadSets
	}
	return m, nil
}

func (m dashboardModel) View() string {
	if m.quitting {
		return ""
	}
	var b string
	b += dashboardTitleStyle.Render("sdmctl dashboard — pending goal sets") + "\n\n"
	if m.err != nil {
		b += dashboardErrStyle.Render(fmt.Sprintf("error: %v", m.err)) + "\n"
	} else if len(m.sets) == 0 {
		b += dashboardDimStyle.Render("no pending goal sets") + "\n"
	}
	for i, s := range m.sets {
		line := fmt.Sprintf("%s@%s  %s", s.Branch, s.SHA, s.GoalSetID)
		if i == m.cursor {
			b += dashboardSelectedStyle.Render("> "+line) + "\n"
		} else {
			b += "  " + line + "\n"
		}
	}
	if m.status != "" {
		b += "\n" + dashboardDimStyle.Render(m.status) + "\n"
	}
	b += "\n" + dashboardDimStyle.Render("↑/↓ select · c cancel · q quit") + "\n"
	return b
}

package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/actionhost/agentgate/internal/domain"
)

func newDashCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dashboard",
		Short: "Live dashboard of safe mode, the approval queue, and recent audit activity",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient(cmd.Context())
			if err != nil {
				return err
			}
			p := tea.NewProgram(newDashModel(c), tea.WithAltScreen())
			_, err = p.Run()
			return err
		},
	}
}

type dashTheme struct {
	primary lipgloss.Style
	muted   lipgloss.Style
	danger  lipgloss.Style
	header  lipgloss.Style
}

func newDashTheme() dashTheme {
	return dashTheme{
		primary: lipgloss.NewStyle().Foreground(lipgloss.Color("12")),
		muted:   lipgloss.NewStyle().Foreground(lipgloss.Color("240")),
		danger:  lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true),
		header:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("14")),
	}
}

type tickMsg time.Time

type snapshotMsg struct {
	safeMode bool
	pending  []domain.ActionRequest
	audit    []domain.AuditEvent
	err      error
}

func tickCmd() tea.Cmd {
	return tea.Tick(3*time.Second, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func fetchSnapshotCmd(c *client) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		var msg snapshotMsg

		var safeMode struct {
			Enabled bool `json:"enabled"`
		}
		if err := c.getJSON(ctx, "/api/admin/safe-mode", &safeMode); err != nil {
			msg.err = err
			return msg
		}
		msg.safeMode = safeMode.Enabled

		if err := c.getJSON(ctx, "/api/admin/action-requests?status="+string(domain.RequestPlanned), &msg.pending); err != nil {
			msg.err = err
			return msg
		}

		if err := c.getJSON(ctx, "/api/admin/audit", &msg.audit); err != nil {
			msg.err = err
			return msg
		}
		if len(msg.audit) > 8 {
			msg.audit = msg.audit[len(msg.audit)-8:]
		}
		return msg
	}
}

type dashModel struct {
	client  *client
	theme   dashTheme
	spinner spinner.Model

	safeMode bool
	pending  []domain.ActionRequest
	audit    []domain.AuditEvent
	lastErr  error

	width, height int
}

func newDashModel(c *client) dashModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	return dashModel{client: c, theme: newDashTheme(), spinner: sp}
}

func (m dashModel) Init() tea.Cmd {
	return tea.Batch(fetchSnapshotCmd(m.client), tickCmd(), m.spinner.Tick)
}

func (m dashModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
	case tickMsg:
		return m, tea.Batch(fetchSnapshotCmd(m.client), tickCmd())
	case snapshotMsg:
		m.lastErr = msg.err
		if msg.err == nil {
			m.safeMode = msg.safeMode
			m.pending = msg.pending
			m.audit = msg.audit
		}
		return m, nil
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m dashModel) View() string {
	var b strings.Builder

	mode := "OFF"
	modeStyle := m.theme.danger
	if m.safeMode {
		mode = "ON"
		modeStyle = m.theme.primary
	}
	fmt.Fprintf(&b, "%s  agentgate dashboard   safe mode: %s   %s\n\n",
		m.spinner.View(), modeStyle.Render(mode), m.theme.muted.Render("q to quit"))

	if m.lastErr != nil {
		fmt.Fprintf(&b, "%s\n\n", m.theme.danger.Render("fetch failed: "+m.lastErr.Error()))
	}

	b.WriteString(m.theme.header.Render(fmt.Sprintf("Pending approvals (%d)", len(m.pending))))
	b.WriteString("\n")
	if len(m.pending) == 0 {
		b.WriteString(m.theme.muted.Render("  none"))
		b.WriteString("\n")
	}
	for _, req := range m.pending {
		fmt.Fprintf(&b, "  %-36s %-10s %s\n", req.ID, req.Input.Type, req.Summary)
	}

	b.WriteString("\n")
	b.WriteString(m.theme.header.Render("Recent audit events"))
	b.WriteString("\n")
	for _, e := range m.audit {
		fmt.Fprintf(&b, "  %s  %s\n", e.CreatedAt.Format("15:04:05"), e.EventType)
	}

	return b.String()
}

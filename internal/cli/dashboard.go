package cli

import (
	"fmt"
	"sort"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
)

// Dashboard panel indices.
const (
	panelMonth = iota
	panelBests
	panelActivity
	panelCount
)

type dashboardModel struct {
	activePanel int
	width       int
	height      int

	// Data.
	month       *monthSnapshot
	bests       *bestsSnapshot
	metricsData *metricsSnapshot
	alerts      []alertSnapshot

	// State.
	loading bool
	err     error
}

type monthSnapshot struct {
	title    string
	sessions int
	rows     [][2]string
}

type bestsSnapshot struct {
	title string
	rows  [][3]string
}

type metricsSnapshot struct {
	ingested      int
	rejected      int
	personalBests int
	eventCount    int
}

type alertSnapshot struct {
	severity string
	message  string
	time     string
}

// dataLoadedMsg carries loaded data back to the model.
type dataLoadedMsg struct {
	month   *monthSnapshot
	bests   *bestsSnapshot
	metrics *metricsSnapshot
	alerts  []alertSnapshot
	err     error
}

// Style definitions.
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("230")).
			Background(lipgloss.Color("62")).
			Padding(0, 1)

	panelStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(1, 2)

	activePanelStyle = lipgloss.NewStyle().
				BorderStyle(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.Color("62")).
				Padding(1, 2)

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("62")).
			MarginBottom(1)

	rankFirst = lipgloss.NewStyle().Foreground(lipgloss.Color("220")).Bold(true)
	rankOther = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))

	severityHigh   = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	severityMedium = lipgloss.NewStyle().Foreground(lipgloss.Color("226"))
	severityLow    = lipgloss.NewStyle().Foreground(lipgloss.Color("69"))

	helpStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

func newDashboardModel() dashboardModel {
	return dashboardModel{
		activePanel: panelMonth,
		loading:     true,
	}
}

func (m dashboardModel) Init() tea.Cmd {
	return loadData
}

func (m dashboardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			return m, tea.Quit
		case "tab":
			m.activePanel = (m.activePanel + 1) % panelCount
			return m, nil
		case "shift+tab":
			m.activePanel = (m.activePanel - 1 + panelCount) % panelCount
			return m, nil
		case "r":
			m.loading = true
			return m, loadData
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case dataLoadedMsg:
		m.loading = false
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.month = msg.month
		m.bests = msg.bests
		m.metricsData = msg.metrics
		m.alerts = msg.alerts
		m.err = nil
		return m, nil
	}

	return m, nil
}

func (m dashboardModel) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	title := titleStyle.Render(" Tracks ")
	help := helpStyle.Render("tab: switch panel | r: refresh | q: quit")

	if m.loading {
		return fmt.Sprintf("%s\n\n  Loading data...\n\n%s", title, help)
	}

	if m.err != nil {
		return fmt.Sprintf("%s\n\n  Error: %s\n\n%s", title, m.err, help)
	}

	monthPanel := m.renderMonthPanel()
	bestsPanel := m.renderBestsPanel()
	activityPanel := m.renderActivityPanel()

	// Available width for panels after accounting for margins.
	availableWidth := m.width - 2

	var body string
	if availableWidth > 120 {
		colWidth := availableWidth / 3
		monthPanel = m.applyPanelStyle(panelMonth, monthPanel, colWidth-4)
		bestsPanel = m.applyPanelStyle(panelBests, bestsPanel, colWidth-4)
		activityPanel = m.applyPanelStyle(panelActivity, activityPanel, colWidth-4)
		body = lipgloss.JoinHorizontal(lipgloss.Top, monthPanel, bestsPanel, activityPanel)
	} else {
		panelWidth := availableWidth - 4
		if panelWidth < 20 {
			panelWidth = 20
		}
		monthPanel = m.applyPanelStyle(panelMonth, monthPanel, panelWidth)
		bestsPanel = m.applyPanelStyle(panelBests, bestsPanel, panelWidth)
		activityPanel = m.applyPanelStyle(panelActivity, activityPanel, panelWidth)
		body = lipgloss.JoinVertical(lipgloss.Left, monthPanel, bestsPanel, activityPanel)
	}

	return fmt.Sprintf("%s\n\n%s\n\n%s", title, body, help)
}

func (m dashboardModel) applyPanelStyle(panel int, content string, width int) string {
	style := panelStyle
	if m.activePanel == panel {
		style = activePanelStyle
	}
	return style.Width(width).Render(content)
}

func (m dashboardModel) renderMonthPanel() string {
	var b strings.Builder
	if m.month == nil {
		b.WriteString(headerStyle.Render("This month"))
		b.WriteString("\n  No sessions recorded.")
		return b.String()
	}

	b.WriteString(headerStyle.Render(m.month.title))
	b.WriteString("\n")
	for _, row := range m.month.rows {
		b.WriteString(fmt.Sprintf("  %-18s %s\n", row[0], row[1]))
	}
	b.WriteString(fmt.Sprintf("\n  Sessions: %d", m.month.sessions))
	return b.String()
}

func (m dashboardModel) renderBestsPanel() string {
	var b strings.Builder
	if m.bests == nil {
		b.WriteString(headerStyle.Render("Personal bests"))
		b.WriteString("\n  No sessions recorded.")
		return b.String()
	}

	b.WriteString(headerStyle.Render(m.bests.title))
	b.WriteString("\n")
	if len(m.bests.rows) == 0 {
		b.WriteString("  No sessions recorded.")
		return b.String()
	}
	for _, row := range m.bests.rows {
		line := fmt.Sprintf("  %-4s %-12s %s", row[0], row[1], row[2])
		b.WriteString(styleForRank(row[0]).Render(line))
		b.WriteString("\n")
	}
	return b.String()
}

func (m dashboardModel) renderActivityPanel() string {
	var b strings.Builder
	b.WriteString(headerStyle.Render("Activity (30d)"))
	b.WriteString("\n")

	if m.metricsData == nil {
		b.WriteString("  No metrics available.\n")
	} else {
		md := m.metricsData
		lines := []struct {
			label string
			value int
		}{
			{"Events", md.eventCount},
			{"Sessions", md.ingested},
			{"Rejected", md.rejected},
			{"New bests", md.personalBests},
		}
		for _, l := range lines {
			b.WriteString(fmt.Sprintf("  %-14s %d\n", l.label, l.value))
		}
	}

	b.WriteString("\n")
	if len(m.alerts) == 0 {
		b.WriteString("  No active alerts.")
		return b.String()
	}
	for _, a := range m.alerts {
		sev := styleForSeverity(a.severity).Render(fmt.Sprintf("[%s]", strings.ToUpper(a.severity)))
		b.WriteString(fmt.Sprintf("  %s %s\n", sev, a.message))
	}
	b.WriteString(fmt.Sprintf("\n  Total: %d alert(s)", len(m.alerts)))
	return b.String()
}

func styleForRank(rank string) lipgloss.Style {
	if strings.TrimSuffix(rank, "=") == "1" {
		return rankFirst
	}
	return rankOther
}

func styleForSeverity(severity string) lipgloss.Style {
	switch strings.ToLower(severity) {
	case "high":
		return severityHigh
	case "medium":
		return severityMedium
	case "low":
		return severityLow
	default:
		return lipgloss.NewStyle()
	}
}

func loadData() tea.Msg {
	var result dataLoadedMsg

	if Engine != nil {
		months := Engine.Months()
		if len(months) > 0 {
			latest := months[len(months)-1]
			if report, ok := Engine.MonthReport(latest); ok {
				snap := &monthSnapshot{title: monthTitle(report.Month), sessions: report.Sessions}
				for _, v := range report.Values {
					snap.rows = append(snap.rows, [2]string{v.Name, v.Display})
				}
				result.month = snap
			}
		}

		report := Engine.BestsReport()
		snap := &bestsSnapshot{title: fmt.Sprintf("Top %d by %s", report.Size, report.Key)}
		for _, e := range report.Entries {
			snap.rows = append(snap.rows, [3]string{e.Rank, e.Date, e.Display})
		}
		result.bests = snap
	}

	if MetricsCalc != nil {
		since := time.Now().UTC().AddDate(0, 0, -30)
		metrics, err := MetricsCalc.Calculate(since)
		if err != nil {
			result.err = fmt.Errorf("loading metrics: %w", err)
			return result
		}
		result.metrics = &metricsSnapshot{
			ingested:      metrics.SessionsIngested,
			rejected:      metrics.SessionsRejected,
			personalBests: metrics.PersonalBests,
			eventCount:    metrics.EventCount,
		}
	}

	if AlertEngine != nil {
		alerts, err := AlertEngine.Evaluate()
		if err != nil {
			result.err = fmt.Errorf("loading alerts: %w", err)
			return result
		}
		result.alerts = make([]alertSnapshot, 0, len(alerts))

		// Sort alerts by severity: high first, then medium, then low.
		sort.Slice(alerts, func(i, j int) bool {
			return severityRank(string(alerts[i].Severity)) < severityRank(string(alerts[j].Severity))
		})

		for _, a := range alerts {
			result.alerts = append(result.alerts, alertSnapshot{
				severity: string(a.Severity),
				message:  a.Message,
				time:     a.TriggeredAt.Format("2006-01-02 15:04 UTC"),
			})
		}
	}

	return result
}

func severityRank(s string) int {
	switch s {
	case "high":
		return 0
	case "medium":
		return 1
	case "low":
		return 2
	default:
		return 3
	}
}

var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Interactive TUI dashboard for summaries and personal bests",
	Long: `Launch an interactive terminal dashboard showing the latest month's
summary, the personal bests ranking, ingestion metrics and alerts.

Navigate between panels with Tab, refresh with r, quit with q.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireEngine(); err != nil {
			return err
		}
		p := tea.NewProgram(newDashboardModel(), tea.WithAltScreen())
		_, err := p.Run()
		return err
	},
}

func init() {
	rootCmd.AddCommand(dashboardCmd)
}

package cli

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/valter-silva-au/tracks/internal/core"
)

var summaryJSON bool

var summaryCmd = &cobra.Command{
	Use:   "summary [YYYY-MM]",
	Short: "Show the summary of a month",
	Long: `Show every measure of a month aggregated with its summary function:
sums for distance and time, the best value for speed, and so on.

With no argument the most recent month with sessions is shown.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireEngine(); err != nil {
			return err
		}

		var month core.MonthKey
		if len(args) > 0 {
			m, err := core.ParseMonthKey(args[0])
			if err != nil {
				return err
			}
			month = m
		} else {
			months := Engine.Months()
			if len(months) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No sessions recorded.")
				return nil
			}
			month = months[len(months)-1]
		}

		report, ok := Engine.MonthReport(month)
		if !ok {
			return fmt.Errorf("no sessions in %s", month)
		}

		if summaryJSON {
			data, err := json.MarshalIndent(report, "", "  ")
			if err != nil {
				return fmt.Errorf("formatting summary as JSON: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return nil
		}

		fmt.Fprintln(cmd.OutOrStdout(), renderMonthReport(report))
		return nil
	},
}

var tableHeaderStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("62")).Padding(0, 1)
var tableCellStyle = lipgloss.NewStyle().Padding(0, 1)

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("240"))).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return tableHeaderStyle
			}
			return tableCellStyle
		}).
		Headers(headers...)
}

func renderMonthReport(report core.MonthReport) string {
	t := newTable("Measure", "Value")
	for _, v := range report.Values {
		name := v.Name
		if v.Metadata {
			name += " *"
		}
		t.Row(name, v.Display)
	}
	title := fmt.Sprintf("%s (%d sessions)", monthTitle(report.Month), report.Sessions)
	return headerStyle.Render(title) + "\n" + t.String()
}

func monthTitle(m core.MonthKey) string {
	return time.Date(m.Year, m.Month, 1, 0, 0, 0, 0, time.UTC).Format("January 2006")
}

func init() {
	summaryCmd.Flags().BoolVar(&summaryJSON, "json", false, "Output the summary as JSON")
	rootCmd.AddCommand(summaryCmd)
}

package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/valter-silva-au/tracks/internal/observability"
)

var (
	metricsJSON   bool
	metricsSince  string
	metricsAlerts bool
)

var metricsCmd = &cobra.Command{
	Use:   "metrics",
	Short: "Display ingestion metrics",
	Long: `Display aggregated metrics derived from the event log.

Metrics include accepted and rejected sessions, rejections by reason,
sessions per month and new personal bests. Add --alerts to evaluate the
alert conditions as well.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if MetricsCalc == nil {
			return fmt.Errorf("metrics calculator not initialized (event log may be disabled)")
		}

		sinceTime, err := parseSinceDuration(metricsSince, time.Now())
		if err != nil {
			return fmt.Errorf("parsing --since: %w", err)
		}

		metrics, err := MetricsCalc.Calculate(sinceTime)
		if err != nil {
			return fmt.Errorf("calculating metrics: %w", err)
		}

		out := cmd.OutOrStdout()
		if metricsJSON {
			data, err := json.MarshalIndent(metrics, "", "  ")
			if err != nil {
				return fmt.Errorf("formatting metrics as JSON: %w", err)
			}
			fmt.Fprintln(out, string(data))
			return nil
		}

		printMetrics(out, metrics, sinceTime)

		if metricsAlerts {
			if AlertEngine == nil {
				return fmt.Errorf("alert engine not initialized (event log may be disabled)")
			}
			alerts, err := AlertEngine.Evaluate()
			if err != nil {
				return fmt.Errorf("evaluating alerts: %w", err)
			}
			fmt.Fprintln(out)
			printAlerts(out, alerts)
		}
		return nil
	},
}

func printMetrics(out io.Writer, metrics *observability.Metrics, since time.Time) {
	fmt.Fprintf(out, "Metrics (since %s)\n\n", since.Format("2006-01-02"))
	fmt.Fprintf(out, "  %-24s %d\n", "Events recorded:", metrics.EventCount)
	fmt.Fprintf(out, "  %-24s %d\n", "Sessions ingested:", metrics.SessionsIngested)
	fmt.Fprintf(out, "  %-24s %d\n", "Sessions rejected:", metrics.SessionsRejected)
	fmt.Fprintf(out, "  %-24s %.0f%%\n", "Rejection rate:", metrics.RejectionRate()*100)
	fmt.Fprintf(out, "  %-24s %d\n", "New personal bests:", metrics.PersonalBests)
	fmt.Fprintf(out, "  %-24s %d\n", "Ranking rebuilds:", metrics.Rebuilds)

	printCounts(out, "Rejections by reason:", metrics.RejectionsByReason)
	printCounts(out, "Sessions by month:", metrics.SessionsByMonth)

	if metrics.LastIngest != nil {
		fmt.Fprintf(out, "\n  %-24s %s\n", "Last session:", metrics.LastIngest.Format(time.RFC3339))
	}
	if metrics.OldestEvent != nil {
		fmt.Fprintf(out, "  %-24s %s\n", "Oldest event:", metrics.OldestEvent.Format(time.RFC3339))
	}
	if metrics.NewestEvent != nil {
		fmt.Fprintf(out, "  %-24s %s\n", "Newest event:", metrics.NewestEvent.Format(time.RFC3339))
	}
}

func printCounts(out io.Writer, title string, counts map[string]int) {
	if len(counts) == 0 {
		return
	}
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	fmt.Fprintf(out, "\n  %s\n", title)
	for _, k := range keys {
		fmt.Fprintf(out, "    %-20s %d\n", k+":", counts[k])
	}
}

// parseSinceDuration parses a duration string like "7d", "30d" or "24h" and
// returns the corresponding time before now. Empty means 30 days.
func parseSinceDuration(s string, now time.Time) (time.Time, error) {
	now = now.UTC()
	s = strings.TrimSpace(s)
	if s == "" {
		return now.AddDate(0, 0, -30), nil
	}

	if strings.HasSuffix(s, "d") {
		days, err := strconv.Atoi(strings.TrimSuffix(s, "d"))
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid day duration %q", s)
		}
		return now.AddDate(0, 0, -days), nil
	}

	if strings.HasSuffix(s, "h") {
		hours, err := strconv.Atoi(strings.TrimSuffix(s, "h"))
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid hour duration %q", s)
		}
		return now.Add(-time.Duration(hours) * time.Hour), nil
	}

	return time.Time{}, fmt.Errorf("unsupported duration format %q (use e.g. 7d, 30d, 24h)", s)
}

func init() {
	metricsCmd.Flags().BoolVar(&metricsJSON, "json", false, "Output metrics as JSON")
	metricsCmd.Flags().StringVar(&metricsSince, "since", "30d", "Time window for metrics (e.g. 7d, 30d, 24h)")
	metricsCmd.Flags().BoolVar(&metricsAlerts, "alerts", false, "Evaluate alert conditions as well")
	rootCmd.AddCommand(metricsCmd)
}

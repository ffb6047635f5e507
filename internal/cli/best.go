package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	bestKey  string
	bestNum  int
	bestSave bool
	bestJSON bool
)

var bestCmd = &cobra.Command{
	Use:   "best",
	Short: "Show the personal bests ranking",
	Long: `Show the top sessions ranked by the personal bests measure. Sessions
with equal values share a rank, shown as 1=, 1=, 3.

--key and --num switch the ranking to another measure or size for this
run; add --save to write the choice into the stored schema.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireEngine(); err != nil {
			return err
		}

		current := Engine.PersonalBests()
		key, num := current.Key(), current.Size()
		if bestKey != "" {
			key = bestKey
		}
		if bestNum != 0 {
			num = bestNum
		}
		if key != current.Key() || num != current.Size() {
			if err := Engine.Reconfigure(key, num); err != nil {
				return err
			}
		}

		if bestSave {
			if Schemas == nil {
				return fmt.Errorf("schema store not initialized")
			}
			if err := Schemas.Save(Engine.Schema().Document()); err != nil {
				return err
			}
		}

		report := Engine.BestsReport()
		out := cmd.OutOrStdout()
		if bestJSON {
			data, err := json.MarshalIndent(report, "", "  ")
			if err != nil {
				return fmt.Errorf("formatting personal bests as JSON: %w", err)
			}
			fmt.Fprintln(out, string(data))
			return nil
		}

		if len(report.Entries) == 0 {
			fmt.Fprintln(out, "No sessions recorded.")
			return nil
		}
		t := newTable("Rank", "Date", report.Name, "Session")
		for _, e := range report.Entries {
			t.Row(e.Rank, e.Date, e.Display, e.SessionID)
		}
		fmt.Fprintln(out, headerStyle.Render(fmt.Sprintf("Top %d by %s", report.Size, report.Key)))
		fmt.Fprintln(out, t.String())
		if bestSave {
			fmt.Fprintf(out, "Saved ranking to %s\n", Schemas.Path(Engine.Schema().Name()))
		}
		return nil
	},
}

func init() {
	bestCmd.Flags().StringVar(&bestKey, "key", "", "Measure to rank sessions by")
	bestCmd.Flags().IntVar(&bestNum, "num", 0, "Number of sessions to keep in the ranking")
	bestCmd.Flags().BoolVar(&bestSave, "save", false, "Store the ranking choice in the activity schema")
	bestCmd.Flags().BoolVar(&bestJSON, "json", false, "Output the ranking as JSON")
	rootCmd.AddCommand(bestCmd)
}

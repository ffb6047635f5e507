package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/valter-silva-au/tracks/internal/core"
)

var monthsKey string

var monthsCmd = &cobra.Command{
	Use:   "months",
	Short: "List the months with sessions",
	Long: `List the months that have sessions, oldest first, with the number of
sessions and the summary of one measure. The best month for that measure
is marked with *.

The measure defaults to the personal bests measure.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireEngine(); err != nil {
			return err
		}

		schema := Engine.Schema()
		key := monthsKey
		if key == "" {
			key = Engine.PersonalBests().Key()
		}
		def, ok := schema.Measure(key)
		if !ok {
			return fmt.Errorf("unknown measure %q", key)
		}

		months := Engine.Months()
		if len(months) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No sessions recorded.")
			return nil
		}

		best, _, hasBest := Engine.BestMonth(key)
		t := newTable("Month", "Sessions", def.FullName(), "")
		for _, m := range months {
			sum, _ := Engine.SummaryFor(m)
			value := "-"
			if v, ok := sum.Values[key]; ok {
				value = core.Format(v, def)
			}
			mark := ""
			if hasBest && m == best {
				mark = "*"
			}
			t.Row(m.String(), strconv.Itoa(sum.Sessions), value, mark)
		}
		fmt.Fprintln(cmd.OutOrStdout(), t.String())
		return nil
	},
}

func init() {
	monthsCmd.Flags().StringVar(&monthsKey, "key", "", "Measure to show and pick the best month by")
	rootCmd.AddCommand(monthsCmd)
}

package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/valter-silva-au/tracks/internal/core"
	"github.com/valter-silva-au/tracks/pkg/models"
)

var (
	addFields map[string]string
	addID     string
)

var addCmd = &cobra.Command{
	Use:   "add --set key=value ...",
	Short: "Record a session",
	Long: `Record a session from raw measure values. Every raw measure of the
schema must be given; derived measures are computed.

  tracks add --set date=2024-03-05 --set time=1:05:30 --set distance=32.4 \
             --set calories=820 --set gear=3

Durations accept mm, mm:ss, hh:mm:ss or decimal hours. Dates accept
YYYY-MM-DD, RFC 3339, "02 Mar 2024", 2/3/2024 and 02032024.

A session that fails to resolve, for example because a derived measure
divides by a zero duration, is rejected in full and nothing is recorded.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireEngine(); err != nil {
			return err
		}
		if len(addFields) == 0 {
			return fmt.Errorf("no values given; use --set key=value for each raw measure")
		}

		result, err := Engine.Ingest(commandContext(cmd), models.RawSession{ID: addID, Fields: addFields})
		if err != nil {
			var evalErr *core.EvalError
			if errors.As(err, &evalErr) {
				return fmt.Errorf("session rejected: %w", evalErr)
			}
			return err
		}

		schema := Engine.Schema()
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Recorded session %s in %s\n", result.Session.ID, result.Month)

		keys := append(schema.RawKeys(), schema.DerivedKeys()...)
		for _, key := range keys {
			v, ok := result.Session.Values[key]
			if !ok {
				continue
			}
			def, _ := schema.Measure(key)
			fmt.Fprintf(out, "  %-20s %s\n", def.FullName()+":", core.Format(v, def))
		}

		if result.PersonalBest.IsNewPersonalBest {
			key := Engine.PersonalBests().Key()
			fmt.Fprintf(out, "\n%s\n", core.PersonalBestMessage(schema, key, result.Session, result.PersonalBest.Rank))
		}
		return nil
	},
}

func init() {
	addCmd.Flags().StringToStringVarP(&addFields, "set", "s", nil, "Raw measure value as key=value (repeatable)")
	addCmd.Flags().StringVar(&addID, "id", "", "Session identifier (generated when empty)")
	rootCmd.AddCommand(addCmd)
}

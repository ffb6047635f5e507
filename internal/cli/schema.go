package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/valter-silva-au/tracks/internal/core"
)

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Inspect and validate activity schemas",
}

var schemaShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the schema in use as YAML",
	Long: `Print the schema in use as YAML. Raw measures are listed first, then
derived measures in the order they are evaluated.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireEngine(); err != nil {
			return err
		}
		data, err := Engine.Schema().Marshal()
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(data)
		return err
	},
}

var schemaValidateCmd = &cobra.Command{
	Use:   "validate [file]",
	Short: "Validate a schema document",
	Long: `Validate a schema document. With no argument the stored schema of the
configured activity is checked.

Every problem is reported: unknown kinds or summaries, relations naming
missing measures, dependency cycles, and invalid preferences.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		reg := Registry
		if reg == nil {
			reg = core.NewComparatorRegistry()
		}

		var (
			schema *core.Schema
			source string
			err    error
		)
		if len(args) > 0 {
			source = args[0]
			schema, err = core.LoadSchemaFile(source, reg)
		} else {
			if Schemas == nil || Config == nil {
				return fmt.Errorf("schema store not initialized")
			}
			source = Schemas.Path(Config.Activity)
			var data []byte
			data, err = Schemas.Load(Config.Activity)
			if err == nil {
				schema, err = core.LoadSchema(data, reg)
			}
		}
		if err != nil {
			return fmt.Errorf("%s is not valid: %w", source, err)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%s: schema %q is valid\n", source, schema.Name())
		fmt.Fprintf(out, "  raw measures:     %s\n", strings.Join(schema.RawKeys(), ", "))
		if derived := schema.DerivedKeys(); len(derived) > 0 {
			fmt.Fprintf(out, "  derived measures: %s\n", strings.Join(derived, " -> "))
		}
		pb := schema.Preferences().PersonalBests
		fmt.Fprintf(out, "  personal bests:   top %d by %s\n", pb.NumBestSessions, pb.SessionsKey)
		return nil
	},
}

var schemaListCmd = &cobra.Command{
	Use:   "list",
	Short: "List built-in and stored activity schemas",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Built-in: %s\n", strings.Join(core.BuiltinActivities(), ", "))
		if Schemas == nil {
			return nil
		}
		stored, err := Schemas.List()
		if err != nil {
			return err
		}
		if len(stored) == 0 {
			fmt.Fprintln(out, "Stored:   (none, run 'tracks init')")
			return nil
		}
		fmt.Fprintf(out, "Stored:   %s\n", strings.Join(stored, ", "))
		return nil
	},
}

func init() {
	schemaCmd.AddCommand(schemaShowCmd, schemaValidateCmd, schemaListCmd)
	rootCmd.AddCommand(schemaCmd)
}

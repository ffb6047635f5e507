package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/valter-silva-au/tracks/internal/core"
	"github.com/valter-silva-au/tracks/internal/storage"
)

var initCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Initialize a tracks data directory",
	Long: `Initialize a directory with a .tracksconfig file and the schema of the
chosen activity under activities/.

Safe to run on an existing directory -- files that already exist are
skipped and not overwritten.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		basePath := BasePath
		if len(args) > 0 {
			basePath = args[0]
		}
		if basePath == "" {
			basePath = "."
		}
		absPath, err := filepath.Abs(basePath)
		if err != nil {
			return fmt.Errorf("resolving path: %w", err)
		}

		activity, _ := cmd.Flags().GetString("activity")
		doc, err := core.BuiltinDocument(activity)
		if err != nil {
			return err
		}

		if err := os.MkdirAll(absPath, 0o755); err != nil {
			return fmt.Errorf("creating %s: %w", absPath, err)
		}

		var created, skipped []string

		configPath := filepath.Join(absPath, core.ConfigFileName)
		switch _, err := os.Stat(configPath); {
		case err == nil:
			skipped = append(skipped, configPath)
		case errors.Is(err, os.ErrNotExist):
			if err := os.WriteFile(configPath, []byte(core.DefaultConfigYAML(activity)), 0o644); err != nil {
				return fmt.Errorf("writing %s: %w", core.ConfigFileName, err)
			}
			created = append(created, configPath)
		default:
			return fmt.Errorf("checking %s: %w", core.ConfigFileName, err)
		}

		store := storage.NewSchemaStore(filepath.Join(absPath, core.DefaultConfig().SchemaDir))
		wrote, err := store.Init(activity, doc)
		if err != nil {
			return fmt.Errorf("writing %s schema: %w", activity, err)
		}
		if wrote {
			created = append(created, store.Path(activity))
		} else {
			skipped = append(skipped, store.Path(activity))
		}

		out := cmd.OutOrStdout()
		if len(created) > 0 {
			fmt.Fprintln(out, "Created:")
			for _, p := range created {
				rel, _ := filepath.Rel(absPath, p)
				fmt.Fprintf(out, "  %s\n", rel)
			}
		}
		if len(skipped) > 0 {
			fmt.Fprintln(out, "Skipped (already exist):")
			for _, p := range skipped {
				rel, _ := filepath.Rel(absPath, p)
				fmt.Fprintf(out, "  %s\n", rel)
			}
		}

		fmt.Fprintf(out, "\nTracking %s in %s\n", activity, absPath)
		return nil
	},
}

func init() {
	initCmd.Flags().String("activity", core.DefaultActivity, "Built-in activity to start from (cycling, rowing)")
	rootCmd.AddCommand(initCmd)
}

package cmd

import (
	"fmt"
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/oarkflow/fwrelease/internal/schema"
)

var schemaCmd = &cobra.Command{
	Use:   "schema [output]",
	Short: "Generate the JSON Schema of releases.yaml",
	Long: `Generate the JSON Schema describing firmware/releases.yaml.

If no output file is specified, the schema is written to stdout. Editors
with YAML language support can use it for completion and validation.

Examples:
  fwrelease schema
  fwrelease schema releases.schema.json
`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := schema.Marshal(schema.GenerateSchema())
		if err != nil {
			return fmt.Errorf("failed to marshal schema: %w", err)
		}

		if len(args) > 0 {
			if err := os.WriteFile(args[0], data, 0644); err != nil {
				return fmt.Errorf("failed to write schema: %w", err)
			}
			log.Info("Schema written", "path", args[0])
			return nil
		}

		fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(schemaCmd)
}

package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dyluth/tuplebridge/internal/printer"
	"github.com/dyluth/tuplebridge/internal/scaffold"
)

var (
	initForce bool
	initTOML  bool
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a starter tuplebridge.yml",
	Long: `Write a starter configuration file into the current directory.

The file carries every setting with its default value. Use --toml for
tuplebridge.toml instead of tuplebridge.yml.`,
	Args: cobra.NoArgs,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVarP(&initForce, "force", "f", false, "Overwrite an existing configuration")
	initCmd.Flags().BoolVar(&initTOML, "toml", false, "Write TOML instead of YAML")
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	dir, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("failed to get current directory: %w", err)
	}

	format := scaffold.FormatYAML
	if initTOML {
		format = scaffold.FormatTOML
	}

	if initForce {
		if err := scaffold.CheckExisting(dir); err != nil {
			printer.Warning("Overwriting existing configuration\n")
		}
	}

	path, err := scaffold.Initialize(dir, format, initForce)
	if err != nil {
		return printer.Error("initialization failed", err.Error(), nil)
	}

	printer.Success("Created %s\n", path)
	printer.Info("\nNext steps:\n")
	printer.Info("  1. Set instance and redis_url\n")
	printer.Info("  2. Run 'tuplebridge serve --config %s'\n", format.FileName())
	return nil
}

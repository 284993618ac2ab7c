package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"docqa/config"
)

var (
	initTOML  bool
	initForce bool
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default configuration file",
	Long: `Init writes docqa.yaml (or docqa.toml with --toml) with the default
settings into the workspace directory.`,
	Args: cobra.NoArgs,
	RunE: runInit,
}

func init() {
	rootCmd.AddCommand(initCmd)
	initCmd.Flags().BoolVar(&initTOML, "toml", false, "write TOML instead of YAML")
	initCmd.Flags().BoolVar(&initForce, "force", false, "overwrite an existing file")
}

func runInit(cmd *cobra.Command, args []string) error {
	name := "docqa.yaml"
	if initTOML {
		name = "docqa.toml"
	}
	path := filepath.Join(GetRootDir(), name)

	if _, err := os.Stat(path); err == nil && !initForce {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	}
	if err := config.DefaultConfig().Save(path); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	if err := config.EnsureDataDir(GetRootDir()); err != nil {
		return err
	}

	fmt.Printf("Wrote %s\n", path)
	return nil
}

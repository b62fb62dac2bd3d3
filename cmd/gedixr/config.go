package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gedixr/gedixr/pkg/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or save the effective configuration",
	Long: `Print the configuration after applying defaults, config files and GEDIXR_*
environment variables.

Config files are read in order:
  1. /etc/gedixr/config.yaml
  2. ~/.gedixr/config.yaml
  3. ./.gedixr.yaml
  4. --config <file>`,
	RunE: runConfigShow,
}

var configSaveCmd = &cobra.Command{
	Use:   "save",
	Short: "Write the effective configuration to ~/.gedixr/config.yaml",
	RunE:  runConfigSave,
}

func init() {
	configCmd.AddCommand(configSaveCmd)
}

// loadConfig loads files and environment. Flags are applied by the caller.
func loadConfig() (*config.Manager, error) {
	m := config.NewManager()
	var extra []string
	if configFile != "" {
		extra = append(extra, configFile)
	}
	if err := m.Load(extra...); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	cfg := m.Get()
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if quiet {
		cfg.Log.Quiet = true
	}
	return m, nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	m, err := loadConfig()
	if err != nil {
		return err
	}
	data, err := m.Get().Marshal()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	for _, p := range m.GetPaths() {
		fmt.Fprintf(out, "# loaded %s\n", p)
	}
	_, err = out.Write(data)
	return err
}

func runConfigSave(cmd *cobra.Command, args []string) error {
	m, err := loadConfig()
	if err != nil {
		return err
	}
	path, err := m.Save()
	if err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Saved %s\n", path)
	return nil
}

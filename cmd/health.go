package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/mordomohq/mordomo/config"
	"github.com/mordomohq/mordomo/internal/health"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Print a process and job store health snapshot",
	RunE:  runHealth,
}

var healthFormat string

func init() {
	healthCmd.Flags().StringVar(&healthFormat, "format", "json", "Output format: json or yaml")
	rootCmd.AddCommand(healthCmd)
}

func runHealth(cmd *cobra.Command, args []string) error {
	cfg := loadConfigOrDefault()

	configPath, _ := config.ConfigPath()
	storePath, err := cfg.JobStorePath()
	if err != nil {
		return err
	}

	snapshot := health.Collect(health.Options{
		ConfigPath: configPath,
		StorePath:  storePath,
	})

	if strings.EqualFold(healthFormat, "yaml") {
		data, err := yaml.Marshal(snapshot)
		if err != nil {
			return fmt.Errorf("failed to serialize health snapshot: %w", err)
		}
		fmt.Print(string(data))
		return nil
	}

	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize health snapshot: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

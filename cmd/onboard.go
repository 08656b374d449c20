package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/mordomohq/mordomo/config"
	"github.com/mordomohq/mordomo/homeassistant"
)

var onboardCmd = &cobra.Command{
	Use:   "onboard",
	Short: "Initialize mordomo configuration",
	Long:  `Create the mordomo configuration directory and default config file.`,
	RunE:  runOnboard,
}

func init() {
	rootCmd.AddCommand(onboardCmd)
}

func runOnboard(_ *cobra.Command, _ []string) error {
	configPath, err := config.ConfigPath()
	if err != nil {
		return err
	}
	if _, err := os.Stat(configPath); err == nil {
		fmt.Println("Config already exists at:", configPath)
		fmt.Println("To reconfigure, edit the file directly or delete it first.")
		return nil
	}

	// --- interactive wizard ---

	defaults := config.DefaultConfig()
	baseURL := defaults.HomeAssistant.BaseURL
	storePath := defaults.Scheduler.StorePath
	var token string
	checkConn := true

	// Step 1: instance URL
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Home Assistant base URL").
				Description("The address of your instance, including the port if it is not 80/443.").
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return fmt.Errorf("base URL is required")
					}
					return nil
				}).
				Value(&baseURL),
		),
	).Run()
	if err != nil {
		return err
	}

	// Step 2: access token
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Long-lived access token").
				Description("Create one in Home Assistant under your profile's Security tab.").
				EchoMode(huh.EchoModePassword).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return fmt.Errorf("access token is required")
					}
					return nil
				}).
				Value(&token),
		),
	).Run()
	if err != nil {
		return err
	}

	// Step 3: job store location
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Job store path").
				Description("Where scheduled jobs are persisted. Relative paths are resolved against the config directory.").
				Value(&storePath),
		),
	).Run()
	if err != nil {
		return err
	}

	// Step 4: optional connection check
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Verify the connection now?").
				Description("Makes a single states request against the instance.").
				Value(&checkConn),
		),
	).Run()
	if err != nil {
		return err
	}

	baseURL = strings.TrimSpace(baseURL)
	token = strings.TrimSpace(token)

	if checkConn {
		if n, err := probeHomeAssistant(baseURL, token); err != nil {
			fmt.Println("Warning: could not reach Home Assistant:", err)
			fmt.Println("The config will be saved anyway; adjust it in config.yaml later.")
		} else {
			fmt.Printf("Connected. Home Assistant reports %d entities.\n", n)
		}
	}

	// --- apply config ---

	cfg := config.DefaultConfig()
	cfg.HomeAssistant.BaseURL = baseURL
	cfg.HomeAssistant.Token = token
	if p := strings.TrimSpace(storePath); p != "" {
		cfg.Scheduler.StorePath = p
	}

	// --- create directories and files ---

	configDir, _ := config.ConfigDir()
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := cfg.Save(); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	storeFile, _ := cfg.JobStorePath()

	fmt.Println()
	fmt.Println("mordomo initialized successfully!")
	fmt.Println()
	fmt.Println("  Config:", configPath)
	fmt.Println("  Job store:", storeFile)
	fmt.Println("  Home Assistant:", cfg.HomeAssistant.BaseURL)
	fmt.Println()
	fmt.Println("Run 'mordomo serve' to start.")
	return nil
}

func probeHomeAssistant(baseURL, token string) (int, error) {
	client := homeassistant.NewClient(baseURL, token, 10*time.Second)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	states, err := client.States(ctx)
	if err != nil {
		return 0, err
	}
	return len(states), nil
}

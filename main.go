// mordomo is a Home Assistant bridge with a persistent job scheduler.
package main

import (
	"fmt"
	"os"

	"github.com/mordomohq/mordomo/cmd"
	"github.com/mordomohq/mordomo/config"
	"github.com/mordomohq/mordomo/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		cfg = config.DefaultConfig()
	}
	configDir, _ := config.ConfigDir()
	if err := logger.Init(cfg.BuildLoggerConfig(), configDir); err != nil {
		fmt.Fprintln(os.Stderr, "logger init error:", err)
	}
	cmd.Execute()
}

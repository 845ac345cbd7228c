package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"perfreporter/internal/commands"
	"perfreporter/internal/ui"
)

// VERSION is set during build via ldflags
var VERSION string

// getCurrentVersion retrieves the current version from build flags or version.txt
func getCurrentVersion() string {
	version := VERSION
	if version == "" {
		// Read version from version.txt if VERSION is not set
		if versionData, err := os.ReadFile("version.txt"); err == nil {
			version = strings.TrimSpace(string(versionData))
		}
	}
	return version
}

func main() {
	// Set version function for commands package
	commands.GetCurrentVersion = getCurrentVersion

	rootCmd := &cobra.Command{
		Use:                "perfreporter",
		Short:              "Performance counter discovery and reporting",
		DisableSuggestions: true,
		SilenceUsage:       true,
		CompletionOptions:  cobra.CompletionOptions{DisableDefaultCmd: true},
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Lookup("version").Changed {
				fmt.Printf("v%s\n", getCurrentVersion())
				return nil
			}

			ui.PrintHeader()

			ui.PrintSection("Quick Start")
			fmt.Print(ui.CreateBeautifulList(map[string]string{
				"Try patterns":    "perfreporter counters -p '\\Memory\\Available MBytes'",
				"Check config":    "perfreporter config --config config.yaml",
				"Run":             "perfreporter run --config config.yaml",
				"Install service": "perfreporter service install --config config.yaml",
			}))
			ui.PrintSectionEnd()

			ui.PrintSection("Commands")
			fmt.Print(ui.CreateBeautifulList(map[string]string{
				"run":      "Discover, sample and report until stopped",
				"counters": "Resolve patterns once and print the report tree",
				"config":   "Show the effective configuration",
				"service":  "Manage the system service",
				"version":  "Show version information",
			}))
			ui.PrintSectionEnd()

			ui.PrintStatus("info", "Use 'perfreporter [command] --help' for detailed help")
			return nil
		},
	}

	rootCmd.Flags().BoolP("version", "v", false, "Show version information")
	rootCmd.PersistentFlags().StringVar(&commands.ConfigPath, "config", "", "Config file (default $HOME/.perfreporter/config.yaml)")

	rootCmd.AddCommand(commands.NewRunCmd())
	rootCmd.AddCommand(commands.NewCountersCmd())
	rootCmd.AddCommand(commands.NewConfigCmd())
	rootCmd.AddCommand(commands.NewServiceCmd())
	rootCmd.AddCommand(commands.NewVersionCmd())

	if err := rootCmd.Execute(); err != nil {
		ui.PrintStatus("error", err.Error())
		os.Exit(1)
	}
}

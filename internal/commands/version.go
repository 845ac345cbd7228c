package commands

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"perfreporter/internal/ui"
)

// GetCurrentVersion is a function variable that will be set by main.go
// This allows all commands to access the current version without circular dependencies
var GetCurrentVersion func() string

// ConfigPath is the --config flag shared by every command
var ConfigPath string

func currentVersion() string {
	if GetCurrentVersion == nil {
		return ""
	}
	return GetCurrentVersion()
}

// NewVersionCmd creates the version command
func NewVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			version := currentVersion()
			if version == "" {
				version = "dev"
			}
			fmt.Fprint(ui.Out, ui.CreateBeautifulList(map[string]string{
				"Version":  version,
				"Go":       runtime.Version(),
				"Platform": runtime.GOOS + "/" + runtime.GOARCH,
			}))
		},
	}
}

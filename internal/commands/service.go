package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"perfreporter/internal/logger"
	"perfreporter/internal/process"
	"perfreporter/internal/service"
	"perfreporter/internal/ui"
)

// NewServiceCmd creates the service command with subcommands
func NewServiceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "service",
		Short: "Manage the perfreporter system service",
		Long: `Manage perfreporter as a system service (systemd on Linux, launchd on
macOS, the service manager on Windows).

Examples:
  perfreporter service install --config /etc/perfreporter.yaml
  perfreporter service start
  perfreporter service status
  perfreporter service remove`,
	}

	cmd.AddCommand(newServiceActionCmd("install", "Install perfreporter as a system service", "Installing Service",
		func(svc *service.Service) (string, error) {
			configPath, err := absConfigPath()
			if err != nil {
				return "", err
			}
			return svc.Install(configPath)
		}))
	cmd.AddCommand(newServiceActionCmd("remove", "Remove the system service", "Removing Service",
		func(svc *service.Service) (string, error) {
			// Stop first if running
			svc.Stop()
			return svc.Remove()
		}))
	cmd.AddCommand(newServiceActionCmd("start", "Start the service", "Starting Service",
		func(svc *service.Service) (string, error) { return svc.Start() }))
	cmd.AddCommand(newServiceActionCmd("stop", "Stop the service", "Stopping Service",
		func(svc *service.Service) (string, error) { return svc.Stop() }))
	cmd.AddCommand(newServiceActionCmd("restart", "Restart the service", "Restarting Service",
		func(svc *service.Service) (string, error) {
			svc.Stop()
			return svc.Start()
		}))
	cmd.AddCommand(newServiceActionCmd("status", "Check the service status", "Service Status",
		func(svc *service.Service) (string, error) {
			status, err := svc.Status()
			if err != nil {
				return status, err
			}
			if running, pid, err := process.Check(); err == nil && running {
				status = fmt.Sprintf("%s, reporter PID %d", status, pid)
			}
			return status, nil
		}))

	return cmd
}

func newServiceActionCmd(use, short, section string, action func(*service.Service) (string, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Run: func(cmd *cobra.Command, args []string) {
			ui.PrintHeader()
			ui.PrintSection(section)
			defer ui.PrintSectionEnd()

			log := logger.Default()
			defer log.Close()

			svc, err := service.New(log)
			if err != nil {
				ui.PrintError(fmt.Sprintf("Failed to create service: %v", err))
				ui.PrintSectionEnd()
				os.Exit(1)
			}

			status, err := action(svc)
			if err != nil {
				ui.PrintError(fmt.Sprintf("Failed to %s: %v", use, err))
				if use == "start" {
					ui.PrintStatus("info", "Try 'perfreporter service install' first")
				}
				ui.PrintSectionEnd()
				os.Exit(1)
			}
			ui.PrintStatus("success", status)
		},
	}
}

// absConfigPath resolves --config so the service finds it from any directory
func absConfigPath() (string, error) {
	if ConfigPath == "" {
		return "", nil
	}
	path, err := filepath.Abs(ConfigPath)
	if err != nil {
		return "", fmt.Errorf("failed to resolve config path: %w", err)
	}
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("config file: %w", err)
	}
	return path, nil
}

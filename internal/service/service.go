// Package service installs and controls perfreporter as a system service
// (systemd, launchd or the Windows service manager).
package service

import (
	"fmt"

	"github.com/takama/daemon"

	constants "perfreporter/config"
	"perfreporter/internal/logger"
)

// Service wraps takama/daemon for cross-platform service management
type Service struct {
	daemon daemon.Daemon
	log    *logger.Logger
}

// New creates a new Service instance
func New(log *logger.Logger) (*Service, error) {
	d, err := daemon.New(constants.SERVICE_NAME, constants.SERVICE_DESCRIPTION, serviceKind())
	if err != nil {
		return nil, fmt.Errorf("failed to create daemon: %w", err)
	}
	return &Service{daemon: d, log: log}, nil
}

// InstallArgs is the command line the service manager starts the binary with
func InstallArgs(configPath string) []string {
	args := []string{"run", "--service"}
	if configPath != "" {
		args = append(args, "--config", configPath)
	}
	return args
}

// Install registers the service to run `perfreporter run --service`
func (s *Service) Install(configPath string) (string, error) {
	// takama/daemon determines the executable path; only arguments are passed
	status, err := s.daemon.Install(InstallArgs(configPath)...)
	if err != nil {
		return status, err
	}

	s.log.Info("Service installed: %s", status)
	return status, nil
}

// Remove removes the service
func (s *Service) Remove() (string, error) {
	status, err := s.daemon.Remove()
	if err != nil {
		return status, err
	}

	s.log.Info("Service removed: %s", status)
	return status, nil
}

// Start starts the service
func (s *Service) Start() (string, error) {
	status, err := s.daemon.Start()
	if err != nil {
		return status, err
	}

	s.log.Info("Service started: %s", status)
	return status, nil
}

// Stop stops the service
func (s *Service) Stop() (string, error) {
	status, err := s.daemon.Stop()
	if err != nil {
		return status, err
	}

	s.log.Info("Service stopped: %s", status)
	return status, nil
}

// Status returns the service status
func (s *Service) Status() (string, error) {
	return s.daemon.Status()
}

// Run hands the process to the service manager. On Windows the manager
// calls Start and Stop on e; elsewhere e.Run is called directly.
func (s *Service) Run(e daemon.Executable) (string, error) {
	return s.daemon.Run(e)
}

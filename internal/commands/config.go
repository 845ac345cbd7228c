package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"perfreporter/internal/config"
	"perfreporter/internal/ui"
)

// NewConfigCmd creates the config command
func NewConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Show the effective configuration",
		Long: `Show the configuration perfreporter would run with, after defaults,
the config file and PERFREPORTER_* environment variables are merged.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(ConfigPath)
			if err != nil {
				return err
			}

			ui.PrintHeader()
			fmt.Fprint(ui.Out, renderConfig(cfg))

			if err := cfg.Validate(); err != nil {
				ui.PrintStatus("error", err.Error())
				return fmt.Errorf("invalid configuration")
			}
			ui.PrintStatus("success", "Configuration is valid")
			return nil
		},
	}
}

func renderConfig(cfg *config.Config) string {
	var b strings.Builder

	b.WriteString(ui.RenderSectionStart("Counters"))
	b.WriteString("\n")
	b.WriteString(ui.CreateBeautifulList(map[string]string{
		"Definition files": orNone(strings.Join(cfg.DefinitionFiles, ", ")),
		"Inline counters":  fmt.Sprint(len(cfg.Counters)),
		"Source":           cfg.Source,
		"Synthetic":        fmt.Sprint(cfg.Synthetic),
	}))
	b.WriteString(ui.RenderSectionEnd())
	b.WriteString("\n")

	b.WriteString(ui.RenderSectionStart("Scheduling"))
	b.WriteString("\n")
	b.WriteString(ui.CreateBeautifulList(map[string]string{
		"Sample interval": cfg.SampleInterval.String(),
		"Report interval": cfg.ReportInterval.String(),
		"Timer window":    fmt.Sprint(cfg.TimerWindow),
	}))
	b.WriteString(ui.RenderSectionEnd())
	b.WriteString("\n")

	b.WriteString(ui.RenderSectionStart("Sinks"))
	b.WriteString("\n")
	b.WriteString(ui.CreateBeautifulList(map[string]string{
		"Log":        fmt.Sprint(cfg.Sinks.Log),
		"OTLP":       orNone(cfg.Sinks.OTLP.Endpoint),
		"Prometheus": orNone(cfg.Sinks.Prometheus.Listen),
		"CBOR":       orNone(cfg.Sinks.CBOR.URL),
	}))
	b.WriteString(ui.RenderSectionEnd())
	b.WriteString("\n")

	return b.String()
}

func orNone(s string) string {
	if s == "" {
		return "none"
	}
	return s
}

package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"clipmill/internal/config"
	"clipmill/internal/preflight"
	"clipmill/internal/queue"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var checkEndpoints bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show item counts and environment readiness",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *queue.Store) error {
				out := cmd.OutOrStdout()
				colorize := shouldColorize(out)
				var lines []string

				lines = append(lines, renderSectionHeader("Items", colorize))
				itemLines, err := itemStatusLines(cmd, store, colorize)
				if err != nil {
					return err
				}
				lines = append(lines, itemLines...)

				lines = append(lines, "", renderSectionHeader("Database", colorize))
				lines = append(lines, databaseLine(cmd, store, colorize))

				lines = append(lines, "", renderSectionHeader("Dependencies", colorize))
				lines = append(lines, dependencyLines(preflight.CheckSystemDeps(cfg, true), colorize)...)

				lines = append(lines, "", renderSectionHeader("Directories", colorize))
				for _, result := range preflight.RunAll(cmd.Context(), cfg) {
					lines = append(lines, resultLine(result, colorize))
				}

				lines = append(lines, "", renderSectionHeader("Services", colorize))
				if checkEndpoints {
					lines = append(lines, resultLine(preflight.CheckEndpoint(cmd.Context(), "Speech synthesis", cfg.Synthesis.Endpoint), colorize))
				} else {
					lines = append(lines, renderStatusLine("Speech synthesis", statusInfo, cfg.Synthesis.Endpoint, colorize))
				}
				lines = append(lines, publishLine(cfg, colorize))
				if strings.TrimSpace(cfg.Notifications.NtfyTopic) == "" {
					lines = append(lines, renderStatusLine("Notifications", statusWarn, "ntfy topic not configured", colorize))
				} else {
					lines = append(lines, renderStatusLine("Notifications", statusOK, "ntfy enabled", colorize))
				}

				fmt.Fprintln(out, strings.Join(lines, "\n"))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&checkEndpoints, "check-endpoints", false, "Probe the speech synthesis endpoint")
	return cmd
}

func itemStatusLines(cmd *cobra.Command, store *queue.Store, colorize bool) ([]string, error) {
	counts, err := store.Stats(cmd.Context())
	if err != nil {
		return nil, err
	}
	failing, err := store.FailingCount(cmd.Context())
	if err != nil {
		return nil, err
	}
	total := 0
	lines := make([]string, 0, len(queue.AllStatuses())+2)
	for _, status := range queue.AllStatuses() {
		total += counts[status]
		lines = append(lines, renderStatusLine(stageTitle(string(status)), statusInfo, fmt.Sprintf("%d", counts[status]), colorize))
	}
	lines = append(lines, renderStatusLine("Total", statusInfo, fmt.Sprintf("%d", total), colorize))
	if failing > 0 {
		lines = append(lines, renderStatusLine("With failures", statusWarn, fmt.Sprintf("%d", failing), colorize))
	}
	return lines, nil
}

func databaseLine(cmd *cobra.Command, store *queue.Store, colorize bool) string {
	health, err := store.CheckHealth(cmd.Context())
	switch {
	case err != nil:
		return renderStatusLine("Item store", statusError, err.Error(), colorize)
	case !health.IntegrityCheck:
		return renderStatusLine("Item store", statusError, health.DBPath+" (integrity check failed)", colorize)
	case len(health.MissingColumns) > 0:
		return renderStatusLine("Item store", statusError, "missing columns: "+strings.Join(health.MissingColumns, ", "), colorize)
	default:
		return renderStatusLine("Item store", statusOK, fmt.Sprintf("%s (schema v%d)", health.DBPath, health.SchemaVersion), colorize)
	}
}

func resultLine(result preflight.Result, colorize bool) string {
	if result.Passed {
		return renderStatusLine(result.Name, statusOK, result.Detail, colorize)
	}
	return renderStatusLine(result.Name, statusError, result.Detail, colorize)
}

func publishLine(cfg *config.Config, colorize bool) string {
	if !cfg.Publish.Enabled {
		return renderStatusLine("Publish", statusInfo, "disabled", colorize)
	}
	return renderStatusLine("Publish", statusOK, "target "+cfg.Publish.Target, colorize)
}

package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"clipmill/internal/config"
	"clipmill/internal/queue"
)

func newItemsCommand(ctx *commandContext) *cobra.Command {
	itemsCmd := &cobra.Command{
		Use:     "items",
		Aliases: []string{"queue"},
		Short:   "Inspect and maintain the item store",
	}
	itemsCmd.AddCommand(newItemsListCommand(ctx))
	itemsCmd.AddCommand(newItemsShowCommand(ctx))
	itemsCmd.AddCommand(newItemsClearCommand(ctx))
	return itemsCmd
}

func newItemsListCommand(ctx *commandContext) *cobra.Command {
	var statusFilter []string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored items",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			wanted := make(map[queue.Status]struct{}, len(statusFilter))
			for _, raw := range statusFilter {
				status, ok := queue.ParseStatus(raw)
				if !ok {
					return fmt.Errorf("unknown status %q", raw)
				}
				wanted[status] = struct{}{}
			}
			return ctx.withStore(func(_ *config.Config, store *queue.Store) error {
				items, err := store.List(cmd.Context())
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				rows := make([][]string, 0, len(items))
				for _, item := range items {
					if _, ok := wanted[item.Status()]; len(wanted) > 0 && !ok {
						continue
					}
					rows = append(rows, []string{
						item.ShortID(),
						item.ShortTitle(),
						item.SourceCollection,
						string(item.Status()),
						fmt.Sprintf("%d", item.FailureCount),
						item.IngestedAt.Local().Format("2006-01-02 15:04"),
					})
				}
				if len(rows) == 0 {
					fmt.Fprintln(out, "No items")
					return nil
				}
				fmt.Fprintln(out, renderTable(
					[]string{"ID", "Title", "Collection", "Status", "Failures", "Ingested"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
				))
				return nil
			})
		},
	}
	cmd.Flags().StringSliceVarP(&statusFilter, "status", "s", nil, "Only show items at these statuses")
	return cmd
}

func newItemsShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id-prefix>",
		Short: "Show one item and its artifact paths",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *queue.Store) error {
				prefix := strings.ToLower(strings.TrimSpace(args[0]))
				matches, err := store.FindByPrefix(cmd.Context(), prefix)
				if err != nil {
					return err
				}
				switch len(matches) {
				case 0:
					return fmt.Errorf("no item matches %q", prefix)
				case 1:
					writeItemDetails(cmd, cfg, matches[0])
					return nil
				default:
					return fmt.Errorf("prefix %q matches %d items", prefix, len(matches))
				}
			})
		},
	}
}

func writeItemDetails(cmd *cobra.Command, cfg *config.Config, item *queue.Item) {
	out := cmd.OutOrStdout()
	rows := [][]string{
		{"ID", item.ID},
		{"Title", item.Title},
		{"Author", item.Author},
		{"Collection", item.SourceCollection},
		{"Status", string(item.Status())},
		{"Audio", yesNo(item.AudioReady) + "  " + item.AudioPath(cfg.Paths.AudioDir)},
		{"Subtitles", yesNo(item.SubtitlesReady) + "  " + item.SubtitlePath(cfg.Paths.SubtitleDir)},
		{"Video", yesNo(item.VideoReady) + "  " + item.PartsDir(cfg.Paths.VideoDir)},
		{"Published", yesNo(item.Published) + "  " + strings.Join(item.PublishTargets, ", ")},
		{"Failures", fmt.Sprintf("%d", item.FailureCount)},
		{"Ingested", item.IngestedAt.Local().Format("2006-01-02 15:04:05")},
		{"Updated", item.UpdatedAt.Local().Format("2006-01-02 15:04:05")},
	}
	if item.LastError != "" {
		rows = append(rows, []string{"Last error", item.LastError})
	}
	fmt.Fprintln(out, renderTable([]string{"Field", "Value"}, rows, nil))
	if body := strings.TrimSpace(item.Body); body != "" {
		fmt.Fprintln(out)
		fmt.Fprintln(out, body)
	}
}

func newItemsClearCommand(ctx *commandContext) *cobra.Command {
	var publishedOnly bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove items from the store",
		Long:  "Remove every item, or with --published only items that finished the pipeline.\nArtifacts on disk are left in place.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(_ *config.Config, store *queue.Store) error {
				var (
					removed int64
					err     error
				)
				if publishedOnly {
					removed, err = store.ClearPublished(cmd.Context())
				} else {
					removed, err = store.Clear(cmd.Context())
				}
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %d item(s)\n", removed)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&publishedOnly, "published", false, "Only remove published items")
	return cmd
}

package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/DokushoHQ/backends/internal/api"
	"github.com/DokushoHQ/backends/internal/service"
	"github.com/DokushoHQ/backends/internal/source"
)

// writeJSON encodes v as indented JSON to the command's stdout.
func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newOverviewCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "overview",
		Short: "Show catalog totals and queue counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var overview service.Overview
			if err := ctx.client().Get(cmd.Context(), "/api/v1/admin/overview", &overview); err != nil {
				return err
			}
			if ctx.json {
				return writeJSON(cmd, overview)
			}

			out := cmd.OutOrStdout()
			c := overview.Catalog
			fmt.Fprintf(out, "Series:   %s (%s pending deletion)\n", humanize.Comma(int64(c.Series)), humanize.Comma(int64(c.DeletedSeries)))
			fmt.Fprintf(out, "Mirrors:  %s\n", humanize.Comma(int64(c.SerieSources)))
			fmt.Fprintf(out, "Chapters: %s\n", humanize.Comma(int64(c.Chapters)))
			fmt.Fprintf(out, "Pages:    %s (%s missing)\n\n", humanize.Comma(int64(c.Pages)), humanize.Comma(int64(c.MissingPages)))

			names := make([]string, 0, len(overview.Queues))
			for name := range overview.Queues {
				names = append(names, name)
			}
			sort.Strings(names)
			rows := make([][]string, 0, len(names))
			for _, name := range names {
				counts := overview.Queues[name]
				rows = append(rows, []string{
					name,
					strconv.Itoa(counts.Waiting),
					strconv.Itoa(counts.Active),
					strconv.Itoa(counts.Delayed),
					strconv.Itoa(counts.Failed),
				})
			}
			fmt.Fprint(out, renderTable(
				[]string{"Queue", "Waiting", "Active", "Delayed", "Failed"},
				rows,
				[]columnAlignment{alignLeft, alignRight, alignRight, alignRight, alignRight},
			))
			return nil
		},
	}
}

func newQueuesCommand(ctx *commandContext) *cobra.Command {
	queuesCmd := &cobra.Command{
		Use:   "queues",
		Short: "List queues and their job counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var body struct {
				Queues []api.QueueResponse `json:"queues"`
			}
			if err := ctx.client().Get(cmd.Context(), "/api/v1/queues", &body); err != nil {
				return err
			}
			if ctx.json {
				return writeJSON(cmd, body.Queues)
			}
			printQueues(cmd.OutOrStdout(), body.Queues)
			return nil
		},
	}

	queuesCmd.AddCommand(newQueuePauseCommand(ctx, "pause", true))
	queuesCmd.AddCommand(newQueuePauseCommand(ctx, "resume", false))

	return queuesCmd
}

func printQueues(out io.Writer, queues []api.QueueResponse) {
	rows := make([][]string, 0, len(queues))
	for _, q := range queues {
		rows = append(rows, []string{
			q.Name,
			strconv.Itoa(q.Concurrency),
			strconv.Itoa(q.Counts.Waiting),
			strconv.Itoa(q.Counts.Active),
			strconv.Itoa(q.Counts.Delayed),
			strconv.Itoa(q.Counts.WaitingChildren),
			humanize.Comma(int64(q.Counts.Completed)),
			strconv.Itoa(q.Counts.Failed),
			yesNo(q.Counts.Paused),
		})
	}
	fmt.Fprint(out, renderTable(
		[]string{"Queue", "Workers", "Waiting", "Active", "Delayed", "Children", "Completed", "Failed", "Paused"},
		rows,
		[]columnAlignment{alignLeft, alignRight, alignRight, alignRight, alignRight, alignRight, alignRight, alignRight, alignLeft},
	))
}

func newQueuePauseCommand(ctx *commandContext, action string, pause bool) *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   action + " [queue]",
		Short: fmt.Sprintf("%s one queue or, with --all, every queue", capitalize(action)),
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "/api/v1/queues/" + action + "-all"
			target := "all queues"
			switch {
			case all && len(args) > 0:
				return errors.New("pass either a queue name or --all")
			case !all && len(args) == 0:
				return errors.New("queue name required (or --all)")
			case !all:
				path = queuePath(args[0], action)
				target = args[0]
			}

			var body struct {
				Paused bool `json:"paused"`
			}
			if err := ctx.client().Post(cmd.Context(), path, nil, &body); err != nil {
				return err
			}
			if body.Paused != pause {
				return fmt.Errorf("%s: server reports paused=%t", target, body.Paused)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %sd\n", target, action)
			return nil
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "Apply to every queue")
	return cmd
}

func newRetryFailedCommand(ctx *commandContext) *cobra.Command {
	var queueName string
	cmd := &cobra.Command{
		Use:   "retry-failed",
		Short: "Requeue failed chapters, or the failed jobs of one queue",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "/api/v1/admin/retry-failed"
			if queueName != "" {
				path = queuePath(queueName, "retry-failed")
			}
			var body struct {
				Retried int `json:"retried"`
			}
			if err := ctx.client().Post(cmd.Context(), path, nil, &body); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Requeued %s\n", pluralize(body.Retried, "item"))
			return nil
		},
	}
	cmd.Flags().StringVarP(&queueName, "queue", "q", "", "Retry the failed jobs of this queue instead of failed chapters")
	return cmd
}

func newSourcesCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "sources",
		Short: "Show per-source tracking health",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var health service.SourcesHealth
			if err := ctx.client().Get(cmd.Context(), "/api/v1/sources/health", &health); err != nil {
				return err
			}
			if ctx.json {
				return writeJSON(cmd, health)
			}
			printSourcesHealth(cmd.OutOrStdout(), &health, time.Now())
			return nil
		},
	}
}

func printSourcesHealth(out io.Writer, health *service.SourcesHealth, now time.Time) {
	rows := make([][]string, 0, len(health.Sources)+1)
	for _, s := range health.Sources {
		checked := "never"
		if s.LastCheckedAt != nil {
			checked = humanize.RelTime(*s.LastCheckedAt, now, "ago", "from now")
		}
		rows = append(rows, []string{
			s.SourceID,
			s.Name,
			yesNo(s.Enabled),
			humanize.Comma(int64(s.TotalSeries)),
			strconv.Itoa(s.FailingCount),
			strconv.Itoa(s.Waiting),
			strconv.Itoa(s.Active),
			checked,
		})
	}
	t := health.Totals
	rows = append(rows, []string{
		"total",
		fmt.Sprintf("%d enabled of %d", t.Enabled, t.Sources),
		"",
		humanize.Comma(int64(t.TotalSeries)),
		strconv.Itoa(t.FailingCount),
		strconv.Itoa(t.Waiting),
		strconv.Itoa(t.Active),
		"",
	})
	fmt.Fprint(out, renderTable(
		[]string{"Source", "Name", "Enabled", "Series", "Failing", "Waiting", "Active", "Last check"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignRight, alignRight, alignLeft},
	))
}

func newSyncSourcesCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "sync-sources",
		Short: "Queue a sources sync",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var body struct {
				ID string `json:"id"`
			}
			if err := ctx.client().Post(cmd.Context(), "/api/v1/sources/sync", nil, &body); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Sources sync queued (job %s)\n", body.ID)
			return nil
		},
	}
}

func newImportCommand(ctx *commandContext) *cobra.Command {
	var sourceID, externalID string
	cmd := &cobra.Command{
		Use:   "import [url]",
		Short: "Import a series by URL or by source and external id",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				path string
				body any
			)
			switch {
			case len(args) == 1 && sourceID == "" && externalID == "":
				path = "/api/v1/imports/url"
				body = map[string]string{"url": args[0]}
			case len(args) == 0 && sourceID != "" && externalID != "":
				path = "/api/v1/imports"
				body = map[string]string{"source_id": sourceID, "external_id": externalID}
			default:
				return errors.New("pass a URL, or both --source and --id")
			}

			var req service.ImportRequest
			if err := ctx.client().Post(cmd.Context(), path, body, &req); err != nil {
				var apiErr *APIError
				if errors.As(err, &apiErr) && apiErr.Code == "ALREADY_IMPORTED" && len(apiErr.Details) > 0 {
					return fmt.Errorf("%w (details: %s)", err, apiErr.Details)
				}
				return err
			}
			if ctx.json {
				return writeJSON(cmd, req)
			}
			jobID := ""
			if req.Job != nil {
				jobID = req.Job.ID
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Queued import of %s/%s (job %s)\n", req.SourceID, req.ExternalID, jobID)
			return nil
		},
	}
	cmd.Flags().StringVar(&sourceID, "source", "", "Source id")
	cmd.Flags().StringVar(&externalID, "id", "", "Series id within the source")
	return cmd
}

func newParseURLCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "parse-url <url>",
		Short: "Show which source and series a URL resolves to",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var parsed source.ParsedURL
			if err := ctx.client().Post(cmd.Context(), "/api/v1/imports/parse-url", map[string]string{"url": args[0]}, &parsed); err != nil {
				return err
			}
			if ctx.json {
				return writeJSON(cmd, parsed)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "source: %s\nseries: %s\n", parsed.SourceID, parsed.SerieID)
			return nil
		},
	}
}

func newReindexCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "reindex",
		Short: "Rebuild the search index from the catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var body struct {
				Indexed int `json:"indexed"`
			}
			if err := ctx.client().Post(cmd.Context(), "/api/v1/admin/reindex", nil, &body); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Indexed %s\n", pluralize(body.Indexed, "series"))
			return nil
		},
	}
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}

func pluralize(n int, noun string) string {
	if n == 1 || noun == "series" {
		return humanize.Comma(int64(n)) + " " + noun
	}
	return humanize.Comma(int64(n)) + " " + noun + "s"
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return string(s[0]-'a'+'A') + s[1:]
}

package main

import (
	"os"
	"time"

	"github.com/spf13/cobra"
)

const defaultServerURL = "http://localhost:8080"

type commandContext struct {
	serverURL string
	timeout   time.Duration
	json      bool
}

func (c *commandContext) client() *Client {
	return NewClient(c.serverURL, c.timeout)
}

func newRootCommand() *cobra.Command {
	ctx := &commandContext{}

	rootCmd := &cobra.Command{
		Use:           "dokushoctl",
		Short:         "Operate a running Dokusho backend",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	serverURL := os.Getenv("DOKUSHO_URL")
	if serverURL == "" {
		serverURL = defaultServerURL
	}
	rootCmd.PersistentFlags().StringVarP(&ctx.serverURL, "server", "s", serverURL, "Admin API base URL (env DOKUSHO_URL)")
	rootCmd.PersistentFlags().DurationVar(&ctx.timeout, "timeout", 30*time.Second, "HTTP request timeout")
	rootCmd.PersistentFlags().BoolVar(&ctx.json, "json", false, "Print raw JSON instead of tables")

	rootCmd.AddCommand(newOverviewCommand(ctx))
	rootCmd.AddCommand(newQueuesCommand(ctx))
	rootCmd.AddCommand(newRetryFailedCommand(ctx))
	rootCmd.AddCommand(newSourcesCommand(ctx))
	rootCmd.AddCommand(newSyncSourcesCommand(ctx))
	rootCmd.AddCommand(newImportCommand(ctx))
	rootCmd.AddCommand(newParseURLCommand(ctx))
	rootCmd.AddCommand(newReindexCommand(ctx))

	return rootCmd
}

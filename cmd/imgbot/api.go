package main

import (
	"github.com/spf13/cobra"

	"github.com/jackzampolin/imgbot/internal/api"
	"github.com/jackzampolin/imgbot/internal/server/endpoints"
)

var serverURL string

var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "Commands that call the running server",
	Long: `API commands call the running imgbot server via HTTP.

These commands require a running server (imgbot serve).
Use --server to specify a custom server URL.

Examples:
  imgbot api health                                   # Check server health
  imgbot api chapters process one ch-1 --group ImgChapter_1
  imgbot api checker start                            # Start the continuous check
  imgbot api runs list --status failed                # Recent failed runs`,
}

var chaptersCmd = &cobra.Command{
	Use:   "chapters",
	Short: "Chapter processing commands",
}

var checkerCmd = &cobra.Command{
	Use:   "checker",
	Short: "Continuous check commands",
}

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Processing run history commands",
}

// getServerURL returns the server URL at runtime (after flag parsing).
func getServerURL() string {
	return serverURL
}

func addCommands(parent *cobra.Command, eps []api.Endpoint) {
	for _, ep := range eps {
		if cmd := ep.Command(getServerURL); cmd != nil {
			parent.AddCommand(cmd)
		}
	}
}

func init() {
	// Add --server flag to api command (persistent so all subcommands inherit it)
	apiCmd.PersistentFlags().StringVar(
		&serverURL, "server", "http://localhost:8080", "Server URL",
	)

	// Health and diagnostics at top level of api
	addCommands(apiCmd, []api.Endpoint{
		&endpoints.HealthEndpoint{},
		&endpoints.ReadyEndpoint{},
		&endpoints.StatusEndpoint{},
		&endpoints.StatsEndpoint{},
		&endpoints.TestImgbbEndpoint{},
		&endpoints.TestProxyEndpoint{},
		&endpoints.SwaggerEndpoint{},
		&endpoints.SwaggerUIEndpoint{},
	})

	addCommands(chaptersCmd, endpoints.ChapterCommands())
	addCommands(checkerCmd, endpoints.CheckerCommands())
	addCommands(runsCmd, endpoints.RunCommands())

	apiCmd.AddCommand(chaptersCmd)
	apiCmd.AddCommand(checkerCmd)
	apiCmd.AddCommand(runsCmd)
	rootCmd.AddCommand(apiCmd)
}

package main

import (
	"github.com/spf13/cobra"

	"github.com/jackzampolin/imgbot/internal/api"
	"github.com/jackzampolin/imgbot/internal/config"
	"github.com/jackzampolin/imgbot/internal/home"
	"github.com/jackzampolin/imgbot/version"
)

var (
	cfgFile      string
	homeDir      string
	outputFormat string
)

var rootCmd = &cobra.Command{
	Use:   "imgbot",
	Short: "Manga chapter image resolver",
	Long: `imgbot resolves the images of manga chapters stored in a Firebase
Realtime Database.

For each chapter it:
  - Fetches the chapter page through rotating proxies and headers
  - Extracts the page images in reading order
  - Checks that every image is reachable, optionally re-hosting it
  - Writes the image list and success statistics back to the database

A continuous checker keeps scanning chapter groups for work.`,
	Version: version.GitRelease,
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile, "config", "", "config file (default: ./config.yaml or ~/.imgbot/config.yaml)",
	)
	rootCmd.PersistentFlags().StringVar(
		&homeDir, "home", "", "imgbot home directory (default: ~/.imgbot)",
	)
	rootCmd.PersistentFlags().StringVarP(
		&outputFormat, "output", "o", "yaml", "output format: yaml or json",
	)

	// Set output format before any command runs
	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		api.SetOutputFormat(outputFormat)
	}

	rootCmd.AddCommand(versionCmd)
}

func getHome() (*home.Dir, error) {
	return home.New(homeDir)
}

// loadConfig prefers --config, then the home directory's config file, then
// viper's search path.
func loadConfig(h *home.Dir) (*config.Manager, error) {
	path := cfgFile
	if path == "" && h != nil && h.ConfigExists() {
		path = h.ConfigPath()
	}
	return config.NewManager(path)
}

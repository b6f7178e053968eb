package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/imgbot/internal/api"
	"github.com/jackzampolin/imgbot/internal/config"
	"github.com/jackzampolin/imgbot/internal/firebase"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the local configuration",
	Long: `Manage the imgbot configuration file.

The configuration lives in ~/.imgbot/config.yaml unless --config or --home
point elsewhere. Secrets use ${ENV_VAR} references.

Examples:
  imgbot config init       # Write the default config file
  imgbot config show       # Print the effective configuration
  imgbot config validate   # Check the configuration and reach Firebase`,
}

var initForce bool

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the default config file",
	RunE: func(cmd *cobra.Command, args []string) error {
		path := cfgFile
		if path == "" {
			h, err := getHome()
			if err != nil {
				return err
			}
			if err := h.EnsureExists(); err != nil {
				return err
			}
			path = h.ConfigPath()
		}

		if _, err := os.Stat(path); err == nil && !initForce {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}
		if err := config.WriteDefault(path); err != nil {
			return err
		}
		fmt.Printf("Wrote %s\n", path)
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Long: `Print the configuration after defaults, the config file and IMGBOT_*
environment overrides are applied. Literal secrets are masked.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		h, err := getHome()
		if err != nil {
			return err
		}
		mgr, err := loadConfig(h)
		if err != nil {
			return err
		}

		conf := *mgr.Get()
		conf.Firebase.Secret = maskSecret(conf.Firebase.Secret)
		conf.Upload.APIKey = maskSecret(conf.Upload.APIKey)
		return api.Output(conf)
	},
}

// maskSecret hides literal values and keeps ${ENV_VAR} references readable.
func maskSecret(s string) string {
	if s == "" || strings.HasPrefix(s, "${") {
		return s
	}
	return "********"
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the configuration and reach Firebase",
	RunE: func(cmd *cobra.Command, args []string) error {
		h, err := getHome()
		if err != nil {
			return err
		}
		mgr, err := loadConfig(h)
		if err != nil {
			return err
		}
		conf := mgr.Get()

		if f := mgr.ConfigFile(); f != "" {
			fmt.Printf("Config:   %s\n", f)
		} else {
			fmt.Println("Config:   defaults (no file found)")
		}

		if err := conf.Validate(); err != nil {
			if errors.Is(err, config.ErrMissingFirebase) {
				fmt.Println("Firebase: not configured (set FIREBASE_DB_URL and DATABASE_SECRETS)")
			}
			return err
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), 15*time.Second)
		defer cancel()
		db := firebase.NewClient(firebase.Config{
			URL:        conf.Firebase.ResolvedURL(),
			Secret:     conf.Firebase.ResolvedSecret(),
			Timeout:    conf.Firebase.Timeout,
			MaxRetries: 1,
		})
		if err := db.HealthCheck(ctx); err != nil {
			fmt.Printf("Firebase: unhealthy (%v)\n", err)
			return err
		}
		fmt.Println("Firebase: healthy")

		if conf.Upload.ResolvedKey() != "" {
			fmt.Println("Uploads:  enabled")
		} else {
			fmt.Println("Uploads:  disabled (direct links only)")
		}
		fmt.Printf("Proxies:  %d\n", len(conf.Fetch.Proxies))
		return nil
	},
}

func init() {
	configInitCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite an existing config file")

	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configValidateCmd)
	rootCmd.AddCommand(configCmd)
}

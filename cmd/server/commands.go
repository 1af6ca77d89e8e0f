package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/kiranshivaraju/logsink/internal/config"
	"github.com/kiranshivaraju/logsink/internal/stats"
	"github.com/kiranshivaraju/logsink/internal/store"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// flagTargets maps each overriding flag to the config field it sets.
var flagTargets = []struct {
	name  string
	usage string
	field func(*config.Config) *string
}{
	{"listen-addr", "address to listen on", func(c *config.Config) *string { return &c.Server.ListenAddr }},
	{"database-url", "postgres:// or sqlite:// database URL", func(c *config.Config) *string { return &c.Database.URL }},
	{"username", "baseline account name", func(c *config.Config) *string { return &c.Auth.Username }},
	{"password", "baseline password or bcrypt hash", func(c *config.Config) *string { return &c.Auth.Password }},
	{"admin-account", "administrator account name", func(c *config.Config) *string { return &c.Auth.AdminAccount }},
	{"admin-password", "administrator password or bcrypt hash", func(c *config.Config) *string { return &c.Auth.AdminPassword }},
	{"redis-url", "redis:// URL for the ingest rate limiter", func(c *config.Config) *string { return &c.Redis.URL }},
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "logsink",
		Short:         "Collect and deduplicate client error logs",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			if noColor, _ := cmd.Flags().GetBool("no-color"); noColor {
				color.NoColor = true
			}
		},
		RunE: serveE,
	}

	pf := root.PersistentFlags()
	pf.String("config", "", "YAML config file (default $LOGSINK_CONFIG)")
	pf.Bool("no-color", false, "disable colored output")
	for _, f := range flagTargets {
		pf.String(f.name, "", f.usage)
	}

	root.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server (default)",
		Args:  cobra.NoArgs,
		RunE:  serveE,
	})
	root.AddCommand(newStatsCmd())
	return root
}

func serveE(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd.Flags())
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	return run(cmd.Context(), cfg)
}

// loadConfig loads the configuration with every explicitly set flag applied
// on top of the file and environment.
func loadConfig(fs *pflag.FlagSet) (*config.Config, error) {
	path, _ := fs.GetString("config")
	return config.LoadWith(path, func(c *config.Config) {
		for _, f := range flagTargets {
			if !fs.Changed(f.name) {
				continue
			}
			v, _ := fs.GetString(f.name)
			*f.field(c) = v
		}
	})
}

// --- stats ---

func newStatsCmd() *cobra.Command {
	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "Report on uploaded client statistics",
	}

	daily := &cobra.Command{
		Use:   "daily",
		Short: "Reports per day for one client type",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cliType, _ := cmd.Flags().GetString("cli-type")
			if cliType == "" {
				return fmt.Errorf("--cli-type is required")
			}
			svc, closeStore, err := openStats(cmd)
			if err != nil {
				return err
			}
			defer closeStore()

			rows, err := svc.DailyCounts(cmd.Context(), cliType)
			if err != nil {
				return err
			}
			printDaily(cmd.OutOrStdout(), cliType, rows)
			return nil
		},
	}
	daily.Flags().String("cli-type", "", "client type to report on")

	support := &cobra.Command{
		Use:   "support",
		Short: "Feature support across reported device configurations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, closeStore, err := openStats(cmd)
			if err != nil {
				return err
			}
			defer closeStore()

			summary, err := svc.Support(cmd.Context())
			if err != nil {
				return err
			}
			printSupport(cmd.OutOrStdout(), summary)
			return nil
		},
	}

	statsCmd.AddCommand(daily, support)
	return statsCmd
}

func openStats(cmd *cobra.Command) (*stats.Service, func(), error) {
	cfg, err := loadConfig(cmd.Flags())
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	st, err := store.Open(cmd.Context(), cfg.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("open database: %w", err)
	}
	return stats.NewService(st, nil), st.Close, nil
}

// Package cli implements the Cobra command-line interface for the Hanogt
// security bot.
package cli

import (
	"fmt"
	"os"
	"runtime"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/hanogt/hanogt-bot/internal/config"
	"github.com/hanogt/hanogt-bot/internal/db"
	"github.com/hanogt/hanogt-bot/internal/enforce"
	"github.com/hanogt/hanogt-bot/internal/output"
)

// Version information set by goreleaser
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// Global flag values
var (
	flagConfig  string
	flagOutput  string
	flagJSON    bool
	flagVerbose bool
	flagDB      string
)

// cfg is the effective configuration, loaded in PersistentPreRunE.
var cfg = config.DefaultConfig()

var rootCmd = &cobra.Command{
	Use:   "hanogt-bot",
	Short: "Hanogt Security Bot - malicious code detection and ban enforcement",
	Long: `hanogt-bot scans submitted code for malicious patterns and enforces
permanent bans against offending identities.

Submissions are matched against a fixed catalog of threat categories
(system commands, file attacks, crypto mining, ransomware, backdoors and
more). The policy is zero tolerance: any hit is critical severity and a
ban recommendation. Bans and the security event trail are kept in a local
SQLite database.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		overrides := map[string]any{}
		if flagDB != "" {
			overrides["storage.db_path"] = flagDB
		}
		loaded, err := config.Load(config.LoadOptions{
			ConfigPath:    flagConfig,
			FlagOverrides: overrides,
		})
		if err != nil {
			return err
		}
		cfg = loaded

		configureLogging()
		output.SetOutputMode(GetOutput() == "json")
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	RunE: func(cmd *cobra.Command, args []string) error {
		userConfig := flagConfig
		if userConfig == "" {
			userConfig, _ = config.ConfigPaths("", "")
		}

		payload := map[string]any{
			"version":     version,
			"commit":      commit,
			"build_date":  date,
			"go_version":  runtime.Version(),
			"config_path": userConfig,
			"db_path":     cfg.DatabasePath(),
		}

		switch GetOutput() {
		case "json", "yaml":
			out := output.New(output.Format(GetOutput()))
			return out.Write(payload)
		case "text":
			fmt.Printf("hanogt-bot %s\n", version)
			fmt.Printf("  commit: %s\n", commit)
			fmt.Printf("  built:  %s\n", date)
			fmt.Printf("  go:     %s\n", runtime.Version())
			fmt.Printf("  config: %s\n", userConfig)
			fmt.Printf("  db:     %s\n", cfg.DatabasePath())
			return nil
		default:
			return fmt.Errorf("unsupported format: %s", GetOutput())
		}
	},
}

// Execute runs the root command. In JSON mode errors are also emitted to
// stdout as a machine-readable payload.
func Execute() error {
	err := rootCmd.Execute()
	if err != nil && output.IsJSON() {
		_ = output.OutputJSONError(err, 1)
	}
	return err
}

// GetOutput returns the configured output format.
// Precedence: CLI flags > HANOGT_OUTPUT_FORMAT env > config > default
func GetOutput() string {
	if flagJSON {
		return "json"
	}
	if flagOutput != "" {
		return flagOutput
	}

	if envFormat := os.Getenv("HANOGT_OUTPUT_FORMAT"); envFormat != "" {
		switch envFormat {
		case "json", "yaml", "text":
			return envFormat
		}
	}

	if cfg.Output.Format != "" {
		return cfg.Output.Format
	}
	return "text"
}

// openDB opens and migrates the configured database.
func openDB() (*db.DB, error) {
	database, err := db.OpenAndMigrate(cfg.DatabasePath())
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	return database, nil
}

// newEnforcer builds the enforcement service with the configured fail mode.
func newEnforcer(database *db.DB) *enforce.Service {
	return enforce.NewService(database, log.Default(), enforce.WithFailOpen(cfg.Security.FailOpen))
}

func loggerFor(prefix string) *log.Logger {
	return log.Default().WithPrefix(prefix)
}

func configureLogging() {
	level := cfg.Logging.Level
	if flagVerbose {
		level = "debug"
	}
	if parsed, err := log.ParseLevel(level); err == nil {
		log.SetLevel(parsed)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&flagConfig, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().StringVarP(&flagOutput, "output", "o", "", "output format: text, json, yaml (env: HANOGT_OUTPUT_FORMAT)")
	rootCmd.PersistentFlags().BoolVarP(&flagJSON, "json", "j", false, "shorthand for --output=json")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVar(&flagDB, "db", "", "database path")

	rootCmd.AddCommand(versionCmd)
}

package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/giantswarm/llm-optimizer/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "llm-optimizer",
	Short: "Measured, behavior-preserving optimization of Go functions",
	Long: `llm-optimizer rewrites hot Go functions with candidates proposed by an LLM
(or read from a candidates file), measures the original code and every
candidate with the project's own tests plus a generated regression test,
and keeps the fastest candidate that preserves behavior and beats the
original by the configured margin.

Jobs are YAML files listing the functions to optimize. Runs can be started
from the CLI or through an MCP server with OAuth 2.1 authentication.

When run without subcommands, it starts the MCP server (equivalent to 'llm-optimizer serve').`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, _ []string) {
		verbose, _ := cmd.Flags().GetBool("verbose")
		if verbose {
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
				Level: slog.LevelDebug,
			})))
		}
	},
}

// serveCmd is stored so the root command can delegate to it by default.
var serveCmd *cobra.Command

var (
	buildCommit = "unknown"
	buildDate   = "unknown"
)

// SetVersion sets the version for the root command.
func SetVersion(v string) {
	rootCmd.Version = v
}

// SetBuildInfo sets the commit and build date for the version command.
func SetBuildInfo(commit, date string) {
	buildCommit = commit
	buildDate = date
}

// Execute is the main entry point for the CLI application.
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "llm-optimizer version %s\n" .Version}}`)

	// Default to the serve command when invoked without arguments.
	// We use Run (not RunE) to print the help text directing the user to use
	// an explicit subcommand, since the root command cannot parse serve-specific
	// flags (like --transport, --http-addr).
	rootCmd.Run = func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(os.Stderr, "No subcommand specified. Defaulting to 'serve' (stdio transport).")
		fmt.Fprintln(os.Stderr, "For HTTP transport or OAuth, use: llm-optimizer serve --transport streamable-http")
		fmt.Fprintln(os.Stderr)
		if err := serveCmd.RunE(serveCmd, args); err != nil {
			slog.Error("serve failed", "error", err)
			os.Exit(1)
		}
	}

	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	serveCmd = newServeCmd()
	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(newRunCmd())
	rootCmd.AddCommand(newReportCmd())
	rootCmd.AddCommand(newListCmd())

	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringP("config", "c", "", "Path to the optimizer config file (YAML)")
	rootCmd.PersistentFlags().String("jobs-dir", "jobs", "Directory containing job files")
}

// jobsDir returns the --jobs-dir value. Commands invoked without flag
// parsing (serve as the root default) fall back to "jobs".
func jobsDir(cmd *cobra.Command) string {
	if dir, err := cmd.Flags().GetString("jobs-dir"); err == nil && dir != "" {
		return dir
	}
	return "jobs"
}

// loadConfig reads the --config file and applies the flags the user set
// explicitly on cmd. Flags a command does not define are ignored.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return cfg, err
	}

	flags := cmd.Flags()
	changed := func(name string) bool {
		f := flags.Lookup(name)
		return f != nil && f.Changed
	}
	var ferr error
	set := func(name string, apply func(*pflag.FlagSet) error) {
		if ferr == nil && changed(name) {
			ferr = apply(flags)
		}
	}

	set("output-dir", func(fs *pflag.FlagSet) (err error) { cfg.OutputDir, err = fs.GetString("output-dir"); return })
	set("digest-dir", func(fs *pflag.FlagSet) (err error) { cfg.DigestDir, err = fs.GetString("digest-dir"); return })
	set("parser", func(fs *pflag.FlagSet) (err error) { cfg.Parser, err = fs.GetString("parser"); return })
	set("min-gain", func(fs *pflag.FlagSet) (err error) { cfg.MinGain, err = fs.GetFloat64("min-gain"); return })
	set("max-trials", func(fs *pflag.FlagSet) (err error) { cfg.MaxTrials, err = fs.GetInt("max-trials"); return })
	set("num-candidates", func(fs *pflag.FlagSet) (err error) { cfg.NumCandidates, err = fs.GetInt("num-candidates"); return })
	set("per-trial-timeout", func(fs *pflag.FlagSet) (err error) {
		cfg.PerTrialTimeout, err = fs.GetDuration("per-trial-timeout")
		return
	})
	set("max-wall", func(fs *pflag.FlagSet) (err error) {
		cfg.MaxWallPerFunction, err = fs.GetDuration("max-wall")
		return
	})
	set("revert-winner", func(fs *pflag.FlagSet) error {
		v, err := fs.GetBool("revert-winner")
		cfg.RevertWinnerImmediately = &v
		return err
	})
	set("endpoint", func(fs *pflag.FlagSet) (err error) { cfg.LLM.Endpoint, err = fs.GetString("endpoint"); return })
	set("api-key", func(fs *pflag.FlagSet) (err error) { cfg.LLM.APIKey, err = fs.GetString("api-key"); return })
	set("model", func(fs *pflag.FlagSet) (err error) { cfg.LLM.Model, err = fs.GetString("model"); return })
	set("temperature", func(fs *pflag.FlagSet) (err error) { cfg.LLM.Temperature, err = fs.GetFloat64("temperature"); return })
	if ferr != nil {
		return cfg, fmt.Errorf("invalid flag: %w", ferr)
	}
	return cfg, nil
}

// addLLMFlags registers the flags that override the llm config section.
func addLLMFlags(fs *pflag.FlagSet) {
	fs.String("endpoint", "", "LLM API endpoint URL (overrides llm.endpoint)")
	fs.String("api-key", "", "API key (or set OPENAI_API_KEY)")
	fs.String("model", "", "Model name for candidate and test generation")
	fs.Float64("temperature", 1.0, "Temperature for candidate generation")
}

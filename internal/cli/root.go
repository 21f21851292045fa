// Package cli implements the cobra-based CLI for reinstall.
//
// The root command performs the reinstall itself. The status and config
// subcommands are defined in their own files. This file holds the root
// command, the global flags and the exit-code handling.
package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/shinji-kodama/reinstall/internal/config"
	"github.com/shinji-kodama/reinstall/internal/logging"
	"github.com/shinji-kodama/reinstall/internal/model"
	"github.com/shinji-kodama/reinstall/internal/pkgmgr"
	"github.com/shinji-kodama/reinstall/internal/project"
)

// Global flag variables shared across all subcommands.
// They are bound to persistent flags on the root command and reset to
// their defaults every time NewRootCommand is called.
var (
	// jsonOutput switches command output to JSON on stdout. Human-readable
	// status lines move to stderr.
	jsonOutput bool

	// verbose forces debug-level diagnostics on stderr.
	verbose bool

	// shared holds the persistent flags that select the project and the
	// package manager.
	shared sharedFlags
)

// sharedFlags are the persistent flags read by every command.
type sharedFlags struct {
	// dir is the project directory, also searched for a config file.
	dir string

	// configPath is an explicit config file; empty means search dir.
	configPath string

	// manager is the package manager command line, split on whitespace.
	manager string

	// color is auto, always or never.
	color string
}

// Version, Commit, and Date are set at build time via ldflags.
// They are injected from the main package to display version information.
var (
	// Version is the semantic version of the binary (e.g., "1.0.0").
	Version = "dev"

	// Commit is the Git commit hash the binary was built from.
	Commit = "none"

	// Date is the build timestamp.
	Date = "unknown"
)

// rootFlags holds the flags that only apply to the reinstall run itself.
type rootFlags struct {
	pkg      string
	failFast bool
	verify   bool
	dryRun   bool
}

// NewRootCommand creates and configures the root cobra command.
//
// Unlike a pure command group, the root command does the work itself:
// running `reinstall` with no arguments performs the whole sequence.
// status and config are registered as subcommands.
func NewRootCommand() *cobra.Command {
	flags := &rootFlags{}

	rootCmd := &cobra.Command{
		// Use is the one-line usage pattern shown in help output.
		Use:   "reinstall",
		Short: "Uninstall a package and reinstall it in editable mode",
		Long: `reinstall removes the installed copy of a package and installs the
project in the current directory in editable (development) mode.

The package name is read from pyproject.toml or setup.cfg unless given
with --package. Both steps always run; the exit status is that of the
last command, unless --fail-fast is set.

Examples:
  reinstall
  reinstall --package demo --dir ./src/demo
  reinstall --manager "python -m pip" --verify
  reinstall --manager uv --fail-fast`,

		// The package comes from --package or the project definition,
		// never from a positional argument.
		Args: usageArgs(cobra.NoArgs),

		// SilenceUsage and SilenceErrors leave error output to Execute.
		SilenceUsage:  true,
		SilenceErrors: true,

		// Version is displayed when --version flag is used.
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, Date),

		RunE: func(cmd *cobra.Command, args []string) error {
			return runReinstall(cmd, flags)
		},
	}

	// PersistentFlags are inherited by status and config. The project and
	// package manager selection must be shared, since status queries the
	// same manager the reinstall would use.
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVarP(&shared.dir, "dir", "C", ".", "Project directory")
	rootCmd.PersistentFlags().StringVar(&shared.configPath, "config", "",
		"Config file (default: .reinstall.{yaml,yml,jsonc,json} in the project directory)")
	rootCmd.PersistentFlags().StringVar(&shared.manager, "manager", "",
		`Package manager command, e.g. "pip", "python -m pip", "uv" (default "pip")`)
	rootCmd.PersistentFlags().StringVar(&shared.color, "color", "", "Color output: auto, always, never (default: auto)")

	// Local flags only make sense for the reinstall run itself.
	rootCmd.Flags().StringVarP(&flags.pkg, "package", "p", "", "Package to reinstall (default: read from the project definition)")
	rootCmd.Flags().BoolVar(&flags.failFast, "fail-fast", false, "Stop at the first failing step")
	rootCmd.Flags().BoolVar(&flags.verify, "verify", false, "Check that the package is linked to the project after installing")
	rootCmd.Flags().BoolVar(&flags.dryRun, "dry-run", false, "Print the package manager commands without running them")

	// Unknown or malformed flags are usage errors (exit 2), like a
	// missing package name.
	rootCmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return model.WrapCLIError(model.ExitUsageError, "invalid flags", err)
	})

	rootCmd.AddCommand(NewStatusCommand())
	rootCmd.AddCommand(NewConfigCommand())

	return rootCmd
}

// Execute runs the root command and exits the process with the status
// carried by the returned error.
func Execute(ctx context.Context, rootCmd *cobra.Command) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(handleError(rootCmd.ErrOrStderr(), err))
	}
}

// handleError prints err unless it is silent and returns the exit code it
// carries.
func handleError(w io.Writer, err error) int {
	var cliErr *model.CLIError
	if errors.As(err, &cliErr) {
		// Silent errors come from package manager children, which have
		// already printed their own diagnostics.
		if !cliErr.Silent() {
			printError(w, cliErr.Message, cliErr.Err)
		}
		return int(cliErr.Code)
	}

	// Generic error: exit with code 1.
	printError(w, err.Error(), nil)
	return int(model.ExitGeneralError)
}

// printError outputs an error message in text or JSON, depending on --json.
func printError(w io.Writer, message string, underlying error) {
	if jsonOutput {
		errObj := map[string]interface{}{
			"error": map[string]interface{}{
				"message": message,
			},
		}
		if underlying != nil {
			if errMap, ok := errObj["error"].(map[string]interface{}); ok {
				errMap["detail"] = underlying.Error()
			}
		}
		// Errors go to stderr even in JSON mode; stdout carries results only.
		data, _ := json.MarshalIndent(errObj, "", "  ")
		fmt.Fprintln(w, string(data))
		return
	}

	// Text format: "Error: <message>" on stderr.
	if underlying != nil {
		fmt.Fprintf(w, "Error: %s: %v\n", message, underlying)
	} else {
		fmt.Fprintf(w, "Error: %s\n", message)
	}
}

// usageArgs turns positional argument errors into usage errors.
func usageArgs(validate cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := validate(cmd, args); err != nil {
			return model.WrapCLIError(model.ExitUsageError, "invalid arguments", err)
		}
		return nil
	}
}

// IsJSONOutput returns whether the --json flag is set.
func IsJSONOutput() bool {
	return jsonOutput
}

// loadConfig builds the effective configuration: defaults, config file,
// environment, then the flags that were explicitly set on cmd.
//
// The config file is searched for in --dir when it is given, so that
// `reinstall -C ../other` picks up that project's settings.
func loadConfig(cmd *cobra.Command) (*config.Config, string, error) {
	// Step 1: defaults, config file and environment.
	cfg, path, err := config.Load(config.Options{
		Path: shared.configPath,
		Dir:  shared.dir,
	})
	if err != nil {
		return nil, "", model.WrapCLIError(model.ExitUsageError, "invalid configuration", err)
	}

	// Step 2: explicitly set flags win. Changed distinguishes a flag left
	// at its default from one set to the same value.
	fs := cmd.Flags()
	if fs.Changed("dir") {
		cfg.Dir = shared.dir
	}
	if fs.Changed("manager") {
		cfg.Manager.Command = shared.manager
		// An explicit command resets a configured flavor; it is
		// detected again from the new command.
		cfg.Manager.Flavor = ""
	}
	if fs.Changed("color") {
		cfg.Color = shared.color
	}

	// Step 3: flags bypass the loader's validation, so check again.
	if err := cfg.Validate(); err != nil {
		return nil, "", model.WrapCLIError(model.ExitUsageError, "invalid flags", err)
	}
	return cfg, path, nil
}

// newLogger creates the diagnostics logger on cmd's stderr, tagged with a
// fresh run id.
func newLogger(cmd *cobra.Command, cfg *config.Config) (*zap.Logger, string, error) {
	base, err := logging.New(cmd.ErrOrStderr(), logging.Options{
		Level:   cfg.Log.Level,
		Format:  cfg.Log.Format,
		Verbose: verbose,
	})
	if err != nil {
		return nil, "", model.WrapCLIError(model.ExitUsageError, "invalid logging configuration", err)
	}
	logger, runID := logging.WithRunID(base)
	return logger, runID, nil
}

// newManager creates the package manager adapter for cfg. Child stdout goes
// to stdout and child stderr to stderr.
func newManager(cfg *config.Config, stdout, stderr io.Writer, logger *zap.Logger) *pkgmgr.Manager {
	m := pkgmgr.NewManager(cfg.ManagerCommand(), cfg.ManagerFlavor())
	m.ExtraInstallArgs = cfg.Manager.InstallArgs
	m.DryRun = cfg.DryRun
	m.Stdout = stdout
	m.Stderr = stderr
	m.Logger = logger
	return m
}

// resolvePackage returns the package to operate on: the configured name,
// or the name declared by the project definition in dir.
func resolvePackage(configured, dir string, logger *zap.Logger) (string, error) {
	if configured != "" {
		return configured, nil
	}

	// Fall back to the project's own metadata, which is what the
	// editable install will register.
	def, err := project.Locate(dir)
	if err != nil {
		return "", model.WrapCLIError(model.ExitUsageError,
			"no package name given; use --package or add a pyproject.toml", err)
	}

	name, err := def.Name()
	if err != nil {
		return "", model.WrapCLIError(model.ExitUsageError,
			fmt.Sprintf("no package name given and none found in %s; use --package", def.Path), err)
	}
	if err := model.ValidatePackageName(name); err != nil {
		return "", model.WrapCLIError(model.ExitUsageError,
			fmt.Sprintf("invalid project name in %s", def.Path), err)
	}

	logger.Debug("package name read from project definition",
		zap.String("package", name),
		zap.String("path", def.Path),
	)
	return name, nil
}

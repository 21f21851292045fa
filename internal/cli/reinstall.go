package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/shinji-kodama/reinstall/internal/model"
	"github.com/shinji-kodama/reinstall/internal/reinstall"
)

// runReinstall is the main logic of the root command.
// It layers the configuration, resolves the package name, wires the
// package manager and reporter, and runs the Reinstaller. The returned
// error carries the exit status for Execute.
func runReinstall(cmd *cobra.Command, flags *rootFlags) error {
	// Step 1: load the layered configuration and apply the local flags.
	cfg, configPath, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	fs := cmd.Flags()
	if fs.Changed("package") {
		cfg.Package = flags.pkg
	}
	if fs.Changed("fail-fast") {
		cfg.FailFast = flags.failFast
	}
	if fs.Changed("verify") {
		cfg.Verify = flags.verify
	}
	if fs.Changed("dry-run") {
		cfg.DryRun = flags.dryRun
	}
	if err := cfg.Validate(); err != nil {
		return model.WrapCLIError(model.ExitUsageError, "invalid flags", err)
	}

	// Step 2: diagnostics go to stderr, tagged with this run's id.
	logger, runID, err := newLogger(cmd, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	if configPath != "" {
		logger.Debug("loaded config file", zap.String("path", configPath))
	}

	if cfg.DryRun && cfg.Verify {
		logger.Warn("--verify has no effect with --dry-run")
		cfg.Verify = false
	}

	// Step 3: decide which package to uninstall before touching anything.
	pkg, err := resolvePackage(cfg.Package, cfg.Dir, logger)
	if err != nil {
		return err
	}

	// In JSON mode stdout carries the report only.
	stdout := cmd.OutOrStdout()
	statusOut := stdout
	if IsJSONOutput() {
		statusOut = cmd.ErrOrStderr()
	}

	// Step 4: run the sequence. Child stdout shares the status writer so
	// its output stays interleaved with the status lines.
	m := newManager(cfg, statusOut, cmd.ErrOrStderr(), logger)
	r := reinstall.New(m, reinstall.NewReporter(statusOut, cfg.ColorMode()), logger, reinstall.Options{
		Policy: cfg.Policy(),
		Verify: cfg.Verify,
	})

	report, runErr := r.Run(cmd.Context(), pkg, cfg.Dir)

	// Step 5: the report is printed even for failed runs, so scripts can
	// see which step failed.
	if IsJSONOutput() && report != nil {
		printReportJSON(stdout, report, runID, cfg.DryRun)
	}
	return runErr
}

// reportJSON is the --json output of the root command.
type reportJSON struct {
	RunID        string            `json:"runId"`
	Package      string            `json:"package"`
	ProjectDir   string            `json:"projectDir"`
	Policy       string            `json:"policy"`
	DryRun       bool              `json:"dryRun"`
	Completed    bool              `json:"completed"`
	ExitCode     int               `json:"exitCode"`
	Steps        []stepJSON        `json:"steps"`
	Verification *verificationJSON `json:"verification,omitempty"`
}

// stepJSON is one step of reportJSON.
type stepJSON struct {
	Kind       string `json:"kind"`
	Command    string `json:"command"`
	ExitCode   int    `json:"exitCode"`
	DurationMs int64  `json:"durationMs"`
	Error      string `json:"error,omitempty"`
}

// verificationJSON is the registry check of reportJSON, when requested.
type verificationJSON struct {
	Name             string `json:"name"`
	Version          string `json:"version"`
	EditableLocation string `json:"editableLocation"`
	Linked           bool   `json:"linked"`
}

// printReportJSON outputs the run report as indented JSON on w.
func printReportJSON(w io.Writer, report *model.Report, runID string, dryRun bool) {
	// Steps starts as an empty slice so the output shows [] instead of null.
	result := reportJSON{
		RunID:      runID,
		Package:    report.Package,
		ProjectDir: report.ProjectDir,
		Policy:     report.Policy.String(),
		DryRun:     dryRun,
		Completed:  report.Completed,
		ExitCode:   report.ExitCode,
		Steps:      make([]stepJSON, 0, len(report.Steps)),
	}

	for _, s := range report.Steps {
		result.Steps = append(result.Steps, stepJSON{
			Kind:       s.Kind.String(),
			Command:    s.Command(),
			ExitCode:   s.ExitCode,
			DurationMs: s.Duration.Milliseconds(),
			Error:      s.Error,
		})
	}

	if v := report.Verification; v != nil {
		result.Verification = &verificationJSON{
			Name:             v.Info.Name,
			Version:          v.Info.Version,
			EditableLocation: v.Info.EditableLocation,
			Linked:           v.Linked,
		}
	}

	data, _ := json.MarshalIndent(result, "", "  ")
	fmt.Fprintln(w, string(data))
}

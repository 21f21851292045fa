package reinstall

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/shinji-kodama/reinstall/internal/model"
	"github.com/shinji-kodama/reinstall/internal/project"
)

// PackageManager is the subset of pkgmgr.Manager the Reinstaller needs.
//
// Uninstall and InstallEditable must block until the child exits and
// return a *model.CLIError whose Code is the exit status when it is
// non-zero.
type PackageManager interface {
	Uninstall(ctx context.Context, name string) (model.StepResult, error)
	InstallEditable(ctx context.Context, dir string) (model.StepResult, error)
	Show(ctx context.Context, name string) (*model.PackageInfo, error)
}

// Options tunes a Reinstaller.
type Options struct {
	// Policy decides whether a failing step stops the run. Empty means
	// model.PolicyContinue.
	Policy model.FailurePolicy

	// Verify checks after a successful install that the package is
	// registered as editable and linked to the project directory.
	Verify bool
}

// Reinstaller runs the uninstall → editable install sequence.
type Reinstaller struct {
	pm       PackageManager
	reporter *Reporter
	logger   *zap.Logger
	opts     Options
}

// New creates a Reinstaller. A nil logger disables diagnostics.
func New(pm PackageManager, reporter *Reporter, logger *zap.Logger, opts Options) *Reinstaller {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Policy == "" {
		opts.Policy = model.PolicyContinue
	}
	return &Reinstaller{
		pm:       pm,
		reporter: reporter,
		logger:   logger,
		opts:     opts,
	}
}

// Run uninstalls pkg, then installs the project in dir in editable mode.
//
// The returned Report is always non-nil once the name has been validated,
// so callers can print it even on failure. The error, when non-nil, is a
// *model.CLIError carrying the exit status of the run: the status of the
// last command under PolicyContinue, or of the first failure under
// PolicyFailFast. Silent errors mean the package manager already printed
// its own diagnostics.
func (r *Reinstaller) Run(ctx context.Context, pkg, dir string) (*model.Report, error) {
	if err := model.ValidatePackageName(pkg); err != nil {
		return nil, model.WrapCLIError(model.ExitUsageError, "invalid package", err)
	}

	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, model.WrapCLIError(model.ExitUsageError,
			fmt.Sprintf("failed to resolve project directory %s", dir), err)
	}

	report := &model.Report{
		Package:    pkg,
		ProjectDir: absDir,
		Policy:     r.opts.Policy,
	}

	logger := r.logger.With(zap.String("package", pkg), zap.String("dir", absDir))

	if def, err := project.Locate(absDir); err != nil {
		// The install step will report the real problem; this only
		// makes it easier to spot in verbose output.
		logger.Warn("no project definition found, editable install will likely fail", zap.Error(err))
	} else {
		logger.Debug("found project definition", zap.String("kind", string(def.Kind)))
	}

	logger.Debug("starting reinstall", zap.String("policy", r.opts.Policy.String()))

	// Failure messages already logged in this run.
	logged := make(map[string]bool)

	r.reporter.Uninstalling(pkg)
	res, err := r.pm.Uninstall(ctx, pkg)
	report.Steps = append(report.Steps, res)
	if stop := r.afterStep(ctx, logger, logged, res, err); stop != nil {
		report.ExitCode = exitCodeOf(stop)
		return report, stop
	}

	r.reporter.Installing(pkg)
	res, err = r.pm.InstallEditable(ctx, absDir)
	report.Steps = append(report.Steps, res)
	if stop := r.afterStep(ctx, logger, logged, res, err); stop != nil {
		report.ExitCode = exitCodeOf(stop)
		return report, stop
	}

	var final error
	if last := report.LastStep(); last != nil && !last.Succeeded() {
		final = model.NewExitError(model.ExitCode(last.ExitCode), errors.New(last.Error))
	}

	if r.opts.Verify && res.Succeeded() {
		verification, verr := r.verify(ctx, pkg, absDir)
		report.Verification = verification
		if verr != nil {
			var cliErr *model.CLIError
			if errors.As(verr, &cliErr) && cliErr.Code == model.ExitInterrupted {
				report.ExitCode = int(cliErr.Code)
				return report, cliErr
			}

			r.reporter.VerifyFailed(verr.Error())
			final = model.NewExitError(model.ExitVerifyFailed, verr)
			if r.opts.Policy == model.PolicyFailFast {
				report.ExitCode = int(model.ExitVerifyFailed)
				return report, final
			}
		} else {
			r.reporter.Linked(pkg, absDir)
		}
	}

	r.reporter.Done()
	report.Completed = true
	report.ExitCode = exitCodeOf(final)

	logger.Debug("reinstall finished", zap.Int("exit_code", report.ExitCode))

	if final != nil {
		return report, final
	}
	return report, nil
}

// afterStep applies the failure policy to a finished step. It returns a
// non-nil error when the run must stop. logged records the failure
// messages already reported in this run.
func (r *Reinstaller) afterStep(ctx context.Context, logger *zap.Logger, logged map[string]bool, res model.StepResult, err error) error {
	if err == nil {
		return nil
	}

	var cliErr *model.CLIError
	if !errors.As(err, &cliErr) {
		cliErr = model.WrapCLIError(model.ExitCode(res.ExitCode), fmt.Sprintf("%s failed", res.Kind), err)
	}

	// An interrupt terminates the whole run, whatever the policy.
	if ctx.Err() != nil || cliErr.Code == model.ExitInterrupted {
		logger.Debug("run interrupted", zap.String("step", res.Kind.String()))
		return model.WrapCLIError(model.ExitInterrupted, "interrupted", ctx.Err())
	}

	if r.opts.Policy == model.PolicyFailFast {
		r.reporter.StepFailed(res.Kind, res.ExitCode)
		return cliErr
	}

	// The child printed its own diagnostics; only our own failures
	// (binary missing, bad project dir) need a message under continue.
	// A missing binary fails both steps the same way; say it once.
	if !cliErr.Silent() && !logged[cliErr.Message] {
		logged[cliErr.Message] = true
		logger.Error(cliErr.Message, zap.String("step", res.Kind.String()), zap.Error(cliErr.Err))
	}
	logger.Debug("step failed, continuing",
		zap.String("step", res.Kind.String()),
		zap.Int("exit_code", res.ExitCode),
	)
	return nil
}

// verify checks the package registry after the editable install.
func (r *Reinstaller) verify(ctx context.Context, pkg, dir string) (*model.Verification, error) {
	info, err := r.pm.Show(ctx, pkg)
	if err != nil {
		if ctx.Err() != nil {
			return nil, model.WrapCLIError(model.ExitInterrupted, "interrupted", ctx.Err())
		}
		return nil, fmt.Errorf("%s is not registered after the editable install: %w", pkg, err)
	}

	v := &model.Verification{Info: *info}
	if !info.IsEditable() {
		return v, fmt.Errorf("%s %s is installed, but not in editable mode", info.Name, info.Version)
	}
	if !IsLinked(*info, dir) {
		return v, fmt.Errorf("%s is linked to %s, not %s", info.Name, info.EditableLocation, dir)
	}

	v.Linked = true
	return v, nil
}

// IsLinked reports whether info is an editable install whose project
// location is dir, after resolving symlinks on both sides.
func IsLinked(info model.PackageInfo, dir string) bool {
	return info.IsEditable() && resolve(info.EditableLocation) == resolve(dir)
}

func resolve(p string) string {
	if abs, err := filepath.Abs(p); err == nil {
		p = abs
	}
	if resolved, err := filepath.EvalSymlinks(p); err == nil {
		p = resolved
	}
	return filepath.Clean(p)
}

func exitCodeOf(err error) int {
	if err == nil {
		return int(model.ExitSuccess)
	}
	var cliErr *model.CLIError
	if errors.As(err, &cliErr) {
		return int(cliErr.Code)
	}
	return int(model.ExitGeneralError)
}

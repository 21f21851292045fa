package pkgmgr

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/shinji-kodama/reinstall/internal/model"
)

// DefaultCommand is the package manager invoked when nothing else is configured.
var DefaultCommand = []string{"pip"}

// Manager runs package-manager commands.
//
// Command is the argv prefix of the package manager (for example
// ["python", "-m", "pip"]). Subcommand arguments are appended according
// to Flavor.
type Manager struct {
	// Command is the package manager argv prefix. Must not be empty.
	Command []string

	// Flavor selects the CLI dialect.
	Flavor model.ManagerFlavor

	// ExtraInstallArgs are appended to the editable install command,
	// e.g. ["--no-deps"] or ["-e", "../shared"].
	ExtraInstallArgs []string

	// Stdout and Stderr receive the child's output. Nil means os.Stdout
	// and os.Stderr.
	Stdout io.Writer
	Stderr io.Writer

	// DryRun prints each command (prefixed by "+ ") instead of running it.
	DryRun bool

	// Logger receives debug traces of every invocation. Nil disables logging.
	Logger *zap.Logger
}

// NewManager creates a Manager for the given command. An empty command
// falls back to DefaultCommand, and an empty flavor is detected from the
// command with DetectFlavor.
//
// A relative command path such as "./venv/bin/pip" is made absolute here,
// because the install step runs with the project directory as its working
// directory.
func NewManager(command []string, flavor model.ManagerFlavor) *Manager {
	if len(command) == 0 {
		command = DefaultCommand
	}
	command = append([]string(nil), command...)

	if strings.ContainsRune(command[0], os.PathSeparator) && !filepath.IsAbs(command[0]) {
		if abs, err := filepath.Abs(command[0]); err == nil {
			command[0] = abs
		}
	}

	if flavor == "" {
		flavor = DetectFlavor(command)
	}

	return &Manager{
		Command: command,
		Flavor:  flavor,
	}
}

// DetectFlavor guesses the dialect from the first command word:
// a binary named "uv" is FlavorUV, everything else is FlavorPip.
func DetectFlavor(command []string) model.ManagerFlavor {
	if len(command) == 0 {
		return model.FlavorPip
	}
	base := strings.TrimSuffix(filepath.Base(command[0]), ".exe")
	if base == "uv" {
		return model.FlavorUV
	}
	return model.FlavorPip
}

// UninstallArgs returns the full argv that uninstalls name without an
// interactive confirmation prompt.
func (m *Manager) UninstallArgs(name string) []string {
	switch m.Flavor {
	case model.FlavorUV:
		// uv never prompts, and rejects pip's -y flag.
		return m.argv("pip", "uninstall", name)
	default:
		return m.argv("uninstall", "-y", name)
	}
}

// InstallEditableArgs returns the full argv that installs the current
// directory in editable mode.
func (m *Manager) InstallEditableArgs() []string {
	var args []string
	if m.Flavor == model.FlavorUV {
		args = append(args, "pip")
	}
	args = append(args, "install", "-e", ".")
	args = append(args, m.ExtraInstallArgs...)
	return m.argv(args...)
}

// ShowArgs returns the full argv that prints metadata for name.
func (m *Manager) ShowArgs(name string) []string {
	if m.Flavor == model.FlavorUV {
		return m.argv("pip", "show", name)
	}
	return m.argv("show", name)
}

// Uninstall removes the installed package name. It blocks until the
// package manager exits.
//
// A non-zero exit (for example "package not installed") is returned as a
// silent *model.CLIError whose Code is the child's exit status. The
// package manager has already printed its own diagnostics.
func (m *Manager) Uninstall(ctx context.Context, name string) (model.StepResult, error) {
	return m.run(ctx, model.StepUninstall, "", m.UninstallArgs(name))
}

// InstallEditable installs the project in dir in editable mode. The child
// runs with dir as its working directory and "." as the install target.
func (m *Manager) InstallEditable(ctx context.Context, dir string) (model.StepResult, error) {
	argv := m.InstallEditableArgs()

	if _, err := os.Stat(dir); err != nil {
		res := model.StepResult{
			Kind:     model.StepInstall,
			Argv:     argv,
			ExitCode: int(model.ExitGeneralError),
			Error:    err.Error(),
		}
		return res, model.WrapCLIError(model.ExitGeneralError,
			fmt.Sprintf("project directory %s is not accessible", dir), err)
	}

	return m.run(ctx, model.StepInstall, dir, argv)
}

// run executes argv in dir, streaming output to the configured writers.
func (m *Manager) run(ctx context.Context, kind model.StepKind, dir string, argv []string) (model.StepResult, error) {
	res := model.StepResult{Kind: kind, Argv: argv}

	// Dry run mimics `sh -x` tracing and reports success.
	if m.DryRun {
		fmt.Fprintf(m.stdout(), "+ %s\n", strings.Join(argv, " "))
		return res, nil
	}

	m.logger().Debug("running package manager",
		zap.String("step", kind.String()),
		zap.Strings("argv", argv),
		zap.String("dir", dir),
	)

	// #nosec G204 -- argv is the configured package manager plus fixed subcommands
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	// An empty dir runs in the caller's working directory.
	cmd.Dir = dir

	// Output is streamed, not captured: the user sees pip's progress and
	// diagnostics exactly as printed.
	cmd.Stdout = m.stdout()
	cmd.Stderr = m.stderr()

	start := time.Now()
	err := cmd.Run()
	res.Duration = time.Since(start)

	if err != nil {
		// Record the shell-compatible status on the step as well as on
		// the returned error, so the report matches the exit code.
		cliErr := classifyError(ctx, argv[0], err)
		res.ExitCode = int(cliErr.Code)
		res.Error = err.Error()

		m.logger().Debug("package manager failed",
			zap.String("step", kind.String()),
			zap.Int("exit_code", res.ExitCode),
			zap.Duration("duration", res.Duration),
			zap.Error(err),
		)
		return res, cliErr
	}

	m.logger().Debug("package manager finished",
		zap.String("step", kind.String()),
		zap.Duration("duration", res.Duration),
	)
	return res, nil
}

// classifyError maps an exec failure onto a CLIError with shell-compatible
// exit codes.
func classifyError(ctx context.Context, bin string, err error) *model.CLIError {
	// A cancelled context killed the child; its own status is irrelevant.
	if ctxErr := ctx.Err(); ctxErr != nil {
		return model.WrapCLIError(model.ExitInterrupted, "interrupted", ctxErr)
	}

	// The child ran and failed. It printed its own diagnostics, so only
	// the status is kept.
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return model.NewExitError(model.ExitCode(exitStatus(exitErr)), err)
	}

	// The child never started.
	switch {
	case errors.Is(err, exec.ErrNotFound), errors.Is(err, fs.ErrNotExist):
		return model.WrapCLIError(model.ExitCommandNotFound,
			fmt.Sprintf("package manager %q not found", bin), err)
	case errors.Is(err, fs.ErrPermission):
		return model.WrapCLIError(model.ExitNotExecutable,
			fmt.Sprintf("package manager %q is not executable", bin), err)
	default:
		return model.WrapCLIError(model.ExitGeneralError,
			fmt.Sprintf("failed to run %s", bin), err)
	}
}

// exitStatus returns the status a shell would report for a finished child:
// its exit code, or 128+N when it was killed by signal N.
func exitStatus(exitErr *exec.ExitError) int {
	// Signaled children report -1 from ExitCode.
	if ws, ok := exitErr.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		return 128 + int(ws.Signal())
	}
	if code := exitErr.ExitCode(); code >= 0 {
		return code
	}
	return int(model.ExitGeneralError)
}

func (m *Manager) argv(args ...string) []string {
	out := make([]string, 0, len(m.Command)+len(args))
	out = append(out, m.Command...)
	return append(out, args...)
}

func (m *Manager) stdout() io.Writer {
	if m.Stdout != nil {
		return m.Stdout
	}
	return os.Stdout
}

func (m *Manager) stderr() io.Writer {
	if m.Stderr != nil {
		return m.Stderr
	}
	return os.Stderr
}

func (m *Manager) logger() *zap.Logger {
	if m.Logger != nil {
		return m.Logger
	}
	return zap.NewNop()
}

package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/shinji-kodama/reinstall/internal/config"
	"github.com/shinji-kodama/reinstall/internal/model"
	"github.com/shinji-kodama/reinstall/internal/pkgmgr/pkgmgrtest"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// clearEnv unsets every REINSTALL_* variable for the duration of the test.
func clearEnv(t *testing.T) {
	t.Helper()
	t.Setenv("NO_COLOR", "")
	for _, kv := range os.Environ() {
		key, _, _ := strings.Cut(kv, "=")
		if strings.HasPrefix(key, config.EnvPrefix) {
			t.Setenv(key, "")
			require.NoError(t, os.Unsetenv(key))
		}
	}
}

// newProject creates a project directory declaring the package demo and
// returns its symlink-free path.
func newProject(t *testing.T) string {
	t.Helper()
	dir, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "pyproject.toml"),
		[]byte("[project]\nname = \"demo\"\nversion = \"0.1.0\"\n"), 0o644))
	return dir
}

// executeCommand runs a fresh root command with args and returns what it
// wrote to stdout and stderr.
func executeCommand(t *testing.T, args ...string) (string, string, error) {
	t.Helper()

	cmd := NewRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)

	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func exitCode(t *testing.T, err error) model.ExitCode {
	t.Helper()
	var cliErr *model.CLIError
	require.True(t, errors.As(err, &cliErr), "expected CLIError, got %v", err)
	return cliErr.Code
}

func assertInOrder(t *testing.T, text string, parts ...string) {
	t.Helper()
	last := -1
	for _, part := range parts {
		at := strings.Index(text, part)
		require.GreaterOrEqual(t, at, 0, "%q not found in:\n%s", part, text)
		assert.Greater(t, at, last, "%q out of order in:\n%s", part, text)
		last = at
	}
}

// TestRoot_Reinstall verifies the full run with the package name read
// from pyproject.toml.
func TestRoot_Reinstall(t *testing.T) {
	clearEnv(t)
	dir := newProject(t)
	fake := pkgmgrtest.New(t, pkgmgrtest.Options{})

	stdout, _, err := executeCommand(t, "--dir", dir, "--manager", fake.Path, "--color", "never")
	require.NoError(t, err)

	assertInOrder(t, stdout,
		"Uninstalling demo...",
		"uninstall -y demo",
		"Installing demo in editable mode...",
		"install -e .",
		"Done!",
	)

	calls := fake.Calls(t)
	require.Len(t, calls, 2)
	assert.Equal(t, []string{"uninstall", "-y", "demo"}, calls[0].Args)
	assert.Equal(t, []string{"install", "-e", "."}, calls[1].Args)
	assert.Equal(t, dir, calls[1].Dir)
}

func TestRoot_PackageFlag(t *testing.T) {
	clearEnv(t)
	dir := newProject(t)
	fake := pkgmgrtest.New(t, pkgmgrtest.Options{})

	stdout, _, err := executeCommand(t, "-C", dir, "--manager", fake.Path, "--color", "never", "-p", "other-pkg")
	require.NoError(t, err)

	assert.Contains(t, stdout, "Uninstalling other-pkg...")
	assert.Equal(t, []string{"uninstall", "-y", "other-pkg"}, fake.Calls(t)[0].Args)
}

// TestRoot_NeverInstalled verifies a failing uninstall does not stop the
// run nor change its exit status.
func TestRoot_NeverInstalled(t *testing.T) {
	clearEnv(t)
	dir := newProject(t)
	fake := pkgmgrtest.New(t, pkgmgrtest.Options{UninstallExit: 1})

	stdout, _, err := executeCommand(t, "-C", dir, "--manager", fake.Path, "--color", "never")
	require.NoError(t, err)
	assert.Len(t, fake.Calls(t), 2)
	assert.Contains(t, stdout, "Done!")
}

// TestRoot_InstallFails verifies the install's exit status passes through
// without an extra error message.
func TestRoot_InstallFails(t *testing.T) {
	clearEnv(t)
	dir := newProject(t)
	fake := pkgmgrtest.New(t, pkgmgrtest.Options{InstallExit: 4})

	_, _, err := executeCommand(t, "-C", dir, "--manager", fake.Path, "--color", "never")
	require.Error(t, err)
	assert.Equal(t, model.ExitCode(4), exitCode(t, err))

	var stderr bytes.Buffer
	assert.Equal(t, 4, handleError(&stderr, err))
	assert.Empty(t, stderr.String())
}

func TestRoot_FailFast(t *testing.T) {
	clearEnv(t)
	dir := newProject(t)
	fake := pkgmgrtest.New(t, pkgmgrtest.Options{UninstallExit: 1})

	stdout, _, err := executeCommand(t, "-C", dir, "--manager", fake.Path, "--color", "never", "--fail-fast")
	require.Error(t, err)
	assert.Equal(t, model.ExitCode(1), exitCode(t, err))

	assert.Len(t, fake.Calls(t), 1)
	assert.Contains(t, stdout, "Uninstall failed (exit 1)")
	assert.NotContains(t, stdout, "Installing demo")
}

func TestRoot_UVFlavor(t *testing.T) {
	clearEnv(t)
	dir := newProject(t)
	fake := pkgmgrtest.New(t, pkgmgrtest.Options{Name: "uv"})

	_, _, err := executeCommand(t, "-C", dir, "--manager", fake.Path, "--color", "never")
	require.NoError(t, err)

	calls := fake.Calls(t)
	require.Len(t, calls, 2)
	assert.Equal(t, []string{"pip", "uninstall", "demo"}, calls[0].Args)
	assert.Equal(t, []string{"pip", "install", "-e", "."}, calls[1].Args)
}

func TestRoot_DryRun(t *testing.T) {
	clearEnv(t)
	dir := newProject(t)
	fake := pkgmgrtest.New(t, pkgmgrtest.Options{})

	stdout, _, err := executeCommand(t, "-C", dir, "--manager", fake.Path, "--color", "never", "--dry-run")
	require.NoError(t, err)

	assert.Empty(t, fake.Calls(t))
	assertInOrder(t, stdout,
		"+ "+fake.Path+" uninstall -y demo",
		"+ "+fake.Path+" install -e .",
		"Done!",
	)
}

func TestRoot_Verify(t *testing.T) {
	clearEnv(t)
	dir := newProject(t)

	t.Run("linked", func(t *testing.T) {
		fake := pkgmgrtest.New(t, pkgmgrtest.Options{Show: pkgmgrtest.ShowOutput("demo", "0.1.0", dir)})
		stdout, _, err := executeCommand(t, "-C", dir, "--manager", fake.Path, "--color", "never", "--verify")
		require.NoError(t, err)
		assertInOrder(t, stdout, "Verified demo is linked to "+dir, "Done!")
	})

	t.Run("linked elsewhere", func(t *testing.T) {
		fake := pkgmgrtest.New(t, pkgmgrtest.Options{Show: pkgmgrtest.ShowOutput("demo", "0.1.0", "/elsewhere")})
		stdout, _, err := executeCommand(t, "-C", dir, "--manager", fake.Path, "--color", "never", "--verify")
		require.Error(t, err)
		assert.Equal(t, model.ExitVerifyFailed, exitCode(t, err))
		assert.Contains(t, stdout, "Verification failed")
	})
}

// TestRoot_JSON verifies stdout holds only the report in --json mode.
func TestRoot_JSON(t *testing.T) {
	clearEnv(t)
	dir := newProject(t)
	fake := pkgmgrtest.New(t, pkgmgrtest.Options{UninstallExit: 1})

	stdout, stderr, err := executeCommand(t, "-C", dir, "--manager", fake.Path, "--color", "never", "--json")
	require.NoError(t, err)

	var report reportJSON
	require.NoError(t, json.Unmarshal([]byte(stdout), &report), "stdout: %s", stdout)

	assert.NotEmpty(t, report.RunID)
	assert.Equal(t, "demo", report.Package)
	assert.Equal(t, dir, report.ProjectDir)
	assert.Equal(t, "continue", report.Policy)
	assert.True(t, report.Completed)
	assert.Equal(t, 0, report.ExitCode)
	require.Len(t, report.Steps, 2)
	assert.Equal(t, "uninstall", report.Steps[0].Kind)
	assert.Equal(t, 1, report.Steps[0].ExitCode)
	assert.Equal(t, fake.Path+" install -e .", report.Steps[1].Command)
	assert.Nil(t, report.Verification)

	assertInOrder(t, stderr, "Uninstalling demo...", "Installing demo in editable mode...", "Done!")
}

// TestRoot_JSONStepFields verifies steps carry a millisecond duration and
// a display command, not the raw argv or a nanosecond duration.
func TestRoot_JSONStepFields(t *testing.T) {
	clearEnv(t)
	dir := newProject(t)
	fake := pkgmgrtest.New(t, pkgmgrtest.Options{})

	stdout, _, err := executeCommand(t, "-C", dir, "--manager", fake.Path, "--json")
	require.NoError(t, err)

	var raw map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(stdout), &raw))

	steps, ok := raw["steps"].([]interface{})
	require.True(t, ok)
	require.Len(t, steps, 2)

	step, ok := steps[0].(map[string]interface{})
	require.True(t, ok)
	assert.Contains(t, step, "durationMs")
	assert.Contains(t, step, "command")
	assert.NotContains(t, step, "duration")
	assert.NotContains(t, step, "argv")
	assert.NotContains(t, raw, "Steps")
}

// TestRoot_ConfigFile verifies settings are read from the project's
// config file and that flags override them.
func TestRoot_ConfigFile(t *testing.T) {
	clearEnv(t)
	dir := newProject(t)
	fake := pkgmgrtest.New(t, pkgmgrtest.Options{UninstallExit: 1})

	require.NoError(t, os.WriteFile(filepath.Join(dir, ".reinstall.yaml"), []byte(
		"package: from-config\nfail_fast: true\ncolor: never\nmanager:\n  command: "+fake.Path+"\n"), 0o644))

	stdout, _, err := executeCommand(t, "-C", dir)
	require.Error(t, err)
	assert.Contains(t, stdout, "Uninstalling from-config...")
	assert.Len(t, fake.Calls(t), 1, "fail_fast from config")

	stdout, _, err = executeCommand(t, "-C", dir, "--fail-fast=false", "-p", "demo")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Uninstalling demo...")
}

func TestRoot_EnvManager(t *testing.T) {
	clearEnv(t)
	dir := newProject(t)
	fake := pkgmgrtest.New(t, pkgmgrtest.Options{})
	t.Setenv("REINSTALL_MANAGER_COMMAND", fake.Path)
	t.Setenv("REINSTALL_MANAGER_INSTALL_ARGS", "--no-deps")
	t.Setenv("REINSTALL_COLOR", "never")

	_, _, err := executeCommand(t, "-C", dir)
	require.NoError(t, err)

	calls := fake.Calls(t)
	require.Len(t, calls, 2)
	assert.Equal(t, []string{"install", "-e", ".", "--no-deps"}, calls[1].Args)
}

func TestRoot_UsageErrors(t *testing.T) {
	clearEnv(t)
	fake := pkgmgrtest.New(t, pkgmgrtest.Options{})

	tests := []struct {
		name string
		args []string
	}{
		{name: "no project definition", args: []string{"-C", t.TempDir(), "--manager", fake.Path}},
		{name: "positional argument", args: []string{"demo"}},
		{name: "unknown flag", args: []string{"--bogus"}},
		{name: "invalid color", args: []string{"-C", newProject(t), "--color", "sometimes"}},
		{name: "invalid package", args: []string{"-C", newProject(t), "-p", "not valid"}},
		{name: "empty manager", args: []string{"-C", newProject(t), "--manager", ""}},
		{name: "missing config file", args: []string{"--config", filepath.Join(t.TempDir(), "nope.yaml")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := executeCommand(t, tt.args...)
			require.Error(t, err)
			assert.Equal(t, model.ExitUsageError, exitCode(t, err))
		})
	}
	assert.Empty(t, fake.Calls(t))
}

func TestRoot_CommandNotFound(t *testing.T) {
	clearEnv(t)
	dir := newProject(t)
	missing := filepath.Join(t.TempDir(), "pip")

	stdout, _, err := executeCommand(t, "-C", dir, "--manager", missing, "--color", "never")
	require.Error(t, err)
	assert.Equal(t, model.ExitCommandNotFound, exitCode(t, err))
	assert.Contains(t, stdout, "Done!")
}

func TestHandleError(t *testing.T) {
	NewRootCommand()

	tests := []struct {
		name     string
		err      error
		wantCode int
		wantOut  string
	}{
		{
			name:     "silent child failure",
			err:      model.NewExitError(5, errors.New("exit status 5")),
			wantCode: 5,
			wantOut:  "",
		},
		{
			name:     "usage error",
			err:      model.WrapCLIError(model.ExitUsageError, "invalid flags", errors.New("bad")),
			wantCode: 2,
			wantOut:  "Error: invalid flags: bad\n",
		},
		{
			name:     "plain error",
			err:      errors.New("boom"),
			wantCode: 1,
			wantOut:  "Error: boom\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			assert.Equal(t, tt.wantCode, handleError(&buf, tt.err))
			assert.Equal(t, tt.wantOut, buf.String())
		})
	}
}

func TestHandleError_JSON(t *testing.T) {
	NewRootCommand()
	jsonOutput = true
	t.Cleanup(func() { jsonOutput = false })

	var buf bytes.Buffer
	code := handleError(&buf, model.WrapCLIError(model.ExitUsageError, "invalid flags", errors.New("bad")))
	assert.Equal(t, 2, code)

	var out map[string]map[string]string
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
	assert.Equal(t, "invalid flags", out["error"]["message"])
	assert.Equal(t, "bad", out["error"]["detail"])
}

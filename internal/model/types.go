// Package model defines the domain types for the reinstall CLI.
//
// These types are shared between the package-manager adapter, the
// reinstall sequence, and the CLI output layer.
package model

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// StepKind identifies one of the two steps of the reinstall workflow.
// The steps always run in the same order:
//
//	uninstall → install (editable)
type StepKind string

const (
	// StepUninstall removes the installed package without prompting.
	StepUninstall StepKind = "uninstall"

	// StepInstall installs the project directory in editable mode.
	StepInstall StepKind = "install"
)

// String returns the string representation of StepKind.
func (k StepKind) String() string {
	return string(k)
}

// IsValid checks whether the StepKind value is one of the predefined steps.
func (k StepKind) IsValid() bool {
	switch k {
	case StepUninstall, StepInstall:
		return true
	default:
		return false
	}
}

// Title returns the step name with its first letter capitalized, for use
// at the start of a status line ("Uninstall failed (exit 1)").
func (k StepKind) Title() string {
	s := string(k)
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// FailurePolicy decides what happens after a step exits non-zero.
//
// PolicyContinue mirrors a plain shell script: every step runs and the
// final status is the status of the last command. PolicyFailFast mirrors
// `set -e`: the sequence halts at the first failing step.
type FailurePolicy string

const (
	// PolicyContinue runs both steps unconditionally.
	PolicyContinue FailurePolicy = "continue"

	// PolicyFailFast halts the sequence after the first failing step.
	PolicyFailFast FailurePolicy = "fail-fast"
)

// String returns the string representation of FailurePolicy.
func (p FailurePolicy) String() string {
	return string(p)
}

// IsValid checks whether the FailurePolicy value is one of the
// predefined policies.
func (p FailurePolicy) IsValid() bool {
	return p == PolicyContinue || p == PolicyFailFast
}

// ParseFailurePolicy converts a string to a FailurePolicy.
// Returns an error if the string does not match any valid policy.
func ParseFailurePolicy(s string) (FailurePolicy, error) {
	policy := FailurePolicy(strings.ToLower(s))
	if !policy.IsValid() {
		return "", fmt.Errorf("invalid failure policy: %q (valid: continue, fail-fast)", s)
	}
	return policy, nil
}

// ColorMode controls whether status lines are colorized.
type ColorMode string

const (
	// ColorAuto colorizes only when writing to a terminal and NO_COLOR is unset.
	ColorAuto ColorMode = "auto"

	// ColorAlways forces ANSI colors, even when output is redirected.
	ColorAlways ColorMode = "always"

	// ColorNever disables colors entirely.
	ColorNever ColorMode = "never"
)

// String returns the string representation of ColorMode.
func (m ColorMode) String() string {
	return string(m)
}

// IsValid checks whether the ColorMode value is one of the predefined modes.
func (m ColorMode) IsValid() bool {
	switch m {
	case ColorAuto, ColorAlways, ColorNever:
		return true
	default:
		return false
	}
}

// ParseColorMode converts a string to a ColorMode. An empty string
// yields ColorAuto.
func ParseColorMode(s string) (ColorMode, error) {
	if s == "" {
		return ColorAuto, nil
	}
	mode := ColorMode(strings.ToLower(s))
	if !mode.IsValid() {
		return "", fmt.Errorf("invalid color mode: %q (valid: auto, always, never)", s)
	}
	return mode, nil
}

// ManagerFlavor selects the command-line dialect of the package manager.
//
//   - FlavorPip: `pip uninstall -y <pkg>` / `pip install -e .`
//   - FlavorUV:  `uv pip uninstall <pkg>` / `uv pip install -e .`
type ManagerFlavor string

const (
	// FlavorPip is pip, or anything that speaks pip's CLI (e.g. `python -m pip`).
	FlavorPip ManagerFlavor = "pip"

	// FlavorUV is astral's uv, which nests pip commands under `uv pip`
	// and never prompts on uninstall.
	FlavorUV ManagerFlavor = "uv"
)

// String returns the string representation of ManagerFlavor.
func (f ManagerFlavor) String() string {
	return string(f)
}

// IsValid checks whether the ManagerFlavor value is one of the
// predefined flavors.
func (f ManagerFlavor) IsValid() bool {
	return f == FlavorPip || f == FlavorUV
}

// ParseManagerFlavor converts a string to a ManagerFlavor.
// Returns an error if the string does not match any valid flavor.
func ParseManagerFlavor(s string) (ManagerFlavor, error) {
	flavor := ManagerFlavor(strings.ToLower(s))
	if !flavor.IsValid() {
		return "", fmt.Errorf("invalid package manager flavor: %q (valid: pip, uv)", s)
	}
	return flavor, nil
}

// packageNameRegex matches a distribution name: ASCII letters, digits,
// ".", "_" and "-", starting and ending with a letter or digit.
var packageNameRegex = regexp.MustCompile(`^[A-Za-z0-9]([A-Za-z0-9._-]*[A-Za-z0-9])?$`)

// separatorRun collapses runs of name separators during normalization.
var separatorRun = regexp.MustCompile(`[-_.]+`)

// ValidatePackageName checks that name is a non-empty, well-formed
// distribution name.
func ValidatePackageName(name string) error {
	if name == "" {
		return fmt.Errorf("package name must not be empty")
	}
	if !packageNameRegex.MatchString(name) {
		return fmt.Errorf("invalid package name %q: must contain only letters, digits, '.', '_' and '-', and start/end with a letter or digit", name)
	}
	return nil
}

// NormalizePackageName returns the canonical comparison form of a
// distribution name: lowercased, with every run of "-", "_" and "."
// replaced by a single "-". "My_Package" and "my.package" normalize
// to the same value.
func NormalizePackageName(name string) string {
	return separatorRun.ReplaceAllString(strings.ToLower(name), "-")
}

// StepResult records the outcome of one package-manager invocation.
type StepResult struct {
	// Kind is the step that was executed.
	Kind StepKind

	// Argv is the full command line that was run (or would have been run
	// in dry-run mode).
	Argv []string

	// ExitCode is the child's exit status. 127 means the package manager
	// binary could not be found, 126 that it could not be executed.
	ExitCode int

	// Duration is the wall-clock time the child took.
	Duration time.Duration

	// Error holds a short description of the failure, if any.
	Error string
}

// Succeeded reports whether the step exited with status 0.
func (r StepResult) Succeeded() bool {
	return r.ExitCode == 0
}

// Command returns the argv joined with spaces, for display.
func (r StepResult) Command() string {
	return strings.Join(r.Argv, " ")
}

// Report is the outcome of a whole reinstall run. The CLI renders it as
// JSON when --json is set.
type Report struct {
	// Package is the distribution name that was reinstalled.
	Package string

	// ProjectDir is the absolute path of the editable install source.
	ProjectDir string

	// Policy is the failure policy the run used.
	Policy FailurePolicy

	// Steps lists the steps that actually ran, in order.
	Steps []StepResult

	// Completed is true when the sequence reached the final "done" line.
	Completed bool

	// ExitCode is the process exit status the run resolves to.
	ExitCode int

	// Verification is populated when --verify was requested and the
	// install step succeeded.
	Verification *Verification
}

// LastStep returns the most recent step, or nil if nothing ran.
func (r *Report) LastStep() *StepResult {
	if len(r.Steps) == 0 {
		return nil
	}
	return &r.Steps[len(r.Steps)-1]
}

// Verification records the post-install registry check.
type Verification struct {
	// Info is what the package manager reported for the package.
	Info PackageInfo

	// Linked is true when the editable location resolves to the project dir.
	Linked bool
}

// PackageInfo holds the package manager's view of an installed package,
// as parsed from `pip show` output.
type PackageInfo struct {
	// Name is the distribution name as reported by the package manager.
	Name string

	// Version is the installed version string.
	Version string

	// Location is the site-packages directory the package is installed into.
	Location string

	// EditableLocation is the source directory of an editable install.
	// Empty for regular installs.
	EditableLocation string
}

// IsEditable reports whether the package is installed in editable mode.
func (p PackageInfo) IsEditable() bool {
	return p.EditableLocation != ""
}

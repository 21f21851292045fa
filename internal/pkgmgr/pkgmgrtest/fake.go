// Package pkgmgrtest provides a scriptable fake package manager for tests.
//
// The fake is a real POSIX shell script written to a temporary directory,
// so code under test exercises the genuine os/exec path: argv handling,
// working directory, output streaming and exit codes.
package pkgmgrtest

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// Options configures the behavior of a fake package manager.
type Options struct {
	// Name is the file name of the script. Defaults to "pip". Use "uv" to
	// exercise flavor detection; the script strips a leading "pip" argument.
	Name string

	// UninstallExit and InstallExit are the exit statuses of the two steps.
	UninstallExit int
	InstallExit   int

	// Show is printed verbatim by `show`. When empty, `show` behaves like
	// pip for an unknown package: a warning on stderr and exit 1.
	Show string
}

// Call is one recorded invocation of the fake.
type Call struct {
	// Dir is the working directory the fake was started in.
	Dir string

	// Args are the arguments after the binary name.
	Args []string
}

// Fake is a fake package manager installed in a temporary directory.
type Fake struct {
	// Path is the absolute path of the executable script.
	Path string

	logPath string
}

// New writes a fake package manager script and returns it. The script
// and its call log are removed when the test ends.
func New(t testing.TB, opts Options) *Fake {
	t.Helper()

	if opts.Name == "" {
		opts.Name = "pip"
	}

	dir := t.TempDir()
	f := &Fake{
		Path:    filepath.Join(dir, opts.Name),
		logPath: filepath.Join(dir, "calls.log"),
	}

	script := fmt.Sprintf(`#!/bin/sh
printf '%%s|%%s\n' "$(pwd -P)" "$*" >> '%s'
if [ "$1" = "pip" ]; then shift; fi
case "$1" in
uninstall)
  echo "uninstall $*"
  exit %d
  ;;
install)
  echo "install $*"
  exit %d
  ;;
show)
%s
  ;;
esac
exit 0
`, f.logPath, opts.UninstallExit, opts.InstallExit, showBranch(opts.Show))

	if err := os.WriteFile(f.Path, []byte(script), 0o755); err != nil {
		t.Fatalf("write fake package manager: %v", err)
	}
	return f
}

func showBranch(show string) string {
	if show == "" {
		return `  echo "WARNING: Package(s) not found: $2" >&2
  exit 1`
	}
	return "  cat <<'FAKE_SHOW_EOF'\n" + show + "\nFAKE_SHOW_EOF\n  exit 0"
}

// Calls returns every invocation recorded so far, in order.
func (f *Fake) Calls(t testing.TB) []Call {
	t.Helper()

	data, err := os.ReadFile(f.logPath)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		t.Fatalf("read fake package manager log: %v", err)
	}

	var calls []Call
	for _, line := range strings.Split(strings.TrimRight(string(data), "\n"), "\n") {
		if line == "" {
			continue
		}
		dir, args, _ := strings.Cut(line, "|")
		calls = append(calls, Call{Dir: dir, Args: strings.Fields(args)})
	}
	return calls
}

// ShowOutput renders pip-show style metadata for a single package.
// editable may be empty for a regular install.
func ShowOutput(name, version, editable string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Name: %s\n", name)
	fmt.Fprintf(&b, "Version: %s\n", version)
	b.WriteString("Summary: test package\n")
	b.WriteString("Location: /venv/lib/python3.12/site-packages\n")
	if editable != "" {
		fmt.Fprintf(&b, "Editable project location: %s\n", editable)
	}
	b.WriteString("Requires: \nRequired-by: ")
	return b.String()
}

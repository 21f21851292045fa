package pkgmgr

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"go.uber.org/zap"

	"github.com/shinji-kodama/reinstall/internal/model"
)

// ErrNotInstalled is returned by Show when the package manager does not
// know the requested package.
var ErrNotInstalled = errors.New("package is not installed")

// Show queries the package manager for name and returns its metadata.
//
// It runs `pip show <name>` (or `uv pip show <name>`), captures stdout,
// and parses the "Key: Value" lines. Unlike Uninstall/InstallEditable,
// the output is not streamed to the user. Show is also not affected by
// DryRun, since it does not modify anything.
func (m *Manager) Show(ctx context.Context, name string) (*model.PackageInfo, error) {
	argv := m.ShowArgs(name)

	m.logger().Debug("querying package manager", zap.Strings("argv", argv))

	// #nosec G204 -- argv is the configured package manager plus fixed subcommands
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)

	var stdout, stderr strings.Builder
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		cliErr := classifyError(ctx, argv[0], err)

		// pip show exits 1 with only a warning on stderr for unknown packages.
		if cliErr.Code == model.ExitGeneralError && strings.TrimSpace(stdout.String()) == "" {
			return nil, fmt.Errorf("%s: %w", name, ErrNotInstalled)
		}

		if !cliErr.Silent() {
			return nil, cliErr
		}
		message := fmt.Sprintf("%s failed", strings.Join(argv, " "))
		if stderrStr := strings.TrimSpace(stderr.String()); stderrStr != "" {
			message = fmt.Sprintf("%s: %s", message, stderrStr)
		}
		return nil, model.WrapCLIError(cliErr.Code, message, err)
	}

	for _, info := range parseShowOutput(stdout.String()) {
		if model.NormalizePackageName(info.Name) == model.NormalizePackageName(name) {
			return &info, nil
		}
	}
	return nil, fmt.Errorf("%s: %w", name, ErrNotInstalled)
}

// parseShowOutput parses the output of `pip show` into PackageInfo values.
//
// pip prints one block per package, separated by a "---" line:
//
//	Name: demo
//	Version: 0.1.0
//	Location: /venv/lib/python3.12/site-packages
//	Editable project location: /home/me/demo
//	---
//	Name: other
//	...
//
// Keys that are not needed (Summary, Requires, ...) are ignored. Key
// matching is case-insensitive because pip and uv differ in capitalization.
func parseShowOutput(output string) []model.PackageInfo {
	var infos []model.PackageInfo

	var current *model.PackageInfo
	flush := func() {
		if current != nil && current.Name != "" {
			infos = append(infos, *current)
		}
		current = nil
	}

	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "---" {
			flush()
			continue
		}

		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		value = strings.TrimSpace(value)

		switch strings.ToLower(strings.TrimSpace(key)) {
		case "name":
			flush()
			current = &model.PackageInfo{Name: value}
		case "version":
			if current != nil {
				current.Version = value
			}
		case "location":
			if current != nil {
				current.Location = value
			}
		case "editable project location":
			if current != nil {
				current.EditableLocation = value
			}
		}
	}
	flush()

	return infos
}

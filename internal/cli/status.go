package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/shinji-kodama/reinstall/internal/model"
	"github.com/shinji-kodama/reinstall/internal/pkgmgr"
	"github.com/shinji-kodama/reinstall/internal/reinstall"
)

// NewStatusCommand creates the "status" command.
func NewStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status [package]",
		Short: "Show how a package is installed",
		Long: `Show the installed version of a package and whether it is an editable
install linked to the project directory.

Without an argument the package name is read from the project definition.

Examples:
  reinstall status
  reinstall status demo --json`,

		Args: usageArgs(cobra.MaximumNArgs(1)),

		RunE: func(cmd *cobra.Command, args []string) error {
			var pkg string
			if len(args) == 1 {
				pkg = args[0]
			}
			return runStatus(cmd, pkg)
		},
	}
}

// statusJSON is the --json output of the status command.
type statusJSON struct {
	Name             string `json:"name"`
	Version          string `json:"version"`
	Location         string `json:"location"`
	Editable         bool   `json:"editable"`
	EditableLocation string `json:"editableLocation,omitempty"`
	ProjectDir       string `json:"projectDir"`
	Linked           bool   `json:"linked"`
}

func runStatus(cmd *cobra.Command, pkg string) error {
	cfg, _, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	logger, _, err := newLogger(cmd, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	if pkg == "" {
		pkg = cfg.Package
	}
	pkg, err = resolvePackage(pkg, cfg.Dir, logger)
	if err != nil {
		return err
	}
	if err := model.ValidatePackageName(pkg); err != nil {
		return model.WrapCLIError(model.ExitUsageError, "invalid package", err)
	}

	dir, err := filepath.Abs(cfg.Dir)
	if err != nil {
		return model.WrapCLIError(model.ExitUsageError,
			fmt.Sprintf("failed to resolve project directory %s", cfg.Dir), err)
	}

	m := newManager(cfg, cmd.OutOrStdout(), cmd.ErrOrStderr(), logger)
	info, err := m.Show(cmd.Context(), pkg)
	if errors.Is(err, pkgmgr.ErrNotInstalled) {
		return model.NewCLIError(model.ExitGeneralError, fmt.Sprintf("%s is not installed", pkg))
	}
	if err != nil {
		return err
	}

	result := statusJSON{
		Name:             info.Name,
		Version:          info.Version,
		Location:         info.Location,
		Editable:         info.IsEditable(),
		EditableLocation: info.EditableLocation,
		ProjectDir:       dir,
		Linked:           reinstall.IsLinked(*info, dir),
	}

	if IsJSONOutput() {
		data, _ := json.MarshalIndent(result, "", "  ")
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return nil
	}
	printStatusText(cmd.OutOrStdout(), result)
	return nil
}

// printStatusText outputs the status as aligned key/value lines:
//
//	Name:      demo
//	Version:   0.1.0
//	Editable:  yes (/src/demo)
//	Linked:    yes
func printStatusText(w io.Writer, s statusJSON) {
	editable := "no"
	if s.Editable {
		editable = fmt.Sprintf("yes (%s)", s.EditableLocation)
	}
	linked := "no"
	if s.Linked {
		linked = "yes"
	}

	fmt.Fprintf(w, "%-10s %s\n", "Name:", s.Name)
	fmt.Fprintf(w, "%-10s %s\n", "Version:", s.Version)
	fmt.Fprintf(w, "%-10s %s\n", "Location:", s.Location)
	fmt.Fprintf(w, "%-10s %s\n", "Editable:", editable)
	fmt.Fprintf(w, "%-10s %s\n", "Linked:", linked)
}

// Package project inspects the editable install source directory.
//
// It answers two questions for the reinstall CLI:
//   - Does the directory contain a project definition the package manager
//     can install (pyproject.toml, setup.py, setup.cfg)?
//   - What is the project's distribution name, so the package to uninstall
//     can default to it?
//
// pyproject.toml is decoded with github.com/BurntSushi/toml and setup.cfg
// with gopkg.in/ini.v1 in configparser-compatible mode.
package project

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/ini.v1"
)

// maxDefinitionSize caps how much of a project file is read.
const maxDefinitionSize = 1024 * 1024 // 1MB

// ErrNoDefinition is returned by Locate when the directory has no
// installable project definition.
var ErrNoDefinition = errors.New("no project definition found")

// ErrNoName is returned by Name when the definition does not declare a
// distribution name (for example a bare setup.py).
var ErrNoName = errors.New("project definition does not declare a name")

// Kind identifies the file that makes a directory installable.
type Kind string

const (
	// KindPyproject is a PEP 517/621 pyproject.toml.
	KindPyproject Kind = "pyproject.toml"

	// KindSetupPy is a setuptools setup.py script.
	KindSetupPy Kind = "setup.py"

	// KindSetupCfg is a declarative setuptools setup.cfg.
	KindSetupCfg Kind = "setup.cfg"
)

// searchOrder lists definition files in priority order.
var searchOrder = []Kind{KindPyproject, KindSetupPy, KindSetupCfg}

// Definition describes the project definition found in a directory.
type Definition struct {
	// Dir is the absolute path of the project directory.
	Dir string

	// Kind is the type of definition file.
	Kind Kind

	// Path is the absolute path of the definition file.
	Path string
}

// Locate looks for a project definition in dir. Candidates are checked in
// priority order: pyproject.toml, setup.py, setup.cfg.
func Locate(dir string) (*Definition, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve project directory %s: %w", dir, err)
	}

	for _, kind := range searchOrder {
		path := filepath.Join(absDir, string(kind))
		info, err := os.Stat(path)
		if err == nil && !info.IsDir() {
			return &Definition{Dir: absDir, Kind: kind, Path: path}, nil
		}
	}

	return nil, fmt.Errorf("%w in %s (searched pyproject.toml, setup.py, setup.cfg)", ErrNoDefinition, absDir)
}

// pyproject holds the subset of pyproject.toml that carries a name.
type pyproject struct {
	Project struct {
		Name string `toml:"name"`
	} `toml:"project"`

	Tool struct {
		Poetry struct {
			Name string `toml:"name"`
		} `toml:"poetry"`
	} `toml:"tool"`
}

// Name returns the distribution name declared by the definition.
//
// For pyproject.toml, [project].name is preferred and [tool.poetry].name
// is the fallback. For setup.cfg, [metadata] name is used. A setup.py
// cannot be evaluated safely, so it always yields ErrNoName. When a
// pyproject.toml has no name but a setup.cfg sits next to it, the
// setup.cfg name is used.
func (d *Definition) Name() (string, error) {
	switch d.Kind {
	case KindPyproject:
		name, err := pyprojectName(d.Path)
		if err != nil {
			return "", err
		}
		if name != "" {
			return name, nil
		}
		return siblingSetupCfgName(d.Dir)
	case KindSetupCfg:
		return setupCfgName(d.Path)
	default:
		return siblingSetupCfgName(d.Dir)
	}
}

func pyprojectName(path string) (string, error) {
	data, err := readLimited(path)
	if err != nil {
		return "", err
	}

	var doc pyproject
	if _, err := toml.Decode(string(data), &doc); err != nil {
		return "", fmt.Errorf("failed to parse %s: %w", path, err)
	}

	if name := strings.TrimSpace(doc.Project.Name); name != "" {
		return name, nil
	}
	return strings.TrimSpace(doc.Tool.Poetry.Name), nil
}

func siblingSetupCfgName(dir string) (string, error) {
	path := filepath.Join(dir, string(KindSetupCfg))
	if _, err := os.Stat(path); err != nil {
		return "", ErrNoName
	}
	return setupCfgName(path)
}

// setupCfgName reads `name` under [metadata] from a setup.cfg.
//
// Names are case-insensitive and indented continuation lines are joined as
// Python's configparser does, so `name =` followed by an indented value is
// accepted.
func setupCfgName(path string) (string, error) {
	data, err := readLimited(path)
	if err != nil {
		return "", err
	}

	cfg, err := ini.LoadSources(ini.LoadOptions{
		Insensitive:                true,
		AllowPythonMultilineValues: true,
		SkipUnrecognizableLines:    true,
	}, data)
	if err != nil {
		return "", fmt.Errorf("failed to parse %s: %w", path, err)
	}

	section, err := cfg.GetSection("metadata")
	if err != nil {
		return "", ErrNoName
	}

	// A continuation value starts with a newline; the name is its first
	// non-blank line.
	for _, line := range strings.Split(section.Key("name").String(), "\n") {
		if name := strings.TrimSpace(line); name != "" {
			return name, nil
		}
	}
	return "", ErrNoName
}

func readLimited(path string) ([]byte, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if info.Size() > maxDefinitionSize {
		return nil, fmt.Errorf("%s is too large (%d bytes, max %d)", path, info.Size(), maxDefinitionSize)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return data, nil
}

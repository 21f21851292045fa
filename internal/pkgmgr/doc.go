// Package pkgmgr drives the external package manager for the reinstall CLI.
//
// All operations shell out to the package manager binary (pip, `python -m
// pip`, or uv) via os/exec. The child's stdout and stderr are streamed
// through untouched, so failures look exactly as they would in a terminal;
// only the exit status is interpreted.
//
// The Manager knows two dialects (model.ManagerFlavor):
//   - pip: `pip uninstall -y <pkg>`, `pip install -e .`
//   - uv:  `uv pip uninstall <pkg>`, `uv pip install -e .`
package pkgmgr

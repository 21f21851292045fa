// Package model defines the domain types and value objects for the
// reinstall CLI.
//
// This package contains pure data structures with no external dependencies.
// Nothing here is persisted: a Report lives only for the duration of a
// single run, and PackageInfo is re-read from the package manager each
// time it is needed.
//
// The package also defines exit codes (ExitCode) and a custom error type
// (CLIError) that carries exit codes for proper OS process exit handling.
package model

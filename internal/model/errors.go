package model

import "fmt"

// ExitCode defines the CLI exit codes. Child package-manager exit codes
// are passed through unchanged, so these are only the codes the tool
// produces on its own.
type ExitCode int

const (
	// ExitSuccess indicates the command completed successfully.
	ExitSuccess ExitCode = 0

	// ExitGeneralError indicates an unspecified error occurred.
	ExitGeneralError ExitCode = 1

	// ExitUsageError indicates invalid flags, configuration, or a package
	// name that could not be determined.
	ExitUsageError ExitCode = 2

	// ExitVerifyFailed indicates --verify found the package missing or not
	// linked to the project directory.
	ExitVerifyFailed ExitCode = 3

	// ExitNotExecutable matches the shell's status for a command that was
	// found but could not be run.
	ExitNotExecutable ExitCode = 126

	// ExitCommandNotFound matches the shell's status for an unknown command.
	ExitCommandNotFound ExitCode = 127

	// ExitInterrupted is 128+SIGINT, the status a shell reports when the
	// user presses Ctrl-C.
	ExitInterrupted ExitCode = 130
)

// CLIError is a custom error type that carries an exit code.
// This allows the CLI layer to translate domain errors into
// appropriate process exit codes.
//
// A CLIError with an empty Message is a silent exit: the underlying
// tool has already printed its own diagnostics, and only the status
// should propagate.
type CLIError struct {
	// Code is the exit code to return to the OS.
	Code ExitCode

	// Message is the human-readable error description.
	Message string

	// Err is the underlying error, if any.
	Err error
}

// Error satisfies the error interface. It returns the human-readable
// error message, optionally including the underlying error.
func (e *CLIError) Error() string {
	switch {
	case e.Message == "" && e.Err != nil:
		return e.Err.Error()
	case e.Message == "":
		return fmt.Sprintf("exit status %d", e.Code)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	default:
		return e.Message
	}
}

// Unwrap returns the underlying error for use with errors.Is/errors.As.
func (e *CLIError) Unwrap() error {
	return e.Err
}

// Silent reports whether the error should be reported through the exit
// code only.
func (e *CLIError) Silent() bool {
	return e.Message == ""
}

// NewCLIError creates a new CLIError with the given exit code and message.
func NewCLIError(code ExitCode, message string) *CLIError {
	return &CLIError{Code: code, Message: message}
}

// WrapCLIError creates a new CLIError that wraps an existing error.
func WrapCLIError(code ExitCode, message string, err error) *CLIError {
	return &CLIError{Code: code, Message: message, Err: err}
}

// NewExitError creates a silent CLIError that only carries an exit status.
func NewExitError(code ExitCode, err error) *CLIError {
	return &CLIError{Code: code, Err: err}
}

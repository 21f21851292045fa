// Package reinstall implements the uninstall-then-editable-install workflow.
//
// The sequence is fixed and strictly linear:
//
//	Announce → Uninstall → Announce → Install(editable) → Announce(done)
//
// The Reinstaller does not interpret package-manager failures beyond their
// exit status. Under model.PolicyContinue both steps always run and the
// run's status is that of the last command, as in a plain shell script.
// Under model.PolicyFailFast the first failing step ends the run, as with
// `set -e`. There are no retries and no rollback.
package reinstall

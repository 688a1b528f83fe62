package cmd

import (
	"errors"

	"lulu_studio/core"
)

// exitError carries the process exit code and an optional hint printed
// under the error.
type exitError struct {
	code int
	err  error
	hint string
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func withExitCode(code int, err error) error {
	return &exitError{code: code, err: err}
}

func withHint(code int, err error, hint string) error {
	return &exitError{code: code, err: err, hint: hint}
}

// exitCode maps an error to the process exit code. Configuration errors
// exit with ExitCodeConfig even when they were not explicitly tagged.
func exitCode(err error) int {
	if err == nil {
		return core.ExitCodeSuccess
	}
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	if _, ok := core.IsConfigError(err); ok {
		return core.ExitCodeConfig
	}
	return core.ExitCodeError
}

func errorHint(err error) string {
	var ee *exitError
	if errors.As(err, &ee) && ee.hint != "" {
		return ee.hint
	}
	return ""
}

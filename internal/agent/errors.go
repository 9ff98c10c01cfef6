package agent

import "errors"

// RoleError classifies a role failure. Fatal errors skip the fallback hook and
// propagate straight to the orchestrator; everything else is eligible for one
// bounded recovery attempt.
type RoleError struct {
	Err   error
	Fatal bool
}

func (e *RoleError) Error() string {
	return e.Err.Error()
}

func (e *RoleError) Unwrap() error {
	return e.Err
}

// NewFatalError marks a failure that no fallback can repair: a violated
// precondition, a malformed handoff, or an exhausted ceiling.
func NewFatalError(err error) *RoleError {
	return &RoleError{Err: err, Fatal: true}
}

// NewRecoverableError marks a failure the role's fallback strategy may repair.
func NewRecoverableError(err error) *RoleError {
	return &RoleError{Err: err, Fatal: false}
}

// IsFatal reports whether err carries a fatal classification.
func IsFatal(err error) bool {
	var re *RoleError
	return errors.As(err, &re) && re.Fatal
}

package validatormanager

import "errors"

// These sentinels name the error taxonomy the manager distinguishes,
// not exact failure strings: callers use errors.Is against them.
var (
	// ErrConfigAbsent: a required config param (consensus config) is
	// missing. Fatal to the current update_shards call; the loop logs
	// and retries on the next block.
	ErrConfigAbsent = errors.New("validatormanager: required config parameter is absent")
	// ErrStateUnreachable: engine I/O failure loading state or a block
	// handle. Fatal to the current iteration only.
	ErrStateUnreachable = errors.New("validatormanager: masterchain state unreachable")
	// ErrSessionStartRefused: a group already past Stopping cannot
	// restart under the same session id.
	ErrSessionStartRefused = errors.New("validatormanager: session start refused, group already stopping")
	// ErrNotInValidatorList is a status, not a failure: it drives the
	// transition to Disabled.
	ErrNotInValidatorList = errors.New("validatormanager: node is not a member of any known validator list")
	// ErrFatalManager: an unexpected error that should bubble to the
	// top-level task and terminate the loop.
	ErrFatalManager = errors.New("validatormanager: fatal manager error")
)

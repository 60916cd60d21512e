package validatorgroup

import "errors"

var (
	// ErrAlreadyStarted is returned by Start on a group that is not in
	// the Created status.
	ErrAlreadyStarted = errors.New("validatorgroup: group already started")
	// ErrInvalidInitialStatus is returned when Start is asked to enter
	// any status other than Countdown or Active.
	ErrInvalidInitialStatus = errors.New("validatorgroup: invalid initial status, must be countdown or active")
)

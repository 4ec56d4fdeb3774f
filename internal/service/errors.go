package service

import (
	"errors"
	"fmt"
)

var (
	// ErrConfig is the root of all rate configuration errors.
	ErrConfig = errors.New("rate configuration error")

	// ErrPrecondition is the root of all errors caused by calling an
	// operation in a state that forbids it.
	ErrPrecondition = errors.New("precondition failed")
)

var (
	// ErrCustomRateNotSet is returned when the custom profile is selected but none was supplied.
	ErrCustomRateNotSet = fmt.Errorf("%w: custom rate profile not set", ErrConfig)

	// ErrUnknownCity is returned when a built-in city key is not in the catalog.
	ErrUnknownCity = fmt.Errorf("%w: unknown city", ErrConfig)

	// ErrInvalidRate is returned when a rate profile violates its invariants.
	ErrInvalidRate = fmt.Errorf("%w: invalid rate profile", ErrConfig)
)

var (
	// ErrMeterRunning is returned when starting a meter that is already running.
	ErrMeterRunning = fmt.Errorf("%w: meter already running", ErrPrecondition)

	// ErrMeterNotRunning is returned when stopping a meter that is not running.
	ErrMeterNotRunning = fmt.Errorf("%w: meter not running", ErrPrecondition)

	// ErrTripNotStopped is returned when leaving the meter screen before the trip is stopped.
	ErrTripNotStopped = fmt.Errorf("%w: trip not stopped", ErrPrecondition)

	// ErrWrongStage is returned when a billing step is invoked out of order.
	ErrWrongStage = fmt.Errorf("%w: operation not allowed in current stage", ErrPrecondition)

	// ErrCustomTipNotSelected is returned when submitting a custom tip without choosing the custom option.
	ErrCustomTipNotSelected = fmt.Errorf("%w: custom tip not selected", ErrPrecondition)
)

var (
	// ErrInvalidTipChoice is returned for a tip percentage that is not offered.
	ErrInvalidTipChoice = errors.New("invalid tip choice")

	// ErrInvalidMeterID is returned when meter ID is empty.
	ErrInvalidMeterID = errors.New("invalid meter id")

	// ErrInvalidSessionID is returned when session ID is empty.
	ErrInvalidSessionID = errors.New("invalid session id")

	// ErrSessionNotFound is returned when no live session has the given ID.
	ErrSessionNotFound = errors.New("session not found")

	// ErrSessionClosed is returned when a command reaches a session whose loop has exited.
	ErrSessionClosed = errors.New("session closed")

	// ErrMeterBusy is returned when the meter already has a live session.
	ErrMeterBusy = errors.New("meter already has an active session")

	// ErrInvalidPaymentQR is returned when the uploaded QR image is not an acceptable data URL.
	ErrInvalidPaymentQR = errors.New("invalid payment qr image")
)

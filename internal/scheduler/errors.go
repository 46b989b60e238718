package scheduler

import (
	"errors"
	"fmt"
)

// loadFailureError reports a plugin or model that could not be loaded.
type loadFailureError struct {
	what string
	err  error
}

func (e loadFailureError) Error() string { return fmt.Sprintf("load %s: %v", e.what, e.err) }
func (e loadFailureError) Unwrap() error { return e.err }

// IsLoadFailure reports whether New failed resolving the plugin, loading
// the model or duplicating a context.
func IsLoadFailure(err error) bool {
	var le loadFailureError
	return errors.As(err, &le)
}

// configFailureError reports a plugin that rejected or returned invalid
// configuration.
type configFailureError struct {
	stage string
	err   error
}

func (e configFailureError) Error() string { return fmt.Sprintf("%s: %v", e.stage, e.err) }
func (e configFailureError) Unwrap() error { return e.err }

// IsConfigFailure reports whether New failed in GetConfig, SetConfig or
// config validation.
func IsConfigFailure(err error) bool {
	var ce configFailureError
	return errors.As(err, &ce)
}

var (
	errNilUnit       = errors.New("plugin returned no input unit")
	errAlreadyStart  = errors.New("scheduler already started")
	errStopped       = errors.New("scheduler stopped")
	errNoInputs      = errors.New("no input worker initialized")
	errNoInferencers = errors.New("no inference worker initialized")
)

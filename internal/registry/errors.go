package registry

import "fmt"

// notFoundError reports a plugin that is not registered and could not be loaded.
type notFoundError struct {
	name string
	err  error
}

func (e notFoundError) Error() string {
	if e.err != nil {
		return fmt.Sprintf("plugin not found: %s: %v", e.name, e.err)
	}
	return "plugin not found: " + e.name
}

func (e notFoundError) Unwrap() error { return e.err }

// IsNotFound reports whether err indicates an unknown or unloadable plugin.
func IsNotFound(err error) bool {
	_, ok := err.(notFoundError)
	return ok
}

// invalidContractError reports a plugin missing a required capability.
type invalidContractError struct {
	name string
	err  error
}

func (e invalidContractError) Error() string {
	return fmt.Sprintf("plugin %s: invalid contract: %v", e.name, e.err)
}

func (e invalidContractError) Unwrap() error { return e.err }

// IsInvalidContract reports whether err indicates an incomplete plugin.
func IsInvalidContract(err error) bool {
	_, ok := err.(invalidContractError)
	return ok
}

type alreadyRegisteredError struct{ name string }

func (e alreadyRegisteredError) Error() string {
	return "plugin already registered with a different handle: " + e.name
}

// IsAlreadyRegistered reports whether Register hit a name collision.
func IsAlreadyRegistered(err error) bool {
	_, ok := err.(alreadyRegisteredError)
	return ok
}

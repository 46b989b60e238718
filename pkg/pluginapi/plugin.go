package pluginapi

import "inferd/pkg/types"

// Symbol is the exported identifier looked up in a plugin shared object.
const Symbol = "Plugin"

// Role distinguishes the two worker kinds a ThreadContext can belong to.
type Role int

const (
	RoleInput Role = iota
	RoleOutput
)

func (r Role) String() string {
	if r == RoleOutput {
		return "output"
	}
	return "input"
}

// Plugin is the capability set a plugin must implement. A nil error means
// success; any non-nil error is a failure and is only logged by the caller
// during steady state.
type Plugin interface {
	Name() string
	Version() int

	GetConfig(req *types.ConfigRequest) error
	SetConfig(desc *types.ModelDescriptor) error

	Init(tc *ThreadContext) error
	Uninit(tc *ThreadContext) error

	CollectInput(tc *ThreadContext) (*types.InputUnit, error)
	ReleaseInput(tc *ThreadContext, in *types.InputUnit) error
	EmitOutput(tc *ThreadContext, out *types.OutputUnit) error
}

// ThreadContext is the per-worker state handed to every plugin call made by
// that worker. It lives as long as the worker and is never shared.
type ThreadContext struct {
	ID     int
	Role   Role
	Plugin Plugin
	// Private may be set by the plugin in Init and must be released in Uninit.
	Private any
}

package pluginapi

import (
	"errors"
	"fmt"
	"reflect"

	"inferd/pkg/types"
)

// Funcs is a function-table Plugin. Every field is a required capability;
// a nil field makes the table fail Validate.
type Funcs struct {
	PluginName    string
	PluginVersion int

	GetConfigFunc    func(req *types.ConfigRequest) error
	SetConfigFunc    func(desc *types.ModelDescriptor) error
	InitFunc         func(tc *ThreadContext) error
	UninitFunc       func(tc *ThreadContext) error
	CollectInputFunc func(tc *ThreadContext) (*types.InputUnit, error)
	ReleaseInputFunc func(tc *ThreadContext, in *types.InputUnit) error
	EmitOutputFunc   func(tc *ThreadContext, out *types.OutputUnit) error
}

var _ Plugin = (*Funcs)(nil)

// MissingCapabilityError names the first absent capability of a plugin.
type MissingCapabilityError struct {
	Plugin     string
	Capability string
}

func (e *MissingCapabilityError) Error() string {
	return fmt.Sprintf("plugin %q: missing capability %s", e.Plugin, e.Capability)
}

// ErrEmptyName is returned for plugins that do not report a name.
var ErrEmptyName = errors.New("plugin name is empty")

// ErrNilPlugin is returned for a nil plugin, including a typed nil.
var ErrNilPlugin = errors.New("plugin is nil")

// Validate checks the table is complete.
func (f *Funcs) Validate() error {
	if f == nil {
		return ErrNilPlugin
	}
	if f.PluginName == "" {
		return ErrEmptyName
	}
	missing := func(c string) error { return &MissingCapabilityError{Plugin: f.PluginName, Capability: c} }
	switch {
	case f.GetConfigFunc == nil:
		return missing("get_config")
	case f.SetConfigFunc == nil:
		return missing("set_config")
	case f.InitFunc == nil:
		return missing("init")
	case f.UninitFunc == nil:
		return missing("uninit")
	case f.CollectInputFunc == nil:
		return missing("collect_input")
	case f.ReleaseInputFunc == nil:
		return missing("release_input")
	case f.EmitOutputFunc == nil:
		return missing("emit_output")
	}
	return nil
}

// Validate checks p is usable: non-nil, named, and complete when it is a
// function table (or exposes its own Validate).
func Validate(p Plugin) error {
	if IsNil(p) {
		return ErrNilPlugin
	}
	if v, ok := p.(interface{ Validate() error }); ok {
		return v.Validate()
	}
	if p.Name() == "" {
		return ErrEmptyName
	}
	return nil
}

// IsNil reports whether p is nil or an interface holding a nil pointer,
// map, slice, func or channel.
func IsNil(p Plugin) bool {
	if p == nil {
		return true
	}
	v := reflect.ValueOf(p)
	switch v.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan, reflect.Interface:
		return v.IsNil()
	}
	return false
}

func (f *Funcs) Name() string {
	if f == nil {
		return ""
	}
	return f.PluginName
}

func (f *Funcs) Version() int {
	if f == nil {
		return 0
	}
	return f.PluginVersion
}

func (f *Funcs) GetConfig(req *types.ConfigRequest) error { return f.GetConfigFunc(req) }
func (f *Funcs) SetConfig(desc *types.ModelDescriptor) error { return f.SetConfigFunc(desc) }
func (f *Funcs) Init(tc *ThreadContext) error { return f.InitFunc(tc) }
func (f *Funcs) Uninit(tc *ThreadContext) error { return f.UninitFunc(tc) }

func (f *Funcs) CollectInput(tc *ThreadContext) (*types.InputUnit, error) {
	return f.CollectInputFunc(tc)
}

func (f *Funcs) ReleaseInput(tc *ThreadContext, in *types.InputUnit) error {
	return f.ReleaseInputFunc(tc, in)
}

func (f *Funcs) EmitOutput(tc *ThreadContext, out *types.OutputUnit) error {
	return f.EmitOutputFunc(tc, out)
}

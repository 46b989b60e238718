package registry

import (
	"fmt"
	"os"
	"path/filepath"
	"plugin"
	"strings"

	"inferd/internal/common/fsutil"
	"inferd/pkg/pluginapi"
)

// Descriptor is a plugin shared object found on disk.
type Descriptor struct {
	Name string `json:"name"`
	Path string `json:"path"`
}

// LoadDir scans a directory for *.so files. Name is the filename without the
// extension; Path is the absolute file path.
func LoadDir(dir string) ([]Descriptor, error) {
	paths, err := fsutil.ListFiles(dir, ".so")
	if err != nil {
		return nil, err
	}
	out := make([]Descriptor, 0, len(paths))
	for _, p := range paths {
		base := filepath.Base(p)
		out = append(out, Descriptor{Name: strings.TrimSuffix(base, filepath.Ext(base)), Path: p})
	}
	return out, nil
}

// DirLoader opens <Dir>/<name>.so with the Go plugin package and looks up
// pluginapi.Symbol. A name that already ends in .so or contains a path
// separator is opened as given.
type DirLoader struct {
	Dir string
}

func (l DirLoader) path(name string) (string, error) {
	if fsutil.HasExt(name, ".so") || strings.ContainsRune(name, os.PathSeparator) {
		return fsutil.ExpandHome(name)
	}
	dir, err := fsutil.ExpandHome(l.Dir)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, name+".so"), nil
}

// Load implements Loader.
func (l DirLoader) Load(name string) (pluginapi.Plugin, error) {
	p, err := l.path(name)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(p); err != nil {
		return nil, err
	}
	so, err := plugin.Open(p)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", p, err)
	}
	sym, err := so.Lookup(pluginapi.Symbol)
	if err != nil {
		return nil, fmt.Errorf("lookup %s in %s: %w", pluginapi.Symbol, p, err)
	}
	return fromSymbol(sym)
}

// fromSymbol accepts a Plugin variable, a pointer to one, or a factory.
func fromSymbol(sym plugin.Symbol) (pluginapi.Plugin, error) {
	var p pluginapi.Plugin
	switch v := sym.(type) {
	case *pluginapi.Plugin:
		if v != nil {
			p = *v
		}
	case func() pluginapi.Plugin:
		p = v()
	case *func() pluginapi.Plugin:
		if v != nil && *v != nil {
			p = (*v)()
		}
	case pluginapi.Plugin:
		p = v
	default:
		return nil, fmt.Errorf("symbol %s has unsupported type %T", pluginapi.Symbol, sym)
	}
	if pluginapi.IsNil(p) {
		return nil, fmt.Errorf("symbol %s: %w", pluginapi.Symbol, pluginapi.ErrNilPlugin)
	}
	return p, nil
}

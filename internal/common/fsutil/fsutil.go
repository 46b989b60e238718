package fsutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ExpandHome expands a leading '~' to the user's home directory.
func ExpandHome(path string) (string, error) {
	if path == "" || path[0] != '~' {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("home dir: %w", err)
	}
	if path == "~" {
		return home, nil
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~/")), nil
}

// AbsPath expands a leading '~' and makes path absolute.
func AbsPath(path string) (string, error) {
	p, err := ExpandHome(path)
	if err != nil {
		return "", err
	}
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", fmt.Errorf("abs path: %w", err)
	}
	return abs, nil
}

// HasExt reports whether name ends in ext, ignoring case. ext includes the dot.
func HasExt(name, ext string) bool {
	return strings.EqualFold(filepath.Ext(name), ext)
}

// ListFiles returns the absolute paths of the regular files directly under
// dir whose extension matches ext. Subdirectories are not descended.
func ListFiles(dir, ext string) ([]string, error) {
	abs, err := AbsPath(dir)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(abs)
	if err != nil {
		return nil, fmt.Errorf("read dir: %w", err)
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() || !HasExt(e.Name(), ext) {
			continue
		}
		out = append(out, filepath.Join(abs, e.Name()))
	}
	return out, nil
}

// ReadNonEmpty reads the whole file at path after home expansion and fails
// when it has no content.
func ReadNonEmpty(path string) ([]byte, error) {
	p, err := ExpandHome(path)
	if err != nil {
		return nil, err
	}
	b, err := os.ReadFile(p)
	if err != nil {
		return nil, err
	}
	if len(b) == 0 {
		return nil, fmt.Errorf("%s is empty", p)
	}
	return b, nil
}

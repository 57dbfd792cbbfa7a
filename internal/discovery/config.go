package discovery

import (
	"fmt"
	"go/token"
	"path"
	"path/filepath"
	"strings"

	"forecast-miner/internal/common"
)

// Config controls where discovery looks and what it accepts.
type Config struct {
	Root string
	// ModuleDir restricts implementation-module candidates to a subtree of
	// Root, given relative to Root. Empty means the whole tree.
	ModuleDir string
	// ExcludeMarkers prune any directory or file whose path relative to
	// Root contains one of them. The part of the path above Root is not
	// matched, so a marker in the root's own location excludes nothing.
	ExcludeMarkers []string
	ModelExt       string
	DataExt        string
	ModuleExt      string
	// ReservedNames are base names never treated as implementation modules.
	ReservedNames []string
	EntryPoint    string
	RequireModel  bool
	RequireData   bool
}

// DefaultConfig returns the conventional layout rooted at root.
func DefaultConfig(root string) Config {
	return Config{
		Root:           root,
		ExcludeMarkers: []string{common.DefaultExcludeMarker},
		ModelExt:       common.DefaultModelExt,
		DataExt:        common.DefaultDataExt,
		ModuleExt:      common.DefaultModuleExt,
		ReservedNames:  []string{common.HelperModuleName, common.PackageDocName},
		EntryPoint:     common.DefaultEntryPoint,
		RequireModel:   true,
		RequireData:    true,
	}
}

// Validate reports configuration that can never produce a selection.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Root) == "" {
		return fmt.Errorf("%w: root directory is empty", ErrInvalidConfig)
	}
	for name, ext := range map[string]string{"model": c.ModelExt, "data": c.DataExt, "module": c.ModuleExt} {
		if !strings.HasPrefix(ext, ".") || len(ext) < 2 {
			return fmt.Errorf("%w: %s extension %q must start with a dot", ErrInvalidConfig, name, ext)
		}
	}
	if strings.EqualFold(c.ModelExt, c.ModuleExt) || strings.EqualFold(c.DataExt, c.ModuleExt) ||
		strings.EqualFold(c.ModelExt, c.DataExt) {
		return fmt.Errorf("%w: model, data and module extensions must differ", ErrInvalidConfig)
	}
	if !token.IsIdentifier(c.EntryPoint) {
		return fmt.Errorf("%w: entry point %q is not a Go identifier", ErrInvalidConfig, c.EntryPoint)
	}
	for _, m := range c.ExcludeMarkers {
		if m == "" {
			return fmt.Errorf("%w: empty exclusion marker", ErrInvalidConfig)
		}
	}
	if c.ModuleDir != "" {
		if filepath.IsAbs(c.ModuleDir) || strings.HasPrefix(path.Clean(filepath.ToSlash(c.ModuleDir)), "..") {
			return fmt.Errorf("%w: module dir %q must be relative to the root", ErrInvalidConfig, c.ModuleDir)
		}
	}
	return nil
}

func (c Config) excluded(rel string) bool {
	for _, m := range c.ExcludeMarkers {
		if strings.Contains(rel, m) {
			return true
		}
	}
	return false
}

func (c Config) reserved(base string) bool {
	if strings.HasSuffix(base, "_test.go") {
		return true
	}
	for _, r := range c.ReservedNames {
		if base == r {
			return true
		}
	}
	return false
}

func (c Config) inModuleDir(rel string) bool {
	if c.ModuleDir == "" {
		return true
	}
	dir := path.Clean(filepath.ToSlash(c.ModuleDir))
	if dir == "." {
		return true
	}
	return strings.HasPrefix(rel, dir+"/")
}

package discovery

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"
)

// Candidates is the partitioned, sorted candidate set under a root. Paths
// are relative to Root and slash-separated.
type Candidates struct {
	Root     string   `json:"root"`
	Modules  []string `json:"modules"`
	Models   []string `json:"models"`
	Data     []string `json:"data"`
	Excluded []string `json:"excluded,omitempty"`
}

// Selection holds the chosen file of each kind as an absolute path, or ""
// when the partition was empty.
type Selection struct {
	Module string `json:"module,omitempty"`
	Model  string `json:"model,omitempty"`
	Data   string `json:"data,omitempty"`
}

// List returns the candidate set under cfg.Root without loading anything.
func List(cfg Config) (Candidates, error) {
	if err := cfg.Validate(); err != nil {
		return Candidates{}, err
	}
	return scan(cfg)
}

func scan(cfg Config) (Candidates, error) {
	root, err := filepath.Abs(cfg.Root)
	if err != nil {
		return Candidates{}, &DiscoveryError{Stage: Scanning, Root: cfg.Root, Err: fmt.Errorf("%w: %v", ErrInvalidRoot, err)}
	}
	info, err := os.Stat(root)
	if err != nil {
		return Candidates{}, &DiscoveryError{Stage: Scanning, Root: root, Err: fmt.Errorf("%w: %v", ErrInvalidRoot, err)}
	}
	if !info.IsDir() {
		return Candidates{}, &DiscoveryError{Stage: Scanning, Root: root, Err: fmt.Errorf("%w: not a directory", ErrInvalidRoot)}
	}

	c := Candidates{Root: root}
	err = filepath.WalkDir(root, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			if p == root {
				return walkErr
			}
			log.Warn().Err(walkErr).Str("path", p).Msg("skipping unreadable path")
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if p == root {
			return nil
		}

		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		if cfg.excluded(rel) {
			c.Excluded = append(c.Excluded, rel)
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}

		ext := filepath.Ext(d.Name())
		switch {
		case strings.EqualFold(ext, cfg.ModuleExt):
			if !cfg.reserved(d.Name()) && cfg.inModuleDir(rel) {
				c.Modules = append(c.Modules, rel)
			}
		case strings.EqualFold(ext, cfg.ModelExt):
			c.Models = append(c.Models, rel)
		case strings.EqualFold(ext, cfg.DataExt):
			c.Data = append(c.Data, rel)
		}
		return nil
	})
	if err != nil {
		return Candidates{}, &DiscoveryError{Stage: Scanning, Root: root, Err: fmt.Errorf("%w: %v", ErrInvalidRoot, err)}
	}

	// walk order is already lexical per directory; sort the full paths so the
	// choice does not depend on it
	sort.Strings(c.Modules)
	sort.Strings(c.Models)
	sort.Strings(c.Data)
	sort.Strings(c.Excluded)
	return c, nil
}

// Abs converts a candidate path back to an absolute path.
func (c Candidates) Abs(rel string) string {
	if rel == "" {
		return ""
	}
	return filepath.Join(c.Root, filepath.FromSlash(rel))
}

// Select picks the first candidate of each kind. The implementation-module
// kind is checked first, then model weights, then reference data.
func (c Candidates) Select(cfg Config) (Selection, error) {
	required := []struct {
		kind     Kind
		files    []string
		required bool
	}{
		{KindModule, c.Modules, true},
		{KindModel, c.Models, cfg.RequireModel},
		{KindData, c.Data, cfg.RequireData},
	}
	for _, r := range required {
		if r.required && len(r.files) == 0 {
			return Selection{}, &DiscoveryError{Stage: Selecting, Kind: r.kind, Root: c.Root, Err: ErrNotFound}
		}
	}

	return Selection{
		Module: c.Abs(first(c.Modules)),
		Model:  c.Abs(first(c.Models)),
		Data:   c.Abs(first(c.Data)),
	}, nil
}

func first(s []string) string {
	if len(s) == 0 {
		return ""
	}
	return s[0]
}

// Package plugin loads a Go source file, plus any helper files beside it in
// the same package, as an implementation module and checks that its entry point can be called as a forecast function.
//
// Every Load gets a fresh yaegi interpreter. Two modules declaring the same
// package name never share globals, and loading one never changes the symbol
// table seen by another. Import resolution is rooted at the loader's base
// directory; nothing process-wide (working directory, GOPATH, environment) is
// touched.
package plugin

import (
	"errors"
	"fmt"
	"go/parser"
	"go/token"
	"io"
	"os"
	"path/filepath"
	"reflect"

	"github.com/rs/zerolog/log"
	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"
)

var (
	ErrLoad           = errors.New("module load failed")
	ErrSymbolNotFound = errors.New("symbol not found")
	ErrInvalidSymbol  = errors.New("invalid symbol name")
)

// Loader turns a source file into a Module.
type Loader struct {
	// BaseDir roots import resolution for the interpreted code. Defaults to
	// the directory holding the module file.
	BaseDir string
	// Artifacts is exposed to the module as the "miner/artifacts" package.
	Artifacts *Artifacts
	// Helpers are base names of library files evaluated ahead of the module
	// when they sit in its directory and declare the same package. A helper
	// may not refer back to the module.
	Helpers []string
	// Stdout and Stderr receive the module's output. Both default to the
	// global logger.
	Stdout io.Writer
	Stderr io.Writer
}

// Module is a loaded implementation module with a private namespace.
type Module struct {
	Path    string
	Package string
	BaseDir string
	// Helpers lists the helper files evaluated with the module.
	Helpers []string

	interp *interp.Interpreter
}

// Load reads, interprets and initializes the module at path.
func (l *Loader) Load(path string) (mod *Module, err error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoad, err)
	}
	if _, err := os.Stat(abs); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoad, err)
	}

	pkg, err := PackageName(abs)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoad, err)
	}

	baseDir := l.BaseDir
	if baseDir == "" {
		baseDir = filepath.Dir(abs)
	}

	logger := log.With().Str("module", abs).Logger()
	stdout, stderr := l.Stdout, l.Stderr
	if stdout == nil {
		stdout = logger
	}
	if stderr == nil {
		stderr = logger
	}

	i := interp.New(interp.Options{
		GoPath: baseDir,
		Stdout: stdout,
		Stderr: stderr,
	})
	if err := i.Use(stdlib.Symbols); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoad, err)
	}
	if l.Artifacts != nil {
		if err := i.Use(l.Artifacts.exports()); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrLoad, err)
		}
	}

	// the interpreter panics on some malformed programs
	defer func() {
		if r := recover(); r != nil {
			mod = nil
			err = fmt.Errorf("%w: %s: panic: %v", ErrLoad, abs, r)
		}
	}()

	helpers, err := l.helpers(abs, pkg)
	if err != nil {
		return nil, err
	}
	for _, h := range helpers {
		if _, err := i.EvalPath(h); err != nil {
			return nil, fmt.Errorf("%w: helper %s: %v", ErrLoad, h, err)
		}
	}

	if _, err := i.EvalPath(abs); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrLoad, abs, err)
	}

	logger.Debug().Str("package", pkg).Str("base_dir", baseDir).Strs("helpers", helpers).Msg("module loaded")
	return &Module{Path: abs, Package: pkg, BaseDir: baseDir, Helpers: helpers, interp: i}, nil
}

// helpers returns the helper files next to the module that share its package.
func (l *Loader) helpers(module, pkg string) ([]string, error) {
	var out []string
	dir := filepath.Dir(module)
	for _, name := range l.Helpers {
		if name == "" || filepath.Base(name) != name {
			continue
		}
		p := filepath.Join(dir, name)
		if p == module {
			continue
		}
		if _, err := os.Stat(p); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("%w: helper %s: %v", ErrLoad, p, err)
		}
		hp, err := PackageName(p)
		if err != nil {
			return nil, fmt.Errorf("%w: helper %s: %v", ErrLoad, p, err)
		}
		if hp != pkg {
			log.Debug().Str("helper", p).Str("package", hp).Msg("helper declares another package, skipped")
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

// Lookup returns the exported value bound to name in the module's namespace.
func (m *Module) Lookup(name string) (v reflect.Value, err error) {
	if !token.IsIdentifier(name) {
		return reflect.Value{}, fmt.Errorf("%w: %q", ErrInvalidSymbol, name)
	}

	expr := name
	if m.Package != "main" {
		expr = m.Package + "." + name
	}

	defer func() {
		if r := recover(); r != nil {
			v = reflect.Value{}
			err = fmt.Errorf("%w: %s in %s: %v", ErrSymbolNotFound, name, m.Path, r)
		}
	}()

	v, err = m.interp.Eval(expr)
	if err != nil || !v.IsValid() {
		return reflect.Value{}, fmt.Errorf("%w: %s in %s", ErrSymbolNotFound, name, m.Path)
	}
	return v, nil
}

// PackageName reads the package clause of a Go source file.
func PackageName(path string) (string, error) {
	f, err := parser.ParseFile(token.NewFileSet(), path, nil, parser.PackageClauseOnly)
	if err != nil {
		return "", err
	}
	return f.Name.Name, nil
}

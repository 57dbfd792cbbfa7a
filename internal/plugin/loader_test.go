package plugin

import (
	"os"
	"path/filepath"
	"testing"

	"forecast-miner/internal/dataset"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeModule(t *testing.T, dir, name, src string) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0o755))
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(src), 0o600))
	return path
}

func bindEntry(t *testing.T, mod *Module, entry string) func(string) (float64, error) {
	t.Helper()
	v, err := mod.Lookup(entry)
	require.NoError(t, err)
	c := Check(entry, v)
	require.True(t, c.Conforms(), c.Reason)
	fn, err := c.Bind()
	require.NoError(t, err)
	return func(ts string) (float64, error) {
		p, _, err := fn(ts)
		return p, err
	}
}

func TestLoader_LoadsScalarModule(t *testing.T) {
	path := writeModule(t, t.TempDir(), "impl.go", `package impl

func Predict(ts string) float64 { return 7.5 }
`)

	var l Loader
	mod, err := l.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "impl", mod.Package)
	assert.Equal(t, filepath.Dir(path), mod.BaseDir)

	predict := bindEntry(t, mod, "Predict")
	got, err := predict("2024-01-15T10:30:00Z")
	require.NoError(t, err)
	assert.Equal(t, 7.5, got)
}

func TestLoader_EvaluatesHelpers(t *testing.T) {
	dir := t.TempDir()
	writeModule(t, dir, "helpers.go", `package impl

func oneHourAhead(base float64) float64 { return base * 2 }
`)
	writeModule(t, dir, "doc.go", `package other
`)
	path := writeModule(t, dir, "impl.go", `package impl

func Predict(ts string) float64 { return oneHourAhead(3) }
`)

	l := Loader{Helpers: []string{"helpers.go", "doc.go", "missing.go", "impl.go"}}
	mod, err := l.Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "helpers.go")}, mod.Helpers)

	got, err := bindEntry(t, mod, "Predict")("2024-01-15")
	require.NoError(t, err)
	assert.Equal(t, 6.0, got)
}

func TestLoader_HelperCompileError(t *testing.T) {
	dir := t.TempDir()
	writeModule(t, dir, "helpers.go", "package impl\n\nfunc broken( {\n")
	path := writeModule(t, dir, "impl.go", "package impl\n\nfunc Predict(ts string) float64 { return 1 }\n")

	l := Loader{Helpers: []string{"helpers.go"}}
	_, err := l.Load(path)
	require.ErrorIs(t, err, ErrLoad)
	assert.Contains(t, err.Error(), "helpers.go")
}

func TestLoader_WithoutHelpersUndefined(t *testing.T) {
	dir := t.TempDir()
	writeModule(t, dir, "helpers.go", "package impl\n\nfunc two() float64 { return 2 }\n")
	path := writeModule(t, dir, "impl.go", "package impl\n\nfunc Predict(ts string) float64 { return two() }\n")

	var l Loader
	_, err := l.Load(path)
	assert.ErrorIs(t, err, ErrLoad)
}

func TestLoader_TimeInputAndInterval(t *testing.T) {
	path := writeModule(t, t.TempDir(), "impl.go", `package impl

import (
	"errors"
	"time"
)

func Predict(ts time.Time) (float64, [2]float64, error) {
	if ts.Year() < 2000 {
		return 0, [2]float64{}, errors.New("too early")
	}
	h := float64(ts.Hour())
	return h, [2]float64{h - 1, h + 1}, nil
}
`)

	var l Loader
	mod, err := l.Load(path)
	require.NoError(t, err)

	v, err := mod.Lookup("Predict")
	require.NoError(t, err)
	c := Check("Predict", v)
	require.True(t, c.Conforms(), c.Reason)
	assert.Equal(t, "time.Time", c.Input)
	assert.Equal(t, OutputIntervalErr, c.Output)

	fn, err := c.Bind()
	require.NoError(t, err)
	point, interval, err := fn("2024-01-15T10:30:00Z")
	require.NoError(t, err)
	assert.Equal(t, 10.0, point)
	require.NotNil(t, interval)
	assert.Equal(t, 9.0, interval.Low)
	assert.Equal(t, 11.0, interval.High)

	_, _, err = fn("1999-01-01")
	assert.EqualError(t, err, "too early")
}

func TestLoader_IsolatesSameNamedPackages(t *testing.T) {
	src := func(v string) string {
		return `package impl

var calls float64

func Predict(ts string) float64 {
	calls++
	return ` + v + ` + calls
}
`
	}
	pathA := writeModule(t, filepath.Join(t.TempDir(), "a"), "impl.go", src("100"))
	pathB := writeModule(t, filepath.Join(t.TempDir(), "b"), "impl.go", src("200"))

	var l Loader
	modA, err := l.Load(pathA)
	require.NoError(t, err)
	modB, err := l.Load(pathB)
	require.NoError(t, err)

	a := bindEntry(t, modA, "Predict")
	b := bindEntry(t, modB, "Predict")

	got, _ := a("x")
	assert.Equal(t, 101.0, got)
	got, _ = a("x")
	assert.Equal(t, 102.0, got)

	// b has its own package globals
	got, _ = b("x")
	assert.Equal(t, 201.0, got)
}

func TestLoader_MainPackage(t *testing.T) {
	path := writeModule(t, t.TempDir(), "impl.go", `package main

func Predict(ts string) (float64, error) { return 3, nil }
`)

	var l Loader
	mod, err := l.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "main", mod.Package)

	got, err := bindEntry(t, mod, "Predict")("x")
	require.NoError(t, err)
	assert.Equal(t, 3.0, got)
}

func TestLoader_MissingEntryPoint(t *testing.T) {
	path := writeModule(t, t.TempDir(), "impl.go", `package impl

func Forecast(ts string) float64 { return 1 }
`)

	var l Loader
	mod, err := l.Load(path)
	require.NoError(t, err)

	_, err = mod.Lookup("Predict")
	assert.ErrorIs(t, err, ErrSymbolNotFound)
}

func TestLoader_RejectsInvalidSymbolName(t *testing.T) {
	path := writeModule(t, t.TempDir(), "impl.go", "package impl\n\nfunc Predict(ts string) float64 { return 1 }\n")

	var l Loader
	mod, err := l.Load(path)
	require.NoError(t, err)

	for _, name := range []string{"", "Predict()", "os.Exit(1)", "a b"} {
		_, err = mod.Lookup(name)
		assert.ErrorIs(t, err, ErrInvalidSymbol, name)
	}
}

func TestLoader_WrongSignature(t *testing.T) {
	path := writeModule(t, t.TempDir(), "impl.go", `package impl

func Predict(n int) float64 { return float64(n) }
`)

	var l Loader
	mod, err := l.Load(path)
	require.NoError(t, err)

	v, err := mod.Lookup("Predict")
	require.NoError(t, err)
	c := Check("Predict", v)
	assert.False(t, c.Conforms())
	assert.Contains(t, c.Reason, "string or time.Time")
}

func TestLoader_CompileError(t *testing.T) {
	path := writeModule(t, t.TempDir(), "impl.go", `package impl

func Predict(ts string) float64 { return undefinedThing }
`)

	var l Loader
	_, err := l.Load(path)
	assert.ErrorIs(t, err, ErrLoad)
}

func TestLoader_MissingFile(t *testing.T) {
	var l Loader
	_, err := l.Load(filepath.Join(t.TempDir(), "nope.go"))
	assert.ErrorIs(t, err, ErrLoad)
}

func TestLoader_InjectsArtifacts(t *testing.T) {
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "data.csv")
	require.NoError(t, os.WriteFile(csvPath, []byte("timestamp,close\n2024-01-15T10:00:00Z,7.1\n2024-01-15T11:00:00Z,7.3\n"), 0o600))
	table, err := dataset.Load(csvPath)
	require.NoError(t, err)

	path := writeModule(t, dir, "impl.go", `package impl

import (
	"time"

	"miner/artifacts"
)

func Predict(ts time.Time) (float64, error) {
	return artifacts.Data.Last(ts, "close")
}

func Weights(ts string) float64 {
	if artifacts.Resolve("modelA.h5") == artifacts.ModelPath {
		return 1
	}
	return 0
}
`)

	l := Loader{Artifacts: &Artifacts{
		BaseDir:   dir,
		ModelPath: filepath.Join(dir, "modelA.h5"),
		DataPath:  csvPath,
		Data:      table,
	}}
	mod, err := l.Load(path)
	require.NoError(t, err)

	got, err := bindEntry(t, mod, "Predict")("2024-01-15T10:30:00Z")
	require.NoError(t, err)
	assert.Equal(t, 7.1, got)

	_, err = bindEntry(t, mod, "Predict")("2030-01-01T00:00:00Z")
	assert.ErrorIs(t, err, dataset.ErrOutOfCoverage)

	got, err = bindEntry(t, mod, "Weights")("x")
	require.NoError(t, err)
	assert.Equal(t, 1.0, got)
}

func TestPackageName(t *testing.T) {
	path := writeModule(t, t.TempDir(), "impl.go", "// Package forecaster does things.\npackage forecaster\n")
	name, err := PackageName(path)
	require.NoError(t, err)
	assert.Equal(t, "forecaster", name)

	bad := writeModule(t, t.TempDir(), "bad.go", "not go at all")
	_, err = PackageName(bad)
	assert.Error(t, err)
}

func TestArtifacts_Resolve(t *testing.T) {
	a := &Artifacts{BaseDir: "/srv/miner"}
	assert.Equal(t, filepath.Join("/srv/miner", "weights", "m.h5"), a.Resolve("weights/m.h5"))
	assert.Equal(t, "/abs/path.csv", a.Resolve("/abs/path.csv"))
}

package cfg

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"forecast-miner/internal/common"
	"forecast-miner/internal/forecast"
)

func TestLoadFromEnv(t *testing.T) {
	tests := []struct {
		name     string
		envVars  map[string]string
		wantErr  bool
		validate func(t *testing.T, settings Settings)
	}{
		{
			name:    "defaults",
			envVars: map[string]string{},
			validate: func(t *testing.T, settings Settings) {
				if settings.Root != common.DefaultRoot {
					t.Errorf("expected default root %s, got %s", common.DefaultRoot, settings.Root)
				}
				if settings.EntryPoint != "Predict" {
					t.Errorf("expected default entry point Predict, got %s", settings.EntryPoint)
				}
				if !settings.RequireModel || !settings.RequireData {
					t.Error("expected model and data to be required by default")
				}
				if len(settings.ExcludeMarkers) != 1 || settings.ExcludeMarkers[0] != common.DefaultExcludeMarker {
					t.Errorf("expected default exclusion marker, got %v", settings.ExcludeMarkers)
				}
				if settings.Interval.Method != forecast.PolicyFixed {
					t.Errorf("expected fixed interval policy, got %s", settings.Interval.Method)
				}
				if settings.Interval.HalfWidth != forecast.DefaultHalfWidth {
					t.Errorf("expected default half width, got %f", settings.Interval.HalfWidth)
				}
				if settings.ServerPort != common.DefaultServerPort {
					t.Errorf("expected default port, got %d", settings.ServerPort)
				}
				if settings.RequestTimeout != 5*time.Second {
					t.Errorf("expected default timeout 5s, got %v", settings.RequestTimeout)
				}
			},
		},
		{
			name: "environment overrides",
			envVars: map[string]string{
				common.EnvRoot:            "/srv/miner",
				common.EnvModuleDir:       "modules",
				common.EnvExcludeMarkers:  "archive, old ,",
				common.EnvEntryPoint:      "Forecast",
				common.EnvRequireData:     "false",
				common.EnvIntervalMethod:  "std",
				common.EnvStdErr:          "0.4",
				common.EnvConfidence:      "0.9",
				common.EnvStrictIntervals: "true",
				common.EnvServerPort:      "9090",
				common.EnvRequestTimeout:  "2s",
				common.EnvLogLevel:        "debug",
			},
			validate: func(t *testing.T, settings Settings) {
				if settings.Root != "/srv/miner" || settings.ModuleDir != "modules" {
					t.Errorf("unexpected root/module dir %s %s", settings.Root, settings.ModuleDir)
				}
				if len(settings.ExcludeMarkers) != 2 || settings.ExcludeMarkers[1] != "old" {
					t.Errorf("expected trimmed markers [archive old], got %v", settings.ExcludeMarkers)
				}
				if settings.EntryPoint != "Forecast" {
					t.Errorf("expected entry point Forecast, got %s", settings.EntryPoint)
				}
				if settings.RequireData {
					t.Error("expected data to be optional")
				}
				if settings.Interval.Method != "std" || settings.Interval.StdErr != 0.4 || settings.Interval.Confidence != 0.9 {
					t.Errorf("unexpected interval config %+v", settings.Interval)
				}
				if !settings.StrictIntervals {
					t.Error("expected strict intervals")
				}
				if settings.ServerPort != 9090 || settings.RequestTimeout != 2*time.Second {
					t.Errorf("unexpected server settings %d %v", settings.ServerPort, settings.RequestTimeout)
				}
			},
		},
		{
			name:    "std policy without std err",
			envVars: map[string]string{common.EnvIntervalMethod: "std"},
			wantErr: true,
		},
		{
			name: "NaN confidence",
			envVars: map[string]string{
				common.EnvIntervalMethod: "std",
				common.EnvStdErr:         "1",
				common.EnvConfidence:     "NaN",
			},
			wantErr: true,
		},
		{
			name:    "port out of range",
			envVars: map[string]string{common.EnvServerPort: "80"},
			wantErr: true,
		},
		{
			name:    "bad entry point",
			envVars: map[string]string{common.EnvEntryPoint: "not valid"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.envVars {
				t.Setenv(k, v)
			}
			settings, err := LoadFile("")
			if (err != nil) != tt.wantErr {
				t.Fatalf("LoadFile() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.validate != nil && err == nil {
				tt.validate(t, settings)
			}
		})
	}
}

func TestLoadFromYAML(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "config.yaml")

	configContent := `
discovery:
  root: /data/miner
  excludeMarkers: [skip_me]
  reservedNames: [helpers.go, shared.go]
  requireModel: false
interval:
  method: std
  stdErr: 0.25
  z: 2.0
  strict: true
server:
  port: 8200
  journalPath: /var/lib/miner
  requestTimeout: 3s
log:
  level: warn
  pretty: true
`
	if err := os.WriteFile(configPath, []byte(configContent), 0o600); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	// environment wins over the file
	t.Setenv(common.EnvServerPort, "8300")
	t.Setenv(common.EnvConfigFile, configPath)

	settings, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if settings.Root != "/data/miner" {
		t.Errorf("expected root from file, got %s", settings.Root)
	}
	if settings.RequireModel {
		t.Error("expected requireModel false from file")
	}
	if !settings.RequireData {
		t.Error("expected requireData to keep its default")
	}
	if len(settings.ReservedNames) != 2 || settings.ReservedNames[1] != "shared.go" {
		t.Errorf("unexpected reserved names %v", settings.ReservedNames)
	}
	if settings.ModelExt != common.DefaultModelExt {
		t.Errorf("expected default model ext, got %s", settings.ModelExt)
	}
	if settings.Interval.Method != "std" || settings.Interval.StdErr != 0.25 || settings.Interval.Z != 2.0 {
		t.Errorf("unexpected interval %+v", settings.Interval)
	}
	if !settings.StrictIntervals {
		t.Error("expected strict intervals from file")
	}
	if settings.ServerPort != 8300 {
		t.Errorf("expected env port 8300, got %d", settings.ServerPort)
	}
	if settings.JournalPath != "/var/lib/miner" || settings.RequestTimeout != 3*time.Second {
		t.Errorf("unexpected server settings %s %v", settings.JournalPath, settings.RequestTimeout)
	}
	if settings.LogLevel != "warn" || !settings.LogPretty {
		t.Errorf("unexpected log settings %s %v", settings.LogLevel, settings.LogPretty)
	}

	policy, err := settings.Policy()
	if err != nil {
		t.Fatalf("Policy() failed: %v", err)
	}
	if iv := policy.Interval(1); iv.Low != 0.5 || iv.High != 1.5 {
		t.Errorf("unexpected std interval %+v", iv)
	}

	dc := settings.DiscoveryConfig()
	if dc.Root != "/data/miner" || dc.RequireModel || dc.ExcludeMarkers[0] != "skip_me" {
		t.Errorf("unexpected discovery config %+v", dc)
	}
}

func TestLoadFromYAML_Errors(t *testing.T) {
	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing config file")
	}

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(bad, []byte("discovery: [unterminated"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFile(bad); err == nil {
		t.Error("expected error for malformed YAML")
	}
}

func TestLoadFromYAML_ZeroHalfWidth(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "interval:\n  method: fixed\n  halfWidth: 0\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	settings, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() failed: %v", err)
	}
	if settings.Interval.HalfWidth != 0 {
		t.Fatalf("expected explicit half width 0 to be kept, got %v", settings.Interval.HalfWidth)
	}
	policy, err := settings.Policy()
	if err != nil {
		t.Fatalf("Policy() failed: %v", err)
	}
	if iv := policy.Interval(10); iv.Low != 10 || iv.High != 10 {
		t.Errorf("expected zero-width interval at 10, got %+v", iv)
	}
}

func TestLoad_MalformedRequestTimeout(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("server:\n  requestTimeout: \"5\"\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFile(path); err == nil {
		t.Error("expected error for request timeout without a unit")
	}

	t.Setenv(common.EnvRequestTimeout, "soon")
	if _, err := LoadFile(""); err == nil {
		t.Error("expected error for malformed timeout in the environment")
	}
}

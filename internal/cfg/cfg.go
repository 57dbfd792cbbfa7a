package cfg

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"forecast-miner/internal/common"
	"forecast-miner/internal/discovery"
	"forecast-miner/internal/forecast"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

type Settings struct {
	Root           string
	ModuleDir      string
	ExcludeMarkers []string
	ModelExt       string
	DataExt        string
	ModuleExt      string
	ReservedNames  []string
	EntryPoint     string
	RequireModel   bool
	RequireData    bool

	Interval        forecast.PolicyConfig
	StrictIntervals bool

	ServerPort     int
	JournalPath    string
	RequestTimeout time.Duration

	LogLevel  string
	LogPretty bool
}

type ConfigFile struct {
	Discovery struct {
		Root           string   `yaml:"root"`
		ModuleDir      string   `yaml:"moduleDir"`
		ExcludeMarkers []string `yaml:"excludeMarkers"`
		ModelExt       string   `yaml:"modelExt"`
		DataExt        string   `yaml:"dataExt"`
		ModuleExt      string   `yaml:"moduleExt"`
		ReservedNames  []string `yaml:"reservedNames"`
		EntryPoint     string   `yaml:"entryPoint"`
		RequireModel   *bool    `yaml:"requireModel"`
		RequireData    *bool    `yaml:"requireData"`
	} `yaml:"discovery"`

	Interval struct {
		Method string `yaml:"method"`
		// HalfWidth is a pointer so an explicit 0 is kept.
		HalfWidth  *float64 `yaml:"halfWidth"`
		StdErr     float64  `yaml:"stdErr"`
		Z          float64  `yaml:"z"`
		Confidence float64  `yaml:"confidence"`
		Strict     bool     `yaml:"strict"`
	} `yaml:"interval"`

	Server struct {
		Port           int    `yaml:"port"`
		JournalPath    string `yaml:"journalPath"`
		RequestTimeout string `yaml:"requestTimeout"`
	} `yaml:"server"`

	Log struct {
		Level  string `yaml:"level"`
		Pretty bool   `yaml:"pretty"`
	} `yaml:"log"`
}

// Load reads .env if present, then the YAML file named by CONFIG_FILE if
// set, then environment overrides.
func Load() (Settings, error) {
	return LoadFile(os.Getenv(common.EnvConfigFile))
}

// LoadFile is Load with an explicit YAML path. An empty path means
// defaults plus environment only.
func LoadFile(path string) (Settings, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Settings{}, fmt.Errorf("failed to load .env: %w", err)
	}

	var config ConfigFile
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Settings{}, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &config); err != nil {
			return Settings{}, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	settings, err := fromConfig(config)
	if err != nil {
		return Settings{}, err
	}
	if err := validateSettings(&settings); err != nil {
		return Settings{}, fmt.Errorf("configuration validation failed: %w", err)
	}
	return settings, nil
}

func fromConfig(config ConfigFile) (Settings, error) {
	d := discovery.DefaultConfig(common.DefaultRoot)
	dc := config.Discovery
	ic := config.Interval

	requireModel, requireData := d.RequireModel, d.RequireData
	if dc.RequireModel != nil {
		requireModel = *dc.RequireModel
	}
	if dc.RequireData != nil {
		requireData = *dc.RequireData
	}

	timeout, err := durationFromEnvOrConfig(common.EnvRequestTimeout, config.Server.RequestTimeout, 5*time.Second)
	if err != nil {
		return Settings{}, err
	}

	halfWidth := forecast.DefaultHalfWidth
	if ic.HalfWidth != nil {
		halfWidth = *ic.HalfWidth
	}

	return Settings{
		Root:           getEnvOrDefault(common.EnvRoot, firstNonEmpty(dc.Root, d.Root)),
		ModuleDir:      getEnvOrDefault(common.EnvModuleDir, dc.ModuleDir),
		ExcludeMarkers: getListFromEnvOrConfig(common.EnvExcludeMarkers, dc.ExcludeMarkers, d.ExcludeMarkers),
		ModelExt:       getEnvOrDefault(common.EnvModelExt, firstNonEmpty(dc.ModelExt, d.ModelExt)),
		DataExt:        getEnvOrDefault(common.EnvDataExt, firstNonEmpty(dc.DataExt, d.DataExt)),
		ModuleExt:      getEnvOrDefault(common.EnvModuleExt, firstNonEmpty(dc.ModuleExt, d.ModuleExt)),
		ReservedNames:  getListFromEnvOrConfig(common.EnvReservedNames, dc.ReservedNames, d.ReservedNames),
		EntryPoint:     getEnvOrDefault(common.EnvEntryPoint, firstNonEmpty(dc.EntryPoint, d.EntryPoint)),
		RequireModel:   getBoolOrDefault(common.EnvRequireModel, requireModel),
		RequireData:    getBoolOrDefault(common.EnvRequireData, requireData),

		Interval: forecast.PolicyConfig{
			Method:     getEnvOrDefault(common.EnvIntervalMethod, firstNonEmpty(ic.Method, common.DefaultIntervalMethod)),
			HalfWidth:  getFloatOrDefault(common.EnvHalfWidth, halfWidth),
			StdErr:     getFloatOrDefault(common.EnvStdErr, ic.StdErr),
			Z:          getFloatOrDefault(common.EnvZ, ic.Z),
			Confidence: getFloatOrDefault(common.EnvConfidence, ic.Confidence),
		},
		StrictIntervals: getBoolOrDefault(common.EnvStrictIntervals, config.Interval.Strict),

		ServerPort:     getIntOrDefault(common.EnvServerPort, nonZeroInt(config.Server.Port, common.DefaultServerPort)),
		JournalPath:    getEnvOrDefault(common.EnvJournalPath, config.Server.JournalPath),
		RequestTimeout: timeout,

		LogLevel:  getEnvOrDefault(common.EnvLogLevel, firstNonEmpty(config.Log.Level, common.DefaultLogLevel)),
		LogPretty: getBoolOrDefault(common.EnvLogPretty, config.Log.Pretty),
	}, nil
}

// DiscoveryConfig returns the discovery part of the settings.
func (s *Settings) DiscoveryConfig() discovery.Config {
	return discovery.Config{
		Root:           s.Root,
		ModuleDir:      s.ModuleDir,
		ExcludeMarkers: s.ExcludeMarkers,
		ModelExt:       s.ModelExt,
		DataExt:        s.DataExt,
		ModuleExt:      s.ModuleExt,
		ReservedNames:  s.ReservedNames,
		EntryPoint:     s.EntryPoint,
		RequireModel:   s.RequireModel,
		RequireData:    s.RequireData,
	}
}

// Policy builds the configured interval policy.
func (s *Settings) Policy() (forecast.IntervalPolicy, error) {
	return forecast.NewPolicy(s.Interval)
}

func getEnvOrDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

// durationFromEnvOrConfig prefers the environment, then the file value. A
// value that is set but does not parse is an error.
func durationFromEnvOrConfig(key, configValue string, defaultValue time.Duration) (time.Duration, error) {
	source, v := key, os.Getenv(key)
	if v == "" {
		source, v = "server.requestTimeout", configValue
	}
	if v == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", source, v, err)
	}
	return d, nil
}

func getIntOrDefault(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultValue
}

func getFloatOrDefault(key string, defaultValue float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getBoolOrDefault(key string, defaultValue bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultValue
}

func getListFromEnvOrConfig(key string, configValue, defaultValue []string) []string {
	if env := os.Getenv(key); env != "" {
		var out []string
		for _, part := range strings.Split(env, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
		return out
	}
	if len(configValue) > 0 {
		return configValue
	}
	return defaultValue
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func nonZeroInt(v, def int) int {
	if v != 0 {
		return v
	}
	return def
}

// validateSettings performs validation of configuration values
func validateSettings(settings *Settings) error {
	if err := settings.DiscoveryConfig().Validate(); err != nil {
		return err
	}

	if _, err := settings.Policy(); err != nil {
		return err
	}

	if settings.ServerPort < common.MinServerPort || settings.ServerPort > common.MaxServerPort {
		return fmt.Errorf("server port must be between %d and %d, got %d",
			common.MinServerPort, common.MaxServerPort, settings.ServerPort)
	}
	if settings.RequestTimeout < 100*time.Millisecond || settings.RequestTimeout > time.Minute {
		return fmt.Errorf("request timeout must be between 100ms and 1m, got %v", settings.RequestTimeout)
	}

	if _, err := zerolog.ParseLevel(settings.LogLevel); err != nil {
		return fmt.Errorf("invalid log level %q: %w", settings.LogLevel, err)
	}

	return nil
}

package common

// Environment variable keys
const (
	EnvConfigFile      = "CONFIG_FILE"
	EnvRoot            = "MINER_ROOT"
	EnvModuleDir       = "MODULE_DIR"
	EnvExcludeMarkers  = "EXCLUDE_MARKERS"
	EnvModelExt        = "MODEL_EXT"
	EnvDataExt         = "DATA_EXT"
	EnvModuleExt       = "MODULE_EXT"
	EnvReservedNames   = "RESERVED_NAMES"
	EnvEntryPoint      = "ENTRY_POINT"
	EnvRequireModel    = "REQUIRE_MODEL"
	EnvRequireData     = "REQUIRE_DATA"
	EnvIntervalMethod  = "INTERVAL_METHOD"
	EnvHalfWidth       = "INTERVAL_HALF_WIDTH"
	EnvStdErr          = "INTERVAL_STD_ERR"
	EnvZ               = "INTERVAL_Z"
	EnvConfidence      = "INTERVAL_CONFIDENCE"
	EnvStrictIntervals = "STRICT_INTERVALS"
	EnvServerPort      = "SERVER_PORT"
	EnvJournalPath     = "JOURNAL_PATH"
	EnvRequestTimeout  = "REQUEST_TIMEOUT"
	EnvLogLevel        = "LOG_LEVEL"
	EnvLogPretty       = "LOG_PRETTY"
)

// Discovery defaults
const (
	DefaultRoot          = "miner_model"
	DefaultExcludeMarker = "LSTM_outside_example"
	DefaultModelExt      = ".h5"
	DefaultDataExt       = ".csv"
	DefaultModuleExt     = ".go"
	DefaultEntryPoint    = "Predict"
	HelperModuleName     = "helpers.go"
	PackageDocName       = "doc.go"
)

// Serving defaults
const (
	DefaultIntervalMethod = "fixed"
	DefaultServerPort     = 8091
	DefaultLogLevel       = "info"
)

// Validation constants
const (
	MinServerPort = 1024
	MaxServerPort = 65535
)

// ArtifactsImportPath is the import path under which the host exposes the
// selected artifacts to an interpreted implementation module.
const ArtifactsImportPath = "miner/artifacts"

package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// EnvPrefix is the prefix for every environment variable read by Load.
const EnvPrefix = "VTANA"

// Quality filter
const (
	// ViewerFloor is the minimum audience a row needs on at least one platform.
	ViewerFloor = 10
)

// Time axis
const (
	SlotMinutes  = 15
	SlotsPerDay  = 24 * 60 / SlotMinutes
	SlotWidth    = SlotMinutes * time.Minute
	CircularAxis = "12:00" // presentation day starts at noon
	DateLayout   = "2006-01-02"
)

// Outlier trimming thresholds
const (
	DefaultSymmetricK     = 2.5
	DefaultLowerK         = 3.0
	DefaultYouTubeLinearK = 3.0
	DefaultTwitchLinearK  = 4.5
	DefaultTrimPasses     = 1
)

// Progress reporting
const (
	ProgressInterval        = 2000
	SessionProgressInterval = 100
)

// Snapshot drivers
const (
	DriverModernc = "sqlite"
	DriverCgo     = "sqlite3"
)

// Lineage store limits
const (
	DefaultLineageMemoryMB = 16
)

// Config holds runtime settings. Fields are filled from VTANA_* environment
// variables and can be overridden by command line flags.
type Config struct {
	DataDir    string `envconfig:"DATA_DIR" default:"data"`
	Force      bool   `envconfig:"FORCE" default:"false"`
	LogLevel   string `envconfig:"LOG_LEVEL" default:"info"`
	LineageDir string `envconfig:"LINEAGE_DIR" default:""`
	Driver     string `envconfig:"DRIVER" default:"sqlite"`

	SymmetricK  float64 `envconfig:"SYMMETRIC_K" default:"2.5"`
	LowerK      float64 `envconfig:"LOWER_K" default:"3"`
	YouTubeK    float64 `envconfig:"YT_LINEAR_K" default:"3"`
	TwitchK     float64 `envconfig:"TW_LINEAR_K" default:"4.5"`
	TrimPasses  int     `envconfig:"TRIM_PASSES" default:"1"`
	TrimPolicy  string  `envconfig:"TRIM_POLICY" default:"log-sigma"`
	DiffMethod  string  `envconfig:"DIFF_METHOD" default:"geometric"`
	ViewerFloor int     `envconfig:"VIEWER_FLOOR" default:"10"`
}

// Default returns the configuration used when no environment is set.
func Default() Config {
	return Config{
		DataDir:     "data",
		LogLevel:    "info",
		Driver:      DriverModernc,
		SymmetricK:  DefaultSymmetricK,
		LowerK:      DefaultLowerK,
		YouTubeK:    DefaultYouTubeLinearK,
		TwitchK:     DefaultTwitchLinearK,
		TrimPasses:  DefaultTrimPasses,
		TrimPolicy:  "log-sigma",
		DiffMethod:  "geometric",
		ViewerFloor: ViewerFloor,
	}
}

// Load reads the environment into a Config and validates it.
func Load() (Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to read environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects settings that would make a stage meaningless.
func (c Config) Validate() error {
	switch c.Driver {
	case DriverModernc, DriverCgo:
	default:
		return fmt.Errorf("unknown snapshot driver %q", c.Driver)
	}
	if c.SymmetricK <= 0 || c.LowerK <= 0 || c.YouTubeK <= 0 || c.TwitchK <= 0 {
		return fmt.Errorf("trim thresholds must be positive")
	}
	if c.TrimPasses < 1 {
		return fmt.Errorf("trim passes must be at least 1, got %d", c.TrimPasses)
	}
	if c.ViewerFloor < 0 {
		return fmt.Errorf("viewer floor must not be negative, got %d", c.ViewerFloor)
	}
	return nil
}

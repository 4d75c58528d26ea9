// Package appconf loads the board configuration from YAML, fills defaults
// and validates it once at startup.
package appconf

import (
	"strings"
	"time"
	_ "time/tzdata" // Europe/Warsaw must resolve on minimal images
)

// Environment selects how strict the process is about debug surfaces.
type Environment string

const (
	Development Environment = "development"
	Test        Environment = "test"
	Production  Environment = "production"
)

// ModeDebug writes the rendered board to a file. Any other mode hands it to
// the display driver.
const ModeDebug = "debug"

const (
	DefaultAPIBaseURL          = "https://api.um.warszawa.pl/api/action/dbtimetable_get"
	DefaultTimetableResourceID = "e923fa0e-d96c-43f9-ae6e-60518c9f3238"
	DefaultLinesResourceID     = "88cd555f-6f31-43ca-9de4-66c479ad5942"
	DefaultStopsResourceID     = "ab75c33d-3a26-4342-b36a-6e5fef0a3ac3"
	DefaultAPITimeout          = 4 * time.Second
	DefaultRequestsPerSecond   = 5
	DefaultCacheDir            = ".kcache"
	DefaultSQLitePath          = ".kcache/departures.db"
	DefaultTimezone            = "Europe/Warsaw"
	DefaultMaxRows             = 10
	DefaultCanvasWidth         = 800
	DefaultCanvasHeight        = 480
	DefaultIconPath            = "icons/tram.png"
	DefaultIconFallbackPath    = "assets/tram.png"
	DefaultOutputPath          = "tram_board.png"
)

// Config is loaded once at startup and passed by value to every component.
type Config struct {
	Env      Environment   `yaml:"env" validate:"oneof=development test production"`
	Mode     string        `yaml:"mode" validate:"required"`
	Verbose  bool          `yaml:"verbose"`
	Timezone string        `yaml:"timezone" validate:"required"`
	MaxRows  int           `yaml:"max_rows" validate:"gt=0"`
	API      APIConfig     `yaml:"api"`
	Cache    CacheConfig   `yaml:"cache"`
	Canvas   CanvasConfig  `yaml:"canvas"`
	Assets   AssetsConfig  `yaml:"assets"`
	Output   OutputConfig  `yaml:"output"`
	Metrics  MetricsConfig `yaml:"metrics"`
	Stops    []StopConfig  `yaml:"stops" validate:"required,min=1,dive"`
}

// APIConfig describes the timetable API collaborator.
type APIConfig struct {
	BaseURL             string        `yaml:"base_url" validate:"required,url"`
	TimetableResourceID string        `yaml:"timetable_resource_id" validate:"required"`
	LinesResourceID     string        `yaml:"lines_resource_id"`
	StopsResourceID     string        `yaml:"stops_resource_id"`
	Key                 string        `yaml:"key"`
	Timeout             time.Duration `yaml:"timeout" validate:"gt=0"`
	RequestsPerSecond   float64       `yaml:"requests_per_second" validate:"gte=0"`
}

// CacheConfig selects the durable departure cache.
type CacheConfig struct {
	Backend        string `yaml:"backend" validate:"oneof=file sqlite"`
	Dir            string `yaml:"dir" validate:"required_if=Backend file"`
	SQLitePath     string `yaml:"sqlite_path" validate:"required_if=Backend sqlite"`
	PruneAfterDays int    `yaml:"prune_after_days" validate:"gte=0"`
}

type CanvasConfig struct {
	Width  int `yaml:"width" validate:"gt=0"`
	Height int `yaml:"height" validate:"gt=0"`
}

// AssetsConfig points at the font and transit-mode icon. An empty FontPath
// uses the embedded Go font.
type AssetsConfig struct {
	FontPath         string `yaml:"font_path"`
	IconPath         string `yaml:"icon_path"`
	IconFallbackPath string `yaml:"icon_fallback_path"`
}

type OutputConfig struct {
	Path string `yaml:"path" validate:"required"`
}

// MetricsConfig enables a node-exporter textfile written after every run.
type MetricsConfig struct {
	Textfile string `yaml:"textfile"`
}

// StopConfig is one watched stop post and the lines shown for it.
type StopConfig struct {
	Label             string   `yaml:"label"`
	StopID            string   `yaml:"stop_id" validate:"required"`
	StopPost          string   `yaml:"stop_post" validate:"required"`
	Lines             []string `yaml:"lines" validate:"required,min=1,dive,required"`
	HorizonMinutes    int      `yaml:"horizon_minutes" validate:"gt=0,gtfield=HideBeforeMinutes"`
	WalkMinutes       int      `yaml:"walk_minutes" validate:"gte=0"`
	HideBeforeMinutes int      `yaml:"hide_before_minutes"`
}

// DisplayLabel is the label drawn on tiles; it defaults to the stop post.
func (s StopConfig) DisplayLabel() string {
	if s.Label != "" {
		return s.Label
	}
	return s.StopPost
}

// IsDebugMode reports whether the board goes to a file.
func (c Config) IsDebugMode() bool {
	return IsDebugMode(c.Mode)
}

// IsDebugMode reports whether mode selects file output. Case and
// surrounding spaces are ignored.
func IsDebugMode(mode string) bool {
	return strings.EqualFold(strings.TrimSpace(mode), ModeDebug)
}

// Location returns the configured time zone, or time.Local if it cannot be loaded.
func (c Config) Location() *time.Location {
	if c.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// ApplyDefaults fills every unset field with its default.
func (c *Config) ApplyDefaults() {
	if c.Env == "" {
		c.Env = Development
	}
	if c.Mode == "" {
		c.Mode = ModeDebug
	}
	if c.Timezone == "" {
		c.Timezone = DefaultTimezone
	}
	if c.MaxRows == 0 {
		c.MaxRows = DefaultMaxRows
	}

	if c.API.BaseURL == "" {
		c.API.BaseURL = DefaultAPIBaseURL
	}
	if c.API.TimetableResourceID == "" {
		c.API.TimetableResourceID = DefaultTimetableResourceID
	}
	if c.API.LinesResourceID == "" {
		c.API.LinesResourceID = DefaultLinesResourceID
	}
	if c.API.StopsResourceID == "" {
		c.API.StopsResourceID = DefaultStopsResourceID
	}
	if c.API.Timeout == 0 {
		c.API.Timeout = DefaultAPITimeout
	}
	if c.API.RequestsPerSecond == 0 {
		c.API.RequestsPerSecond = DefaultRequestsPerSecond
	}

	if c.Cache.Backend == "" {
		c.Cache.Backend = "file"
	}
	if c.Cache.Dir == "" {
		c.Cache.Dir = DefaultCacheDir
	}
	if c.Cache.SQLitePath == "" {
		c.Cache.SQLitePath = DefaultSQLitePath
	}

	if c.Canvas.Width == 0 {
		c.Canvas.Width = DefaultCanvasWidth
	}
	if c.Canvas.Height == 0 {
		c.Canvas.Height = DefaultCanvasHeight
	}

	if c.Assets.IconPath == "" {
		c.Assets.IconPath = DefaultIconPath
	}
	if c.Assets.IconFallbackPath == "" {
		c.Assets.IconFallbackPath = DefaultIconFallbackPath
	}

	if c.Output.Path == "" {
		c.Output.Path = DefaultOutputPath
	}
}

// ApplyEnv overrides credentials and the operating mode from the environment.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	if v, ok := lookup("API_KEY"); ok && v != "" {
		c.API.Key = v
	}
	if v, ok := lookup("TRAM_MODE"); ok && v != "" {
		c.Mode = strings.ToLower(strings.TrimSpace(v))
	}
}

// Package config holds the player settings and reads them with viper.
package config

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"go.uber.org/multierr"
)

// Config is the complete application configuration.
type Config struct {
	Engine  EngineConfig  `mapstructure:"engine"`
	Video   VideoConfig   `mapstructure:"video"`
	UI      UIConfig      `mapstructure:"ui"`
	Discord DiscordConfig `mapstructure:"discord"`
	Log     LogConfig     `mapstructure:"log"`
}

// EngineConfig selects the pipeline backend and how often the position is
// sampled while playing.
type EngineConfig struct {
	Backend      string        `mapstructure:"backend"` // auto, vlc, mpv or beep
	PollInterval time.Duration `mapstructure:"poll_interval"`
}

// VideoConfig controls the video sink. Width, Height and FrameRate only
// apply to the software path.
type VideoConfig struct {
	Accelerated string `mapstructure:"accelerated"` // auto, on or off
	Width       int    `mapstructure:"width"`
	Height      int    `mapstructure:"height"`
	FrameRate   int    `mapstructure:"frame_rate"`
}

// FrameInterval is the time between two software frames.
func (v *VideoConfig) FrameInterval() time.Duration {
	return time.Second / time.Duration(v.FrameRate)
}

type UIConfig struct {
	Theme           string `mapstructure:"theme"` // light or dark
	Width           int    `mapstructure:"width"`
	Height          int    `mapstructure:"height"`
	StartFullscreen bool   `mapstructure:"start_fullscreen"`
}

type DiscordConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	ClientID string `mapstructure:"client_id"`
}

// LogConfig configures logrus. An empty File logs to stderr.
type LogConfig struct {
	Level string `mapstructure:"level"`
	JSON  bool   `mapstructure:"json"`
	File  string `mapstructure:"file"`
}

// Default returns the settings used when nothing is configured.
func Default() *Config {
	return &Config{
		Engine: EngineConfig{
			Backend:      "auto",
			PollInterval: 500 * time.Millisecond,
		},
		Video: VideoConfig{
			Accelerated: "auto",
			Width:       640,
			Height:      360,
			FrameRate:   5,
		},
		UI: UIConfig{
			Theme:  "light",
			Width:  960,
			Height: 600,
		},
		Discord: DiscordConfig{
			Enabled: true,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

var (
	accelerationModes = []string{"auto", "on", "off"}
	themes            = []string{"light", "dark"}
	levels            = []string{"panic", "fatal", "error", "warn", "warning", "info", "debug", "trace"}
)

// Validate reports every setting that is out of range.
func (c *Config) Validate() error {
	var errs []error
	if c.Engine.Backend == "" {
		errs = append(errs, errors.New("engine.backend must not be empty"))
	}
	if c.Engine.PollInterval <= 0 {
		errs = append(errs, fmt.Errorf("engine.poll_interval must be positive, got %s", c.Engine.PollInterval))
	}
	if !slices.Contains(accelerationModes, c.Video.Accelerated) {
		errs = append(errs, fmt.Errorf("video.accelerated must be one of %v, got %q", accelerationModes, c.Video.Accelerated))
	}
	if c.Video.Width <= 0 || c.Video.Height <= 0 {
		errs = append(errs, fmt.Errorf("video size must be positive, got %dx%d", c.Video.Width, c.Video.Height))
	}
	if c.Video.FrameRate <= 0 || c.Video.FrameRate > 60 {
		errs = append(errs, fmt.Errorf("video.frame_rate must be in 1..60, got %d", c.Video.FrameRate))
	}
	if !slices.Contains(themes, c.UI.Theme) {
		errs = append(errs, fmt.Errorf("ui.theme must be light or dark, got %q", c.UI.Theme))
	}
	if c.UI.Width <= 0 || c.UI.Height <= 0 {
		errs = append(errs, fmt.Errorf("ui size must be positive, got %dx%d", c.UI.Width, c.UI.Height))
	}
	if !slices.Contains(levels, c.Log.Level) {
		errs = append(errs, fmt.Errorf("log.level %q is not a logrus level", c.Log.Level))
	}
	return multierr.Combine(errs...)
}

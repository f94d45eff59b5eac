package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
	"github.com/spf13/viper"
)

// Name is used for the config directory, the file name and the
// environment prefix.
const Name = "gemini"

// EnvKeyReplacer maps keys like engine.backend to GEMINI_ENGINE_BACKEND.
var EnvKeyReplacer = strings.NewReplacer(".", "_")

// Dir is where config.toml lives: $XDG_CONFIG_HOME/gemini or the
// platform equivalent.
func Dir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, Name)
	}
	return "."
}

// SetDefaults registers every key of Default on v.
func SetDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("engine.backend", d.Engine.Backend)
	v.SetDefault("engine.poll_interval", d.Engine.PollInterval)
	v.SetDefault("video.accelerated", d.Video.Accelerated)
	v.SetDefault("video.width", d.Video.Width)
	v.SetDefault("video.height", d.Video.Height)
	v.SetDefault("video.frame_rate", d.Video.FrameRate)
	v.SetDefault("ui.theme", d.UI.Theme)
	v.SetDefault("ui.width", d.UI.Width)
	v.SetDefault("ui.height", d.UI.Height)
	v.SetDefault("ui.start_fullscreen", d.UI.StartFullscreen)
	v.SetDefault("discord.enabled", d.Discord.Enabled)
	v.SetDefault("discord.client_id", d.Discord.ClientID)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.json", d.Log.JSON)
	v.SetDefault("log.file", d.Log.File)
}

// Load reads the configuration through fs into v. With an empty path it
// looks for config.toml in Dir() and the working directory, and a missing
// file leaves the defaults in place. An explicit path must exist. Flags
// bound to v before Load override the file.
func Load(v *viper.Viper, fs afero.Fs, path string) (*Config, error) {
	v.SetFs(fs)
	v.SetConfigType("toml")
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(Dir())
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix(Name)
	v.SetEnvKeyReplacer(EnvKeyReplacer)
	v.AutomaticEnv()
	SetDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

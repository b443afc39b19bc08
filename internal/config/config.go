// Package config loads the optional realexport.yaml configuration file
// and environment overrides on top of built-in defaults.
package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config holds the tunable settings of the tool. Everything has a
// working default; the config file and REALEXPORT_* environment
// variables override it.
type Config struct {
	FFmpegPath string `mapstructure:"ffmpeg_path"`

	Vision struct {
		Enabled bool   `mapstructure:"enabled"`
		BaseURL string `mapstructure:"base_url"`
		Port    int    `mapstructure:"port"`
		Model   string `mapstructure:"model"`
	} `mapstructure:"vision"`

	Placement struct {
		CachePath  string  `mapstructure:"cache_path"`
		FaceWeight float64 `mapstructure:"face_weight"`
		BodyWeight float64 `mapstructure:"body_weight"`
		TextWeight float64 `mapstructure:"text_weight"`
	} `mapstructure:"placement"`

	Video struct {
		FramesPerSecond int `mapstructure:"frames_per_second"`
	} `mapstructure:"video"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ffmpeg_path", "ffmpeg")
	v.SetDefault("vision.enabled", false)
	v.SetDefault("vision.base_url", "http://localhost")
	v.SetDefault("vision.port", 11434)
	v.SetDefault("vision.model", "llama3.2-vision:11b")
	v.SetDefault("placement.cache_path", defaultCachePath())
	v.SetDefault("placement.face_weight", 10.0)
	v.SetDefault("placement.body_weight", 5.0)
	v.SetDefault("placement.text_weight", 3.0)
	v.SetDefault("video.frames_per_second", 4)
}

func defaultCachePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "placements.db"
	}
	return filepath.Join(home, ".config", "realexport", "placements.db")
}

// Load reads realexport.yaml from the current directory or
// ~/.config/realexport. A missing file is fine; a malformed one is not.
func Load() (*Config, error) {
	return load("")
}

// LoadFile reads an explicitly named config file.
func LoadFile(path string) (*Config, error) {
	return load(path)
}

func load(explicit string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("REALEXPORT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if explicit != "" {
		v.SetConfigFile(explicit)
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
	} else {
		v.SetConfigName("realexport")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "realexport"))
		}
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, err
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Package config holds render defaults loaded from a yaml file, falling back
// to built-in defaults when no file is present.
package config

import (
	"context"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

type contextKey string

const configKey contextKey = "config"

// Config holds all application configuration
type Config struct {
	TempDir string `yaml:"temp_dir"`

	Video VideoConfig `yaml:"video"`
	Audio AudioConfig `yaml:"audio"`
}

// VideoConfig sets encoder defaults for the video stream.
type VideoConfig struct {
	FPS         float64 `yaml:"fps"`
	Codec       string  `yaml:"codec"`
	CRF         int     `yaml:"crf"`
	Preset      string  `yaml:"preset"`
	Bitrate     string  `yaml:"bitrate"`
	PixelFormat string  `yaml:"pixel_format"`
}

// AudioConfig sets encoder defaults for the audio stream.
type AudioConfig struct {
	SampleRate int    `yaml:"sample_rate"`
	Channels   int    `yaml:"channels"`
	Bitrate    string `yaml:"bitrate"`
}

// Load reads configuration from file or returns defaults
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	if path == "" {
		path = findConfigFile()
	}

	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Save writes configuration to file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

func defaultConfig() *Config {
	return &Config{
		TempDir: os.TempDir(),
		Video: VideoConfig{
			FPS:         24,
			Codec:       "libx264",
			CRF:         23,
			Preset:      "medium",
			PixelFormat: "rgb24",
		},
		Audio: AudioConfig{
			SampleRate: 44100,
			Channels:   2,
			Bitrate:    "192k",
		},
	}
}

func findConfigFile() string {
	candidates := []string{
		"./moviepy.yaml",
		"./moviepy.yml",
		filepath.Join(os.Getenv("HOME"), ".moviepy", "config.yaml"),
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// WithConfig stores config in context
func WithConfig(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, configKey, cfg)
}

// FromContext retrieves config from context
func FromContext(ctx context.Context) *Config {
	if cfg, ok := ctx.Value(configKey).(*Config); ok {
		return cfg
	}
	return defaultConfig()
}

package config

import (
	"os"
	"path/filepath"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigtoml"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
)

// Config describes all configuration options
type Config struct {
	Debug   bool   `env:"DEBUG" toml:"debug" usage:"Print stack traces with errors and enable debug logging"`
	Quiet   bool   `env:"QUIET" toml:"quiet" usage:"Only print warnings and errors"`
	NoColor bool   `env:"NO_COLOR" toml:"no_color" usage:"Disable colour output"`
	Width   int    `env:"WIDTH" toml:"width" usage:"Help output width, 0 detects the terminal width"`
	RunID   string `env:"RUN_ID" toml:"run_id" usage:"Run id shared by nested runx processes"`
	Log     struct {
		Level string `default:"info" env:"LEVEL" toml:"level"`
	} `env:"LOG" toml:"log"`
}

var logLevels = map[string]zerolog.Level{
	"debug":   zerolog.DebugLevel,
	"info":    zerolog.InfoLevel,
	"warn":    zerolog.WarnLevel,
	"warning": zerolog.WarnLevel,
	"error":   zerolog.ErrorLevel,
}

// File returns the path of the user's config file.
func File() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "runx", "config.toml")
}

// Loader initializes an empty config object and returns a new Loader for this object
func Loader() (*Config, *aconfig.Loader) {
	var files []string
	if path := File(); path != "" {
		files = append(files, path)
	}

	cfg := Config{}
	return &cfg, aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "RUNX",
		// command line tokens belong to tasks
		SkipFlags:        true,
		AllowUnknownEnvs: true,
		Files:            files,
		FileDecoders: map[string]aconfig.FileDecoder{
			".toml": aconfigtoml.New(),
		},
	})
}

// Load reads the config file and environment and validates the result.
func Load() (*Config, error) {
	cfg, loader := Loader()
	if err := loader.Load(); err != nil {
		return nil, eris.Wrap(err, "failed to load configuration")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate verifies that all config fields have valid values
func (cfg *Config) Validate() error {
	_, ok := logLevels[cfg.Log.Level]
	if !ok {
		return eris.Errorf(`Invalid value for log.level: %s`, cfg.Log.Level)
	}

	if cfg.Width < 0 {
		return eris.Errorf(`Invalid value for width: %d`, cfg.Width)
	}

	return nil
}

// LogLevel converts the .Log.Level field to a zerolog.Level
func (cfg *Config) LogLevel() zerolog.Level {
	if cfg.Debug {
		return zerolog.DebugLevel
	}
	level := logLevels[cfg.Log.Level]
	if cfg.Quiet && level < zerolog.WarnLevel {
		return zerolog.WarnLevel
	}
	return level
}

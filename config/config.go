// Package config holds the settings shared by every rover-cli command.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/joho/godotenv"
	"github.com/robertmeta/rover-cli/catalog"
	"github.com/robertmeta/rover-cli/controller"
	"github.com/robertmeta/rover-cli/logging"
	"github.com/robertmeta/rover-cli/news"
	"github.com/robertmeta/rover-cli/validate"
)

// AppName names the data directory and default files.
const AppName = "rover-cli"

// DemoKey is the shared, heavily rate limited key of the photo service.
const DemoKey = "DEMO_KEY"

// DefaultCarouselInterval is how long each slide stays up.
const DefaultCarouselInterval = 3 * time.Second

// EnvFiles are loaded in order; a variable already set is never overridden,
// so .env.local wins over .env and the real environment wins over both.
var EnvFiles = []string{".env.local", ".env"}

// Config is the resolved configuration.
type Config struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
	NewsURL string

	DBPath      string
	DownloadDir string

	LogLevel string
	LogFile  string

	MaxImages        int
	MaxSol           int
	DeriveMaxSol     bool
	CarouselInterval time.Duration
}

// Default returns a Config with every field at its default.
func Default() Config {
	dir := DataDir()
	return Config{
		APIKey:           DemoKey,
		BaseURL:          catalog.DefaultBaseURL,
		Timeout:          catalog.DefaultTimeout,
		NewsURL:          news.DefaultFeedURL,
		DBPath:           filepath.Join(dir, AppName+".db"),
		DownloadDir:      filepath.Join(dir, "images"),
		LogLevel:         "info",
		MaxImages:        controller.DefaultMaxImages,
		MaxSol:           validate.MaxSol,
		CarouselInterval: DefaultCarouselInterval,
	}
}

// DataDir returns ~/.config/rover-cli, or the working directory when the
// home directory is unknown.
func DataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", AppName)
}

// DefaultLogFile is the dated log file used by the browser.
func (c Config) DefaultLogFile() string {
	return logging.DefaultFile(filepath.Dir(c.DBPath), time.Now())
}

// Validate checks if the configuration can be used.
func (c Config) Validate() error {
	var errs []error

	if c.APIKey == "" {
		errs = append(errs, errors.New("api key is required"))
	}
	if u, err := url.Parse(c.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("invalid base url %q", c.BaseURL))
	}
	if u, err := url.Parse(c.NewsURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("invalid news url %q", c.NewsURL))
	}
	if c.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("timeout must be positive, got %s", c.Timeout))
	}
	if c.DBPath == "" {
		errs = append(errs, errors.New("database path is required"))
	}
	if c.MaxImages <= 0 {
		errs = append(errs, fmt.Errorf("max images must be positive, got %d", c.MaxImages))
	}
	if c.MaxSol < 0 {
		errs = append(errs, fmt.Errorf("max sol must not be negative, got %d", c.MaxSol))
	}
	if c.CarouselInterval <= 0 {
		errs = append(errs, fmt.Errorf("carousel interval must be positive, got %s", c.CarouselInterval))
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// LoadEnv loads the given .env files, or EnvFiles when none are given.
// Missing files are skipped; it returns the files that were loaded.
func LoadEnv(files ...string) []string {
	if len(files) == 0 {
		files = EnvFiles
	}

	var loaded []string
	for _, f := range files {
		if err := godotenv.Load(f); err == nil {
			loaded = append(loaded, f)
		}
	}
	return loaded
}

// DefaultFile is the optional config file under DataDir.
func DefaultFile() string {
	return filepath.Join(DataDir(), "config.yaml")
}

// fileConfig is the YAML form of Config. Durations are strings such as "10s".
type fileConfig struct {
	APIKey           string `yaml:"api_key"`
	BaseURL          string `yaml:"base_url"`
	Timeout          string `yaml:"timeout"`
	NewsURL          string `yaml:"news_url"`
	DB               string `yaml:"db"`
	DownloadDir      string `yaml:"download_dir"`
	LogLevel         string `yaml:"log_level"`
	LogFile          string `yaml:"log_file"`
	MaxImages        *int   `yaml:"max_images"`
	MaxSol           *int   `yaml:"max_sol"`
	DeriveMaxSol     *bool  `yaml:"derive_max_sol"`
	CarouselInterval string `yaml:"carousel_interval"`
}

// LoadFile returns Default overlaid with the settings in path. A missing
// file is not an error.
func LoadFile(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("failed to read config file: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return cfg, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	setString(&cfg.APIKey, fc.APIKey)
	setString(&cfg.BaseURL, fc.BaseURL)
	setString(&cfg.NewsURL, fc.NewsURL)
	setString(&cfg.DBPath, fc.DB)
	setString(&cfg.DownloadDir, fc.DownloadDir)
	setString(&cfg.LogLevel, fc.LogLevel)
	setString(&cfg.LogFile, fc.LogFile)
	if fc.MaxImages != nil {
		cfg.MaxImages = *fc.MaxImages
	}
	if fc.MaxSol != nil {
		cfg.MaxSol = *fc.MaxSol
	}
	if fc.DeriveMaxSol != nil {
		cfg.DeriveMaxSol = *fc.DeriveMaxSol
	}
	if err := setDuration(&cfg.Timeout, "timeout", fc.Timeout); err != nil {
		return cfg, err
	}
	if err := setDuration(&cfg.CarouselInterval, "carousel_interval", fc.CarouselInterval); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setDuration(dst *time.Duration, name, v string) error {
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", name, v, err)
	}
	*dst = d
	return nil
}

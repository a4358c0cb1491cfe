package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/e5r/devcom/internal/branding"
	"github.com/e5r/devcom/internal/userdata"
)

const (
	fileName = "config"
	fileType = "yaml"
)

// Setting keys.
const (
	KeyCacheCapacity = "cache.capacity"
	KeyVersionsTTL   = "versions.ttl"
	KeyHTTPTimeout   = "http.timeout"
	KeyLogLevel      = "log.level"
)

// Defaults.
const (
	DefaultCacheCapacity = 32
	DefaultVersionsTTL   = 24 * time.Hour
	DefaultHTTPTimeout   = 10 * time.Minute
	DefaultLogLevel      = "warn"
)

// Keys lists the supported setting keys in display order.
var Keys = []string{KeyCacheCapacity, KeyVersionsTTL, KeyHTTPTimeout, KeyLogLevel}

// Settings are the typed values consumed by the engine.
type Settings struct {
	CacheCapacity int
	VersionsTTL   time.Duration
	HTTPTimeout   time.Duration
	LogLevel      string
}

// Dir returns the path to the config directory, which is the user root.
func Dir() string {
	root, err := userdata.GetRoot()
	if err != nil {
		return filepath.Join(".", branding.HomeDir())
	}
	return root
}

// FilePath returns the full path to the config file (~/.dev/config.yaml).
func FilePath() string {
	return filepath.Join(Dir(), fileName+"."+fileType)
}

// EnsureDir creates the config directory if it does not exist.
func EnsureDir() error {
	dir := Dir()
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}
	return nil
}

// Load initializes Viper to read from the config file and environment.
func Load() {
	viper.SetConfigFile(FilePath())
	viper.SetConfigType(fileType)
	viper.SetEnvPrefix(branding.EnvPrefix())
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.SetDefault(KeyCacheCapacity, DefaultCacheCapacity)
	viper.SetDefault(KeyVersionsTTL, DefaultVersionsTTL)
	viper.SetDefault(KeyHTTPTimeout, DefaultHTTPTimeout)
	viper.SetDefault(KeyLogLevel, DefaultLogLevel)

	// Ignore error if config file doesn't exist yet.
	_ = viper.ReadInConfig()
}

// Current returns the typed settings. Non-positive values fall back to
// their defaults.
func Current() Settings {
	s := Settings{
		CacheCapacity: viper.GetInt(KeyCacheCapacity),
		VersionsTTL:   viper.GetDuration(KeyVersionsTTL),
		HTTPTimeout:   viper.GetDuration(KeyHTTPTimeout),
		LogLevel:      viper.GetString(KeyLogLevel),
	}
	if s.CacheCapacity <= 0 {
		s.CacheCapacity = DefaultCacheCapacity
	}
	if s.VersionsTTL <= 0 {
		s.VersionsTTL = DefaultVersionsTTL
	}
	if s.HTTPTimeout <= 0 {
		s.HTTPTimeout = DefaultHTTPTimeout
	}
	if s.LogLevel == "" {
		s.LogLevel = DefaultLogLevel
	}
	return s
}

// Get returns a config value by key. Returns empty string if not set.
func Get(key string) string {
	return viper.GetString(key)
}

// Set writes a config key-value pair and saves the config file.
func Set(key, value string) error {
	if !isKnown(key) {
		return fmt.Errorf("unknown config key %q (valid: %s)", key, strings.Join(Keys, ", "))
	}
	if err := validate(key, value); err != nil {
		return err
	}
	if err := EnsureDir(); err != nil {
		return err
	}

	viper.Set(key, value)

	configFile := FilePath()

	// Create the file if it doesn't exist.
	if _, err := os.Stat(configFile); os.IsNotExist(err) {
		f, err := os.Create(configFile)
		if err != nil {
			return fmt.Errorf("creating config file %s: %w", configFile, err)
		}
		f.Close()
	}

	if err := viper.WriteConfigAs(configFile); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	return nil
}

func isKnown(key string) bool {
	for _, k := range Keys {
		if k == key {
			return true
		}
	}
	return false
}

func validate(key, value string) error {
	switch key {
	case KeyVersionsTTL, KeyHTTPTimeout:
		if _, err := time.ParseDuration(value); err != nil {
			return fmt.Errorf("invalid duration for %s: %w", key, err)
		}
	case KeyCacheCapacity:
		var n int
		if _, err := fmt.Sscanf(value, "%d", &n); err != nil || n <= 0 {
			return fmt.Errorf("invalid value for %s: must be a positive integer", key)
		}
	}
	return nil
}

// Package config manages user preferences stored in ~/.config/snapprof/config.toml.
// Config only supplies defaults for region and benchmark flags; command-line
// flags always win.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds user preferences from ~/.config/snapprof/config.toml.
type Config struct {
	Region             string `mapstructure:"region"               toml:"region"`
	NumSnapshots       int    `mapstructure:"num_snapshots"        toml:"num_snapshots"`
	FileSizeGB         int    `mapstructure:"file_size_gb"         toml:"file_size_gb"`
	OutputFile         string `mapstructure:"output_file"          toml:"output_file"`
	PayloadDir         string `mapstructure:"payload_dir"          toml:"payload_dir"`
	ResultsBucket      string `mapstructure:"results_bucket"       toml:"results_bucket"`
	WaitTimeoutMinutes int    `mapstructure:"wait_timeout_minutes" toml:"wait_timeout_minutes"`
}

// Defaults mirror the benchmark tool's historical flag defaults. The wait
// timeout matches the botocore snapshot_completed waiter (40 x 15s).
const (
	DefaultNumSnapshots       = 1
	DefaultFileSizeGB         = 10
	DefaultOutputFile         = "snapshot_results.csv"
	DefaultPayloadDir         = "/tmp"
	DefaultWaitTimeoutMinutes = 10
)

type validator func(value string) error

var validators = map[string]validator{
	"region":               validateRegion,
	"num_snapshots":        validateNonNegativeInt,
	"file_size_gb":         validateNonNegativeInt,
	"output_file":          validateNonEmpty,
	"payload_dir":          validateNonEmpty,
	"results_bucket":       validateBucketName,
	"wait_timeout_minutes": validateWaitTimeout,
}

// ValidKeys returns the sorted list of valid config key names.
func ValidKeys() []string {
	keys := make([]string, 0, len(validators))
	for k := range validators {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// DefaultConfigDir returns the default config directory path (~/.config/snapprof).
// If SNAPPROF_CONFIG_DIR is set, that value is used instead.
func DefaultConfigDir() string {
	if dir := os.Getenv("SNAPPROF_CONFIG_DIR"); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "snapprof")
	}
	return filepath.Join(home, ".config", "snapprof")
}

// Defaults returns a Config holding only default values.
func Defaults() *Config {
	return &Config{
		NumSnapshots:       DefaultNumSnapshots,
		FileSizeGB:         DefaultFileSizeGB,
		OutputFile:         DefaultOutputFile,
		PayloadDir:         DefaultPayloadDir,
		WaitTimeoutMinutes: DefaultWaitTimeoutMinutes,
	}
}

// Load reads configDir/config.toml and returns a Config with defaults applied
// for any missing keys. A missing file yields all defaults without error.
func Load(configDir string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(configDir)

	v.SetDefault("region", "")
	v.SetDefault("num_snapshots", DefaultNumSnapshots)
	v.SetDefault("file_size_gb", DefaultFileSizeGB)
	v.SetDefault("output_file", DefaultOutputFile)
	v.SetDefault("payload_dir", DefaultPayloadDir)
	v.SetDefault("results_bucket", "")
	v.SetDefault("wait_timeout_minutes", DefaultWaitTimeoutMinutes)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return cfg, nil
}

// Save writes the config to configDir/config.toml, creating the directory
// if it does not exist.
func Save(cfg *Config, configDir string) error {
	if err := os.MkdirAll(configDir, 0o700); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	v := viper.New()
	for _, k := range ValidKeys() {
		val, _ := cfg.Get(k)
		v.Set(k, val)
	}

	path := filepath.Join(configDir, "config.toml")
	if err := v.WriteConfigAs(path); err != nil {
		return err
	}
	return os.Chmod(path, 0o600)
}

// WaitTimeout returns the configured snapshot wait bound.
func (c *Config) WaitTimeout() time.Duration {
	return time.Duration(c.WaitTimeoutMinutes) * time.Minute
}

// Get returns the typed value stored under key.
func (c *Config) Get(key string) (interface{}, error) {
	switch key {
	case "region":
		return c.Region, nil
	case "num_snapshots":
		return c.NumSnapshots, nil
	case "file_size_gb":
		return c.FileSizeGB, nil
	case "output_file":
		return c.OutputFile, nil
	case "payload_dir":
		return c.PayloadDir, nil
	case "results_bucket":
		return c.ResultsBucket, nil
	case "wait_timeout_minutes":
		return c.WaitTimeoutMinutes, nil
	}
	return nil, unknownKeyError(key)
}

// Set validates and applies a single key-value pair to the config.
// Returns an error if the key is unknown or the value fails validation.
func (c *Config) Set(key, value string) error {
	validate, ok := validators[key]
	if !ok {
		return unknownKeyError(key)
	}
	if err := validate(value); err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}

	switch key {
	case "region":
		c.Region = value
	case "num_snapshots":
		c.NumSnapshots, _ = strconv.Atoi(value) // already validated
	case "file_size_gb":
		c.FileSizeGB, _ = strconv.Atoi(value)
	case "output_file":
		c.OutputFile = value
	case "payload_dir":
		c.PayloadDir = value
	case "results_bucket":
		c.ResultsBucket = value
	case "wait_timeout_minutes":
		c.WaitTimeoutMinutes, _ = strconv.Atoi(value)
	}
	return nil
}

func unknownKeyError(key string) error {
	return fmt.Errorf("unknown config key %q; valid keys: %s", key, strings.Join(ValidKeys(), ", "))
}

// regionPattern matches AWS region formats like us-west-2, us-gov-west-1.
var regionPattern = regexp.MustCompile(`^[a-z]{2}(-[a-z]+)+-\d+$`)

// bucketPattern is the general-purpose S3 bucket naming rule.
var bucketPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9.-]{1,61}[a-z0-9]$`)

func validateRegion(value string) error {
	if value == "" {
		return nil // empty clears the region
	}
	if !regionPattern.MatchString(value) {
		return fmt.Errorf("%q does not match AWS region format (e.g., us-west-2)", value)
	}
	return nil
}

func validateNonNegativeInt(value string) error {
	n, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("%q is not a valid integer", value)
	}
	if n < 0 {
		return fmt.Errorf("must be >= 0 (got %d)", n)
	}
	return nil
}

func validateNonEmpty(value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("cannot be empty")
	}
	return nil
}

func validateBucketName(value string) error {
	if value == "" {
		return nil // empty disables upload
	}
	if !bucketPattern.MatchString(value) || strings.Contains(value, "..") {
		return fmt.Errorf("%q is not a valid S3 bucket name", value)
	}
	return nil
}

func validateWaitTimeout(value string) error {
	n, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("%q is not a valid integer", value)
	}
	if n < 1 {
		return fmt.Errorf("must be >= 1 (got %d)", n)
	}
	return nil
}

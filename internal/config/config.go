// Package config resolves finder configuration from environment variable
// tunables, a directory layout rooted at a configurable home, and an
// optional TOML configuration file read via BurntSushi/toml.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

const (
	// EnvHome overrides the default finder home directory.
	EnvHome = "UNEARTH_HOME"

	// EnvRequestTimeout configures the HTTP request timeout.
	EnvRequestTimeout = "UNEARTH_REQUEST_TIMEOUT"

	// EnvIndexCacheTTL configures how long a fetched index page is
	// considered fresh before being refetched.
	EnvIndexCacheTTL = "UNEARTH_INDEX_CACHE_TTL"

	// EnvDownloadCacheSizeLimit configures the maximum size of the
	// on-disk download cache.
	EnvDownloadCacheSizeLimit = "UNEARTH_DOWNLOAD_CACHE_SIZE_LIMIT"

	// EnvRetryMax configures the number of retries for transient network
	// failures (connection errors, 429, 5xx).
	EnvRetryMax = "UNEARTH_RETRY_MAX"

	// DefaultRequestTimeout is the default per-request timeout.
	DefaultRequestTimeout = 30 * time.Second

	// DefaultIndexCacheTTL is the default freshness window for a fetched
	// index page.
	DefaultIndexCacheTTL = 1 * time.Hour

	// DefaultDownloadCacheSizeLimit is the default cap on the download
	// cache (500MB).
	DefaultDownloadCacheSizeLimit = 500 * 1024 * 1024

	// DefaultRetryMax is the default retry count for transient failures.
	DefaultRetryMax = 3
)

// GetRequestTimeout returns the configured request timeout from
// UNEARTH_REQUEST_TIMEOUT. If not set or invalid, returns
// DefaultRequestTimeout. Accepts duration strings like "30s", "1m".
func GetRequestTimeout() time.Duration {
	envValue := os.Getenv(EnvRequestTimeout)
	if envValue == "" {
		return DefaultRequestTimeout
	}

	duration, err := time.ParseDuration(envValue)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: invalid %s value %q, using default %v\n",
			EnvRequestTimeout, envValue, DefaultRequestTimeout)
		return DefaultRequestTimeout
	}

	if duration < 1*time.Second {
		fmt.Fprintf(os.Stderr, "Warning: %s too low (%v), using minimum 1s\n", EnvRequestTimeout, duration)
		return 1 * time.Second
	}
	if duration > 10*time.Minute {
		fmt.Fprintf(os.Stderr, "Warning: %s too high (%v), using maximum 10m\n", EnvRequestTimeout, duration)
		return 10 * time.Minute
	}
	return duration
}

// GetIndexCacheTTL returns the configured index-page cache TTL from
// UNEARTH_INDEX_CACHE_TTL. If not set or invalid, returns
// DefaultIndexCacheTTL.
func GetIndexCacheTTL() time.Duration {
	envValue := os.Getenv(EnvIndexCacheTTL)
	if envValue == "" {
		return DefaultIndexCacheTTL
	}

	duration, err := time.ParseDuration(envValue)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: invalid %s value %q, using default %v\n",
			EnvIndexCacheTTL, envValue, DefaultIndexCacheTTL)
		return DefaultIndexCacheTTL
	}

	if duration < 0 {
		fmt.Fprintf(os.Stderr, "Warning: %s cannot be negative, using default %v\n", EnvIndexCacheTTL, DefaultIndexCacheTTL)
		return DefaultIndexCacheTTL
	}
	if duration > 7*24*time.Hour {
		fmt.Fprintf(os.Stderr, "Warning: %s too high (%v), using maximum 7d\n", EnvIndexCacheTTL, duration)
		return 7 * 24 * time.Hour
	}
	return duration
}

// GetRetryMax returns the configured retry count from UNEARTH_RETRY_MAX.
// If not set or invalid, returns DefaultRetryMax.
func GetRetryMax() int {
	envValue := os.Getenv(EnvRetryMax)
	if envValue == "" {
		return DefaultRetryMax
	}

	n, err := strconv.Atoi(envValue)
	if err != nil || n < 0 {
		fmt.Fprintf(os.Stderr, "Warning: invalid %s value %q, using default %d\n", EnvRetryMax, envValue, DefaultRetryMax)
		return DefaultRetryMax
	}
	if n > 10 {
		fmt.Fprintf(os.Stderr, "Warning: %s too high (%d), using maximum 10\n", EnvRetryMax, n)
		return 10
	}
	return n
}

// ParseByteSize parses a human-readable byte size string into bytes.
// Accepts formats: plain numbers (52428800), KB/K, MB/M, GB/G.
// Case-insensitive. Returns an error for invalid formats.
func ParseByteSize(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty size string")
	}
	s = strings.ToUpper(s)

	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, nil
	}

	var numStr, suffix string
	for i, c := range s {
		if c >= '0' && c <= '9' || c == '.' {
			numStr += string(c)
		} else {
			suffix = s[i:]
			break
		}
	}
	if numStr == "" {
		return 0, fmt.Errorf("invalid size format: %q", s)
	}

	num, err := strconv.ParseFloat(numStr, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid size number: %q", numStr)
	}

	var multiplier float64
	switch suffix {
	case "", "B":
		multiplier = 1
	case "K", "KB":
		multiplier = 1024
	case "M", "MB":
		multiplier = 1024 * 1024
	case "G", "GB":
		multiplier = 1024 * 1024 * 1024
	default:
		return 0, fmt.Errorf("invalid size suffix: %q", suffix)
	}

	return int64(num * multiplier), nil
}

// GetDownloadCacheSizeLimit returns the configured download cache size
// limit from UNEARTH_DOWNLOAD_CACHE_SIZE_LIMIT, defaulting to
// DefaultDownloadCacheSizeLimit.
func GetDownloadCacheSizeLimit() int64 {
	envValue := os.Getenv(EnvDownloadCacheSizeLimit)
	if envValue == "" {
		return DefaultDownloadCacheSizeLimit
	}

	size, err := ParseByteSize(envValue)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: invalid %s value %q, using default %dMB\n",
			EnvDownloadCacheSizeLimit, envValue, DefaultDownloadCacheSizeLimit/(1024*1024))
		return DefaultDownloadCacheSizeLimit
	}

	minSize := int64(1 * 1024 * 1024)
	maxSize := int64(50 * 1024 * 1024 * 1024)
	if size < minSize {
		fmt.Fprintf(os.Stderr, "Warning: %s too low (%d bytes), using minimum 1MB\n", EnvDownloadCacheSizeLimit, size)
		return minSize
	}
	if size > maxSize {
		fmt.Fprintf(os.Stderr, "Warning: %s too high (%d bytes), using maximum 50GB\n", EnvDownloadCacheSizeLimit, size)
		return maxSize
	}
	return size
}

// DefaultHomeOverride can be set by the binary's main package (via
// ldflags) to change the default home directory for dev builds.
// UNEARTH_HOME still takes precedence.
var DefaultHomeOverride string

// Config holds the finder's directory layout and runtime tunables.
type Config struct {
	HomeDir          string // $UNEARTH_HOME
	CacheDir         string // $UNEARTH_HOME/cache
	IndexCacheDir    string // $UNEARTH_HOME/cache/index
	DownloadCacheDir string // $UNEARTH_HOME/cache/downloads
	KeyCacheDir      string // $UNEARTH_HOME/cache/keys (PGP public keys)
	ConfigFile       string // $UNEARTH_HOME/config.toml

	RequestTimeout         time.Duration
	IndexCacheTTL          time.Duration
	DownloadCacheSizeLimit int64
	RetryMax               int
}

// DefaultConfig resolves the default configuration from environment
// variables, falling back to $HOME/.unearth.
func DefaultConfig() (*Config, error) {
	home := os.Getenv(EnvHome)
	if home == "" {
		if DefaultHomeOverride != "" {
			home = DefaultHomeOverride
		} else {
			userHome, err := os.UserHomeDir()
			if err != nil {
				return nil, fmt.Errorf("failed to get user home directory: %w", err)
			}
			home = filepath.Join(userHome, ".unearth")
		}
	}

	return &Config{
		HomeDir:                home,
		CacheDir:               filepath.Join(home, "cache"),
		IndexCacheDir:          filepath.Join(home, "cache", "index"),
		DownloadCacheDir:       filepath.Join(home, "cache", "downloads"),
		KeyCacheDir:            filepath.Join(home, "cache", "keys"),
		ConfigFile:             filepath.Join(home, "config.toml"),
		RequestTimeout:         GetRequestTimeout(),
		IndexCacheTTL:          GetIndexCacheTTL(),
		DownloadCacheSizeLimit: GetDownloadCacheSizeLimit(),
		RetryMax:               GetRetryMax(),
	}, nil
}

// EnsureDirectories creates every directory the finder writes to.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.HomeDir, c.CacheDir, c.IndexCacheDir, c.DownloadCacheDir, c.KeyCacheDir}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}

// FinderConfig is the schema for the optional TOML configuration file,
// giving the same index/find-links/format-control/trusted-host surface
// the CLI flags expose a persistent, file-backed alternative.
type FinderConfig struct {
	IndexURL       string   `toml:"index-url"`
	ExtraIndexURLs []string `toml:"extra-index-url"`
	FindLinks      []string `toml:"find-links"`
	TrustedHosts   []string `toml:"trusted-host"`
	NoBinary       []string `toml:"no-binary"`
	OnlyBinary     []string `toml:"only-binary"`
	PreferBinary   bool     `toml:"prefer-binary"`
	Pre            bool     `toml:"pre"`
}

// LoadFinderConfig reads and parses a TOML finder configuration file.
// A missing file is not an error; it yields a zero-value FinderConfig so
// callers can layer CLI flags on top unconditionally.
func LoadFinderConfig(path string) (*FinderConfig, error) {
	var fc FinderConfig
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return &fc, nil
	}
	if _, err := toml.DecodeFile(path, &fc); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return &fc, nil
}

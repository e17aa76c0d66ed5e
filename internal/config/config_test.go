package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestGetRequestTimeout_Default(t *testing.T) {
	os.Unsetenv(EnvRequestTimeout)
	if got := GetRequestTimeout(); got != DefaultRequestTimeout {
		t.Fatalf("got %v, want %v", got, DefaultRequestTimeout)
	}
}

func TestGetRequestTimeout_FromEnv(t *testing.T) {
	t.Setenv(EnvRequestTimeout, "45s")
	if got := GetRequestTimeout(); got != 45*time.Second {
		t.Fatalf("got %v, want 45s", got)
	}
}

func TestGetRequestTimeout_ClampsLow(t *testing.T) {
	t.Setenv(EnvRequestTimeout, "100ms")
	if got := GetRequestTimeout(); got != 1*time.Second {
		t.Fatalf("got %v, want 1s floor", got)
	}
}

func TestGetRequestTimeout_InvalidFallsBackToDefault(t *testing.T) {
	t.Setenv(EnvRequestTimeout, "not-a-duration")
	if got := GetRequestTimeout(); got != DefaultRequestTimeout {
		t.Fatalf("got %v, want default %v", got, DefaultRequestTimeout)
	}
}

func TestGetRetryMax_Default(t *testing.T) {
	os.Unsetenv(EnvRetryMax)
	if got := GetRetryMax(); got != DefaultRetryMax {
		t.Fatalf("got %d, want %d", got, DefaultRetryMax)
	}
}

func TestGetRetryMax_ClampsHigh(t *testing.T) {
	t.Setenv(EnvRetryMax, "99")
	if got := GetRetryMax(); got != 10 {
		t.Fatalf("got %d, want 10 ceiling", got)
	}
}

func TestParseByteSize(t *testing.T) {
	cases := map[string]int64{
		"52428800": 52428800,
		"50MB":     50 * 1024 * 1024,
		"50M":      50 * 1024 * 1024,
		"1G":       1024 * 1024 * 1024,
		"10K":      10 * 1024,
	}
	for input, want := range cases {
		got, err := ParseByteSize(input)
		if err != nil {
			t.Fatalf("ParseByteSize(%q): unexpected error: %v", input, err)
		}
		if got != want {
			t.Fatalf("ParseByteSize(%q) = %d, want %d", input, got, want)
		}
	}
}

func TestParseByteSize_InvalidSuffix(t *testing.T) {
	if _, err := ParseByteSize("50XB"); err == nil {
		t.Fatal("expected error for invalid suffix")
	}
}

func TestDefaultConfig_DerivesDirectoriesFromHome(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(EnvHome, dir)

	cfg, err := DefaultConfig()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.HomeDir != dir {
		t.Fatalf("HomeDir = %q, want %q", cfg.HomeDir, dir)
	}
	if cfg.DownloadCacheDir != filepath.Join(dir, "cache", "downloads") {
		t.Fatalf("DownloadCacheDir = %q", cfg.DownloadCacheDir)
	}
}

func TestLoadFinderConfig_MissingFileYieldsZeroValue(t *testing.T) {
	fc, err := LoadFinderConfig(filepath.Join(t.TempDir(), "does-not-exist.toml"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fc.IndexURL != "" {
		t.Fatalf("expected zero-value config, got %+v", fc)
	}
}

func TestLoadFinderConfig_ParsesTOML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
index-url = "https://pypi.org/simple/"
extra-index-url = ["https://example.com/simple/"]
trusted-host = ["internal.example.com"]
prefer-binary = true
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	fc, err := LoadFinderConfig(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fc.IndexURL != "https://pypi.org/simple/" {
		t.Fatalf("IndexURL = %q", fc.IndexURL)
	}
	if len(fc.ExtraIndexURLs) != 1 || fc.ExtraIndexURLs[0] != "https://example.com/simple/" {
		t.Fatalf("ExtraIndexURLs = %v", fc.ExtraIndexURLs)
	}
	if !fc.PreferBinary {
		t.Fatal("expected PreferBinary to be true")
	}
}

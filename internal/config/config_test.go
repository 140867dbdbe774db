package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadReturnsDefaults(t *testing.T) {
	cfg, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("Load() unexpected error: %v", err)
	}

	if cfg.Region != "" {
		t.Errorf("Region = %q, want empty string", cfg.Region)
	}
	if cfg.NumSnapshots != 1 {
		t.Errorf("NumSnapshots = %d, want 1", cfg.NumSnapshots)
	}
	if cfg.FileSizeGB != 10 {
		t.Errorf("FileSizeGB = %d, want 10", cfg.FileSizeGB)
	}
	if cfg.OutputFile != "snapshot_results.csv" {
		t.Errorf("OutputFile = %q, want %q", cfg.OutputFile, "snapshot_results.csv")
	}
	if cfg.PayloadDir != "/tmp" {
		t.Errorf("PayloadDir = %q, want %q", cfg.PayloadDir, "/tmp")
	}
	if cfg.WaitTimeout() != 10*time.Minute {
		t.Errorf("WaitTimeout() = %v, want 10m", cfg.WaitTimeout())
	}
}

func TestDefaultsMatchEmptyLoad(t *testing.T) {
	cfg, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if *cfg != *Defaults() {
		t.Errorf("Defaults() = %+v, Load() of empty dir = %+v", *Defaults(), *cfg)
	}
}

func TestSaveAndLoad(t *testing.T) {
	dir := t.TempDir()

	cfg := &Config{
		Region:             "eu-central-1",
		NumSnapshots:       5,
		FileSizeGB:         2,
		OutputFile:         "results.csv",
		PayloadDir:         "/data",
		ResultsBucket:      "snap-results",
		WaitTimeoutMinutes: 30,
	}
	if err := Save(cfg, dir); err != nil {
		t.Fatalf("Save() unexpected error: %v", err)
	}

	loaded, err := Load(dir)
	if err != nil {
		t.Fatalf("Load() unexpected error: %v", err)
	}
	if *loaded != *cfg {
		t.Errorf("loaded = %+v, want %+v", *loaded, *cfg)
	}
}

func TestSaveCreatesDirectoryWithPrivatePermissions(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "config")
	cfg, _ := Load(dir)

	if err := Save(cfg, dir); err != nil {
		t.Fatalf("Save() unexpected error: %v", err)
	}

	info, err := os.Stat(filepath.Join(dir, "config.toml"))
	if err != nil {
		t.Fatalf("config.toml not created: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("config.toml permissions = %o, want 600", perm)
	}
}

func TestLoadRejectsMalformedFile(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "config.toml"), []byte("region = [unterminated"), 0o600); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(dir); err == nil {
		t.Fatal("Load() expected error for malformed TOML, got nil")
	}
}

func TestSetValidation(t *testing.T) {
	tests := []struct {
		key     string
		value   string
		wantErr bool
	}{
		{"region", "us-west-2", false},
		{"region", "us-gov-west-1", false},
		{"region", "", false},
		{"region", "uswest2", true},
		{"num_snapshots", "0", false},
		{"num_snapshots", "25", false},
		{"num_snapshots", "-1", true},
		{"num_snapshots", "many", true},
		{"file_size_gb", "1", false},
		{"file_size_gb", "-4", true},
		{"output_file", "out.csv", false},
		{"output_file", "  ", true},
		{"payload_dir", "/mnt/scratch", false},
		{"payload_dir", "", true},
		{"results_bucket", "", false},
		{"results_bucket", "my-results.bucket", false},
		{"results_bucket", "My_Bucket", true},
		{"results_bucket", "a..b", true},
		{"wait_timeout_minutes", "1", false},
		{"wait_timeout_minutes", "0", true},
	}

	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			cfg := &Config{}
			err := cfg.Set(tt.key, tt.value)
			if tt.wantErr && err == nil {
				t.Fatalf("Set(%q, %q) expected error, got nil", tt.key, tt.value)
			}
			if !tt.wantErr && err != nil {
				t.Fatalf("Set(%q, %q) unexpected error: %v", tt.key, tt.value, err)
			}
		})
	}
}

func TestSetAppliesTypedValues(t *testing.T) {
	cfg := &Config{}
	if err := cfg.Set("num_snapshots", "7"); err != nil {
		t.Fatal(err)
	}
	if err := cfg.Set("results_bucket", "bench-out"); err != nil {
		t.Fatal(err)
	}

	if cfg.NumSnapshots != 7 {
		t.Errorf("NumSnapshots = %d, want 7", cfg.NumSnapshots)
	}
	got, err := cfg.Get("results_bucket")
	if err != nil {
		t.Fatalf("Get() unexpected error: %v", err)
	}
	if got != "bench-out" {
		t.Errorf("Get(results_bucket) = %v, want bench-out", got)
	}
}

func TestSetRejectsUnknownKey(t *testing.T) {
	cfg := &Config{}
	err := cfg.Set("instance_type", "m6i.xlarge")
	if err == nil {
		t.Fatal("expected error for unknown key")
	}
	if !strings.Contains(err.Error(), "valid keys") {
		t.Errorf("error %q should list valid keys", err.Error())
	}
	if _, err := cfg.Get("instance_type"); err == nil {
		t.Error("Get() expected error for unknown key")
	}
}

func TestValidKeys(t *testing.T) {
	want := []string{
		"file_size_gb",
		"num_snapshots",
		"output_file",
		"payload_dir",
		"region",
		"results_bucket",
		"wait_timeout_minutes",
	}
	got := ValidKeys()
	if len(got) != len(want) {
		t.Fatalf("ValidKeys() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("ValidKeys()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestDefaultConfigDirHonoursEnv(t *testing.T) {
	t.Setenv("SNAPPROF_CONFIG_DIR", "/custom/dir")
	if got := DefaultConfigDir(); got != "/custom/dir" {
		t.Errorf("DefaultConfigDir() = %q, want /custom/dir", got)
	}
}

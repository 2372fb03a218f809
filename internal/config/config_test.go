package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func envMap(m map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := m[key]
		return v, ok
	}
}

func TestDefaultServerConfig(t *testing.T) {
	cfg := DefaultServerConfig()
	if cfg.Addr != ":8080" || cfg.LogLevel != "info" || cfg.LogFormat != "text" || cfg.JournalRetention != time.Hour {
		t.Errorf("defaults = %+v", cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults invalid: %v", err)
	}
}

func TestMergeFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "brigade.yaml")
	doc := "addr: \":9090\"\njournal_dir: /var/lib/brigade/journal\njournal_gc_interval: 90s\nseed_menu: true\n"
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := DefaultServerConfig()
	if err := cfg.MergeFile(path); err != nil {
		t.Fatalf("MergeFile: %v", err)
	}
	if cfg.Addr != ":9090" || cfg.JournalDir != "/var/lib/brigade/journal" || !cfg.SeedMenu {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.JournalGCInterval != 90*time.Second {
		t.Errorf("JournalGCInterval = %v, want 90s", cfg.JournalGCInterval)
	}
	// Untouched keys keep their defaults.
	if cfg.LogFormat != "text" {
		t.Errorf("LogFormat = %q, want default", cfg.LogFormat)
	}
}

func TestMergeFile_Errors(t *testing.T) {
	cfg := DefaultServerConfig()
	if err := cfg.MergeFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	os.WriteFile(bad, []byte("addr: [unterminated"), 0o644)
	if err := cfg.MergeFile(bad); err == nil {
		t.Error("expected error for malformed YAML")
	}
}

func TestApplyEnv(t *testing.T) {
	cfg := DefaultServerConfig()
	err := cfg.ApplyEnv(envMap(map[string]string{
		"BRIGADE_ADDR":                ":7000",
		"BRIGADE_LOG_LEVEL":           "debug",
		"BRIGADE_DB_PATH":             ":memory:",
		"BRIGADE_JOURNAL_GC_INTERVAL": "1m",
		"BRIGADE_JOURNAL_RETENTION":   "30m",
		"BRIGADE_SEED_MENU":           "true",
		"BRIGADE_LOG_FORMAT":          "",
	}))
	if err != nil {
		t.Fatalf("ApplyEnv: %v", err)
	}
	if cfg.Addr != ":7000" || cfg.LogLevel != "debug" || cfg.DBPath != ":memory:" {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.JournalGCInterval != time.Minute || cfg.JournalRetention != 30*time.Minute || !cfg.SeedMenu {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.LogFormat != "text" {
		t.Errorf("empty variable overrode LogFormat: %q", cfg.LogFormat)
	}
}

func TestApplyEnv_Invalid(t *testing.T) {
	tests := map[string]string{
		"BRIGADE_JOURNAL_GC_INTERVAL": "soon",
		"BRIGADE_JOURNAL_RETENTION":   "forever",
		"BRIGADE_SEED_MENU":           "maybe",
	}
	for key, val := range tests {
		cfg := DefaultServerConfig()
		if err := cfg.ApplyEnv(envMap(map[string]string{key: val})); err == nil {
			t.Errorf("%s=%q: expected error", key, val)
		}
	}
}

func TestLoad_FileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "brigade.yaml")
	os.WriteFile(path, []byte("addr: \":9090\"\nlog_level: warn\n"), 0o644)
	t.Setenv("BRIGADE_LOG_LEVEL", "error")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Addr != ":9090" {
		t.Errorf("Addr = %q, want file value", cfg.Addr)
	}
	if cfg.LogLevel != "error" {
		t.Errorf("LogLevel = %q, want env to win over file", cfg.LogLevel)
	}
}

func TestValidate(t *testing.T) {
	cfg := DefaultServerConfig()
	cfg.JournalGCInterval = 0
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for zero GC interval")
	}
	cfg = DefaultServerConfig()
	cfg.JournalRetention = -time.Minute
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for negative retention")
	}
	cfg = DefaultServerConfig()
	cfg.Addr = ""
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for empty addr")
	}
}

func TestResolvePaths(t *testing.T) {
	home := filepath.Join("/home", "chef")
	tests := []struct {
		name        string
		db, journal string
		wantDB      string
		wantJournal string
	}{
		{"defaults side by side", "", "", "/home/chef/.brigade/brigade.db", "/home/chef/.brigade/journal"},
		{"explicit paths kept", "/srv/k.db", "/srv/journal", "/srv/k.db", "/srv/journal"},
		{"memory kept", MemoryPath, MemoryPath, MemoryPath, MemoryPath},
		{"only journal defaulted", "/srv/k.db", "", "/srv/k.db", "/home/chef/.brigade/journal"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultServerConfig()
			cfg.DBPath, cfg.JournalDir = tt.db, tt.journal
			cfg.ResolvePaths(home)
			if cfg.DBPath != filepath.FromSlash(tt.wantDB) || cfg.JournalDir != filepath.FromSlash(tt.wantJournal) {
				t.Errorf("paths = (%q, %q), want (%q, %q)", cfg.DBPath, cfg.JournalDir, tt.wantDB, tt.wantJournal)
			}
		})
	}
}

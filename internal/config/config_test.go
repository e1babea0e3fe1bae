package config

import (
	"encoding/json"
	"flag"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"
)

func skipIfNotUnix(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip(
			"skipping: Unix permissions not reliable on Windows",
		)
	}
	if os.Getuid() == 0 {
		t.Skip(
			"skipping: running as root bypasses permissions",
		)
	}
}

// setupConfigDir creates a temp data dir, sets the env var,
// and returns (dir, configPath).
func setupConfigDir(t *testing.T) (string, string) {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("PULSEVIEW_DATA_DIR", dir)
	return dir, filepath.Join(dir, "config.json")
}

func writeConfig(t *testing.T, dir string, data any) {
	t.Helper()
	b, err := json.Marshal(data)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "config.json"), b, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func loadConfigFromFlags(t *testing.T, args ...string) (Config, error) {
	t.Helper()
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	RegisterServeFlags(fs)
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	return Load(fs)
}

func TestLoadEnv_OverridesDataDir(t *testing.T) {
	custom, _ := setupConfigDir(t)

	cfg, err := Default()
	if err != nil {
		t.Fatal(err)
	}
	cfg.loadEnv()

	if cfg.DataDir != custom {
		t.Errorf(
			"DataDir = %q, want %q", cfg.DataDir, custom,
		)
	}
}

func TestLoadEnv_SpoolDirBecomesSingleElement(t *testing.T) {
	setupConfigDir(t)
	spool := t.TempDir()
	t.Setenv("PULSEVIEW_SPOOL_DIR", spool)

	cfg, err := LoadMinimal()
	if err != nil {
		t.Fatal(err)
	}

	dirs := cfg.ResolveSpoolDirs()
	if len(dirs) != 1 || dirs[0] != spool {
		t.Errorf("ResolveSpoolDirs = %v, want [%s]", dirs, spool)
	}
}

func TestLoadEnv_IdleCutoff(t *testing.T) {
	setupConfigDir(t)
	t.Setenv("PULSEVIEW_IDLE_CUTOFF", "5m")

	cfg, err := LoadMinimal()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.IdleCutoff != 5*time.Minute {
		t.Errorf("IdleCutoff = %v, want 5m", cfg.IdleCutoff)
	}

	t.Setenv("PULSEVIEW_IDLE_CUTOFF", "garbage")
	cfg, err = LoadMinimal()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.IdleCutoff != 2*time.Minute {
		t.Errorf(
			"IdleCutoff = %v, want default 2m on bad value",
			cfg.IdleCutoff,
		)
	}
}

func TestLoadFile_AppliesValues(t *testing.T) {
	dir, _ := setupConfigDir(t)
	writeConfig(t, dir, map[string]any{
		"host":                "0.0.0.0",
		"port":                9000,
		"timezone":            "Asia/Tokyo",
		"idle_cutoff_seconds": 300,
		"spool_dirs":          []string{"/srv/spool/a", "/srv/spool/b"},
	})

	cfg, err := LoadMinimal()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Host != "0.0.0.0" {
		t.Errorf("Host = %q, want %q", cfg.Host, "0.0.0.0")
	}
	if cfg.Port != 9000 {
		t.Errorf("Port = %d, want 9000", cfg.Port)
	}
	if cfg.Timezone != "Asia/Tokyo" {
		t.Errorf("Timezone = %q, want Asia/Tokyo", cfg.Timezone)
	}
	if cfg.IdleCutoff != 5*time.Minute {
		t.Errorf("IdleCutoff = %v, want 5m", cfg.IdleCutoff)
	}
	if got := cfg.ResolveSpoolDirs(); len(got) != 2 {
		t.Errorf("ResolveSpoolDirs = %v, want two entries", got)
	}
}

func TestLoadFile_EnvWinsOverFileSpoolDirs(t *testing.T) {
	dir, _ := setupConfigDir(t)
	writeConfig(t, dir, map[string]any{
		"spool_dirs": []string{"/srv/spool/from-file"},
	})
	t.Setenv("PULSEVIEW_SPOOL_DIR", "/srv/spool/from-env")

	cfg, err := LoadMinimal()
	if err != nil {
		t.Fatal(err)
	}
	got := cfg.ResolveSpoolDirs()
	if len(got) != 1 || got[0] != "/srv/spool/from-env" {
		t.Errorf(
			"ResolveSpoolDirs = %v, want [/srv/spool/from-env]",
			got,
		)
	}
}

func TestLoadFile_EnvTimezoneBeatsFile(t *testing.T) {
	dir, _ := setupConfigDir(t)
	writeConfig(t, dir, map[string]any{
		"timezone": "Asia/Tokyo",
	})
	t.Setenv("PULSEVIEW_TIMEZONE", "Europe/Paris")

	cfg, err := LoadMinimal()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Timezone != "Europe/Paris" {
		t.Errorf(
			"Timezone = %q, want env value Europe/Paris",
			cfg.Timezone,
		)
	}
}

func TestLoad_AppliesExplicitFlags(t *testing.T) {
	setupConfigDir(t)
	cfg, err := loadConfigFromFlags(t, "-host", "0.0.0.0", "-port", "9090")
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Host != "0.0.0.0" {
		t.Errorf("Host = %q, want %q", cfg.Host, "0.0.0.0")
	}
	if cfg.Port != 9090 {
		t.Errorf("Port = %d, want %d", cfg.Port, 9090)
	}
}

func TestLoad_FlagsBeatFile(t *testing.T) {
	dir, _ := setupConfigDir(t)
	writeConfig(t, dir, map[string]any{"port": 9000})

	cfg, err := loadConfigFromFlags(t, "-port", "9191")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Port != 9191 {
		t.Errorf("Port = %d, want flag value 9191", cfg.Port)
	}
}

func TestLoad_DefaultsWithoutFlags(t *testing.T) {
	setupConfigDir(t)
	cfg, err := loadConfigFromFlags(t)
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Host != "127.0.0.1" {
		t.Errorf(
			"Host = %q, want default %q",
			cfg.Host, "127.0.0.1",
		)
	}
	if cfg.Port != 8090 {
		t.Errorf(
			"Port = %d, want default %d", cfg.Port, 8090,
		)
	}
	if cfg.IdleCutoff != 2*time.Minute {
		t.Errorf("IdleCutoff = %v, want default 2m", cfg.IdleCutoff)
	}
}

func TestLoad_NilFlagSet(t *testing.T) {
	setupConfigDir(t)
	cfg, err := Load(nil)
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Host != "127.0.0.1" {
		t.Errorf("Host = %q, want %q", cfg.Host, "127.0.0.1")
	}
}

func TestSaveSpoolDirs_RejectsCorruptConfig(t *testing.T) {
	tmp := t.TempDir()
	cfg := Config{DataDir: tmp}

	path := filepath.Join(tmp, "config.json")
	if err := os.WriteFile(
		path, []byte("not json"), 0o600,
	); err != nil {
		t.Fatal(err)
	}

	if err := cfg.SaveSpoolDirs([]string{"/srv/spool"}); err == nil {
		t.Fatal("expected error for corrupt config")
	}
}

func TestSaveSpoolDirs_ReturnsErrorOnReadFailure(t *testing.T) {
	skipIfNotUnix(t)

	tmp := t.TempDir()
	cfg := Config{DataDir: tmp}

	path := filepath.Join(tmp, "config.json")
	if err := os.WriteFile(
		path, []byte(`{"k":"v"}`), 0o000,
	); err != nil {
		t.Fatal(err)
	}

	err := cfg.SaveSpoolDirs([]string{"/srv/spool"})
	if err == nil {
		t.Fatal("expected error for unreadable config file")
	}
	if !strings.Contains(err.Error(), "reading config file") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestSaveSpoolDirs_PreservesExistingKeys(t *testing.T) {
	tmp := t.TempDir()
	cfg := Config{DataDir: tmp}

	writeConfig(t, tmp, map[string]any{"timezone": "UTC"})

	if err := cfg.SaveSpoolDirs([]string{"/srv/spool"}); err != nil {
		t.Fatal(err)
	}

	got, err := os.ReadFile(filepath.Join(tmp, "config.json"))
	if err != nil {
		t.Fatal(err)
	}
	var result map[string]any
	if err := json.Unmarshal(got, &result); err != nil {
		t.Fatal(err)
	}
	if result["timezone"] != "UTC" {
		t.Errorf(
			"timezone = %v, want %q", result["timezone"], "UTC",
		)
	}
	dirs, ok := result["spool_dirs"].([]any)
	if !ok || len(dirs) != 1 || dirs[0] != "/srv/spool" {
		t.Errorf("spool_dirs = %v, want [/srv/spool]", result["spool_dirs"])
	}
}

func TestResolveDataDir_DefaultAndEnvOverride(t *testing.T) {
	dir, err := ResolveDataDir()
	if err != nil {
		t.Fatal(err)
	}
	if dir == "" {
		t.Error("ResolveDataDir returned empty string")
	}

	custom := t.TempDir()
	t.Setenv("PULSEVIEW_DATA_DIR", custom)
	dir, err = ResolveDataDir()
	if err != nil {
		t.Fatal(err)
	}
	if dir != custom {
		t.Errorf("ResolveDataDir = %q, want %q", dir, custom)
	}
}

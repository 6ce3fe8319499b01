package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if cfg.Storage.Driver != DriverSQLite {
		t.Fatalf("driver = %q", cfg.Storage.Driver)
	}
	if cfg.Activity.MaxEntries != 1000 || cfg.Deadlines.WindowDays != 30 {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.Storage.SnapshotKey != "sc-launch-control-data" || cfg.Storage.LogKey != "sc-launch-control-log" {
		t.Fatalf("unexpected keys: %+v", cfg.Storage)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
}

func TestPartialYAMLKeepsDefaults(t *testing.T) {
	cfg, err := FromYAML([]byte("storage:\n  driver: memory\n"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Storage.Driver != DriverMemory {
		t.Fatalf("driver = %q", cfg.Storage.Driver)
	}
	if cfg.Storage.LogKey != "sc-launch-control-log" || cfg.Deadlines.WindowDays != 30 {
		t.Fatalf("defaults lost: %+v", cfg)
	}
}

func TestValidateRejects(t *testing.T) {
	cases := map[string]string{
		"driver":   "storage:\n  driver: postgres\n",
		"redis":    "storage:\n  driver: redis\n  redis_addr: \"\"\n",
		"keys":     "storage:\n  snapshot_key: same\n  log_key: same\n",
		"max":      "activity:\n  max_entries: -1\n",
		"window":   "deadlines:\n  window_days: -5\n",
		"schedule": "digest:\n  schedule: \"every tuesday\"\n",
		"date":     "project:\n  launch_date: april\n",
	}
	for name, doc := range cases {
		if _, err := FromYAML([]byte(doc)); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestLoadOptionalAndLoad(t *testing.T) {
	dir := t.TempDir()
	cfg, err := LoadOptional(dir)
	if err != nil || cfg == nil {
		t.Fatalf("load optional: %v", err)
	}
	if _, err := Load(dir); err == nil || !strings.Contains(err.Error(), "lb config init") {
		t.Fatalf("expected missing config error, got %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "launchboard.yml"), []byte(GenerateDefault("Apollo")), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err = Load(dir)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Project.Name != "Apollo" {
		t.Fatalf("name = %q", cfg.Project.Name)
	}
	if Path("") != "launchboard.yml" {
		t.Fatalf("path = %q", Path(""))
	}
}

func TestYAMLRoundTrip(t *testing.T) {
	cfg := Default()
	cfg.Digest.Schedule = "0 8 * * 1-5"
	data, err := cfg.YAML()
	if err != nil {
		t.Fatal(err)
	}
	back, err := FromYAML(data)
	if err != nil {
		t.Fatal(err)
	}
	if back.Digest.Schedule != "0 8 * * 1-5" || back.Storage != cfg.Storage {
		t.Fatalf("round trip mismatch: %+v", back)
	}
}

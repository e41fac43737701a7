package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfigIsValidYAML(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Defaults.MaxTTL != 30 {
		t.Fatalf("MaxTTL = %d, want 30", cfg.Defaults.MaxTTL)
	}
	if cfg.Defaults.ProbeMethod != "icmp" {
		t.Fatalf("ProbeMethod = %q, want icmp", cfg.Defaults.ProbeMethod)
	}
}

func TestSaveToThenLoadFromRoundTrips(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "trippy.yaml")

	cfg := DefaultConfig()
	cfg.Defaults.MaxTTL = 16
	cfg.Aliases["cf"] = "1.1.1.1"

	if err := cfg.SaveTo(path); err != nil {
		t.Fatalf("SaveTo: %v", err)
	}

	loaded, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	if loaded.Defaults.MaxTTL != 16 {
		t.Fatalf("MaxTTL = %d, want 16", loaded.Defaults.MaxTTL)
	}
	if loaded.Aliases["cf"] != "1.1.1.1" {
		t.Fatalf("alias cf = %q, want 1.1.1.1", loaded.Aliases["cf"])
	}
}

func TestLoadFromMissingFileErrors(t *testing.T) {
	if _, err := LoadFrom(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("LoadFrom accepted a nonexistent path")
	}
}

func TestGenerateExampleParsesAsYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "trippy.yaml")

	if err := os.WriteFile(path, []byte(GenerateExample()), 0644); err != nil {
		t.Fatalf("os.WriteFile: %v", err)
	}

	if _, err := LoadFrom(path); err != nil {
		t.Fatalf("LoadFrom(GenerateExample()): %v", err)
	}
}

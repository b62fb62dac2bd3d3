package config

import (
	"os"
	"path/filepath"
	"testing"
)

func isolate(t *testing.T) {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	wd, _ := os.Getwd()
	if err := os.Chdir(t.TempDir()); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Chdir(wd) })
}

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if !cfg.Extract.QualityFilter || cfg.Extract.Workers != 1 || cfg.Output.Format != "parquet" {
		t.Errorf("Unexpected defaults %+v", cfg.Extract)
	}
}

func TestLoad_FileOverridesOnlyPresentKeys(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "run.yaml")
	body := "extract:\n  product: L2A\n  quality_filter: false\noutput:\n  compression: zstd\n"
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}

	m := NewManager()
	if err := m.Load(path); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	cfg := m.Get()
	if cfg.Extract.Product != "L2A" || cfg.Extract.QualityFilter {
		t.Errorf("File values not applied: %+v", cfg.Extract)
	}
	if cfg.Extract.MonthMax != 12 || cfg.Output.Format != "parquet" || cfg.Output.Compression != "zstd" {
		t.Errorf("Defaults lost: %+v %+v", cfg.Extract, cfg.Output)
	}
	if got := m.GetPaths(); len(got) != 1 || got[0] != path {
		t.Errorf("Unexpected loaded paths %v", got)
	}
}

func TestLoad_ProjectFile(t *testing.T) {
	isolate(t)
	if err := os.WriteFile(".gedixr.yaml", []byte("extract:\n  workers: 4\n"), 0644); err != nil {
		t.Fatal(err)
	}
	m := NewManager()
	if err := m.Load(); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if m.Get().Extract.Workers != 4 {
		t.Errorf("Expected workers=4, got %d", m.Get().Extract.Workers)
	}
}

func TestLoad_EnvOverridesFiles(t *testing.T) {
	isolate(t)
	t.Setenv("GEDIXR_PRODUCT", "L2A")
	t.Setenv("GEDIXR_QUALITY_FILTER", "false")
	t.Setenv("GEDIXR_MONTH_MIN", "6")
	t.Setenv("GEDIXR_VARIABLES", "rh50=rh50,pai=pai")

	m := NewManager()
	if err := m.Load(); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	cfg := m.Get()
	if cfg.Extract.Product != "L2A" || cfg.Extract.QualityFilter || cfg.Extract.MonthMin != 6 {
		t.Errorf("Env not applied: %+v", cfg.Extract)
	}
	if len(cfg.Extract.Variables) != 2 {
		t.Errorf("Expected 2 variables, got %v", cfg.Extract.Variables)
	}
}

func TestLoad_InvalidEnv(t *testing.T) {
	isolate(t)
	t.Setenv("GEDIXR_WORKERS", "many")
	if err := NewManager().Load(); err == nil {
		t.Error("Expected error for invalid integer")
	}
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	isolate(t)
	if err := NewManager().Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("Expected error for missing --config file")
	}
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Extract.MonthMax = 13
	if err := cfg.Validate(); err == nil {
		t.Error("Expected month range error")
	}
	cfg = Default()
	cfg.Publish.S3.Enabled = true
	if err := cfg.Validate(); err == nil {
		t.Error("Expected missing bucket error")
	}
}

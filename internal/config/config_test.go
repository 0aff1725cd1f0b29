package config

import (
	"os"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Resource.CPULimitSec != 30 {
		t.Errorf("CPULimitSec = %d, want 30", cfg.Resource.CPULimitSec)
	}
	if cfg.Resource.MemoryLimitMB != 512 {
		t.Errorf("MemoryLimitMB = %d, want 512", cfg.Resource.MemoryLimitMB)
	}
	if cfg.Helpers.DisableCallbacks {
		t.Errorf("DisableCallbacks = true, want false by default")
	}
}

func TestLoadEnvOverride(t *testing.T) {
	os.Setenv("RECURSE_RESOURCE_CPU_LIMIT_SEC", "5")
	defer os.Unsetenv("RECURSE_RESOURCE_CPU_LIMIT_SEC")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Resource.CPULimitSec != 5 {
		t.Errorf("CPULimitSec = %d, want 5 from env override", cfg.Resource.CPULimitSec)
	}
}

func TestLoadEnvOverrideShortNames(t *testing.T) {
	os.Setenv("RECURSE_CPU_LIMIT_SEC", "10")
	os.Setenv("RECURSE_MEMORY_LIMIT_MB", "256")
	defer os.Unsetenv("RECURSE_CPU_LIMIT_SEC")
	defer os.Unsetenv("RECURSE_MEMORY_LIMIT_MB")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Resource.CPULimitSec != 10 {
		t.Errorf("CPULimitSec = %d, want 10 from RECURSE_CPU_LIMIT_SEC", cfg.Resource.CPULimitSec)
	}
	if cfg.Resource.MemoryLimitMB != 256 {
		t.Errorf("MemoryLimitMB = %d, want 256 from RECURSE_MEMORY_LIMIT_MB", cfg.Resource.MemoryLimitMB)
	}
}

package config

import "testing"

func TestDefaultMatchesRetryBudgetProperty(t *testing.T) {
	cfg := Default()
	if cfg.RetryConfig.MaxRetries != 3 || cfg.RetryConfig.BaseDelayMs != 100 ||
		cfg.RetryConfig.MaxDelayMs != 1000 || cfg.RetryConfig.BackoffFactor != 2.0 {
		t.Errorf("RetryConfig = %+v, want the spec's default retry budget", cfg.RetryConfig)
	}
}

func TestLoadReturnsDefaultsWhenFileMissing(t *testing.T) {
	dir := t.TempDir()
	cfg := Load(dir)
	if cfg.DataDir != dir {
		t.Errorf("DataDir = %q, want %q", cfg.DataDir, dir)
	}
	if cfg.QueueConfig.Workers != 4 {
		t.Errorf("QueueConfig.Workers = %d, want 4", cfg.QueueConfig.Workers)
	}
}

func TestSaveThenLoadRoundTrips(t *testing.T) {
	dir := t.TempDir()
	cfg := Default()
	cfg.DataDir = dir
	cfg.DebugMode = true
	cfg.QueueConfig.Workers = 8

	if err := Save(cfg); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded := Load(dir)
	if !loaded.DebugMode || loaded.QueueConfig.Workers != 8 {
		t.Errorf("loaded = %+v, want DebugMode=true Workers=8", loaded)
	}
}

func TestEndpointsPreservesFailoverOrder(t *testing.T) {
	cfg := Default()
	eps := cfg.Endpoints()
	if len(eps) != len(cfg.Servers) {
		t.Fatalf("len(eps) = %d, want %d", len(eps), len(cfg.Servers))
	}
	for i, s := range cfg.Servers {
		if string(eps[i].Protocol) != s.Protocol || eps[i].Addr != s.Addr {
			t.Errorf("eps[%d] = %+v, want protocol=%s addr=%s", i, eps[i], s.Protocol, s.Addr)
		}
	}
}


package config

import "testing"

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Synthesis.ChunkWords != 120 {
		t.Fatalf("expected default chunk budget 120, got %d", cfg.Synthesis.ChunkWords)
	}
	if cfg.Synthesis.CallsPerMinute != 58 {
		t.Fatalf("expected default calls per minute 58, got %d", cfg.Synthesis.CallsPerMinute)
	}
	if cfg.Bus.Servers[0] != "nats://localhost:4222" {
		t.Fatalf("expected default server, got %v", cfg.Bus.Servers)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("FASTTTS_SYNTHESIS_MODE", "minimax")
	t.Setenv("FASTTTS_SYNTHESIS_API_KEY", "key-123")
	t.Setenv("FASTTTS_SYNTHESIS_GROUP_ID", "group-456")
	t.Setenv("FASTTTS_SYNTHESIS_CHUNK_WORDS", "80")
	t.Setenv("FASTTTS_SYNTHESIS_CALLS_PER_MINUTE", "30")
	t.Setenv("FASTTTS_SYNTHESIS_SPEED", "1.2")
	t.Setenv("FASTTTS_ALIGNMENT_ENABLED", "false")
	t.Setenv("FASTTTS_BUS_SERVERS", "nats://one:4222, nats://two:4222")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Synthesis.Mode != "minimax" {
		t.Fatalf("expected mode override, got %s", cfg.Synthesis.Mode)
	}
	if cfg.Synthesis.APIKey != "key-123" || cfg.Synthesis.GroupID != "group-456" {
		t.Fatal("expected credential overrides")
	}
	if cfg.Synthesis.ChunkWords != 80 {
		t.Fatalf("expected chunk words 80, got %d", cfg.Synthesis.ChunkWords)
	}
	if cfg.Synthesis.CallsPerMinute != 30 {
		t.Fatalf("expected calls per minute 30, got %d", cfg.Synthesis.CallsPerMinute)
	}
	if cfg.Synthesis.Speed != 1.2 {
		t.Fatalf("expected speed 1.2, got %v", cfg.Synthesis.Speed)
	}
	if cfg.Alignment.Enabled {
		t.Fatal("expected alignment disabled")
	}
	if len(cfg.Bus.Servers) != 2 {
		t.Fatalf("expected 2 servers, got %v", cfg.Bus.Servers)
	}
}

func TestValidateRejectsMinimaxWithoutCredentials(t *testing.T) {
	t.Setenv("FASTTTS_SYNTHESIS_MODE", "minimax")

	if _, err := Load(""); err == nil {
		t.Fatal("expected validation error for missing credentials")
	}
}

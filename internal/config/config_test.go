package config

import "testing"

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Session.Voice != "Algenib" {
		t.Fatalf("expected default voice Algenib, got %q", cfg.Session.Voice)
	}
	if cfg.Synthesis.SampleRate != 24000 || cfg.Synthesis.Channels != 1 || cfg.Synthesis.BitDepth != 16 {
		t.Fatalf("unexpected synthesis defaults: %+v", cfg.Synthesis)
	}
	if cfg.Bus.Servers[0] != "nats://localhost:4222" {
		t.Fatalf("expected default server, got %v", cfg.Bus.Servers)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("BLOOM_SESSION_VOICE", "Puck")
	t.Setenv("BLOOM_SESSION_GENERATE_TIMEOUT_MS", "15000")
	t.Setenv("BLOOM_BUS_SERVERS", "nats://one:4222, nats://two:4222")
	t.Setenv("BLOOM_BUS_USERNAME", "alice")
	t.Setenv("BLOOM_BUS_PASSWORD", "secret")
	t.Setenv("BLOOM_SYNTHESIS_SAMPLE_RATE", "22050")
	t.Setenv("BLOOM_STORE_PATH", "./tmp.db")
	t.Setenv("BLOOM_STORE_RETENTION_MODE", "persistent")
	t.Setenv("BLOOM_MODERATION_ENABLED", "false")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Session.Voice != "Puck" {
		t.Fatalf("expected voice override, got %q", cfg.Session.Voice)
	}
	if cfg.Session.GenerateTimeout != 15000 {
		t.Fatalf("expected generate timeout override, got %d", cfg.Session.GenerateTimeout)
	}
	if len(cfg.Bus.Servers) != 2 {
		t.Fatalf("expected 2 servers, got %v", cfg.Bus.Servers)
	}
	if cfg.Bus.Username != "alice" || cfg.Bus.Password != "secret" {
		t.Fatalf("expected credentials override")
	}
	if cfg.Synthesis.SampleRate != 22050 {
		t.Fatalf("expected sample rate override, got %d", cfg.Synthesis.SampleRate)
	}
	if cfg.Store.Path != "./tmp.db" {
		t.Fatalf("expected store path override")
	}
	if cfg.Store.RetentionMode != "persistent" {
		t.Fatalf("expected retention mode override")
	}
	if cfg.Moderation.Enabled {
		t.Fatalf("expected moderation disabled")
	}
}

func TestValidateRejectsBadSynthesis(t *testing.T) {
	cfg := Default()
	cfg.Synthesis.BitDepth = 12
	if err := validate(cfg); err == nil {
		t.Fatal("expected error for invalid bit depth")
	}
	cfg = Default()
	cfg.Synthesis.Mode = "exec"
	if err := validate(cfg); err == nil {
		t.Fatal("expected error for exec mode without command")
	}
}

package config

import (
	"testing"
	"time"
)

func TestLoadServerConfigDefaults(t *testing.T) {
	t.Setenv("PORT", "")

	cfg, err := loadServerConfig()
	if err != nil {
		t.Fatalf("loadServerConfig err: %v", err)
	}
	if cfg.Addr != ":8080" {
		t.Fatalf("unexpected addr: %q", cfg.Addr)
	}
}

func TestLoadServerConfigBarePort(t *testing.T) {
	t.Setenv("PORT", "9000")

	cfg, err := loadServerConfig()
	if err != nil {
		t.Fatalf("loadServerConfig err: %v", err)
	}
	if cfg.Addr != ":9000" {
		t.Fatalf("unexpected addr: %q", cfg.Addr)
	}
}

func TestLoadServerConfigFullAddr(t *testing.T) {
	t.Setenv("PORT", "127.0.0.1:9000")

	cfg, err := loadServerConfig()
	if err != nil {
		t.Fatalf("loadServerConfig err: %v", err)
	}
	if cfg.Addr != "127.0.0.1:9000" {
		t.Fatalf("unexpected addr: %q", cfg.Addr)
	}
}

func TestLoadConversationConfigDefaults(t *testing.T) {
	t.Setenv("CONVERSATION_PACING_MS", "")
	t.Setenv("CONVERSATION_MAX_REPLY_CHARS", "")

	cfg, err := loadConversationConfig()
	if err != nil {
		t.Fatalf("loadConversationConfig err: %v", err)
	}
	if cfg.Pacing != 2*time.Second {
		t.Fatalf("unexpected pacing: %v", cfg.Pacing)
	}
	if cfg.MaxReplyChars != 280 {
		t.Fatalf("unexpected max reply chars: %d", cfg.MaxReplyChars)
	}
}

func TestLoadConversationConfigOverrides(t *testing.T) {
	t.Setenv("CONVERSATION_PACING_MS", "250")
	t.Setenv("CONVERSATION_MAX_REPLY_CHARS", "100")

	cfg, err := loadConversationConfig()
	if err != nil {
		t.Fatalf("loadConversationConfig err: %v", err)
	}
	if cfg.Pacing != 250*time.Millisecond {
		t.Fatalf("unexpected pacing: %v", cfg.Pacing)
	}
	if cfg.MaxReplyChars != 100 {
		t.Fatalf("unexpected max reply chars: %d", cfg.MaxReplyChars)
	}
}

func TestLoadConversationConfigRejectsNegativePacing(t *testing.T) {
	t.Setenv("CONVERSATION_PACING_MS", "-1")

	if _, err := loadConversationConfig(); err == nil {
		t.Fatal("expected error for negative pacing")
	}
}

func TestLoadModerationConfigDefaults(t *testing.T) {
	t.Setenv("MODERATION_ENABLED", "")
	t.Setenv("MODERATION_FAIL_CLOSED", "")

	cfg, err := loadModerationConfig()
	if err != nil {
		t.Fatalf("loadModerationConfig err: %v", err)
	}
	if !cfg.Enabled {
		t.Fatal("moderation must default to enabled")
	}
	if cfg.FailClosed {
		t.Fatal("moderation must default to fail-open")
	}
}

func TestLoadModerationConfigInvalidBool(t *testing.T) {
	t.Setenv("MODERATION_FAIL_CLOSED", "sometimes")

	if _, err := loadModerationConfig(); err == nil {
		t.Fatal("expected error for invalid boolean")
	}
}

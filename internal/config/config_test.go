package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("DB_DRIVER", "memory")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.Port != ":8080" {
		t.Errorf("Expected default port :8080, got %s", cfg.Server.Port)
	}
	if cfg.Realtime.PingPeriod != 54*time.Second || cfg.Realtime.PongWait != 60*time.Second {
		t.Errorf("Unexpected keepalive timings: ping=%s pong=%s", cfg.Realtime.PingPeriod, cfg.Realtime.PongWait)
	}
	if cfg.Realtime.SendBuffer != 256 {
		t.Errorf("Expected send buffer 256, got %d", cfg.Realtime.SendBuffer)
	}
	if cfg.Redis.Addr != "" {
		t.Errorf("Expected rate limiting disabled by default, got addr %q", cfg.Redis.Addr)
	}
}

func TestLoadRequiresSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	t.Setenv("DB_DRIVER", "memory")

	if _, err := Load(); err == nil || !strings.Contains(err.Error(), "JWT_SECRET") {
		t.Errorf("Expected JWT_SECRET error, got %v", err)
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"bad duration", map[string]string{"JWT_EXPIRES_IN": "soon"}, "JWT_EXPIRES_IN"},
		{"bad int", map[string]string{"REDIS_DB": "zero"}, "REDIS_DB"},
		{"unknown driver", map[string]string{"DB_DRIVER": "mongo"}, "DB_DRIVER"},
		{"ping after pong", map[string]string{"WS_PING_PERIOD": "2m"}, "WS_PING_PERIOD"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("JWT_SECRET", "test-secret")
			t.Setenv("DB_DRIVER", "memory")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Expected error mentioning %s, got %v", tt.want, err)
			}
		})
	}
}

func TestAllowedOriginsList(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("DB_DRIVER", "memory")
	t.Setenv("ALLOWED_ORIGINS", "http://a.test, http://b.test,")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(cfg.Server.AllowedOrigins) != 2 || cfg.Server.AllowedOrigins[1] != "http://b.test" {
		t.Errorf("Unexpected origins: %v", cfg.Server.AllowedOrigins)
	}
}

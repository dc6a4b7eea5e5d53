package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	for _, k := range []string{"DATABASE_URL", "PORT", "AUTH_USER", "AUTH_PASS", "CORS_ORIGINS", "DB_MAX_CONNS", "SOLD_LOOKUP_TIMEOUT", "LOG_LEVEL"} {
		t.Setenv(k, "")
	}

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, []string{"*"}, cfg.CORSOrigins)
	assert.Equal(t, int32(10), cfg.MaxConns)
	assert.Equal(t, 3*time.Second, cfg.SoldLookupTimeout)
	assert.Equal(t, slog.LevelInfo, cfg.SlogLevel())
	assert.Error(t, cfg.RequireDatabase())
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/trackey")
	t.Setenv("PORT", "9090")
	t.Setenv("CORS_ORIGINS", "https://a.example, https://b.example,")
	t.Setenv("DB_MAX_CONNS", "25")
	t.Setenv("SOLD_LOOKUP_TIMEOUT", "750ms")
	t.Setenv("LOG_LEVEL", "DEBUG")

	cfg, err := Load()
	require.NoError(t, err)
	assert.NoError(t, cfg.RequireDatabase())
	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSOrigins)
	assert.Equal(t, int32(25), cfg.MaxConns)
	assert.Equal(t, 750*time.Millisecond, cfg.SoldLookupTimeout)
	assert.Equal(t, slog.LevelDebug, cfg.SlogLevel())
}

func TestLoad_Invalid(t *testing.T) {
	cases := map[string]map[string]string{
		"half auth":    {"AUTH_USER": "admin", "AUTH_PASS": ""},
		"bad conns":    {"DB_MAX_CONNS": "many"},
		"zero conns":   {"DB_MAX_CONNS": "0"},
		"bad timeout":  {"SOLD_LOOKUP_TIMEOUT": "soon"},
		"zero timeout": {"SOLD_LOOKUP_TIMEOUT": "0s"},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			for _, k := range []string{"AUTH_USER", "AUTH_PASS", "DB_MAX_CONNS", "SOLD_LOOKUP_TIMEOUT"} {
				t.Setenv(k, "")
			}
			for k, v := range env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

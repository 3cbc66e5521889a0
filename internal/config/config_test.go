package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newViper() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	BindEnv(v)
	return v
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(newViper())
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, "./data/splitcore.db", cfg.Database.Path)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "console", cfg.Logging.Format)
	assert.Equal(t, 24*time.Hour, cfg.Auth.TokenTTL)
	assert.Equal(t, LockMemory, cfg.Lock.Backend)
	assert.Equal(t, 32, cfg.Lock.Tries)

	assert.Error(t, cfg.RequireSecret(), "no secret by default")
}

func TestLoad_Environment(t *testing.T) {
	t.Setenv("SPLITCORE_SERVER_ADDR", ":9090")
	t.Setenv("SPLITCORE_AUTH_SECRET", "s3cret")
	t.Setenv("SPLITCORE_AUTH_TOKEN_TTL", "90m")
	t.Setenv("SPLITCORE_LOCK_BACKEND", "redis")
	t.Setenv("SPLITCORE_LOCK_REDIS_ADDR", "redis:6379")

	cfg, err := Load(newViper())
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, "s3cret", cfg.Auth.Secret)
	assert.Equal(t, 90*time.Minute, cfg.Auth.TokenTTL)
	assert.Equal(t, LockRedis, cfg.Lock.Backend)
	assert.Equal(t, "redis:6379", cfg.Lock.RedisAddr)
	assert.NoError(t, cfg.RequireSecret())
}

func TestLoad_ConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
database:
  path: /var/lib/splitcore/db.sqlite
logging:
  level: debug
  format: json
`), 0o600))

	v := newViper()
	v.SetConfigFile(path)
	require.NoError(t, v.ReadInConfig())

	cfg, err := Load(v)
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/splitcore/db.sqlite", cfg.Database.Path)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, ":8080", cfg.Server.Addr, "unset keys keep their defaults")
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  any
	}{
		{"empty addr", "server.addr", ""},
		{"empty database", "database.path", ""},
		{"unknown lock backend", "lock.backend", "etcd"},
		{"zero ttl", "auth.token_ttl", "0s"},
		{"bad duration", "server.shutdown_timeout", "soon"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := newViper()
			v.Set(tt.key, tt.val)
			_, err := Load(v)
			assert.True(t, errors.Is(err, ErrInvalidConfig), "got %v", err)
		})
	}

	t.Run("redis without address", func(t *testing.T) {
		v := newViper()
		v.Set("lock.backend", LockRedis)
		v.Set("lock.redis_addr", "")
		_, err := Load(v)
		assert.ErrorIs(t, err, ErrInvalidConfig)
	})
}

package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("AUTH_JWT_SECRET", "")
	t.Setenv("APP_ENV", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "HS256", cfg.Auth.JWTAlgorithm)
	assert.Equal(t, 15*time.Minute, cfg.Auth.AccessTTL())
	assert.Equal(t, 30*24*time.Hour, cfg.Auth.RefreshTTL())
	assert.Equal(t, time.Duration(0), cfg.Auth.Leeway())
	assert.False(t, cfg.Auth.RotateRefreshTokens)
	assert.Equal(t, "memory", cfg.RateLimit.Backend)
	assert.Equal(t, 5, cfg.RateLimit.Login)
	assert.Equal(t, 10, cfg.RateLimit.Register)
	assert.Equal(t, 30, cfg.RateLimit.Refresh)
	assert.Equal(t, 30, cfg.RateLimit.Logout)
	assert.Equal(t, 100, cfg.RateLimit.Authenticated)
	assert.Equal(t, time.Minute, cfg.RateLimit.Window())
	assert.Equal(t, "0.0.0.0:8080", cfg.App.Addr())
	assert.Equal(t, time.Hour, cfg.Ledger.SweepInterval())
	assert.Equal(t, 7*24*time.Hour, cfg.Ledger.Retention())
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("AUTH_JWT_SECRET", "s3cr3t")
	t.Setenv("AUTH_JWT_ALGORITHM", "hs512")
	t.Setenv("AUTH_ACCESS_TOKEN_TTL_MINUTES", "5")
	t.Setenv("AUTH_REFRESH_TOKEN_TTL_DAYS", "7")
	t.Setenv("AUTH_CLOCK_LEEWAY_SECONDS", "10")
	t.Setenv("AUTH_ROTATE_REFRESH_TOKENS", "true")
	t.Setenv("RATE_LIMIT_BACKEND", "REDIS")
	t.Setenv("RATE_LIMIT_LOGIN", "3")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "HS512", cfg.Auth.JWTAlgorithm)
	assert.Equal(t, 5*time.Minute, cfg.Auth.AccessTTL())
	assert.Equal(t, 7*24*time.Hour, cfg.Auth.RefreshTTL())
	assert.Equal(t, 10*time.Second, cfg.Auth.Leeway())
	assert.True(t, cfg.Auth.RotateRefreshTokens)
	assert.Equal(t, "redis", cfg.RateLimit.Backend)
	assert.Equal(t, 3, cfg.RateLimit.Login)
}

func TestLedgerConfig_DisabledSweep(t *testing.T) {
	assert.Equal(t, time.Duration(0), LedgerConfig{SweepIntervalMinutes: 0}.SweepInterval())
	assert.Equal(t, time.Duration(0), LedgerConfig{RetentionDays: -1}.Retention())
}

func TestLoad_InvalidRedisDB(t *testing.T) {
	t.Setenv("REDIS_DB", "abc")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "REDIS_DB")
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			App: AppConfig{Env: "development"},
			Auth: AuthConfig{
				JWTSecret:             "secret",
				JWTAlgorithm:          "HS256",
				AccessTokenTTLMinutes: 15,
				RefreshTokenTTLDays:   30,
			},
			RateLimit: RateLimitConfig{Backend: "memory", WindowSeconds: 60},
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "empty secret", mutate: func(c *Config) { c.Auth.JWTSecret = " " }, wantErr: "must not be empty"},
		{name: "default secret in production", mutate: func(c *Config) {
			c.App.Env = "production"
			c.Auth.JWTSecret = defaultJWTSecret
		}, wantErr: "must be set in production"},
		{name: "asymmetric algorithm", mutate: func(c *Config) { c.Auth.JWTAlgorithm = "RS256" }, wantErr: "unsupported AUTH_JWT_ALGORITHM"},
		{name: "zero access ttl", mutate: func(c *Config) { c.Auth.AccessTokenTTLMinutes = 0 }, wantErr: "ACCESS_TOKEN_TTL"},
		{name: "negative refresh ttl", mutate: func(c *Config) { c.Auth.RefreshTokenTTLDays = -1 }, wantErr: "REFRESH_TOKEN_TTL"},
		{name: "leeway too large", mutate: func(c *Config) { c.Auth.ClockLeewaySeconds = 31 }, wantErr: "LEEWAY"},
		{name: "unknown backend", mutate: func(c *Config) { c.RateLimit.Backend = "memcached" }, wantErr: "RATE_LIMIT_BACKEND"},
		{name: "zero window", mutate: func(c *Config) { c.RateLimit.WindowSeconds = 0 }, wantErr: "WINDOW"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.DBDriver)
	assert.Equal(t, "blog.db", cfg.SqliteDB)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "sha256", cfg.PasswordHash)
	assert.Equal(t, time.Duration(0), cfg.CacheMaxAge)
	assert.Equal(t, []string{"General", "Technology", "Travel", "Food", "Lifestyle"}, cfg.Categories())
	assert.False(t, cfg.IsDevelopment())
}

func TestLoad_FromEnv(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("DB_DRIVER", "postgres")
	t.Setenv("DATABASE_URL", "postgres://blog@localhost/blog")
	t.Setenv("CACHE_MAX_AGE", "5m")
	t.Setenv("SEED_CATEGORIES", " Go , ,Rust")
	t.Setenv("APP_ENV", "development")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.DBDriver)
	assert.Equal(t, 5*time.Minute, cfg.CacheMaxAge)
	assert.Equal(t, []string{"Go", "Rust"}, cfg.Categories())
	assert.True(t, cfg.IsDevelopment())
}

func TestValidate(t *testing.T) {
	base := Config{DBDriver: "sqlite", SqliteDB: "x.db", PasswordHash: "sha256", LogFormat: "text"}

	tests := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{"valid", func(c *Config) {}, true},
		{"unknown driver", func(c *Config) { c.DBDriver = "mysql" }, false},
		{"postgres without url", func(c *Config) { c.DBDriver = "postgres" }, false},
		{"sqlite without file", func(c *Config) { c.SqliteDB = "" }, false},
		{"bad hash", func(c *Config) { c.PasswordHash = "md5" }, false},
		{"bcrypt hash", func(c *Config) { c.PasswordHash = "bcrypt" }, true},
		{"bad log format", func(c *Config) { c.LogFormat = "xml" }, false},
		{"negative cache age", func(c *Config) { c.CacheMaxAge = -time.Second }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestValidateServe_RequiresSecret(t *testing.T) {
	cfg := Config{Port: "8080"}
	assert.Error(t, cfg.ValidateServe())

	cfg.SessionSecret = "secret"
	assert.NoError(t, cfg.ValidateServe())
}

// chdir changes the working directory for the duration of the test
// (equivalent to testing.T.Chdir, which requires Go 1.24).
func chdir(t *testing.T, dir string) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}

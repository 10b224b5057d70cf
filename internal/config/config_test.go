package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("DATABASE_URL", "file::memory:")
	t.Setenv("JWT_TTL", "2h")

	cfg, err := Load(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "s3cret", cfg.JWTSecret)
	assert.Equal(t, "sqlite", cfg.DBDriver)
	assert.Equal(t, 2*time.Hour, cfg.JWTTTL)
	assert.Equal(t, ":8080", cfg.ServerAddr)
	assert.Equal(t, BackendSQL, cfg.StoreBackend)
}

func TestLoad_FromDotEnvFile(t *testing.T) {
	dir := t.TempDir()
	content := "JWT_SECRET=fromfile\nSTORE_BACKEND=mongo\nMONGO_DATABASE=quadrant_test\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte(content), 0o600))

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, "fromfile", cfg.JWTSecret)
	assert.Equal(t, BackendMongo, cfg.StoreBackend)
	assert.Equal(t, "quadrant_test", cfg.MongoDatabase)
}

func TestConfig_Validate(t *testing.T) {
	valid := func() Config {
		return Config{
			StoreBackend: BackendSQL,
			DBDriver:     "postgres",
			DatabaseURL:  "postgres://localhost/quadrant",
			JWTSecret:    "x",
			JWTTTL:       time.Hour,
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{name: "valid", mutate: func(c *Config) {}},
		{name: "missing secret", mutate: func(c *Config) { c.JWTSecret = "" }, wantErr: true},
		{name: "zero ttl", mutate: func(c *Config) { c.JWTTTL = 0 }, wantErr: true},
		{name: "unknown driver", mutate: func(c *Config) { c.DBDriver = "oracle" }, wantErr: true},
		{name: "missing dsn", mutate: func(c *Config) { c.DatabaseURL = "" }, wantErr: true},
		{name: "unknown backend", mutate: func(c *Config) { c.StoreBackend = "redis" }, wantErr: true},
		{
			name: "mongo without uri",
			mutate: func(c *Config) {
				c.StoreBackend = BackendMongo
				c.MongoDatabase = "quadrant"
			},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(&c)
			if err := c.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

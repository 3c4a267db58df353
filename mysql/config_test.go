package mysql

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/sqlagent/types"
)

func validConfig() Config {
	return Config{
		Host:        "db.internal",
		User:        "reader",
		Password:    "secret",
		Database:    "warehouse",
		Port:        3306,
		Description: "order history replica",
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantKey string
	}{
		{"valid", func(c *Config) {}, ""},
		{"missing host", func(c *Config) { c.Host = "" }, "host"},
		{"missing user", func(c *Config) { c.User = "" }, "user"},
		{"missing password", func(c *Config) { c.Password = "" }, "password"},
		{"missing database", func(c *Config) { c.Database = "" }, "database"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)

			err := cfg.Validate()
			if tt.wantKey == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, types.IsErrorCode(err, types.ErrConfigMissing))
			assert.Contains(t, err.Error(), tt.wantKey)
		})
	}
}

func TestConfig_ValidatePortRange(t *testing.T) {
	cfg := validConfig()
	cfg.Port = 70000

	err := cfg.Validate()
	require.Error(t, err)
	assert.True(t, types.IsErrorCode(err, types.ErrConfigMissing))
}

func TestConfig_DSN(t *testing.T) {
	cfg := validConfig()
	dsn := cfg.DSN()

	assert.Contains(t, dsn, "reader:secret@tcp(db.internal:3306)/warehouse")
	assert.Contains(t, dsn, "charset=utf8mb4")
	assert.Contains(t, dsn, "parseTime=true")
}

func TestConfig_DSNDefaults(t *testing.T) {
	cfg := Config{
		Host:     "db.internal",
		User:     "reader",
		Password: "secret",
		Database: "warehouse",
	}
	dsn := cfg.DSN()

	assert.Contains(t, dsn, "db.internal:3306")
	assert.Contains(t, dsn, "charset=utf8mb4")
}

func TestConfig_WithDefaults(t *testing.T) {
	cfg := Config{}.withDefaults()

	assert.Equal(t, 3306, cfg.Port)
	assert.Equal(t, "utf8mb4", cfg.Charset)
	assert.Equal(t, time.Hour, cfg.MaxConnAge)
	assert.Equal(t, 10*time.Second, cfg.ConnectTimeout)
}

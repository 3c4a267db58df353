// =============================================================================
// sqlagent process configuration
// =============================================================================
// Immutable after Load; created once at process start and handed to the
// manager and toolkit by reference.
// =============================================================================
package config

import (
	"time"

	"gopkg.in/yaml.v3"

	"github.com/BaSui01/sqlagent/types"
)

// Config is the complete sqlagent configuration.
type Config struct {
	// MySQL database endpoint
	MySQL MySQLConfig `yaml:"mysql" env:"MYSQL"`

	// Query execution limits
	Query QueryConfig `yaml:"query" env:"QUERY"`

	// Log logging configuration
	Log LogConfig `yaml:"log" env:"LOG"`

	// Metrics prometheus configuration
	Metrics MetricsConfig `yaml:"metrics" env:"METRICS"`
}

// MySQLConfig describes one MySQL endpoint.
type MySQLConfig struct {
	Host     string `yaml:"host" env:"HOST"`
	User     string `yaml:"user" env:"USER"`
	Password string `yaml:"password" env:"PASSWORD"`
	Database string `yaml:"database" env:"DATABASE"`
	Port     int    `yaml:"port" env:"PORT"`
	Charset  string `yaml:"charset" env:"CHARSET"`

	// Description is a human-readable note about the database, surfaced
	// verbatim to agents in tool output.
	Description string `yaml:"description" env:"DESCRIPTION"`

	// MaxConnAge retires connections older than this even when they still
	// look healthy.
	MaxConnAge time.Duration `yaml:"max_conn_age" env:"MAX_CONN_AGE"`

	ConnectTimeout time.Duration `yaml:"connect_timeout" env:"CONNECT_TIMEOUT"`
	ReadTimeout    time.Duration `yaml:"read_timeout" env:"READ_TIMEOUT"`
	WriteTimeout   time.Duration `yaml:"write_timeout" env:"WRITE_TIMEOUT"`
}

// QueryConfig bounds query execution and result volume.
type QueryConfig struct {
	// DefaultTimeout applies when the caller does not request a timeout.
	DefaultTimeout time.Duration `yaml:"default_timeout" env:"DEFAULT_TIMEOUT"`

	// MaxResultChars is the serialized-size budget for one result set.
	MaxResultChars int `yaml:"max_result_chars" env:"MAX_RESULT_CHARS"`
}

// LogConfig controls the zap logger.
type LogConfig struct {
	Level  string `yaml:"level" env:"LEVEL"`   // debug, info, warn, error
	Format string `yaml:"format" env:"FORMAT"` // json, console
}

// MetricsConfig controls the prometheus collector.
type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled" env:"ENABLED"`
	Namespace string `yaml:"namespace" env:"NAMESPACE"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		MySQL:   DefaultMySQLConfig(),
		Query:   DefaultQueryConfig(),
		Log:     DefaultLogConfig(),
		Metrics: DefaultMetricsConfig(),
	}
}

// DefaultMySQLConfig returns the default MySQL configuration.
// Host, user, password, and database have no defaults and must be supplied.
func DefaultMySQLConfig() MySQLConfig {
	return MySQLConfig{
		Port:           3306,
		Charset:        "utf8mb4",
		MaxConnAge:     time.Hour,
		ConnectTimeout: 10 * time.Second,
		ReadTimeout:    60 * time.Second,
		WriteTimeout:   30 * time.Second,
	}
}

// DefaultQueryConfig returns the default query limits.
func DefaultQueryConfig() QueryConfig {
	return QueryConfig{
		DefaultTimeout: 60 * time.Second,
		MaxResultChars: 10000,
	}
}

// DefaultLogConfig returns the default logging configuration.
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:  "info",
		Format: "json",
	}
}

// DefaultMetricsConfig returns the default metrics configuration.
func DefaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Enabled:   true,
		Namespace: "sqlagent",
	}
}

// UnmarshalYAML decodes MySQL settings, accepting durations in Go syntax
// ("30s", "1h"). Fields absent from the document keep their current values.
func (c *MySQLConfig) UnmarshalYAML(value *yaml.Node) error {
	raw := struct {
		Host           string `yaml:"host"`
		User           string `yaml:"user"`
		Password       string `yaml:"password"`
		Database       string `yaml:"database"`
		Port           int    `yaml:"port"`
		Charset        string `yaml:"charset"`
		Description    string `yaml:"description"`
		MaxConnAge     string `yaml:"max_conn_age"`
		ConnectTimeout string `yaml:"connect_timeout"`
		ReadTimeout    string `yaml:"read_timeout"`
		WriteTimeout   string `yaml:"write_timeout"`
	}{
		Host:           c.Host,
		User:           c.User,
		Password:       c.Password,
		Database:       c.Database,
		Port:           c.Port,
		Charset:        c.Charset,
		Description:    c.Description,
		MaxConnAge:     c.MaxConnAge.String(),
		ConnectTimeout: c.ConnectTimeout.String(),
		ReadTimeout:    c.ReadTimeout.String(),
		WriteTimeout:   c.WriteTimeout.String(),
	}
	if err := value.Decode(&raw); err != nil {
		return err
	}

	c.Host = raw.Host
	c.User = raw.User
	c.Password = raw.Password
	c.Database = raw.Database
	c.Port = raw.Port
	c.Charset = raw.Charset
	c.Description = raw.Description

	for _, d := range []struct {
		src string
		dst *time.Duration
	}{
		{raw.MaxConnAge, &c.MaxConnAge},
		{raw.ConnectTimeout, &c.ConnectTimeout},
		{raw.ReadTimeout, &c.ReadTimeout},
		{raw.WriteTimeout, &c.WriteTimeout},
	} {
		parsed, err := time.ParseDuration(d.src)
		if err != nil {
			return err
		}
		*d.dst = parsed
	}
	return nil
}

// UnmarshalYAML decodes query limits, accepting durations in Go syntax.
func (c *QueryConfig) UnmarshalYAML(value *yaml.Node) error {
	raw := struct {
		DefaultTimeout string `yaml:"default_timeout"`
		MaxResultChars int    `yaml:"max_result_chars"`
	}{
		DefaultTimeout: c.DefaultTimeout.String(),
		MaxResultChars: c.MaxResultChars,
	}
	if err := value.Decode(&raw); err != nil {
		return err
	}

	parsed, err := time.ParseDuration(raw.DefaultTimeout)
	if err != nil {
		return err
	}
	c.DefaultTimeout = parsed
	c.MaxResultChars = raw.MaxResultChars
	return nil
}

// Validate checks that every required setting is present. It fails fast
// with a CONFIG_MISSING error before any connection attempt.
func (c *Config) Validate() error {
	if err := c.MySQL.Validate(); err != nil {
		return err
	}
	if c.Query.DefaultTimeout <= 0 {
		return types.NewError(types.ErrConfigMissing, "query.default_timeout must be positive")
	}
	if c.Query.MaxResultChars <= 0 {
		return types.NewError(types.ErrConfigMissing, "query.max_result_chars must be positive")
	}
	return nil
}

// Validate checks the required MySQL fields.
func (c *MySQLConfig) Validate() error {
	required := []struct {
		key   string
		value string
	}{
		{"mysql.host", c.Host},
		{"mysql.user", c.User},
		{"mysql.password", c.Password},
		{"mysql.database", c.Database},
	}
	for _, r := range required {
		if r.value == "" {
			return types.NewErrorf(types.ErrConfigMissing,
				"missing required configuration key: %s, please check your environment variables", r.key)
		}
	}
	if c.Port <= 0 || c.Port > 65535 {
		return types.NewErrorf(types.ErrConfigMissing, "mysql.port %d is out of range", c.Port)
	}
	return nil
}

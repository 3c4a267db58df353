package mysql

import (
	"net"
	"strconv"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/BaSui01/sqlagent/types"
)

// Config holds the settings for one MySQL endpoint. It is created once at
// process start and never mutated afterwards.
type Config struct {
	Host     string
	User     string
	Password string
	Database string
	Port     int
	Charset  string

	// Description is a human-readable note about the database, surfaced
	// to agents in tool output.
	Description string

	// MaxConnAge retires handles older than this even when they still
	// report open. Zero means the default of one hour.
	MaxConnAge time.Duration

	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
}

// withDefaults fills the optional fields.
func (c Config) withDefaults() Config {
	if c.Port == 0 {
		c.Port = 3306
	}
	if c.Charset == "" {
		c.Charset = "utf8mb4"
	}
	if c.MaxConnAge == 0 {
		c.MaxConnAge = time.Hour
	}
	if c.ConnectTimeout == 0 {
		c.ConnectTimeout = 10 * time.Second
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = 60 * time.Second
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = 30 * time.Second
	}
	return c
}

// Validate checks the required fields. It fails fast with a CONFIG_MISSING
// error before any connection attempt.
func (c Config) Validate() error {
	required := []struct {
		key   string
		value string
	}{
		{"host", c.Host},
		{"user", c.User},
		{"password", c.Password},
		{"database", c.Database},
	}
	for _, r := range required {
		if r.value == "" {
			return types.NewErrorf(types.ErrConfigMissing,
				"mysql configuration missing required key: %s", r.key)
		}
	}
	if c.Port < 0 || c.Port > 65535 {
		return types.NewErrorf(types.ErrConfigMissing, "mysql port %d is out of range", c.Port)
	}
	return nil
}

// DSN renders the driver connection string.
func (c Config) DSN() string {
	c = c.withDefaults()

	mc := mysql.NewConfig()
	mc.Net = "tcp"
	mc.Addr = net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
	mc.User = c.User
	mc.Passwd = c.Password
	mc.DBName = c.Database
	mc.Timeout = c.ConnectTimeout
	mc.ReadTimeout = c.ReadTimeout
	mc.WriteTimeout = c.WriteTimeout
	mc.ParseTime = true
	mc.Params = map[string]string{"charset": c.Charset}

	return mc.FormatDSN()
}

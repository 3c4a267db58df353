// =============================================================================
// sqlagent entry point
// =============================================================================
// Command-line access to the MySQL agent toolkit.
//
// Usage:
//
//	sqlagent tables                         # list tables
//	sqlagent describe --table users         # show one table's structure
//	sqlagent query --sql "SELECT 1"         # run a read-only query
//	sqlagent health                         # probe the configured database
//	sqlagent version                        # show version information
//
// Configuration comes from a YAML file (--config), SQLAGENT_* environment
// variables, and an optional .env file in the working directory.
// =============================================================================
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/BaSui01/sqlagent/config"
	"github.com/BaSui01/sqlagent/internal/metrics"
	"github.com/BaSui01/sqlagent/mysql"
	"github.com/BaSui01/sqlagent/toolkit"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "tables":
		runTables(os.Args[2:])
	case "describe":
		runDescribe(os.Args[2:])
	case "query":
		runQuery(os.Args[2:])
	case "health":
		runHealth(os.Args[2:])
	case "version":
		printVersion()
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

// =============================================================================
// Commands
// =============================================================================

func runTables(args []string) {
	fs := flag.NewFlagSet("tables", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	fs.Parse(args)

	tk, cleanup := setup(*configPath)
	defer cleanup()

	fmt.Println(tk.ListTables(workerContext()))
}

func runDescribe(args []string) {
	fs := flag.NewFlagSet("describe", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	table := fs.String("table", "", "Table name to describe")
	fs.Parse(args)

	if *table == "" {
		fmt.Fprintln(os.Stderr, "describe requires --table")
		os.Exit(1)
	}

	tk, cleanup := setup(*configPath)
	defer cleanup()

	fmt.Println(tk.DescribeTable(workerContext(), *table))
}

func runQuery(args []string) {
	fs := flag.NewFlagSet("query", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	sql := fs.String("sql", "", "Read-only SQL statement to execute")
	timeout := fs.Int("timeout", 0, "Query timeout in seconds (1-600, 0 uses the configured default)")
	fs.Parse(args)

	if *sql == "" {
		fmt.Fprintln(os.Stderr, "query requires --sql")
		os.Exit(1)
	}

	tk, cleanup := setup(*configPath)
	defer cleanup()

	fmt.Println(tk.Query(workerContext(), *sql, time.Duration(*timeout)*time.Second))
}

func runHealth(args []string) {
	fs := flag.NewFlagSet("health", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	fs.Parse(args)

	cfg, logger := loadConfig(*configPath)
	defer logger.Sync()

	mgr, err := mysql.Open(toMySQLConfig(cfg.MySQL), logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "health check failed: %v\n", err)
		os.Exit(1)
	}
	defer mgr.Close()

	ctx := workerContext()
	if _, err := mgr.Connection(ctx, "cli"); err != nil {
		fmt.Fprintf(os.Stderr, "health check failed: %v\n", err)
		os.Exit(1)
	}
	if !mgr.TestConnection(ctx, "cli") {
		fmt.Fprintln(os.Stderr, "health check failed: connection does not answer")
		os.Exit(1)
	}

	fmt.Println("OK")
}

// =============================================================================
// Wiring
// =============================================================================

// workerContext names the CLI's single worker so tool calls reuse one
// connection handle for the process lifetime.
func workerContext() context.Context {
	return mysql.WithWorker(context.Background(), "cli")
}

func loadConfig(configPath string) (*config.Config, *zap.Logger) {
	// .env is a convenience for local use; absence is not an error.
	_ = godotenv.Load()

	loader := config.NewLoader()
	if configPath != "" {
		loader = loader.WithConfigPath(configPath)
	}

	cfg, err := loader.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	return cfg, initLogger(cfg.Log)
}

func setup(configPath string) (*toolkit.Toolkit, func()) {
	cfg, logger := loadConfig(configPath)

	var collector *metrics.Collector
	if cfg.Metrics.Enabled {
		collector = metrics.NewCollector(cfg.Metrics.Namespace, nil, logger)
	}

	mgr, err := mysql.Open(toMySQLConfig(cfg.MySQL), logger, mysql.WithCollector(collector))
	if err != nil {
		logger.Fatal("failed to open mysql manager", zap.Error(err))
	}

	tk := toolkit.New(mgr, logger,
		toolkit.WithDefaultTimeout(cfg.Query.DefaultTimeout),
		toolkit.WithMaxResultChars(cfg.Query.MaxResultChars),
		toolkit.WithCollector(collector),
	)

	cleanup := func() {
		if err := mgr.Close(); err != nil {
			logger.Warn("failed to close mysql manager", zap.Error(err))
		}
		logger.Sync()
	}
	return tk, cleanup
}

func toMySQLConfig(c config.MySQLConfig) mysql.Config {
	return mysql.Config{
		Host:           c.Host,
		User:           c.User,
		Password:       c.Password,
		Database:       c.Database,
		Port:           c.Port,
		Charset:        c.Charset,
		Description:    c.Description,
		MaxConnAge:     c.MaxConnAge,
		ConnectTimeout: c.ConnectTimeout,
		ReadTimeout:    c.ReadTimeout,
		WriteTimeout:   c.WriteTimeout,
	}
}

// =============================================================================
// Logging
// =============================================================================

func initLogger(cfg config.LogConfig) *zap.Logger {
	var level zapcore.Level
	switch cfg.Level {
	case "debug":
		level = zapcore.DebugLevel
	case "info":
		level = zapcore.InfoLevel
	case "warn":
		level = zapcore.WarnLevel
	case "error":
		level = zapcore.ErrorLevel
	default:
		level = zapcore.InfoLevel
	}

	var encoderConfig zapcore.EncoderConfig
	encoding := "json"
	if cfg.Format == "console" {
		encoding = "console"
		encoderConfig = zap.NewDevelopmentEncoderConfig()
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		encoderConfig = zap.NewProductionEncoderConfig()
		encoderConfig.TimeKey = "timestamp"
		encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	zapConfig := zap.Config{
		Level:            zap.NewAtomicLevelAt(level),
		Development:      cfg.Format == "console",
		Encoding:         encoding,
		EncoderConfig:    encoderConfig,
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
	}

	logger, err := zapConfig.Build(zap.AddStacktrace(zapcore.ErrorLevel))
	if err != nil {
		logger, _ = zap.NewProduction()
	}
	return logger
}

// =============================================================================
// Version and help
// =============================================================================

func printVersion() {
	fmt.Printf("sqlagent %s\n", Version)
	fmt.Printf("  Build Time: %s\n", BuildTime)
	fmt.Printf("  Git Commit: %s\n", GitCommit)
}

func printUsage() {
	fmt.Println(`sqlagent - MySQL access toolkit for AI agents

Usage:
  sqlagent <command> [options]

Commands:
  tables    List every table in the configured database
  describe  Show one table's structure
  query     Run a read-only SQL query with a hard timeout
  health    Probe the configured database
  version   Show version information
  help      Show this help message

Common options:
  --config <path>   Path to configuration file (YAML)

Examples:
  sqlagent tables
  sqlagent describe --table users
  sqlagent query --sql "SELECT COUNT(*) FROM orders" --timeout 30
  sqlagent health --config /etc/sqlagent/config.yaml`)
}

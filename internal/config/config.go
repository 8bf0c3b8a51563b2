// Package config provides configuration management for the Cutroom Agent.
// Configuration is loaded from environment variables with sensible defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

const (
	// Default values
	DefaultPort      = 8930
	DefaultLogLevel  = "info"
	DefaultDataDir   = ".cutroom"
	DefaultExportDir = "exports"

	// Environment variable names
	EnvPort       = "CUTROOM_PORT"
	EnvLogLevel   = "CUTROOM_LOG_LEVEL"
	EnvDataDir    = "CUTROOM_DATA_DIR"
	EnvExportDir  = "CUTROOM_EXPORT_DIR"
	EnvHeadless   = "CUTROOM_HEADLESS"
	EnvStubFFmpeg = "CUTROOM_STUB_FFMPEG"

	// Database filename
	DBFilename = "cutroom.db"
)

// Config defines the application configuration interface
type Config interface {
	Port() int
	LogLevel() string
	DataDir() string
	DBPath() string
	ExportDir() string
	Headless() bool
	StubFFmpeg() bool
}

// EnvConfig reads configuration from environment variables
type EnvConfig struct {
	port       int
	logLevel   string
	dataDir    string
	exportDir  string
	headless   bool
	stubFFmpeg bool
}

// New creates a new EnvConfig with defaults and environment variable overrides
func New() (*EnvConfig, error) {
	cfg := &EnvConfig{
		port:     DefaultPort,
		logLevel: DefaultLogLevel,
		dataDir:  defaultDataDir(),
	}

	if p := os.Getenv(EnvPort); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", EnvPort, err)
		}
		if port < 1 || port > 65535 {
			return nil, fmt.Errorf("invalid %s: port must be between 1 and 65535", EnvPort)
		}
		cfg.port = port
	}

	if ll := os.Getenv(EnvLogLevel); ll != "" {
		cfg.logLevel = ll
	}

	if dd := os.Getenv(EnvDataDir); dd != "" {
		cfg.dataDir = dd
	}

	cfg.exportDir = os.Getenv(EnvExportDir)
	cfg.headless = boolEnv(EnvHeadless)
	cfg.stubFFmpeg = boolEnv(EnvStubFFmpeg)

	return cfg, nil
}

// Port returns the HTTP server port
func (c *EnvConfig) Port() int {
	return c.port
}

// LogLevel returns the log level (debug, info, warn, error)
func (c *EnvConfig) LogLevel() string {
	return c.logLevel
}

// DataDir returns the data directory path
func (c *EnvConfig) DataDir() string {
	return c.dataDir
}

// DBPath returns the full path to the SQLite database file
func (c *EnvConfig) DBPath() string {
	return filepath.Join(c.dataDir, DBFilename)
}

// ExportDir returns the default directory for rendered exports
func (c *EnvConfig) ExportDir() string {
	if c.exportDir != "" {
		return c.exportDir
	}
	return filepath.Join(c.dataDir, DefaultExportDir)
}

// Headless reports whether the tray UI should be skipped
func (c *EnvConfig) Headless() bool {
	return c.headless
}

// StubFFmpeg reports whether the encoder boundary runs in stub mode
func (c *EnvConfig) StubFFmpeg() bool {
	return c.stubFFmpeg
}

func boolEnv(key string) bool {
	v, err := strconv.ParseBool(os.Getenv(key))
	return err == nil && v
}

// defaultDataDir returns the default data directory path
func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		// Fallback to current directory if home is not available
		return DefaultDataDir
	}
	return filepath.Join(home, DefaultDataDir)
}

// Version information (set at build time via ldflags)
var (
	Version   = "0.1.0"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

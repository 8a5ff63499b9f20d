package config

import "time"

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server   ServerConfig   `mapstructure:"server" validate:"required"`
	Executor ExecutorConfig `mapstructure:"executor" validate:"required"`
	Sessions SessionsConfig `mapstructure:"sessions" validate:"required"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port      int    `mapstructure:"port" validate:"required,gt=0,lt=65536"`
	LogLevel  string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
	LogFormat string `mapstructure:"log_format" validate:"required,oneof=json text"`
	// ShutdownTimeout bounds how long in-flight requests may take to finish on shutdown
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"gt=0"`
}

// Host kinds for ExecutorConfig.Host
const (
	HostGoroutine = "goroutine"
	HostProcess   = "process"
)

// ExecutorConfig selects how background contexts are isolated.
type ExecutorConfig struct {
	// Host is "goroutine" for in-process contexts or "process" for child processes
	Host string `mapstructure:"host" validate:"required,oneof=goroutine process"`
	// WorkerCommand is the command a process host runs for each context.
	// Empty means the running executable with its "worker" subcommand.
	WorkerCommand []string `mapstructure:"worker_command"`
}

// SessionsConfig contains settings for consumer sessions.
type SessionsConfig struct {
	// MaxSessions caps how many sessions, and so live contexts, may exist at once
	MaxSessions int `mapstructure:"max_sessions" validate:"required,gt=0"`
}

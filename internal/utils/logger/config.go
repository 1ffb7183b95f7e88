// internal/utils/logger/config.go
package logger

import "io"

type Config struct {
	LogFile     string
	MaxSize     int  // megabytes
	MaxAge      int  // days
	MaxBackups  int  // files
	Compress    bool // gzip rotated files
	Development bool

	// Console receives human-readable output. Nil means stderr, which keeps
	// stdout free for command results.
	Console io.Writer
}

// DefaultConfig returns the default settings.
func DefaultConfig() *Config {
	return &Config{
		LogFile:     "logs/bettingpool.log",
		MaxSize:     100,
		MaxAge:      7,
		MaxBackups:  3,
		Compress:    true,
		Development: false,
	}
}

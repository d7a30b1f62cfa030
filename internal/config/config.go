// Package config merges the decompverify settings from flags, environment
// and config file, and creates the logger that all commands share.
package config

import (
	"github.com/retroenv/retrogolib/log"
)

// CreateLogger creates the command logger. Debug output adds the assembly
// source warnings and the caller position of each record. Quiet mode only
// reports errors such as verification mismatches.
func CreateLogger(debug, quiet bool) *log.Logger {
	cfg := log.DefaultConfig()
	switch {
	case debug:
		cfg.Level = log.DebugLevel
		cfg.CallerInfo = true
	case quiet:
		cfg.Level = log.ErrorLevel
	}
	return log.NewWithConfig(cfg)
}

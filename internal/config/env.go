package config

import (
	"strconv"
	"strings"
)

// Environment variables that override file settings.
const (
	EnvShell      = "PTERMINAL_SHELL"
	EnvSocket     = "PTERMINAL_SOCKET"
	EnvLogLevel   = "PTERMINAL_LOG_LEVEL"
	EnvScrollback = "PTERMINAL_SCROLLBACK"
	EnvConfig     = "PTERMINAL_CONFIG"
)

// LookupFunc matches os.LookupEnv.
type LookupFunc func(key string) (string, bool)

// ApplyEnv overrides cfg with the PTERMINAL_* environment variables. Empty
// values and unparsable numbers are ignored.
func ApplyEnv(cfg *Config, lookup LookupFunc) {
	if v, ok := lookup(EnvShell); ok && v != "" {
		cfg.General.Shell = v
	}
	if v, ok := lookup(EnvSocket); ok && v != "" {
		cfg.Control.Socket = v
	}
	if v, ok := lookup(EnvLogLevel); ok && v != "" {
		cfg.Log.Level = strings.ToLower(strings.TrimSpace(v))
	}
	if v, ok := lookup(EnvScrollback); ok && v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && n >= 0 {
			cfg.Scrollback.Lines = n
		}
	}
}

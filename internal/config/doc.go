// Package config provides the configuration for a pterminal session.
//
// Configuration is read from one file in the user config directory
// (config.toml, config.yaml or config.yml), laid over built-in defaults,
// then overridden by PTERMINAL_* environment variables:
//
//	# ~/.config/pterminal/config.toml
//	[general]
//	shell = "/bin/zsh"
//
//	[scrollback]
//	lines = 20000
//
//	[cursor]
//	style = "bar"
//	blink = false
//
// # Sub-packages
//
//   - loader: file decoding by extension (TOML, YAML) with positioned parse errors
//   - watcher: fsnotify-based file watching for live reload
//
// # Live Reload
//
// A Reloader watches the file and re-applies it on change. A file that
// fails to parse or validate is reported and the previous config stays in
// effect.
package config

package config

import (
	"time"

	"git.home.luguber.info/inful/shaderbuild/internal/backend"
	berrors "git.home.luguber.info/inful/shaderbuild/internal/errors"
	"git.home.luguber.info/inful/shaderbuild/internal/shader"
)

// Validate checks structural consistency: known stages and dialects, unique
// shader names, program references resolving to declared shaders, and
// parseable durations.
func (c *Config) Validate() error {
	names := make(map[string]bool, len(c.Shaders))
	for _, sc := range c.Shaders {
		if sc.Name == "" {
			return berrors.ValidationFailed("shaders.name", "shader name is required")
		}
		if names[sc.Name] {
			return berrors.ValidationFailed("shaders.name", "duplicate shader name '"+sc.Name+"'")
		}
		names[sc.Name] = true

		if !backend.Stage(sc.Stage).Known() {
			return berrors.ValidationFailed("shaders.stage", "unknown stage '"+sc.Stage+"' for shader '"+sc.Name+"'")
		}
		switch shader.Dialect(sc.Dialect) {
		case shader.DialectGLSL, shader.DialectHLSL:
		default:
			return berrors.ValidationFailed("shaders.dialect", "unknown dialect '"+sc.Dialect+"' for shader '"+sc.Name+"'")
		}
		if sc.File == "" {
			return berrors.ValidationFailed("shaders.file", "source file is required for shader '"+sc.Name+"'")
		}
	}

	programs := make(map[string]bool, len(c.Programs))
	for _, pc := range c.Programs {
		if pc.Name == "" {
			return berrors.ValidationFailed("programs.name", "program name is required")
		}
		if programs[pc.Name] {
			return berrors.ValidationFailed("programs.name", "duplicate program name '"+pc.Name+"'")
		}
		programs[pc.Name] = true

		if len(pc.Shaders) == 0 {
			return berrors.ValidationFailed("programs.shaders", "program '"+pc.Name+"' lists no shaders")
		}
		for _, ref := range pc.Shaders {
			if !names[ref] {
				return berrors.ValidationFailed("programs.shaders", "program '"+pc.Name+"' references unknown shader '"+ref+"'")
			}
		}
	}

	if _, err := time.ParseDuration(c.Backend.PollInterval); err != nil {
		return berrors.ValidationFailed("backend.poll_interval", err.Error())
	}
	if _, err := time.ParseDuration(c.Daemon.Debounce); err != nil {
		return berrors.ValidationFailed("daemon.debounce", err.Error())
	}
	if c.Daemon.RebuildInterval != "" {
		if _, err := time.ParseDuration(c.Daemon.RebuildInterval); err != nil {
			return berrors.ValidationFailed("daemon.rebuild_interval", err.Error())
		}
	}
	return nil
}

// PollInterval returns the parsed polling cadence.
func (c *Config) PollInterval() time.Duration {
	d, err := time.ParseDuration(c.Backend.PollInterval)
	if err != nil {
		d, _ = time.ParseDuration(DefaultPollInterval)
	}
	return d
}

// RebuildInterval returns the parsed periodic rebuild interval, or zero when
// periodic rebuilds are disabled.
func (c *Config) RebuildInterval() time.Duration {
	if c.Daemon.RebuildInterval == "" {
		return 0
	}
	d, err := time.ParseDuration(c.Daemon.RebuildInterval)
	if err != nil {
		return 0
	}
	return d
}

// DebounceInterval returns the parsed watch debounce window.
func (c *Config) DebounceInterval() time.Duration {
	d, err := time.ParseDuration(c.Daemon.Debounce)
	if err != nil {
		d, _ = time.ParseDuration(DefaultDebounce)
	}
	return d
}

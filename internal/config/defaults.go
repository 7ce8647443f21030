package config

// Default values applied after unmarshalling and before validation.
const (
	DefaultPollInterval = "10ms"
	DefaultDebounce     = "500ms"
	DefaultLogLevel     = "info"
	DefaultLogFormat    = "text"
)

func (c *Config) applyDefaults() {
	if c.Backend.PollInterval == "" {
		c.Backend.PollInterval = DefaultPollInterval
	}
	if c.Logging.Level == "" {
		c.Logging.Level = DefaultLogLevel
	}
	if c.Logging.Format == "" {
		c.Logging.Format = DefaultLogFormat
	}
	if c.Daemon.Debounce == "" {
		c.Daemon.Debounce = DefaultDebounce
	}
	for i := range c.Shaders {
		if c.Shaders[i].Dialect == "" {
			c.Shaders[i].Dialect = "glsl"
		}
	}
}

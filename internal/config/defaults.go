package config

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	cfg.Browser.Headless = true
	cfg.Notifications.Log = true
	applyDefaults(cfg)
	return cfg
}

// applyDefaults применяет значения по умолчанию
func applyDefaults(c *Config) {
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
	if c.Logging.Output == "" {
		c.Logging.Output = "stderr"
	}

	if c.Game.BaseURL == "" {
		c.Game.BaseURL = "https://www.berrus.app"
	}
	if c.Game.APIOrigin == "" {
		c.Game.APIOrigin = c.Game.BaseURL
	}
	if c.Game.StartPath == "" {
		c.Game.StartPath = "/"
	}

	if c.Storage.Driver == "" {
		c.Storage.Driver = "sqlite"
	}
	if c.Storage.Path == "" {
		switch c.Storage.Driver {
		case "sqlite":
			c.Storage.Path = "~/.berrus/berrus.db"
		case "file":
			c.Storage.Path = "~/.berrus/state"
		}
	}

	if c.Relay.Listen == "" {
		c.Relay.Listen = "127.0.0.1:8787"
	}
	if c.Relay.URL == "" {
		c.Relay.URL = "http://" + c.Relay.Listen
	}
	if c.Relay.QueueSize == 0 {
		c.Relay.QueueSize = 256
	}
	if c.Relay.TimeoutSeconds == 0 {
		c.Relay.TimeoutSeconds = 10
	}

	if c.Observer.DebounceMs == 0 {
		c.Observer.DebounceMs = 500
	}
	if c.Observer.BackoffMs == 0 {
		c.Observer.BackoffMs = 10000
	}
	if c.Observer.BackoffAfter == 0 {
		c.Observer.BackoffAfter = 3
	}
	if c.Observer.MaxTextLen == 0 {
		c.Observer.MaxTextLen = 150
	}

	if c.Hiscores.BaseURL == "" {
		c.Hiscores.BaseURL = c.Game.BaseURL
	}
	if c.Hiscores.TimeoutSeconds == 0 {
		c.Hiscores.TimeoutSeconds = 15
	}
	if c.Hiscores.MaxAttempts == 0 {
		c.Hiscores.MaxAttempts = 3
	}

	if c.Metrics.Namespace == "" {
		c.Metrics.Namespace = "berrus"
	}

	if c.Mirror.Topic == "" {
		c.Mirror.Topic = "berrus.facts"
	}
}

package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Load загружает конфигурацию из TOML (или YAML) файла
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Config{}
	cfg.Browser.Headless = true
	cfg.Notifications.Log = true

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	default:
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	expandEnvVars(&cfg)
	applyDefaults(&cfg)

	return &cfg, nil
}

// Validate проверяет валидность конфигурации
func (c *Config) Validate() []error {
	var errs []error

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, fmt.Errorf("invalid logging.level: %s (expected: debug, info, warn, error)", c.Logging.Level))
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[strings.ToLower(c.Logging.Format)] {
		errs = append(errs, fmt.Errorf("invalid logging.format: %s (expected: json, text)", c.Logging.Format))
	}

	if err := validateURL(c.Game.BaseURL, "game.base_url"); err != nil {
		errs = append(errs, err)
	}
	if err := validateURL(c.Game.APIOrigin, "game.api_origin"); err != nil {
		errs = append(errs, err)
	}
	if !strings.HasPrefix(c.Game.StartPath, "/") {
		errs = append(errs, fmt.Errorf("game.start_path must start with '/' (got %q)", c.Game.StartPath))
	}

	switch c.Storage.Driver {
	case "memory":
	case "sqlite", "file":
		if err := validatePath(c.Storage.Path, "storage.path"); err != nil {
			errs = append(errs, err)
		}
	default:
		errs = append(errs, fmt.Errorf("invalid storage.driver: %s (expected: memory, sqlite, file)", c.Storage.Driver))
	}

	if err := validateURL(c.Relay.URL, "relay.url"); err != nil {
		errs = append(errs, err)
	}
	if c.Relay.QueueSize < 1 {
		errs = append(errs, fmt.Errorf("relay.queue_size must be >= 1"))
	}
	if c.Relay.TimeoutSeconds < 1 {
		errs = append(errs, fmt.Errorf("relay.timeout_seconds must be >= 1"))
	}

	if c.Observer.DebounceMs < 1 {
		errs = append(errs, fmt.Errorf("observer.debounce_ms must be >= 1"))
	}
	if c.Observer.BackoffMs < c.Observer.DebounceMs {
		errs = append(errs, fmt.Errorf("observer.backoff_ms must be >= observer.debounce_ms"))
	}
	if c.Observer.BackoffAfter < 1 {
		errs = append(errs, fmt.Errorf("observer.backoff_after must be >= 1"))
	}

	if c.Notifications.Telegram.Enabled {
		if c.Notifications.Telegram.Token == "" {
			errs = append(errs, fmt.Errorf("notifications.telegram.token is required when telegram is enabled"))
		} else if err := validateTelegramToken(c.Notifications.Telegram.Token); err != nil {
			errs = append(errs, err)
		}
		if len(c.Notifications.Telegram.ChatIDs) == 0 {
			errs = append(errs, fmt.Errorf("notifications.telegram.chat_ids cannot be empty when telegram is enabled"))
		}
	}
	if c.Notifications.Discord.Enabled {
		if c.Notifications.Discord.Token == "" {
			errs = append(errs, fmt.Errorf("notifications.discord.token is required when discord is enabled"))
		}
		if c.Notifications.Discord.ChannelID == "" {
			errs = append(errs, fmt.Errorf("notifications.discord.channel_id is required when discord is enabled"))
		}
	}

	if err := validateURL(c.Hiscores.BaseURL, "hiscores.base_url"); err != nil {
		errs = append(errs, err)
	}
	if c.Hiscores.MaxAttempts < 1 {
		errs = append(errs, fmt.Errorf("hiscores.max_attempts must be >= 1"))
	}

	if c.Mirror.Enabled {
		if len(c.Mirror.Brokers) == 0 {
			errs = append(errs, fmt.Errorf("mirror.brokers cannot be empty when mirror is enabled"))
		}
		if c.Mirror.Topic == "" {
			errs = append(errs, fmt.Errorf("mirror.topic is required when mirror is enabled"))
		}
	}

	return errs
}

func validateURL(raw, fieldName string) error {
	if raw == "" {
		return fmt.Errorf("%s is required", fieldName)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s is not a valid URL: %w", fieldName, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%s must use http or https (got %q)", fieldName, u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("%s has no host", fieldName)
	}
	return nil
}

func validateTelegramToken(token string) error {
	parts := strings.Split(token, ":")
	if len(parts) != 2 {
		return formatValidationError("notifications.telegram.token", "invalid format (expected <bot_id>:<token>)", token)
	}

	botID := parts[0]
	if len(botID) < 3 || len(botID) > 15 {
		return fmt.Errorf("telegram token has invalid bot ID length (expected 3-15 digits, got %d digits)", len(botID))
	}
	for _, r := range botID {
		if r < '0' || r > '9' {
			return fmt.Errorf("telegram token has invalid bot ID (expected digits only, got: %s)", botID)
		}
	}

	if n := len(parts[1]); n < 10 || n > 50 {
		return fmt.Errorf("telegram token has invalid token length (expected 10-50 characters, got %d)", n)
	}
	return nil
}

func validatePath(path, fieldName string) error {
	if path == "" {
		return fmt.Errorf("%s cannot be empty", fieldName)
	}
	if strings.Contains(path, "..") {
		return fmt.Errorf("%s contains potentially dangerous path traversal sequence", fieldName)
	}
	return nil
}

// expandEnvVars расширяет переменные окружения в конфигурации
func expandEnvVars(c *Config) {
	c.Notifications.Telegram.Token = expandEnv(c.Notifications.Telegram.Token)
	c.Notifications.Discord.Token = expandEnv(c.Notifications.Discord.Token)
	c.Notifications.Discord.ChannelID = expandEnv(c.Notifications.Discord.ChannelID)
	c.Browser.ControlURL = expandEnv(c.Browser.ControlURL)
	c.Relay.URL = expandEnv(c.Relay.URL)

	c.Storage.Path = expandHome(expandEnv(c.Storage.Path))
	c.Browser.UserData = expandHome(expandEnv(c.Browser.UserData))
	c.Browser.Bin = expandHome(expandEnv(c.Browser.Bin))

	for i, b := range c.Mirror.Brokers {
		c.Mirror.Brokers[i] = expandEnv(b)
	}
}

// expandEnv расширяет переменную окружения формата ${VAR:default}
func expandEnv(s string) string {
	if !strings.HasPrefix(s, "${") {
		return s
	}

	end := strings.Index(s, "}")
	if end == -1 {
		return s
	}

	content := s[2:end]
	if parts := strings.SplitN(content, ":", 2); len(parts) == 2 {
		if val := os.Getenv(parts[0]); val != "" {
			return val
		}
		return parts[1]
	}

	return os.Getenv(content)
}

// ExpandHome расширяет ~ в пути
func ExpandHome(path string) string {
	return expandHome(path)
}

func expandHome(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}

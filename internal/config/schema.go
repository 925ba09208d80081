// Package config provides configuration loading and validation for berrus.
// It supports TOML (and YAML) configuration files with environment variable
// expansion, default values and validation.
//
// Configuration structure:
//   - [logging]: level, format, output and the optional JSON log file
//   - [game]: site base URL, API origin and the page the watcher opens
//   - [storage]: persisted key-value backend (memory, sqlite, file)
//   - [relay]: HTTP relay listen address and the URL used by remote watchers
//   - [observer]: debounce, backoff and text-length limits of the extraction loop
//   - [browser]: headless browser connection settings
//   - [notifications]: Telegram and Discord notifiers
//   - [hiscores]: hiscore lookup endpoint and retry policy
//   - [metrics]: Prometheus metrics
//   - [mirror]: Kafka mirror of relayed facts
//
// Environment variables can be referenced using ${VAR} or ${VAR:default} syntax.
// For example: token = "${BERRUS_TELEGRAM_TOKEN}"
package config

import "time"

// Config represents the main application configuration.
type Config struct {
	Logging       LoggingConfig       `toml:"logging" yaml:"logging"`
	Game          GameConfig          `toml:"game" yaml:"game"`
	Storage       StorageConfig       `toml:"storage" yaml:"storage"`
	Relay         RelayConfig         `toml:"relay" yaml:"relay"`
	Observer      ObserverConfig      `toml:"observer" yaml:"observer"`
	Browser       BrowserConfig       `toml:"browser" yaml:"browser"`
	Notifications NotificationsConfig `toml:"notifications" yaml:"notifications"`
	Hiscores      HiscoresConfig      `toml:"hiscores" yaml:"hiscores"`
	Metrics       MetricsConfig       `toml:"metrics" yaml:"metrics"`
	Mirror        MirrorConfig        `toml:"mirror" yaml:"mirror"`
}

// LoggingConfig представляет конфигурацию логирования
type LoggingConfig struct {
	Level  string `toml:"level" yaml:"level"`
	Format string `toml:"format" yaml:"format"`
	Output string `toml:"output" yaml:"output"`
	File   string `toml:"file" yaml:"file"`
}

// GameConfig описывает сайт игры
type GameConfig struct {
	BaseURL   string `toml:"base_url" yaml:"base_url"`
	APIOrigin string `toml:"api_origin" yaml:"api_origin"`
	StartPath string `toml:"start_path" yaml:"start_path"`
}

// StorageConfig представляет конфигурацию хранилища
type StorageConfig struct {
	Driver string `toml:"driver" yaml:"driver"` // memory, sqlite, file
	Path   string `toml:"path" yaml:"path"`
}

// RelayConfig представляет конфигурацию relay
type RelayConfig struct {
	Listen         string `toml:"listen" yaml:"listen"`
	URL            string `toml:"url" yaml:"url"`
	QueueSize      int    `toml:"queue_size" yaml:"queue_size"`
	TimeoutSeconds int    `toml:"timeout_seconds" yaml:"timeout_seconds"`
}

// Timeout returns the per-request relay timeout.
func (r RelayConfig) Timeout() time.Duration {
	return time.Duration(r.TimeoutSeconds) * time.Second
}

// ObserverConfig представляет параметры цикла извлечения
type ObserverConfig struct {
	DebounceMs   int `toml:"debounce_ms" yaml:"debounce_ms"`
	BackoffMs    int `toml:"backoff_ms" yaml:"backoff_ms"`
	BackoffAfter int `toml:"backoff_after" yaml:"backoff_after"`
	MaxTextLen   int `toml:"max_text_len" yaml:"max_text_len"`
}

// BrowserConfig представляет конфигурацию headless браузера
type BrowserConfig struct {
	ControlURL string `toml:"control_url" yaml:"control_url"` // пусто - запустить локальный браузер
	Bin        string `toml:"bin" yaml:"bin"`
	Headless   bool   `toml:"headless" yaml:"headless"`
	Stealth    bool   `toml:"stealth" yaml:"stealth"`
	UserData   string `toml:"user_data" yaml:"user_data"`
}

// NotificationsConfig представляет конфигурацию уведомлений
type NotificationsConfig struct {
	Log      bool           `toml:"log" yaml:"log"`
	Telegram TelegramConfig `toml:"telegram" yaml:"telegram"`
	Discord  DiscordConfig  `toml:"discord" yaml:"discord"`
}

// TelegramConfig представляет конфигурацию Telegram
type TelegramConfig struct {
	Enabled bool    `toml:"enabled" yaml:"enabled"`
	Token   string  `toml:"token" yaml:"token"`
	ChatIDs []int64 `toml:"chat_ids" yaml:"chat_ids"`
}

// DiscordConfig представляет конфигурацию Discord
type DiscordConfig struct {
	Enabled   bool   `toml:"enabled" yaml:"enabled"`
	Token     string `toml:"token" yaml:"token"`
	ChannelID string `toml:"channel_id" yaml:"channel_id"`
}

// HiscoresConfig представляет конфигурацию поиска по hiscores
type HiscoresConfig struct {
	BaseURL        string `toml:"base_url" yaml:"base_url"`
	TimeoutSeconds int    `toml:"timeout_seconds" yaml:"timeout_seconds"`
	MaxAttempts    int    `toml:"max_attempts" yaml:"max_attempts"`
}

// MetricsConfig представляет конфигурацию метрик
type MetricsConfig struct {
	Enabled   bool   `toml:"enabled" yaml:"enabled"`
	Namespace string `toml:"namespace" yaml:"namespace"`
}

// MirrorConfig представляет конфигурацию зеркалирования фактов в Kafka
type MirrorConfig struct {
	Enabled bool     `toml:"enabled" yaml:"enabled"`
	Brokers []string `toml:"brokers" yaml:"brokers"`
	Topic   string   `toml:"topic" yaml:"topic"`
}

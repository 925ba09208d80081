package config

import (
	"strings"
)

// maskSecret маскирует секрет, оставляя только первые 4 и последние 4 символа
func maskSecret(secret string) string {
	if secret == "" {
		return ""
	}

	if len(secret) < 8 {
		return "***"
	}

	return secret[:4] + strings.Repeat("*", len(secret)-8) + secret[len(secret)-4:]
}

// maskTelegramToken оставляет bot_id видимым для диагностики
func maskTelegramToken(token string) string {
	if token == "" {
		return ""
	}

	parts := strings.Split(token, ":")
	if len(parts) != 2 {
		return maskSecret(token)
	}

	return parts[0] + ":" + maskSecret(parts[1])
}

// Masked returns a copy of the configuration safe to print.
func (c *Config) Masked() Config {
	out := *c
	out.Notifications.Telegram.Token = maskTelegramToken(c.Notifications.Telegram.Token)
	out.Notifications.Discord.Token = maskSecret(c.Notifications.Discord.Token)
	return out
}

// formatValidationError форматирует ошибку валидации с маскированными секретами
func formatValidationError(field, message string, secret string) error {
	errorMsg := field + ": " + message
	if masked := maskSecret(secret); masked != "" {
		errorMsg += " (value: " + masked + ")"
	}

	return &ValidationError{Field: field, Message: errorMsg}
}

// ValidationError представляет ошибку валидации с дополнительной информацией
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

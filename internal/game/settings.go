package game

// Settings are the user preferences persisted under the "settings" key.
// Nil booleans mean "not set" and read as enabled.
type Settings struct {
	NotificationsEnabled   *bool `json:"notificationsEnabled,omitempty"`
	PriceTrackingEnabled   *bool `json:"priceTrackingEnabled,omitempty"`
	SessionTrackingEnabled *bool `json:"sessionTrackingEnabled,omitempty"`
	HiscoreCacheMinutes    int   `json:"hiscoreCacheMinutes,omitempty"`
}

// DefaultHiscoreCacheMinutes is used when the setting is absent.
const DefaultHiscoreCacheMinutes = 5

// DefaultSettings returns the values written on first install.
func DefaultSettings() Settings {
	return Settings{
		NotificationsEnabled:   Bool(true),
		PriceTrackingEnabled:   Bool(true),
		SessionTrackingEnabled: Bool(true),
		HiscoreCacheMinutes:    DefaultHiscoreCacheMinutes,
	}
}

// Bool returns a pointer to b.
func Bool(b bool) *bool {
	return &b
}

func enabled(b *bool) bool {
	return b == nil || *b
}

// Notifications reports whether completion notifications are on.
func (s Settings) Notifications() bool { return enabled(s.NotificationsEnabled) }

// PriceTracking reports whether price snapshots are recorded.
func (s Settings) PriceTracking() bool { return enabled(s.PriceTrackingEnabled) }

// SessionTracking reports whether session events are recorded.
func (s Settings) SessionTracking() bool { return enabled(s.SessionTrackingEnabled) }

// CacheMinutes returns the hiscore cache lifetime.
func (s Settings) CacheMinutes() int {
	if s.HiscoreCacheMinutes <= 0 {
		return DefaultHiscoreCacheMinutes
	}
	return s.HiscoreCacheMinutes
}

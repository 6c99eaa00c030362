package notifications

// Alert severity levels understood by every notifier.
const (
	LevelInfo    = "info"
	LevelWarning = "warning"
	LevelError   = "error"
	LevelSuccess = "success"
)

// Notifier delivers operator alerts for safety events: circuit-breaker
// trips, emergency exits, positions closed outside the engine.
type Notifier interface {
	SendAlert(level, message string) error
}

// NoopNotifier discards alerts. Used when notifications are disabled.
type NoopNotifier struct{}

func (NoopNotifier) SendAlert(level, message string) error { return nil }

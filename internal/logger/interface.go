package logger

// Logger defines the interface for logging operations.
type Logger interface {
	Debug() *LogEvent
	Info() *LogEvent
	Warn() *LogEvent
	Error() *LogEvent
	// Plain logs without a level, used for banners and separators.
	Plain() *LogEvent
}

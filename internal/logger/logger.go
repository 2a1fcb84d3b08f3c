package logger

import (
	"fmt"
	"io"
	"os"
	"strings"

	"codeberg.org/mutker/axebench/internal/errors"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
)

const timeFormat = "01-02 15:04:05"

const (
	colorRed    = 31
	colorGreen  = 32
	colorYellow = 33
	colorCyan   = 36
)

type LogLevel int8

const (
	DebugLevel LogLevel = iota
	InfoLevel
	WarnLevel
	ErrorLevel
	FatalLevel
)

type LogEvent struct {
	*zerolog.Event
}

func (e *LogEvent) Msg(msg string) {
	e.Event.Msg(msg)
}

func (e *LogEvent) Send() {
	e.Event.Send()
}

// Options configures a console logger.
type Options struct {
	Level   LogLevel
	NoColor bool
	Out     io.Writer
}

type consoleLogger struct {
	log zerolog.Logger
}

var log Logger = New(Options{Level: InfoLevel})

// New creates a console logger. Colour is disabled when Out is not a terminal.
func New(opts Options) Logger {
	out := opts.Out
	noColor := opts.NoColor
	if out == nil {
		out = colorable.NewColorableStdout()
		noColor = noColor || !IsTerminal()
	}

	output := zerolog.ConsoleWriter{
		Out:        out,
		NoColor:    noColor,
		TimeFormat: timeFormat,
	}
	output.FormatLevel = formatLevel(noColor)

	return &consoleLogger{
		log: zerolog.New(output).Level(zerolog.Level(opts.Level)).With().Timestamp().Logger(),
	}
}

// Nop returns a logger that discards everything.
func Nop() Logger {
	return &consoleLogger{log: zerolog.Nop()}
}

// Init replaces the package logger and returns it
func Init(opts Options) Logger {
	log = New(opts)
	return log
}

// Default returns the package logger
func Default() Logger {
	return log
}

// ParseLevel converts a configured level name.
func ParseLevel(level string) (LogLevel, error) {
	switch strings.ToLower(level) {
	case "debug":
		return DebugLevel, nil
	case "", "info":
		return InfoLevel, nil
	case "warn", "warning":
		return WarnLevel, nil
	case "error":
		return ErrorLevel, nil
	default:
		return InfoLevel, errors.New().WithData(errors.ErrInvalidLogLevel, level)
	}
}

// IsTerminal checks if stdout is attached to a terminal
func IsTerminal() bool {
	fd := os.Stdout.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func formatLevel(noColor bool) zerolog.Formatter {
	return func(i interface{}) string {
		level, _ := i.(string)
		var label string
		var color int
		switch level {
		case zerolog.LevelDebugValue:
			label, color = "DBG", colorCyan
		case zerolog.LevelInfoValue:
			label, color = "INF", colorGreen
		case zerolog.LevelWarnValue:
			label, color = "WRN", colorYellow
		case zerolog.LevelErrorValue, zerolog.LevelFatalValue:
			label, color = "ERR", colorRed
		default:
			return "   "
		}
		if noColor {
			return label
		}

		return fmt.Sprintf("\x1b[%dm%s\x1b[0m", color, label)
	}
}

func (l *consoleLogger) Debug() *LogEvent {
	return &LogEvent{l.log.Debug()}
}

func (l *consoleLogger) Info() *LogEvent {
	return &LogEvent{l.log.Info()}
}

func (l *consoleLogger) Warn() *LogEvent {
	return &LogEvent{l.log.Warn()}
}

func (l *consoleLogger) Error() *LogEvent {
	return &LogEvent{l.log.Error()}
}

func (l *consoleLogger) Plain() *LogEvent {
	return &LogEvent{l.log.Log()}
}

// Debug logs a debug message
func Debug() *LogEvent {
	return log.Debug()
}

// Info logs an info message
func Info() *LogEvent {
	return log.Info()
}

// Warn logs a warning message
func Warn() *LogEvent {
	return log.Warn()
}

// Error logs an error message
func Error() *LogEvent {
	return log.Error()
}

// Plain logs a message without a level
func Plain() *LogEvent {
	return log.Plain()
}

// ErrorWithCode logs an error message with its error code
func ErrorWithCode(err error) *LogEvent {
	event := log.Error()
	event.Str("error_code", string(errors.CodeOf(err))).Err(err)

	return event
}

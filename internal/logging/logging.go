// Package logging provides the leveled key/value logger injected into every
// component. It is backed by zerolog with a console writer and an optional
// rotating log file.
package logging

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger is a leveled logger taking alternating key/value pairs after the
// message, e.g. log.Info("task finished", "task", name, "ok", true).
type Logger interface {
	Debug(msg string, kv ...any)
	Info(msg string, kv ...any)
	Warn(msg string, kv ...any)
	Error(msg string, kv ...any)
	With(kv ...any) Logger
}

// Options configures New.
type Options struct {
	Debug   bool      // emit debug level
	Concise bool      // console only shows info and above even in debug mode
	File    string    // rotating log file path, "" disables
	Console io.Writer // defaults to os.Stderr
	JSON    bool      // raw JSON console output instead of ConsoleWriter
}

type zlogger struct {
	zl zerolog.Logger
}

// New builds a Logger from opts. The returned closer flushes and closes the
// log file, if any.
func New(opts Options) (Logger, io.Closer) {
	console := opts.Console
	if console == nil {
		console = os.Stderr
	}

	var consoleOut io.Writer = console
	if !opts.JSON {
		consoleOut = zerolog.ConsoleWriter{
			Out:        console,
			NoColor:    !isTerminal(console),
			TimeFormat: "2006-01-02 15:04:05",
		}
	}

	level := zerolog.InfoLevel
	if opts.Debug {
		level = zerolog.DebugLevel
	}

	var consoleLevel zerolog.LevelWriter = zerolog.MultiLevelWriter(consoleOut)
	if opts.Concise {
		consoleLevel = &minLevelWriter{w: consoleLevel, min: zerolog.InfoLevel}
	}

	writers := []io.Writer{consoleLevel}
	var closer io.Closer = nopCloser{}
	if opts.File != "" {
		file := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    10, // megabytes
			MaxBackups: 3,
			MaxAge:     30, // days
		}
		writers = append(writers, file)
		closer = file
	}

	zl := zerolog.New(zerolog.MultiLevelWriter(writers...)).
		Level(level).
		With().
		Timestamp().
		Logger()
	return &zlogger{zl: zl}, closer
}

// NewNop returns a Logger that discards everything.
func NewNop() Logger {
	return &zlogger{zl: zerolog.Nop()}
}

func (l *zlogger) Debug(msg string, kv ...any) { l.emit(l.zl.Debug(), msg, kv) }
func (l *zlogger) Info(msg string, kv ...any)  { l.emit(l.zl.Info(), msg, kv) }
func (l *zlogger) Warn(msg string, kv ...any)  { l.emit(l.zl.Warn(), msg, kv) }
func (l *zlogger) Error(msg string, kv ...any) { l.emit(l.zl.Error(), msg, kv) }

func (l *zlogger) With(kv ...any) Logger {
	return &zlogger{zl: l.zl.With().Fields(Fields(kv)).Logger()}
}

func (l *zlogger) emit(e *zerolog.Event, msg string, kv []any) {
	if e == nil {
		return
	}
	e.Fields(Fields(kv)).Msg(msg)
}

// Fields turns alternating key/value pairs into a map. A trailing key with no
// value is kept under "!BADKEY", and non-string keys are formatted with %v.
func Fields(kv []any) map[string]any {
	fields := make(map[string]any, len(kv)/2+1)
	for i := 0; i < len(kv); i += 2 {
		if i+1 >= len(kv) {
			fields["!BADKEY"] = kv[i]
			break
		}
		key, ok := kv[i].(string)
		if !ok {
			key = fmt.Sprint(kv[i])
		}
		val := kv[i+1]
		switch v := val.(type) {
		case error:
			if v != nil {
				val = v.Error()
			}
		case time.Duration:
			val = v.String()
		}
		fields[key] = val
	}
	return fields
}

type minLevelWriter struct {
	w   zerolog.LevelWriter
	min zerolog.Level
}

func (m *minLevelWriter) Write(p []byte) (int, error) {
	return m.w.Write(p)
}

func (m *minLevelWriter) WriteLevel(level zerolog.Level, p []byte) (int, error) {
	if level < m.min {
		return len(p), nil
	}
	return m.w.WriteLevel(level, p)
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

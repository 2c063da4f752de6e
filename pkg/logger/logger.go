package logger

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"streamdock/pkg/env"
	"streamdock/pkg/paths"
)

var Log *slog.Logger

var (
	history     []string
	historyMu   sync.RWMutex
	maxHistory  = 500
	logFile     *os.File
	logFileMu   sync.Mutex
	logLocation *time.Location
	locationMu  sync.RWMutex
	broadcastCh chan<- string
)

// SetBroadcast sets a channel that receives every formatted log line.
// Lines are dropped instead of blocking when the channel is full.
func SetBroadcast(ch chan<- string) {
	broadcastCh = ch
}

// Init initializes the global logger at the given level. It honors the TZ
// environment variable for timestamp formatting and appends to a per-day
// log file in the data directory.
func Init(levelStr string) {
	var level slog.Level
	switch strings.ToUpper(levelStr) {
	case "DEBUG":
		level = slog.LevelDebug
	case "WARN":
		level = slog.LevelWarn
	case "ERROR":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	loc := loadLocation()

	dataDir := paths.GetDataDir()
	// One file per day: streamdock-YYYY-MM-DD.log
	dateStr := time.Now().In(loc).Format("2006-01-02")
	logFilePath := filepath.Join(dataDir, fmt.Sprintf("streamdock-%s.log", dateStr))

	if err := os.MkdirAll(dataDir, 0755); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create log directory: %v\n", err)
	} else {
		logFileMu.Lock()
		if logFile != nil {
			logFile.Close()
		}
		var err error
		logFile, err = os.OpenFile(logFilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open log file %s: %v\n", logFilePath, err)
			logFile = nil
		}
		logFileMu.Unlock()
	}

	tzLoc := loc
	opts := &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				t := a.Value.Time().In(tzLoc)
				return slog.String("time", t.Format("2006-01-02T15:04:05.000-07:00"))
			}
			return a
		},
	}

	handler := &broadcastHandler{
		Handler: slog.NewTextHandler(os.Stdout, opts),
	}

	Log = slog.New(handler)
	slog.SetDefault(Log)

	Log.Info("Logger initialized", "timezone", loc.String())
}

func loadLocation() *time.Location {
	loc := time.Local
	if tz := env.TZ(); tz != "" {
		if loaded, err := time.LoadLocation(tz); err == nil {
			loc = loaded
		}
	}
	locationMu.Lock()
	logLocation = loc
	locationMu.Unlock()
	return loc
}

// broadcastHandler mirrors every record to the history ring, the log file
// and the broadcast channel in addition to the wrapped stdout handler.
type broadcastHandler struct {
	slog.Handler
}

func (h *broadcastHandler) Handle(ctx context.Context, r slog.Record) error {
	locationMu.RLock()
	loc := logLocation
	locationMu.RUnlock()
	if loc == nil {
		loc = time.Local
	}

	formattedTime := r.Time.In(loc)
	msg := fmt.Sprintf("time=%s level=%s msg=%q", formattedTime.Format("2006-01-02T15:04:05.000-07:00"), r.Level, r.Message)
	r.Attrs(func(a slog.Attr) bool {
		msg += fmt.Sprintf(" %s=%v", a.Key, a.Value)
		return true
	})

	historyMu.Lock()
	if len(history) >= maxHistory {
		history = history[1:]
	}
	history = append(history, msg)
	historyMu.Unlock()

	err := h.Handler.Handle(ctx, r)

	logFileMu.Lock()
	if logFile != nil {
		fmt.Fprintln(logFile, msg)
	}
	logFileMu.Unlock()

	if broadcastCh != nil {
		select {
		case broadcastCh <- msg:
		default:
		}
	}
	return err
}

// GetHistory returns a copy of the in-memory log history.
func GetHistory() []string {
	historyMu.RLock()
	defer historyMu.RUnlock()
	cp := make([]string, len(history))
	copy(cp, history)
	return cp
}

// SetLevel updates the logger level at runtime.
func SetLevel(levelStr string) {
	// Preserve log file when reinitializing
	logFileMu.Lock()
	currentLogFile := logFile
	logFileMu.Unlock()

	Init(levelStr)

	// Restore log file reference
	if currentLogFile != nil {
		logFileMu.Lock()
		logFile = currentLogFile
		logFileMu.Unlock()
	}
}

// Close closes the log file if one is open.
func Close() {
	logFileMu.Lock()
	defer logFileMu.Unlock()
	if logFile != nil {
		logFile.Close()
		logFile = nil
	}
}

func Debug(msg string, args ...any) {
	Log.Debug(msg, args...)
}

func Info(msg string, args ...any) {
	Log.Info(msg, args...)
}

func Warn(msg string, args ...any) {
	Log.Warn(msg, args...)
}

func Error(msg string, args ...any) {
	Log.Error(msg, args...)
}

func Fatal(msg string, args ...any) {
	Log.Error(msg, args...)
	os.Exit(1)
}

// Package log provides structured logging for pltcall using zap.
package log

import (
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger wraps zap.Logger with pltcall-specific helpers.
type Logger struct {
	*zap.Logger
}

var (
	// L is the global logger instance.
	L    *Logger
	once sync.Once
)

// Init initializes the global logger with the given configuration.
// Safe to call multiple times; only the first call takes effect.
func Init(debug bool) {
	once.Do(func() {
		L = New(debug)
	})
}

// New creates a new Logger instance, tagged with a fresh run ID so that
// every line logged during one invocation can be correlated.
func New(debug bool) *Logger {
	var cfg zap.Config
	if debug {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		cfg = zap.NewProductionConfig()
		cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		logger = zap.NewNop()
	}

	runID := uuid.NewString()
	return &Logger{Logger: logger.With(zap.String("run", runID))}
}

// NewNop creates a no-op logger for testing.
func NewNop() *Logger {
	return &Logger{Logger: zap.NewNop()}
}

// WithCategory returns a logger with the category field preset, e.g.
// "scan", "enumerate", "resolve", "format".
func (l *Logger) WithCategory(category string) *Logger {
	return &Logger{Logger: l.Logger.With(zap.String("cat", category))}
}

// ScanStart logs the beginning of a section scan.
func (l *Logger) ScanStart(section string, base uint64, size uint64) {
	l.Info("scan start", zap.String("section", section), Addr(base), Size(size))
}

// ScanDone logs the number of terminals a section scan produced.
func (l *Logger) ScanDone(section string, terminals int) {
	l.Debug("scan done", zap.String("section", section), zap.Int("terminals", terminals))
}

// GadgetFound logs a discovered gadget and its prefix length at debug
// level, so it is emitted only by a logger built with debug enabled.
func (l *Logger) GadgetFound(vaddr uint64, prefixLen int) {
	l.Debug("gadget", Addr(vaddr), zap.Int("prefix", prefixLen))
}

// SymbolResolved logs a PLT stub -> dynamic symbol resolution.
func (l *Logger) SymbolResolved(stubVAddr uint64, name string) {
	l.Debug("symbol resolved", Addr(stubVAddr), zap.String("name", name))
}

// Hex formats a uint64 as a lowercase hex string with a "0x" prefix, for
// log readability.
func Hex(addr uint64) string {
	return "0x" + hexString(addr)
}

func hexString(v uint64) string {
	const digits = "0123456789abcdef"
	if v == 0 {
		return "0"
	}
	buf := make([]byte, 16)
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = digits[v&0xf]
		v >>= 4
	}
	return string(buf[i:])
}

// Field helpers for common patterns.

// Addr creates an address field.
func Addr(addr uint64) zap.Field {
	return zap.String("addr", Hex(addr))
}

// Size creates a size field.
func Size(size uint64) zap.Field {
	return zap.Uint64("size", size)
}

// Ptr creates a named pointer field.
func Ptr(name string, ptr uint64) zap.Field {
	return zap.String(name, Hex(ptr))
}

// Fn creates a function/symbol name field.
func Fn(name string) zap.Field {
	return zap.String("fn", name)
}

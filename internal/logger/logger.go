package logger

import (
	"os"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is a structured logger scoped to one component. base carries the
// same fields minus the component so children can replace it.
type Logger struct {
	*zap.SugaredLogger
	base      *zap.SugaredLogger
	component string
}

// New creates a logger for the given component. Production environments
// log JSON, everything else logs in console format.
func New(component, environment, level string) *Logger {
	encoderConfig := zapcore.EncoderConfig{
		TimeKey:        "timestamp",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		FunctionKey:    zapcore.OmitKey,
		MessageKey:     "message",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.MillisDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}

	var encoder zapcore.Encoder
	if environment == "production" {
		encoder = zapcore.NewJSONEncoder(encoderConfig)
	} else {
		encoder = zapcore.NewConsoleEncoder(encoderConfig)
	}

	logLevel := zap.InfoLevel
	if environment == "development" {
		logLevel = zap.DebugLevel
	}
	if level != "" {
		if parsed, err := zapcore.ParseLevel(level); err == nil {
			logLevel = parsed
		}
	}

	core := zapcore.NewCore(
		encoder,
		zapcore.AddSync(os.Stdout),
		zap.NewAtomicLevelAt(logLevel),
	)

	return NewWithCore(core, component)
}

// NewWithCore builds a logger on an existing zap core.
func NewWithCore(core zapcore.Core, component string) *Logger {
	base := zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1)).Sugar()
	return &Logger{
		SugaredLogger: base.With("component", component),
		base:          base,
		component:     component,
	}
}

// NewNop returns a logger that discards everything.
func NewNop() *Logger {
	return NewWithCore(zapcore.NewNopCore(), "nop")
}

// Named returns a child logger whose component replaces the parent's.
func (l *Logger) Named(component string) *Logger {
	return &Logger{
		SugaredLogger: l.base.With("component", component),
		base:          l.base,
		component:     component,
	}
}

// WithUser returns a logger with the user id attached.
func (l *Logger) WithUser(userID int64) *Logger {
	return &Logger{
		SugaredLogger: l.SugaredLogger.With("user_id", userID),
		base:          l.base.With("user_id", userID),
		component:     l.component,
	}
}

// Audit logs a security relevant event.
func (l *Logger) Audit(msg string, keysAndValues ...interface{}) {
	l.SugaredLogger.With("audit", true, "at", time.Now().UTC()).Infow(msg, keysAndValues...)
}

func (l *Logger) Debug(msg string, keysAndValues ...interface{}) {
	l.Debugw(msg, keysAndValues...)
}

func (l *Logger) Info(msg string, keysAndValues ...interface{}) {
	l.Infow(msg, keysAndValues...)
}

func (l *Logger) Warn(msg string, keysAndValues ...interface{}) {
	l.Warnw(msg, keysAndValues...)
}

func (l *Logger) Error(msg string, keysAndValues ...interface{}) {
	l.Errorw(msg, keysAndValues...)
}

// Fatal logs and then calls os.Exit(1)
func (l *Logger) Fatal(msg string, keysAndValues ...interface{}) {
	l.Fatalw(msg, keysAndValues...)
}

// Sync flushes buffered entries.
func (l *Logger) Sync() {
	_ = l.SugaredLogger.Sync()
}

package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// zapLogger implements Logger on top of uber-go/zap.
type zapLogger struct {
	logger *zap.Logger
	fields []Field
}

// NewLogger creates the default production logger. Output is JSON on stdout
// at INFO level.
func NewLogger(options ...Option) Logger {
	opts := &loggerOptions{
		level:       INFO,
		outputPaths: []string{"stdout"},
	}
	for _, opt := range options {
		opt(opts)
	}

	config := zap.NewProductionConfig()
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	config.OutputPaths = opts.outputPaths
	config.Level = zap.NewAtomicLevelAt(zapLevel(opts.level))
	if opts.development {
		config = zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		config.Level = zap.NewAtomicLevelAt(zapLevel(opts.level))
	}

	logger, err := config.Build(zap.AddCallerSkip(1))
	if err != nil {
		// A broken logging config should not take the process down.
		return NewNopLogger()
	}
	return &zapLogger{logger: logger}
}

// Option configures the logger returned by NewLogger.
type Option func(*loggerOptions)

type loggerOptions struct {
	level       Level
	development bool
	outputPaths []string
}

// WithLevel sets the minimum level of emitted messages.
func WithLevel(level Level) Option {
	return func(o *loggerOptions) { o.level = level }
}

// WithDevelopmentMode switches to the human-readable console encoder.
func WithDevelopmentMode() Option {
	return func(o *loggerOptions) { o.development = true }
}

// WithOutputPaths overrides where log output is written.
func WithOutputPaths(paths ...string) Option {
	return func(o *loggerOptions) { o.outputPaths = paths }
}

func zapLevel(level Level) zapcore.Level {
	switch level {
	case DEBUG:
		return zapcore.DebugLevel
	case WARN:
		return zapcore.WarnLevel
	case ERROR:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

func (l *zapLogger) Debug(msg string, fields ...Field) { l.write(zapcore.DebugLevel, msg, fields) }
func (l *zapLogger) Info(msg string, fields ...Field)  { l.write(zapcore.InfoLevel, msg, fields) }
func (l *zapLogger) Warn(msg string, fields ...Field)  { l.write(zapcore.WarnLevel, msg, fields) }
func (l *zapLogger) Error(msg string, fields ...Field) { l.write(zapcore.ErrorLevel, msg, fields) }

func (l *zapLogger) WithFields(fields ...Field) Logger {
	combined := make([]Field, 0, len(l.fields)+len(fields))
	combined = append(combined, l.fields...)
	combined = append(combined, fields...)
	return &zapLogger{logger: l.logger, fields: combined}
}

func (l *zapLogger) write(level zapcore.Level, msg string, fields []Field) {
	ce := l.logger.Check(level, msg)
	if ce == nil {
		return
	}
	zapFields := make([]zap.Field, 0, len(l.fields)+len(fields))
	for _, f := range l.fields {
		zapFields = append(zapFields, zap.Any(f.Key, f.Value))
	}
	for _, f := range fields {
		zapFields = append(zapFields, zap.Any(f.Key, f.Value))
	}
	ce.Write(zapFields...)
}

// Sync flushes any buffered entries on the underlying zap logger.
func (l *zapLogger) Sync() error { return l.logger.Sync() }

package utils

import (
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	logLevelDebugStringConstant          = "debug"
	logLevelInfoStringConstant           = "info"
	logLevelWarnStringConstant           = "warn"
	logLevelErrorStringConstant          = "error"
	logFormatStructuredStringConstant    = "structured"
	logFormatConsoleStringConstant       = "console"
	unsupportedLogLevelTemplateConstant  = "unsupported log level: %s"
	unsupportedLogFormatTemplateConstant = "unsupported log format: %s"
	consoleMessageKeyConstant            = "message"
	consoleLevelKeyConstant              = "level"
)

// LogLevel enumerates supported logging granularities.
type LogLevel string

// Exported log level constants for reuse across packages.
const (
	LogLevelDebug LogLevel = LogLevel(logLevelDebugStringConstant)
	LogLevelInfo  LogLevel = LogLevel(logLevelInfoStringConstant)
	LogLevelWarn  LogLevel = LogLevel(logLevelWarnStringConstant)
	LogLevelError LogLevel = LogLevel(logLevelErrorStringConstant)
)

// LogFormat enumerates supported logger output encodings.
type LogFormat string

// Exported log format constants for reuse across packages.
const (
	LogFormatStructured LogFormat = LogFormat(logFormatStructuredStringConstant)
	LogFormatConsole    LogFormat = LogFormat(logFormatConsoleStringConstant)
)

// LoggerOutputs bundles the diagnostic logger with the logger used for human-readable lifecycle messages.
// ConsoleLogger is a no-op logger unless the console format was requested.
type LoggerOutputs struct {
	DiagnosticLogger *zap.Logger
	ConsoleLogger    *zap.Logger
}

// LoggerFactory builds zap.Logger instances with consistent configuration.
type LoggerFactory struct {
	destination zapcore.WriteSyncer
}

var logLevelMapping = map[LogLevel]zapcore.Level{
	LogLevelDebug: zapcore.DebugLevel,
	LogLevelInfo:  zapcore.InfoLevel,
	LogLevelWarn:  zapcore.WarnLevel,
	LogLevelError: zapcore.ErrorLevel,
}

// NewLoggerFactory constructs a logger factory writing to standard error.
// Standard output is reserved for the output of supervised processes.
func NewLoggerFactory() *LoggerFactory {
	return &LoggerFactory{}
}

// NewLoggerFactoryWithWriter constructs a logger factory writing to destination.
func NewLoggerFactoryWithWriter(destination io.Writer) *LoggerFactory {
	if destination == nil {
		return NewLoggerFactory()
	}
	return &LoggerFactory{destination: zapcore.AddSync(destination)}
}

// ParseLogLevel normalizes a configured level name.
func ParseLogLevel(value string) (LogLevel, error) {
	requestedLogLevel := LogLevel(strings.ToLower(strings.TrimSpace(value)))
	if _, levelExists := logLevelMapping[requestedLogLevel]; !levelExists {
		return "", fmt.Errorf(unsupportedLogLevelTemplateConstant, value)
	}
	return requestedLogLevel, nil
}

// CreateLogger produces a zap.Logger honoring the requested log level and format.
func (factory *LoggerFactory) CreateLogger(requestedLogLevel LogLevel, requestedLogFormat LogFormat) (*zap.Logger, error) {
	zapLogLevel, levelExists := logLevelMapping[requestedLogLevel]
	if !levelExists {
		return nil, fmt.Errorf(unsupportedLogLevelTemplateConstant, requestedLogLevel)
	}

	encoderConfiguration := zap.NewProductionEncoderConfig()
	encoderConfiguration.EncodeTime = zapcore.ISO8601TimeEncoder

	var encoder zapcore.Encoder
	switch requestedLogFormat {
	case LogFormatStructured:
		encoder = zapcore.NewJSONEncoder(encoderConfiguration)
	case LogFormatConsole:
		encoderConfiguration.EncodeLevel = zapcore.CapitalLevelEncoder
		encoder = zapcore.NewConsoleEncoder(encoderConfiguration)
	default:
		return nil, fmt.Errorf(unsupportedLogFormatTemplateConstant, requestedLogFormat)
	}

	core := zapcore.NewCore(encoder, factory.writeSyncer(), zap.NewAtomicLevelAt(zapLogLevel))
	return zap.New(core, zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel)), nil
}

// CreateLoggerOutputs builds the diagnostic logger and, for the console format, a terse console logger
// that prints only the level and message of lifecycle events.
func (factory *LoggerFactory) CreateLoggerOutputs(requestedLogLevel LogLevel, requestedLogFormat LogFormat) (LoggerOutputs, error) {
	diagnosticLogger, creationError := factory.CreateLogger(requestedLogLevel, requestedLogFormat)
	if creationError != nil {
		return LoggerOutputs{}, creationError
	}

	outputs := LoggerOutputs{DiagnosticLogger: diagnosticLogger, ConsoleLogger: zap.NewNop()}
	if requestedLogFormat != LogFormatConsole {
		return outputs, nil
	}

	consoleEncoderConfiguration := zapcore.EncoderConfig{
		MessageKey:  consoleMessageKeyConstant,
		LevelKey:    consoleLevelKeyConstant,
		EncodeLevel: zapcore.CapitalLevelEncoder,
	}
	consoleCore := zapcore.NewCore(
		zapcore.NewConsoleEncoder(consoleEncoderConfiguration),
		factory.writeSyncer(),
		zap.NewAtomicLevelAt(logLevelMapping[requestedLogLevel]),
	)
	outputs.ConsoleLogger = zap.New(consoleCore)
	return outputs, nil
}

func (factory *LoggerFactory) writeSyncer() zapcore.WriteSyncer {
	if factory == nil || factory.destination == nil {
		return zapcore.Lock(os.Stderr)
	}
	return zapcore.Lock(factory.destination)
}

package utils_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/temirov/procexec/internal/utils"
)

const (
	testLoggerFactoryCaseSupportedFormatConstant   = "supported_log_level_%s_format_%s"
	testLoggerFactoryCaseUnsupportedLevelConstant  = "unsupported_log_level"
	testLoggerFactoryCaseUnsupportedFormatConstant = "unsupported_log_format"
	testLoggerFactorySubtestTemplateConstant       = "%d_%s"
	testInvalidLogLevelConstant                    = "invalid"
	testInvalidLogFormatConstant                   = "invalid"
	testLogMessageConstant                         = "logger_factory_test_message"
	testConsoleMessageConstant                     = "Running ls"
)

func TestLoggerFactoryCreateLogger(testInstance *testing.T) {
	testCases := []struct {
		name                string
		requestedLogLevel   utils.LogLevel
		requestedLogFormat  utils.LogFormat
		expectError         bool
		expectStructuredLog bool
	}{
		{
			name:                fmt.Sprintf(testLoggerFactoryCaseSupportedFormatConstant, utils.LogLevelDebug, utils.LogFormatStructured),
			requestedLogLevel:   utils.LogLevelDebug,
			requestedLogFormat:  utils.LogFormatStructured,
			expectStructuredLog: true,
		},
		{
			name:                fmt.Sprintf(testLoggerFactoryCaseSupportedFormatConstant, utils.LogLevelInfo, utils.LogFormatStructured),
			requestedLogLevel:   utils.LogLevelInfo,
			requestedLogFormat:  utils.LogFormatStructured,
			expectStructuredLog: true,
		},
		{
			name:               fmt.Sprintf(testLoggerFactoryCaseSupportedFormatConstant, utils.LogLevelInfo, utils.LogFormatConsole),
			requestedLogLevel:  utils.LogLevelInfo,
			requestedLogFormat: utils.LogFormatConsole,
		},
		{
			name:               testLoggerFactoryCaseUnsupportedLevelConstant,
			requestedLogLevel:  utils.LogLevel(testInvalidLogLevelConstant),
			requestedLogFormat: utils.LogFormatStructured,
			expectError:        true,
		},
		{
			name:               testLoggerFactoryCaseUnsupportedFormatConstant,
			requestedLogLevel:  utils.LogLevelInfo,
			requestedLogFormat: utils.LogFormat(testInvalidLogFormatConstant),
			expectError:        true,
		},
	}

	for testCaseIndex, testCase := range testCases {
		testInstance.Run(fmt.Sprintf(testLoggerFactorySubtestTemplateConstant, testCaseIndex, testCase.name), func(testInstance *testing.T) {
			var capturedOutput bytes.Buffer
			loggerFactory := utils.NewLoggerFactoryWithWriter(&capturedOutput)

			logger, creationError := loggerFactory.CreateLogger(testCase.requestedLogLevel, testCase.requestedLogFormat)
			if testCase.expectError {
				require.Error(testInstance, creationError)
				require.Nil(testInstance, logger)
				return
			}

			require.NoError(testInstance, creationError)
			require.NotNil(testInstance, logger)

			logger.Info(testLogMessageConstant)
			require.NoError(testInstance, logger.Sync())

			trimmedOutput := bytes.TrimSpace(capturedOutput.Bytes())
			require.NotEmpty(testInstance, trimmedOutput)
			require.Contains(testInstance, string(trimmedOutput), testLogMessageConstant)
			require.Equal(testInstance, testCase.expectStructuredLog, json.Valid(trimmedOutput))
		})
	}
}

func TestLoggerFactoryCreateLoggerOutputs(testInstance *testing.T) {
	testCases := []struct {
		name                 string
		requestedLogFormat   utils.LogFormat
		expectConsoleMessage bool
	}{
		{
			name:               "structured_format_silences_console",
			requestedLogFormat: utils.LogFormatStructured,
		},
		{
			name:                 "console_format_prints_level_and_message",
			requestedLogFormat:   utils.LogFormatConsole,
			expectConsoleMessage: true,
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			var capturedOutput bytes.Buffer
			loggerFactory := utils.NewLoggerFactoryWithWriter(&capturedOutput)

			outputs, creationError := loggerFactory.CreateLoggerOutputs(utils.LogLevelInfo, testCase.requestedLogFormat)
			require.NoError(testInstance, creationError)
			require.NotNil(testInstance, outputs.DiagnosticLogger)
			require.NotNil(testInstance, outputs.ConsoleLogger)

			outputs.ConsoleLogger.Info(testConsoleMessageConstant)

			if !testCase.expectConsoleMessage {
				require.Empty(testInstance, capturedOutput.String())
				return
			}
			require.Equal(testInstance, "INFO\t"+testConsoleMessageConstant, strings.TrimSpace(capturedOutput.String()))
		})
	}
}

func TestParseLogLevel(testInstance *testing.T) {
	testCases := []struct {
		name          string
		value         string
		expectedLevel utils.LogLevel
		expectError   bool
	}{
		{name: "lowercase", value: "debug", expectedLevel: utils.LogLevelDebug},
		{name: "mixed_case_with_spaces", value: " Warn ", expectedLevel: utils.LogLevelWarn},
		{name: "unsupported", value: testInvalidLogLevelConstant, expectError: true},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			level, parseError := utils.ParseLogLevel(testCase.value)
			if testCase.expectError {
				require.Error(testInstance, parseError)
				return
			}
			require.NoError(testInstance, parseError)
			require.Equal(testInstance, testCase.expectedLevel, level)
		})
	}
}

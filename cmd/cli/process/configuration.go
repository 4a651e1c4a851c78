package process

import (
	"strings"
	"time"
)

const (
	defaultPoolSizeConstant     = 12
	defaultPollIntervalConstant = 10 * time.Millisecond
	defaultStopTimeoutConstant  = 5 * time.Second
	minimumPoolSizeConstant     = 3

	// ReportFormatNone disables exit reports.
	ReportFormatNone = "none"
)

// CommandConfiguration captures the execution settings shared by the run and docker commands.
type CommandConfiguration struct {
	Async           bool          `mapstructure:"async"`
	PoolSize        int           `mapstructure:"pool_size"`
	PollInterval    time.Duration `mapstructure:"poll_interval"`
	StopTimeout     time.Duration `mapstructure:"stop_timeout"`
	ReportFormat    string        `mapstructure:"report_format"`
	MetricsTextfile string        `mapstructure:"metrics_textfile"`
}

// DefaultCommandConfiguration provides the execution settings used when nothing is configured.
func DefaultCommandConfiguration() CommandConfiguration {
	return CommandConfiguration{
		PoolSize:     defaultPoolSizeConstant,
		PollInterval: defaultPollIntervalConstant,
		StopTimeout:  defaultStopTimeoutConstant,
		ReportFormat: ReportFormatNone,
	}
}

// DefaultConfigurationValues returns viper defaults keyed beneath prefix.
func DefaultConfigurationValues(prefix string) map[string]any {
	defaults := DefaultCommandConfiguration()
	return map[string]any{
		prefix + ".async":            defaults.Async,
		prefix + ".pool_size":        defaults.PoolSize,
		prefix + ".poll_interval":    defaults.PollInterval.String(),
		prefix + ".stop_timeout":     defaults.StopTimeout.String(),
		prefix + ".report_format":    defaults.ReportFormat,
		prefix + ".metrics_textfile": defaults.MetricsTextfile,
	}
}

// Sanitize replaces out-of-range values with defaults.
func (configuration CommandConfiguration) Sanitize() CommandConfiguration {
	defaults := DefaultCommandConfiguration()
	sanitized := configuration
	if sanitized.PoolSize < minimumPoolSizeConstant {
		sanitized.PoolSize = defaults.PoolSize
	}
	if sanitized.PollInterval <= 0 {
		sanitized.PollInterval = defaults.PollInterval
	}
	if sanitized.StopTimeout <= 0 {
		sanitized.StopTimeout = defaults.StopTimeout
	}
	sanitized.ReportFormat = strings.ToLower(strings.TrimSpace(sanitized.ReportFormat))
	if len(sanitized.ReportFormat) == 0 {
		sanitized.ReportFormat = defaults.ReportFormat
	}
	sanitized.MetricsTextfile = strings.TrimSpace(sanitized.MetricsTextfile)
	return sanitized
}

// Package utils exposes reusable helpers consumed by the procexec commands.
//
// ConfigurationLoader layers embedded defaults, configuration files and
// environment overrides through Viper. LoggerFactory builds the zap loggers.
package utils

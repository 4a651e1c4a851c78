package utils

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	pathutils "github.com/temirov/procexec/internal/utils/path"
)

const (
	nestedKeySeparatorConstant                      = "."
	environmentKeySeparatorConstant                 = "_"
	listValueSeparatorConstant                      = ","
	configurationReadErrorTemplateConstant          = "failed to read configuration: %w"
	configurationUnmarshalErrorTemplateConstant     = "failed to parse configuration: %w"
	embeddedConfigurationMergeErrorTemplateConstant = "failed to merge embedded configuration: %w"
)

// ConfigurationLoader resolves procexec settings such as common.log_level or
// execution.stop_timeout. Layers, lowest precedence first:
//
//   - programmatic defaults
//   - the embedded configuration
//   - a configuration file
//   - prefixed environment variables (PROCEXEC_EXECUTION_STOP_TIMEOUT overrides execution.stop_timeout)
type ConfigurationLoader struct {
	configurationName string
	configurationType string
	environmentPrefix string
	searchPaths       []string
	embedded          embeddedConfiguration
}

type embeddedConfiguration struct {
	content           []byte
	configurationType string
}

// LoadedConfiguration reports where the file layer came from.
type LoadedConfiguration struct {
	ConfigFileUsed string
}

// NewConfigurationLoader creates a loader for configurationName searched in searchPaths.
// Search paths starting with "~" resolve against the user's home directory.
func NewConfigurationLoader(configurationName string, configurationType string, environmentPrefix string, searchPaths []string) *ConfigurationLoader {
	homeExpander := pathutils.NewHomeExpander()
	expandedSearchPaths := make([]string, 0, len(searchPaths))
	for _, searchPath := range searchPaths {
		expandedSearchPaths = append(expandedSearchPaths, homeExpander.Expand(searchPath))
	}

	return &ConfigurationLoader{
		configurationName: configurationName,
		configurationType: configurationType,
		environmentPrefix: environmentPrefix,
		searchPaths:       expandedSearchPaths,
	}
}

// SetEmbeddedConfiguration installs configuration merged beneath the configuration file, typically the binary's default_config.yaml.
// An empty configurationType falls back to the loader's type.
func (loader *ConfigurationLoader) SetEmbeddedConfiguration(configurationData []byte, configurationType string) {
	if loader == nil {
		return
	}
	loader.embedded = embeddedConfiguration{configurationType: strings.TrimSpace(configurationType)}
	if len(configurationData) > 0 {
		loader.embedded.content = append([]byte{}, configurationData...)
	}
}

// LoadConfiguration decodes every layer into targetConfiguration.
// An explicit configurationFilePath replaces the search paths. Durations such
// as "250ms" decode into time.Duration fields and comma-separated strings into
// []string fields.
func (loader *ConfigurationLoader) LoadConfiguration(configurationFilePath string, defaultValues map[string]any, targetConfiguration any) (LoadedConfiguration, error) {
	viperInstance := viper.New()
	viperInstance.SetConfigName(loader.configurationName)

	if mergeError := loader.mergeEmbeddedConfiguration(viperInstance); mergeError != nil {
		return LoadedConfiguration{}, mergeError
	}
	viperInstance.SetConfigType(loader.configurationType)

	for _, searchPath := range loader.searchPaths {
		viperInstance.AddConfigPath(searchPath)
	}
	viperInstance.SetEnvPrefix(loader.environmentPrefix)
	viperInstance.SetEnvKeyReplacer(strings.NewReplacer(nestedKeySeparatorConstant, environmentKeySeparatorConstant))
	viperInstance.AutomaticEnv()

	// Environment variables are only consulted for keys viper knows, so every
	// overridable key needs a default.
	for defaultKey, defaultValue := range defaultValues {
		viperInstance.SetDefault(defaultKey, defaultValue)
	}

	if len(configurationFilePath) > 0 {
		viperInstance.SetConfigFile(configurationFilePath)
	}
	if readError := viperInstance.MergeInConfig(); readError != nil {
		var notFoundError viper.ConfigFileNotFoundError
		if !errors.As(readError, &notFoundError) {
			return LoadedConfiguration{}, fmt.Errorf(configurationReadErrorTemplateConstant, readError)
		}
	}

	if unmarshalError := viperInstance.Unmarshal(targetConfiguration, settingsDecodeHook()); unmarshalError != nil {
		return LoadedConfiguration{}, fmt.Errorf(configurationUnmarshalErrorTemplateConstant, unmarshalError)
	}

	return LoadedConfiguration{ConfigFileUsed: viperInstance.ConfigFileUsed()}, nil
}

func (loader *ConfigurationLoader) mergeEmbeddedConfiguration(viperInstance *viper.Viper) error {
	if len(loader.embedded.content) == 0 {
		return nil
	}
	configurationType := loader.embedded.configurationType
	if len(configurationType) == 0 {
		configurationType = loader.configurationType
	}
	viperInstance.SetConfigType(configurationType)
	if mergeError := viperInstance.MergeConfig(bytes.NewReader(loader.embedded.content)); mergeError != nil {
		return fmt.Errorf(embeddedConfigurationMergeErrorTemplateConstant, mergeError)
	}
	return nil
}

func settingsDecodeHook() viper.DecoderConfigOption {
	return viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(listValueSeparatorConstant),
	))
}

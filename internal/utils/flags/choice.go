// Package flags provides pflag values shared by the procexec commands.
package flags

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
)

const (
	choicePlaceholderPrefixConstant  = "<"
	choicePlaceholderSuffixConstant  = ">"
	choiceSeparatorLiteralConstant   = "|"
	choiceUsageEmptyTemplateConstant = "`%s`"
	choiceUsageFullTemplateConstant  = "`%s` %s"
	choiceTypeNameConstant           = "choice"
	invalidChoiceTemplateConstant    = "invalid value %q, expected one of %s"
	choiceListSeparatorConstant      = ", "
)

// FormatChoiceUsage builds a usage string where the default option is capitalized inside a placeholder.
func FormatChoiceUsage(defaultChoice string, choices []string, description string) string {
	placeholder := buildChoicePlaceholder(defaultChoice, choices)
	if len(strings.TrimSpace(description)) == 0 {
		return fmt.Sprintf(choiceUsageEmptyTemplateConstant, placeholder)
	}
	return fmt.Sprintf(choiceUsageFullTemplateConstant, placeholder, description)
}

// ParseChoice returns the canonical choice matching value case-insensitively.
func ParseChoice(value string, choices []string) (string, error) {
	normalizedValue := strings.ToLower(strings.TrimSpace(value))
	for _, choice := range choices {
		if strings.ToLower(strings.TrimSpace(choice)) == normalizedValue {
			return strings.TrimSpace(choice), nil
		}
	}
	return "", fmt.Errorf(invalidChoiceTemplateConstant, value, strings.Join(choices, choiceListSeparatorConstant))
}

// AddChoiceFlag registers a string flag restricted to choices.
// Invalid values are rejected while the command line is parsed.
func AddChoiceFlag(flagSet *pflag.FlagSet, target *string, name string, defaultChoice string, choices []string, description string) {
	if flagSet == nil || target == nil || len(name) == 0 {
		return
	}
	*target = defaultChoice
	flagSet.Var(&choiceValue{target: target, choices: choices}, name, FormatChoiceUsage(defaultChoice, choices, description))
}

type choiceValue struct {
	target  *string
	choices []string
}

func (value *choiceValue) Set(rawValue string) error {
	parsedChoice, parseError := ParseChoice(rawValue, value.choices)
	if parseError != nil {
		return parseError
	}
	*value.target = parsedChoice
	return nil
}

func (value *choiceValue) String() string {
	if value == nil || value.target == nil {
		return ""
	}
	return *value.target
}

func (value *choiceValue) Type() string {
	return choiceTypeNameConstant
}

func buildChoicePlaceholder(defaultChoice string, choices []string) string {
	highlightedChoices := highlightDefaultChoice(defaultChoice, choices)
	return choicePlaceholderPrefixConstant + strings.Join(highlightedChoices, choiceSeparatorLiteralConstant) + choicePlaceholderSuffixConstant
}

func highlightDefaultChoice(defaultChoice string, choices []string) []string {
	normalizedDefault := strings.ToLower(strings.TrimSpace(defaultChoice))
	highlighted := make([]string, 0, len(choices))
	seen := make(map[string]struct{}, len(choices))

	for _, choice := range choices {
		trimmedChoice := strings.TrimSpace(choice)
		if len(trimmedChoice) == 0 {
			continue
		}

		normalizedChoice := strings.ToLower(trimmedChoice)
		if _, exists := seen[normalizedChoice]; exists {
			continue
		}

		displayValue := trimmedChoice
		if normalizedChoice == normalizedDefault && len(normalizedChoice) > 0 {
			displayValue = strings.ToUpper(trimmedChoice)
		}

		highlighted = append(highlighted, displayValue)
		seen[normalizedChoice] = struct{}{}
	}

	return highlighted
}

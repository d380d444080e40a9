package config

import (
	"errors"
	"fmt"
	"strings"
)

// ErrConfigFile is wrapped by errors from reading or parsing a config file.
var ErrConfigFile = errors.New("config file")

// ConfigError describes one invalid or missing configuration value.
//
//nolint:revive // ConfigError reads better than Error at call sites
type ConfigError struct {
	Category string // "missing", "invalid" or "load"
	Field    string // dotted config path, e.g. httpclient.timeout
	Message  string
	Action   string
	Err      error
}

// Error formats as "config_<category>: <field> <message> <action>".
func (e *ConfigError) Error() string {
	var parts []string
	if e.Category != "" {
		parts = append(parts, fmt.Sprintf("config_%s:", e.Category))
	}
	if e.Field != "" {
		parts = append(parts, e.Field)
	}
	if e.Message != "" {
		parts = append(parts, e.Message)
	}
	if e.Action != "" {
		parts = append(parts, e.Action)
	}
	if e.Err != nil {
		parts = append(parts, e.Err.Error())
	}
	return strings.Join(parts, " ")
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// NewMissingFieldError reports a required field that has no value.
func NewMissingFieldError(field string) *ConfigError {
	return &ConfigError{
		Category: "missing",
		Field:    field,
		Message:  "required",
		Action:   fmt.Sprintf("set %s env var or add %s to config.yaml", EnvVarName(field), field),
	}
}

// NewInvalidFieldError reports a value outside the accepted range or set.
func NewInvalidFieldError(field, message string, validOptions []string) *ConfigError {
	err := &ConfigError{
		Category: "invalid",
		Field:    field,
		Message:  message,
	}
	if len(validOptions) > 0 {
		err.Action = fmt.Sprintf("must be one of: %s", strings.Join(validOptions, ", "))
	}
	return err
}

// NewLoadError reports a config source that could not be read.
func NewLoadError(source string, err error) *ConfigError {
	return &ConfigError{
		Category: "load",
		Field:    source,
		Message:  "could not be loaded",
		Err:      fmt.Errorf("%w: %w", ErrConfigFile, err),
	}
}

// EnvVarName returns the environment variable that overrides a dotted field path.
func EnvVarName(field string) string {
	return EnvPrefix + strings.ToUpper(strings.ReplaceAll(field, ".", envNestingSeparator))
}

package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// Error types carried by ConfigurationError.
const (
	ErrorTypeIO         = "io"
	ErrorTypeParse      = "parse"
	ErrorTypeValidation = "validation"
)

// ConfigurationError represents a structured error that occurs during configuration loading.
// It is surfaced to callers unwrapped so the CLI can present it with its suggestions.
type ConfigurationError struct {
	FilePath    string   `json:"filePath"`    // Full path to the file that caused the error
	FileName    string   `json:"fileName"`    // Base name of the file
	ErrorType   string   `json:"errorType"`   // Type of error (parse, validation, io)
	Message     string   `json:"message"`     // Human-readable error message
	Details     string   `json:"details"`     // Additional details about the error
	Suggestions []string `json:"suggestions"` // Actionable suggestions to fix the error
	Err         error    `json:"-"`
}

// Error implements the error interface
func (ce ConfigurationError) Error() string {
	name := ce.FileName
	if name == "" {
		name = "<in-memory>"
	}
	if ce.Details != "" {
		return fmt.Sprintf("[%s] %s: %s: %s", ce.ErrorType, name, ce.Message, ce.Details)
	}
	return fmt.Sprintf("[%s] %s: %s", ce.ErrorType, name, ce.Message)
}

// Unwrap returns the underlying cause, if any.
func (ce ConfigurationError) Unwrap() error {
	return ce.Err
}

// DetailedError returns a detailed error message with all context
func (ce ConfigurationError) DetailedError() string {
	var parts []string

	parts = append(parts, "Configuration Error")
	if ce.FilePath != "" {
		parts = append(parts, fmt.Sprintf("  File: %s", ce.FilePath))
	}
	parts = append(parts, fmt.Sprintf("  Type: %s", ce.ErrorType))
	parts = append(parts, fmt.Sprintf("  Error: %s", ce.Message))

	if ce.Details != "" {
		parts = append(parts, fmt.Sprintf("  Details: %s", ce.Details))
	}

	if len(ce.Suggestions) > 0 {
		parts = append(parts, "  Suggestions:")
		for _, suggestion := range ce.Suggestions {
			parts = append(parts, fmt.Sprintf("    - %s", suggestion))
		}
	}

	return strings.Join(parts, "\n")
}

// NewConfigurationError creates a new configuration error for the file at filePath.
func NewConfigurationError(filePath, errorType, message string, err error) ConfigurationError {
	ce := ConfigurationError{
		FilePath:  filePath,
		ErrorType: errorType,
		Message:   message,
		Err:       err,
	}
	if filePath != "" {
		ce.FileName = filepath.Base(filePath)
	}
	if err != nil {
		ce.Details = err.Error()
	}
	return ce
}

// IsConfigurationError reports whether err is or wraps a ConfigurationError.
func IsConfigurationError(err error) bool {
	var ce ConfigurationError
	return errors.As(err, &ce)
}

// AsConfigurationError extracts a ConfigurationError from err's chain.
func AsConfigurationError(err error) (ConfigurationError, bool) {
	var ce ConfigurationError
	ok := errors.As(err, &ce)
	return ce, ok
}

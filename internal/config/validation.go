package config

import (
	"fmt"
	"net/url"
	"strings"

	"mcphub/internal/api"
)

// ValidationError represents a validation error with context
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

// Error implements the error interface
func (ve ValidationError) Error() string {
	if ve.Field == "" {
		return ve.Message
	}
	return fmt.Sprintf("field '%s': %s", ve.Field, ve.Message)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for multiple validation errors
func (ve ValidationErrors) Error() string {
	if len(ve) == 0 {
		return "no validation errors"
	}
	if len(ve) == 1 {
		return ve[0].Error()
	}

	var messages []string
	for _, err := range ve {
		messages = append(messages, err.Error())
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(messages, "; "))
}

// HasErrors returns true if there are any validation errors
func (ve ValidationErrors) HasErrors() bool {
	return len(ve) > 0
}

// Add adds a new validation error
func (ve *ValidationErrors) Add(field, message string, value ...interface{}) {
	var val interface{}
	if len(value) > 0 {
		val = value[0]
	}
	*ve = append(*ve, ValidationError{
		Field:   field,
		Value:   val,
		Message: message,
	})
}

// AddErr appends err when it is a ValidationError; other errors are recorded by message.
func (ve *ValidationErrors) AddErr(err error) {
	if err == nil {
		return
	}
	if v, ok := err.(ValidationError); ok {
		*ve = append(*ve, v)
		return
	}
	*ve = append(*ve, ValidationError{Message: err.Error()})
}

// ValidateRequired checks if a required string field is not empty
func ValidateRequired(field, value, entityType string) error {
	if strings.TrimSpace(value) == "" {
		return ValidationError{
			Field:   field,
			Value:   value,
			Message: fmt.Sprintf("is required for %s", entityType),
		}
	}
	return nil
}

// ValidateOneOf checks if a value is in a list of allowed values
func ValidateOneOf(field, value string, allowed []string) error {
	for _, allowedValue := range allowed {
		if value == allowedValue {
			return nil
		}
	}
	return ValidationError{
		Field:   field,
		Value:   value,
		Message: fmt.Sprintf("must be one of: %s", strings.Join(allowed, ", ")),
	}
}

// ValidateEntityName validates that an entity name follows proper conventions
func ValidateEntityName(name, entityType string) error {
	if err := ValidateRequired("name", name, entityType); err != nil {
		return err
	}

	if len(name) > 100 {
		return ValidationError{
			Field:   "name",
			Value:   name,
			Message: "must not exceed 100 characters",
		}
	}

	if strings.ContainsAny(name, " \t\n") {
		return ValidationError{
			Field:   "name",
			Value:   name,
			Message: "cannot contain whitespace",
		}
	}

	return nil
}

// ValidateServerConfig checks one server entry. Field names are prefixed with the
// server's position in the document.
func ValidateServerConfig(name string, sc ServerConfig) ValidationErrors {
	var errs ValidationErrors
	prefix := fmt.Sprintf("mcpServers.%s", name)

	if err := ValidateEntityName(name, "MCP server"); err != nil {
		errs.AddErr(err)
	}

	transport := sc.Transport()
	allowed := []string{string(api.TransportStdio), string(api.TransportSSE), string(api.TransportStreamableHTTP)}
	if transport == "" {
		errs.Add(prefix, "must set either command or url", nil)
		return errs
	}
	if err := ValidateOneOf(prefix+".type", string(transport), allowed); err != nil {
		errs.AddErr(err)
		return errs
	}

	switch transport {
	case api.TransportStdio:
		if err := ValidateRequired(prefix+".command", sc.Command, "stdio servers"); err != nil {
			errs.AddErr(err)
		}
	case api.TransportSSE, api.TransportStreamableHTTP:
		if err := ValidateRequired(prefix+".url", sc.URL, string(transport)+" servers"); err != nil {
			errs.AddErr(err)
		} else if u, err := url.Parse(sc.URL); err != nil || u.Scheme == "" || u.Host == "" {
			errs.Add(prefix+".url", "must be an absolute URL", sc.URL)
		}
	}

	if sc.Timeout < 0 {
		errs.Add(prefix+".timeout", "must not be negative", sc.Timeout)
	}

	return errs
}

// Validate checks every server entry in the document.
func (c HubConfig) Validate() error {
	var errs ValidationErrors
	for _, name := range c.ServerNames() {
		errs = append(errs, ValidateServerConfig(name, c.MCPServers[name])...)
	}
	if errs.HasErrors() {
		return errs
	}
	return nil
}

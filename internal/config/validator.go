package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/go-playground/validator/v10"
)

// RegisterCustomValidators registers Stream Gate specific validation rules.
// Must be called before validating Config.
func RegisterCustomValidators(v *validator.Validate) error {
	if err := v.RegisterValidation("ws_url", validateWSURL); err != nil {
		return fmt.Errorf("failed to register ws_url validator: %w", err)
	}
	if err := v.RegisterValidation("header_template", validateHeaderTemplate); err != nil {
		return fmt.Errorf("failed to register header_template validator: %w", err)
	}
	return nil
}

// validateWSURL accepts ws:// or wss:// URLs with a host.
func validateWSURL(fl validator.FieldLevel) bool {
	u, err := url.Parse(fl.Field().String())
	if err != nil {
		return false
	}
	return (u.Scheme == "ws" || u.Scheme == "wss") && u.Host != ""
}

// validateHeaderTemplate requires exactly one %s verb and no other verbs,
// so fmt.Sprintf(template, token) can never mangle the header value.
func validateHeaderTemplate(fl validator.FieldLevel) bool {
	// Literal %% is not a verb; strip it before counting.
	stripped := strings.ReplaceAll(fl.Field().String(), "%%", "")
	if strings.Count(stripped, "%s") != 1 {
		return false
	}
	stripped = strings.Replace(stripped, "%s", "", 1)
	return !strings.Contains(stripped, "%")
}

// Validate validates the Config using struct tags and cross-field rules.
// Returns an error with actionable messages on failure.
func (c *Config) Validate() error {
	v := validator.New(validator.WithRequiredStructEnabled())

	if err := RegisterCustomValidators(v); err != nil {
		return err
	}

	if err := v.Struct(c); err != nil {
		return formatValidationErrors(err)
	}

	// Cross-field: an enabled admin API without a key hash would be an
	// open admin surface.
	if c.Admin.Enabled && c.Admin.APIKeyHash == "" {
		return errors.New("admin.api_key_hash is required when admin.enabled is true (generate one with 'stream-gate hash-key')")
	}

	if c.Audit.Enabled && c.Audit.Output == "file" && c.Audit.Dir == "" {
		return errors.New("audit.dir is required when audit.output is 'file'")
	}

	return nil
}

// formatValidationErrors converts validator.ValidationErrors to
// user-friendly messages.
func formatValidationErrors(err error) error {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		var messages []string
		for _, e := range validationErrors {
			messages = append(messages, formatSingleValidationError(e))
		}
		return errors.New(strings.Join(messages, "; "))
	}
	return err
}

// formatSingleValidationError creates a user-friendly message for a single
// validation error.
func formatSingleValidationError(e validator.FieldError) string {
	field := e.Namespace()
	tag := e.Tag()

	switch tag {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, e.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", field, e.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, e.Param())
	case "ws_url":
		return fmt.Sprintf("%s must be a ws:// or wss:// URL with a host", field)
	case "header_template":
		return fmt.Sprintf("%s must contain exactly one %%s verb", field)
	default:
		return fmt.Sprintf("%s failed validation: %s", field, tag)
	}
}

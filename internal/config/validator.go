package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Validate validates the Config using struct tags and cross-field rules.
func (c *Config) Validate() error {
	v := validator.New(validator.WithRequiredStructEnabled())

	if err := v.Struct(c); err != nil {
		return formatValidationErrors(err)
	}

	if err := c.validateUniqueUpstreamNames(); err != nil {
		return err
	}
	if err := c.validateTavilyRequiresAPIKey(); err != nil {
		return err
	}
	if err := c.validateRetryDelayOrdering(); err != nil {
		return err
	}

	return nil
}

func (c *Config) validateUniqueUpstreamNames() error {
	seen := make(map[string]struct{}, len(c.Upstreams))
	for i, u := range c.Upstreams {
		if _, dup := seen[u.Name]; dup {
			return fmt.Errorf("upstreams[%d]: duplicate upstream name %q", i, u.Name)
		}
		seen[u.Name] = struct{}{}
	}
	return nil
}

func (c *Config) validateTavilyRequiresAPIKey() error {
	for _, u := range c.Upstreams {
		if u.Name != "tavily" || !u.Enabled {
			continue
		}
		if u.Env["TAVILY_API_KEY"] == "" {
			return errors.New("upstreams: tavily is enabled but TAVILY_API_KEY is not set")
		}
	}
	return nil
}

func (c *Config) validateRetryDelayOrdering() error {
	if c.Retry.MaxDelayMs < c.Retry.InitialDelayMs {
		return fmt.Errorf("retry: max_delay_ms (%d) must be >= initial_delay_ms (%d)", c.Retry.MaxDelayMs, c.Retry.InitialDelayMs)
	}
	return nil
}

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

func formatSingleValidationError(e validator.FieldError) string {
	field := e.Namespace()
	tag := e.Tag()

	switch tag {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, e.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, e.Param())
	default:
		return fmt.Sprintf("%s failed validation: %s", field, tag)
	}
}

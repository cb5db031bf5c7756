package api

import (
	"fmt"
	"time"
)

// SourceConfig describes a JSON endpoint that serves dataset records
type SourceConfig struct {
	URL      string            `json:"url"`
	DataPath string            `json:"data_path"` // gjson path to the records array; "" means the document root
	Headers  map[string]string `json:"headers,omitempty"`

	AuthMethod string `json:"auth_method,omitempty"` // "bearer" or "api_key"
	AuthToken  string `json:"-"`

	// CursorParam enables cursor pagination: the next cursor is read from
	// the response and sent back as this query parameter.
	CursorParam string        `json:"cursor_param,omitempty"`
	MaxPages    int           `json:"max_pages"`
	Timeout     time.Duration `json:"timeout"`
}

// DefaultSourceConfig returns a single-page source with a 30s timeout
func DefaultSourceConfig(url string) SourceConfig {
	return SourceConfig{
		URL:      url,
		MaxPages: 1,
		Timeout:  30 * time.Second,
	}
}

// Validate checks if the configuration is usable
func (c SourceConfig) Validate() error {
	if c.URL == "" {
		return &ValidationError{Field: "URL", Message: "is required"}
	}
	if c.MaxPages <= 0 {
		return &ValidationError{Field: "MaxPages", Message: "must be positive"}
	}
	if c.Timeout <= 0 {
		return &ValidationError{Field: "Timeout", Message: "must be positive"}
	}
	switch c.AuthMethod {
	case "", "bearer", "api_key":
	default:
		return &ValidationError{Field: "AuthMethod", Message: fmt.Sprintf("unsupported method %q", c.AuthMethod)}
	}
	return nil
}

// ValidationError represents a configuration validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

package backend

import "fmt"

// ConfigurationError reports an unusable backend configuration. It is
// returned by Factory.Build before any network I/O happens.
type ConfigurationError struct {
	Field   string
	Message string
}

func (e *ConfigurationError) Error() string {
	if e.Field == "" {
		return "backend configuration: " + e.Message
	}
	return fmt.Sprintf("backend configuration: %s: %s", e.Field, e.Message)
}

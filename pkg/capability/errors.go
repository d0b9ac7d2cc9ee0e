package capability

import (
	"errors"
	"fmt"
	"strings"
)

// ErrRegistrySealed is returned by Register once the registry has been sealed.
var ErrRegistrySealed = errors.New("capability registry is sealed")

// DuplicateCapabilityError reports a registration under a name already taken.
type DuplicateCapabilityError struct {
	Name string
}

func (e *DuplicateCapabilityError) Error() string {
	return fmt.Sprintf("capability %q is already registered", e.Name)
}

// UnknownCapabilityError reports selected names that are not registered.
type UnknownCapabilityError struct {
	Names []string
}

func (e *UnknownCapabilityError) Error() string {
	if len(e.Names) == 1 {
		return fmt.Sprintf("unknown capability %q", e.Names[0])
	}
	quoted := make([]string, len(e.Names))
	for i, n := range e.Names {
		quoted[i] = fmt.Sprintf("%q", n)
	}
	return "unknown capabilities " + strings.Join(quoted, ", ")
}

// InvalidNameError reports a capability name that cannot be shown to a model.
type InvalidNameError struct {
	Name string
}

func (e *InvalidNameError) Error() string {
	return fmt.Sprintf("invalid capability name %q: want 1-32 characters of [a-zA-Z0-9_-] without %q",
		e.Name, qualifiedSeparator)
}

package capability

import (
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rhuss/palaver/pkg/api"
	"github.com/rhuss/palaver/pkg/debug"
)

var namePattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_-]*$`)

// Registry maps capability names to modules. It is populated at startup and
// read concurrently by every completion afterwards. Reads take a shared lock
// and never observe a partially applied registration.
type Registry struct {
	mu sync.RWMutex

	// order keeps registration order so listings and sets are stable.
	order   []string
	modules map[string]Module
	sealed  bool
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{
		modules: make(map[string]Module),
	}
}

// Register adds m under name. It fails with *DuplicateCapabilityError if
// the name is taken, *InvalidNameError if the name cannot be used in a
// function name, and ErrRegistrySealed after Seal.
//
// Any Prometheus collectors the module exports are registered as well.
func (r *Registry) Register(name string, m Module) error {
	if m == nil {
		return fmt.Errorf("capability %q: module is nil", name)
	}
	if !namePattern.MatchString(name) || strings.Contains(name, qualifiedSeparator) {
		return &InvalidNameError{Name: name}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sealed {
		return ErrRegistrySealed
	}
	if _, ok := r.modules[name]; ok {
		return &DuplicateCapabilityError{Name: name}
	}

	r.modules[name] = m
	r.order = append(r.order, name)

	if mp, ok := m.(MetricsProvider); ok {
		for _, c := range mp.Collectors() {
			if err := prometheus.Register(c); err != nil {
				// Already registered is not an error worth failing for.
				slog.Debug("collector already registered", "capability", name, "error", err)
			}
		}
	}

	slog.Info("registered capability",
		"capability", name,
		"functions", len(m.Functions()),
	)
	return nil
}

// Seal prevents further registrations. Completions may run before Seal is
// called; it only guards against late mutation.
func (r *Registry) Seal() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sealed = true
}

// ActiveSet resolves a selection of names to their modules, in registration
// order and without duplicates. Every unknown name is reported in a single
// *UnknownCapabilityError. An empty selection yields an empty set.
func (r *Registry) ActiveSet(selection []string) (Set, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	wanted := make(map[string]bool, len(selection))
	var unknown []string
	for _, name := range selection {
		if _, ok := r.modules[name]; !ok {
			if !wanted[name] {
				unknown = append(unknown, name)
			}
			wanted[name] = true
			continue
		}
		wanted[name] = true
	}
	if len(unknown) > 0 {
		return nil, &UnknownCapabilityError{Names: unknown}
	}

	set := make(Set, 0, len(wanted))
	for _, name := range r.order {
		if wanted[name] {
			set = append(set, Entry{Name: name, Module: r.modules[name]})
		}
	}
	debug.Log("capabilities", "resolved active set", "selection", selection, "active", set.Names())
	return set, nil
}

// All returns every registered module in registration order.
func (r *Registry) All() Set {
	r.mu.RLock()
	defer r.mu.RUnlock()

	set := make(Set, 0, len(r.order))
	for _, name := range r.order {
		set = append(set, Entry{Name: name, Module: r.modules[name]})
	}
	return set
}

// Names returns the registered names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Len returns the number of registered modules.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// Describe lists the registered modules for display.
func (r *Registry) Describe() []api.CapabilityInfo {
	all := r.All()
	infos := make([]api.CapabilityInfo, 0, len(all))
	for _, e := range all {
		fns := e.Module.Functions()
		names := make([]string, len(fns))
		for i, f := range fns {
			names[i] = f.Name
		}
		infos = append(infos, api.CapabilityInfo{
			Name:        e.Name,
			Description: e.Module.Description(),
			Functions:   names,
		})
	}
	return infos
}

// Close closes every module that implements io.Closer and returns the
// joined errors.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var errs []error
	for _, name := range r.order {
		if err := closeModule(r.modules[name]); err != nil {
			slog.Warn("failed to close capability", "capability", name, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}

package capability

import "log/slog"

const qualifiedSeparator = "__"

// QualifiedName joins a module name and one of its function names into the
// name shown to the model.
func QualifiedName(module, function string) string {
	return module + qualifiedSeparator + function
}

// Entry is a registered module together with its registration name.
type Entry struct {
	Name   string
	Module Module
}

// Set is an ordered collection of modules exposed to one completion.
type Set []Entry

// Names returns the module names in order.
func (s Set) Names() []string {
	out := make([]string, len(s))
	for i, e := range s {
		out[i] = e.Name
	}
	return out
}

// Clone returns an independent copy of the set.
func (s Set) Clone() Set {
	if s == nil {
		return nil
	}
	out := make(Set, len(s))
	copy(out, s)
	return out
}

// Binding ties a qualified function name to the module that serves it.
type Binding struct {
	Entry    Entry
	Function Function
}

// QualifiedName returns the name the model sees for this binding.
func (b Binding) QualifiedName() string {
	return QualifiedName(b.Entry.Name, b.Function.Name)
}

// Bindings flattens the set into its functions, keyed by qualified name.
// The slice preserves module and function order.
func (s Set) Bindings() ([]Binding, map[string]Binding) {
	var list []Binding
	index := make(map[string]Binding)
	for _, e := range s {
		for _, f := range e.Module.Functions() {
			b := Binding{Entry: e, Function: f}
			qn := b.QualifiedName()
			if existing, ok := index[qn]; ok {
				slog.Warn("capability function name conflict, keeping first",
					"function", qn,
					"winner", existing.Entry.Name,
					"loser", e.Name,
				)
				continue
			}
			index[qn] = b
			list = append(list, b)
		}
	}
	return list, index
}

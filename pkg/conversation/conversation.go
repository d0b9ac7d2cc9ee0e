// Package conversation turns caller-supplied raw turns into a validated,
// ordered conversation context.
//
// Admission is deliberately lenient: a turn with blank content or an unknown
// role is dropped without error, and the remaining turns keep their relative
// order. Role matching is exact ("user", "assistant"); there is no case
// folding.
package conversation

import (
	"strings"

	"github.com/rhuss/palaver/pkg/api"
	"github.com/rhuss/palaver/pkg/debug"
)

// Context is an ordered sequence of admitted turns. It is immutable once built.
type Context struct {
	turns []api.Turn
}

// Build admits the valid turns of raw, in order. It never fails and never
// mutates raw. Building from an already admitted conversation yields an
// identical context.
func Build(raw []api.RawTurn) *Context {
	turns := make([]api.Turn, 0, len(raw))
	for i, rt := range raw {
		content := strings.TrimSpace(rt.Content)
		if content == "" {
			debug.Log("conversation", "dropping turn with blank content", "index", i, "role", rt.Role)
			continue
		}
		role, ok := api.ParseRole(rt.Role)
		if !ok {
			debug.Log("conversation", "dropping turn with unknown role", "index", i, "role", rt.Role)
			continue
		}
		turns = append(turns, api.Turn{Role: role, Content: content})
	}
	return &Context{turns: turns}
}

// Len returns the number of admitted turns.
func (c *Context) Len() int {
	if c == nil {
		return 0
	}
	return len(c.turns)
}

// IsEmpty reports whether no turn was admitted.
func (c *Context) IsEmpty() bool {
	return c.Len() == 0
}

// Turns returns a copy of the admitted turns.
func (c *Context) Turns() []api.Turn {
	if c == nil {
		return nil
	}
	out := make([]api.Turn, len(c.turns))
	copy(out, c.turns)
	return out
}

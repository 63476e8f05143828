package runtime

import "github.com/vectis-systems/fluxc/internal/ir"

// Context is one service's mapping from each consumed flow identifier to
// its last-known value and a freshness flag. Rather than a per-field
// (value, fresh) wrapper struct, freshness tracking is O(1) with no
// per-firing allocation: a flat value array plus a flag array, both
// indexed by a slot assigned once at construction from the service's
// declared consumed-flow order.
type Context struct {
	index map[string]int
	value []ir.Value
	fresh []bool
}

// NewContext builds a Context with one slot per flow in flowIDs (a
// ServicePlan's ConsumedFlows, in declaration order).
func NewContext(flowIDs []string) *Context {
	c := &Context{
		index: make(map[string]int, len(flowIDs)),
		value: make([]ir.Value, len(flowIDs)),
		fresh: make([]bool, len(flowIDs)),
	}
	for i, id := range flowIDs {
		c.index[id] = i
	}
	return c
}

// Reset clears every freshness flag but preserves values. Every handler
// that mutates the context must call Reset first so freshness reflects
// only the current firing.
func (c *Context) Reset() {
	for i := range c.fresh {
		c.fresh[i] = false
	}
}

// Set writes a flow's value into the context and marks it fresh.
func (c *Context) Set(flowID string, v ir.Value) {
	i, ok := c.index[flowID]
	if !ok {
		return
	}
	c.value[i] = v
	c.fresh[i] = true
}

// Get returns a flow's last-known value and whether it has ever been set.
func (c *Context) Get(flowID string) (ir.Value, bool) {
	i, ok := c.index[flowID]
	if !ok {
		return ir.Value{}, false
	}
	return c.value[i], c.value[i].Kind != 0 || c.fresh[i]
}

// IsNew reports whether flowID was written since the last Reset.
func (c *Context) IsNew(flowID string) bool {
	i, ok := c.index[flowID]
	return ok && c.fresh[i]
}

// Has reports whether this context tracks the given flow at all.
func (c *Context) Has(flowID string) bool {
	_, ok := c.index[flowID]
	return ok
}

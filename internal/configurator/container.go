// Package configurator owns the canonical facet assignment for one session
// and re-runs the decision engine on every mutation. It is the only writer
// of the assignment; the orchestrator observes it through snapshots.
package configurator

import (
	"fmt"
	"sync"

	stderrors "github.com/raphaelfeliz/chat-nov9/internal/common/errors"
	"github.com/raphaelfeliz/chat-nov9/internal/common/logger"
	"github.com/raphaelfeliz/chat-nov9/internal/catalog"
	"github.com/raphaelfeliz/chat-nov9/internal/engine"
	"github.com/raphaelfeliz/chat-nov9/internal/schema"
)

// NullSentinel is the literal string the extraction collaborator uses for
// absence. It must never be stored as a facet value.
const NullSentinel = "null"

// Snapshot is the container's published output after a recompute.
type Snapshot struct {
	Assignment    schema.Assignment
	Question      *engine.QuestionState
	FinalProducts []catalog.Product
	ComposedLabel string
	// Err carries the engine's data-inconsistency signal; nil while a
	// question is pending or products resolved.
	Err error
}

// Listener receives snapshots synchronously, in publication order.
type Listener func(Snapshot)

// Container holds the canonical assignment.
type Container struct {
	mu        sync.Mutex
	index     *catalog.Index
	log       logger.Logger
	current   schema.Assignment
	snapshot  Snapshot
	listeners []Listener
}

// New builds a container and computes the initial snapshot (the first
// question).
func New(index *catalog.Index, log logger.Logger) *Container {
	c := &Container{
		index:   index,
		log:     log.With(map[string]interface{}{"component": "configurator"}),
		current: schema.NewAssignment(),
	}
	c.recomputeLocked()
	return c
}

// Subscribe registers a listener for future snapshots. The listener is
// invoked synchronously under the container's mutation order, never
// concurrently with itself.
func (c *Container) Subscribe(l Listener) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, l)
}

// Snapshot returns the latest published snapshot.
func (c *Container) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshot
}

// SetFacet applies one manual selection. An earlier manual choice
// invalidates every downstream answer, so all facets ordered after the key
// are cleared, including values previously filled by extraction. Unknown
// keys or values are rejected with no state change.
func (c *Container) SetFacet(key schema.Key, value string) error {
	if !schema.Known(key) {
		return stderrors.New(stderrors.ErrCodeInputRejected, fmt.Sprintf("unknown facet %q", key))
	}
	if !schema.ValidValue(key, value) {
		return stderrors.New(stderrors.ErrCodeInputRejected, fmt.Sprintf("unknown value %q for facet %q", value, key))
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	next := c.current.Clone()
	next[key] = value
	clearing := false
	for _, k := range schema.Order {
		if clearing {
			next[k] = ""
		}
		if k == key {
			clearing = true
		}
	}

	c.current = next
	c.recomputeLocked()
	return nil
}

// ApplyExtracted folds a batch of extracted facets into the assignment. The
// user may supply several facts in one utterance, out of order, so unlike
// SetFacet nothing downstream is cleared. Unknown keys, unrecognized values
// and the "null" sentinel are dropped silently; extraction output is
// untrusted.
func (c *Container) ApplyExtracted(partial map[schema.Key]string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	next := c.current.Clone()
	changedUpstream := false
	for key, value := range partial {
		if value == "" || value == NullSentinel {
			continue
		}
		if !schema.Known(key) || !schema.ValidValue(key, value) {
			c.log.Debug("dropping unrecognized extracted facet", map[string]interface{}{
				"facet": string(key),
				"value": value,
			})
			continue
		}
		if next[key] != value && next[key] != "" {
			changedUpstream = true
		}
		next[key] = value
	}

	if changedUpstream {
		// A changed upstream answer can leave a stale downstream one in
		// place. Known quirk of batch application; see DESIGN.md.
		c.log.Warn("batch apply overwrote an answered facet without clearing downstream", nil)
	}

	c.current = next
	c.recomputeLocked()
}

// Reset clears the whole assignment and republishes the initial question.
func (c *Container) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = schema.NewAssignment()
	c.recomputeLocked()
}

// Assignment returns a copy of the canonical assignment.
func (c *Container) Assignment() schema.Assignment {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current.Clone()
}

// recomputeLocked runs the engine and publishes atomically with the
// mutation that triggered it. Callers hold c.mu.
func (c *Container) recomputeLocked() {
	state, err := engine.ComputeNextState(c.index, c.current)
	if err != nil {
		c.log.Error("engine reported inconsistent assignment", map[string]interface{}{
			"assignment": c.current,
			"error":      err.Error(),
		})
	}

	snap := Snapshot{
		Assignment:    c.current.Clone(),
		Question:      state.Question,
		FinalProducts: state.FinalProducts,
		ComposedLabel: schema.ComposedLabel(c.current),
		Err:           err,
	}
	c.snapshot = snap

	for _, l := range c.listeners {
		l(snap)
	}
}

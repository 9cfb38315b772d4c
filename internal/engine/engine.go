// Package engine computes, for a partial facet assignment, either the next
// question to ask or the final matching product set. Pure and deterministic:
// equal inputs always yield equal outputs, no hidden state.
package engine

import (
	"errors"

	"github.com/raphaelfeliz/chat-nov9/internal/catalog"
	"github.com/raphaelfeliz/chat-nov9/internal/schema"
)

// ErrNoMatch signals a fully answered assignment that matches no catalog
// product. This is a catalog/schema authoring bug, distinct from the
// "still in progress" state, and callers must be able to tell them apart.
var ErrNoMatch = errors.New("no product matches the completed assignment")

// QuestionState is the next question to present: the facet, its question
// text, and the options still reachable from the current assignment.
type QuestionState struct {
	Facet    schema.Key      `json:"facet"`
	Question string          `json:"question"`
	Options  []schema.Option `json:"options"`
}

// State is the engine's output. Exactly one of Question and FinalProducts is
// set on success.
type State struct {
	Question      *QuestionState    `json:"question,omitempty"`
	FinalProducts []catalog.Product `json:"final_products,omitempty"`
}

// ComputeNextState walks the facet order, skipping facets whose
// applicability predicate fails under the assignment (they count as
// answered "not applicable"). The first applicable unanswered facet becomes
// the question, with options pruned so no choice dead-ends into zero
// products. With nothing left to ask it resolves the final product set.
func ComputeNextState(idx *catalog.Index, a schema.Assignment) (State, error) {
	for _, key := range schema.Order {
		if !schema.Applicable(key, a) {
			continue
		}
		if a[key] != "" {
			continue
		}

		def := schema.Definitions[key]
		return State{
			Question: &QuestionState{
				Facet:    key,
				Question: def.Question,
				Options:  idx.OptionsFor(key, a),
			},
		}, nil
	}

	products := idx.MatchProducts(a)
	if len(products) == 0 {
		return State{}, ErrNoMatch
	}
	return State{FinalProducts: products}, nil
}

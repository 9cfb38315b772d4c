// Package catalog provides the read-only product index and its facet-match
// filtering. The index is built once from a product snapshot (embedded
// default or Postgres) and never mutated during a session.
package catalog

import (
	"github.com/raphaelfeliz/chat-nov9/internal/schema"
)

// Product is an immutable catalog record tagged with a value for every facet
// it carries. Slug builds the outbound product link, Image feeds the result
// card.
type Product struct {
	SKU    string                `json:"sku"`
	Slug   string                `json:"slug"`
	Image  string                `json:"image"`
	Facets map[schema.Key]string `json:"facets"`
}

// BaseProductURL prefixes product slugs when building outbound links.
const BaseProductURL = "https://www.example-windows.com/products/"

// URL returns the external product page link.
func (p Product) URL() string {
	if p.Slug == "" {
		return ""
	}
	return BaseProductURL + p.Slug
}

// Index answers facet-match queries against a catalog snapshot.
type Index struct {
	products []Product
}

// NewIndex builds an index over the given products. Order is preserved:
// MatchProducts returns results in catalog order, and callers display the
// first match.
func NewIndex(products []Product) *Index {
	cp := make([]Product, len(products))
	copy(cp, products)
	return &Index{products: cp}
}

// Len returns the number of products in the catalog.
func (ix *Index) Len() int {
	return len(ix.products)
}

// MatchProducts returns every product whose tags agree with every answered,
// applicable entry of the assignment. Facets skipped by their applicability
// predicate do not participate in filtering.
func (ix *Index) MatchProducts(a schema.Assignment) []Product {
	var out []Product
	for _, p := range ix.products {
		if matches(p, a) {
			out = append(out, p)
		}
	}
	return out
}

// OptionsFor returns the facet's options pruned to those that still lead to
// at least one catalog product given the assignment so far. Presenting an
// option that dead-ends into zero matches is never allowed.
func (ix *Index) OptionsFor(key schema.Key, a schema.Assignment) []schema.Option {
	def, ok := schema.Definitions[key]
	if !ok {
		return nil
	}
	var out []schema.Option
	for _, opt := range def.Options {
		candidate := a.Clone()
		candidate[key] = opt.Value
		if len(ix.MatchProducts(candidate)) > 0 {
			out = append(out, opt)
		}
	}
	return out
}

func matches(p Product, a schema.Assignment) bool {
	for _, k := range schema.Order {
		v := a[k]
		if v == "" || !schema.Applicable(k, a) {
			continue
		}
		if p.Facets[k] != v {
			return false
		}
	}
	return true
}

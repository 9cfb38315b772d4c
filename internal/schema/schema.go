// Package schema holds the static facet vocabulary of the product
// configurator: the ordered facet keys, their valid options, and the
// dependency rules between them. Pure data, no side effects.
package schema

import "strings"

// Key identifies one configurable product dimension.
type Key string

const (
	KeyCategory          Key = "category"
	KeySystem            Key = "system"
	KeyBlind             Key = "blind"
	KeyBlindMotorization Key = "blind_motorization"
	KeyMaterial          Key = "material"
	KeyPanelCount        Key = "panel_count"
)

// Order defines the question sequence. Later facets may depend on earlier
// answers, never the other way around.
var Order = []Key{
	KeyCategory,
	KeySystem,
	KeyBlind,
	KeyBlindMotorization,
	KeyMaterial,
	KeyPanelCount,
}

// Option is one selectable value for a facet.
type Option struct {
	Value string `json:"value"`
	Label string `json:"label"`
	Image string `json:"image,omitempty"`
}

// Definition describes a single facet: its question, its options, and an
// optional applicability predicate over the assignment so far. A nil
// AppliesTo means the facet is always applicable.
type Definition struct {
	Question  string
	Options   []Option
	AppliesTo func(Assignment) bool
}

// Assignment maps every facet key to its chosen value. Empty string means
// unanswered. The configurator container owns the canonical instance.
type Assignment map[Key]string

// NewAssignment returns an assignment with an entry for every key.
func NewAssignment() Assignment {
	a := make(Assignment, len(Order))
	for _, k := range Order {
		a[k] = ""
	}
	return a
}

// Clone returns an independent copy.
func (a Assignment) Clone() Assignment {
	out := make(Assignment, len(a))
	for k, v := range a {
		out[k] = v
	}
	return out
}

// Definitions is the facet table. The motorization facet only applies when
// the blind facet was answered "yes".
var Definitions = map[Key]Definition{
	KeyCategory: {
		Question: "What are you looking for, a door or a window?",
		Options: []Option{
			{Value: "door", Label: "Door", Image: "/assets/facets/door.webp"},
			{Value: "window", Label: "Window", Image: "/assets/facets/window.webp"},
		},
	},
	KeySystem: {
		Question: "Which opening system do you prefer?",
		Options: []Option{
			{Value: "sliding-window", Label: "Sliding Window", Image: "/assets/facets/sliding-window.webp"},
			{Value: "sliding-door", Label: "Sliding Door", Image: "/assets/facets/sliding-door.webp"},
			{Value: "casement", Label: "Casement", Image: "/assets/facets/casement.webp"},
			{Value: "awning", Label: "Awning", Image: "/assets/facets/awning.webp"},
		},
	},
	KeyBlind: {
		Question: "Would you like an integrated blind?",
		Options: []Option{
			{Value: "yes", Label: "With Blind", Image: "/assets/facets/blind-yes.webp"},
			{Value: "no", Label: "No Blind", Image: "/assets/facets/blind-no.webp"},
		},
	},
	KeyBlindMotorization: {
		Question: "Should the blind be motorized or manual?",
		Options: []Option{
			{Value: "motorized", Label: "Motorized", Image: "/assets/facets/motorized.webp"},
			{Value: "manual", Label: "Manual", Image: "/assets/facets/manual.webp"},
		},
		AppliesTo: func(a Assignment) bool {
			return a[KeyBlind] == "yes"
		},
	},
	KeyMaterial: {
		Question: "Which panel material would you like?",
		Options: []Option{
			{Value: "glass", Label: "Glass", Image: "/assets/facets/glass.webp"},
			{Value: "glass-shutter", Label: "Glass + Shutter", Image: "/assets/facets/glass-shutter.webp"},
			{Value: "panel", Label: "Solid Panel", Image: "/assets/facets/panel.webp"},
			{Value: "shutter", Label: "Shutter", Image: "/assets/facets/shutter.webp"},
			{Value: "glass-panel", Label: "Glass + Panel", Image: "/assets/facets/glass-panel.webp"},
		},
	},
	KeyPanelCount: {
		Question: "How many panels?",
		Options: []Option{
			{Value: "1", Label: "1 Panel"},
			{Value: "2", Label: "2 Panels"},
			{Value: "3", Label: "3 Panels"},
			{Value: "4", Label: "4 Panels"},
			{Value: "6", Label: "6 Panels"},
		},
	},
}

// Known reports whether k names a defined facet.
func Known(k Key) bool {
	_, ok := Definitions[k]
	return ok
}

// ValidValue reports whether v is one of the defined options for k.
func ValidValue(k Key, v string) bool {
	def, ok := Definitions[k]
	if !ok {
		return false
	}
	for _, opt := range def.Options {
		if opt.Value == v {
			return true
		}
	}
	return false
}

// Applicable reports whether facet k should be asked under the given
// assignment.
func Applicable(k Key, a Assignment) bool {
	def, ok := Definitions[k]
	if !ok {
		return false
	}
	if def.AppliesTo == nil {
		return true
	}
	return def.AppliesTo(a)
}

// Label returns the display label for a facet value, falling back to the
// raw value for anything not in the definition table.
func Label(k Key, v string) string {
	def, ok := Definitions[k]
	if !ok {
		return v
	}
	for _, opt := range def.Options {
		if opt.Value == v {
			return opt.Label
		}
	}
	return v
}

// ComposedLabel renders the human-readable product name for an assignment:
// the labels of every applicable answered facet in order. The blind facet is
// special-cased here and nowhere else: "no" contributes nothing and "yes"
// contributes the literal "Blind" instead of its option label.
func ComposedLabel(a Assignment) string {
	parts := make([]string, 0, len(Order))
	for _, k := range Order {
		v := a[k]
		if v == "" || !Applicable(k, a) {
			continue
		}
		if k == KeyBlind {
			if v == "yes" {
				parts = append(parts, "Blind")
			}
			continue
		}
		parts = append(parts, Label(k, v))
	}
	return strings.Join(parts, " ")
}

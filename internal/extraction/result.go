package extraction

import (
	"strings"

	"github.com/raphaelfeliz/chat-nov9/internal/schema"
)

// Result is the eleven-key object the structured-extraction service returns
// for every utterance: six facet fields, a knowledge-base answer, three
// contact fields, and the handover intent flag. Any field may be JSON null.
type Result struct {
	Category          *string `json:"category"`
	System            *string `json:"system"`
	Blind             *string `json:"blind"`
	BlindMotorization *string `json:"blindMotorization"`
	Material          *string `json:"material"`
	PanelCount        *string `json:"panelCount"`

	KnowledgeBaseAnswer *string `json:"knowledgeBaseAnswer"`

	UserName  *string `json:"userName"`
	UserEmail *string `json:"userEmail"`
	UserPhone *string `json:"userPhone"`

	WantsHuman *bool `json:"wantsHuman"`
}

// clean collapses JSON null, empty strings and the literal "null" sentinel
// (which the collaborator occasionally emits instead of a real null) into
// absence.
func clean(s *string) string {
	if s == nil {
		return ""
	}
	v := strings.TrimSpace(*s)
	if v == "" || v == "null" {
		return ""
	}
	return v
}

// Facets returns the extracted facet values keyed by schema key. Values are
// passed through as-is; the configurator drops anything outside the valid
// option set.
func (r *Result) Facets() map[schema.Key]string {
	out := make(map[schema.Key]string, 6)
	put := func(k schema.Key, v *string) {
		if cv := clean(v); cv != "" {
			out[k] = cv
		}
	}
	put(schema.KeyCategory, r.Category)
	put(schema.KeySystem, r.System)
	put(schema.KeyBlind, r.Blind)
	put(schema.KeyBlindMotorization, r.BlindMotorization)
	put(schema.KeyMaterial, r.Material)
	put(schema.KeyPanelCount, r.PanelCount)
	return out
}

// Answer returns the knowledge-base answer, or empty when absent.
func (r *Result) Answer() string {
	return clean(r.KnowledgeBaseAnswer)
}

// Name, Email and Phone return the captured contact fields, empty when
// absent.
func (r *Result) Name() string  { return clean(r.UserName) }
func (r *Result) Email() string { return clean(r.UserEmail) }
func (r *Result) Phone() string { return clean(r.UserPhone) }

// HandoverRequested reports a true wantsHuman flag; null and false both mean
// no request.
func (r *Result) HandoverRequested() bool {
	return r.WantsHuman != nil && *r.WantsHuman
}

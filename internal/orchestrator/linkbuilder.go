package orchestrator

import (
	"net/url"
	"strings"
)

// BuildWhatsAppLink renders the deterministic handover call-to-action URL:
// a wa.me link with a pre-filled message carrying the visitor's name and
// what they configured. The composed product label takes precedence over
// the raw facet list when both are present.
func BuildWhatsAppLink(number, name, productLabel string, facets []string) string {
	var b strings.Builder
	b.WriteString("Hello!")
	if name != "" {
		b.WriteString(" I'm ")
		b.WriteString(name)
		b.WriteString(".")
	}

	switch {
	case productLabel != "":
		b.WriteString(" I'm interested in: ")
		b.WriteString(productLabel)
		b.WriteString(".")
	case len(facets) > 0:
		b.WriteString(" I'm interested in: ")
		b.WriteString(strings.Join(facets, " "))
		b.WriteString(".")
	}

	return "https://wa.me/" + number + "?text=" + url.QueryEscape(b.String())
}

package orchestrator

import (
	"context"
	"strings"

	"github.com/raphaelfeliz/chat-nov9/internal/common/metrics"
	"github.com/raphaelfeliz/chat-nov9/internal/extraction"
	"github.com/raphaelfeliz/chat-nov9/internal/store"
)

// turnState carries one extraction result through the reply rules.
type turnState struct {
	result *extraction.Result

	// lastAssistant is the latest timeline text before this turn's user
	// bubble; the guided follow-up rule keys off it.
	lastAssistant string

	// hasNewContact is set by the contact-capture step, which runs before
	// the rules and is not mutually exclusive with them.
	hasNewContact bool

	// queue collects the messages to post in one timeline update.
	queue []store.ChatMessage

	// consumed marks the turn as taken by a handover or follow-up rule;
	// facet application is skipped for consumed turns.
	consumed bool
}

// replyRule is one guard→action pair. Rules are evaluated top-to-bottom and
// the first matching rule ends the evaluation.
type replyRule struct {
	name   string
	guard  func(o *Orchestrator, t *turnState) bool
	action func(ctx context.Context, o *Orchestrator, t *turnState)
}

// replyRules is the fixed reply priority: handover request, handover
// continuation, guided follow-up, knowledge-base answer. Contact capture
// runs before all of them, facet application after.
var replyRules = []replyRule{
	{
		name: "handover-request",
		guard: func(o *Orchestrator, t *turnState) bool {
			return t.result.HandoverRequested()
		},
		action: func(ctx context.Context, o *Orchestrator, t *turnState) {
			t.consumed = true
			o.session.HandoverActive = true

			if o.session.UserPhone != "" || o.session.UserEmail != "" {
				t.queue = append(t.queue, o.newMessageLocked(store.SenderAssistant, o.handoverLinkLocked(), store.VariantLinkAction))
				o.session.HandoverActive = false
				o.notifyHandoverLocked(ctx)
				metrics.HandoverOutcomes.WithLabelValues("completed").Inc()
				return
			}

			t.queue = append(t.queue, o.newMessageLocked(store.SenderAssistant, promptHandover, store.VariantIncoming))
			metrics.HandoverOutcomes.WithLabelValues("awaiting_contact").Inc()
		},
	},
	{
		name: "handover-continuation",
		guard: func(o *Orchestrator, t *turnState) bool {
			return o.session.HandoverActive
		},
		action: func(ctx context.Context, o *Orchestrator, t *turnState) {
			t.consumed = true
			// Handover is single-shot per attempt: whatever this turn
			// brought, the active flag clears.
			o.session.HandoverActive = false

			if t.hasNewContact {
				o.session.ContactPromptFired = true
				t.queue = append(t.queue, o.newMessageLocked(store.SenderAssistant, o.handoverLinkLocked(), store.VariantLinkAction))
				o.notifyHandoverLocked(ctx)
				metrics.HandoverOutcomes.WithLabelValues("completed").Inc()
				return
			}

			t.queue = append(t.queue, o.newMessageLocked(store.SenderAssistant, msgHandoverDeclined, store.VariantIncoming))
			metrics.HandoverOutcomes.WithLabelValues("declined").Inc()
		},
	},
	{
		name: "guided-follow-up",
		guard: func(o *Orchestrator, t *turnState) bool {
			if t.result.Answer() != "" || t.lastAssistant == "" {
				return false
			}
			return nextGuidedPrompt(t.lastAssistant, t.result) != ""
		},
		action: func(_ context.Context, o *Orchestrator, t *turnState) {
			t.consumed = true
			text := nextGuidedPrompt(t.lastAssistant, t.result)
			t.queue = append(t.queue, o.newMessageLocked(store.SenderAssistant, text, store.VariantIncoming))
		},
	},
	{
		name: "knowledge-base-answer",
		guard: func(o *Orchestrator, t *turnState) bool {
			return t.result.Answer() != ""
		},
		action: func(_ context.Context, o *Orchestrator, t *turnState) {
			t.queue = append(t.queue, o.newMessageLocked(store.SenderAssistant, t.result.Answer(), store.VariantIncoming))
		},
	},
}

// nextGuidedPrompt advances the fixed name→email→phone sequence when the
// last posted prompt's matching field just arrived. Empty means no
// follow-up applies.
func nextGuidedPrompt(lastAssistant string, r *extraction.Result) string {
	switch {
	case strings.Contains(lastAssistant, fragmentAskName) && r.Name() != "":
		return promptAskEmail
	case strings.Contains(lastAssistant, fragmentAskEmail) && r.Email() != "":
		return promptAskPhone
	case strings.Contains(lastAssistant, fragmentAskPhone) && r.Phone() != "":
		return msgAllSet
	}
	return ""
}

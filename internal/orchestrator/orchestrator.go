// Package orchestrator owns the message timeline and the request lifecycle
// per user utterance. It merges extraction results with the configurator's
// output under a fixed priority policy and keeps the timeline coherent: no
// stuck loading placeholder, no conflicting simultaneous replies, no
// repeated questions.
package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/raphaelfeliz/chat-nov9/internal/catalog"
	stderrors "github.com/raphaelfeliz/chat-nov9/internal/common/errors"
	"github.com/raphaelfeliz/chat-nov9/internal/common/logger"
	"github.com/raphaelfeliz/chat-nov9/internal/common/metrics"
	"github.com/raphaelfeliz/chat-nov9/internal/configurator"
	"github.com/raphaelfeliz/chat-nov9/internal/extraction"
	"github.com/raphaelfeliz/chat-nov9/internal/notify"
	"github.com/raphaelfeliz/chat-nov9/internal/schema"
	"github.com/raphaelfeliz/chat-nov9/internal/store"
)

// State is the orchestrator's lifecycle state.
type State string

const (
	StateBooting       State = "booting"
	StateIdle          State = "idle"
	StateAwaitingReply State = "awaiting_reply"
)

// ErrNotReady rejects operations issued before Boot completes. Nothing is
// queued.
var ErrNotReady = stderrors.New(stderrors.ErrCodeNotReady, "session is still booting")

const persistTimeout = 5 * time.Second

// Orchestrator coordinates one session. All mutations are discrete,
// non-preemptible steps under one mutex; only the extraction call itself
// runs unlocked, and its result is applied against whatever the session
// state is at arrival time.
//
// Invariant: the container is mutated exclusively through this
// orchestrator, so container snapshots are always delivered on a goroutine
// that already holds o.mu. The snapshot listener must therefore never lock.
type Orchestrator struct {
	mu sync.Mutex

	sessionID string
	container *configurator.Container
	extractor extraction.Extractor
	store     store.Store
	notifier  notify.Notifier
	log       logger.Logger
	now       func() time.Time

	whatsAppNumber string

	state              State
	session            store.ChatSession
	messages           []store.ChatMessage
	lastPostedQuestion string

	// persistMu serializes session-summary writes to the store. sessionRev
	// counts snapshots taken under mu; savedRev, under persistMu, lets a
	// late goroutine drop its snapshot instead of clobbering a newer one.
	persistMu  sync.Mutex
	sessionRev uint64
	savedRev   uint64
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithClock substitutes the time source; tests use it for stable ids.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// New wires an orchestrator for one session. Call Boot before anything
// else.
func New(
	sessionID string,
	container *configurator.Container,
	extractor extraction.Extractor,
	st store.Store,
	notifier notify.Notifier,
	whatsAppNumber string,
	log logger.Logger,
	opts ...Option,
) *Orchestrator {
	o := &Orchestrator{
		sessionID:      sessionID,
		container:      container,
		extractor:      extractor,
		store:          st,
		notifier:       notifier,
		log:            log.With(map[string]interface{}{"component": "orchestrator", "session": sessionID}),
		now:            time.Now,
		whatsAppNumber: whatsAppNumber,
		state:          StateBooting,
	}
	for _, opt := range opts {
		opt(o)
	}

	container.Subscribe(o.onSnapshot)
	return o
}

// Boot loads the prior session and messages from the store, or creates a
// new session if none exists. Store failures degrade to a fresh in-memory
// session; persistence is never allowed to block the conversation.
func (o *Orchestrator) Boot(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.state != StateBooting {
		return nil
	}

	loaded, err := o.store.LoadSession(ctx, o.sessionID)
	switch {
	case err != nil:
		o.log.Error("session load failed, starting fresh", map[string]interface{}{"error": err.Error()})
		metrics.StoreErrors.Inc()
		o.createSessionLocked(ctx)
	case loaded == nil:
		o.createSessionLocked(ctx)
	default:
		o.session = *loaded
		o.messages = loaded.Messages
		o.session.Messages = nil
	}

	o.state = StateIdle

	// Post the initial (or restored) question through the same listener
	// path every later advance uses.
	o.postQuestionLocked(o.container.Snapshot())
	return nil
}

func (o *Orchestrator) createSessionLocked(ctx context.Context) {
	nowMillis := o.now().UnixMilli()
	o.session = store.ChatSession{
		ID:        o.sessionID,
		CreatedAt: nowMillis,
		UpdatedAt: nowMillis,
	}
	o.messages = nil
	o.persistSessionAsync(ctx)
}

// State returns the lifecycle state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Timeline returns a copy of the in-memory message list, the source of
// truth for the current UI.
func (o *Orchestrator) Timeline() []store.ChatMessage {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]store.ChatMessage(nil), o.messages...)
}

// Session returns a copy of the session summary.
func (o *Orchestrator) Session() store.ChatSession {
	o.mu.Lock()
	defer o.mu.Unlock()
	cp := o.session
	cp.Messages = nil
	return cp
}

// SelectFacet applies a manual option click. The question advance flows
// through the container's snapshot publication, sharing the posting path
// and duplicate suppression with extraction-driven advances.
func (o *Orchestrator) SelectFacet(key schema.Key, value string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state == StateBooting {
		return ErrNotReady
	}
	return o.container.SetFacet(key, value)
}

// ResetConfiguration clears the assignment and reposts the initial
// question.
func (o *Orchestrator) ResetConfiguration() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state == StateBooting {
		return ErrNotReady
	}
	o.lastPostedQuestion = ""
	o.container.Reset()
	return nil
}

// HandleSendMessage runs one user turn: optimistic outgoing + loading
// bubbles in a single timeline update, fire-and-forget mirror, extraction,
// then the reply rules. A collaborator failure replaces the placeholder
// with a fixed error message and ends the turn cleanly.
func (o *Orchestrator) HandleSendMessage(ctx context.Context, text string) error {
	trimmed := strings.TrimSpace(text)

	o.mu.Lock()
	if o.state == StateBooting {
		o.mu.Unlock()
		return ErrNotReady
	}
	if trimmed == "" {
		o.mu.Unlock()
		return nil
	}

	lastAssistant := ""
	if n := len(o.messages); n > 0 {
		lastAssistant = o.messages[n-1].Text
	}

	outgoing := o.newMessageLocked(store.SenderUser, trimmed, store.VariantOutgoing)
	loading := o.newMessageLocked(store.SenderAssistant, loadingText, store.VariantLoading)
	o.appendLocked(outgoing, loading)
	o.persistMessageAsync(outgoing)
	o.state = StateAwaitingReply
	o.mu.Unlock()

	start := o.now()
	result, err := o.extractor.Extract(ctx, trimmed)
	metrics.ExtractionDuration.Observe(o.now().Sub(start).Seconds())

	o.mu.Lock()
	defer o.mu.Unlock()
	defer func() { o.state = StateIdle }()

	if err != nil {
		o.log.Error("extraction failed", map[string]interface{}{"error": err.Error()})
		fallback := o.newMessageLocked(store.SenderAssistant, msgExtractionError, store.VariantIncoming)
		o.replaceLoadingLocked(fallback)
		o.persistMessageAsync(fallback)
		metrics.TurnsProcessed.WithLabelValues("extraction_error").Inc()
		return nil
	}

	o.processResultLocked(ctx, result, lastAssistant)
	metrics.TurnsProcessed.WithLabelValues("ok").Inc()
	return nil
}

// processResultLocked applies one extraction result: contact capture first,
// then the ordered reply rules, then posting, then facet application for
// unconsumed turns.
func (o *Orchestrator) processResultLocked(ctx context.Context, result *extraction.Result, lastAssistant string) {
	t := &turnState{result: result, lastAssistant: lastAssistant}

	o.captureContactLocked(ctx, t)

	for _, rule := range replyRules {
		if rule.guard(o, t) {
			o.log.Debug("reply rule fired", map[string]interface{}{"rule": rule.name})
			rule.action(ctx, o, t)
			break
		}
	}

	// One timeline update: the loading placeholder goes away whether or
	// not anything was queued. A no-op reply is valid.
	o.replaceLoadingLocked(t.queue...)
	for _, m := range t.queue {
		o.persistMessageAsync(m)
	}

	if !t.consumed {
		// Publishes a snapshot synchronously, which may append the next
		// question via onSnapshot.
		o.container.ApplyExtracted(result.Facets())
	}

	o.persistSessionAsync(ctx)
}

// captureContactLocked merges newly supplied contact fields into the
// session, persists them, and queues the acknowledgement. Runs on every
// turn, before the rules.
func (o *Orchestrator) captureContactLocked(ctx context.Context, t *turnState) {
	update := store.ContactUpdate{
		Name:  t.result.Name(),
		Email: t.result.Email(),
		Phone: t.result.Phone(),
	}
	if update.Empty() {
		return
	}
	t.hasNewContact = true

	if update.Name != "" {
		o.session.UserName = update.Name
	}
	if update.Email != "" {
		o.session.UserEmail = update.Email
	}
	if update.Phone != "" {
		o.session.UserPhone = update.Phone
	}
	o.session.UpdatedAt = o.now().UnixMilli()

	// Under persistMu the merge cannot interleave with a full snapshot
	// save and resurrect a summary missing this turn's flags.
	go func() {
		o.persistMu.Lock()
		defer o.persistMu.Unlock()
		pctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		defer cancel()
		if err := o.store.UpdateContact(pctx, o.sessionID, update); err != nil {
			o.log.Error("contact persist failed", map[string]interface{}{"error": err.Error()})
			metrics.StoreErrors.Inc()
		}
	}()

	ack := ackWithoutName
	if o.session.UserName != "" {
		ack = fmt.Sprintf(ackWithName, o.session.UserName)
	}
	t.queue = append(t.queue, o.newMessageLocked(store.SenderAssistant, ack, store.VariantIncoming))
}

// onSnapshot is the question listener. It runs synchronously inside
// container mutations, which in this architecture always happen under
// o.mu (see the type invariant), so it must not lock.
func (o *Orchestrator) onSnapshot(snap configurator.Snapshot) {
	if o.state == StateBooting {
		return
	}
	o.postQuestionLocked(snap)
	o.activeContactPromptLocked(snap)
}

// postQuestionLocked appends the container's current question unless final
// products are set, a handover is active, or the text matches the
// last-posted-question marker or the latest timeline entry.
func (o *Orchestrator) postQuestionLocked(snap configurator.Snapshot) {
	if snap.Question == nil || len(snap.FinalProducts) > 0 || o.session.HandoverActive {
		return
	}

	text := snap.Question.Question
	if text == "" || text == o.lastPostedQuestion {
		return
	}
	if n := len(o.messages); n > 0 {
		last := o.messages[n-1]
		if last.Text == text || last.Variant == store.VariantLoading {
			return
		}
	}

	m := o.newMessageLocked(store.SenderAssistant, text, store.VariantIncoming)
	o.appendLocked(m)
	o.lastPostedQuestion = text
	o.persistMessageAsync(m)
}

// activeContactPromptLocked fires exactly once per session when the final
// products first resolve with no name on file.
func (o *Orchestrator) activeContactPromptLocked(snap configurator.Snapshot) {
	if len(snap.FinalProducts) == 0 || o.session.ContactPromptFired || o.session.HandoverActive {
		return
	}
	if o.session.UserName != "" {
		return
	}

	m := o.newMessageLocked(store.SenderAssistant, promptAskName, store.VariantIncoming)
	o.appendLocked(m)
	o.session.ContactPromptFired = true
	o.lastPostedQuestion = promptAskName
	o.persistMessageAsync(m)
}

// handoverLinkLocked builds the link-action text from the session's name
// and the current configuration.
func (o *Orchestrator) handoverLinkLocked() string {
	snap := o.container.Snapshot()

	label := ""
	if len(snap.FinalProducts) > 0 {
		label = snap.ComposedLabel
	}

	var facets []string
	for _, k := range schema.Order {
		if v := snap.Assignment[k]; v != "" && schema.Applicable(k, snap.Assignment) {
			facets = append(facets, schema.Label(k, v))
		}
	}

	return BuildWhatsAppLink(o.whatsAppNumber, o.session.UserName, label, facets)
}

// notifyHandoverLocked hands the captured lead to the sales channel,
// best-effort.
func (o *Orchestrator) notifyHandoverLocked(_ context.Context) {
	snap := o.container.Snapshot()
	lead := notify.Lead{
		SessionID:    o.sessionID,
		Name:         o.session.UserName,
		Email:        o.session.UserEmail,
		Phone:        o.session.UserPhone,
		ProductLabel: snap.ComposedLabel,
	}
	go func() {
		nctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		defer cancel()
		if err := o.notifier.HandoverCompleted(nctx, lead); err != nil {
			o.log.Error("handover notification failed", map[string]interface{}{"error": err.Error()})
		}
	}()
}

// ConfigurationState returns the container's latest snapshot for read-only
// presentation.
func (o *Orchestrator) ConfigurationState() configurator.Snapshot {
	return o.container.Snapshot()
}

// FinalProduct returns the product a result card would display (the first
// match) and the composed label, or false while the flow is still in
// progress.
func (o *Orchestrator) FinalProduct() (catalog.Product, string, bool) {
	snap := o.container.Snapshot()
	if len(snap.FinalProducts) == 0 {
		return catalog.Product{}, "", false
	}
	return snap.FinalProducts[0], snap.ComposedLabel, true
}

func (o *Orchestrator) newMessageLocked(sender, text string, variant store.Variant) store.ChatMessage {
	return store.ChatMessage{
		ID:        uuid.NewString(),
		Sender:    sender,
		Text:      text,
		Timestamp: o.now().UnixMilli(),
		Variant:   variant,
	}
}

func (o *Orchestrator) appendLocked(msgs ...store.ChatMessage) {
	o.messages = append(o.messages, msgs...)
	for _, m := range msgs {
		metrics.MessagesPosted.WithLabelValues(string(m.Variant)).Inc()
	}
	o.session.UpdatedAt = o.now().UnixMilli()
}

// replaceLoadingLocked removes every loading placeholder and appends the
// replacements in one update, so observers never see an intermediate empty
// state.
func (o *Orchestrator) replaceLoadingLocked(replacements ...store.ChatMessage) {
	kept := o.messages[:0]
	for _, m := range o.messages {
		if m.Variant != store.VariantLoading {
			kept = append(kept, m)
		}
	}
	o.messages = kept
	o.appendLocked(replacements...)
}

// persistMessageAsync mirrors one message to the store without blocking the
// timeline. The store may lag; the timeline stays authoritative.
func (o *Orchestrator) persistMessageAsync(m store.ChatMessage) {
	if m.Variant == store.VariantLoading {
		return
	}
	go func() {
		pctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		defer cancel()
		if err := o.store.AppendMessage(pctx, o.sessionID, m); err != nil {
			o.log.Error("message persist failed", map[string]interface{}{"error": err.Error()})
			metrics.StoreErrors.Inc()
		}
	}()
}

func (o *Orchestrator) persistSessionAsync(_ context.Context) {
	o.sessionRev++
	rev := o.sessionRev
	cp := o.session
	cp.Messages = nil
	go func() {
		o.persistMu.Lock()
		defer o.persistMu.Unlock()
		if rev <= o.savedRev {
			// A newer snapshot already landed.
			return
		}
		pctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		defer cancel()
		if err := o.store.SaveSession(pctx, &cp); err != nil {
			o.log.Error("session persist failed", map[string]interface{}{"error": err.Error()})
			metrics.StoreErrors.Inc()
			return
		}
		o.savedRev = rev
	}()
}

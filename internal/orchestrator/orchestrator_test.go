package orchestrator

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raphaelfeliz/chat-nov9/internal/catalog"
	"github.com/raphaelfeliz/chat-nov9/internal/common/logger"
	"github.com/raphaelfeliz/chat-nov9/internal/configurator"
	"github.com/raphaelfeliz/chat-nov9/internal/extraction"
	"github.com/raphaelfeliz/chat-nov9/internal/notify"
	"github.com/raphaelfeliz/chat-nov9/internal/schema"
	"github.com/raphaelfeliz/chat-nov9/internal/store"
)

// fakeExtractor returns queued results in order, one per Extract call.
type fakeExtractor struct {
	mu      sync.Mutex
	results []*extraction.Result
	errs    []error
	calls   int
}

func (f *fakeExtractor) push(r *extraction.Result, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.results = append(f.results, r)
	f.errs = append(f.errs, err)
}

func (f *fakeExtractor) Extract(_ context.Context, _ string) (*extraction.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls >= len(f.results) {
		return &extraction.Result{}, nil
	}
	r, err := f.results[f.calls], f.errs[f.calls]
	f.calls++
	return r, err
}

// recordingNotifier captures handover leads.
type recordingNotifier struct {
	mu    sync.Mutex
	leads []notify.Lead
}

func (n *recordingNotifier) HandoverCompleted(_ context.Context, lead notify.Lead) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.leads = append(n.leads, lead)
	return nil
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.leads)
}

func strp(s string) *string { return &s }
func boolp(b bool) *bool    { return &b }

type fixture struct {
	orch      *Orchestrator
	extractor *fakeExtractor
	notifier  *recordingNotifier
	store     *store.MemoryStore
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	log := logger.NewTestLogger(t)
	container := configurator.New(catalog.NewIndex(catalog.DefaultProducts()), log)
	extractor := &fakeExtractor{}
	notifier := &recordingNotifier{}
	memStore := store.NewMemoryStore()

	clock := time.Unix(1700000000, 0)
	orch := New("session-1", container, extractor, memStore, notifier, "5511999999999", log,
		WithClock(func() time.Time { return clock }))

	return &fixture{orch: orch, extractor: extractor, notifier: notifier, store: memStore}
}

func bootedFixture(t *testing.T) *fixture {
	t.Helper()
	f := newFixture(t)
	require.NoError(t, f.orch.Boot(context.Background()))
	return f
}

func texts(msgs []store.ChatMessage) []string {
	out := make([]string, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, m.Text)
	}
	return out
}

func assertNoLoading(t *testing.T, msgs []store.ChatMessage) {
	t.Helper()
	for _, m := range msgs {
		assert.NotEqual(t, store.VariantLoading, m.Variant, "loading placeholder left in timeline")
	}
}

// selectToFinal drives the configurator to a resolved product via manual
// clicks: a 2-panel glass sliding window without blind.
func selectToFinal(t *testing.T, o *Orchestrator) {
	t.Helper()
	require.NoError(t, o.SelectFacet(schema.KeyCategory, "window"))
	require.NoError(t, o.SelectFacet(schema.KeySystem, "sliding-window"))
	require.NoError(t, o.SelectFacet(schema.KeyBlind, "no"))
	require.NoError(t, o.SelectFacet(schema.KeyMaterial, "glass"))
	require.NoError(t, o.SelectFacet(schema.KeyPanelCount, "2"))
}

func TestBoot_PostsInitialQuestion(t *testing.T) {
	f := bootedFixture(t)

	timeline := f.orch.Timeline()
	require.Len(t, timeline, 1)
	assert.Equal(t, store.SenderAssistant, timeline[0].Sender)
	assert.Equal(t, store.VariantIncoming, timeline[0].Variant)
	assert.Equal(t, "What are you looking for, a door or a window?", timeline[0].Text)
	assert.Equal(t, StateIdle, f.orch.State())
}

func TestBeforeBoot_OperationsRejected(t *testing.T) {
	f := newFixture(t)

	err := f.orch.HandleSendMessage(context.Background(), "hello")
	assert.ErrorIs(t, err, ErrNotReady)

	err = f.orch.SelectFacet(schema.KeyCategory, "window")
	assert.ErrorIs(t, err, ErrNotReady)

	err = f.orch.ResetConfiguration()
	assert.ErrorIs(t, err, ErrNotReady)

	assert.Empty(t, f.orch.Timeline(), "nothing queued by rejected calls")
}

func TestBoot_RestoresPriorHistory(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.store.SaveSession(ctx, &store.ChatSession{ID: "session-1", UserName: "Ana"}))
	require.NoError(t, f.store.AppendMessage(ctx, "session-1", store.ChatMessage{
		ID: "old-1", Sender: store.SenderAssistant, Text: "welcome back", Variant: store.VariantIncoming,
	}))

	require.NoError(t, f.orch.Boot(ctx))

	timeline := f.orch.Timeline()
	require.Len(t, timeline, 2)
	assert.Equal(t, "old-1", timeline[0].ID)
	assert.Equal(t, "What are you looking for, a door or a window?", timeline[1].Text)
	assert.Equal(t, "Ana", f.orch.Session().UserName)
}

func TestSendMessage_EmptyTextIsNoOp(t *testing.T) {
	f := bootedFixture(t)

	require.NoError(t, f.orch.HandleSendMessage(context.Background(), "   \n\t "))
	assert.Len(t, f.orch.Timeline(), 1)
	assert.Equal(t, 0, f.extractor.calls)
}

func TestSendMessage_FacetAdvancesQuestion(t *testing.T) {
	f := bootedFixture(t)
	f.extractor.push(&extraction.Result{Category: strp("window")}, nil)

	require.NoError(t, f.orch.HandleSendMessage(context.Background(), "I want a window"))

	timeline := f.orch.Timeline()
	assertNoLoading(t, timeline)
	require.Len(t, timeline, 3)
	assert.Equal(t, "I want a window", timeline[1].Text)
	assert.Equal(t, store.VariantOutgoing, timeline[1].Variant)
	assert.Equal(t, "Which opening system do you prefer?", timeline[2].Text)

	assert.Equal(t, "window", f.orch.ConfigurationState().Assignment[schema.KeyCategory])
	assert.Equal(t, StateIdle, f.orch.State())
}

func TestSendMessage_NothingExtractedDropsSilently(t *testing.T) {
	f := bootedFixture(t)
	f.extractor.push(&extraction.Result{}, nil)

	require.NoError(t, f.orch.HandleSendMessage(context.Background(), "blah blah"))

	timeline := f.orch.Timeline()
	assertNoLoading(t, timeline)
	require.Len(t, timeline, 2, "no reply and no repeated question")
	assert.Equal(t, "blah blah", timeline[1].Text)
}

func TestSendMessage_KnowledgeBaseAnswer(t *testing.T) {
	f := bootedFixture(t)
	f.extractor.push(&extraction.Result{KnowledgeBaseAnswer: strp("We ship nationwide.")}, nil)

	require.NoError(t, f.orch.HandleSendMessage(context.Background(), "do you deliver?"))

	timeline := f.orch.Timeline()
	assertNoLoading(t, timeline)
	require.Len(t, timeline, 3)
	assert.Equal(t, "We ship nationwide.", timeline[2].Text)
	assert.Equal(t, store.VariantIncoming, timeline[2].Variant)
	assert.NotContains(t, texts(timeline[2:]), "What are you looking for, a door or a window?",
		"the pending question is already on screen and must not repeat")
}

func TestSendMessage_ExtractionFailureFallback(t *testing.T) {
	f := bootedFixture(t)
	f.extractor.push(nil, extraction.ErrExtractionFailed)

	require.NoError(t, f.orch.HandleSendMessage(context.Background(), "hello"))

	timeline := f.orch.Timeline()
	assertNoLoading(t, timeline)
	require.Len(t, timeline, 3)
	assert.Equal(t, msgExtractionError, timeline[2].Text)
	assert.Equal(t, StateIdle, f.orch.State())
}

func TestSelectFacet_QuestionFlow(t *testing.T) {
	f := bootedFixture(t)

	require.NoError(t, f.orch.SelectFacet(schema.KeyCategory, "window"))

	timeline := f.orch.Timeline()
	require.Len(t, timeline, 2)
	assert.Equal(t, "Which opening system do you prefer?", timeline[1].Text)

	// Same snapshot republished must not repeat the question.
	err := f.orch.SelectFacet(schema.KeyCategory, "garage")
	require.Error(t, err)
	assert.Len(t, f.orch.Timeline(), 2)
}

func TestFinalProducts_TriggerContactPromptOnce(t *testing.T) {
	f := bootedFixture(t)

	selectToFinal(t, f.orch)

	timeline := f.orch.Timeline()
	assert.Equal(t, promptAskName, timeline[len(timeline)-1].Text)
	assert.True(t, f.orch.Session().ContactPromptFired)

	product, label, done := f.orch.FinalProduct()
	require.True(t, done)
	assert.Equal(t, "PW-2001", product.SKU)
	assert.Equal(t, "Window Sliding Window Glass 2 Panels", label)

	// Reset and rebuild: the prompt is once per session.
	require.NoError(t, f.orch.ResetConfiguration())
	selectToFinal(t, f.orch)

	count := 0
	for _, text := range texts(f.orch.Timeline()) {
		if text == promptAskName {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestGuidedContactSequence(t *testing.T) {
	f := bootedFixture(t)
	ctx := context.Background()

	selectToFinal(t, f.orch)
	require.Equal(t, promptAskName, lastText(f.orch))

	f.extractor.push(&extraction.Result{UserName: strp("Ana")}, nil)
	require.NoError(t, f.orch.HandleSendMessage(ctx, "I'm Ana"))
	tail := lastTexts(f.orch, 2)
	assert.Equal(t, []string{"Thanks, Ana!", promptAskEmail}, tail)
	assert.Equal(t, "Ana", f.orch.Session().UserName)

	f.extractor.push(&extraction.Result{UserEmail: strp("ana@example.com")}, nil)
	require.NoError(t, f.orch.HandleSendMessage(ctx, "ana@example.com"))
	assert.Equal(t, []string{"Thanks, Ana!", promptAskPhone}, lastTexts(f.orch, 2))

	f.extractor.push(&extraction.Result{UserPhone: strp("5511988887777")}, nil)
	require.NoError(t, f.orch.HandleSendMessage(ctx, "55 11 98888-7777"))
	assert.Equal(t, []string{"Thanks, Ana!", msgAllSet}, lastTexts(f.orch, 2))

	session := f.orch.Session()
	assert.Equal(t, "ana@example.com", session.UserEmail)
	assert.Equal(t, "5511988887777", session.UserPhone)
}

func TestHandover_WithContactOnFile(t *testing.T) {
	f := bootedFixture(t)
	ctx := context.Background()

	selectToFinal(t, f.orch)

	f.extractor.push(&extraction.Result{UserName: strp("Ana"), UserPhone: strp("5511988887777")}, nil)
	require.NoError(t, f.orch.HandleSendMessage(ctx, "Ana, 55 11 98888-7777"))

	f.extractor.push(&extraction.Result{WantsHuman: boolp(true)}, nil)
	require.NoError(t, f.orch.HandleSendMessage(ctx, "I want to talk to a person"))

	timeline := f.orch.Timeline()
	last := timeline[len(timeline)-1]
	assert.Equal(t, store.VariantLinkAction, last.Variant)
	assert.Contains(t, last.Text, "https://wa.me/5511999999999")
	assert.Contains(t, last.Text, "Ana")

	assert.False(t, f.orch.Session().HandoverActive)
	assert.Eventually(t, func() bool { return f.notifier.count() == 1 }, time.Second, 10*time.Millisecond)
	assert.Equal(t, "Window Sliding Window Glass 2 Panels", f.notifier.leads[0].ProductLabel)
}

func TestHandover_PromptThenContact(t *testing.T) {
	f := bootedFixture(t)
	ctx := context.Background()

	f.extractor.push(&extraction.Result{WantsHuman: boolp(true)}, nil)
	require.NoError(t, f.orch.HandleSendMessage(ctx, "talk to a human please"))

	assert.Equal(t, promptHandover, lastText(f.orch))
	assert.True(t, f.orch.Session().HandoverActive)
	assert.Equal(t, 0, f.notifier.count())

	f.extractor.push(&extraction.Result{UserPhone: strp("5511988887777")}, nil)
	require.NoError(t, f.orch.HandleSendMessage(ctx, "55 11 98888-7777"))

	timeline := f.orch.Timeline()
	last := timeline[len(timeline)-1]
	assert.Equal(t, store.VariantLinkAction, last.Variant)
	assert.False(t, f.orch.Session().HandoverActive)
	assert.True(t, f.orch.Session().ContactPromptFired)
	assert.Eventually(t, func() bool { return f.notifier.count() == 1 }, time.Second, 10*time.Millisecond)
}

func TestHandover_ConsumedTurnSkipsFacets(t *testing.T) {
	f := bootedFixture(t)
	ctx := context.Background()

	f.extractor.push(&extraction.Result{WantsHuman: boolp(true), Category: strp("door")}, nil)
	require.NoError(t, f.orch.HandleSendMessage(ctx, "a door, and get me a person"))

	assert.Equal(t, promptHandover, lastText(f.orch))
	assert.Empty(t, f.orch.ConfigurationState().Assignment[schema.KeyCategory],
		"facets riding a handover turn are not applied")

	// The continuation turn consumes its facets the same way.
	f.extractor.push(&extraction.Result{Category: strp("door")}, nil)
	require.NoError(t, f.orch.HandleSendMessage(ctx, "a door"))

	assert.Equal(t, msgHandoverDeclined, lastText(f.orch))
	assert.Empty(t, f.orch.ConfigurationState().Assignment[schema.KeyCategory])
}

func TestHandover_Declined(t *testing.T) {
	f := bootedFixture(t)
	ctx := context.Background()

	f.extractor.push(&extraction.Result{WantsHuman: boolp(true)}, nil)
	require.NoError(t, f.orch.HandleSendMessage(ctx, "human please"))
	require.True(t, f.orch.Session().HandoverActive)

	f.extractor.push(&extraction.Result{}, nil)
	require.NoError(t, f.orch.HandleSendMessage(ctx, "no, never mind"))

	assert.Equal(t, msgHandoverDeclined, lastText(f.orch))
	assert.False(t, f.orch.Session().HandoverActive, "handover attempt is single-shot")
	assert.Equal(t, 0, f.notifier.count())

	// A later turn behaves normally again.
	f.extractor.push(&extraction.Result{Category: strp("door")}, nil)
	require.NoError(t, f.orch.HandleSendMessage(ctx, "a door actually"))
	assert.Equal(t, "door", f.orch.ConfigurationState().Assignment[schema.KeyCategory])
}

func TestReset_RepostsInitialQuestion(t *testing.T) {
	f := bootedFixture(t)

	require.NoError(t, f.orch.SelectFacet(schema.KeyCategory, "window"))
	require.NoError(t, f.orch.ResetConfiguration())

	assert.Equal(t, "What are you looking for, a door or a window?", lastText(f.orch))
	assert.Empty(t, f.orch.ConfigurationState().Assignment[schema.KeyCategory])
}

func TestSendMessage_MirrorsToStore(t *testing.T) {
	f := bootedFixture(t)
	f.extractor.push(&extraction.Result{Category: strp("window")}, nil)

	require.NoError(t, f.orch.HandleSendMessage(context.Background(), "a window"))

	assert.Eventually(t, func() bool {
		loaded, err := f.store.LoadSession(context.Background(), "session-1")
		if err != nil || loaded == nil {
			return false
		}
		// Boot question, the user message and the follow-up question all
		// land in the store; the loading bubble never does.
		return len(loaded.Messages) == 3
	}, time.Second, 10*time.Millisecond)
}

func TestSessionMirror_ContactAndFlagsPersistTogether(t *testing.T) {
	f := bootedFixture(t)
	ctx := context.Background()

	f.extractor.push(&extraction.Result{WantsHuman: boolp(true)}, nil)
	require.NoError(t, f.orch.HandleSendMessage(ctx, "human please"))

	// This turn writes the summary twice: the contact merge and the full
	// snapshot. Whichever lands last, the stored record must keep both the
	// phone and the flags set this turn.
	f.extractor.push(&extraction.Result{UserPhone: strp("5511988887777")}, nil)
	require.NoError(t, f.orch.HandleSendMessage(ctx, "55 11 98888-7777"))

	assert.Eventually(t, func() bool {
		loaded, err := f.store.LoadSession(ctx, "session-1")
		if err != nil || loaded == nil {
			return false
		}
		return loaded.UserPhone == "5511988887777" &&
			loaded.ContactPromptFired &&
			!loaded.HandoverActive
	}, time.Second, 10*time.Millisecond)
}

func lastText(o *Orchestrator) string {
	timeline := o.Timeline()
	if len(timeline) == 0 {
		return ""
	}
	return timeline[len(timeline)-1].Text
}

func lastTexts(o *Orchestrator, n int) []string {
	timeline := o.Timeline()
	if len(timeline) < n {
		return texts(timeline)
	}
	return texts(timeline[len(timeline)-n:])
}

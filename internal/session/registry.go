// Package session owns per-session wiring: the registry mapping session
// ids to orchestrators and the websocket hub fanning timeline updates out
// to subscribers.
package session

import (
	"context"
	"sync"

	"github.com/raphaelfeliz/chat-nov9/internal/catalog"
	"github.com/raphaelfeliz/chat-nov9/internal/common/logger"
	"github.com/raphaelfeliz/chat-nov9/internal/configurator"
	"github.com/raphaelfeliz/chat-nov9/internal/extraction"
	"github.com/raphaelfeliz/chat-nov9/internal/notify"
	"github.com/raphaelfeliz/chat-nov9/internal/orchestrator"
	"github.com/raphaelfeliz/chat-nov9/internal/store"
)

// Registry maps session ids to their orchestrators. Each session has
// exactly one orchestrator and one configurator container; HTTP handlers
// never touch the container directly.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*orchestrator.Orchestrator

	index          *catalog.Index
	extractor      extraction.Extractor
	store          store.Store
	notifier       notify.Notifier
	whatsAppNumber string
	log            logger.Logger
}

// NewRegistry builds a registry sharing one catalog index, extractor, store
// and notifier across sessions.
func NewRegistry(
	index *catalog.Index,
	extractor extraction.Extractor,
	st store.Store,
	notifier notify.Notifier,
	whatsAppNumber string,
	log logger.Logger,
) *Registry {
	return &Registry{
		sessions:       make(map[string]*orchestrator.Orchestrator),
		index:          index,
		extractor:      extractor,
		store:          st,
		notifier:       notifier,
		whatsAppNumber: whatsAppNumber,
		log:            log,
	}
}

// Get returns the session's orchestrator, booting a new one on first use.
// Boot restores prior history from the store.
func (r *Registry) Get(ctx context.Context, sessionID string) (*orchestrator.Orchestrator, error) {
	r.mu.Lock()
	if o, ok := r.sessions[sessionID]; ok {
		r.mu.Unlock()
		return o, nil
	}

	container := configurator.New(r.index, r.log)
	o := orchestrator.New(sessionID, container, r.extractor, r.store, r.notifier, r.whatsAppNumber, r.log)
	r.sessions[sessionID] = o
	r.mu.Unlock()

	if err := o.Boot(ctx); err != nil {
		return nil, err
	}
	return o, nil
}

// Len reports the number of live sessions, for the health endpoint.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Package store persists the conversation: append-only message records per
// session plus one mutable session summary. All operations are best-effort
// at call sites: the in-memory timeline is the source of truth and the
// store is a mirror that may lag.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Variant is the closed tag set for message rendering.
type Variant string

const (
	VariantIncoming Variant = "incoming"
	VariantOutgoing Variant = "outgoing"
	// VariantLoading is the placeholder shown while extraction is pending.
	// Never persisted.
	VariantLoading Variant = "loading"
	// VariantLinkAction marks the handover call-to-action bubble; Text holds
	// a URL rather than prose.
	VariantLinkAction Variant = "link-action"
)

const (
	SenderUser      = "user"
	SenderAssistant = "assistant"
)

// ChatMessage is a single timeline entry. Messages are never mutated in
// place; the timeline is always rebuilt by filtering and appending.
type ChatMessage struct {
	ID        string  `json:"id"`
	Sender    string  `json:"sender"`
	Text      string  `json:"text"`
	Timestamp int64   `json:"timestamp"` // epoch millis
	Variant   Variant `json:"variant"`
}

// ChatSession is the session summary plus its ordered messages. Contact
// fields are filled incrementally and never deleted within a session.
type ChatSession struct {
	ID        string        `json:"id"`
	CreatedAt int64         `json:"created_at"`
	UpdatedAt int64         `json:"updated_at"`
	UserName  string        `json:"user_name,omitempty"`
	UserEmail string        `json:"user_email,omitempty"`
	UserPhone string        `json:"user_phone,omitempty"`
	// HandoverActive is set while the session waits for the user's answer
	// to the handover prompt. ContactPromptFired guards the one-shot
	// proactive contact question.
	HandoverActive     bool          `json:"handover_active,omitempty"`
	ContactPromptFired bool          `json:"contact_prompt_fired,omitempty"`
	Messages           []ChatMessage `json:"-"`
}

// ContactUpdate carries newly captured contact fields. Empty fields are
// left untouched.
type ContactUpdate struct {
	Name  string
	Email string
	Phone string
}

// Empty reports whether the update carries nothing.
func (u ContactUpdate) Empty() bool {
	return u.Name == "" && u.Email == "" && u.Phone == ""
}

// Store is the durable conversation store.
type Store interface {
	// LoadSession returns the session with its ordered messages, or
	// (nil, nil) when no such session exists.
	LoadSession(ctx context.Context, id string) (*ChatSession, error)
	// SaveSession creates or overwrites the session summary record.
	SaveSession(ctx context.Context, s *ChatSession) error
	// AppendMessage appends one message record to the session's log.
	AppendMessage(ctx context.Context, sessionID string, m ChatMessage) error
	// UpdateContact merges the non-empty fields into the summary record.
	UpdateContact(ctx context.Context, sessionID string, u ContactUpdate) error
}

// ErrUnavailable wraps backend failures so callers can degrade uniformly.
var ErrUnavailable = errors.New("STORE_UNAVAILABLE")

// messageWire is the persisted shape. Variant may be missing on legacy
// records and Timestamp was historically written either as epoch millis or
// as a structured {seconds,nanos} object, so both decode.
type messageWire struct {
	ID        string          `json:"id"`
	Sender    string          `json:"sender"`
	Text      string          `json:"text"`
	Timestamp json.RawMessage `json:"timestamp"`
	Variant   Variant         `json:"variant,omitempty"`
}

type structuredTimestamp struct {
	Seconds int64 `json:"seconds"`
	Nanos   int64 `json:"nanos"`
}

// DecodeMessage parses one persisted record, defaulting a missing variant
// from the sender role and normalizing either timestamp form to millis.
func DecodeMessage(raw []byte) (ChatMessage, error) {
	var wire messageWire
	if err := json.Unmarshal(raw, &wire); err != nil {
		return ChatMessage{}, fmt.Errorf("decode message record: %w", err)
	}

	m := ChatMessage{
		ID:      wire.ID,
		Sender:  normalizeSender(wire.Sender),
		Text:    wire.Text,
		Variant: wire.Variant,
	}

	if m.Variant == "" {
		if m.Sender == SenderUser {
			m.Variant = VariantOutgoing
		} else {
			m.Variant = VariantIncoming
		}
	}

	m.Timestamp = decodeTimestamp(wire.Timestamp)
	return m, nil
}

func decodeTimestamp(raw json.RawMessage) int64 {
	if len(raw) == 0 {
		return time.Now().UnixMilli()
	}
	var millis int64
	if err := json.Unmarshal(raw, &millis); err == nil {
		return millis
	}
	var st structuredTimestamp
	if err := json.Unmarshal(raw, &st); err == nil && st.Seconds != 0 {
		return st.Seconds*1000 + st.Nanos/int64(time.Millisecond)
	}
	return time.Now().UnixMilli()
}

// normalizeSender folds the legacy "bot" role into "assistant".
func normalizeSender(s string) string {
	if s == "bot" {
		return SenderAssistant
	}
	return s
}

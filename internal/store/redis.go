package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/raphaelfeliz/chat-nov9/internal/common/logger"
)

// RedisStore keeps each session's messages in a Redis list of JSON records
// and the session summary in a separate JSON string.
type RedisStore struct {
	client *redis.Client
	log    logger.Logger
}

func NewRedisStore(client *redis.Client, log logger.Logger) *RedisStore {
	return &RedisStore{
		client: client,
		log:    log.With(map[string]interface{}{"component": "store"}),
	}
}

func messagesKey(id string) string { return "chat:" + id + ":messages" }
func sessionKey(id string) string  { return "chat:" + id + ":session" }

func (s *RedisStore) LoadSession(ctx context.Context, id string) (*ChatSession, error) {
	summaryRaw, err := s.client.Get(ctx, sessionKey(id)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	var session ChatSession
	if err := json.Unmarshal([]byte(summaryRaw), &session); err != nil {
		return nil, fmt.Errorf("decode session summary: %w", err)
	}

	rawMessages, err := s.client.LRange(ctx, messagesKey(id), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	for _, raw := range rawMessages {
		m, err := DecodeMessage([]byte(raw))
		if err != nil {
			// A single corrupt record must not lose the whole session.
			s.log.Warn("skipping undecodable message record", map[string]interface{}{
				"session": id,
				"error":   err.Error(),
			})
			continue
		}
		session.Messages = append(session.Messages, m)
	}

	return &session, nil
}

func (s *RedisStore) SaveSession(ctx context.Context, session *ChatSession) error {
	raw, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("encode session summary: %w", err)
	}
	if err := s.client.Set(ctx, sessionKey(session.ID), raw, 0).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

func (s *RedisStore) AppendMessage(ctx context.Context, sessionID string, m ChatMessage) error {
	if m.Variant == VariantLoading {
		return nil // placeholders are UI state, never persisted
	}
	raw, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("encode message record: %w", err)
	}
	if err := s.client.RPush(ctx, messagesKey(sessionID), raw).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

func (s *RedisStore) UpdateContact(ctx context.Context, sessionID string, u ContactUpdate) error {
	if u.Empty() {
		return nil
	}

	summaryRaw, err := s.client.Get(ctx, sessionKey(sessionID)).Result()
	if err != nil && err != redis.Nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	var session ChatSession
	if err == nil {
		if err := json.Unmarshal([]byte(summaryRaw), &session); err != nil {
			return fmt.Errorf("decode session summary: %w", err)
		}
	}
	session.ID = sessionID

	if u.Name != "" {
		session.UserName = u.Name
	}
	if u.Email != "" {
		session.UserEmail = u.Email
	}
	if u.Phone != "" {
		session.UserPhone = u.Phone
	}

	return s.SaveSession(ctx, &session)
}

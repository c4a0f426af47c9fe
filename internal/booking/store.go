package booking

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const sessionTTL = 24 * time.Hour

// SessionStore carries booking sessions between conversation turns.
// Load returns (nil, nil) when no session exists yet.
type SessionStore interface {
	Load(ctx context.Context, conversationID string) (*Session, error)
	Save(ctx context.Context, session *Session) error
	Delete(ctx context.Context, conversationID string) error
}

type redisSessionStore struct {
	redis  *redis.Client
	tracer trace.Tracer
}

// NewRedisSessionStore persists sessions in Redis with a 24h TTL.
func NewRedisSessionStore(client *redis.Client, tracer trace.Tracer) SessionStore {
	if client == nil {
		panic("booking: redis client cannot be nil")
	}
	if tracer == nil {
		tracer = otel.Tracer("concierge.internal.booking.sessions")
	}
	return &redisSessionStore{redis: client, tracer: tracer}
}

func sessionKey(conversationID string) string {
	return fmt.Sprintf("booking_session:%s", conversationID)
}

func (s *redisSessionStore) Load(ctx context.Context, conversationID string) (*Session, error) {
	ctx, span := s.tracer.Start(ctx, "booking.load_session")
	defer span.End()

	data, err := s.redis.Get(ctx, sessionKey(conversationID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("booking: failed to load session: %w", err)
	}

	var session Session
	if err := json.Unmarshal(data, &session); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("booking: failed to decode session: %w", err)
	}
	return &session, nil
}

func (s *redisSessionStore) Save(ctx context.Context, session *Session) error {
	ctx, span := s.tracer.Start(ctx, "booking.save_session")
	defer span.End()

	session.UpdatedAt = time.Now().UTC()
	data, err := json.Marshal(session)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("booking: failed to marshal session: %w", err)
	}
	if err := s.redis.Set(ctx, sessionKey(session.ConversationID), data, sessionTTL).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("booking: failed to persist session: %w", err)
	}
	return nil
}

func (s *redisSessionStore) Delete(ctx context.Context, conversationID string) error {
	ctx, span := s.tracer.Start(ctx, "booking.delete_session")
	defer span.End()

	if err := s.redis.Del(ctx, sessionKey(conversationID)).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("booking: failed to delete session: %w", err)
	}
	return nil
}

// MemorySessionStore is an in-memory SessionStore for tests.
type MemorySessionStore struct {
	mu       sync.Mutex
	sessions map[string]Session
}

func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{sessions: make(map[string]Session)}
}

func (s *MemorySessionStore) Load(_ context.Context, conversationID string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[conversationID]
	if !ok {
		return nil, nil
	}
	return &sess, nil
}

func (s *MemorySessionStore) Save(_ context.Context, session *Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	session.UpdatedAt = time.Now().UTC()
	s.sessions[session.ConversationID] = *session
	return nil
}

func (s *MemorySessionStore) Delete(_ context.Context, conversationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, conversationID)
	return nil
}

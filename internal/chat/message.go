package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one turn of the gateway transcript.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

const historyTTL = 24 * time.Hour

// HistoryStore keeps conversation transcripts in Redis so the widget can
// resume a thread across page loads.
type HistoryStore struct {
	redis  *redis.Client
	tracer trace.Tracer
}

func NewHistoryStore(client *redis.Client, tracer trace.Tracer) *HistoryStore {
	if client == nil {
		panic("chat: redis client cannot be nil")
	}
	if tracer == nil {
		tracer = otel.Tracer("concierge.internal.chat.history")
	}
	return &HistoryStore{redis: client, tracer: tracer}
}

func conversationKey(id string) string {
	return fmt.Sprintf("conversation:%s", id)
}

// Load returns the stored transcript, or nil when the conversation is new.
func (s *HistoryStore) Load(ctx context.Context, conversationID string) ([]Message, error) {
	ctx, span := s.tracer.Start(ctx, "chat.load_history")
	defer span.End()

	data, err := s.redis.Get(ctx, conversationKey(conversationID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("chat: failed to load history: %w", err)
	}

	var history []Message
	if err := json.Unmarshal(data, &history); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("chat: failed to decode history: %w", err)
	}
	return history, nil
}

func (s *HistoryStore) Save(ctx context.Context, conversationID string, history []Message) error {
	ctx, span := s.tracer.Start(ctx, "chat.save_history")
	defer span.End()

	data, err := json.Marshal(history)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("chat: failed to marshal history: %w", err)
	}
	if err := s.redis.Set(ctx, conversationKey(conversationID), data, historyTTL).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("chat: failed to persist history: %w", err)
	}
	return nil
}

package webchat

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pixelcraft/concierge/internal/chat"
	"github.com/pixelcraft/concierge/pkg/logging"
)

func TestFragmentFrame(t *testing.T) {
	frame := fragmentFrame(chat.Fragment{Content: "hello"})
	assert.Equal(t, "message", frame.Type)
	assert.Equal(t, chat.RoleAssistant, frame.Role)
	assert.Equal(t, "hello", frame.Text)
	assert.Nil(t, frame.UI)
	assert.NotEmpty(t, frame.Timestamp)
}

func TestHistoryReplayOnConnect(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	history := chat.NewHistoryStore(client, nil)
	convID := ConversationID("biz-1", "sess-old")
	require.NoError(t, history.Save(context.Background(), convID, []chat.Message{
		{Role: chat.RoleSystem, Content: "internal prompt"},
		{Role: chat.RoleUser, Content: "do you build stores?"},
		{Role: chat.RoleAssistant, Content: "We do."},
	}))

	h := NewHandler(&fakeResponder{}, history, nil, logging.Default())
	mux := http.NewServeMux()
	mux.HandleFunc("/webchat/ws", h.HandleWebSocket)
	srv := httptest.NewServer(mux)
	defer srv.Close()

	conn := dialWS(t, srv, "?business=biz-1&session=sess-old")
	require.Equal(t, "session", recvFrame(t, conn).Type)

	replay := recvFrame(t, conn)
	require.Equal(t, "history", replay.Type)
	require.Len(t, replay.Messages, 2)
	assert.Equal(t, chat.RoleUser, replay.Messages[0].Role)
	assert.Equal(t, "We do.", replay.Messages[1].Text)
}

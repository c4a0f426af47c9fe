package webchat

import (
	"time"

	"github.com/pixelcraft/concierge/internal/chat"
)

// fragmentFrame converts one streamed chat fragment into a widget frame.
// Content and ui payload travel together so the widget can render the day
// and slot pills inline with the assistant text.
func fragmentFrame(frag chat.Fragment) OutboundMessage {
	return OutboundMessage{
		Type:      "message",
		Role:      chat.RoleAssistant,
		Text:      frag.Content,
		UI:        frag.UIComponent,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}

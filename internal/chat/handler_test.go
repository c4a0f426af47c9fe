package chat

import (
	"bufio"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func postStream(t *testing.T, h *Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/chat/stream", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.Stream(rec, req)
	return rec
}

func parseDataLines(t *testing.T, body string) ([]Fragment, bool) {
	t.Helper()
	var frags []Fragment
	done := false
	sc := bufio.NewScanner(strings.NewReader(body))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		payload, ok := strings.CutPrefix(line, "data: ")
		if !ok {
			t.Fatalf("unexpected line %q", line)
		}
		if payload == "[DONE]" {
			done = true
			continue
		}
		var frag Fragment
		if err := json.Unmarshal([]byte(payload), &frag); err != nil {
			t.Fatalf("bad fragment %q: %v", payload, err)
		}
		frags = append(frags, frag)
	}
	return frags, done
}

func TestHandlerStreamsFragmentsAndSentinel(t *testing.T) {
	fx := newServiceFixture(t)
	h := NewHandler(fx.service, nil)

	rec := postStream(t, h, `{"business_id":"biz-1","message":"what do you charge?"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("content type = %q", ct)
	}
	if rec.Header().Get("X-Conversation-Id") == "" {
		t.Error("missing X-Conversation-Id header")
	}

	frags, done := parseDataLines(t, rec.Body.String())
	if !done {
		t.Error("missing [DONE] sentinel")
	}
	if len(frags) != 2 || frags[0].Content != "We build " {
		t.Errorf("fragments: %+v", frags)
	}
	if !rec.Flushed {
		t.Error("response was never flushed")
	}
}

func TestHandlerKeepsClientConversationID(t *testing.T) {
	fx := newServiceFixture(t)
	h := NewHandler(fx.service, nil)

	rec := postStream(t, h, `{"conversation_id":"conv-9","business_id":"biz-1","message":"hi there, quick question"}`)
	if got := rec.Header().Get("X-Conversation-Id"); got != "conv-9" {
		t.Errorf("X-Conversation-Id = %q, want conv-9", got)
	}
}

func TestHandlerRejectsBadRequests(t *testing.T) {
	fx := newServiceFixture(t)
	h := NewHandler(fx.service, nil)

	cases := []struct {
		name string
		body string
	}{
		{"invalid json", `{`},
		{"missing business", `{"message":"hi"}`},
		{"empty turn", `{"business_id":"biz-1"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if rec := postStream(t, h, tc.body); rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
		})
	}
}

func TestHandlerWidgetEventStream(t *testing.T) {
	fx := newServiceFixture(t)
	h := NewHandler(fx.service, nil)

	rec := postStream(t, h, `{"conversation_id":"conv-h","business_id":"biz-1","message":"I want to schedule a call"}`)
	frags, _ := parseDataLines(t, rec.Body.String())
	var days *UIComponent
	for _, f := range frags {
		if f.UIComponent != nil {
			days = f.UIComponent
		}
	}
	if days == nil || days.Type != UITypeAvailableDays {
		t.Fatalf("no available_days payload: %+v", frags)
	}

	rec = postStream(t, h, `{"conversation_id":"conv-h","business_id":"biz-1","event":{"type":"day_selected","date":"`+days.Days[0].Date+`"}}`)
	frags, done := parseDataLines(t, rec.Body.String())
	if !done {
		t.Error("missing [DONE] sentinel")
	}
	found := false
	for _, f := range frags {
		if f.UIComponent != nil && f.UIComponent.Type == UITypeTimeSlots {
			found = true
		}
	}
	if !found {
		t.Errorf("no time_slots payload: %+v", frags)
	}
}

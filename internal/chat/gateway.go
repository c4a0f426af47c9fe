package chat

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

var (
	// ErrGatewayStatus is returned when the gateway answers with a non-OK
	// status before any fragment is produced.
	ErrGatewayStatus = errors.New("chat: gateway returned non-OK status")

	// ErrMalformedStream is returned when a data line cannot be decoded.
	// The stream is abandoned; no partial fragment is surfaced.
	ErrMalformedStream = errors.New("chat: malformed gateway stream")
)

const defaultGatewayTimeout = 30 * time.Second

// Fragment is one streamed chunk of an assistant reply.
type Fragment struct {
	Content     string       `json:"content,omitempty"`
	UIComponent *UIComponent `json:"uiComponent,omitempty"`
}

type gatewayRequest struct {
	Model    string    `json:"model,omitempty"`
	Messages []Message `json:"messages"`
	Stream   bool      `json:"stream"`
}

// GatewayClient streams completions from the hosted LLM gateway. The wire
// format is SSE-style: one `data: <json>` line per fragment, closed by a
// literal `data: [DONE]` line.
type GatewayClient struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
}

func NewGatewayClient(baseURL, apiKey, model string, timeout time.Duration) *GatewayClient {
	if timeout <= 0 {
		timeout = defaultGatewayTimeout
	}
	return &GatewayClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		model:      model,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Stream opens a completion stream for the given transcript. The caller
// must drain or Close the returned reader.
func (c *GatewayClient) Stream(ctx context.Context, messages []Message) (*StreamReader, error) {
	body, err := json.Marshal(gatewayRequest{Model: c.model, Messages: messages, Stream: true})
	if err != nil {
		return nil, fmt.Errorf("chat: failed to marshal gateway request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("chat: failed to build gateway request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("chat: gateway request failed: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("%w: %d", ErrGatewayStatus, resp.StatusCode)
	}
	return NewStreamReader(resp.Body), nil
}

// StreamReader iterates a `data:`-framed fragment stream lazily. Next
// returns io.EOF after the `[DONE]` sentinel; any other error means the
// stream was abandoned mid-way.
type StreamReader struct {
	body    io.ReadCloser
	scanner *bufio.Scanner
	done    bool
}

func NewStreamReader(body io.ReadCloser) *StreamReader {
	sc := bufio.NewScanner(body)
	sc.Buffer(make([]byte, 0, 4096), 1<<20)
	return &StreamReader{body: body, scanner: sc}
}

func (r *StreamReader) Next() (Fragment, error) {
	if r.done {
		return Fragment{}, io.EOF
	}
	for r.scanner.Scan() {
		line := strings.TrimSpace(r.scanner.Text())
		if line == "" {
			continue
		}
		payload, ok := strings.CutPrefix(line, "data: ")
		if !ok {
			r.done = true
			return Fragment{}, fmt.Errorf("%w: unexpected line %q", ErrMalformedStream, line)
		}
		if payload == "[DONE]" {
			r.done = true
			return Fragment{}, io.EOF
		}
		var frag Fragment
		if err := json.Unmarshal([]byte(payload), &frag); err != nil {
			r.done = true
			return Fragment{}, fmt.Errorf("%w: %v", ErrMalformedStream, err)
		}
		return frag, nil
	}
	r.done = true
	if err := r.scanner.Err(); err != nil {
		return Fragment{}, fmt.Errorf("chat: gateway stream failed: %w", err)
	}
	// Stream ended without the sentinel; treat it as a transport failure
	// so no half-finished reply is trusted.
	return Fragment{}, fmt.Errorf("%w: stream ended before [DONE]", ErrMalformedStream)
}

func (r *StreamReader) Close() error {
	return r.body.Close()
}

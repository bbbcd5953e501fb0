package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const (
	defaultLocalBaseURL = "http://localhost:11434"
	defaultLocalModel   = "llama3"
)

// Local talks to an Ollama server's /api/chat endpoint.
type Local struct {
	baseURL string
	model   string
	client  *http.Client
}

type localRequest struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
	Stream   bool      `json:"stream"`
}

type localResponse struct {
	Message *Message `json:"message"`
}

func NewLocal(baseURL, model string, client *http.Client) *Local {
	if baseURL == "" {
		baseURL = defaultLocalBaseURL
	}
	if model == "" {
		model = defaultLocalModel
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &Local{baseURL: strings.TrimRight(baseURL, "/"), model: model, client: client}
}

func (l *Local) Create(ctx context.Context, messages []Message) (Message, error) {
	body, _ := json.Marshal(localRequest{Model: l.model, Messages: messages, Stream: false})

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, l.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return Message{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := l.client.Do(req)
	if err != nil {
		return Message{}, &TransportError{Backend: "local", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return Message{}, &TransportError{Backend: "local", Status: resp.StatusCode, Body: string(b)}
	}

	var lr localResponse
	if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil {
		return Message{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if lr.Message == nil {
		return Message{}, fmt.Errorf("%w: no message", ErrMalformedResponse)
	}
	return Message{Role: RoleAssistant, Content: strings.TrimSpace(lr.Message.Content)}, nil
}

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
	defaultRemoteBaseURL = "https://api.openai.com/v1"
	defaultRemoteModel   = "gpt-3.5-turbo"
)

// Remote talks to an OpenAI-compatible chat completions endpoint.
type Remote struct {
	apiKey  string
	baseURL string
	model   string
	client  *http.Client
}

type remoteRequest struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
}

type remoteResponse struct {
	Choices []struct {
		Message Message `json:"message"`
	} `json:"choices"`
}

// NewRemote fails with ErrMissingCredential before any request is made when apiKey is empty.
func NewRemote(apiKey, baseURL, model string, client *http.Client) (*Remote, error) {
	if apiKey == "" {
		return nil, ErrMissingCredential
	}
	if baseURL == "" {
		baseURL = defaultRemoteBaseURL
	}
	if model == "" {
		model = defaultRemoteModel
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &Remote{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		client:  client,
	}, nil
}

func (r *Remote) Create(ctx context.Context, messages []Message) (Message, error) {
	body, _ := json.Marshal(remoteRequest{Model: r.model, Messages: messages})

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return Message{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+r.apiKey)

	resp, err := r.client.Do(req)
	if err != nil {
		return Message{}, &TransportError{Backend: "remote", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return Message{}, &TransportError{Backend: "remote", Status: resp.StatusCode, Body: string(b)}
	}

	var rr remoteResponse
	if err := json.NewDecoder(resp.Body).Decode(&rr); err != nil {
		return Message{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if len(rr.Choices) == 0 {
		return Message{}, fmt.Errorf("%w: no choices", ErrMalformedResponse)
	}
	return Message{Role: RoleAssistant, Content: strings.TrimSpace(rr.Choices[0].Message.Content)}, nil
}

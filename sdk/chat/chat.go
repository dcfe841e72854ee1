// Package chat provides the chat completions client, covering both the
// blocking call and the server-sent-event streaming variant.
package chat

import (
	"context"
	"encoding/json"

	foundry "github.com/azfoundry/foundry-go"
	"github.com/azfoundry/foundry-go/sdk/apierr"
)

const completionsPath = "/openai/v1/chat/completions"

// Role identifies the author of a conversation message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Message is one turn in a conversation.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// System builds a system message.
func System(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

// User builds a user message.
func User(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// Assistant builds an assistant message.
func Assistant(content string) Message {
	return Message{Role: RoleAssistant, Content: content}
}

// Request is a chat completion request. Model and Messages are
// required; zero-valued optional fields are omitted from the wire
// payload. Stream is managed by the client and ignored if set.
type Request struct {
	Model            string    `json:"model"`
	Messages         []Message `json:"messages"`
	Temperature      *float32  `json:"temperature,omitempty"`
	TopP             *float32  `json:"top_p,omitempty"`
	MaxTokens        int       `json:"max_tokens,omitempty"`
	Stream           bool      `json:"stream,omitempty"`
	Stop             []string  `json:"stop,omitempty"`
	PresencePenalty  *float32  `json:"presence_penalty,omitempty"`
	FrequencyPenalty *float32  `json:"frequency_penalty,omitempty"`
}

// Response is a completed chat completion.
type Response struct {
	ID      string         `json:"id"`
	Object  string         `json:"object"`
	Created int64          `json:"created"`
	Model   string         `json:"model"`
	Choices []Choice       `json:"choices"`
	Usage   *foundry.Usage `json:"usage,omitempty"`

	// Attempts is the transport attempt count for this call, filled in
	// by the client rather than the wire payload.
	Attempts int `json:"-"`
}

// Choice is one generated completion within a response.
type Choice struct {
	Index        int     `json:"index"`
	Message      Message `json:"message"`
	FinishReason string  `json:"finish_reason,omitempty"`
}

// Client issues chat completion calls through a foundry.Client.
type Client struct {
	api *foundry.Client
}

// NewClient wraps an existing transport client.
func NewClient(api *foundry.Client) *Client {
	return &Client{api: api}
}

func validate(req Request) error {
	if req.Model == "" {
		return apierr.Configuration("chat request requires a model")
	}
	if len(req.Messages) == 0 {
		return apierr.Configuration("chat request requires at least one message")
	}
	return nil
}

// Create sends a blocking chat completion request and decodes the full
// response.
func (c *Client) Create(ctx context.Context, req Request) (*Response, error) {
	if err := validate(req); err != nil {
		return nil, err
	}
	req.Stream = false

	resp, err := c.api.Post(ctx, completionsPath, req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var out Response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, apierr.HTTP(resp.StatusCode, "decoding chat completion response", err)
	}
	out.Attempts = resp.Attempts
	return &out, nil
}

// Package embeddings provides the embeddings client for turning text
// into vector representations.
package embeddings

import (
	"context"
	"encoding/json"

	foundry "github.com/azfoundry/foundry-go"
	"github.com/azfoundry/foundry-go/sdk/apierr"
)

const embeddingsPath = "/openai/v1/embeddings"

// EncodingFormat selects how embedding vectors are encoded on the wire.
type EncodingFormat string

const (
	EncodingFloat  EncodingFormat = "float"
	EncodingBase64 EncodingFormat = "base64"
)

// Request is an embedding request. Model and at least one input are
// required. Input holds one or more texts; a single-element Input is
// serialized as a bare string to match the service contract.
type Request struct {
	Model          string         `json:"model"`
	Input          Input          `json:"input"`
	Dimensions     int            `json:"dimensions,omitempty"`
	EncodingFormat EncodingFormat `json:"encoding_format,omitempty"`
	User           string         `json:"user,omitempty"`
}

// Input is the text or texts to embed.
type Input []string

// MarshalJSON emits a bare string for a single input and an array for
// batches.
func (in Input) MarshalJSON() ([]byte, error) {
	if len(in) == 1 {
		return json.Marshal(in[0])
	}
	return json.Marshal([]string(in))
}

// Response is the embedding result set.
type Response struct {
	Object string        `json:"object"`
	Model  string        `json:"model"`
	Data   []Embedding   `json:"data"`
	Usage  foundry.Usage `json:"usage"`

	// Attempts is the transport attempt count for this call, filled in
	// by the client rather than the wire payload.
	Attempts int `json:"-"`
}

// Embedding is one vector in the response, positioned by the index of
// its source input.
type Embedding struct {
	Index     int       `json:"index"`
	Embedding []float32 `json:"embedding"`
}

// Client issues embedding calls through a foundry.Client.
type Client struct {
	api *foundry.Client
}

// NewClient wraps an existing transport client.
func NewClient(api *foundry.Client) *Client {
	return &Client{api: api}
}

// Create embeds the request inputs and returns one vector per input.
func (c *Client) Create(ctx context.Context, req Request) (*Response, error) {
	if req.Model == "" {
		return nil, apierr.Configuration("embedding request requires a model")
	}
	if len(req.Input) == 0 {
		return nil, apierr.Configuration("embedding request requires at least one input")
	}

	resp, err := c.api.Post(ctx, embeddingsPath, req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var out Response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, apierr.HTTP(resp.StatusCode, "decoding embedding response", err)
	}
	out.Attempts = resp.Attempts
	return &out, nil
}

package chat

import (
	"context"
	"encoding/json"
	"io"
	"strings"

	foundry "github.com/azfoundry/foundry-go"
	"github.com/azfoundry/foundry-go/sdk/apierr"
	"github.com/azfoundry/foundry-go/sdk/stream"
)

// Chunk is one incremental piece of a streamed completion.
type Chunk struct {
	ID      string         `json:"id"`
	Object  string         `json:"object"`
	Created int64          `json:"created"`
	Model   string         `json:"model"`
	Choices []ChunkChoice  `json:"choices"`
	Usage   *foundry.Usage `json:"usage,omitempty"`
}

// ChunkChoice carries the delta for one choice in a streamed chunk.
type ChunkChoice struct {
	Index        int    `json:"index"`
	Delta        Delta  `json:"delta"`
	FinishReason string `json:"finish_reason,omitempty"`
}

// Delta is the incremental message content inside a chunk.
type Delta struct {
	Role    Role   `json:"role,omitempty"`
	Content string `json:"content,omitempty"`
}

// Stream iterates decoded chunks of a streaming chat completion.
//
//	s, err := client.CreateStream(ctx, req)
//	if err != nil { ... }
//	defer s.Close()
//	for s.Next() {
//	    fmt.Print(s.Current().Choices[0].Delta.Content)
//	}
//	if err := s.Err(); err != nil { ... }
type Stream struct {
	events   *stream.Events
	body     io.Closer
	attempts int
	cur      Chunk
	err      error
}

// CreateStream sends a chat completion request with streaming enabled
// and returns a Stream over the response chunks. The retry loop applies
// only until the stream is established; after that, failures surface
// through Err.
func (c *Client) CreateStream(ctx context.Context, req Request) (*Stream, error) {
	if err := validate(req); err != nil {
		return nil, err
	}
	req.Stream = true

	resp, err := c.api.PostStream(ctx, completionsPath, req)
	if err != nil {
		return nil, err
	}
	return &Stream{
		events:   stream.New(resp.Body),
		body:     resp.Body,
		attempts: resp.Attempts,
	}, nil
}

// Attempts is the transport attempt count it took to establish the
// stream.
func (s *Stream) Attempts() int { return s.attempts }

// Next advances to the next chunk. It returns false at the end of the
// stream or on the first error; check Err to tell the two apart.
func (s *Stream) Next() bool {
	if s.err != nil {
		return false
	}
	if !s.events.Next() {
		s.err = s.events.Err()
		return false
	}
	var chunk Chunk
	if err := json.Unmarshal(s.events.Data(), &chunk); err != nil {
		s.err = apierr.Stream("decoding stream chunk", err)
		return false
	}
	s.cur = chunk
	return true
}

// Current returns the chunk read by the last successful Next.
func (s *Stream) Current() Chunk { return s.cur }

// Err returns the first error encountered, if any.
func (s *Stream) Err() error { return s.err }

// Close releases the underlying connection. Safe to call at any point,
// including before the stream is exhausted.
func (s *Stream) Close() error { return s.body.Close() }

// Collect drains the stream and assembles the chunks into a single
// Response, concatenating delta content per choice index. The stream is
// closed before Collect returns.
func (s *Stream) Collect() (*Response, error) {
	defer s.Close()

	out := &Response{Object: "chat.completion", Attempts: s.attempts}
	var contents []*strings.Builder
	var choices []Choice

	for s.Next() {
		chunk := s.Current()
		if chunk.ID != "" {
			out.ID = chunk.ID
		}
		if chunk.Model != "" {
			out.Model = chunk.Model
		}
		if chunk.Created != 0 {
			out.Created = chunk.Created
		}
		if chunk.Usage != nil {
			out.Usage = chunk.Usage
		}
		for _, cc := range chunk.Choices {
			for cc.Index >= len(choices) {
				choices = append(choices, Choice{Index: len(choices)})
				contents = append(contents, &strings.Builder{})
			}
			ch := &choices[cc.Index]
			if cc.Delta.Role != "" {
				ch.Message.Role = cc.Delta.Role
			}
			contents[cc.Index].WriteString(cc.Delta.Content)
			if cc.FinishReason != "" {
				ch.FinishReason = cc.FinishReason
			}
		}
	}
	if err := s.Err(); err != nil {
		return nil, err
	}

	for i := range choices {
		choices[i].Message.Content = contents[i].String()
	}
	out.Choices = choices
	return out, nil
}

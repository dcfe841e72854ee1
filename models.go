package foundry

// Usage reports token accounting for a completed API call. Shared by
// the chat and embeddings clients; CompletionTokens is zero for
// operations that produce no completion.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens,omitempty"`
	TotalTokens      int `json:"total_tokens"`
}

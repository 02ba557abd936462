package adapter

import "time"

// Usage captures normalized token usage.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// CallReport captures adapter call metadata.
type CallReport struct {
	Provider     string `json:"provider"`
	Adapter      string `json:"adapter"`
	Model        string `json:"model"`
	Usage        Usage  `json:"usage"`
	Retries      int    `json:"retries"`
	FallbackUsed bool   `json:"fallback_used"`
	Status       int    `json:"status,omitempty"`
	Error        string `json:"error,omitempty"`
}

// Response is a provider reply.
type Response struct {
	Content   string    `json:"content"`
	Adapter   string    `json:"adapter"`
	Model     string    `json:"model"`
	Usage     *Usage    `json:"usage,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// NewResponse builds a Response stamped with the current time.
func NewResponse(content, adapter, model string, usage *Usage) *Response {
	if usage != nil && usage.TotalTokens == 0 {
		usage.TotalTokens = usage.PromptTokens + usage.CompletionTokens
	}
	return &Response{
		Content:   content,
		Adapter:   adapter,
		Model:     model,
		Usage:     usage,
		CreatedAt: time.Now().UTC(),
	}
}

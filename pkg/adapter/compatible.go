package adapter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

const (
	deepseekBaseURL   = "https://api.deepseek.com/v1"
	perplexityBaseURL = "https://api.perplexity.ai"
)

// CompatibleAdapter talks to providers exposing an OpenAI-compatible
// chat completions endpoint (DeepSeek, Perplexity).
type CompatibleAdapter struct {
	name       string
	apiKey     string
	baseURL    string
	models     []string
	httpClient *http.Client
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Index   int `json:"index"`
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error,omitempty"`
}

// NewCompatibleAdapter creates an adapter for an OpenAI-compatible endpoint.
func NewCompatibleAdapter(name, apiKey, baseURL string, models []string) (*CompatibleAdapter, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%s API key is required", name)
	}
	if baseURL == "" {
		return nil, fmt.Errorf("%s base URL is required", name)
	}
	return &CompatibleAdapter{
		name:       name,
		apiKey:     apiKey,
		baseURL:    baseURL,
		models:     models,
		httpClient: &http.Client{},
	}, nil
}

// NewDeepSeekAdapter creates a DeepSeek adapter.
func NewDeepSeekAdapter(apiKey string) (*CompatibleAdapter, error) {
	return NewCompatibleAdapter("deepseek", apiKey, deepseekBaseURL,
		[]string{"deepseek-chat", "deepseek-coder", "deepseek-reasoner"})
}

// NewPerplexityAdapter creates a Perplexity adapter for live web lookups.
func NewPerplexityAdapter(apiKey string) (*CompatibleAdapter, error) {
	return NewCompatibleAdapter("perplexity", apiKey, perplexityBaseURL,
		[]string{"sonar", "sonar-pro"})
}

// Name returns the adapter identifier.
func (a *CompatibleAdapter) Name() string {
	return a.name
}

// Models returns the list of supported models.
func (a *CompatibleAdapter) Models() []string {
	return append([]string(nil), a.models...)
}

// Generate sends a prompt to the chat completions endpoint.
func (a *CompatibleAdapter) Generate(ctx context.Context, model string, prompt string) (*Response, error) {
	reqBody := chatRequest{
		Model:     model,
		Messages:  []chatMessage{{Role: "user", Content: prompt}},
		MaxTokens: 4096,
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/chat/completions", bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+a.apiKey)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s API request failed: %w", a.name, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &AdapterError{
			Status: resp.StatusCode,
			Err:    fmt.Errorf("%s API returned status %d: %s", a.name, resp.StatusCode, string(body)),
		}
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	if parsed.Error != nil {
		return nil, fmt.Errorf("%s API error: %s (type: %s, code: %s)",
			a.name, parsed.Error.Message, parsed.Error.Type, parsed.Error.Code)
	}
	if len(parsed.Choices) == 0 {
		return nil, fmt.Errorf("%s returned no choices", a.name)
	}

	usage := &Usage{
		PromptTokens:     parsed.Usage.PromptTokens,
		CompletionTokens: parsed.Usage.CompletionTokens,
		TotalTokens:      parsed.Usage.TotalTokens,
	}
	return NewResponse(parsed.Choices[0].Message.Content, a.Name(), model, usage), nil
}

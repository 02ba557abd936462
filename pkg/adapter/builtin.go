package adapter

import (
	"context"
	"fmt"
	"strings"
)

// BuiltinAdapter is the credential-free default backend. It answers
// locally so routing always has somewhere to land.
type BuiltinAdapter struct {
	responses map[string]string
	preamble  string
}

// NewBuiltinAdapter creates the default adapter.
func NewBuiltinAdapter() *BuiltinAdapter {
	return &BuiltinAdapter{
		responses: make(map[string]string),
		preamble:  "Chief of Staff noted your request:",
	}
}

// NewBuiltinAdapterWithResponses creates a builtin adapter with canned replies
// keyed by exact prompt.
func NewBuiltinAdapterWithResponses(responses map[string]string, preamble string) *BuiltinAdapter {
	a := NewBuiltinAdapter()
	for k, v := range responses {
		a.responses[k] = v
	}
	if preamble != "" {
		a.preamble = preamble
	}
	return a
}

// Name returns the adapter identifier.
func (a *BuiltinAdapter) Name() string {
	return "builtin"
}

// Models returns the list of supported models.
func (a *BuiltinAdapter) Models() []string {
	return []string{"builtin-1"}
}

// Generate returns a deterministic reply for the prompt.
func (a *BuiltinAdapter) Generate(ctx context.Context, model string, prompt string) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if model == "" {
		model = "builtin-1"
	}
	content, ok := a.responses[prompt]
	if !ok {
		content = fmt.Sprintf("%s\n%s", a.preamble, strings.TrimSpace(prompt))
	}
	usage := &Usage{
		PromptTokens:     len(strings.Fields(prompt)),
		CompletionTokens: len(strings.Fields(content)),
	}
	return NewResponse(content, a.Name(), model, usage), nil
}

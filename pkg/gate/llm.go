package gate

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/zen-systems/cepho/pkg/adapter"
	"github.com/zen-systems/cepho/pkg/review"
	"go.uber.org/zap"
)

// LLMGate asks a model to act as the Chief of Staff reviewer.
type LLMGate struct {
	adapter  adapter.Adapter
	model    string
	minScore int
	logger   *zap.Logger
}

// LLMOption configures an LLMGate.
type LLMOption func(*LLMGate)

// WithMinScore downgrades approvals scoring below score to rejections.
func WithMinScore(score int) LLMOption {
	return func(g *LLMGate) {
		g.minScore = score
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) LLMOption {
	return func(g *LLMGate) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// NewLLMGate creates a gate that reviews through a.
func NewLLMGate(a adapter.Adapter, model string, opts ...LLMOption) *LLMGate {
	g := &LLMGate{
		adapter: a,
		model:   model,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Name returns the gate identifier.
func (g *LLMGate) Name() string {
	return "llm:" + g.adapter.Name()
}

type llmVerdict struct {
	Score    *int   `json:"score"`
	Decision string `json:"decision"`
	Feedback string `json:"feedback"`
}

// Evaluate prompts the model and parses its JSON verdict.
func (g *LLMGate) Evaluate(ctx context.Context, item *review.Item) (*Verdict, error) {
	resp, err := g.adapter.Generate(ctx, g.model, buildReviewPrompt(item))
	if err != nil {
		return nil, fmt.Errorf("review model call failed: %w", err)
	}

	parsed, err := parseVerdict(resp.Content)
	if err != nil {
		g.logger.Warn("unparseable review verdict",
			zap.String("adapter", resp.Adapter),
			zap.String("model", resp.Model),
			zap.Error(err))
		return nil, fmt.Errorf("invalid review verdict: %w", err)
	}

	score := *parsed.Score
	if review.Decision(parsed.Decision) == review.DecisionReject {
		return NewRejection(score, parsed.Feedback, nil, nil), nil
	}
	if score < g.minScore {
		feedback := strings.TrimSpace(fmt.Sprintf("%s (score %d below minimum %d)", parsed.Feedback, score, g.minScore))
		return NewRejection(score, feedback, nil, nil), nil
	}
	return NewApproval(score, parsed.Feedback), nil
}

func parseVerdict(content string) (*llmVerdict, error) {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	content = strings.TrimSpace(content)

	var v llmVerdict
	if err := json.Unmarshal([]byte(content), &v); err != nil {
		return nil, err
	}
	if v.Score == nil {
		return nil, fmt.Errorf("missing score")
	}
	if *v.Score < 0 || *v.Score > 10 {
		return nil, fmt.Errorf("%w: got %d", review.ErrInvalidScore, *v.Score)
	}
	v.Decision = strings.ToLower(strings.TrimSpace(v.Decision))
	if d := review.Decision(v.Decision); d != review.DecisionApprove && d != review.DecisionReject {
		return nil, fmt.Errorf("%w: got %q", review.ErrInvalidDecision, v.Decision)
	}
	return &v, nil
}

func buildReviewPrompt(item *review.Item) string {
	var sb strings.Builder
	sb.WriteString("You are the Chief of Staff reviewing work before it reaches its owner.\n")
	sb.WriteString("Score it from 0 to 10 and approve or reject it.\n")
	sb.WriteString("Return ONLY JSON: {\"score\":0-10,\"decision\":\"approve|reject\",\"feedback\":\"...\"}.\n\n")
	sb.WriteString("Title:\n")
	sb.WriteString(item.Title)
	sb.WriteString("\n\nContent:\n")
	sb.WriteString(item.Description)
	if item.FirstFeedback != "" {
		sb.WriteString("\n\nEarlier review feedback:\n")
		sb.WriteString(item.FirstFeedback)
	}
	sb.WriteString("\n")
	return sb.String()
}

package gate

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/zen-systems/cepho/pkg/review"
)

// HollowGate rejects items whose content is missing or still placeholder
// text. It needs no provider, so it is the default first-stage gate.
type HollowGate struct {
	minWords  int
	threshold int
}

// HollowConfig holds configuration for the hollow-content gate.
type HollowConfig struct {
	MinWords  int `yaml:"min_words"`
	Threshold int `yaml:"threshold"`
}

var forbiddenPatterns = []struct {
	rule    string
	pattern *regexp.Regexp
}{
	{"forbidden_pattern", regexp.MustCompile(`(?i)\b(todo|tbd|fixme)\b`)},
	{"placeholder", regexp.MustCompile(`(?i)lorem ipsum|\[(insert|placeholder)[^\]]*\]|<placeholder>`)},
}

// NewHollowGate creates a hollow-content gate. Zero values fall back to
// 5 words and a passing score of 6.
func NewHollowGate(cfg HollowConfig) *HollowGate {
	if cfg.MinWords <= 0 {
		cfg.MinWords = 5
	}
	if cfg.Threshold <= 0 {
		cfg.Threshold = 6
	}
	return &HollowGate{minWords: cfg.MinWords, threshold: cfg.Threshold}
}

// Name returns the gate identifier.
func (g *HollowGate) Name() string {
	return "hollow"
}

// Evaluate scores the item's title and description. Errors cost 4 points,
// warnings 2.
func (g *HollowGate) Evaluate(ctx context.Context, item *review.Item) (*Verdict, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var violations []Violation
	description := strings.TrimSpace(item.Description)
	switch words := len(strings.Fields(description)); {
	case words == 0:
		violations = append(violations, Violation{Rule: "empty", Severity: "error", Message: "description is empty"})
	case words < g.minWords:
		violations = append(violations, Violation{
			Rule:     "too_short",
			Severity: "warning",
			Message:  fmt.Sprintf("description has %d words, want at least %d", words, g.minWords),
		})
	}

	text := item.Title + "\n" + description
	for _, fp := range forbiddenPatterns {
		for _, match := range uniqueMatches(fp.pattern, text) {
			violations = append(violations, Violation{
				Rule:     fp.rule,
				Severity: "error",
				Message:  fmt.Sprintf("contains %q", match),
			})
		}
	}

	score := 10
	hints := make([]string, 0, len(violations))
	for _, v := range violations {
		if v.Severity == "error" {
			score -= 4
		} else {
			score -= 2
		}
		hints = append(hints, repairHint(v))
	}

	if len(violations) == 0 {
		return NewApproval(score, "no hollow content found"), nil
	}
	feedback := fmt.Sprintf("%d issue(s): %s", len(violations), strings.Join(hints, "; "))
	if score >= g.threshold && !hasError(violations) {
		v := NewApproval(score, feedback)
		v.Violations = violations
		v.RepairHints = hints
		return v, nil
	}
	return NewRejection(score, feedback, violations, hints), nil
}

// repairHint creates an actionable hint from a violation.
func repairHint(v Violation) string {
	msgLower := strings.ToLower(v.Message)

	switch v.Rule {
	case "forbidden_pattern":
		if strings.Contains(msgLower, "todo") {
			return "Resolve the TODO note"
		}
		if strings.Contains(msgLower, "fixme") {
			return "Address the FIXME note"
		}
		return fmt.Sprintf("Remove forbidden pattern: %s", v.Message)
	case "placeholder":
		return "Replace placeholder text with real content"
	case "empty":
		return "Add a description"
	case "too_short":
		return "Expand the description"
	default:
		return fmt.Sprintf("Fix %s: %s", v.Rule, v.Message)
	}
}

func uniqueMatches(re *regexp.Regexp, text string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, m := range re.FindAllString(text, -1) {
		key := strings.ToLower(m)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, m)
	}
	return out
}

func hasError(violations []Violation) bool {
	for _, v := range violations {
		if v.Severity == "error" {
			return true
		}
	}
	return false
}

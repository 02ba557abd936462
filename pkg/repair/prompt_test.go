package repair

import (
	"strings"
	"testing"

	"github.com/zen-systems/cepho/pkg/gate"
	"github.com/zen-systems/cepho/pkg/review"
)

func TestPromptIncludesFeedbackAndHints(t *testing.T) {
	score := 3
	item := &review.Item{
		Title:         "Q3 memo",
		Description:   "Revenue rose [insert figure].",
		FirstScore:    &score,
		FirstFeedback: "missing the actual number",
		Revision:      1,
	}
	verdict := gate.NewRejection(2, "", []gate.Violation{
		{Rule: "placeholder", Severity: "error", Message: `contains "[insert figure]"`},
	}, []string{"Replace placeholder text with real content"})

	prompt := Prompt(item, verdict)
	for _, want := range []string{
		"Revenue rose [insert figure].",
		"first review (3/10): missing the actual number",
		"[error] placeholder",
		"Replace placeholder text with real content",
	} {
		if !strings.Contains(prompt, want) {
			t.Fatalf("prompt missing %q:\n%s", want, prompt)
		}
	}
	if strings.Contains(prompt, "second review") {
		t.Fatalf("unexpected second review line:\n%s", prompt)
	}
}

func TestPromptEscalates(t *testing.T) {
	item := &review.Item{Title: "memo", Description: "draft", SecondFeedback: "still vague", Revision: EscalateAfter}

	prompt := Prompt(item, nil)
	if !strings.Contains(prompt, "Do NOT repeat the previous draft") {
		t.Fatalf("missing repeat warning:\n%s", prompt)
	}
	if !strings.Contains(prompt, "second review: still vague") {
		t.Fatalf("missing feedback:\n%s", prompt)
	}
}

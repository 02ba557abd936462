// Package repair builds redraft prompts for rejected review items.
package repair

import (
	"fmt"
	"strings"

	"github.com/zen-systems/cepho/pkg/gate"
	"github.com/zen-systems/cepho/pkg/review"
)

// EscalateAfter is the revision number from which redrafts use the
// escalation prompt.
const EscalateAfter = 3

// Prompt creates a prompt asking for a corrected draft of a rejected item.
// verdict may be nil; reviewer feedback on the item is always included.
func Prompt(item *review.Item, verdict *gate.Verdict) string {
	if item.Revision >= EscalateAfter {
		return EscalationPrompt(item, verdict)
	}

	var sb strings.Builder
	sb.WriteString("The following draft was rejected in review:\n\n")
	sb.WriteString("Title: ")
	sb.WriteString(item.Title)
	sb.WriteString("\n---\n")
	sb.WriteString(item.Description)
	sb.WriteString("\n---\n\n")

	writeFeedback(&sb, item)

	if verdict != nil {
		if len(verdict.Violations) > 0 {
			sb.WriteString("Issues found:\n")
			for _, v := range verdict.Violations {
				sb.WriteString(fmt.Sprintf("- [%s] %s: %s\n", v.Severity, v.Rule, v.Message))
			}
		}
		if len(verdict.RepairHints) > 0 {
			sb.WriteString("\nRepair hints:\n")
			for _, hint := range verdict.RepairHints {
				sb.WriteString(fmt.Sprintf("- %s\n", hint))
			}
		}
	}

	sb.WriteString("\nPlease address all feedback and reply with the corrected draft only.")
	return sb.String()
}

// EscalationPrompt creates a stronger prompt once an item has been
// rejected several times.
func EscalationPrompt(item *review.Item, verdict *gate.Verdict) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("This draft has been rejected %d times.\n", item.Revision))
	sb.WriteString("Do NOT repeat the previous draft; restructure it.\n\n")
	sb.WriteString("Title: ")
	sb.WriteString(item.Title)
	sb.WriteString("\n---\n")
	sb.WriteString(item.Description)
	sb.WriteString("\n---\n\n")

	writeFeedback(&sb, item)

	if verdict != nil && len(verdict.Violations) > 0 {
		sb.WriteString("Issues found:\n")
		for _, v := range verdict.Violations {
			sb.WriteString(fmt.Sprintf("- %s: %s\n", v.Rule, v.Message))
		}
	}

	sb.WriteString("\nReply with a new draft that resolves every point above.\n")
	return sb.String()
}

func writeFeedback(sb *strings.Builder, item *review.Item) {
	if item.FirstFeedback == "" && item.SecondFeedback == "" {
		return
	}
	sb.WriteString("Reviewer feedback:\n")
	if item.FirstFeedback != "" {
		sb.WriteString(fmt.Sprintf("- first review%s: %s\n", scoreSuffix(item.FirstScore), item.FirstFeedback))
	}
	if item.SecondFeedback != "" {
		sb.WriteString(fmt.Sprintf("- second review%s: %s\n", scoreSuffix(item.SecondScore), item.SecondFeedback))
	}
	sb.WriteString("\n")
}

func scoreSuffix(score *int) string {
	if score == nil {
		return ""
	}
	return fmt.Sprintf(" (%d/10)", *score)
}

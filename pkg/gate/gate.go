// Package gate automates review stages: a Gate scores an item and Run
// submits that verdict through the tracker.
package gate

import (
	"context"

	"github.com/zen-systems/cepho/pkg/review"
)

// Gate defines the interface for automated reviewers.
type Gate interface {
	// Evaluate scores an item against quality criteria.
	Evaluate(ctx context.Context, item *review.Item) (*Verdict, error)

	// Name returns the gate identifier, recorded as the reviewer.
	Name() string
}

// Verdict contains the outcome of a gate evaluation.
type Verdict struct {
	Score       int             `json:"score"`
	Decision    review.Decision `json:"decision"`
	Feedback    string          `json:"feedback,omitempty"`
	Violations  []Violation     `json:"violations,omitempty"`
	RepairHints []string        `json:"repair_hints,omitempty"`
}

// Violation describes a specific quality issue.
type Violation struct {
	Rule     string `json:"rule"`
	Severity string `json:"severity"` // "error", "warning"
	Message  string `json:"message"`
}

// Approved reports whether the verdict approves the item.
func (v *Verdict) Approved() bool {
	return v.Decision == review.DecisionApprove
}

// Submission converts the verdict into a tracker submission.
func (v *Verdict) Submission(reviewer string) review.Submission {
	return review.Submission{
		Score:    v.Score,
		Feedback: v.Feedback,
		Decision: v.Decision,
		Reviewer: reviewer,
	}
}

// NewApproval creates a verdict approving the item.
func NewApproval(score int, feedback string) *Verdict {
	return &Verdict{
		Score:    clampScore(score),
		Decision: review.DecisionApprove,
		Feedback: feedback,
	}
}

// NewRejection creates a verdict rejecting the item.
func NewRejection(score int, feedback string, violations []Violation, hints []string) *Verdict {
	return &Verdict{
		Score:       clampScore(score),
		Decision:    review.DecisionReject,
		Feedback:    feedback,
		Violations:  violations,
		RepairHints: hints,
	}
}

func clampScore(score int) int {
	if score < 0 {
		return 0
	}
	if score > 10 {
		return 10
	}
	return score
}

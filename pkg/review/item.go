// Package review tracks items through the two-stage quality gate:
// pending → first_review → first_approved → second_review → verified,
// with rejected as a terminal exit.
package review

import "time"

// State is an item's position in the review pipeline.
type State string

const (
	StatePending       State = "pending"
	StateFirstReview   State = "first_review"
	StateFirstApproved State = "first_approved"
	StateSecondReview  State = "second_review"
	StateVerified      State = "verified"
	StateRejected      State = "rejected"
)

// States lists every state in pipeline order.
var States = []State{
	StatePending,
	StateFirstReview,
	StateFirstApproved,
	StateSecondReview,
	StateVerified,
	StateRejected,
}

// Valid reports whether s is a known state.
func (s State) Valid() bool {
	for _, known := range States {
		if s == known {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == StateVerified || s == StateRejected
}

// Decision is a reviewer's verdict.
type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionReject  Decision = "reject"
)

// Stage identifies which reviewer acts.
type Stage int

const (
	StageFirst Stage = iota + 1
	StageSecond
)

func (s Stage) String() string {
	switch s {
	case StageFirst:
		return "first"
	case StageSecond:
		return "second"
	default:
		return "unknown"
	}
}

// Item is a task or document moving through review.
type Item struct {
	ID             string    `json:"id"`
	Title          string    `json:"title"`
	Description    string    `json:"description"`
	State          State     `json:"state"`
	FirstScore     *int      `json:"first_score,omitempty"`
	FirstFeedback  string    `json:"first_feedback,omitempty"`
	FirstReviewer  string    `json:"first_reviewer,omitempty"`
	SecondScore    *int      `json:"second_score,omitempty"`
	SecondFeedback string    `json:"second_feedback,omitempty"`
	SecondReviewer string    `json:"second_reviewer,omitempty"`
	RevisionOf     string    `json:"revision_of,omitempty"`
	Revision       int       `json:"revision"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Clone returns a deep copy.
func (i *Item) Clone() *Item {
	if i == nil {
		return nil
	}
	c := *i
	if i.FirstScore != nil {
		v := *i.FirstScore
		c.FirstScore = &v
	}
	if i.SecondScore != nil {
		v := *i.SecondScore
		c.SecondScore = &v
	}
	return &c
}

// Submission is one reviewer action.
type Submission struct {
	Score    int
	Feedback string
	Decision Decision
	Reviewer string
}

// Filter narrows List results. Zero value matches everything.
type Filter struct {
	State State
	Limit int
}

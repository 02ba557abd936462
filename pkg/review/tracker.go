package review

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const defaultMaxAttempts = 3

// Tracker enforces the review pipeline's transitions over a Store.
type Tracker struct {
	store       Store
	logger      *zap.Logger
	now         func() time.Time
	newID       func() string
	maxAttempts int
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(t *Tracker) {
		if logger != nil {
			t.logger = logger
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) {
		if now != nil {
			t.now = now
		}
	}
}

// WithIDGenerator overrides item ID generation.
func WithIDGenerator(newID func() string) Option {
	return func(t *Tracker) {
		if newID != nil {
			t.newID = newID
		}
	}
}

// WithMaxAttempts bounds how often a transition re-reads after a state conflict.
func WithMaxAttempts(n int) Option {
	return func(t *Tracker) {
		if n > 0 {
			t.maxAttempts = n
		}
	}
}

// NewTracker creates a tracker over store.
func NewTracker(store Store, opts ...Option) *Tracker {
	t := &Tracker{
		store:       store,
		logger:      zap.NewNop(),
		now:         func() time.Time { return time.Now().UTC() },
		newID:       func() string { return uuid.New().String() },
		maxAttempts: defaultMaxAttempts,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Create adds a new pending item.
func (t *Tracker) Create(ctx context.Context, title, description string) (*Item, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, fmt.Errorf("review item title is required")
	}
	now := t.now()
	item := &Item{
		ID:          t.newID(),
		Title:       title,
		Description: description,
		State:       StatePending,
		Revision:    1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := t.store.Create(ctx, item); err != nil {
		return nil, err
	}
	t.logger.Info("review item created", zap.String("item", item.ID), zap.String("title", item.Title))
	return item.Clone(), nil
}

// Get returns an item or ErrNotFound.
func (t *Tracker) Get(ctx context.Context, id string) (*Item, error) {
	return t.store.Get(ctx, id)
}

// List returns items matching filter.
func (t *Tracker) List(ctx context.Context, filter Filter) ([]*Item, error) {
	if filter.State != "" && !filter.State.Valid() {
		return nil, fmt.Errorf("unknown state %q", filter.State)
	}
	return t.store.List(ctx, filter)
}

// StartFirstReview marks a pending item as under first-stage review.
func (t *Tracker) StartFirstReview(ctx context.Context, id, reviewer string) (*Item, error) {
	return t.transition(ctx, id, "start first review", []State{StatePending}, func(item *Item) {
		item.State = StateFirstReview
		item.FirstReviewer = reviewer
	})
}

// SubmitFirstReview records the first-stage verdict. Allowed from pending
// or first_review; a repeat submission while in review overwrites the score.
func (t *Tracker) SubmitFirstReview(ctx context.Context, id string, sub Submission) (*Item, error) {
	if err := validateSubmission(sub); err != nil {
		return nil, err
	}
	return t.transition(ctx, id, "submit first review", []State{StatePending, StateFirstReview}, func(item *Item) {
		score := sub.Score
		item.FirstScore = &score
		item.FirstFeedback = sub.Feedback
		if sub.Reviewer != "" {
			item.FirstReviewer = sub.Reviewer
		}
		item.State = StateFirstApproved
		if sub.Decision == DecisionReject {
			item.State = StateRejected
		}
	})
}

// StartSecondReview marks a first-approved item as under second-stage review.
func (t *Tracker) StartSecondReview(ctx context.Context, id, reviewer string) (*Item, error) {
	return t.transition(ctx, id, "start second review", []State{StateFirstApproved}, func(item *Item) {
		item.State = StateSecondReview
		item.SecondReviewer = reviewer
	})
}

// SubmitSecondReview records the second-stage verdict. Allowed from
// first_approved or second_review.
func (t *Tracker) SubmitSecondReview(ctx context.Context, id string, sub Submission) (*Item, error) {
	if err := validateSubmission(sub); err != nil {
		return nil, err
	}
	return t.transition(ctx, id, "submit second review", []State{StateFirstApproved, StateSecondReview}, func(item *Item) {
		score := sub.Score
		item.SecondScore = &score
		item.SecondFeedback = sub.Feedback
		if sub.Reviewer != "" {
			item.SecondReviewer = sub.Reviewer
		}
		item.State = StateVerified
		if sub.Decision == DecisionReject {
			item.State = StateRejected
		}
	})
}

// ReviseOption adjusts the new revision before it is stored.
type ReviseOption func(*Item)

// WithDescription replaces the copied description, e.g. with a redraft.
func WithDescription(description string) ReviseOption {
	return func(item *Item) {
		item.Description = description
	}
}

// Revise starts a new revision of a rejected item. The rejected item is
// left untouched; the new item is pending and points back to it.
func (t *Tracker) Revise(ctx context.Context, id string, opts ...ReviseOption) (*Item, error) {
	prev, err := t.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if prev.State != StateRejected {
		return nil, &TransitionError{ItemID: id, Operation: "revise", From: prev.State}
	}

	now := t.now()
	item := &Item{
		ID:          t.newID(),
		Title:       prev.Title,
		Description: prev.Description,
		State:       StatePending,
		RevisionOf:  prev.ID,
		Revision:    prev.Revision + 1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	for _, opt := range opts {
		opt(item)
	}
	if err := t.store.Create(ctx, item); err != nil {
		return nil, err
	}
	t.logger.Info("review item revised",
		zap.String("item", item.ID),
		zap.String("revision_of", prev.ID),
		zap.Int("revision", item.Revision))
	return item.Clone(), nil
}

// transition reads the item, checks it is in one of allowed, applies the
// change and writes it conditionally on the state it read.
func (t *Tracker) transition(ctx context.Context, id, op string, allowed []State, apply func(*Item)) (*Item, error) {
	for attempt := 1; ; attempt++ {
		item, err := t.store.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		from := item.State
		if !stateIn(from, allowed) {
			return nil, &TransitionError{ItemID: id, Operation: op, From: from}
		}

		next := item.Clone()
		apply(next)
		next.UpdatedAt = t.now()

		err = t.store.Update(ctx, next, from)
		if err == nil {
			t.logger.Info("review state changed",
				zap.String("item", id),
				zap.String("operation", op),
				zap.String("from", string(from)),
				zap.String("to", string(next.State)))
			return next, nil
		}
		if !errors.Is(err, ErrStateConflict) || attempt >= t.maxAttempts {
			return nil, err
		}
		t.logger.Warn("review state conflict, re-reading",
			zap.String("item", id),
			zap.String("operation", op),
			zap.Int("attempt", attempt))
	}
}

func validateSubmission(sub Submission) error {
	if sub.Score < 0 || sub.Score > 10 {
		return fmt.Errorf("%w: got %d", ErrInvalidScore, sub.Score)
	}
	if sub.Decision != DecisionApprove && sub.Decision != DecisionReject {
		return fmt.Errorf("%w: got %q", ErrInvalidDecision, sub.Decision)
	}
	return nil
}

func stateIn(s State, allowed []State) bool {
	for _, a := range allowed {
		if s == a {
			return true
		}
	}
	return false
}

package review

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func newTestTracker(t *testing.T, store Store, opts ...Option) *Tracker {
	t.Helper()
	var n int
	var mu sync.Mutex
	base := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	defaults := []Option{
		WithIDGenerator(func() string {
			mu.Lock()
			defer mu.Unlock()
			n++
			return fmt.Sprintf("item-%03d", n)
		}),
		WithClock(func() time.Time {
			mu.Lock()
			defer mu.Unlock()
			return base.Add(time.Duration(n) * time.Minute)
		}),
	}
	return NewTracker(store, append(defaults, opts...)...)
}

func TestCreate(t *testing.T) {
	tr := newTestTracker(t, NewMemoryStore())
	ctx := context.Background()

	item, err := tr.Create(ctx, "  Q3 board memo ", "summary of revenue")
	require.NoError(t, err)
	assert.Equal(t, "item-001", item.ID)
	assert.Equal(t, "Q3 board memo", item.Title)
	assert.Equal(t, StatePending, item.State)
	assert.Equal(t, 1, item.Revision)
	assert.Nil(t, item.FirstScore)
	assert.Nil(t, item.SecondScore)

	_, err = tr.Create(ctx, "   ", "")
	require.Error(t, err)
}

func TestCreateDefaultIDIsUUID(t *testing.T) {
	tr := NewTracker(NewMemoryStore())
	item, err := tr.Create(context.Background(), "memo", "")
	require.NoError(t, err)
	assert.Len(t, item.ID, 36)
}

func TestFirstRejectBlocksSecondReview(t *testing.T) {
	tr := newTestTracker(t, NewMemoryStore())
	ctx := context.Background()

	item, err := tr.Create(ctx, "memo", "")
	require.NoError(t, err)

	rejected, err := tr.SubmitFirstReview(ctx, item.ID, Submission{Score: 3, Feedback: "too thin", Decision: DecisionReject})
	require.NoError(t, err)
	assert.Equal(t, StateRejected, rejected.State)
	require.NotNil(t, rejected.FirstScore)
	assert.Equal(t, 3, *rejected.FirstScore)
	assert.Equal(t, "too thin", rejected.FirstFeedback)

	_, err = tr.SubmitSecondReview(ctx, item.ID, Submission{Score: 9, Decision: DecisionApprove})
	require.ErrorIs(t, err, ErrInvalidStateTransition)

	var te *TransitionError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, StateRejected, te.From)
	assert.Equal(t, item.ID, te.ItemID)
}

func TestApproveBothStagesVerifies(t *testing.T) {
	tr := newTestTracker(t, NewMemoryStore())
	ctx := context.Background()

	item, err := tr.Create(ctx, "memo", "")
	require.NoError(t, err)

	_, err = tr.SubmitFirstReview(ctx, item.ID, Submission{Score: 8, Feedback: "solid", Decision: DecisionApprove, Reviewer: "cos"})
	require.NoError(t, err)
	verified, err := tr.SubmitSecondReview(ctx, item.ID, Submission{Score: 9, Feedback: "ship it", Decision: DecisionApprove, Reviewer: "owner"})
	require.NoError(t, err)

	assert.Equal(t, StateVerified, verified.State)
	require.NotNil(t, verified.FirstScore)
	require.NotNil(t, verified.SecondScore)
	assert.Equal(t, 8, *verified.FirstScore)
	assert.Equal(t, 9, *verified.SecondScore)
	assert.Equal(t, "cos", verified.FirstReviewer)
	assert.Equal(t, "owner", verified.SecondReviewer)

	stored, err := tr.Get(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, verified, stored)
}

func TestExplicitReviewStages(t *testing.T) {
	tr := newTestTracker(t, NewMemoryStore())
	ctx := context.Background()

	item, err := tr.Create(ctx, "memo", "")
	require.NoError(t, err)

	item, err = tr.StartFirstReview(ctx, item.ID, "cos")
	require.NoError(t, err)
	assert.Equal(t, StateFirstReview, item.State)
	assert.Equal(t, "cos", item.FirstReviewer)

	_, err = tr.StartFirstReview(ctx, item.ID, "cos")
	require.ErrorIs(t, err, ErrInvalidStateTransition)

	item, err = tr.SubmitFirstReview(ctx, item.ID, Submission{Score: 7, Decision: DecisionApprove})
	require.NoError(t, err)
	assert.Equal(t, StateFirstApproved, item.State)
	assert.Equal(t, "cos", item.FirstReviewer)

	_, err = tr.SubmitFirstReview(ctx, item.ID, Submission{Score: 7, Decision: DecisionApprove})
	require.ErrorIs(t, err, ErrInvalidStateTransition)

	item, err = tr.StartSecondReview(ctx, item.ID, "owner")
	require.NoError(t, err)
	assert.Equal(t, StateSecondReview, item.State)

	item, err = tr.SubmitSecondReview(ctx, item.ID, Submission{Score: 2, Decision: DecisionReject, Feedback: "wrong numbers"})
	require.NoError(t, err)
	assert.Equal(t, StateRejected, item.State)
	assert.True(t, item.State.Terminal())
}

func TestStartSecondReviewRequiresFirstApproval(t *testing.T) {
	tr := newTestTracker(t, NewMemoryStore())
	ctx := context.Background()

	item, err := tr.Create(ctx, "memo", "")
	require.NoError(t, err)

	_, err = tr.StartSecondReview(ctx, item.ID, "owner")
	require.ErrorIs(t, err, ErrInvalidStateTransition)
	_, err = tr.SubmitSecondReview(ctx, item.ID, Submission{Score: 5, Decision: DecisionApprove})
	require.ErrorIs(t, err, ErrInvalidStateTransition)

	stored, err := tr.Get(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, StatePending, stored.State)
}

func TestSubmissionValidation(t *testing.T) {
	tr := newTestTracker(t, NewMemoryStore())
	ctx := context.Background()
	item, err := tr.Create(ctx, "memo", "")
	require.NoError(t, err)

	tests := []struct {
		name string
		sub  Submission
		want error
	}{
		{"negative score", Submission{Score: -1, Decision: DecisionApprove}, ErrInvalidScore},
		{"score above ten", Submission{Score: 11, Decision: DecisionApprove}, ErrInvalidScore},
		{"empty decision", Submission{Score: 5}, ErrInvalidDecision},
		{"unknown decision", Submission{Score: 5, Decision: "maybe"}, ErrInvalidDecision},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tr.SubmitFirstReview(ctx, item.ID, tt.sub)
			require.ErrorIs(t, err, tt.want)
		})
	}

	for _, score := range []int{0, 10} {
		fresh, err := tr.Create(ctx, "edge", "")
		require.NoError(t, err)
		_, err = tr.SubmitFirstReview(ctx, fresh.ID, Submission{Score: score, Decision: DecisionApprove})
		require.NoError(t, err, "score %d", score)
	}
}

func TestUnknownItem(t *testing.T) {
	tr := newTestTracker(t, NewMemoryStore())
	ctx := context.Background()

	_, err := tr.Get(ctx, "missing")
	require.ErrorIs(t, err, ErrNotFound)
	_, err = tr.SubmitFirstReview(ctx, "missing", Submission{Score: 5, Decision: DecisionApprove})
	require.ErrorIs(t, err, ErrNotFound)
	_, err = tr.Revise(ctx, "missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestRevise(t *testing.T) {
	tr := newTestTracker(t, NewMemoryStore())
	ctx := context.Background()

	item, err := tr.Create(ctx, "memo", "draft one")
	require.NoError(t, err)

	_, err = tr.Revise(ctx, item.ID)
	require.ErrorIs(t, err, ErrInvalidStateTransition)

	_, err = tr.SubmitFirstReview(ctx, item.ID, Submission{Score: 2, Decision: DecisionReject})
	require.NoError(t, err)

	next, err := tr.Revise(ctx, item.ID)
	require.NoError(t, err)
	assert.NotEqual(t, item.ID, next.ID)
	assert.Equal(t, StatePending, next.State)
	assert.Equal(t, item.ID, next.RevisionOf)
	assert.Equal(t, 2, next.Revision)
	assert.Equal(t, "memo", next.Title)
	assert.Equal(t, "draft one", next.Description)
	assert.Nil(t, next.FirstScore)

	old, err := tr.Get(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, StateRejected, old.State)

	_, err = tr.SubmitFirstReview(ctx, next.ID, Submission{Score: 1, Decision: DecisionReject})
	require.NoError(t, err)
	third, err := tr.Revise(ctx, next.ID, WithDescription("draft three"))
	require.NoError(t, err)
	assert.Equal(t, 3, third.Revision)
	assert.Equal(t, next.ID, third.RevisionOf)
	assert.Equal(t, "draft three", third.Description)
}

func TestList(t *testing.T) {
	tr := newTestTracker(t, NewMemoryStore())
	ctx := context.Background()

	a, err := tr.Create(ctx, "a", "")
	require.NoError(t, err)
	b, err := tr.Create(ctx, "b", "")
	require.NoError(t, err)
	_, err = tr.Create(ctx, "c", "")
	require.NoError(t, err)
	_, err = tr.SubmitFirstReview(ctx, b.ID, Submission{Score: 1, Decision: DecisionReject})
	require.NoError(t, err)

	all, err := tr.List(ctx, Filter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, a.ID, all[0].ID)

	pending, err := tr.List(ctx, Filter{State: StatePending})
	require.NoError(t, err)
	assert.Len(t, pending, 2)

	limited, err := tr.List(ctx, Filter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	_, err = tr.List(ctx, Filter{State: "archived"})
	require.Error(t, err)
}

func TestConcurrentFirstReviewsAdvanceOnce(t *testing.T) {
	defer goleak.VerifyNone(t)

	tr := NewTracker(NewMemoryStore())
	ctx := context.Background()
	item, err := tr.Create(ctx, "memo", "")
	require.NoError(t, err)

	const reviewers = 16
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		rejected  int
	)
	for i := 0; i < reviewers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := tr.SubmitFirstReview(ctx, item.ID, Submission{
				Score:    7,
				Decision: DecisionApprove,
				Reviewer: fmt.Sprintf("reviewer-%d", i),
			})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, ErrInvalidStateTransition):
				rejected++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, reviewers-1, rejected)

	stored, err := tr.Get(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, StateFirstApproved, stored.State)
}

// conflictStore fails the first n updates with ErrStateConflict.
type conflictStore struct {
	*MemoryStore
	mu      sync.Mutex
	n       int
	updates int
}

func (s *conflictStore) Update(ctx context.Context, item *Item, expected State) error {
	s.mu.Lock()
	s.updates++
	fail := s.updates <= s.n
	s.mu.Unlock()
	if fail {
		return ErrStateConflict
	}
	return s.MemoryStore.Update(ctx, item, expected)
}

func TestTransitionRetriesOnConflict(t *testing.T) {
	ctx := context.Background()

	store := &conflictStore{MemoryStore: NewMemoryStore(), n: 2}
	tr := newTestTracker(t, store)
	item, err := tr.Create(ctx, "memo", "")
	require.NoError(t, err)

	got, err := tr.SubmitFirstReview(ctx, item.ID, Submission{Score: 6, Decision: DecisionApprove})
	require.NoError(t, err)
	assert.Equal(t, StateFirstApproved, got.State)
	assert.Equal(t, 3, store.updates)

	store = &conflictStore{MemoryStore: NewMemoryStore(), n: 5}
	tr = newTestTracker(t, store)
	item, err = tr.Create(ctx, "memo", "")
	require.NoError(t, err)

	_, err = tr.SubmitFirstReview(ctx, item.ID, Submission{Score: 6, Decision: DecisionApprove})
	require.ErrorIs(t, err, ErrStateConflict)
	assert.Equal(t, defaultMaxAttempts, store.updates)
}

package store

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zen-systems/cepho/pkg/review"
	"github.com/zen-systems/cepho/pkg/state"
)

func openTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "sub", "cepho.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func newItem(id string, created time.Time) *review.Item {
	return &review.Item{
		ID:          id,
		Title:       "memo " + id,
		Description: "draft",
		State:       review.StatePending,
		Revision:    1,
		CreatedAt:   created,
		UpdatedAt:   created,
	}
}

func TestCreateGet(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	created := time.Date(2025, 3, 1, 9, 0, 0, 123456789, time.UTC)

	item := newItem("a", created)
	require.NoError(t, s.Create(ctx, item))
	require.Error(t, s.Create(ctx, item), "duplicate id")

	got, err := s.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, item, got)

	_, err = s.Get(ctx, "missing")
	require.ErrorIs(t, err, review.ErrNotFound)
}

func TestUpdateConditional(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	created := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	require.NoError(t, s.Create(ctx, newItem("a", created)))

	score := 8
	next := newItem("a", created)
	next.State = review.StateFirstApproved
	next.FirstScore = &score
	next.FirstFeedback = "solid"
	next.UpdatedAt = created.Add(time.Minute)

	require.NoError(t, s.Update(ctx, next, review.StatePending))

	got, err := s.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, review.StateFirstApproved, got.State)
	require.NotNil(t, got.FirstScore)
	assert.Equal(t, 8, *got.FirstScore)
	assert.Nil(t, got.SecondScore)
	assert.Equal(t, next.UpdatedAt, got.UpdatedAt)

	stale := next.Clone()
	stale.State = review.StateRejected
	require.ErrorIs(t, s.Update(ctx, stale, review.StatePending), review.ErrStateConflict)

	missing := newItem("missing", created)
	require.ErrorIs(t, s.Update(ctx, missing, review.StatePending), review.ErrNotFound)
}

func TestList(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

	// Created out of order; sub-second times must still sort correctly.
	require.NoError(t, s.Create(ctx, newItem("c", base.Add(2*time.Second))))
	require.NoError(t, s.Create(ctx, newItem("a", base)))
	require.NoError(t, s.Create(ctx, newItem("b", base.Add(500*time.Millisecond))))

	rejected := newItem("b", base.Add(500*time.Millisecond))
	rejected.State = review.StateRejected
	require.NoError(t, s.Update(ctx, rejected, review.StatePending))

	all, err := s.List(ctx, review.Filter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{"a", "b", "c"}, []string{all[0].ID, all[1].ID, all[2].ID})

	pending, err := s.List(ctx, review.Filter{State: review.StatePending})
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, "a", pending[0].ID)
	assert.Equal(t, "c", pending[1].ID)

	limited, err := s.List(ctx, review.Filter{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestTrackerOnSQLite(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	tr := review.NewTracker(s)

	item, err := tr.Create(ctx, "memo", "")
	require.NoError(t, err)
	_, err = tr.SubmitFirstReview(ctx, item.ID, review.Submission{Score: 7, Decision: review.DecisionApprove})
	require.NoError(t, err)
	verified, err := tr.SubmitSecondReview(ctx, item.ID, review.Submission{Score: 9, Decision: review.DecisionApprove})
	require.NoError(t, err)
	assert.Equal(t, review.StateVerified, verified.State)

	stored, err := s.Get(ctx, item.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.FirstScore)
	require.NotNil(t, stored.SecondScore)
	assert.Equal(t, 7, *stored.FirstScore)
	assert.Equal(t, 9, *stored.SecondScore)
}

func TestConcurrentSubmissionsOnSQLite(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	tr := review.NewTracker(s)

	item, err := tr.Create(ctx, "memo", "")
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := tr.SubmitFirstReview(ctx, item.ID, review.Submission{Score: 6, Decision: review.DecisionApprove})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var ok int
	for err := range errs {
		if err == nil {
			ok++
			continue
		}
		require.ErrorIs(t, err, review.ErrInvalidStateTransition)
	}
	assert.Equal(t, 1, ok)
}

func TestIntegrations(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	got, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, got)

	in := &state.Integrations{UpdatedAt: time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)}
	in.Connect("openai")
	require.NoError(t, s.Save(ctx, in))

	in.Connect("anthropic")
	require.NoError(t, s.Save(ctx, in))

	got, err = s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"anthropic", "openai"}, got.Connected)
	assert.True(t, got.UpdatedAt.Equal(in.UpdatedAt))
}

func TestOpenMemory(t *testing.T) {
	s, err := Open(":memory:", nil)
	require.NoError(t, err)
	defer s.Close()
	require.NoError(t, s.Create(context.Background(), newItem("a", time.Now())))
}

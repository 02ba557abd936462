package gate

import (
	"context"
	"fmt"

	"github.com/zen-systems/cepho/pkg/review"
	"golang.org/x/sync/errgroup"
)

// Run evaluates item id with g and submits the verdict for stage. The
// stage's review is started first when the item is still waiting for it.
func Run(ctx context.Context, tracker *review.Tracker, g Gate, stage review.Stage, id string) (*review.Item, *Verdict, error) {
	item, err := tracker.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	var waiting, inReview review.State
	switch stage {
	case review.StageFirst:
		waiting, inReview = review.StatePending, review.StateFirstReview
	case review.StageSecond:
		waiting, inReview = review.StateFirstApproved, review.StateSecondReview
	default:
		return nil, nil, fmt.Errorf("unknown review stage %d", stage)
	}

	switch item.State {
	case waiting:
		if stage == review.StageFirst {
			item, err = tracker.StartFirstReview(ctx, id, g.Name())
		} else {
			item, err = tracker.StartSecondReview(ctx, id, g.Name())
		}
		if err != nil {
			return nil, nil, err
		}
	case inReview:
		// already started
	default:
		return nil, nil, &review.TransitionError{ItemID: id, Operation: "gate " + stage.String() + " review", From: item.State}
	}

	verdict, err := g.Evaluate(ctx, item)
	if err != nil {
		return item, nil, fmt.Errorf("gate %s: %w", g.Name(), err)
	}

	sub := verdict.Submission(g.Name())
	if stage == review.StageFirst {
		item, err = tracker.SubmitFirstReview(ctx, id, sub)
	} else {
		item, err = tracker.SubmitSecondReview(ctx, id, sub)
	}
	if err != nil {
		return nil, verdict, err
	}
	return item, verdict, nil
}

// Outcome is one item's result from RunBatch.
type Outcome struct {
	ItemID  string
	Item    *review.Item
	Verdict *Verdict
	Err     error
}

// RunBatch gates ids concurrently, at most limit at a time. A failed item
// is reported in its Outcome and does not stop the others.
func RunBatch(ctx context.Context, tracker *review.Tracker, g Gate, stage review.Stage, ids []string, limit int) []Outcome {
	outcomes := make([]Outcome, len(ids))

	eg, egCtx := errgroup.WithContext(ctx)
	if limit > 0 {
		eg.SetLimit(limit)
	}
	for i, id := range ids {
		eg.Go(func() error {
			item, verdict, err := Run(egCtx, tracker, g, stage, id)
			outcomes[i] = Outcome{ItemID: id, Item: item, Verdict: verdict, Err: err}
			return nil
		})
	}
	_ = eg.Wait()
	return outcomes
}

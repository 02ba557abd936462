package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/zen-systems/cepho/pkg/gate"
	"github.com/zen-systems/cepho/pkg/repair"
	"github.com/zen-systems/cepho/pkg/review"
)

var errNoRedraftProvider = errors.New("no connected provider can redraft; connect one or revise without --redraft")

func reviewCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "review",
		Short: "Track work items through first and second review",
		Long: `Items move pending -> first_review -> first_approved -> second_review -> verified.
	A rejection at either stage is final for that item; 'review revise'
	starts a new linked revision.`,
	}

	cmd.AddCommand(reviewCreateCmd(opts))
	cmd.AddCommand(reviewShowCmd(opts))
	cmd.AddCommand(reviewListCmd(opts))
	cmd.AddCommand(reviewStartCmd(opts))
	cmd.AddCommand(reviewSubmitCmd(opts, review.StageFirst))
	cmd.AddCommand(reviewSubmitCmd(opts, review.StageSecond))
	cmd.AddCommand(reviewReviseCmd(opts))
	cmd.AddCommand(reviewGateCmd(opts))

	return cmd
}

// withTracker builds the app and tracker and closes them when fn returns.
func withTracker(opts *globalOptions, fn func(a *app, t *review.Tracker) error) error {
	a, err := newApp(opts)
	if err != nil {
		return err
	}
	defer a.close()

	t, err := a.tracker(opts.memory)
	if err != nil {
		return err
	}
	return fn(a, t)
}

func reviewCreateCmd(opts *globalOptions) *cobra.Command {
	var description string

	cmd := &cobra.Command{
		Use:   "create [title]",
		Short: "Add a pending item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withTracker(opts, func(a *app, t *review.Tracker) error {
				item, err := t.Create(cmd.Context(), args[0], description)
				if err != nil {
					return err
				}
				return a.format.render(cmd.OutOrStdout(), itemView(*item))
			})
		},
	}

	cmd.Flags().StringVarP(&description, "description", "d", "", "item content")
	return cmd
}

func reviewShowCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show [id]",
		Short: "Show one item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withTracker(opts, func(a *app, t *review.Tracker) error {
				item, err := t.Get(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return a.format.render(cmd.OutOrStdout(), itemView(*item))
			})
		},
	}
}

func reviewListCmd(opts *globalOptions) *cobra.Command {
	var stateFlag string
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List items, oldest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withTracker(opts, func(a *app, t *review.Tracker) error {
				items, err := t.List(cmd.Context(), review.Filter{State: review.State(stateFlag), Limit: limit})
				if err != nil {
					return err
				}
				return a.format.render(cmd.OutOrStdout(), itemsView(items))
			})
		},
	}

	cmd.Flags().StringVar(&stateFlag, "state", "", "only items in this state")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum number of items (0 for all)")
	return cmd
}

func reviewStartCmd(opts *globalOptions) *cobra.Command {
	var stageFlag string
	var reviewer string

	cmd := &cobra.Command{
		Use:   "start [id]",
		Short: "Mark an item as under review",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			stage, err := parseStage(stageFlag)
			if err != nil {
				return err
			}
			return withTracker(opts, func(a *app, t *review.Tracker) error {
				var item *review.Item
				if stage == review.StageFirst {
					item, err = t.StartFirstReview(cmd.Context(), args[0], reviewer)
				} else {
					item, err = t.StartSecondReview(cmd.Context(), args[0], reviewer)
				}
				if err != nil {
					return err
				}
				return a.format.render(cmd.OutOrStdout(), itemView(*item))
			})
		},
	}

	cmd.Flags().StringVar(&stageFlag, "stage", "first", "review stage: first or second")
	cmd.Flags().StringVar(&reviewer, "reviewer", "", "who is reviewing")
	return cmd
}

func reviewSubmitCmd(opts *globalOptions, stage review.Stage) *cobra.Command {
	var score int
	var decision string
	var feedback string
	var reviewer string

	cmd := &cobra.Command{
		Use:   stage.String() + " [id]",
		Short: fmt.Sprintf("Submit the %s review", stage),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sub := review.Submission{
				Score:    score,
				Feedback: feedback,
				Decision: review.Decision(strings.ToLower(decision)),
				Reviewer: reviewer,
			}
			return withTracker(opts, func(a *app, t *review.Tracker) error {
				var item *review.Item
				var err error
				if stage == review.StageFirst {
					item, err = t.SubmitFirstReview(cmd.Context(), args[0], sub)
				} else {
					item, err = t.SubmitSecondReview(cmd.Context(), args[0], sub)
				}
				if err != nil {
					return err
				}
				return a.format.render(cmd.OutOrStdout(), itemView(*item))
			})
		},
	}

	cmd.Flags().IntVar(&score, "score", 0, "score from 0 to 10")
	cmd.Flags().StringVar(&decision, "decision", "", "approve or reject")
	cmd.Flags().StringVar(&feedback, "feedback", "", "review notes")
	cmd.Flags().StringVar(&reviewer, "reviewer", "", "who reviewed")
	_ = cmd.MarkFlagRequired("score")
	_ = cmd.MarkFlagRequired("decision")
	return cmd
}

func reviewReviseCmd(opts *globalOptions) *cobra.Command {
	var redraft bool
	var providerFlag string

	cmd := &cobra.Command{
		Use:   "revise [id]",
		Short: "Start a new revision of a rejected item",
		Long: `Creates a new pending item linked to the rejected one.

	With --redraft the reviewer feedback is sent to a provider and its reply
	becomes the new revision's content.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withTracker(opts, func(a *app, t *review.Tracker) error {
				ctx := cmd.Context()
				id := args[0]
				var reviseOpts []review.ReviseOption

				if redraft {
					item, err := t.Get(ctx, id)
					if err != nil {
						return err
					}
					if item.State != review.StateRejected {
						return &review.TransitionError{ItemID: id, Operation: "revise", From: item.State}
					}

					verdict, err := gate.NewHollowGate(gate.HollowConfig{}).Evaluate(ctx, item)
					if err != nil {
						return err
					}
					if verdict.Approved() {
						verdict = nil
					}

					description, err := redraftDescription(ctx, a, repair.Prompt(item, verdict), providerFlag)
					if err != nil {
						return err
					}
					reviseOpts = append(reviseOpts, review.WithDescription(description))
				}

				item, err := t.Revise(ctx, id, reviseOpts...)
				if err != nil {
					return err
				}
				return a.format.render(cmd.OutOrStdout(), itemView(*item))
			})
		},
	}

	cmd.Flags().BoolVar(&redraft, "redraft", false, "ask a provider to rewrite the content from the feedback")
	cmd.Flags().StringVar(&providerFlag, "provider", "", "provider for --redraft")
	return cmd
}

func reviewGateCmd(opts *globalOptions) *cobra.Command {
	var stageFlag string
	var gateFlag string
	var providerFlag string
	var minScore int
	var all bool
	var concurrency int

	cmd := &cobra.Command{
		Use:   "gate [id]",
		Short: "Let an automated reviewer decide a stage",
		Long: `Runs an automated reviewer and submits its verdict.

	--gate hollow checks for empty or placeholder content and needs no provider.
	--gate llm asks a provider to act as Chief of Staff; by default the
	provider is chosen by routing the item's own text.

	With --all every item waiting for the stage is gated.`,
		Args: cobra.RangeArgs(0, 1),
		RunE: func(cmd *cobra.Command, args []string) error {
			stage, err := parseStage(stageFlag)
			if err != nil {
				return err
			}
			if all == (len(args) == 1) {
				return fmt.Errorf("pass an item ID or --all")
			}
			return withTracker(opts, func(a *app, t *review.Tracker) error {
				ctx := cmd.Context()

				if !all {
					item, err := t.Get(ctx, args[0])
					if err != nil {
						return err
					}
					g, err := buildGate(a, gateFlag, providerFlag, minScore, item)
					if err != nil {
						return err
					}
					item, verdict, err := gate.Run(ctx, t, g, stage, item.ID)
					if err != nil {
						return err
					}
					return a.format.render(cmd.OutOrStdout(), gateView{Item: item, Verdict: verdict})
				}

				if gateFlag == "llm" && providerFlag == "" {
					return fmt.Errorf("--all with --gate llm needs --provider")
				}
				g, err := buildGate(a, gateFlag, providerFlag, minScore, nil)
				if err != nil {
					return err
				}
				waiting := review.StatePending
				if stage == review.StageSecond {
					waiting = review.StateFirstApproved
				}
				items, err := t.List(ctx, review.Filter{State: waiting})
				if err != nil {
					return err
				}
				ids := make([]string, 0, len(items))
				for _, item := range items {
					ids = append(ids, item.ID)
				}
				outcomes := gate.RunBatch(ctx, t, g, stage, ids, concurrency)
				if err := a.format.render(cmd.OutOrStdout(), newBatchView(outcomes)); err != nil {
					return err
				}
				for _, o := range outcomes {
					if o.Err != nil {
						return fmt.Errorf("gating failed for some items")
					}
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&stageFlag, "stage", "first", "review stage: first or second")
	cmd.Flags().StringVar(&gateFlag, "gate", "hollow", "reviewer: hollow or llm")
	cmd.Flags().StringVar(&providerFlag, "provider", "", "provider for --gate llm")
	cmd.Flags().IntVar(&minScore, "min-score", 6, "lowest score an llm approval may have")
	cmd.Flags().BoolVar(&all, "all", false, "gate every item waiting for the stage")
	cmd.Flags().IntVar(&concurrency, "concurrency", 4, "items gated at once with --all")
	return cmd
}

// redraftDescription sends prompt to a real provider and returns its reply.
// The default provider only acknowledges prompts, so neither routing nor
// fallback may land on it.
func redraftDescription(ctx context.Context, a *app, prompt, providerID string) (string, error) {
	selectOpts, err := forcedProvider(a, providerID)
	if err != nil {
		return "", err
	}
	if _, decision := a.router.Route(prompt, selectOpts...); decision.Provider == a.registry.DefaultID() {
		return "", errNoRedraftProvider
	}

	result, err := a.router.Send(ctx, prompt, selectOpts...)
	if err != nil {
		return "", fmt.Errorf("redraft failed: %w", err)
	}
	if def, ok := a.registry.Get(a.registry.DefaultID()); ok && result.Response.Adapter == def.Adapter {
		return "", errNoRedraftProvider
	}
	description := strings.TrimSpace(result.Response.Content)
	if description == "" {
		return "", fmt.Errorf("redraft failed: %s returned no content", result.Response.Adapter)
	}
	return description, nil
}

// buildGate picks the reviewer. For llm without --provider the item's text
// is routed to choose one.
func buildGate(a *app, name, providerID string, minScore int, item *review.Item) (gate.Gate, error) {
	switch name {
	case "hollow":
		return gate.NewHollowGate(gate.HollowConfig{}), nil
	case "llm":
		if providerID == "" {
			_, decision := a.router.Route(item.Title + "\n" + item.Description)
			providerID = decision.Provider
		}
		if providerID == a.registry.DefaultID() {
			return nil, fmt.Errorf("no connected provider can review; connect one or use --gate hollow")
		}
		impl, model, err := a.providerAdapter(providerID)
		if err != nil {
			return nil, err
		}
		return gate.NewLLMGate(impl, model, gate.WithMinScore(minScore), gate.WithLogger(a.logger)), nil
	default:
		return nil, fmt.Errorf("unknown gate %q (want hollow or llm)", name)
	}
}

func parseStage(s string) (review.Stage, error) {
	switch strings.ToLower(s) {
	case "first", "1":
		return review.StageFirst, nil
	case "second", "2":
		return review.StageSecond, nil
	default:
		return 0, fmt.Errorf("unknown stage %q (want first or second)", s)
	}
}

package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/zen-systems/cepho/pkg/router"
)

func classifyCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "classify [query...]",
		Short: "Show how a query is classified",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := queryText(args)
			if err != nil {
				return err
			}
			a, err := newApp(opts)
			if err != nil {
				return err
			}
			defer a.close()

			profile := a.router.Classify(text)
			return a.format.render(cmd.OutOrStdout(), profileView(profile))
		},
	}
}

func routeCmd(opts *globalOptions) *cobra.Command {
	var providerFlag string

	cmd := &cobra.Command{
		Use:   "route [query...]",
		Short: "Pick a provider for a query without calling it",
		Long: `Classifies the query and scores every connected provider, printing the
	chosen provider, the reason, a confidence and up to two alternatives.

	Use --provider to force a provider; the decision then has confidence 1
	and no alternatives.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := queryText(args)
			if err != nil {
				return err
			}
			a, err := newApp(opts)
			if err != nil {
				return err
			}
			defer a.close()

			selectOpts, err := forcedProvider(a, providerFlag)
			if err != nil {
				return err
			}
			profile, decision := a.router.Route(text, selectOpts...)
			return a.format.render(cmd.OutOrStdout(), decisionView{Profile: profile, Decision: decision})
		},
	}

	cmd.Flags().StringVar(&providerFlag, "provider", "", "force a provider by ID")
	return cmd
}

func askCmd(opts *globalOptions) *cobra.Command {
	var providerFlag string

	cmd := &cobra.Command{
		Use:   "ask [query...]",
		Short: "Route a query and send it to the chosen provider",
		Long: `Routes the query like 'cepho route' and sends it to the chosen provider.

	Transient provider errors are retried with backoff. When fallback is
	enabled in routing.yaml, failures move on to the alternatives and then
	to the built-in provider.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := queryText(args)
			if err != nil {
				return err
			}
			a, err := newApp(opts)
			if err != nil {
				return err
			}
			defer a.close()

			selectOpts, err := forcedProvider(a, providerFlag)
			if err != nil {
				return err
			}
			result, err := a.router.Send(cmd.Context(), text, selectOpts...)
			if err != nil {
				if result != nil {
					_ = a.format.render(cmd.OutOrStdout(), answerView(*result))
				}
				return err
			}
			return a.format.render(cmd.OutOrStdout(), answerView(*result))
		},
	}

	cmd.Flags().StringVar(&providerFlag, "provider", "", "force a provider by ID")
	return cmd
}

// forcedProvider validates --provider against the registry.
func forcedProvider(a *app, id string) ([]router.SelectOption, error) {
	if id == "" {
		return nil, nil
	}
	if _, ok := a.registry.Get(id); !ok {
		return nil, fmt.Errorf("%w: %s", router.ErrUnknownProvider, id)
	}
	return []router.SelectOption{router.WithForcedProvider(id)}, nil
}

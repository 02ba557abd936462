package main

import (
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"
	"github.com/zen-systems/cepho/pkg/router"
	"github.com/zen-systems/cepho/pkg/state"
	"go.uber.org/zap"
)

func providersCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "providers",
		Short: "List, connect and disconnect AI providers",
		RunE: func(cmd *cobra.Command, args []string) error {
			return listProviders(cmd, opts)
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List providers and whether they are ready",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return listProviders(cmd, opts)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "connect [provider]",
		Short: "Connect a provider whose API key is set",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return setConnected(cmd, opts, args[0], true)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "disconnect [provider]",
		Short: "Stop routing to a provider",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return setConnected(cmd, opts, args[0], false)
		},
	})

	return cmd
}

func listProviders(cmd *cobra.Command, opts *globalOptions) error {
	a, err := newApp(opts)
	if err != nil {
		return err
	}
	defer a.close()
	return a.format.render(cmd.OutOrStdout(), providersView(a.registry.Providers()))
}

func setConnected(cmd *cobra.Command, opts *globalOptions, id string, connected bool) error {
	a, err := newApp(opts)
	if err != nil {
		return err
	}
	defer a.close()

	profile, ok := a.registry.Get(id)
	if !ok {
		return fmt.Errorf("%w: %s", router.ErrUnknownProvider, id)
	}
	if !profile.RequiresCredential {
		return fmt.Errorf("provider %s is always available", id)
	}
	if connected && !a.cfg.HasAdapter(profile.Adapter) {
		return fmt.Errorf("provider %s has no API key; set %s first", id, keyEnv(profile.Adapter))
	}

	ctx := cmd.Context()
	integrations, err := a.state.Load(ctx)
	if err != nil {
		return err
	}
	if integrations == nil {
		integrations = state.Seed(a.registry, a.cfg.HasAdapter)
	}
	if connected {
		integrations.Connect(id)
	} else {
		integrations.Disconnect(id)
	}
	integrations.UpdatedAt = time.Now().UTC()
	if err := a.state.Save(ctx, integrations); err != nil {
		return err
	}
	if err := state.Apply(a.registry, integrations, a.cfg.HasAdapter); err != nil {
		return err
	}

	a.logger.Info("integration updated", zap.String("provider", id), zap.Bool("connected", connected))
	return a.format.render(cmd.OutOrStdout(), providersView(a.registry.Providers()))
}

func modelsCmd(opts *globalOptions) *cobra.Command {
	var resolveFlag bool
	var validateFlag bool

	cmd := &cobra.Command{
		Use:   "models",
		Short: "List adapters, models and aliases",
		Long: `Lists adapters and their available models.

	Use --resolve to show aliases and what they resolve to.
	Use --validate to check every provider model in routing.yaml resolves.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(opts)
			if err != nil {
				return err
			}
			defer a.close()

			if validateFlag {
				errs := a.aliases.ValidateRoutingConfig(a.cfg.RoutingConfig)
				if len(errs) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "All provider models are valid.")
					return nil
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "Found %d validation errors:\n", len(errs))
				for _, err := range errs {
					fmt.Fprintf(cmd.ErrOrStderr(), "  - %s\n", err)
				}
				return fmt.Errorf("validation failed")
			}

			if resolveFlag {
				aliasMap := a.aliases.ListAliases()
				names := make([]string, 0, len(aliasMap))
				for name := range aliasMap {
					names = append(names, name)
				}
				sort.Strings(names)
				rows := make(aliasesView, 0, len(names))
				for _, name := range names {
					rows = append(rows, aliasRow{Alias: name, Model: aliasMap[name]})
				}
				return a.format.render(cmd.OutOrStdout(), rows)
			}

			var rows modelsView
			for _, name := range a.aliases.ListAdapters() {
				_, ready := a.adapters[name]
				rows = append(rows, modelRow{Adapter: name, Models: a.aliases.AdapterModels(name), Ready: ready})
			}
			return a.format.render(cmd.OutOrStdout(), rows)
		},
	}

	cmd.Flags().BoolVar(&resolveFlag, "resolve", false, "show aliases and what they resolve to")
	cmd.Flags().BoolVar(&validateFlag, "validate", false, "check provider models in routing.yaml")
	return cmd
}

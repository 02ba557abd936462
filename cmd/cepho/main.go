package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/zen-systems/cepho/pkg/adapter"
	"github.com/zen-systems/cepho/pkg/config"
	"github.com/zen-systems/cepho/pkg/logging"
	"github.com/zen-systems/cepho/pkg/review"
	"github.com/zen-systems/cepho/pkg/router"
	"github.com/zen-systems/cepho/pkg/state"
	"github.com/zen-systems/cepho/pkg/store"
	"go.uber.org/zap"
)

// globalOptions are the persistent flags shared by every command.
type globalOptions struct {
	configFile string
	output     string
	logLevel   string
	memory     bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}

	rootCmd := &cobra.Command{
		Use:   "cepho",
		Short: "Route questions to the best AI provider and track work through review",
		Long: `Cepho classifies each question, picks the AI provider best suited to it
	from the ones you have connected, and explains why.

	It also tracks work items through a two-stage review: a Chief of Staff
	first review followed by your own sign-off.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&opts.configFile, "config", "", "path to routing config file")
	rootCmd.PersistentFlags().StringVarP(&opts.output, "output", "o", "table", "output format: table or json")
	rootCmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level (overrides config)")
	rootCmd.PersistentFlags().BoolVar(&opts.memory, "memory", false, "keep review items in memory for this one command; nothing is read from or written to the database")

	rootCmd.AddCommand(classifyCmd(opts))
	rootCmd.AddCommand(routeCmd(opts))
	rootCmd.AddCommand(askCmd(opts))
	rootCmd.AddCommand(providersCmd(opts))
	rootCmd.AddCommand(modelsCmd(opts))
	rootCmd.AddCommand(reviewCmd(opts))

	return rootCmd
}

// app holds everything a command needs, built from config and flags.
type app struct {
	cfg      *config.Config
	logger   *zap.Logger
	aliases  *config.ModelAliases
	adapters map[string]adapter.Adapter
	registry *router.Registry
	router   *router.Router
	format   outputFormat
	state    state.Port
	db       *store.SQLiteStore
}

func newApp(opts *globalOptions) (*app, error) {
	format, err := parseOutputFormat(opts.output)
	if err != nil {
		return nil, err
	}

	cfg, err := loadConfig(opts.configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	level := cfg.LogLevel
	if opts.logLevel != "" {
		level = opts.logLevel
	}
	logger, err := logging.NewLogger(level, cfg.LogFormat)
	if err != nil {
		return nil, err
	}

	aliases, err := config.LoadAliasesWithFallback(cfg.ConfigDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load model aliases: %w", err)
	}
	for _, verr := range aliases.ValidateRoutingConfig(cfg.RoutingConfig) {
		logger.Warn("routing config model", zap.Error(verr))
	}

	adapters, err := createAdapters(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create adapters: %w", err)
	}

	a := &app{
		cfg:      cfg,
		logger:   logger,
		aliases:  aliases,
		adapters: adapters,
		format:   format,
	}

	rc := cfg.RoutingConfig
	a.registry = router.NewRegistry(rc.Providers, rc.Selector.DefaultProvider)
	a.router = router.NewRouter(rc, a.registry, adapters,
		router.WithAliases(aliases),
		router.WithLogger(logger))

	switch cfg.StateBackend {
	case "file":
		a.state = state.NewFileStoreInDir(cfg.ConfigDir)
	case "sqlite":
		db, err := a.database()
		if err != nil {
			return nil, err
		}
		a.state = db
	default:
		return nil, fmt.Errorf("unknown state backend %q (want file or sqlite)", cfg.StateBackend)
	}

	integrations, err := a.state.Load(context.Background())
	if err != nil {
		return nil, err
	}
	if err := state.Apply(a.registry, integrations, cfg.HasAdapter); err != nil {
		return nil, err
	}
	return a, nil
}

// database opens the SQLite store once.
func (a *app) database() (*store.SQLiteStore, error) {
	if a.db != nil {
		return a.db, nil
	}
	db, err := store.Open(a.cfg.StorePath, a.logger)
	if err != nil {
		return nil, err
	}
	a.db = db
	return db, nil
}

// tracker returns a review tracker over the database, or over a fresh
// in-memory store when --memory is set. Memory items end with the command.
func (a *app) tracker(memory bool) (*review.Tracker, error) {
	if memory {
		return review.NewTracker(review.NewMemoryStore(), review.WithLogger(a.logger)), nil
	}
	db, err := a.database()
	if err != nil {
		return nil, err
	}
	return review.NewTracker(db, review.WithLogger(a.logger)), nil
}

func (a *app) close() {
	if a.db != nil {
		a.db.Close()
	}
	_ = a.logger.Sync()
}

// providerAdapter returns the adapter and resolved model for a provider.
func (a *app) providerAdapter(id string) (adapter.Adapter, string, error) {
	profile, ok := a.registry.Get(id)
	if !ok {
		return nil, "", fmt.Errorf("%w: %s", router.ErrUnknownProvider, id)
	}
	impl, ok := a.adapters[profile.Adapter]
	if !ok {
		return nil, "", fmt.Errorf("provider %s is not configured; set %s", id, keyEnv(profile.Adapter))
	}
	return impl, a.aliases.Resolve(profile.Model), nil
}

func loadConfig(configFile string) (*config.Config, error) {
	if configFile != "" {
		return config.LoadWithRoutingFile(configFile)
	}
	return config.Load()
}

func createAdapters(cfg *config.Config) (map[string]adapter.Adapter, error) {
	adapters := map[string]adapter.Adapter{
		"builtin": adapter.NewBuiltinAdapter(),
	}

	if cfg.AnthropicAPIKey != "" {
		a, err := adapter.NewAnthropicAdapter(cfg.AnthropicAPIKey)
		if err != nil {
			return nil, fmt.Errorf("failed to create anthropic adapter: %w", err)
		}
		adapters["anthropic"] = a
	}

	if cfg.OpenAIAPIKey != "" {
		a, err := adapter.NewOpenAIAdapter(cfg.OpenAIAPIKey)
		if err != nil {
			return nil, fmt.Errorf("failed to create openai adapter: %w", err)
		}
		adapters["openai"] = a
	}

	if cfg.GoogleAPIKey != "" {
		a, err := adapter.NewGoogleAdapter(cfg.GoogleAPIKey)
		if err != nil {
			return nil, fmt.Errorf("failed to create google adapter: %w", err)
		}
		adapters["google"] = a
	}

	if cfg.DeepSeekAPIKey != "" {
		a, err := adapter.NewDeepSeekAdapter(cfg.DeepSeekAPIKey)
		if err != nil {
			return nil, fmt.Errorf("failed to create deepseek adapter: %w", err)
		}
		adapters["deepseek"] = a
	}

	if cfg.PerplexityAPIKey != "" {
		a, err := adapter.NewPerplexityAdapter(cfg.PerplexityAPIKey)
		if err != nil {
			return nil, fmt.Errorf("failed to create perplexity adapter: %w", err)
		}
		adapters["perplexity"] = a
	}

	return adapters, nil
}

func keyEnv(adapterName string) string {
	return strings.ToUpper(adapterName) + "_API_KEY"
}

// queryText joins positional args into one query.
func queryText(args []string) (string, error) {
	text := strings.TrimSpace(strings.Join(args, " "))
	if text == "" {
		return "", fmt.Errorf("query text is required")
	}
	return text, nil
}

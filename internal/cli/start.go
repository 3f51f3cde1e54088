package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/moltagent/moltagent/internal/config"
	"github.com/moltagent/moltagent/internal/dashboard"
	"github.com/moltagent/moltagent/internal/logger"
	"github.com/moltagent/moltagent/internal/metrics"
	"github.com/moltagent/moltagent/pkg/agentloop"
	"github.com/moltagent/moltagent/pkg/archive"
	"github.com/moltagent/moltagent/pkg/llm"
	"github.com/moltagent/moltagent/pkg/moltbook"
	"github.com/moltagent/moltagent/pkg/state"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Run the agent loop",
	Long: `Start the agent loop in the foreground. The loop decides one action
per iteration, executes it, then sleeps for the decided delay. Stop with
SIGINT or SIGTERM.`,
	RunE: runStart,
}

func init() {
	rootCmd.AddCommand(startCmd)
}

func runStart(cmd *cobra.Command, args []string) error {
	loader := config.NewLoader(cfgFile)
	cfg, err := loader.Load()
	if err != nil {
		return err
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	lg, err := logger.New(cfg.Logging.ToLoggerConfig())
	if err != nil {
		return err
	}
	defer lg.Close()

	store, err := state.Open(cfg.StatePath)
	if err != nil {
		return err
	}

	m := metrics.NewMetrics()
	environ := os.Environ()

	router, err := buildRouter(cfg, store, environ, m)
	if err != nil {
		return err
	}

	baseURL := cfg.Moltbook.BaseURL
	if baseURL == "" {
		baseURL = moltbook.DefaultBaseURL
	}
	platform := moltbook.New(baseURL)

	holder := config.NewHolder(cfg)

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	// Persona and prompt edits apply on the next iteration.
	watcher := config.NewWatcher(loader, holder)
	go func() {
		if err := watcher.Run(ctx); err != nil && ctx.Err() == nil {
			log.Warn().Err(err).Msg("Config watcher stopped")
		}
	}()

	params := agentloop.Params{
		Store:    store,
		Platform: platform,
		Caller:   router,
		Metrics:  m,
		Settings: func() agentloop.Settings {
			c := holder.Get()
			return agentloop.Settings{
				AgentName:        c.Agent.Name,
				AgentDescription: c.Agent.Description,
				Keywords:         c.Agent.Keywords,
				Submolt:          c.Moltbook.Submolt,
				MaxLLMAttempts:   c.LLM.MaxAttempts,
				Prompts: agentloop.Prompts{
					DecideNextAction: c.Prompts.DecideNextAction,
					Comment:          c.Prompts.Comment,
					CommentOffTopic:  c.Prompts.CommentOffTopic,
					Classify:         c.Prompts.Classify,
					ReplyToComment:   c.Prompts.ReplyToComment,
					PersonaSummary:   c.Prompts.PersonaSummary,
					Verification:     c.Prompts.Verification,
				},
			}
		},
	}

	if cfg.Archive.Enabled {
		arch, err := archive.Open(cfg.Archive.Path)
		if err != nil {
			return err
		}
		defer arch.Close()
		params.Archive = arch
	}

	if cfg.Snapshot.Enabled {
		snapshotter := state.NewSnapshotter(store, cfg.Snapshot.Dir)
		if err := snapshotter.Start(cfg.Snapshot.Schedule); err != nil {
			return err
		}
		defer snapshotter.Stop()
	}

	if cfg.Dashboard.Enabled {
		var source dashboard.ActionSource
		if arch, ok := params.Archive.(dashboard.ActionSource); ok {
			source = arch
		}
		dash := dashboard.New(cfg.Dashboard.Addr, store, source, m)
		params.Events = dash.Hub()
		go func() {
			if err := dash.Start(); err != nil {
				log.Error().Err(err).Msg("Dashboard server failed")
			}
		}()
		defer func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			if err := dash.Shutdown(shutdownCtx); err != nil {
				log.Warn().Err(err).Msg("Dashboard shutdown failed")
			}
		}()
	}

	engine := agentloop.NewEngine(params)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Info().Str("signal", sig.String()).Msg("Shutting down")
		cancel()
	}()

	if err := engine.Run(ctx); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

// buildRouter resolves the provider order once at startup and constructs a
// client per configured provider. Providers without credentials are
// skipped with a warning; at least one must construct.
func buildRouter(cfg *config.Config, store *state.Store, environ []string, m *metrics.Metrics) (*llm.Router, error) {
	spec := llm.EnvValue(environ, "LLM_PROVIDERS")
	if spec == "" {
		spec = cfg.LLM.Providers
	}
	legacy := llm.EnvValue(environ, "PRIMARY_LLM_PROVIDER")
	if legacy == "" {
		legacy = cfg.LLM.LegacyProvider
	}

	order := llm.ResolveOrder(spec, legacy, environ)
	clients := map[llm.ProviderName]llm.Client{}
	for _, name := range order {
		var client llm.Client
		var err error
		switch name {
		case llm.ProviderGemini:
			client, err = llm.NewGeminiClient(environ, store, m)
		case llm.ProviderGLM:
			client, err = llm.NewGLMClient(environ, store, m)
		case llm.ProviderKimi:
			client, err = llm.NewKimiClient(environ, store, m)
		}
		if err != nil {
			log.Warn().Err(err).Str("provider", string(name)).Msg("Provider unavailable")
			continue
		}
		clients[name] = client
	}
	if len(clients) == 0 {
		return nil, fmt.Errorf("no LLM provider credentials found; set GOOGLE_API_KEY, GLM_API_KEY, or KIMI_API_KEY")
	}

	log.Info().Interface("order", order).Int("available", len(clients)).Msg("Provider order resolved")
	return llm.NewRouter(order, clients, store, m), nil
}

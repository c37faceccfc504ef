package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/parley-ai/parley/config"
	"github.com/parley-ai/parley/llm"
	"github.com/parley-ai/parley/llm/anthropic"
	"github.com/parley-ai/parley/llm/google"
	"github.com/parley-ai/parley/llm/groq"
	"github.com/parley-ai/parley/llm/ollama"
	"github.com/parley-ai/parley/llm/openai"
	parleylogger "github.com/parley-ai/parley/logger"
	"github.com/parley-ai/parley/orchestrator"
	"github.com/parley-ai/parley/toolserver"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath = flag.String("config", config.GetConfigPath(), "Path to service config file")
		logFile    = flag.String("logfile", "", "Path to log file. If not set, logs to stdout")
		pretty     = flag.Bool("pretty", false, "Use pretty console output (only valid when logfile is not set)")
		prompt     = flag.String("prompt", "", "Run a single turn with this user prompt and exit")
		system     = flag.String("system", "", "System prompt for the turn")
		provider   = flag.String("provider", llm.ProviderOpenAI, "Provider id for the turn")
		model      = flag.String("model", "", "Model id (provider default when empty)")
		stream     = flag.Bool("stream", false, "Stream the terminal answer")
	)
	flag.Parse()

	if *logFile != "" && *pretty {
		return fmt.Errorf("--logfile and --pretty are mutually exclusive")
	}

	logger, err := parleylogger.InitWithOptions(*logFile, *pretty)
	if err != nil {
		return err
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}

	providers := buildProviderRegistry(cfg)

	tools, err := toolserver.NewRegistry(cfg.ToolServers.ConfigPath,
		time.Duration(cfg.ToolServers.ExecTimeout)*time.Second, logger)
	if err != nil {
		return err
	}
	defer tools.Close()

	orch, err := orchestrator.New(providers, tools, logger,
		orchestrator.WithMaxIterations(cfg.MaxIterations))
	if err != nil {
		return err
	}

	if *prompt != "" {
		return runTurn(cfg, orch, logger, *provider, *model, *system, *prompt, *stream)
	}

	refresher, err := toolserver.NewRefresher(tools, cfg.ToolServers.RefreshSchedule, logger)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	refresher.Start(ctx)
	defer refresher.Stop()

	logger.Info().Msg("parleyd running; press Ctrl-C to stop")
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	logger.Info().Msg("Shutting down")
	return nil
}

// buildProviderRegistry wires every supported vendor family with the
// credentials and endpoints from the service config.
func buildProviderRegistry(cfg *config.Config) *llm.Registry {
	registry := llm.NewRegistry()

	_ = registry.RegisterProvider(llm.ProviderOpenAI, func(opts llm.ClientOptions) (llm.Client, error) {
		return openai.New(opts.APIKey, opts.BaseURL, opts.Model, opts.Organization)
	})
	_ = registry.RegisterProvider(llm.ProviderAnthropic, func(opts llm.ClientOptions) (llm.Client, error) {
		return anthropic.New(opts.APIKey, opts.Model)
	})
	_ = registry.RegisterProvider(llm.ProviderGoogle, func(opts llm.ClientOptions) (llm.Client, error) {
		return google.New(opts.APIKey, opts.Model)
	})
	_ = registry.RegisterProvider(llm.ProviderGroq, func(opts llm.ClientOptions) (llm.Client, error) {
		return groq.New(opts.APIKey, opts.BaseURL, opts.Model)
	})
	_ = registry.RegisterProvider(llm.ProviderOllama, func(opts llm.ClientOptions) (llm.Client, error) {
		return ollama.New(opts.Host, opts.Model)
	})

	registry.SetOptions(llm.ProviderOpenAI, llm.ClientOptions{
		APIKey:       cfg.OpenAI.APIKey,
		BaseURL:      cfg.OpenAI.BaseURL,
		Model:        cfg.OpenAI.Model,
		Organization: cfg.OpenAI.Organization,
	})
	registry.SetOptions(llm.ProviderAnthropic, llm.ClientOptions{
		APIKey: cfg.Anthropic.APIKey,
		Model:  cfg.Anthropic.Model,
	})
	registry.SetOptions(llm.ProviderGoogle, llm.ClientOptions{
		APIKey: cfg.Google.APIKey,
		Model:  cfg.Google.Model,
	})
	registry.SetOptions(llm.ProviderGroq, llm.ClientOptions{
		APIKey:  cfg.Groq.APIKey,
		BaseURL: cfg.Groq.BaseURL,
		Model:   cfg.Groq.Model,
	})
	registry.SetOptions(llm.ProviderOllama, llm.ClientOptions{
		Host:  cfg.Ollama.Host,
		Model: cfg.Ollama.Model,
	})

	return registry
}

// runTurn executes one orchestration turn and prints the result.
func runTurn(cfg *config.Config, orch *orchestrator.Orchestrator, logger zerolog.Logger,
	provider, model, system, prompt string, stream bool) error {
	ctx, cancel := context.WithTimeout(context.Background(),
		time.Duration(cfg.ChatTimeout)*time.Second)
	defer cancel()

	req := &orchestrator.TurnRequest{
		ProviderID: provider,
		Model:      model,
		System:     system,
		Messages:   []llm.Message{llm.NewTextMessage(llm.RoleUser, prompt)},
	}

	var result *orchestrator.TurnResult
	var err error
	if stream {
		result, err = orch.TurnStream(ctx, req, func(fragment string) error {
			_, werr := fmt.Print(fragment)
			return werr
		})
		fmt.Println()
	} else {
		result, err = orch.Turn(ctx, req)
		if result != nil {
			fmt.Println(result.Text)
		}
	}
	if err != nil {
		return err
	}

	for _, call := range result.ToolCallChain {
		logger.Info().Str("tool", call.Name).Str("server", call.Server).Msg("Tool call executed during turn")
	}
	return nil
}

package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"walletai/internal/agent"
	"walletai/internal/config"
	"walletai/internal/db"
	"walletai/internal/functions"
	"walletai/internal/history"
	"walletai/internal/llm"
	"walletai/internal/memory"
	"walletai/internal/mention"
	"walletai/internal/tools"
	"walletai/internal/trace"
	"walletai/internal/twitter"
	"walletai/internal/wallet"
)

// runtime is everything a command needs to answer mentions.
type runtime struct {
	database  *db.DB
	store     *history.Store
	functions []functions.Function
	registry  *agent.Registry
	handler   *mention.Handler
	closers   []func()
}

func newRuntime(ctx context.Context, cfg *config.Config, api twitter.API) (*runtime, error) {
	rt := &runtime{}
	ok := false
	defer func() {
		if !ok {
			rt.Close()
		}
	}()

	if cfg.Trace.Enabled {
		shutdown, err := trace.Init(ctx, trace.Config{
			Endpoint:    cfg.Trace.Endpoint,
			URLPath:     cfg.Trace.URLPath,
			APIKey:      cfg.Trace.APIKey,
			Insecure:    cfg.Trace.Insecure,
			SampleRatio: cfg.Trace.SampleRatio,
			Environment: cfg.Trace.Environment,
			Version:     version,
		})
		if err != nil {
			return nil, fmt.Errorf("initialising tracing: %w", err)
		}
		rt.closers = append(rt.closers, func() { shutdown(context.Background()) })
		slog.Info("tracing enabled", "endpoint", cfg.Trace.Endpoint)
	}

	var err error
	rt.database, err = db.Open(cfg.DB.Path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	rt.closers = append(rt.closers, func() { rt.database.Close() })
	if err := rt.database.Migrate(); err != nil {
		return nil, fmt.Errorf("migrating database: %w", err)
	}
	rt.store = history.NewStore(rt.database)

	llmCfg := cfg.LLM()
	provider := llm.NewOpenAI(llmCfg)

	rt.functions, err = loadFunctions(cfg.Functions)
	if err != nil {
		return nil, err
	}

	rt.registry = agent.NewRegistry()
	rt.registry.Register(tools.NewReply(api))
	timeout := time.Duration(cfg.Functions.TimeoutSeconds) * time.Second
	for _, t := range functions.Tools(rt.functions, timeout) {
		rt.registry.Register(t)
	}
	if cfg.Services.Brave.APIKey != "" {
		search, err := tools.NewTokenSearch(cfg.Services.Brave.APIKey)
		if err != nil {
			return nil, err
		}
		rt.registry.Register(search)
		rt.registry.Register(tools.NewFetchPage(nil))
	}
	if len(cfg.Chains) > 0 {
		balances, err := wallet.Dial(ctx, cfg.Chains)
		if err != nil {
			return nil, err
		}
		rt.closers = append(rt.closers, balances.Close)
		rt.registry.Register(balances)
	}

	opts := []agent.ReactOption{
		agent.WithDescriptor(descriptor(cfg.Agent)),
		agent.WithMaxIterations(cfg.Agent.MaxIterations),
	}
	if cfg.Memory.Compaction.Enabled {
		opts = append(opts, agent.WithReActCompactor(memory.NewCompactor(rt.database, provider, cfg.Memory.Compaction)))
		slog.Info("compaction enabled", "threshold", cfg.Memory.Compaction.TurnThreshold, "keep_recent", cfg.Memory.Compaction.KeepRecent)
	}
	rt.registry = rt.registry.Scope(cfg.Agent.Tools)
	runner := agent.NewReactRunner(provider, rt.store, memory.NewConversationMemory(rt.store, cfg.Memory.RecallTurns), rt.registry, opts...)

	rt.handler = mention.NewHandler(api, runner, rt.database,
		mention.WithTask(cfg.Agent.Task),
		mention.WithDefaultChain(cfg.Agent.DefaultChain),
		mention.WithHistoryLimit(cfg.Agent.ThreadTweets),
		mention.WithRunTimeout(time.Duration(cfg.Agent.RunTimeoutSeconds)*time.Second),
	)

	ok = true
	slog.Info("agent ready", "name", runner.Descriptor().Name, "model", llmCfg.Model, "tools", rt.registry.Names())
	return rt, nil
}

func (rt *runtime) Close() {
	for i := len(rt.closers) - 1; i >= 0; i-- {
		rt.closers[i]()
	}
	rt.closers = nil
}

func loadFunctions(cfg config.FunctionsConfig) ([]functions.Function, error) {
	fns := functions.Defaults(cfg.APIBase, cfg.APIKey)
	if cfg.File != "" {
		extra, err := functions.LoadFile(cfg.File)
		if err != nil {
			return nil, err
		}
		fns = functions.Merge(fns, extra)
	}
	return functions.ForPlatform(fns, mention.Platform), nil
}

func descriptor(c config.AgentConfig) agent.Descriptor {
	d := agent.Default()
	if c.Name != "" {
		d.Name = c.Name
	}
	if c.Goal != "" {
		d.Goal = c.Goal
	}
	if c.Description != "" {
		d.Description = c.Description
	}
	if c.WorldInfo != "" {
		d.WorldInfo = c.WorldInfo
	}
	return d
}

/*-------------------------------------------------------------------------
 *
 * QueryChat Natural Language SQL Agent
 *
 * Copyright (c) 2025, the QueryChat authors
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"querychat/internal/api"
	"querychat/internal/chatsvc"
	"querychat/internal/config"
	"querychat/internal/database"
	"querychat/internal/llm"
	"querychat/internal/logging"
	"querychat/internal/tools"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API server",
	RunE:  runServe,
}

// runtime is everything both front ends need: an open database handle,
// the rendered schema, and a ready chat engine.
type runtime struct {
	cfg    *config.Config
	flags  config.CLIFlags
	handle *database.Handle
	schema string
	engine *chatsvc.Engine
}

func buildRuntime(cmd *cobra.Command) (*runtime, error) {
	flags := cliFlags(cmd)

	cfg, err := config.LoadConfig(configFile, flags)
	if err != nil {
		return nil, err
	}

	ctx := context.Background()

	handle, err := database.Open(ctx, cfg.DatabaseOpenConfig())
	if err != nil {
		return nil, err
	}

	schema, err := database.Describe(ctx, handle)
	if err != nil {
		handle.Close()
		return nil, err
	}

	client, err := buildLLMClient(cfg)
	if err != nil {
		handle.Close()
		return nil, err
	}

	registry := tools.NewRegistry()
	registry.Register("execute_sql", tools.NewExecuteSQLTool(handle))
	registry.Register("describe_schema", tools.NewDescribeSchemaTool(handle))

	engine := chatsvc.NewEngine(client, registry, schema, chatsvc.NewStore())

	return &runtime{
		cfg:    cfg,
		flags:  flags,
		handle: handle,
		schema: schema,
		engine: engine,
	}, nil
}

func buildLLMClient(cfg *config.Config) (llm.Client, error) {
	switch cfg.LLM.Provider {
	case "anthropic":
		apiKey, err := cfg.ResolveAnthropicAPIKey()
		if err != nil {
			return nil, err
		}
		if apiKey == "" {
			return nil, fmt.Errorf("no Anthropic API key configured (set ANTHROPIC_API_KEY or llm.anthropic_api_key_file)")
		}
		return llm.NewAnthropicClient(apiKey, cfg.LLM.Model, cfg.LLM.MaxTokens, cfg.LLM.Temperature), nil
	case "ollama":
		return llm.NewOllamaClient(cfg.LLM.OllamaURL, cfg.LLM.Model), nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", cfg.LLM.Provider)
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true

	rt, err := buildRuntime(cmd)
	if err != nil {
		return err
	}
	defer rt.handle.Close()

	logging.Info("database connected",
		"backend", string(rt.handle.Kind()),
		"schema_bytes", len(rt.schema))

	// Watch the config file so provider and model changes apply without
	// a restart: each successful reload rebuilds the LLM client and
	// hands it to the engine. Structural changes (address, backend) are
	// logged as restart-required by the reload layer.
	reloadable := config.NewReloadableConfig(rt.cfg, configFile, rt.flags)
	reloadable.OnReload(func(newCfg *config.Config) {
		client, err := buildLLMClient(newCfg)
		if err != nil {
			logging.Warn("config reloaded but LLM client could not be rebuilt, keeping the previous client",
				"error", err.Error())
			return
		}
		rt.engine.SetClient(client)
		logging.Info("LLM client rebuilt",
			"provider", newCfg.LLM.Provider,
			"model", newCfg.LLM.Model)
	})
	if watcher, err := config.NewFileWatcher(configFile, reloadable.Reload); err == nil {
		watcher.Start()
		defer watcher.Stop()
	} else {
		logging.Debug("config watcher disabled", "error", err.Error())
	}

	server := api.NewServer(rt.engine, rt.handle)
	return server.Run(rt.cfg.Server.Address, api.TLSSettings{
		Enabled:  rt.cfg.Server.TLS.Enabled,
		CertFile: rt.cfg.Server.TLS.CertFile,
		KeyFile:  rt.cfg.Server.TLS.KeyFile,
	})
}

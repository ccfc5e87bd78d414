// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/CopyStudio/pkg/logging"
	"github.com/AleutianAI/CopyStudio/services/orchestrator"
	"github.com/AleutianAI/CopyStudio/services/orchestrator/config"
	"github.com/AleutianAI/CopyStudio/services/orchestrator/persona"
	"github.com/AleutianAI/CopyStudio/services/orchestrator/storage"
)

// --- Global Command Variables ---
var (
	configPath string
	logLevel   string
	logDir     string
)

// newRootCmd builds the command tree. A fresh tree per call keeps flag
// state out of package globals other than the persistent flags.
func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "copystudio",
		Short: "Marketing copy studio: persona research and channel strategy generation",
		Long: `copystudio serves the copy studio API: creative research from persona
documents, channel strategies, creative concepts and launch tracking.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to a YAML config file")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error")
	root.PersistentFlags().StringVar(&logDir, "log-dir", "", "Also write JSON logs to daily files in this directory")

	root.AddCommand(newServeCmd(), newExtractCmd())
	return root
}

// loadConfig applies the config file, the environment and then any flag
// the user set explicitly.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	flags := cmd.Flags()
	if flags.Changed("log-level") {
		cfg.Logging.Level = logLevel
	}
	if flags.Changed("log-dir") {
		cfg.Logging.Dir = logDir
	}
	override := func(name string, dst *string) {
		if flags.Lookup(name) != nil && flags.Changed(name) {
			*dst, _ = flags.GetString(name)
		}
	}
	override("backend", &cfg.LLM.Backend)
	override("model", &cfg.LLM.Model)
	override("training-dir", &cfg.Storage.TrainingDir)
	override("data-dir", &cfg.Storage.DataDir)
	override("otlp-endpoint", &cfg.Tracing.OTLPEndpoint)
	override("trace-exporter", &cfg.Tracing.Exporter)
	if flags.Lookup("port") != nil && flags.Changed("port") {
		cfg.Server.Port, _ = flags.GetInt("port")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) (*logging.Logger, error) {
	level, err := logging.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return nil, err
	}
	return logging.New(logging.Config{
		Level:   level,
		LogDir:  cfg.Logging.Dir,
		Service: "copystudio",
		JSON:    cfg.Logging.JSON,
	}), nil
}

// =============================================================================
// serve
// =============================================================================

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the copy studio HTTP server",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}
	cmd.Flags().Int("port", 0, "HTTP port (default from config: 12210)")
	cmd.Flags().String("backend", "", "LLM backend: anthropic, openai, gemini")
	cmd.Flags().String("model", "", "LLM model name")
	cmd.Flags().String("training-dir", "", "Training documents directory")
	cmd.Flags().String("data-dir", "", "Launch database directory")
	cmd.Flags().String("otlp-endpoint", "", "OTLP gRPC endpoint; enables tracing")
	cmd.Flags().String("trace-exporter", "", "Trace exporter: otlp, stdout, none")
	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer logger.Close()
	slog.SetDefault(logger.Slog())

	source, err := cfg.ResolveCredential()
	switch {
	case errors.Is(err, config.ErrMissingCredential):
		logger.Warn("starting without provider credential", "api_key_present", false, "error", err)
	case err != nil:
		return err
	default:
		logger.Info("provider credential loaded", "api_key_present", true, "source", source)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc, err := orchestrator.New(ctx, cfg, orchestrator.Options{Logger: logger.Slog()})
	if err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}
	return svc.Run(ctx)
}

// =============================================================================
// extract
// =============================================================================

func newExtractCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "extract [file]",
		Short: "Print the facts extracted from a persona document as JSON",
		Long: `extract runs the persona extractor on a markdown document and prints
the quotes, voice-of-customer lines, emotional job, copy angles, jobs to be
done and objections it finds. Use --persona to read a persona's document from
the training directory instead of a file.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runExtract,
	}
	cmd.Flags().String("persona", "", "Persona id to read from the training directory")
	cmd.Flags().String("training-dir", "", "Training documents directory")
	return cmd
}

func runExtract(cmd *cobra.Command, args []string) error {
	personaID, _ := cmd.Flags().GetString("persona")
	if (personaID == "") == (len(args) == 0) {
		return errors.New("give exactly one of a file argument or --persona")
	}

	var doc string
	if personaID != "" {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		store := storage.NewTrainingStore(cfg.Storage.TrainingDir, slog.Default())
		doc, err = store.PersonaDocument(context.Background(), personaID)
		if err != nil {
			return err
		}
		if doc == "" {
			return fmt.Errorf("no document for persona %q under %s", personaID, cfg.Storage.TrainingDir)
		}
	} else {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		doc = string(data)
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(persona.Extract(doc))
}

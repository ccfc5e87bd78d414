// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package strategy generates per-channel launch strategies and the creative
// channel's concepts.
package strategy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/AleutianAI/CopyStudio/services/orchestrator/catalog"
	"github.com/AleutianAI/CopyStudio/services/orchestrator/datatypes"
	"github.com/AleutianAI/CopyStudio/services/orchestrator/prompts"
	"github.com/AleutianAI/CopyStudio/services/orchestrator/research"
	"github.com/AleutianAI/CopyStudio/services/orchestrator/resilience"
)

var tracer = otel.Tracer("copystudio.strategy")

// ChannelFailure reports a channel whose strategy could not be generated.
type ChannelFailure struct {
	Channel datatypes.ChannelID `json:"channel"`
	Error   string              `json:"error"`
}

// Result is the outcome of one multi-channel generation.
type Result struct {
	// Strategies holds an entry for every channel that succeeded.
	Strategies datatypes.ChannelStrategies `json:"channelStrategies"`

	// Generated lists the successful channels in request order.
	Generated []datatypes.ChannelID `json:"-"`

	Failed []ChannelFailure `json:"failedChannels,omitempty"`
}

// Generator produces channel strategies.
type Generator struct {
	provider *research.Provider
	composer *prompts.Composer
	catalog  *catalog.Catalog
	logger   *slog.Logger
	newID    func() string
}

// Config wires a Generator.
type Config struct {
	Provider *research.Provider
	Composer *prompts.Composer
	Catalog  *catalog.Catalog
	Logger   *slog.Logger

	// NewID names concepts the provider left unnamed. Defaults to uuid.
	NewID func() string
}

// NewGenerator validates cfg and builds a Generator.
func NewGenerator(cfg Config) (*Generator, error) {
	if cfg.Provider == nil || cfg.Provider.Client == nil {
		return nil, errors.New("strategy: provider client is required")
	}
	if cfg.Composer == nil || cfg.Catalog == nil {
		return nil, errors.New("strategy: composer and catalog are required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.NewID == nil {
		cfg.NewID = func() string { return uuid.NewString() }
	}
	return &Generator{
		provider: cfg.Provider,
		composer: cfg.Composer,
		catalog:  cfg.Catalog,
		logger:   cfg.Logger,
		newID:    cfg.NewID,
	}, nil
}

// Generate produces strategies for channels concurrently.
//
// # Description
//
// Each channel is an isolated unit of work with retry. When research is
// given the creative channel is generated as concepts seeded with it,
// otherwise as a plain strategy. Failed channels are reported in
// Result.Failed and left out of Result.Strategies.
//
// # Outputs
//
//   - *Result: At least one successful channel.
//   - error: *datatypes.ValidationError for an unknown tier or channel or
//     for research that is not approved, *research.BatchFailure when every
//     channel fails.
func (g *Generator) Generate(ctx context.Context, pctx prompts.Context, channels []datatypes.ChannelID, approved *datatypes.CreativeResearch) (*Result, error) {
	tier, err := g.catalog.Tier(pctx.Tier)
	if err != nil {
		return nil, datatypes.NewValidationError(err.Error(), "tier")
	}
	channels = datatypes.MigrateChannels(channels)
	for _, id := range channels {
		if !id.Valid() {
			return nil, datatypes.NewValidationError(fmt.Sprintf("unknown channel %q", id), "channels")
		}
	}
	if len(channels) == 0 {
		return nil, datatypes.NewValidationError("at least one channel is required", "channels")
	}
	if approved != nil && approved.Status != datatypes.StatusApproved {
		return nil, unapprovedResearch(approved, "creativeResearch")
	}

	ctx, span := tracer.Start(ctx, "strategy.Generate")
	defer span.End()
	span.SetAttributes(
		attribute.String("strategy.tier", tier.ID),
		attribute.Int("strategy.channels", len(channels)),
	)
	g.logger.Info("generating channel strategies", "product", pctx.ProductName, "tier", tier.ID, "channels", channels)

	outcomes := resilience.FanOut(ctx, len(channels), 0,
		func(ctx context.Context, i int) (datatypes.Strategy, error) {
			id := channels[i]
			if id == datatypes.ChannelCreative && approved != nil {
				return g.concepts(ctx, pctx, approved, tier)
			}
			return g.channel(ctx, pctx, id, tier)
		})

	result := &Result{}
	var lastErr error
	for i, o := range outcomes {
		id := channels[i]
		g.provider.Metrics.RecordChannelStrategy(string(id), o.Err == nil)
		if o.Err != nil {
			lastErr = o.Err
			g.logger.Warn("channel strategy failed", "channel", id, "error", o.Err)
			result.Failed = append(result.Failed, ChannelFailure{Channel: id, Error: o.Err.Error()})
			continue
		}
		if err := result.Strategies.Set(id, o.Value); err != nil {
			return nil, err
		}
		result.Generated = append(result.Generated, id)
	}

	if len(result.Generated) == 0 {
		bf := &research.BatchFailure{Task: string(prompts.TaskChannelStrategy), Err: lastErr}
		span.RecordError(bf)
		span.SetStatus(codes.Error, bf.Error())
		return nil, bf
	}
	span.SetAttributes(attribute.Int("strategy.failed", len(result.Failed)))
	return result, nil
}

// GenerateConcepts produces the creative strategy seeded with approved
// research. The returned document carries research unchanged and sits in
// the concepts phase.
func (g *Generator) GenerateConcepts(ctx context.Context, pctx prompts.Context, approved *datatypes.CreativeResearch) (*datatypes.CreativeStrategy, error) {
	if approved == nil {
		return nil, datatypes.NewValidationError("approved research is required", "research")
	}
	if approved.Status != datatypes.StatusApproved {
		return nil, unapprovedResearch(approved, "research")
	}
	tier, err := g.catalog.Tier(pctx.Tier)
	if err != nil {
		return nil, datatypes.NewValidationError(err.Error(), "tier")
	}
	ctx, span := tracer.Start(ctx, "strategy.GenerateConcepts")
	defer span.End()

	s, err := g.concepts(ctx, pctx, approved, tier)
	g.provider.Metrics.RecordChannelStrategy(string(datatypes.ChannelCreative), err == nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "concept generation failed")
		return nil, &research.BatchFailure{Task: string(prompts.TaskCreativeConcepts), Err: err}
	}
	return s.(*datatypes.CreativeStrategy), nil
}

func unapprovedResearch(r *datatypes.CreativeResearch, field string) error {
	status := r.Status
	if status == "" {
		status = "unset"
	}
	return datatypes.NewValidationError(fmt.Sprintf("creative research must be approved, got status %s", status), field)
}

func (g *Generator) channel(ctx context.Context, pctx prompts.Context, id datatypes.ChannelID, tier catalog.Tier) (datatypes.Strategy, error) {
	task := string(prompts.TaskChannelStrategy)
	prompt, err := g.composer.ChannelStrategy(pctx, g.catalog.Channel(id), tier)
	if err != nil {
		return nil, err
	}
	return invoke(ctx, g.provider, task, prompt, research.MaxTokensChannelStrategy, string(id), func(reply string) (datatypes.Strategy, error) {
		s, err := decodeStrategy(task, id, reply)
		if err != nil {
			return nil, err
		}
		s.Base().Status = datatypes.StatusDraft
		return s, nil
	})
}

func (g *Generator) concepts(ctx context.Context, pctx prompts.Context, approved *datatypes.CreativeResearch, tier catalog.Tier) (datatypes.Strategy, error) {
	task := string(prompts.TaskCreativeConcepts)
	prompt, err := g.composer.CreativeConcepts(pctx, approved, tier)
	if err != nil {
		return nil, err
	}
	return invoke(ctx, g.provider, task, prompt, research.MaxTokensConcepts, string(datatypes.ChannelCreative), func(reply string) (datatypes.Strategy, error) {
		s, err := decodeStrategy(task, datatypes.ChannelCreative, reply)
		if err != nil {
			return nil, err
		}
		cs := s.(*datatypes.CreativeStrategy)
		cs.Status = datatypes.StatusDraft
		cs.CurrentPhase = datatypes.PhaseConcepts
		cs.Research = approved
		g.normalizeConcepts(cs, approved)
		return cs, nil
	})
}

// normalizeConcepts fills missing ids and persona names and recomputes the
// format mix.
func (g *Generator) normalizeConcepts(cs *datatypes.CreativeStrategy, approved *datatypes.CreativeResearch) {
	names := make(map[string]string, len(approved.PersonaInsights))
	for _, in := range approved.PersonaInsights {
		names[in.PersonaID] = in.PersonaName
	}
	seen := make(map[string]bool, len(cs.Concepts))
	for i := range cs.Concepts {
		c := &cs.Concepts[i]
		if strings.TrimSpace(c.ID) == "" || seen[c.ID] {
			c.ID = "concept-" + g.newID()
		}
		seen[c.ID] = true
		if c.PersonaName == "" {
			if n, ok := names[c.TargetPersona]; ok {
				c.PersonaName = n
			} else if c.TargetPersona == "general" {
				c.PersonaName = "General Audience"
			}
		}
	}
	if cs.Concepts == nil {
		cs.Concepts = []datatypes.CreativeConcept{}
	}
	cs.FormatMix = datatypes.CountFormats(cs.Concepts)
}

// decodeStrategy extracts and validates the channel's document type.
func decodeStrategy(task string, id datatypes.ChannelID, reply string) (datatypes.Strategy, error) {
	obj, err := resilience.ExtractJSONObject(reply)
	if err != nil {
		return nil, &resilience.ProviderCallFailure{Task: task, Err: err}
	}
	s, err := datatypes.NewStrategy(id)
	if err != nil {
		return nil, resilience.Permanent(err)
	}
	if err := json.Unmarshal([]byte(obj), s); err != nil {
		return nil, &resilience.ProviderCallFailure{Task: task, Err: fmt.Errorf("decode %s strategy: %w", id, err)}
	}
	if err := datatypes.ValidateStrategy(s); err != nil {
		return nil, &resilience.ProviderCallFailure{Task: task, Err: err}
	}
	return s, nil
}

// invoke runs one provider task with the provider's retry policy.
func invoke(ctx context.Context, p *research.Provider, task, prompt string, maxTokens int, channel string, decode func(string) (datatypes.Strategy, error)) (datatypes.Strategy, error) {
	start := time.Now()
	s, err := resilience.Invoke(ctx, p.RetryPolicy(task, "channel", channel),
		func(ctx context.Context, _ int) (datatypes.Strategy, error) {
			reply, err := p.Call(ctx, task, prompt, maxTokens)
			if err != nil {
				return nil, err
			}
			return decode(reply)
		})
	p.Metrics.RecordTask(task, time.Since(start).Seconds(), err == nil)
	return s, err
}

// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package research generates the creative research document for a launch:
// a product summary, general-audience insights and one insight per persona,
// all requested from the provider concurrently.
//
// # Failure Model
//
// Persona tasks retry with backoff and are isolated: a persona that still
// fails, or whose document is missing, is left out of the result with a
// warning. The product summary and general-audience tasks make a single
// attempt and are required; if either fails the whole generation fails
// with *BatchFailure.
package research

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/AleutianAI/CopyStudio/services/orchestrator/catalog"
	"github.com/AleutianAI/CopyStudio/services/orchestrator/datatypes"
	"github.com/AleutianAI/CopyStudio/services/orchestrator/observability"
	"github.com/AleutianAI/CopyStudio/services/orchestrator/persona"
	"github.com/AleutianAI/CopyStudio/services/orchestrator/prompts"
	"github.com/AleutianAI/CopyStudio/services/orchestrator/resilience"
)

var tracer = otel.Tracer("copystudio.research")

// DocumentSource loads persona documents.
type DocumentSource interface {
	// PersonaDocument returns the document text, or "" when there is none.
	PersonaDocument(ctx context.Context, personaID string) (string, error)
}

// Generator produces CreativeResearch documents.
//
// # Thread Safety
//
// Safe for concurrent use once constructed.
type Generator struct {
	provider *Provider
	composer *prompts.Composer
	catalog  *catalog.Catalog
	docs     DocumentSource
	logger   *slog.Logger
	now      func() time.Time
}

// Config wires a Generator.
type Config struct {
	Provider  *Provider
	Composer  *prompts.Composer
	Catalog   *catalog.Catalog
	Documents DocumentSource
	Logger    *slog.Logger

	// Now stamps generatedAt. Defaults to time.Now.
	Now func() time.Time
}

// NewGenerator validates cfg and builds a Generator.
func NewGenerator(cfg Config) (*Generator, error) {
	if cfg.Provider == nil || cfg.Provider.Client == nil {
		return nil, errors.New("research: provider client is required")
	}
	if cfg.Composer == nil || cfg.Catalog == nil || cfg.Documents == nil {
		return nil, errors.New("research: composer, catalog and documents are required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Generator{
		provider: cfg.Provider,
		composer: cfg.Composer,
		catalog:  cfg.Catalog,
		docs:     cfg.Documents,
		logger:   cfg.Logger,
		now:      cfg.Now,
	}, nil
}

// EmptyResearch is the research document for tiers that allow no creative
// concepts.
func EmptyResearch(generatedAt time.Time) *datatypes.CreativeResearch {
	return &datatypes.CreativeResearch{
		Status:      datatypes.StatusDraft,
		GeneratedAt: generatedAt,
		ProductSummary: datatypes.ProductSummary{
			KeyDifferentiator: "N/A - Tier 4 launch",
			PrimaryBenefit:    "N/A",
			CategoryPosition:  "N/A",
		},
		PersonaInsights: []datatypes.PersonaInsight{},
		GeneralAudienceInsights: datatypes.GeneralAudienceInsights{
			UniversalHooks:    []string{},
			BroadAppealAngles: []string{},
		},
		RecommendedTotalConcepts: 0,
	}
}

// unitResult carries whichever value one fanned-out unit produced.
type unitResult struct {
	summary *datatypes.ProductSummary
	general *datatypes.GeneralAudienceInsights
	insight *datatypes.PersonaInsight
}

const (
	unitSummary = iota
	unitGeneral
	unitFirstPersona
)

// Generate builds research for one launch context.
//
// # Description
//
// Tiers with zero concepts return EmptyResearch without any provider call.
// Otherwise the product summary, general-audience insights and every
// persona in catalog order run concurrently. Persona insights keep catalog
// order whatever order they finish in.
//
// # Inputs
//
//   - ctx: Bounds every provider call and backoff wait.
//   - pctx: Launch context. Tier must exist in the catalog.
//
// # Outputs
//
//   - *datatypes.CreativeResearch: Status draft, possibly with fewer
//     persona insights than personas.
//   - error: *datatypes.ValidationError for an unknown tier,
//     *BatchFailure when a required task fails.
func (g *Generator) Generate(ctx context.Context, pctx prompts.Context) (*datatypes.CreativeResearch, error) {
	tier, err := g.catalog.Tier(pctx.Tier)
	if err != nil {
		return nil, datatypes.NewValidationError(err.Error(), "tier")
	}
	if tier.MaxConcepts == 0 {
		g.logger.Info("tier allows no creative concepts, skipping research", "tier", tier.ID)
		g.provider.Metrics.RecordResearch(observability.ResearchTierZero)
		return EmptyResearch(g.now()), nil
	}

	ctx, span := tracer.Start(ctx, "research.Generate")
	defer span.End()
	span.SetAttributes(
		attribute.String("research.tier", tier.ID),
		attribute.String("research.product", pctx.ProductName),
		attribute.Bool("research.refined", strings.TrimSpace(pctx.RefinementNotes) != ""),
	)

	g.logger.Info("generating creative research",
		"product", pctx.ProductName, "tier", tier.ID, "personas", len(g.catalog.Personas))

	personas := g.catalog.Personas
	outcomes := resilience.FanOut(ctx, unitFirstPersona+len(personas), 0,
		func(ctx context.Context, i int) (unitResult, error) {
			switch i {
			case unitSummary:
				s, err := g.productSummary(ctx, pctx)
				return unitResult{summary: s}, err
			case unitGeneral:
				ga, err := g.generalAudience(ctx, pctx)
				return unitResult{general: ga}, err
			default:
				in, err := g.personaInsight(ctx, pctx, personas[i-unitFirstPersona], tier.MaxConcepts)
				return unitResult{insight: in}, err
			}
		})

	for _, i := range []int{unitSummary, unitGeneral} {
		if err := outcomes[i].Err; err != nil {
			task := prompts.TaskProductSummary
			if i == unitGeneral {
				task = prompts.TaskGeneralAudience
			}
			bf := &BatchFailure{Task: string(task), Err: err}
			g.logger.Error("research generation failed", "task", task, "error", err)
			span.RecordError(bf)
			span.SetStatus(codes.Error, bf.Error())
			g.provider.Metrics.RecordResearch(observability.ResearchFailed)
			return nil, bf
		}
	}

	insights := make([]datatypes.PersonaInsight, 0, len(personas))
	for i, p := range personas {
		o := outcomes[unitFirstPersona+i]
		switch {
		case o.Err != nil:
			g.logger.Warn("persona insight dropped after retries", "persona", p.ID, "error", o.Err)
			g.provider.Metrics.RecordDropped(string(prompts.TaskPersonaInsight), observability.DropFailed)
		case o.Value.insight == nil:
			g.provider.Metrics.RecordDropped(string(prompts.TaskPersonaInsight), observability.DropSkipped)
		default:
			insights = append(insights, *o.Value.insight)
		}
	}

	research := &datatypes.CreativeResearch{
		Status:                   datatypes.StatusDraft,
		GeneratedAt:              g.now(),
		ProductSummary:           *outcomes[unitSummary].Value.summary,
		PersonaInsights:          insights,
		GeneralAudienceInsights:  *outcomes[unitGeneral].Value.general,
		RecommendedTotalConcepts: datatypes.SumRecommendedConcepts(insights),
		RefinementNotes:          strings.TrimSpace(pctx.RefinementNotes),
	}

	outcome := observability.ResearchComplete
	if len(insights) < len(personas) {
		outcome = observability.ResearchPartial
	}
	g.provider.Metrics.RecordResearch(outcome)
	span.SetAttributes(
		attribute.Int("research.persona_insights", len(insights)),
		attribute.Int("research.recommended_concepts", research.RecommendedTotalConcepts),
	)
	g.logger.Info("creative research complete",
		"persona_insights", len(insights),
		"personas", len(personas),
		"recommended_concepts", research.RecommendedTotalConcepts)
	return research, nil
}

// productSummary makes a single attempt.
func (g *Generator) productSummary(ctx context.Context, pctx prompts.Context) (*datatypes.ProductSummary, error) {
	task := string(prompts.TaskProductSummary)
	prompt, err := g.composer.ProductSummary(pctx)
	if err != nil {
		return nil, err
	}
	return timed(g.provider.Metrics, task, func() (*datatypes.ProductSummary, error) {
		return resilience.Invoke(ctx, g.provider.SinglePolicy(task),
			func(ctx context.Context, _ int) (*datatypes.ProductSummary, error) {
				reply, err := g.provider.Call(ctx, task, prompt, MaxTokensProductSummary)
				if err != nil {
					return nil, err
				}
				s, err := resilience.DecodeJSON[datatypes.ProductSummary](task, reply)
				if err != nil {
					return nil, err
				}
				return &s, nil
			})
	})
}

// generalAudience makes a single attempt.
func (g *Generator) generalAudience(ctx context.Context, pctx prompts.Context) (*datatypes.GeneralAudienceInsights, error) {
	task := string(prompts.TaskGeneralAudience)
	prompt, err := g.composer.GeneralAudience(pctx)
	if err != nil {
		return nil, err
	}
	return timed(g.provider.Metrics, task, func() (*datatypes.GeneralAudienceInsights, error) {
		return resilience.Invoke(ctx, g.provider.SinglePolicy(task),
			func(ctx context.Context, _ int) (*datatypes.GeneralAudienceInsights, error) {
				reply, err := g.provider.Call(ctx, task, prompt, MaxTokensGeneralAudience)
				if err != nil {
					return nil, err
				}
				ga, err := resilience.DecodeJSON[datatypes.GeneralAudienceInsights](task, reply)
				if err != nil {
					return nil, err
				}
				return &ga, nil
			})
	})
}

// personaInsight runs one persona's pipeline: load, extract, compose,
// invoke with retry. A missing document returns (nil, nil).
func (g *Generator) personaInsight(ctx context.Context, pctx prompts.Context, p catalog.Persona, totalConcepts int) (*datatypes.PersonaInsight, error) {
	task := string(prompts.TaskPersonaInsight)
	ctx, span := tracer.Start(ctx, "research.personaInsight")
	defer span.End()
	span.SetAttributes(attribute.String("persona.id", p.ID))

	doc, err := g.docs.PersonaDocument(ctx, p.ID)
	if err != nil {
		g.logger.Warn("failed to load persona document", "persona", p.ID, "error", err)
		doc = ""
	}
	if strings.TrimSpace(doc) == "" {
		g.logger.Warn("no persona document, skipping persona", "persona", p.ID)
		span.SetAttributes(attribute.Bool("persona.skipped", true))
		return nil, nil
	}

	facts := persona.Extract(doc)
	if facts.Empty() {
		g.logger.Warn("persona document yielded no facts", "persona", p.ID)
	}

	prompt, err := g.composer.PersonaInsight(pctx, prompts.PersonaTask{
		Persona:       p,
		Facts:         facts,
		TotalConcepts: totalConcepts,
	})
	if err != nil {
		return nil, err
	}

	insight, err := timed(g.provider.Metrics, task, func() (*datatypes.PersonaInsight, error) {
		return resilience.Invoke(ctx, g.provider.RetryPolicy(task, "persona", p.ID),
			func(ctx context.Context, _ int) (*datatypes.PersonaInsight, error) {
				reply, err := g.provider.Call(ctx, task, prompt, MaxTokensPersonaInsight)
				if err != nil {
					return nil, err
				}
				in, err := resilience.DecodeJSON[datatypes.PersonaInsight](task, reply)
				if err != nil {
					return nil, err
				}
				return &in, nil
			})
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "persona insight failed")
		return nil, fmt.Errorf("persona %s: %w", p.ID, err)
	}

	// The catalog is authoritative for identity and weight.
	insight.PersonaID = p.ID
	if insight.PersonaName == "" {
		insight.PersonaName = p.Name
	}
	insight.CustomerBasePercentage = p.Percentage
	return insight, nil
}

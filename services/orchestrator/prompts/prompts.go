// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package prompts renders product, brief and persona data into the prompt
// text for each generation task.
//
// Rendering is a pure function of its inputs. Optional context renders as
// an empty value on a line that is always present, so two prompts for the
// same task differ only where their inputs differ. Every prompt spells out
// the exact JSON object the model must return.
package prompts

import (
	"bytes"
	"embed"
	"fmt"
	"strings"
	"text/template"

	"github.com/AleutianAI/CopyStudio/services/orchestrator/catalog"
	"github.com/AleutianAI/CopyStudio/services/orchestrator/datatypes"
	"github.com/AleutianAI/CopyStudio/services/orchestrator/persona"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

// TaskKind names one kind of generation task.
type TaskKind string

const (
	TaskPersonaInsight   TaskKind = "persona-insight"
	TaskProductSummary   TaskKind = "product-summary"
	TaskGeneralAudience  TaskKind = "general-audience"
	TaskChannelStrategy  TaskKind = "channel-strategy"
	TaskCreativeConcepts TaskKind = "creative-concepts"
)

// Quote caps for persona-insight prompts.
const (
	MaxGoldQuotes = 15
	MaxVOCQuotes  = 8
)

// Context is the launch context shared by every task. PMC and Brief may be
// nil; they render as empty fields.
type Context struct {
	ProductName     string
	Tier            string
	PMC             *datatypes.PMCDocument
	Brief           *datatypes.CreativeBrief
	RefinementNotes string
}

// contextView is Context with every pointer resolved.
type contextView struct {
	ProductName     string
	PMC             datatypes.PMCDocument
	Brief           datatypes.CreativeBrief
	Insights        datatypes.ConsumerInsights
	RefinementNotes string
}

func (c Context) view() contextView {
	v := contextView{
		ProductName:     c.ProductName,
		RefinementNotes: strings.TrimSpace(c.RefinementNotes),
	}
	if c.PMC != nil {
		v.PMC = *c.PMC
	}
	if c.Brief != nil {
		v.Brief = *c.Brief
		if c.Brief.ConsumerInsights != nil {
			v.Insights = *c.Brief.ConsumerInsights
		}
	}
	return v
}

// Composer renders prompts. Safe for concurrent use.
type Composer struct {
	brand string
	tmpl  *template.Template
}

// New parses the embedded templates.
func New(brand string) (*Composer, error) {
	tmpl, err := template.New("prompts").
		Option("missingkey=error").
		Funcs(template.FuncMap{
			"join": strings.Join,
			"add1": func(i int) int { return i + 1 },
		}).
		ParseFS(templateFS, "templates/*.tmpl")
	if err != nil {
		return nil, fmt.Errorf("parse prompt templates: %w", err)
	}
	return &Composer{brand: brand, tmpl: tmpl}, nil
}

// MaxConceptsPerPersona bounds one persona's share of the tier's concepts:
// ceil(total / 3).
func MaxConceptsPerPersona(totalConceptsForTier int) int {
	if totalConceptsForTier <= 0 {
		return 0
	}
	return (totalConceptsForTier + 2) / 3
}

// TierLabel turns "tier-2" into "Tier 2".
func TierLabel(tier string) string {
	return strings.Replace(tier, "tier-", "Tier ", 1)
}

// PersonaTask is the input for one persona-insight prompt.
type PersonaTask struct {
	Persona       catalog.Persona
	Facts         persona.Facts
	TotalConcepts int
}

// PersonaInsight renders the persona-insight prompt.
func (c *Composer) PersonaInsight(ctx Context, task PersonaTask) (string, error) {
	return c.render(string(TaskPersonaInsight), struct {
		Brand         string
		Persona       catalog.Persona
		Facts         persona.Facts
		GoldQuotes    []string
		VOCQuotes     []string
		Ctx           contextView
		TierLabel     string
		TotalConcepts int
		MaxPerPersona int
	}{
		Brand:         c.brand,
		Persona:       task.Persona,
		Facts:         task.Facts,
		GoldQuotes:    limit(task.Facts.Quotes, MaxGoldQuotes),
		VOCQuotes:     limit(task.Facts.VoiceOfCustomerQuotes, MaxVOCQuotes),
		Ctx:           ctx.view(),
		TierLabel:     TierLabel(ctx.Tier),
		TotalConcepts: task.TotalConcepts,
		MaxPerPersona: MaxConceptsPerPersona(task.TotalConcepts),
	})
}

// ProductSummary renders the product-summary prompt.
func (c *Composer) ProductSummary(ctx Context) (string, error) {
	return c.render(string(TaskProductSummary), c.base(ctx))
}

// GeneralAudience renders the general-audience-insight prompt.
func (c *Composer) GeneralAudience(ctx Context) (string, error) {
	return c.render(string(TaskGeneralAudience), c.base(ctx))
}

// ChannelStrategy renders the strategy prompt for one channel.
func (c *Composer) ChannelStrategy(ctx Context, channel catalog.Channel, tier catalog.Tier) (string, error) {
	shape, err := c.render("shape-"+string(channel.ID), nil)
	if err != nil {
		return "", err
	}
	return c.render(string(TaskChannelStrategy), struct {
		Brand   string
		Channel catalog.Channel
		Tier    catalog.Tier
		Ctx     contextView
		Shape   string
	}{c.brand, channel, tier, ctx.view(), shape})
}

// CreativeConcepts renders the concepts prompt for the creative channel,
// seeded with approved research.
func (c *Composer) CreativeConcepts(ctx Context, research *datatypes.CreativeResearch, tier catalog.Tier) (string, error) {
	if research == nil {
		return "", fmt.Errorf("creative concepts: research is required")
	}
	return c.render(string(TaskCreativeConcepts), struct {
		Brand         string
		Research      *datatypes.CreativeResearch
		Ctx           contextView
		ConceptTarget int
	}{c.brand, research, ctx.view(), ConceptTarget(research.RecommendedTotalConcepts, tier.MaxConcepts)})
}

// ConceptTarget is the number of concepts to request: the research
// recommendation capped by the tier, or the tier maximum when research
// recommends none.
func ConceptTarget(recommended, tierMax int) int {
	if recommended <= 0 || recommended > tierMax {
		return tierMax
	}
	return recommended
}

type baseView struct {
	Brand string
	Ctx   contextView
}

func (c *Composer) base(ctx Context) baseView {
	return baseView{Brand: c.brand, Ctx: ctx.view()}
}

func (c *Composer) render(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := c.tmpl.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("render %s prompt: %w", name, err)
	}
	return buf.String(), nil
}

func limit(s []string, n int) []string {
	if len(s) > n {
		return s[:n]
	}
	return s
}

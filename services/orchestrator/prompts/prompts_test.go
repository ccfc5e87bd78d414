// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package prompts

import (
	"fmt"
	"strings"
	"testing"

	"github.com/AleutianAI/CopyStudio/services/orchestrator/catalog"
	"github.com/AleutianAI/CopyStudio/services/orchestrator/datatypes"
	"github.com/AleutianAI/CopyStudio/services/orchestrator/persona"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestComposer(t *testing.T) *Composer {
	t.Helper()
	c, err := New("Jones Road Beauty")
	require.NoError(t, err)
	return c
}

var educator = catalog.Persona{ID: "dedicated-educator", Name: "The Dedicated Educator", Percentage: 22}

func testContext() Context {
	return Context{
		ProductName: "Miracle Balm",
		Tier:        "tier-1",
		PMC: &datatypes.PMCDocument{
			Tagline:  "The balm that does it all",
			WhatItIs: "A tinted multi-use balm",
			BobbisQuotes: []datatypes.BobbiQuote{
				{Quote: "I never leave home without it", Context: "launch video"},
			},
		},
		Brief: &datatypes.CreativeBrief{
			LaunchOverview: "Spring shade drop",
			KeyBenefits:    []string{"glow", "hydration"},
		},
	}
}

func numbered(prefix string, n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("%s-%02d quote with enough length", prefix, i+1)
	}
	return out
}

func TestPersonaInsight_Deterministic(t *testing.T) {
	c := newTestComposer(t)
	task := PersonaTask{Persona: educator, TotalConcepts: 24}

	first, err := c.PersonaInsight(testContext(), task)
	require.NoError(t, err)
	second, err := c.PersonaInsight(testContext(), task)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestPersonaInsight_EmptyFieldsKeepTheirLines(t *testing.T) {
	c := newTestComposer(t)

	prompt, err := c.PersonaInsight(Context{Tier: "tier-2"}, PersonaTask{Persona: educator, TotalConcepts: 12})
	require.NoError(t, err)

	for _, line := range []string{
		"- Tagline: \n",
		"- How To Use: \n",
		"- Key Benefits: \n",
		"- Top Desires: \n",
		"- Key Differentiator: \n",
		"## EMOTIONAL JOB TO BE DONE\n\n",
		"### Functional Jobs\n",
	} {
		assert.Contains(t, prompt, line)
	}
	assert.Contains(t, prompt, "This is a Tier 2 launch with approximately 12 total concepts")
}

func TestPersonaInsight_CapsQuotes(t *testing.T) {
	c := newTestComposer(t)
	facts := persona.Facts{
		Quotes:                numbered("gold", 20),
		VoiceOfCustomerQuotes: numbered("voc", 10),
	}

	prompt, err := c.PersonaInsight(testContext(), PersonaTask{Persona: educator, Facts: facts, TotalConcepts: 24})
	require.NoError(t, err)

	assert.Contains(t, prompt, "gold-15 quote")
	assert.NotContains(t, prompt, "gold-16 quote")
	assert.Contains(t, prompt, "voc-08 quote")
	assert.NotContains(t, prompt, "voc-09 quote")
}

func TestPersonaInsight_RendersFacts(t *testing.T) {
	c := newTestComposer(t)
	facts := persona.Facts{
		EmotionalJobStatement: "Permission to care about herself again.",
		CopyAnglesByTheme:     []persona.ThemeAngles{{Theme: "Time Scarcity", Angles: []string{"Five minutes is all you get"}}},
		JobsToBeDone:          persona.JobsToBeDone{Functional: []string{"Look rested fast"}},
		Objections:            []persona.Objection{{Objection: "Too pricey", Response: "Lasts a semester"}},
	}

	prompt, err := c.PersonaInsight(testContext(), PersonaTask{Persona: educator, Facts: facts, TotalConcepts: 24})
	require.NoError(t, err)

	assert.Contains(t, prompt, "Permission to care about herself again.")
	assert.Contains(t, prompt, "### Time Scarcity\n- \"Five minutes is all you get\"")
	assert.Contains(t, prompt, "### Functional Jobs\n- Look rested fast")
	assert.Contains(t, prompt, `- "Too pricey" -> Lasts a semester`)
	assert.Contains(t, prompt, `- Bobbi's Quote: "I never leave home without it" (launch video)`)
	assert.Contains(t, prompt, "- Key Benefits: glow, hydration")
}

func TestPersonaInsight_JSONContract(t *testing.T) {
	c := newTestComposer(t)
	prompt, err := c.PersonaInsight(testContext(), PersonaTask{Persona: educator, TotalConcepts: 24})
	require.NoError(t, err)

	assert.Contains(t, prompt, `"personaId": "dedicated-educator"`)
	assert.Contains(t, prompt, `"customerBasePercentage": 22,`)
	assert.Contains(t, prompt, `"relevanceScore": "high|medium|low"`)
	assert.Contains(t, prompt, `"hookFormula": "problem-first|identity-first|contrarian|direct-benefit"`)
	assert.Contains(t, prompt, "Return ONLY the JSON object")
}

func TestMaxConceptsPerPersona(t *testing.T) {
	tests := []struct{ total, want int }{
		{0, 0}, {1, 1}, {6, 2}, {7, 3}, {12, 4}, {24, 8},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, MaxConceptsPerPersona(tt.total), "total=%d", tt.total)
	}

	c := newTestComposer(t)
	prompt, err := c.PersonaInsight(testContext(), PersonaTask{Persona: educator, TotalConcepts: 7})
	require.NoError(t, err)
	assert.Contains(t, prompt, "(0-3)")
}

func TestRefinementNotes(t *testing.T) {
	c := newTestComposer(t)

	plain, err := c.ProductSummary(testContext())
	require.NoError(t, err)
	assert.NotContains(t, plain, "REFINEMENT GUIDANCE")

	ctx := testContext()
	ctx.RefinementNotes = "  Lean harder into the busy-mom angle.  "
	refined, err := c.ProductSummary(ctx)
	require.NoError(t, err)
	assert.Contains(t, refined, "## REFINEMENT GUIDANCE")
	assert.Contains(t, refined, "Lean harder into the busy-mom angle.")

	audience, err := c.GeneralAudience(ctx)
	require.NoError(t, err)
	assert.Contains(t, audience, "Lean harder into the busy-mom angle.")
	assert.Contains(t, audience, `"universalHooks"`)
}

func TestChannelStrategy_AllChannels(t *testing.T) {
	c := newTestComposer(t)
	cat, err := catalog.Default()
	require.NoError(t, err)
	tier, err := cat.Tier("tier-1")
	require.NoError(t, err)

	for _, id := range datatypes.ChannelOrder {
		t.Run(string(id), func(t *testing.T) {
			prompt, err := c.ChannelStrategy(testContext(), cat.Channel(id), tier)
			require.NoError(t, err)
			assert.Contains(t, prompt, `"strategicSummary"`)
			assert.Contains(t, prompt, "- Maximum creative concepts: 24")
			assert.True(t, strings.HasSuffix(prompt, "no explanation or markdown."))
		})
	}
}

func TestCreativeConcepts(t *testing.T) {
	c := newTestComposer(t)
	tier := catalog.Tier{ID: "tier-2", MaxConcepts: 12}

	_, err := c.CreativeConcepts(testContext(), nil, tier)
	assert.Error(t, err)

	research := &datatypes.CreativeResearch{
		Status: datatypes.StatusApproved,
		PersonaInsights: []datatypes.PersonaInsight{{
			PersonaID:               "dedicated-educator",
			PersonaName:             "The Dedicated Educator",
			RecommendedConceptCount: 4,
			MessagingAngles:         []datatypes.MessagingAngle{{Angle: "Five minute face", HookFormula: datatypes.HookProblemFirst}},
		}},
		RecommendedTotalConcepts: 4,
	}
	prompt, err := c.CreativeConcepts(testContext(), research, tier)
	require.NoError(t, err)
	assert.Contains(t, prompt, "Create exactly 4 concepts")
	assert.Contains(t, prompt, "- Angle (problem-first): Five minute face")
}

func TestConceptTarget(t *testing.T) {
	assert.Equal(t, 5, ConceptTarget(5, 12))
	assert.Equal(t, 12, ConceptTarget(30, 12))
	assert.Equal(t, 12, ConceptTarget(0, 12))
}

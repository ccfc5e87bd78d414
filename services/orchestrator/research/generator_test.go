// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package research

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/CopyStudio/services/llm"
	"github.com/AleutianAI/CopyStudio/services/orchestrator/catalog"
	"github.com/AleutianAI/CopyStudio/services/orchestrator/datatypes"
	"github.com/AleutianAI/CopyStudio/services/orchestrator/observability"
	"github.com/AleutianAI/CopyStudio/services/orchestrator/prompts"
	"github.com/AleutianAI/CopyStudio/services/orchestrator/resilience"
)

// =============================================================================
// Test Doubles
// =============================================================================

var personaIDPattern = regexp.MustCompile(`"personaId": "([a-z-]+)"`)

// fakeLLM answers by task, recognized from prompt text.
type fakeLLM struct {
	mu       sync.Mutex
	calls    map[string]int
	failing  map[string]bool // keys: "summary", "general" or a persona id
	badJSON  map[string]bool
	blank    map[string]int // leading replies with blank required fields
	concepts int
	delay    map[string]time.Duration
}

func newFakeLLM() *fakeLLM {
	return &fakeLLM{
		calls:    map[string]int{},
		failing:  map[string]bool{},
		badJSON:  map[string]bool{},
		blank:    map[string]int{},
		delay:    map[string]time.Duration{},
		concepts: 2,
	}
}

func (f *fakeLLM) key(prompt string) string {
	switch {
	case strings.Contains(prompt, "concise summary"):
		return "summary"
	case strings.Contains(prompt, "universal hooks"):
		return "general"
	}
	if m := personaIDPattern.FindStringSubmatch(prompt); m != nil {
		return m[1]
	}
	return "unknown"
}

func (f *fakeLLM) Generate(ctx context.Context, prompt string, _ llm.GenerationParams) (string, error) {
	k := f.key(prompt)
	f.mu.Lock()
	f.calls[k]++
	failing, bad, delay := f.failing[k], f.badJSON[k], f.delay[k]
	blank := f.blank[k] > 0
	if blank {
		f.blank[k]--
	}
	f.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if failing {
		return "", fmt.Errorf("upstream unavailable for %s", k)
	}
	if bad {
		return "I'm sorry, I can't produce JSON right now.", nil
	}
	if blank {
		return blankReply(k), nil
	}

	switch k {
	case "summary":
		return `Here you go: {"keyDifferentiator":"One balm, every finish","primaryBenefit":"Five minute face","categoryPosition":"Multi-use hero"}`, nil
	case "general":
		return "```json\n{\"universalHooks\":[\"Your face, but rested\"],\"broadAppealAngles\":[\"One product routine\"]}\n```", nil
	}
	return fmt.Sprintf(`{"personaId":%q,"personaName":"","customerBasePercentage":1,
		"productFit":{"relevanceScore":"high","primaryJobsToBeDone":["look awake"],"emotionalBenefits":[],"functionalBenefits":[]},
		"messagingAngles":[{"angle":"Five minutes before first bell","hookFormula":"problem-first","whyItWorks":"time"}],
		"hookOpportunities":[{"hook":"Ready before the bell"}],
		"objections":["price"],"recommendedConceptCount":%d}`, k, f.concepts), nil
}

// blankReply is well-formed JSON whose required text fields are whitespace.
func blankReply(k string) string {
	switch k {
	case "summary":
		return `{"keyDifferentiator":"One balm","primaryBenefit":"   ","categoryPosition":"Multi-use hero"}`
	case "general":
		return `{"universalHooks":["\t"],"broadAppealAngles":["One product routine"]}`
	}
	return fmt.Sprintf(`{"personaId":%q,"customerBasePercentage":1,
		"productFit":{"relevanceScore":"high"},
		"messagingAngles":[{"angle":"  ","hookFormula":"problem-first"}],
		"hookOpportunities":[{"hook":""}],"recommendedConceptCount":2}`, k)
}

func (f *fakeLLM) callsFor(k string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[k]
}

func (f *fakeLLM) total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		n += c
	}
	return n
}

type mapDocs map[string]string

func (m mapDocs) PersonaDocument(_ context.Context, id string) (string, error) {
	return m[id], nil
}

const personaDoc = `# Persona

## Gold Nugget Quotes
> "I have twelve minutes between waking up and leaving for school."

### The Emotional Job
I want to look like I slept eight hours.
`

func allDocs(t *testing.T, cat *catalog.Catalog) mapDocs {
	t.Helper()
	docs := mapDocs{}
	for _, id := range cat.PersonaIDs() {
		docs[id] = personaDoc
	}
	return docs
}

var fixedNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func noSleepPolicy() resilience.Policy {
	p := resilience.DefaultPolicy()
	p.Sleep = func(context.Context, time.Duration) error { return nil }
	return p
}

func newTestGenerator(t *testing.T, client llm.LLMClient, docs DocumentSource) (*Generator, *observability.GenerationMetrics) {
	t.Helper()
	cat, err := catalog.Default()
	require.NoError(t, err)
	composer, err := prompts.New(cat.Brand)
	require.NoError(t, err)
	if docs == nil {
		docs = allDocs(t, cat)
	}
	metrics := observability.NewGenerationMetrics(prometheus.NewRegistry())
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	g, err := NewGenerator(Config{
		Provider: &Provider{
			Client:  client,
			Metrics: metrics,
			Logger:  logger,
			Policy:  noSleepPolicy(),
		},
		Composer:  composer,
		Catalog:   cat,
		Documents: docs,
		Logger:    logger,
		Now:       func() time.Time { return fixedNow },
	})
	require.NoError(t, err)
	return g, metrics
}

func launchContext(tier string) prompts.Context {
	return prompts.Context{
		ProductName: "Miracle Balm",
		Tier:        tier,
		PMC:         &datatypes.PMCDocument{Tagline: "The balm that does it all"},
		Brief:       &datatypes.CreativeBrief{KeyBenefits: []string{"glow"}},
	}
}

func insightIDs(r *datatypes.CreativeResearch) []string {
	ids := make([]string, len(r.PersonaInsights))
	for i, in := range r.PersonaInsights {
		ids[i] = in.PersonaID
	}
	return ids
}

// =============================================================================
// Tests
// =============================================================================

func TestGenerate_AllPersonasSucceed(t *testing.T) {
	fake := newFakeLLM()
	g, metrics := newTestGenerator(t, fake, nil)

	r, err := g.Generate(context.Background(), launchContext("tier-1"))
	require.NoError(t, err)

	assert.Equal(t, datatypes.StatusDraft, r.Status)
	assert.Equal(t, fixedNow, r.GeneratedAt)
	assert.Equal(t, "One balm, every finish", r.ProductSummary.KeyDifferentiator)
	assert.Equal(t, []string{"Your face, but rested"}, r.GeneralAudienceInsights.UniversalHooks)
	assert.Equal(t, []string{
		"dedicated-educator",
		"ageless-matriarch",
		"high-powered-executive",
		"wellness-healthcare-practitioner",
		"busy-suburban-supermom",
		"creative-entrepreneur",
	}, insightIDs(r))
	assert.Equal(t, 12, r.RecommendedTotalConcepts)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.ResearchTotal.WithLabelValues("complete")))
}

func TestGenerate_CatalogOverridesIdentity(t *testing.T) {
	g, _ := newTestGenerator(t, newFakeLLM(), nil)

	r, err := g.Generate(context.Background(), launchContext("tier-2"))
	require.NoError(t, err)

	first := r.PersonaInsights[0]
	assert.Equal(t, "dedicated-educator", first.PersonaID)
	assert.Equal(t, 22.0, first.CustomerBasePercentage)
	assert.NotEmpty(t, first.PersonaName)
}

func TestGenerate_PartialPersonaFailure(t *testing.T) {
	fake := newFakeLLM()
	fake.failing["ageless-matriarch"] = true
	fake.badJSON["creative-entrepreneur"] = true
	g, metrics := newTestGenerator(t, fake, nil)

	r, err := g.Generate(context.Background(), launchContext("tier-1"))
	require.NoError(t, err)

	assert.Equal(t, []string{
		"dedicated-educator",
		"high-powered-executive",
		"wellness-healthcare-practitioner",
		"busy-suburban-supermom",
	}, insightIDs(r))
	assert.Equal(t, 8, r.RecommendedTotalConcepts)

	// Personas retry up to the policy limit.
	assert.Equal(t, 3, fake.callsFor("ageless-matriarch"))
	assert.Equal(t, 3, fake.callsFor("creative-entrepreneur"))
	assert.Equal(t, 1, fake.callsFor("dedicated-educator"))

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.ResearchTotal.WithLabelValues("partial")))
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.DroppedTasksTotal.WithLabelValues("persona-insight", "failed")))
	assert.Equal(t, 4.0, testutil.ToFloat64(metrics.RetriesTotal.WithLabelValues("persona-insight")))
}

func TestGenerate_BlankPersonaFieldsAreRetried(t *testing.T) {
	fake := newFakeLLM()
	fake.blank["dedicated-educator"] = 1
	fake.blank["ageless-matriarch"] = 5
	g, metrics := newTestGenerator(t, fake, nil)

	r, err := g.Generate(context.Background(), launchContext("tier-1"))
	require.NoError(t, err)

	// One blank reply, then a good one.
	assert.Equal(t, 2, fake.callsFor("dedicated-educator"))
	require.NotEmpty(t, r.PersonaInsights)
	assert.Equal(t, "dedicated-educator", r.PersonaInsights[0].PersonaID)
	assert.Equal(t, "Five minutes before first bell", r.PersonaInsights[0].MessagingAngles[0].Angle)

	// Blank on every attempt: dropped after the policy limit.
	assert.Equal(t, 3, fake.callsFor("ageless-matriarch"))
	assert.NotContains(t, insightIDs(r), "ageless-matriarch")
	assert.Len(t, r.PersonaInsights, 5)

	assert.Equal(t, 3.0, testutil.ToFloat64(metrics.RetriesTotal.WithLabelValues("persona-insight")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.DroppedTasksTotal.WithLabelValues("persona-insight", "failed")))
}

func TestGenerate_BlankSummaryFieldFailsBatch(t *testing.T) {
	fake := newFakeLLM()
	fake.blank["summary"] = 1
	g, _ := newTestGenerator(t, fake, nil)

	_, err := g.Generate(context.Background(), launchContext("tier-1"))

	var bf *BatchFailure
	require.ErrorAs(t, err, &bf)
	assert.Equal(t, "product-summary", bf.Task)
	var verr *datatypes.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "primaryBenefit (notblank)")
	assert.Equal(t, 1, fake.callsFor("summary"))
}

func TestGenerate_OrderIndependentOfCompletion(t *testing.T) {
	fake := newFakeLLM()
	fake.delay["dedicated-educator"] = 30 * time.Millisecond
	fake.delay["ageless-matriarch"] = 15 * time.Millisecond
	g, _ := newTestGenerator(t, fake, nil)

	r, err := g.Generate(context.Background(), launchContext("tier-1"))
	require.NoError(t, err)

	require.Len(t, r.PersonaInsights, 6)
	assert.Equal(t, "dedicated-educator", r.PersonaInsights[0].PersonaID)
	assert.Equal(t, "ageless-matriarch", r.PersonaInsights[1].PersonaID)
}

func TestGenerate_TierZeroMakesNoCalls(t *testing.T) {
	fake := newFakeLLM()
	g, metrics := newTestGenerator(t, fake, nil)

	r, err := g.Generate(context.Background(), launchContext("tier-4"))
	require.NoError(t, err)

	assert.Zero(t, fake.total())
	assert.Equal(t, "N/A - Tier 4 launch", r.ProductSummary.KeyDifferentiator)
	assert.Equal(t, "N/A", r.ProductSummary.PrimaryBenefit)
	assert.Empty(t, r.PersonaInsights)
	assert.NotNil(t, r.PersonaInsights)
	assert.Empty(t, r.GeneralAudienceInsights.UniversalHooks)
	assert.Zero(t, r.RecommendedTotalConcepts)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.ResearchTotal.WithLabelValues("tier_zero")))
}

func TestGenerate_UnknownTier(t *testing.T) {
	fake := newFakeLLM()
	g, _ := newTestGenerator(t, fake, nil)

	_, err := g.Generate(context.Background(), launchContext("tier-9"))

	var verr *datatypes.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "tier")
	assert.Zero(t, fake.total())
}

func TestGenerate_SummaryFailureFailsBatchWithoutRetry(t *testing.T) {
	fake := newFakeLLM()
	fake.failing["summary"] = true
	g, metrics := newTestGenerator(t, fake, nil)

	_, err := g.Generate(context.Background(), launchContext("tier-1"))

	var bf *BatchFailure
	require.ErrorAs(t, err, &bf)
	assert.Equal(t, "product-summary", bf.Task)
	var pf *resilience.ProviderCallFailure
	assert.ErrorAs(t, err, &pf)
	assert.Equal(t, 1, fake.callsFor("summary"))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.ResearchTotal.WithLabelValues("failed")))
}

func TestGenerate_GeneralAudienceDecodeFailureFailsBatch(t *testing.T) {
	fake := newFakeLLM()
	fake.badJSON["general"] = true
	g, _ := newTestGenerator(t, fake, nil)

	_, err := g.Generate(context.Background(), launchContext("tier-3"))

	var bf *BatchFailure
	require.ErrorAs(t, err, &bf)
	assert.Equal(t, "general-audience", bf.Task)
	assert.ErrorIs(t, err, resilience.ErrNoJSONObject)
	assert.Equal(t, 1, fake.callsFor("general"))
}

func TestGenerate_MissingDocumentSkipsPersona(t *testing.T) {
	fake := newFakeLLM()
	cat, err := catalog.Default()
	require.NoError(t, err)
	docs := allDocs(t, cat)
	docs["busy-suburban-supermom"] = "   \n"
	delete(docs, "high-powered-executive")
	g, metrics := newTestGenerator(t, fake, docs)

	r, err := g.Generate(context.Background(), launchContext("tier-1"))
	require.NoError(t, err)

	assert.Len(t, r.PersonaInsights, 4)
	assert.Zero(t, fake.callsFor("busy-suburban-supermom"))
	assert.Zero(t, fake.callsFor("high-powered-executive"))
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.DroppedTasksTotal.WithLabelValues("persona-insight", "skipped")))
}

func TestGenerate_RefinementNotesCarried(t *testing.T) {
	g, _ := newTestGenerator(t, newFakeLLM(), nil)
	pctx := launchContext("tier-2")
	pctx.RefinementNotes = "  lean into the teacher angle  "

	r, err := g.Generate(context.Background(), pctx)
	require.NoError(t, err)
	assert.Equal(t, "lean into the teacher angle", r.RefinementNotes)
}

func TestGenerate_ContextCancelled(t *testing.T) {
	g, _ := newTestGenerator(t, newFakeLLM(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := g.Generate(ctx, launchContext("tier-1"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestProviderCall_PermanentOnClientError(t *testing.T) {
	client := clientFunc(func(context.Context, string, llm.GenerationParams) (string, error) {
		return "", &llm.StatusError{StatusCode: 401, Body: "invalid x-api-key"}
	})
	p := &Provider{Client: client, Policy: noSleepPolicy()}
	calls := 0

	_, err := resilience.Invoke(context.Background(), p.RetryPolicy("persona-insight"),
		func(ctx context.Context, _ int) (string, error) {
			calls++
			return p.Call(ctx, "persona-insight", "prompt", 10)
		})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.True(t, resilience.IsPermanent(err))
}

func TestProviderCall_RetriesRateLimit(t *testing.T) {
	client := clientFunc(func(context.Context, string, llm.GenerationParams) (string, error) {
		return "", &llm.StatusError{StatusCode: 429, Body: "rate limited"}
	})
	p := &Provider{Client: client, Policy: noSleepPolicy()}
	calls := 0

	_, err := resilience.Invoke(context.Background(), p.RetryPolicy("persona-insight"),
		func(ctx context.Context, _ int) (string, error) {
			calls++
			return p.Call(ctx, "persona-insight", "prompt", 10)
		})

	require.Error(t, err)
	assert.Equal(t, 3, calls)
}

type clientFunc func(context.Context, string, llm.GenerationParams) (string, error)

func (f clientFunc) Generate(ctx context.Context, prompt string, params llm.GenerationParams) (string, error) {
	return f(ctx, prompt, params)
}

// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package llm

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"
)

var llmTracer = otel.Tracer("copystudio.llm")

// LimitedClient shares one token bucket across every concurrent caller so a
// research fan-out cannot exceed the provider's request rate.
//
// # Thread Safety
//
// Safe for concurrent use.
type LimitedClient struct {
	next    LLMClient
	limiter *rate.Limiter
}

// NewLimitedClient wraps next with a limiter allowing rps requests per second
// and bursts of burst. rps <= 0 disables limiting.
func NewLimitedClient(next LLMClient, rps float64, burst int) *LimitedClient {
	limit := rate.Limit(rps)
	if rps <= 0 {
		limit = rate.Inf
	}
	if burst < 1 {
		burst = 1
	}
	return &LimitedClient{next: next, limiter: rate.NewLimiter(limit, burst)}
}

// Generate waits for a token, then delegates. Waiting honors ctx.
func (c *LimitedClient) Generate(ctx context.Context, prompt string, params GenerationParams) (string, error) {
	ctx, span := llmTracer.Start(ctx, "llm.Generate",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.Int("llm.prompt_chars", len(prompt))))
	defer span.End()

	if err := c.limiter.Wait(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "rate limiter wait failed")
		return "", fmt.Errorf("rate limiter: %w", err)
	}

	text, err := c.next.Generate(ctx, prompt, params)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}
	span.SetAttributes(attribute.Int("llm.response_chars", len(text)))
	return text, nil
}

var _ LLMClient = (*LimitedClient)(nil)

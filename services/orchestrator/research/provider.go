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
	"log/slog"
	"time"

	"github.com/AleutianAI/CopyStudio/services/llm"
	"github.com/AleutianAI/CopyStudio/services/orchestrator/observability"
	"github.com/AleutianAI/CopyStudio/services/orchestrator/resilience"
)

// Output token budgets per task kind.
const (
	MaxTokensPersonaInsight  = 2500
	MaxTokensProductSummary  = 500
	MaxTokensGeneralAudience = 800
	MaxTokensChannelStrategy = 2000
	MaxTokensConcepts        = 4000
)

// Provider issues single provider calls on behalf of the generators and
// records their metrics. Safe for concurrent use.
type Provider struct {
	Client  llm.LLMClient
	Metrics *observability.GenerationMetrics
	Logger  *slog.Logger
	Policy  resilience.Policy
}

// Call sends one prompt. Any provider error comes back as a
// *resilience.ProviderCallFailure for the task.
func (p *Provider) Call(ctx context.Context, task, prompt string, maxTokens int) (string, error) {
	text, err := p.Client.Generate(ctx, prompt, llm.GenerationParams{}.WithMaxTokens(maxTokens))
	p.Metrics.RecordLLMCall(task, err == nil)
	if err != nil {
		var status *llm.StatusError
		if errors.As(err, &status) && status.StatusCode >= 400 && status.StatusCode < 500 && status.StatusCode != 429 {
			// Bad credential or request; another attempt gets the same answer.
			return "", resilience.Permanent(&resilience.ProviderCallFailure{Task: task, Err: err})
		}
		return "", &resilience.ProviderCallFailure{Task: task, Err: err}
	}
	return text, nil
}

// RetryPolicy returns the configured policy with retry logging and metrics
// attached for one unit of work.
func (p *Provider) RetryPolicy(task string, attrs ...any) resilience.Policy {
	policy := p.Policy
	policy.OnRetry = func(attempt int, err error, delay time.Duration) {
		p.Metrics.RecordRetry(task)
		p.logger().Warn("generation attempt failed, retrying",
			append([]any{
				"task", task,
				"attempt", attempt,
				"max_attempts", policy.MaxAttempts,
				"delay_ms", delay.Milliseconds(),
				"error", err,
			}, attrs...)...)
	}
	return policy
}

// SinglePolicy is RetryPolicy limited to one attempt.
func (p *Provider) SinglePolicy(task string, attrs ...any) resilience.Policy {
	policy := p.RetryPolicy(task, attrs...)
	policy.MaxAttempts = 1
	return policy
}

func (p *Provider) logger() *slog.Logger {
	if p.Logger == nil {
		return slog.Default()
	}
	return p.Logger
}

// BatchFailure is returned when a task the whole result depends on fails.
type BatchFailure struct {
	Task string
	Err  error
}

func (e *BatchFailure) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Task, e.Err)
}

func (e *BatchFailure) Unwrap() error { return e.Err }

// timed records fn's duration as one unit of work for task.
func timed[T any](m *observability.GenerationMetrics, task string, fn func() (T, error)) (T, error) {
	start := time.Now()
	v, err := fn()
	m.RecordTask(task, time.Since(start).Seconds(), err == nil)
	return v, err
}

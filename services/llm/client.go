// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package llm holds the text-completion clients the generators call.
//
// Every backend is reduced to one operation: send a single user prompt and
// return the model's free-form text. Parsing that text into structured
// results is the caller's job.
package llm

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// GenerationParams are the per-call knobs a generator may set.
// Nil fields fall back to the backend's default.
type GenerationParams struct {
	Temperature *float32 `json:"temperature"`
	TopP        *float32 `json:"top_p"`
	MaxTokens   *int     `json:"max_tokens"`
	Stop        []string `json:"stop"`
}

// WithMaxTokens returns params with MaxTokens set to n.
func (p GenerationParams) WithMaxTokens(n int) GenerationParams {
	p.MaxTokens = &n
	return p
}

// LLMClient is implemented by every provider backend.
type LLMClient interface {
	Generate(ctx context.Context, prompt string, params GenerationParams) (string, error)
}

// Backend names accepted by NewClient.
const (
	BackendAnthropic = "anthropic"
	BackendOpenAI    = "openai"
	BackendGemini    = "gemini"
)

// ErrEmptyResponse is returned when the provider answered without any text.
var ErrEmptyResponse = errors.New("llm returned no text")

// ClientConfig is everything a backend needs. The credential is passed in
// explicitly; backends never read the environment.
type ClientConfig struct {
	Backend string
	APIKey  string
	Model   string
	Timeout time.Duration

	// BaseURL overrides the provider endpoint. Empty uses the default.
	BaseURL string
}

// NewClient builds the backend named by cfg.Backend.
//
// # Inputs
//
//   - ctx: Used only by backends whose constructor dials (gemini).
//   - cfg: Backend, credential and model.
//
// # Outputs
//
//   - LLMClient: Ready to use.
//   - error: Unknown backend or constructor failure.
func NewClient(ctx context.Context, cfg ClientConfig) (LLMClient, error) {
	switch cfg.Backend {
	case BackendAnthropic, "claude", "":
		return NewAnthropicClient(cfg)
	case BackendOpenAI:
		return NewOpenAIClient(cfg)
	case BackendGemini:
		return NewGeminiClient(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown llm backend %q", cfg.Backend)
	}
}

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
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAnthropicTestServer(t *testing.T, status int, body string, captured *anthropicRequest) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.Header.Get("x-api-key"))
		assert.Equal(t, anthropicAPIVersion, r.Header.Get("anthropic-version"))
		if captured != nil {
			require.NoError(t, json.NewDecoder(r.Body).Decode(captured))
		}
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
}

func TestAnthropicClient_Generate_ConcatenatesTextBlocks(t *testing.T) {
	var captured anthropicRequest
	srv := newAnthropicTestServer(t, http.StatusOK,
		`{"id":"msg_1","content":[{"type":"text","text":"{\"a\":"},{"type":"text","text":"1}"}]}`, &captured)
	defer srv.Close()

	client, err := NewAnthropicClient(ClientConfig{APIKey: "test-key", BaseURL: srv.URL})
	require.NoError(t, err)

	text, err := client.Generate(context.Background(), "hello", GenerationParams{}.WithMaxTokens(500))
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, text)

	assert.Equal(t, anthropicDefaultModel, captured.Model)
	assert.Equal(t, 500, captured.MaxTokens)
	require.Len(t, captured.Messages, 1)
	assert.Equal(t, "user", captured.Messages[0].Role)
	assert.Equal(t, "hello", captured.Messages[0].Content)
}

func TestAnthropicClient_Generate_NonOKStatus(t *testing.T) {
	srv := newAnthropicTestServer(t, http.StatusTooManyRequests, `{"error":"slow down"}`, nil)
	defer srv.Close()

	client, err := NewAnthropicClient(ClientConfig{APIKey: "test-key", BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = client.Generate(context.Background(), "hello", GenerationParams{})
	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusTooManyRequests, statusErr.StatusCode)
}

func TestAnthropicClient_Generate_NoTextBlocks(t *testing.T) {
	srv := newAnthropicTestServer(t, http.StatusOK, `{"id":"msg_1","content":[]}`, nil)
	defer srv.Close()

	client, err := NewAnthropicClient(ClientConfig{APIKey: "test-key", BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = client.Generate(context.Background(), "hello", GenerationParams{})
	assert.True(t, errors.Is(err, ErrEmptyResponse))
}

func TestNewAnthropicClient_RequiresKey(t *testing.T) {
	_, err := NewAnthropicClient(ClientConfig{APIKey: "  "})
	assert.Error(t, err)
}

func TestNewClient_UnknownBackend(t *testing.T) {
	_, err := NewClient(context.Background(), ClientConfig{Backend: "llama", APIKey: "k"})
	assert.Error(t, err)
}

type countingClient struct {
	calls atomic.Int32
}

func (c *countingClient) Generate(ctx context.Context, prompt string, params GenerationParams) (string, error) {
	c.calls.Add(1)
	return "ok", nil
}

func TestLimitedClient_DelegatesAndHonorsContext(t *testing.T) {
	inner := &countingClient{}
	limited := NewLimitedClient(inner, 0.001, 1)

	text, err := limited.Generate(context.Background(), "p", GenerationParams{})
	require.NoError(t, err)
	assert.Equal(t, "ok", text)

	// The single burst token is spent; the next wait cannot finish in time.
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = limited.Generate(ctx, "p", GenerationParams{})
	assert.Error(t, err)
	assert.Equal(t, int32(1), inner.calls.Load())
}

func TestLimitedClient_UnlimitedWhenRateNotPositive(t *testing.T) {
	inner := &countingClient{}
	limited := NewLimitedClient(inner, 0, 0)

	for i := 0; i < 5; i++ {
		_, err := limited.Generate(context.Background(), "p", GenerationParams{})
		require.NoError(t, err)
	}
	assert.Equal(t, int32(5), inner.calls.Load())
}

// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package middleware

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Test Setup
// =============================================================================

func init() {
	gin.SetMode(gin.TestMode)
}

func newRouter(mw ...gin.HandlerFunc) *gin.Engine {
	router := gin.New()
	router.Use(mw...)
	router.GET("/v1/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"request_id": GetRequestID(c)})
	})
	router.GET("/v1/fail", func(c *gin.Context) {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "boom"})
	})
	return router
}

func get(router *gin.Engine, path string, header map[string]string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	router.ServeHTTP(w, req)
	return w
}

// =============================================================================
// extractBearerToken Tests
// =============================================================================

func TestExtractBearerToken_ValidToken(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest("GET", "/", nil)
	c.Request.Header.Set("Authorization", "bearer  abc123 ")

	assert.Equal(t, "abc123", extractBearerToken(c))
}

func TestExtractBearerToken_InvalidFormat(t *testing.T) {
	tests := []struct {
		name   string
		header string
	}{
		{"missing", ""},
		{"no bearer prefix", "abc123"},
		{"basic auth", "Basic abc123"},
		{"empty bearer", "Bearer "},
		{"only bearer", "Bearer"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := gin.CreateTestContext(httptest.NewRecorder())
			c.Request = httptest.NewRequest("GET", "/", nil)
			if tt.header != "" {
				c.Request.Header.Set("Authorization", tt.header)
			}
			assert.Empty(t, extractBearerToken(c))
		})
	}
}

// =============================================================================
// TokenAuth Tests
// =============================================================================

func TestTokenAuth_DisabledWithoutToken(t *testing.T) {
	w := get(newRouter(TokenAuth("")), "/v1/ping", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestTokenAuth_RequiresMatchingToken(t *testing.T) {
	router := newRouter(TokenAuth("s3cret"))

	assert.Equal(t, http.StatusUnauthorized, get(router, "/v1/ping", nil).Code)
	assert.Equal(t, http.StatusUnauthorized,
		get(router, "/v1/ping", map[string]string{"Authorization": "Bearer wrong"}).Code)
	assert.Equal(t, http.StatusOK,
		get(router, "/v1/ping", map[string]string{"Authorization": "Bearer s3cret"}).Code)
}

// =============================================================================
// Request ID and Logging Tests
// =============================================================================

func TestRequestID_GeneratesAndEchoes(t *testing.T) {
	router := newRouter(RequestID())

	w := get(router, "/v1/ping", nil)
	generated := w.Header().Get(RequestIDHeader)
	assert.Len(t, generated, 36)
	assert.Contains(t, w.Body.String(), generated)

	w = get(router, "/v1/ping", map[string]string{RequestIDHeader: "req-42"})
	assert.Equal(t, "req-42", w.Header().Get(RequestIDHeader))
}

func TestRequestLogger_LevelByStatus(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	router := newRouter(RequestID(), RequestLogger(logger))

	get(router, "/v1/ping", map[string]string{RequestIDHeader: "req-1"})
	require.Contains(t, buf.String(), `"level":"INFO"`)
	assert.Contains(t, buf.String(), `"route":"/v1/ping"`)
	assert.Contains(t, buf.String(), `"request_id":"req-1"`)

	buf.Reset()
	get(router, "/v1/fail", nil)
	assert.Contains(t, buf.String(), `"level":"ERROR"`)
	assert.Contains(t, buf.String(), `"status":500`)

	buf.Reset()
	get(router, "/nowhere", nil)
	assert.Contains(t, buf.String(), `"level":"WARN"`)
	assert.Contains(t, buf.String(), `"route":"unmatched"`)
}

// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package middleware provides HTTP middleware for the copy studio service.
//
// # Request Flow
//
//	Request
//	   │
//	   ▼
//	RequestID ──► sets X-Request-ID (generated when absent)
//	   │
//	   ▼
//	RequestLogger ──► one structured line per request
//	   │
//	   ▼
//	TokenAuth (/v1 only) ──► "Authorization: Bearer <token>"
//	   │
//	   ▼
//	Handler
//
// # Local Behavior
//
// With no access token configured TokenAuth lets every request through, so
// a single user on localhost needs no setup.
package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// =============================================================================
// Auth Middleware
// =============================================================================

// TokenAuth creates a Gin middleware that requires a shared bearer token.
//
// # Description
//
// Compares the bearer token from the Authorization header against token in
// constant time. Requests without a matching token are aborted with 401.
//
// # Inputs
//
//   - token: Shared access token. Empty disables the check.
//
// # Outputs
//
//   - gin.HandlerFunc: Middleware for a route group.
//
// # Examples
//
//	v1 := router.Group("/v1")
//	v1.Use(middleware.TokenAuth(cfg.Server.AccessToken))
//
// # Thread Safety
//
// Thread-safe. The returned middleware can be used concurrently.
func TokenAuth(token string) gin.HandlerFunc {
	if token == "" {
		return func(c *gin.Context) { c.Next() }
	}
	want := []byte(token)
	return func(c *gin.Context) {
		got := extractBearerToken(c)
		if got == "" || subtle.ConstantTimeCompare([]byte(got), want) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "unauthorized",
			})
			return
		}
		c.Next()
	}
}

// =============================================================================
// Helper Functions
// =============================================================================

// extractBearerToken extracts the token from the Authorization header.
//
// # Description
//
// Parses the Authorization header expecting format: "Bearer <token>"
// Returns empty string if header is missing or malformed.
// The "Bearer" prefix is case-insensitive per RFC 7235.
//
// # Examples
//
//	// Header: "Authorization: bearer ABC123"
//	token := extractBearerToken(c)
//	// token == "ABC123"
func extractBearerToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return ""
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}

	return strings.TrimSpace(parts[1])
}

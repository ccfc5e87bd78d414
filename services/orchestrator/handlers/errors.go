// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package handlers implements the copy studio HTTP API.
//
// Every handler is a constructor returning a gin.HandlerFunc over its
// dependencies. Failures are answered as {"error": "..."} with the status
// chosen by statusFor, so error classification lives in one place.
package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/CopyStudio/services/orchestrator/config"
	"github.com/AleutianAI/CopyStudio/services/orchestrator/datatypes"
	"github.com/AleutianAI/CopyStudio/services/orchestrator/launch"
	"github.com/AleutianAI/CopyStudio/services/orchestrator/research"
	"github.com/AleutianAI/CopyStudio/services/orchestrator/storage"
)

// statusFor maps a domain error to its HTTP status.
//
//	ValidationError, ErrOutsideRoot           400
//	ErrNotFound                               404
//	ErrPhaseLocked                            409
//	ErrMissingCredential, generation missing  503
//	BatchFailure and anything else            500
func statusFor(err error) int {
	var verr *datatypes.ValidationError
	switch {
	case errors.As(err, &verr), errors.Is(err, storage.ErrOutsideRoot):
		return http.StatusBadRequest
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, launch.ErrPhaseLocked):
		return http.StatusConflict
	case errors.Is(err, config.ErrMissingCredential), errors.Is(err, launch.ErrGenerationUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes {"error": err} with the mapped status. Server-side
// failures are logged; client errors are not.
func respondError(c *gin.Context, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		attrs := []any{"path", c.FullPath(), "status", status, "error", err}
		var bf *research.BatchFailure
		if errors.As(err, &bf) {
			attrs = append(attrs, "task", bf.Task)
		}
		slog.Error("request failed", attrs...)
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

// bindJSON decodes the body into dst, answering 400 on malformed JSON.
func bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return false
	}
	return true
}

// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/CopyStudio/services/orchestrator/config"
	"github.com/AleutianAI/CopyStudio/services/orchestrator/datatypes"
	"github.com/AleutianAI/CopyStudio/services/orchestrator/launch"
	"github.com/AleutianAI/CopyStudio/services/orchestrator/prompts"
)

// HandleGenerateResearch runs creative research for a launch context that
// is not (yet) stored.
//
// # Description
//
// POST /v1/research. Validates the body, then fans out the summary,
// general audience and persona tasks. A partial result (some personas
// dropped) is still a 200; a failed summary or general task is a 500.
//
// # Inputs
//
//   - gen: Research generator. nil when no credential is configured, in
//     which case every request is answered 503.
//
// # Outputs
//
//   - gin.HandlerFunc answering {"research": CreativeResearch}.
func HandleGenerateResearch(gen launch.ResearchGenerator) gin.HandlerFunc {
	return func(c *gin.Context) {
		if gen == nil {
			respondError(c, config.ErrMissingCredential)
			return
		}
		var req datatypes.ResearchRequest
		if !bindJSON(c, &req) {
			return
		}
		if err := req.Validate(); err != nil {
			respondError(c, err)
			return
		}

		slog.Info("generating creative research", "tier", req.Tier, "product", req.ProductName)
		res, err := gen.Generate(c.Request.Context(), prompts.Context{
			ProductName:     req.ProductName,
			Tier:            req.Tier,
			PMC:             req.PMC,
			Brief:           req.CreativeBrief,
			RefinementNotes: req.RefinementNotes,
		})
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"research": res})
	}
}

// HandleGenerateStrategy generates channel strategies for a launch context.
//
// POST /v1/strategy. When creativeResearch is supplied and the creative
// channel is requested, the creative entry carries concepts built from
// that research. Channels that fail are listed in failedChannels; the
// request fails only when every channel does.
func HandleGenerateStrategy(gen launch.StrategyGenerator) gin.HandlerFunc {
	return func(c *gin.Context) {
		if gen == nil {
			respondError(c, config.ErrMissingCredential)
			return
		}
		var req datatypes.StrategyRequest
		if !bindJSON(c, &req) {
			return
		}
		if err := req.Validate(); err != nil {
			respondError(c, err)
			return
		}

		slog.Info("generating channel strategies",
			"launch_id", req.LaunchID, "tier", req.Tier, "channels", len(req.Channels),
			"with_research", req.CreativeResearch != nil)
		res, err := gen.Generate(c.Request.Context(), prompts.Context{
			ProductName: req.ProductName,
			Tier:        req.Tier,
			PMC:         req.PMC,
			Brief:       req.CreativeBrief,
		}, req.Channels, req.CreativeResearch)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, res)
	}
}

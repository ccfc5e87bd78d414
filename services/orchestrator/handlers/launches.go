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
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/CopyStudio/services/orchestrator/datatypes"
	"github.com/AleutianAI/CopyStudio/services/orchestrator/launch"
)

// Launch endpoints all answer {"launch": GTMLaunch} except list, delete and
// progress. Locked transitions are 409.

// ListLaunches answers GET /v1/launches, newest first.
func ListLaunches(agg *launch.Aggregator) gin.HandlerFunc {
	return func(c *gin.Context) {
		launches, err := agg.List(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"launches": launches})
	}
}

// CreateLaunch answers POST /v1/launches with 201.
func CreateLaunch(agg *launch.Aggregator) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req datatypes.CreateLaunchRequest
		if !bindJSON(c, &req) {
			return
		}
		l, err := agg.Create(c.Request.Context(), &req)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"launch": l})
	}
}

// GetLaunch answers GET /v1/launches/:id.
func GetLaunch(agg *launch.Aggregator) gin.HandlerFunc {
	return func(c *gin.Context) {
		l, err := agg.Get(c.Request.Context(), c.Param("id"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"launch": l})
	}
}

// SaveLaunch answers PUT /v1/launches/:id. Each top-level field in the body
// replaces the stored field.
func SaveLaunch(agg *launch.Aggregator) gin.HandlerFunc {
	return func(c *gin.Context) {
		var patch map[string]json.RawMessage
		if !bindJSON(c, &patch) {
			return
		}
		l, err := agg.Save(c.Request.Context(), c.Param("id"), patch)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"launch": l})
	}
}

// DeleteLaunch answers DELETE /v1/launches/:id.
func DeleteLaunch(agg *launch.Aggregator) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := agg.Delete(c.Request.Context(), c.Param("id")); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true})
	}
}

// GenerateLaunchStrategies answers POST /v1/launches/:id/strategies with the
// updated launch and any channels that failed.
func GenerateLaunchStrategies(agg *launch.Aggregator) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req datatypes.GenerateStrategiesRequest
		if !bindJSON(c, &req) {
			return
		}
		if err := req.Validate(); err != nil {
			respondError(c, err)
			return
		}
		l, res, err := agg.GenerateStrategies(c.Request.Context(), c.Param("id"), req.Channels)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"launch": l, "failedChannels": res.Failed})
	}
}

// GenerateLaunchResearch answers POST /v1/launches/:id/research. The body is
// optional.
func GenerateLaunchResearch(agg *launch.Aggregator) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req datatypes.RegenerateResearchRequest
		if c.Request.ContentLength != 0 && !bindJSON(c, &req) {
			return
		}
		if err := req.Validate(); err != nil {
			respondError(c, err)
			return
		}
		l, err := agg.GenerateResearch(c.Request.Context(), c.Param("id"), req.RefinementNotes)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"launch": l})
	}
}

// transition adapts an id-only aggregator operation to a handler.
func transition(op func(c *gin.Context, id string) (*datatypes.GTMLaunch, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		l, err := op(c, c.Param("id"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"launch": l})
	}
}

// ApproveLaunchResearch answers POST /v1/launches/:id/research/approve.
func ApproveLaunchResearch(agg *launch.Aggregator) gin.HandlerFunc {
	return transition(func(c *gin.Context, id string) (*datatypes.GTMLaunch, error) {
		return agg.ApproveResearch(c.Request.Context(), id)
	})
}

// GenerateLaunchConcepts answers POST /v1/launches/:id/concepts.
func GenerateLaunchConcepts(agg *launch.Aggregator) gin.HandlerFunc {
	return transition(func(c *gin.Context, id string) (*datatypes.GTMLaunch, error) {
		return agg.ApproveStrategyAndGenerateConcepts(c.Request.Context(), id)
	})
}

// ApproveLaunchStrategies answers POST /v1/launches/:id/approve.
func ApproveLaunchStrategies(agg *launch.Aggregator) gin.HandlerFunc {
	return transition(func(c *gin.Context, id string) (*datatypes.GTMLaunch, error) {
		return agg.ApproveStrategies(c.Request.Context(), id)
	})
}

// CompleteLaunch answers POST /v1/launches/:id/complete.
func CompleteLaunch(agg *launch.Aggregator) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req datatypes.CompleteLaunchRequest
		if !bindJSON(c, &req) {
			return
		}
		if err := req.Validate(); err != nil {
			respondError(c, err)
			return
		}
		l, err := agg.Complete(c.Request.Context(), c.Param("id"), req.ChannelDeliverables)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"launch": l})
	}
}

// LaunchProgress answers GET /v1/launches/:id/progress with the creative
// phase view.
func LaunchProgress(agg *launch.Aggregator) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, err := agg.Progress(c.Request.Context(), c.Param("id"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, p)
	}
}

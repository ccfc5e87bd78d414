// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/AleutianAI/CopyStudio/services/orchestrator/handlers"
	"github.com/AleutianAI/CopyStudio/services/orchestrator/launch"
	"github.com/AleutianAI/CopyStudio/services/orchestrator/middleware"
)

// Dependencies are the components the routes are served from. Research and
// Strategies are nil when no provider credential is configured; their
// endpoints then answer 503 while everything else keeps working.
type Dependencies struct {
	Research   launch.ResearchGenerator
	Strategies launch.StrategyGenerator
	Launches   *launch.Aggregator
	Products   handlers.ProductCatalog
	Training   handlers.TrainingDocuments

	// AccessToken guards /v1 when set.
	AccessToken string

	// Gatherer serves /metrics. Defaults to the global registry.
	Gatherer prometheus.Gatherer
}

// SetupRoutes registers /health, /metrics and the /v1 API.
func SetupRoutes(router *gin.Engine, deps Dependencies) {
	gatherer := deps.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	router.GET("/health", handlers.HealthCheck(deps.Research != nil && deps.Strategies != nil))
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	// API version 1 group
	v1 := router.Group("/v1")
	v1.Use(middleware.TokenAuth(deps.AccessToken))
	{
		v1.POST("/research", handlers.HandleGenerateResearch(deps.Research))
		v1.POST("/strategy", handlers.HandleGenerateStrategy(deps.Strategies))

		v1.GET("/products", handlers.ListProducts(deps.Products))
		v1.POST("/products", handlers.UpsertProduct(deps.Products))
		v1.DELETE("/products", handlers.DeleteProduct(deps.Products))

		v1.GET("/training-documents", handlers.GetTrainingDocuments(deps.Training))
		v1.POST("/training-documents", handlers.WriteTrainingDocument(deps.Training))

		launches := v1.Group("/launches")
		{
			launches.GET("", handlers.ListLaunches(deps.Launches))
			launches.POST("", handlers.CreateLaunch(deps.Launches))
			launches.GET("/:id", handlers.GetLaunch(deps.Launches))
			launches.PUT("/:id", handlers.SaveLaunch(deps.Launches))
			launches.DELETE("/:id", handlers.DeleteLaunch(deps.Launches))
			launches.GET("/:id/progress", handlers.LaunchProgress(deps.Launches))
			launches.POST("/:id/strategies", handlers.GenerateLaunchStrategies(deps.Launches))
			launches.POST("/:id/research", handlers.GenerateLaunchResearch(deps.Launches))
			launches.POST("/:id/research/approve", handlers.ApproveLaunchResearch(deps.Launches))
			launches.POST("/:id/concepts", handlers.GenerateLaunchConcepts(deps.Launches))
			launches.POST("/:id/approve", handlers.ApproveLaunchStrategies(deps.Launches))
			launches.POST("/:id/complete", handlers.CompleteLaunch(deps.Launches))
		}
	}
}

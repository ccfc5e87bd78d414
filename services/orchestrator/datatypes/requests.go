// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package datatypes

import "encoding/json"

// ResearchRequest is the body of POST /v1/research.
type ResearchRequest struct {
	Tier            string         `json:"tier" validate:"notblank"`
	PMC             *PMCDocument   `json:"pmc" validate:"required"`
	CreativeBrief   *CreativeBrief `json:"creativeBrief" validate:"required"`
	ProductName     string         `json:"productName"`
	RefinementNotes string         `json:"refinementNotes,omitempty" validate:"max=4000"`
}

// Validate rejects requests missing tier, pmc or creativeBrief.
func (r *ResearchRequest) Validate() error { return validateStruct(r) }

// StrategyRequest is the body of POST /v1/strategy.
type StrategyRequest struct {
	LaunchID         string            `json:"launchId"`
	Channels         []ChannelID       `json:"channels" validate:"required,min=1,dive,channel"`
	Tier             string            `json:"tier" validate:"notblank"`
	PMC              *PMCDocument      `json:"pmc" validate:"required"`
	CreativeBrief    *CreativeBrief    `json:"creativeBrief" validate:"required"`
	ProductName      string            `json:"productName"`
	CreativeResearch *CreativeResearch `json:"creativeResearch,omitempty" validate:"-"`
}

// Validate migrates legacy channel ids, then rejects incomplete requests
// and unknown channel ids.
func (r *StrategyRequest) Validate() error {
	r.Channels = MigrateChannels(r.Channels)
	return validateStruct(r)
}

// CreateLaunchRequest is the body of POST /v1/launches.
type CreateLaunchRequest struct {
	Name             string         `json:"name" validate:"notblank"`
	Product          string         `json:"product"`
	Tier             string         `json:"tier" validate:"notblank"`
	PMC              *PMCDocument   `json:"pmc,omitempty"`
	CreativeBrief    *CreativeBrief `json:"creativeBrief,omitempty"`
	SelectedChannels []ChannelID    `json:"selectedChannels,omitempty"`
}

// Validate rejects launches without a name or tier.
func (r *CreateLaunchRequest) Validate() error { return validateStruct(r) }

// GenerateStrategiesRequest is the body of POST /v1/launches/:id/strategies.
type GenerateStrategiesRequest struct {
	Channels []ChannelID `json:"channels" validate:"required,min=1,dive,channel"`
}

// Validate migrates legacy ids and rejects unknown ones.
func (r *GenerateStrategiesRequest) Validate() error {
	r.Channels = MigrateChannels(r.Channels)
	return validateStruct(r)
}

// RegenerateResearchRequest is the body of POST /v1/launches/:id/research.
type RegenerateResearchRequest struct {
	RefinementNotes string `json:"refinementNotes,omitempty" validate:"max=4000"`
}

// Validate bounds the refinement notes.
func (r *RegenerateResearchRequest) Validate() error { return validateStruct(r) }

// CompleteLaunchRequest is the body of POST /v1/launches/:id/complete.
type CompleteLaunchRequest struct {
	ChannelDeliverables map[string]json.RawMessage `json:"channelDeliverables" validate:"required"`
}

// Validate requires a deliverables map.
func (r *CompleteLaunchRequest) Validate() error { return validateStruct(r) }

// DeleteProductRequest is the body of DELETE /v1/products.
type DeleteProductRequest struct {
	ID string `json:"id" validate:"notblank"`
}

// Validate requires an id.
func (r *DeleteProductRequest) Validate() error { return validateStruct(r) }

// TrainingDocumentWrite is the body of POST /v1/training-documents.
type TrainingDocumentWrite struct {
	Path    string `json:"path" validate:"notblank"`
	Content string `json:"content"`
	Format  string `json:"format,omitempty" validate:"omitempty,oneof=markdown html"`
}

// Validate requires a path and a known format.
func (r *TrainingDocumentWrite) Validate() error { return validateStruct(r) }

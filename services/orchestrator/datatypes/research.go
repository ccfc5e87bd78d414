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

import "time"

// ReviewStatus is the approval state of a generated document.
type ReviewStatus string

const (
	StatusDraft    ReviewStatus = "draft"
	StatusApproved ReviewStatus = "approved"
)

// Hook formulas a messaging angle or concept may use.
const (
	HookProblemFirst  = "problem-first"
	HookIdentityFirst = "identity-first"
	HookContrarian    = "contrarian"
	HookDirectBenefit = "direct-benefit"
)

// =============================================================================
// Creative Research
// =============================================================================

// ProductSummary is the product-summary task output.
type ProductSummary struct {
	KeyDifferentiator string `json:"keyDifferentiator" validate:"notblank"`
	PrimaryBenefit    string `json:"primaryBenefit" validate:"notblank"`
	CategoryPosition  string `json:"categoryPosition" validate:"notblank"`
}

// Validate checks a decoded product summary.
func (s *ProductSummary) Validate() error { return validateStruct(s) }

// GeneralAudienceInsights is the general-audience task output.
type GeneralAudienceInsights struct {
	UniversalHooks    []string `json:"universalHooks" validate:"required,min=1,dive,notblank"`
	BroadAppealAngles []string `json:"broadAppealAngles" validate:"required,min=1,dive,notblank"`
}

// Validate checks a decoded general-audience result.
func (g *GeneralAudienceInsights) Validate() error { return validateStruct(g) }

// ProductFit describes how well the product serves one persona.
type ProductFit struct {
	RelevanceScore      string   `json:"relevanceScore" validate:"oneof=high medium low"`
	PrimaryJobsToBeDone []string `json:"primaryJobsToBeDone"`
	EmotionalBenefits   []string `json:"emotionalBenefits"`
	FunctionalBenefits  []string `json:"functionalBenefits"`
}

// MessagingAngle is one recommended angle for a persona.
type MessagingAngle struct {
	Angle       string `json:"angle" validate:"notblank"`
	HookFormula string `json:"hookFormula" validate:"oneof=problem-first identity-first contrarian direct-benefit"`
	WhyItWorks  string `json:"whyItWorks"`
}

// HookOpportunity is a candidate hook, optionally traced to a customer quote.
type HookOpportunity struct {
	Hook                  string `json:"hook" validate:"notblank"`
	VoiceOfCustomerSource string `json:"voiceOfCustomerSource,omitempty"`
}

// PersonaInsight is the persona-insight task output.
type PersonaInsight struct {
	PersonaID               string            `json:"personaId"`
	PersonaName             string            `json:"personaName"`
	CustomerBasePercentage  float64           `json:"customerBasePercentage" validate:"gte=0,lte=100"`
	ProductFit              ProductFit        `json:"productFit"`
	MessagingAngles         []MessagingAngle  `json:"messagingAngles" validate:"dive"`
	HookOpportunities       []HookOpportunity `json:"hookOpportunities" validate:"dive"`
	Objections              []string          `json:"objections"`
	RecommendedConceptCount int               `json:"recommendedConceptCount" validate:"gte=0"`
}

// Validate checks a decoded persona insight.
func (p *PersonaInsight) Validate() error { return validateStruct(p) }

// CreativeResearch is the aggregate research document for one launch.
type CreativeResearch struct {
	Status                   ReviewStatus            `json:"status"`
	GeneratedAt              time.Time               `json:"generatedAt"`
	ProductSummary           ProductSummary          `json:"productSummary"`
	PersonaInsights          []PersonaInsight        `json:"personaInsights"`
	GeneralAudienceInsights  GeneralAudienceInsights `json:"generalAudienceInsights"`
	RecommendedTotalConcepts int                     `json:"recommendedTotalConcepts"`
	RefinementNotes          string                  `json:"refinementNotes,omitempty"`
}

// SumRecommendedConcepts totals RecommendedConceptCount over the insights.
func SumRecommendedConcepts(insights []PersonaInsight) int {
	total := 0
	for _, in := range insights {
		total += in.RecommendedConceptCount
	}
	return total
}

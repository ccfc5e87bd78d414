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

import (
	"regexp"
	"strings"
)

// =============================================================================
// Product Catalog
// =============================================================================

// Product is one entry of the product catalog.
type Product struct {
	ID          string   `json:"id"`
	Name        string   `json:"name" validate:"notblank"`
	Category    string   `json:"category"`
	Price       string   `json:"price"`
	Description string   `json:"description"`
	KeyBenefits []string `json:"keyBenefits"`
	Shades      string   `json:"shades"`
	BestFor     string   `json:"bestFor"`

	LaunchDate      string   `json:"launchDate,omitempty"`
	LaunchTier      string   `json:"launchTier,omitempty"`
	Tagline         string   `json:"tagline,omitempty"`
	WhyWeLoveIt     string   `json:"whyWeLoveIt,omitempty"`
	HowItsDifferent string   `json:"howItsDifferent,omitempty"`
	HowToUse        string   `json:"howToUse,omitempty"`
	WhoItsFor       string   `json:"whoItsFor,omitempty"`
	KeyIngredients  string   `json:"keyIngredients,omitempty"`
	Finish          string   `json:"finish,omitempty"`
	Formula         string   `json:"formula,omitempty"`
	Application     string   `json:"application,omitempty"`
	Claims          []string `json:"claims,omitempty"`
	Weight          string   `json:"weight,omitempty"`
	Availability    []string `json:"availability,omitempty"`
}

// Validate checks the product has a usable name.
func (p *Product) Validate() error {
	return validateStruct(p)
}

var slugStrip = regexp.MustCompile(`[^a-z0-9-]`)

// ProductSlug derives a catalog id from a product name: lowercased, runs of
// whitespace become "-", anything outside [a-z0-9-] is dropped.
func ProductSlug(name string) string {
	lower := strings.ToLower(strings.TrimSpace(name))
	dashed := strings.Join(strings.Fields(lower), "-")
	return slugStrip.ReplaceAllString(dashed, "")
}

// =============================================================================
// Launch Inputs
// =============================================================================

// BobbiQuote is a founder quote attached to the product master copy.
type BobbiQuote struct {
	Quote   string `json:"quote"`
	Context string `json:"context"`
}

// PMCDocument is the product master copy: the approved product facts.
type PMCDocument struct {
	Tagline         string       `json:"tagline"`
	WhatItIs        string       `json:"whatItIs"`
	WhyWeLoveIt     string       `json:"whyWeLoveIt"`
	HowItsDifferent string       `json:"howItsDifferent"`
	WhoItsFor       string       `json:"whoItsFor"`
	HowToUse        string       `json:"howToUse"`
	BobbisQuotes    []BobbiQuote `json:"bobbisQuotes,omitempty"`
}

// ConsumerInsights are the desire/concern lists from consumer research.
type ConsumerInsights struct {
	TopDesires  []string `json:"topDesires,omitempty"`
	TopConcerns []string `json:"topConcerns,omitempty"`
}

// CreativeBrief is the launch brief authored by the brand team.
type CreativeBrief struct {
	LaunchOverview       string            `json:"launchOverview"`
	KeyBenefits          []string          `json:"keyBenefits,omitempty"`
	TargetDemographic    string            `json:"targetDemographic"`
	ConsumerInsights     *ConsumerInsights `json:"consumerInsights,omitempty"`
	KeyDifferentiator    string            `json:"keyDifferentiator,omitempty"`
	PositioningStatement string            `json:"positioningStatement,omitempty"`
}

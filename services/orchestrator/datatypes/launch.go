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
	"encoding/json"
	"fmt"
	"time"
)

// =============================================================================
// Launch Envelope
// =============================================================================

// LaunchStatus is the coarse workflow state of a launch.
type LaunchStatus string

const (
	LaunchDraftReview    LaunchStatus = "draft-review"
	LaunchStrategyReview LaunchStatus = "strategy-review"
	LaunchGenerating     LaunchStatus = "generating"
	LaunchComplete       LaunchStatus = "complete"
)

// GTMLaunch is the persisted per-launch document.
type GTMLaunch struct {
	ID                  string                     `json:"id"`
	Name                string                     `json:"name"`
	Product             string                     `json:"product"`
	Tier                string                     `json:"tier"`
	PMC                 *PMCDocument               `json:"pmc,omitempty"`
	CreativeBrief       *CreativeBrief             `json:"creativeBrief,omitempty"`
	SelectedChannels    []ChannelID                `json:"selectedChannels"`
	ChannelStrategies   ChannelStrategies          `json:"channelStrategies"`
	ChannelDeliverables map[string]json.RawMessage `json:"channelDeliverables,omitempty"`
	Status              LaunchStatus               `json:"status"`
	CreatedAt           time.Time                  `json:"createdAt"`
	UpdatedAt           time.Time                  `json:"updatedAt"`
}

// ProductName is the name used in prompts: Product, else Name.
func (l *GTMLaunch) ProductName() string {
	if l.Product != "" {
		return l.Product
	}
	return l.Name
}

// =============================================================================
// Channels
// =============================================================================

// ChannelID identifies a marketing channel.
type ChannelID string

const (
	ChannelRetention     ChannelID = "retention"
	ChannelCreative      ChannelID = "creative"
	ChannelPaidMedia     ChannelID = "paid-media"
	ChannelOrganicSocial ChannelID = "organic-social"
	ChannelInfluencer    ChannelID = "influencer"
	ChannelEcom          ChannelID = "ecom"
	ChannelPRAffiliate   ChannelID = "pr-affiliate"
	ChannelRetail        ChannelID = "retail"
)

// ChannelOrder is the canonical display and generation order.
var ChannelOrder = []ChannelID{
	ChannelRetention,
	ChannelCreative,
	ChannelPaidMedia,
	ChannelOrganicSocial,
	ChannelInfluencer,
	ChannelEcom,
	ChannelPRAffiliate,
	ChannelRetail,
}

var legacyChannels = map[ChannelID]ChannelID{
	"email":       ChannelRetention,
	"sms":         ChannelRetention,
	"paid-social": ChannelCreative,
	"web":         ChannelEcom,
	"pr":          ChannelPRAffiliate,
}

// Valid reports whether id is one of the current channel ids.
func (id ChannelID) Valid() bool {
	for _, c := range ChannelOrder {
		if c == id {
			return true
		}
	}
	return false
}

// MigrateChannels maps retired channel ids onto their replacements and
// removes duplicates, keeping first-seen order. Unknown ids are kept.
func MigrateChannels(ids []ChannelID) []ChannelID {
	seen := make(map[ChannelID]bool, len(ids))
	out := make([]ChannelID, 0, len(ids))
	for _, id := range ids {
		if repl, ok := legacyChannels[id]; ok {
			id = repl
		}
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

// =============================================================================
// Channel Strategies
// =============================================================================

// StrategyBase carries the fields every channel strategy shares.
type StrategyBase struct {
	Status           ReviewStatus `json:"status"`
	StrategicSummary string       `json:"strategicSummary" validate:"notblank"`
}

// Base returns the shared fields for in-place updates.
func (b *StrategyBase) Base() *StrategyBase { return b }

// Strategy is implemented by every per-channel strategy document.
type Strategy interface {
	Base() *StrategyBase
}

// RetentionItem is one planned email or SMS send.
type RetentionItem struct {
	ID          string `json:"id"`
	Type        string `json:"type"`
	Name        string `json:"name"`
	Timing      string `json:"timing"`
	Audience    string `json:"audience,omitempty"`
	Description string `json:"description"`
}

// Described is a single free-text planning note.
type Described struct {
	Description string `json:"description"`
}

// RetentionFlows toggles the automated flow touchpoints.
type RetentionFlows struct {
	DedicatedFlow   bool `json:"dedicatedFlow"`
	UniversalFooter bool `json:"universalFooter"`
}

// RetentionStrategy plans email, SMS and owned touchpoints.
type RetentionStrategy struct {
	StrategyBase
	EmailItems []RetentionItem `json:"emailItems"`
	SMSItems   []RetentionItem `json:"smsItems"`
	Flows      *RetentionFlows `json:"flows,omitempty"`
	Popup      *Described      `json:"popup,omitempty"`
	DirectMail *Described      `json:"directMail,omitempty"`
}

// PaidChannel is one paid placement with its budget share.
type PaidChannel struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Enabled       bool   `json:"enabled"`
	BudgetPercent int    `json:"budgetPercent" validate:"gte=0,lte=100"`
	Notes         string `json:"notes,omitempty"`
}

// PaidMediaStrategy plans paid campaigns.
type PaidMediaStrategy struct {
	StrategyBase
	CampaignType string        `json:"campaignType" validate:"oneof=net-new bau-adsets creative-testing none"`
	Channels     []PaidChannel `json:"channels" validate:"dive"`
	KeyMetrics   []string      `json:"keyMetrics"`
}

// OrganicPostItem is one planned organic post.
type OrganicPostItem struct {
	ID          string `json:"id"`
	Format      string `json:"format"`
	Description string `json:"description"`
	Timing      string `json:"timing,omitempty"`
}

// CreatorContent counts creator deliverables on owned social.
type CreatorContent struct {
	Deliverables int `json:"deliverables"`
	CollabPosts  int `json:"collabPosts"`
}

// OrganicSocialStrategy plans owned social posts.
type OrganicSocialStrategy struct {
	StrategyBase
	InstagramPosts []OrganicPostItem `json:"instagramPosts"`
	TikTokPosts    []OrganicPostItem `json:"tiktokPosts"`
	YouTubePosts   []OrganicPostItem `json:"youtubePosts"`
	CreatorContent *CreatorContent   `json:"creatorContent,omitempty"`
}

// Range is an inclusive integer range.
type Range struct {
	Min int `json:"min"`
	Max int `json:"max" validate:"gtefield=Min"`
}

// CreatorTiers splits seeding across creator sizes.
type CreatorTiers struct {
	Micro int `json:"micro"`
	Mid   int `json:"mid"`
	Macro int `json:"macro"`
}

// InfluencerStrategy plans seeding and paid creator work.
type InfluencerStrategy struct {
	StrategyBase
	SeedingCount      Range        `json:"seedingCount"`
	CreatorTiers      CreatorTiers `json:"creatorTiers"`
	ContentTypes      []string     `json:"contentTypes"`
	BriefPoints       []string     `json:"briefPoints"`
	ExpectedAds       int          `json:"expectedAds"`
	PaidContentBudget int          `json:"paidContentBudget"`
	SponsoredBudget   int          `json:"sponsoredBudget"`
}

// Toggle is an enable-able checklist entry with notes.
type Toggle struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Enabled bool   `json:"enabled"`
	Notes   string `json:"notes,omitempty"`
}

// EcomStrategy plans site placements and landing pages.
type EcomStrategy struct {
	StrategyBase
	LandingPages map[string]bool `json:"landingPages,omitempty"`
	Placements   []Toggle        `json:"placements"`
}

// CountedTargets is a planned count with named targets.
type CountedTargets struct {
	Count   int      `json:"count"`
	Targets []string `json:"targets"`
}

// CommissionIncrease is a temporary affiliate commission bump.
type CommissionIncrease struct {
	Enabled  bool   `json:"enabled"`
	Duration string `json:"duration,omitempty"`
}

// PRAffiliateStrategy plans press and affiliate work.
type PRAffiliateStrategy struct {
	StrategyBase
	PRAngle            string              `json:"prAngle"`
	LongLeadFeatures   CountedTargets      `json:"longLeadFeatures"`
	ProductPlacements  CountedTargets      `json:"productPlacements"`
	Awards             bool                `json:"awards"`
	AffiliateApproach  string              `json:"affiliateApproach"`
	CommissionIncrease *CommissionIncrease `json:"commissionIncrease,omitempty"`
	EarlyAccess        bool                `json:"earlyAccess"`
}

// RetailStrategy plans in-store activations.
type RetailStrategy struct {
	StrategyBase
	Activations []Toggle `json:"activations"`
}

// =============================================================================
// Creative Channel
// =============================================================================

// CreativePhase is the pointer into the creative sub-flow.
type CreativePhase string

const (
	PhaseResearch CreativePhase = "research"
	PhaseStrategy CreativePhase = "strategy"
	PhaseConcepts CreativePhase = "concepts"
)

// Creative formats.
const (
	FormatStatic   = "static"
	FormatVideo    = "video"
	FormatCarousel = "carousel"
)

// CreativeConcept is one planned creative execution.
type CreativeConcept struct {
	ID            string   `json:"id"`
	Name          string   `json:"name" validate:"notblank"`
	HookFormula   string   `json:"hookFormula" validate:"oneof=problem-first identity-first contrarian direct-benefit"`
	Angle         string   `json:"angle"`
	PrimaryHook   string   `json:"primaryHook,omitempty"`
	TargetPersona string   `json:"targetPersona" validate:"notblank"`
	PersonaName   string   `json:"personaName"`
	Formats       []string `json:"formats" validate:"min=1,dive,oneof=static video carousel"`
}

// FormatMix counts concepts per format.
type FormatMix struct {
	Static   int `json:"static"`
	Video    int `json:"video"`
	Carousel int `json:"carousel"`
}

// CountFormats recomputes the format mix from concepts.
func CountFormats(concepts []CreativeConcept) FormatMix {
	var mix FormatMix
	for _, c := range concepts {
		for _, f := range c.Formats {
			switch f {
			case FormatStatic:
				mix.Static++
			case FormatVideo:
				mix.Video++
			case FormatCarousel:
				mix.Carousel++
			}
		}
	}
	return mix
}

// CreativeStrategy is the creative channel document, including its
// research, strategy and concepts sub-flow.
type CreativeStrategy struct {
	StrategyBase
	CurrentPhase CreativePhase     `json:"currentPhase,omitempty"`
	Research     *CreativeResearch `json:"research,omitempty" validate:"-"`
	Concepts     []CreativeConcept `json:"concepts" validate:"dive"`
	FormatMix    FormatMix         `json:"formatMix"`
	ExpectedAds  int               `json:"expectedAds"`
}

// ChannelStrategies holds at most one strategy per channel.
type ChannelStrategies struct {
	Retention     *RetentionStrategy     `json:"retention,omitempty"`
	Creative      *CreativeStrategy      `json:"creative,omitempty"`
	PaidMedia     *PaidMediaStrategy     `json:"paidMedia,omitempty"`
	OrganicSocial *OrganicSocialStrategy `json:"organicSocial,omitempty"`
	Influencer    *InfluencerStrategy    `json:"influencer,omitempty"`
	Ecom          *EcomStrategy          `json:"ecom,omitempty"`
	PRAffiliate   *PRAffiliateStrategy   `json:"prAffiliate,omitempty"`
	Retail        *RetailStrategy        `json:"retail,omitempty"`
}

// NewStrategy returns an empty strategy document of the channel's type.
func NewStrategy(id ChannelID) (Strategy, error) {
	switch id {
	case ChannelRetention:
		return &RetentionStrategy{}, nil
	case ChannelCreative:
		return &CreativeStrategy{}, nil
	case ChannelPaidMedia:
		return &PaidMediaStrategy{}, nil
	case ChannelOrganicSocial:
		return &OrganicSocialStrategy{}, nil
	case ChannelInfluencer:
		return &InfluencerStrategy{}, nil
	case ChannelEcom:
		return &EcomStrategy{}, nil
	case ChannelPRAffiliate:
		return &PRAffiliateStrategy{}, nil
	case ChannelRetail:
		return &RetailStrategy{}, nil
	default:
		return nil, fmt.Errorf("unknown channel %q", id)
	}
}

// Set overwrites the entry for id. s must be the channel's strategy type.
func (cs *ChannelStrategies) Set(id ChannelID, s Strategy) error {
	ok := false
	switch v := s.(type) {
	case *RetentionStrategy:
		ok = id == ChannelRetention
		if ok {
			cs.Retention = v
		}
	case *CreativeStrategy:
		ok = id == ChannelCreative
		if ok {
			cs.Creative = v
		}
	case *PaidMediaStrategy:
		ok = id == ChannelPaidMedia
		if ok {
			cs.PaidMedia = v
		}
	case *OrganicSocialStrategy:
		ok = id == ChannelOrganicSocial
		if ok {
			cs.OrganicSocial = v
		}
	case *InfluencerStrategy:
		ok = id == ChannelInfluencer
		if ok {
			cs.Influencer = v
		}
	case *EcomStrategy:
		ok = id == ChannelEcom
		if ok {
			cs.Ecom = v
		}
	case *PRAffiliateStrategy:
		ok = id == ChannelPRAffiliate
		if ok {
			cs.PRAffiliate = v
		}
	case *RetailStrategy:
		ok = id == ChannelRetail
		if ok {
			cs.Retail = v
		}
	}
	if !ok {
		return fmt.Errorf("strategy %T does not belong to channel %q", s, id)
	}
	return nil
}

// Get returns the strategy for id, or nil when there is none.
func (cs *ChannelStrategies) Get(id ChannelID) Strategy {
	switch id {
	case ChannelRetention:
		if cs.Retention != nil {
			return cs.Retention
		}
	case ChannelCreative:
		if cs.Creative != nil {
			return cs.Creative
		}
	case ChannelPaidMedia:
		if cs.PaidMedia != nil {
			return cs.PaidMedia
		}
	case ChannelOrganicSocial:
		if cs.OrganicSocial != nil {
			return cs.OrganicSocial
		}
	case ChannelInfluencer:
		if cs.Influencer != nil {
			return cs.Influencer
		}
	case ChannelEcom:
		if cs.Ecom != nil {
			return cs.Ecom
		}
	case ChannelPRAffiliate:
		if cs.PRAffiliate != nil {
			return cs.PRAffiliate
		}
	case ChannelRetail:
		if cs.Retail != nil {
			return cs.Retail
		}
	}
	return nil
}

// All returns the present strategies in ChannelOrder.
func (cs *ChannelStrategies) All() []Strategy {
	var out []Strategy
	add := func(present bool, s Strategy) {
		if present {
			out = append(out, s)
		}
	}
	add(cs.Retention != nil, cs.Retention)
	add(cs.Creative != nil, cs.Creative)
	add(cs.PaidMedia != nil, cs.PaidMedia)
	add(cs.OrganicSocial != nil, cs.OrganicSocial)
	add(cs.Influencer != nil, cs.Influencer)
	add(cs.Ecom != nil, cs.Ecom)
	add(cs.PRAffiliate != nil, cs.PRAffiliate)
	add(cs.Retail != nil, cs.Retail)
	return out
}

// ValidateStrategy runs struct validation on a decoded strategy document.
func ValidateStrategy(s Strategy) error {
	return validateStruct(s)
}

// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package launch owns the persisted launch document and its state machine.
//
// # Description
//
// The Aggregator applies every launch mutation: shallow saves, strategy and
// research generation, and the creative phase transitions
// research → strategy → concepts. A transition whose precondition does not
// hold returns ErrPhaseLocked and leaves the stored document unchanged.
//
// # Thread Safety
//
// Mutations are serialized per Aggregator. Generation runs outside the lock
// and its result is written back under it, so the last writer wins for each
// field it touches.
package launch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/AleutianAI/CopyStudio/services/orchestrator/datatypes"
	"github.com/AleutianAI/CopyStudio/services/orchestrator/observability"
	"github.com/AleutianAI/CopyStudio/services/orchestrator/prompts"
	"github.com/AleutianAI/CopyStudio/services/orchestrator/storage"
	"github.com/AleutianAI/CopyStudio/services/orchestrator/strategy"
)

var (
	// ErrNotFound is returned for an unknown launch id.
	ErrNotFound = storage.ErrNotFound

	// ErrPhaseLocked is returned when a transition's precondition fails.
	ErrPhaseLocked = errors.New("phase locked")

	// ErrGenerationUnavailable is returned when no provider is configured.
	ErrGenerationUnavailable = errors.New("generation unavailable")
)

// Store persists launch documents. Get and Delete return an error wrapping
// ErrNotFound for unknown ids. Implemented by *storage.LaunchStore.
type Store interface {
	Get(ctx context.Context, id string) (*datatypes.GTMLaunch, error)
	List(ctx context.Context) ([]*datatypes.GTMLaunch, error)
	Put(ctx context.Context, l *datatypes.GTMLaunch) error
	Delete(ctx context.Context, id string) error
}

// ResearchGenerator produces creative research.
type ResearchGenerator interface {
	Generate(ctx context.Context, pctx prompts.Context) (*datatypes.CreativeResearch, error)
}

// StrategyGenerator produces channel strategies and creative concepts.
type StrategyGenerator interface {
	Generate(ctx context.Context, pctx prompts.Context, channels []datatypes.ChannelID, approved *datatypes.CreativeResearch) (*strategy.Result, error)
	GenerateConcepts(ctx context.Context, pctx prompts.Context, approved *datatypes.CreativeResearch) (*datatypes.CreativeStrategy, error)
}

// Transition names used in metrics.
const (
	TransitionGenerateResearch = "generate_research"
	TransitionApproveResearch  = "research_to_strategy"
	TransitionGenerateConcepts = "strategy_to_concepts"
	TransitionApproveAll       = "approve_strategies"
	TransitionComplete         = "complete"
)

// Aggregator applies launch mutations against a Store.
type Aggregator struct {
	store      Store
	research   ResearchGenerator
	strategies StrategyGenerator
	metrics    *observability.GenerationMetrics
	logger     *slog.Logger
	now        func() time.Time
	newID      func() string

	mu sync.Mutex
}

// Config wires an Aggregator. Research and Strategies may be nil, in which
// case generating operations return ErrGenerationUnavailable.
type Config struct {
	Store      Store
	Research   ResearchGenerator
	Strategies StrategyGenerator
	Metrics    *observability.GenerationMetrics
	Logger     *slog.Logger
	Now        func() time.Time
	NewID      func() string
}

// NewAggregator builds an Aggregator.
func NewAggregator(cfg Config) (*Aggregator, error) {
	if cfg.Store == nil {
		return nil, errors.New("launch: store is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.NewID == nil {
		cfg.NewID = uuid.NewString
	}
	return &Aggregator{
		store:      cfg.Store,
		research:   cfg.Research,
		strategies: cfg.Strategies,
		metrics:    cfg.Metrics,
		logger:     cfg.Logger,
		now:        cfg.Now,
		newID:      cfg.NewID,
	}, nil
}

// =============================================================================
// CRUD
// =============================================================================

// Create stores a new launch in draft review.
func (a *Aggregator) Create(ctx context.Context, req *datatypes.CreateLaunchRequest) (*datatypes.GTMLaunch, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	now := a.now()
	l := &datatypes.GTMLaunch{
		ID:               a.newID(),
		Name:             strings.TrimSpace(req.Name),
		Product:          req.Product,
		Tier:             req.Tier,
		PMC:              req.PMC,
		CreativeBrief:    req.CreativeBrief,
		SelectedChannels: datatypes.MigrateChannels(req.SelectedChannels),
		Status:           datatypes.LaunchDraftReview,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.store.Put(ctx, l); err != nil {
		return nil, fmt.Errorf("store launch: %w", err)
	}
	a.logger.Info("launch created", "launch_id", l.ID, "tier", l.Tier)
	return l, nil
}

// Get returns one launch with legacy channel ids migrated.
func (a *Aggregator) Get(ctx context.Context, id string) (*datatypes.GTMLaunch, error) {
	l, err := a.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	l.SelectedChannels = datatypes.MigrateChannels(l.SelectedChannels)
	return l, nil
}

// List returns every launch, newest first.
func (a *Aggregator) List(ctx context.Context) ([]*datatypes.GTMLaunch, error) {
	launches, err := a.store.List(ctx)
	if err != nil {
		return nil, err
	}
	for _, l := range launches {
		l.SelectedChannels = datatypes.MigrateChannels(l.SelectedChannels)
	}
	return launches, nil
}

// Delete removes a launch.
func (a *Aggregator) Delete(ctx context.Context, id string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.store.Delete(ctx, id)
}

// immutableFields are ignored by Save.
var immutableFields = []string{"id", "createdAt", "updatedAt"}

// Save shallow-merges patch into the launch: each top-level field present in
// patch replaces the stored field whole.
//
// # Inputs
//
//   - patch: Top-level JSON fields keyed by their JSON names. id, createdAt
//     and updatedAt are ignored.
//
// # Outputs
//
//   - *datatypes.GTMLaunch: The updated document, updatedAt bumped.
//   - error: ErrNotFound, or *datatypes.ValidationError when the merged
//     document does not decode.
func (a *Aggregator) Save(ctx context.Context, id string, patch map[string]json.RawMessage) (*datatypes.GTMLaunch, error) {
	return a.update(ctx, id, func(l *datatypes.GTMLaunch) error {
		current, err := json.Marshal(l)
		if err != nil {
			return err
		}
		fields := map[string]json.RawMessage{}
		if err := json.Unmarshal(current, &fields); err != nil {
			return err
		}
		for k, v := range patch {
			fields[k] = v
		}
		for _, k := range immutableFields {
			delete(fields, k)
		}
		merged, err := json.Marshal(fields)
		if err != nil {
			return err
		}
		next := datatypes.GTMLaunch{ID: l.ID, CreatedAt: l.CreatedAt}
		if err := json.Unmarshal(merged, &next); err != nil {
			return datatypes.NewValidationError(err.Error())
		}
		next.SelectedChannels = datatypes.MigrateChannels(next.SelectedChannels)
		*l = next
		return nil
	})
}

// update runs fn against the stored launch under the write lock and
// persists the result with updatedAt bumped. Nothing is written if fn
// fails.
func (a *Aggregator) update(ctx context.Context, id string, fn func(l *datatypes.GTMLaunch) error) (*datatypes.GTMLaunch, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	l, err := a.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := fn(l); err != nil {
		return nil, err
	}
	l.UpdatedAt = a.now()
	if err := a.store.Put(ctx, l); err != nil {
		return nil, fmt.Errorf("store launch: %w", err)
	}
	return l, nil
}

// =============================================================================
// Generation
// =============================================================================

func promptContext(l *datatypes.GTMLaunch, notes string) prompts.Context {
	return prompts.Context{
		ProductName:     l.ProductName(),
		Tier:            l.Tier,
		PMC:             l.PMC,
		Brief:           l.CreativeBrief,
		RefinementNotes: notes,
	}
}

// GenerateStrategies generates the given channels and overwrites their
// entries. Channels not requested keep their strategies. The launch moves
// to strategy review with selectedChannels set to the request.
func (a *Aggregator) GenerateStrategies(ctx context.Context, id string, channels []datatypes.ChannelID) (*datatypes.GTMLaunch, *strategy.Result, error) {
	if a.strategies == nil {
		return nil, nil, ErrGenerationUnavailable
	}
	l, err := a.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	channels = datatypes.MigrateChannels(channels)

	res, err := a.strategies.Generate(ctx, promptContext(l, ""), channels, nil)
	if err != nil {
		return nil, nil, err
	}

	updated, err := a.update(ctx, id, func(l *datatypes.GTMLaunch) error {
		for _, ch := range res.Generated {
			s := res.Strategies.Get(ch)
			if ch == datatypes.ChannelCreative && l.ChannelStrategies.Creative != nil {
				// Plain strategy regeneration keeps any research already done.
				cs := s.(*datatypes.CreativeStrategy)
				if cs.Research == nil {
					cs.Research = l.ChannelStrategies.Creative.Research
				}
			}
			if err := l.ChannelStrategies.Set(ch, s); err != nil {
				return err
			}
		}
		l.SelectedChannels = channels
		l.Status = datatypes.LaunchStrategyReview
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	a.logger.Info("channel strategies stored",
		"launch_id", id, "generated", len(res.Generated), "failed", len(res.Failed))
	return updated, res, nil
}

// GenerateResearch (re)generates creative research. Allowed while research
// is absent or still a draft; the new research replaces the old whole and
// the creative phase returns to research.
func (a *Aggregator) GenerateResearch(ctx context.Context, id, refinementNotes string) (*datatypes.GTMLaunch, error) {
	if a.research == nil {
		return nil, ErrGenerationUnavailable
	}
	l, err := a.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := canGenerateResearch(l); err != nil {
		a.metrics.RecordTransition(TransitionGenerateResearch, false)
		return nil, err
	}

	r, err := a.research.Generate(ctx, promptContext(l, refinementNotes))
	if err != nil {
		return nil, err
	}

	updated, err := a.update(ctx, id, func(l *datatypes.GTMLaunch) error {
		if err := canGenerateResearch(l); err != nil {
			return err
		}
		cs := l.ChannelStrategies.Creative
		if cs == nil {
			cs = &datatypes.CreativeStrategy{
				StrategyBase: datatypes.StrategyBase{Status: datatypes.StatusDraft},
				Concepts:     []datatypes.CreativeConcept{},
			}
			l.ChannelStrategies.Creative = cs
		}
		cs.Research = r
		cs.CurrentPhase = datatypes.PhaseResearch
		return nil
	})
	a.recordTransition(TransitionGenerateResearch, err)
	return updated, err
}

func canGenerateResearch(l *datatypes.GTMLaunch) error {
	cs := l.ChannelStrategies.Creative
	if cs != nil && cs.Research != nil && cs.Research.Status != datatypes.StatusDraft {
		return fmt.Errorf("%w: research is %s", ErrPhaseLocked, cs.Research.Status)
	}
	return nil
}

// ApproveResearch moves the creative flow from research to strategy.
// Research that is already approved is rejected with ErrPhaseLocked so a
// repeated call never moves a launch back from the concepts phase.
func (a *Aggregator) ApproveResearch(ctx context.Context, id string) (*datatypes.GTMLaunch, error) {
	updated, err := a.update(ctx, id, func(l *datatypes.GTMLaunch) error {
		cs := l.ChannelStrategies.Creative
		if cs == nil || cs.Research == nil {
			return fmt.Errorf("%w: no research to approve", ErrPhaseLocked)
		}
		if cs.Research.Status == datatypes.StatusApproved {
			return fmt.Errorf("%w: research is already approved", ErrPhaseLocked)
		}
		cs.Research.Status = datatypes.StatusApproved
		cs.CurrentPhase = datatypes.PhaseStrategy
		return nil
	})
	a.recordTransition(TransitionApproveResearch, err)
	return updated, err
}

// ApproveStrategyAndGenerateConcepts moves the creative flow from strategy
// to concepts. The generated creative strategy replaces the stored one and
// carries the approved research unchanged.
func (a *Aggregator) ApproveStrategyAndGenerateConcepts(ctx context.Context, id string) (*datatypes.GTMLaunch, error) {
	if a.strategies == nil {
		return nil, ErrGenerationUnavailable
	}
	l, err := a.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	approved, err := approvedResearch(l)
	if err != nil {
		a.metrics.RecordTransition(TransitionGenerateConcepts, false)
		return nil, err
	}

	cs, err := a.strategies.GenerateConcepts(ctx, promptContext(l, ""), approved)
	if err != nil {
		return nil, err
	}

	updated, err := a.update(ctx, id, func(l *datatypes.GTMLaunch) error {
		current, err := approvedResearch(l)
		if err != nil {
			return err
		}
		cs.Research = current
		cs.CurrentPhase = datatypes.PhaseConcepts
		l.ChannelStrategies.Creative = cs
		return nil
	})
	a.recordTransition(TransitionGenerateConcepts, err)
	return updated, err
}

func approvedResearch(l *datatypes.GTMLaunch) (*datatypes.CreativeResearch, error) {
	cs := l.ChannelStrategies.Creative
	if cs == nil || cs.Research == nil || cs.Research.Status != datatypes.StatusApproved {
		return nil, fmt.Errorf("%w: research must be approved first", ErrPhaseLocked)
	}
	return cs.Research, nil
}

// ApproveStrategies approves every channel strategy and moves the launch to
// generating.
func (a *Aggregator) ApproveStrategies(ctx context.Context, id string) (*datatypes.GTMLaunch, error) {
	updated, err := a.update(ctx, id, func(l *datatypes.GTMLaunch) error {
		all := l.ChannelStrategies.All()
		if len(all) == 0 {
			return fmt.Errorf("%w: no strategies to approve", ErrPhaseLocked)
		}
		for _, s := range all {
			s.Base().Status = datatypes.StatusApproved
		}
		l.Status = datatypes.LaunchGenerating
		return nil
	})
	a.recordTransition(TransitionApproveAll, err)
	return updated, err
}

// Complete stores the channel deliverables and marks the launch complete.
func (a *Aggregator) Complete(ctx context.Context, id string, deliverables map[string]json.RawMessage) (*datatypes.GTMLaunch, error) {
	updated, err := a.update(ctx, id, func(l *datatypes.GTMLaunch) error {
		l.ChannelDeliverables = deliverables
		l.Status = datatypes.LaunchComplete
		return nil
	})
	a.recordTransition(TransitionComplete, err)
	return updated, err
}

// Progress reports the creative phase view of a launch.
func (a *Aggregator) Progress(ctx context.Context, id string) (CreativeProgress, error) {
	l, err := a.store.Get(ctx, id)
	if err != nil {
		return CreativeProgress{}, err
	}
	return Progress(l.ChannelStrategies.Creative), nil
}

func (a *Aggregator) recordTransition(name string, err error) {
	if err != nil && !errors.Is(err, ErrPhaseLocked) {
		return
	}
	a.metrics.RecordTransition(name, err == nil)
	if err != nil {
		a.logger.Warn("launch transition rejected", "transition", name, "error", err)
	}
}

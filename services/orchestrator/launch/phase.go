// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package launch

import (
	"math"

	"github.com/AleutianAI/CopyStudio/services/orchestrator/datatypes"
)

// PhaseState is the display state of one creative phase.
type PhaseState string

const (
	StatePending  PhaseState = "pending"
	StateCurrent  PhaseState = "current"
	StateComplete PhaseState = "complete"
	StateLocked   PhaseState = "locked"
)

// PhaseView is one phase's state and completion percentage.
type PhaseView struct {
	Phase    datatypes.CreativePhase `json:"phase"`
	State    PhaseState              `json:"state"`
	Progress int                     `json:"progress"`
}

// CreativeProgress summarizes the creative sub-flow of a launch.
type CreativeProgress struct {
	CurrentPhase datatypes.CreativePhase `json:"currentPhase"`
	Phases       []PhaseView             `json:"phases"`
	Overall      int                     `json:"overall"`
}

func researchApproved(cs *datatypes.CreativeStrategy) bool {
	return cs != nil && cs.Research != nil && cs.Research.Status == datatypes.StatusApproved
}

func conceptsStarted(cs *datatypes.CreativeStrategy) bool {
	return cs != nil && (cs.CurrentPhase == datatypes.PhaseConcepts || len(cs.Concepts) > 0)
}

// PhaseStatus derives a phase's state from the creative document. A nil
// document has no research yet.
func PhaseStatus(cs *datatypes.CreativeStrategy, phase datatypes.CreativePhase) PhaseState {
	switch phase {
	case datatypes.PhaseResearch:
		switch {
		case researchApproved(cs):
			return StateComplete
		case cs != nil && cs.Research != nil:
			return StateCurrent
		default:
			return StatePending
		}
	case datatypes.PhaseStrategy:
		if !researchApproved(cs) {
			return StateLocked
		}
		if conceptsStarted(cs) {
			return StateComplete
		}
		return StateCurrent
	case datatypes.PhaseConcepts:
		if conceptsStarted(cs) {
			return StateCurrent
		}
		return StateLocked
	}
	return StatePending
}

// PhaseProgress is a phase's completion percentage, 0 to 100.
//
// Research and strategy are 0 without research, 50 while it is a draft and
// 100 once approved. Concepts is the share of the recommended concept
// count that exists, capped at 100.
func PhaseProgress(cs *datatypes.CreativeStrategy, phase datatypes.CreativePhase) int {
	if cs == nil {
		return 0
	}
	switch phase {
	case datatypes.PhaseResearch, datatypes.PhaseStrategy:
		switch {
		case cs.Research == nil || cs.Research.Status == "":
			return 0
		case cs.Research.Status == datatypes.StatusApproved:
			return 100
		default:
			return 50
		}
	case datatypes.PhaseConcepts:
		if len(cs.Concepts) == 0 {
			return 0
		}
		total := 0
		if cs.Research != nil {
			total = datatypes.SumRecommendedConcepts(cs.Research.PersonaInsights)
		}
		if total == 0 {
			total = 1
		}
		pct := int(math.Round(float64(len(cs.Concepts)) / float64(total) * 100))
		return min(100, pct)
	}
	return 0
}

var creativePhases = []datatypes.CreativePhase{
	datatypes.PhaseResearch,
	datatypes.PhaseStrategy,
	datatypes.PhaseConcepts,
}

// Progress builds the full creative progress view.
func Progress(cs *datatypes.CreativeStrategy) CreativeProgress {
	out := CreativeProgress{Phases: make([]PhaseView, 0, len(creativePhases))}
	if cs != nil {
		out.CurrentPhase = cs.CurrentPhase
	}
	sum := 0
	for _, p := range creativePhases {
		v := PhaseView{Phase: p, State: PhaseStatus(cs, p), Progress: PhaseProgress(cs, p)}
		sum += v.Progress
		out.Phases = append(out.Phases, v)
	}
	out.Overall = int(math.Round(float64(sum) / float64(len(creativePhases))))
	return out
}

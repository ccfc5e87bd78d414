// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package observability provides metrics for the generation pipeline.
//
// # Description
//
// This package implements Prometheus metrics for monitoring research and
// strategy generation. Metrics include:
//   - Provider calls (by task kind and status)
//   - Retries and dropped tasks
//   - Task latency histograms
//   - Research outcomes and launch phase transitions
//
// # Integration
//
// Metrics are exposed via the /metrics endpoint.
//
// # Thread Safety
//
// All metric operations are thread-safe via Prometheus's internal locking.
// Every Record method is a no-op on a nil *GenerationMetrics, so components
// may run without metrics in tests.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// =============================================================================
// Metric Definitions
// =============================================================================

// Namespace for all metrics
const metricsNamespace = "copystudio"

// Subsystem for generation metrics
const generationSubsystem = "generation"

// GenerationMetrics holds all Prometheus metrics for generation.
//
// # Description
//
// Initialize once at startup via NewGenerationMetrics and pass the instance
// to the components that record into it.
//
// # Fields
//
//   - LLMCallsTotal: Provider calls by task and status
//   - RetriesTotal: Retries by task
//   - TaskDurationSeconds: Unit-of-work latency including retries
//   - DroppedTasksTotal: Tasks omitted from a result by task and reason
//   - ResearchTotal: Research requests by outcome
//   - ChannelStrategiesTotal: Channel strategy generations by channel and status
//   - PhaseTransitionsTotal: Launch transitions by transition and outcome
type GenerationMetrics struct {
	// LLMCallsTotal counts provider calls.
	// Labels: task (persona-insight, product-summary, ...), status (success, error)
	LLMCallsTotal *prometheus.CounterVec

	// RetriesTotal counts retry waits.
	// Labels: task
	RetriesTotal *prometheus.CounterVec

	// TaskDurationSeconds measures one unit of work end to end.
	// Labels: task, status
	TaskDurationSeconds *prometheus.HistogramVec

	// DroppedTasksTotal counts units left out of an aggregate.
	// Labels: task, reason (failed, skipped)
	DroppedTasksTotal *prometheus.CounterVec

	// ResearchTotal counts research generations.
	// Labels: outcome (complete, partial, tier_zero, failed)
	ResearchTotal *prometheus.CounterVec

	// ChannelStrategiesTotal counts per-channel strategy generations.
	// Labels: channel, status
	ChannelStrategiesTotal *prometheus.CounterVec

	// PhaseTransitionsTotal counts launch state transitions.
	// Labels: transition, outcome (applied, rejected)
	PhaseTransitionsTotal *prometheus.CounterVec
}

// NewGenerationMetrics creates and registers the metrics with reg.
//
// # Inputs
//
//   - reg: Registry to register with. nil uses the default registerer.
//
// # Limitations
//
//   - Panics if called twice against the same registry (duplicate registration).
func NewGenerationMetrics(reg prometheus.Registerer) *GenerationMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &GenerationMetrics{
		LLMCallsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: generationSubsystem,
				Name:      "llm_calls_total",
				Help:      "Total provider calls by task and status",
			},
			[]string{"task", "status"},
		),

		RetriesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: generationSubsystem,
				Name:      "retries_total",
				Help:      "Total retry waits by task",
			},
			[]string{"task"},
		),

		TaskDurationSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: generationSubsystem,
				Name:      "task_duration_seconds",
				Help:      "Unit of work duration including retries in seconds",
				Buckets:   []float64{0.5, 1, 2.5, 5, 10, 20, 40, 90, 180},
			},
			[]string{"task", "status"},
		),

		DroppedTasksTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: generationSubsystem,
				Name:      "dropped_tasks_total",
				Help:      "Total tasks omitted from an aggregate by task and reason",
			},
			[]string{"task", "reason"},
		),

		ResearchTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: generationSubsystem,
				Name:      "research_total",
				Help:      "Total research generations by outcome",
			},
			[]string{"outcome"},
		),

		ChannelStrategiesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: generationSubsystem,
				Name:      "channel_strategies_total",
				Help:      "Total channel strategy generations by channel and status",
			},
			[]string{"channel", "status"},
		),

		PhaseTransitionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: "launch",
				Name:      "phase_transitions_total",
				Help:      "Total launch state transitions by transition and outcome",
			},
			[]string{"transition", "outcome"},
		),
	}
}

// =============================================================================
// Label Values
// =============================================================================

// ResearchOutcome labels a finished research generation.
type ResearchOutcome string

const (
	// ResearchComplete means every persona produced an insight.
	ResearchComplete ResearchOutcome = "complete"

	// ResearchPartial means at least one persona was dropped.
	ResearchPartial ResearchOutcome = "partial"

	// ResearchTierZero means generation was skipped for the tier.
	ResearchTierZero ResearchOutcome = "tier_zero"

	// ResearchFailed means the request failed.
	ResearchFailed ResearchOutcome = "failed"
)

// Drop reasons.
const (
	DropFailed  = "failed"
	DropSkipped = "skipped"
)

func status(success bool) string {
	if success {
		return "success"
	}
	return "error"
}

// =============================================================================
// Helper Methods
// =============================================================================

// RecordLLMCall records one provider call.
func (m *GenerationMetrics) RecordLLMCall(task string, success bool) {
	if m == nil {
		return
	}
	m.LLMCallsTotal.WithLabelValues(task, status(success)).Inc()
}

// RecordRetry records one retry wait.
func (m *GenerationMetrics) RecordRetry(task string) {
	if m == nil {
		return
	}
	m.RetriesTotal.WithLabelValues(task).Inc()
}

// RecordTask records one unit of work's duration.
//
// # Inputs
//
//   - task: The task kind.
//   - seconds: Duration including retries.
//   - success: Whether the unit produced a value.
func (m *GenerationMetrics) RecordTask(task string, seconds float64, success bool) {
	if m == nil {
		return
	}
	m.TaskDurationSeconds.WithLabelValues(task, status(success)).Observe(seconds)
}

// RecordDropped records a task omitted from an aggregate.
func (m *GenerationMetrics) RecordDropped(task, reason string) {
	if m == nil {
		return
	}
	m.DroppedTasksTotal.WithLabelValues(task, reason).Inc()
}

// RecordResearch records a research generation outcome.
func (m *GenerationMetrics) RecordResearch(outcome ResearchOutcome) {
	if m == nil {
		return
	}
	m.ResearchTotal.WithLabelValues(string(outcome)).Inc()
}

// RecordChannelStrategy records one channel's strategy generation.
func (m *GenerationMetrics) RecordChannelStrategy(channel string, success bool) {
	if m == nil {
		return
	}
	m.ChannelStrategiesTotal.WithLabelValues(channel, status(success)).Inc()
}

// RecordTransition records a launch state transition attempt.
func (m *GenerationMetrics) RecordTransition(transition string, applied bool) {
	if m == nil {
		return
	}
	outcome := "applied"
	if !applied {
		outcome = "rejected"
	}
	m.PhaseTransitionsTotal.WithLabelValues(transition, outcome).Inc()
}

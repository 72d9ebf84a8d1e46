// Copyright 2026 © The Automata Authors
// SPDX-License-Identifier: Apache-2.0

package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Run outcome labels recorded on the run counter.
const (
	RunCompleted  = "completed"
	RunCancelled  = "cancelled"
	RunSuppressed = "suppressed"
	RunFailed     = "failed"
	RunRejected   = "rejected"
)

// RunMetrics tracks per-node run outcomes for production monitoring.
// All methods are nil-safe so supervision works without telemetry.
type RunMetrics struct {
	runCounter       metric.Int64Counter
	rejectionCounter metric.Int64Counter
}

// NewRunMetrics creates a run metrics tracker with OTEL meters.
func NewRunMetrics() (*RunMetrics, error) {
	meter := otel.Meter("automata/runs")

	runCounter, err := meter.Int64Counter(
		"automata.runs.total",
		metric.WithDescription("Automaton runs by node and outcome"),
	)
	if err != nil {
		return nil, err
	}

	rejectionCounter, err := meter.Int64Counter(
		"automata.validator.rejections",
		metric.WithDescription("Tasks rejected by input validators, by node"),
	)
	if err != nil {
		return nil, err
	}

	return &RunMetrics{
		runCounter:       runCounter,
		rejectionCounter: rejectionCounter,
	}, nil
}

// RecordRun increments the run counter for the node with an outcome label.
func (rm *RunMetrics) RecordRun(ctx context.Context, node, outcome string) {
	if rm == nil {
		return
	}
	rm.runCounter.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("automaton", node),
			attribute.String("outcome", outcome),
		),
	)
}

// RecordRejection increments the validator rejection counter for the node.
func (rm *RunMetrics) RecordRejection(ctx context.Context, node string) {
	if rm == nil {
		return
	}
	rm.rejectionCounter.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("automaton", node),
		),
	)
}

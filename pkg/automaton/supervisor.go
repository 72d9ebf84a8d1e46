package automaton

import (
	"context"
	stderrors "errors"
	"log/slog"
	"strings"

	"github.com/jllopis/automata/pkg/core"
	"github.com/jllopis/automata/pkg/engine"
	"github.com/jllopis/automata/pkg/errors"
	"github.com/jllopis/automata/pkg/telemetry"
	"github.com/jllopis/automata/pkg/validator"
)

// TimeoutSentinel is the fixed string a supervised node returns when an
// interruption or budget ceiling stops its run. The interruption is
// absorbed at the node boundary so the delegator decides how to react.
const TimeoutSentinel = "Sub-automaton took too long to process and was stopped."

const parseFailureRewrite = "The sub-automaton ran into an error while processing the request. " +
	"Its last thought was: "

// SupervisorConfig controls one node's run supervision.
type SupervisorConfig struct {
	// Gate, when set, validates every task before the wrapped run. A
	// rejected task short-circuits: no lifecycle markers, no execution.
	Gate *validator.Gate

	// SuppressErrors converts run failures into string results so a
	// delegator can continue instead of crashing.
	SuppressErrors bool

	Logger  *slog.Logger
	Metrics *telemetry.RunMetrics
}

// Supervise wraps an automaton's raw run with input gating, lifecycle
// boundary markers, interruption absorption and the node's
// error-suppression policy.
func Supervise(inner core.Automaton, cfg SupervisorConfig) core.Automaton {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &supervised{
		inner:    inner,
		gate:     cfg.Gate,
		suppress: cfg.SuppressErrors,
		logger:   logger,
		metrics:  cfg.Metrics,
	}
}

type supervised struct {
	inner    core.Automaton
	gate     *validator.Gate
	suppress bool
	logger   *slog.Logger
	metrics  *telemetry.RunMetrics
}

func (s *supervised) Name() string        { return s.inner.Name() }
func (s *supervised) Description() string { return s.inner.Description() }

func (s *supervised) Run(ctx context.Context, task string) (string, error) {
	if s.gate != nil {
		accepted, message, err := s.gate.Validate(ctx, task)
		if err != nil {
			// A malformed verdict is a configuration contract violation,
			// never a rejection.
			return "", err
		}
		if !accepted {
			s.metrics.RecordRejection(ctx, s.inner.Name())
			return message, nil
		}
	}

	ctx, runID := core.EnsureRunID(ctx)
	name := s.inner.Name()
	s.logger.InfoContext(ctx, "automaton run start", "automaton", name, "run_id", runID)

	result, err := s.inner.Run(ctx, task)
	switch {
	case err == nil:
		s.logger.InfoContext(ctx, "automaton run end", "automaton", name, "run_id", runID)
		s.metrics.RecordRun(ctx, name, telemetry.RunCompleted)
		return result, nil

	case stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded):
		s.logger.InfoContext(ctx, "automaton run end", "automaton", name, "run_id", runID,
			"outcome", telemetry.RunCancelled)
		s.metrics.RecordRun(ctx, name, telemetry.RunCancelled)
		return TimeoutSentinel, nil

	case errors.IsConfig(err):
		// Configuration contract violations surface regardless of policy.
		s.metrics.RecordRun(ctx, name, telemetry.RunFailed)
		return "", err

	case s.suppress:
		s.logger.WarnContext(ctx, "automaton run failure suppressed", "automaton", name,
			"run_id", runID, "error", err)
		s.metrics.RecordRun(ctx, name, telemetry.RunSuppressed)
		return suppressedMessage(err), nil

	default:
		s.metrics.RecordRun(ctx, name, telemetry.RunFailed)
		return "", err
	}
}

// suppressedMessage converts a failure into an agent-facing string:
// reasoning parse failures are rewritten into an explanation, and
// backticks are escaped so the text cannot break the delegator's own
// output formatting.
func suppressedMessage(err error) string {
	text := err.Error()
	var ae *errors.AutomataError
	if stderrors.As(err, &ae) && ae.Code == errors.CodeReasoning {
		text = ae.Message
	}
	text = strings.ReplaceAll(text, engine.ParseFailurePrefix, parseFailureRewrite)
	return strings.ReplaceAll(text, "`", "```")
}

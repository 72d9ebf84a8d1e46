// Package engine implements the think/act/observe loop that decides,
// iteration by iteration, whether a composite automaton delegates to a
// named child or finalizes with an answer.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/jllopis/automata/pkg/budget"
	"github.com/jllopis/automata/pkg/core"
	autoerrors "github.com/jllopis/automata/pkg/errors"
	"github.com/jllopis/automata/pkg/llm"
	"github.com/jllopis/automata/pkg/prompt"
)

// FinalizeAction is the distinguished terminal action name. The engine
// intercepts it before dispatch: finalizing never executes a capability.
const FinalizeAction = "finalize"

// ParseFailurePrefix starts the error message produced when the model's
// output fits no known action grammar. Supervisors rewrite it into an
// agent-facing explanation when suppressing.
const ParseFailurePrefix = "could not parse reasoning output: "

// Engine executes a task for one composite node.
type Engine interface {
	Execute(ctx context.Context, task string) (string, error)
}

var (
	actionPattern = regexp.MustCompile(`(?s)Action\s*:[ \t]*(.+?)\s*Action Input\s*:[ \t]*(.*)`)
	finalPattern  = regexp.MustCompile(`(?s)Final Answer\s*:[ \t]*(.*)`)
)

// React runs a text-grammar reasoning loop: the model emits either
// "Action: <name> / Action Input: <input>" to delegate, or
// "Final Answer: <answer>" to stop.
type React struct {
	provider llm.Provider
	model    string
	system   string
	actions  map[string]core.Automaton
	catalog  []string
	limits   budget.Limits
	logger   *slog.Logger
}

// NewReact builds an engine for the assembled spec. Only children listed
// in the spec's action catalog are reachable.
func NewReact(provider llm.Provider, model string, spec prompt.Spec, children []core.Automaton, limits budget.Limits) (*React, error) {
	if provider == nil {
		return nil, fmt.Errorf("engine: provider is required")
	}
	if limits.MaxIterations <= 0 {
		return nil, fmt.Errorf("engine: iteration budget must be positive")
	}

	actions := make(map[string]core.Automaton, len(children))
	for _, child := range children {
		actions[child.Name()] = child
	}
	for _, name := range spec.ActionNames() {
		if _, ok := actions[name]; !ok {
			return nil, fmt.Errorf("engine: catalog action %q has no resolved child", name)
		}
	}

	return &React{
		provider: provider,
		model:    model,
		system:   spec.System(),
		actions:  actions,
		catalog:  spec.ActionNames(),
		limits:   limits,
		logger:   slog.Default(),
	}, nil
}

// Execute runs the loop until a final answer, a budget ceiling or a
// failure. Budget exhaustion surfaces as context.DeadlineExceeded so the
// supervisor reports it as the cancellation case.
func (e *React) Execute(ctx context.Context, task string) (string, error) {
	if e.limits.MaxTime > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.limits.MaxTime)
		defer cancel()
	}

	messages := []llm.Message{
		{Role: llm.RoleSystem, Content: e.system},
		{Role: llm.RoleUser, Content: task},
	}

	for step := 0; step < e.limits.MaxIterations; step++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		resp, err := e.provider.Chat(ctx, llm.ChatRequest{Model: e.model, Messages: messages})
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return "", ctxErr
			}
			return "", autoerrors.New(autoerrors.CodeLLM, "reasoning model call failed", err)
		}
		output := resp.Content
		messages = append(messages, llm.Message{Role: llm.RoleAssistant, Content: output})

		if m := finalPattern.FindStringSubmatch(output); m != nil {
			return strings.TrimSpace(m[1]), nil
		}

		name, input, err := parseAction(output)
		if err != nil {
			return "", err
		}
		if isFinalize(name) {
			return input, nil
		}

		child, ok := e.actions[name]
		if !ok {
			observation := fmt.Sprintf("%q is not one of your sub-automata. Permitted actions: %s.",
				name, strings.Join(e.catalog, ", "))
			messages = append(messages, llm.Message{Role: llm.RoleUser, Content: "Observation: " + observation})
			continue
		}

		e.logger.Debug("delegating", "action", name, "step", step+1)
		observation, err := child.Run(ctx, input)
		if err != nil {
			return "", err
		}
		messages = append(messages, llm.Message{Role: llm.RoleUser, Content: "Observation: " + observation})
	}

	return "", fmt.Errorf("iteration budget exhausted after %d steps: %w",
		e.limits.MaxIterations, context.DeadlineExceeded)
}

func parseAction(output string) (name, input string, err error) {
	m := actionPattern.FindStringSubmatch(output)
	if m == nil {
		return "", "", &autoerrors.AutomataError{
			Code:    autoerrors.CodeReasoning,
			Message: ParseFailurePrefix + strings.TrimSpace(output),
		}
	}
	return strings.TrimSpace(m[1]), strings.TrimSpace(m[2]), nil
}

// isFinalize matches the terminal action by declaration name, with or
// without the "(role rank)" suffix runtime names carry.
func isFinalize(name string) bool {
	return name == FinalizeAction || strings.HasPrefix(name, FinalizeAction+" (")
}

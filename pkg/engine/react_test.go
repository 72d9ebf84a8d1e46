package engine

import (
	"context"
	stderrors "errors"
	"strings"
	"testing"
	"time"

	"github.com/jllopis/automata/pkg/budget"
	"github.com/jllopis/automata/pkg/core"
	autoerrors "github.com/jllopis/automata/pkg/errors"
	"github.com/jllopis/automata/pkg/llm"
	"github.com/jllopis/automata/pkg/prompt"
)

type stubChild struct {
	name   string
	runs   []string
	result string
	err    error
}

func (s *stubChild) Name() string        { return s.name }
func (s *stubChild) Description() string { return "stub" }
func (s *stubChild) Run(ctx context.Context, task string) (string, error) {
	s.runs = append(s.runs, task)
	return s.result, s.err
}

func specFor(children ...core.Automaton) prompt.Spec {
	spec := prompt.Spec{RoleDescription: "Coordinate.", OutputFormat: "Action or Final Answer."}
	for _, child := range children {
		spec.Actions = append(spec.Actions, prompt.Action{Name: child.Name(), Description: child.Description()})
	}
	return spec
}

func limits(iterations int) budget.Limits {
	return budget.Limits{MaxIterations: iterations, MaxTime: time.Minute}
}

func TestExecuteDelegatesThenFinalizes(t *testing.T) {
	child := &stubChild{name: "save_file (function 0)", result: "saved file to `a.txt`"}
	provider := llm.NewScriptedMockProvider(
		"Thought: I should save the file.\nAction: save_file (function 0)\nAction Input: {\"file_name\": \"a.txt\"}",
		"Final Answer: The file a.txt was saved.",
	)

	engine, err := NewReact(provider, "m", specFor(child), []core.Automaton{child}, limits(5))
	if err != nil {
		t.Fatalf("NewReact failed: %v", err)
	}
	out, err := engine.Execute(context.Background(), "Save a.txt")
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if out != "The file a.txt was saved." {
		t.Errorf("unexpected answer: %q", out)
	}
	if len(child.runs) != 1 || child.runs[0] != `{"file_name": "a.txt"}` {
		t.Errorf("unexpected delegation input: %v", child.runs)
	}

	// The observation must be fed back before the next model call.
	second := provider.Requests[1].Messages
	last := second[len(second)-1]
	if last.Role != llm.RoleUser || !strings.Contains(last.Content, "Observation: saved file to") {
		t.Errorf("observation missing from conversation: %+v", last)
	}
}

func TestExecuteFinalizeActionIntercepted(t *testing.T) {
	child := &stubChild{name: "finalize (function 0)"}
	provider := llm.NewScriptedMockProvider(
		"Action: finalize (function 0)\nAction Input: all done",
	)

	engine, err := NewReact(provider, "m", specFor(child), []core.Automaton{child}, limits(5))
	if err != nil {
		t.Fatalf("NewReact failed: %v", err)
	}
	out, err := engine.Execute(context.Background(), "task")
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if out != "all done" {
		t.Errorf("finalize must return its input, got %q", out)
	}
	if len(child.runs) != 0 {
		t.Errorf("finalize must never dispatch to the leaf")
	}
}

func TestExecuteUnknownActionGetsObservation(t *testing.T) {
	child := &stubChild{name: "assistant (function 0)", result: "ok"}
	provider := llm.NewScriptedMockProvider(
		"Action: teleport\nAction Input: anywhere",
		"Final Answer: done",
	)

	engine, err := NewReact(provider, "m", specFor(child), []core.Automaton{child}, limits(5))
	if err != nil {
		t.Fatalf("NewReact failed: %v", err)
	}
	if _, err := engine.Execute(context.Background(), "task"); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	second := provider.Requests[1].Messages
	last := second[len(second)-1].Content
	if !strings.Contains(last, `"teleport" is not one of your sub-automata`) {
		t.Errorf("expected corrective observation, got %q", last)
	}
	if !strings.Contains(last, "assistant (function 0)") {
		t.Errorf("observation must list permitted actions, got %q", last)
	}
}

func TestExecuteParseFailure(t *testing.T) {
	provider := llm.NewScriptedMockProvider("I am not sure what to do here.")
	engine, err := NewReact(provider, "m", prompt.Spec{}, nil, limits(5))
	if err != nil {
		t.Fatalf("NewReact failed: %v", err)
	}

	_, err = engine.Execute(context.Background(), "task")
	if err == nil {
		t.Fatalf("expected parse failure")
	}
	var ae *autoerrors.AutomataError
	if !stderrors.As(err, &ae) || ae.Code != autoerrors.CodeReasoning {
		t.Fatalf("expected reasoning failure, got %v", err)
	}
	if !strings.HasPrefix(ae.Message, ParseFailurePrefix) {
		t.Errorf("message must carry the parse failure prefix: %q", ae.Message)
	}
	if !strings.Contains(ae.Message, "I am not sure what to do here.") {
		t.Errorf("message must carry the raw output: %q", ae.Message)
	}
}

func TestExecuteIterationBudget(t *testing.T) {
	child := &stubChild{name: "reflect (function 0)", result: "still thinking"}
	provider := llm.NewScriptedMockProvider(
		"Action: reflect (function 0)\nAction Input: hmm",
		"Action: reflect (function 0)\nAction Input: hmm",
	)

	engine, err := NewReact(provider, "m", specFor(child), []core.Automaton{child}, limits(2))
	if err != nil {
		t.Fatalf("NewReact failed: %v", err)
	}
	_, err = engine.Execute(context.Background(), "task")
	if err == nil {
		t.Fatalf("expected budget exhaustion")
	}
	if !stderrors.Is(err, context.DeadlineExceeded) {
		t.Errorf("exhaustion must report as deadline exceeded, got %v", err)
	}
}

func TestExecuteTimeBudget(t *testing.T) {
	child := &stubChild{name: "x (function 0)"}
	provider := &llm.MockProvider{
		ChatFunc: func(ctx context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		},
	}

	engine, err := NewReact(provider, "m", specFor(child), []core.Automaton{child},
		budget.Limits{MaxIterations: 5, MaxTime: 10 * time.Millisecond})
	if err != nil {
		t.Fatalf("NewReact failed: %v", err)
	}
	_, err = engine.Execute(context.Background(), "task")
	if !stderrors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
}

func TestExecuteChildErrorPropagates(t *testing.T) {
	child := &stubChild{name: "boom (function 0)", err: stderrors.New("leaf exploded")}
	provider := llm.NewScriptedMockProvider("Action: boom (function 0)\nAction Input: x")

	engine, err := NewReact(provider, "m", specFor(child), []core.Automaton{child}, limits(5))
	if err != nil {
		t.Fatalf("NewReact failed: %v", err)
	}
	_, err = engine.Execute(context.Background(), "task")
	if err == nil || !strings.Contains(err.Error(), "leaf exploded") {
		t.Errorf("child error must propagate, got %v", err)
	}
}

func TestNewReactValidation(t *testing.T) {
	if _, err := NewReact(nil, "m", prompt.Spec{}, nil, limits(5)); err == nil {
		t.Errorf("nil provider must be rejected")
	}
	if _, err := NewReact(&llm.MockProvider{}, "m", prompt.Spec{}, nil, budget.Limits{}); err == nil {
		t.Errorf("zero iteration budget must be rejected")
	}
	spec := prompt.Spec{Actions: []prompt.Action{{Name: "ghost"}}}
	if _, err := NewReact(&llm.MockProvider{}, "m", spec, nil, limits(5)); err == nil {
		t.Errorf("catalog entry without a resolved child must be rejected")
	}
}

func TestParseActionMultiline(t *testing.T) {
	name, input, err := parseAction("Thought: save it\nAction: save_file (function 0)\nAction Input: {\"file_name\": \"a\",\n \"content\": \"b\"}")
	if err != nil {
		t.Fatalf("parseAction failed: %v", err)
	}
	if name != "save_file (function 0)" {
		t.Errorf("unexpected action name: %q", name)
	}
	if !strings.Contains(input, `"content": "b"`) {
		t.Errorf("multiline input truncated: %q", input)
	}
}

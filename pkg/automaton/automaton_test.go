package automaton

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jllopis/automata/pkg/function"
	"github.com/jllopis/automata/pkg/llm"
	"github.com/jllopis/automata/pkg/schema"
	"github.com/jllopis/automata/pkg/workspace"
)

// Full stack: a manager node drives the reasoning loop over real leaf
// capabilities backed by a real workspace, with every model turn
// scripted.
func TestHierarchyEndToEnd(t *testing.T) {
	src := schema.Static{
		Declarations: map[string]schema.Declaration{
			"web_dev": {
				Name:        "web_dev",
				Role:        "manager",
				Rank:        1,
				Engine:      "test-model",
				Description: "Builds web sites.",
				SubAutomata: []string{"save_file", "load_file", "finalize"},
			},
			"save_file": {
				Name: "save_file", Role: schema.RoleFunction,
				Description: "Saves a file to the workspace.",
			},
			"load_file": {
				Name: "load_file", Role: schema.RoleFunction,
				Description: "Loads a file from the workspace.",
			},
			"finalize": {
				Name: "finalize", Role: schema.RoleFunction,
				Description: "Finishes the task with an answer.",
			},
		},
		Roles: map[string]schema.RoleTemplate{
			"manager": {
				Description:  "You coordinate sub-automata to complete tasks.",
				OutputFormat: "Respond with Action/Action Input or Final Answer.",
			},
		},
	}

	provider := llm.NewScriptedMockProvider(
		"Thought: save the page first.\n"+
			"Action: save_file (function 0)\n"+
			`Action Input: {"file_name": "index.html", "content": "<h1>Bees</h1>", "description": "landing page"}`,
		"Thought: verify the content.\n"+
			"Action: load_file (function 0)\n"+
			`Action Input: {"file_name": "index.html"}`,
		"Action: finalize (function 0)\n"+
			"Action Input: The site was created; index.html contains <h1>Bees</h1>.",
	)

	dir := t.TempDir()
	store, err := workspace.Open(filepath.Join(dir, "ws"), filepath.Join(dir, "index.db"))
	if err != nil {
		t.Fatalf("open workspace: %v", err)
	}
	defer store.Close()

	loader, err := NewLoader(src,
		WithFunctions(function.NewRegistry(provider, store, nil)),
		WithProvider(provider),
	)
	if err != nil {
		t.Fatalf("NewLoader failed: %v", err)
	}

	ctx := context.Background()
	node, err := loader.Resolve(ctx, "web_dev", "")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if node.Name() != "web_dev (manager 1)" {
		t.Errorf("unexpected node name: %q", node.Name())
	}

	out, err := node.Run(ctx, "Build a one-page site about bees.")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if !strings.Contains(out, "<h1>Bees</h1>") {
		t.Errorf("answer must carry the verified content, got %q", out)
	}

	// The file must exist under the delegating node's workspace scope.
	content, err := store.Load(ctx, "web_dev", "index.html")
	if err != nil {
		t.Fatalf("workspace load failed: %v", err)
	}
	if content != "<h1>Bees</h1>" {
		t.Errorf("unexpected stored content: %q", content)
	}

	// Three reasoning turns, no validator calls.
	if provider.CallCount != 3 {
		t.Errorf("expected 3 model calls, got %d", provider.CallCount)
	}
}

// A nested composite failing on a parse error must surface to its
// delegator as an observation, not as a crash.
func TestNestedFailureSuppressed(t *testing.T) {
	src := schema.Static{
		Declarations: map[string]schema.Declaration{
			"lead": {
				Name: "lead", Role: "manager", Rank: 2, Engine: "test-model",
				Description: "Leads.", SubAutomata: []string{"junior", "finalize"},
			},
			"junior": {
				Name: "junior", Role: "manager", Rank: 1, Engine: "test-model",
				Description: "Assists.", SubAutomata: []string{"finalize"},
			},
			"finalize": {
				Name: "finalize", Role: schema.RoleFunction, Description: "Finishes.",
			},
		},
		Roles: map[string]schema.RoleTemplate{
			"manager": {Description: "Coordinate.", OutputFormat: "Action or Final Answer."},
		},
	}

	provider := llm.NewScriptedMockProvider(
		// lead delegates to junior
		"Action: junior (manager 1)\nAction Input: do the thing",
		// junior emits unparseable output; its supervisor suppresses
		"I am `confused` and cannot decide.",
		// lead sees the suppressed failure as an observation and finishes
		"Final Answer: The junior failed, stopping here.",
	)

	dir := t.TempDir()
	store, err := workspace.Open(filepath.Join(dir, "ws"), filepath.Join(dir, "index.db"))
	if err != nil {
		t.Fatalf("open workspace: %v", err)
	}
	defer store.Close()

	loader, err := NewLoader(src,
		WithFunctions(function.NewRegistry(provider, store, nil)),
		WithProvider(provider),
	)
	if err != nil {
		t.Fatalf("NewLoader failed: %v", err)
	}

	ctx := context.Background()
	node, err := loader.Resolve(ctx, "lead", "")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	out, err := node.Run(ctx, "Do a thing.")
	if err != nil {
		t.Fatalf("nested failure must not crash the delegator: %v", err)
	}
	if out != "The junior failed, stopping here." {
		t.Errorf("unexpected answer: %q", out)
	}

	// The observation handed back to the lead must carry the rewritten,
	// escaped failure text.
	last := provider.Requests[2].Messages
	observation := last[len(last)-1].Content
	if !strings.Contains(observation, "The sub-automaton ran into an error") {
		t.Errorf("expected rewritten failure in observation: %q", observation)
	}
	if !strings.Contains(observation, "```confused```") {
		t.Errorf("expected escaped backticks in observation: %q", observation)
	}
}

// Package validator gates a node's run behind its declared input
// requirements, judged by an auxiliary model call.
package validator

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jllopis/automata/pkg/errors"
	"github.com/jllopis/automata/pkg/llm"
)

const judgeSystem = `You judge whether a task satisfies a list of input requirements.
Reply with a single JSON object and nothing else:
{"success": <true|false>, "message": "<why the task fails the requirements, or empty when it passes>"}
Both keys are required.`

// Gate validates tasks against a node's input requirements.
type Gate struct {
	provider     llm.Provider
	model        string
	nodeName     string
	requirements []string
}

// New builds a gate for the node named nodeName. The model identifier
// comes from the declaration's input_validator_engine field.
func New(provider llm.Provider, model, nodeName string, requirements []string) *Gate {
	return &Gate{
		provider:     provider,
		model:        model,
		nodeName:     nodeName,
		requirements: requirements,
	}
}

// Validate judges the task. It returns (true, "") on acceptance and
// (false, message) on rejection, where message is framed as the node's
// own voice. A verdict missing either contractual field is a
// configuration error, not a rejection.
func (g *Gate) Validate(ctx context.Context, task string) (bool, string, error) {
	input := fmt.Sprintf("Requirements:\n%s\n\nTask:\n%s", bullets(g.requirements), task)
	reply, err := llm.Complete(ctx, g.provider, g.model, judgeSystem, input)
	if err != nil {
		return false, "", err
	}

	verdict, err := parseVerdict(reply)
	if err != nil {
		return false, "", err
	}

	if *verdict.Success {
		return true, "", nil
	}
	message := fmt.Sprintf(
		"%s: I cannot start on this task. %s Please recheck my input requirements and try again.",
		g.nodeName, strings.TrimSpace(*verdict.Message))
	return false, message, nil
}

type verdict struct {
	Success *bool   `json:"success"`
	Message *string `json:"message"`
}

// parseVerdict decodes the judgment call's structured verdict. The wire
// format is one JSON object with the two contractual fields; anything
// else is a contract violation by the judgment call.
func parseVerdict(reply string) (verdict, error) {
	payload := strings.TrimSpace(reply)
	if start := strings.Index(payload, "{"); start >= 0 {
		if end := strings.LastIndex(payload, "}"); end > start {
			payload = payload[start : end+1]
		}
	}

	var v verdict
	if err := json.Unmarshal([]byte(payload), &v); err != nil {
		return verdict{}, errors.New(errors.CodeConfig,
			"input validator verdict is not valid JSON", err).WithContext("reply", reply)
	}
	if v.Success == nil {
		return verdict{}, errors.New(errors.CodeConfig,
			"input validator verdict lacks the success field", nil).WithContext("reply", reply)
	}
	if v.Message == nil {
		return verdict{}, errors.New(errors.CodeConfig,
			"input validator verdict lacks the message field", nil).WithContext("reply", reply)
	}
	return v, nil
}

func bullets(items []string) string {
	if len(items) == 0 {
		return "- None"
	}
	lines := make([]string, len(items))
	for i, item := range items {
		lines[i] = "- " + item
	}
	return strings.Join(lines, "\n")
}

package function

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	stderrors "errors"

	"github.com/jllopis/automata/pkg/errors"
)

type savePayload struct {
	FileName    string `json:"file_name"`
	Content     string `json:"content"`
	Description string `json:"description"`
}

type loadPayload struct {
	FileName string `json:"file_name"`
}

// saveFile persists content under the delegator's workspace scope. A
// malformed payload yields a corrective message, never a failure.
func (r *Registry) saveFile(fullName, delegator string) func(context.Context, string) (string, error) {
	return func(ctx context.Context, task string) (string, error) {
		var payload savePayload
		if err := json.Unmarshal([]byte(task), &payload); err != nil || payload.FileName == "" {
			return `Could not parse input. Please provide the input in the following format: ` +
				`{"file_name": <name>, "content": <content>, "description": <description>}`, nil
		}
		if err := r.store.Save(ctx, delegator, payload.FileName, payload.Content, payload.Description); err != nil {
			if isInvalidInput(err) {
				return err.Error() + " Use a relative path inside the workspace.", nil
			}
			return "", err
		}
		return fmt.Sprintf("%s: saved file to `%s`", fullName, payload.FileName), nil
	}
}

// loadFile retrieves content by relative path, answering a missing path
// with a corrective message that names the listing capability.
func (r *Registry) loadFile(delegator string) func(context.Context, string) (string, error) {
	return func(ctx context.Context, task string) (string, error) {
		var payload loadPayload
		if err := json.Unmarshal([]byte(task), &payload); err != nil || payload.FileName == "" {
			return `Could not parse input. Please provide the input in the following format: ` +
				`{"file_name": <name>}`, nil
		}
		content, err := r.store.Load(ctx, delegator, payload.FileName)
		if err != nil {
			if isNotFound(err) {
				return fmt.Sprintf("File `%s` does not exist in this workspace. "+
					"Use the %s function to see the available files.", payload.FileName, ListFiles), nil
			}
			if isInvalidInput(err) {
				return err.Error() + " Use a relative path inside the workspace.", nil
			}
			return "", err
		}
		return content, nil
	}
}

// listFiles enumerates the delegator's workspace entries with their
// recorded descriptions.
func (r *Registry) listFiles(delegator string) func(context.Context, string) (string, error) {
	return func(ctx context.Context, task string) (string, error) {
		entries, err := r.store.List(ctx, delegator)
		if err != nil {
			if isNotFound(err) {
				return "No files have been saved to this workspace yet.", nil
			}
			return "", err
		}
		if len(entries) == 0 {
			return "No files have been saved to this workspace yet.", nil
		}
		lines := make([]string, len(entries))
		for i, entry := range entries {
			lines[i] = fmt.Sprintf("%s: %s", entry.Name, entry.Description)
		}
		return strings.Join(lines, "\n"), nil
	}
}

func isNotFound(err error) bool {
	var ae *errors.AutomataError
	return stderrors.As(err, &ae) && ae.Code == errors.CodeNotFound
}

func isInvalidInput(err error) bool {
	var ae *errors.AutomataError
	return stderrors.As(err, &ae) && ae.Code == errors.CodeInvalidInput
}

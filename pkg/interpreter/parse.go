package interpreter

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var errNoJSON = errors.New("no JSON object found")

// extractJSON returns the first balanced {...} block in text. Braces inside
// JSON strings are ignored. Surrounding prose and code fences are dropped.
func extractJSON(text string) (string, error) {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return "", errNoJSON
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return text[start : i+1], nil
			}
		}
	}
	return "", fmt.Errorf("%w: unbalanced braces", errNoJSON)
}

// parseResponse extracts and structurally validates the model's reply. The
// object must carry an actions array and a non-empty confirmation string.
func parseResponse(text string) (*Response, error) {
	raw, err := extractJSON(text)
	if err != nil {
		return nil, err
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &fields); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}

	actionsRaw, ok := fields["actions"]
	if !ok || !isArray(actionsRaw) {
		return nil, fmt.Errorf("incomplete AI response: missing actions array")
	}
	var confirmation string
	if err := json.Unmarshal(fields["confirmation"], &confirmation); err != nil || confirmation == "" {
		return nil, fmt.Errorf("incomplete AI response: missing confirmation")
	}

	var rawActions []json.RawMessage
	if err := json.Unmarshal(actionsRaw, &rawActions); err != nil {
		return nil, fmt.Errorf("invalid actions: %w", err)
	}

	resp := &Response{
		Actions:      make([]Action, 0, len(rawActions)),
		Confirmation: confirmation,
	}
	for _, ra := range rawActions {
		resp.Actions = append(resp.Actions, decodeAction(ra))
	}
	if s, ok := fields["suggestions"]; ok {
		// Suggestions are optional decoration; a malformed list is dropped.
		_ = json.Unmarshal(s, &resp.Suggestions)
	}
	return resp, nil
}

// decodeAction is lenient: an entry whose status is not an object keeps a
// nil status and is skipped by the executor instead of failing the reply.
func decodeAction(raw json.RawMessage) Action {
	var a struct {
		DeviceID string          `json:"device_id"`
		Status   json.RawMessage `json:"status"`
	}
	if err := json.Unmarshal(raw, &a); err != nil {
		return Action{}
	}
	action := Action{DeviceID: a.DeviceID}
	_ = json.Unmarshal(a.Status, &action.Status)
	return action
}

func isArray(raw json.RawMessage) bool {
	trimmed := strings.TrimSpace(string(raw))
	return strings.HasPrefix(trimmed, "[")
}

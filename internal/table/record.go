package table

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Record is one step of a test case. The JSON keys are the captions the
// editor's users already exchange, so panel edits round-trip unchanged.
type Record struct {
	Sequence int            `json:"步骤序号"`
	Step     string         `json:"步骤描述"`
	Expected ExpectedResult `json:"预期结果"`
}

// ExpectedResult holds the result lines of a step. It encodes as "" when
// empty, as a string for a single line and as an array otherwise.
type ExpectedResult []string

func (e ExpectedResult) MarshalJSON() ([]byte, error) {
	switch len(e) {
	case 0:
		return []byte(`""`), nil
	case 1:
		return marshalNoEscape(e[0])
	default:
		return marshalNoEscape([]string(e))
	}
}

func (e *ExpectedResult) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*e = nil
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if s == "" {
			*e = nil
		} else {
			*e = ExpectedResult{s}
		}
	case len(data) > 0 && data[0] == '[':
		var items []string
		if err := json.Unmarshal(data, &items); err != nil {
			return err
		}
		*e = items
	default:
		return fmt.Errorf("预期结果: expected string or array, got %s", data)
	}
	return nil
}

// Join joins the lines with sep.
func (e ExpectedResult) Join(sep string) string {
	return strings.Join(e, sep)
}

func marshalNoEscape(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

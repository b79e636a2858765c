package prompts

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// StoryPayload is the JSON contract for generated story segments.
type StoryPayload struct {
	Text    string   `json:"text"`
	Choices []string `json:"choices"`
}

// ParseStory decodes a model reply into a story payload. Models sometimes
// wrap the JSON in code fences despite instructions; fences are stripped
// before decoding. A reply without usable text is an error, never a partial
// segment.
func ParseStory(raw string) (StoryPayload, error) {
	cleaned := stripFences(raw)

	var payload StoryPayload
	if err := json.Unmarshal([]byte(cleaned), &payload); err != nil {
		return StoryPayload{}, fmt.Errorf("malformed story payload: %w", err)
	}
	if strings.TrimSpace(payload.Text) == "" {
		return StoryPayload{}, fmt.Errorf("story payload missing text")
	}
	if payload.Choices == nil {
		payload.Choices = []string{}
	}
	return payload, nil
}

var quotedString = regexp.MustCompile(`"((?:[^"\\]|\\.)+)"`)

// ParseMessages decodes the generator reply into message options. When the
// JSON does not decode, quoted strings are salvaged from the raw text before
// giving up.
func ParseMessages(raw string) ([]string, error) {
	cleaned := stripFences(raw)

	var payload struct {
		Messages []string `json:"messages"`
	}
	if err := json.Unmarshal([]byte(cleaned), &payload); err == nil && len(payload.Messages) > 0 {
		if len(payload.Messages) > 3 {
			payload.Messages = payload.Messages[:3]
		}
		return payload.Messages, nil
	}

	matches := quotedString.FindAllStringSubmatch(cleaned, -1)
	var salvaged []string
	for _, m := range matches {
		s := m[1]
		if s == "messages" {
			continue
		}
		salvaged = append(salvaged, s)
		if len(salvaged) == 3 {
			break
		}
	}
	if len(salvaged) >= 3 {
		return salvaged, nil
	}

	return nil, fmt.Errorf("malformed generator payload")
}

func stripFences(raw string) string {
	cleaned := strings.TrimSpace(raw)
	if strings.HasPrefix(cleaned, "```") {
		cleaned = strings.TrimPrefix(cleaned, "```json")
		cleaned = strings.TrimPrefix(cleaned, "```")
		cleaned = strings.TrimSuffix(strings.TrimSpace(cleaned), "```")
	}
	return strings.TrimSpace(cleaned)
}

// Package format renders raw agent output payloads as plain text lines.
package format

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Line prefixes for the non-prose parts of a payload.
const (
	ToolMarker   = "$ "
	OutputMarker = "  "
)

type payload struct {
	Type    string   `json:"type"`
	Subtype string   `json:"subtype"`
	Message *message `json:"message"`
	Result  string   `json:"result"`
	IsError bool     `json:"is_error"`
	Model   string   `json:"model"`
	Session string   `json:"session_id"`
}

type message struct {
	Content json.RawMessage `json:"content"`
}

type block struct {
	Type    string          `json:"type"`
	Text    string          `json:"text"`
	Name    string          `json:"name"`
	Input   json.RawMessage `json:"input"`
	Content json.RawMessage `json:"content"`
	IsError bool            `json:"is_error"`
}

// PlainRenderer formats payloads as plain text lines.
type PlainRenderer struct{}

// NewPlainRenderer returns a default plain-text renderer.
func NewPlainRenderer() *PlainRenderer {
	return &PlainRenderer{}
}

// FormatPayload converts a raw payload into user-facing lines. Payloads that
// are not JSON objects are shown verbatim.
func (p *PlainRenderer) FormatPayload(raw string) []string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil
	}
	var event payload
	if !strings.HasPrefix(trimmed, "{") || json.Unmarshal([]byte(trimmed), &event) != nil {
		return splitLines(raw)
	}
	switch event.Type {
	case "assistant":
		return formatContent(event.Message, false)
	case "user":
		return formatContent(event.Message, true)
	case "result":
		if event.IsError {
			if event.Result == "" {
				return []string{"error: unknown"}
			}
			return []string{fmt.Sprintf("error: %s", event.Result)}
		}
		if event.Result == "" {
			return []string{"done"}
		}
		return splitLines(event.Result)
	case "system":
		if event.Subtype == "init" && event.Model != "" {
			return []string{fmt.Sprintf("session started (%s)", event.Model)}
		}
		return nil
	case "":
		return splitLines(raw)
	default:
		return []string{fmt.Sprintf("%s event", event.Type)}
	}
}

func formatContent(msg *message, toolResults bool) []string {
	if msg == nil || len(msg.Content) == 0 {
		return nil
	}
	var text string
	if json.Unmarshal(msg.Content, &text) == nil {
		if toolResults {
			return nil
		}
		return splitLines(text)
	}
	var blocks []block
	if err := json.Unmarshal(msg.Content, &blocks); err != nil {
		return nil
	}
	lines := []string{}
	for _, b := range blocks {
		switch b.Type {
		case "text":
			lines = append(lines, splitLines(b.Text)...)
		case "tool_use":
			lines = append(lines, ToolMarker+formatToolUse(b))
		case "tool_result":
			lines = append(lines, markLines(OutputMarker, toolResultLines(b))...)
		}
	}
	return lines
}

func formatToolUse(b block) string {
	name := strings.TrimSpace(b.Name)
	if name == "" {
		name = "tool"
	}
	input := strings.TrimSpace(string(b.Input))
	if input == "" || input == "{}" || input == "null" {
		return name
	}
	var fields map[string]any
	if json.Unmarshal(b.Input, &fields) == nil {
		if cmd, ok := fields["command"].(string); ok && cmd != "" {
			return fmt.Sprintf("%s %s", name, cmd)
		}
	}
	return fmt.Sprintf("%s %s", name, input)
}

func toolResultLines(b block) []string {
	var lines []string
	var text string
	if json.Unmarshal(b.Content, &text) == nil {
		lines = splitLines(strings.TrimRight(text, "\n"))
	} else {
		var parts []block
		if json.Unmarshal(b.Content, &parts) == nil {
			for _, part := range parts {
				if part.Type == "text" {
					lines = append(lines, splitLines(strings.TrimRight(part.Text, "\n"))...)
				}
			}
		}
	}
	if b.IsError {
		lines = append([]string{"tool error:"}, lines...)
	}
	return lines
}

func splitLines(text string) []string {
	if text == "" {
		return nil
	}
	return strings.Split(text, "\n")
}

func markLines(marker string, lines []string) []string {
	if marker == "" || len(lines) == 0 {
		return lines
	}
	marked := make([]string, 0, len(lines))
	for _, line := range lines {
		marked = append(marked, marker+line)
	}
	return marked
}

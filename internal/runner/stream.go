package runner

import (
	"bytes"
	"encoding/json"
	"strings"
)

// EventKind tags a structured output event from the external CLI.
type EventKind string

// Event kinds. Tools that do not emit a structured stream degrade to one
// EventText per output line.
const (
	EventToolStart EventKind = "tool_start"
	EventText      EventKind = "text"
	EventSystem    EventKind = "system"
	EventResult    EventKind = "result"
)

// OutputEvent is one parsed unit of subprocess output.
type OutputEvent struct {
	Kind EventKind

	// Text carries message content for text/system events and the final
	// result text for result events.
	Text string

	// Tool and ToolInput are set on tool_start events.
	Tool      string
	ToolInput string

	// Result metrics, set on result events when the CLI reports them.
	SessionID    string
	DurationMs   int64
	CostUSD      float64
	InputTokens  int
	OutputTokens int
	NumTurns     int
	IsError      bool

	// Raw is the original line, kept for diagnostics.
	Raw string
}

// streamLine mirrors the newline-delimited JSON events emitted by CLIs in
// stream-json mode (claude --output-format stream-json and compatible tools).
type streamLine struct {
	Type    string `json:"type"`
	Subtype string `json:"subtype"`
	Result  string `json:"result"`
	IsError bool   `json:"is_error"`

	SessionID  string  `json:"session_id"`
	DurationMs int64   `json:"duration_ms"`
	NumTurns   int     `json:"num_turns"`
	CostUSD    float64 `json:"total_cost_usd"`

	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`

	Message struct {
		Content []contentBlock `json:"content"`
	} `json:"message"`

	Event struct {
		Type  string `json:"type"`
		Delta struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"delta"`
	} `json:"event"`
}

type contentBlock struct {
	Type  string          `json:"type"`
	Text  string          `json:"text"`
	Name  string          `json:"name"`
	Input json.RawMessage `json:"input"`
}

// ParseLine turns one line of subprocess output into structured events.
// JSON stream events map to their variants; anything else becomes a single
// text event. A structured line can yield several events (an assistant
// message may carry text and tool-use blocks together).
func ParseLine(line string) []OutputEvent {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return nil
	}

	if !strings.HasPrefix(trimmed, "{") {
		return []OutputEvent{{Kind: EventText, Text: line, Raw: line}}
	}

	var sl streamLine
	if err := json.Unmarshal([]byte(trimmed), &sl); err != nil || sl.Type == "" {
		return []OutputEvent{{Kind: EventText, Text: line, Raw: line}}
	}

	switch sl.Type {
	case "system":
		return []OutputEvent{{
			Kind:      EventSystem,
			Text:      sl.Subtype,
			SessionID: sl.SessionID,
			Raw:       line,
		}}

	case "assistant", "user":
		var events []OutputEvent
		for _, block := range sl.Message.Content {
			switch block.Type {
			case "tool_use":
				events = append(events, OutputEvent{
					Kind:      EventToolStart,
					Tool:      block.Name,
					ToolInput: compactJSON(block.Input),
					Raw:       line,
				})
			case "text":
				if block.Text != "" {
					events = append(events, OutputEvent{Kind: EventText, Text: block.Text, Raw: line})
				}
			}
		}
		if len(events) == 0 {
			return nil
		}
		return events

	case "stream_event":
		if sl.Event.Delta.Type == "text_delta" && sl.Event.Delta.Text != "" {
			return []OutputEvent{{Kind: EventText, Text: sl.Event.Delta.Text, Raw: line}}
		}
		return nil

	case "result":
		return []OutputEvent{{
			Kind:         EventResult,
			Text:         sl.Result,
			SessionID:    sl.SessionID,
			DurationMs:   sl.DurationMs,
			CostUSD:      sl.CostUSD,
			InputTokens:  sl.Usage.InputTokens,
			OutputTokens: sl.Usage.OutputTokens,
			NumTurns:     sl.NumTurns,
			IsError:      sl.IsError || sl.Subtype == "error",
			Raw:          line,
		}}
	}

	// Unknown structured type: surface it as text rather than dropping it.
	return []OutputEvent{{Kind: EventText, Text: line, Raw: line}}
}

// compactJSON renders a raw JSON value on one line, or "" when absent.
func compactJSON(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return string(raw)
	}
	return buf.String()
}

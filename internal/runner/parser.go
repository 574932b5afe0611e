package runner

import (
	"encoding/json"
	"strings"
	"sync"
	"time"

	"leadscout/internal/domain/model"
)

// Parser incrementally splits raw subprocess output into log entries.
// Chunks arrive at arbitrary byte boundaries, so a pending partial-line
// buffer is kept per job until its newline completes it.
type Parser struct {
	mu      sync.Mutex
	pending map[string]string
}

func NewParser() *Parser {
	return &Parser{pending: map[string]string{}}
}

// toolEvent is the external tool's own line framing: self-contained JSON
// objects describing tool calls, tool results and assistant messages.
type toolEvent struct {
	Type    string `json:"type"`
	Name    string `json:"name,omitempty"`
	Tool    string `json:"tool,omitempty"`
	Message string `json:"message,omitempty"`
	Content string `json:"content,omitempty"`
	Text    string `json:"text,omitempty"`
}

// Feed appends chunk to the job's pending buffer and returns entries for
// every line the chunk completed, in output order. The trailing fragment
// (if any) is stashed for the next call.
func (p *Parser) Feed(jobID, chunk string) []model.LogEntry {
	p.mu.Lock()
	buf := p.pending[jobID] + chunk
	lines := strings.Split(buf, "\n")
	p.pending[jobID] = lines[len(lines)-1]
	lines = lines[:len(lines)-1]
	p.mu.Unlock()

	var out []model.LogEntry
	for _, line := range lines {
		if e, ok := parseLine(line); ok {
			out = append(out, e)
		}
	}
	return out
}

// Flush completes the pending fragment as a final line, used on process
// exit so trailing unterminated output is not lost.
func (p *Parser) Flush(jobID string) []model.LogEntry {
	p.mu.Lock()
	buf := p.pending[jobID]
	delete(p.pending, jobID)
	p.mu.Unlock()
	if strings.TrimSpace(buf) == "" {
		return nil
	}
	if e, ok := parseLine(buf); ok {
		return []model.LogEntry{e}
	}
	return nil
}

// Reset drops the job's pending buffer.
func (p *Parser) Reset(jobID string) {
	p.mu.Lock()
	delete(p.pending, jobID)
	p.mu.Unlock()
}

// parseLine classifies one complete line. Structured events map to typed
// entries; non-JSON lines pass through raw; malformed JSON-shaped lines are
// dropped silently; the tool's framing is not this system's contract to
// enforce.
func parseLine(line string) (model.LogEntry, bool) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return model.LogEntry{}, false
	}

	if strings.HasPrefix(trimmed, "{") {
		var ev toolEvent
		if err := json.Unmarshal([]byte(trimmed), &ev); err != nil {
			return model.LogEntry{}, false
		}
		return entryFromEvent(ev, trimmed), true
	}

	return model.LogEntry{
		Kind:      model.LogKindRaw,
		Content:   line,
		Timestamp: time.Now(),
	}, true
}

func entryFromEvent(ev toolEvent, raw string) model.LogEntry {
	e := model.LogEntry{Timestamp: time.Now()}
	tool := ev.Name
	if tool == "" {
		tool = ev.Tool
	}
	content := ev.Message
	if content == "" {
		content = ev.Content
	}
	if content == "" {
		content = ev.Text
	}

	switch ev.Type {
	case "tool_call", "tool-call":
		e.Kind = model.LogKindToolCall
		e.ToolName = tool
		if content == "" {
			content = "calling " + tool
		}
	case "tool_result", "tool-result":
		e.Kind = model.LogKindToolResult
		e.ToolName = tool
	case "error":
		e.Kind = model.LogKindError
	case "assistant", "message", "info":
		e.Kind = model.LogKindInfo
	default:
		// Unknown but well-formed event: keep it visible as info with the
		// raw JSON so nothing structured is silently discarded.
		e.Kind = model.LogKindInfo
		if content == "" {
			content = raw
		}
	}
	e.Content = content
	return e
}

// Package agent implements the reasoning loop: one completion per user
// query, parsed as a labeled trace, with tool calls dispatched in trace
// order as the parse proceeds.
package agent

import (
	"time"

	"github.com/gharkhoji/gharkhoji/internal/tools"
)

// Step kinds as they appear in a parsed trace.
const (
	StepThought     = "thought"
	StepAction      = "action"
	StepObservation = "observation"
)

// Step is one typed entry in a reasoning trace. Action steps carry the
// tool name and input; observation steps carry the real tool result and
// its rendered text. Steps are immutable once appended.
type Step struct {
	Kind        string        `json:"kind"`
	Text        string        `json:"text,omitempty"`
	ActionName  string        `json:"action_name,omitempty"`
	ActionInput string        `json:"action_input,omitempty"`
	ToolResult  *tools.Result `json:"tool_result,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
}

// Response is the complete outcome of one ProcessQuery call.
// NeedsClarification is a phrasing heuristic, not a model signal.
type Response struct {
	Steps              []Step   `json:"steps"`
	FinalAnswer        string   `json:"final_answer"`
	IsComplete         bool     `json:"is_complete"`
	NeedsClarification bool     `json:"needs_clarification"`
	ToolsUsed          []string `json:"tools_used,omitempty"`
	SessionID          string   `json:"session_id,omitempty"`
}

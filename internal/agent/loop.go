package agent

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/gharkhoji/gharkhoji/internal/events"
	"github.com/gharkhoji/gharkhoji/internal/llm"
	"github.com/gharkhoji/gharkhoji/internal/memory"
	"github.com/gharkhoji/gharkhoji/internal/prompts"
	"github.com/gharkhoji/gharkhoji/internal/tools"
)

// historyWindow is how many trailing conversation messages are folded
// into the prompt for a known user.
const historyWindow = 10

// apologyAnswer is the user-facing text for any internal failure. Raw
// errors and stack traces never reach the user.
const apologyAnswer = "I'm sorry, I ran into a problem while working on that. Please try again in a moment."

// Deps are the Loop collaborators. Memory may be nil for a stateless
// loop, and a nil Bus drops events.
type Deps struct {
	LLM      llm.Client
	Model    string
	Registry *tools.Registry
	Memory   *memory.Manager
	Bus      *events.Bus
	Logger   *slog.Logger
}

// Loop produces one Response per user query. A single completion is
// requested per call; the model writes its whole reasoning trace in
// one shot and the parser swaps the model's guessed observations for
// real tool output as it reads the trace.
type Loop struct {
	llm      llm.Client
	model    string
	registry *tools.Registry
	memory   *memory.Manager
	bus      *events.Bus
	logger   *slog.Logger
	now      func() time.Time
}

// NewLoop creates the agent loop.
func NewLoop(deps Deps) *Loop {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Loop{
		llm:      deps.LLM,
		model:    deps.Model,
		registry: deps.Registry,
		memory:   deps.Memory,
		bus:      deps.Bus,
		logger:   logger.With("component", "agent"),
		now:      time.Now,
	}
}

// ProcessQuery answers one user query. userID may be empty for a
// stateless exchange. It never returns an error: failures, including
// panics below this frame, fold into an apology response that still
// carries whatever steps were collected first.
func (l *Loop) ProcessQuery(ctx context.Context, query, userID string) (resp *Response) {
	var steps []Step
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("query processing panicked", "panic", r, "user", userID)
			resp = apology(steps)
		}
	}()

	start := l.now()
	l.bus.Emit(events.SourceAgent, events.KindRequestStart, map[string]any{
		"user":  userID,
		"query": query,
	})

	var sess *memory.Session
	if userID != "" && l.memory != nil {
		sess = l.memory.InitializeSession(ctx, userID)
		l.memory.AddToSearchHistory(ctx, userID, query)
	}

	msgs := l.buildPrompt(query, userID)

	l.bus.Emit(events.SourceAgent, events.KindLLMCall, map[string]any{
		"model":    l.model,
		"messages": len(msgs),
	})
	completion, err := l.llm.Chat(ctx, l.model, msgs)
	if err != nil {
		l.logger.Error("completion failed", "error", err, "model", l.model)
		l.bus.Emit(events.SourceAgent, events.KindRequestComplete, map[string]any{
			"user":  userID,
			"error": "completion failed",
		})
		return apology(steps)
	}
	l.bus.Emit(events.SourceAgent, events.KindLLMResponse, map[string]any{
		"model":         completion.Model,
		"input_tokens":  completion.InputTokens,
		"output_tokens": completion.OutputTokens,
	})

	tr := parseTrace(completion.Message.Content, l.dispatch(ctx), l.now)
	steps = tr.steps

	resp = &Response{
		Steps:              tr.steps,
		FinalAnswer:        tr.finalAnswer,
		IsComplete:         true,
		NeedsClarification: needsClarification(tr.finalAnswer),
		ToolsUsed:          toolsUsed(tr.steps),
	}
	if sess != nil {
		resp.SessionID = sess.ID
		l.persistExchange(ctx, userID, query, resp)
	}

	l.logger.Info("query processed",
		"user", userID,
		"steps", len(resp.Steps),
		"tools", resp.ToolsUsed,
		"clarify", resp.NeedsClarification,
	)
	l.bus.Emit(events.SourceAgent, events.KindRequestComplete, map[string]any{
		"user":        userID,
		"steps":       len(resp.Steps),
		"tools":       resp.ToolsUsed,
		"clarify":     resp.NeedsClarification,
		"duration_ms": l.now().Sub(start).Milliseconds(),
	})
	return resp
}

// buildPrompt assembles the completion messages: the system prompt with
// the live tool catalog, then for known users a preference preamble and
// the trailing window of conversation history, then the query itself.
func (l *Loop) buildPrompt(query, userID string) []llm.Message {
	msgs := []llm.Message{{
		Role:    "system",
		Content: prompts.SystemPrompt(l.registry.Catalog()),
	}}

	if userID != "" && l.memory != nil {
		if prefs := l.memory.Preferences(userID); prefs != nil {
			if known := prefs.Summary(); known != "" {
				msgs = append(msgs, llm.Message{
					Role:    "system",
					Content: prompts.Preamble(known),
				})
			}
		}
		history := l.memory.ConversationContext(userID)
		if len(history) > historyWindow {
			history = history[len(history)-historyWindow:]
		}
		for _, m := range history {
			msgs = append(msgs, llm.Message{Role: m.Role, Content: m.Content})
		}
	}

	msgs = append(msgs, llm.Message{Role: "user", Content: query})
	return msgs
}

// dispatch adapts the registry to the parser's dispatch shape, wrapping
// each execution in tool_call / tool_done events.
func (l *Loop) dispatch(ctx context.Context) dispatchFunc {
	return func(name, input string) tools.Result {
		l.bus.Emit(events.SourceAgent, events.KindToolCall, map[string]any{
			"tool":  name,
			"input": input,
		})
		res := l.registry.Execute(ctx, name, input)
		l.bus.Emit(events.SourceAgent, events.KindToolDone, map[string]any{
			"tool":        name,
			"success":     res.Success,
			"duration_ms": res.ExecutionTimeMs,
		})
		return res
	}
}

// persistExchange stores the user query and the final answer. Assistant
// metadata captures every tool call and the full step list so a UI can
// replay the exchange later. Persistence failures are logged, never
// surfaced.
func (l *Loop) persistExchange(ctx context.Context, userID, query string, resp *Response) {
	err := l.memory.AddMessage(ctx, userID, memory.Message{
		Role:    memory.RoleUser,
		Content: query,
	})
	if err != nil {
		l.logger.Warn("persist user message failed", "error", err)
	}

	meta := &memory.Metadata{ToolCalls: toolCalls(resp.Steps)}
	if raw, err := json.Marshal(resp.Steps); err == nil {
		meta.ReasoningSteps = raw
	}
	err = l.memory.AddMessage(ctx, userID, memory.Message{
		Role:     memory.RoleAssistant,
		Content:  resp.FinalAnswer,
		Metadata: meta,
	})
	if err != nil {
		l.logger.Warn("persist assistant message failed", "error", err)
	}
}

// toolCalls pairs each action step with the observation that follows it.
func toolCalls(steps []Step) []memory.ToolCall {
	var calls []memory.ToolCall
	for i, s := range steps {
		if s.Kind != StepAction {
			continue
		}
		call := memory.ToolCall{Name: s.ActionName, Input: s.ActionInput}
		if i+1 < len(steps) && steps[i+1].Kind == StepObservation && steps[i+1].ToolResult != nil {
			if raw, err := json.Marshal(steps[i+1].ToolResult); err == nil {
				call.Result = raw
			}
		}
		calls = append(calls, call)
	}
	return calls
}

// toolsUsed lists the distinct tool names in first-use order.
func toolsUsed(steps []Step) []string {
	var used []string
	for _, s := range steps {
		if s.Kind != StepAction {
			continue
		}
		seen := false
		for _, u := range used {
			if u == s.ActionName {
				seen = true
				break
			}
		}
		if !seen {
			used = append(used, s.ActionName)
		}
	}
	return used
}

// apology folds a failure into a completed response. Partial steps are
// kept for observability.
func apology(steps []Step) *Response {
	return &Response{
		Steps:       steps,
		FinalAnswer: apologyAnswer,
		IsComplete:  true,
	}
}

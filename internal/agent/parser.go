package agent

import (
	"regexp"
	"strings"
	"time"

	"github.com/gharkhoji/gharkhoji/internal/tools"
)

// maxSteps caps step growth on pathological completions. One completion
// rarely yields more than a handful of steps; the cap is a guard, not
// an iteration budget.
const maxSteps = 15

// defaultAnswer stands in when a completion carries no final answer at
// all. It is phrased as a question so the clarification heuristic
// fires and the UI prompts the user instead of showing nothing.
const defaultAnswer = "I need a bit more information to help you properly. Could you tell me the property type, the area, and your budget range?"

// finalAnswerRe recovers a trailing final answer from completions that
// drift off the line grammar.
var finalAnswerRe = regexp.MustCompile(`(?is)final answer:\s*(.+)$`)

// dispatchFunc executes one tool call and returns its result. The
// parser takes it as a value so it stays free of registry wiring.
type dispatchFunc func(name, input string) tools.Result

// trace is the parsed form of one completion.
type trace struct {
	steps       []Step
	finalAnswer string
}

// traceLabels are the only line prefixes the parser reacts to.
var traceLabels = []string{"Thought:", "Action:", "Action Input:", "Final Answer:", "Observation:"}

func isLabeled(line string) bool {
	for _, l := range traceLabels {
		if strings.HasPrefix(line, l) {
			return true
		}
	}
	return false
}

// parseTrace scans one completion line by line. Thought lines become
// steps immediately; an Action line opens a pending action that its
// Action Input line completes and dispatches on the spot, so
// observation order in steps is actual execution order. Lines outside
// the label grammar are ignored, and Observation lines written by the
// model are discarded: observations only ever come from real dispatch.
// A Final Answer line ends the scan and the answer is everything after
// the label, to the end of the completion. parseTrace never fails;
// malformed traces just produce shorter step lists.
func parseTrace(text string, dispatch dispatchFunc, now func() time.Time) trace {
	var tr trace
	lines := strings.Split(text, "\n")

	var pendingAction string

scan:
	for i := 0; i < len(lines); i++ {
		if len(tr.steps) >= maxSteps {
			break
		}
		line := strings.TrimSpace(lines[i])

		switch {
		case strings.HasPrefix(line, "Thought:"):
			tr.steps = append(tr.steps, Step{
				Kind:      StepThought,
				Text:      strings.TrimSpace(strings.TrimPrefix(line, "Thought:")),
				CreatedAt: now(),
			})

		case strings.HasPrefix(line, "Action:"):
			pendingAction = strings.TrimSpace(strings.TrimPrefix(line, "Action:"))

		case strings.HasPrefix(line, "Action Input:"):
			if pendingAction == "" {
				continue
			}
			input := strings.TrimSpace(strings.TrimPrefix(line, "Action Input:"))
			if input == "" {
				// Some models put the input on the line below the label.
				for j := i + 1; j < len(lines); j++ {
					next := strings.TrimSpace(lines[j])
					if next == "" {
						continue
					}
					if !isLabeled(next) {
						input = next
						i = j
					}
					break
				}
			}

			tr.steps = append(tr.steps, Step{
				Kind:        StepAction,
				ActionName:  pendingAction,
				ActionInput: input,
				CreatedAt:   now(),
			})
			res := dispatch(pendingAction, input)
			tr.steps = append(tr.steps, Step{
				Kind:       StepObservation,
				Text:       tools.Render(pendingAction, res),
				ToolResult: &res,
				CreatedAt:  now(),
			})
			pendingAction = ""

		case strings.HasPrefix(line, "Final Answer:"):
			rest := make([]string, 0, len(lines)-i)
			rest = append(rest, strings.TrimPrefix(line, "Final Answer:"))
			rest = append(rest, lines[i+1:]...)
			tr.finalAnswer = strings.TrimSpace(strings.Join(rest, "\n"))
			break scan

		case strings.HasPrefix(line, "Observation:"):
			// Model-written observation. Never trusted, never kept.
		}
	}

	if tr.finalAnswer == "" {
		if m := finalAnswerRe.FindStringSubmatch(text); m != nil {
			tr.finalAnswer = strings.TrimSpace(m[1])
		}
	}
	if tr.finalAnswer == "" {
		tr.finalAnswer = defaultAnswer
	}
	return tr
}

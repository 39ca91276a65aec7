package prompts

import "fmt"

// preambleTemplate personalizes a session with what we already know
// about the user. The single format verb is the rendered preference
// summary.
const preambleTemplate = `## Known User Context
%s

Use these details when they are relevant to the request. Do NOT ask the user again for anything listed above; only ask about what is genuinely missing.`

// Preamble returns the personalized system preamble for a user whose
// preferences have been summarized into known. Callers skip the
// preamble entirely when nothing is known yet.
func Preamble(known string) string {
	return fmt.Sprintf(preambleTemplate, known)
}

package prompts

import "fmt"

// titleTemplate is the prompt sent to an LLM to name an untitled
// session, like an email subject line. The single format verb is the
// conversation transcript.
const titleTemplate = `Write a short title for this property-search conversation, like an email subject. At most eight words. Mention the property type or area when the conversation has one.

Respond as JSON with exactly this field:

{"title": "your title here"}

Conversation:
%s

JSON:`

// SessionTitle returns the fully interpolated session titling prompt.
func SessionTitle(transcript string) string {
	return fmt.Sprintf(titleTemplate, transcript)
}

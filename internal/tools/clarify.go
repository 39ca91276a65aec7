package tools

import (
	"context"
	"strings"
)

// detailCategories is the fixed menu of details worth asking a property
// seeker for, returned with every clarification.
var detailCategories = []string{
	"property type (apartment, house, land, commercial)",
	"budget range",
	"preferred location",
	"number of rooms",
	"rent or purchase",
	"desired amenities",
}

// clarifyPayload is the Clarify tool envelope.
type clarifyPayload struct {
	Question   string   `json:"question"`
	Categories []string `json:"categories"`
}

// handleClarify always succeeds. It is both an explicit agent action
// and a UI signal that the conversation needs user input.
func (r *Registry) handleClarify(ctx context.Context, input string) (any, error) {
	q := strings.TrimSpace(input)
	if q == "" {
		q = "Could you tell me more about what you're looking for?"
	}
	return clarifyPayload{Question: q, Categories: detailCategories}, nil
}

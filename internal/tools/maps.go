package tools

import (
	"context"

	"github.com/gharkhoji/gharkhoji/internal/places"
)

// mapsPayload is the Maps tool envelope. Source is "google" for live
// lookups and "fallback" for synthesized data.
type mapsPayload struct {
	Query    string         `json:"query"`
	AreaInfo string         `json:"area_info,omitempty"`
	Places   []places.Place `json:"places"`
	Commute  string         `json:"commute,omitempty"`
	Source   string         `json:"source"`
}

// handleMaps never fails: when the provider is missing or errors, it
// synthesizes a best-effort payload so the agent can keep helping the
// user. Availability over accuracy, marked by the source field.
func (r *Registry) handleMaps(ctx context.Context, input string) (any, error) {
	if r.places != nil {
		found, err := r.places.TextSearch(ctx, input)
		if err == nil {
			if found == nil {
				found = []places.Place{}
			}
			return mapsPayload{Query: input, Places: found, Source: "google"}, nil
		}
		r.logger.Warn("places lookup failed, serving fallback", "query", input, "error", err)
	}

	return mapsPayload{
		Query:    input,
		AreaInfo: "Established residential area of the Kathmandu valley with local markets, schools, and healthcare within reach.",
		Places:   places.Fallback(input),
		Commute:  "Typical commute: 15-30 minutes to the city center by road, longer during peak hours.",
		Source:   "fallback",
	}, nil
}

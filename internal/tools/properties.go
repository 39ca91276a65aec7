package tools

import (
	"context"
	"errors"

	"github.com/gharkhoji/gharkhoji/internal/listings"
)

// propertiesPayload is the PropertyDatabase tool envelope: the parsed
// criteria, the top matches, and corpus statistics.
type propertiesPayload struct {
	Query    string             `json:"query"`
	Criteria listings.Criteria  `json:"criteria"`
	Matches  []listings.Listing `json:"matches"`
	Stats    *listings.Stats    `json:"stats"`
}

func (r *Registry) handlePropertyDatabase(ctx context.Context, input string) (any, error) {
	if r.listings == nil {
		return nil, errors.New("listings store is not configured")
	}

	criteria := listings.ParseCriteria(input)
	matches, err := r.listings.Search(ctx, criteria)
	if err != nil {
		return nil, err
	}
	stats, err := r.listings.Stats(ctx)
	if err != nil {
		return nil, err
	}

	if matches == nil {
		matches = []listings.Listing{}
	}
	return propertiesPayload{
		Query:    input,
		Criteria: criteria,
		Matches:  matches,
		Stats:    stats,
	}, nil
}

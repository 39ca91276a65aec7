package tools

import (
	"context"
	"errors"

	"github.com/gharkhoji/gharkhoji/internal/market"
)

// marketPayload is the MarketAnalysis tool envelope.
type marketPayload struct {
	Topic  string         `json:"topic"`
	Report *market.Report `json:"report"`
}

func (r *Registry) handleMarketAnalysis(ctx context.Context, input string) (any, error) {
	if r.analyst == nil {
		return nil, errors.New("market analysis is not configured")
	}

	report, err := r.analyst.Analyze(ctx, input)
	if err != nil {
		return nil, err
	}
	return marketPayload{Topic: input, Report: report}, nil
}

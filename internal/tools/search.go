package tools

import (
	"context"
	"errors"

	"github.com/gharkhoji/gharkhoji/internal/search"
)

// searchPayload is the Search tool's success envelope.
type searchPayload struct {
	Query     string              `json:"query"`
	Organic   []search.Result     `json:"organic"`
	News      []search.NewsResult `json:"news,omitempty"`
	Related   []string            `json:"related,omitempty"`
	AnswerBox *search.AnswerBox   `json:"answer_box,omitempty"`
}

func (r *Registry) handleSearch(ctx context.Context, input string) (any, error) {
	if r.search == nil || !r.search.Configured() {
		return nil, errors.New("web search is not configured")
	}

	resp, err := r.search.Search(ctx, input, search.Options{
		Location:    r.searchLocation,
		IncludeNews: true,
	})
	if err != nil {
		return nil, err
	}

	organic := resp.Organic
	if organic == nil {
		organic = []search.Result{}
	}
	return searchPayload{
		Query:     resp.Query,
		Organic:   organic,
		News:      resp.News,
		Related:   resp.Related,
		AnswerBox: resp.AnswerBox,
	}, nil
}

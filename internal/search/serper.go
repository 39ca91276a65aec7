package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gharkhoji/gharkhoji/internal/httpkit"
)

const serperAPIURL = "https://google.serper.dev/search"

// Serper implements the Provider interface for the Serper.dev Google
// search API.
type Serper struct {
	apiKey     string
	endpoint   string
	httpClient *http.Client
}

// NewSerper creates a Serper provider.
func NewSerper(apiKey string) *Serper {
	return &Serper{
		apiKey:   apiKey,
		endpoint: serperAPIURL,
		httpClient: httpkit.NewClient(
			httpkit.WithTimeout(15 * time.Second),
		),
	}
}

func (s *Serper) Name() string { return "serper" }

// serperRequest is the JSON body for Serper's /search endpoint.
type serperRequest struct {
	Q        string `json:"q"`
	Location string `json:"location,omitempty"`
	Num      int    `json:"num,omitempty"`
}

// serperResponse is the JSON response from Serper. Organic result URLs
// arrive under "link", not "url".
type serperResponse struct {
	Organic []struct {
		Title    string `json:"title"`
		Link     string `json:"link"`
		Snippet  string `json:"snippet"`
		Position int    `json:"position"`
	} `json:"organic"`
	News []struct {
		Title   string `json:"title"`
		Link    string `json:"link"`
		Snippet string `json:"snippet"`
		Source  string `json:"source"`
		Date    string `json:"date"`
	} `json:"news"`
	TopStories []struct {
		Title  string `json:"title"`
		Link   string `json:"link"`
		Source string `json:"source"`
		Date   string `json:"date"`
	} `json:"topStories"`
	RelatedSearches []struct {
		Query string `json:"query"`
	} `json:"relatedSearches"`
	AnswerBox *struct {
		Answer  string `json:"answer"`
		Snippet string `json:"snippet"`
		Title   string `json:"title"`
		Link    string `json:"link"`
	} `json:"answerBox"`
}

func (s *Serper) Search(ctx context.Context, query string, opts Options) (*Response, error) {
	count := opts.Count
	if count == 0 {
		count = 5
	}

	body, err := json.Marshal(serperRequest{
		Q:        query,
		Location: opts.Location,
		Num:      count,
	})
	if err != nil {
		return nil, fmt.Errorf("serper: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("serper: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-KEY", s.apiKey)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("serper: request failed: %w", err)
	}
	defer httpkit.DrainAndClose(resp.Body, 4096)

	if resp.StatusCode != http.StatusOK {
		errBody := httpkit.ReadErrorBody(resp.Body, 512)
		return nil, fmt.Errorf("serper: HTTP %d: %s", resp.StatusCode, errBody)
	}

	var sr serperResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return nil, fmt.Errorf("serper: decode response: %w", err)
	}

	out := &Response{Query: query}

	for i, r := range sr.Organic {
		if i >= count {
			break
		}
		pos := r.Position
		if pos == 0 {
			pos = i + 1
		}
		out.Organic = append(out.Organic, Result{
			Title:    r.Title,
			URL:      r.Link,
			Snippet:  r.Snippet,
			Position: pos,
		})
	}

	for _, n := range sr.News {
		out.News = append(out.News, NewsResult{
			Title:   n.Title,
			URL:     n.Link,
			Snippet: n.Snippet,
			Source:  n.Source,
			Date:    n.Date,
		})
	}
	// Standard searches carry headlines under topStories instead.
	if len(out.News) == 0 {
		for _, n := range sr.TopStories {
			out.News = append(out.News, NewsResult{
				Title:  n.Title,
				URL:    n.Link,
				Source: n.Source,
				Date:   n.Date,
			})
		}
	}

	for _, r := range sr.RelatedSearches {
		out.Related = append(out.Related, r.Query)
	}

	if sr.AnswerBox != nil {
		answer := sr.AnswerBox.Answer
		if answer == "" {
			answer = sr.AnswerBox.Snippet
		}
		out.AnswerBox = &AnswerBox{
			Answer: answer,
			Title:  sr.AnswerBox.Title,
			URL:    sr.AnswerBox.Link,
		}
	}

	return out, nil
}

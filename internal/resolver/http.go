package resolver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// HTTP resolves project selectors against the context API's search endpoint.
// A request error, a non-200, or an unparsable body is treated as "no
// candidates" rather than surfaced as an error — a transient lookup failure
// degrades to clarification, it never fails the whole ingest.
type HTTP struct {
	BaseURL      string
	BearerToken  string
	SearchPath   string
	Timeout      time.Duration
	Client       *http.Client
}

// NewHTTP builds an HTTP resolver. searchPath defaults to
// "/v1/projects/search" when empty.
func NewHTTP(baseURL, bearerToken, searchPath string, timeout time.Duration) *HTTP {
	if searchPath == "" {
		searchPath = "/v1/projects/search"
	}
	return &HTTP{
		BaseURL:     strings.TrimRight(baseURL, "/"),
		BearerToken: bearerToken,
		SearchPath:  searchPath,
		Timeout:     timeout,
		Client:      &http.Client{Timeout: timeout},
	}
}

type searchRequest struct {
	Query string `json:"query"`
	Limit int    `json:"limit"`
}

type searchResponseCandidate struct {
	ID         string  `json:"id"`
	Label      string  `json:"label"`
	Score      *float64 `json:"score"`
	Confidence *float64 `json:"confidence"`
}

type searchResponse struct {
	Results    []searchResponseCandidate `json:"results"`
	Candidates []searchResponseCandidate `json:"candidates"`
}

// Resolve calls the configured search endpoint with a bounded timeout.
func (h *HTTP) Resolve(ctx context.Context, selector string) ([]Candidate, error) {
	body, err := json.Marshal(searchRequest{Query: selector, Limit: 5})
	if err != nil {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(ctx, h.Timeout)
	defer cancel()

	url := h.BaseURL + h.SearchPath
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, nil
	}
	req.Header.Set("Content-Type", "application/json")
	if h.BearerToken != "" {
		req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", h.BearerToken))
	}

	resp, err := h.Client.Do(req)
	if err != nil {
		return nil, nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, nil
	}

	var parsed searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, nil
	}

	raw := parsed.Results
	if len(raw) == 0 {
		raw = parsed.Candidates
	}

	candidates := make([]Candidate, 0, len(raw))
	for _, c := range raw {
		score := 0.0
		switch {
		case c.Score != nil:
			score = *c.Score
		case c.Confidence != nil:
			score = *c.Confidence
		}
		candidates = append(candidates, Candidate{ID: c.ID, Label: c.Label, Score: score})
	}
	return candidates, nil
}

package resolver

import "context"

// Stub always returns no candidates. It is the default resolver when
// CONTEXT_API_BASE_URL is not configured, so project-bearing intents fall
// straight into clarification rather than failing startup.
type Stub struct{}

// Resolve always returns an empty candidate list.
func (Stub) Resolve(ctx context.Context, selector string) ([]Candidate, error) {
	return nil, nil
}

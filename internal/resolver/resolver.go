// Package resolver looks up project candidates for a free-text project
// selector, so the Normaliser can either pin a high-confidence match or fall
// back to clarification.
package resolver

import "context"

// Candidate is one scored project match a Resolver returns.
type Candidate struct {
	ID    string
	Label string
	Score float64
}

// ProjectResolver resolves a free-text selector (project name, slug, or
// alias) into ranked candidates. Implementations must never return an error
// for "no match" — an empty slice means no match.
type ProjectResolver interface {
	Resolve(ctx context.Context, selector string) ([]Candidate, error)
}

// SelectHighConfidence returns the single candidate that clears both the
// threshold and the margin over the runner-up, or nil if none does (spec
// §4.2 project-resolution gate).
func SelectHighConfidence(candidates []Candidate, threshold, margin float64) *Candidate {
	if len(candidates) == 0 {
		return nil
	}

	best := candidates[0]
	for _, c := range candidates[1:] {
		if c.Score > best.Score {
			best = c
		}
	}
	if best.Score < threshold {
		return nil
	}

	second := -1.0
	for _, c := range candidates {
		if c.ID == best.ID {
			continue
		}
		if c.Score > second {
			second = c.Score
		}
	}
	if second >= 0 && (best.Score-second) < margin {
		return nil
	}

	result := best
	return &result
}

package store

import (
	"encoding/json"

	"github.com/matthewcove-stack/intent-normaliser/internal/contracts"
)

func jsonMarshalCandidates(candidates []contracts.Candidate) ([]byte, error) {
	if candidates == nil {
		candidates = []contracts.Candidate{}
	}
	return json.Marshal(candidates)
}

func jsonUnmarshalCandidates(raw []byte, out *[]contracts.Candidate) error {
	return json.Unmarshal(raw, out)
}

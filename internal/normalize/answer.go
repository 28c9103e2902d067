package normalize

import "github.com/matthewcove-stack/intent-normaliser/internal/contracts"

// ApplyClarificationAnswer folds an answer into the stored canonical_draft
// per the pending.field it addresses (spec §4.5), then drops pending so the
// next normalisation pass re-validates the field fresh.
func ApplyClarificationAnswer(draft map[string]any, answer contracts.AnswerRequest) map[string]any {
	pending, _ := draft["pending"].(map[string]any)
	field, _ := pending["field"].(string)

	fields, ok := draft["fields"].(map[string]any)
	if !ok {
		fields = map[string]any{}
		draft["fields"] = fields
	}

	switch field {
	case "intent_type":
		if answer.AnswerText != "" {
			draft["intent_type"] = answer.AnswerText
		} else if answer.ChoiceID != "" {
			draft["intent_type"] = answer.ChoiceID
		}

	case "project":
		switch {
		case answer.ChoiceID != "":
			fields["project"] = answer.ChoiceID
			fields["project_resolved"] = true
			delete(fields, "project_id")
		case answer.AnswerText != "":
			fields["project"] = answer.AnswerText
			fields["project_resolved"] = true
			delete(fields, "project_id")
		}

	case "due":
		if answer.AnswerText != "" {
			fields["due"] = answer.AnswerText
		} else if answer.ChoiceID != "" {
			fields["due"] = answer.ChoiceID
		}
	}

	delete(draft, "pending")
	return draft
}

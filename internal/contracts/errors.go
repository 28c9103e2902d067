package contracts

// Error codes from the spec §7 taxonomy. Pre-ingest codes surface as a 4xx
// ErrorBody; the rest surface inside a rejected/failed Envelope.
const (
	ErrBadJSON                   = "bad_json"
	ErrSchemaValidationFailed    = "schema_validation_failed"
	ErrUnsupportedSchemaVersion  = "unsupported_schema_version"

	ErrValidation              = "VALIDATION_ERROR"
	ErrUnsupportedIntentType   = "UNSUPPORTED_INTENT_TYPE"
	ErrPolicyMissingTaskID     = "POLICY_MISSING_TASK_ID"
	ErrPolicyLowConfidence     = "POLICY_LOW_CONFIDENCE"
	ErrPolicyTooManyInferences = "POLICY_TOO_MANY_INFERENCES"

	ErrExecutionNotConfigured = "EXECUTION_NOT_CONFIGURED"
	ErrExecutionFailed        = "EXECUTION_FAILED"

	ErrDBUnavailable = "DB_UNAVAILABLE"
)

// Package config loads service configuration from environment variables.
package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
)

// Config holds every environment-sourced setting spec §6 names.
type Config struct {
	DatabaseURL        string
	IntentServiceToken string

	UserTimezone             string
	MinConfidenceToWrite     float64
	MaxInferredFields        int
	ExecuteActions           bool
	ClarificationExpiryHours float64
	ProjectResolutionThreshold float64
	ProjectResolutionMargin    float64

	GatewayBaseURL          string
	GatewayBearerToken      string
	GatewayTasksCreatePath  string
	GatewayTasksUpdatePath  string
	GatewayListsAddItemPath string
	GatewayNotesCapturePath string
	GatewayTimeoutSeconds   float64

	ContextAPIBaseURL          string
	ContextAPIBearerToken      string
	ContextAPIProjectSearchPath string
	ContextAPITimeoutSeconds   float64

	CORSOrigins []string

	Version         string
	GitSHA          string
	ArtifactVersion int
}

// Load reads Config from the process environment, applying the defaults
// spec §4.2/§6 specifies. DATABASE_URL and INTENT_SERVICE_TOKEN are
// mandatory; a missing value is a fatal misconfiguration, not a recoverable
// request-time error.
func Load() *Config {
	cfg := &Config{
		DatabaseURL:        getenvRequired("DATABASE_URL"),
		IntentServiceToken: getenvRequired("INTENT_SERVICE_TOKEN"),

		UserTimezone:               getenvDefault("USER_TIMEZONE", "Europe/London"),
		MinConfidenceToWrite:       getenvFloatDefault("MIN_CONFIDENCE_TO_WRITE", 0.75),
		MaxInferredFields:          getenvIntDefault("MAX_INFERRED_FIELDS", 2),
		ExecuteActions:             getenvBoolDefault("EXECUTE_ACTIONS", false),
		ClarificationExpiryHours:   getenvFloatDefault("CLARIFICATION_EXPIRY_HOURS", 72),
		ProjectResolutionThreshold: getenvFloatDefault("PROJECT_RESOLUTION_THRESHOLD", 0.90),
		ProjectResolutionMargin:    getenvFloatDefault("PROJECT_RESOLUTION_MARGIN", 0.10),

		GatewayBaseURL:          os.Getenv("GATEWAY_BASE_URL"),
		GatewayBearerToken:      os.Getenv("GATEWAY_BEARER_TOKEN"),
		GatewayTasksCreatePath:  getenvDefault("GATEWAY_TASKS_CREATE_PATH", "/v1/tasks/create"),
		GatewayTasksUpdatePath:  getenvDefault("GATEWAY_TASKS_UPDATE_PATH", "/v1/tasks/update"),
		GatewayListsAddItemPath: getenvDefault("GATEWAY_LISTS_ADD_ITEM_PATH", "/v1/lists/add_item"),
		GatewayNotesCapturePath: getenvDefault("GATEWAY_NOTES_CAPTURE_PATH", "/v1/notes/capture"),
		GatewayTimeoutSeconds:   getenvFloatDefault("GATEWAY_TIMEOUT_SECONDS", 10),

		ContextAPIBaseURL:           os.Getenv("CONTEXT_API_BASE_URL"),
		ContextAPIBearerToken:       os.Getenv("CONTEXT_API_BEARER_TOKEN"),
		ContextAPIProjectSearchPath: getenvDefault("CONTEXT_API_PROJECT_SEARCH_PATH", "/v1/projects/search"),
		ContextAPITimeoutSeconds:    getenvFloatDefault("CONTEXT_API_TIMEOUT_SECONDS", 5),

		CORSOrigins: splitAndTrim(os.Getenv("INTENT_CORS_ORIGINS")),

		Version:         getenvDefault("SERVICE_VERSION", "0.0.0"),
		GitSHA:          getenvDefault("GIT_SHA", "unknown"),
		ArtifactVersion: getenvIntDefault("ARTIFACT_VERSION", 1),
	}
	return cfg
}

// GatewayConfigured reports whether the executor has enough configuration
// to dispatch to the downstream gateway (spec §4.6: EXECUTION_NOT_CONFIGURED
// fires when either is absent).
func (c *Config) GatewayConfigured() bool {
	return c.GatewayBaseURL != "" && c.GatewayBearerToken != ""
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvRequired(key string) string {
	v := os.Getenv(key)
	if v == "" {
		log.Fatalf("%s must be set", key)
	}
	return v
}

func getenvIntDefault(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func getenvFloatDefault(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

func getenvBoolDefault(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func splitAndTrim(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// String renders a redacted summary suitable for startup logging.
func (c *Config) String() string {
	return fmt.Sprintf(
		"timezone=%s min_confidence=%.2f max_inferred=%d execute_actions=%v gateway_configured=%v context_api_configured=%v",
		c.UserTimezone, c.MinConfidenceToWrite, c.MaxInferredFields, c.ExecuteActions,
		c.GatewayConfigured(), c.ContextAPIBaseURL != "",
	)
}

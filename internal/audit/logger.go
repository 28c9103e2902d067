// Package audit writes structured audit records, one line each: the prefix
// "AUDIT: " followed by a JSON object. The HTTP layer records one event per
// ingest request, per clarification answer, and per ingest that fails on the
// database; the Controller itself records none.
package audit

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/matthewcove-stack/intent-normaliser/internal/auth"
)

// EventType categorises an audit record.
type EventType string

const (
	EventIngest        EventType = "INGEST"
	EventNormalize     EventType = "NORMALIZE"
	EventClarification EventType = "CLARIFICATION"
	EventExecution     EventType = "EXECUTION"
	EventSystem        EventType = "SYSTEM"
)

// Event is one structured audit record.
type Event struct {
	ID            string                 `json:"id"`
	ActorID       string                 `json:"actor_id"`
	RequestID     string                 `json:"request_id,omitempty"`
	Type          EventType              `json:"type"`
	Action        string                 `json:"action"`
	Resource      string                 `json:"resource"`
	Timestamp     time.Time              `json:"timestamp"`
	Metadata      map[string]interface{} `json:"metadata,omitempty"`
}

// Logger records audit events.
type Logger interface {
	Record(ctx context.Context, eventType EventType, action, resource string, metadata map[string]interface{}) error
}

type logger struct {
	mu     sync.Mutex
	writer io.Writer
}

// NewLogger creates a Logger writing JSON lines to os.Stdout.
func NewLogger() Logger {
	return NewLoggerWithWriter(os.Stdout)
}

// NewLoggerWithWriter creates a Logger writing to w, for tests and custom
// sinks.
func NewLoggerWithWriter(w io.Writer) Logger {
	if w == nil {
		w = os.Stdout
	}
	return &logger{writer: w}
}

func (l *logger) Record(ctx context.Context, eventType EventType, action, resource string, metadata map[string]interface{}) error {
	actorID := auth.GetActorID(ctx)
	if actorID == "" {
		actorID = "system"
	}

	event := Event{
		ID:        uuid.NewString(),
		ActorID:   actorID,
		RequestID: auth.GetRequestID(ctx),
		Type:      eventType,
		Action:    action,
		Resource:  resource,
		Timestamp: time.Now(),
		Metadata:  metadata,
	}

	bytes, err := json.Marshal(event)
	if err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	_, err = l.writer.Write(append(append([]byte("AUDIT: "), bytes...), '\n'))
	return err
}

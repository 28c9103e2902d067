package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matthewcove-stack/intent-normaliser/internal/auth"
)

func TestLogger_RecordWritesAuditPrefixedJSONLine(t *testing.T) {
	var buf bytes.Buffer
	l := NewLoggerWithWriter(&buf)

	ctx := auth.WithActorID(context.Background(), "actor-7")
	err := l.Record(ctx, EventIngest, "ingest", "int_01ABC", map[string]interface{}{"status": "ready"})
	require.NoError(t, err)

	line := buf.String()
	require.True(t, strings.HasPrefix(line, "AUDIT: "))

	var ev Event
	require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(strings.TrimSuffix(line, "\n"), "AUDIT: ")), &ev))
	assert.Equal(t, "actor-7", ev.ActorID)
	assert.Equal(t, EventIngest, ev.Type)
	assert.Equal(t, "int_01ABC", ev.Resource)
}

func TestLogger_RecordDefaultsToSystemActor(t *testing.T) {
	var buf bytes.Buffer
	l := NewLoggerWithWriter(&buf)

	err := l.Record(context.Background(), EventSystem, "startup", "server", nil)
	require.NoError(t, err)

	var ev Event
	require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(strings.TrimSuffix(buf.String(), "\n"), "AUDIT: ")), &ev))
	assert.Equal(t, "system", ev.ActorID)
}

package ids

import (
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewIntentID_HasPrefixAndLength(t *testing.T) {
	id := NewIntentID()
	assert.True(t, len(id) > len("int_"))
	assert.Equal(t, "int_", id[:4])
	assert.Len(t, id[4:], 26)
}

func TestNewCorrelationID_HasPrefix(t *testing.T) {
	id := NewCorrelationID()
	assert.Equal(t, "cor_", id[:4])
}

func TestIDs_AreUnique(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		id := NewIntentID()
		assert.False(t, seen[id])
		seen[id] = true
	}
}

func TestULID_IsLexicallySortableByMintTime(t *testing.T) {
	first := mustULID()
	time.Sleep(2 * time.Millisecond)
	second := mustULID()

	ordered := []string{second, first}
	sort.Strings(ordered)
	assert.Equal(t, first, ordered[0])
	assert.Equal(t, second, ordered[1])
}

func TestNewTraceID_IsRFC4122UUID(t *testing.T) {
	id := NewTraceID()
	assert.Len(t, id, 36)
}

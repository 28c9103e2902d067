// Package ids mints the identifiers the service hands out: lexicographically
// sortable intent/correlation ids (ULID-shaped: a millisecond timestamp
// followed by Crockford base32-encoded randomness) and random trace ids.
package ids

import (
	"crypto/rand"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const crockford = "0123456789ABCDEFGHJKMNPQRSTVWXYZ"

// ulid returns a 26-character Crockford base32 ULID: 48 bits of millisecond
// timestamp (10 chars) followed by 80 bits of randomness (16 chars). Lexical
// ordering of the string matches chronological ordering of mint time.
func ulid() (string, error) {
	var buf [16]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return "", fmt.Errorf("ids: read random: %w", err)
	}
	ms := uint64(time.Now().UnixMilli())

	var out strings.Builder
	out.Grow(26)

	// 48-bit timestamp, 10 base32 characters, most significant first.
	for i := 9; i >= 0; i-- {
		out.WriteByte(crockford[(ms>>(uint(i)*5))&0x1F])
	}

	// 80 bits of randomness packed into 16 base32 characters, 5 bits at a time.
	var acc uint64
	bits := 0
	bi := 0
	for i := 0; i < 16; i++ {
		for bits < 5 {
			if bi < len(buf) {
				acc = acc<<8 | uint64(buf[bi])
				bits += 8
				bi++
			} else {
				acc <<= 5
				bits += 5
			}
		}
		bits -= 5
		out.WriteByte(crockford[(acc>>uint(bits))&0x1F])
	}
	return out.String(), nil
}

func mustULID() string {
	id, err := ulid()
	if err != nil {
		// On a crypto/rand failure, fall back to a time-only
		// identifier so callers never receive an empty id.
		return fmt.Sprintf("%013d0000000000000", time.Now().UnixMilli())
	}
	return id
}

// NewIntentID mints a fresh, sortable intent id.
func NewIntentID() string {
	return "int_" + mustULID()
}

// NewCorrelationID mints a fresh, sortable correlation id.
func NewCorrelationID() string {
	return "cor_" + mustULID()
}

// NewTraceID mints a random (non-sortable) trace id for cross-service
// correlation, independent of intent/correlation id lifetime.
func NewTraceID() string {
	return uuid.NewString()
}

// NewRequestID mints a fallback gateway request id when the caller does not
// supply one.
func NewRequestID() string {
	return uuid.NewString()
}

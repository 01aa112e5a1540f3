package util

import (
	"crypto/rand"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

// NewCallID returns a call id. ULID keeps ids sortable by creation time,
// which is handy for the newest-first listing.
func NewCallID() string {
	t := time.Now().UTC()
	return "call_" + ulid.MustNew(ulid.Timestamp(t), rand.Reader).String()
}

// NewProviderID returns an opaque provider reference. Time-based entropy plus
// random bits; no global uniqueness registry.
func NewProviderID() string {
	t := time.Now().UTC()
	return "prov_" + ulid.MustNew(ulid.Timestamp(t), rand.Reader).String()
}

func NormalizePhone(p string) string {
	return strings.TrimSpace(p)
}

func NowUTC() time.Time {
	return time.Now().UTC()
}

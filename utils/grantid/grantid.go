package grantid

import (
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// Prefix identifies how a record entered the system.
type Prefix string

const (
	PrefixManual    Prefix = "manual_"
	PrefixWeb       Prefix = "web_"
	PrefixGenerated Prefix = "gen_"
)

var (
	entropyMu   sync.Mutex
	entropyOnce sync.Once
	entropy     *ulid.MonotonicEntropy
)

func newEntropy() *ulid.MonotonicEntropy {
	entropyOnce.Do(func() {
		source := rand.NewSource(time.Now().UnixNano())
		entropy = ulid.Monotonic(rand.New(source), 0)
	})
	return entropy
}

// New returns a prefixed, lowercase ULID string.
func New(prefix Prefix) string {
	entropyMu.Lock()
	id := ulid.MustNew(ulid.Timestamp(time.Now()), newEntropy())
	entropyMu.Unlock()
	return string(prefix) + strings.ToLower(id.String())
}

// IsValid reports whether value is one of the known prefixes followed by a ULID.
func IsValid(value string) bool {
	_, _, err := Parse(value)
	return err == nil
}

// Parse splits value into its prefix and ULID.
func Parse(value string) (Prefix, ulid.ULID, error) {
	value = strings.TrimSpace(value)
	for _, p := range []Prefix{PrefixManual, PrefixWeb, PrefixGenerated} {
		if strings.HasPrefix(value, string(p)) {
			id, err := ulid.Parse(strings.TrimPrefix(value, string(p)))
			return p, id, err
		}
	}
	return "", ulid.ULID{}, ulid.ErrDataSize
}

// IsPathSafe reports whether value can be used as a file name without escaping its directory.
func IsPathSafe(value string) bool {
	if value == "" || value == "." || value == ".." {
		return false
	}
	return !strings.ContainsAny(value, `/\`+"\x00")
}

// Package ids produces identifiers for entities and audit events.
package ids

import (
	"crypto/rand"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

type Generator interface {
	NewID() string
}

type UUID struct{}

func (UUID) NewID() string { return uuid.NewString() }

// ULID yields lexicographically time-ordered ids.
type ULID struct {
	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
	Now     func() time.Time
}

func NewULID() *ULID {
	return &ULID{entropy: ulid.Monotonic(rand.Reader, 0), Now: time.Now}
}

func (g *ULID) NewID() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(g.Now()), g.entropy).String()
}

// Sequence returns prefix-1, prefix-2, ... for deterministic tests.
type Sequence struct {
	Prefix string
	mu     sync.Mutex
	n      int
}

func (s *Sequence) NewID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.n++
	return fmt.Sprintf("%s-%d", s.Prefix, s.n)
}

// New returns the generator named by kind.
func New(kind string) (Generator, error) {
	switch kind {
	case "", "uuid":
		return UUID{}, nil
	case "ulid":
		return NewULID(), nil
	}
	return nil, fmt.Errorf("unknown id kind %q", kind)
}

package ledger

import (
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Clock abstracts time retrieval so vesting and timestamps are deterministic in tests.
type Clock interface {
	Now() time.Time
}

// RealClock returns the actual current time.
type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now().UTC() }

// IDGenerator abstracts unique ID generation so tests are deterministic.
type IDGenerator interface {
	New() string
}

// UUIDGenerator produces random UUIDs.
type UUIDGenerator struct{}

func (UUIDGenerator) New() string { return uuid.New().String() }

// SeededUUIDGenerator produces name-based (v5) UUIDs from a seed and a
// counter. Replaying the same writes in the same order yields the same ids,
// and therefore the same ledger fingerprint.
type SeededUUIDGenerator struct {
	mu sync.Mutex
	ns uuid.UUID
	n  uint64
}

// NewSeededUUIDGenerator creates a generator for seed.
func NewSeededUUIDGenerator(seed string) *SeededUUIDGenerator {
	return &SeededUUIDGenerator{ns: uuid.NewSHA1(uuid.NameSpaceOID, []byte(seed))}
}

func (g *SeededUUIDGenerator) New() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return uuid.NewSHA1(g.ns, strconv.AppendUint(nil, g.n, 10)).String()
}

package pav

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Clock abstracts time retrieval so business logic is deterministic in tests.
type Clock interface {
	Now() time.Time
}

// RealClock returns the actual current time.
type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }

// IDGenerator abstracts record id generation so tests are deterministic.
type IDGenerator interface {
	New() string
}

// TimeRandomIDGenerator produces ids of the form <epoch-millis>-<suffix>,
// the scheme the arrivals table was populated with in the field. The
// suffix is the first segment of a random UUID; collisions would need two
// ids in the same millisecond with the same 32-bit suffix.
type TimeRandomIDGenerator struct {
	Clock Clock
}

func (g TimeRandomIDGenerator) New() string {
	return fmt.Sprintf("%d-%s", g.Clock.Now().UnixMilli(), uuid.New().String()[:8])
}

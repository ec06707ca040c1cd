package reel

import (
	"time"

	"github.com/google/uuid"
)

// Clock supplies timestamps for version records and job trailers.
type Clock interface {
	Now() time.Time
}

type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }

// IDGenerator produces claim tokens for queue jobs.
type IDGenerator interface {
	New() string
}

type UUIDGenerator struct{}

func (UUIDGenerator) New() string { return uuid.New().String() }

package common

import (
	"fmt"
	"time"
)

// Stats summarises one generation run.
type Stats struct {
	RunID          string
	Shard          uint8
	Ticks          uint64
	Limits         uint64
	Markets        uint64
	Cancels        uint64
	Fallbacks      uint64 // Cancels that had to be rebuilt as limits
	LiveOrders     int    // Orders still resting at the end of the run
	ReferencePrice uint64 // Reference price after the last tick
	Elapsed        time.Duration
}

// Add folds another shard's counters into s.
func (s *Stats) Add(other Stats) {
	s.Ticks += other.Ticks
	s.Limits += other.Limits
	s.Markets += other.Markets
	s.Cancels += other.Cancels
	s.Fallbacks += other.Fallbacks
	s.LiveOrders += other.LiveOrders
	if other.Elapsed > s.Elapsed {
		s.Elapsed = other.Elapsed
	}
}

// Rate returns events per second, or zero if no time was measured.
func (s Stats) Rate() float64 {
	seconds := s.Elapsed.Seconds()
	if seconds == 0 {
		return 0
	}
	return float64(s.Ticks) / seconds
}

func (s Stats) String() string {
	return fmt.Sprintf(
		`RunID:     %s
Shard:     %d
Ticks:     %d
Limits:    %d
Markets:   %d
Cancels:   %d
Fallbacks: %d
Live:      %d
RefPrice:  %d
Elapsed:   %v`,
		s.RunID,
		s.Shard,
		s.Ticks,
		s.Limits,
		s.Markets,
		s.Cancels,
		s.Fallbacks,
		s.LiveOrders,
		s.ReferencePrice,
		s.Elapsed,
	)
}

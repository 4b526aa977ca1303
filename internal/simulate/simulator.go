// Package simulate stands in for CPU-bound processing whose cost grows with
// payload size.
package simulate

import (
	"context"
	"time"
	"unicode/utf8"
)

// DefaultPerChar is the simulated cost of a single character
const DefaultPerChar = 50 * time.Millisecond

// Simulator models variable-cost work as a linear function of text length
type Simulator struct {
	PerChar time.Duration
}

// New returns a Simulator; a non-positive perChar selects DefaultPerChar
func New(perChar time.Duration) *Simulator {
	if perChar <= 0 {
		perChar = DefaultPerChar
	}
	return &Simulator{PerChar: perChar}
}

// CharCount is the character count used for costing and for stored records
func CharCount(text string) int {
	return utf8.RuneCountInString(text)
}

// Duration is the deterministic cost of processing charCount characters
func (s *Simulator) Duration(charCount int) time.Duration {
	if charCount <= 0 {
		return 0
	}
	return time.Duration(charCount) * s.PerChar
}

// Run blocks for Duration(CharCount(text)) or until ctx is done
func (s *Simulator) Run(ctx context.Context, text string) (time.Duration, error) {
	d := s.Duration(CharCount(text))
	if d == 0 {
		return 0, ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return d, nil
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

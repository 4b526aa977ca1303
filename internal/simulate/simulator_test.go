package simulate

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestDurationLinear(t *testing.T) {
	s := New(0)
	if s.PerChar != DefaultPerChar {
		t.Fatalf("PerChar = %v, want %v", s.PerChar, DefaultPerChar)
	}

	tests := []struct {
		chars int
		want  time.Duration
	}{
		{0, 0},
		{-3, 0},
		{1, 50 * time.Millisecond},
		{20, time.Second},
		{100, 5 * time.Second},
	}
	for _, tt := range tests {
		if got := s.Duration(tt.chars); got != tt.want {
			t.Errorf("Duration(%d) = %v, want %v", tt.chars, got, tt.want)
		}
	}
}

func TestDurationMonotonic(t *testing.T) {
	s := New(0)
	prev := s.Duration(0)
	for n := 1; n <= 500; n++ {
		d := s.Duration(n)
		if d < prev {
			t.Fatalf("Duration(%d) = %v < Duration(%d) = %v", n, d, n-1, prev)
		}
		prev = d
	}
}

func TestDurationSecondsMatchesRate(t *testing.T) {
	s := New(0)
	for _, n := range []int{0, 1, 7, 20, 333} {
		got := s.Duration(n).Seconds()
		want := 0.05 * float64(n)
		if diff := got - want; diff > 1e-9 || diff < -1e-9 {
			t.Errorf("Duration(%d).Seconds() = %v, want %v", n, got, want)
		}
	}
}

func TestCharCountUsesRunes(t *testing.T) {
	if got := CharCount("héllo"); got != 5 {
		t.Errorf("CharCount = %d, want 5", got)
	}
}

func TestRunTiming(t *testing.T) {
	s := New(5 * time.Millisecond)
	text := strings.Repeat("a", 20) // 100ms

	start := time.Now()
	d, err := s.Run(context.Background(), text)
	elapsed := time.Since(start)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if d != 100*time.Millisecond {
		t.Errorf("Run returned %v, want 100ms", d)
	}
	if elapsed < 100*time.Millisecond || elapsed > 300*time.Millisecond {
		t.Errorf("Run took %v, want about 100ms", elapsed)
	}
}

func TestRunEmptyIsInstant(t *testing.T) {
	s := New(0)
	start := time.Now()
	if _, err := s.Run(context.Background(), ""); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 50*time.Millisecond {
		t.Errorf("Run(\"\") took %v", elapsed)
	}
}

func TestRunCancelled(t *testing.T) {
	s := New(time.Second)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := s.Run(ctx, "abcdef")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Run err = %v, want DeadlineExceeded", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("Run ignored cancellation, took %v", elapsed)
	}
}

package util

import (
	"testing"
	"time"
)

func TestTimer(t *testing.T) {
	var zero Timer
	if zero.ElapsedMs() != 0 {
		t.Fatalf("expected zero elapsed for unstarted timer")
	}
	timer := StartTimer()
	time.Sleep(5 * time.Millisecond)
	if timer.Elapsed() < 5*time.Millisecond {
		t.Fatalf("expected at least 5ms elapsed got %s", timer.Elapsed())
	}
}

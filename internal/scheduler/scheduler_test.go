package scheduler

import (
	"context"
	"testing"
)

func TestStartWithoutStatsFunctionIsNoop(t *testing.T) {
	s := New()
	if err := s.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	if s.IsRunning() {
		t.Fatalf("scheduler running with no jobs registered")
	}
	s.Stop()
}

func TestStartRegistersStatsJob(t *testing.T) {
	s := New()
	s.SetStatsFunction(func(ctx context.Context) error { return nil })
	if err := s.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	if !s.IsRunning() {
		t.Fatalf("stats job not registered")
	}
	s.Stop()
}

package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"heartlink.io/trustengine/internal/pkg/logger"
)

func TestMain(m *testing.M) {
	logger.InitForTest()
	m.Run()
}

type fakeSweeper struct {
	calls int
	err   error
}

func (f *fakeSweeper) ProcessScheduledDeletions(context.Context) (int, error) {
	f.calls++
	return 1, f.err
}

type fakePurger struct {
	calls int
}

func (f *fakePurger) PurgeExpired(context.Context) (int, error) {
	f.calls++
	return 10, nil
}

type fakeCleaner struct {
	calls int
}

func (f *fakeCleaner) Cleanup(context.Context) int {
	f.calls++
	return 3
}

func TestNew_InvalidSchedule(t *testing.T) {
	_, err := New(Config{SweepSchedule: "not a schedule", PurgeSchedule: "@daily"}, &fakeSweeper{}, &fakePurger{}, nil)
	if err == nil {
		t.Fatal("expected error for invalid sweep schedule")
	}
	_, err = New(Config{SweepSchedule: "@hourly", PurgeSchedule: "bogus"}, &fakeSweeper{}, &fakePurger{}, nil)
	if err == nil {
		t.Fatal("expected error for invalid purge schedule")
	}
}

func TestRunOnDemand(t *testing.T) {
	sweeper := &fakeSweeper{}
	purger := &fakePurger{}
	cleaner := &fakeCleaner{}
	s, err := New(Config{SweepSchedule: "@hourly", PurgeSchedule: "@daily"}, sweeper, purger, cleaner)
	if err != nil {
		t.Fatal(err)
	}

	s.RunSweep(context.Background())
	s.RunPurge(context.Background())
	s.RunCleanup(context.Background())

	if sweeper.calls != 1 || purger.calls != 1 || cleaner.calls != 1 {
		t.Errorf("calls = sweep %d, purge %d, cleanup %d; want 1 each",
			sweeper.calls, purger.calls, cleaner.calls)
	}
}

func TestRunSweep_ErrorIsSwallowed(t *testing.T) {
	sweeper := &fakeSweeper{err: errors.New("db down")}
	s, err := New(Config{SweepSchedule: "@hourly", PurgeSchedule: "@daily"}, sweeper, &fakePurger{}, nil)
	if err != nil {
		t.Fatal(err)
	}
	// Must not panic or propagate; the next tick retries.
	s.RunSweep(context.Background())
	if sweeper.calls != 1 {
		t.Errorf("sweeper calls = %d, want 1", sweeper.calls)
	}
}

func TestStartStop(t *testing.T) {
	s, err := New(Config{SweepSchedule: "@hourly", PurgeSchedule: "@daily"}, &fakeSweeper{}, &fakePurger{}, nil)
	if err != nil {
		t.Fatal(err)
	}
	s.Start()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	s.Stop(ctx)
}

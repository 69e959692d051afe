package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

type countingJob struct {
	name string
	runs atomic.Int32
	err  error
}

func (j *countingJob) Name() string { return j.name }

func (j *countingJob) Run(ctx context.Context) (Report, error) {
	j.runs.Add(1)
	return Report{Job: j.name}, j.err
}

func TestNextDaily(t *testing.T) {
	offset := 3 * time.Hour
	tests := []struct {
		now  time.Time
		want time.Time
	}{
		{time.Date(2026, 10, 19, 2, 0, 0, 0, time.UTC), time.Date(2026, 10, 19, 3, 0, 0, 0, time.UTC)},
		{time.Date(2026, 10, 19, 3, 0, 0, 0, time.UTC), time.Date(2026, 10, 20, 3, 0, 0, 0, time.UTC)},
		{time.Date(2026, 12, 31, 23, 0, 0, 0, time.UTC), time.Date(2027, 1, 1, 3, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		if got := nextDaily(tt.now, offset); !got.Equal(tt.want) {
			t.Errorf("nextDaily(%s) = %s, want %s", tt.now, got, tt.want)
		}
	}
}

func TestNewRunner_Validates(t *testing.T) {
	job := &countingJob{name: "x"}
	if _, err := NewRunner(job, job, job, RunnerConfig{ReminderInterval: time.Minute, NoShowInterval: time.Second, SeriesRunAt: "3am"}, zerolog.Nop()); err == nil {
		t.Error("expected an error for a malformed run time")
	}
	if _, err := NewRunner(job, job, job, RunnerConfig{SeriesRunAt: "03:00"}, zerolog.Nop()); err == nil {
		t.Error("expected an error for zero intervals")
	}
}

func TestRunner_TicksUntilCancelled(t *testing.T) {
	reminders := &countingJob{name: "reminders"}
	noShow := &countingJob{name: "no-show", err: errors.New("db down")}
	series := &countingJob{name: "series"}

	runner, err := NewRunner(reminders, noShow, series, RunnerConfig{
		ReminderInterval: 10 * time.Millisecond,
		NoShowInterval:   5 * time.Millisecond,
		SeriesRunAt:      "03:00",
	}, zerolog.Nop())
	if err != nil {
		t.Fatalf("runner: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- runner.Run(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for reminders.runs.Load() < 2 || noShow.runs.Load() < 2 {
		if time.Now().After(deadline) {
			t.Fatalf("jobs did not tick: reminders=%d no-show=%d", reminders.runs.Load(), noShow.runs.Load())
		}
		time.Sleep(5 * time.Millisecond)
	}
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("a failing job must not stop the runner, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("runner did not stop")
	}
}

package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestEvery_RunsOnInterval(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var runs atomic.Int32
	s := New(zap.NewNop())
	s.Every(ctx, 10*time.Millisecond, "tick", func(ctx context.Context, now time.Time) {
		runs.Add(1)
	})

	time.Sleep(55 * time.Millisecond)
	cancel()

	got := runs.Load()
	if got < 3 {
		t.Errorf("expected at least 3 runs, got %d", got)
	}
}

func TestEvery_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	var runs atomic.Int32
	s := New(zap.NewNop())
	s.Every(ctx, 10*time.Millisecond, "tick", func(ctx context.Context, now time.Time) {
		runs.Add(1)
	})

	cancel()
	time.Sleep(30 * time.Millisecond)
	after := runs.Load()
	time.Sleep(30 * time.Millisecond)

	if runs.Load() != after {
		t.Error("job kept running after cancel")
	}
}

func TestEvery_RecoversFromPanic(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var runs atomic.Int32
	s := New(zap.NewNop())
	s.Every(ctx, 10*time.Millisecond, "flaky", func(ctx context.Context, now time.Time) {
		if runs.Add(1) == 1 {
			panic("first run explodes")
		}
	})

	time.Sleep(55 * time.Millisecond)
	if runs.Load() < 2 {
		t.Error("scheduler did not survive a panicking job")
	}
}

func TestNextDailyRun(t *testing.T) {
	loc := time.UTC

	tests := []struct {
		name string
		now  time.Time
		hour int
		min  int
		want time.Time
	}{
		{
			name: "later today",
			now:  time.Date(2026, 8, 31, 0, 30, 0, 0, loc),
			hour: 1, min: 0,
			want: time.Date(2026, 8, 31, 1, 0, 0, 0, loc),
		},
		{
			name: "already passed, tomorrow",
			now:  time.Date(2026, 8, 31, 1, 30, 0, 0, loc),
			hour: 1, min: 0,
			want: time.Date(2026, 9, 1, 1, 0, 0, 0, loc),
		},
		{
			name: "exactly at fire time, tomorrow",
			now:  time.Date(2026, 8, 31, 1, 0, 0, 0, loc),
			hour: 1, min: 0,
			want: time.Date(2026, 9, 1, 1, 0, 0, 0, loc),
		},
		{
			name: "month rollover",
			now:  time.Date(2026, 8, 31, 23, 59, 0, 0, loc),
			hour: 1, min: 0,
			want: time.Date(2026, 9, 1, 1, 0, 0, 0, loc),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := nextDailyRun(tt.now, tt.hour, tt.min)
			if !got.Equal(tt.want) {
				t.Errorf("nextDailyRun(%v) = %v, want %v", tt.now, got, tt.want)
			}
		})
	}
}

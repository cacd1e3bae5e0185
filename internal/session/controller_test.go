package session

import (
	"context"
	"testing"
	"time"

	"focusflow/internal/event"
	"focusflow/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type harness struct {
	ctrl      *Controller
	clock     *manualClock
	tasks     *memTaskStore
	intervals *memIntervalStore
}

func newHarness(t *testing.T, tasks ...models.Task) *harness {
	t.Helper()
	h := &harness{
		clock:     &manualClock{},
		tasks:     newMemTaskStore(tasks...),
		intervals: &memIntervalStore{},
	}
	h.ctrl = NewController(Options{
		OwnerID:   "alice",
		Tasks:     h.tasks,
		Intervals: h.intervals,
		Clock:     h.clock,
	})
	t.Cleanup(h.ctrl.Close)
	return h
}

func (h *harness) flush(t *testing.T) {
	t.Helper()
	require.NoError(t, h.ctrl.Flush(context.Background()))
}

func TestSelectModeSetsDurations(t *testing.T) {
	h := newHarness(t)

	cases := []struct {
		mode       models.SessionMode
		study, brk int
	}{
		{models.ModePomodoro, 25, 5},
		{models.ModeFiftyTen, 50, 10},
		{models.ModeFiftyTwo, 52, 17},
	}
	for _, tc := range cases {
		require.NoError(t, h.ctrl.SelectMode(tc.mode, 0, 0))
		cycle := h.ctrl.Cycle()
		assert.Equal(t, tc.study, cycle.StudyDuration, tc.mode)
		assert.Equal(t, tc.brk, cycle.BreakDuration, tc.mode)
		assert.Equal(t, tc.mode, cycle.Mode)
	}
}

func TestSelectModeRejectsInvalidCustom(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.ctrl.SelectMode(models.ModeFiftyTen, 0, 0))

	for _, bad := range [][2]int{{0, 10}, {45, 0}, {-5, 5}} {
		err := h.ctrl.SelectMode(models.ModeCustom, bad[0], bad[1])
		assert.ErrorIs(t, err, models.ErrInvalidDuration)

		cycle := h.ctrl.Cycle()
		assert.Equal(t, models.ModeFiftyTen, cycle.Mode)
		assert.Equal(t, 50, cycle.StudyDuration)
		assert.Equal(t, 10, cycle.BreakDuration)
	}
}

func TestStudyCompletionStartsBreak(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.ctrl.StartSession(ctx)
	assert.Equal(t, event.StateStudying, h.ctrl.State())
	assert.Equal(t, 25*time.Minute, h.clock.last().d)

	h.clock.complete()
	h.flush(t)

	records := h.intervals.all()
	require.Len(t, records, 1)
	assert.Equal(t, models.KindStudy, records[0].Kind)
	assert.Equal(t, 25.0, records[0].DurationMinutes)
	assert.Equal(t, "alice", records[0].OwnerID)
	assert.Equal(t, "pomodoro", records[0].Label)

	assert.Equal(t, event.StateOnBreak, h.ctrl.State())
	cycle := h.ctrl.Cycle()
	assert.True(t, cycle.IsBreak)
	assert.Equal(t, 1, cycle.CycleCount)
	assert.Equal(t, 5, cycle.BreakDuration)
	assert.Equal(t, 5*time.Minute, h.clock.last().d)
}

func TestBreakCompletionReturnsToStudy(t *testing.T) {
	h := newHarness(t)
	h.ctrl.StartSession(context.Background())

	h.clock.complete() // study
	h.clock.complete() // break
	h.flush(t)

	assert.Equal(t, event.StateStudying, h.ctrl.State())
	assert.False(t, h.ctrl.Cycle().IsBreak)
	assert.Equal(t, 25*time.Minute, h.clock.last().d)

	records := h.intervals.all()
	require.Len(t, records, 2)
	assert.Equal(t, models.KindBreak, records[1].Kind)
	assert.Equal(t, 5.0, records[1].DurationMinutes)
}

func TestLongBreakEveryFourthCycle(t *testing.T) {
	h := newHarness(t)
	h.ctrl.StartSession(context.Background())

	var breaks []int
	for i := 0; i < 5; i++ {
		h.clock.complete() // study
		breaks = append(breaks, h.ctrl.Cycle().BreakDuration)
		h.clock.complete() // break
	}
	assert.Equal(t, []int{5, 5, 5, 30, 5}, breaks)
	assert.Equal(t, 5, h.ctrl.Cycle().CycleCount)
}

func TestCustomModeLongBreak(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.ctrl.SelectMode(models.ModeCustom, 1, 1))
	h.ctrl.StartSession(context.Background())

	for i := 0; i < 3; i++ {
		h.clock.complete()
		assert.Equal(t, 1, h.ctrl.Cycle().BreakDuration)
		h.clock.complete()
	}
	h.clock.complete()
	assert.Equal(t, 30, h.ctrl.Cycle().BreakDuration)
	assert.Equal(t, 30*time.Minute, h.clock.last().d)
}

func TestConfigureChangesLongBreak(t *testing.T) {
	h := newHarness(t)
	h.ctrl.Configure(20, 2)
	h.ctrl.StartSession(context.Background())

	h.clock.complete()
	h.clock.complete()
	h.clock.complete()
	assert.Equal(t, 20, h.ctrl.Cycle().BreakDuration)
}

func TestEndSessionEarlyCountsElapsed(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.ctrl.StartSession(ctx)

	h.clock.tick(1000) // 25 - 1000/60 = 8.33 minutes elapsed
	summary, ok := h.ctrl.EndSessionEarly(ctx)
	require.True(t, ok)
	h.flush(t)

	assert.InDelta(t, 25-1000.0/60, summary.TotalStudyMinutes, 0.01)
	assert.Equal(t, event.StateEnded, h.ctrl.State())
	assert.Equal(t, 1, h.clock.cancels)

	records := h.intervals.all()
	require.Len(t, records, 1)
	assert.Equal(t, models.KindStudy, records[0].Kind)
	assert.InDelta(t, 8.33, records[0].DurationMinutes, 0.01)
}

func TestEndSessionEarlyAfterFullCycle(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.ctrl.StartSession(ctx)

	h.clock.complete() // 25 study
	h.clock.complete() // 5 break
	h.ctrl.Tick(1200)  // 5 minutes into the next study interval
	summary, ok := h.ctrl.EndSessionEarly(ctx)
	require.True(t, ok)

	assert.InDelta(t, 30.0, summary.TotalStudyMinutes, 0.001)
	assert.Equal(t, 1, summary.Cycles)
}

func TestEndSessionEarlyIsIdempotent(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.ctrl.StartSession(ctx)
	h.clock.tick(600)

	first, ok := h.ctrl.EndSessionEarly(ctx)
	require.True(t, ok)
	_, ok = h.ctrl.EndSessionEarly(ctx)
	assert.False(t, ok)
	h.flush(t)

	assert.Len(t, h.intervals.all(), 1)
	assert.Equal(t, 1, h.clock.cancels)
	summary, ok := h.ctrl.Summary()
	require.True(t, ok)
	assert.Equal(t, first, summary)
}

func TestEndSessionWhenIdleIsNoop(t *testing.T) {
	h := newHarness(t)
	_, ok := h.ctrl.EndSessionEarly(context.Background())
	assert.False(t, ok)
	assert.Equal(t, event.StateIdle, h.ctrl.State())
	assert.Equal(t, 0, h.clock.cancels)
	_, ok = h.ctrl.Summary()
	assert.False(t, ok)
}

func TestEndDuringBreakLogsBreakOnly(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.ctrl.StartSession(ctx)
	h.clock.complete()
	h.clock.tick(120) // 3 of 5 break minutes used

	summary, ok := h.ctrl.EndSessionEarly(ctx)
	require.True(t, ok)
	h.flush(t)

	assert.InDelta(t, 25.0, summary.TotalStudyMinutes, 0.001)
	records := h.intervals.all()
	require.Len(t, records, 2)
	assert.Equal(t, models.KindBreak, records[1].Kind)
	assert.InDelta(t, 3.0, records[1].DurationMinutes, 0.001)
}

func TestEndWithoutElapsedTimeWritesNothing(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.ctrl.StartSession(ctx)

	summary, ok := h.ctrl.EndSessionEarly(ctx)
	require.True(t, ok)
	h.flush(t)
	assert.Equal(t, 0.0, summary.TotalStudyMinutes)
	assert.Empty(t, h.intervals.all())
}

func TestCompletedTaskDelta(t *testing.T) {
	h := newHarness(t,
		models.Task{ID: "t1", OwnerID: "alice", Title: "a", Done: true},
		models.Task{ID: "t2", OwnerID: "alice", Title: "b", Done: true},
		models.Task{ID: "t3", OwnerID: "alice", Title: "c"},
		models.Task{ID: "t4", OwnerID: "bob", Title: "d"},
	)
	ctx := context.Background()
	h.ctrl.StartSession(ctx)

	require.NoError(t, h.ctrl.SetTaskDone("t3", true))
	h.clock.tick(900)
	summary, ok := h.ctrl.EndSessionEarly(ctx)
	require.True(t, ok)
	assert.Equal(t, 1, summary.CompletedTaskDelta)
}

func TestCompletedTaskDeltaWithoutSnapshot(t *testing.T) {
	h := newHarness(t, models.Task{ID: "t1", OwnerID: "alice", Title: "a"})
	h.tasks.listErr = ErrMockStorage
	ctx := context.Background()
	h.ctrl.StartSession(ctx)
	h.tasks.mu.Lock()
	h.tasks.listErr = nil
	h.tasks.mu.Unlock()

	require.NoError(t, h.ctrl.SetTaskDone("t1", true))
	summary, ok := h.ctrl.EndSessionEarly(ctx)
	require.True(t, ok)
	assert.Equal(t, 0, summary.CompletedTaskDelta)
}

func TestStaleCompletionIsIgnored(t *testing.T) {
	h := newHarness(t)
	h.ctrl.StartSession(context.Background())
	stale := h.clock.last()

	stale.onComplete()
	stale.onComplete() // duplicate delivery from the same countdown
	h.flush(t)

	assert.Equal(t, event.StateOnBreak, h.ctrl.State())
	assert.Equal(t, 1, h.ctrl.Cycle().CycleCount)
	assert.Len(t, h.intervals.all(), 1)

	stale.onTick(10) // ticks from the old countdown must not touch the break
	assert.Equal(t, 300*time.Second, h.ctrl.Status().RemainingTime)
}

func TestStartSessionRestartsActiveSession(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.ctrl.StartSession(ctx)
	h.clock.complete()
	require.Equal(t, event.StateOnBreak, h.ctrl.State())

	h.ctrl.StartSession(ctx)
	assert.Equal(t, event.StateStudying, h.ctrl.State())
	assert.Equal(t, 0, h.ctrl.Cycle().CycleCount)
	assert.Equal(t, 1, h.clock.cancels)

	summary, ok := h.ctrl.EndSessionEarly(ctx)
	require.True(t, ok)
	assert.Equal(t, 0.0, summary.TotalStudyMinutes)
}

func TestStorageFailureDoesNotStallSession(t *testing.T) {
	updates := make(chan interface{}, 32)
	clk := &manualClock{}
	intervals := &memIntervalStore{fail: true}
	ctrl := NewController(Options{
		OwnerID:   "alice",
		Tasks:     newMemTaskStore(),
		Intervals: intervals,
		Clock:     clk,
		Updates:   updates,
	})
	defer ctrl.Close()

	ctrl.StartSession(context.Background())
	clk.complete()
	assert.Equal(t, event.StateOnBreak, ctrl.State())

	err := ctrl.Flush(context.Background())
	assert.ErrorIs(t, err, ErrMockStorage)
	assert.NoError(t, ctrl.Flush(context.Background()), "errors are reported once")

	var failures int
	for len(updates) > 0 {
		if _, ok := (<-updates).(event.StorageFailure); ok {
			failures++
		}
	}
	assert.Equal(t, 1, failures)
}

func TestDismissSummary(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.ctrl.StartSession(ctx)
	h.clock.tick(60)
	_, ok := h.ctrl.EndSessionEarly(ctx)
	require.True(t, ok)

	h.ctrl.DismissSummary()
	_, ok = h.ctrl.Summary()
	assert.False(t, ok)
}

func TestOnIntervalCompleteWhenIdle(t *testing.T) {
	h := newHarness(t)
	h.ctrl.OnIntervalComplete()
	h.flush(t)
	assert.Equal(t, event.StateIdle, h.ctrl.State())
	assert.Empty(t, h.intervals.all())
}

func TestSelectModeMidStudyKeepsRunningLength(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.ctrl.StartSession(ctx)
	require.Equal(t, 25*time.Minute, h.clock.last().d)

	require.NoError(t, h.ctrl.SelectMode(models.ModeFiftyTen, 0, 0))
	h.clock.complete()
	h.flush(t)

	records := h.intervals.all()
	require.Len(t, records, 1)
	assert.Equal(t, 25.0, records[0].DurationMinutes)
	assert.Equal(t, 10*time.Minute, h.clock.last().d, "the new mode applies from the next interval")

	h.clock.complete()
	assert.Equal(t, 50*time.Minute, h.clock.last().d)

	summary, ok := h.ctrl.EndSessionEarly(ctx)
	require.True(t, ok)
	assert.Equal(t, 25.0, summary.TotalStudyMinutes)
}

func TestRestartWhileEndingKeepsSummaryOff(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.ctrl.StartSession(ctx)
	h.clock.tick(600)

	release := make(chan struct{})
	require.NoError(t, h.ctrl.writer.Dispatch("slow_write", func(context.Context) error {
		<-release
		return nil
	}))

	ended := make(chan models.SessionSummary, 1)
	go func() {
		summary, _ := h.ctrl.EndSessionEarly(ctx)
		ended <- summary
	}()

	require.Eventually(t, func() bool {
		return h.ctrl.State() == event.StateEnded
	}, 2*time.Second, 5*time.Millisecond)
	h.ctrl.StartSession(ctx)
	close(release)

	select {
	case summary := <-ended:
		assert.Equal(t, 15.0, summary.TotalStudyMinutes)
	case <-time.After(2 * time.Second):
		t.Fatal("EndSessionEarly did not return")
	}
	assert.Equal(t, event.StateStudying, h.ctrl.State())
	_, ok := h.ctrl.Summary()
	assert.False(t, ok, "the new session must not inherit the old summary")
}

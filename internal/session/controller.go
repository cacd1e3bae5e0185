package session

import (
	"context"
	"fmt"
	"log"
	"math"
	"sync"
	"time"

	"focusflow/internal/clock"
	"focusflow/internal/event"
	"focusflow/internal/models"
	"focusflow/internal/storage"

	"github.com/google/uuid"
)

const (
	DefaultLongBreakMinutes  = 30
	DefaultLongBreakInterval = 4
)

// Options carries everything a Controller needs. One Controller serves one
// owner and runs at most one session at a time.
type Options struct {
	OwnerID   string
	Tasks     storage.TaskStore
	Intervals storage.IntervalStore
	Clock     clock.Clock
	// Updates receives event.StatusUpdate, event.Notification and
	// event.StorageFailure values. Optional.
	Updates chan<- interface{}

	LongBreakMinutes  int
	LongBreakInterval int
	WriteTimeout      time.Duration
	WriteBuffer       int
	Now               func() time.Time
}

type Controller struct {
	owner     string
	tasks     storage.TaskStore
	intervals storage.IntervalStore
	clock     clock.Clock
	updates   chan<- interface{}
	writer    *Dispatcher
	now       func() time.Time

	mu                sync.Mutex
	state             event.SessionState
	cycle             models.CycleState
	baseBreak         int
	longBreakMinutes  int
	longBreakInterval int

	gen              uint64 // bumped for every countdown; stale clock callbacks are dropped
	scheduledMinutes int
	remainingSecs    int

	totalStudy  float64
	startedAt   time.Time
	doneAtStart map[string]struct{} // nil when the snapshot could not be taken
	summary     *models.SessionSummary
}

func NewController(opts Options) *Controller {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.LongBreakMinutes < 1 {
		opts.LongBreakMinutes = DefaultLongBreakMinutes
	}
	if opts.LongBreakInterval < 1 {
		opts.LongBreakInterval = DefaultLongBreakInterval
	}
	if opts.WriteBuffer < 1 {
		opts.WriteBuffer = 64
	}

	pomodoro, _ := models.ResolveDurations(models.ModePomodoro, 0, 0)
	c := &Controller{
		owner:     opts.OwnerID,
		tasks:     opts.Tasks,
		intervals: opts.Intervals,
		clock:     opts.Clock,
		updates:   opts.Updates,
		now:       opts.Now,
		state:     event.StateIdle,
		cycle: models.CycleState{
			Mode:          models.ModePomodoro,
			StudyDuration: pomodoro.StudyMinutes,
			BreakDuration: pomodoro.BreakMinutes,
		},
		baseBreak:         pomodoro.BreakMinutes,
		longBreakMinutes:  opts.LongBreakMinutes,
		longBreakInterval: opts.LongBreakInterval,
	}
	c.writer = NewDispatcher(opts.WriteBuffer, opts.WriteTimeout, func(op string, err error) {
		c.sendUpdate(event.StorageFailure{Op: op, Err: err})
	})
	return c
}

// SelectMode sets the study/break lengths. Invalid custom values leave the
// current durations untouched.
func (c *Controller) SelectMode(mode models.SessionMode, customStudy, customBreak int) error {
	d, err := models.ResolveDurations(mode, customStudy, customBreak)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.cycle.Mode = mode
	c.cycle.StudyDuration = d.StudyMinutes
	c.baseBreak = d.BreakMinutes
	// A break already counting down keeps its length.
	if c.state != event.StateOnBreak {
		c.cycle.BreakDuration = d.BreakMinutes
	}
	log.Printf("Session: mode set to %s (%d/%d)", mode, d.StudyMinutes, d.BreakMinutes)
	return nil
}

// Configure changes the long-break rule for breaks scheduled from now on.
func (c *Controller) Configure(longBreakMinutes, longBreakInterval int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if longBreakMinutes >= 1 {
		c.longBreakMinutes = longBreakMinutes
	}
	if longBreakInterval >= 1 {
		c.longBreakInterval = longBreakInterval
	}
}

// StartSession begins a new session with a study interval. A session that is
// still running is cancelled and replaced.
func (c *Controller) StartSession(ctx context.Context) {
	snapshot := c.completedTaskIDs(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state.Active() {
		log.Printf("Session: restarting, abandoning %s interval", c.state)
		c.clock.Cancel()
	}

	c.cycle.CycleCount = 0
	c.cycle.IsBreak = false
	c.cycle.BreakDuration = c.baseBreak
	c.totalStudy = 0
	c.doneAtStart = snapshot
	c.summary = nil
	c.startedAt = c.now()
	c.state = event.StateStudying
	c.beginIntervalLocked(c.cycle.StudyDuration)

	log.Printf("Session: started (%s, %d min study)", c.cycle.Mode, c.cycle.StudyDuration)
	c.sendUpdate(c.statusLocked())
	c.sendUpdate(event.Notification{Title: "Session Started", Message: fmt.Sprintf("%d minutes of focus", c.cycle.StudyDuration)})
}

// OnIntervalComplete finishes whatever interval is running. Calling it while
// no session is active does nothing.
func (c *Controller) OnIntervalComplete() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.completeLocked()
}

// Tick records the remaining seconds of the current interval.
func (c *Controller) Tick(remainingSeconds int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tickLocked(remainingSeconds)
}

// EndSessionEarly stops the session and returns its summary. The boolean is
// false when there was no active session, in which case nothing happens.
func (c *Controller) EndSessionEarly(ctx context.Context) (models.SessionSummary, bool) {
	c.mu.Lock()
	if !c.state.Active() {
		c.mu.Unlock()
		return models.SessionSummary{}, false
	}

	c.clock.Cancel()
	c.gen++

	elapsed := c.elapsedLocked()
	kind := models.KindStudy
	if c.cycle.IsBreak {
		kind = models.KindBreak
	} else {
		c.totalStudy += elapsed
	}
	if elapsed > 0 {
		c.recordLocked(kind, elapsed)
	}

	c.state = event.StateEnded
	summary := models.SessionSummary{
		TotalStudyMinutes: c.totalStudy,
		Cycles:            c.cycle.CycleCount,
		StartedAt:         c.startedAt,
		EndedAt:           c.now(),
	}
	before := c.doneAtStart
	gen := c.gen
	c.sendUpdate(c.statusLocked())
	c.mu.Unlock()

	// Toggles queued during the session must land before the delta is taken.
	if err := c.writer.Wait(ctx); err != nil {
		log.Printf("Warning: waiting for pending writes: %v", err)
	}
	summary.CompletedTaskDelta = c.completedDelta(ctx, before)

	c.mu.Lock()
	// A session started while the writes drained owns the state now.
	if c.gen == gen {
		c.summary = &summary
	}
	c.mu.Unlock()

	log.Printf("Session: ended, %.2f study minutes, %d tasks completed", summary.TotalStudyMinutes, summary.CompletedTaskDelta)
	c.sendUpdate(event.Notification{
		Title:   "Session Ended",
		Message: fmt.Sprintf("%.1f minutes studied, %d tasks done", summary.TotalStudyMinutes, summary.CompletedTaskDelta),
	})
	return summary, true
}

// SetTaskDone queues a task toggle without waiting for the store.
func (c *Controller) SetTaskDone(taskID string, done bool) error {
	if c.tasks == nil {
		return fmt.Errorf("set task done: no task store")
	}
	return c.writer.Dispatch("set_task_done", func(ctx context.Context) error {
		return c.tasks.SetTaskDone(ctx, taskID, done)
	})
}

func (c *Controller) SetSubtaskDone(subtaskID string, done bool) error {
	if c.tasks == nil {
		return fmt.Errorf("set subtask done: no task store")
	}
	return c.writer.Dispatch("set_subtask_done", func(ctx context.Context) error {
		return c.tasks.SetSubtaskDone(ctx, subtaskID, done)
	})
}

// Flush waits for queued writes and returns the failures collected since the
// previous Flush.
func (c *Controller) Flush(ctx context.Context) error {
	if err := c.writer.Wait(ctx); err != nil {
		return err
	}
	return c.writer.TakeErrors()
}

func (c *Controller) State() event.SessionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) Cycle() models.CycleState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cycle
}

func (c *Controller) Status() event.StatusUpdate {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.statusLocked()
}

// Summary returns the summary of the last ended session until it is dismissed.
func (c *Controller) Summary() (models.SessionSummary, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.summary == nil {
		return models.SessionSummary{}, false
	}
	return *c.summary, true
}

func (c *Controller) DismissSummary() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.summary = nil
}

// Close stops the countdown and drains pending writes.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.state.Active() {
		c.clock.Cancel()
		c.gen++
	}
	c.mu.Unlock()
	c.writer.Close()
}

// --- internals, all *Locked helpers expect c.mu held ---

func (c *Controller) beginIntervalLocked(minutes int) {
	c.gen++
	gen := c.gen
	c.scheduledMinutes = minutes
	c.remainingSecs = minutes * 60
	c.cycle.ElapsedMinutes = 0

	c.clock.Start(time.Duration(minutes)*time.Minute,
		func(remaining int) { c.onClockTick(gen, remaining) },
		func() { c.onClockComplete(gen) },
	)
}

func (c *Controller) onClockTick(gen uint64, remaining int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen {
		return
	}
	c.tickLocked(remaining)
}

func (c *Controller) onClockComplete(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen {
		log.Println("Session: ignoring completion from a stale countdown")
		return
	}
	c.completeLocked()
}

func (c *Controller) tickLocked(remaining int) {
	if !c.state.Active() {
		return
	}
	if remaining < 0 {
		remaining = 0
	}
	if limit := c.scheduledMinutes * 60; remaining > limit {
		remaining = limit
	}
	c.remainingSecs = remaining
	c.cycle.ElapsedMinutes = c.elapsedLocked()
}

func (c *Controller) completeLocked() {
	switch c.state {
	case event.StateStudying:
		// The countdown that ran, not a length picked since it started.
		ran := float64(c.scheduledMinutes)
		c.recordLocked(models.KindStudy, ran)
		c.totalStudy += ran
		c.cycle.CycleCount++
		c.cycle.BreakDuration = c.nextBreakLocked()
		c.cycle.IsBreak = true
		c.state = event.StateOnBreak
		c.beginIntervalLocked(c.cycle.BreakDuration)
		log.Printf("Session: study interval %d complete, %d min break", c.cycle.CycleCount, c.cycle.BreakDuration)
		c.sendUpdate(event.Notification{Title: "Focus", Message: "Study interval complete! Take a break."})

	case event.StateOnBreak:
		c.recordLocked(models.KindBreak, float64(c.scheduledMinutes))
		c.cycle.IsBreak = false
		c.state = event.StateStudying
		c.beginIntervalLocked(c.cycle.StudyDuration)
		log.Printf("Session: break complete, %d min study", c.cycle.StudyDuration)
		c.sendUpdate(event.Notification{Title: "Focus", Message: "Break finished! Time for focus."})

	default:
		return
	}
	c.sendUpdate(c.statusLocked())
}

func (c *Controller) nextBreakLocked() int {
	if c.cycle.CycleCount > 0 && c.cycle.CycleCount%c.longBreakInterval == 0 {
		return c.longBreakMinutes
	}
	return c.baseBreak
}

// elapsedLocked is scheduled minutes minus remaining seconds, rounded to the
// hundredth of a minute.
func (c *Controller) elapsedLocked() float64 {
	elapsed := float64(c.scheduledMinutes) - float64(c.remainingSecs)/60
	if elapsed < 0 {
		elapsed = 0
	}
	return math.Round(elapsed*100) / 100
}

func (c *Controller) recordLocked(kind models.IntervalKind, minutes float64) {
	if c.intervals == nil {
		return
	}
	rec := models.IntervalRecord{
		ID:              uuid.New().String(),
		OwnerID:         c.owner,
		DurationMinutes: minutes,
		Kind:            kind,
		Label:           string(c.cycle.Mode),
		CreatedAt:       c.now(),
	}
	err := c.writer.Dispatch("append_interval", func(ctx context.Context) error {
		return c.intervals.AppendInterval(ctx, rec)
	})
	if err != nil {
		log.Printf("Warning: dropping %s interval record: %v", kind, err)
	}
}

func (c *Controller) statusLocked() event.StatusUpdate {
	var remaining time.Duration
	if c.state.Active() {
		remaining = time.Duration(c.remainingSecs) * time.Second
	}
	return event.StatusUpdate{State: c.state, RemainingTime: remaining, CycleCount: c.cycle.CycleCount}
}

func (c *Controller) completedTaskIDs(ctx context.Context) map[string]struct{} {
	if c.tasks == nil {
		return nil
	}
	tasks, err := c.tasks.ListTasksForOwner(ctx, c.owner, models.DateRange{})
	if err != nil {
		log.Printf("Warning: could not snapshot tasks: %v", err)
		c.sendUpdate(event.StorageFailure{Op: "list_tasks", Err: err})
		return nil
	}
	return models.DoneIDs(tasks)
}

func (c *Controller) completedDelta(ctx context.Context, before map[string]struct{}) int {
	if before == nil {
		return 0
	}
	after := c.completedTaskIDs(ctx)
	delta := 0
	for id := range after {
		if _, ok := before[id]; !ok {
			delta++
		}
	}
	return delta
}

func (c *Controller) sendUpdate(update interface{}) {
	if c.updates == nil {
		return
	}
	select {
	case c.updates <- update:
	case <-time.After(100 * time.Millisecond):
		log.Printf("Warning: Timeout sending %T update from session controller", update)
	}
}

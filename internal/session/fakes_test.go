package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"focusflow/internal/models"
	"focusflow/internal/storage"
)

var ErrMockStorage = errors.New("mock storage error")

// manualClock records countdowns and lets the test fire them.
type manualClock struct {
	mu      sync.Mutex
	starts  []countdown
	cancels int
}

type countdown struct {
	d          time.Duration
	onTick     func(int)
	onComplete func()
}

func (m *manualClock) Start(d time.Duration, onTick func(int), onComplete func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.starts = append(m.starts, countdown{d: d, onTick: onTick, onComplete: onComplete})
}

func (m *manualClock) Cancel() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cancels++
}

func (m *manualClock) last() countdown {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.starts[len(m.starts)-1]
}

// complete fires the completion callback of the most recent countdown.
func (m *manualClock) complete() {
	m.last().onComplete()
}

func (m *manualClock) tick(remaining int) {
	m.last().onTick(remaining)
}

type memTaskStore struct {
	mu       sync.Mutex
	tasks    map[string]*models.Task
	subtasks map[string]*models.Subtask
	listErr  error
}

func newMemTaskStore(tasks ...models.Task) *memTaskStore {
	s := &memTaskStore{tasks: map[string]*models.Task{}, subtasks: map[string]*models.Subtask{}}
	for i := range tasks {
		t := tasks[i]
		s.tasks[t.ID] = &t
	}
	return s
}

func (s *memTaskStore) CreateTask(_ context.Context, t *models.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *t
	s.tasks[t.ID] = &cp
	return nil
}

func (s *memTaskStore) ListTasksForOwner(_ context.Context, ownerID string, _ models.DateRange) ([]models.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}
	var out []models.Task
	for _, t := range s.tasks {
		if t.OwnerID == ownerID {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (s *memTaskStore) SetTaskDone(_ context.Context, taskID string, done bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[taskID]
	if !ok {
		return storage.ErrNotFound
	}
	t.Done = done
	return nil
}

func (s *memTaskStore) DeleteTask(_ context.Context, taskID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tasks, taskID)
	return nil
}

func (s *memTaskStore) CreateSubtasks(_ context.Context, taskID string, titles []string) ([]models.Subtask, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Subtask
	for i, title := range titles {
		st := models.Subtask{ID: taskID + "-" + title, TaskID: taskID, Title: title, Position: i}
		s.subtasks[st.ID] = &st
		out = append(out, st)
	}
	return out, nil
}

func (s *memTaskStore) ListSubtasks(_ context.Context, taskID string) ([]models.Subtask, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Subtask
	for _, st := range s.subtasks {
		if st.TaskID == taskID {
			out = append(out, *st)
		}
	}
	return out, nil
}

func (s *memTaskStore) SetSubtaskDone(_ context.Context, subtaskID string, done bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.subtasks[subtaskID]
	if !ok {
		return storage.ErrNotFound
	}
	st.Done = done
	return nil
}

type memIntervalStore struct {
	mu      sync.Mutex
	records []models.IntervalRecord
	fail    bool
}

func (s *memIntervalStore) AppendInterval(_ context.Context, rec models.IntervalRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return ErrMockStorage
	}
	s.records = append(s.records, rec)
	return nil
}

func (s *memIntervalStore) ListIntervals(_ context.Context, ownerID string, _ models.DateRange) ([]models.IntervalRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.IntervalRecord
	for _, r := range s.records {
		if r.OwnerID == ownerID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *memIntervalStore) all() []models.IntervalRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.IntervalRecord(nil), s.records...)
}

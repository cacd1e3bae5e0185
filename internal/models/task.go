package models

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const DateLayout = "2006-01-02"

var ErrInvalidTask = errors.New("invalid task")

type Task struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"owner_id"`
	Title     string    `json:"title"`
	Notes     string    `json:"notes,omitempty"`
	Done      bool      `json:"done"`
	Date      string    `json:"date"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Subtask struct {
	ID        string    `json:"id"`
	TaskID    string    `json:"task_id"`
	Title     string    `json:"title"`
	Done      bool      `json:"done"`
	Position  int       `json:"position"`
	CreatedAt time.Time `json:"created_at"`
}

// Validate normalises the free-form fields and rejects records the store
// cannot hold.
func (t *Task) Validate() error {
	t.Title = strings.TrimSpace(t.Title)
	t.Notes = strings.TrimSpace(t.Notes)
	if t.OwnerID == "" {
		return fmt.Errorf("%w: owner id is required", ErrInvalidTask)
	}
	if t.Title == "" {
		return fmt.Errorf("%w: title is required", ErrInvalidTask)
	}
	if t.Date == "" {
		t.Date = t.CreatedAt.Format(DateLayout)
	}
	if _, err := time.Parse(DateLayout, t.Date); err != nil {
		return fmt.Errorf("%w: date %q is not YYYY-MM-DD", ErrInvalidTask, t.Date)
	}
	return nil
}

func (s *Subtask) Validate() error {
	s.Title = strings.TrimSpace(s.Title)
	if s.TaskID == "" {
		return fmt.Errorf("%w: subtask needs a task id", ErrInvalidTask)
	}
	if s.Title == "" {
		return fmt.Errorf("%w: subtask title is required", ErrInvalidTask)
	}
	return nil
}

// DoneIDs returns the ids of the completed tasks.
func DoneIDs(tasks []Task) map[string]struct{} {
	ids := make(map[string]struct{}, len(tasks))
	for _, t := range tasks {
		if t.Done {
			ids[t.ID] = struct{}{}
		}
	}
	return ids
}

package storage

import (
	"context"
	"errors"

	"focusflow/internal/models"
)

var ErrNotFound = errors.New("not found")

type TaskStore interface {
	CreateTask(ctx context.Context, t *models.Task) error
	ListTasksForOwner(ctx context.Context, ownerID string, r models.DateRange) ([]models.Task, error)
	SetTaskDone(ctx context.Context, taskID string, done bool) error
	DeleteTask(ctx context.Context, taskID string) error

	CreateSubtasks(ctx context.Context, taskID string, titles []string) ([]models.Subtask, error)
	ListSubtasks(ctx context.Context, taskID string) ([]models.Subtask, error)
	SetSubtaskDone(ctx context.Context, subtaskID string, done bool) error
}

// IntervalStore is the append-only session log.
type IntervalStore interface {
	AppendInterval(ctx context.Context, rec models.IntervalRecord) error
	ListIntervals(ctx context.Context, ownerID string, r models.DateRange) ([]models.IntervalRecord, error)
}

type Storage interface {
	TaskStore
	IntervalStore
	Init(ctx context.Context) error
	Close() error
}

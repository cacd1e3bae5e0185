package ipc

import (
	"focusflow/internal/event"
	"focusflow/internal/models"
)

const DefaultSocketPath = "/tmp/focusflow.sock"

// Command represents a command sent over the socket
type Command struct {
	Name string      `json:"name"`
	Args interface{} `json:"args,omitempty"`
}

// Response represents a response sent back over the socket
type Response struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

// --- Command Argument Structs ---

type SelectModeArgs struct {
	Mode         string `json:"mode"`
	StudyMinutes int    `json:"study_minutes,omitempty"` // custom mode only
	BreakMinutes int    `json:"break_minutes,omitempty"`
}

type AddTaskArgs struct {
	Title string `json:"title"`
	Notes string `json:"notes,omitempty"`
	Date  string `json:"date,omitempty"` // YYYY-MM-DD, defaults to today
}

type ListTasksArgs struct {
	Date string `json:"date,omitempty"`
}

type SetDoneArgs struct {
	ID   string `json:"id"`
	Done bool   `json:"done"`
}

type IDArgs struct {
	ID string `json:"id"`
}

type AddSubtasksArgs struct {
	TaskID string   `json:"task_id"`
	Titles []string `json:"titles"`
}

type GeneratePlanArgs struct {
	Prompt string `json:"prompt"`
	// SaveTo, when set, stores the generated subtasks under this task.
	SaveTo string `json:"save_to,omitempty"`
}

type StatsArgs struct {
	Days int `json:"days,omitempty"`
}

// --- Command Names (Constants) ---

const (
	CmdPing           = "ping"
	CmdGetStatus      = "get_status"
	CmdSelectMode     = "select_mode"
	CmdStartSession   = "start_session"
	CmdEndSession     = "end_session"
	CmdDismissSummary = "dismiss_summary"
	CmdAddTask        = "add_task"
	CmdListTasks      = "list_tasks"
	CmdSetTaskDone    = "set_task_done"
	CmdDeleteTask     = "delete_task"
	CmdAddSubtasks    = "add_subtasks"
	CmdListSubtasks   = "list_subtasks"
	CmdSetSubtaskDone = "set_subtask_done"
	CmdGeneratePlan   = "generate_plan"
	CmdGetStats       = "get_stats"
)

// --- Response Data ---

type StatusData struct {
	State           event.SessionState     `json:"state"`
	RemainingSecs   float64                `json:"remaining_secs"`
	CycleCount      int                    `json:"cycle_count"`
	Cycle           models.CycleState      `json:"cycle"`
	Summary         *models.SessionSummary `json:"summary,omitempty"`
	StorageFailures int                    `json:"storage_failures,omitempty"`
}

type PlanData struct {
	Subtasks []string         `json:"subtasks"`
	Saved    []models.Subtask `json:"saved,omitempty"`
}

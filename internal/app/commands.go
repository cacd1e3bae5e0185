package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"focusflow/internal/ipc"
	"focusflow/internal/models"
	"focusflow/internal/plan"
	"focusflow/internal/stats"
)

const defaultStatsDays = 7

func fail(format string, args ...interface{}) ipc.Response {
	return ipc.Response{Success: false, Message: fmt.Sprintf(format, args...)}
}

func invalidArgs(name string, err error) ipc.Response {
	return fail("Invalid args for %s: %v", name, err)
}

// processCommand routes the command to the correct handler
func (a *App) processCommand(cmd ipc.Command) ipc.Response {
	ctx, cancel := context.WithTimeout(a.ctx, commandTimeout)
	defer cancel()

	switch cmd.Name {
	case ipc.CmdPing:
		return ipc.Response{Success: true, Message: "pong"}

	case ipc.CmdGetStatus:
		return ipc.Response{Success: true, Data: a.status()}

	case ipc.CmdSelectMode:
		var args ipc.SelectModeArgs
		if err := ipc.Convert(cmd.Args, &args); err != nil {
			return invalidArgs(cmd.Name, err)
		}
		mode, err := models.ParseMode(args.Mode)
		if err != nil {
			return fail("%v", err)
		}
		if err := a.session.SelectMode(mode, args.StudyMinutes, args.BreakMinutes); err != nil {
			return fail("Cannot select mode %s: %v", mode, err)
		}
		c := a.session.Cycle()
		return ipc.Response{Success: true, Message: fmt.Sprintf("Mode %s: %d min study / %d min break", c.Mode, c.StudyDuration, c.BreakDuration), Data: c}

	case ipc.CmdStartSession:
		a.session.StartSession(ctx)
		c := a.session.Cycle()
		return ipc.Response{Success: true, Message: fmt.Sprintf("Session started: %d min study (%s)", c.StudyDuration, c.Mode), Data: a.status()}

	case ipc.CmdEndSession:
		summary, ok := a.session.EndSessionEarly(ctx)
		if !ok {
			return ipc.Response{Success: true, Message: "No active session"}
		}
		return ipc.Response{Success: true, Message: fmt.Sprintf("Session ended: %.2f study minutes, %d tasks completed", summary.TotalStudyMinutes, summary.CompletedTaskDelta), Data: summary}

	case ipc.CmdDismissSummary:
		a.session.DismissSummary()
		return ipc.Response{Success: true, Message: "Summary dismissed"}

	case ipc.CmdAddTask:
		var args ipc.AddTaskArgs
		if err := ipc.Convert(cmd.Args, &args); err != nil {
			return invalidArgs(cmd.Name, err)
		}
		task := models.Task{OwnerID: a.config().OwnerID, Title: args.Title, Notes: args.Notes, Date: args.Date}
		if err := a.storage.CreateTask(ctx, &task); err != nil {
			return fail("Failed to add task: %v", err)
		}
		return ipc.Response{Success: true, Message: fmt.Sprintf("Task added: %s", task.Title), Data: task}

	case ipc.CmdListTasks:
		var args ipc.ListTasksArgs
		if err := ipc.Convert(cmd.Args, &args); err != nil {
			return invalidArgs(cmd.Name, err)
		}
		tasks, err := a.listTasks(ctx, args.Date)
		if err != nil {
			return fail("Failed to list tasks: %v", err)
		}
		return ipc.Response{Success: true, Message: fmt.Sprintf("%d tasks", len(tasks)), Data: tasks}

	case ipc.CmdSetTaskDone:
		var args ipc.SetDoneArgs
		if err := ipc.Convert(cmd.Args, &args); err != nil {
			return invalidArgs(cmd.Name, err)
		}
		if args.ID == "" {
			return fail("Task id cannot be empty")
		}
		// During a session the toggle joins the controller's write queue so the
		// completed-task count at the end sees it.
		if a.session.State().Active() {
			if err := a.session.SetTaskDone(args.ID, args.Done); err != nil {
				return fail("Failed to queue task update: %v", err)
			}
			return ipc.Response{Success: true, Message: "Task update queued"}
		}
		if err := a.storage.SetTaskDone(ctx, args.ID, args.Done); err != nil {
			return fail("Failed to update task: %v", err)
		}
		return ipc.Response{Success: true, Message: "Task updated"}

	case ipc.CmdDeleteTask:
		var args ipc.IDArgs
		if err := ipc.Convert(cmd.Args, &args); err != nil {
			return invalidArgs(cmd.Name, err)
		}
		if err := a.storage.DeleteTask(ctx, args.ID); err != nil {
			return fail("Failed to delete task: %v", err)
		}
		return ipc.Response{Success: true, Message: "Task deleted"}

	case ipc.CmdAddSubtasks:
		var args ipc.AddSubtasksArgs
		if err := ipc.Convert(cmd.Args, &args); err != nil {
			return invalidArgs(cmd.Name, err)
		}
		subtasks, err := a.storage.CreateSubtasks(ctx, args.TaskID, args.Titles)
		if err != nil {
			return fail("Failed to add subtasks: %v", err)
		}
		return ipc.Response{Success: true, Message: fmt.Sprintf("%d subtasks added", len(subtasks)), Data: subtasks}

	case ipc.CmdListSubtasks:
		var args ipc.IDArgs
		if err := ipc.Convert(cmd.Args, &args); err != nil {
			return invalidArgs(cmd.Name, err)
		}
		subtasks, err := a.storage.ListSubtasks(ctx, args.ID)
		if err != nil {
			return fail("Failed to list subtasks: %v", err)
		}
		return ipc.Response{Success: true, Data: subtasks}

	case ipc.CmdSetSubtaskDone:
		var args ipc.SetDoneArgs
		if err := ipc.Convert(cmd.Args, &args); err != nil {
			return invalidArgs(cmd.Name, err)
		}
		if args.ID == "" {
			return fail("Subtask id cannot be empty")
		}
		if a.session.State().Active() {
			if err := a.session.SetSubtaskDone(args.ID, args.Done); err != nil {
				return fail("Failed to queue subtask update: %v", err)
			}
			return ipc.Response{Success: true, Message: "Subtask update queued"}
		}
		if err := a.storage.SetSubtaskDone(ctx, args.ID, args.Done); err != nil {
			return fail("Failed to update subtask: %v", err)
		}
		return ipc.Response{Success: true, Message: "Subtask updated"}

	case ipc.CmdGeneratePlan:
		var args ipc.GeneratePlanArgs
		if err := ipc.Convert(cmd.Args, &args); err != nil {
			return invalidArgs(cmd.Name, err)
		}
		return a.generatePlan(args)

	case ipc.CmdGetStats:
		var args ipc.StatsArgs
		if err := ipc.Convert(cmd.Args, &args); err != nil {
			return invalidArgs(cmd.Name, err)
		}
		if args.Days < 1 {
			args.Days = defaultStatsDays
		}
		now := time.Now()
		records, err := a.storage.ListIntervals(ctx, a.config().OwnerID, models.LastDays(now, args.Days))
		if err != nil {
			return fail("Failed to load intervals: %v", err)
		}
		return ipc.Response{Success: true, Data: stats.Summarize(records, now)}

	default:
		return fail("Unknown command: %s", cmd.Name)
	}
}

func (a *App) status() ipc.StatusData {
	st := a.session.Status()
	data := ipc.StatusData{
		State:         st.State,
		RemainingSecs: st.RemainingTime.Seconds(),
		CycleCount:    st.CycleCount,
		Cycle:         a.session.Cycle(),
	}
	if summary, ok := a.session.Summary(); ok {
		data.Summary = &summary
	}
	a.statusMutex.RLock()
	data.StorageFailures = a.storageFailures
	a.statusMutex.RUnlock()
	return data
}

func (a *App) listTasks(ctx context.Context, date string) ([]models.Task, error) {
	tasks, err := a.storage.ListTasksForOwner(ctx, a.config().OwnerID, models.DateRange{})
	if err != nil {
		return nil, err
	}
	date = strings.TrimSpace(date)
	if date == "" {
		return tasks, nil
	}
	if _, err := time.Parse(models.DateLayout, date); err != nil {
		return nil, fmt.Errorf("%w: date %q must be YYYY-MM-DD", models.ErrInvalidTask, date)
	}
	filtered := tasks[:0]
	for _, t := range tasks {
		if t.Date == date {
			filtered = append(filtered, t)
		}
	}
	return filtered, nil
}

// generatePlan runs outside the per-command timeout; the generator carries its
// own HTTP timeout.
func (a *App) generatePlan(args ipc.GeneratePlanArgs) ipc.Response {
	subtasks, err := a.planner.Generate(a.ctx, args.Prompt)
	if errors.Is(err, plan.ErrEmptyPrompt) {
		return fail("Prompt cannot be empty")
	}
	if err != nil {
		return fail("Plan generation failed: %v", err)
	}

	data := ipc.PlanData{Subtasks: subtasks}
	if args.SaveTo != "" {
		ctx, cancel := context.WithTimeout(a.ctx, commandTimeout)
		defer cancel()
		saved, err := a.storage.CreateSubtasks(ctx, args.SaveTo, subtasks)
		if err != nil {
			return fail("Plan generated but saving failed: %v", err)
		}
		data.Saved = saved
	}
	return ipc.Response{Success: true, Message: fmt.Sprintf("%d subtasks", len(subtasks)), Data: data}
}

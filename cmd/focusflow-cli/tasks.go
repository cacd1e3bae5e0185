package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"focusflow/internal/ipc"
	"focusflow/internal/models"

	"github.com/spf13/cobra"
)

func newTaskCmd() *cobra.Command {
	taskCmd := &cobra.Command{
		Use:   "task",
		Short: "Manage tasks",
	}

	addCmd := &cobra.Command{
		Use:   "add <title>",
		Short: "Add a task",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			notes, _ := cmd.Flags().GetString("notes")
			date, _ := cmd.Flags().GetString("date")
			return sendCommand(ipc.Command{
				Name: ipc.CmdAddTask,
				Args: ipc.AddTaskArgs{Title: strings.Join(args, " "), Notes: notes, Date: date},
			}, func(resp ipc.Response) error {
				var task models.Task
				if err := ipc.Convert(resp.Data, &task); err != nil {
					return err
				}
				fmt.Printf("Added task %s  %s\n", task.ID, task.Title)
				return nil
			})
		},
	}
	addCmd.Flags().StringP("notes", "n", "", "Optional notes")
	addCmd.Flags().StringP("date", "d", "", "Due date YYYY-MM-DD (default today)")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			date, _ := cmd.Flags().GetString("date")
			return sendCommand(ipc.Command{Name: ipc.CmdListTasks, Args: ipc.ListTasksArgs{Date: date}}, func(resp ipc.Response) error {
				var tasks []models.Task
				if err := ipc.Convert(resp.Data, &tasks); err != nil {
					return err
				}
				printTasks(tasks)
				return nil
			})
		},
	}
	listCmd.Flags().StringP("date", "d", "", "Only tasks for this date (YYYY-MM-DD)")

	doneCmd := &cobra.Command{
		Use:   "done <id>",
		Short: "Mark a task done (--undo to reopen)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			undo, _ := cmd.Flags().GetBool("undo")
			return sendCommand(ipc.Command{Name: ipc.CmdSetTaskDone, Args: ipc.SetDoneArgs{ID: args[0], Done: !undo}}, nil)
		},
	}
	doneCmd.Flags().Bool("undo", false, "Mark the task as not done")

	rmCmd := &cobra.Command{
		Use:     "rm <id>",
		Aliases: []string{"delete"},
		Short:   "Delete a task and its subtasks",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return sendCommand(ipc.Command{Name: ipc.CmdDeleteTask, Args: ipc.IDArgs{ID: args[0]}}, nil)
		},
	}

	taskCmd.AddCommand(addCmd, listCmd, doneCmd, rmCmd)
	return taskCmd
}

func newSubtaskCmd() *cobra.Command {
	subtaskCmd := &cobra.Command{
		Use:   "subtask",
		Short: "Manage the subtasks of a task",
	}

	addCmd := &cobra.Command{
		Use:   "add <task-id> <title>...",
		Short: "Add one subtask per title",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return sendCommand(ipc.Command{
				Name: ipc.CmdAddSubtasks,
				Args: ipc.AddSubtasksArgs{TaskID: args[0], Titles: args[1:]},
			}, func(resp ipc.Response) error {
				fmt.Println(resp.Message)
				return nil
			})
		},
	}

	listCmd := &cobra.Command{
		Use:   "list <task-id>",
		Short: "List subtasks in order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return sendCommand(ipc.Command{Name: ipc.CmdListSubtasks, Args: ipc.IDArgs{ID: args[0]}}, func(resp ipc.Response) error {
				var subtasks []models.Subtask
				if err := ipc.Convert(resp.Data, &subtasks); err != nil {
					return err
				}
				printSubtasks(subtasks)
				return nil
			})
		},
	}

	doneCmd := &cobra.Command{
		Use:   "done <id>",
		Short: "Mark a subtask done (--undo to reopen)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			undo, _ := cmd.Flags().GetBool("undo")
			return sendCommand(ipc.Command{Name: ipc.CmdSetSubtaskDone, Args: ipc.SetDoneArgs{ID: args[0], Done: !undo}}, nil)
		},
	}
	doneCmd.Flags().Bool("undo", false, "Mark the subtask as not done")

	subtaskCmd.AddCommand(addCmd, listCmd, doneCmd)
	return subtaskCmd
}

func newPlanCmd() *cobra.Command {
	planCmd := &cobra.Command{
		Use:   "plan <goal>",
		Short: "Break a goal into subtasks",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			saveTo, _ := cmd.Flags().GetString("save")
			resp, err := call(ipc.Command{
				Name: ipc.CmdGeneratePlan,
				Args: ipc.GeneratePlanArgs{Prompt: strings.Join(args, " "), SaveTo: saveTo},
			}, planTimeout)
			if err != nil {
				return err
			}
			return printResponse(resp, func(resp ipc.Response) error {
				var data ipc.PlanData
				if err := ipc.Convert(resp.Data, &data); err != nil {
					return err
				}
				for i, s := range data.Subtasks {
					fmt.Printf("%d. %s\n", i+1, s)
				}
				if len(data.Saved) > 0 {
					fmt.Printf("Saved %d subtasks to task %s\n", len(data.Saved), shortID(saveTo))
				}
				return nil
			})
		},
	}
	planCmd.Flags().String("save", "", "Store the subtasks under this task id")
	return planCmd
}

func printTasks(tasks []models.Task) {
	if len(tasks) == 0 {
		fmt.Println("No tasks.")
		return
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tDONE\tDATE\tTITLE\tNOTES")
	for _, t := range tasks {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", t.ID, checkbox(t.Done), t.Date, t.Title, t.Notes)
	}
	w.Flush()
}

func printSubtasks(subtasks []models.Subtask) {
	if len(subtasks) == 0 {
		fmt.Println("No subtasks.")
		return
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "#\tID\tDONE\tTITLE")
	for _, s := range subtasks {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", s.Position+1, s.ID, checkbox(s.Done), s.Title)
	}
	w.Flush()
}

func checkbox(done bool) string {
	if done {
		return "[x]"
	}
	return "[ ]"
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

package main

import (
	"fmt"

	"focusflow/internal/ipc"
	"focusflow/internal/models"

	"github.com/spf13/cobra"
)

func newSessionCmd() *cobra.Command {
	sessionCmd := &cobra.Command{
		Use:   "session",
		Short: "Control study/break sessions",
	}

	startCmd := &cobra.Command{
		Use:   "start",
		Short: "Start a session (restarts one that is already running)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if mode, _ := cmd.Flags().GetString("mode"); mode != "" {
				if err := selectMode(cmd, mode); err != nil {
					return err
				}
			}
			return sendCommand(ipc.Command{Name: ipc.CmdStartSession}, func(resp ipc.Response) error {
				fmt.Println(resp.Message)
				return nil
			})
		},
	}
	addModeFlags(startCmd)
	startCmd.Flags().String("mode", "", "Select this mode before starting")

	endCmd := &cobra.Command{
		Use:   "end",
		Short: "End the running session and print its summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			return sendCommand(ipc.Command{Name: ipc.CmdEndSession}, func(resp ipc.Response) error {
				if resp.Data == nil {
					fmt.Println(resp.Message)
					return nil
				}
				var summary models.SessionSummary
				if err := ipc.Convert(resp.Data, &summary); err != nil {
					return err
				}
				fmt.Printf("Session complete\n")
				fmt.Printf("  Study minutes:   %.2f\n", summary.TotalStudyMinutes)
				fmt.Printf("  Cycles:          %d\n", summary.Cycles)
				fmt.Printf("  Tasks completed: %d\n", summary.CompletedTaskDelta)
				return nil
			})
		},
	}

	modeCmd := &cobra.Command{
		Use:       "mode <pomodoro|50-10|52-17|custom>",
		Short:     "Select the study/break mode",
		Args:      cobra.ExactArgs(1),
		ValidArgs: modeNames(),
		RunE: func(cmd *cobra.Command, args []string) error {
			return selectMode(cmd, args[0])
		},
	}
	addModeFlags(modeCmd)

	dismissCmd := &cobra.Command{
		Use:   "dismiss",
		Short: "Dismiss the last session summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			return sendCommand(ipc.Command{Name: ipc.CmdDismissSummary}, nil)
		},
	}

	sessionCmd.AddCommand(startCmd, endCmd, modeCmd, dismissCmd)
	return sessionCmd
}

func addModeFlags(cmd *cobra.Command) {
	cmd.Flags().Int("study", 0, "Study minutes (custom mode)")
	cmd.Flags().Int("break", 0, "Break minutes (custom mode)")
}

func selectMode(cmd *cobra.Command, mode string) error {
	if _, err := models.ParseMode(mode); err != nil {
		return err
	}
	study, _ := cmd.Flags().GetInt("study")
	brk, _ := cmd.Flags().GetInt("break")
	return sendCommand(ipc.Command{
		Name: ipc.CmdSelectMode,
		Args: ipc.SelectModeArgs{Mode: mode, StudyMinutes: study, BreakMinutes: brk},
	}, func(resp ipc.Response) error {
		fmt.Println(resp.Message)
		return nil
	})
}

func modeNames() []string {
	var names []string
	for _, m := range models.Modes() {
		names = append(names, string(m))
	}
	return names
}

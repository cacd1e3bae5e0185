package main

import (
	"encoding/json"
	"fmt"
	"time"

	"focusflow/internal/ipc"

	"github.com/spf13/cobra"
)

const commandTimeout = 5 * time.Second

// planTimeout leaves room for the daemon's call to the model API.
const planTimeout = 60 * time.Second

// call sends one command and returns the response, turning a server-side
// failure into an error.
func call(cmd ipc.Command, timeout time.Duration) (ipc.Response, error) {
	resp, err := ipc.Send(socketPath, cmd, timeout)
	if err != nil {
		return resp, fmt.Errorf("%w\nIs the focusflow daemon running?", err)
	}
	if !resp.Success {
		return resp, fmt.Errorf("%s", resp.Message)
	}
	return resp, nil
}

// sendCommand sends cmd and prints the daemon's message and, with --json or
// when no printer is given, its data.
func sendCommand(cmd ipc.Command, printer func(ipc.Response) error) error {
	resp, err := call(cmd, commandTimeout)
	if err != nil {
		return err
	}
	return printResponse(resp, printer)
}

func printResponse(resp ipc.Response, printer func(ipc.Response) error) error {
	if jsonOutput || printer == nil {
		if resp.Message != "" && !jsonOutput {
			fmt.Println(resp.Message)
		}
		if resp.Data != nil {
			pretty, err := json.MarshalIndent(resp.Data, "", "  ")
			if err != nil {
				return fmt.Errorf("format response data: %w", err)
			}
			fmt.Println(string(pretty))
		}
		return nil
	}
	return printer(resp)
}

var pingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Check if the focusflow daemon is running",
	RunE: func(cmd *cobra.Command, args []string) error {
		return sendCommand(ipc.Command{Name: ipc.CmdPing}, nil)
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the current session state",
	RunE: func(cmd *cobra.Command, args []string) error {
		return sendCommand(ipc.Command{Name: ipc.CmdGetStatus}, func(resp ipc.Response) error {
			var st ipc.StatusData
			if err := ipc.Convert(resp.Data, &st); err != nil {
				return err
			}
			fmt.Print(formatStatus(st))
			return nil
		})
	},
}

func formatStatus(st ipc.StatusData) string {
	out := fmt.Sprintf("State:     %s\n", st.State)
	out += fmt.Sprintf("Mode:      %s (%d min study / %d min break)\n", st.Cycle.Mode, st.Cycle.StudyDuration, st.Cycle.BreakDuration)
	if st.State.Active() {
		out += fmt.Sprintf("Remaining: %s\n", formatSeconds(st.RemainingSecs))
	}
	out += fmt.Sprintf("Cycles:    %d\n", st.CycleCount)
	if st.Summary != nil {
		out += fmt.Sprintf("Last session: %.1f study minutes, %d tasks completed\n", st.Summary.TotalStudyMinutes, st.Summary.CompletedTaskDelta)
	}
	if st.StorageFailures > 0 {
		out += fmt.Sprintf("Warning: %d storage writes failed\n", st.StorageFailures)
	}
	return out
}

func formatSeconds(secs float64) string {
	total := int(secs + 0.5)
	return fmt.Sprintf("%02d:%02d", total/60, total%60)
}

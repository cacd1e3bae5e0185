package main

import (
	"fmt"
	"strings"
	"time"

	"focusflow/internal/event"
	"focusflow/internal/ipc"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
	"github.com/spf13/cobra"
)

func newWatchCmd() *cobra.Command {
	watchCmd := &cobra.Command{
		Use:   "watch",
		Short: "Live session view (s: start, e: end, d: dismiss, q: quit)",
		RunE: func(cmd *cobra.Command, args []string) error {
			interval, _ := cmd.Flags().GetDuration("interval")
			if interval < 100*time.Millisecond {
				interval = 100 * time.Millisecond
			}
			return runWatch(interval)
		},
	}
	watchCmd.Flags().Duration("interval", time.Second, "Refresh interval")
	return watchCmd
}

func runWatch(interval time.Duration) error {
	ui := tview.NewApplication()

	status := tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignCenter)
	status.SetBorder(true).SetTitle(" focusflow ")

	footer := tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignCenter).
		SetText("[yellow]s[-] start   [yellow]e[-] end   [yellow]d[-] dismiss   [yellow]q[-] quit")

	layout := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(status, 0, 1, false).
		AddItem(footer, 1, 0, false)

	refresh := func() {
		resp, err := call(ipc.Command{Name: ipc.CmdGetStatus}, commandTimeout)
		text := ""
		if err != nil {
			text = fmt.Sprintf("\n[red]%v[-]", err)
		} else {
			var st ipc.StatusData
			if err := ipc.Convert(resp.Data, &st); err != nil {
				text = fmt.Sprintf("\n[red]%v[-]", err)
			} else {
				text = renderStatus(st)
			}
		}
		ui.QueueUpdateDraw(func() { status.SetText(text) })
	}

	send := func(name string) {
		go func() {
			if _, err := call(ipc.Command{Name: name}, commandTimeout); err != nil {
				ui.QueueUpdateDraw(func() { footer.SetText(fmt.Sprintf("[red]%v[-]", err)) })
			}
			refresh()
		}()
	}

	ui.SetInputCapture(func(ev *tcell.EventKey) *tcell.EventKey {
		if ev.Key() == tcell.KeyEscape || ev.Key() == tcell.KeyCtrlC {
			ui.Stop()
			return nil
		}
		switch ev.Rune() {
		case 'q':
			ui.Stop()
			return nil
		case 's':
			send(ipc.CmdStartSession)
			return nil
		case 'e':
			send(ipc.CmdEndSession)
			return nil
		case 'd':
			send(ipc.CmdDismissSummary)
			return nil
		}
		return ev
	})

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		refresh()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				refresh()
			}
		}
	}()

	return ui.SetRoot(layout, true).Run()
}

func renderStatus(st ipc.StatusData) string {
	var b strings.Builder
	b.WriteString("\n")

	color := "white"
	switch st.State {
	case event.StateStudying:
		color = "green"
	case event.StateOnBreak:
		color = "blue"
	case event.StateEnded:
		color = "gray"
	}
	fmt.Fprintf(&b, "[%s::b]%s[-::-]\n\n", color, st.State)

	if st.State.Active() {
		fmt.Fprintf(&b, "[::b]%s[::-]\n\n", formatSeconds(st.RemainingSecs))
	}
	fmt.Fprintf(&b, "%s  %d/%d min\n", st.Cycle.Mode, st.Cycle.StudyDuration, st.Cycle.BreakDuration)
	fmt.Fprintf(&b, "cycles completed: %d\n", st.CycleCount)

	if st.Summary != nil {
		fmt.Fprintf(&b, "\n[yellow]Last session[-]\n%.1f study minutes, %d tasks completed\n",
			st.Summary.TotalStudyMinutes, st.Summary.CompletedTaskDelta)
	}
	if st.StorageFailures > 0 {
		fmt.Fprintf(&b, "\n[red]%d storage writes failed[-]\n", st.StorageFailures)
	}
	return b.String()
}

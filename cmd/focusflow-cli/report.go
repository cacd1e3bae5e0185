package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"focusflow/internal/models"
	"focusflow/internal/stats"

	sqlitestore "focusflow/internal/storage/sqlite"

	"github.com/spf13/cobra"
)

// Report reads the database directly so it works without a running daemon.
func newReportCmd() *cobra.Command {
	reportCmd := &cobra.Command{
		Use:   "report",
		Short: "Print study statistics from the database",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			if _, err := os.Stat(dbPath); os.IsNotExist(err) {
				return fmt.Errorf("database file not found at %s; ensure the focusflow daemon has run or pass --db", dbPath)
			} else if err != nil {
				return fmt.Errorf("error accessing database file %s: %w", dbPath, err)
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			days, _ := cmd.Flags().GetInt("days")
			if days < 1 {
				return fmt.Errorf("--days must be at least 1")
			}

			store := sqlitestore.NewSQLiteStore(dbPath)
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := store.Init(ctx); err != nil {
				return fmt.Errorf("failed to open database: %w", err)
			}
			defer store.Close()

			now := time.Now()
			records, err := store.ListIntervals(ctx, cfg.OwnerID, models.LastDays(now, days))
			if err != nil {
				return fmt.Errorf("failed to load intervals: %w", err)
			}
			tasks, err := store.ListTasksForOwner(ctx, cfg.OwnerID, models.DateRange{})
			if err != nil {
				return fmt.Errorf("failed to load tasks: %w", err)
			}

			summary := stats.Summarize(records, now)
			if jsonOutput {
				return printResponseJSON(summary)
			}
			printReport(summary, tasks, days, now)
			return nil
		},
	}
	reportCmd.Flags().IntP("days", "d", 7, "Number of past days to include in the report")
	return reportCmd
}

func printReport(s stats.Summary, tasks []models.Task, days int, now time.Time) {
	done := len(models.DoneIDs(tasks))

	fmt.Printf("focusflow report: last %d days (%s to %s)\n\n", days,
		now.AddDate(0, 0, -days).Format(models.DateLayout), now.Format(models.DateLayout))

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Study time\t%s\n", formatMinutes(s.TotalStudyMinutes))
	fmt.Fprintf(w, "Break time\t%s\n", formatMinutes(s.TotalBreakMinutes))
	fmt.Fprintf(w, "Today\t%s\n", formatMinutes(s.TodayStudyMinutes))
	fmt.Fprintf(w, "Study intervals\t%d (avg %.1f min)\n", s.StudySessions, s.AverageStudyMinutes)
	fmt.Fprintf(w, "Focus efficiency\t%.0f%%\n", s.FocusEfficiency*100)
	fmt.Fprintf(w, "Tasks done\t%d of %d\n", done, len(tasks))
	w.Flush()

	if len(s.ByDay) > 0 {
		fmt.Println("\nStudy minutes per day")
		peak := 0.0
		for _, d := range s.ByDay {
			if d.StudyMinutes > peak {
				peak = d.StudyMinutes
			}
		}
		for _, d := range s.ByDay {
			bar := 0
			if peak > 0 {
				bar = int(d.StudyMinutes / peak * 30)
			}
			fmt.Printf("  %s  %-30s %6.1f\n", d.Date, strings.Repeat("#", bar), d.StudyMinutes)
		}
	}

	if len(s.Recent) > 0 {
		fmt.Println("\nRecent intervals")
		w = tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		for _, r := range s.Recent {
			fmt.Fprintf(w, "  %s\t%s\t%s\t%.2f min\n", r.CreatedAt.Local().Format("2006-01-02 15:04"), r.Kind, r.Label, r.DurationMinutes)
		}
		w.Flush()
	}
}

func formatMinutes(m float64) string {
	total := int(m + 0.5)
	h, mins := total/60, total%60
	if h > 0 {
		return fmt.Sprintf("%dh %dm", h, mins)
	}
	return fmt.Sprintf("%dm", mins)
}

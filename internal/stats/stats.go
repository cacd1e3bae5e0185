package stats

import (
	"math"
	"sort"
	"time"

	"focusflow/internal/models"
)

const recentLimit = 10

// Summary aggregates interval records for the dashboard and the report command.
type Summary struct {
	TotalStudyMinutes   float64                 `json:"total_study_minutes"`
	TotalBreakMinutes   float64                 `json:"total_break_minutes"`
	StudySessions       int                     `json:"study_sessions"`
	BreakSessions       int                     `json:"break_sessions"`
	TodayStudyMinutes   float64                 `json:"today_study_minutes"`
	AverageStudyMinutes float64                 `json:"average_study_minutes"`
	FocusEfficiency     float64                 `json:"focus_efficiency"` // study / (study + break), 0..1
	ByDay               []DayTotal              `json:"by_day"`
	Recent              []models.IntervalRecord `json:"recent"`
}

type DayTotal struct {
	Date         string  `json:"date"`
	StudyMinutes float64 `json:"study_minutes"`
}

// Summarize folds records into a Summary. now decides what "today" is, in
// now's location.
func Summarize(records []models.IntervalRecord, now time.Time) Summary {
	var s Summary
	today := now.Format(models.DateLayout)
	perDay := make(map[string]float64)

	for _, r := range records {
		switch r.Kind {
		case models.KindStudy:
			s.TotalStudyMinutes += r.DurationMinutes
			s.StudySessions++
			day := r.CreatedAt.In(now.Location()).Format(models.DateLayout)
			perDay[day] += r.DurationMinutes
			if day == today {
				s.TodayStudyMinutes += r.DurationMinutes
			}
		case models.KindBreak:
			s.TotalBreakMinutes += r.DurationMinutes
			s.BreakSessions++
		}
	}

	if s.StudySessions > 0 {
		s.AverageStudyMinutes = round2(s.TotalStudyMinutes / float64(s.StudySessions))
	}
	if total := s.TotalStudyMinutes + s.TotalBreakMinutes; total > 0 {
		s.FocusEfficiency = round2(s.TotalStudyMinutes / total)
	}
	s.TotalStudyMinutes = round2(s.TotalStudyMinutes)
	s.TotalBreakMinutes = round2(s.TotalBreakMinutes)
	s.TodayStudyMinutes = round2(s.TodayStudyMinutes)

	for day, minutes := range perDay {
		s.ByDay = append(s.ByDay, DayTotal{Date: day, StudyMinutes: round2(minutes)})
	}
	sort.Slice(s.ByDay, func(i, j int) bool { return s.ByDay[i].Date < s.ByDay[j].Date })

	recent := append([]models.IntervalRecord(nil), records...)
	sort.SliceStable(recent, func(i, j int) bool { return recent[i].CreatedAt.After(recent[j].CreatedAt) })
	if len(recent) > recentLimit {
		recent = recent[:recentLimit]
	}
	s.Recent = recent
	return s
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

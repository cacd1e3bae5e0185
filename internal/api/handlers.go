package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"focusflow/internal/event"
	"focusflow/internal/models"
	"focusflow/internal/plan"
	"focusflow/internal/stats"
	"focusflow/internal/storage"
)

const maxStatsDays = 365

// Planner produces subtasks for a goal.
type Planner interface {
	Generate(ctx context.Context, prompt string) ([]string, error)
}

// SessionView is the read side of the session controller.
type SessionView interface {
	Status() event.StatusUpdate
	Cycle() models.CycleState
	Summary() (models.SessionSummary, bool)
}

type PlanRequest struct {
	Prompt string `json:"prompt"`
}

type PlanResponse struct {
	Subtasks []string `json:"subtasks"`
}

type SessionResponse struct {
	State         event.SessionState     `json:"state"`
	RemainingSecs float64                `json:"remaining_secs"`
	CycleCount    int                    `json:"cycle_count"`
	Cycle         models.CycleState      `json:"cycle"`
	Summary       *models.SessionSummary `json:"summary,omitempty"`
}

type Handler struct {
	planner   Planner
	intervals storage.IntervalStore
	session   SessionView
	owner     string
	now       func() time.Time
}

func NewHandler(planner Planner, intervals storage.IntervalStore, session SessionView, owner string) *Handler {
	return &Handler{planner: planner, intervals: intervals, session: session, owner: owner, now: time.Now}
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GeneratePlan handles POST /api/generate-plan
func (h *Handler) GeneratePlan(w http.ResponseWriter, r *http.Request) {
	var req PlanRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	subtasks, err := h.planner.Generate(r.Context(), req.Prompt)
	if errors.Is(err, plan.ErrEmptyPrompt) {
		writeError(w, http.StatusBadRequest, "prompt is required")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, PlanResponse{Subtasks: subtasks})
}

// Stats handles GET /api/stats?days=N
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	days := 7
	if v := r.URL.Query().Get("days"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxStatsDays {
			writeError(w, http.StatusBadRequest, "days must be between 1 and 365")
			return
		}
		days = n
	}

	now := h.now()
	records, err := h.intervals.ListIntervals(r.Context(), h.owner, models.LastDays(now, days))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load intervals")
		return
	}
	writeJSON(w, http.StatusOK, stats.Summarize(records, now))
}

// Session handles GET /api/session
func (h *Handler) Session(w http.ResponseWriter, r *http.Request) {
	status := h.session.Status()
	resp := SessionResponse{
		State:         status.State,
		RemainingSecs: status.RemainingTime.Seconds(),
		CycleCount:    status.CycleCount,
		Cycle:         h.session.Cycle(),
	}
	if summary, ok := h.session.Summary(); ok {
		resp.Summary = &summary
	}
	writeJSON(w, http.StatusOK, resp)
}

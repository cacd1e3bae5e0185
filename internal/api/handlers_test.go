package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"focusflow/internal/event"
	"focusflow/internal/models"
	"focusflow/internal/plan"
	"focusflow/internal/stats"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubIntervals struct {
	records []models.IntervalRecord
	err     error
	owner   string
}

func (s *stubIntervals) AppendInterval(_ context.Context, rec models.IntervalRecord) error {
	s.records = append(s.records, rec)
	return nil
}

func (s *stubIntervals) ListIntervals(_ context.Context, ownerID string, _ models.DateRange) ([]models.IntervalRecord, error) {
	s.owner = ownerID
	return s.records, s.err
}

type stubSession struct {
	status  event.StatusUpdate
	summary *models.SessionSummary
}

func (s stubSession) Status() event.StatusUpdate { return s.status }
func (s stubSession) Cycle() models.CycleState {
	return models.CycleState{Mode: models.ModePomodoro, StudyDuration: 25, BreakDuration: 5, CycleCount: s.status.CycleCount}
}
func (s stubSession) Summary() (models.SessionSummary, bool) {
	if s.summary == nil {
		return models.SessionSummary{}, false
	}
	return *s.summary, true
}

type panicPlanner struct{}

func (panicPlanner) Generate(context.Context, string) ([]string, error) { panic("boom") }

func newTestServer(t *testing.T, planner Planner, intervals *stubIntervals, sess SessionView, apiKey string) *httptest.Server {
	t.Helper()
	h := NewHandler(planner, intervals, sess, "u1")
	h.now = func() time.Time { return time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC) }
	srv := httptest.NewServer(NewRouter(h, apiKey, log.New(io.Discard, "", 0)))
	t.Cleanup(srv.Close)
	return srv
}

func postPlan(t *testing.T, url, body, token string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, url+"/api/generate-plan", strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t, plan.NewGenerator(plan.Options{}), &stubIntervals{}, stubSession{}, "secret")
	req, err := http.NewRequest(http.MethodGet, srv.URL+"/health", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://localhost:5173")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("X-Request-Id"))
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestPreflightSkipsAuth(t *testing.T) {
	srv := newTestServer(t, plan.NewGenerator(plan.Options{}), &stubIntervals{}, stubSession{}, "secret")
	req, err := http.NewRequest(http.MethodOptions, srv.URL+"/api/generate-plan", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "Content-Type, Authorization")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Less(t, resp.StatusCode, 300)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestGeneratePlanFallback(t *testing.T) {
	srv := newTestServer(t, plan.NewGenerator(plan.Options{}), &stubIntervals{}, stubSession{}, "")

	resp := postPlan(t, srv.URL, `{"prompt":"prepare for the exam"}`, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out PlanResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, plan.FallbackSubtasks, out.Subtasks)
}

func TestGeneratePlanRequiresPrompt(t *testing.T) {
	srv := newTestServer(t, plan.NewGenerator(plan.Options{}), &stubIntervals{}, stubSession{}, "")

	for _, body := range []string{`{}`, `{"prompt":"  "}`, ``, `not json`} {
		resp := postPlan(t, srv.URL, body, "")
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "body %q", body)
	}
}

func TestGeneratePlanAuth(t *testing.T) {
	srv := newTestServer(t, plan.NewGenerator(plan.Options{}), &stubIntervals{}, stubSession{}, "secret")

	assert.Equal(t, http.StatusUnauthorized, postPlan(t, srv.URL, `{"prompt":"x"}`, "").StatusCode)
	assert.Equal(t, http.StatusUnauthorized, postPlan(t, srv.URL, `{"prompt":"x"}`, "wrong").StatusCode)
	assert.Equal(t, http.StatusOK, postPlan(t, srv.URL, `{"prompt":"x"}`, "secret").StatusCode)
}

func TestGeneratePlanRecoversPanic(t *testing.T) {
	srv := newTestServer(t, panicPlanner{}, &stubIntervals{}, stubSession{}, "")
	resp := postPlan(t, srv.URL, `{"prompt":"x"}`, "")
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}

func TestStats(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	intervals := &stubIntervals{records: []models.IntervalRecord{
		{OwnerID: "u1", Kind: models.KindStudy, DurationMinutes: 25, CreatedAt: now.Add(-time.Hour)},
		{OwnerID: "u1", Kind: models.KindBreak, DurationMinutes: 5, CreatedAt: now.Add(-30 * time.Minute)},
	}}
	srv := newTestServer(t, plan.NewGenerator(plan.Options{}), intervals, stubSession{}, "")

	resp, err := http.Get(srv.URL + "/api/stats?days=3")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out stats.Summary
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, 25.0, out.TotalStudyMinutes)
	assert.Equal(t, 25.0, out.TodayStudyMinutes)
	assert.Equal(t, 1, out.StudySessions)
	assert.Equal(t, "u1", intervals.owner)
}

func TestStatsErrors(t *testing.T) {
	srv := newTestServer(t, plan.NewGenerator(plan.Options{}), &stubIntervals{err: errors.New("db down")}, stubSession{}, "")

	resp, err := http.Get(srv.URL + "/api/stats?days=0")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/api/stats")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}

func TestSession(t *testing.T) {
	sess := stubSession{
		status:  event.StatusUpdate{State: event.StateStudying, RemainingTime: 90 * time.Second, CycleCount: 2},
		summary: &models.SessionSummary{TotalStudyMinutes: 50, CompletedTaskDelta: 1},
	}
	srv := newTestServer(t, plan.NewGenerator(plan.Options{}), &stubIntervals{}, sess, "")

	resp, err := http.Get(srv.URL + "/api/session")
	require.NoError(t, err)
	defer resp.Body.Close()

	var out SessionResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, event.StateStudying, out.State)
	assert.Equal(t, 90.0, out.RemainingSecs)
	assert.Equal(t, 2, out.CycleCount)
	assert.Equal(t, 25, out.Cycle.StudyDuration)
	require.NotNil(t, out.Summary)
	assert.Equal(t, 1, out.Summary.CompletedTaskDelta)
}

package router

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/moicben/calendar-agent/internal/delivery/http/handler"
	"github.com/moicben/calendar-agent/internal/entity"
	"github.com/moicben/calendar-agent/internal/usecase"
	"github.com/moicben/calendar-agent/pkg/metrics"
)

type stubGoals struct {
	result entity.AgentResult
	err    error
	gate   chan struct{}
}

func (s *stubGoals) Run(ctx context.Context, req usecase.GoalRequest) (entity.AgentResult, error) {
	if s.gate != nil {
		<-s.gate
	}
	return s.result, s.err
}

func (s *stubGoals) RunFunc(req usecase.GoalRequest) usecase.RunFunc {
	return func(ctx context.Context) (any, error) {
		r, err := s.Run(ctx, req)
		if err != nil {
			return nil, err
		}
		return entity.ResultValue(r), nil
	}
}

type stubBooker struct {
	got    usecase.CalendarBookingRequest
	status entity.BookingStatus
	err    error
}

func (s *stubBooker) BookOnce(_ context.Context, req usecase.CalendarBookingRequest) (entity.BookingStatus, error) {
	s.got = req
	return s.status, s.err
}

func newTestServer(t *testing.T, goals *stubGoals, booker *stubBooker) (*httptest.Server, *metrics.Metrics) {
	t.Helper()
	m := metrics.New()
	runs := usecase.NewRunRegistry(m, nil)
	srv := httptest.NewServer(New(handler.NewHandler(runs, goals, booker, nil), m, nil))
	t.Cleanup(srv.Close)
	return srv, m
}

func do(t *testing.T, method, url, body string) (int, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	var out map[string]any
	if len(bytes.TrimSpace(raw)) > 0 && resp.Header.Get("Content-Type") == "application/json" {
		if err := json.Unmarshal(raw, &out); err != nil {
			t.Fatalf("decode %s: %v", raw, err)
		}
	}
	return resp.StatusCode, out
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t, &stubGoals{}, &stubBooker{})

	code, body := do(t, http.MethodGet, srv.URL+"/health", "")
	if code != http.StatusOK || body["status"] != "ok" {
		t.Fatalf("GET /health = %d %v", code, body)
	}
}

func TestRunLifecycle(t *testing.T) {
	goals := &stubGoals{result: entity.Mapping{"title": "Example Domain"}, gate: make(chan struct{})}
	srv, _ := newTestServer(t, goals, &stubBooker{})

	code, body := do(t, http.MethodPost, srv.URL+"/runs", `{"goal":"read the title","start_url":"https://example.com"}`)
	if code != http.StatusAccepted || body["status"] != "queued" {
		t.Fatalf("POST /runs = %d %v", code, body)
	}
	runID, _ := body["run_id"].(string)
	if runID == "" {
		t.Fatalf("no run_id in %v", body)
	}

	code, body = do(t, http.MethodGet, srv.URL+"/runs/"+runID, "")
	if code != http.StatusOK || body["run_id"] != runID {
		t.Fatalf("GET /runs/{id} = %d %v", code, body)
	}
	if s := body["status"]; s != "queued" && s != "running" {
		t.Fatalf("status before completion = %v", s)
	}

	close(goals.gate)
	deadline := time.Now().Add(2 * time.Second)
	for body["status"] != "succeeded" {
		if time.Now().After(deadline) {
			t.Fatalf("run never succeeded, last = %v", body)
		}
		time.Sleep(5 * time.Millisecond)
		_, body = do(t, http.MethodGet, srv.URL+"/runs/"+runID, "")
	}
	result, _ := body["result"].(map[string]any)
	if result["title"] != "Example Domain" {
		t.Fatalf("result = %v", body["result"])
	}
}

func TestGetUnknownRun(t *testing.T) {
	srv, _ := newTestServer(t, &stubGoals{}, &stubBooker{})

	code, body := do(t, http.MethodGet, srv.URL+"/runs/nope", "")
	if code != http.StatusNotFound || body["error"] != "run_not_found" {
		t.Fatalf("GET /runs/nope = %d %v", code, body)
	}
}

func TestCreateRunValidation(t *testing.T) {
	srv, _ := newTestServer(t, &stubGoals{}, &stubBooker{})

	tests := []struct {
		name string
		body string
	}{
		{name: "invalid json", body: `{"goal":`},
		{name: "missing goal", body: `{"start_url":"https://example.com"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if code, _ := do(t, http.MethodPost, srv.URL+"/runs", tt.body); code != http.StatusBadRequest {
				t.Fatalf("POST /runs = %d, want 400", code)
			}
		})
	}
}

func TestRunGoalSync(t *testing.T) {
	srv, _ := newTestServer(t, &stubGoals{result: entity.Text("done")}, &stubBooker{})

	code, body := do(t, http.MethodPost, srv.URL+"/run-goal", `{"goal":"say done"}`)
	if code != http.StatusOK || body["ok"] != true || body["result"] != "done" {
		t.Fatalf("POST /run-goal = %d %v", code, body)
	}

	failing, _ := newTestServer(t, &stubGoals{err: errors.New("browser crashed")}, &stubBooker{})
	code, body = do(t, http.MethodPost, failing.URL+"/run-goal", `{"goal":"say done"}`)
	if code != http.StatusOK || body["ok"] != false || body["error"] != "browser crashed" {
		t.Fatalf("POST /run-goal failure = %d %v", code, body)
	}
}

func TestBookCalendar(t *testing.T) {
	booker := &stubBooker{status: entity.StatusNoSlot}
	srv, _ := newTestServer(t, &stubGoals{}, booker)

	code, body := do(t, http.MethodPost, srv.URL+"/book-calendar",
		`{"calendar_url":"https://calendly.com/jane","nom":"Paul","societe":"Acme","headless":false,"max_steps":15}`)
	if code != http.StatusOK || body["ok"] != true || body["status"] != "AUCUN_CRENEAU_DISPONIBLE" {
		t.Fatalf("POST /book-calendar = %d %v", code, body)
	}
	got := booker.got
	if got.CalendarURL != "https://calendly.com/jane" || got.Contact.Name != "Paul" || got.Contact.Company != "Acme" {
		t.Fatalf("booking request = %+v", got)
	}
	if got.Headless == nil || *got.Headless || got.MaxSteps != 15 {
		t.Fatalf("options = headless %v max_steps %d", got.Headless, got.MaxSteps)
	}

	if code, body := do(t, http.MethodPost, srv.URL+"/book-calendar", `{"nom":"Paul"}`); code != http.StatusBadRequest {
		t.Fatalf("POST /book-calendar without url = %d %v", code, body)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, &stubGoals{}, &stubBooker{})
	do(t, http.MethodGet, srv.URL+"/health", "")

	resp, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(raw), `path="/health"`) {
		t.Fatalf("GET /metrics = %d\n%s", resp.StatusCode, raw)
	}
}

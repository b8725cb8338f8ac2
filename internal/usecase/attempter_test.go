package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/moicben/calendar-agent/internal/entity"
	"github.com/moicben/calendar-agent/internal/repository"
)

var testContact = entity.Contact{
	Name:    "Jeanne Martin",
	Email:   "jeanne@example.com",
	Phone:   "+33 6 00 00 00 00",
	Company: "Studio Martin",
	Message: "Bonjour",
}

func TestAgentAttempterBook(t *testing.T) {
	browsers := &fakeBrowsers{}
	agent := &fakeAgent{result: entity.Text("SUCCESS_RESERVATION")}
	a := NewAgentAttempter(browsers, agent, testContact, AttemptOptions{MaxSteps: 40, Model: "gpt-4o", Preflight: true}, nil)
	proxy := testProxies(1)[0]

	result, err := a.Attempt(context.Background(), "calendly.com/jane", &proxy)
	if err != nil {
		t.Fatalf("Attempt() error = %v", err)
	}
	if StatusOrError(result) != entity.StatusSuccess {
		t.Fatalf("result = %#v", result)
	}

	if len(browsers.launched) != 1 || browsers.launched[0].Proxy == nil || *browsers.launched[0].Proxy != proxy {
		t.Fatalf("browser launched with %+v, want the attempt proxy", browsers.launched)
	}
	if !browsers.browser.closed {
		t.Fatalf("browser left open")
	}
	if got := browsers.browser.probed; len(got) != 1 || got[0] != "https://calendly.com/jane" {
		t.Fatalf("probed = %v", got)
	}

	task := agent.tasks[0]
	if task.StartURL != "https://calendly.com/jane" || task.MaxSteps != 40 || task.Model != "gpt-4o" {
		t.Fatalf("task = %+v", task)
	}
	if task.DebugURL != "http://127.0.0.1:9222" {
		t.Fatalf("DebugURL = %q", task.DebugURL)
	}
	for _, want := range []string{"https://calendly.com/jane", "jeanne@example.com", "Studio Martin", "AUCUN_CRENEAU_DISPONIBLE"} {
		if !strings.Contains(task.Goal, want) {
			t.Fatalf("goal does not mention %q:\n%s", want, task.Goal)
		}
	}
}

func TestAgentAttempterPreflightNotFound(t *testing.T) {
	browsers := &fakeBrowsers{browser: &fakeBrowser{probe: &entity.PageProbe{NotFound: true, Title: "404"}}}
	agent := &fakeAgent{result: entity.Text("SUCCESS_RESERVATION")}
	a := NewAgentAttempter(browsers, agent, testContact, AttemptOptions{Preflight: true}, nil)

	result, err := a.Attempt(context.Background(), "cal.com/gone", nil)
	if err != nil {
		t.Fatalf("Attempt() error = %v", err)
	}
	if StatusOrError(result) != entity.StatusError {
		t.Fatalf("result = %#v, want an error status", result)
	}
	if len(agent.tasks) != 0 {
		t.Fatalf("agent ran on a missing page")
	}
}

func TestAgentAttempterPreflightFailure(t *testing.T) {
	browsers := &fakeBrowsers{browser: &fakeBrowser{probeErr: repository.ErrNavigationFailed}}
	a := NewAgentAttempter(browsers, &fakeAgent{}, testContact, AttemptOptions{Preflight: true}, nil)

	_, err := a.Attempt(context.Background(), "cal.com/x", nil)
	if !errors.Is(err, repository.ErrNavigationFailed) {
		t.Fatalf("error = %v, want %v", err, repository.ErrNavigationFailed)
	}
	if !browsers.browser.closed {
		t.Fatalf("browser left open after a failed preflight")
	}
}

func TestAgentAttempterLaunchFailure(t *testing.T) {
	browsers := &fakeBrowsers{err: repository.ErrBrowserLaunch}
	agent := &fakeAgent{}
	a := NewAgentAttempter(browsers, agent, testContact, AttemptOptions{}, nil)

	if _, err := a.Attempt(context.Background(), "cal.com/x", nil); !errors.Is(err, repository.ErrBrowserLaunch) {
		t.Fatalf("error = %v, want %v", err, repository.ErrBrowserLaunch)
	}
	if len(agent.tasks) != 0 {
		t.Fatalf("agent ran without a browser")
	}
}

func TestBookingServiceMergesOverrides(t *testing.T) {
	browsers := &fakeBrowsers{}
	agent := &fakeAgent{result: entity.Mapping{"status": "AUCUN_CRENEAU_DISPONIBLE"}}
	a := NewAgentAttempter(browsers, agent, testContact, AttemptOptions{Headless: true, MaxSteps: 30}, nil)
	s := NewBookingService(NewProxyPool(testProxies(3), ReuseOnExhaustion), a, nil)
	headless := false

	status, err := s.BookOnce(context.Background(), CalendarBookingRequest{
		CalendarURL: "calendly.com/jane",
		Contact:     entity.Contact{Email: "other@example.com"},
		Headless:    &headless,
		MaxSteps:    12,
	})
	if err != nil {
		t.Fatalf("BookOnce() error = %v", err)
	}
	if status != entity.StatusNoSlot {
		t.Fatalf("status = %q, want %q", status, entity.StatusNoSlot)
	}
	if len(browsers.launched) != 1 {
		t.Fatalf("launched %d browsers, want a single attempt", len(browsers.launched))
	}
	if opts := browsers.launched[0]; opts.Headless || opts.Proxy == nil {
		t.Fatalf("browser options = %+v, want headful through a proxy", opts)
	}
	task := agent.tasks[0]
	if task.MaxSteps != 12 {
		t.Fatalf("MaxSteps = %d, want 12", task.MaxSteps)
	}
	if !strings.Contains(task.Goal, "other@example.com") || !strings.Contains(task.Goal, "Jeanne Martin") {
		t.Fatalf("goal does not merge the contact override:\n%s", task.Goal)
	}
}

func TestBookingServiceWithoutProxies(t *testing.T) {
	browsers := &fakeBrowsers{}
	a := NewAgentAttempter(browsers, &fakeAgent{result: entity.Text("SUCCESS_RESERVATION")}, testContact, AttemptOptions{}, nil)
	s := NewBookingService(NewProxyPool(nil, ReuseOnExhaustion), a, nil)

	status, err := s.BookOnce(context.Background(), CalendarBookingRequest{CalendarURL: "cal.com/a"})
	if err != nil {
		t.Fatalf("BookOnce() error = %v", err)
	}
	if status != entity.StatusSuccess || browsers.launched[0].Proxy != nil {
		t.Fatalf("status = %q proxy = %v, want a direct success", status, browsers.launched[0].Proxy)
	}
}

func TestBookingServiceRequiresURL(t *testing.T) {
	s := NewBookingService(NewProxyPool(nil, ReuseOnExhaustion), NewAgentAttempter(&fakeBrowsers{}, &fakeAgent{}, testContact, AttemptOptions{}, nil), nil)
	if _, err := s.BookOnce(context.Background(), CalendarBookingRequest{}); !errors.Is(err, ErrMissingCalendarURL) {
		t.Fatalf("error = %v, want %v", err, ErrMissingCalendarURL)
	}
}

func TestGoalRunner(t *testing.T) {
	browsers := &fakeBrowsers{}
	agent := &fakeAgent{result: entity.Mapping{"title": "Example Domain"}}
	g := NewGoalRunner(browsers, agent, GoalDefaults{Headless: true, MaxSteps: 25, Model: "gpt-4o-mini"}, nil)

	work := g.RunFunc(GoalRequest{Goal: "read the title", StartURL: "https://example.com"})
	result, err := work(context.Background())
	if err != nil {
		t.Fatalf("run error = %v", err)
	}
	m, ok := result.(map[string]any)
	if !ok || m["title"] != "Example Domain" {
		t.Fatalf("result = %#v", result)
	}
	task := agent.tasks[0]
	if task.MaxSteps != 25 || task.Model != "gpt-4o-mini" || task.DebugURL == "" {
		t.Fatalf("task = %+v, want defaults applied", task)
	}
	if !browsers.launched[0].Headless || !browsers.browser.closed {
		t.Fatalf("browser = %+v closed=%v", browsers.launched[0], browsers.browser.closed)
	}

	if _, err := g.Run(context.Background(), GoalRequest{}); !errors.Is(err, ErrEmptyGoal) {
		t.Fatalf("error = %v, want %v", err, ErrEmptyGoal)
	}
}

func TestBuildBookingTask(t *testing.T) {
	goal, err := BuildBookingTask("https://cal.com/acme", testContact)
	if err != nil {
		t.Fatalf("BuildBookingTask() error = %v", err)
	}
	for _, want := range []string{
		"https://cal.com/acme",
		"Jeanne Martin",
		string(entity.StatusSuccess),
		string(entity.StatusNoSlot),
		string(entity.StatusError),
	} {
		if !strings.Contains(goal, want) {
			t.Fatalf("task does not mention %q", want)
		}
	}
}

package usecase

import (
	"context"
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/moicben/calendar-agent/internal/entity"
)

func newTestOrchestrator(proxies []entity.Proxy, attempter BookingAttempter, opts RetryOptions) *RetryOrchestrator {
	pool := NewProxyPoolWithSource(proxies, ReuseOnExhaustion, rand.NewSource(42))
	return NewRetryOrchestrator(pool, attempter, opts, nil, nil)
}

func TestAttemptBookingBoundedByPoolSize(t *testing.T) {
	attempter := &fakeAttempter{fn: answer(entity.StatusNoSlot)}
	o := newTestOrchestrator(testProxies(3), attempter, RetryOptions{MaxAttempts: 5})

	report := o.AttemptBooking(context.Background(), "calendly.com/jane")

	if report.AttemptsMade != 3 || attempter.calls() != 3 {
		t.Fatalf("attempts = %d (calls %d), want 3", report.AttemptsMade, attempter.calls())
	}
	if report.Outcome != OutcomeExhausted || report.Status != entity.StatusNoSlot {
		t.Fatalf("outcome = %q status = %q, want exhausted with no slot", report.Outcome, report.Status)
	}
	seen := make(map[entity.Proxy]struct{})
	for _, att := range report.Attempts {
		if att.Proxy == nil {
			t.Fatalf("attempt %d ran without proxy", att.Index)
		}
		if _, dup := seen[*att.Proxy]; dup {
			t.Fatalf("proxy %s used twice", att.Proxy)
		}
		seen[*att.Proxy] = struct{}{}
		if att.Phase != PhaseExclusion {
			t.Fatalf("attempt %d phase = %q, want %q", att.Index, att.Phase, PhaseExclusion)
		}
	}
}

func TestAttemptBookingStopsOnSuccess(t *testing.T) {
	n := 0
	attempter := &fakeAttempter{fn: func(context.Context, string, *entity.Proxy) (entity.AgentResult, error) {
		n++
		if n == 2 {
			return entity.Mapping{"status": "SUCCESS_RESERVATION"}, nil
		}
		return nil, errors.New("proxy refused connection")
	}}
	o := newTestOrchestrator(testProxies(4), attempter, RetryOptions{MaxAttempts: 4})

	report := o.AttemptBooking(context.Background(), "cal.com/acme")

	if report.Outcome != OutcomeSuccess || report.Status != entity.StatusSuccess {
		t.Fatalf("outcome = %q status = %q, want success", report.Outcome, report.Status)
	}
	if report.AttemptsMade != 2 {
		t.Fatalf("attempts = %d, want 2", report.AttemptsMade)
	}
	if report.ProxyUsed == nil || *report.ProxyUsed != *report.Attempts[1].Proxy {
		t.Fatalf("ProxyUsed = %v, want the proxy of the successful attempt", report.ProxyUsed)
	}
	if report.Attempts[0].Status != entity.StatusError || report.Attempts[0].Err == nil {
		t.Fatalf("first attempt = %+v, want an error", report.Attempts[0])
	}
}

func TestAttemptBookingUnclassifiedResultIsError(t *testing.T) {
	attempter := &fakeAttempter{fn: func(context.Context, string, *entity.Proxy) (entity.AgentResult, error) {
		return entity.Opaque{Value: 42}, nil
	}}
	o := newTestOrchestrator(testProxies(1), attempter, RetryOptions{MaxAttempts: 3})

	report := o.AttemptBooking(context.Background(), "cal.com/acme")

	if report.Status != entity.StatusError || report.Outcome != OutcomeExhausted {
		t.Fatalf("status = %q outcome = %q, want error and exhausted", report.Status, report.Outcome)
	}
}

func TestAttemptBookingWithoutProxiesGoesDirect(t *testing.T) {
	attempter := &fakeAttempter{fn: answer(entity.StatusNoSlot)}
	o := newTestOrchestrator(nil, attempter, RetryOptions{MaxAttempts: 5})

	report := o.AttemptBooking(context.Background(), "cal.com/acme")

	if report.AttemptsMade != 1 {
		t.Fatalf("attempts = %d, want 1", report.AttemptsMade)
	}
	if att := report.Attempts[0]; att.Proxy != nil || att.Phase != PhaseDirect {
		t.Fatalf("attempt = %+v, want a direct attempt", att)
	}
}

func TestAttemptBookingTimeout(t *testing.T) {
	attempter := &fakeAttempter{fn: func(ctx context.Context, _ string, _ *entity.Proxy) (entity.AgentResult, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}}
	o := newTestOrchestrator(testProxies(2), attempter, RetryOptions{MaxAttempts: 2, AttemptTimeout: 10 * time.Millisecond})

	report := o.AttemptBooking(context.Background(), "cal.com/slow")

	if report.AttemptsMade != 2 {
		t.Fatalf("attempts = %d, want 2", report.AttemptsMade)
	}
	var terr *AttemptTimeoutError
	if !errors.As(report.Attempts[0].Err, &terr) {
		t.Fatalf("error = %v, want AttemptTimeoutError", report.Attempts[0].Err)
	}
	if !errors.Is(report.Attempts[0].Err, context.DeadlineExceeded) {
		t.Fatalf("timeout error does not wrap context.DeadlineExceeded")
	}
}

func TestAttemptBookingCancelledBeforeStart(t *testing.T) {
	attempter := &fakeAttempter{fn: answer(entity.StatusSuccess)}
	o := newTestOrchestrator(testProxies(2), attempter, RetryOptions{MaxAttempts: 2})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report := o.AttemptBooking(ctx, "cal.com/acme")

	if report.AttemptsMade != 0 || attempter.calls() != 0 {
		t.Fatalf("attempts = %d, want none", report.AttemptsMade)
	}
	if !errors.Is(report.Err, context.Canceled) {
		t.Fatalf("Err = %v, want context.Canceled", report.Err)
	}
}

func TestMaxAttempts(t *testing.T) {
	tests := []struct {
		name    string
		proxies int
		limit   int
		want    int
	}{
		{name: "pool smaller than cap", proxies: 3, limit: 5, want: 3},
		{name: "cap smaller than pool", proxies: 10, limit: 4, want: 4},
		{name: "empty pool", proxies: 0, limit: 5, want: 1},
		{name: "zero cap", proxies: 3, limit: 0, want: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := newTestOrchestrator(testProxies(tt.proxies), &fakeAttempter{}, RetryOptions{MaxAttempts: tt.limit})
			if got := o.MaxAttempts(); got != tt.want {
				t.Fatalf("MaxAttempts() = %d, want %d", got, tt.want)
			}
		})
	}
}

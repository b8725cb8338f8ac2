package usecase

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/moicben/calendar-agent/internal/entity"
	"github.com/moicben/calendar-agent/internal/repository"
	"github.com/moicben/calendar-agent/pkg/utils"
)

// AttemptOptions are the per-attempt agent and browser settings.
type AttemptOptions struct {
	Headless bool
	MaxSteps int
	Model    string
	// Preflight loads the page before the agent runs, so dead proxies and
	// missing pages fail fast.
	Preflight bool
}

// BookRequest is one booking attempt with explicit settings.
type BookRequest struct {
	Target  string
	Proxy   *entity.Proxy
	Contact entity.Contact
	Options AttemptOptions
}

// AgentAttempter books a calendar by launching a browser behind the given
// proxy and handing it to the agent.
type AgentAttempter struct {
	browsers repository.BrowserRepository
	agent    repository.AgentRepository
	contact  entity.Contact
	opts     AttemptOptions
	logger   *zap.Logger
}

// NewAgentAttempter wires an attempter with default contact and options.
func NewAgentAttempter(browsers repository.BrowserRepository, agent repository.AgentRepository, contact entity.Contact, opts AttemptOptions, logger *zap.Logger) *AgentAttempter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AgentAttempter{browsers: browsers, agent: agent, contact: contact, opts: opts, logger: logger}
}

// Defaults returns the contact and options used by Attempt.
func (a *AgentAttempter) Defaults() (entity.Contact, AttemptOptions) {
	return a.contact, a.opts
}

// Attempt implements BookingAttempter with the default contact and options.
func (a *AgentAttempter) Attempt(ctx context.Context, target string, proxy *entity.Proxy) (entity.AgentResult, error) {
	return a.Book(ctx, BookRequest{Target: target, Proxy: proxy, Contact: a.contact, Options: a.opts})
}

// Book runs a single attempt described by req.
func (a *AgentAttempter) Book(ctx context.Context, req BookRequest) (entity.AgentResult, error) {
	url := utils.EnsureScheme(req.Target)

	browser, err := a.browsers.Launch(ctx, entity.BrowserOptions{Headless: req.Options.Headless, Proxy: req.Proxy})
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser for %s: %w", url, err)
	}
	defer func() {
		if err := browser.Close(); err != nil {
			a.logger.Warn("failed to close browser", zap.String("url", url), zap.Error(err))
		}
	}()

	if req.Options.Preflight {
		probe, err := browser.Probe(ctx, url)
		if err != nil {
			return nil, fmt.Errorf("preflight of %s: %w", url, err)
		}
		if probe.NotFound {
			a.logger.Info("calendar page not found, skipping agent", zap.String("url", url), zap.String("title", probe.Title))
			return entity.StatusValue{Status: entity.StatusError}, nil
		}
		if !probe.HasWidget {
			a.logger.Debug("no calendar widget detected on first load", zap.String("url", url))
		}
	}

	goal, err := BuildBookingTask(url, req.Contact)
	if err != nil {
		return nil, err
	}

	result, err := a.agent.Run(ctx, entity.AgentTask{
		Goal:     goal,
		StartURL: url,
		MaxSteps: req.Options.MaxSteps,
		Model:    req.Options.Model,
		DebugURL: browser.DebugURL(),
	})
	if err != nil {
		return nil, fmt.Errorf("agent run on %s: %w", url, err)
	}
	return result, nil
}

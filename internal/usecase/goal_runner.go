package usecase

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/moicben/calendar-agent/internal/entity"
	"github.com/moicben/calendar-agent/internal/repository"
)

// ErrEmptyGoal is returned for a goal request without a goal.
var ErrEmptyGoal = errors.New("goal is required")

// GoalRequest is a free-form agent task.
type GoalRequest struct {
	Goal     string
	StartURL string
	// Headless overrides the default when set.
	Headless *bool
	MaxSteps int
	Model    string
}

// GoalDefaults fill unset GoalRequest fields.
type GoalDefaults struct {
	Headless bool
	MaxSteps int
	Model    string
}

// GoalRunner executes free-form goals in a fresh browser.
type GoalRunner struct {
	browsers repository.BrowserRepository
	agent    repository.AgentRepository
	defaults GoalDefaults
	logger   *zap.Logger
}

// NewGoalRunner wires a runner.
func NewGoalRunner(browsers repository.BrowserRepository, agent repository.AgentRepository, defaults GoalDefaults, logger *zap.Logger) *GoalRunner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GoalRunner{browsers: browsers, agent: agent, defaults: defaults, logger: logger}
}

// Run launches a browser, lets the agent pursue req.Goal and returns its raw result.
func (g *GoalRunner) Run(ctx context.Context, req GoalRequest) (entity.AgentResult, error) {
	if req.Goal == "" {
		return nil, ErrEmptyGoal
	}
	headless := g.defaults.Headless
	if req.Headless != nil {
		headless = *req.Headless
	}
	task := entity.AgentTask{
		Goal:     req.Goal,
		StartURL: req.StartURL,
		MaxSteps: req.MaxSteps,
		Model:    req.Model,
	}
	if task.MaxSteps <= 0 {
		task.MaxSteps = g.defaults.MaxSteps
	}
	if task.Model == "" {
		task.Model = g.defaults.Model
	}

	browser, err := g.browsers.Launch(ctx, entity.BrowserOptions{Headless: headless})
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}
	defer func() {
		if err := browser.Close(); err != nil {
			g.logger.Warn("failed to close browser", zap.Error(err))
		}
	}()
	task.DebugURL = browser.DebugURL()

	result, err := g.agent.Run(ctx, task)
	if err != nil {
		return nil, fmt.Errorf("agent run: %w", err)
	}
	return result, nil
}

// RunFunc adapts req into registry work. The run result is the agent output
// as a plain JSON-compatible value.
func (g *GoalRunner) RunFunc(req GoalRequest) RunFunc {
	return func(ctx context.Context) (any, error) {
		result, err := g.Run(ctx, req)
		if err != nil {
			return nil, err
		}
		return entity.ResultValue(result), nil
	}
}

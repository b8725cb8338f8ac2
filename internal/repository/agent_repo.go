package repository

import (
	"context"
	"errors"

	"github.com/moicben/calendar-agent/internal/entity"
)

// ErrAgentUnavailable means no agent process could serve the request.
var ErrAgentUnavailable = errors.New("agent unavailable")

// AgentRepository drives the LLM browser agent. The result is returned
// as-is; interpreting it is the caller's job.
type AgentRepository interface {
	Run(ctx context.Context, task entity.AgentTask) (entity.AgentResult, error)
}

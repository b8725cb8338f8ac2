package response

// CreateRunResponse acknowledges a queued run.
type CreateRunResponse struct {
	RunID  string `json:"run_id"`
	Status string `json:"status"`
}

// RunResponse is a snapshot of a run, mirroring entity.Run.
type RunResponse struct {
	RunID  string `json:"run_id"`
	Status string `json:"status"` // "queued", "running", "succeeded", "failed"
	Result any    `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
}

// RunGoalResponse is the synchronous goal result.
type RunGoalResponse struct {
	OK     bool   `json:"ok"`
	Result any    `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
}

// BookCalendarResponse carries the status of a single booking attempt.
type BookCalendarResponse struct {
	OK     bool   `json:"ok"`
	Status string `json:"status,omitempty"`
	Error  string `json:"error,omitempty"`
}

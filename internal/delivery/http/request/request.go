package request

// RunGoalRequest starts a free-form agent run, synchronously on /run-goal or
// in the background on /runs.
type RunGoalRequest struct {
	Goal     string `json:"goal"`
	StartURL string `json:"start_url,omitempty"`
	Headless *bool  `json:"headless,omitempty"`
	MaxSteps int    `json:"max_steps,omitempty"`
	Model    string `json:"model,omitempty"`
}

// BookCalendarRequest is a single booking attempt. Contact fields override
// the configured defaults when set.
type BookCalendarRequest struct {
	CalendarURL    string `json:"calendar_url"`
	Name           string `json:"nom,omitempty"`
	Email          string `json:"email,omitempty"`
	Phone          string `json:"telephone,omitempty"`
	Website        string `json:"site_web,omitempty"`
	Company        string `json:"societe,omitempty"`
	SlotPreference string `json:"preference_creneau,omitempty"`
	MeetingType    string `json:"type_rdv,omitempty"`
	Message        string `json:"message,omitempty"`
	Headless       *bool  `json:"headless,omitempty"`
	MaxSteps       int    `json:"max_steps,omitempty"`
}

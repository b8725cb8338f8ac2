package entity

// BookingStatus is the terminal outcome reported for one booking attempt.
type BookingStatus string

const (
	StatusSuccess BookingStatus = "SUCCESS_RESERVATION"
	StatusNoSlot  BookingStatus = "AUCUN_CRENEAU_DISPONIBLE"
	StatusError   BookingStatus = "ERREUR_RESERVATION"
)

// BookingStatuses lists every recognised status literal.
var BookingStatuses = []BookingStatus{StatusSuccess, StatusNoSlot, StatusError}

// Valid reports whether s is one of the recognised literals.
func (s BookingStatus) Valid() bool {
	switch s {
	case StatusSuccess, StatusNoSlot, StatusError:
		return true
	}
	return false
}

// Contact is the identity submitted in booking forms. JSON keys follow the
// form field names accepted by the /book-calendar endpoint.
type Contact struct {
	Name           string `json:"nom,omitempty"`
	Email          string `json:"email,omitempty"`
	Phone          string `json:"telephone,omitempty"`
	Website        string `json:"site_web,omitempty"`
	Company        string `json:"societe,omitempty"`
	SlotPreference string `json:"preference_creneau,omitempty"`
	MeetingType    string `json:"type_rdv,omitempty"`
	Message        string `json:"message,omitempty"`
}

// Merge returns c with every non-empty field of override applied on top.
func (c Contact) Merge(override Contact) Contact {
	pick := func(base, over string) string {
		if over != "" {
			return over
		}
		return base
	}
	return Contact{
		Name:           pick(c.Name, override.Name),
		Email:          pick(c.Email, override.Email),
		Phone:          pick(c.Phone, override.Phone),
		Website:        pick(c.Website, override.Website),
		Company:        pick(c.Company, override.Company),
		SlotPreference: pick(c.SlotPreference, override.SlotPreference),
		MeetingType:    pick(c.MeetingType, override.MeetingType),
		Message:        pick(c.Message, override.Message),
	}
}

// AgentTask is everything the browser agent needs for one run.
type AgentTask struct {
	Goal     string
	StartURL string
	MaxSteps int
	Model    string
	// DebugURL is the DevTools endpoint of the browser the agent drives.
	// Empty lets the agent launch its own browser.
	DebugURL string
}

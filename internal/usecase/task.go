package usecase

import (
	"bytes"
	"fmt"
	"text/template"

	"github.com/moicben/calendar-agent/internal/entity"
)

var bookingTaskTemplate = template.Must(template.New("booking").Parse(`Mission: book a meeting slot on {{.URL}}.

Contact details:
- Name: {{.Contact.Name}}
- Email: {{.Contact.Email}}
- Phone: {{.Contact.Phone}}
- Website: {{.Contact.Website}}
- Company: {{.Contact.Company}}
- Slot preference: {{.Contact.SlotPreference}}
- Meeting type: {{.Contact.MeetingType}}
- Message: {{.Contact.Message}}

Expected output: return exactly ONE of these values and nothing else:
- {{.Success}}
- {{.NoSlot}}
- {{.Error}}

Steps:
1) Open {{.URL}}. If the page is missing (404) or the calendar widget does not load, answer {{.Error}}.
2) Look for free slots over the next 5 days. If there are none, answer {{.NoSlot}}.
3) Pick the first available day matching the slot preference, then its first available time.
4) Fill in the form with the contact details above. Pick the first reasonable option in required drop-downs and tick required checkboxes. Use the message for any free-text field.
5) On a validation error, fix the input and retry, at most 3 times.
6) Submit. If a confirmation is visible answer {{.Success}}, otherwise {{.Error}}.

Constraints:
- Act autonomously, never wait for a manual confirmation.
- Do not change the time zone.
- Do not refresh or navigate elsewhere to force availability.
- Prefer video calls (Google Meet) over phone or on-site meetings.
`))

type bookingTaskData struct {
	URL     string
	Contact entity.Contact
	Success entity.BookingStatus
	NoSlot  entity.BookingStatus
	Error   entity.BookingStatus
}

// BuildBookingTask renders the agent instructions for booking url on behalf
// of contact.
func BuildBookingTask(url string, contact entity.Contact) (string, error) {
	var buf bytes.Buffer
	err := bookingTaskTemplate.Execute(&buf, bookingTaskData{
		URL:     url,
		Contact: contact,
		Success: entity.StatusSuccess,
		NoSlot:  entity.StatusNoSlot,
		Error:   entity.StatusError,
	})
	if err != nil {
		return "", fmt.Errorf("failed to render booking task: %w", err)
	}
	return buf.String(), nil
}

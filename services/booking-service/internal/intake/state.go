package intake

// State names the next piece of information the intake flow is collecting.
type State string

const (
	StateService State = "service"
	StateName    State = "name"
	StatePhone   State = "phone"
	StateDate    State = "date"
	StateTime    State = "time"
)

// Draft accumulates the booking fields across intake steps. It lives in the
// session store until the booking is confirmed or the draft is abandoned.
type Draft struct {
	State   State  `json:"state"`
	Service string `json:"service,omitempty"`
	Name    string `json:"name,omitempty"`
	Phone   string `json:"phone,omitempty"`
	Date    string `json:"date,omitempty"` // YYYY-MM-DD in the business timezone
}

func newDraft() *Draft {
	return &Draft{State: StateService}
}

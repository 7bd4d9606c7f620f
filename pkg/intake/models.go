package intake

// Step identifies where in the guided form a working submission is.
type Step string

const (
	StepSportType           Step = "sport_type"
	StepEventRank           Step = "event_rank"
	StepCountry             Step = "country"
	StepCity                Step = "city"
	StepParticipants        Step = "participants"
	StepParticipantName     Step = "participant_name"
	StepParticipantDateFrom Step = "participant_date_from"
	StepParticipantDateTo   Step = "participant_date_to"
	StepConfirm             Step = "confirm"
	StepDraftName           Step = "draft_name"
)

// Participant is one line item collected inside a working submission.
// Position is assigned from the submission's counter at insertion time and
// never reused, even after earlier entries are removed.
type Participant struct {
	FullName string `json:"full_name"`
	DateFrom string `json:"date_from"`
	DateTo   string `json:"date_to"`
	Position int    `json:"position"`
}

// WorkingSubmission is the in-memory, per-owner form state between the first
// step and finalize or draft-save.
type WorkingSubmission struct {
	Owner        int64         `json:"owner"`
	Step         Step          `json:"step"`
	SportType    string        `json:"sport_type,omitempty"`
	EventRank    string        `json:"event_rank,omitempty"`
	Country      string        `json:"country,omitempty"`
	City         string        `json:"city,omitempty"`
	Participants []Participant `json:"participants"`

	// In-flight participant entry, kept across the name and date sub-steps.
	PendingName     string `json:"pending_name,omitempty"`
	PendingDateFrom string `json:"pending_date_from,omitempty"`

	NextPosition int `json:"next_position"`

	// Set when the session was rehydrated from a saved draft.
	ResumedFromDraft uint `json:"resumed_from_draft,omitempty"`

	DisplayName  string `json:"display_name,omitempty"`
	Organization string `json:"organization,omitempty"`
}

// NewWorkingSubmission starts an empty session at the first field step.
func NewWorkingSubmission(owner int64) *WorkingSubmission {
	return &WorkingSubmission{
		Owner:        owner,
		Step:         StepSportType,
		Participants: []Participant{},
		NextPosition: 1,
	}
}

// ScalarsComplete reports whether all four category fields are set.
func (ws *WorkingSubmission) ScalarsComplete() bool {
	return ws.SportType != "" && ws.EventRank != "" && ws.Country != "" && ws.City != ""
}

// AppendParticipant commits the pending entry with the next stable position.
func (ws *WorkingSubmission) AppendParticipant(fullName, dateFrom, dateTo string) Participant {
	if ws.NextPosition < 1 {
		ws.NextPosition = 1
	}
	p := Participant{
		FullName: fullName,
		DateFrom: dateFrom,
		DateTo:   dateTo,
		Position: ws.NextPosition,
	}
	ws.NextPosition++
	ws.Participants = append(ws.Participants, p)
	ws.PendingName = ""
	ws.PendingDateFrom = ""
	return p
}

// RemoveParticipant drops the entry at the 1-based display index. Stored
// positions of the remaining entries are untouched; display numbering stays
// contiguous because it is derived from list order.
func (ws *WorkingSubmission) RemoveParticipant(displayIndex int) (Participant, bool) {
	if displayIndex < 1 || displayIndex > len(ws.Participants) {
		return Participant{}, false
	}
	removed := ws.Participants[displayIndex-1]
	ws.Participants = append(ws.Participants[:displayIndex-1], ws.Participants[displayIndex:]...)
	return removed, true
}

package intake

import (
	"errors"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Prompts holds the user-facing text for every step. Deployments override
// individual entries from a YAML file; anything left blank falls back to the
// default.
type Prompts struct {
	SportType       string `yaml:"sport_type" json:"sport_type"`
	EventRank       string `yaml:"event_rank" json:"event_rank"`
	Country         string `yaml:"country" json:"country"`
	City            string `yaml:"city" json:"city"`
	ParticipantMenu string `yaml:"participant_menu" json:"participant_menu"`
	ParticipantName string `yaml:"participant_name" json:"participant_name"`
	DateFrom        string `yaml:"date_from" json:"date_from"`
	DateTo          string `yaml:"date_to" json:"date_to"`
	Confirm         string `yaml:"confirm" json:"confirm"`
	DraftName       string `yaml:"draft_name" json:"draft_name"`
	Cancelled       string `yaml:"cancelled" json:"cancelled"`
	AccessDenied    string `yaml:"access_denied" json:"access_denied"`
	RetryPersist    string `yaml:"retry_persist" json:"retry_persist"`
	EmptyList       string `yaml:"empty_list" json:"empty_list"`
	NeedParticipant string `yaml:"need_participant" json:"need_participant"`
}

func DefaultPrompts() Prompts {
	return Prompts{
		SportType:       "Step 1 of 5: enter the sport type.",
		EventRank:       "Step 2 of 5: enter the event rank.",
		Country:         "Step 3 of 5: enter the destination country.",
		City:            "Step 4 of 5: enter the destination city.",
		ParticipantMenu: "Step 5 of 5: manage trip participants (add, list, remove <n>, done).",
		ParticipantName: "Enter the participant's full name (surname and first name).",
		DateFrom:        "Enter the trip start date (DD.MM.YYYY).",
		DateTo:          "Enter the trip end date (DD.MM.YYYY).",
		Confirm:         "Review the request summary, then submit, draft or cancel.",
		DraftName:       "Enter a name for the draft, or 'skip' to save it unnamed.",
		Cancelled:       "Request cancelled.",
		AccessDenied:    "You are not allowed to submit requests. Wait for an administrator's approval.",
		RetryPersist:    "The request could not be saved. Try again or contact an administrator.",
		EmptyList:       "The participant list is empty.",
		NeedParticipant: "Add at least one participant first.",
	}
}

// LoadPrompts reads overrides from path. An empty path yields the defaults.
func LoadPrompts(path string) (Prompts, error) {
	defaults := DefaultPrompts()
	if path == "" {
		return defaults, nil
	}

	content, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return defaults, err
	}

	var loaded Prompts
	if err := yaml.Unmarshal(content, &loaded); err != nil {
		return Prompts{}, errors.New("invalid prompt catalog: " + err.Error())
	}

	merge(&loaded.SportType, defaults.SportType)
	merge(&loaded.EventRank, defaults.EventRank)
	merge(&loaded.Country, defaults.Country)
	merge(&loaded.City, defaults.City)
	merge(&loaded.ParticipantMenu, defaults.ParticipantMenu)
	merge(&loaded.ParticipantName, defaults.ParticipantName)
	merge(&loaded.DateFrom, defaults.DateFrom)
	merge(&loaded.DateTo, defaults.DateTo)
	merge(&loaded.Confirm, defaults.Confirm)
	merge(&loaded.DraftName, defaults.DraftName)
	merge(&loaded.Cancelled, defaults.Cancelled)
	merge(&loaded.AccessDenied, defaults.AccessDenied)
	merge(&loaded.RetryPersist, defaults.RetryPersist)
	merge(&loaded.EmptyList, defaults.EmptyList)
	merge(&loaded.NeedParticipant, defaults.NeedParticipant)

	return loaded, nil
}

func merge(field *string, fallback string) {
	if *field == "" {
		*field = fallback
	}
}

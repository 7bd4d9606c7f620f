package intake

import (
	"context"
	"fmt"

	"github.com/tripflow/platform/pkg/trip"
)

// TripDraftStore bridges working submissions to the drafts table. Every save
// creates a new draft row; updates are modeled as delete-then-recreate by the
// caller.
type TripDraftStore struct {
	repo *trip.Repository
}

func NewTripDraftStore(repo *trip.Repository) *TripDraftStore {
	return &TripDraftStore{repo: repo}
}

func (s *TripDraftStore) Save(ctx context.Context, ws *WorkingSubmission, name string) (uint, error) {
	draft := &trip.Draft{
		Owner:     ws.Owner,
		Name:      name,
		SportType: ws.SportType,
		EventRank: ws.EventRank,
		Country:   ws.Country,
		City:      ws.City,
	}

	participants := make([]trip.Participant, 0, len(ws.Participants))
	for _, p := range ws.Participants {
		participants = append(participants, trip.Participant{
			FullName: p.FullName,
			DateFrom: p.DateFrom,
			DateTo:   p.DateTo,
			Position: p.Position,
		})
	}

	if err := s.repo.CreateDraft(ctx, draft, participants); err != nil {
		return 0, fmt.Errorf("saving draft: %w", err)
	}
	return draft.ID, nil
}

// Load reconstructs a working submission from a saved draft. Drafts always
// resume into the participant menu, never an earlier field step.
func (s *TripDraftStore) Load(ctx context.Context, id uint, owner int64) (*WorkingSubmission, error) {
	draft, rows, err := s.repo.GetDraft(ctx, id, owner)
	if err != nil {
		return nil, err
	}

	ws := NewWorkingSubmission(owner)
	ws.Step = StepParticipants
	ws.SportType = draft.SportType
	ws.EventRank = draft.EventRank
	ws.Country = draft.Country
	ws.City = draft.City
	ws.ResumedFromDraft = draft.ID

	maxPos := 0
	for _, row := range rows {
		ws.Participants = append(ws.Participants, Participant{
			FullName: row.FullName,
			DateFrom: row.DateFrom,
			DateTo:   row.DateTo,
			Position: row.Position,
		})
		if row.Position > maxPos {
			maxPos = row.Position
		}
	}
	ws.NextPosition = maxPos + 1

	return ws, nil
}

func (s *TripDraftStore) Delete(ctx context.Context, id uint, owner int64) error {
	return s.repo.DeleteDraft(ctx, id, owner)
}

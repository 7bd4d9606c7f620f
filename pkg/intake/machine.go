package intake

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/tripflow/platform/pkg/common/logger"
	"github.com/tripflow/platform/pkg/common/models"
	"github.com/tripflow/platform/pkg/pipeline"
	"github.com/tripflow/platform/pkg/trip"
	"github.com/tripflow/platform/pkg/validation"
)

// Inputs understood outside free-text steps.
const (
	CmdCancel = "cancel"
	CmdAdd    = "add"
	CmdList   = "list"
	CmdRemove = "remove"
	CmdDone   = "done"
	CmdSubmit = "submit"
	CmdDraft  = "draft"
	CmdSkip   = "skip"
)

const (
	fieldMinLen = 2
	fieldMaxLen = 255
)

var (
	ErrNoSession    = errors.New("no active intake session")
	ErrAccessDenied = errors.New("submission not allowed for this owner")
)

// Gate is consulted once, at session start or resume.
type Gate interface {
	IsSubmissionAllowed(ctx context.Context, owner int64) (bool, error)
	Identity(ctx context.Context, owner int64) (models.Identity, error)
}

// SessionStore keeps in-flight working submissions keyed by owner. Get
// returns (nil, nil) when the owner has no session.
type SessionStore interface {
	Get(ctx context.Context, owner int64) (*WorkingSubmission, error)
	Put(ctx context.Context, owner int64, ws *WorkingSubmission) error
	Clear(ctx context.Context, owner int64) error
}

// DraftStore persists and rehydrates working submissions.
type DraftStore interface {
	Save(ctx context.Context, ws *WorkingSubmission, name string) (uint, error)
	Load(ctx context.Context, id uint, owner int64) (*WorkingSubmission, error)
	Delete(ctx context.Context, id uint, owner int64) error
}

// Finalizer runs the submission pipeline.
type Finalizer interface {
	Finalize(ctx context.Context, sub pipeline.Submission) (*pipeline.Outcome, error)
}

type Publisher interface {
	PublishEvent(ctx context.Context, eventType string, source string, data map[string]interface{}) error
}

// Reply is one turn's response: the next prompt, or a re-prompt with the
// rejection reason, or a terminal result.
type Reply struct {
	Step         Step              `json:"step"`
	Prompt       string            `json:"prompt,omitempty"`
	Error        string            `json:"error,omitempty"`
	Participants []Participant     `json:"participants,omitempty"`
	Summary      string            `json:"summary,omitempty"`
	Done         bool              `json:"done,omitempty"`
	Outcome      *pipeline.Outcome `json:"outcome,omitempty"`
	DraftID      uint              `json:"draft_id,omitempty"`
}

// Machine drives the ordered intake steps for every owner. One owner has at
// most one active session; starting a new one discards the previous session
// unconditionally.
type Machine struct {
	sessions  SessionStore
	gate      Gate
	drafts    DraftStore
	finalizer Finalizer
	producer  Publisher
	prompts   Prompts
}

func NewMachine(sessions SessionStore, gate Gate, drafts DraftStore, finalizer Finalizer, producer Publisher, prompts Prompts) *Machine {
	return &Machine{
		sessions:  sessions,
		gate:      gate,
		drafts:    drafts,
		finalizer: finalizer,
		producer:  producer,
		prompts:   prompts,
	}
}

// Start opens a fresh session at the first field step. Last writer wins: any
// in-progress submission for the owner is discarded without merge.
func (m *Machine) Start(ctx context.Context, owner int64) (*Reply, error) {
	identity, err := m.admit(ctx, owner)
	if err != nil {
		return nil, err
	}

	ws := NewWorkingSubmission(owner)
	ws.DisplayName = identity.DisplayName
	ws.Organization = identity.Organization
	if err := m.sessions.Put(ctx, owner, ws); err != nil {
		return nil, fmt.Errorf("storing session: %w", err)
	}

	m.publish(ctx, models.EventSessionStarted, map[string]interface{}{"owner": owner})
	return &Reply{Step: StepSportType, Prompt: m.prompts.SportType}, nil
}

// Resume rehydrates a saved draft into a live session positioned at the
// participant menu.
func (m *Machine) Resume(ctx context.Context, owner int64, draftID uint) (*Reply, error) {
	identity, err := m.admit(ctx, owner)
	if err != nil {
		return nil, err
	}

	ws, err := m.drafts.Load(ctx, draftID, owner)
	if err != nil {
		return nil, err
	}
	ws.DisplayName = identity.DisplayName
	ws.Organization = identity.Organization

	if err := m.sessions.Put(ctx, owner, ws); err != nil {
		return nil, fmt.Errorf("storing session: %w", err)
	}

	return &Reply{
		Step:         StepParticipants,
		Prompt:       m.prompts.ParticipantMenu,
		Participants: ws.Participants,
	}, nil
}

func (m *Machine) admit(ctx context.Context, owner int64) (models.Identity, error) {
	allowed, err := m.gate.IsSubmissionAllowed(ctx, owner)
	if err != nil {
		return models.Identity{}, fmt.Errorf("checking access: %w", err)
	}
	if !allowed {
		return models.Identity{}, ErrAccessDenied
	}
	identity, err := m.gate.Identity(ctx, owner)
	if err != nil {
		return models.Identity{}, fmt.Errorf("loading identity: %w", err)
	}
	return identity, nil
}

// Input processes one conversational turn for the owner's session.
func (m *Machine) Input(ctx context.Context, owner int64, text string) (*Reply, error) {
	ws, err := m.sessions.Get(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("loading session: %w", err)
	}
	if ws == nil {
		return nil, ErrNoSession
	}

	trimmed := strings.TrimSpace(text)
	if strings.EqualFold(trimmed, CmdCancel) {
		if err := m.sessions.Clear(ctx, owner); err != nil {
			return nil, fmt.Errorf("clearing session: %w", err)
		}
		return &Reply{Done: true, Prompt: m.prompts.Cancelled}, nil
	}

	switch ws.Step {
	case StepSportType:
		return m.fieldStep(ctx, ws, trimmed, &ws.SportType, StepEventRank, m.prompts.EventRank, m.prompts.SportType)
	case StepEventRank:
		return m.fieldStep(ctx, ws, trimmed, &ws.EventRank, StepCountry, m.prompts.Country, m.prompts.EventRank)
	case StepCountry:
		return m.fieldStep(ctx, ws, trimmed, &ws.Country, StepCity, m.prompts.City, m.prompts.Country)
	case StepCity:
		return m.cityStep(ctx, ws, trimmed)
	case StepParticipants:
		return m.participantMenu(ctx, ws, trimmed)
	case StepParticipantName:
		return m.participantName(ctx, ws, text)
	case StepParticipantDateFrom:
		return m.participantDateFrom(ctx, ws, trimmed)
	case StepParticipantDateTo:
		return m.participantDateTo(ctx, ws, trimmed)
	case StepConfirm:
		return m.confirmStep(ctx, ws, trimmed)
	case StepDraftName:
		return m.draftNameStep(ctx, ws, trimmed)
	}

	return nil, fmt.Errorf("unknown step %q", ws.Step)
}

func (m *Machine) fieldStep(ctx context.Context, ws *WorkingSubmission, text string, field *string, next Step, nextPrompt, samePrompt string) (*Reply, error) {
	if err := validation.Text(text, fieldMinLen, fieldMaxLen); err != nil {
		return &Reply{Step: ws.Step, Prompt: samePrompt, Error: err.Error()}, nil
	}

	*field = strings.TrimSpace(text)
	ws.Step = next
	if err := m.sessions.Put(ctx, ws.Owner, ws); err != nil {
		return nil, fmt.Errorf("storing session: %w", err)
	}
	return &Reply{Step: next, Prompt: nextPrompt}, nil
}

// cityStep is the last field step; accepting it enters the participant
// sub-machine. A list populated by draft resume is preserved.
func (m *Machine) cityStep(ctx context.Context, ws *WorkingSubmission, text string) (*Reply, error) {
	if err := validation.Text(text, fieldMinLen, fieldMaxLen); err != nil {
		return &Reply{Step: StepCity, Prompt: m.prompts.City, Error: err.Error()}, nil
	}

	ws.City = strings.TrimSpace(text)
	ws.Step = StepParticipants
	if ws.Participants == nil {
		ws.Participants = []Participant{}
	}
	if err := m.sessions.Put(ctx, ws.Owner, ws); err != nil {
		return nil, fmt.Errorf("storing session: %w", err)
	}
	return &Reply{Step: StepParticipants, Prompt: m.prompts.ParticipantMenu, Participants: ws.Participants}, nil
}

func (m *Machine) participantMenu(ctx context.Context, ws *WorkingSubmission, text string) (*Reply, error) {
	lower := strings.ToLower(text)
	switch {
	case lower == CmdAdd:
		ws.Step = StepParticipantName
		if err := m.sessions.Put(ctx, ws.Owner, ws); err != nil {
			return nil, fmt.Errorf("storing session: %w", err)
		}
		return &Reply{Step: StepParticipantName, Prompt: m.prompts.ParticipantName}, nil

	case lower == CmdList:
		if len(ws.Participants) == 0 {
			return &Reply{Step: StepParticipants, Prompt: m.prompts.ParticipantMenu, Error: m.prompts.EmptyList}, nil
		}
		return &Reply{Step: StepParticipants, Prompt: m.prompts.ParticipantMenu, Participants: ws.Participants}, nil

	case strings.HasPrefix(lower, CmdRemove):
		return m.removeParticipant(ctx, ws, lower)

	case lower == CmdDone:
		if len(ws.Participants) == 0 {
			return &Reply{Step: StepParticipants, Prompt: m.prompts.ParticipantMenu, Error: m.prompts.NeedParticipant}, nil
		}
		if !ws.ScalarsComplete() {
			return &Reply{Step: StepParticipants, Prompt: m.prompts.ParticipantMenu, Error: "category fields are incomplete"}, nil
		}
		ws.Step = StepConfirm
		if err := m.sessions.Put(ctx, ws.Owner, ws); err != nil {
			return nil, fmt.Errorf("storing session: %w", err)
		}
		return &Reply{Step: StepConfirm, Prompt: m.prompts.Confirm, Summary: m.summary(ws)}, nil
	}

	return &Reply{Step: StepParticipants, Prompt: m.prompts.ParticipantMenu, Error: "unknown command"}, nil
}

func (m *Machine) removeParticipant(ctx context.Context, ws *WorkingSubmission, lower string) (*Reply, error) {
	arg := strings.TrimSpace(strings.TrimPrefix(lower, CmdRemove))
	n, err := strconv.Atoi(arg)
	if err != nil {
		return &Reply{Step: StepParticipants, Prompt: m.prompts.ParticipantMenu, Error: "specify the participant number to remove"}, nil
	}
	removed, ok := ws.RemoveParticipant(n)
	if !ok {
		return &Reply{Step: StepParticipants, Prompt: m.prompts.ParticipantMenu, Error: fmt.Sprintf("no participant at number %d", n)}, nil
	}
	if err := m.sessions.Put(ctx, ws.Owner, ws); err != nil {
		return nil, fmt.Errorf("storing session: %w", err)
	}
	logger.WithOwner(ws.Owner).WithField("participant", removed.FullName).Debug("participant removed")
	return &Reply{Step: StepParticipants, Prompt: m.prompts.ParticipantMenu, Participants: ws.Participants}, nil
}

func (m *Machine) participantName(ctx context.Context, ws *WorkingSubmission, text string) (*Reply, error) {
	if err := validation.FullName(text); err != nil {
		return &Reply{Step: StepParticipantName, Prompt: m.prompts.ParticipantName, Error: err.Error()}, nil
	}

	ws.PendingName = validation.NormalizeName(text)
	ws.Step = StepParticipantDateFrom
	if err := m.sessions.Put(ctx, ws.Owner, ws); err != nil {
		return nil, fmt.Errorf("storing session: %w", err)
	}
	return &Reply{Step: StepParticipantDateFrom, Prompt: m.prompts.DateFrom}, nil
}

func (m *Machine) participantDateFrom(ctx context.Context, ws *WorkingSubmission, text string) (*Reply, error) {
	if err := validation.Date(text); err != nil {
		return &Reply{Step: StepParticipantDateFrom, Prompt: m.prompts.DateFrom, Error: err.Error()}, nil
	}

	ws.PendingDateFrom = text
	ws.Step = StepParticipantDateTo
	if err := m.sessions.Put(ctx, ws.Owner, ws); err != nil {
		return nil, fmt.Errorf("storing session: %w", err)
	}
	return &Reply{Step: StepParticipantDateTo, Prompt: m.prompts.DateTo}, nil
}

// participantDateTo closes one participant entry. A rejected end date keeps
// the already-accepted name and start date.
func (m *Machine) participantDateTo(ctx context.Context, ws *WorkingSubmission, text string) (*Reply, error) {
	if err := validation.DateRange(ws.PendingDateFrom, text); err != nil {
		return &Reply{Step: StepParticipantDateTo, Prompt: m.prompts.DateTo, Error: err.Error()}, nil
	}

	ws.AppendParticipant(ws.PendingName, ws.PendingDateFrom, text)
	ws.Step = StepParticipants
	if err := m.sessions.Put(ctx, ws.Owner, ws); err != nil {
		return nil, fmt.Errorf("storing session: %w", err)
	}
	return &Reply{Step: StepParticipants, Prompt: m.prompts.ParticipantMenu, Participants: ws.Participants}, nil
}

func (m *Machine) confirmStep(ctx context.Context, ws *WorkingSubmission, text string) (*Reply, error) {
	switch strings.ToLower(text) {
	case CmdSubmit:
		return m.finalize(ctx, ws)
	case CmdDraft:
		ws.Step = StepDraftName
		if err := m.sessions.Put(ctx, ws.Owner, ws); err != nil {
			return nil, fmt.Errorf("storing session: %w", err)
		}
		return &Reply{Step: StepDraftName, Prompt: m.prompts.DraftName}, nil
	}
	return &Reply{Step: StepConfirm, Prompt: m.prompts.Confirm, Summary: m.summary(ws), Error: "unknown command"}, nil
}

// finalize hands the completed submission to the pipeline. A persist failure
// keeps the session intact so a retry loses nothing; any degraded render or
// delivery outcome is still a submitted request.
func (m *Machine) finalize(ctx context.Context, ws *WorkingSubmission) (*Reply, error) {
	outcome, err := m.finalizer.Finalize(ctx, pipeline.Submission{
		Identity: models.Identity{
			Owner:        ws.Owner,
			DisplayName:  ws.DisplayName,
			Organization: ws.Organization,
		},
		SportType:    ws.SportType,
		EventRank:    ws.EventRank,
		Country:      ws.Country,
		City:         ws.City,
		Participants: toTripParticipants(ws.Participants),
	})
	if err != nil {
		if errors.Is(err, pipeline.ErrPersist) {
			return &Reply{Step: StepConfirm, Prompt: m.prompts.Confirm, Error: m.prompts.RetryPersist}, nil
		}
		return nil, err
	}

	if ws.ResumedFromDraft != 0 {
		m.deleteSourceDraft(ctx, ws)
	}

	if err := m.sessions.Clear(ctx, ws.Owner); err != nil {
		logger.WithOwner(ws.Owner).WithError(err).Warn("failed to clear session after finalize")
	}
	return &Reply{Done: true, Outcome: outcome}, nil
}

// deleteSourceDraft promotes a resumed draft: once its data became a record
// the draft is removed rather than kept alongside it.
func (m *Machine) deleteSourceDraft(ctx context.Context, ws *WorkingSubmission) {
	if err := m.drafts.Delete(ctx, ws.ResumedFromDraft, ws.Owner); err != nil && !errors.Is(err, trip.ErrDraftNotFound) {
		logger.WithOwner(ws.Owner).WithError(err).WithField("draft_id", ws.ResumedFromDraft).Warn("failed to delete promoted draft")
	}
}

func (m *Machine) draftNameStep(ctx context.Context, ws *WorkingSubmission, text string) (*Reply, error) {
	name := ""
	if !strings.EqualFold(text, CmdSkip) {
		name = strings.TrimSpace(text)
	}

	draftID, err := m.drafts.Save(ctx, ws, name)
	if err != nil {
		logger.WithOwner(ws.Owner).WithError(err).Error("failed to save draft")
		return &Reply{Step: StepDraftName, Prompt: m.prompts.DraftName, Error: m.prompts.RetryPersist}, nil
	}

	m.publish(ctx, models.EventDraftSaved, map[string]interface{}{
		"owner":    ws.Owner,
		"draft_id": draftID,
	})

	if err := m.sessions.Clear(ctx, ws.Owner); err != nil {
		logger.WithOwner(ws.Owner).WithError(err).Warn("failed to clear session after draft save")
	}
	return &Reply{Done: true, DraftID: draftID}, nil
}

func (m *Machine) summary(ws *WorkingSubmission) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Sport type: %s\nEvent rank: %s\nCountry: %s\nCity: %s\nParticipants (%d):\n",
		ws.SportType, ws.EventRank, ws.Country, ws.City, len(ws.Participants))
	for i, p := range ws.Participants {
		fmt.Fprintf(&b, "%d. %s, %s - %s\n", i+1, p.FullName, p.DateFrom, p.DateTo)
	}
	return b.String()
}

func (m *Machine) publish(ctx context.Context, eventType string, data map[string]interface{}) {
	if m.producer == nil {
		return
	}
	if err := m.producer.PublishEvent(ctx, eventType, "intake", data); err != nil {
		logger.Log.WithError(err).WithField("event_type", eventType).Warn("lifecycle event not published")
	}
}

func toTripParticipants(in []Participant) []trip.Participant {
	out := make([]trip.Participant, 0, len(in))
	for _, p := range in {
		out = append(out, trip.Participant{
			FullName: p.FullName,
			DateFrom: p.DateFrom,
			DateTo:   p.DateTo,
			Position: p.Position,
		})
	}
	return out
}

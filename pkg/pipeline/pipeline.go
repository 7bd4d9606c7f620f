package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tripflow/platform/pkg/common/logger"
	"github.com/tripflow/platform/pkg/common/models"
	"github.com/tripflow/platform/pkg/trip"
	"github.com/tripflow/platform/pkg/validation"
)

// ErrPersist marks a stage-1 failure. Nothing was submitted; the caller keeps
// the working submission so a retry loses no data.
var ErrPersist = errors.New("failed to persist trip record")

// Document is what the rendering collaborator receives.
type Document struct {
	SportType    string
	EventRank    string
	Country      string
	City         string
	SubmittedBy  string
	Organization string
	SubmittedAt  time.Time
	Participants []trip.Participant
}

// Renderer produces the output artifact for a finalized record.
type Renderer interface {
	Render(ctx context.Context, doc Document) (path string, meta map[string]interface{}, err error)
}

// Deliverer pushes the artifact and record metadata to the outbound channel.
// attachmentPath may be empty when rendering failed.
type Deliverer interface {
	Deliver(ctx context.Context, attachmentPath, subject, body string) error
}

// RecordStore is the slice of the trip repository the pipeline writes through.
type RecordStore interface {
	CreateRecord(ctx context.Context, rec *trip.Record, participants []trip.Participant) error
	SetArtifact(ctx context.Context, recordID uint, path string, meta map[string]interface{}) error
	SetDelivered(ctx context.Context, recordID uint) error
}

type Publisher interface {
	PublishEvent(ctx context.Context, eventType string, source string, data map[string]interface{}) error
}

// Submission is a completed working submission handed over for finalize.
type Submission struct {
	Identity     models.Identity
	SportType    string
	EventRank    string
	Country      string
	City         string
	Participants []trip.Participant
}

// Outcome reports the per-stage results of one finalize attempt.
type Outcome struct {
	RecordID     uint   `json:"record_id"`
	Rendered     bool   `json:"artifact_rendered"`
	Delivered    bool   `json:"delivered"`
	ArtifactPath string `json:"artifact_path,omitempty"`
}

type Pipeline struct {
	store     RecordStore
	renderer  Renderer
	deliverer Deliverer
	producer  Publisher
}

func New(store RecordStore, renderer Renderer, deliverer Deliverer, producer Publisher) *Pipeline {
	return &Pipeline{store: store, renderer: renderer, deliverer: deliverer, producer: producer}
}

// Finalize runs the fixed persist -> render -> deliver sequence. Persist
// failure aborts the attempt; render and deliver failures only leave their
// outcome flags false. The record is created at most once per call and is
// never rolled back.
func (p *Pipeline) Finalize(ctx context.Context, sub Submission) (*Outcome, error) {
	rec := &trip.Record{
		Owner:     sub.Identity.Owner,
		SportType: sub.SportType,
		EventRank: sub.EventRank,
		Country:   sub.Country,
		City:      sub.City,
	}

	if err := p.store.CreateRecord(ctx, rec, sub.Participants); err != nil {
		logger.Log.WithError(err).WithField("owner", sub.Identity.Owner).Error("finalize persist stage failed")
		return nil, fmt.Errorf("%w: %v", ErrPersist, err)
	}

	outcome := &Outcome{RecordID: rec.ID}

	doc := Document{
		SportType:    sub.SportType,
		EventRank:    sub.EventRank,
		Country:      sub.Country,
		City:         sub.City,
		SubmittedBy:  sub.Identity.DisplayName,
		Organization: sub.Identity.Organization,
		SubmittedAt:  time.Now(),
		Participants: sub.Participants,
	}

	artifactPath, meta, err := p.renderer.Render(ctx, doc)
	if err != nil {
		logger.Log.WithError(err).WithField("record_id", rec.ID).Error("finalize render stage failed")
	} else {
		outcome.Rendered = true
		outcome.ArtifactPath = artifactPath
		if err := p.store.SetArtifact(ctx, rec.ID, artifactPath, meta); err != nil {
			logger.Log.WithError(err).WithField("record_id", rec.ID).Error("failed to store artifact reference")
		}
	}

	subject, body := p.composeMessage(sub, rec.ID)
	if err := p.deliverer.Deliver(ctx, outcome.ArtifactPath, subject, body); err != nil {
		logger.Log.WithError(err).WithField("record_id", rec.ID).Error("finalize deliver stage failed")
	} else {
		outcome.Delivered = true
		if err := p.store.SetDelivered(ctx, rec.ID); err != nil {
			logger.Log.WithError(err).WithField("record_id", rec.ID).Error("failed to store delivered flag")
		}
	}

	p.publish(ctx, rec.ID, sub, outcome)
	return outcome, nil
}

func (p *Pipeline) composeMessage(sub Submission, recordID uint) (subject, body string) {
	today := time.Now().Format(validation.DateLayout)
	subject = fmt.Sprintf("Trip request — %s — %s/%s", sub.Identity.DisplayName, sub.City, today)

	org := sub.Identity.Organization
	if org == "" {
		org = "not specified"
	}
	body = fmt.Sprintf(
		"Trip request #%d\n\nFrom: %s\nOrganization: %s\n\nSport type: %s\nEvent rank: %s\nCountry: %s\nCity: %s\n\nParticipants: %d\n\nDetails in the attached file.",
		recordID, sub.Identity.DisplayName, org,
		sub.SportType, sub.EventRank, sub.Country, sub.City,
		len(sub.Participants),
	)
	return subject, body
}

func (p *Pipeline) publish(ctx context.Context, recordID uint, sub Submission, outcome *Outcome) {
	if p.producer == nil {
		return
	}
	err := p.producer.PublishEvent(ctx, models.EventTripSubmitted, "pipeline", map[string]interface{}{
		"record_id":    recordID,
		"owner":        sub.Identity.Owner,
		"city":         sub.City,
		"country":      sub.Country,
		"participants": len(sub.Participants),
		"rendered":     outcome.Rendered,
		"delivered":    outcome.Delivered,
	})
	if err != nil {
		logger.Log.WithError(err).Warn("lifecycle event not published")
	}
}

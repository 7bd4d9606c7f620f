package trip

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
)

var (
	ErrRecordNotFound = errors.New("trip record not found")
	ErrDraftNotFound  = errors.New("draft not found")
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) AutoMigrate() error {
	return r.db.AutoMigrate(&Record{}, &Draft{}, &Participant{})
}

// CreateRecord persists a record and its participant children in one
// transaction. The record row and its children either all exist or none do.
func (r *Repository) CreateRecord(ctx context.Context, rec *Record, participants []Participant) error {
	now := time.Now().UTC()
	rec.CreatedAt = now
	rec.UpdatedAt = now
	rec.SubmittedAt = &now
	rec.Status = StatusSubmitted
	rec.Persisted = true

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(rec).Error; err != nil {
			return err
		}
		for i := range participants {
			participants[i].ID = 0
			participants[i].RecordID = &rec.ID
			participants[i].DraftID = nil
		}
		if len(participants) == 0 {
			return nil
		}
		return tx.Create(&participants).Error
	})
}

// SetArtifact records a successful render. The flag only ever moves false to
// true.
func (r *Repository) SetArtifact(ctx context.Context, recordID uint, path string, meta map[string]interface{}) error {
	updates := map[string]interface{}{
		"artifact_rendered": true,
		"artifact_path":     path,
		"updated_at":        time.Now().UTC(),
	}
	if meta != nil {
		updates["render_meta"] = meta
	}
	return r.db.WithContext(ctx).Model(&Record{}).Where("id = ?", recordID).Updates(updates).Error
}

// SetDelivered records a successful delivery.
func (r *Repository) SetDelivered(ctx context.Context, recordID uint) error {
	return r.db.WithContext(ctx).Model(&Record{}).Where("id = ?", recordID).Updates(map[string]interface{}{
		"delivered":  true,
		"updated_at": time.Now().UTC(),
	}).Error
}

func (r *Repository) GetRecord(ctx context.Context, id uint) (*Record, []Participant, error) {
	var rec Record
	result := r.db.WithContext(ctx).First(&rec, "id = ?", id)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, nil, ErrRecordNotFound
	}
	if result.Error != nil {
		return nil, nil, result.Error
	}

	var participants []Participant
	if err := r.db.WithContext(ctx).Where("record_id = ?", id).Order("position asc").Find(&participants).Error; err != nil {
		return nil, nil, err
	}
	return &rec, participants, nil
}

func (r *Repository) ListRecordsByOwner(ctx context.Context, owner int64, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 10
	}
	var records []Record
	result := r.db.WithContext(ctx).Where("owner = ?", owner).Order("created_at desc").Limit(limit).Find(&records)
	return records, result.Error
}

// CreateDraft persists a draft and its children atomically. Every save
// creates a new draft; there is no update-in-place.
func (r *Repository) CreateDraft(ctx context.Context, draft *Draft, participants []Participant) error {
	now := time.Now().UTC()
	draft.CreatedAt = now
	draft.UpdatedAt = now

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(draft).Error; err != nil {
			return err
		}
		for i := range participants {
			participants[i].ID = 0
			participants[i].DraftID = &draft.ID
			participants[i].RecordID = nil
		}
		if len(participants) == 0 {
			return nil
		}
		return tx.Create(&participants).Error
	})
}

// ListDraftsByOwner returns draft summaries, most recently updated first.
func (r *Repository) ListDraftsByOwner(ctx context.Context, owner int64) ([]DraftSummary, error) {
	var drafts []Draft
	if err := r.db.WithContext(ctx).Where("owner = ?", owner).Order("updated_at desc").Find(&drafts).Error; err != nil {
		return nil, err
	}

	summaries := make([]DraftSummary, 0, len(drafts))
	for _, d := range drafts {
		var count int64
		if err := r.db.WithContext(ctx).Model(&Participant{}).Where("draft_id = ?", d.ID).Count(&count).Error; err != nil {
			return nil, err
		}
		summaries = append(summaries, DraftSummary{
			ID:           d.ID,
			Name:         d.Name,
			City:         d.City,
			Participants: int(count),
			UpdatedAt:    d.UpdatedAt,
		})
	}
	return summaries, nil
}

// GetDraft loads a draft and its children, ordered by position. Ownership is
// enforced: a draft belonging to another owner reads as not found.
func (r *Repository) GetDraft(ctx context.Context, id uint, owner int64) (*Draft, []Participant, error) {
	var draft Draft
	result := r.db.WithContext(ctx).First(&draft, "id = ? AND owner = ?", id, owner)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, nil, ErrDraftNotFound
	}
	if result.Error != nil {
		return nil, nil, result.Error
	}

	var participants []Participant
	if err := r.db.WithContext(ctx).Where("draft_id = ?", id).Order("position asc").Find(&participants).Error; err != nil {
		return nil, nil, err
	}
	return &draft, participants, nil
}

// DeleteDraft hard-deletes an owned draft and its children.
func (r *Repository) DeleteDraft(ctx context.Context, id uint, owner int64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Where("id = ? AND owner = ?", id, owner).Delete(&Draft{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrDraftNotFound
		}
		return tx.Where("draft_id = ?", id).Delete(&Participant{}).Error
	})
}

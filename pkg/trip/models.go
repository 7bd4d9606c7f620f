package trip

import (
	"time"

	"gorm.io/datatypes"
)

// Record lifecycle statuses. Approval sub-states past "submitted" are driven
// by an external reviewer.
const (
	StatusSubmitted  = "submitted"
	StatusProcessing = "processing"
	StatusApproved   = "approved"
	StatusRejected   = "rejected"
)

// Record is a finalized trip request. Collected data fields are immutable
// once the row exists; only status and the outcome flags may change.
type Record struct {
	ID          uint              `json:"id" gorm:"primaryKey;column:id"`
	Owner       int64             `json:"owner" gorm:"column:owner;index"`
	SportType   string            `json:"sport_type" gorm:"column:sport_type"`
	EventRank   string            `json:"event_rank" gorm:"column:event_rank"`
	Country     string            `json:"country" gorm:"column:country"`
	City        string            `json:"city" gorm:"column:city"`
	Status      string            `json:"status" gorm:"column:status"`
	Persisted   bool              `json:"persisted" gorm:"column:persisted"`
	Rendered    bool              `json:"artifact_rendered" gorm:"column:artifact_rendered"`
	Delivered   bool              `json:"delivered" gorm:"column:delivered"`
	Artifact    string            `json:"artifact_path,omitempty" gorm:"column:artifact_path"`
	RenderMeta  datatypes.JSONMap `json:"render_meta,omitempty" gorm:"column:render_meta"`
	CreatedAt   time.Time         `json:"created_at" gorm:"column:created_at"`
	SubmittedAt *time.Time        `json:"submitted_at,omitempty" gorm:"column:submitted_at"`
	UpdatedAt   time.Time         `json:"updated_at" gorm:"column:updated_at"`
}

func (Record) TableName() string {
	return "trip_requests"
}

// Participant is one line item of a record or draft. Exactly one of RecordID
// and DraftID is set. Position is assigned at insertion time in the working
// submission and stable thereafter.
type Participant struct {
	ID       uint   `json:"id" gorm:"primaryKey;column:id"`
	RecordID *uint  `json:"record_id,omitempty" gorm:"column:record_id;index"`
	DraftID  *uint  `json:"draft_id,omitempty" gorm:"column:draft_id;index"`
	FullName string `json:"full_name" gorm:"column:full_name"`
	DateFrom string `json:"date_from" gorm:"column:date_from"` // DD.MM.YYYY
	DateTo   string `json:"date_to" gorm:"column:date_to"`     // DD.MM.YYYY
	Position int    `json:"position" gorm:"column:position"`
}

func (Participant) TableName() string {
	return "participants"
}

// Draft is a persisted, resumable, incomplete submission.
type Draft struct {
	ID        uint      `json:"id" gorm:"primaryKey;column:id"`
	Owner     int64     `json:"owner" gorm:"column:owner;index"`
	Name      string    `json:"name,omitempty" gorm:"column:name"`
	SportType string    `json:"sport_type" gorm:"column:sport_type"`
	EventRank string    `json:"event_rank" gorm:"column:event_rank"`
	Country   string    `json:"country" gorm:"column:country"`
	City      string    `json:"city" gorm:"column:city"`
	CreatedAt time.Time `json:"created_at" gorm:"column:created_at"`
	UpdatedAt time.Time `json:"updated_at" gorm:"column:updated_at"`
}

func (Draft) TableName() string {
	return "drafts"
}

// DraftSummary is the list-view projection of a draft.
type DraftSummary struct {
	ID           uint      `json:"id"`
	Name         string    `json:"name,omitempty"`
	City         string    `json:"city"`
	Participants int       `json:"participants"`
	UpdatedAt    time.Time `json:"updated_at"`
}

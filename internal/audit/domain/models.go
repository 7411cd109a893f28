package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// EventType enumerates the audited compliance lifecycle actions.
type EventType string

const (
	EventTypeTINDecrypted     EventType = "tin_decrypted"
	EventTypeTaxInfoSubmitted EventType = "tax_info_submitted"
	EventTypeTaxInfoVerified  EventType = "tax_info_verified"
	EventTypeTaxInfoRejected  EventType = "tax_info_rejected"
	EventTypeTaxInfoExpired   EventType = "tax_info_expired"
)

func (t EventType) Valid() bool {
	switch t {
	case EventTypeTINDecrypted,
		EventTypeTaxInfoSubmitted,
		EventTypeTaxInfoVerified,
		EventTypeTaxInfoRejected,
		EventTypeTaxInfoExpired:
		return true
	}
	return false
}

type ActorType string

const (
	ActorTypeUser   ActorType = "user"
	ActorTypeSystem ActorType = "system"
)

// AuditEvent is one append-only record of a sensitive access or a
// compliance lifecycle transition. Rows are never updated or deleted.
type AuditEvent struct {
	ID          snowflake.ID      `gorm:"primaryKey" json:"id"`
	ActorType   ActorType         `gorm:"type:text;not null" json:"actor_type"`
	ActorID     *string           `gorm:"type:text" json:"actor_id,omitempty"`
	SubjectType string            `gorm:"type:text;not null;index:idx_audit_events_subject,priority:1" json:"subject_type"`
	SubjectID   snowflake.ID      `gorm:"not null;index:idx_audit_events_subject,priority:2" json:"subject_id"`
	EventType   EventType         `gorm:"type:text;not null;index" json:"event_type"`
	Purpose     *string           `gorm:"type:text" json:"purpose,omitempty"`
	IPAddress   *string           `gorm:"type:text" json:"ip_address,omitempty"`
	Metadata    datatypes.JSONMap `gorm:"type:jsonb;not null;default:'{}'" json:"metadata,omitempty"`
	CreatedAt   time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP;index" json:"created_at"`
}

func (AuditEvent) TableName() string { return "audit_events" }

type AuditCursor struct {
	ID        snowflake.ID
	CreatedAt time.Time
}

type ListFilter struct {
	SubjectType string
	SubjectID   snowflake.ID
	EventType   string
	StartAt     *time.Time
	EndAt       *time.Time
	Cursor      *AuditCursor
	Limit       int
}

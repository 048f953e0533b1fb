package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

const (
	ActionCaptchaFallback = "captcha.fallback_reported"
	ActionCaptchaVerified = "captcha.verified"
	ActionCaptchaRejected = "captcha.rejected"
	ActionCaptchaReplay   = "captcha.replay_rejected"
)

const TargetTypeCaptcha = "captcha"

type ActorType string

const (
	ActorTypeVisitor ActorType = "visitor"
	ActorTypeSystem  ActorType = "system"
)

// AuditLog is one row of audit_logs.
type AuditLog struct {
	ID         snowflake.ID      `gorm:"primaryKey;autoIncrement:false" json:"id"`
	ActorType  string            `gorm:"size:32;not null" json:"actor_type"`
	Action     string            `gorm:"size:64;not null;index" json:"action"`
	TargetType string            `gorm:"size:32;not null" json:"target_type"`
	TargetID   *string           `gorm:"size:128" json:"target_id,omitempty"`
	Metadata   datatypes.JSONMap `json:"metadata,omitempty"`
	IPAddress  *string           `gorm:"size:64" json:"ip_address,omitempty"`
	UserAgent  *string           `gorm:"size:512" json:"user_agent,omitempty"`
	CreatedAt  time.Time         `gorm:"not null;index" json:"created_at"`
}

func (AuditLog) TableName() string { return "audit_logs" }

// Entry is what callers hand to the service; request-scoped fields are filled in from the context.
type Entry struct {
	Action     string
	ActorType  ActorType
	TargetType string
	TargetID   string
	Metadata   map[string]any
}

type ListFilter struct {
	Action string
	Since  *time.Time
	Limit  int
}

type Repository interface {
	Insert(ctx context.Context, entry *AuditLog) error
	List(ctx context.Context, filter ListFilter) ([]*AuditLog, error)
}

type Service interface {
	Record(ctx context.Context, entry Entry) error
	Recent(ctx context.Context, action string, limit int) ([]AuditLog, error)
}

var (
	ErrInvalidAction = errors.New("invalid_action")
	ErrNotPersisted  = errors.New("audit_persistence_disabled")
)

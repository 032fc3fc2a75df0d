package application

import (
	"time"

	"cnec-platform/services/campaign"

	"gorm.io/datatypes"
)

type Status string

const (
	StatusPending       Status = "pending"
	StatusApproved      Status = "approved"
	StatusRejected      Status = "rejected"
	StatusInProduction  Status = "in_production"
	StatusRevisionCycle Status = "revision_cycle"
	StatusPosted        Status = "posted"
	StatusCompleted     Status = "completed"
)

// Active reports whether the application has passed intake and is still in
// flight, i.e. may receive uploads, reviews and postings.
func (s Status) Active() bool {
	switch s {
	case StatusApproved, StatusInProduction, StatusRevisionCycle, StatusPosted:
		return true
	}
	return false
}

// Application is one creator's participation in one campaign. The aggregate
// status is recomputed from the per-slot submissions and postings whenever
// either changes.
type Application struct {
	ID                string                                   `gorm:"column:id;primaryKey"`
	CampaignID        string                                   `gorm:"column:campaign_id;not null;uniqueIndex:idx_application_campaign_user"`
	UserID            string                                   `gorm:"column:user_id;not null;uniqueIndex:idx_application_campaign_user"`
	Status            Status                                   `gorm:"column:status;type:varchar(50);not null;default:'pending'"`
	Pitch             string                                   `gorm:"column:pitch;type:text"`
	RejectReason      string                                   `gorm:"column:reject_reason;type:text"`
	DeadlineOverrides datatypes.JSONType[campaign.DeadlineMap] `gorm:"column:deadline_overrides"`
	DecidedAt         *time.Time                               `gorm:"column:decided_at"`
	CompletedAt       *time.Time                               `gorm:"column:completed_at"`
	CreatedAt         time.Time                                `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time                                `gorm:"column:updated_at;autoUpdateTime"`
}

// OverrideDeadline returns the per-application deadline for a slot, or nil
// when the campaign default applies.
func (a *Application) OverrideDeadline(slot campaign.Slot, kind campaign.DeadlineKind) *time.Time {
	return a.DeadlineOverrides.Data().For(slot, kind)
}

// SlotPosting records that the deliverable for a slot was confirmed posted on
// the creator's social channel. One row per (application, slot); recording is
// idempotent.
type SlotPosting struct {
	ID            string        `gorm:"column:id;primaryKey"`
	ApplicationID string        `gorm:"column:application_id;not null;uniqueIndex:idx_posting_application_slot"`
	Slot          campaign.Slot `gorm:"column:slot;type:varchar(20);not null;uniqueIndex:idx_posting_application_slot"`
	PostURL       string        `gorm:"column:post_url;type:text"`
	PostedAt      time.Time     `gorm:"column:posted_at;autoCreateTime"`
}

package campaign

import (
	"time"

	"gorm.io/datatypes"
)

type Kind string
type Status string

const (
	KindStandard          Kind = "standard"
	KindFourWeekChallenge Kind = "four_week_challenge"

	StatusDraft  Status = "draft"
	StatusActive Status = "active"
	StatusClosed Status = "closed"
)

// Slot identifies the deliverable within an application: a single "main"
// slot for standard campaigns, one of four weekly slots for challenges.
type Slot string

const (
	SlotMain  Slot = "main"
	SlotWeek1 Slot = "week1"
	SlotWeek2 Slot = "week2"
	SlotWeek3 Slot = "week3"
	SlotWeek4 Slot = "week4"
)

// DeadlineKind distinguishes the upload deadline from the social posting one.
type DeadlineKind string

const (
	DeadlineVideo DeadlineKind = "video"
	DeadlineSNS   DeadlineKind = "sns"
)

// DeadlineKey is the map key for a slot's deadline of a given kind,
// e.g. "week1.video".
func DeadlineKey(slot Slot, kind DeadlineKind) string {
	return string(slot) + "." + string(kind)
}

// DeadlineMap stores deadlines keyed by DeadlineKey. Used both for campaign
// defaults and per-application overrides.
type DeadlineMap map[string]time.Time

func (m DeadlineMap) For(slot Slot, kind DeadlineKind) *time.Time {
	if m == nil {
		return nil
	}
	t, ok := m[DeadlineKey(slot, kind)]
	if !ok {
		return nil
	}
	return &t
}

// RequiredSlots lists the slots a campaign of this kind expects deliverables
// for.
func (k Kind) RequiredSlots() []Slot {
	if k == KindFourWeekChallenge {
		return []Slot{SlotWeek1, SlotWeek2, SlotWeek3, SlotWeek4}
	}
	return []Slot{SlotMain}
}

// Campaign is the campaign configuration. It is owned by campaign
// administration and read-only to the participation engine.
type Campaign struct {
	CampaignID         string                             `gorm:"column:campaign_id;primaryKey"`
	Title              string                             `gorm:"column:title;type:varchar(255);not null"`
	Brand              string                             `gorm:"column:brand;type:varchar(255)"`
	Kind               Kind                               `gorm:"column:kind;type:varchar(50);not null;default:'standard'"`
	RewardAmount       int64                              `gorm:"column:reward_amount;not null"`
	Deadlines          datatypes.JSONType[DeadlineMap]    `gorm:"column:deadlines"`
	CleanVideoRequired bool                               `gorm:"column:clean_video_required;not null;default:false"`
	Status             Status                             `gorm:"column:status;type:varchar(50);not null;default:'draft'"`
	StartAt            *time.Time                         `gorm:"column:start_at"`
	EndAt              *time.Time                         `gorm:"column:end_at"`
	CreatedAt          time.Time                          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time                          `gorm:"column:updated_at;autoUpdateTime"`
}

// RequiredSlots lists the deliverable slots for this campaign.
func (c *Campaign) RequiredSlots() []Slot {
	return c.Kind.RequiredSlots()
}

// ValidSlot reports whether the slot belongs to this campaign's kind.
func (c *Campaign) ValidSlot(slot Slot) bool {
	for _, s := range c.RequiredSlots() {
		if s == slot {
			return true
		}
	}
	return false
}

// DefaultDeadline returns the campaign-level deadline for a slot, or nil if
// none is configured.
func (c *Campaign) DefaultDeadline(slot Slot, kind DeadlineKind) *time.Time {
	return c.Deadlines.Data().For(slot, kind)
}

// IsActive checks if the campaign is currently open based on time range and
// status.
func (c *Campaign) IsActive(now time.Time) bool {
	if c.Status != StatusActive {
		return false
	}
	if c.StartAt != nil && now.Before(*c.StartAt) {
		return false
	}
	if c.EndAt != nil && now.After(*c.EndAt) {
		return false
	}
	return true
}

package deadline

import (
	"time"

	"cnec-platform/services/application"
	"cnec-platform/services/campaign"
	"cnec-platform/services/submission"
)

// Source records where a resolved deadline came from.
type Source string

const (
	SourceCampaignDefault Source = "campaign_default"
	SourceOverride        Source = "override"
)

// SlotDeadline is one resolved deadline for a slot.
type SlotDeadline struct {
	Slot   campaign.Slot         `json:"slot"`
	Kind   campaign.DeadlineKind `json:"kind"`
	At     time.Time             `json:"at"`
	Source Source                `json:"source"`
}

// Effective resolves the deadline for a slot: a per-application override wins
// over the campaign default. Returns nil when neither is configured.
func Effective(c *campaign.Campaign, app *application.Application, slot campaign.Slot, kind campaign.DeadlineKind) (*time.Time, Source) {
	if t := app.OverrideDeadline(slot, kind); t != nil {
		return t, SourceOverride
	}
	if t := c.DefaultDeadline(slot, kind); t != nil {
		return t, SourceCampaignDefault
	}
	return nil, ""
}

// IsOverdue reports whether the slot's video deliverable is overdue: the
// effective video deadline has passed and the slot's current submission is
// not approved. Slots without a configured deadline are never overdue.
func IsOverdue(c *campaign.Campaign, app *application.Application, slot campaign.Slot, now time.Time, current *submission.VideoSubmission) bool {
	at, _ := Effective(c, app, slot, campaign.DeadlineVideo)
	if at == nil || !now.After(*at) {
		return false
	}
	return current == nil || current.Status != submission.StatusApproved
}

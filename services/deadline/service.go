package deadline

import (
	"context"
	"time"

	"cnec-platform/pkg/errutil"
	"cnec-platform/services/application"
	"cnec-platform/services/campaign"
	"cnec-platform/services/submission"

	"go.uber.org/fx"
	"gorm.io/gorm"
)

// Service resolves deadlines against live data. It only reads; reminders and
// any follow-up are the dispatching collaborator's concern.
type Service struct {
	db          *gorm.DB
	campaigns   *campaign.Service
	apps        *application.Service
	submissions *submission.Service
}

type ServiceParams struct {
	fx.In
	DB          *gorm.DB
	Campaigns   *campaign.Service
	Apps        *application.Service
	Submissions *submission.Service
}

func NewService(p ServiceParams) *Service {
	return &Service{
		db:          p.DB,
		campaigns:   p.Campaigns,
		apps:        p.Apps,
		submissions: p.Submissions,
	}
}

// Deadlines lists every configured deadline for the application's required
// slots, with overrides already applied.
func (s *Service) Deadlines(ctx context.Context, applicationID string) ([]SlotDeadline, error) {
	app, err := s.apps.Get(ctx, applicationID)
	if err != nil {
		return nil, err
	}
	c, err := s.campaigns.Get(ctx, app.CampaignID)
	if err != nil {
		return nil, err
	}

	var out []SlotDeadline
	for _, slot := range c.RequiredSlots() {
		for _, kind := range []campaign.DeadlineKind{campaign.DeadlineVideo, campaign.DeadlineSNS} {
			at, source := Effective(c, app, slot, kind)
			if at == nil {
				continue
			}
			out = append(out, SlotDeadline{
				Slot:   slot,
				Kind:   kind,
				At:     *at,
				Source: source,
			})
		}
	}
	return out, nil
}

// OverdueSlot is one slot whose video deadline has passed without an approved
// submission.
type OverdueSlot struct {
	ApplicationID string        `json:"application_id"`
	CampaignID    string        `json:"campaign_id"`
	UserID        string        `json:"user_id"`
	Slot          campaign.Slot `json:"slot"`
	Deadline      time.Time     `json:"deadline"`
}

// ListOverdue scans every in-flight application for slots past their
// effective video deadline without an approved current submission.
func (s *Service) ListOverdue(ctx context.Context, now time.Time) ([]OverdueSlot, error) {
	var apps []*application.Application
	if err := s.db.WithContext(ctx).
		Where("status IN ?", []application.Status{
			application.StatusApproved,
			application.StatusInProduction,
			application.StatusRevisionCycle,
			application.StatusPosted,
		}).
		Find(&apps).Error; err != nil {
		return nil, errutil.Internal("storage failure", err, errutil.WithErr(err))
	}

	campaigns := map[string]*campaign.Campaign{}
	var out []OverdueSlot
	for _, app := range apps {
		c, ok := campaigns[app.CampaignID]
		if !ok {
			var err error
			c, err = s.campaigns.Get(ctx, app.CampaignID)
			if err != nil {
				return nil, err
			}
			campaigns[app.CampaignID] = c
		}

		for _, slot := range c.RequiredSlots() {
			at, _ := Effective(c, app, slot, campaign.DeadlineVideo)
			if at == nil || !now.After(*at) {
				continue
			}
			current, err := s.submissions.Current(ctx, app.ID, slot)
			if err != nil {
				return nil, err
			}
			if !IsOverdue(c, app, slot, now, current) {
				continue
			}
			out = append(out, OverdueSlot{
				ApplicationID: app.ID,
				CampaignID:    app.CampaignID,
				UserID:        app.UserID,
				Slot:          slot,
				Deadline:      *at,
			})
		}
	}
	return out, nil
}

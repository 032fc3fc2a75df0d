package campaign

import (
	"context"
	"errors"

	"cnec-platform/pkg/errutil"

	"go.uber.org/fx"
	"gorm.io/gorm"
)

// Service provides read access to campaign configuration. Mutation happens
// in campaign administration, outside this engine.
type Service struct {
	db *gorm.DB
}

type ServiceParams struct {
	fx.In
	DB *gorm.DB
}

func NewService(p ServiceParams) *Service {
	return &Service{db: p.DB}
}

func (s *Service) Get(ctx context.Context, campaignID string) (*Campaign, error) {
	var c Campaign
	if err := s.db.WithContext(ctx).Where("campaign_id = ?", campaignID).First(&c).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errutil.NotFound("campaign not found", err)
		}
		return nil, errutil.Internal("storage failure", err, errutil.WithErr(err))
	}
	return &c, nil
}

func (s *Service) List(ctx context.Context, status Status) ([]*Campaign, error) {
	query := s.db.WithContext(ctx).Order("created_at DESC")
	if status != "" {
		query = query.Where("status = ?", status)
	}

	var results []*Campaign
	if err := query.Find(&results).Error; err != nil {
		return nil, errutil.Internal("storage failure", err, errutil.WithErr(err))
	}
	return results, nil
}

// ParseSlot validates a raw slot name against the campaign kind.
func ParseSlot(k Kind, raw string) (Slot, error) {
	slot := Slot(raw)
	for _, s := range k.RequiredSlots() {
		if s == slot {
			return slot, nil
		}
	}
	return "", errutil.BadRequest("unknown slot for campaign kind", nil)
}

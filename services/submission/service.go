package submission

import (
	"context"
	"errors"
	"time"

	"cnec-platform/pkg/db"
	"cnec-platform/pkg/errutil"
	"cnec-platform/services/campaign"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	// ErrStaleSubmission is returned when a review action targets a
	// submission that is no longer the current version for its slot.
	ErrStaleSubmission = errutil.Conflict("submission superseded by a newer version", nil)

	// ErrInvalidTransition is returned when a review action does not apply
	// to the submission's status.
	ErrInvalidTransition = errutil.Conflict("invalid submission transition", nil)
)

// Gate is the application state machine's check that an application may
// receive an upload for a slot. It returns the campaign so the tracker can
// enforce per-campaign asset requirements.
type Gate interface {
	CanSubmit(ctx context.Context, applicationID string, slot campaign.Slot) (*campaign.Campaign, error)
}

// Observer is notified after a submission changes state, so the application
// state machine can recompute the aggregate status. The call happens after
// the tracker's own transaction commits; recomputation is idempotent.
type Observer interface {
	SubmissionChanged(ctx context.Context, applicationID string) error
}

type Service struct {
	db       *gorm.DB
	node     *snowflake.Node
	gate     Gate
	observer Observer
}

type ServiceParams struct {
	fx.In
	DB       *gorm.DB
	Node     *snowflake.Node
	Gate     Gate     `optional:"true"`
	Observer Observer `optional:"true"`
}

func NewService(p ServiceParams) *Service {
	return &Service{
		db:       p.DB,
		node:     p.Node,
		gate:     p.Gate,
		observer: p.Observer,
	}
}

type SubmitParams struct {
	ApplicationID      string
	Slot               campaign.Slot
	FileReference      string
	FileName           string
	FileSize           int64
	CleanFileReference string
}

// Submit records the next version for the slot. Version assignment is a
// compare-and-increment under the (application, slot, version) unique index;
// a concurrent submit that claims the same version loses the insert and is
// retried against the fresh maximum.
func (s *Service) Submit(ctx context.Context, p SubmitParams) (*VideoSubmission, error) {
	if p.FileReference == "" {
		return nil, errutil.ValidationFailed("file reference is required", nil)
	}

	if s.gate != nil {
		c, err := s.gate.CanSubmit(ctx, p.ApplicationID, p.Slot)
		if err != nil {
			return nil, err
		}
		if c.CleanVideoRequired && p.CleanFileReference == "" {
			return nil, errutil.ValidationFailed("clean video is required for this campaign", nil)
		}
	}

	var sub *VideoSubmission
	var err error
	for attempt := 0; attempt < 3; attempt++ {
		sub, err = s.insertNextVersion(ctx, p)
		if err == nil {
			break
		}
		if db.IsDuplicate(err) {
			zap.L().Info("submission version conflict, retrying",
				zap.String("application_id", p.ApplicationID),
				zap.String("slot", string(p.Slot)),
			)
			continue
		}
		return nil, errutil.Internal("storage failure", err, errutil.WithErr(err))
	}
	if err != nil {
		return nil, errutil.Internal("storage failure", err, errutil.WithErr(err))
	}

	s.notify(ctx, p.ApplicationID)
	return sub, nil
}

func (s *Service) insertNextVersion(ctx context.Context, p SubmitParams) (*VideoSubmission, error) {
	var sub *VideoSubmission
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var current int
		if err := tx.Model(&VideoSubmission{}).
			Where("application_id = ? AND slot = ?", p.ApplicationID, p.Slot).
			Select("COALESCE(MAX(version), 0)").
			Scan(&current).Error; err != nil {
			return err
		}

		sub = &VideoSubmission{
			ID:                 s.node.Generate().String(),
			ApplicationID:      p.ApplicationID,
			Slot:               p.Slot,
			Version:            current + 1,
			FileReference:      p.FileReference,
			FileName:           p.FileName,
			FileSize:           p.FileSize,
			CleanFileReference: p.CleanFileReference,
			Status:             StatusSubmitted,
		}
		return tx.Create(sub).Error
	})
	if err != nil {
		return nil, err
	}
	return sub, nil
}

// RequestRevision flags the current submission for rework. It does not
// create a new version; the creator submits again and the new upload
// supersedes this one.
func (s *Service) RequestRevision(ctx context.Context, submissionID, comment string) (*VideoSubmission, error) {
	sub, err := s.review(ctx, submissionID, StatusRevisionRequested, comment)
	if err != nil {
		return nil, err
	}
	s.notify(ctx, sub.ApplicationID)
	return sub, nil
}

// Approve marks the current submission as accepted. Approving a superseded
// version fails with ErrStaleSubmission.
func (s *Service) Approve(ctx context.Context, submissionID string) (*VideoSubmission, error) {
	sub, err := s.review(ctx, submissionID, StatusApproved, "")
	if err != nil {
		return nil, err
	}
	s.notify(ctx, sub.ApplicationID)
	return sub, nil
}

func (s *Service) review(ctx context.Context, submissionID string, next Status, comment string) (*VideoSubmission, error) {
	var sub VideoSubmission
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Scopes(db.LockForUpdate).
			Where("id = ?", submissionID).
			First(&sub).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return errutil.NotFound("submission not found", err)
			}
			return errutil.Internal("storage failure", err, errutil.WithErr(err))
		}

		var current int
		if err := tx.Model(&VideoSubmission{}).
			Where("application_id = ? AND slot = ?", sub.ApplicationID, sub.Slot).
			Select("COALESCE(MAX(version), 0)").
			Scan(&current).Error; err != nil {
			return errutil.Internal("storage failure", err, errutil.WithErr(err))
		}
		if sub.Version != current {
			return ErrStaleSubmission
		}

		switch next {
		case StatusRevisionRequested:
			if sub.Status != StatusSubmitted {
				return ErrInvalidTransition
			}
		case StatusApproved:
			if sub.Status == StatusApproved {
				return ErrInvalidTransition
			}
		}

		now := time.Now()
		sub.Status = next
		sub.ReviewedAt = &now
		if comment != "" {
			sub.RevisionComment = comment
		}

		updates := map[string]any{
			"status":      next,
			"reviewed_at": now,
		}
		if comment != "" {
			updates["revision_comment"] = comment
		}
		if err := tx.Model(&VideoSubmission{}).
			Where("id = ?", sub.ID).
			Updates(updates).Error; err != nil {
			return errutil.Internal("storage failure", err, errutil.WithErr(err))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func (s *Service) Get(ctx context.Context, submissionID string) (*VideoSubmission, error) {
	var sub VideoSubmission
	if err := s.db.WithContext(ctx).Where("id = ?", submissionID).First(&sub).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errutil.NotFound("submission not found", err)
		}
		return nil, errutil.Internal("storage failure", err, errutil.WithErr(err))
	}
	return &sub, nil
}

// Current returns the highest-version submission for the slot, or nil if the
// slot has never been submitted to.
func (s *Service) Current(ctx context.Context, applicationID string, slot campaign.Slot) (*VideoSubmission, error) {
	var sub VideoSubmission
	err := s.db.WithContext(ctx).
		Where("application_id = ? AND slot = ?", applicationID, slot).
		Order("version DESC").
		First(&sub).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, errutil.Internal("storage failure", err, errutil.WithErr(err))
	}
	return &sub, nil
}

// Versions lists every recorded version for the slot, oldest first.
func (s *Service) Versions(ctx context.Context, applicationID string, slot campaign.Slot) ([]*VideoSubmission, error) {
	var subs []*VideoSubmission
	if err := s.db.WithContext(ctx).
		Where("application_id = ? AND slot = ?", applicationID, slot).
		Order("version ASC").
		Find(&subs).Error; err != nil {
		return nil, errutil.Internal("storage failure", err, errutil.WithErr(err))
	}
	return subs, nil
}

// PendingRevisions is the creator's rework feed: every submission of the
// application currently flagged for revision.
func (s *Service) PendingRevisions(ctx context.Context, applicationID string) ([]*VideoSubmission, error) {
	var subs []*VideoSubmission
	if err := s.db.WithContext(ctx).
		Where("application_id = ? AND status = ?", applicationID, StatusRevisionRequested).
		Order("uploaded_at ASC").
		Find(&subs).Error; err != nil {
		return nil, errutil.Internal("storage failure", err, errutil.WithErr(err))
	}
	return subs, nil
}

func (s *Service) notify(ctx context.Context, applicationID string) {
	if s.observer == nil {
		return
	}
	if err := s.observer.SubmissionChanged(ctx, applicationID); err != nil {
		zap.L().Error("failed to propagate submission change",
			zap.String("application_id", applicationID),
			zap.Error(err),
		)
	}
}

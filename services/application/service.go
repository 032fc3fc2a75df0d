package application

import (
	"context"
	"errors"
	"time"

	"cnec-platform/pkg/db"
	"cnec-platform/pkg/errutil"
	"cnec-platform/services/campaign"
	"cnec-platform/services/ledger"
	"cnec-platform/services/notification"
	"cnec-platform/services/submission"

	"github.com/bwmarrin/snowflake"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var (
	// ErrInvalidTransition is returned when a lifecycle action does not
	// apply to the application's current status.
	ErrInvalidTransition = errutil.Conflict("invalid application transition", nil)

	// ErrAlreadyApplied is returned when the creator already holds an
	// application for the campaign.
	ErrAlreadyApplied = errutil.Conflict("creator already applied to this campaign", nil)
)

type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionReject  Decision = "reject"
)

type Service struct {
	db        *gorm.DB
	node      *snowflake.Node
	campaigns *campaign.Service
	ledger    *ledger.Service
	publisher notification.Publisher
}

type ServiceParams struct {
	fx.In
	DB        *gorm.DB
	Node      *snowflake.Node
	Campaigns *campaign.Service
	Ledger    *ledger.Service
	Publisher notification.Publisher `optional:"true"`
}

func NewService(p ServiceParams) *Service {
	return &Service{
		db:        p.DB,
		node:      p.Node,
		campaigns: p.Campaigns,
		ledger:    p.Ledger,
		publisher: p.Publisher,
	}
}

type CreateParams struct {
	CampaignID string
	UserID     string
	Pitch      string
}

// Create records a creator's application to a campaign. One application per
// (campaign, user); the campaign must be open.
func (s *Service) Create(ctx context.Context, p CreateParams) (*Application, error) {
	c, err := s.campaigns.Get(ctx, p.CampaignID)
	if err != nil {
		return nil, err
	}
	if !c.IsActive(time.Now()) {
		return nil, errutil.UnprocessableEntity("campaign is not open for applications", nil)
	}

	app := &Application{
		ID:         s.node.Generate().String(),
		CampaignID: p.CampaignID,
		UserID:     p.UserID,
		Status:     StatusPending,
		Pitch:      p.Pitch,
	}
	if err := s.db.WithContext(ctx).Create(app).Error; err != nil {
		if db.IsDuplicate(err) {
			return nil, ErrAlreadyApplied
		}
		return nil, errutil.Internal("storage failure", err, errutil.WithErr(err))
	}

	s.publishStatus(ctx, app)
	return app, nil
}

func (s *Service) Get(ctx context.Context, applicationID string) (*Application, error) {
	var app Application
	if err := s.db.WithContext(ctx).Where("id = ?", applicationID).First(&app).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errutil.NotFound("application not found", err)
		}
		return nil, errutil.Internal("storage failure", err, errutil.WithErr(err))
	}
	return &app, nil
}

func (s *Service) ListByUser(ctx context.Context, userID string) ([]*Application, error) {
	var apps []*Application
	if err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&apps).Error; err != nil {
		return nil, errutil.Internal("storage failure", err, errutil.WithErr(err))
	}
	return apps, nil
}

func (s *Service) ListByCampaign(ctx context.Context, campaignID string) ([]*Application, error) {
	var apps []*Application
	if err := s.db.WithContext(ctx).
		Where("campaign_id = ?", campaignID).
		Order("created_at DESC").
		Find(&apps).Error; err != nil {
		return nil, errutil.Internal("storage failure", err, errutil.WithErr(err))
	}
	return apps, nil
}

// Decide settles intake review. Only a pending application can be decided;
// approval moves it into the production phase, rejection is terminal.
func (s *Service) Decide(ctx context.Context, applicationID string, decision Decision, reason string) (*Application, error) {
	var app Application
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Scopes(db.LockForUpdate).
			Where("id = ?", applicationID).
			First(&app).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return errutil.NotFound("application not found", err)
			}
			return errutil.Internal("storage failure", err, errutil.WithErr(err))
		}
		if app.Status != StatusPending {
			return ErrInvalidTransition
		}

		now := time.Now()
		switch decision {
		case DecisionApprove:
			app.Status = StatusApproved
		case DecisionReject:
			app.Status = StatusRejected
			app.RejectReason = reason
		default:
			return errutil.BadRequest("unknown decision", nil)
		}
		app.DecidedAt = &now

		updates := map[string]any{
			"status":     app.Status,
			"decided_at": now,
		}
		if reason != "" {
			updates["reject_reason"] = reason
		}
		if err := tx.Model(&Application{}).
			Where("id = ?", app.ID).
			Updates(updates).Error; err != nil {
			return errutil.Internal("storage failure", err, errutil.WithErr(err))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publishStatus(ctx, &app)
	return &app, nil
}

// RecordPosting marks the slot's deliverable as confirmed posted. The slot's
// current submission must already be approved. Recording the same slot twice
// is a no-op.
func (s *Service) RecordPosting(ctx context.Context, applicationID string, slot campaign.Slot, postURL string) (*SlotPosting, error) {
	app, err := s.Get(ctx, applicationID)
	if err != nil {
		return nil, err
	}
	if !app.Status.Active() {
		return nil, ErrInvalidTransition
	}

	c, err := s.campaigns.Get(ctx, app.CampaignID)
	if err != nil {
		return nil, err
	}
	if !c.ValidSlot(slot) {
		return nil, errutil.BadRequest("unknown slot for campaign kind", nil)
	}

	current, err := s.currentSubmission(ctx, s.db, applicationID, slot)
	if err != nil {
		return nil, err
	}
	if current == nil || current.Status != submission.StatusApproved {
		return nil, errutil.UnprocessableEntity("slot has no approved submission to post", nil)
	}

	posting := &SlotPosting{
		ID:            s.node.Generate().String(),
		ApplicationID: applicationID,
		Slot:          slot,
		PostURL:       postURL,
	}
	if err := s.db.WithContext(ctx).Create(posting).Error; err != nil {
		if db.IsDuplicate(err) {
			if err := s.db.WithContext(ctx).
				Where("application_id = ? AND slot = ?", applicationID, slot).
				First(posting).Error; err != nil {
				return nil, errutil.Internal("storage failure", err, errutil.WithErr(err))
			}
			return posting, nil
		}
		return nil, errutil.Internal("storage failure", err, errutil.WithErr(err))
	}

	if err := s.SubmissionChanged(ctx, applicationID); err != nil {
		return nil, err
	}
	return posting, nil
}

// OverrideDeadline sets a per-application deadline that takes precedence over
// the campaign default for the slot.
func (s *Service) OverrideDeadline(ctx context.Context, applicationID string, slot campaign.Slot, kind campaign.DeadlineKind, at time.Time) (*Application, error) {
	var app Application
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Scopes(db.LockForUpdate).
			Where("id = ?", applicationID).
			First(&app).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return errutil.NotFound("application not found", err)
			}
			return errutil.Internal("storage failure", err, errutil.WithErr(err))
		}

		overrides := app.DeadlineOverrides.Data()
		if overrides == nil {
			overrides = campaign.DeadlineMap{}
		}
		overrides[campaign.DeadlineKey(slot, kind)] = at
		app.DeadlineOverrides = datatypes.NewJSONType(overrides)

		if err := tx.Model(&Application{}).
			Where("id = ?", app.ID).
			Update("deadline_overrides", app.DeadlineOverrides).Error; err != nil {
			return errutil.Internal("storage failure", err, errutil.WithErr(err))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &app, nil
}

// CanSubmit gates uploads for the submission tracker: the application must be
// in an active status and the slot must belong to the campaign's kind.
func (s *Service) CanSubmit(ctx context.Context, applicationID string, slot campaign.Slot) (*campaign.Campaign, error) {
	app, err := s.Get(ctx, applicationID)
	if err != nil {
		return nil, err
	}
	if !app.Status.Active() {
		return nil, ErrInvalidTransition
	}

	c, err := s.campaigns.Get(ctx, app.CampaignID)
	if err != nil {
		return nil, err
	}
	if !c.ValidSlot(slot) {
		return nil, errutil.BadRequest("unknown slot for campaign kind", nil)
	}
	return c, nil
}

// SubmissionChanged recomputes the aggregate status from the per-slot current
// submissions and postings. The recomputation is idempotent; the reward credit
// on entering completed is deduplicated inside the same transaction.
func (s *Service) SubmissionChanged(ctx context.Context, applicationID string) error {
	span := trace.SpanFromContext(ctx)
	opts := []zap.Field{
		zap.String("trace_id", span.SpanContext().TraceID().String()),
		zap.String("application_id", applicationID),
	}

	var app Application
	var changed bool
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Scopes(db.LockForUpdate).
			Where("id = ?", applicationID).
			First(&app).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return errutil.NotFound("application not found", err)
			}
			return errutil.Internal("storage failure", err, errutil.WithErr(err))
		}
		if !app.Status.Active() {
			return nil
		}

		// The campaign read must share the transaction's connection; a pool
		// lookup here deadlocks when the pool is capped at one connection.
		var c campaign.Campaign
		if err := tx.Where("campaign_id = ?", app.CampaignID).First(&c).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return errutil.NotFound("campaign not found", err)
			}
			return errutil.Internal("storage failure", err, errutil.WithErr(err))
		}

		next, err := s.deriveStatus(ctx, tx, &app, &c)
		if err != nil {
			return err
		}
		if next == app.Status {
			return nil
		}

		changed = true
		updates := map[string]any{"status": next}
		if next == StatusCompleted {
			now := time.Now()
			app.CompletedAt = &now
			updates["completed_at"] = now
			if err := s.creditReward(ctx, tx, &app, &c); err != nil {
				return err
			}
		}
		app.Status = next

		if err := tx.Model(&Application{}).
			Where("id = ?", app.ID).
			Updates(updates).Error; err != nil {
			return errutil.Internal("storage failure", err, errutil.WithErr(err))
		}
		return nil
	})
	if err != nil {
		zap.L().With(opts...).Error("failed to recompute application status", zap.Error(err))
		return err
	}

	if changed {
		zap.L().With(opts...).Info("application status changed",
			zap.String("status", string(app.Status)),
		)
		s.publishStatus(ctx, &app)
	}
	return nil
}

// deriveStatus folds the required slots into one aggregate:
// any revision request wins, then full approval + full posting completes,
// then full approval alone means postings are pending.
func (s *Service) deriveStatus(ctx context.Context, tx *gorm.DB, app *Application, c *campaign.Campaign) (Status, error) {
	postings, err := s.postedSlots(ctx, tx, app.ID)
	if err != nil {
		return "", err
	}

	allApproved := true
	allPosted := true
	anyRevision := false
	anySubmitted := false

	for _, slot := range c.RequiredSlots() {
		current, err := s.currentSubmission(ctx, tx, app.ID, slot)
		if err != nil {
			return "", err
		}
		if current == nil {
			allApproved = false
			allPosted = false
			continue
		}
		anySubmitted = true
		switch current.Status {
		case submission.StatusRevisionRequested:
			anyRevision = true
			allApproved = false
		case submission.StatusSubmitted:
			allApproved = false
		}
		if !postings[slot] {
			allPosted = false
		}
	}

	switch {
	case anyRevision:
		return StatusRevisionCycle, nil
	case allApproved && allPosted:
		return StatusCompleted, nil
	case allApproved:
		return StatusPosted, nil
	case anySubmitted:
		return StatusInProduction, nil
	default:
		return StatusApproved, nil
	}
}

func (s *Service) currentSubmission(ctx context.Context, tx *gorm.DB, applicationID string, slot campaign.Slot) (*submission.VideoSubmission, error) {
	var sub submission.VideoSubmission
	err := tx.WithContext(ctx).
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

func (s *Service) postedSlots(ctx context.Context, tx *gorm.DB, applicationID string) (map[campaign.Slot]bool, error) {
	var postings []*SlotPosting
	if err := tx.WithContext(ctx).
		Where("application_id = ?", applicationID).
		Find(&postings).Error; err != nil {
		return nil, errutil.Internal("storage failure", err, errutil.WithErr(err))
	}
	posted := make(map[campaign.Slot]bool, len(postings))
	for _, p := range postings {
		posted[p.Slot] = true
	}
	return posted, nil
}

// creditReward pays the campaign reward on completion, exactly once per
// application. The dedup check and the append share the caller's transaction.
func (s *Service) creditReward(ctx context.Context, tx *gorm.DB, app *Application, c *campaign.Campaign) error {
	if c.RewardAmount <= 0 {
		return nil
	}

	var count int64
	if err := tx.WithContext(ctx).
		Model(&ledger.PointTransaction{}).
		Where("application_id = ? AND kind = ?", app.ID, ledger.KindEarn).
		Count(&count).Error; err != nil {
		return errutil.Internal("storage failure", err, errutil.WithErr(err))
	}
	if count > 0 {
		return nil
	}

	_, err := s.ledger.CreditTx(ctx, tx, ledger.CreditParams{
		UserID:        app.UserID,
		Amount:        c.RewardAmount,
		Kind:          ledger.KindEarn,
		ApplicationID: &app.ID,
		Description:   "campaign reward: " + c.Title,
	})
	return err
}

func (s *Service) publishStatus(ctx context.Context, app *Application) {
	if s.publisher == nil {
		return
	}
	ev := notification.Event{
		Type:          notification.EventApplicationStatusChanged,
		ApplicationID: app.ID,
		CampaignID:    app.CampaignID,
		UserID:        app.UserID,
		Status:        string(app.Status),
	}
	if err := s.publisher.Publish(ctx, ev); err != nil {
		zap.L().Error("failed to publish application status event",
			zap.String("application_id", app.ID),
			zap.Error(err),
		)
	}
}

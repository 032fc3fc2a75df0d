package withdrawal

import (
	"context"
	"errors"
	"time"

	"cnec-platform/pkg/config"
	"cnec-platform/pkg/db"
	"cnec-platform/pkg/errutil"
	"cnec-platform/pkg/sequence"
	"cnec-platform/services/ledger"

	"github.com/bwmarrin/snowflake"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var (
	// ErrInvalidAmount is returned when the requested amount is not positive
	// or falls below the configured minimum.
	ErrInvalidAmount = errutil.ValidationFailed("invalid withdrawal amount", nil)

	// ErrAlreadyResolved is returned when a resolution targets a request that
	// has already reached the requested or a conflicting state.
	ErrAlreadyResolved = errutil.Conflict("withdrawal request already resolved", nil)
)

type Service struct {
	db        *gorm.DB
	node      *snowflake.Node
	ledger    *ledger.Service
	codes     sequence.Generator
	minAmount int64
}

type ServiceParams struct {
	fx.In
	DB     *gorm.DB
	Node   *snowflake.Node
	Ledger *ledger.Service
	Codes  sequence.Generator `optional:"true"`
	Config *config.Config
}

func NewService(p ServiceParams) *Service {
	return &Service{
		db:        p.DB,
		node:      p.Node,
		ledger:    p.Ledger,
		codes:     p.Codes,
		minAmount: p.Config.Withdrawal.MinimumAmount,
	}
}

type RequestParams struct {
	UserID      string
	Amount      int64
	Destination datatypes.JSON
}

// Request creates a pending withdrawal and reserves the points immediately:
// the request row and the spend transaction commit together, so a second
// request against the same funds fails the atomic balance check.
func (s *Service) Request(ctx context.Context, p RequestParams) (*WithdrawalRequest, error) {
	span := trace.SpanFromContext(ctx)
	opts := []zap.Field{
		zap.String("trace_id", span.SpanContext().TraceID().String()),
		zap.String("user_id", p.UserID),
	}

	if p.Amount <= 0 || p.Amount < s.minAmount {
		return nil, ErrInvalidAmount
	}

	code := ""
	if s.codes != nil {
		var err error
		code, err = s.codes.NextWithdrawalCode(ctx)
		if err != nil {
			zap.L().With(opts...).Warn("failed to mint withdrawal code", zap.Error(err))
		}
	}

	req := &WithdrawalRequest{
		ID:          s.node.Generate().String(),
		Code:        code,
		UserID:      p.UserID,
		Amount:      p.Amount,
		Destination: p.Destination,
		Status:      StatusPending,
	}
	if req.Code == "" {
		req.Code = "WDR-" + req.ID
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		entry, err := s.ledger.DebitTx(ctx, tx, ledger.DebitParams{
			UserID:      p.UserID,
			Amount:      p.Amount,
			Kind:        ledger.KindSpend,
			Description: "withdrawal " + req.Code,
		})
		if err != nil {
			return err
		}
		req.TransactionID = entry.ID

		if err := tx.Create(req).Error; err != nil {
			return errutil.Internal("storage failure", err, errutil.WithErr(err))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	zap.L().With(opts...).Info("withdrawal requested",
		zap.String("withdrawal_id", req.ID),
		zap.Int64("amount", p.Amount),
	)
	return req, nil
}

type ResolveParams struct {
	Outcome Status
	Reason  string
}

// Resolve settles a request: pending may go to approved, rejected or straight
// to completed; approved may only complete. Rejection returns the reserved
// points with a compensating earn in the same transaction. Any other
// re-resolution fails with ErrAlreadyResolved.
func (s *Service) Resolve(ctx context.Context, withdrawalID string, p ResolveParams) (*WithdrawalRequest, error) {
	switch p.Outcome {
	case StatusApproved, StatusRejected, StatusCompleted:
	default:
		return nil, errutil.BadRequest("unknown withdrawal outcome", nil)
	}

	var req WithdrawalRequest
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Scopes(db.LockForUpdate).
			Where("id = ?", withdrawalID).
			First(&req).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return errutil.NotFound("withdrawal request not found", err)
			}
			return errutil.Internal("storage failure", err, errutil.WithErr(err))
		}

		switch {
		case req.Status == StatusPending:
		case req.Status == StatusApproved && p.Outcome == StatusCompleted:
		default:
			return ErrAlreadyResolved
		}

		if p.Outcome == StatusRejected {
			if _, err := s.ledger.CreditTx(ctx, tx, ledger.CreditParams{
				UserID:      req.UserID,
				Amount:      req.Amount,
				Kind:        ledger.KindEarn,
				Description: "withdrawal rejected " + req.Code,
			}); err != nil {
				return err
			}
		}

		now := time.Now()
		req.Status = p.Outcome
		if req.ProcessedAt == nil {
			req.ProcessedAt = &now
		}
		if p.Reason != "" {
			req.RejectReason = p.Reason
		}

		updates := map[string]any{
			"status":       req.Status,
			"processed_at": req.ProcessedAt,
		}
		if p.Reason != "" {
			updates["reject_reason"] = p.Reason
		}
		if err := tx.Model(&WithdrawalRequest{}).
			Where("id = ?", req.ID).
			Updates(updates).Error; err != nil {
			return errutil.Internal("storage failure", err, errutil.WithErr(err))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	zap.L().Info("withdrawal resolved",
		zap.String("withdrawal_id", req.ID),
		zap.String("status", string(req.Status)),
	)
	return &req, nil
}

func (s *Service) Get(ctx context.Context, withdrawalID string) (*WithdrawalRequest, error) {
	var req WithdrawalRequest
	if err := s.db.WithContext(ctx).Where("id = ?", withdrawalID).First(&req).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errutil.NotFound("withdrawal request not found", err)
		}
		return nil, errutil.Internal("storage failure", err, errutil.WithErr(err))
	}
	return &req, nil
}

func (s *Service) ListByUser(ctx context.Context, userID string) ([]*WithdrawalRequest, error) {
	var reqs []*WithdrawalRequest
	if err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&reqs).Error; err != nil {
		return nil, errutil.Internal("storage failure", err, errutil.WithErr(err))
	}
	return reqs, nil
}

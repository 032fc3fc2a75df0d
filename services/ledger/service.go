package ledger

import (
	"context"
	"errors"
	"time"

	"cnec-platform/pkg/db"
	"cnec-platform/pkg/errutil"

	"github.com/bwmarrin/snowflake"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ErrInsufficientBalance is returned when a debit would take the balance
// below zero at the time of the atomic check.
var ErrInsufficientBalance = errutil.UnprocessableEntity("insufficient balance", nil)

type Service struct {
	db   *gorm.DB
	node *snowflake.Node
}

type ServiceParams struct {
	fx.In
	DB   *gorm.DB
	Node *snowflake.Node
}

func NewService(p ServiceParams) *Service {
	return &Service{
		db:   p.DB,
		node: p.Node,
	}
}

type CreditParams struct {
	UserID        string
	Amount        int64
	Kind          Kind
	ApplicationID *string
	Description   string
}

type DebitParams struct {
	UserID        string
	Amount        int64
	Kind          Kind
	ApplicationID *string
	Description   string
}

// Credit appends a positive transaction in its own atomic unit.
func (s *Service) Credit(ctx context.Context, p CreditParams) (*PointTransaction, error) {
	var entry *PointTransaction
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		entry, err = s.CreditTx(ctx, tx, p)
		return err
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// CreditTx appends a positive transaction inside the caller's transaction so
// it can share an atomic unit with, say, an application status change.
func (s *Service) CreditTx(ctx context.Context, tx *gorm.DB, p CreditParams) (*PointTransaction, error) {
	span := trace.SpanFromContext(ctx)
	opts := []zap.Field{
		zap.String("trace_id", span.SpanContext().TraceID().String()),
		zap.String("user_id", p.UserID),
	}

	if p.Amount <= 0 {
		return nil, errutil.ValidationFailed("credit amount must be positive", nil)
	}
	if !p.Kind.Valid() || p.Kind == KindSpend {
		return nil, errutil.BadRequest("unsupported credit kind", nil)
	}

	account, err := s.lockAccount(ctx, tx, p.UserID)
	if err != nil {
		return nil, err
	}

	entry := &PointTransaction{
		ID:            s.node.Generate().String(),
		UserID:        p.UserID,
		Amount:        p.Amount,
		Kind:          p.Kind,
		ApplicationID: p.ApplicationID,
		Description:   p.Description,
	}

	if err := tx.WithContext(ctx).Create(entry).Error; err != nil {
		zap.L().With(opts...).Error("failed to append credit", zap.Error(err))
		return nil, errutil.Internal("storage failure", err, errutil.WithErr(err))
	}

	if err := s.bumpAccount(ctx, tx, account, p.Amount); err != nil {
		return nil, err
	}

	return entry, nil
}

// Debit appends a negative transaction in its own atomic unit.
func (s *Service) Debit(ctx context.Context, p DebitParams) (*PointTransaction, error) {
	var entry *PointTransaction
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		entry, err = s.DebitTx(ctx, tx, p)
		return err
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// DebitTx appends a negative transaction inside the caller's transaction.
// The balance check and the append happen under the user's account row lock,
// so two concurrent debits cannot both pass the check against the same
// funds.
func (s *Service) DebitTx(ctx context.Context, tx *gorm.DB, p DebitParams) (*PointTransaction, error) {
	span := trace.SpanFromContext(ctx)
	opts := []zap.Field{
		zap.String("trace_id", span.SpanContext().TraceID().String()),
		zap.String("user_id", p.UserID),
	}

	if p.Amount <= 0 {
		return nil, errutil.ValidationFailed("debit amount must be positive", nil)
	}
	if !p.Kind.Valid() {
		return nil, errutil.BadRequest("unsupported debit kind", nil)
	}

	account, err := s.lockAccount(ctx, tx, p.UserID)
	if err != nil {
		return nil, err
	}

	balance, err := s.sumTx(ctx, tx, p.UserID)
	if err != nil {
		return nil, err
	}

	if balance-p.Amount < 0 {
		zap.L().With(opts...).Warn("debit rejected",
			zap.Int64("balance", balance),
			zap.Int64("amount", p.Amount),
		)
		return nil, ErrInsufficientBalance
	}

	entry := &PointTransaction{
		ID:            s.node.Generate().String(),
		UserID:        p.UserID,
		Amount:        -p.Amount,
		Kind:          p.Kind,
		ApplicationID: p.ApplicationID,
		Description:   p.Description,
	}

	if err := tx.WithContext(ctx).Create(entry).Error; err != nil {
		zap.L().With(opts...).Error("failed to append debit", zap.Error(err))
		return nil, errutil.Internal("storage failure", err, errutil.WithErr(err))
	}

	if err := s.bumpAccount(ctx, tx, account, -p.Amount); err != nil {
		return nil, err
	}

	return entry, nil
}

// Balance derives the user's balance from the full transaction history. No
// stored total is ever returned directly.
func (s *Service) Balance(ctx context.Context, userID string) (int64, error) {
	return s.sumTx(ctx, s.db, userID)
}

// Transactions lists a user's point history, newest first.
func (s *Service) Transactions(ctx context.Context, userID string) ([]*PointTransaction, error) {
	var entries []*PointTransaction
	if err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Find(&entries).Error; err != nil {
		return nil, errutil.Internal("storage failure", err, errutil.WithErr(err))
	}
	return entries, nil
}

func (s *Service) sumTx(ctx context.Context, tx *gorm.DB, userID string) (int64, error) {
	var balance int64
	if err := tx.WithContext(ctx).
		Model(&PointTransaction{}).
		Where("user_id = ?", userID).
		Select("COALESCE(SUM(amount), 0)").
		Scan(&balance).Error; err != nil {
		return 0, errutil.Internal("storage failure", err, errutil.WithErr(err))
	}
	return balance, nil
}

// lockAccount takes the per-user row lock that serializes every
// balance-check-then-append sequence. The row is created on first use.
func (s *Service) lockAccount(ctx context.Context, tx *gorm.DB, userID string) (*Account, error) {
	var account Account
	err := tx.WithContext(ctx).Scopes(db.LockForUpdate).
		Where("user_id = ?", userID).
		First(&account).Error
	if err == nil {
		return &account, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errutil.Internal("storage failure", err, errutil.WithErr(err))
	}

	account = Account{
		ID:     s.node.Generate().String(),
		UserID: userID,
	}
	if err := tx.WithContext(ctx).Create(&account).Error; err != nil {
		if db.IsDuplicate(err) {
			// Lost the race with a concurrent first transaction; lock the
			// winner's row instead.
			if err := tx.WithContext(ctx).Scopes(db.LockForUpdate).
				Where("user_id = ?", userID).
				First(&account).Error; err != nil {
				return nil, errutil.Internal("storage failure", err, errutil.WithErr(err))
			}
			return &account, nil
		}
		return nil, errutil.Internal("storage failure", err, errutil.WithErr(err))
	}
	return &account, nil
}

func (s *Service) bumpAccount(ctx context.Context, tx *gorm.DB, account *Account, delta int64) error {
	updates := map[string]any{
		"balance":    gorm.Expr("balance + ?", delta),
		"updated_at": time.Now(),
	}
	if err := tx.WithContext(ctx).Model(&Account{}).
		Where("id = ?", account.ID).
		Updates(updates).Error; err != nil {
		return errutil.Internal("storage failure", err, errutil.WithErr(err))
	}
	return nil
}

package ledger

import "time"

type Kind string

const (
	KindEarn        Kind = "earn"
	KindBonus       Kind = "bonus"
	KindAdminAdjust Kind = "admin_adjust"
	KindPending     Kind = "pending"
	KindSpend       Kind = "spend"
)

func (k Kind) Valid() bool {
	switch k {
	case KindEarn, KindBonus, KindAdminAdjust, KindPending, KindSpend:
		return true
	}
	return false
}

// PointTransaction is one signed movement on a user's point balance. Rows
// are append-only; they are never updated or deleted, and the balance is the
// sum over them.
type PointTransaction struct {
	ID            string    `gorm:"column:id;primaryKey"`
	UserID        string    `gorm:"column:user_id;index;not null"`
	Amount        int64     `gorm:"column:amount;not null"`
	Kind          Kind      `gorm:"column:kind;type:varchar(50);not null"`
	ApplicationID *string   `gorm:"column:application_id;index"`
	Description   string    `gorm:"column:description;type:text"`
	CreatedAt     time.Time `gorm:"column:created_at;autoCreateTime"`
}

// Account exists per user purely as the row to lock for the
// balance-check-then-append sequence, plus a running total that the
// transaction boundary keeps in agreement with the sum. Reads always derive
// the balance from the transaction rows.
type Account struct {
	ID        string    `gorm:"column:id;primaryKey"`
	UserID    string    `gorm:"column:user_id;uniqueIndex;not null"`
	Balance   int64     `gorm:"column:balance;not null"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

package withdrawal

import (
	"time"

	"gorm.io/datatypes"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusApproved  Status = "approved"
	StatusRejected  Status = "rejected"
	StatusCompleted Status = "completed"
)

// WithdrawalRequest reserves points at creation time: the spend transaction is
// appended in the same atomic unit, so the balance can never be promised
// twice. Rejection appends the compensating earn.
type WithdrawalRequest struct {
	ID            string         `gorm:"column:id;primaryKey"`
	Code          string         `gorm:"column:code;type:varchar(50);uniqueIndex"`
	UserID        string         `gorm:"column:user_id;index;not null"`
	Amount        int64          `gorm:"column:amount;not null"`
	Destination   datatypes.JSON `gorm:"column:destination"`
	Status        Status         `gorm:"column:status;type:varchar(50);not null;default:'pending'"`
	RejectReason  string         `gorm:"column:reject_reason;type:text"`
	TransactionID string         `gorm:"column:transaction_id"`
	CreatedAt     time.Time      `gorm:"column:created_at;autoCreateTime"`
	ProcessedAt   *time.Time     `gorm:"column:processed_at"`
}

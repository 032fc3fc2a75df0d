package submission

import (
	"time"

	"cnec-platform/services/campaign"
)

type Status string

const (
	StatusSubmitted         Status = "submitted"
	StatusRevisionRequested Status = "revision_requested"
	StatusApproved          Status = "approved"
)

// VideoSubmission is one uploaded deliverable version. A new upload always
// inserts the next version for its (application, slot) pair; the row with
// the highest version is the slot's current state.
type VideoSubmission struct {
	ID                 string        `gorm:"column:id;primaryKey"`
	ApplicationID      string        `gorm:"column:application_id;not null;uniqueIndex:idx_submission_slot_version"`
	Slot               campaign.Slot `gorm:"column:slot;type:varchar(20);not null;uniqueIndex:idx_submission_slot_version"`
	Version            int           `gorm:"column:version;not null;uniqueIndex:idx_submission_slot_version"`
	FileReference      string        `gorm:"column:file_reference;type:text;not null"`
	FileName           string        `gorm:"column:file_name;type:varchar(512)"`
	FileSize           int64         `gorm:"column:file_size"`
	CleanFileReference string        `gorm:"column:clean_file_reference;type:text"`
	Status             Status        `gorm:"column:status;type:varchar(50);not null;default:'submitted'"`
	RevisionComment    string        `gorm:"column:revision_comment;type:text"`
	UploadedAt         time.Time     `gorm:"column:uploaded_at;autoCreateTime"`
	ReviewedAt         *time.Time    `gorm:"column:reviewed_at"`
}

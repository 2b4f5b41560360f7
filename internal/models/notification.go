package models

import "time"

const (
	NotificationApprovalRequired = "approval_required"
	NotificationPipelineFinished = "pipeline_finished"
	NotificationPipelineError    = "pipeline_error"
)

type Notification struct {
	ID        uint   `gorm:"primaryKey"`
	UserID    string `gorm:"index"`
	Type      string
	Message   string
	ReadAt    *time.Time
	CreatedAt time.Time
}

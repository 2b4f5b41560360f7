package models

import "time"

const (
	ApprovalStatusPending  = "pending"
	ApprovalStatusApproved = "approved"
	ApprovalStatusRejected = "rejected"
)

type ApprovalStatus = string

const (
	RiskLow    = "low"
	RiskMedium = "medium"
	RiskHigh   = "high"
)

const (
	OriginDashboard = "dashboard"
	OriginChat      = "chat"
	OriginCMSPlugin = "cms-plugin"
	OriginAPI       = "api"
	OriginWebhook   = "webhook"
	OriginSystem    = "system"
	OriginUnknown   = "unknown"
)

// Approval gates exactly one pipeline step. Once resolved it is never
// mutated again.
type Approval struct {
	ID             string `gorm:"primaryKey"`
	PipelineStepID string `gorm:"index"`
	ApprovalType   string
	Risk           string
	Status         ApprovalStatus `gorm:"index"`
	Origin         string
	Reason         *string
	CreatedAt      time.Time
	ApprovedAt     *time.Time
	RejectedAt     *time.Time
}

func (a *Approval) Resolved() bool {
	return a.Status != ApprovalStatusPending
}

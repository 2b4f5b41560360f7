package models

import (
	"time"

	units "github.com/docker/go-units"
)

const (
	PipelineStatusActive    = "active"
	PipelineStatusResuming  = "resuming"
	PipelineStatusCompleted = "completed"
	PipelineStatusFailed    = "failed"
	PipelineStatusCancelled = "cancelled"
)

type PipelineStatus = string

// TerminalPipelineStatuses never transition into anything else.
var TerminalPipelineStatuses = []PipelineStatus{
	PipelineStatusCompleted,
	PipelineStatusFailed,
	PipelineStatusCancelled,
}

func IsTerminalPipelineStatus(status PipelineStatus) bool {
	for _, s := range TerminalPipelineStatuses {
		if s == status {
			return true
		}
	}
	return false
}

type Pipeline struct {
	ID          string `gorm:"primaryKey"`
	Name        string
	Description string
	Source      string         `gorm:"index"`
	Type        string         `gorm:"index"`
	Status      PipelineStatus `gorm:"index"`
	Metadata    Metadata
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

const (
	StepStatusPending         = "pending"
	StepStatusInProgress      = "in_progress"
	StepStatusCompleted       = "completed"
	StepStatusFailed          = "failed"
	StepStatusWaitingApproval = "waiting_approval"
)

type StepStatus = string

func IsTerminalStepStatus(status StepStatus) bool {
	return status == StepStatusCompleted || status == StepStatusFailed
}

type PipelineStep struct {
	ID          string `gorm:"primaryKey"`
	PipelineID  string `gorm:"index"`
	Name        string
	Description string
	Status      StepStatus
	StartedAt   *time.Time
	CompletedAt *time.Time
	Duration    string
	Metadata    Metadata
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// HumanStepDuration renders the wall time between two step timestamps
// for dashboards; "moments" when the step never really ran.
func HumanStepDuration(started, completed *time.Time) string {
	if started == nil || completed == nil {
		return ""
	}
	elapsed := completed.Sub(*started)
	if elapsed < time.Second {
		return "moments"
	}
	return units.HumanDuration(elapsed)
}

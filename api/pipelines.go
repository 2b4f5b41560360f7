package api

import "github.com/redgrape/thegrid/internal/models"

type IngestFigmaRequest struct {
	Token string `json:"token"`
	FigmaReadyEvent
}

type IngestEditorRequest struct {
	Token string `json:"token"`
	EditorCompletedEvent
}

type IngestEditorResponse struct {
	Status
	PipelineID string `json:"pipeline_id,omitempty"`
	ApprovalID string `json:"approval_id,omitempty"`
}

type IngestReleaseRequest struct {
	Token string `json:"token"`
	ReleaseReadyEvent
}

type IngestResponse struct {
	Status
}

type ResolveApprovalRequest struct {
	Token      string `json:"token"`
	ResolvedBy string `json:"resolved_by,omitempty"`
	Reason     string `json:"reason,omitempty"`
}

type ResolveApprovalResponse struct {
	Status
	PipelineID string `json:"pipeline_id,omitempty"`
}

type PipelinesResponse struct {
	Status
	Pipelines []models.Pipeline `json:"pipelines,omitempty"`
}

type PipelineResponse struct {
	Status
	Pipeline *models.Pipeline      `json:"pipeline,omitempty"`
	Steps    []models.PipelineStep `json:"steps,omitempty"`
}

type ApprovalsResponse struct {
	Status
	Approvals []models.Approval `json:"approvals,omitempty"`
}

type ApprovalResponse struct {
	Status
	Approval *models.Approval `json:"approval,omitempty"`
}

type ChangelogResponse struct {
	Status
	Entries []models.ChangelogEntry `json:"entries,omitempty"`
}

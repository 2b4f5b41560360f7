package orchestrator

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/redgrape/thegrid/api"
	"github.com/redgrape/thegrid/internal/events"
	lf "github.com/redgrape/thegrid/internal/logfield"
	"github.com/redgrape/thegrid/internal/models"
)

func (o *Orchestrator) handleApprovalGranted(ctx context.Context, payload interface{}) error {
	ev, ok := payload.(api.ApprovalGrantedEvent)
	if !ok {
		return errors.Errorf("unexpected payload %T for %s", payload, events.TopicApprovalGranted)
	}
	return o.Resume(ctx, ev)
}

// Resume is Phase B: the pipeline wakes up after a human said yes. The
// status swap to resuming guarantees at-most-once resumption even if the
// approval event is delivered twice.
func (o *Orchestrator) Resume(ctx context.Context, ev api.ApprovalGrantedEvent) error {
	log := o.logger.With(lf.PipelineID(ev.PipelineID), lf.StepID(ev.ApprovalStepID))

	if err := o.store.FinishPipelineStep(ev.ApprovalStepID, models.StepStatusCompleted, nil); err != nil {
		log.Error("Failed to complete approval step", zap.Error(err))
	}

	pipeline, err := o.store.GetPipeline(ev.PipelineID)
	if err != nil {
		log.Error("Failed to load pipeline", zap.Error(err))
		return errors.Wrap(err, "Failed to load pipeline")
	}
	if pipeline == nil {
		// Anomalous but non-fatal: there is nothing to mark failed.
		log.Error("Pipeline not found, dropping approval event")
		return nil
	}

	claimed, err := o.store.BeginResumption(pipeline.ID)
	if err != nil {
		log.Error("Failed to claim pipeline for resumption", zap.Error(err))
		return errors.Wrap(err, "Failed to claim pipeline")
	}
	if !claimed {
		log.Warn("Pipeline is not active, skipping resumption", zap.String("status", pipeline.Status))
		return nil
	}

	continuation, ok := o.registry.Lookup(pipeline.Type, pipeline.Source)
	if !ok {
		log.Error("Unhandled pipeline type",
			lf.PipelineType(pipeline.Type),
			lf.PipelineSource(pipeline.Source),
			zap.Error(ErrUnhandledPipelineType),
		)
		if err := o.store.UpdatePipelineStatus(pipeline.ID, models.PipelineStatusActive); err != nil {
			log.Error("Failed to restore pipeline status", zap.Error(err))
		}
		return nil
	}

	if err := continuation.Resume(ctx, pipeline, ev); err != nil {
		log.Error("Pipeline continuation failed", zap.Error(err))
		if serr := o.store.UpdatePipelineStatus(pipeline.ID, models.PipelineStatusFailed); serr != nil {
			log.Error("Failed to mark pipeline failed", zap.Error(serr))
		}
		pipeline.Status = models.PipelineStatusFailed
		o.alerter.Finished(pipeline, err.Error())
		return err
	}

	pipeline.Status = models.PipelineStatusCompleted
	o.runNotificationStep(pipeline)

	if err := o.store.UpdatePipelineStatus(pipeline.ID, models.PipelineStatusCompleted); err != nil {
		log.Error("Failed to mark pipeline completed", zap.Error(err))
		return errors.Wrap(err, "Failed to mark pipeline completed")
	}
	log.Info("Pipeline completed")
	return nil
}

// runNotificationStep records the completion fan-out as its own step. The
// fan-out itself is best-effort, so this step only fails if the store does.
func (o *Orchestrator) runNotificationStep(pipeline *models.Pipeline) {
	log := o.logger.With(lf.PipelineID(pipeline.ID))

	now := time.Now()
	step := &models.PipelineStep{
		ID:          uuid.New().String(),
		PipelineID:  pipeline.ID,
		Name:        "Send notifications",
		Description: "Completion alerts sent to chat and the dashboard",
		Status:      models.StepStatusInProgress,
		StartedAt:   &now,
	}
	if err := o.store.CreatePipelineStep(step); err != nil {
		log.Error("Failed to create notification step", zap.Error(err))
		o.alerter.Finished(pipeline, "")
		return
	}

	o.alerter.Finished(pipeline, "")

	if err := o.store.FinishPipelineStep(step.ID, models.StepStatusCompleted, nil); err != nil {
		log.Error("Failed to complete notification step", zap.Error(err))
	}
}

// Reject handles the other half of the gate: the step is failed with the
// reviewer's reason and the pipeline is cancelled, not failed - nothing
// broke, a human said no.
func (o *Orchestrator) Reject(ctx context.Context, pipelineID, approvalStepID, reason string) error {
	log := o.logger.With(lf.PipelineID(pipelineID), lf.StepID(approvalStepID))

	metadata := models.Metadata{}
	if reason != "" {
		metadata["reason"] = reason
	}
	if err := o.store.FinishPipelineStep(approvalStepID, models.StepStatusFailed, metadata); err != nil {
		log.Error("Failed to fail approval step", zap.Error(err))
	}

	pipeline, err := o.store.GetPipeline(pipelineID)
	if err != nil {
		return errors.Wrap(err, "Failed to load pipeline")
	}
	if pipeline == nil {
		log.Error("Pipeline not found, dropping rejection")
		return nil
	}

	if err := o.store.UpdatePipelineStatus(pipelineID, models.PipelineStatusCancelled); err != nil {
		log.Error("Failed to cancel pipeline", zap.Error(err))
		return errors.Wrap(err, "Failed to cancel pipeline")
	}

	pipeline.Status = models.PipelineStatusCancelled
	o.alerter.Finished(pipeline, reason)
	log.Info("Pipeline cancelled after rejection")
	return nil
}

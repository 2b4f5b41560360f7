package orchestrator

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/redgrape/thegrid/api"
	"github.com/redgrape/thegrid/internal/changelog"
	lf "github.com/redgrape/thegrid/internal/logfield"
	"github.com/redgrape/thegrid/internal/models"
	"github.com/redgrape/thegrid/internal/storyblok"
)

// createStoryContinuation publishes a brand-new story as a draft.
type createStoryContinuation struct {
	o *Orchestrator
}

func (c createStoryContinuation) Resume(ctx context.Context, pipeline *models.Pipeline, ev api.ApprovalGrantedEvent) error {
	o := c.o

	step, err := o.startStep(pipeline, "Publish to CMS", "Create the approved story as a storyblok draft")
	if err != nil {
		return err
	}

	story, err := storyFromMetadata(pipeline.Metadata, "story")
	if err != nil {
		o.failStep(step.ID, err)
		return err
	}

	created, err := o.cms.CreateStory(ctx, story)
	if err != nil {
		o.failStep(step.ID, err)
		return errors.Wrap(err, "Failed to create story")
	}

	return o.store.FinishPipelineStep(step.ID, models.StepStatusCompleted, models.Metadata{
		"story_id": created.ID,
		"slug":     created.Slug,
	})
}

// updateStoryContinuation rewrites an existing story: editor lock is
// overridden, the result stays a draft.
type updateStoryContinuation struct {
	o *Orchestrator
}

func (c updateStoryContinuation) Resume(ctx context.Context, pipeline *models.Pipeline, ev api.ApprovalGrantedEvent) error {
	o := c.o

	step, err := o.startStep(pipeline, "Update CMS entry", "Apply the approved edits to the existing story")
	if err != nil {
		return err
	}

	story, err := storyFromMetadata(pipeline.Metadata, "edited")
	if err != nil {
		o.failStep(step.ID, err)
		return err
	}
	id, err := originalStoryID(pipeline.Metadata)
	if err != nil {
		o.failStep(step.ID, err)
		return err
	}

	updated, err := o.cms.UpdateStory(ctx, id, story, true, false)
	if err != nil {
		o.failStep(step.ID, err)
		return errors.Wrap(err, "Failed to update story")
	}

	return o.store.FinishPipelineStep(step.ID, models.StepStatusCompleted, models.Metadata{
		"story_id": updated.ID,
		"slug":     updated.Slug,
	})
}

type changelogContinuation struct {
	o *Orchestrator
}

func (c changelogContinuation) Resume(ctx context.Context, pipeline *models.Pipeline, ev api.ApprovalGrantedEvent) error {
	o := c.o

	step, err := o.startStep(pipeline, "Create changelog entry", "Persist the approved release summary")
	if err != nil {
		return err
	}

	var release api.ReleaseReadyEvent
	if err := pipeline.Metadata.Decode("release", &release); err != nil {
		o.failStep(step.ID, err)
		return err
	}

	entry, err := o.changes.CreateEntry(ctx, changelog.EntrySpec{
		RepoOwner: release.RepoOwner,
		RepoName:  release.RepoName,
		PRNumber:  release.PRNumber,
		Title:     release.Title,
		Summary:   changelog.CleanSummary(release.Summary),
		CreatedBy: release.CreatedBy,
	})
	if err != nil {
		o.failStep(step.ID, err)
		return errors.Wrap(err, "Failed to create changelog entry")
	}

	return o.store.FinishPipelineStep(step.ID, models.StepStatusCompleted, models.Metadata{
		"entry_id": entry.ID,
	})
}

func (o *Orchestrator) startStep(pipeline *models.Pipeline, name, description string) (*models.PipelineStep, error) {
	now := time.Now()
	step := &models.PipelineStep{
		ID:          uuid.New().String(),
		PipelineID:  pipeline.ID,
		Name:        name,
		Description: description,
		Status:      models.StepStatusInProgress,
		StartedAt:   &now,
	}
	if err := o.store.CreatePipelineStep(step); err != nil {
		return nil, errors.Wrapf(err, "Failed to create step %q", name)
	}
	return step, nil
}

func (o *Orchestrator) failStep(stepID string, cause error) {
	err := o.store.FinishPipelineStep(stepID, models.StepStatusFailed, models.Metadata{
		"error": cause.Error(),
	})
	if err != nil {
		o.logger.Error("Failed to mark step failed", zap.Error(err), lf.StepID(stepID))
	}
}

// storyFromMetadata rebuilds the candidate story from the metadata bag.
// Parse, don't assume: a bag that lost its payload across the async gap is
// an error, not a panic.
func storyFromMetadata(metadata models.Metadata, contentKey string) (*storyblok.Story, error) {
	var meta api.StoryMeta
	if err := metadata.Decode("meta", &meta); err != nil {
		return nil, err
	}

	content := map[string]interface{}{}
	if err := metadata.Decode(contentKey, &content); err != nil {
		return nil, err
	}

	slug, _ := metadata["slug"].(string)
	if slug == "" {
		slug = meta.Slug
	}
	return &storyblok.Story{
		Name:    meta.Name,
		Slug:    slug,
		Content: content,
	}, nil
}

// originalStoryID digs the CMS id out of the original document. Upstream is
// not consistent about the type: numbers and numeric strings both occur.
func originalStoryID(metadata models.Metadata) (int64, error) {
	original, ok := metadata["original"].(map[string]interface{})
	if !ok {
		return 0, errors.New("metadata has no original document")
	}
	switch id := original["id"].(type) {
	case string:
		parsed, err := strconv.ParseInt(id, 10, 64)
		if err != nil {
			return 0, errors.Wrapf(err, "original document id %q is not numeric", id)
		}
		return parsed, nil
	case float64:
		return int64(id), nil
	case int64:
		return id, nil
	case int:
		return int64(id), nil
	default:
		return 0, errors.Errorf("original document id has unsupported type %T", id)
	}
}

package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/redgrape/thegrid/api"
	"github.com/redgrape/thegrid/internal/changelog"
	"github.com/redgrape/thegrid/internal/diffview"
	"github.com/redgrape/thegrid/internal/events"
	lf "github.com/redgrape/thegrid/internal/logfield"
	"github.com/redgrape/thegrid/internal/models"
	"github.com/redgrape/thegrid/internal/policy"
	"github.com/redgrape/thegrid/internal/storyblok"
)

// Pipeline types select the continuation strategy on resumption.
const (
	TypeCMSPublication = "cms-publication"
	TypeChangelog      = "changelog"
)

// Store is the durable state the orchestrator runs on. Implemented by
// *database.DataBase.
type Store interface {
	InitiatePipeline(pipeline *models.Pipeline, steps []*models.PipelineStep, approval *models.Approval) error
	GetPipeline(id string) (*models.Pipeline, error)
	BeginResumption(id string) (bool, error)
	UpdatePipelineStatus(id string, status models.PipelineStatus) error
	CreatePipelineStep(step *models.PipelineStep) error
	FinishPipelineStep(id string, status models.StepStatus, metadata models.Metadata) error
}

// CMS is the write side of the storyblok collaborator.
type CMS interface {
	CreateStory(ctx context.Context, story *storyblok.Story) (*storyblok.Story, error)
	UpdateStory(ctx context.Context, id int64, story *storyblok.Story, forceUpdate, publish bool) (*storyblok.Story, error)
	Slugify(name string) string
}

type Changelog interface {
	CreateEntry(ctx context.Context, spec changelog.EntrySpec) (*models.ChangelogEntry, error)
}

// Alerter is the best-effort notification fan-out; implementations must
// never return an error into pipeline control flow.
type Alerter interface {
	AwaitingApproval(pipeline *models.Pipeline, approval *models.Approval)
	Finished(pipeline *models.Pipeline, detail string)
	InitiationFailed(source string, err error)
}

type Orchestrator struct {
	bus      *events.Bus
	store    Store
	cms      CMS
	changes  Changelog
	alerter  Alerter
	policy   *policy.Policy
	registry *Registry
	logger   *zap.Logger
}

func NewOrchestrator(
	bus *events.Bus,
	store Store,
	cms CMS,
	changes Changelog,
	alerter Alerter,
	approvalPolicy *policy.Policy,
	logger *zap.Logger,
) *Orchestrator {
	o := &Orchestrator{
		bus:      bus,
		store:    store,
		cms:      cms,
		changes:  changes,
		alerter:  alerter,
		policy:   approvalPolicy,
		registry: NewRegistry(),
		logger:   logger.Named("orchestrator"),
	}
	o.registry.Register(TypeCMSPublication, events.SourceFigma, createStoryContinuation{o})
	o.registry.Register(TypeCMSPublication, events.SourceEditor, updateStoryContinuation{o})
	o.registry.Register(TypeChangelog, events.SourceRelease, changelogContinuation{o})
	return o
}

// Bind subscribes the orchestrator to its upstream topics. Resumption runs
// under ctx, the process lifetime, never under the emitter's context: once
// an approval is consumed the pipeline must finish even if the approving
// client has already disconnected.
func (o *Orchestrator) Bind(ctx context.Context) {
	o.bus.Subscribe(events.ReadyTopic(events.SourceFigma), o.handleFigmaReady)
	o.bus.Subscribe(events.CompletedTopic(events.SourceEditor), o.handleEditorCompleted)
	o.bus.Subscribe(events.ReadyTopic(events.SourceRelease), o.handleReleaseReady)
	o.bus.Subscribe(events.TopicApprovalGranted, func(_ context.Context, payload interface{}) error {
		return o.handleApprovalGranted(ctx, payload)
	})
}

func (o *Orchestrator) handleFigmaReady(ctx context.Context, payload interface{}) error {
	ev, ok := payload.(api.FigmaReadyEvent)
	if !ok {
		return errors.Errorf("unexpected payload %T for %s", payload, events.ReadyTopic(events.SourceFigma))
	}
	_, _, err := o.InitiateFigmaPipeline(ctx, ev)
	return err
}

func (o *Orchestrator) handleEditorCompleted(ctx context.Context, payload interface{}) error {
	ev, ok := payload.(api.EditorCompletedEvent)
	if !ok {
		return errors.Errorf("unexpected payload %T for %s", payload, events.CompletedTopic(events.SourceEditor))
	}
	_, _, err := o.InitiateEditorPipeline(ctx, ev)
	return err
}

func (o *Orchestrator) handleReleaseReady(ctx context.Context, payload interface{}) error {
	ev, ok := payload.(api.ReleaseReadyEvent)
	if !ok {
		return errors.Errorf("unexpected payload %T for %s", payload, events.ReadyTopic(events.SourceRelease))
	}
	_, _, err := o.InitiateReleasePipeline(ctx, ev)
	return err
}

// InitiateFigmaPipeline parks a freshly transformed design behind an
// approval gate. The metadata bag carries everything resumption will need;
// the process may restart in between.
func (o *Orchestrator) InitiateFigmaPipeline(ctx context.Context, ev api.FigmaReadyEvent) (*models.Pipeline, *models.Approval, error) {
	slug := ev.Meta.Slug
	if slug == "" {
		slug = o.cms.Slugify(ev.Meta.Name)
	}

	return o.initiate(initiation{
		source:      events.SourceFigma,
		typ:         TypeCMSPublication,
		name:        ev.Meta.Name,
		description: fmt.Sprintf("Publish %q (%d components) to storyblok", ev.Meta.Name, ev.Meta.ComponentCount),
		metadata: models.Metadata{
			"story":  ev.Story,
			"design": ev.Design,
			"meta":   ev.Meta,
			"slug":   slug,
		},
		workStep: workStep{
			name:        "Transform design",
			description: "Figma design transformed into a storyblok document",
			metadata:    models.Metadata{"component_count": ev.Meta.ComponentCount},
		},
	})
}

// InitiateEditorPipeline handles the synchronous editor flow: the created
// approval is returned to the caller as well as announced on the bus.
func (o *Orchestrator) InitiateEditorPipeline(ctx context.Context, ev api.EditorCompletedEvent) (*models.Pipeline, *models.Approval, error) {
	diff := diffview.Generate(ev.Original, ev.Edited)

	return o.initiate(initiation{
		source:      events.SourceEditor,
		typ:         TypeCMSPublication,
		name:        ev.Meta.Name,
		description: fmt.Sprintf("Update %q in storyblok (%s)", ev.Meta.Name, diff.Summarize()),
		metadata: models.Metadata{
			"original":     ev.Original,
			"edited":       ev.Edited,
			"meta":         ev.Meta,
			"diff":         diff,
			"diff_summary": diff.Summarize(),
		},
		workStep: workStep{
			name:        "Apply edits",
			description: "Agent edits applied to the document",
			metadata:    models.Metadata{"diff_summary": diff.Summarize()},
		},
	})
}

func (o *Orchestrator) InitiateReleasePipeline(ctx context.Context, ev api.ReleaseReadyEvent) (*models.Pipeline, *models.Approval, error) {
	name := fmt.Sprintf("%s/%s#%d", ev.RepoOwner, ev.RepoName, ev.PRNumber)

	return o.initiate(initiation{
		source:      events.SourceRelease,
		typ:         TypeChangelog,
		name:        name,
		description: "Publish a changelog entry for " + name,
		metadata: models.Metadata{
			"release": ev,
		},
		workStep: workStep{
			name:        "Collect release notes",
			description: "Release summary prepared from the merged PR",
		},
	})
}

type workStep struct {
	name        string
	description string
	metadata    models.Metadata
}

type initiation struct {
	source      string
	typ         string
	name        string
	description string
	metadata    models.Metadata
	workStep    workStep
}

// initiate is Phase A: pipeline, the already-done work step, the approval
// step and its gate, created in one transaction, then best-effort alerts.
func (o *Orchestrator) initiate(spec initiation) (*models.Pipeline, *models.Approval, error) {
	log := o.logger.With(lf.PipelineSource(spec.source), lf.PipelineType(spec.typ))

	now := time.Now()
	pipeline := &models.Pipeline{
		ID:          uuid.New().String(),
		Name:        spec.name,
		Description: spec.description,
		Source:      spec.source,
		Type:        spec.typ,
		Status:      models.PipelineStatusActive,
		Metadata:    spec.metadata,
	}

	// The transformation already happened upstream; its step is recorded
	// as completed for the audit trail.
	transformStep := &models.PipelineStep{
		ID:          uuid.New().String(),
		PipelineID:  pipeline.ID,
		Name:        spec.workStep.name,
		Description: spec.workStep.description,
		Status:      models.StepStatusCompleted,
		StartedAt:   &now,
		CompletedAt: &now,
		Duration:    models.HumanStepDuration(&now, &now),
		Metadata:    spec.workStep.metadata,
	}

	approvalStep := &models.PipelineStep{
		ID:          uuid.New().String(),
		PipelineID:  pipeline.ID,
		Name:        "Await approval",
		Description: "A human decision is required before the pipeline may continue",
		Status:      models.StepStatusWaitingApproval,
		StartedAt:   &now,
	}

	approval := &models.Approval{
		ID:             uuid.New().String(),
		PipelineStepID: approvalStep.ID,
		ApprovalType:   spec.source,
		Risk:           o.policy.RiskFor(spec.source),
		Status:         models.ApprovalStatusPending,
		Origin:         o.policy.OriginFor(spec.source),
	}

	err := o.store.InitiatePipeline(pipeline, []*models.PipelineStep{transformStep, approvalStep}, approval)
	if err != nil {
		log.Error("Failed to initiate pipeline", zap.Error(err))
		o.alerter.InitiationFailed(spec.source, err)
		return nil, nil, errors.Wrap(err, "Failed to initiate pipeline")
	}

	log.Info("Pipeline parked for approval",
		lf.PipelineID(pipeline.ID),
		lf.ApprovalID(approval.ID),
		zap.String("risk", approval.Risk),
	)
	o.alerter.AwaitingApproval(pipeline, approval)
	return pipeline, approval, nil
}

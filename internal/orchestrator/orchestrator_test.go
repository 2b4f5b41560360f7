package orchestrator

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/redgrape/thegrid/api"
	"github.com/redgrape/thegrid/internal/changelog"
	"github.com/redgrape/thegrid/internal/events"
	"github.com/redgrape/thegrid/internal/models"
	"github.com/redgrape/thegrid/internal/policy"
	"github.com/redgrape/thegrid/internal/storyblok"
)

type fakeStore struct {
	mu          sync.Mutex
	pipelines   map[string]*models.Pipeline
	steps       map[string]*models.PipelineStep
	approvals   map[string]*models.Approval
	initiateErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		pipelines: make(map[string]*models.Pipeline),
		steps:     make(map[string]*models.PipelineStep),
		approvals: make(map[string]*models.Approval),
	}
}

func (s *fakeStore) InitiatePipeline(pipeline *models.Pipeline, steps []*models.PipelineStep, approval *models.Approval) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.initiateErr != nil {
		return s.initiateErr
	}
	s.pipelines[pipeline.ID] = pipeline
	for _, step := range steps {
		s.steps[step.ID] = step
	}
	if approval != nil {
		s.approvals[approval.ID] = approval
	}
	return nil
}

func (s *fakeStore) GetPipeline(id string) (*models.Pipeline, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pipeline, ok := s.pipelines[id]
	if !ok {
		return nil, nil
	}
	copied := *pipeline
	return &copied, nil
}

func (s *fakeStore) BeginResumption(id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pipeline, ok := s.pipelines[id]
	if !ok || pipeline.Status != models.PipelineStatusActive {
		return false, nil
	}
	pipeline.Status = models.PipelineStatusResuming
	return true, nil
}

func (s *fakeStore) UpdatePipelineStatus(id string, status models.PipelineStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	pipeline, ok := s.pipelines[id]
	if !ok || models.IsTerminalPipelineStatus(pipeline.Status) {
		return errors.Errorf("pipeline %s is unknown or already terminal", id)
	}
	pipeline.Status = status
	return nil
}

func (s *fakeStore) CreatePipelineStep(step *models.PipelineStep) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.steps[step.ID] = step
	return nil
}

func (s *fakeStore) FinishPipelineStep(id string, status models.StepStatus, metadata models.Metadata) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	step, ok := s.steps[id]
	if !ok {
		return errors.Errorf("unknown pipeline step %s", id)
	}
	now := time.Now()
	step.Status = status
	if step.StartedAt == nil {
		step.StartedAt = &now
	}
	step.CompletedAt = &now
	step.Duration = models.HumanStepDuration(step.StartedAt, &now)
	if metadata != nil {
		step.Metadata = metadata
	}
	return nil
}

func (s *fakeStore) singlePipeline(t *testing.T) *models.Pipeline {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.pipelines) != 1 {
		t.Fatalf("expected exactly one pipeline, got %d", len(s.pipelines))
	}
	for _, pipeline := range s.pipelines {
		return pipeline
	}
	return nil
}

func (s *fakeStore) stepNamed(t *testing.T, name string) *models.PipelineStep {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, step := range s.steps {
		if step.Name == name {
			return step
		}
	}
	t.Fatalf("no step named %q", name)
	return nil
}

func (s *fakeStore) singleApproval(t *testing.T) *models.Approval {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.approvals) != 1 {
		t.Fatalf("expected exactly one approval, got %d", len(s.approvals))
	}
	for _, approval := range s.approvals {
		return approval
	}
	return nil
}

type updateCall struct {
	id          int64
	story       *storyblok.Story
	forceUpdate bool
	publish     bool
}

type fakeCMS struct {
	mu        sync.Mutex
	creates   []*storyblok.Story
	updates   []updateCall
	createErr error
	updateErr error
}

func (c *fakeCMS) CreateStory(ctx context.Context, story *storyblok.Story) (*storyblok.Story, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.createErr != nil {
		return nil, c.createErr
	}
	c.creates = append(c.creates, story)
	created := *story
	created.ID = 101
	return &created, nil
}

func (c *fakeCMS) UpdateStory(ctx context.Context, id int64, story *storyblok.Story, forceUpdate, publish bool) (*storyblok.Story, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.updateErr != nil {
		return nil, c.updateErr
	}
	c.updates = append(c.updates, updateCall{id, story, forceUpdate, publish})
	updated := *story
	updated.ID = id
	return &updated, nil
}

func (c *fakeCMS) Slugify(name string) string {
	return strings.ReplaceAll(strings.ToLower(name), " ", "-")
}

func (c *fakeCMS) callCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.creates) + len(c.updates)
}

type fakeChangelog struct {
	mu      sync.Mutex
	entries []changelog.EntrySpec
	err     error
}

func (f *fakeChangelog) CreateEntry(ctx context.Context, spec changelog.EntrySpec) (*models.ChangelogEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.entries = append(f.entries, spec)
	return &models.ChangelogEntry{
		ID:        "entry-1",
		RepoOwner: spec.RepoOwner,
		RepoName:  spec.RepoName,
		PRNumber:  spec.PRNumber,
		Title:     spec.Title,
		Summary:   spec.Summary,
	}, nil
}

type fakeAlerter struct {
	mu          sync.Mutex
	awaiting    int
	finished    []models.PipelineStatus
	initiations int
}

func (a *fakeAlerter) AwaitingApproval(pipeline *models.Pipeline, approval *models.Approval) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.awaiting++
}

func (a *fakeAlerter) Finished(pipeline *models.Pipeline, detail string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.finished = append(a.finished, pipeline.Status)
}

func (a *fakeAlerter) InitiationFailed(source string, err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.initiations++
}

type testEnv struct {
	bus     *events.Bus
	store   *fakeStore
	cms     *fakeCMS
	changes *fakeChangelog
	alerter *fakeAlerter
	o       *Orchestrator
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	approvalPolicy, err := policy.Load("")
	if err != nil {
		t.Fatal("Failed to load empty policy:", err)
	}

	env := &testEnv{
		bus:     events.NewBus(zap.NewNop()),
		store:   newFakeStore(),
		cms:     &fakeCMS{},
		changes: &fakeChangelog{},
		alerter: &fakeAlerter{},
	}
	env.o = NewOrchestrator(env.bus, env.store, env.cms, env.changes, env.alerter, approvalPolicy, zap.NewNop())
	env.o.Bind(context.Background())
	return env
}

func (env *testEnv) grant(t *testing.T) {
	t.Helper()
	pipeline := env.store.singlePipeline(t)
	approvalStep := env.store.stepNamed(t, "Await approval")
	env.bus.Emit(context.Background(), events.TopicApprovalGranted, api.ApprovalGrantedEvent{
		PipelineID:     pipeline.ID,
		ApprovalStepID: approvalStep.ID,
	})
}

func TestFigmaHappyPath(t *testing.T) {
	env := newTestEnv(t)

	env.bus.Emit(context.Background(), events.ReadyTopic(events.SourceFigma), api.FigmaReadyEvent{
		Story: map[string]interface{}{"component": "page", "body": []interface{}{}},
		Meta:  api.StoryMeta{Name: "Landing Page", ComponentCount: 5},
	})

	pipeline := env.store.singlePipeline(t)
	if pipeline.Type != TypeCMSPublication || pipeline.Source != events.SourceFigma {
		t.Fatalf("unexpected pipeline tags %s/%s", pipeline.Type, pipeline.Source)
	}
	if pipeline.Status != models.PipelineStatusActive {
		t.Fatalf("unexpected pipeline status %s", pipeline.Status)
	}
	if env.store.stepNamed(t, "Transform design").Status != models.StepStatusCompleted {
		t.Fatal("transform step should be completed at initiation")
	}
	if env.store.stepNamed(t, "Await approval").Status != models.StepStatusWaitingApproval {
		t.Fatal("approval step should be waiting")
	}
	approval := env.store.singleApproval(t)
	if approval.Status != models.ApprovalStatusPending || approval.Risk != models.RiskMedium {
		t.Fatalf("unexpected approval %s/%s", approval.Status, approval.Risk)
	}
	if env.alerter.awaiting != 1 {
		t.Fatalf("expected 1 awaiting-approval alert, got %d", env.alerter.awaiting)
	}

	env.grant(t)

	if len(env.cms.creates) != 1 {
		t.Fatalf("expected 1 story creation, got %d", len(env.cms.creates))
	}
	if env.cms.creates[0].Name != "Landing Page" {
		t.Fatalf("unexpected story name %q", env.cms.creates[0].Name)
	}
	if env.cms.creates[0].Slug != "landing-page" {
		t.Fatalf("unexpected slug %q", env.cms.creates[0].Slug)
	}
	if pipeline.Status != models.PipelineStatusCompleted {
		t.Fatalf("pipeline should be completed, got %s", pipeline.Status)
	}
	if env.store.stepNamed(t, "Publish to CMS").Status != models.StepStatusCompleted {
		t.Fatal("publish step should be completed")
	}
	if env.store.stepNamed(t, "Send notifications").Status != models.StepStatusCompleted {
		t.Fatal("notification step should be completed")
	}
}

func TestEditorUpdateFlow(t *testing.T) {
	env := newTestEnv(t)

	env.bus.Emit(context.Background(), events.CompletedTopic(events.SourceEditor), api.EditorCompletedEvent{
		Original: map[string]interface{}{"id": "42", "title": "Old"},
		Edited:   map[string]interface{}{"id": "42", "title": "New"},
		Meta:     api.StoryMeta{Name: "Landing Page", Slug: "landing-page"},
	})

	pipeline := env.store.singlePipeline(t)
	if _, ok := pipeline.Metadata["diff"]; !ok {
		t.Fatal("editor pipeline should carry a diff in metadata")
	}

	env.grant(t)

	if len(env.cms.updates) != 1 {
		t.Fatalf("expected 1 story update, got %d", len(env.cms.updates))
	}
	update := env.cms.updates[0]
	if update.id != 42 {
		t.Fatalf("unexpected story id %d", update.id)
	}
	if !update.forceUpdate {
		t.Fatal("update must override the editor lock")
	}
	if update.publish {
		t.Fatal("update must stay a draft")
	}
	if update.story.Content["title"] != "New" {
		t.Fatalf("unexpected content %v", update.story.Content)
	}
	if pipeline.Status != models.PipelineStatusCompleted {
		t.Fatalf("pipeline should be completed, got %s", pipeline.Status)
	}
}

func TestReleaseChangelogCleansSummary(t *testing.T) {
	env := newTestEnv(t)

	env.bus.Emit(context.Background(), events.ReadyTopic(events.SourceRelease), api.ReleaseReadyEvent{
		RepoOwner: "redgrape",
		RepoName:  "thegrid",
		PRNumber:  7,
		Title:     "v1.4.0",
		Summary:   "\"Fixed bug\\nAdded feature\"",
	})
	env.grant(t)

	if len(env.changes.entries) != 1 {
		t.Fatalf("expected 1 changelog entry, got %d", len(env.changes.entries))
	}
	entry := env.changes.entries[0]
	if entry.Summary != "Fixed bug\nAdded feature" {
		t.Fatalf("summary was not cleaned: %q", entry.Summary)
	}
	if entry.RepoOwner != "redgrape" || entry.PRNumber != 7 {
		t.Fatalf("unexpected entry %+v", entry)
	}
	if env.store.singlePipeline(t).Status != models.PipelineStatusCompleted {
		t.Fatal("pipeline should be completed")
	}
}

func TestContinuationFailureMarksPipelineFailed(t *testing.T) {
	env := newTestEnv(t)
	env.cms.createErr = errors.New("storyblok is down")

	env.bus.Emit(context.Background(), events.ReadyTopic(events.SourceFigma), api.FigmaReadyEvent{
		Story: map[string]interface{}{"component": "page"},
		Meta:  api.StoryMeta{Name: "Landing Page"},
	})
	env.grant(t)

	pipeline := env.store.singlePipeline(t)
	if pipeline.Status != models.PipelineStatusFailed {
		t.Fatalf("pipeline should be failed, got %s", pipeline.Status)
	}
	step := env.store.stepNamed(t, "Publish to CMS")
	if step.Status != models.StepStatusFailed {
		t.Fatalf("publish step should be failed, got %s", step.Status)
	}
	if step.Metadata["error"] != "storyblok is down" {
		t.Fatalf("error detail missing from step metadata: %v", step.Metadata)
	}
	if len(env.alerter.finished) != 1 || env.alerter.finished[0] != models.PipelineStatusFailed {
		t.Fatalf("expected one failure alert, got %v", env.alerter.finished)
	}
}

func TestUnknownPipelineIsDropped(t *testing.T) {
	env := newTestEnv(t)

	// Must not panic and must not touch any collaborator.
	env.bus.Emit(context.Background(), events.TopicApprovalGranted, api.ApprovalGrantedEvent{
		PipelineID:     "no-such-pipeline",
		ApprovalStepID: "no-such-step",
	})

	if env.cms.callCount() != 0 {
		t.Fatal("no CMS calls expected")
	}
	if len(env.store.pipelines) != 0 {
		t.Fatal("no pipeline mutations expected")
	}
}

func TestUnhandledTypeLeavesPipelineResumable(t *testing.T) {
	env := newTestEnv(t)

	pipeline := &models.Pipeline{
		ID:     uuid.New().String(),
		Name:   "mystery",
		Type:   "unsupported",
		Source: "somewhere",
		Status: models.PipelineStatusActive,
	}
	step := &models.PipelineStep{
		ID:         uuid.New().String(),
		PipelineID: pipeline.ID,
		Name:       "Await approval",
		Status:     models.StepStatusWaitingApproval,
	}
	env.store.pipelines[pipeline.ID] = pipeline
	env.store.steps[step.ID] = step

	env.bus.Emit(context.Background(), events.TopicApprovalGranted, api.ApprovalGrantedEvent{
		PipelineID:     pipeline.ID,
		ApprovalStepID: step.ID,
	})

	if env.cms.callCount() != 0 || len(env.changes.entries) != 0 {
		t.Fatal("no collaborator calls expected")
	}
	if pipeline.Status != models.PipelineStatusActive {
		t.Fatalf("pipeline should stay active, got %s", pipeline.Status)
	}
}

func TestDuplicateResumptionRunsOnce(t *testing.T) {
	env := newTestEnv(t)

	env.bus.Emit(context.Background(), events.ReadyTopic(events.SourceFigma), api.FigmaReadyEvent{
		Story: map[string]interface{}{"component": "page"},
		Meta:  api.StoryMeta{Name: "Landing Page"},
	})
	pipeline := env.store.singlePipeline(t)
	approvalStep := env.store.stepNamed(t, "Await approval")
	ev := api.ApprovalGrantedEvent{
		PipelineID:     pipeline.ID,
		ApprovalStepID: approvalStep.ID,
	}

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			env.bus.Emit(context.Background(), events.TopicApprovalGranted, ev)
		}()
	}
	wg.Wait()

	if len(env.cms.creates) != 1 {
		t.Fatalf("expected exactly one CMS write, got %d", len(env.cms.creates))
	}
	if pipeline.Status != models.PipelineStatusCompleted {
		t.Fatalf("pipeline should be completed, got %s", pipeline.Status)
	}
}

func TestResumptionSurvivesCallerDisconnect(t *testing.T) {
	env := newTestEnv(t)

	env.bus.Emit(context.Background(), events.ReadyTopic(events.SourceFigma), api.FigmaReadyEvent{
		Story: map[string]interface{}{"component": "page"},
		Meta:  api.StoryMeta{Name: "Landing Page"},
	})
	pipeline := env.store.singlePipeline(t)
	approvalStep := env.store.stepNamed(t, "Await approval")

	// The approving client hangs up before the CMS write happens. The
	// approval is already consumed at this point, so the pipeline must
	// finish anyway.
	cancelled, cancel := context.WithCancel(context.Background())
	cancel()
	env.bus.Emit(cancelled, events.TopicApprovalGranted, api.ApprovalGrantedEvent{
		PipelineID:     pipeline.ID,
		ApprovalStepID: approvalStep.ID,
	})

	if len(env.cms.creates) != 1 {
		t.Fatalf("expected 1 CMS write, got %d", len(env.cms.creates))
	}
	if pipeline.Status != models.PipelineStatusCompleted {
		t.Fatalf("pipeline should be completed, got %s", pipeline.Status)
	}
}

func TestRejectCancelsPipeline(t *testing.T) {
	env := newTestEnv(t)

	env.bus.Emit(context.Background(), events.ReadyTopic(events.SourceFigma), api.FigmaReadyEvent{
		Story: map[string]interface{}{"component": "page"},
		Meta:  api.StoryMeta{Name: "Landing Page"},
	})
	pipeline := env.store.singlePipeline(t)
	approvalStep := env.store.stepNamed(t, "Await approval")

	err := env.o.Reject(context.Background(), pipeline.ID, approvalStep.ID, "wrong colors")
	if err != nil {
		t.Fatal("Reject failed:", err)
	}

	if pipeline.Status != models.PipelineStatusCancelled {
		t.Fatalf("pipeline should be cancelled, got %s", pipeline.Status)
	}
	if approvalStep.Status != models.StepStatusFailed {
		t.Fatalf("approval step should be failed, got %s", approvalStep.Status)
	}
	if approvalStep.Metadata["reason"] != "wrong colors" {
		t.Fatalf("rejection reason missing: %v", approvalStep.Metadata)
	}
	if env.cms.callCount() != 0 {
		t.Fatal("no CMS calls expected after rejection")
	}
}

func TestInitiationFailureAlerts(t *testing.T) {
	env := newTestEnv(t)
	env.store.initiateErr = errors.New("database is gone")

	_, _, err := env.o.InitiateFigmaPipeline(context.Background(), api.FigmaReadyEvent{
		Story: map[string]interface{}{"component": "page"},
		Meta:  api.StoryMeta{Name: "Landing Page"},
	})
	if err == nil {
		t.Fatal("expected initiation to fail")
	}
	if env.alerter.initiations != 1 {
		t.Fatalf("expected 1 initiation-failure alert, got %d", env.alerter.initiations)
	}
	if env.alerter.awaiting != 0 {
		t.Fatal("no awaiting-approval alert expected")
	}
}

func TestStepCompletionTimestamps(t *testing.T) {
	env := newTestEnv(t)

	env.bus.Emit(context.Background(), events.ReadyTopic(events.SourceFigma), api.FigmaReadyEvent{
		Story: map[string]interface{}{"component": "page"},
		Meta:  api.StoryMeta{Name: "Landing Page"},
	})
	env.grant(t)

	env.store.mu.Lock()
	defer env.store.mu.Unlock()
	for _, step := range env.store.steps {
		terminal := models.IsTerminalStepStatus(step.Status)
		if terminal && step.CompletedAt == nil {
			t.Fatalf("terminal step %q has no completion timestamp", step.Name)
		}
		if !terminal && step.CompletedAt != nil {
			t.Fatalf("non-terminal step %q has a completion timestamp", step.Name)
		}
	}
}

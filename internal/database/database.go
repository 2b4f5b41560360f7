package database

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgconn"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"moul.io/zapgorm2"

	"github.com/redgrape/thegrid/internal/models"
)

type DataBase struct {
	*gorm.DB
}

type DuplicateKey struct {
	nested error
}

func (e *DuplicateKey) Error() string {
	return e.nested.Error()
}

func (e *DuplicateKey) Unwrap() error {
	return e.nested
}

func IsDuplicateKey(err error) bool {
	duplicateKey := &DuplicateKey{}
	return errors.As(err, &duplicateKey)
}

// https://github.com/go-gorm/gorm/issues/4037
func isUniqueViolation(err error) bool {
	perr, ok := err.(*pgconn.PgError)
	if ok {
		return perr.Code == "23505"
	}
	return false
}

func OpenDataBase(logger *zap.Logger, dsn string) (*DataBase, error) {
	zapLogger := zapgorm2.New(logger.Named("gorm"))
	zapLogger.SetAsDefault()
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: zapLogger,
	})
	if err != nil {
		return nil, err
	}

	err = db.AutoMigrate(
		&models.Pipeline{},
		&models.PipelineStep{},
		&models.Approval{},
		&models.ChangelogEntry{},
		&models.Notification{},
	)
	if err != nil {
		return nil, err
	}

	return &DataBase{db}, nil
}

func MakeDSN(host string, port uint16, user, pass, name string) string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s", host, port, user, pass, name)
}

// InitiatePipeline creates the pipeline together with its initial steps and
// the approval gate in a single transaction, so a failed insert leaves no
// partial pipeline behind.
func (db *DataBase) InitiatePipeline(pipeline *models.Pipeline, steps []*models.PipelineStep, approval *models.Approval) error {
	fillPipelineIDs(pipeline, steps, approval)
	return db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(pipeline).Error; err != nil {
			return wrapUnique(err)
		}
		for _, step := range steps {
			if err := tx.Create(step).Error; err != nil {
				return wrapUnique(err)
			}
		}
		if approval != nil {
			if err := tx.Create(approval).Error; err != nil {
				return wrapUnique(err)
			}
		}
		return nil
	})
}

func fillPipelineIDs(pipeline *models.Pipeline, steps []*models.PipelineStep, approval *models.Approval) {
	if pipeline.ID == "" {
		pipeline.ID = uuid.New().String()
	}
	for _, step := range steps {
		if step.ID == "" {
			step.ID = uuid.New().String()
		}
		step.PipelineID = pipeline.ID
	}
	if approval != nil {
		if approval.ID == "" {
			approval.ID = uuid.New().String()
		}
	}
}

func wrapUnique(err error) error {
	if isUniqueViolation(err) {
		return &DuplicateKey{err}
	}
	return err
}

func (db *DataBase) CreatePipeline(pipeline *models.Pipeline) error {
	if pipeline.ID == "" {
		pipeline.ID = uuid.New().String()
	}
	return wrapUnique(db.Create(pipeline).Error)
}

// GetPipeline returns (nil, nil) for an unknown id; callers must check.
func (db *DataBase) GetPipeline(id string) (*models.Pipeline, error) {
	var pipeline models.Pipeline
	err := db.First(&pipeline, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &pipeline, nil
}

func (db *DataBase) ListPipelines() (pipelines []models.Pipeline, err error) {
	pipelines = make([]models.Pipeline, 0)
	err = db.Order("created_at DESC").Find(&pipelines).Error
	if err != nil {
		pipelines = nil
	}
	return
}

func (db *DataBase) ListSourcePipelines(source string) (pipelines []models.Pipeline, err error) {
	pipelines = make([]models.Pipeline, 0)
	err = db.Order("created_at DESC").Find(&pipelines, "source = ?", source).Error
	if err != nil {
		pipelines = nil
	}
	return
}

// UpdatePipelineStatus refuses to move a pipeline out of a terminal status.
func (db *DataBase) UpdatePipelineStatus(id string, status models.PipelineStatus) error {
	res := db.Model(&models.Pipeline{}).
		Where("id = ? AND status NOT IN ?", id, models.TerminalPipelineStatuses).
		Update("status", status)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected < 1 {
		return fmt.Errorf("pipeline %s is unknown or already terminal", id)
	}
	return nil
}

// BeginResumption claims the pipeline for resumption with a compare-and-swap
// from active to resuming. A duplicate approval.granted delivery loses the
// swap and must not resume again.
func (db *DataBase) BeginResumption(id string) (bool, error) {
	res := db.Model(&models.Pipeline{}).
		Where("id = ? AND status = ?", id, models.PipelineStatusActive).
		Update("status", models.PipelineStatusResuming)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (db *DataBase) CreatePipelineStep(step *models.PipelineStep) error {
	if step.ID == "" {
		step.ID = uuid.New().String()
	}
	return wrapUnique(db.Create(step).Error)
}

func (db *DataBase) GetPipelineStep(id string) (*models.PipelineStep, error) {
	var step models.PipelineStep
	err := db.First(&step, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &step, nil
}

func (db *DataBase) ListPipelineSteps(pipelineID string) (steps []models.PipelineStep, err error) {
	steps = make([]models.PipelineStep, 0)
	err = db.Order("created_at").Find(&steps, "pipeline_id = ?", pipelineID).Error
	if err != nil {
		steps = nil
	}
	return
}

func (db *DataBase) UpdatePipelineStep(id string, patch map[string]interface{}) error {
	res := db.Model(&models.PipelineStep{}).Where("id = ?", id).Updates(patch)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected < 1 {
		return fmt.Errorf("unknown pipeline step %s", id)
	}
	return nil
}

// FinishPipelineStep moves the step into a terminal status, which is the only
// place completed_at is ever set.
func (db *DataBase) FinishPipelineStep(id string, status models.StepStatus, metadata models.Metadata) error {
	if !models.IsTerminalStepStatus(status) {
		return fmt.Errorf("status %s is not terminal", status)
	}
	step, err := db.GetPipelineStep(id)
	if err != nil {
		return err
	}
	if step == nil {
		return fmt.Errorf("unknown pipeline step %s", id)
	}

	now := time.Now()
	started := step.StartedAt
	if started == nil {
		started = &now
	}
	patch := map[string]interface{}{
		"status":       status,
		"started_at":   started,
		"completed_at": &now,
		"duration":     models.HumanStepDuration(started, &now),
	}
	if metadata != nil {
		patch["metadata"] = metadata
	}
	return db.UpdatePipelineStep(id, patch)
}

// CreateApproval enforces at most one pending approval per step.
func (db *DataBase) CreateApproval(approval *models.Approval) error {
	if approval.ID == "" {
		approval.ID = uuid.New().String()
	}
	return db.Transaction(func(tx *gorm.DB) error {
		var pending int64
		err := tx.Model(&models.Approval{}).
			Where("pipeline_step_id = ? AND status = ?", approval.PipelineStepID, models.ApprovalStatusPending).
			Count(&pending).Error
		if err != nil {
			return err
		}
		if pending > 0 {
			return fmt.Errorf("step %s already has a pending approval", approval.PipelineStepID)
		}
		return wrapUnique(tx.Create(approval).Error)
	})
}

func (db *DataBase) GetApproval(id string) (*models.Approval, error) {
	var approval models.Approval
	err := db.First(&approval, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &approval, nil
}

func (db *DataBase) ListPendingApprovals() (approvals []models.Approval, err error) {
	approvals = make([]models.Approval, 0)
	err = db.Order("created_at").Find(&approvals, "status = ?", models.ApprovalStatusPending).Error
	if err != nil {
		approvals = nil
	}
	return
}

// ResolveApproval flips a pending approval exactly once; a resolved approval
// is immutable.
func (db *DataBase) ResolveApproval(id string, status models.ApprovalStatus, reason string) (*models.Approval, error) {
	now := time.Now()
	patch := map[string]interface{}{"status": status}
	switch status {
	case models.ApprovalStatusApproved:
		patch["approved_at"] = &now
	case models.ApprovalStatusRejected:
		patch["rejected_at"] = &now
		if reason != "" {
			patch["reason"] = &reason
		}
	default:
		return nil, fmt.Errorf("status %s does not resolve an approval", status)
	}

	res := db.Model(&models.Approval{}).
		Where("id = ? AND status = ?", id, models.ApprovalStatusPending).
		Updates(patch)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected < 1 {
		return nil, fmt.Errorf("approval %s is unknown or already resolved", id)
	}
	return db.GetApproval(id)
}

func (db *DataBase) CreateNotification(userID, typ, message string) error {
	return db.Create(&models.Notification{
		UserID:    userID,
		Type:      typ,
		Message:   message,
		CreatedAt: time.Now(),
	}).Error
}

func (db *DataBase) ListUserNotifications(userID string) (notifications []models.Notification, err error) {
	notifications = make([]models.Notification, 0)
	err = db.Order("created_at DESC").Find(&notifications, "user_id = ?", userID).Error
	if err != nil {
		notifications = nil
	}
	return
}

// AddChangelogEntry upserts by (owner, repo, pr) so re-running a release
// pipeline rewrites the entry instead of duplicating it.
func (db *DataBase) AddChangelogEntry(entry *models.ChangelogEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	return db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "repo_owner"}, {Name: "repo_name"}, {Name: "pr_number"}},
		DoUpdates: clause.AssignmentColumns([]string{"title", "summary", "created_by"}),
	}).Create(entry).Error
}

func (db *DataBase) ListChangelogEntries() (entries []models.ChangelogEntry, err error) {
	entries = make([]models.ChangelogEntry, 0)
	err = db.Order("created_at DESC").Find(&entries).Error
	if err != nil {
		entries = nil
	}
	return
}

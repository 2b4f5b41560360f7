package changelog

import (
	"context"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/redgrape/thegrid/internal/database"
	"github.com/redgrape/thegrid/internal/gitlab"
	"github.com/redgrape/thegrid/internal/models"
)

type EntrySpec struct {
	RepoOwner string
	RepoName  string
	PRNumber  int
	Title     string
	Summary   string
	CreatedBy string
}

// Service persists changelog entries, resolving missing titles from the
// backing merge request when a repo client is configured.
type Service struct {
	db     *database.DataBase
	repo   *gitlab.Client
	logger *zap.Logger
}

func NewService(db *database.DataBase, repo *gitlab.Client, logger *zap.Logger) *Service {
	return &Service{
		db:     db,
		repo:   repo,
		logger: logger.Named("changelog"),
	}
}

func (s *Service) CreateEntry(ctx context.Context, spec EntrySpec) (*models.ChangelogEntry, error) {
	if spec.RepoOwner == "" || spec.RepoName == "" || spec.PRNumber == 0 {
		return nil, errors.New("changelog entry needs repo owner, repo name and PR number")
	}

	if spec.Title == "" && s.repo != nil {
		info, err := s.repo.FetchMergeRequest(spec.RepoOwner, spec.RepoName, spec.PRNumber)
		if err != nil {
			return nil, err
		}
		spec.Title = info.Title
		if spec.Summary == "" {
			spec.Summary = info.Description
		}
		if spec.CreatedBy == "" {
			spec.CreatedBy = info.Author
		}
	}

	entry := &models.ChangelogEntry{
		RepoOwner: spec.RepoOwner,
		RepoName:  spec.RepoName,
		PRNumber:  spec.PRNumber,
		Title:     spec.Title,
		Summary:   CleanSummary(spec.Summary),
		CreatedBy: spec.CreatedBy,
	}
	if err := s.db.AddChangelogEntry(entry); err != nil {
		s.logger.Error("Failed to store changelog entry", zap.Error(err))
		return nil, errors.Wrap(err, "Failed to store changelog entry")
	}

	s.logger.Info("Stored changelog entry",
		zap.String("repo", spec.RepoOwner+"/"+spec.RepoName),
		zap.Int("pr_number", spec.PRNumber),
	)
	return entry, nil
}

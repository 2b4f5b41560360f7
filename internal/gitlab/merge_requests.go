package gitlab

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/xanzy/go-gitlab"
	"go.uber.org/zap"

	"github.com/redgrape/thegrid/internal/config"
)

// Client looks up merge requests backing release events, to fill in titles
// and authors the event payload did not carry.
type Client struct {
	gitlab *gitlab.Client
	logger *zap.Logger
}

func NewClient(conf *config.Config, logger *zap.Logger) (*Client, error) {
	client, err := gitlab.NewClient(conf.GitLab.Token, gitlab.WithBaseURL(conf.GitLab.BaseURL))
	if err != nil {
		return nil, errors.Wrap(err, "Failed to create gitlab client")
	}
	return &Client{
		gitlab: client,
		logger: logger.Named("gitlab"),
	}, nil
}

type MergeRequestInfo struct {
	Title       string
	Description string
	Author      string
	WebURL      string
}

func (c *Client) FetchMergeRequest(owner, repo string, number int) (*MergeRequestInfo, error) {
	project := fmt.Sprintf("%s/%s", owner, repo)
	log := c.logger.With(zap.String("project", project), zap.Int("merge_request", number))
	log.Debug("Fetching merge request")

	mr, _, err := c.gitlab.MergeRequests.GetMergeRequest(project, number, nil)
	if err != nil {
		log.Error("Failed to fetch merge request", zap.Error(err))
		return nil, errors.Wrap(err, "Failed to fetch merge request")
	}

	info := &MergeRequestInfo{
		Title:       mr.Title,
		Description: mr.Description,
		WebURL:      mr.WebURL,
	}
	if mr.Author != nil {
		info.Author = mr.Author.Username
	}
	return info, nil
}

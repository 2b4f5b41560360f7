package storyblok

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	lf "github.com/redgrape/thegrid/internal/logfield"
)

type Story struct {
	ID        int64                  `json:"id,omitempty"`
	Name      string                 `json:"name"`
	Slug      string                 `json:"slug"`
	Content   map[string]interface{} `json:"content"`
	Published bool                   `json:"published,omitempty"`
}

type storyEnvelope struct {
	Story *Story `json:"story"`
	// Storyblok expects "1" strings here, not booleans.
	ForceUpdate string `json:"force_update,omitempty"`
	Publish     int    `json:"publish,omitempty"`
}

type storiesEnvelope struct {
	Stories []Story `json:"stories"`
}

func writeBackoff(ctx context.Context) backoff.BackOff {
	policy := backoff.NewExponentialBackOff()
	policy.MaxElapsedTime = 30 * time.Second
	return backoff.WithContext(policy, ctx)
}

// CreateStory creates a new draft story.
func (c *Client) CreateStory(ctx context.Context, story *Story) (*Story, error) {
	log := c.logger.With(lf.StorySlug(story.Slug))
	log.Info("Creating story")

	var created *Story
	err := backoff.Retry(func() error {
		result := &storyEnvelope{}
		resp, err := c.client.R().
			SetContext(ctx).
			SetBody(&storyEnvelope{Story: story}).
			SetResult(result).
			Post(c.spacePath(""))
		if err != nil {
			return err
		}
		if resp.IsError() {
			err := errors.Errorf("storyblok create failed: %s", resp.Status())
			if resp.StatusCode() < http.StatusInternalServerError {
				return backoff.Permanent(err)
			}
			return err
		}
		created = result.Story
		return nil
	}, writeBackoff(ctx))
	if err != nil {
		log.Error("Failed to create story", zap.Error(err))
		return nil, errors.Wrap(err, "Failed to create story")
	}

	log.Info("Created story", lf.StoryID(created.ID))
	return created, nil
}

// UpdateStory rewrites an existing story. forceUpdate overrides an editor
// lock held in the storyblok UI.
func (c *Client) UpdateStory(ctx context.Context, id int64, story *Story, forceUpdate, publish bool) (*Story, error) {
	log := c.logger.With(lf.StoryID(id))
	log.Info("Updating story", zap.Bool("force_update", forceUpdate), zap.Bool("publish", publish))

	body := &storyEnvelope{Story: story}
	if forceUpdate {
		body.ForceUpdate = "1"
	}
	if publish {
		body.Publish = 1
	}

	var updated *Story
	err := backoff.Retry(func() error {
		result := &storyEnvelope{}
		resp, err := c.client.R().
			SetContext(ctx).
			SetBody(body).
			SetResult(result).
			Put(c.spacePath(fmt.Sprintf("/%d", id)))
		if err != nil {
			return err
		}
		if resp.IsError() {
			err := errors.Errorf("storyblok update failed: %s", resp.Status())
			if resp.StatusCode() < http.StatusInternalServerError {
				return backoff.Permanent(err)
			}
			return err
		}
		updated = result.Story
		return nil
	}, writeBackoff(ctx))
	if err != nil {
		log.Error("Failed to update story", zap.Error(err))
		return nil, errors.Wrap(err, "Failed to update story")
	}

	log.Info("Updated story")
	return updated, nil
}

// GetStory returns nil for an unknown story id.
func (c *Client) GetStory(ctx context.Context, id int64) (*Story, error) {
	result := &storyEnvelope{}
	resp, err := c.client.R().
		SetContext(ctx).
		SetResult(result).
		Get(c.spacePath(fmt.Sprintf("/%d", id)))
	if err != nil {
		return nil, errors.Wrap(err, "Failed to get story")
	}
	if resp.StatusCode() == http.StatusNotFound {
		return nil, nil
	}
	if resp.IsError() {
		return nil, errors.Errorf("storyblok get failed: %s", resp.Status())
	}
	return result.Story, nil
}

// ListStories pages through the space. Results are cached briefly because
// the dashboard polls this.
func (c *Client) ListStories(ctx context.Context) ([]Story, error) {
	cacheKey := fmt.Sprintf("stories:%d", c.spaceID)
	if item := c.cache.Get(cacheKey); item != nil && !item.Expired() {
		return item.Value().([]Story), nil
	}

	stories := make([]Story, 0)
	for page := 1; ; page++ {
		result := &storiesEnvelope{}
		resp, err := c.client.R().
			SetContext(ctx).
			SetQueryParam("page", fmt.Sprint(page)).
			SetQueryParam("per_page", "100").
			SetResult(result).
			Get(c.spacePath(""))
		if err != nil {
			return nil, errors.Wrap(err, "Failed to list stories")
		}
		if resp.IsError() {
			return nil, errors.Errorf("storyblok list failed: %s", resp.Status())
		}

		stories = append(stories, result.Stories...)
		if len(result.Stories) < 100 {
			break
		}
	}

	c.cache.Set(cacheKey, stories, listCacheTTL)
	return stories, nil
}

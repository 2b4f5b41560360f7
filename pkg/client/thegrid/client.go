package thegrid

import (
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/redgrape/thegrid/api"
	"github.com/redgrape/thegrid/internal/models"
)

type Client struct {
	client *resty.Client
	token  string
}

func NewClient(endpoint, token string) (*Client, error) {
	client := resty.New().
		SetBaseURL(endpoint).
		SetTimeout(time.Second * 30).
		SetRetryCount(3)

	return &Client{client, token}, nil
}

func (c *Client) ListPipelines() ([]models.Pipeline, error) {
	res := &api.PipelinesResponse{}
	_, err := c.client.R().
		SetResult(res).
		Get("/api/pipelines")
	if err != nil {
		return nil, err
	}

	if !res.Ok {
		return nil, fmt.Errorf("failed to list pipelines: %s", res.Error)
	}

	return res.Pipelines, nil
}

func (c *Client) GetPipeline(id string) (*api.PipelineResponse, error) {
	res := &api.PipelineResponse{}
	_, err := c.client.R().
		SetResult(res).
		SetPathParam("id", id).
		Get("/api/pipelines/{id}")
	if err != nil {
		return nil, err
	}

	if !res.Ok {
		return nil, fmt.Errorf("failed to fetch pipeline: %s", res.Error)
	}

	return res, nil
}

func (c *Client) PendingApprovals() ([]models.Approval, error) {
	res := &api.ApprovalsResponse{}
	_, err := c.client.R().
		SetResult(res).
		Get("/api/approvals/pending")
	if err != nil {
		return nil, err
	}

	if !res.Ok {
		return nil, fmt.Errorf("failed to list approvals: %s", res.Error)
	}

	return res.Approvals, nil
}

func (c *Client) GetApproval(id string) (*models.Approval, error) {
	res := &api.ApprovalResponse{}
	_, err := c.client.R().
		SetResult(res).
		SetPathParam("id", id).
		Get("/api/approvals/{id}")
	if err != nil {
		return nil, err
	}

	if !res.Ok {
		return nil, fmt.Errorf("failed to fetch approval: %s", res.Error)
	}

	return res.Approval, nil
}

func (c *Client) ChangelogEntries() ([]models.ChangelogEntry, error) {
	res := &api.ChangelogResponse{}
	_, err := c.client.R().
		SetResult(res).
		Get("/api/changelog")
	if err != nil {
		return nil, err
	}

	if !res.Ok {
		return nil, fmt.Errorf("failed to list changelog: %s", res.Error)
	}

	return res.Entries, nil
}

func (c *Client) Approve(id, resolvedBy string) (string, error) {
	return c.resolve(id, "approve", resolvedBy, "")
}

func (c *Client) Reject(id, resolvedBy, reason string) (string, error) {
	return c.resolve(id, "reject", resolvedBy, reason)
}

func (c *Client) resolve(id, action, resolvedBy, reason string) (string, error) {
	res := &api.ResolveApprovalResponse{}
	_, err := c.client.R().
		SetResult(res).
		SetError(res).
		SetPathParam("id", id).
		SetBody(api.ResolveApprovalRequest{
			Token:      c.token,
			ResolvedBy: resolvedBy,
			Reason:     reason,
		}).
		Post("/api/approvals/{id}/" + action)
	if err != nil {
		return "", err
	}

	if !res.Ok {
		return "", fmt.Errorf("failed to %s approval: %s", action, res.Error)
	}

	return res.PipelineID, nil
}

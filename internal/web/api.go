package web

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/redgrape/thegrid/api"
	"github.com/redgrape/thegrid/internal/events"
	lf "github.com/redgrape/thegrid/internal/logfield"
	"github.com/redgrape/thegrid/internal/models"
)

// The routes here are thin: they validate the shared token, hand the payload
// to the bus or the orchestrator and report the outcome. All control flow
// lives in the core.
type apiService struct {
	server *server
	log    *zap.Logger
}

func setupApiService(server *server, r *gin.Engine) {
	s := apiService{server, server.logger.Named("api")}

	r.POST("/api/ingest/figma", s.ingestFigma)
	r.POST("/api/ingest/editor", s.ingestEditor)
	r.POST("/api/ingest/release", s.ingestRelease)

	r.POST("/api/approvals/:id/approve", s.approve)
	r.POST("/api/approvals/:id/reject", s.reject)
	r.GET("/api/approvals/pending", s.pendingApprovals)
	r.GET("/api/approvals/:id", s.getApproval)

	r.GET("/api/pipelines", s.listPipelines)
	r.GET("/api/pipelines/:id", s.getPipeline)
	r.GET("/api/changelog", s.listChangelog)

	r.GET("/api/stories", s.listStories)
	r.GET("/api/stories/:id", s.getStory)
}

func (s apiService) checkToken(token string) bool {
	for _, known := range s.server.config.Api.Tokens {
		if known == token {
			return true
		}
	}
	return false
}

func onError(c *gin.Context, log *zap.Logger, code int, err error) {
	log.Warn("Request failed", zap.Error(err))
	c.JSON(code, &api.Status{Ok: false, Error: err.Error()})
}

func (s apiService) ingestFigma(c *gin.Context) {
	req := api.IngestFigmaRequest{}
	if err := c.BindJSON(&req); err != nil {
		onError(c, s.log, http.StatusBadRequest, err)
		return
	}
	if !s.checkToken(req.Token) {
		onError(c, s.log, http.StatusUnauthorized, fmt.Errorf("invalid or expired token"))
		return
	}

	s.server.bus.Emit(c.Request.Context(), events.ReadyTopic(events.SourceFigma), req.FigmaReadyEvent)
	c.JSON(http.StatusOK, &api.IngestResponse{Status: api.Status{Ok: true}})
}

// ingestEditor is the synchronous variant: the caller gets the approval id
// back so the editor plugin can poll it.
func (s apiService) ingestEditor(c *gin.Context) {
	req := api.IngestEditorRequest{}
	if err := c.BindJSON(&req); err != nil {
		onError(c, s.log, http.StatusBadRequest, err)
		return
	}
	if !s.checkToken(req.Token) {
		onError(c, s.log, http.StatusUnauthorized, fmt.Errorf("invalid or expired token"))
		return
	}

	pipeline, approval, err := s.server.orchestrator.InitiateEditorPipeline(c.Request.Context(), req.EditorCompletedEvent)
	if err != nil {
		onError(c, s.log, http.StatusInternalServerError, err)
		return
	}

	c.JSON(http.StatusOK, &api.IngestEditorResponse{
		Status:     api.Status{Ok: true},
		PipelineID: pipeline.ID,
		ApprovalID: approval.ID,
	})
}

func (s apiService) ingestRelease(c *gin.Context) {
	req := api.IngestReleaseRequest{}
	if err := c.BindJSON(&req); err != nil {
		onError(c, s.log, http.StatusBadRequest, err)
		return
	}
	if !s.checkToken(req.Token) {
		onError(c, s.log, http.StatusUnauthorized, fmt.Errorf("invalid or expired token"))
		return
	}

	s.server.bus.Emit(c.Request.Context(), events.ReadyTopic(events.SourceRelease), req.ReleaseReadyEvent)
	c.JSON(http.StatusOK, &api.IngestResponse{Status: api.Status{Ok: true}})
}

func (s apiService) approve(c *gin.Context) {
	id := c.Param("id")
	log := s.log.With(lf.ApprovalID(id))

	req := api.ResolveApprovalRequest{}
	if err := c.BindJSON(&req); err != nil {
		onError(c, log, http.StatusBadRequest, err)
		return
	}
	if !s.checkToken(req.Token) {
		onError(c, log, http.StatusUnauthorized, fmt.Errorf("invalid or expired token"))
		return
	}

	approval, err := s.server.db.ResolveApproval(id, models.ApprovalStatusApproved, "")
	if err != nil {
		onError(c, log, http.StatusConflict, err)
		return
	}
	step, err := s.server.db.GetPipelineStep(approval.PipelineStepID)
	if err != nil || step == nil {
		onError(c, log, http.StatusInternalServerError, fmt.Errorf("approval step not found"))
		return
	}

	log.Info("Approval granted", lf.PipelineID(step.PipelineID))
	s.server.bus.Emit(c.Request.Context(), events.TopicApprovalGranted, api.ApprovalGrantedEvent{
		PipelineID:     step.PipelineID,
		ApprovalStepID: step.ID,
		ApprovedBy:     req.ResolvedBy,
	})

	c.JSON(http.StatusOK, &api.ResolveApprovalResponse{
		Status:     api.Status{Ok: true},
		PipelineID: step.PipelineID,
	})
}

func (s apiService) reject(c *gin.Context) {
	id := c.Param("id")
	log := s.log.With(lf.ApprovalID(id))

	req := api.ResolveApprovalRequest{}
	if err := c.BindJSON(&req); err != nil {
		onError(c, log, http.StatusBadRequest, err)
		return
	}
	if !s.checkToken(req.Token) {
		onError(c, log, http.StatusUnauthorized, fmt.Errorf("invalid or expired token"))
		return
	}

	approval, err := s.server.db.ResolveApproval(id, models.ApprovalStatusRejected, req.Reason)
	if err != nil {
		onError(c, log, http.StatusConflict, err)
		return
	}
	step, err := s.server.db.GetPipelineStep(approval.PipelineStepID)
	if err != nil || step == nil {
		onError(c, log, http.StatusInternalServerError, fmt.Errorf("approval step not found"))
		return
	}

	log.Info("Approval rejected", lf.PipelineID(step.PipelineID))
	if err := s.server.orchestrator.Reject(c.Request.Context(), step.PipelineID, step.ID, req.Reason); err != nil {
		onError(c, log, http.StatusInternalServerError, err)
		return
	}

	c.JSON(http.StatusOK, &api.ResolveApprovalResponse{
		Status:     api.Status{Ok: true},
		PipelineID: step.PipelineID,
	})
}

func (s apiService) pendingApprovals(c *gin.Context) {
	approvals, err := s.server.db.ListPendingApprovals()
	if err != nil {
		onError(c, s.log, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, &api.ApprovalsResponse{
		Status:    api.Status{Ok: true},
		Approvals: approvals,
	})
}

// getApproval lets the editor plugin poll the gate it created via the
// synchronous ingest flow.
func (s apiService) getApproval(c *gin.Context) {
	id := c.Param("id")

	approval, err := s.server.db.GetApproval(id)
	if err != nil {
		onError(c, s.log, http.StatusInternalServerError, err)
		return
	}
	if approval == nil {
		onError(c, s.log, http.StatusNotFound, fmt.Errorf("unknown approval %s", id))
		return
	}
	c.JSON(http.StatusOK, &api.ApprovalResponse{
		Status:   api.Status{Ok: true},
		Approval: approval,
	})
}

func (s apiService) listChangelog(c *gin.Context) {
	entries, err := s.server.db.ListChangelogEntries()
	if err != nil {
		onError(c, s.log, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, &api.ChangelogResponse{
		Status:  api.Status{Ok: true},
		Entries: entries,
	})
}

func (s apiService) listStories(c *gin.Context) {
	stories, err := s.server.cms.ListStories(c.Request.Context())
	if err != nil {
		onError(c, s.log, http.StatusBadGateway, err)
		return
	}
	c.JSON(http.StatusOK, &api.StoriesResponse{
		Status:  api.Status{Ok: true},
		Stories: stories,
	})
}

func (s apiService) getStory(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		onError(c, s.log, http.StatusBadRequest, fmt.Errorf("story id must be numeric"))
		return
	}

	story, err := s.server.cms.GetStory(c.Request.Context(), id)
	if err != nil {
		onError(c, s.log, http.StatusBadGateway, err)
		return
	}
	if story == nil {
		onError(c, s.log, http.StatusNotFound, fmt.Errorf("unknown story %d", id))
		return
	}
	c.JSON(http.StatusOK, &api.StoryResponse{
		Status: api.Status{Ok: true},
		Story:  story,
	})
}

func (s apiService) listPipelines(c *gin.Context) {
	var (
		pipelines []models.Pipeline
		err       error
	)
	if source := c.Query("source"); source != "" {
		pipelines, err = s.server.db.ListSourcePipelines(source)
	} else {
		pipelines, err = s.server.db.ListPipelines()
	}
	if err != nil {
		onError(c, s.log, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, &api.PipelinesResponse{
		Status:    api.Status{Ok: true},
		Pipelines: pipelines,
	})
}

func (s apiService) getPipeline(c *gin.Context) {
	id := c.Param("id")

	pipeline, err := s.server.db.GetPipeline(id)
	if err != nil {
		onError(c, s.log, http.StatusInternalServerError, err)
		return
	}
	if pipeline == nil {
		onError(c, s.log, http.StatusNotFound, fmt.Errorf("unknown pipeline %s", id))
		return
	}
	steps, err := s.server.db.ListPipelineSteps(id)
	if err != nil {
		onError(c, s.log, http.StatusInternalServerError, err)
		return
	}

	c.JSON(http.StatusOK, &api.PipelineResponse{
		Status:   api.Status{Ok: true},
		Pipeline: pipeline,
		Steps:    steps,
	})
}

package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"procurement-client/apierr"
	"procurement-client/core/procurement"
	"procurement-client/repository"
)

// ProjectHandler serves the read side from the repository snapshot.
type ProjectHandler struct {
	BaseHandler
	repo *repository.Repository
	now  func() time.Time
}

func NewProjectHandler(repo *repository.Repository) *ProjectHandler {
	return &ProjectHandler{repo: repo, now: time.Now}
}

// snapshot reloads first when the caller asks for ?refresh=true.
func (h *ProjectHandler) snapshot(c *gin.Context) repository.Snapshot {
	if c.Query("refresh") == "true" || c.Query("refresh") == "1" {
		return h.repo.Refresh(c.Request.Context())
	}
	return h.repo.Snapshot()
}

// HandleRefresh reloads every query for the connected account
// @Summary Reload all queries
// @Tags Projects
// @Produce json
// @Success 200 {object} models.APIResponse
// @Router /api/refresh [post]
func (h *ProjectHandler) HandleRefresh(c *gin.Context) {
	h.sendSuccess(c, http.StatusOK, h.repo.Refresh(c.Request.Context()))
}

// HandleListProjects lists the contractor's projects
// @Summary List contractor projects with derived milestone status
// @Tags Projects
// @Produce json
// @Param refresh query bool false "reload before answering"
// @Success 200 {object} models.APIResponse
// @Failure 409 {object} models.APIResponse
// @Router /api/projects [get]
func (h *ProjectHandler) HandleListProjects(c *gin.Context) {
	q := h.snapshot(c).ContractorProjects
	views := procurement.NewProjectViews(q.Data, h.now())
	sendQuery(&h.BaseHandler, c, q, views, len(views))
}

// HandleGetProject returns one loaded project
// @Summary Get a project
// @Tags Projects
// @Produce json
// @Param id path string true "project id"
// @Param refresh query bool false "reload before answering"
// @Success 200 {object} models.APIResponse
// @Failure 404 {object} models.APIResponse
// @Failure 409 {object} models.APIResponse
// @Router /api/projects/{id} [get]
func (h *ProjectHandler) HandleGetProject(c *gin.Context) {
	h.snapshot(c)
	p, err := h.repo.FindProject(c.Param("id"))
	switch {
	case errors.Is(err, procurement.ErrProjectNotFound):
		h.sendFailure(c, http.StatusNotFound, apierr.CodeNotFound, "project "+c.Param("id")+" not found", "Retry with ?refresh=true on the list endpoint")
	case err != nil:
		h.sendError(c, err)
	default:
		h.sendSuccess(c, http.StatusOK, procurement.NewProjectView(p, h.now()))
	}
}

// HandleStats returns dashboard figures
// @Summary Project statistics
// @Tags Projects
// @Produce json
// @Success 200 {object} models.APIResponse
// @Failure 409 {object} models.APIResponse
// @Router /api/projects/stats [get]
func (h *ProjectHandler) HandleStats(c *gin.Context) {
	h.snapshot(c)
	stats, ok := h.repo.Stats()
	if !ok {
		h.sendFailure(c, http.StatusConflict, apierr.CodeNotLoaded, "projects have not been loaded", "Retry with ?refresh=true")
		return
	}
	h.sendSuccess(c, http.StatusOK, stats)
}

// HandleListSubmissions lists evidence awaiting agency review
// @Summary Submitted projects for review
// @Tags Agency
// @Produce json
// @Success 200 {object} models.APIResponse
// @Router /api/submissions [get]
func (h *ProjectHandler) HandleListSubmissions(c *gin.Context) {
	q := h.snapshot(c).SubmittedProjects
	views := procurement.NewProjectViews(q.Data, h.now())
	sendQuery(&h.BaseHandler, c, q, views, len(views))
}

// HandleListRejected lists milestones the agency rejected
// @Summary Rejected milestones
// @Tags Projects
// @Produce json
// @Success 200 {object} models.APIResponse
// @Router /api/milestones/rejected [get]
func (h *ProjectHandler) HandleListRejected(c *gin.Context) {
	q := h.snapshot(c).RejectedMilestones
	views := procurement.NewMilestoneViews(q.Data, h.now())
	sendQuery(&h.BaseHandler, c, q, views, len(views))
}

// HandleListContractors lists registered contractors
// @Summary Registered contractors
// @Tags Agency
// @Produce json
// @Success 200 {object} models.APIResponse
// @Router /api/contractors [get]
func (h *ProjectHandler) HandleListContractors(c *gin.Context) {
	q := h.snapshot(c).Contractors
	sendQuery(&h.BaseHandler, c, q, q.Data, len(q.Data))
}

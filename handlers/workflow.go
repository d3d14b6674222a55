package handlers

import (
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"procurement-client/apierr"
	"procurement-client/ipfs"
	"procurement-client/models"
	"procurement-client/security"
	"procurement-client/workflow"
)

// WorkflowHandler drives the write side. Each workflow runs one attempt at
// a time; a second request while one is running gets 409.
type WorkflowHandler struct {
	BaseHandler
	submissions *workflow.SubmissionWorkflow
	projects    *workflow.CreateProjectWorkflow
}

func NewWorkflowHandler(submissions *workflow.SubmissionWorkflow, projects *workflow.CreateProjectWorkflow) *WorkflowHandler {
	return &WorkflowHandler{submissions: submissions, projects: projects}
}

// HandleSubmitEvidence uploads evidence and submits it for a project
// @Summary Submit project evidence
// @Tags Contractor
// @Accept multipart/form-data
// @Produce json
// @Param id path string true "project id"
// @Param description formData string true "what was delivered"
// @Param evidence formData file true "PNG or JPEG, at most 1 MB; repeatable"
// @Success 200 {object} models.APIResponse
// @Failure 400 {object} models.APIResponse
// @Failure 409 {object} models.APIResponse
// @Router /api/projects/{id}/submission [post]
func (h *WorkflowHandler) HandleSubmitEvidence(c *gin.Context) {
	form := workflow.SubmissionForm{
		ProjectID:   c.Param("id"),
		Description: c.PostForm("description"),
	}
	if mf, err := c.MultipartForm(); err == nil {
		for _, fh := range mf.File["evidence"] {
			f, err := readUpload(fh)
			if err != nil {
				h.sendFailure(c, http.StatusBadRequest, apierr.CodeInvalidValue, err.Error(), "")
				return
			}
			form.Files = append(form.Files, f)
		}
	}

	progress, err := h.submissions.Submit(c.Request.Context(), form)
	if err != nil {
		h.sendError(c, err)
		return
	}
	h.sendSuccess(c, http.StatusOK, progress)
}

// readUpload reads at most one byte past the size limit so oversize files
// are rejected by validation without buffering them whole.
func readUpload(fh *multipart.FileHeader) (ipfs.File, error) {
	src, err := fh.Open()
	if err != nil {
		return ipfs.File{}, fmt.Errorf("open %s: %w", fh.Filename, err)
	}
	defer src.Close()
	data, err := io.ReadAll(io.LimitReader(src, ipfs.MaxFileSize+1))
	if err != nil {
		return ipfs.File{}, fmt.Errorf("read %s: %w", fh.Filename, err)
	}
	return ipfs.File{Name: security.SanitizeFilename(fh.Filename), ContentType: fh.Header.Get("Content-Type"), Data: data}, nil
}

// HandleCreateProject assigns a new project to a contractor
// @Summary Create a project
// @Tags Agency
// @Accept json
// @Produce json
// @Param request body models.CreateProjectRequest true "project form"
// @Success 201 {object} models.APIResponse
// @Failure 400 {object} models.APIResponse
// @Router /api/projects [post]
func (h *WorkflowHandler) HandleCreateProject(c *gin.Context) {
	var req models.CreateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.sendFailure(c, http.StatusBadRequest, apierr.CodeInvalidValue, "invalid body", "Send a JSON project form")
		return
	}
	form := workflow.CreateProjectForm{
		Description:       req.Description,
		Budget:            req.Budget,
		ContractorAddress: req.ContractorAddress,
	}
	for field, pair := range map[string]struct {
		raw string
		dst *time.Time
	}{
		"start_date": {req.StartDate, &form.StartDate},
		"end_date":   {req.EndDate, &form.EndDate},
	} {
		raw := strings.TrimSpace(pair.raw)
		if raw == "" {
			continue
		}
		t, err := time.Parse(time.DateOnly, raw)
		if err != nil {
			h.sendFailure(c, http.StatusBadRequest, apierr.CodeInvalidValue, field+" must be YYYY-MM-DD", "")
			return
		}
		*pair.dst = t
	}

	progress, err := h.projects.Submit(c.Request.Context(), form)
	if err != nil {
		h.sendError(c, err)
		return
	}
	h.sendSuccess(c, http.StatusCreated, progress)
}

// HandleRetry repeats the last failed attempt of a workflow
// @Summary Retry a failed workflow
// @Tags Workflows
// @Produce json
// @Param kind path string true "submission or create_project"
// @Success 200 {object} models.APIResponse
// @Failure 409 {object} models.APIResponse
// @Router /api/workflows/{kind}/retry [post]
func (h *WorkflowHandler) HandleRetry(c *gin.Context) {
	var (
		progress workflow.Progress
		err      error
	)
	switch c.Param("kind") {
	case workflow.KindSubmission:
		progress, err = h.submissions.Retry(c.Request.Context())
	case workflow.KindCreateProject:
		progress, err = h.projects.Retry(c.Request.Context())
	default:
		h.sendFailure(c, http.StatusNotFound, apierr.CodeNotFound, "unknown workflow "+c.Param("kind"), "")
		return
	}
	if err != nil {
		h.sendError(c, err)
		return
	}
	h.sendSuccess(c, http.StatusOK, progress)
}

// HandleStatus reports the current attempt of a workflow
// @Summary Workflow progress
// @Tags Workflows
// @Produce json
// @Param kind path string true "submission or create_project"
// @Success 200 {object} models.APIResponse
// @Router /api/workflows/{kind} [get]
func (h *WorkflowHandler) HandleStatus(c *gin.Context) {
	switch c.Param("kind") {
	case workflow.KindSubmission:
		h.sendSuccess(c, http.StatusOK, h.submissions.Snapshot())
	case workflow.KindCreateProject:
		h.sendSuccess(c, http.StatusOK, h.projects.Snapshot())
	default:
		h.sendFailure(c, http.StatusNotFound, apierr.CodeNotFound, "unknown workflow "+c.Param("kind"), "")
	}
}

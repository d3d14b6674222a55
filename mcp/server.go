// Package mcp exposes the procurement client as MCP tools so agents can read
// projects and drive the submission and project creation workflows.
package mcp

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"procurement-client/core/procurement"
	"procurement-client/ipfs"
	"procurement-client/repository"
	"procurement-client/security"
	"procurement-client/services"
	"procurement-client/session"
	"procurement-client/workflow"
)

const defaultSignedURLTTL = 10 * time.Minute

// EvidenceLinker turns an evidence CID into a viewable URL.
// ipfs.PinataClient satisfies it.
type EvidenceLinker interface {
	GatewayURL(cid string) string
	SignedURL(ctx context.Context, cid string, ttl time.Duration) (string, error)
}

// Deps are the components the tools call into. Evidence and QR may be nil.
type Deps struct {
	Repository  *repository.Repository
	Session     *session.Controller
	Submissions *workflow.SubmissionWorkflow
	Projects    *workflow.CreateProjectWorkflow
	Evidence    EvidenceLinker
	QR          *services.QRCodeService
}

// MCPServer wraps the mcp-go server with the procurement tools.
type MCPServer struct {
	mcpServer *server.MCPServer
	deps      Deps
	now       func() time.Time
}

// NewMCPServer creates the server and registers every tool.
func NewMCPServer(deps Deps) *MCPServer {
	mcpServer := server.NewMCPServer(
		"Procurement MCP Server",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithRecovery(),
	)

	s := &MCPServer{mcpServer: mcpServer, deps: deps, now: time.Now}
	s.registerTools()
	return s
}

// GetMCPServer returns the underlying MCP server for transport setup.
func (s *MCPServer) GetMCPServer() *server.MCPServer {
	return s.mcpServer
}

func (s *MCPServer) registerTools() {
	// Read side
	s.mcpServer.AddTool(mcp.NewTool("refresh",
		mcp.WithDescription("Reload projects, submissions, rejected milestones and contractors for the connected wallet"),
	), s.handleRefresh)
	s.mcpServer.AddTool(mcp.NewTool("list_projects",
		mcp.WithDescription("List the connected contractor's projects with derived milestone statuses"),
	), s.handleListProjects)
	s.mcpServer.AddTool(mcp.NewTool("get_project",
		mcp.WithDescription("Get one loaded project by id"),
		mcp.WithString("project_id", mcp.Required(), mcp.Description("On-chain project id")),
	), s.handleGetProject)
	s.mcpServer.AddTool(mcp.NewTool("list_submissions_for_review",
		mcp.WithDescription("List projects whose contractor has submitted evidence for the agency to review"),
	), s.handleListSubmissions)
	s.mcpServer.AddTool(mcp.NewTool("list_rejected_milestones",
		mcp.WithDescription("List milestones the agency rejected for the connected contractor"),
	), s.handleListRejected)
	s.mcpServer.AddTool(mcp.NewTool("list_contractors",
		mcp.WithDescription("List every registered contractor address"),
	), s.handleListContractors)
	s.mcpServer.AddTool(mcp.NewTool("project_stats",
		mcp.WithDescription("Dashboard figures: active, completed, pending submission, overdue milestones, rejected milestones"),
	), s.handleStats)

	// Session
	s.mcpServer.AddTool(mcp.NewTool("resolve_role",
		mcp.WithDescription("Resolve the operating role (agency or contractor) for a navigation path"),
		mcp.WithString("path", mcp.Required(), mcp.Description("Route path, e.g. /assignContract or /dashboard")),
	), s.handleResolveRole)

	// Write side
	s.mcpServer.AddTool(mcp.NewTool("submit_project_evidence",
		mcp.WithDescription("Upload an evidence image and submit it for a project, waiting for confirmation"),
		mcp.WithString("project_id", mcp.Required(), mcp.Description("On-chain project id")),
		mcp.WithString("description", mcp.Required(), mcp.Description("What was delivered")),
		mcp.WithString("file_name", mcp.Required(), mcp.Description("Evidence file name")),
		mcp.WithString("content_type", mcp.Description("image/png or image/jpeg")),
		mcp.WithString("data_base64", mcp.Required(), mcp.Description("Base64 encoded image, at most 1 MB")),
	), s.handleSubmitEvidence)
	s.mcpServer.AddTool(mcp.NewTool("create_project",
		mcp.WithDescription("Create a project for a contractor, approving the budget token first when needed"),
		mcp.WithString("description", mcp.Required(), mcp.Description("Project description")),
		mcp.WithString("budget", mcp.Required(), mcp.Description("Budget in token base units")),
		mcp.WithString("contractor_address", mcp.Required(), mcp.Description("0x contractor address")),
		mcp.WithString("start_date", mcp.Required(), mcp.Description("Start date, YYYY-MM-DD")),
		mcp.WithString("end_date", mcp.Required(), mcp.Description("End date, YYYY-MM-DD")),
	), s.handleCreateProject)
	s.mcpServer.AddTool(mcp.NewTool("retry_workflow",
		mcp.WithDescription("Retry the last failed submission or project creation with the preserved form"),
		mcp.WithString("kind", mcp.Required(), mcp.Enum(workflow.KindSubmission, workflow.KindCreateProject)),
	), s.handleRetry)
	s.mcpServer.AddTool(mcp.NewTool("workflow_status",
		mcp.WithDescription("Current progress of a workflow"),
		mcp.WithString("kind", mcp.Required(), mcp.Enum(workflow.KindSubmission, workflow.KindCreateProject)),
	), s.handleWorkflowStatus)

	// Links
	s.mcpServer.AddTool(mcp.NewTool("evidence_url",
		mcp.WithDescription("Gateway URL for an evidence CID, optionally signed"),
		mcp.WithString("cid", mcp.Required(), mcp.Description("Evidence CID")),
		mcp.WithBoolean("signed", mcp.Description("Return a time-limited signed URL")),
		mcp.WithNumber("ttl_seconds", mcp.Description("Signed URL lifetime")),
	), s.handleEvidenceURL)
	s.mcpServer.AddTool(mcp.NewTool("transaction_qr",
		mcp.WithDescription("PNG QR code linking to a transaction in the block explorer"),
		mcp.WithString("hash", mcp.Required(), mcp.Description("Transaction hash")),
	), s.handleTransactionQR)
}

func (s *MCPServer) handleRefresh(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	snap := s.deps.Repository.Refresh(ctx)
	return jsonResult(fmt.Sprintf("Refreshed queries for %s", snap.Account.Hex()), snap)
}

func (s *MCPServer) handleListProjects(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	q := s.deps.Repository.Snapshot().ContractorProjects
	if res := notLoaded("list_projects", q.State, q.Error); res != nil {
		return res, nil
	}
	views := procurement.NewProjectViews(q.Data, s.now())
	return jsonResult(fmt.Sprintf("Found %d projects", len(views)), map[string]interface{}{
		"projects":    views,
		"total_count": len(views),
	})
}

func (s *MCPServer) handleGetProject(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("project_id")
	if err != nil {
		return errorResult(NewMissingFieldError("get_project", "project_id")), nil
	}
	p, err := s.deps.Repository.FindProject(strings.TrimSpace(id))
	if errors.Is(err, procurement.ErrProjectNotFound) {
		return errorResult(NewNotFoundError("get_project", "Project", id)), nil
	}
	if err != nil {
		return errorResult(ToolErrorFrom("get_project", err)), nil
	}
	return jsonResult("Project details", procurement.NewProjectView(p, s.now()))
}

func (s *MCPServer) handleListSubmissions(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	q := s.deps.Repository.Snapshot().SubmittedProjects
	if res := notLoaded("list_submissions_for_review", q.State, q.Error); res != nil {
		return res, nil
	}
	views := procurement.NewProjectViews(q.Data, s.now())
	return jsonResult(fmt.Sprintf("Found %d submissions", len(views)), map[string]interface{}{
		"submissions": views,
		"total_count": len(views),
	})
}

func (s *MCPServer) handleListRejected(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	q := s.deps.Repository.Snapshot().RejectedMilestones
	if res := notLoaded("list_rejected_milestones", q.State, q.Error); res != nil {
		return res, nil
	}
	views := procurement.NewMilestoneViews(q.Data, s.now())
	return jsonResult(fmt.Sprintf("Found %d rejected milestones", len(views)), map[string]interface{}{
		"milestones":  views,
		"total_count": len(views),
	})
}

func (s *MCPServer) handleListContractors(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	q := s.deps.Repository.Snapshot().Contractors
	if res := notLoaded("list_contractors", q.State, q.Error); res != nil {
		return res, nil
	}
	return jsonResult(fmt.Sprintf("Found %d contractors", len(q.Data)), map[string]interface{}{
		"contractors": q.Data,
		"total_count": len(q.Data),
	})
}

func (s *MCPServer) handleStats(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	stats, ok := s.deps.Repository.Stats()
	if !ok {
		return errorResult(&ToolError{
			Code:       ErrCodeNotLoaded,
			Message:    "projects have not been loaded",
			Tool:       "project_stats",
			Hint:       "Call refresh first",
			HttpStatus: 409,
		}), nil
	}
	return jsonResult("Project statistics", stats)
}

func (s *MCPServer) handleResolveRole(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := request.RequireString("path")
	if err != nil {
		return errorResult(NewMissingFieldError("resolve_role", "path")), nil
	}
	role, err := s.deps.Session.Navigate(ctx, path)
	if err != nil {
		// the role still switched; only persistence failed
		log.Printf("Failed to persist role %s: %v", role, err)
	}
	return jsonResult(fmt.Sprintf("Role is %s", role), map[string]interface{}{
		"path": path,
		"role": role,
	})
}

func (s *MCPServer) handleSubmitEvidence(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	const tool = "submit_project_evidence"
	if s.deps.Submissions == nil {
		return errorResult(NewServiceUnavailableError(tool, "Submission")), nil
	}
	name := request.GetString("file_name", "")
	raw := request.GetString("data_base64", "")
	form := workflow.SubmissionForm{
		ProjectID:   request.GetString("project_id", ""),
		Description: request.GetString("description", ""),
	}
	if raw != "" {
		data, err := base64.StdEncoding.DecodeString(raw)
		if err != nil {
			return errorResult(NewInvalidFieldError(tool, "data_base64", "data_base64 is not valid base64")), nil
		}
		form.Files = []ipfs.File{{
			Name:        security.SanitizeFilename(name),
			ContentType: request.GetString("content_type", ""),
			Data:        data,
		}}
	}

	progress, err := s.deps.Submissions.Submit(ctx, form)
	if err != nil {
		return errorResult(ToolErrorFrom(tool, err)), nil
	}
	return jsonResult(fmt.Sprintf("Evidence %s submitted for project %s", progress.EvidenceCID, form.ProjectID), progress)
}

func (s *MCPServer) handleCreateProject(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	const tool = "create_project"
	if s.deps.Projects == nil {
		return errorResult(NewServiceUnavailableError(tool, "Project creation")), nil
	}
	form := workflow.CreateProjectForm{
		Description:       request.GetString("description", ""),
		Budget:            request.GetString("budget", ""),
		ContractorAddress: request.GetString("contractor_address", ""),
	}
	for field, dst := range map[string]*time.Time{"start_date": &form.StartDate, "end_date": &form.EndDate} {
		raw := strings.TrimSpace(request.GetString(field, ""))
		if raw == "" {
			continue
		}
		t, err := time.Parse(time.DateOnly, raw)
		if err != nil {
			return errorResult(NewInvalidFieldError(tool, field, fmt.Sprintf("%s must be YYYY-MM-DD", field))), nil
		}
		*dst = t
	}

	progress, err := s.deps.Projects.Submit(ctx, form)
	if err != nil {
		return errorResult(ToolErrorFrom(tool, err)), nil
	}
	return jsonResult(fmt.Sprintf("Project created for %s", common.HexToAddress(form.ContractorAddress).Hex()), progress)
}

func (s *MCPServer) handleRetry(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	const tool = "retry_workflow"
	kind, err := request.RequireString("kind")
	if err != nil {
		return errorResult(NewMissingFieldError(tool, "kind")), nil
	}
	var progress workflow.Progress
	switch {
	case kind == workflow.KindSubmission && s.deps.Submissions != nil:
		progress, err = s.deps.Submissions.Retry(ctx)
	case kind == workflow.KindCreateProject && s.deps.Projects != nil:
		progress, err = s.deps.Projects.Retry(ctx)
	default:
		return errorResult(NewInvalidFieldError(tool, "kind", fmt.Sprintf("unknown workflow %q", kind))), nil
	}
	if err != nil {
		return errorResult(ToolErrorFrom(tool, err)), nil
	}
	return jsonResult("Retry finished", progress)
}

func (s *MCPServer) handleWorkflowStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	kind, err := request.RequireString("kind")
	if err != nil {
		return errorResult(NewMissingFieldError("workflow_status", "kind")), nil
	}
	switch {
	case kind == workflow.KindSubmission && s.deps.Submissions != nil:
		return jsonResult("Submission progress", s.deps.Submissions.Snapshot())
	case kind == workflow.KindCreateProject && s.deps.Projects != nil:
		return jsonResult("Project creation progress", s.deps.Projects.Snapshot())
	}
	return errorResult(NewInvalidFieldError("workflow_status", "kind", fmt.Sprintf("unknown workflow %q", kind))), nil
}

func (s *MCPServer) handleEvidenceURL(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	const tool = "evidence_url"
	cid, err := request.RequireString("cid")
	if err != nil {
		return errorResult(NewMissingFieldError(tool, "cid")), nil
	}
	cid = strings.TrimSpace(cid)
	if cid == "" || cid == procurement.EmptyCIDSentinel {
		return errorResult(NewInvalidFieldError(tool, "cid", "no evidence has been submitted")), nil
	}
	if s.deps.Evidence == nil {
		return errorResult(NewServiceUnavailableError(tool, "Evidence gateway")), nil
	}

	if !request.GetBool("signed", false) {
		return jsonResult("Gateway URL", map[string]string{"cid": cid, "url": s.deps.Evidence.GatewayURL(cid)})
	}
	ttl := time.Duration(request.GetInt("ttl_seconds", 0)) * time.Second
	if ttl <= 0 {
		ttl = defaultSignedURLTTL
	}
	url, err := s.deps.Evidence.SignedURL(ctx, cid, ttl)
	if err != nil {
		return errorResult(ToolErrorFrom(tool, err)), nil
	}
	return jsonResult("Signed URL", map[string]interface{}{
		"cid":        cid,
		"url":        url,
		"expires_at": s.now().Add(ttl).UTC(),
	})
}

func (s *MCPServer) handleTransactionQR(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	const tool = "transaction_qr"
	hash, err := request.RequireString("hash")
	if err != nil {
		return errorResult(NewMissingFieldError(tool, "hash")), nil
	}
	if s.deps.QR == nil {
		return errorResult(NewServiceUnavailableError(tool, "QR code")), nil
	}
	png, err := s.deps.QR.TransactionReceipt(hash)
	if err != nil {
		return errorResult(NewInvalidFieldError(tool, "hash", err.Error())), nil
	}
	return mcp.NewToolResultImage(s.deps.QR.TransactionURL(hash), base64.StdEncoding.EncodeToString(png), "image/png"), nil
}

func notLoaded(tool string, state repository.LoadState, msg string) *mcp.CallToolResult {
	switch state {
	case repository.StateLoaded:
		return nil
	case repository.StateFailed:
		return errorResult(&ToolError{Code: ErrCodeBadGateway, Message: msg, Tool: tool, HttpStatus: 502})
	default:
		return errorResult(&ToolError{
			Code:       ErrCodeNotLoaded,
			Message:    fmt.Sprintf("query is %s", state),
			Tool:       tool,
			Hint:       "Call refresh first",
			HttpStatus: 409,
		})
	}
}

func jsonResult(summary string, v interface{}) (*mcp.CallToolResult, error) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to encode result: %v", err)), nil
	}
	return mcp.NewToolResultText(summary + "\n\n" + string(b)), nil
}

func errorResult(terr *ToolError) *mcp.CallToolResult {
	return mcp.NewToolResultError(terr.JSON())
}

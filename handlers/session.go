package handlers

import (
	"context"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"procurement-client/apierr"
	"procurement-client/core/procurement"
	"procurement-client/models"
	"procurement-client/services"
	"procurement-client/session"
)

// SessionHandler exposes the connected account and role.
type SessionHandler struct {
	BaseHandler
	session *session.Controller
}

func NewSessionHandler(sess *session.Controller) *SessionHandler {
	return &SessionHandler{session: sess}
}

// HandleGetSession returns the account, role and epoch
// @Summary Current session
// @Tags Session
// @Produce json
// @Success 200 {object} models.APIResponse
// @Router /api/session [get]
func (h *SessionHandler) HandleGetSession(c *gin.Context) {
	h.sendSuccess(c, http.StatusOK, h.session.Snapshot())
}

// HandleResolveRole switches the role according to a navigation path
// @Summary Resolve role for a path
// @Tags Session
// @Accept json
// @Produce json
// @Param request body models.RoleRequest true "navigation path"
// @Success 200 {object} models.APIResponse
// @Router /api/session/role [post]
func (h *SessionHandler) HandleResolveRole(c *gin.Context) {
	var req models.RoleRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Path) == "" {
		h.sendFailure(c, http.StatusBadRequest, apierr.CodeMissingRequired, "path is required", "Send {\"path\": \"/dashboard\"}")
		return
	}
	role, err := h.session.Navigate(c.Request.Context(), req.Path)
	if err != nil {
		log.Printf("Failed to persist role %s: %v", role, err)
	}
	resp := models.RoleResponse{Path: req.Path, Role: role.String()}
	if s := h.session.Snapshot(); s.Connected() {
		resp.Account = s.Account.Hex()
	}
	h.sendSuccess(c, http.StatusOK, resp)
}

// EvidenceLinker turns an evidence CID into a viewable URL.
type EvidenceLinker interface {
	GatewayURL(cid string) string
	SignedURL(ctx context.Context, cid string, ttl time.Duration) (string, error)
}

// LinkHandler serves evidence links and transaction QR codes.
type LinkHandler struct {
	BaseHandler
	evidence EvidenceLinker
	qr       *services.QRCodeService
}

// NewLinkHandler creates a link handler; evidence may be nil when the
// file store has no gateway.
func NewLinkHandler(evidence EvidenceLinker, qr *services.QRCodeService) *LinkHandler {
	return &LinkHandler{evidence: evidence, qr: qr}
}

// HandleEvidenceURL links to evidence by CID
// @Summary Evidence URL
// @Tags Agency
// @Produce json
// @Param cid path string true "evidence CID"
// @Param signed query bool false "time-limited signed URL"
// @Param ttl query int false "signed URL lifetime in seconds"
// @Success 200 {object} models.APIResponse
// @Failure 503 {object} models.APIResponse
// @Router /api/evidence/{cid} [get]
func (h *LinkHandler) HandleEvidenceURL(c *gin.Context) {
	cid := strings.TrimSpace(c.Param("cid"))
	if cid == "" || cid == procurement.EmptyCIDSentinel {
		h.sendFailure(c, http.StatusBadRequest, apierr.CodeInvalidValue, "no evidence has been submitted", "")
		return
	}
	if h.evidence == nil {
		h.sendFailure(c, http.StatusServiceUnavailable, apierr.CodeServiceUnavailable, "evidence gateway is not configured", "Set FILESTORE_PROVIDER=pinata")
		return
	}
	if c.Query("signed") != "true" {
		h.sendSuccess(c, http.StatusOK, models.EvidenceURLResponse{CID: cid, URL: h.evidence.GatewayURL(cid)})
		return
	}

	ttl := 10 * time.Minute
	if secs, err := strconv.Atoi(c.Query("ttl")); err == nil && secs > 0 {
		ttl = time.Duration(secs) * time.Second
	}
	url, err := h.evidence.SignedURL(c.Request.Context(), cid, ttl)
	if err != nil {
		h.sendError(c, err)
		return
	}
	expires := time.Now().Add(ttl).UTC()
	h.sendSuccess(c, http.StatusOK, models.EvidenceURLResponse{CID: cid, URL: url, ExpiresAt: &expires})
}

// HandleTransactionQR renders a QR code for a transaction
// @Summary Transaction QR code
// @Tags Workflows
// @Produce png
// @Param hash path string true "transaction hash"
// @Success 200 {file} binary
// @Router /api/transactions/{hash}/qr [get]
func (h *LinkHandler) HandleTransactionQR(c *gin.Context) {
	png, err := h.qr.TransactionReceipt(c.Param("hash"))
	if err != nil {
		h.sendFailure(c, http.StatusBadRequest, apierr.CodeInvalidValue, err.Error(), "")
		return
	}
	c.Header("Cache-Control", "public, max-age=86400")
	c.Data(http.StatusOK, "image/png", png)
}

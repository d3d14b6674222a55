package api

import (
	"bytes"
	"context"
	"encoding/json"
	"math/big"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"procurement-client/chain"
	"procurement-client/core/procurement"
	"procurement-client/ipfs"
	"procurement-client/metrics"
	"procurement-client/models"
	"procurement-client/repository"
	"procurement-client/services"
	"procurement-client/session"
	"procurement-client/workflow"
)

var contractor = common.HexToAddress("0x00000000000000000000000000000000000000c1")

type fakeSource struct {
	mu       sync.Mutex
	projects []procurement.Project
}

func (f *fakeSource) ContractorsProjects(context.Context, common.Address) ([]procurement.Project, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.projects, nil
}

func (f *fakeSource) SubmittedProjects(context.Context, common.Address) ([]procurement.Project, error) {
	return nil, nil
}

func (f *fakeSource) RejectedMilestones(context.Context, common.Address) ([]procurement.Milestone, error) {
	return nil, nil
}

func (f *fakeSource) AllContractors(context.Context) ([]common.Address, error) {
	return []common.Address{contractor}, nil
}

type minedReceipts struct{}

func (minedReceipts) TransactionReceipt(ctx context.Context, _ common.Hash) (*types.Receipt, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &types.Receipt{Status: types.ReceiptStatusSuccessful, BlockNumber: big.NewInt(3)}, nil
}

func (minedReceipts) BlockNumber(context.Context) (uint64, error) { return 3, nil }

type fakeChain struct {
	mu      sync.Mutex
	submits []string
}

func (c *fakeChain) SubmitProject(_ context.Context, projectID, description, cid string) (*chain.TransactionHandle, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.submits = append(c.submits, projectID+"|"+description+"|"+cid)
	return &chain.TransactionHandle{Hash: common.HexToHash("0x0a"), Function: chain.FnSubmitProject, SubmittedAt: time.Now()}, nil
}

func (c *fakeChain) CreateProject(context.Context, chain.CreateProjectArgs) (*chain.TransactionHandle, error) {
	return &chain.TransactionHandle{Hash: common.HexToHash("0x0b"), Function: chain.FnCreateProject, SubmittedAt: time.Now()}, nil
}

type countingProvider struct {
	mu    sync.Mutex
	calls int
}

func (p *countingProvider) Name() string { return "fake" }

func (p *countingProvider) Add(context.Context, ipfs.File) (string, error) {
	p.mu.Lock()
	p.calls++
	p.mu.Unlock()
	return "bafyapi", nil
}

type testServer struct {
	router   *gin.Engine
	source   *fakeSource
	sess     *session.Controller
	chain    *fakeChain
	provider *countingProvider
}

func newTestServer(t *testing.T, apiKey string) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	sess := session.NewController(context.Background(), session.NewRoleResolver(nil, m))
	sess.Connect(contractor)
	src := &fakeSource{}
	repo := repository.New(src, sess, m)
	t.Cleanup(repo.Close)

	fc := &fakeChain{}
	provider := &countingProvider{}
	tracker := func() *chain.Tracker {
		return chain.NewTracker(minedReceipts{}, chain.TrackerConfig{PollInterval: 2 * time.Millisecond, Timeout: time.Second}, m)
	}

	router := NewRouter(Deps{
		Repository: repo,
		Session:    sess,
		Submissions: workflow.NewSubmission(workflow.SubmissionDeps{
			Account: sess, Uploader: ipfs.NewStore(provider, m), Chain: fc, Tracker: tracker(), Refresher: repo, Metrics: m,
		}),
		Projects: workflow.NewCreateProject(workflow.CreateProjectDeps{
			Account: sess, Chain: fc, Tracker: tracker(), Refresher: repo, Metrics: m,
		}),
		QR:       services.NewQRCodeService(""),
		Health:   services.NewHealthService(),
		Registry: reg,
		APIKey:   apiKey,
	})
	return &testServer{router: router, source: src, sess: sess, chain: fc, provider: provider}
}

func (s *testServer) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) models.APIResponse {
	t.Helper()
	var resp models.APIResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return resp
}

func evidenceRequest(t *testing.T, projectID, description string, files map[string][]byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	require.NoError(t, mw.WriteField("description", description))
	for name, data := range files {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="evidence"; filename="`+name+`"`)
		h.Set("Content-Type", "image/jpeg")
		part, err := mw.CreatePart(h)
		require.NoError(t, err)
		_, err = part.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	req := httptest.NewRequest(http.MethodPost, "/api/projects/"+projectID+"/submission", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func jpeg(size int) []byte {
	data := make([]byte, size)
	copy(data, []byte{0xff, 0xd8, 0xff, 0xe0})
	return data
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, "")

	w := s.do(httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode(t, w)
	assert.True(t, resp.Success)
	data := resp.Data.(map[string]interface{})
	assert.Equal(t, "healthy", data["status"])
	assert.Equal(t, contractor.Hex(), data["account"])
}

func TestProjectsNotLoadedThenLoaded(t *testing.T) {
	s := newTestServer(t, "")
	s.source.projects = []procurement.Project{{ID: "1", Description: "road"}}

	w := s.do(httptest.NewRequest(http.MethodGet, "/api/projects", nil))
	require.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "NOT_LOADED", decode(t, w).Error.Error)

	w = s.do(httptest.NewRequest(http.MethodGet, "/api/projects/1", nil))
	require.Equal(t, http.StatusConflict, w.Code, "an unloaded project is not reported as missing")
	assert.Equal(t, "NOT_LOADED", decode(t, w).Error.Error)

	w = s.do(httptest.NewRequest(http.MethodGet, "/api/projects?refresh=true", nil))
	require.Equal(t, http.StatusOK, w.Code)
	data := decode(t, w).Data.(map[string]interface{})
	assert.EqualValues(t, 1, data["total_count"])

	w = s.do(httptest.NewRequest(http.MethodGet, "/api/projects/1", nil))
	require.Equal(t, http.StatusOK, w.Code)
	w = s.do(httptest.NewRequest(http.MethodGet, "/api/projects/2", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(httptest.NewRequest(http.MethodGet, "/api/projects/stats", nil))
	require.Equal(t, http.StatusOK, w.Code)
	stats := decode(t, w).Data.(map[string]interface{})
	assert.EqualValues(t, 1, stats["active"])
}

func TestLoadedEmptyIsNotAnError(t *testing.T) {
	s := newTestServer(t, "")

	w := s.do(httptest.NewRequest(http.MethodGet, "/api/submissions?refresh=1", nil))
	require.Equal(t, http.StatusOK, w.Code)
	data := decode(t, w).Data.(map[string]interface{})
	assert.EqualValues(t, 0, data["total_count"])
}

func TestAPIKey(t *testing.T) {
	s := newTestServer(t, "k3y")

	w := s.do(httptest.NewRequest(http.MethodGet, "/api/session", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/session", nil)
	req.Header.Set("X-API-Key", "wrong")
	assert.Equal(t, http.StatusForbidden, s.do(req).Code)

	req = httptest.NewRequest(http.MethodGet, "/api/session", nil)
	req.Header.Set("Authorization", "Bearer k3y")
	assert.Equal(t, http.StatusOK, s.do(req).Code)

	assert.Equal(t, http.StatusOK, s.do(httptest.NewRequest(http.MethodGet, "/health", nil)).Code, "health stays open")
}

func TestSubmitEvidence(t *testing.T) {
	s := newTestServer(t, "")

	w := s.do(evidenceRequest(t, "42", "walls up", map[string][]byte{"site.jpg": jpeg(4096)}))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	data := decode(t, w).Data.(map[string]interface{})
	assert.Equal(t, string(workflow.StateDone), data["state"])
	assert.Equal(t, "bafyapi", data["evidence_cid"])
	assert.Equal(t, []string{"42|walls up|bafyapi"}, s.chain.submits)

	w = s.do(httptest.NewRequest(http.MethodGet, "/api/workflows/submission", nil))
	require.Equal(t, http.StatusOK, w.Code)

	w = s.do(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "procurement_evidence_uploads_total")
}

func TestSubmitEvidenceValidation(t *testing.T) {
	s := newTestServer(t, "")

	w := s.do(evidenceRequest(t, "x1", "", nil))
	require.Equal(t, http.StatusBadRequest, w.Code)
	resp := decode(t, w)
	assert.Equal(t, "VALIDATION_FAILED", resp.Error.Error)
	fields := resp.Error.Fields["validation_errors"].(map[string]interface{})
	assert.Contains(t, fields, "project_id")
	assert.Contains(t, fields, "description")
	assert.Contains(t, fields, "evidence")
	assert.Empty(t, s.chain.submits)
}

func TestSubmitEvidenceTooLarge(t *testing.T) {
	s := newTestServer(t, "")

	w := s.do(evidenceRequest(t, "42", "walls up", map[string][]byte{"huge.jpg": jpeg(2 << 20)}))
	require.Equal(t, http.StatusBadRequest, w.Code)
	resp := decode(t, w)
	assert.Equal(t, "UPLOAD_FAILED", resp.Error.Error)
	assert.Contains(t, resp.Error.Message, "larger than 1 MB")
	assert.Zero(t, s.provider.calls, "oversize files never reach the provider")
}

func TestWritesRequireWallet(t *testing.T) {
	s := newTestServer(t, "")
	s.sess.Disconnect()

	w := s.do(evidenceRequest(t, "42", "walls up", map[string][]byte{"site.jpg": jpeg(64)}))
	require.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "WALLET_NOT_CONNECTED", decode(t, w).Error.Error)

	body := strings.NewReader(`{"description":"x"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/projects", body)
	req.Header.Set("Content-Type", "application/json")
	assert.Equal(t, http.StatusUnauthorized, s.do(req).Code)
}

func TestCreateProject(t *testing.T) {
	s := newTestServer(t, "")

	body := `{"description":"clinic","budget":"900","contractor_address":"` + contractor.Hex() + `","start_date":"2026-02-01","end_date":"2026-06-01"}`
	req := httptest.NewRequest(http.MethodPost, "/api/projects", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := s.do(req)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	req = httptest.NewRequest(http.MethodPost, "/api/projects", strings.NewReader(`{"start_date":"June"}`))
	req.Header.Set("Content-Type", "application/json")
	assert.Equal(t, http.StatusBadRequest, s.do(req).Code)
}

func TestRetryWithoutFailure(t *testing.T) {
	s := newTestServer(t, "")

	w := s.do(httptest.NewRequest(http.MethodPost, "/api/workflows/submission/retry", nil))
	assert.Equal(t, http.StatusConflict, w.Code)
	w = s.do(httptest.NewRequest(http.MethodPost, "/api/workflows/other/retry", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestResolveRole(t *testing.T) {
	s := newTestServer(t, "")

	req := httptest.NewRequest(http.MethodPost, "/api/session/role", strings.NewReader(`{"path":"/assignContract"}`))
	req.Header.Set("Content-Type", "application/json")
	w := s.do(req)
	require.Equal(t, http.StatusOK, w.Code)
	data := decode(t, w).Data.(map[string]interface{})
	assert.Equal(t, "agency", data["role"])
	assert.Equal(t, procurement.RoleAgency, s.sess.Snapshot().Role)
}

func TestEvidenceWithoutGateway(t *testing.T) {
	s := newTestServer(t, "")

	w := s.do(httptest.NewRequest(http.MethodGet, "/api/evidence/bafyx", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestTransactionQR(t *testing.T) {
	s := newTestServer(t, "")

	w := s.do(httptest.NewRequest(http.MethodGet, "/api/transactions/0xabc/qr", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte("\x89PNG")))
}

func TestSwaggerDoc(t *testing.T) {
	s := newTestServer(t, "")

	w := s.do(httptest.NewRequest(http.MethodGet, "/swagger/doc.json", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var doc map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &doc))
	paths := doc["paths"].(map[string]interface{})
	assert.Contains(t, paths, "/api/projects/{id}/submission")
}

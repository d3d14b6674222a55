// Package api wires the HTTP handlers into a gin engine.
package api

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/swaggo/swag"

	_ "procurement-client/docs"
	"procurement-client/handlers"
	"procurement-client/middleware"
	"procurement-client/repository"
	"procurement-client/services"
	"procurement-client/session"
	"procurement-client/workflow"
)

// Deps are what the routes call into. Evidence may be nil.
type Deps struct {
	Repository  *repository.Repository
	Session     *session.Controller
	Submissions *workflow.SubmissionWorkflow
	Projects    *workflow.CreateProjectWorkflow
	Evidence    handlers.EvidenceLinker
	QR          *services.QRCodeService
	Health      *services.HealthService
	Registry    *prometheus.Registry
	APIKey      string
}

// NewRouter builds the engine with every route registered.
func NewRouter(deps Deps) *gin.Engine {
	r := gin.New()
	r.Use(middleware.Recovery(), middleware.Logging(), middleware.SecurityHeaders())
	r.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:    []string{"Origin", "Content-Type", "Authorization", "X-API-Key"},
		MaxAge:          12 * time.Hour,
	}))
	r.MaxMultipartMemory = 8 << 20

	health := handlers.NewHealthHandler(deps.Health, deps.Session)
	r.GET("/health", health.HandleHealth)
	if deps.Registry != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Registry, promhttp.HandlerOpts{})))
	}
	r.GET("/swagger/doc.json", func(c *gin.Context) {
		doc, err := swag.ReadDoc()
		if err != nil {
			c.String(http.StatusInternalServerError, err.Error())
			return
		}
		c.Data(http.StatusOK, "application/json; charset=utf-8", []byte(doc))
	})

	apiGroup := r.Group("/api", middleware.APIKey(deps.APIKey))

	projects := handlers.NewProjectHandler(deps.Repository)
	apiGroup.POST("/refresh", projects.HandleRefresh)
	apiGroup.GET("/projects", projects.HandleListProjects)
	apiGroup.GET("/projects/stats", projects.HandleStats)
	apiGroup.GET("/projects/:id", projects.HandleGetProject)
	apiGroup.GET("/submissions", projects.HandleListSubmissions)
	apiGroup.GET("/milestones/rejected", projects.HandleListRejected)
	apiGroup.GET("/contractors", projects.HandleListContractors)

	sess := handlers.NewSessionHandler(deps.Session)
	apiGroup.GET("/session", sess.HandleGetSession)
	apiGroup.POST("/session/role", sess.HandleResolveRole)

	links := handlers.NewLinkHandler(deps.Evidence, deps.QR)
	apiGroup.GET("/evidence/:cid", links.HandleEvidenceURL)
	apiGroup.GET("/transactions/:hash/qr", links.HandleTransactionQR)

	wf := handlers.NewWorkflowHandler(deps.Submissions, deps.Projects)
	apiGroup.GET("/workflows/:kind", wf.HandleStatus)
	writes := apiGroup.Group("", middleware.RequireAccount(deps.Session))
	writes.POST("/projects", wf.HandleCreateProject)
	writes.POST("/projects/:id/submission", wf.HandleSubmitEvidence)
	writes.POST("/workflows/:kind/retry", wf.HandleRetry)

	return r
}

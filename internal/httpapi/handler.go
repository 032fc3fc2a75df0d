package httpapi

import (
	"net/http"

	"cnec-platform/pkg/middleware"
	"cnec-platform/pkg/objectstore"
	"cnec-platform/pkg/task"
	"cnec-platform/services/application"
	"cnec-platform/services/campaign"
	"cnec-platform/services/deadline"
	"cnec-platform/services/ledger"
	"cnec-platform/services/submission"
	"cnec-platform/services/withdrawal"

	"github.com/gin-gonic/gin"
	"go.uber.org/fx"
)

var Module = fx.Module("httpapi",
	fx.Provide(NewHandler, NewRouter),
)

type Handler struct {
	campaigns   *campaign.Service
	apps        *application.Service
	submissions *submission.Service
	ledger      *ledger.Service
	withdrawals *withdrawal.Service
	deadlines   *deadline.Service
	store       *objectstore.Store
	enqueuer    task.Enqueuer
}

type HandlerParams struct {
	fx.In
	Campaigns   *campaign.Service
	Apps        *application.Service
	Submissions *submission.Service
	Ledger      *ledger.Service
	Withdrawals *withdrawal.Service
	Deadlines   *deadline.Service
	Store       *objectstore.Store `optional:"true"`
	Enqueuer    task.Enqueuer      `optional:"true"`
}

func NewHandler(p HandlerParams) *Handler {
	return &Handler{
		campaigns:   p.Campaigns,
		apps:        p.Apps,
		submissions: p.Submissions,
		ledger:      p.Ledger,
		withdrawals: p.Withdrawals,
		deadlines:   p.Deadlines,
		store:       p.Store,
		enqueuer:    p.Enqueuer,
	}
}

// NewRouter builds the gin engine with the error-mapping and identity
// middleware and every v1 route.
func NewRouter(h *Handler) http.Handler {
	r := gin.New()
	r.Use(gin.Recovery(), middleware.Error(), middleware.Identity())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := r.Group("/v1")
	{
		v1.GET("/campaigns", h.listCampaigns)
		v1.GET("/campaigns/:id", h.getCampaign)
		v1.GET("/campaigns/:id/applications", h.listCampaignApplications)

		v1.POST("/applications", h.createApplication)
		v1.GET("/applications/:id", h.getApplication)
		v1.POST("/applications/:id/decision", h.decideApplication)
		v1.GET("/applications/:id/revisions", h.listPendingRevisions)
		v1.GET("/applications/:id/deadlines", h.listDeadlines)
		v1.PUT("/applications/:id/deadlines", h.overrideDeadline)
		v1.POST("/applications/:id/slots/:slot/submissions", h.submitVideo)
		v1.GET("/applications/:id/slots/:slot/current", h.currentSubmission)
		v1.GET("/applications/:id/slots/:slot/versions", h.listVersions)
		v1.POST("/applications/:id/slots/:slot/posting", h.recordPosting)

		v1.POST("/submissions/:id/revision", h.requestRevision)
		v1.POST("/submissions/:id/approve", h.approveSubmission)
		v1.GET("/submissions/:id/download", h.downloadSubmission)

		v1.GET("/users/:id/balance", h.getBalance)
		v1.GET("/users/:id/transactions", h.listTransactions)
		v1.GET("/users/:id/applications", h.listUserApplications)
		v1.GET("/users/:id/withdrawals", h.listUserWithdrawals)

		v1.POST("/withdrawals", h.requestWithdrawal)
		v1.GET("/withdrawals/:id", h.getWithdrawal)
		v1.POST("/withdrawals/:id/resolve", h.resolveWithdrawal)

		v1.POST("/uploads/presign", h.presignUpload)

		v1.POST("/reminders/dispatch", h.dispatchReminders)
	}

	return r
}

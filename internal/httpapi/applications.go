package httpapi

import (
	"net/http"
	"time"

	"cnec-platform/pkg/errutil"
	"cnec-platform/pkg/middleware"
	"cnec-platform/services/application"
	"cnec-platform/services/campaign"
	"cnec-platform/services/submission"

	"github.com/gin-gonic/gin"
)

type createApplicationRequest struct {
	CampaignID string `json:"campaign_id" binding:"required"`
	Pitch      string `json:"pitch"`
}

func (h *Handler) createApplication(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.Error(errutil.Unauthorized("missing identity", nil))
		return
	}

	var req createApplicationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(errutil.BadRequest("invalid request body", err, errutil.WithErr(err)))
		return
	}

	app, err := h.apps.Create(c.Request.Context(), application.CreateParams{
		CampaignID: req.CampaignID,
		UserID:     userID,
		Pitch:      req.Pitch,
	})
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, app)
}

func (h *Handler) getApplication(c *gin.Context) {
	app, err := h.apps.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, app)
}

type decisionRequest struct {
	Decision string `json:"decision" binding:"required"`
	Reason   string `json:"reason"`
}

func (h *Handler) decideApplication(c *gin.Context) {
	var req decisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(errutil.BadRequest("invalid request body", err, errutil.WithErr(err)))
		return
	}

	app, err := h.apps.Decide(c.Request.Context(), c.Param("id"), application.Decision(req.Decision), req.Reason)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, app)
}

// listPendingRevisions is the creator's rework feed.
func (h *Handler) listPendingRevisions(c *gin.Context) {
	subs, err := h.submissions.PendingRevisions(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"revisions": subs})
}

func (h *Handler) listUserApplications(c *gin.Context) {
	apps, err := h.apps.ListByUser(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"applications": apps})
}

func (h *Handler) listCampaignApplications(c *gin.Context) {
	apps, err := h.apps.ListByCampaign(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"applications": apps})
}

func (h *Handler) listDeadlines(c *gin.Context) {
	deadlines, err := h.deadlines.Deadlines(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deadlines": deadlines})
}

type overrideDeadlineRequest struct {
	Slot string    `json:"slot" binding:"required"`
	Kind string    `json:"kind" binding:"required"`
	At   time.Time `json:"at" binding:"required"`
}

func (h *Handler) overrideDeadline(c *gin.Context) {
	var req overrideDeadlineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(errutil.BadRequest("invalid request body", err, errutil.WithErr(err)))
		return
	}

	kind := campaign.DeadlineKind(req.Kind)
	if kind != campaign.DeadlineVideo && kind != campaign.DeadlineSNS {
		c.Error(errutil.BadRequest("unknown deadline kind", nil))
		return
	}

	app, err := h.apps.OverrideDeadline(c.Request.Context(), c.Param("id"), campaign.Slot(req.Slot), kind, req.At)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, app)
}

type submitVideoRequest struct {
	FileReference      string `json:"file_reference" binding:"required"`
	FileName           string `json:"file_name"`
	FileSize           int64  `json:"file_size"`
	CleanFileReference string `json:"clean_file_reference"`
}

func (h *Handler) submitVideo(c *gin.Context) {
	var req submitVideoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(errutil.BadRequest("invalid request body", err, errutil.WithErr(err)))
		return
	}

	sub, err := h.submissions.Submit(c.Request.Context(), submission.SubmitParams{
		ApplicationID:      c.Param("id"),
		Slot:               campaign.Slot(c.Param("slot")),
		FileReference:      req.FileReference,
		FileName:           req.FileName,
		FileSize:           req.FileSize,
		CleanFileReference: req.CleanFileReference,
	})
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, sub)
}

func (h *Handler) currentSubmission(c *gin.Context) {
	sub, err := h.submissions.Current(c.Request.Context(), c.Param("id"), campaign.Slot(c.Param("slot")))
	if err != nil {
		c.Error(err)
		return
	}
	if sub == nil {
		c.Error(errutil.NotFound("slot has no submission", nil))
		return
	}
	c.JSON(http.StatusOK, sub)
}

func (h *Handler) listVersions(c *gin.Context) {
	subs, err := h.submissions.Versions(c.Request.Context(), c.Param("id"), campaign.Slot(c.Param("slot")))
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"versions": subs})
}

type recordPostingRequest struct {
	PostURL string `json:"post_url" binding:"required"`
}

func (h *Handler) recordPosting(c *gin.Context) {
	var req recordPostingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(errutil.BadRequest("invalid request body", err, errutil.WithErr(err)))
		return
	}

	posting, err := h.apps.RecordPosting(c.Request.Context(), c.Param("id"), campaign.Slot(c.Param("slot")), req.PostURL)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, posting)
}

type revisionRequest struct {
	Comment string `json:"comment" binding:"required"`
}

func (h *Handler) requestRevision(c *gin.Context) {
	var req revisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(errutil.BadRequest("invalid request body", err, errutil.WithErr(err)))
		return
	}

	sub, err := h.submissions.RequestRevision(c.Request.Context(), c.Param("id"), req.Comment)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, sub)
}

func (h *Handler) approveSubmission(c *gin.Context) {
	sub, err := h.submissions.Approve(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, sub)
}

// downloadSubmission resolves the stored file reference into a short-lived
// GET URL for reviewers.
func (h *Handler) downloadSubmission(c *gin.Context) {
	if h.store == nil {
		c.Error(errutil.NotImplemented("object storage is not configured", nil))
		return
	}

	sub, err := h.submissions.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.Error(err)
		return
	}

	url, err := h.store.PresignDownload(c.Request.Context(), sub.FileReference, presignExpiry)
	if err != nil {
		c.Error(errutil.Internal("failed to presign download", err, errutil.WithErr(err)))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"download_url": url,
		"expires_in":   presignExpiry.Seconds(),
	})
}

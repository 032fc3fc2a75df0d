package httpapi

import (
	"fmt"
	"net/http"
	"time"

	"cnec-platform/pkg/errutil"
	"cnec-platform/pkg/middleware"
	"cnec-platform/services/campaign"

	"github.com/gin-gonic/gin"
)

func (h *Handler) listCampaigns(c *gin.Context) {
	campaigns, err := h.campaigns.List(c.Request.Context(), campaign.Status(c.Query("status")))
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"campaigns": campaigns})
}

func (h *Handler) getCampaign(c *gin.Context) {
	result, err := h.campaigns.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, result)
}

type presignRequest struct {
	FileName string `json:"file_name" binding:"required"`
}

const presignExpiry = 15 * time.Minute

func (h *Handler) presignUpload(c *gin.Context) {
	if h.store == nil {
		c.Error(errutil.NotImplemented("object storage is not configured", nil))
		return
	}

	userID, ok := middleware.UserID(c)
	if !ok {
		c.Error(errutil.Unauthorized("missing identity", nil))
		return
	}

	var req presignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(errutil.BadRequest("invalid request body", err, errutil.WithErr(err)))
		return
	}

	objectName := fmt.Sprintf("%s/%d-%s", userID, time.Now().UnixNano(), req.FileName)
	ref, url, err := h.store.PresignUpload(c.Request.Context(), objectName, presignExpiry)
	if err != nil {
		c.Error(errutil.Internal("failed to presign upload", err, errutil.WithErr(err)))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"file_reference": ref,
		"upload_url":     url,
		"expires_in":     presignExpiry.Seconds(),
	})
}

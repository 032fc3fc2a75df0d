package httpapi

import (
	"net/http"

	"cnec-platform/pkg/errutil"
	"cnec-platform/pkg/middleware"
	"cnec-platform/services/withdrawal"

	"github.com/gin-gonic/gin"
	"gorm.io/datatypes"
)

func (h *Handler) getBalance(c *gin.Context) {
	userID := c.Param("id")
	balance, err := h.ledger.Balance(c.Request.Context(), userID)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user_id": userID, "balance": balance})
}

func (h *Handler) listTransactions(c *gin.Context) {
	entries, err := h.ledger.Transactions(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"transactions": entries})
}

type withdrawalRequest struct {
	Amount      int64          `json:"amount" binding:"required"`
	Destination datatypes.JSON `json:"destination"`
}

func (h *Handler) requestWithdrawal(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.Error(errutil.Unauthorized("missing identity", nil))
		return
	}

	var req withdrawalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(errutil.BadRequest("invalid request body", err, errutil.WithErr(err)))
		return
	}

	w, err := h.withdrawals.Request(c.Request.Context(), withdrawal.RequestParams{
		UserID:      userID,
		Amount:      req.Amount,
		Destination: req.Destination,
	})
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, w)
}

func (h *Handler) getWithdrawal(c *gin.Context) {
	w, err := h.withdrawals.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, w)
}

func (h *Handler) listUserWithdrawals(c *gin.Context) {
	reqs, err := h.withdrawals.ListByUser(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"withdrawals": reqs})
}

type resolveWithdrawalRequest struct {
	Outcome string `json:"outcome" binding:"required"`
	Reason  string `json:"reason"`
}

func (h *Handler) resolveWithdrawal(c *gin.Context) {
	var req resolveWithdrawalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(errutil.BadRequest("invalid request body", err, errutil.WithErr(err)))
		return
	}

	w, err := h.withdrawals.Resolve(c.Request.Context(), c.Param("id"), withdrawal.ResolveParams{
		Outcome: withdrawal.Status(req.Outcome),
		Reason:  req.Reason,
	})
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, w)
}

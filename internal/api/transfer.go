package api

import (
	"net/http"

	"handoff-service/internal/service"

	"github.com/gin-gonic/gin"
)

type issueTransferRequest struct {
	CartID int64 `json:"cartId"`
}

func (h *Handler) issueTransfer(c *gin.Context) {
	var req issueTransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "invalid request body")
		return
	}

	transfer, err := h.svc.Transfers.Issue(c.Request.Context(), req.CartID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, transfer)
}

func (h *Handler) lookupTransfer(c *gin.Context) {
	code := c.Query("code")
	if code == "" {
		h.badRequest(c, "code is required")
		return
	}

	lookup, err := h.svc.Transfers.Lookup(c.Request.Context(), principal(c), code)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, lookup)
}

// actOnTransfer confirms or cancels a pending transfer.
func (h *Handler) actOnTransfer(c *gin.Context) {
	var req service.TransferActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "invalid request body")
		return
	}

	ctx := c.Request.Context()
	actor := principal(c)

	switch req.Action {
	case service.ActionConfirm:
		result, err := h.svc.Transfers.Confirm(ctx, actor, req.TransferID, req.StaffID, req.PaymentMethod)
		if err != nil {
			h.respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"orderId": result.Order.ID,
			"order":   result.Order,
			"items":   result.Items,
		})

	case service.ActionCancel:
		transfer, err := h.svc.Transfers.Cancel(ctx, actor, req.TransferID, req.StaffID)
		if err != nil {
			h.respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, transfer)

	case "":
		h.badRequest(c, "action is required")

	default:
		h.badRequest(c, "action must be confirm or cancel")
	}
}

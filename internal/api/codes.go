package api

import (
	"net/http"
	"strconv"

	"handoff-service/internal/service"

	"github.com/gin-gonic/gin"
)

func (h *Handler) activeJoinCode(c *gin.Context) {
	storeID, err := queryID(c, "storeId")
	if err != nil {
		h.respondError(c, err)
		return
	}

	jc, err := h.svc.JoinCodes.Active(c.Request.Context(), principal(c), storeID, c.Query("role"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, jc)
}

func (h *Handler) issueJoinCode(c *gin.Context) {
	var req service.IssueJoinCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "invalid request body")
		return
	}

	jc, err := h.svc.JoinCodes.Issue(c.Request.Context(), principal(c), &req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, jc)
}

func (h *Handler) verifyJoinCode(c *gin.Context) {
	var req service.VerifyJoinCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "invalid request body")
		return
	}

	res, err := h.svc.JoinCodes.Verify(c.Request.Context(), principal(c), &req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) currentStaffCode(c *gin.Context) {
	storeID, err := queryID(c, "storeId")
	if err != nil {
		h.respondError(c, err)
		return
	}

	code, err := h.svc.StaffCodes.Current(c.Request.Context(), principal(c), storeID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, code)
}

func (h *Handler) verifyStaffCode(c *gin.Context) {
	var req service.VerifyStaffCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "invalid request body")
		return
	}

	if err := h.svc.StaffCodes.Verify(&req); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"valid": true, "storeId": req.StoreID})
}

func (h *Handler) listAudit(c *gin.Context) {
	storeID, err := queryID(c, "storeId")
	if err != nil {
		h.respondError(c, err)
		return
	}
	limit, _ := strconv.Atoi(c.Query("limit"))

	entries, err := h.svc.Audit.List(c.Request.Context(), principal(c), storeID, limit)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries})
}

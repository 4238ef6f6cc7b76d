package api

import (
	"net/http"

	"handoff-service/internal/service"

	"github.com/gin-gonic/gin"
)

// viewCart prices a cart, by cartId or by (session, storeId).
func (h *Handler) viewCart(c *gin.Context) {
	ctx := c.Request.Context()

	if c.Query("cartId") != "" {
		cartID, err := queryID(c, "cartId")
		if err != nil {
			h.respondError(c, err)
			return
		}
		view, err := h.svc.Carts.View(ctx, cartID)
		if err != nil {
			h.respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, view)
		return
	}

	session := c.Query("session")
	if session == "" {
		h.badRequest(c, "session is required")
		return
	}
	storeID, err := queryID(c, "storeId")
	if err != nil {
		h.respondError(c, err)
		return
	}

	view, err := h.svc.Carts.ViewSession(ctx, session, storeID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *Handler) addCartItem(c *gin.Context) {
	var req service.AddItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "invalid request body")
		return
	}

	item, err := h.svc.Carts.AddItem(c.Request.Context(), &req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"item": item})
}

func (h *Handler) updateCartItem(c *gin.Context) {
	var req service.UpdateItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "invalid request body")
		return
	}

	item, err := h.svc.Carts.UpdateItem(c.Request.Context(), &req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"item": item, "removed": item == nil})
}

func (h *Handler) removeCartItem(c *gin.Context) {
	itemID, err := queryID(c, "itemId")
	if err != nil {
		h.respondError(c, err)
		return
	}

	if err := h.svc.Carts.RemoveItem(c.Request.Context(), c.Query("session"), itemID); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"removed": true})
}

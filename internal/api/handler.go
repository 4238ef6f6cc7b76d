package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"handoff-service/internal/codes"
	"handoff-service/internal/models"
	"handoff-service/internal/redisclient"
	"handoff-service/internal/service"
	"handoff-service/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

type CartService interface {
	AddItem(ctx context.Context, req *service.AddItemRequest) (*models.CartItem, error)
	UpdateItem(ctx context.Context, req *service.UpdateItemRequest) (*models.CartItem, error)
	RemoveItem(ctx context.Context, sessionID string, itemID int64) error
	View(ctx context.Context, cartID int64) (*service.CartView, error)
	ViewSession(ctx context.Context, sessionID string, storeID int64) (*service.CartView, error)
}

type TransferService interface {
	Issue(ctx context.Context, cartID int64) (*models.TransferCode, error)
	Lookup(ctx context.Context, actor service.Principal, code string) (*service.TransferLookup, error)
	Confirm(ctx context.Context, actor service.Principal, transferID int64, staffID *int64, paymentMethod string) (*service.ConfirmResult, error)
	Cancel(ctx context.Context, actor service.Principal, transferID int64, staffID *int64) (*models.TransferCode, error)
}

type JoinCodeService interface {
	Issue(ctx context.Context, actor service.Principal, req *service.IssueJoinCodeRequest) (*models.JoinCode, error)
	Active(ctx context.Context, actor service.Principal, storeID int64, role string) (*models.JoinCode, error)
	Verify(ctx context.Context, actor service.Principal, req *service.VerifyJoinCodeRequest) (*service.JoinCodeVerification, error)
}

type StaffCodeService interface {
	Current(ctx context.Context, actor service.Principal, storeID int64) (codes.StaffCode, error)
	Verify(req *service.VerifyStaffCodeRequest) error
}

type AuditService interface {
	List(ctx context.Context, actor service.Principal, storeID int64, limit int) ([]models.AuditEntry, error)
}

// AttemptLimiter counts code verification attempts.
type AttemptLimiter interface {
	RegisterAttempt(ctx context.Context, key string, max int, window time.Duration) (redisclient.Attempt, error)
	ResetAttempts(ctx context.Context, key string) error
}

// Services groups the domain services the handlers call.
type Services struct {
	Carts      CartService
	Transfers  TransferService
	JoinCodes  JoinCodeService
	StaffCodes StaffCodeService
	Audit      AuditService
}

// Options configures authentication, attempt limiting and readiness.
type Options struct {
	JWTSecret     []byte
	Limiter       AttemptLimiter
	MaxAttempts   int
	AttemptWindow time.Duration
	ReadyChecks   map[string]func(context.Context) error
}

// Handler contains HTTP handlers
type Handler struct {
	svc    Services
	opts   Options
	logger *zap.Logger
}

// NewHandler creates a new HTTP handler
func NewHandler(svc Services, opts Options) *Handler {
	return &Handler{
		svc:    svc,
		opts:   opts,
		logger: util.GetLogger(),
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	routes := router.Group("/", authenticate(h.opts.JWTSecret))
	{
		routes.GET("/cart", h.viewCart)
		routes.POST("/cart", h.addCartItem)
		routes.PUT("/cart", h.updateCartItem)
		routes.DELETE("/cart", h.removeCartItem)

		routes.POST("/transfer", h.issueTransfer)
		routes.GET("/transfer", h.limitAttempts("transfer_lookup", false), h.lookupTransfer)
		routes.PUT("/transfer", h.actOnTransfer)

		routes.GET("/join-code", h.activeJoinCode)
		routes.POST("/join-code", h.issueJoinCode)
		routes.POST("/join-code/verify", h.limitAttempts("join_code", true), h.verifyJoinCode)

		routes.GET("/staff-code", h.currentStaffCode)
		routes.POST("/staff-code", h.limitAttempts("staff_code", true), h.verifyStaffCode)

		routes.GET("/audit", h.listAudit)
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck pings every dependency and reports the ones that failed.
func (h *Handler) readinessCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	failed := gin.H{}
	for name, check := range h.opts.ReadyChecks {
		if err := check(ctx); err != nil {
			h.logger.Warn("Readiness check failed", zap.String("dependency", name), zap.Error(err))
			failed[name] = err.Error()
		}
	}

	if len(failed) > 0 {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "unavailable",
			"failed": failed,
			"time":   time.Now().Unix(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Inc()
	}
}

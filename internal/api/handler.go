package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"marketplace-core/internal/models"
	"marketplace-core/internal/service"
	"marketplace-core/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handler contains HTTP handlers
type Handler struct {
	listingService    *service.ListingService
	orderService      *service.OrderService
	enrollmentService *service.EnrollmentService
	reportService     *service.ReportService
}

// NewHandler creates a new HTTP handler
func NewHandler(
	listingService *service.ListingService,
	orderService *service.OrderService,
	enrollmentService *service.EnrollmentService,
	reportService *service.ReportService,
) *Handler {
	return &Handler{
		listingService:    listingService,
		orderService:      orderService,
		enrollmentService: enrollmentService,
		reportService:     reportService,
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(gin.Logger())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	{
		v1.GET("/listings/:id", h.getListing)
		v1.POST("/listings/:id/moderation", h.moderateListing)

		v1.POST("/orders", h.createOrder)
		v1.GET("/orders/:id", h.getOrder)
		v1.POST("/orders/:id/verify", h.verifyPayment)

		v1.POST("/enrollments/free", h.enrollFree)

		v1.POST("/reports", h.fileReport)
		v1.GET("/reports", h.listReports)
		v1.GET("/reports/:id", h.getReport)
		v1.POST("/reports/:id", h.triageReport)
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck handles readiness check requests
func (h *Handler) readinessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

// getListing handles get listing by ID
func (h *Handler) getListing(c *gin.Context) {
	listing, err := h.listingService.GetListing(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, listing)
}

type moderateRequest struct {
	Action string `json:"action" binding:"required"`
}

// moderateListing handles admin moderation transitions
func (h *Handler) moderateListing(c *gin.Context) {
	var req moderateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	listingID := c.Param("id")
	status, err := h.listingService.Moderate(c.Request.Context(), listingID, models.ModerationAction(req.Action))
	if err != nil {
		// The conflict response carries the status the listing actually
		// holds, so admin UIs can resync without another read.
		if errors.Is(err, models.ErrInvalidTransition) && status != "" {
			c.JSON(http.StatusConflict, gin.H{
				"error":          "Invalid transition",
				"details":        err.Error(),
				"current_status": status,
			})
			return
		}
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"listing_id": listingID,
		"status":     status,
	})
}

// createOrder handles order creation
func (h *Handler) createOrder(c *gin.Context) {
	var req service.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	if req.IdempotencyKey == "" {
		req.IdempotencyKey = c.GetHeader("Idempotency-Key")
	}

	resp, err := h.orderService.CreateOrder(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, resp)
}

// getOrder handles get order by ID
func (h *Handler) getOrder(c *gin.Context) {
	order, purchases, err := h.orderService.GetOrder(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"order":     order,
		"purchases": purchases,
	})
}

type verifyPaymentRequest struct {
	ExternalPaymentRef string `json:"external_payment_ref" binding:"required"`
	Signature          string `json:"signature" binding:"required"`
}

// verifyPayment handles the payment confirmation callback
func (h *Handler) verifyPayment(c *gin.Context) {
	var req verifyPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	result, err := h.orderService.VerifyPayment(c.Request.Context(), c.Param("id"), req.ExternalPaymentRef, req.Signature)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

type enrollFreeRequest struct {
	UserID    string `json:"user_id" binding:"required"`
	ListingID string `json:"listing_id" binding:"required"`
}

// enrollFree handles free listing enrollment
func (h *Handler) enrollFree(c *gin.Context) {
	var req enrollFreeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	purchase, err := h.enrollmentService.EnrollFree(c.Request.Context(), req.UserID, req.ListingID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"purchase": purchase})
}

// fileReport handles filing a fraud report
func (h *Handler) fileReport(c *gin.Context) {
	var req service.FileReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	report, err := h.reportService.FileReport(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, report)
}

// listReports handles listing reports for the admin panel
func (h *Handler) listReports(c *gin.Context) {
	reports, err := h.reportService.ListReports(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"reports": reports})
}

// getReport handles get report by ID
func (h *Handler) getReport(c *gin.Context) {
	report, err := h.reportService.GetReport(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// triageReport handles an admin update to a report
func (h *Handler) triageReport(c *gin.Context) {
	var req service.TriageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	result, err := h.reportService.Triage(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// respondError maps domain errors onto HTTP status codes
func respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError

	switch {
	case errors.Is(err, models.ErrValidation),
		errors.Is(err, models.ErrUnknownAction),
		errors.Is(err, models.ErrCommentRequired),
		errors.Is(err, models.ErrNotFree),
		errors.Is(err, models.ErrNotChargeable),
		errors.Is(err, models.ErrCurrencyMismatch):
		status = http.StatusBadRequest
	case errors.Is(err, models.ErrSignatureMismatch):
		status = http.StatusUnauthorized
	case errors.Is(err, models.ErrListingNotFound),
		errors.Is(err, models.ErrOrderNotFound),
		errors.Is(err, models.ErrReportNotFound):
		status = http.StatusNotFound
	case errors.Is(err, models.ErrAlreadyPurchased),
		errors.Is(err, models.ErrListingNotPurchasable),
		errors.Is(err, models.ErrInvalidTransition),
		errors.Is(err, models.ErrOrderFinalized),
		errors.Is(err, models.ErrReportFinalized):
		status = http.StatusConflict
	case errors.Is(err, models.ErrOrderExpired):
		status = http.StatusGone
	case errors.Is(err, models.ErrGateway):
		status = http.StatusBadGateway
	}

	c.JSON(status, gin.H{"error": err.Error()})
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

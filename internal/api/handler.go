package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"ice-inventory/internal/service"
	"ice-inventory/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ReadyCheck reports whether a dependency can serve traffic
type ReadyCheck func(ctx context.Context) error

// Handler contains HTTP handlers
type Handler struct {
	orderService *service.OrderService
	stockService *service.StockService
	readyChecks  map[string]ReadyCheck
}

// NewHandler creates a new HTTP handler
func NewHandler(orderService *service.OrderService, stockService *service.StockService) *Handler {
	return &Handler{
		orderService: orderService,
		stockService: stockService,
		readyChecks:  map[string]ReadyCheck{},
	}
}

// AddReadyCheck registers a dependency checked by /ready
func (h *Handler) AddReadyCheck(name string, check ReadyCheck) {
	h.readyChecks[name] = check
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
		v1.POST("/orders", h.createOrder)
		v1.GET("/orders", h.listOrders)
		v1.GET("/orders/:id", h.getOrder)
		v1.PATCH("/orders/:id/status", h.updateOrderStatus)
		v1.PATCH("/orders/:id/archive", h.archiveOrder)

		v1.POST("/inventory", h.createStockItem)
		v1.GET("/inventory", h.listStockItems)
		v1.GET("/inventory/availability", h.availability)
		v1.GET("/inventory/:id", h.getStockItem)
		v1.PATCH("/inventory/:id/adjust", h.adjustStock)
		v1.GET("/inventory/:id/movements", h.listMovements)
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck pings every registered dependency
func (h *Handler) readinessCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	failed := gin.H{}
	for name, check := range h.readyChecks {
		if err := check(ctx); err != nil {
			failed[name] = err.Error()
		}
	}
	if len(failed) > 0 {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "not ready",
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

// createOrder handles order creation
func (h *Handler) createOrder(c *gin.Context) {
	var req service.CreateOrderRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body", err)
		return
	}

	if req.IdempotencyKey == "" {
		req.IdempotencyKey = c.GetHeader("Idempotency-Key")
	}

	resp, err := h.orderService.CreateOrder(c.Request.Context(), &req)
	if err != nil {
		writeError(c, "Failed to create order", err)
		return
	}

	status := http.StatusCreated
	if resp.Duplicate {
		status = http.StatusOK
	}
	c.JSON(status, resp)
}

// listOrders handles order listing with optional status, archived and size filters
func (h *Handler) listOrders(c *gin.Context) {
	params := service.ListOrdersParams{
		Status: c.Query("status"),
		Size:   c.Query("size"),
	}
	if raw, ok := c.GetQuery("archived"); ok {
		archived, err := strconv.ParseBool(raw)
		if err != nil {
			badRequest(c, "Invalid archived filter", err)
			return
		}
		params.Archived = &archived
	}

	orders, err := h.orderService.ListOrders(c.Request.Context(), params)
	if err != nil {
		writeError(c, "Failed to list orders", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"orders": orders})
}

// getOrder handles get order by ID
func (h *Handler) getOrder(c *gin.Context) {
	orderID, ok := pathID(c, "Invalid order ID")
	if !ok {
		return
	}

	order, err := h.orderService.GetOrder(c.Request.Context(), orderID)
	if err != nil {
		writeError(c, "Order not found", err)
		return
	}

	c.JSON(http.StatusOK, order)
}

type updateStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// updateOrderStatus moves an order through its lifecycle
func (h *Handler) updateOrderStatus(c *gin.Context) {
	orderID, ok := pathID(c, "Invalid order ID")
	if !ok {
		return
	}

	var req updateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body", err)
		return
	}

	order, err := h.orderService.UpdateOrderStatus(c.Request.Context(), orderID, req.Status)
	if err != nil {
		writeError(c, "Failed to update order status", err)
		return
	}

	c.JSON(http.StatusOK, order)
}

type archiveRequest struct {
	Archived *bool `json:"archived" binding:"required"`
}

// archiveOrder sets or clears the archived flag
func (h *Handler) archiveOrder(c *gin.Context) {
	orderID, ok := pathID(c, "Invalid order ID")
	if !ok {
		return
	}

	var req archiveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body", err)
		return
	}

	order, err := h.orderService.SetArchived(c.Request.Context(), orderID, *req.Archived)
	if err != nil {
		writeError(c, "Failed to archive order", err)
		return
	}

	c.JSON(http.StatusOK, order)
}

// createStockItem registers a new size in the ledger
func (h *Handler) createStockItem(c *gin.Context) {
	var req service.CreateStockItemRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body", err)
		return
	}

	item, err := h.stockService.CreateStockItem(c.Request.Context(), &req)
	if err != nil {
		writeError(c, "Failed to create inventory item", err)
		return
	}

	c.JSON(http.StatusCreated, item)
}

func (h *Handler) listStockItems(c *gin.Context) {
	items, err := h.stockService.ListStockItems(c.Request.Context())
	if err != nil {
		writeError(c, "Failed to list inventory", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"items": items})
}

func (h *Handler) availability(c *gin.Context) {
	sizes, err := h.stockService.Availability(c.Request.Context())
	if err != nil {
		writeError(c, "Failed to read availability", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"sizes": sizes})
}

func (h *Handler) getStockItem(c *gin.Context) {
	itemID, ok := pathID(c, "Invalid inventory item ID")
	if !ok {
		return
	}

	item, err := h.stockService.GetStockItem(c.Request.Context(), itemID)
	if err != nil {
		writeError(c, "Inventory item not found", err)
		return
	}

	c.JSON(http.StatusOK, item)
}

// adjustStock applies a manual add or subtract with a new price
func (h *Handler) adjustStock(c *gin.Context) {
	itemID, ok := pathID(c, "Invalid inventory item ID")
	if !ok {
		return
	}

	var req service.AdjustStockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body", err)
		return
	}

	item, err := h.stockService.AdjustStock(c.Request.Context(), itemID, &req)
	if err != nil {
		writeError(c, "Failed to adjust inventory", err)
		return
	}

	c.JSON(http.StatusOK, item)
}

func (h *Handler) listMovements(c *gin.Context) {
	itemID, ok := pathID(c, "Invalid inventory item ID")
	if !ok {
		return
	}

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			badRequest(c, "Invalid limit", err)
			return
		}
		limit = n
	}

	movements, err := h.stockService.ListMovements(c.Request.Context(), itemID, limit)
	if err != nil {
		writeError(c, "Failed to list movements", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"movements": movements})
}

func pathID(c *gin.Context, message string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": message})
		return 0, false
	}
	return id, true
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

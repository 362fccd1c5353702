package apihttp

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"polytrader/internal/logger"
	"polytrader/internal/order"
	"polytrader/internal/service"
)

// Router maps the command surface onto /api/v1.
type Router struct {
	svc *service.Service
}

func NewRouter(svc *service.Service) *Router {
	return &Router{svc: svc}
}

func (r *Router) Register(group *gin.RouterGroup) {
	if group == nil {
		return
	}
	group.POST("/orders", r.handleCreateAlgoOrder)
	group.GET("/orders", r.handleListAlgoOrders)
	group.GET("/orders/:id", r.handleGetAlgoOrder)
	group.GET("/orders/:id/executions", r.handleOrderExecutions)
	group.POST("/orders/:id/pause", r.handlePauseAlgoOrder)
	group.POST("/orders/:id/resume", r.handleResumeAlgoOrder)
	group.POST("/orders/:id/cancel", r.handleCancelAlgoOrder)

	group.POST("/limit-orders", r.handleCreateRestingOrder)
	group.GET("/limit-orders", r.handleListRestingOrders)
	group.POST("/limit-orders/:id/cancel", r.handleCancelRestingOrder)
	group.DELETE("/limit-orders/:id", r.handleDeleteRestingOrder)

	group.POST("/alerts", r.handleCreateAlert)
	group.GET("/alerts", r.handleListAlerts)
	group.PUT("/alerts/:id", r.handleUpdateAlert)
	group.POST("/alerts/:id/snooze", r.handleSnoozeAlert)
	group.POST("/alerts/:id/dismiss", r.handleDismissAlert)
	group.POST("/alerts/:id/rearm", r.handleRearmAlert)
	group.DELETE("/alerts/:id", r.handleDeleteAlert)

	group.GET("/risk/settings", r.handleGetRiskSettings)
	group.PUT("/risk/settings", r.handleUpdateRiskSettings)
	group.POST("/risk/settings/reset", r.handleResetRiskSettings)

	group.GET("/positions", r.handlePositions)
	group.POST("/positions/refresh", r.handleRefreshPositions)
}

// ---- algorithmic orders ----

func (r *Router) handleCreateAlgoOrder(c *gin.Context) {
	var in service.CreateAlgoOrderInput
	if err := c.ShouldBindJSON(&in); err != nil {
		respondErr(c, fmt.Errorf("invalid request: %w", err))
		return
	}
	o, err := r.svc.CreateAlgoOrder(c.Request.Context(), in)
	if err != nil {
		logger.Warnf("[api] create order rejected ip=%s err=%v", c.ClientIP(), err)
		respondErr(c, err)
		return
	}
	logger.Infof("[api] order created ip=%s id=%s kind=%s", c.ClientIP(), o.ID, o.Kind)
	respondOK(c, o)
}

func (r *Router) handleListAlgoOrders(c *gin.Context) {
	status := order.Status(strings.ToUpper(strings.TrimSpace(c.Query("status"))))
	orders, err := r.svc.ListAlgoOrders(c.Request.Context(), status)
	if err != nil {
		respondInternal(c, err)
		return
	}
	respondOK(c, orders)
}

func (r *Router) handleGetAlgoOrder(c *gin.Context) {
	o, err := r.svc.GetAlgoOrder(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondErr(c, err)
		return
	}
	respondOK(c, o)
}

func (r *Router) handleOrderExecutions(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	entries, err := r.svc.OrderExecutions(c.Request.Context(), c.Param("id"), limit)
	if err != nil {
		respondErr(c, err)
		return
	}
	respondOK(c, entries)
}

func (r *Router) handlePauseAlgoOrder(c *gin.Context) {
	r.transition(c, r.svc.PauseAlgoOrder)
}

func (r *Router) handleResumeAlgoOrder(c *gin.Context) {
	r.transition(c, r.svc.ResumeAlgoOrder)
}

func (r *Router) handleCancelAlgoOrder(c *gin.Context) {
	r.transition(c, r.svc.CancelAlgoOrder)
}

func (r *Router) transition(c *gin.Context, fn func(ctx context.Context, id string) (*order.AlgoOrder, error)) {
	o, err := fn(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondErr(c, err)
		return
	}
	respondOK(c, o)
}

// ---- resting limit orders ----

func (r *Router) handleCreateRestingOrder(c *gin.Context) {
	var in service.CreateRestingOrderInput
	if err := c.ShouldBindJSON(&in); err != nil {
		respondErr(c, fmt.Errorf("invalid request: %w", err))
		return
	}
	ro, err := r.svc.CreateRestingOrder(c.Request.Context(), in)
	if err != nil {
		logger.Warnf("[api] limit order rejected ip=%s err=%v", c.ClientIP(), err)
		respondErr(c, err)
		return
	}
	logger.Infof("[api] limit order placed ip=%s id=%s ref=%s", c.ClientIP(), ro.ID, ro.OrderRef)
	respondOK(c, ro)
}

func (r *Router) handleListRestingOrders(c *gin.Context) {
	orders, err := r.svc.ListRestingOrders(c.Request.Context())
	if err != nil {
		respondInternal(c, err)
		return
	}
	respondOK(c, orders)
}

func (r *Router) handleCancelRestingOrder(c *gin.Context) {
	ro, err := r.svc.CancelRestingOrder(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondErr(c, err)
		return
	}
	respondOK(c, ro)
}

func (r *Router) handleDeleteRestingOrder(c *gin.Context) {
	if err := r.svc.DeleteRestingOrder(c.Request.Context(), c.Param("id")); err != nil {
		respondErr(c, err)
		return
	}
	respondOK(c, gin.H{"deleted": c.Param("id")})
}

// ---- price alerts ----

func (r *Router) handleCreateAlert(c *gin.Context) {
	var in service.CreateAlertInput
	if err := c.ShouldBindJSON(&in); err != nil {
		respondErr(c, fmt.Errorf("invalid request: %w", err))
		return
	}
	a, err := r.svc.CreateAlert(c.Request.Context(), in)
	if err != nil {
		respondErr(c, err)
		return
	}
	respondOK(c, a)
}

func (r *Router) handleListAlerts(c *gin.Context) {
	items, err := r.svc.ListAlerts(c.Request.Context())
	if err != nil {
		respondInternal(c, err)
		return
	}
	respondOK(c, items)
}

func (r *Router) handleUpdateAlert(c *gin.Context) {
	var in service.UpdateAlertInput
	if err := c.ShouldBindJSON(&in); err != nil {
		respondErr(c, fmt.Errorf("invalid request: %w", err))
		return
	}
	a, err := r.svc.UpdateAlert(c.Request.Context(), c.Param("id"), in)
	if err != nil {
		respondErr(c, err)
		return
	}
	respondOK(c, a)
}

type snoozeRequest struct {
	Duration string `json:"duration"`
}

func (r *Router) handleSnoozeAlert(c *gin.Context) {
	var req snoozeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondErr(c, fmt.Errorf("invalid request: %w", err))
		return
	}
	d, err := time.ParseDuration(strings.TrimSpace(req.Duration))
	if err != nil {
		respondErr(c, fmt.Errorf("invalid duration %q: %w", req.Duration, err))
		return
	}
	a, err := r.svc.SnoozeAlert(c.Request.Context(), c.Param("id"), d)
	if err != nil {
		respondErr(c, err)
		return
	}
	respondOK(c, a)
}

func (r *Router) handleDismissAlert(c *gin.Context) {
	a, err := r.svc.DismissAlert(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondErr(c, err)
		return
	}
	respondOK(c, a)
}

func (r *Router) handleRearmAlert(c *gin.Context) {
	a, err := r.svc.RearmAlert(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondErr(c, err)
		return
	}
	respondOK(c, a)
}

func (r *Router) handleDeleteAlert(c *gin.Context) {
	if err := r.svc.DeleteAlert(c.Request.Context(), c.Param("id")); err != nil {
		respondErr(c, err)
		return
	}
	respondOK(c, gin.H{"deleted": c.Param("id")})
}

// ---- risk ----

func (r *Router) handleGetRiskSettings(c *gin.Context) {
	settings, err := r.svc.RiskSettings(c.Request.Context())
	if err != nil {
		respondInternal(c, err)
		return
	}
	respondOK(c, settings)
}

func (r *Router) handleUpdateRiskSettings(c *gin.Context) {
	var in service.UpdateRiskSettingsInput
	if err := c.ShouldBindJSON(&in); err != nil {
		respondErr(c, fmt.Errorf("invalid request: %w", err))
		return
	}
	settings, err := r.svc.UpdateRiskSettings(c.Request.Context(), in)
	if err != nil {
		respondErr(c, err)
		return
	}
	logger.Infof("[api] risk settings updated ip=%s enabled=%t", c.ClientIP(), settings.Enabled)
	respondOK(c, settings)
}

func (r *Router) handleResetRiskSettings(c *gin.Context) {
	settings, err := r.svc.ResetRiskSettings(c.Request.Context())
	if err != nil {
		respondInternal(c, err)
		return
	}
	respondOK(c, settings)
}

// ---- positions ----

func (r *Router) handlePositions(c *gin.Context) {
	snap, err := r.svc.Positions(c.Request.Context())
	if err != nil {
		respondInternal(c, err)
		return
	}
	respondOK(c, snap)
}

func (r *Router) handleRefreshPositions(c *gin.Context) {
	snap, err := r.svc.RefreshPositions(c.Request.Context())
	if err != nil {
		respondInternal(c, err)
		return
	}
	logger.Infof("[api] positions force refresh ip=%s", c.ClientIP())
	respondOK(c, snap)
}

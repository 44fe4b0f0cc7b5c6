package handler

import (
	"encoding/json"

	"github.com/gin-gonic/gin"

	"github.com/andyyue2024/signal-transceiver-sub001/internal/audit"
	"github.com/andyyue2024/signal-transceiver-sub001/internal/auth"
	"github.com/andyyue2024/signal-transceiver-sub001/internal/models"
	"github.com/andyyue2024/signal-transceiver-sub001/internal/ratelimit"
	"github.com/andyyue2024/signal-transceiver-sub001/internal/strategy"
)

type StrategyHandler struct {
	Strategies *strategy.Registry
	Guard      *Guard
	Audit      *audit.Recorder
}

type createStrategyRequest struct {
	StrategyID  string          `json:"strategy_id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Type        string          `json:"type"`
	Category    string          `json:"category"`
	Config      json.RawMessage `json:"config" swaggertype:"object"`
	Parameters  json.RawMessage `json:"parameters" swaggertype:"object"`
	Active      *bool           `json:"is_active"`
	Priority    int             `json:"priority"`
	Version     string          `json:"version"`
}

type updateStrategyRequest struct {
	Name        *string         `json:"name"`
	Description *string         `json:"description"`
	Category    *string         `json:"category"`
	Config      json.RawMessage `json:"config" swaggertype:"object"`
	Parameters  json.RawMessage `json:"parameters" swaggertype:"object"`
	Priority    *int            `json:"priority"`
	Version     *string         `json:"version"`
}

type strategyList struct {
	Total int64             `json:"total"`
	Items []models.Strategy `json:"items"`
}

func (h *StrategyHandler) Register(r *gin.Engine) {
	read := r.Group("/strategies", h.Guard.Authenticate(), h.Guard.Limit(ratelimit.TierDefault))
	read.GET("", h.list)
	read.GET("/:id", h.get)

	write := r.Group("/strategies", h.Guard.Authenticate(auth.SchemeAPIKey), h.Guard.Limit(ratelimit.TierDefault))
	write.POST("", h.create)
	write.PUT("/:id", h.update)
	write.POST("/:id/deactivate", h.deactivate)
}

// @Summary Create a strategy
// @Tags strategies
// @Accept json
// @Produce json
// @Param body body createStrategyRequest true "strategy"
// @Success 201 {object} models.Strategy
// @Router /strategies [post]
func (h *StrategyHandler) create(c *gin.Context) {
	var req createStrategyRequest
	if err := bindJSON(c, &req); err != nil {
		Error(c, err)
		return
	}
	item, err := h.Strategies.Create(c.Request.Context(), mustPrincipal(c), strategy.CreateInput{
		StrategyID:  req.StrategyID,
		Name:        req.Name,
		Description: req.Description,
		Type:        req.Type,
		Category:    req.Category,
		Config:      req.Config,
		Parameters:  req.Parameters,
		Active:      req.Active,
		Priority:    req.Priority,
		Version:     req.Version,
	})
	if err != nil {
		Error(c, err)
		return
	}
	h.Audit.Record(c.Request.Context(), "strategy_created", "info", map[string]any{"strategy_id": item.StrategyID})
	Created(c, "strategy created", item)
}

// @Summary List strategies
// @Tags strategies
// @Produce json
// @Param category query string false "category"
// @Param type query string false "type"
// @Param active query bool false "only active"
// @Param limit query int false "limit"
// @Param offset query int false "offset"
// @Success 200 {object} strategyList
// @Router /strategies [get]
func (h *StrategyHandler) list(c *gin.Context) {
	limit, err := queryInt(c, "limit", 100)
	if err != nil {
		Error(c, err)
		return
	}
	offset, err := queryInt(c, "offset", 0)
	if err != nil {
		Error(c, err)
		return
	}
	active, err := queryBool(c, "active")
	if err != nil {
		Error(c, err)
		return
	}
	items, total, err := h.Strategies.List(c.Request.Context(), strategy.ListFilter{
		Category:   c.Query("category"),
		Type:       c.Query("type"),
		ActiveOnly: active != nil && *active,
		Limit:      limit,
		Offset:     offset,
	})
	if err != nil {
		Error(c, err)
		return
	}
	Ok(c, strategyList{Total: total, Items: items}, map[string]any{"limit": limit, "offset": offset})
}

// @Summary Get a strategy
// @Tags strategies
// @Produce json
// @Param id path string true "strategy id"
// @Success 200 {object} models.Strategy
// @Router /strategies/{id} [get]
func (h *StrategyHandler) get(c *gin.Context) {
	item, err := h.Strategies.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		Error(c, err)
		return
	}
	Ok(c, item, nil)
}

// @Summary Update a strategy
// @Tags strategies
// @Accept json
// @Produce json
// @Param id path string true "strategy id"
// @Param body body updateStrategyRequest true "fields to change"
// @Success 200 {object} models.Strategy
// @Router /strategies/{id} [put]
func (h *StrategyHandler) update(c *gin.Context) {
	var req updateStrategyRequest
	if err := bindJSON(c, &req); err != nil {
		Error(c, err)
		return
	}
	item, err := h.Strategies.Update(c.Request.Context(), mustPrincipal(c), c.Param("id"), strategy.Patch{
		Name:        req.Name,
		Description: req.Description,
		Category:    req.Category,
		Config:      req.Config,
		Parameters:  req.Parameters,
		Priority:    req.Priority,
		Version:     req.Version,
	})
	if err != nil {
		Error(c, err)
		return
	}
	h.Audit.Record(c.Request.Context(), "strategy_updated", "info", map[string]any{"strategy_id": item.StrategyID})
	Ok(c, item, nil)
}

// @Summary Deactivate a strategy
// @Tags strategies
// @Produce json
// @Param id path string true "strategy id"
// @Success 200 {object} models.Strategy
// @Router /strategies/{id}/deactivate [post]
func (h *StrategyHandler) deactivate(c *gin.Context) {
	item, err := h.Strategies.Deactivate(c.Request.Context(), mustPrincipal(c), c.Param("id"))
	if err != nil {
		Error(c, err)
		return
	}
	h.Audit.Record(c.Request.Context(), "strategy_deactivated", "warn", map[string]any{"strategy_id": item.StrategyID})
	Ok(c, item, nil)
}

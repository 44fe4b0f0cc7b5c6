package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/andyyue2024/signal-transceiver-sub001/internal/audit"
	"github.com/andyyue2024/signal-transceiver-sub001/internal/auth"
	"github.com/andyyue2024/signal-transceiver-sub001/internal/models"
	"github.com/andyyue2024/signal-transceiver-sub001/internal/ratelimit"
	"github.com/andyyue2024/signal-transceiver-sub001/internal/subscription"
)

type SubscriptionHandler struct {
	Subscriptions *subscription.Registry
	Guard         *Guard
	Audit         *audit.Recorder
}

type createSubscriptionRequest struct {
	Name             string              `json:"name"`
	Description      string              `json:"description"`
	StrategyID       string              `json:"strategy_id"`
	SubscriptionType string              `json:"subscription_type"`
	Filters          subscription.Filter `json:"filters"`
	StartFrom        string              `json:"start_from"`
	ExpiresAt        *time.Time          `json:"expires_at"`
}

type updateSubscriptionRequest struct {
	Name        *string              `json:"name"`
	Description *string              `json:"description"`
	Filters     *subscription.Filter `json:"filters"`
	Active      *bool                `json:"is_active"`
	ExpiresAt   *time.Time           `json:"expires_at"`
}

// pollResponse keeps the poll fields at the top level of the body.
type pollResponse struct {
	Success bool `json:"success"`
	subscription.PollResult
}

type subscriptionList struct {
	Total int64                 `json:"total"`
	Items []models.Subscription `json:"items"`
}

func (h *SubscriptionHandler) Register(r *gin.Engine) {
	group := r.Group("/subscriptions", h.Guard.Authenticate(auth.SchemeClientKey))
	group.POST("", h.Guard.Limit(ratelimit.TierDefault), h.create)
	group.GET("", h.Guard.Limit(ratelimit.TierDefault), h.list)
	group.GET("/:id", h.Guard.Limit(ratelimit.TierDefault), h.get)
	group.PUT("/:id", h.Guard.Limit(ratelimit.TierDefault), h.update)
	group.DELETE("/:id", h.Guard.Limit(ratelimit.TierDefault), h.delete)
	group.GET("/:id/poll", h.Guard.Limit(ratelimit.TierDataRead), h.poll)
}

// @Summary Create a polling subscription
// @Tags subscriptions
// @Accept json
// @Produce json
// @Param body body createSubscriptionRequest true "subscription"
// @Success 201 {object} models.Subscription
// @Router /subscriptions [post]
func (h *SubscriptionHandler) create(c *gin.Context) {
	var req createSubscriptionRequest
	if err := bindJSON(c, &req); err != nil {
		Error(c, err)
		return
	}
	item, err := h.Subscriptions.Create(c.Request.Context(), mustPrincipal(c), subscription.CreateInput{
		Name:             req.Name,
		Description:      req.Description,
		StrategyID:       req.StrategyID,
		SubscriptionType: req.SubscriptionType,
		Filter:           req.Filters,
		StartFrom:        req.StartFrom,
		ExpiresAt:        req.ExpiresAt,
	})
	if err != nil {
		Error(c, err)
		return
	}
	h.Audit.Record(c.Request.Context(), "subscription_created", "info", map[string]any{"id": item.ID, "strategy_id": item.StrategyID})
	Created(c, "subscription created", item)
}

// @Summary List the caller's subscriptions
// @Tags subscriptions
// @Produce json
// @Param limit query int false "limit"
// @Param offset query int false "offset"
// @Success 200 {object} subscriptionList
// @Router /subscriptions [get]
func (h *SubscriptionHandler) list(c *gin.Context) {
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
	items, total, err := h.Subscriptions.List(c.Request.Context(), mustPrincipal(c), limit, offset)
	if err != nil {
		Error(c, err)
		return
	}
	Ok(c, subscriptionList{Total: total, Items: items}, map[string]any{"limit": limit, "offset": offset})
}

// @Summary Get a subscription
// @Tags subscriptions
// @Produce json
// @Param id path int true "subscription id"
// @Success 200 {object} models.Subscription
// @Router /subscriptions/{id} [get]
func (h *SubscriptionHandler) get(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		Error(c, err)
		return
	}
	item, err := h.Subscriptions.Get(c.Request.Context(), mustPrincipal(c), id)
	if err != nil {
		Error(c, err)
		return
	}
	Ok(c, item, nil)
}

// @Summary Update a subscription
// @Tags subscriptions
// @Accept json
// @Produce json
// @Param id path int true "subscription id"
// @Param body body updateSubscriptionRequest true "fields to change"
// @Success 200 {object} models.Subscription
// @Router /subscriptions/{id} [put]
func (h *SubscriptionHandler) update(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		Error(c, err)
		return
	}
	var req updateSubscriptionRequest
	if err := bindJSON(c, &req); err != nil {
		Error(c, err)
		return
	}
	item, err := h.Subscriptions.Update(c.Request.Context(), mustPrincipal(c), id, subscription.Patch{
		Name:        req.Name,
		Description: req.Description,
		Filter:      req.Filters,
		Active:      req.Active,
		ExpiresAt:   req.ExpiresAt,
	})
	if err != nil {
		Error(c, err)
		return
	}
	h.Audit.Record(c.Request.Context(), "subscription_updated", "info", map[string]any{"id": item.ID})
	Ok(c, item, nil)
}

// @Summary Delete a subscription
// @Tags subscriptions
// @Produce json
// @Param id path int true "subscription id"
// @Success 200 {object} map[string]any
// @Router /subscriptions/{id} [delete]
func (h *SubscriptionHandler) delete(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		Error(c, err)
		return
	}
	if err := h.Subscriptions.Delete(c.Request.Context(), mustPrincipal(c), id); err != nil {
		Error(c, err)
		return
	}
	h.Audit.Record(c.Request.Context(), "subscription_deleted", "info", map[string]any{"id": id})
	Ok(c, map[string]any{"id": id, "deleted": true}, nil)
}

// @Summary Poll new records past the cursor
// @Tags subscriptions
// @Produce json
// @Param id path int true "subscription id"
// @Param since query int false "scan from this id instead of the cursor"
// @Param limit query int false "page size"
// @Success 200 {object} subscription.PollResult
// @Router /subscriptions/{id}/poll [get]
func (h *SubscriptionHandler) poll(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		Error(c, err)
		return
	}
	since, err := queryUint(c, "since")
	if err != nil {
		Error(c, err)
		return
	}
	limit, err := queryInt(c, "limit", 0)
	if err != nil {
		Error(c, err)
		return
	}
	result, err := h.Subscriptions.Poll(c.Request.Context(), mustPrincipal(c), id, subscription.PollInput{Since: since, Limit: limit})
	if err != nil {
		Error(c, err)
		return
	}
	c.JSON(http.StatusOK, pollResponse{Success: true, PollResult: result})
}

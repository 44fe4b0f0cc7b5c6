package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/andyyue2024/signal-transceiver-sub001/internal/audit"
	"github.com/andyyue2024/signal-transceiver-sub001/internal/auth"
	"github.com/andyyue2024/signal-transceiver-sub001/internal/ratelimit"
)

type AdminHandler struct {
	Auth  *auth.Authority
	Guard *Guard
	Audit *audit.Recorder
}

type roleRequest struct {
	Role string `json:"role"`
}

type activeRequest struct {
	Active *bool `json:"is_active"`
}

func (h *AdminHandler) Register(r *gin.Engine) {
	group := r.Group("/admin", h.Guard.Authenticate(auth.SchemeAPIKey), h.Guard.Limit(ratelimit.TierDefault))
	group.PUT("/accounts/:username/role", h.setRole)
	group.PUT("/accounts/:username/active", h.setActive)
}

// @Summary Change an account's role
// @Tags admin
// @Accept json
// @Produce json
// @Param username path string true "username"
// @Param body body roleRequest true "role"
// @Success 200 {object} models.Account
// @Router /admin/accounts/{username}/role [put]
func (h *AdminHandler) setRole(c *gin.Context) {
	var req roleRequest
	if err := bindJSON(c, &req); err != nil {
		Error(c, err)
		return
	}
	acct, err := h.Auth.SetRole(c.Request.Context(), mustPrincipal(c), c.Param("username"), req.Role)
	if err != nil {
		Error(c, err)
		return
	}
	h.Audit.Record(c.Request.Context(), "account_role_changed", "info", map[string]any{"username": acct.Username, "role": acct.Role})
	Ok(c, acct, nil)
}

// @Summary Enable or disable an account
// @Tags admin
// @Accept json
// @Produce json
// @Param username path string true "username"
// @Param body body activeRequest true "state"
// @Success 200 {object} models.Account
// @Router /admin/accounts/{username}/active [put]
func (h *AdminHandler) setActive(c *gin.Context) {
	var req activeRequest
	if err := bindJSON(c, &req); err != nil {
		Error(c, err)
		return
	}
	if req.Active == nil {
		Error(c, validationRequired("is_active"))
		return
	}
	acct, err := h.Auth.SetActive(c.Request.Context(), mustPrincipal(c), c.Param("username"), *req.Active)
	if err != nil {
		Error(c, err)
		return
	}
	h.Audit.Record(c.Request.Context(), "account_active_changed", "info", map[string]any{"username": acct.Username, "active": acct.Active})
	Ok(c, acct, nil)
}

package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/andyyue2024/signal-transceiver-sub001/internal/audit"
	"github.com/andyyue2024/signal-transceiver-sub001/internal/auth"
	"github.com/andyyue2024/signal-transceiver-sub001/internal/models"
	"github.com/andyyue2024/signal-transceiver-sub001/internal/ratelimit"
)

type AuthHandler struct {
	Auth  *auth.Authority
	Guard *Guard
	Audit *audit.Recorder
}

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type sessionUser struct {
	ID           uint64 `json:"id"`
	Username     string `json:"username"`
	Email        string `json:"email"`
	FullName     string `json:"full_name,omitempty"`
	Role         string `json:"role"`
	ClientKey    string `json:"client_key,omitempty"`
	ClientSecret string `json:"client_secret,omitempty"`
}

type sessionResponse struct {
	APIKey          string      `json:"api_key"`
	APIKeyExpiresAt time.Time   `json:"api_key_expires_at"`
	User            sessionUser `json:"user"`
}

type clientCredentialsResponse struct {
	ClientKey    string `json:"client_key"`
	ClientSecret string `json:"client_secret"`
}

func (h *AuthHandler) Register(r *gin.Engine) {
	group := r.Group("/auth")
	group.POST("/register", h.Guard.Limit(ratelimit.TierAuth), h.register)
	group.POST("/login", h.Guard.Limit(ratelimit.TierAuth), h.login)
	group.POST("/client-credentials", h.Guard.Authenticate(auth.SchemeAPIKey), h.Guard.Limit(ratelimit.TierAuth), h.rotateClientCredentials)
	group.GET("/me", h.Guard.Authenticate(), h.Guard.Limit(ratelimit.TierDefault), h.me)
}

// @Summary Register an account
// @Tags auth
// @Accept json
// @Produce json
// @Param body body registerRequest true "account"
// @Success 201 {object} sessionResponse
// @Router /auth/register [post]
func (h *AuthHandler) register(c *gin.Context) {
	var req registerRequest
	if err := bindJSON(c, &req); err != nil {
		Error(c, err)
		return
	}
	issued, err := h.Auth.Register(c.Request.Context(), auth.RegisterInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
		FullName: req.FullName,
	})
	if err != nil {
		Error(c, err)
		return
	}
	h.Audit.Record(c.Request.Context(), "account_registered", "info", map[string]any{"username": issued.Account.Username})
	Created(c, "account registered", toSession(issued))
}

// @Summary Log in and rotate the session API key
// @Tags auth
// @Accept json
// @Produce json
// @Param body body loginRequest true "credentials"
// @Success 200 {object} sessionResponse
// @Router /auth/login [post]
func (h *AuthHandler) login(c *gin.Context) {
	var req loginRequest
	if err := bindJSON(c, &req); err != nil {
		Error(c, err)
		return
	}
	issued, err := h.Auth.IssueSession(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		h.Audit.Record(c.Request.Context(), "login_failed", "warn", map[string]any{"username": req.Username, "client_ip": c.ClientIP()})
		Error(c, err)
		return
	}
	Ok(c, toSession(issued), nil)
}

// @Summary Rotate the client key and secret
// @Tags auth
// @Produce json
// @Success 200 {object} clientCredentialsResponse
// @Router /auth/client-credentials [post]
func (h *AuthHandler) rotateClientCredentials(c *gin.Context) {
	p := mustPrincipal(c)
	key, secret, err := h.Auth.IssueClientCredentials(c.Request.Context(), p.AccountID)
	if err != nil {
		Error(c, err)
		return
	}
	h.Audit.Record(c.Request.Context(), "client_credentials_rotated", "info", nil)
	c.JSON(http.StatusOK, apiResponse{
		Success: true,
		Message: "store the client secret now; it will not be shown again",
		Data:    clientCredentialsResponse{ClientKey: key, ClientSecret: secret},
	})
}

// @Summary Current principal
// @Tags auth
// @Produce json
// @Success 200 {object} models.Account
// @Router /auth/me [get]
func (h *AuthHandler) me(c *gin.Context) {
	p := mustPrincipal(c)
	acct, err := h.Auth.Account(c.Request.Context(), p)
	if err != nil {
		Error(c, err)
		return
	}
	Ok(c, acct, map[string]any{"scheme": p.Scheme})
}

func toSession(issued auth.Issued) sessionResponse {
	acct := issued.Account
	if acct == nil {
		acct = &models.Account{}
	}
	return sessionResponse{
		APIKey:          issued.APIKey,
		APIKeyExpiresAt: issued.APIKeyExpiresAt,
		User: sessionUser{
			ID:           acct.ID,
			Username:     acct.Username,
			Email:        acct.Email,
			FullName:     acct.FullName,
			Role:         acct.Role,
			ClientKey:    issued.ClientKey,
			ClientSecret: issued.ClientSecret,
		},
	}
}

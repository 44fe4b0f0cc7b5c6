package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/andyyue2024/signal-transceiver-sub001/internal/apperr"
)

type apiResponse struct {
	Success bool           `json:"success"`
	Message string         `json:"message,omitempty"`
	Data    any            `json:"data,omitempty"`
	Meta    map[string]any `json:"meta,omitempty"`
}

type apiError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

type errorResponse struct {
	Success bool     `json:"success"`
	Error   apiError `json:"error"`
}

func Ok(c *gin.Context, data any, meta map[string]any) {
	c.JSON(http.StatusOK, apiResponse{Success: true, Message: "ok", Data: data, Meta: meta})
}

func Created(c *gin.Context, message string, data any) {
	c.JSON(http.StatusCreated, apiResponse{Success: true, Message: message, Data: data})
}

// Error writes the structured error envelope and aborts the chain.
func Error(c *gin.Context, err error) {
	ae := apperr.From(err)
	msg := ae.Message
	if ae.Kind == apperr.KindInternal {
		msg = "internal server error"
	}
	if ae.Kind == apperr.KindRateLimited {
		if v, ok := ae.Details["retry_after"].(string); ok {
			c.Header("Retry-After", v)
		}
	}
	c.AbortWithStatusJSON(ae.Kind.Status(), errorResponse{
		Error: apiError{Code: apperr.Code(ae), Message: msg, Details: ae.Details},
	})
}

// bindJSON decodes the request body, reporting oversize bodies as 413.
func bindJSON(c *gin.Context, dst any) error {
	if err := c.ShouldBindJSON(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return apperr.PayloadTooLarge("request body", int(tooLarge.Limit)+1, int(tooLarge.Limit))
		}
		return apperr.Validation("invalid request body", map[string]any{"error": err.Error()})
	}
	return nil
}

func pathID(c *gin.Context, name string) (uint64, error) {
	raw := strings.TrimSpace(c.Param(name))
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, apperr.Validation(fmt.Sprintf("invalid %s", name), map[string]any{name: raw})
	}
	return id, nil
}

func queryInt(c *gin.Context, name string, def int) (int, error) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, apperr.Validation(fmt.Sprintf("invalid %s", name), map[string]any{name: raw})
	}
	return v, nil
}

func queryUint(c *gin.Context, name string) (*uint64, error) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return nil, apperr.Validation(fmt.Sprintf("invalid %s", name), map[string]any{name: raw})
	}
	return &v, nil
}

func queryBool(c *gin.Context, name string) (*bool, error) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, apperr.Validation(fmt.Sprintf("invalid %s", name), map[string]any{name: raw})
	}
	return &v, nil
}

func validationRequired(field string) error {
	return apperr.Validation(field+" is required", map[string]any{"field": field})
}

func errRouteNotFound(path string) error {
	return apperr.NotFound("route", path)
}

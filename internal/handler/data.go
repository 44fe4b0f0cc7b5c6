package handler

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/andyyue2024/signal-transceiver-sub001/internal/apperr"
	"github.com/andyyue2024/signal-transceiver-sub001/internal/audit"
	"github.com/andyyue2024/signal-transceiver-sub001/internal/auth"
	"github.com/andyyue2024/signal-transceiver-sub001/internal/ledger"
	"github.com/andyyue2024/signal-transceiver-sub001/internal/models"
	"github.com/andyyue2024/signal-transceiver-sub001/internal/ratelimit"
)

type DataHandler struct {
	Ledger *ledger.Ledger
	Guard  *Guard
	Audit  *audit.Recorder
}

type batchRequest struct {
	Items []ledger.AppendInput `json:"items"`
}

type dataList struct {
	Items []models.DataRecord `json:"items"`
}

func (h *DataHandler) Register(r *gin.Engine) {
	group := r.Group("/data", h.Guard.Authenticate(auth.SchemeClientKey))
	group.POST("", h.Guard.Limit(ratelimit.TierDataWrite), h.create)
	group.POST("/batch", h.Guard.Limit(ratelimit.TierDataWrite), h.createBatch)
	group.GET("", h.Guard.Limit(ratelimit.TierDataRead), h.list)
	group.GET("/:id", h.Guard.Limit(ratelimit.TierDataRead), h.get)
}

// @Summary Append a data record
// @Tags data
// @Accept json
// @Produce json
// @Param body body ledger.AppendInput true "record"
// @Success 201 {object} models.DataRecord
// @Router /data [post]
func (h *DataHandler) create(c *gin.Context) {
	var req ledger.AppendInput
	if err := bindJSON(c, &req); err != nil {
		Error(c, err)
		return
	}
	rec, err := h.Ledger.Append(c.Request.Context(), mustPrincipal(c), req)
	if err != nil {
		Error(c, err)
		return
	}
	h.Audit.Record(c.Request.Context(), "data_created", "info", map[string]any{"id": rec.ID, "strategy_id": rec.StrategyID})
	Created(c, "data created", rec)
}

// @Summary Append data records in one request
// @Tags data
// @Accept json
// @Produce json
// @Param body body batchRequest true "records"
// @Success 200 {object} ledger.BatchResult
// @Router /data/batch [post]
func (h *DataHandler) createBatch(c *gin.Context) {
	var req batchRequest
	if err := bindJSON(c, &req); err != nil {
		Error(c, err)
		return
	}
	result, err := h.Ledger.AppendBatch(c.Request.Context(), mustPrincipal(c), req.Items)
	if err != nil {
		Error(c, err)
		return
	}
	h.Audit.Record(c.Request.Context(), "data_batch_created", "info", map[string]any{
		"success_count": result.SuccessCount,
		"error_count":   result.ErrorCount,
	})
	Ok(c, result, nil)
}

// @Summary List a strategy's records in ledger order
// @Tags data
// @Produce json
// @Param strategy_id query string true "strategy id"
// @Param since_date query string false "YYYY-MM-DD"
// @Param after_id query int false "only ids greater than this"
// @Param limit query int false "limit"
// @Success 200 {object} dataList
// @Router /data [get]
func (h *DataHandler) list(c *gin.Context) {
	in := ledger.ListInput{StrategyID: c.Query("strategy_id")}
	if raw := strings.TrimSpace(c.Query("since_date")); raw != "" {
		d, err := models.ParseDate(raw)
		if err != nil {
			Error(c, apperr.Validation("invalid since_date", map[string]any{"since_date": raw, "format": "YYYY-MM-DD"}))
			return
		}
		in.SinceDate = &d
	}
	after, err := queryUint(c, "after_id")
	if err != nil {
		Error(c, err)
		return
	}
	if after != nil {
		in.AfterID = *after
	}
	if in.Limit, err = queryInt(c, "limit", 0); err != nil {
		Error(c, err)
		return
	}
	items, err := h.Ledger.List(c.Request.Context(), in)
	if err != nil {
		Error(c, err)
		return
	}
	Ok(c, dataList{Items: items}, map[string]any{"count": len(items)})
}

// @Summary Get a data record
// @Tags data
// @Produce json
// @Param id path int true "record id"
// @Success 200 {object} models.DataRecord
// @Router /data/{id} [get]
func (h *DataHandler) get(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		Error(c, err)
		return
	}
	rec, err := h.Ledger.Get(c.Request.Context(), id)
	if err != nil {
		Error(c, err)
		return
	}
	Ok(c, rec, nil)
}

package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"

	"go.uber.org/zap"
	"gorm.io/datatypes"

	"github.com/andyyue2024/signal-transceiver-sub001/internal/apperr"
	"github.com/andyyue2024/signal-transceiver-sub001/internal/auth"
	"github.com/andyyue2024/signal-transceiver-sub001/internal/models"
	"github.com/andyyue2024/signal-transceiver-sub001/internal/repository"
	"github.com/andyyue2024/signal-transceiver-sub001/internal/strategy"
)

const (
	DefaultMaxPayloadBytes = 65535
	DefaultMaxBatchSize    = 100
	DefaultListLimit       = 100
	MaxListLimit           = 1000

	maxSymbolLen      = 50
	maxSourceLen      = 100
	maxDescriptionLen = 1000
)

type Options struct {
	MaxPayloadBytes int
	MaxBatchSize    int
	// RestrictToOwner limits appends to the strategy owner (admins always pass).
	RestrictToOwner bool
}

type AppendInput struct {
	StrategyID  string          `json:"strategy_id"`
	Symbol      string          `json:"symbol"`
	ExecuteDate string          `json:"execute_date"`
	Type        string          `json:"type"`
	Description string          `json:"description,omitempty"`
	Source      string          `json:"source,omitempty"`
	Payload     json.RawMessage `json:"payload,omitempty" swaggertype:"object"`
	Metadata    json.RawMessage `json:"metadata,omitempty" swaggertype:"object"`
}

type ListInput struct {
	StrategyID string
	SinceDate  *models.Date
	AfterID    uint64
	Limit      int
}

type BatchError struct {
	Index   int    `json:"index"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type BatchResult struct {
	SuccessCount int                 `json:"success_count"`
	ErrorCount   int                 `json:"error_count"`
	Errors       []BatchError        `json:"errors"`
	Items        []models.DataRecord `json:"items"`
}

// Ledger is the append-only store of data records.
type Ledger struct {
	repo       repository.LedgerRepository
	strategies *strategy.Registry
	opts       Options
	log        *zap.Logger
}

func New(repo repository.LedgerRepository, strategies *strategy.Registry, opts Options, log *zap.Logger) *Ledger {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.MaxPayloadBytes <= 0 {
		opts.MaxPayloadBytes = DefaultMaxPayloadBytes
	}
	if opts.MaxBatchSize <= 0 {
		opts.MaxBatchSize = DefaultMaxBatchSize
	}
	return &Ledger{repo: repo, strategies: strategies, opts: opts, log: log}
}

func (l *Ledger) Append(ctx context.Context, p auth.Principal, in AppendInput) (*models.DataRecord, error) {
	if err := auth.RequirePublisher(p); err != nil {
		return nil, err
	}
	rec, err := l.build(in)
	if err != nil {
		return nil, err
	}
	st, err := l.strategies.GetActive(ctx, rec.StrategyID)
	if err != nil {
		return nil, err
	}
	if l.opts.RestrictToOwner && !p.Owns(st.OwnerID) {
		return nil, apperr.Forbidden("only the strategy owner may append data")
	}
	rec.AccountID = p.AccountID
	if err := l.repo.AppendDataRecord(ctx, rec); err != nil {
		if errors.Is(err, repository.ErrLockNotAvailable) {
			return nil, apperr.Conflict("ledger is busy; retry", map[string]any{"strategy_id": rec.StrategyID})
		}
		return nil, apperr.Internal("append data record", err)
	}
	l.log.Debug("data appended",
		zap.Uint64("id", rec.ID),
		zap.String("strategy_id", rec.StrategyID),
		zap.String("symbol", rec.Symbol),
	)
	return rec, nil
}

// AppendBatch appends each item on its own; one failure does not undo the others.
func (l *Ledger) AppendBatch(ctx context.Context, p auth.Principal, items []AppendInput) (BatchResult, error) {
	if len(items) == 0 {
		return BatchResult{}, apperr.Validation("items required", nil)
	}
	if len(items) > l.opts.MaxBatchSize {
		return BatchResult{}, apperr.Validation("too many items", map[string]any{"max": l.opts.MaxBatchSize, "got": len(items)})
	}
	out := BatchResult{Errors: []BatchError{}, Items: make([]models.DataRecord, 0, len(items))}
	for i, in := range items {
		rec, err := l.Append(ctx, p, in)
		if err != nil {
			if apperr.From(err).Kind == apperr.KindInternal {
				l.log.Warn("batch append item failed", zap.Int("index", i), zap.Error(err))
			}
			out.ErrorCount++
			out.Errors = append(out.Errors, BatchError{Index: i, Code: apperr.Code(err), Message: apperr.From(err).Message})
			continue
		}
		out.SuccessCount++
		out.Items = append(out.Items, *rec)
	}
	return out, nil
}

func (l *Ledger) Get(ctx context.Context, id uint64) (*models.DataRecord, error) {
	rec, err := l.repo.GetDataRecord(ctx, id)
	if err != nil {
		return nil, apperr.Internal("get data record", err)
	}
	if rec == nil {
		return nil, apperr.NotFound("data", id)
	}
	return rec, nil
}

// List is the direct-read path: records of one strategy in ascending id order.
func (l *Ledger) List(ctx context.Context, in ListInput) ([]models.DataRecord, error) {
	in.StrategyID = strings.TrimSpace(in.StrategyID)
	if in.StrategyID == "" {
		return nil, apperr.Validation("strategy_id required", nil)
	}
	if _, err := l.strategies.Get(ctx, in.StrategyID); err != nil {
		return nil, err
	}
	limit := in.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	items, err := l.repo.ListDataRecords(ctx, repository.ListDataRecordsParams{
		StrategyID: in.StrategyID,
		AfterID:    in.AfterID,
		SinceDate:  in.SinceDate,
		Limit:      limit,
	})
	if err != nil {
		return nil, apperr.Internal("list data records", err)
	}
	if items == nil {
		items = []models.DataRecord{}
	}
	return items, nil
}

func (l *Ledger) build(in AppendInput) (*models.DataRecord, error) {
	in.StrategyID = strings.TrimSpace(in.StrategyID)
	in.Symbol = strings.TrimSpace(in.Symbol)
	in.Type = strings.TrimSpace(in.Type)
	in.Source = strings.TrimSpace(in.Source)

	details := map[string]any{}
	if in.StrategyID == "" {
		details["strategy_id"] = "required"
	}
	if in.Symbol == "" || len(in.Symbol) > maxSymbolLen {
		details["symbol"] = "required, at most 50 characters"
	}
	if !strategy.ValidIdentifier(in.Type) {
		details["type"] = "required, must start with a letter, contain only letters, digits, '_' or '-', at most 50 characters"
	}
	date, err := models.ParseDate(in.ExecuteDate)
	if err != nil {
		details["execute_date"] = "required, format YYYY-MM-DD"
	}
	if len(in.Description) > maxDescriptionLen {
		details["description"] = "at most 1000 characters"
	}
	if len(in.Source) > maxSourceLen {
		details["source"] = "at most 100 characters"
	}
	payload, perr := objectOrNull(in.Payload)
	if perr != "" {
		details["payload"] = perr
	}
	metadata, merr := objectOrNull(in.Metadata)
	if merr != "" {
		details["metadata"] = merr
	}
	if len(details) > 0 {
		return nil, apperr.Validation("invalid data record", details)
	}
	if size := len(payload) + len(metadata); size > l.opts.MaxPayloadBytes {
		return nil, apperr.PayloadTooLarge("payload", size, l.opts.MaxPayloadBytes)
	}

	return &models.DataRecord{
		StrategyID:  in.StrategyID,
		Symbol:      in.Symbol,
		ExecuteDate: date,
		Type:        in.Type,
		Description: in.Description,
		Source:      in.Source,
		Payload:     payload,
		Metadata:    metadata,
	}, nil
}

// objectOrNull keeps the caller's bytes verbatim; only objects are accepted.
func objectOrNull(raw json.RawMessage) (datatypes.JSON, string) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, ""
	}
	if trimmed[0] != '{' || !json.Valid(trimmed) {
		return nil, "must be a JSON object"
	}
	return datatypes.JSON(trimmed), ""
}

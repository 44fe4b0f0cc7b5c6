package strategy

import (
	"context"
	"encoding/json"
	"errors"
	"regexp"
	"strings"

	"go.uber.org/zap"
	"gorm.io/datatypes"

	"github.com/andyyue2024/signal-transceiver-sub001/internal/apperr"
	"github.com/andyyue2024/signal-transceiver-sub001/internal/auth"
	"github.com/andyyue2024/signal-transceiver-sub001/internal/models"
	"github.com/andyyue2024/signal-transceiver-sub001/internal/repository"
)

const (
	MaxIdentifierLen  = 50
	MaxNameLen        = 200
	MaxDescriptionLen = 1000
	DefaultType       = "default"
	DefaultVersion    = "1.0.0"
)

var identifierPattern = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_-]*$`)

// ValidIdentifier reports whether s is usable as a strategy id or record type.
func ValidIdentifier(s string) bool {
	return len(s) > 0 && len(s) <= MaxIdentifierLen && identifierPattern.MatchString(s)
}

type CreateInput struct {
	StrategyID  string
	Name        string
	Description string
	Type        string
	Category    string
	Config      json.RawMessage
	Parameters  json.RawMessage
	Active      *bool
	Priority    int
	Version     string
}

type Patch struct {
	Name        *string
	Description *string
	Category    *string
	Config      json.RawMessage
	Parameters  json.RawMessage
	Priority    *int
	Version     *string
}

type ListFilter struct {
	Category   string
	Type       string
	ActiveOnly bool
	Limit      int
	Offset     int
}

type Registry struct {
	repo repository.StrategyRepository
	log  *zap.Logger
}

func NewRegistry(repo repository.StrategyRepository, log *zap.Logger) *Registry {
	if log == nil {
		log = zap.NewNop()
	}
	return &Registry{repo: repo, log: log}
}

func (r *Registry) Create(ctx context.Context, p auth.Principal, in CreateInput) (*models.Strategy, error) {
	if err := auth.RequirePublisher(p); err != nil {
		return nil, err
	}
	in.StrategyID = strings.TrimSpace(in.StrategyID)
	in.Name = strings.TrimSpace(in.Name)
	in.Type = strings.TrimSpace(in.Type)
	in.Category = strings.TrimSpace(in.Category)
	if in.Type == "" {
		in.Type = DefaultType
	}
	if strings.TrimSpace(in.Version) == "" {
		in.Version = DefaultVersion
	}

	details := map[string]any{}
	if !ValidIdentifier(in.StrategyID) {
		details["strategy_id"] = "must start with a letter, contain only letters, digits, '_' or '-', at most 50 characters"
	}
	if in.Name == "" || len(in.Name) > MaxNameLen {
		details["name"] = "required, at most 200 characters"
	}
	if len(in.Type) > MaxIdentifierLen {
		details["type"] = "at most 50 characters"
	}
	if len(in.Category) > MaxIdentifierLen {
		details["category"] = "at most 50 characters"
	}
	if len(in.Description) > MaxDescriptionLen {
		details["description"] = "at most 1000 characters"
	}
	if len(in.Version) > 20 {
		details["version"] = "at most 20 characters"
	}
	config, err := objectJSON(in.Config)
	if err != nil {
		details["config"] = err.Error()
	}
	params, err := objectJSON(in.Parameters)
	if err != nil {
		details["parameters"] = err.Error()
	}
	if len(details) > 0 {
		return nil, apperr.Validation("invalid strategy", details)
	}

	active := true
	if in.Active != nil {
		active = *in.Active
	}
	item := &models.Strategy{
		StrategyID:  in.StrategyID,
		OwnerID:     p.AccountID,
		Name:        in.Name,
		Description: in.Description,
		Type:        in.Type,
		Category:    in.Category,
		Config:      config,
		Parameters:  params,
		Active:      active,
		Priority:    in.Priority,
		Version:     strings.TrimSpace(in.Version),
	}
	if err := r.repo.CreateStrategy(ctx, item); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, apperr.Conflict("strategy_id already exists", map[string]any{"strategy_id": in.StrategyID})
		}
		return nil, apperr.Internal("create strategy", err)
	}
	r.log.Info("strategy created", zap.String("strategy_id", item.StrategyID), zap.Uint64("owner_id", item.OwnerID))
	return item, nil
}

func (r *Registry) Get(ctx context.Context, strategyID string) (*models.Strategy, error) {
	item, err := r.repo.GetStrategy(ctx, strings.TrimSpace(strategyID))
	if err != nil {
		return nil, apperr.Internal("get strategy", err)
	}
	if item == nil {
		return nil, apperr.NotFound("strategy", strategyID)
	}
	return item, nil
}

// GetActive is Get plus the INACTIVE check used before appends and subscriptions.
func (r *Registry) GetActive(ctx context.Context, strategyID string) (*models.Strategy, error) {
	item, err := r.Get(ctx, strategyID)
	if err != nil {
		return nil, err
	}
	if !item.Active {
		return nil, apperr.Inactive("strategy", item.StrategyID)
	}
	return item, nil
}

func (r *Registry) List(ctx context.Context, f ListFilter) ([]models.Strategy, int64, error) {
	params := repository.ListStrategiesParams{
		Limit:      f.Limit,
		Offset:     f.Offset,
		ActiveOnly: f.ActiveOnly,
	}
	if c := strings.TrimSpace(f.Category); c != "" {
		params.Category = &c
	}
	if t := strings.TrimSpace(f.Type); t != "" {
		params.Type = &t
	}
	items, err := r.repo.ListStrategies(ctx, params)
	if err != nil {
		return nil, 0, apperr.Internal("list strategies", err)
	}
	total, err := r.repo.CountStrategies(ctx, params)
	if err != nil {
		return nil, 0, apperr.Internal("count strategies", err)
	}
	return items, total, nil
}

func (r *Registry) Update(ctx context.Context, p auth.Principal, strategyID string, patch Patch) (*models.Strategy, error) {
	item, err := r.owned(ctx, p, strategyID)
	if err != nil {
		return nil, err
	}
	details := map[string]any{}
	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if name == "" || len(name) > MaxNameLen {
			details["name"] = "required, at most 200 characters"
		}
		item.Name = name
	}
	if patch.Description != nil {
		if len(*patch.Description) > MaxDescriptionLen {
			details["description"] = "at most 1000 characters"
		}
		item.Description = *patch.Description
	}
	if patch.Category != nil {
		c := strings.TrimSpace(*patch.Category)
		if len(c) > MaxIdentifierLen {
			details["category"] = "at most 50 characters"
		}
		item.Category = c
	}
	if patch.Config != nil {
		config, err := objectJSON(patch.Config)
		if err != nil {
			details["config"] = err.Error()
		}
		item.Config = config
	}
	if patch.Parameters != nil {
		params, err := objectJSON(patch.Parameters)
		if err != nil {
			details["parameters"] = err.Error()
		}
		item.Parameters = params
	}
	if patch.Priority != nil {
		item.Priority = *patch.Priority
	}
	if patch.Version != nil {
		v := strings.TrimSpace(*patch.Version)
		if v == "" || len(v) > 20 {
			details["version"] = "required, at most 20 characters"
		}
		item.Version = v
	}
	if len(details) > 0 {
		return nil, apperr.Validation("invalid strategy update", details)
	}
	if err := r.repo.UpdateStrategy(ctx, item); err != nil {
		return nil, apperr.Internal("update strategy", err)
	}
	return item, nil
}

// Deactivate stops new appends and subscriptions. Strategies are never deleted.
func (r *Registry) Deactivate(ctx context.Context, p auth.Principal, strategyID string) (*models.Strategy, error) {
	item, err := r.owned(ctx, p, strategyID)
	if err != nil {
		return nil, err
	}
	if !item.Active {
		return item, nil
	}
	item.Active = false
	if err := r.repo.UpdateStrategy(ctx, item); err != nil {
		return nil, apperr.Internal("deactivate strategy", err)
	}
	r.log.Info("strategy deactivated", zap.String("strategy_id", item.StrategyID), zap.String("by", p.Username))
	return item, nil
}

func (r *Registry) owned(ctx context.Context, p auth.Principal, strategyID string) (*models.Strategy, error) {
	if err := auth.RequirePublisher(p); err != nil {
		return nil, err
	}
	item, err := r.Get(ctx, strategyID)
	if err != nil {
		return nil, err
	}
	if !p.Owns(item.OwnerID) {
		return nil, apperr.Forbidden("not the owner of this strategy")
	}
	return item, nil
}

// objectJSON accepts a JSON object or nothing; the value is stored verbatim.
func objectJSON(raw json.RawMessage) (datatypes.JSON, error) {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return nil, nil
	}
	var obj map[string]any
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, errors.New("must be a JSON object")
	}
	return datatypes.JSON(raw), nil
}

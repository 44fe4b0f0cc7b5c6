package subscription

import (
	"encoding/json"
	"fmt"
	"strings"

	"gorm.io/datatypes"

	"github.com/andyyue2024/signal-transceiver-sub001/internal/models"
)

const maxFilterValues = 100

// Filter selects records by symbol and by the payload's "signal" field.
// An empty list matches everything.
type Filter struct {
	Symbols     []string `json:"symbols"`
	SignalTypes []string `json:"signal_types"`
}

// Match is a pure function of the record and the filter. A record whose payload
// carries no "signal" field passes the signal-type check.
func (f Filter) Match(rec *models.DataRecord) bool {
	if rec == nil {
		return false
	}
	if len(f.Symbols) > 0 && !contains(f.Symbols, rec.Symbol) {
		return false
	}
	if len(f.SignalTypes) == 0 {
		return true
	}
	signal, ok := payloadSignal(rec.Payload)
	if !ok {
		return true
	}
	return contains(f.SignalTypes, signal)
}

func (f Filter) IsEmpty() bool {
	return len(f.Symbols) == 0 && len(f.SignalTypes) == 0
}

// Normalize trims values, drops blanks and duplicates, keeping first-seen order.
func (f Filter) Normalize() Filter {
	return Filter{Symbols: cleanValues(f.Symbols), SignalTypes: cleanValues(f.SignalTypes)}
}

func (f Filter) validate() map[string]any {
	details := map[string]any{}
	if len(f.Symbols) > maxFilterValues {
		details["filters.symbols"] = fmt.Sprintf("at most %d values", maxFilterValues)
	}
	if len(f.SignalTypes) > maxFilterValues {
		details["filters.signal_types"] = fmt.Sprintf("at most %d values", maxFilterValues)
	}
	for _, s := range f.Symbols {
		if len(s) > 50 {
			details["filters.symbols"] = "values at most 50 characters"
			break
		}
	}
	return details
}

func (f Filter) JSON() datatypes.JSON {
	n := f.Normalize()
	b, _ := json.Marshal(n)
	return datatypes.JSON(b)
}

// ParseFilter decodes a stored filter; nil or empty means match-all.
func ParseFilter(raw datatypes.JSON) (Filter, error) {
	if len(strings.TrimSpace(string(raw))) == 0 || string(raw) == "null" {
		return Filter{}, nil
	}
	var f Filter
	if err := json.Unmarshal(raw, &f); err != nil {
		return Filter{}, err
	}
	return f.Normalize(), nil
}

func payloadSignal(payload datatypes.JSON) (string, bool) {
	if len(payload) == 0 {
		return "", false
	}
	var obj map[string]any
	if err := json.Unmarshal(payload, &obj); err != nil {
		return "", false
	}
	v, ok := obj["signal"]
	if !ok || v == nil {
		return "", false
	}
	if s, ok := v.(string); ok {
		return s, true
	}
	return fmt.Sprint(v), true
}

func contains(values []string, v string) bool {
	for _, item := range values {
		if item == v {
			return true
		}
	}
	return false
}

func cleanValues(items []string) []string {
	out := make([]string, 0, len(items))
	seen := map[string]struct{}{}
	for _, raw := range items {
		val := strings.TrimSpace(raw)
		if val == "" {
			continue
		}
		if _, ok := seen[val]; ok {
			continue
		}
		seen[val] = struct{}{}
		out = append(out, val)
	}
	return out
}

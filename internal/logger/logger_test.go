package logger

import (
	"testing"

	"go.uber.org/zap"

	"github.com/andyyue2024/signal-transceiver-sub001/internal/config"
)

func TestNewUnknownLevelFallsBackToInfo(t *testing.T) {
	l, err := New(config.LogConfig{Level: "loud", Encoding: "json"})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if l.Core().Enabled(zap.DebugLevel) {
		t.Fatalf("debug enabled, want info")
	}
	if !l.Core().Enabled(zap.InfoLevel) {
		t.Fatalf("info disabled")
	}
}

func TestWithAppNil(t *testing.T) {
	if WithApp(nil, config.AppConfig{Name: "x"}) == nil {
		t.Fatalf("expected nop logger")
	}
}

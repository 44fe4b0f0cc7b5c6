package audit

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/andyyue2024/signal-transceiver-sub001/internal/auth"
)

type captureSink struct {
	mu     sync.Mutex
	events []Event
	err    error
}

func (s *captureSink) Write(_ context.Context, e Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
	return s.err
}

func (s *captureSink) Close() error { return nil }

func TestRecorderAttachesPrincipal(t *testing.T) {
	sink := &captureSink{}
	r := NewRecorder(sink, nil)
	ctx := auth.WithPrincipal(context.Background(), auth.Principal{AccountID: 7, Username: "alice", Scheme: auth.SchemeClientKey})

	r.Record(ctx, "strategy_created", "info", map[string]any{"strategy_id": "alpha"})
	if len(sink.events) != 1 {
		t.Fatalf("events=%d want=1", len(sink.events))
	}
	e := sink.events[0]
	if e.ID == "" || e.AccountID != 7 || e.Username != "alice" || e.Scheme != "client_key" {
		t.Fatalf("event=%+v", e)
	}
}

func TestRecorderSwallowsSinkErrors(t *testing.T) {
	r := NewRecorder(&captureSink{err: errors.New("broker down")}, nil)
	r.Record(context.Background(), "x", "info", nil)

	var nilRecorder *Recorder
	nilRecorder.Record(context.Background(), "x", "info", nil)
}

func TestWriteMiddlewareSkipsReads(t *testing.T) {
	gin.SetMode(gin.TestMode)
	sink := &captureSink{}
	r := gin.New()
	r.Use(WriteMiddleware(NewRecorder(sink, nil)))
	r.GET("/things", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.POST("/things", func(c *gin.Context) { c.Status(http.StatusCreated) })

	for _, method := range []string{http.MethodGet, http.MethodPost} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(method, "/things", nil))
	}
	if len(sink.events) != 1 {
		t.Fatalf("events=%d want=1", len(sink.events))
	}
	if sink.events[0].Details["status"] != http.StatusCreated {
		t.Fatalf("details=%v", sink.events[0].Details)
	}
	if LevelFromStatus(503) != "error" || LevelFromStatus(404) != "warn" {
		t.Fatalf("level mapping wrong")
	}
}

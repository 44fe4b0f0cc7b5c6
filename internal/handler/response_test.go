package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/andyyue2024/signal-transceiver-sub001/internal/apperr"
)

func TestErrorEnvelope(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{apperr.Unauthenticated("x"), http.StatusUnauthorized, "UNAUTHENTICATED"},
		{apperr.Forbidden("x"), http.StatusForbidden, "FORBIDDEN"},
		{apperr.NotFound("strategy", "a"), http.StatusNotFound, "NOT_FOUND"},
		{apperr.Inactive("strategy", "a"), http.StatusUnprocessableEntity, "INACTIVE"},
		{apperr.PayloadTooLarge("payload", 10, 5), http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE"},
		{apperr.RateLimited(7), http.StatusTooManyRequests, "RATE_LIMITED"},
		{errors.New("boom"), http.StatusInternalServerError, "INTERNAL"},
	}
	for _, tc := range cases {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		Error(c, tc.err)
		if w.Code != tc.status {
			t.Fatalf("err=%v status=%d want=%d", tc.err, w.Code, tc.status)
		}
		var body errorResponse
		if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if body.Success || body.Error.Code != tc.code {
			t.Fatalf("body=%+v want code=%s", body, tc.code)
		}
		if tc.status == http.StatusInternalServerError && body.Error.Message != "internal server error" {
			t.Fatalf("internal message leaked: %q", body.Error.Message)
		}
		if tc.status == http.StatusTooManyRequests && w.Header().Get("Retry-After") != "7" {
			t.Fatalf("retry-after=%q want=7", w.Header().Get("Retry-After"))
		}
	}
}

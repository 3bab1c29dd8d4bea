// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package api

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/taibuivan/inkshelf/internal/core/chapter"
	"github.com/taibuivan/inkshelf/internal/platform/config"
	"github.com/taibuivan/inkshelf/internal/platform/constants"
	"github.com/taibuivan/inkshelf/internal/platform/sec"
)

// staticVerifier accepts exactly one token and maps it to a fixed role.
type staticVerifier struct {
	token string
	role  sec.UserRole
}

func (v staticVerifier) VerifyToken(token string) (*sec.AuthClaims, error) {
	if token != v.token {
		return nil, errors.New("unknown token")
	}
	return &sec.AuthClaims{UserID: "user-1", Role: v.role}, nil
}

func newTestServer(rps float64, burst int, verifier staticVerifier) http.Handler {
	cfg := &config.Config{
		ServerPort:           "0",
		Environment:          "test",
		RateLimitRPS:         rps,
		RateLimitBurst:       burst,
		UploadRateLimitRPS:   rps,
		UploadRateLimitBurst: burst,
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	liveness, readiness := NewHealthHandlers(HealthDependencies{}, logger)

	server := NewServer(cfg, logger, verifier, Handlers{
		Liveness:  liveness,
		Readiness: readiness,
		Chapter:   chapter.NewHandler(nil, nil),
	})
	return server.Handler()
}

func serve(handler http.Handler, method, target, token string) *httptest.ResponseRecorder {
	request := httptest.NewRequest(method, target, nil)
	request.RemoteAddr = "203.0.113.4:41000"
	if token != "" {
		request.Header.Set("Authorization", "Bearer "+token)
	}
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, request)
	return recorder
}

func TestServer_ProbesBypassRateLimit(t *testing.T) {
	handler := newTestServer(1, 1, staticVerifier{})

	for range 5 {
		recorder := serve(handler, http.MethodGet, "/health", "")
		assert.Equal(t, http.StatusOK, recorder.Code)
		assert.NotEmpty(t, recorder.Header().Get(constants.HeaderXRequestID))
	}
	assert.Equal(t, http.StatusOK, serve(handler, http.MethodGet, "/ready", "").Code)
}

func TestServer_APIIsRateLimited(t *testing.T) {
	handler := newTestServer(1, 1, staticVerifier{})

	assert.Equal(t, http.StatusNotFound, serve(handler, http.MethodGet, "/api/v1/unknown", "").Code)

	limited := serve(handler, http.MethodGet, "/api/v1/unknown", "")
	assert.Equal(t, http.StatusTooManyRequests, limited.Code)
	assert.NotEmpty(t, limited.Header().Get(constants.HeaderRetryAfter))
}

func TestServer_WritesRequireAdmin(t *testing.T) {
	handler := newTestServer(100, 100, staticVerifier{token: "reader-token", role: sec.RoleReader})

	tests := []struct {
		name   string
		token  string
		status int
	}{
		{name: "anonymous", token: "", status: http.StatusUnauthorized},
		{name: "unknown token", token: "forged", status: http.StatusUnauthorized},
		{name: "reader", token: "reader-token", status: http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recorder := serve(handler, http.MethodDelete, "/api/v1/pages/0190c1c8-8d0c-7b8e-9b1a-3c2d4e5f6a7b", tt.token)
			assert.Equal(t, tt.status, recorder.Code)
		})
	}
}

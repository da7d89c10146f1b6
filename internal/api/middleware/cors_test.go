package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Togather-Foundation/attendance/internal/config"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestCORS(t *testing.T) {
	tests := []struct {
		name       string
		cfg        config.CORSConfig
		origin     string
		wantOrigin string
	}{
		{
			name:       "development echoes any origin",
			cfg:        config.CORSConfig{AllowAllOrigins: true},
			origin:     "http://localhost:3000",
			wantOrigin: "http://localhost:3000",
		},
		{
			name:       "allowed origin",
			cfg:        config.CORSConfig{AllowedOrigins: []string{"https://event.example.org"}},
			origin:     "https://EVENT.example.org",
			wantOrigin: "https://EVENT.example.org",
		},
		{
			name:       "blocked origin",
			cfg:        config.CORSConfig{AllowedOrigins: []string{"https://event.example.org"}},
			origin:     "https://evil.example.com",
			wantOrigin: "",
		},
		{
			name:       "same origin request",
			cfg:        config.CORSConfig{AllowedOrigins: []string{"https://event.example.org"}},
			origin:     "",
			wantOrigin: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := CORS(tt.cfg, zerolog.Nop())(okHandler())

			req := httptest.NewRequest(http.MethodGet, "/inscritos", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, tt.wantOrigin, rec.Header().Get("Access-Control-Allow-Origin"))
		})
	}
}

func TestCORS_PreflightRequest(t *testing.T) {
	called := false
	handler := CORS(config.CORSConfig{AllowAllOrigins: true}, zerolog.Nop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	req := httptest.NewRequest(http.MethodOptions, "/inscricao", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.False(t, called)
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), "POST")
}

func TestCORS_LogsRejectedOrigin(t *testing.T) {
	var logs bytes.Buffer
	handler := CORS(config.CORSConfig{}, zerolog.New(&logs))(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/inscritos", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	assert.Contains(t, logs.String(), "evil.example.com")
}

package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/freight-audit/internal/common"
)

func TestGenerate_OK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "gpt-4o-mini", body["model"])

		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":" {\"height\":1} "}}]}`))
	}))
	defer srv.Close()

	c, err := NewClient(Config{APIKey: "test-key", BaseURL: srv.URL}, nil)
	require.NoError(t, err)
	out, err := c.Generate(context.Background(), "prompt")
	require.NoError(t, err)
	assert.Equal(t, `{"height":1}`, out)
}

func TestGenerate_Failures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"server error", http.StatusInternalServerError, `{"error":"boom"}`},
		{"no choices", http.StatusOK, `{"choices":[]}`},
		{"bad json", http.StatusOK, `not json`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			c, err := NewClient(Config{APIKey: "k", BaseURL: srv.URL}, nil)
			require.NoError(t, err)
			_, err = c.Generate(context.Background(), "p")
			require.Error(t, err)
			assert.True(t, errors.Is(err, common.ErrExternalService))
		})
	}
}

func TestNewClient_Config(t *testing.T) {
	_, err := NewClient(Config{}, nil)
	assert.True(t, errors.Is(err, common.ErrInvalidInput))

	c, err := NewClient(Config{APIKey: "k", Temperature: 3}, nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultBaseURL, c.cfg.BaseURL)
	assert.Equal(t, DefaultModel, c.cfg.Model)
	assert.Equal(t, DefaultTimeout, c.http.Timeout)
	assert.Equal(t, float32(2), c.cfg.Temperature)
}

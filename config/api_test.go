package config

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test helper: create a test router backed by a fresh store
func setupTestConfigRouter(t *testing.T) (*gin.Engine, *ConfigStore) {
	gin.SetMode(gin.TestMode)
	store := createTestConfigStore(t)
	return NewConfigAPIServer(store).SetupRouter(), store
}

func serve(router *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

// TestHandleGetConfig_Empty verifies an unconfigured store reports
// incomplete settings
func TestHandleGetConfig_Empty(t *testing.T) {
	router, _ := setupTestConfigRouter(t)

	w := serve(router, http.MethodGet, "/api/v1/config", "")
	assert.Equal(t, http.StatusOK, w.Code)

	var resp settingsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.Complete)
	assert.Empty(t, resp.BaseURL)
}

// TestHandleUpdateConfig_MasksKey verifies updates are stored and the key is
// masked in the response
func TestHandleUpdateConfig_MasksKey(t *testing.T) {
	router, store := setupTestConfigRouter(t)

	w := serve(router, http.MethodPut, "/api/v1/config",
		`{"base_url":"https://api.x.ai/v1","api_key":"xai-abcdef123456","model_name":"grok-3"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp settingsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Complete)
	assert.Equal(t, "************3456", resp.APIKey)
	assert.NotContains(t, w.Body.String(), "abcdef")

	stored, err := store.GetSettings()
	require.NoError(t, err)
	assert.Equal(t, "xai-abcdef123456", stored.APIKey)
}

func TestHandleUpdateConfig_Validation(t *testing.T) {
	router, _ := setupTestConfigRouter(t)

	tests := []struct {
		name string
		body string
		code string
	}{
		{"malformed json", `{"base_url":`, "bad_request"},
		{"relative url", `{"base_url":"api.x.ai"}`, "validation_error"},
		{"ftp url", `{"base_url":"ftp://api.x.ai"}`, "validation_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serve(router, http.MethodPut, "/api/v1/config", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)

			var resp struct {
				Error struct {
					Code string `json:"code"`
				} `json:"error"`
			}
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, tt.code, resp.Error.Code)
		})
	}
}

func TestCORS_Preflight(t *testing.T) {
	router, _ := setupTestConfigRouter(t)

	w := serve(router, http.MethodOptions, "/api/v1/config", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

package config

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
)

// ConfigAPIServer represents the HTTP API server for configuration
// management.
type ConfigAPIServer struct {
	store *ConfigStore
}

// NewConfigAPIServer creates a new config API server.
func NewConfigAPIServer(store *ConfigStore) *ConfigAPIServer {
	return &ConfigAPIServer{
		store: store,
	}
}

// SetupRouter configures the Gin router with config API routes.
func (c *ConfigAPIServer) SetupRouter() *gin.Engine {
	router := gin.Default()
	router.Use(CORS())
	c.RegisterRoutes(router.Group("/api/v1"))
	return router
}

// RegisterRoutes adds the config routes to group.
func (c *ConfigAPIServer) RegisterRoutes(group *gin.RouterGroup) {
	group.GET("/config", c.HandleGetConfig)
	group.PUT("/config", c.HandleUpdateConfig)
}

// CORS allows any origin, as the API is called from browser extensions and
// local pages.
func CORS() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		ctx.Header("Access-Control-Allow-Origin", "*")
		ctx.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		ctx.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if ctx.Request.Method == "OPTIONS" {
			ctx.AbortWithStatus(http.StatusOK)
			return
		}

		ctx.Next()
	}
}

// ErrorResponse creates a standardized error response.
func ErrorResponse(code, message string) gin.H {
	return gin.H{
		"error": gin.H{
			"code":    code,
			"message": message,
		},
	}
}

// settingsResponse is the body of both config routes. The API key is never
// echoed back in full.
type settingsResponse struct {
	Settings
	Complete bool `json:"complete"`
}

func newSettingsResponse(s *Settings) settingsResponse {
	return settingsResponse{Settings: s.Masked(), Complete: s.Complete()}
}

// HandleGetConfig handles GET /api/v1/config.
func (c *ConfigAPIServer) HandleGetConfig(ctx *gin.Context) {
	settings, err := c.store.GetSettings()
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, ErrorResponse("internal_error", "Failed to retrieve configuration"))
		return
	}

	ctx.JSON(http.StatusOK, newSettingsResponse(settings))
}

// HandleUpdateConfig handles PUT /api/v1/config.
func (c *ConfigAPIServer) HandleUpdateConfig(ctx *gin.Context) {
	var updates Settings
	if err := ctx.ShouldBindJSON(&updates); err != nil {
		ctx.JSON(http.StatusBadRequest, ErrorResponse("bad_request", err.Error()))
		return
	}

	if updates.BaseURL != "" {
		if err := validateBaseURL(strings.TrimSpace(updates.BaseURL)); err != nil {
			ctx.JSON(http.StatusBadRequest, ErrorResponse("validation_error", err.Error()))
			return
		}
	}

	if err := c.store.UpdateSettings(&updates); err != nil {
		ctx.JSON(http.StatusInternalServerError, ErrorResponse("internal_error", "Failed to update configuration"))
		return
	}

	settings, err := c.store.GetSettings()
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, ErrorResponse("internal_error", "Failed to retrieve configuration"))
		return
	}
	ctx.JSON(http.StatusOK, newSettingsResponse(settings))
}

// validateBaseURL validates that the base URL is an absolute http(s) URL.
func validateBaseURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return errors.New("invalid base_url: must be an absolute http(s) URL (e.g., https://api.x.ai/v1)")
	}
	return nil
}

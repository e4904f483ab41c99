package pagecat

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/pevans/pagecat/config"
	"github.com/pevans/pagecat/extract"
	"github.com/pevans/pagecat/history"
	"github.com/pevans/pagecat/llm"
	"github.com/pevans/pagecat/runs"
	"github.com/pevans/pagecat/scroll"
)

// APIServer exposes the service over HTTP.
type APIServer struct {
	service  *Service
	settings *config.ConfigStore
	history  *history.Store
	runs     *runs.Store
}

// NewAPIServer creates an API server. The stores are optional; routes whose
// store is nil are not registered.
func NewAPIServer(service *Service, settings *config.ConfigStore, hist *history.Store, runStore *runs.Store) *APIServer {
	return &APIServer{
		service:  service,
		settings: settings,
		history:  hist,
		runs:     runStore,
	}
}

// SetupRouter configures the Gin router with all API routes.
func (s *APIServer) SetupRouter() *gin.Engine {
	router := gin.Default()
	router.Use(config.CORS())

	api := router.Group("/api/v1")
	api.POST("/extract", s.HandleExtract)
	api.POST("/process", s.HandleProcess)
	api.GET("/progress", s.HandleProgress)

	if s.settings != nil {
		config.NewConfigAPIServer(s.settings).RegisterRoutes(api)
	}
	if s.history != nil {
		api.GET("/history", s.HandleListHistory)
	}
	if s.runs != nil {
		api.GET("/runs", s.HandleListRuns)
		api.GET("/runs/:id", s.HandleGetRun)
		api.DELETE("/runs/:id", s.HandleDeleteRun)
	}

	return router
}

// ExtractRequest is the body of POST /api/v1/extract.
type ExtractRequest struct {
	URL string `json:"url"`
}

// HandleExtract handles POST /api/v1/extract.
func (s *APIServer) HandleExtract(c *gin.Context) {
	var req ExtractRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, config.ErrorResponse("bad_request", "Invalid request body: "+err.Error()))
		return
	}

	resp := s.service.Extract(c.Request.Context(), req.URL)
	c.JSON(statusFor(resp.Err()), resp)
}

// ProcessResponse is the body of a successful POST /api/v1/process.
type ProcessResponse struct {
	Data  any        `json:"data"`
	Table *llm.Table `json:"table,omitempty"`
	Count int        `json:"count"`
	RunID string     `json:"runId,omitempty"`
}

// HandleProcess handles POST /api/v1/process.
func (s *APIServer) HandleProcess(c *gin.Context) {
	var req ProcessRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, config.ErrorResponse("bad_request", "Invalid request body: "+err.Error()))
		return
	}

	result, err := s.service.Process(c.Request.Context(), req)
	if err != nil {
		body := config.ErrorResponse(errorCode(err), err.Error())
		var mismatch *extract.MismatchError
		if errors.As(err, &mismatch) {
			body["diagnostic"] = mismatch.Diagnostic
		}
		c.JSON(statusFor(err), body)
		return
	}

	c.JSON(http.StatusOK, ProcessResponse{
		Data:  result.Answer.Data(),
		Table: result.Answer.Table,
		Count: len(result.Records),
		RunID: result.RunID,
	})
}

// HandleProgress handles GET /api/v1/progress, streaming every progress
// update as a server-sent "progress" event until the client disconnects.
func (s *APIServer) HandleProgress(c *gin.Context) {
	updates, unsubscribe := s.service.Progress().Subscribe()
	defer unsubscribe()

	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	done := c.Request.Context().Done()
	c.Stream(func(w io.Writer) bool {
		select {
		case p, ok := <-updates:
			if !ok {
				return false
			}
			c.SSEvent("progress", p)
			return true
		case <-done:
			return false
		}
	})
}

// HandleListHistory handles GET /api/v1/history.
func (s *APIServer) HandleListHistory(c *gin.Context) {
	entries, err := s.history.List()
	if err != nil {
		c.JSON(http.StatusInternalServerError, config.ErrorResponse("internal_error", "Failed to list history: "+err.Error()))
		return
	}

	c.JSON(http.StatusOK, gin.H{"history": entries})
}

// RunSummary describes a stored run without its records.
type RunSummary struct {
	ID         uuid.UUID         `json:"id"`
	SourceURL  string            `json:"source_url"`
	Timestamp  time.Time         `json:"timestamp"`
	StopReason scroll.StopReason `json:"stop_reason"`
	Ticks      int               `json:"ticks"`
	Count      int               `json:"count"`
}

// ListRunsResponse is the body of GET /api/v1/runs.
type ListRunsResponse struct {
	Runs   []RunSummary `json:"runs"`
	Total  int          `json:"total"`
	Errors []string     `json:"errors,omitempty"`
}

// HandleListRuns handles GET /api/v1/runs.
func (s *APIServer) HandleListRuns(c *gin.Context) {
	result, err := s.runs.List()
	if err != nil {
		c.JSON(http.StatusInternalServerError, config.ErrorResponse("internal_error", "Failed to list runs: "+err.Error()))
		return
	}

	resp := ListRunsResponse{Runs: make([]RunSummary, 0, len(result.Runs))}
	for _, run := range result.Runs {
		resp.Runs = append(resp.Runs, RunSummary{
			ID:         run.ID,
			SourceURL:  run.SourceURL,
			Timestamp:  run.Timestamp,
			StopReason: run.StopReason,
			Ticks:      run.Ticks,
			Count:      len(run.Records),
		})
	}
	for _, readErr := range result.Errors {
		resp.Errors = append(resp.Errors, readErr.Error())
	}
	resp.Total = len(resp.Runs)

	c.JSON(http.StatusOK, resp)
}

// HandleGetRun handles GET /api/v1/runs/{id}.
func (s *APIServer) HandleGetRun(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, config.ErrorResponse("invalid_id", "Invalid run ID: "+err.Error()))
		return
	}

	run, err := s.runs.Get(id)
	if errors.Is(err, runs.ErrRunNotFound) {
		c.JSON(http.StatusNotFound, config.ErrorResponse("not_found", "Run with ID "+id.String()+" not found"))
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, config.ErrorResponse("internal_error", "Failed to get run: "+err.Error()))
		return
	}

	c.JSON(http.StatusOK, run)
}

// HandleDeleteRun handles DELETE /api/v1/runs/{id}.
func (s *APIServer) HandleDeleteRun(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, config.ErrorResponse("invalid_id", "Invalid run ID: "+err.Error()))
		return
	}

	if err := s.runs.Delete(id); err != nil {
		if errors.Is(err, runs.ErrRunNotFound) {
			c.JSON(http.StatusNotFound, config.ErrorResponse("not_found", "Run with ID "+id.String()+" not found"))
			return
		}
		c.JSON(http.StatusInternalServerError, config.ErrorResponse("internal_error", "Failed to delete run: "+err.Error()))
		return
	}

	c.Status(http.StatusNoContent)
}

// statusFor maps a service error to an HTTP status.
func statusFor(err error) int {
	var mismatch *extract.MismatchError
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrMissingURL), errors.Is(err, ErrMissingQuery):
		return http.StatusBadRequest
	case errors.Is(err, config.ErrSettingsMissing):
		return http.StatusPreconditionFailed
	case errors.As(err, &mismatch):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusBadGateway
	}
}

func errorCode(err error) string {
	switch {
	case errors.Is(err, ErrMissingURL), errors.Is(err, ErrMissingQuery):
		return "validation_error"
	case errors.Is(err, config.ErrSettingsMissing):
		return "config_missing"
	case errors.Is(err, ErrExtraction):
		return "extraction_error"
	case errors.Is(err, ErrCompletion):
		return "llm_error"
	default:
		return "internal_error"
	}
}

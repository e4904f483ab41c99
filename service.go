// Package pagecat coordinates feed extraction: it opens a page, scrolls it to
// the bottom while collecting posts, stores the run and optionally asks a
// completion model about the result.
package pagecat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/pevans/pagecat/config"
	"github.com/pevans/pagecat/extract"
	"github.com/pevans/pagecat/llm"
	"github.com/pevans/pagecat/page"
	"github.com/pevans/pagecat/post"
	"github.com/pevans/pagecat/runs"
	"github.com/pevans/pagecat/scraper"
	"github.com/pevans/pagecat/scroll"
	"github.com/sirupsen/logrus"
	"github.com/tmc/langchaingo/llms"
)

// Response statuses.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// timestampLayout matches JavaScript's Date.toISOString.
const timestampLayout = "2006-01-02T15:04:05.000Z"

var (
	// ErrExtraction prefixes failures to collect records from the page.
	ErrExtraction = errors.New("Page extraction error")

	// ErrCompletion prefixes failures of the completion API.
	ErrCompletion = errors.New("LLM API Error")

	// ErrMissingURL is returned when no page URL is given.
	ErrMissingURL = errors.New("url is required")

	// ErrMissingQuery is returned when Process is called without an
	// instruction.
	ErrMissingQuery = errors.New("query is required")
)

// Metadata describes an extraction result.
type Metadata struct {
	TotalCount int    `json:"totalNotes"`
	SourceURL  string `json:"url"`
	Timestamp  string `json:"timestamp"`
	RunID      string `json:"runId,omitempty"`
}

// Response is the outcome of an extraction.
type Response struct {
	Status     string              `json:"status"`
	Data       []post.Record       `json:"data"`
	Metadata   *Metadata           `json:"metadata,omitempty"`
	Message    string              `json:"message,omitempty"`
	Diagnostic *extract.Diagnostic `json:"diagnostic,omitempty"`

	err error
}

// MarshalJSON writes data on every success, as an empty array when the feed
// held no posts, and leaves it out of error responses.
func (r Response) MarshalJSON() ([]byte, error) {
	type response Response

	var data *[]post.Record
	if r.Status == StatusSuccess {
		records := r.Data
		if records == nil {
			records = []post.Record{}
		}
		data = &records
	}

	return json.Marshal(struct {
		response
		Data *[]post.Record `json:"data,omitempty"`
	}{response: response(r), Data: data})
}

// Err returns the error behind an error response.
func (r *Response) Err() error {
	return r.err
}

func errorResponse(err error) *Response {
	r := &Response{Status: StatusError, Message: err.Error(), err: err}
	var mismatch *extract.MismatchError
	if errors.As(err, &mismatch) {
		r.Diagnostic = mismatch.Diagnostic
	}
	return r
}

// ProcessRequest asks the completion model about the posts on URL.
type ProcessRequest struct {
	URL   string `json:"url"`
	Query string `json:"query"`
}

// ProcessResult is a successful Process call.
type ProcessResult struct {
	Records []post.Record
	Answer  *llm.Answer
	RunID   string
}

// SettingsSource provides the completion API settings.
type SettingsSource interface {
	GetSettings() (*config.Settings, error)
}

// QueryRecorder remembers instructions.
type QueryRecorder interface {
	Save(query string) error
}

// RunRecorder stores completed runs.
type RunRecorder interface {
	Add(run runs.Run) (*runs.Run, error)
}

// ModelFactory builds a completion model from settings.
type ModelFactory func(config.Settings) (llms.Model, error)

// Service runs extractions. Each call opens its own page, so calls may run
// concurrently.
type Service struct {
	opener      page.Opener
	profile     scraper.Profile
	scrollCfg   scroll.Config
	scrollOpts  []scroll.Option
	settings    SettingsSource
	history     QueryRecorder
	runs        RunRecorder
	newModel    ModelFactory
	rpm         int
	hub         *ProgressHub
	logger      *logrus.Logger
	now         func() time.Time
	analystMu   sync.Mutex
	analyst     *llm.Analyst
	analystFrom config.Settings
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithProfile replaces the built-in selector profile.
func WithProfile(profile scraper.Profile) ServiceOption {
	return func(s *Service) {
		s.profile = profile
	}
}

// WithScrollConfig replaces the default scroll tuning.
func WithScrollConfig(cfg scroll.Config) ServiceOption {
	return func(s *Service) {
		s.scrollCfg = cfg
	}
}

// WithScrollOptions passes options to every scroll driver.
func WithScrollOptions(opts ...scroll.Option) ServiceOption {
	return func(s *Service) {
		s.scrollOpts = append(s.scrollOpts, opts...)
	}
}

// WithSettings sets where completion API settings are read from.
func WithSettings(src SettingsSource) ServiceOption {
	return func(s *Service) {
		s.settings = src
	}
}

// WithHistory records every processed instruction.
func WithHistory(h QueryRecorder) ServiceOption {
	return func(s *Service) {
		s.history = h
	}
}

// WithRuns stores every successful extraction.
func WithRuns(r RunRecorder) ServiceOption {
	return func(s *Service) {
		s.runs = r
	}
}

// WithModelFactory replaces the OpenAI-compatible client.
func WithModelFactory(f ModelFactory) ServiceOption {
	return func(s *Service) {
		s.newModel = f
	}
}

// WithRequestsPerMinute paces completion calls.
func WithRequestsPerMinute(rpm int) ServiceOption {
	return func(s *Service) {
		s.rpm = rpm
	}
}

// WithLogger sets the logger.
func WithLogger(logger *logrus.Logger) ServiceOption {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithClock sets the clock used for relative dates and timestamps.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		s.now = now
	}
}

// NewService creates a service that opens pages with opener.
func NewService(opener page.Opener, opts ...ServiceOption) *Service {
	s := &Service{
		opener:    opener,
		profile:   scraper.XiaohongshuProfile(),
		scrollCfg: scroll.DefaultConfig(),
		newModel:  llm.NewOpenAIModel,
		hub:       NewProgressHub(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logrus.New()
		s.logger.SetOutput(io.Discard)
	}
	return s
}

// Progress returns the hub every extraction publishes to.
func (s *Service) Progress() *ProgressHub {
	return s.hub
}

// Extract scrolls the page at url to the bottom and returns every distinct
// post. Failures are reported in the response, never as partial data.
func (s *Service) Extract(ctx context.Context, url string) *Response {
	url = strings.TrimSpace(url)
	if url == "" {
		return errorResponse(ErrMissingURL)
	}

	log := s.logger.WithField("url", url)
	log.Info("Starting extraction")

	out, err := s.run(ctx, url)
	if err != nil {
		log.WithField("error", err).Error("Extraction failed")
		return errorResponse(err)
	}

	meta := &Metadata{
		TotalCount: len(out.Records),
		SourceURL:  url,
		Timestamp:  s.now().UTC().Format(timestampLayout),
	}

	if s.runs != nil {
		run, err := s.runs.Add(runs.Run{
			SourceURL:  url,
			Timestamp:  s.now().UTC(),
			Records:    out.Records,
			StopReason: out.StopReason,
			Ticks:      out.Ticks,
		})
		if err != nil {
			log.WithField("error", err).Warn("Failed to save run")
		} else {
			meta.RunID = run.ID.String()
		}
	}

	log.WithFields(logrus.Fields{
		"count":  len(out.Records),
		"ticks":  out.Ticks,
		"reason": out.StopReason,
	}).Info("Extraction complete")

	return &Response{
		Status:   StatusSuccess,
		Data:     out.Records,
		Metadata: meta,
	}
}

func (s *Service) run(ctx context.Context, url string) (*scroll.Outcome, error) {
	p, err := s.opener.Open(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to open page: %w", err)
	}
	if closer, ok := p.(io.Closer); ok {
		defer closer.Close()
	}

	opts := []scroll.Option{
		scroll.WithLogger(s.logger),
		scroll.WithProgress(s.hub.Publish),
	}
	opts = append(opts, s.scrollOpts...)

	driver, err := scroll.NewDriver(p, extract.New(s.profile, extract.WithClock(s.now)), s.scrollCfg, opts...)
	if err != nil {
		return nil, err
	}
	return driver.Run(ctx)
}

// Process extracts the posts on req.URL and asks the completion model to
// answer req.Query about them.
func (s *Service) Process(ctx context.Context, req ProcessRequest) (*ProcessResult, error) {
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return nil, ErrMissingQuery
	}

	analyst, err := s.analystFor()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCompletion, err)
	}

	if s.history != nil {
		if err := s.history.Save(query); err != nil {
			s.logger.WithField("error", err).Warn("Failed to save query history")
		}
	}

	resp := s.Extract(ctx, req.URL)
	if resp.Status != StatusSuccess {
		return nil, fmt.Errorf("%w: %w", ErrExtraction, resp.Err())
	}

	answer, err := analyst.Ask(ctx, resp.Data, query)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCompletion, err)
	}

	return &ProcessResult{
		Records: resp.Data,
		Answer:  answer,
		RunID:   resp.Metadata.RunID,
	}, nil
}

// analystFor returns an analyst for the current settings, reusing the last
// one while the settings are unchanged so that pacing carries across calls.
func (s *Service) analystFor() (*llm.Analyst, error) {
	if s.settings == nil {
		return nil, config.ErrSettingsMissing
	}
	settings, err := s.settings.GetSettings()
	if err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}
	if err := settings.Validate(); err != nil {
		return nil, err
	}

	s.analystMu.Lock()
	defer s.analystMu.Unlock()

	if s.analyst != nil && s.analystFrom == *settings {
		return s.analyst, nil
	}

	model, err := s.newModel(*settings)
	if err != nil {
		return nil, err
	}
	s.analyst = llm.NewAnalyst(model, s.rpm, s.logger)
	s.analystFrom = *settings
	return s.analyst, nil
}

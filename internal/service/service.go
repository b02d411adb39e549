// Package service is the caller-facing API shared by the CLI and the HTTP
// server.
package service

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"applyforge/internal/ai"
	"applyforge/internal/config"
	"applyforge/internal/errors"
	"applyforge/internal/extraction"
	"applyforge/internal/pipeline"
	"applyforge/internal/store"
	"applyforge/internal/types"
)

// Metrics receives outcomes for every operation the service runs
type Metrics interface {
	pipeline.Recorder
	RecordExtraction(ctx context.Context, duration time.Duration, err error)
}

// Service ties the pipeline, the extractor and the résumé store together
type Service struct {
	client       ai.Client
	orchestrator *pipeline.Orchestrator
	extractor    *extraction.Extractor
	store        store.ResumeStore
	metrics      Metrics
	logger       *errors.Logger
}

// Option configures a Service
type Option func(*Service)

// WithMetrics reports run, stage and extraction outcomes to m
func WithMetrics(m Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// New creates a Service. client and resumes are owned by the Service and
// released by Close.
func New(cfg config.AIConfig, client ai.Client, resumes store.ResumeStore, logger *errors.Logger, opts ...Option) *Service {
	s := &Service{
		client: client,
		store:  resumes,
		logger: logger,
	}
	for _, opt := range opts {
		opt(s)
	}

	var pipelineOpts []pipeline.Option
	if s.metrics != nil {
		pipelineOpts = append(pipelineOpts, pipeline.WithRecorder(s.metrics))
	}
	s.orchestrator = pipeline.NewOrchestrator(client, cfg.Directives, logger, pipelineOpts...)
	s.extractor = extraction.NewExtractor(client, cfg.Directives.Override(config.DirectiveResume), logger)
	return s
}

// GenerateMaterials runs the generation pipeline. A nil resume selects the
// saved résumé; store.ErrResumeNotFound is returned when there is none.
func (s *Service) GenerateMaterials(ctx context.Context, jobDescription, companyDescription string, resume *types.ResumeData) (*types.PipelineResult, error) {
	if resume == nil {
		if err := pipeline.ValidateDescriptions(jobDescription, companyDescription); err != nil {
			return nil, err
		}
		saved, err := s.store.Get(ctx)
		if stderrors.Is(err, store.ErrResumeNotFound) {
			return nil, fmt.Errorf("%w: provide a resume or parse one first", err)
		}
		if err != nil {
			return nil, err
		}
		s.logger.Debug("Using saved resume for generation")
		resume = saved
	}

	return s.orchestrator.Run(ctx, jobDescription, companyDescription, resume)
}

// ParseResumeDocument extracts ResumeData from a document and saves it as
// the new default résumé. A failed save is logged and does not fail the call.
func (s *Service) ParseResumeDocument(ctx context.Context, raw []byte, mimeType string) (*types.ResumeData, error) {
	start := time.Now()
	resume, err := s.extractor.Extract(ctx, raw, mimeType)
	if s.metrics != nil {
		s.metrics.RecordExtraction(ctx, time.Since(start), err)
	}
	if err != nil {
		return nil, err
	}

	if err := s.store.Put(ctx, resume); err != nil {
		s.logger.LogError(err, "Failed to save parsed resume")
	}
	return resume, nil
}

// SavedResume returns the saved résumé or store.ErrResumeNotFound
func (s *Service) SavedResume(ctx context.Context) (*types.ResumeData, error) {
	return s.store.Get(ctx)
}

// ModelInfo reports model availability
func (s *Service) ModelInfo(ctx context.Context) *ai.ModelInfo {
	return s.client.ModelInfo(ctx)
}

// Stats returns inference client statistics
func (s *Service) Stats() map[string]any {
	return s.client.Stats()
}

// Stages returns the pipeline stage names in order
func (s *Service) Stages() []string {
	return s.orchestrator.Stages()
}

// Directives returns the directive each pipeline stage and résumé
// extraction currently send
func (s *Service) Directives() map[string]string {
	directives := s.orchestrator.Directives()
	directives[config.DirectiveResume] = s.extractor.Directive()
	return directives
}

// SetDirective replaces the directive of a pipeline stage or of résumé
// extraction for calls that start afterwards
func (s *Service) SetDirective(stage, directive string) error {
	if stage == config.DirectiveResume {
		s.extractor.SetDirective(directive)
		s.logger.Info("Extraction directive replaced", "directive_chars", len(directive))
		return nil
	}
	return s.orchestrator.SetDirective(stage, directive)
}

// StoreHealth pings the résumé store when it is backed by a remote service.
// Local stores always report healthy.
func (s *Service) StoreHealth(ctx context.Context) error {
	if p, ok := s.store.(store.Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}

// Close releases the client and the store
func (s *Service) Close() error {
	return stderrors.Join(s.client.Close(), s.store.Close())
}

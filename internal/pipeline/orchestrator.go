package pipeline

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"applyforge/internal/ai"
	"applyforge/internal/config"
	"applyforge/internal/errors"
	"applyforge/internal/types"
)

// Recorder receives run and stage outcomes for metrics. err is nil on success.
type Recorder interface {
	RecordStage(ctx context.Context, stage string, duration time.Duration, err error)
	RecordRun(ctx context.Context, duration time.Duration, err error)
}

type runIDKey struct{}

// WithRunID attaches a run id to ctx. Run uses it instead of generating one.
func WithRunID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, runIDKey{}, id)
}

// RunID returns the run id attached to ctx, if any
func RunID(ctx context.Context) string {
	id, _ := ctx.Value(runIDKey{}).(string)
	return id
}

// NewRunID generates a run id
func NewRunID() string {
	return uuid.NewString()
}

// Orchestrator runs the four stages in order. Runs share no mutable state,
// so one Orchestrator may serve concurrent runs.
type Orchestrator struct {
	context  *Stage[ContextInput, types.ContextAnalysis]
	strategy *Stage[StrategyInput, types.Strategy]
	content  *Stage[ContentInput, types.GeneratedContent]
	qa       *Stage[QAInput, types.QualityReview]
	logger   *errors.Logger
	recorder Recorder
}

// Option configures an Orchestrator
type Option func(*Orchestrator)

// WithRecorder reports stage and run outcomes to r
func WithRecorder(r Recorder) Option {
	return func(o *Orchestrator) { o.recorder = r }
}

// NewOrchestrator wires the four stages to one shared client
func NewOrchestrator(client ai.Client, directives config.DirectiveConfig, logger *errors.Logger, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		context:  NewContextStage(client, resolveDirective(directives, StageContext)),
		strategy: NewStrategyStage(client, resolveDirective(directives, StageStrategy)),
		content:  NewContentStage(client, resolveDirective(directives, StageContent)),
		qa:       NewQAStage(client, resolveDirective(directives, StageQA)),
		logger:   logger,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// SetDirective swaps the directive of one stage while runs are in flight.
// A blank directive restores the built-in default.
func (o *Orchestrator) SetDirective(stage, directive string) error {
	directive = strings.TrimSpace(directive)
	if directive == "" {
		directive = DefaultDirectives[stage]
	}

	switch stage {
	case StageContext:
		o.context.SetDirective(directive)
	case StageStrategy:
		o.strategy.SetDirective(directive)
	case StageContent:
		o.content.SetDirective(directive)
	case StageQA:
		o.qa.SetDirective(directive)
	default:
		return fmt.Errorf("unknown pipeline stage %q", stage)
	}
	o.logger.Info("Stage directive replaced", "stage", stage, "directive_chars", len(directive))
	return nil
}

// Directives returns the directive each stage currently sends
func (o *Orchestrator) Directives() map[string]string {
	return map[string]string{
		o.context.Name():  o.context.Directive(),
		o.strategy.Name(): o.strategy.Directive(),
		o.content.Name():  o.content.Directive(),
		o.qa.Name():       o.qa.Directive(),
	}
}

// Stages returns the stage names in execution order
func (o *Orchestrator) Stages() []string {
	return []string{o.context.Name(), o.strategy.Name(), o.content.Name(), o.qa.Name()}
}

// Run executes one generation run. It returns a complete result or a
// *errors.PipelineFailure naming the first stage that failed; no later
// stage is invoked after a failure.
func (o *Orchestrator) Run(ctx context.Context, jobDescription, companyDescription string, resume *types.ResumeData) (*types.PipelineResult, error) {
	if err := validateInputs(jobDescription, companyDescription, resume); err != nil {
		return nil, err
	}

	runID := RunID(ctx)
	if runID == "" {
		runID = NewRunID()
		ctx = WithRunID(ctx, runID)
	}
	logger := o.logger.With("run_id", runID)

	ctx, span := otel.Tracer("applyforge.pipeline").Start(ctx, "pipeline.run")
	defer span.End()
	span.SetAttributes(
		attribute.String("pipeline.run_id", runID),
		attribute.Int("input.job_length", len(jobDescription)),
		attribute.Int("input.company_length", len(companyDescription)),
	)

	start := time.Now()
	logger.Info("Pipeline run started")

	result, err := o.run(ctx, logger, jobDescription, companyDescription, resume)

	duration := time.Since(start)
	if o.recorder != nil {
		o.recorder.RecordRun(ctx, duration, err)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.LogError(err, "Pipeline run failed", "duration", duration)
		return nil, err
	}

	span.SetAttributes(attribute.Float64("pipeline.quality_score", result.QualityScore))
	logger.Info("Pipeline run completed",
		"duration", duration,
		"quality_score", result.QualityScore)
	return result, nil
}

func (o *Orchestrator) run(ctx context.Context, logger *errors.Logger, job, company string, resume *types.ResumeData) (*types.PipelineResult, error) {
	analysis, err := runStep(ctx, o, logger, 1, o.context, ContextInput{
		JobDescription:     job,
		CompanyDescription: company,
		Resume:             resume,
	})
	if err != nil {
		return nil, err
	}

	strategy, err := runStep(ctx, o, logger, 2, o.strategy, StrategyInput{
		Context: analysis,
		Resume:  resume,
	})
	if err != nil {
		return nil, err
	}

	content, err := runStep(ctx, o, logger, 3, o.content, ContentInput{
		Context:  analysis,
		Strategy: strategy,
		Resume:   resume,
	})
	if err != nil {
		return nil, err
	}

	review, err := runStep(ctx, o, logger, 4, o.qa, QAInput{
		Context:  analysis,
		Strategy: strategy,
		Content:  content,
	})
	if err != nil {
		return nil, err
	}

	return &types.PipelineResult{
		Email:           content.Email,
		Memo:            content.Memo,
		QualityScore:    review.OverallScore,
		ContextAnalysis: analysis,
		Strategy:        strategy,
		QualityAnalysis: review,
	}, nil
}

// runStep runs one stage and lifts its failure into a PipelineFailure
func runStep[TIn, TOut any](ctx context.Context, o *Orchestrator, logger *errors.Logger, position int, stage *Stage[TIn, TOut], in TIn) (TOut, error) {
	logger.Debug("Stage started", "stage", stage.Name(), "stage_position", position)
	start := time.Now()

	out, err := stage.Run(ctx, in)

	duration := time.Since(start)
	if o.recorder != nil {
		o.recorder.RecordStage(ctx, stage.Name(), duration, err)
	}
	if err != nil {
		var zero TOut
		return zero, &errors.PipelineFailure{Stage: stage.Name(), Position: position, Cause: err}
	}

	logger.Debug("Stage completed",
		"stage", stage.Name(),
		"stage_position", position,
		"duration", duration)
	return out, nil
}

// ValidateDescriptions checks the job and company text a run needs. It is
// the part of input validation that does not depend on the résumé.
func ValidateDescriptions(job, company string) error {
	return invalidRequest(descriptionProblems(job, company))
}

func validateInputs(job, company string, resume *types.ResumeData) error {
	problems := descriptionProblems(job, company)
	if resume == nil {
		problems = append(problems, stderrors.New("resume is required"))
	}
	return invalidRequest(problems)
}

func descriptionProblems(job, company string) []error {
	var problems []error
	if strings.TrimSpace(job) == "" {
		problems = append(problems, stderrors.New("job description is required"))
	}
	if strings.TrimSpace(company) == "" {
		problems = append(problems, stderrors.New("company description is required"))
	}
	return problems
}

func invalidRequest(problems []error) error {
	if len(problems) == 0 {
		return nil
	}
	cause := stderrors.Join(problems...)
	return errors.NewValidationError(errors.ErrCodeInvalidRequest, strings.ReplaceAll(cause.Error(), "\n", "; "), cause)
}

package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var (
	aiDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "gema",
		Subsystem: "ai",
		Name:      "evaluation_duration_seconds",
		Help:      "Duration of AI evaluation requests",
	}, []string{"model", "kind"})

	aiFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gema",
		Subsystem: "ai",
		Name:      "evaluation_failures_total",
		Help:      "Number of AI evaluation failures",
	}, []string{"model", "kind"})
)

const responseSchema = `{
  "type": "object",
  "required": ["overall_score", "overall_feedback", "criteria"],
  "properties": {
    "overall_score": {"type": "number"},
    "overall_feedback": {"type": "string", "minLength": 1},
    "criteria": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["title", "score"],
        "properties": {
          "criterion_id": {"type": "integer", "minimum": 0},
          "title": {"type": "string"},
          "score": {"type": "number"},
          "feedback": {"type": "string"}
        }
      }
    }
  }
}`

var compiledResponseSchema = jsonschema.MustCompileString("evaluation-response.json", responseSchema)

// OpenAIConfig defines configuration options for the OpenAI evaluator.
type OpenAIConfig struct {
	APIKey      string
	Model       string
	BaseURL     string
	MaxTokens   int
	Temperature float32
	Logger      zerolog.Logger
}

// OpenAIEvaluator implements Evaluator against the OpenAI chat completion API.
type OpenAIEvaluator struct {
	client *openai.Client
	cfg    OpenAIConfig
	tracer trace.Tracer
	logger zerolog.Logger
}

// NewOpenAIEvaluator builds a new evaluator using the provided configuration.
func NewOpenAIEvaluator(cfg OpenAIConfig) (*OpenAIEvaluator, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, ErrMissingCredential
	}

	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}

	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 1024
	}

	logger := cfg.Logger
	if logger.GetLevel() == zerolog.Disabled {
		logger = zerolog.Nop()
	}

	config := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		config.BaseURL = cfg.BaseURL
	}

	return &OpenAIEvaluator{
		client: openai.NewClientWithConfig(config),
		cfg:    cfg,
		tracer: otel.Tracer("github.com/noah-isme/gema-program-api/pkg/ai/openai"),
		logger: logger.With().Str("component", "openai_evaluator").Logger(),
	}, nil
}

// GenerateEvaluation scores one submission against the rubric.
func (e *OpenAIEvaluator) GenerateEvaluation(ctx context.Context, req EvaluationRequest) (EvaluationResult, error) {
	prompt := buildSinglePrompt(req)
	return e.complete(ctx, "single", req.Rubric, req.Locale, prompt)
}

// GenerateMultiSubmissionEvaluation scores a set of submissions as one body of work.
func (e *OpenAIEvaluator) GenerateMultiSubmissionEvaluation(ctx context.Context, req MultiSubmissionRequest) (EvaluationResult, error) {
	prompt := buildMultiPrompt(req)
	return e.complete(ctx, "multi", req.Rubric, req.Locale, prompt)
}

func (e *OpenAIEvaluator) complete(parent context.Context, kind string, rubric Rubric, locale, prompt string) (EvaluationResult, error) {
	model := e.cfg.Model
	if rubric.Model != "" {
		model = rubric.Model
	}

	ctx, span := e.tracer.Start(parent, "openai.evaluate", trace.WithAttributes(
		attribute.String("model", model),
		attribute.String("kind", kind),
		attribute.Int("rubric.criteria", len(rubric.Criteria)),
	))
	defer span.End()

	fail := func(err error) (EvaluationResult, error) {
		aiFailures.WithLabelValues(model, kind).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return EvaluationResult{}, err
	}

	start := time.Now()
	resp, err := e.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       model,
		MaxTokens:   e.cfg.MaxTokens,
		Temperature: e.cfg.Temperature,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt(rubric, locale)},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject},
	})
	aiDuration.WithLabelValues(model, kind).Observe(time.Since(start).Seconds())
	if err != nil {
		if isCredentialError(err) {
			return fail(fmt.Errorf("%w: %v", ErrMissingCredential, err))
		}
		return fail(fmt.Errorf("openai evaluate: %w", err))
	}

	if len(resp.Choices) == 0 {
		return fail(errors.New("no choices returned from openai"))
	}

	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	result, raw, err := parseEvaluationResponse(content, rubric)
	if err != nil {
		e.logger.Warn().Err(err).Str("model", model).Msg("rejected ai evaluation output")
		return fail(err)
	}

	result.Model = model
	result.Raw = raw
	result.RubricSnapshot = snapshotRubric(rubric)
	result.Usage = Usage{
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
		TotalTokens:      resp.Usage.TotalTokens,
	}

	return result, nil
}

func isCredentialError(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == http.StatusUnauthorized
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode == http.StatusUnauthorized
	}
	return false
}

func systemPrompt(rubric Rubric, locale string) string {
	if locale == "" {
		locale = "en"
	}
	return fmt.Sprintf("You are an experienced jury member of an innovation program. Score the work against the rubric. "+
		"Respond with a JSON object containing overall_score (a number between %g and %g), overall_feedback, and criteria: "+
		"an array of {criterion_id, title, score, feedback} where each score is between 0 and that criterion's max_score. "+
		"Write the feedback in locale %q.", rubric.ScaleMin, rubric.ScaleMax, locale)
}

func buildSinglePrompt(req EvaluationRequest) string {
	builder := strings.Builder{}
	writeRubric(&builder, req.Rubric)
	builder.WriteString("\n\n# Task\n")
	writeTask(&builder, req.Task)
	builder.WriteString("\n\n# Submission\n")
	writeSubmission(&builder, req.Submission)
	builder.WriteString("\nReturn JSON.")
	return builder.String()
}

func buildMultiPrompt(req MultiSubmissionRequest) string {
	builder := strings.Builder{}
	writeRubric(&builder, req.Rubric)

	tasks := make(map[uint]Task, len(req.Tasks))
	for _, task := range req.Tasks {
		tasks[task.ID] = task
	}

	for i, submission := range req.Submissions {
		builder.WriteString(fmt.Sprintf("\n\n# Deliverable %d\n", i+1))
		if task, ok := tasks[submission.TaskID]; ok {
			builder.WriteString("## Task\n")
			writeTask(&builder, task)
			builder.WriteString("\n")
		}
		builder.WriteString("## Submission\n")
		writeSubmission(&builder, submission)
	}
	builder.WriteString("\nScore the deliverables together as one body of work. Return JSON.")
	return builder.String()
}

func writeRubric(builder *strings.Builder, rubric Rubric) {
	builder.WriteString("# Rubric\n")
	builder.WriteString(rubric.Name)
	if rubric.Description != "" {
		builder.WriteString("\n")
		builder.WriteString(rubric.Description)
	}
	builder.WriteString(fmt.Sprintf("\nScale: %g to %g\n", rubric.ScaleMin, rubric.ScaleMax))
	for _, criterion := range rubric.Criteria {
		builder.WriteString(fmt.Sprintf("- [%d] %s (weight %g, max %g)", criterion.ID, criterion.Title, criterion.Weight, criterion.MaxScore))
		if criterion.Description != "" {
			builder.WriteString(": ")
			builder.WriteString(criterion.Description)
		}
		builder.WriteString("\n")
	}
}

func writeTask(builder *strings.Builder, task Task) {
	builder.WriteString(task.Title)
	if task.Description != "" {
		builder.WriteString("\n")
		builder.WriteString(task.Description)
	}
}

func writeSubmission(builder *strings.Builder, submission Submission) {
	if submission.Type != "" {
		builder.WriteString("Type: ")
		builder.WriteString(submission.Type)
		builder.WriteString("\n")
	}
	builder.WriteString(submission.Content)
	for _, file := range submission.Files {
		builder.WriteString(fmt.Sprintf("\nAttachment: %s <%s>", file.Name, file.URL))
	}
}

func parseEvaluationResponse(content string, rubric Rubric) (EvaluationResult, map[string]interface{}, error) {
	var raw map[string]interface{}
	if err := json.Unmarshal([]byte(content), &raw); err != nil {
		return EvaluationResult{}, nil, fmt.Errorf("parse evaluation json: %w", err)
	}

	if err := compiledResponseSchema.Validate(raw); err != nil {
		return EvaluationResult{}, nil, fmt.Errorf("evaluation json does not match schema: %w", err)
	}

	var data struct {
		OverallScore    float64          `json:"overall_score"`
		OverallFeedback string           `json:"overall_feedback"`
		Criteria        []CriterionScore `json:"criteria"`
	}
	if err := json.Unmarshal([]byte(content), &data); err != nil {
		return EvaluationResult{}, nil, fmt.Errorf("decode evaluation json: %w", err)
	}

	ceilings := make(map[uint]float64, len(rubric.Criteria))
	for _, criterion := range rubric.Criteria {
		ceilings[criterion.ID] = criterion.MaxScore
	}

	for i := range data.Criteria {
		ceiling, ok := ceilings[data.Criteria[i].CriterionID]
		if !ok {
			ceiling = rubric.ScaleMax
		}
		data.Criteria[i].Score = clamp(data.Criteria[i].Score, 0, ceiling)
	}

	return EvaluationResult{
		OverallScore:    clamp(data.OverallScore, rubric.ScaleMin, rubric.ScaleMax),
		OverallFeedback: strings.TrimSpace(data.OverallFeedback),
		Criteria:        data.Criteria,
	}, raw, nil
}

func snapshotRubric(rubric Rubric) map[string]interface{} {
	payload, err := json.Marshal(rubric)
	if err != nil {
		return nil
	}
	var snapshot map[string]interface{}
	if err := json.Unmarshal(payload, &snapshot); err != nil {
		return nil
	}
	return snapshot
}

func clamp(value, low, high float64) float64 {
	if high < low {
		return value
	}
	if value < low {
		return low
	}
	if value > high {
		return high
	}
	return value
}

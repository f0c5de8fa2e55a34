package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cassiama/LicenseGuard-API/internal/clients/openai"
	"github.com/cassiama/LicenseGuard-API/internal/logger"
	"github.com/cassiama/LicenseGuard-API/internal/types"
)

// InferenceFailureReason classifies why an inference call produced no usable
// result. The orchestrator treats every reason the same way (ANALYSIS_FAILED)
// but the reason is logged and counted.
type InferenceFailureReason string

const (
	InferenceTimeout   InferenceFailureReason = "timeout"
	InferenceTransport InferenceFailureReason = "transport"
	InferenceMalformed InferenceFailureReason = "malformed"
)

// InferenceError is the typed failure an InferenceClient returns, so the
// caller's failure path is an explicit branch rather than a catch-all.
type InferenceError struct {
	Reason InferenceFailureReason
	Err    error
}

func (e *InferenceError) Error() string {
	return fmt.Sprintf("inference %s: %v", e.Reason, e.Err)
}

func (e *InferenceError) Unwrap() error { return e.Err }

// InferenceClient maps a project's requirement lines to license guesses.
// On failure the returned error is always an *InferenceError.
type InferenceClient interface {
	Infer(ctx context.Context, projectName string, requirements []string) (*types.AnalysisResult, error)
}

type openAIInference struct {
	log *logger.Logger
	ai  openai.Client
	now func() time.Time
}

func NewOpenAIInference(log *logger.Logger, ai openai.Client) InferenceClient {
	return &openAIInference{
		log: log.With("service", "InferenceClient"),
		ai:  ai,
		now: time.Now,
	}
}

// analysisResultSchema is the json_schema format the model output must match.
var analysisResultSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"project_name":  map[string]any{"type": "string"},
		"analysis_date": map[string]any{"type": "string"},
		"files": map[string]any{
			"type": "array",
			"items": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"name":             map[string]any{"type": "string"},
					"version":          map[string]any{"type": "string"},
					"license":          map[string]any{"type": "string"},
					"confidence_score": map[string]any{"type": "number"},
				},
				"required":             []string{"name", "version", "license", "confidence_score"},
				"additionalProperties": false,
			},
		},
	},
	"required":             []string{"project_name", "analysis_date", "files"},
	"additionalProperties": false,
}

func (s *openAIInference) Infer(ctx context.Context, projectName string, requirements []string) (*types.AnalysisResult, error) {
	today := s.now().UTC().Format("2006-01-02")
	system := fmt.Sprintf(
		"You are a software license auditor. Today's date is %s. "+
			"For each Python package requirement you are given, identify its open-source license "+
			"as an SPDX identifier (e.g. MIT, Apache-2.0, BSD-3-Clause) and a confidence score "+
			"between 0.0 and 1.0. Use exactly the package name and version from the requirement line. "+
			"Set analysis_date to today's date.", today)
	user := fmt.Sprintf("Project: %s\nRequirements:\n%s", projectName, strings.Join(requirements, "\n"))

	obj, err := s.ai.GenerateJSON(ctx, system, user, "analysis_result", analysisResultSchema)
	if err != nil {
		return nil, &InferenceError{Reason: classifyInferenceError(err), Err: err}
	}

	raw, err := json.Marshal(obj)
	if err != nil {
		return nil, &InferenceError{Reason: InferenceMalformed, Err: err}
	}
	var result types.AnalysisResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, &InferenceError{Reason: InferenceMalformed, Err: err}
	}
	if err := result.Validate(); err != nil {
		return nil, &InferenceError{Reason: InferenceMalformed, Err: err}
	}
	return &result, nil
}

func classifyInferenceError(err error) InferenceFailureReason {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return InferenceTimeout
	}
	return InferenceTransport
}

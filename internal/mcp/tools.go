package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/clinical-assessment-engine/internal/domain"
	"github.com/clinical-assessment-engine/internal/report"
)

type toolHandler func(ctx context.Context, arguments json.RawMessage) (*mcp.CallToolResult, error)

type toolSpec struct {
	tool    *mcp.Tool
	handler toolHandler
}

// ListAssessmentsParams defines parameters for list_assessments tool
type ListAssessmentsParams struct {
	Category string `json:"category,omitempty"`
}

// AssessmentParams defines parameters for describe_assessment tool
type AssessmentParams struct {
	AssessmentID string `json:"assessment_id"`
}

// EvaluateParams defines parameters for evaluate_assessment and assessment_progress tools
type EvaluateParams struct {
	AssessmentID string              `json:"assessment_id"`
	Responses    *domain.ResponseSet `json:"responses"`
}

// ExportParams defines parameters for export_assessment tool
type ExportParams struct {
	AssessmentID string              `json:"assessment_id"`
	Responses    *domain.ResponseSet `json:"responses"`
	Format       string              `json:"format,omitempty"`
	Subject      string              `json:"subject,omitempty"`
}

// ListAssessmentsResult defines the result structure for list_assessments tool
type ListAssessmentsResult struct {
	Assessments []domain.Summary `json:"assessments"`
	Categories  []string         `json:"categories"`
}

func (s *Server) tools() []toolSpec {
	idProperty := &jsonschema.Schema{Type: "string", Description: "Assessment id, e.g. braden"}
	responsesProperty := &jsonschema.Schema{
		Type:        "object",
		Description: "Answers keyed by item id: option values as strings, integers as numbers, yes/no items as booleans",
	}

	return []toolSpec{
		{
			tool: &mcp.Tool{
				Name:        "list_assessments",
				Description: "List the available clinical assessments, optionally filtered by category",
				InputSchema: &jsonschema.Schema{
					Type: "object",
					Properties: map[string]*jsonschema.Schema{
						"category": {Type: "string", Description: "Category such as cognition or nutrition"},
					},
				},
			},
			handler: s.handleListAssessments,
		},
		{
			tool: &mcp.Tool{
				Name:        "describe_assessment",
				Description: "Return the full definition of an assessment: items, options, stages and bands",
				InputSchema: &jsonschema.Schema{
					Type:       "object",
					Properties: map[string]*jsonschema.Schema{"assessment_id": idProperty},
					Required:   []string{"assessment_id"},
				},
			},
			handler: s.handleDescribeAssessment,
		},
		{
			tool: &mcp.Tool{
				Name:        "evaluate_assessment",
				Description: "Score a complete response set and return sub-scores, bands and the final classification",
				InputSchema: &jsonschema.Schema{
					Type: "object",
					Properties: map[string]*jsonschema.Schema{
						"assessment_id": idProperty,
						"responses":     responsesProperty,
					},
					Required: []string{"assessment_id", "responses"},
				},
			},
			handler: s.handleEvaluate,
		},
		{
			tool: &mcp.Tool{
				Name:        "assessment_progress",
				Description: "Report the current stage of a partial response set and the items still missing",
				InputSchema: &jsonschema.Schema{
					Type: "object",
					Properties: map[string]*jsonschema.Schema{
						"assessment_id": idProperty,
						"responses":     responsesProperty,
					},
					Required: []string{"assessment_id"},
				},
			},
			handler: s.handleProgress,
		},
		{
			tool: &mcp.Tool{
				Name:        "export_assessment",
				Description: "Score a response set and render it as a text report, a CSV record or a JSON record",
				InputSchema: &jsonschema.Schema{
					Type: "object",
					Properties: map[string]*jsonschema.Schema{
						"assessment_id": idProperty,
						"responses":     responsesProperty,
						"format":        {Type: "string", Enum: []any{"text", "csv", "json"}},
						"subject":       {Type: "string", Description: "Optional subject label printed on the report"},
					},
					Required: []string{"assessment_id", "responses"},
				},
			},
			handler: s.handleExport,
		},
	}
}

func (s *Server) handleListAssessments(ctx context.Context, arguments json.RawMessage) (*mcp.CallToolResult, error) {
	var params ListAssessmentsParams
	if err := decodeArguments(arguments, &params); err != nil {
		return s.createErrorResult(err), nil
	}
	summaries := s.service.ListAssessments(params.Category)
	if summaries == nil {
		summaries = []domain.Summary{}
	}
	return s.createJSONResult(ListAssessmentsResult{
		Assessments: summaries,
		Categories:  s.service.Categories(),
	})
}

func (s *Server) handleDescribeAssessment(ctx context.Context, arguments json.RawMessage) (*mcp.CallToolResult, error) {
	var params AssessmentParams
	if err := decodeArguments(arguments, &params); err != nil {
		return s.createErrorResult(err), nil
	}
	if params.AssessmentID == "" {
		return s.createErrorResult(domain.NewValidationError("assessment_id", "is required", nil)), nil
	}
	def, err := s.service.GetAssessment(params.AssessmentID)
	if err != nil {
		return s.createErrorResult(err), nil
	}
	return s.createJSONResult(def)
}

func (s *Server) handleEvaluate(ctx context.Context, arguments json.RawMessage) (*mcp.CallToolResult, error) {
	params, err := decodeEvaluate(arguments)
	if err != nil {
		return s.createErrorResult(err), nil
	}
	result, err := s.service.Evaluate(ctx, params.AssessmentID, params.Responses)
	if err != nil {
		return s.createErrorResult(err), nil
	}
	return s.createJSONResult(result)
}

func (s *Server) handleProgress(ctx context.Context, arguments json.RawMessage) (*mcp.CallToolResult, error) {
	params, err := decodeEvaluate(arguments)
	if err != nil {
		return s.createErrorResult(err), nil
	}
	progress, err := s.service.Progress(ctx, params.AssessmentID, params.Responses)
	if err != nil {
		return s.createErrorResult(err), nil
	}
	return s.createJSONResult(progress)
}

func (s *Server) handleExport(ctx context.Context, arguments json.RawMessage) (*mcp.CallToolResult, error) {
	var params ExportParams
	if err := decodeArguments(arguments, &params); err != nil {
		return s.createErrorResult(err), nil
	}
	if params.AssessmentID == "" {
		return s.createErrorResult(domain.NewValidationError("assessment_id", "is required", nil)), nil
	}
	format, err := report.ParseFormat(params.Format)
	if err != nil {
		return s.createErrorResult(err), nil
	}
	if params.Responses == nil {
		params.Responses = domain.NewResponseSet()
	}

	out, err := s.service.Export(ctx, params.AssessmentID, params.Responses, format,
		report.Options{Subject: params.Subject, Time: time.Now()})
	if err != nil {
		return s.createErrorResult(err), nil
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: string(out)},
		},
	}, nil
}

func decodeArguments(arguments json.RawMessage, v any) error {
	if len(arguments) == 0 {
		return nil
	}
	if err := json.Unmarshal(arguments, v); err != nil {
		return domain.NewValidationError("arguments", "invalid tool arguments", err.Error())
	}
	return nil
}

func decodeEvaluate(arguments json.RawMessage) (*EvaluateParams, error) {
	var params EvaluateParams
	if err := decodeArguments(arguments, &params); err != nil {
		return nil, err
	}
	if params.AssessmentID == "" {
		return nil, domain.NewValidationError("assessment_id", "is required", nil)
	}
	if params.Responses == nil {
		params.Responses = domain.NewResponseSet()
	}
	return &params, nil
}

// createJSONResult wraps v as indented JSON text content.
func (s *Server) createJSONResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode tool result: %w", err)
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: string(data)},
		},
	}, nil
}

// createErrorResult reports err to the agent as a tool error carrying the API error
// envelope, so that missing items and out-of-domain values can be acted on.
func (s *Server) createErrorResult(err error) *mcp.CallToolResult {
	apiErr := domain.NewAPIError(domain.ErrorCode(err), err.Error(), domain.ErrorDetails(err), "")
	data, marshalErr := json.MarshalIndent(apiErr, "", "  ")
	text := string(data)
	if marshalErr != nil {
		text = fmt.Sprintf("Error: %v", err)
	}
	if !domain.IsInputError(err) && domain.ErrorCode(err) != domain.CodeNotFound {
		s.logger.WithError(err).Error("Tool failed")
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: text},
		},
		IsError: true,
	}
}

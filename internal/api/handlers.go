package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/clinical-assessment-engine/internal/domain"
	"github.com/clinical-assessment-engine/internal/middleware"
	"github.com/clinical-assessment-engine/internal/report"
)

// EvaluateRequest is the body of the evaluate, progress and export endpoints.
type EvaluateRequest struct {
	Responses *domain.ResponseSet `json:"responses"`
}

// ListResponse is the body of GET /api/v1/assessments.
type ListResponse struct {
	Assessments []domain.Summary `json:"assessments"`
	Categories  []string         `json:"categories"`
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":      "healthy",
		"timestamp":   time.Now().UTC(),
		"version":     Version,
		"uptime":      time.Since(s.started).Round(time.Second).String(),
		"assessments": len(s.service.ListAssessments("")),
	})
}

func (s *Server) handleListAssessments(c *gin.Context) {
	summaries := s.service.ListAssessments(c.Query("category"))
	if summaries == nil {
		summaries = []domain.Summary{}
	}
	c.JSON(http.StatusOK, ListResponse{
		Assessments: summaries,
		Categories:  s.service.Categories(),
	})
}

func (s *Server) handleGetAssessment(c *gin.Context) {
	def, err := s.service.GetAssessment(c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, def)
}

func (s *Server) handleEvaluate(c *gin.Context) {
	responses, ok := s.bindResponses(c)
	if !ok {
		return
	}
	result, err := s.service.Evaluate(c.Request.Context(), c.Param("id"), responses)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) handleProgress(c *gin.Context) {
	responses, ok := s.bindResponses(c)
	if !ok {
		return
	}
	progress, err := s.service.Progress(c.Request.Context(), c.Param("id"), responses)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, progress)
}

func (s *Server) handleExport(c *gin.Context) {
	format, err := report.ParseFormat(c.DefaultQuery("format", string(report.FORMAT_TEXT)))
	if err != nil {
		s.writeError(c, err)
		return
	}
	responses, ok := s.bindResponses(c)
	if !ok {
		return
	}
	opts := report.Options{Subject: c.Query("subject"), Time: time.Now()}
	out, err := s.service.Export(c.Request.Context(), c.Param("id"), responses, format, opts)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.Data(http.StatusOK, format.ContentType(), out)
}

func (s *Server) bindResponses(c *gin.Context) (*domain.ResponseSet, bool) {
	var req EvaluateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.writeError(c, domain.NewValidationError("responses", "body must be a JSON object with a responses map", err.Error()))
		return nil, false
	}
	if req.Responses == nil {
		req.Responses = domain.NewResponseSet()
	}
	return req.Responses, true
}

// statusFor maps error codes to HTTP status codes.
func statusFor(err error) int {
	if errors.Is(err, context.DeadlineExceeded) {
		return http.StatusGatewayTimeout
	}
	switch domain.ErrorCode(err) {
	case domain.CodeIncompleteResponse, domain.CodeOutOfDomain, domain.CodeNoMatchingPartition, domain.CodeInvalidAnswer:
		return http.StatusUnprocessableEntity
	case domain.CodeValidation, domain.CodeInvalidInput:
		return http.StatusBadRequest
	case domain.CodeNotFound:
		return http.StatusNotFound
	case domain.CodeRateLimit:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// apiError converts err into the wire envelope. Typed input errors carry themselves as
// details so clients can point at the offending items.
func apiError(err error, requestID string) *domain.APIError {
	code := domain.ErrorCode(err)
	message := err.Error()
	if code == domain.CodeInternalServer {
		message = "internal error"
	}
	return domain.NewAPIError(code, message, domain.ErrorDetails(err), requestID)
}

func (s *Server) writeError(c *gin.Context, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.WithFields(logrus.Fields{
			"correlation_id": c.GetString(middleware.CorrelationIDKey),
			"assessment_id":  c.Param("id"),
		}).WithError(err).Error("Request failed")
	}
	c.AbortWithStatusJSON(status, apiError(err, c.GetString(middleware.CorrelationIDKey)))
}

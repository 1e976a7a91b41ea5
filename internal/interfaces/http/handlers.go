package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/quote-revision/internal/application/port"
	"github.com/garyjia/quote-revision/internal/application/service"
	"github.com/garyjia/quote-revision/internal/domain/entity"
	"github.com/garyjia/quote-revision/internal/domain/revision"
	"github.com/garyjia/quote-revision/internal/domain/workflow"
)

// ContractorHeader identifies the contractor driving a review session
const ContractorHeader = "X-Contractor-ID"

// Handlers contains all HTTP request handlers
type Handlers struct {
	quoteService  service.QuoteService
	reviewService service.ReviewService
	logger        Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(
	quoteService service.QuoteService,
	reviewService service.ReviewService,
	logger Logger,
) *Handlers {
	return &Handlers{
		quoteService:  quoteService,
		reviewService: reviewService,
		logger:        logger,
	}
}

// Response represents a standard JSON response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
}

// UpdateStatusRequest is the body of PATCH /api/quotes/:id/status
type UpdateStatusRequest struct {
	Status entity.QuoteStatus `json:"status" binding:"required"`
}

// SessionRequest is the body of POST /api/quotes/:id/session
type SessionRequest struct {
	ThreadID string `json:"thread_id"`
}

// SubmitCommandRequest carries a structured edit command
type SubmitCommandRequest struct {
	ThreadID string                  `json:"thread_id"`
	Command  entity.VoiceEditCommand `json:"command"`
}

// SubmitTranscriptRequest carries a raw transcript for the interpreter
type SubmitTranscriptRequest struct {
	ThreadID   string `json:"thread_id"`
	Transcript string `json:"transcript" binding:"required"`
}

// ReplyRequest is a yes/no answer to a confirmation
type ReplyRequest struct {
	Approved *bool `json:"approved" binding:"required"`
}

// TranscriptResponse is the queued session together with the interpreted command
type TranscriptResponse struct {
	Command *entity.VoiceEditCommand   `json:"command"`
	Session *entity.QuoteReviewSession `json:"session"`
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, Response{
		Success: true,
		Data: HealthResponse{
			Status:    "healthy",
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Version:   "1.0.0",
		},
	})
}

// CreateQuote handles POST /api/quotes
func (h *Handlers) CreateQuote(c *gin.Context) {
	var req service.CreateQuoteInput
	if !h.bind(c, &req) {
		return
	}

	detail, err := h.quoteService.CreateQuote(c.Request.Context(), req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, Response{Success: true, Data: detail})
}

// GetQuote handles GET /api/quotes/:id
func (h *Handlers) GetQuote(c *gin.Context) {
	detail, err := h.quoteService.GetQuote(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: detail})
}

// UpdateStatus handles PATCH /api/quotes/:id/status
func (h *Handlers) UpdateStatus(c *gin.Context) {
	var req UpdateStatusRequest
	if !h.bind(c, &req) {
		return
	}
	if !req.Status.IsValid() {
		c.JSON(http.StatusUnprocessableEntity, Response{
			Success: false,
			Error:   fmt.Sprintf("unknown status %q", req.Status),
		})
		return
	}

	quote, err := h.quoteService.UpdateStatus(c.Request.Context(), c.Param("id"), req.Status)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: quote})
}

// ListEdits handles GET /api/quotes/:id/edits
func (h *Handlers) ListEdits(c *gin.Context) {
	edits, err := h.quoteService.ListEdits(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	if edits == nil {
		edits = []*entity.QuoteEdit{}
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: edits})
}

// ExportQuote handles GET /api/quotes/:id/export
func (h *Handlers) ExportQuote(c *gin.Context) {
	doc, err := h.quoteService.ExportQuote(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", doc.FileName))
	c.Data(http.StatusOK, doc.ContentType, doc.Content)
}

// UpsertTemplate handles PUT /api/contractors/:id/template
func (h *Handlers) UpsertTemplate(c *gin.Context) {
	var tmpl entity.QuoteTemplate
	if !h.bind(c, &tmpl) {
		return
	}
	tmpl.ContractorID = c.Param("id")

	if err := h.quoteService.UpsertTemplate(c.Request.Context(), &tmpl); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: tmpl})
}

// StartSession handles POST /api/quotes/:id/session
func (h *Handlers) StartSession(c *gin.Context) {
	contractorID, ok := h.contractor(c)
	if !ok {
		return
	}
	var req SessionRequest
	if c.Request.ContentLength > 0 && !h.bind(c, &req) {
		return
	}

	sess, err := h.reviewService.StartSession(c.Request.Context(), c.Param("id"), contractorID, req.ThreadID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, Response{Success: true, Data: sess})
}

// GetSession handles GET /api/quotes/:id/session
func (h *Handlers) GetSession(c *gin.Context) {
	sess, err := h.reviewService.GetSession(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: sess})
}

// AbandonSession handles DELETE /api/quotes/:id/session
func (h *Handlers) AbandonSession(c *gin.Context) {
	h.sessionOp(c, h.reviewService.AbandonSession)
}

// SubmitCommand handles POST /api/quotes/:id/session/commands
func (h *Handlers) SubmitCommand(c *gin.Context) {
	contractorID, ok := h.contractor(c)
	if !ok {
		return
	}
	var req SubmitCommandRequest
	if !h.bind(c, &req) {
		return
	}

	sess, err := h.reviewService.SubmitCommand(c.Request.Context(), c.Param("id"), contractorID, req.ThreadID, req.Command)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: sess})
}

// SubmitTranscript handles POST /api/quotes/:id/session/transcripts
func (h *Handlers) SubmitTranscript(c *gin.Context) {
	contractorID, ok := h.contractor(c)
	if !ok {
		return
	}
	var req SubmitTranscriptRequest
	if !h.bind(c, &req) {
		return
	}

	ctx := c.Request.Context()
	quoteID := c.Param("id")
	cmd, err := h.quoteService.InterpretTranscript(ctx, quoteID, req.Transcript)
	if err != nil {
		h.writeError(c, err)
		return
	}

	sess, err := h.reviewService.SubmitCommand(ctx, quoteID, contractorID, req.ThreadID, *cmd)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: TranscriptResponse{Command: cmd, Session: sess}})
}

// RequestConfirmation handles POST /api/quotes/:id/session/confirm
func (h *Handlers) RequestConfirmation(c *gin.Context) {
	h.resultOp(c, h.reviewService.RequestConfirmation)
}

// ApproveChanges handles POST /api/quotes/:id/session/approve
func (h *Handlers) ApproveChanges(c *gin.Context) {
	h.resultOp(c, h.reviewService.ApproveChanges)
}

// CancelChanges handles POST /api/quotes/:id/session/cancel
func (h *Handlers) CancelChanges(c *gin.Context) {
	h.sessionOp(c, h.reviewService.CancelChanges)
}

// ReloadSession handles POST /api/quotes/:id/session/reload
func (h *Handlers) ReloadSession(c *gin.Context) {
	h.sessionOp(c, h.reviewService.ReloadSession)
}

// HandleReply handles POST /api/quotes/:id/session/reply
func (h *Handlers) HandleReply(c *gin.Context) {
	contractorID, ok := h.contractor(c)
	if !ok {
		return
	}
	var req ReplyRequest
	if !h.bind(c, &req) {
		return
	}

	result, err := h.reviewService.HandleReply(c.Request.Context(), c.Param("id"), contractorID, *req.Approved)
	h.writeResult(c, result, err)
}

func (h *Handlers) sessionOp(c *gin.Context, fn func(ctx context.Context, quoteID, contractorID string) (*entity.QuoteReviewSession, error)) {
	contractorID, ok := h.contractor(c)
	if !ok {
		return
	}
	sess, err := fn(c.Request.Context(), c.Param("id"), contractorID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: sess})
}

func (h *Handlers) resultOp(c *gin.Context, fn func(ctx context.Context, quoteID, contractorID string) (*service.ReviewResult, error)) {
	contractorID, ok := h.contractor(c)
	if !ok {
		return
	}
	result, err := fn(c.Request.Context(), c.Param("id"), contractorID)
	h.writeResult(c, result, err)
}

// writeResult answers a review result. A low-confidence batch is accepted but
// not applied: 202 with the confirming session.
func (h *Handlers) writeResult(c *gin.Context, result *service.ReviewResult, err error) {
	if errors.Is(err, service.ErrLowConfidenceRequiresConfirmation) && result != nil {
		c.JSON(http.StatusAccepted, Response{Success: true, Data: result, Error: err.Error()})
		return
	}
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: result})
}

func (h *Handlers) contractor(c *gin.Context) (string, bool) {
	id := strings.TrimSpace(c.GetHeader(ContractorHeader))
	if id == "" {
		c.JSON(http.StatusBadRequest, Response{
			Success: false,
			Error:   fmt.Sprintf("missing %s header", ContractorHeader),
		})
		return "", false
	}
	return id, true
}

func (h *Handlers) bind(c *gin.Context, dst interface{}) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		h.logger.Error("Invalid request body", "path", c.FullPath(), "error", err)
		c.JSON(http.StatusBadRequest, Response{
			Success: false,
			Error:   "invalid request body: " + err.Error(),
		})
		return false
	}
	return true
}

func (h *Handlers) writeError(c *gin.Context, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("Request failed", "path", c.FullPath(), "quote_id", c.Param("id"), "error", err)
	}
	c.JSON(status, Response{Success: false, Error: err.Error()})
}

// statusFor maps service errors to HTTP status codes
func statusFor(err error) int {
	var cmdErr *revision.CommandError
	switch {
	case errors.Is(err, port.ErrQuoteNotFound),
		errors.Is(err, port.ErrTemplateNotFound),
		errors.Is(err, service.ErrNoActiveSession):
		return http.StatusNotFound
	case errors.Is(err, port.ErrStaleQuoteVersion),
		errors.Is(err, port.ErrStatusConflict),
		errors.Is(err, service.ErrSessionAlreadyActive),
		errors.Is(err, service.ErrQueueFrozen),
		errors.Is(err, service.ErrQuoteNotEditable),
		errors.Is(err, service.ErrInvalidStatusTransition),
		errors.Is(err, workflow.ErrInvalidTransition),
		errors.Is(err, workflow.ErrGuardFailed):
		return http.StatusConflict
	case errors.As(err, &cmdErr),
		errors.Is(err, entity.ErrMalformedCommand),
		errors.Is(err, service.ErrInvalidQuote),
		errors.Is(err, revision.ErrInvalidCommand):
		return http.StatusUnprocessableEntity
	case errors.Is(err, service.ErrLowConfidenceRequiresConfirmation):
		return http.StatusAccepted
	case errors.Is(err, port.ErrInterpreterUnavailable),
		errors.Is(err, service.ErrExportUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/calendaria/duration-engine/internal/core"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// maxBodyBytes bounds request bodies
const maxBodyBytes = 5 << 20

// BatchProcessor runs the engine over many emails
type BatchProcessor interface {
	ProcessBatch(ctx context.Context, emails []core.ProcessedEmail, cfg core.EmailProcessingConfig) *core.BatchResponse
}

// Handler serves the duration engine API
type Handler struct {
	processor core.DurationProcessor
	batch     BatchProcessor
	feedback  *core.FeedbackService
	logger    *zap.Logger
	now       func() time.Time
}

// NewHandler creates a new API handler
func NewHandler(processor core.DurationProcessor, batch BatchProcessor, feedback *core.FeedbackService, logger *zap.Logger) *Handler {
	return &Handler{
		processor: processor,
		batch:     batch,
		feedback:  feedback,
		logger:    logger,
		now:       time.Now,
	}
}

type processEmailRequest struct {
	Email  *core.ProcessedEmail        `json:"email"`
	Config *core.EmailProcessingConfig `json:"config"`
}

type processEmailResponse struct {
	*core.DurationResult
	Email                  core.ProcessedEmail         `json:"email"`
	ProcessedAt            string                      `json:"processedAt"`
	ConfigWarnings         []string                    `json:"configWarnings"`
	SuggestedCalendarEvent core.SuggestedCalendarEvent `json:"suggestedCalendarEvent"`
}

type processBatchRequest struct {
	Emails []core.ProcessedEmail       `json:"emails"`
	Config *core.EmailProcessingConfig `json:"config"`
}

type configValidation struct {
	Warnings []string `json:"warnings"`
}

type processBatchResponse struct {
	Results          []core.BatchItemResult `json:"results"`
	Stats            core.BatchStats        `json:"stats"`
	ConfigValidation configValidation       `json:"configValidation"`
	ProcessedAt      string                 `json:"processedAt"`
}

type invalidConfigResponse struct {
	Error            string   `json:"error"`
	ValidationErrors []string `json:"validationErrors"`
	Warnings         []string `json:"warnings"`
}

type endpoint struct {
	Method      string `json:"method"`
	Path        string `json:"path"`
	Description string `json:"description"`
}

// ProcessEmail decides the appointment duration for a single email
func (h *Handler) ProcessEmail(w http.ResponseWriter, r *http.Request) {
	var req processEmailRequest
	if err := decodeJSON(w, r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}

	var missing []string
	if req.Email == nil || strings.TrimSpace(req.Email.Subject) == "" {
		missing = append(missing, "email.subject")
	}
	if req.Email == nil || strings.TrimSpace(req.Email.Content) == "" {
		missing = append(missing, "email.content")
	}
	if req.Config == nil {
		missing = append(missing, "config")
	}
	if len(missing) > 0 {
		jsonError(w, http.StatusBadRequest, "Missing required fields", strings.Join(missing, ", "))
		return
	}

	validation := core.ValidateConfig(*req.Config)
	if !validation.IsValid {
		writeJSON(w, http.StatusBadRequest, invalidConfigResponse{
			Error:            "Invalid configuration",
			ValidationErrors: validation.Errors,
			Warnings:         validation.Warnings,
		})
		return
	}

	result, err := h.processor.Process(r.Context(), *req.Email, *req.Config)
	if err != nil {
		if errors.Is(err, core.ErrEmptyEmail) {
			jsonError(w, http.StatusBadRequest, "Missing required fields", err.Error())
			return
		}
		h.logger.Error("Failed to process email", zap.Error(err))
		jsonError(w, http.StatusInternalServerError, "Failed to process email", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, processEmailResponse{
		DurationResult:         result,
		Email:                  *req.Email,
		ProcessedAt:            h.now().UTC().Format(time.RFC3339),
		ConfigWarnings:         validation.Warnings,
		SuggestedCalendarEvent: core.BuildCalendarEvent(*req.Email, result),
	})
}

// ProcessBatch decides appointment durations for a list of emails
func (h *Handler) ProcessBatch(w http.ResponseWriter, r *http.Request) {
	var req processBatchRequest
	if err := decodeJSON(w, r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}

	if len(req.Emails) == 0 {
		jsonError(w, http.StatusBadRequest, "Missing required fields", "emails must be a non-empty array")
		return
	}
	if req.Config == nil {
		jsonError(w, http.StatusBadRequest, "Missing required fields", "config")
		return
	}

	validation := core.ValidateConfig(*req.Config)
	if !validation.IsValid {
		writeJSON(w, http.StatusBadRequest, invalidConfigResponse{
			Error:            "Invalid configuration",
			ValidationErrors: validation.Errors,
			Warnings:         validation.Warnings,
		})
		return
	}

	resp := h.batch.ProcessBatch(r.Context(), req.Emails, *req.Config)

	writeJSON(w, http.StatusOK, processBatchResponse{
		Results:          resp.Results,
		Stats:            resp.Stats,
		ConfigValidation: configValidation{Warnings: validation.Warnings},
		ProcessedAt:      h.now().UTC().Format(time.RFC3339),
	})
}

// Describe serves the fixtures and the capability description
func (h *Handler) Describe(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Query().Get("type") {
	case "sample-emails":
		writeJSON(w, http.StatusOK, map[string]any{"emails": core.SampleEmails()})
	case "default-config":
		writeJSON(w, http.StatusOK, map[string]any{"config": core.DefaultProcessingConfig()})
	case "":
		writeJSON(w, http.StatusOK, map[string]any{
			"service": "appointment-duration-engine",
			"endpoints": []endpoint{
				{Method: http.MethodPost, Path: "/process-email", Description: "Decide the appointment duration for one email"},
				{Method: http.MethodPut, Path: "/process-email", Description: "Decide appointment durations for a batch of emails"},
				{Method: http.MethodGet, Path: "/process-email?type=sample-emails", Description: "Example emails"},
				{Method: http.MethodGet, Path: "/process-email?type=default-config", Description: "Default processing configuration"},
				{Method: http.MethodPost, Path: "/feedback", Description: "Record feedback on a decision"},
				{Method: http.MethodGet, Path: "/feedback", Description: "Recent feedback with summary"},
				{Method: http.MethodDelete, Path: "/feedback/{id}", Description: "Delete a feedback record"},
			},
		})
	default:
		jsonError(w, http.StatusBadRequest, "Unknown type", "type must be sample-emails or default-config")
	}
}

// SubmitFeedback records feedback on a decision
func (h *Handler) SubmitFeedback(w http.ResponseWriter, r *http.Request) {
	var sub core.FeedbackSubmission
	if err := decodeJSON(w, r, &sub); err != nil {
		jsonError(w, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}

	record, err := h.feedback.Submit(r.Context(), &sub)
	if err != nil {
		if errors.Is(err, core.ErrInvalidFeedback) {
			jsonError(w, http.StatusBadRequest, "Invalid feedback", err.Error())
			return
		}
		h.logger.Error("Failed to store feedback", zap.Error(err))
		jsonError(w, http.StatusInternalServerError, "Failed to store feedback", err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, record)
}

// ListFeedback returns recent feedback with a summary
func (h *Handler) ListFeedback(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			jsonError(w, http.StatusBadRequest, "Invalid limit", "limit must be a positive integer")
			return
		}
		limit = n
	}

	records, summary, err := h.feedback.Recent(r.Context(), limit)
	if err != nil {
		h.logger.Error("Failed to list feedback", zap.Error(err))
		jsonError(w, http.StatusInternalServerError, "Failed to list feedback", err.Error())
		return
	}
	if records == nil {
		records = []*core.FeedbackRecord{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"records": records,
		"summary": summary,
	})
}

// DeleteFeedback removes a feedback record
func (h *Handler) DeleteFeedback(w http.ResponseWriter, r *http.Request) {
	err := h.feedback.Delete(r.Context(), chi.URLParam(r, "id"))
	switch {
	case err == nil:
		w.WriteHeader(http.StatusNoContent)
	case errors.Is(err, core.ErrFeedbackNotFound):
		jsonError(w, http.StatusNotFound, "Feedback not found", "")
	case errors.Is(err, core.ErrInvalidFeedback):
		jsonError(w, http.StatusBadRequest, "Invalid feedback", err.Error())
	default:
		h.logger.Error("Failed to delete feedback", zap.Error(err))
		jsonError(w, http.StatusInternalServerError, "Failed to delete feedback", err.Error())
	}
}

// Health reports liveness
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	return json.NewDecoder(r.Body).Decode(dst)
}

type errorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func jsonError(w http.ResponseWriter, status int, msg, details string) {
	writeJSON(w, status, errorResponse{Error: msg, Details: details})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

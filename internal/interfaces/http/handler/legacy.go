package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	grievanceapp "github.com/grievancenet/backend/internal/application/grievance"
	"github.com/grievancenet/backend/internal/domain/shared"
	"github.com/grievancenet/backend/internal/infrastructure/logger"
	"go.uber.org/zap"
)

// ChatRequest is the body of POST /chat and POST /api/v1/drafts
type ChatRequest struct {
	Message  string `json:"message" example:"Streetlight broken near the bus stand for two weeks"`
	Location string `json:"location" example:"Benz Circle, Vijayawada"`
}

// RelayResponse acknowledges a relayed mail
type RelayResponse struct {
	Success bool `json:"success" example:"true"`
}

// LegacyHandler serves the unversioned routes the first web client calls.
// Responses are bare JSON without the envelope.
type LegacyHandler struct {
	BaseHandler
	drafts      *grievanceapp.DraftService
	submissions *grievanceapp.SubmissionService
	limits      UploadLimits
}

// NewLegacyHandler creates a LegacyHandler
func NewLegacyHandler(drafts *grievanceapp.DraftService, submissions *grievanceapp.SubmissionService, limits UploadLimits) *LegacyHandler {
	return &LegacyHandler{
		drafts:      drafts,
		submissions: submissions,
		limits:      limits,
	}
}

// Root godoc
// @ID           rootLegacy
// @Summary      Liveness text
// @Tags         legacy
// @Produce      plain
// @Success      200 {string} string "Backend running"
// @Router       / [get]
func (h *LegacyHandler) Root(c *gin.Context) {
	c.String(http.StatusOK, "Backend running")
}

// Chat godoc
// @ID           chatLegacy
// @Summary      Draft a complaint letter
// @Description  Drafts a formal letter, the responsible department, a summary and advice. Falls back to a template when the AI provider is unavailable. A blank message renders the template with empty text.
// @Tags         legacy
// @Accept       json
// @Produce      json
// @Param        request body ChatRequest true "Problem and location"
// @Success      200 {object} grievanceapp.Draft
// @Failure      400 {object} dto.LegacyError
// @Failure      500 {object} dto.LegacyError
// @Router       /chat [post]
func (h *LegacyHandler) Chat(c *gin.Context) {
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.LegacyError(c, http.StatusBadRequest, "Invalid request body")
		return
	}

	draft, err := h.drafts.Compose(c.Request.Context(), req.Message, req.Location)
	if err != nil {
		h.legacyFailure(c, err, "Drafting failed")
		return
	}
	c.JSON(http.StatusOK, draft)
}

// SendEmail godoc
// @ID           sendEmailLegacy
// @Summary      Relay a complaint mail
// @Description  Mails the body with location details and attached photos to the municipal inbox. Nothing is recorded.
// @Tags         legacy
// @Accept       multipart/form-data
// @Produce      json
// @Param        body              formData string true  "Mail body"
// @Param        detailed_location formData string false "Free-text location"
// @Param        latitude          formData string false "Latitude"
// @Param        longitude         formData string false "Longitude"
// @Param        image             formData file   false "Photo, repeatable"
// @Success      200 {object} RelayResponse
// @Failure      400 {object} dto.LegacyError
// @Failure      500 {object} dto.LegacyError
// @Router       /send-email [post]
func (h *LegacyHandler) SendEmail(c *gin.Context) {
	files, err := readUploads(c, fileField, h.limits)
	if err != nil {
		h.legacyFailure(c, err, grievanceapp.ErrDeliveryFailed.Message)
		return
	}

	err = h.submissions.SendMail(c.Request.Context(), grievanceapp.RelayInput{
		Body:             c.PostForm("body"),
		DetailedLocation: c.PostForm("detailed_location"),
		Latitude:         c.PostForm("latitude"),
		Longitude:        c.PostForm("longitude"),
		Files:            files,
	})
	if err != nil {
		h.legacyFailure(c, err, grievanceapp.ErrDeliveryFailed.Message)
		return
	}
	c.JSON(http.StatusOK, RelayResponse{Success: true})
}

// legacyFailure reports validation errors as 400 with their message and
// anything else as 500 with fallback.
func (h *LegacyHandler) legacyFailure(c *gin.Context, err error, fallback string) {
	var domainErr *shared.DomainError
	if errors.As(err, &domainErr) && domainErr.Code == shared.CodeValidation {
		h.LegacyError(c, http.StatusBadRequest, domainErr.Message)
		return
	}
	logger.L(c.Request.Context()).Error("Legacy request failed",
		zap.String("path", c.FullPath()),
		zap.Error(err),
	)
	h.LegacyError(c, http.StatusInternalServerError, fallback)
}

package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	grievanceapp "github.com/grievancenet/backend/internal/application/grievance"
	"github.com/grievancenet/backend/internal/domain/shared"
	"github.com/grievancenet/backend/internal/interfaces/http/dto"
)

const (
	// IdempotencyKeyHeader carries the submission request id when the form does not
	IdempotencyKeyHeader = "Idempotency-Key"
	// ReplayedHeader marks a response served from an earlier submission
	ReplayedHeader = "Idempotent-Replayed"
)

// UpdateStatusRequest is the body of an administrator status change
type UpdateStatusRequest struct {
	Status string `json:"status" binding:"required,grievance_status" example:"In Progress"`
	// Force allows a move outside the workflow, e.g. rejecting a resolved grievance
	Force           bool `json:"force" example:"false"`
	ExpectedVersion *int `json:"expected_version" binding:"omitempty,min=1" example:"2"`
}

// GrievanceHandler serves submission and the status views
type GrievanceHandler struct {
	BaseHandler
	submissions *grievanceapp.SubmissionService
	grievances  *grievanceapp.GrievanceService
	limits      UploadLimits
}

// NewGrievanceHandler creates a GrievanceHandler. Uploads are always
// restricted to images.
func NewGrievanceHandler(
	submissions *grievanceapp.SubmissionService,
	grievances *grievanceapp.GrievanceService,
	limits UploadLimits,
) *GrievanceHandler {
	limits.ImagesOnly = true
	return &GrievanceHandler{
		submissions: submissions,
		grievances:  grievances,
		limits:      limits,
	}
}

// Create godoc
// @ID           createGrievance
// @Summary      Submit a grievance
// @Description  Mails the grievance to the municipal inbox and records it for the caller. The record is only listed once the mail was accepted.
// @Description  A repeated request_id (or Idempotency-Key) returns the first submission with 200 and Idempotent-Replayed: true.
// @Description  202 means the mail went out but the record is still being finalised.
// @Tags         grievances
// @Accept       multipart/form-data
// @Produce      json
// @Param        problem           formData string true  "Problem description"
// @Param        city              formData string false "City, defaults to Vijayawada"
// @Param        body              formData string true  "Mail body"
// @Param        detailed_location formData string false "Free-text location"
// @Param        latitude          formData string false "Latitude"
// @Param        longitude         formData string false "Longitude"
// @Param        request_id        formData string false "Client request id for safe retries"
// @Param        image             formData file   false "Photo, repeatable"
// @Param        Idempotency-Key   header   string false "Alternative to request_id"
// @Success      201 {object} APIResponse[grievanceapp.SubmitResult]
// @Success      200 {object} APIResponse[grievanceapp.SubmitResult]
// @Success      202 {object} APIResponse[grievanceapp.SubmitResult]
// @Failure      400 {object} ErrorResponse
// @Failure      401 {object} ErrorResponse
// @Failure      409 {object} ErrorResponse
// @Failure      500 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /grievances [post]
func (h *GrievanceHandler) Create(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	files, err := readUploads(c, fileField, h.limits)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	requestID := c.PostForm("request_id")
	if requestID == "" {
		requestID = c.GetHeader(IdempotencyKeyHeader)
	}

	result, err := h.submissions.Submit(c.Request.Context(), grievanceapp.SubmitInput{
		UserID:           userID,
		RequestID:        requestID,
		Problem:          c.PostForm("problem"),
		City:             c.PostForm("city"),
		Body:             c.PostForm("body"),
		DetailedLocation: c.PostForm("detailed_location"),
		Latitude:         c.PostForm("latitude"),
		Longitude:        c.PostForm("longitude"),
		Files:            files,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}

	switch {
	case result.Replayed:
		c.Header(ReplayedHeader, "true")
		h.Success(c, result)
	case !result.Visible:
		c.JSON(http.StatusAccepted, dto.NewSuccessResponse(result))
	default:
		h.Created(c, result)
	}
}

// ListMine godoc
// @ID           listMyGrievances
// @Summary      List my grievances
// @Description  The caller's submitted grievances, newest first
// @Tags         grievances
// @Produce      json
// @Param        page      query int    false "Page number" default(1)
// @Param        page_size query int    false "Page size" default(20)
// @Param        status    query string false "Filter by status" Enums(Pending, In Progress, Resolved, Rejected)
// @Param        search    query string false "Search problem, city and location"
// @Param        order_by  query string false "Sort field" Enums(created_at, updated_at, status, city)
// @Param        order_dir query string false "Sort direction" Enums(asc, desc)
// @Success      200 {object} GrievancePage
// @Failure      400 {object} ErrorResponse
// @Failure      401 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /grievances/mine [get]
func (h *GrievanceHandler) ListMine(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	var q grievanceapp.ListQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.HandleBindError(c, err)
		return
	}

	page, err := h.grievances.ListMine(c.Request.Context(), userID, q)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.NewPaginatedResponse(page))
}

// ListAll godoc
// @ID           listAllGrievances
// @Summary      List all grievances
// @Description  Every submitted grievance, newest first. Administrators only.
// @Tags         admin
// @Produce      json
// @Param        page      query int    false "Page number" default(1)
// @Param        page_size query int    false "Page size" default(20)
// @Param        status    query string false "Filter by status" Enums(Pending, In Progress, Resolved, Rejected)
// @Param        search    query string false "Search problem, city and location"
// @Param        order_by  query string false "Sort field" Enums(created_at, updated_at, status, city)
// @Param        order_dir query string false "Sort direction" Enums(asc, desc)
// @Success      200 {object} GrievancePage
// @Failure      401 {object} ErrorResponse
// @Failure      403 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /admin/grievances [get]
func (h *GrievanceHandler) ListAll(c *gin.Context) {
	actor, err := getActor(c)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	var q grievanceapp.ListQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.HandleBindError(c, err)
		return
	}

	page, err := h.grievances.ListAll(c.Request.Context(), actor, q)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.NewPaginatedResponse(page))
}

// Get godoc
// @ID           getGrievance
// @Summary      Get a grievance
// @Description  Owners and administrators only; anyone else gets 404
// @Tags         grievances
// @Produce      json
// @Param        id path string true "Grievance ID" format(uuid)
// @Success      200 {object} APIResponse[grievanceapp.GrievanceResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /grievances/{id} [get]
func (h *GrievanceHandler) Get(c *gin.Context) {
	actor, err := getActor(c)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	id, err := pathUUID(c, "id")
	if err != nil {
		h.HandleError(c, err)
		return
	}

	g, err := h.grievances.Get(c.Request.Context(), actor, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, g)
}

// UpdateStatus godoc
// @ID           updateGrievanceStatus
// @Summary      Change a grievance's status
// @Description  Moves outside the workflow (e.g. Resolved -> Rejected) need force.
// @Description  With expected_version a stale write fails with 409; without it the last writer wins.
// @Tags         admin
// @Accept       json
// @Produce      json
// @Param        id      path string              true "Grievance ID" format(uuid)
// @Param        request body UpdateStatusRequest true "New status"
// @Success      200 {object} APIResponse[grievanceapp.GrievanceResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      403 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Failure      409 {object} ErrorResponse
// @Failure      422 {object} ErrorResponse
// @Failure      500 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /admin/grievances/{id}/status [put]
func (h *GrievanceHandler) UpdateStatus(c *gin.Context) {
	actor, err := getActor(c)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	id, err := pathUUID(c, "id")
	if err != nil {
		h.HandleError(c, err)
		return
	}

	var req UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.HandleBindError(c, err)
		return
	}

	g, err := h.grievances.UpdateStatus(c.Request.Context(), actor, grievanceapp.UpdateStatusInput{
		ID:              id,
		Status:          req.Status,
		Force:           req.Force,
		ExpectedVersion: req.ExpectedVersion,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, g)
}

// AttachmentLink godoc
// @ID           grievanceAttachmentLink
// @Summary      Download link for an archived photo
// @Description  A presigned, time-limited URL. Owners and administrators only.
// @Tags         grievances
// @Produce      json
// @Param        id    path  string true  "Grievance ID" format(uuid)
// @Param        index query int    false "Attachment index" default(0)
// @Success      200 {object} APIResponse[grievanceapp.AttachmentLink]
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /grievances/{id}/attachment [get]
func (h *GrievanceHandler) AttachmentLink(c *gin.Context) {
	actor, err := getActor(c)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	id, err := pathUUID(c, "id")
	if err != nil {
		h.HandleError(c, err)
		return
	}

	index, err := strconv.Atoi(c.DefaultQuery("index", "0"))
	if err != nil || index < 0 {
		h.HandleError(c, shared.NewValidationError("index must be a non-negative integer"))
		return
	}

	link, err := h.grievances.AttachmentLink(c.Request.Context(), actor, id, index)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, link)
}

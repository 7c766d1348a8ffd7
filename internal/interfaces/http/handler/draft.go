package handler

import (
	"github.com/gin-gonic/gin"
	grievanceapp "github.com/grievancenet/backend/internal/application/grievance"
)

// DraftHandler serves letter drafting on the versioned API
type DraftHandler struct {
	BaseHandler
	drafts *grievanceapp.DraftService
}

// NewDraftHandler creates a DraftHandler
func NewDraftHandler(drafts *grievanceapp.DraftService) *DraftHandler {
	return &DraftHandler{drafts: drafts}
}

// Create godoc
// @ID           createDraft
// @Summary      Draft a complaint letter
// @Description  Same result as POST /chat, wrapped in the response envelope
// @Tags         drafts
// @Accept       json
// @Produce      json
// @Param        request body ChatRequest true "Problem and location"
// @Success      200 {object} APIResponse[grievanceapp.Draft]
// @Failure      400 {object} ErrorResponse
// @Failure      401 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /drafts [post]
func (h *DraftHandler) Create(c *gin.Context) {
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.HandleBindError(c, err)
		return
	}

	draft, err := h.drafts.Draft(c.Request.Context(), req.Message, req.Location)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, draft)
}

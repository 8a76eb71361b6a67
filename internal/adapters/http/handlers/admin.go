package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jsamuelsen/application-intake/internal/adapters/http/dto"
	"github.com/jsamuelsen/application-intake/internal/adapters/http/middleware"
	"github.com/jsamuelsen/application-intake/internal/app"
)

// AdminHandler serves the operator endpoints. Authorization is applied by
// the router.
type AdminHandler struct {
	service *app.AdminService
}

// NewAdminHandler creates an admin handler.
func NewAdminHandler(service *app.AdminService) *AdminHandler {
	return &AdminHandler{service: service}
}

// ListApplications handles GET /api/v1/admin/applications?cursor=&limit=.
func (h *AdminHandler) ListApplications(c *gin.Context) {
	var page dto.PaginationRequest

	if err := dto.BindQueryAndValidate(c, &page); err != nil {
		dto.HandleBindError(c, err)
		return
	}

	query, err := dto.ListQueryFromCursor(&page)
	if err != nil {
		dto.RespondWithCode(c, dto.ErrorCodeBadRequest, "invalid cursor")
		return
	}

	subs, err := h.service.ListSubmissions(c.Request.Context(), query)
	if err != nil {
		dto.HandleError(c, err)
		return
	}

	rows := make([]dto.SubmissionRow, 0, len(subs))
	for _, s := range subs {
		rows = append(rows, dto.NewSubmissionRow(s))
	}

	c.JSON(http.StatusOK, dto.NewPaginatedResponse(rows, query.Limit, dto.SubmissionCursor))
}

// GetSettings handles GET /api/v1/admin/settings.
func (h *AdminHandler) GetSettings(c *gin.Context) {
	status, err := h.service.QuotaStatus(c.Request.Context())
	if err != nil {
		dto.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewQuotaSettingsResponse(status, callerCapabilities(c)))
}

// UpdateSettings handles PUT /api/v1/admin/settings.
func (h *AdminHandler) UpdateSettings(c *gin.Context) {
	var req dto.UpdateSettingsRequest

	if err := dto.BindAndValidate(c, &req); err != nil {
		dto.HandleBindError(c, err)
		return
	}

	status, err := h.service.UpdateApplicationsLimit(c.Request.Context(), *req.ApplicationsLimit)
	if err != nil {
		dto.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewQuotaSettingsResponse(status, callerCapabilities(c)))
}

// callerCapabilities returns the capabilities of the authenticated caller,
// or nil when no claims were attached.
func callerCapabilities(c *gin.Context) []string {
	claims := middleware.GetClaims(c)
	if claims == nil {
		return nil
	}

	return claims.Capabilities()
}

package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jsamuelsen/application-intake/internal/adapters/http/dto"
	"github.com/jsamuelsen/application-intake/internal/domain"
	"github.com/jsamuelsen/application-intake/internal/ports"
)

// Submitter runs one intake attempt. *app.IntakeService implements it.
type Submitter interface {
	Submit(ctx context.Context, req domain.IntakeRequest) *domain.IntakeResult
}

// IntakeHandler serves the public application form endpoints.
type IntakeHandler struct {
	submitter    Submitter
	issuer       ports.TokenIssuer
	submitURL    string
	legacyStatus bool
}

// IntakeHandlerConfig configures an IntakeHandler.
type IntakeHandlerConfig struct {
	Submitter Submitter
	Issuer    ports.TokenIssuer

	// SubmitURL is advertised to forms by the token endpoint.
	SubmitURL string

	// LegacyStatus answers every submission with 200.
	LegacyStatus bool
}

// NewIntakeHandler creates an intake handler.
func NewIntakeHandler(cfg IntakeHandlerConfig) *IntakeHandler {
	return &IntakeHandler{
		submitter:    cfg.Submitter,
		issuer:       cfg.Issuer,
		submitURL:    cfg.SubmitURL,
		legacyStatus: cfg.LegacyStatus,
	}
}

// Submit handles POST /api/v1/applications with form fields securityToken,
// name and email. The body is always an IntakeResponse.
func (h *IntakeHandler) Submit(c *gin.Context) {
	var req domain.IntakeRequest

	req.SecurityToken = c.PostForm(dto.FormFieldSecurityToken)
	req.Name, req.NamePresent = c.GetPostForm(dto.FormFieldName)
	req.Email, req.EmailPresent = c.GetPostForm(dto.FormFieldEmail)

	result := h.submitter.Submit(c.Request.Context(), req)

	c.JSON(h.statusFor(result.Kind), dto.NewIntakeResponse(result))
}

// FormToken handles GET /api/v1/applications/form.
func (h *IntakeHandler) FormToken(c *gin.Context) {
	c.Header("Cache-Control", "no-store")
	c.JSON(http.StatusOK, dto.FormTokenResponse{
		SecurityToken: h.issuer.Issue(c.Request.Context()),
		SubmitURL:     h.submitURL,
	})
}

func (h *IntakeHandler) statusFor(kind domain.ResultKind) int {
	if h.legacyStatus {
		return http.StatusOK
	}

	return StatusForKind(kind)
}

// StatusForKind maps an intake outcome to its HTTP status.
func StatusForKind(kind domain.ResultKind) int {
	switch kind {
	case domain.KindAccepted:
		return http.StatusOK
	case domain.KindForbidden:
		return http.StatusForbidden
	case domain.KindInvalidInput:
		return http.StatusBadRequest
	case domain.KindQuotaExceeded:
		return http.StatusUnprocessableEntity
	case domain.KindDuplicateEmail:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// RegisterRoutes registers the intake endpoints under rg.
func (h *IntakeHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("", h.Submit)
	rg.GET("/form", h.FormToken)
}

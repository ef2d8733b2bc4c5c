package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/citrusqa/bitacora-backend/internal/domain"
	"github.com/citrusqa/bitacora-backend/internal/http/response"
	"github.com/citrusqa/bitacora-backend/internal/platform/ctxutil"
	"github.com/citrusqa/bitacora-backend/internal/services"
)

type QAUserHandler struct {
	userService services.UserService
	notifier    services.Notifier
}

func NewQAUserHandler(userService services.UserService, notifier services.Notifier) *QAUserHandler {
	return &QAUserHandler{userService: userService, notifier: notifier}
}

func (h *QAUserHandler) List(c *gin.Context) {
	users, err := h.userService.ListQAs(c.Request.Context())
	if err != nil {
		response.RespondDomainError(c, err)
		return
	}
	response.RespondOK(c, users)
}

func (h *QAUserHandler) MyApplications(c *gin.Context) {
	apps, err := h.userService.MyApplications(c.Request.Context())
	if err != nil {
		response.RespondDomainError(c, err)
		return
	}
	response.RespondOK(c, apps)
}

func (h *QAUserHandler) GetProfile(c *gin.Context) {
	rd := ctxutil.GetRequestData(c.Request.Context())
	if rd == nil {
		response.RespondError(c, http.StatusUnauthorized, "unauthorized", domain.ErrUnauthorized)
		return
	}
	user, err := h.userService.Get(c.Request.Context(), rd.UserID)
	if err != nil {
		response.RespondDomainError(c, err)
		return
	}
	response.RespondOK(c, user)
}

func (h *QAUserHandler) UpdateProfile(c *gin.Context) {
	var req struct {
		Name           string `json:"name"`
		WhatsAppNumber string `json:"whatsappNumber"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	user, err := h.userService.UpdateProfile(c.Request.Context(), services.UpdateProfileRequest{
		Name:           req.Name,
		WhatsAppNumber: req.WhatsAppNumber,
	})
	if err != nil {
		response.RespondDomainError(c, err)
		return
	}
	response.RespondOK(c, user)
}

func (h *QAUserHandler) GetPreferences(c *gin.Context) {
	prefs, err := h.userService.GetPreferences(c.Request.Context())
	if err != nil {
		response.RespondDomainError(c, err)
		return
	}
	response.RespondOK(c, prefs)
}

func (h *QAUserHandler) UpdatePreferences(c *gin.Context) {
	var req struct {
		Email    *bool `json:"email" binding:"required"`
		WhatsApp *bool `json:"whatsapp" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	user, err := h.userService.UpdatePreferences(c.Request.Context(), domain.NotificationPreferences{
		Email:    *req.Email,
		WhatsApp: *req.WhatsApp,
	})
	if err != nil {
		response.RespondDomainError(c, err)
		return
	}
	response.RespondOK(c, user)
}

// TestNotification sends a probe message to the caller on each enabled
// channel so users can verify their settings.
func (h *QAUserHandler) TestNotification(c *gin.Context) {
	rd := ctxutil.GetRequestData(c.Request.Context())
	if rd == nil {
		response.RespondError(c, http.StatusUnauthorized, "unauthorized", domain.ErrUnauthorized)
		return
	}
	result, err := h.notifier.SendTestNotification(c.Request.Context(), rd.UserID)
	if err != nil {
		response.RespondDomainError(c, err)
		return
	}
	response.RespondOK(c, result)
}

func (h *QAUserHandler) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_id", err)
		return
	}
	if err := h.userService.DeleteQA(c.Request.Context(), id); err != nil {
		response.RespondDomainError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"ok": true})
}

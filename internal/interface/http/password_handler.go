package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/lucasbm92/go-auth-service/config"
	"github.com/lucasbm92/go-auth-service/internal/application"
	"github.com/lucasbm92/go-auth-service/pkg/helpers"
	"github.com/lucasbm92/go-auth-service/pkg/mailer"
	tpl "github.com/lucasbm92/go-auth-service/pkg/mailer/templates"
	"github.com/lucasbm92/go-auth-service/pkg/response"
	"github.com/lucasbm92/go-auth-service/pkg/validation"
)

// forgotMessage is returned for every forgot-password request, known email
// or not, so account existence cannot be probed.
const forgotMessage = "if that email address is registered, password reset instructions have been sent"

// PasswordHandler exposes change, forgot and reset password.
type PasswordHandler struct {
	Svc    *application.Service
	Logger *logrus.Logger
	Cfg    *config.Config
	Pub    *helpers.RabbitPublisher
}

func NewPasswordHandler(svc *application.Service, logger *logrus.Logger, cfg *config.Config, pub *helpers.RabbitPublisher) *PasswordHandler {
	return &PasswordHandler{Svc: svc, Logger: logger, Cfg: cfg, Pub: pub}
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password" binding:"required"`
	NewPassword     string `json:"new_password" binding:"required,pwd"`
	ConfirmPassword string `json:"confirm_password" binding:"required,eqfield=NewPassword"`
}

type forgotPasswordRequest struct {
	Email string `json:"email" binding:"required,email"`
}

type resetPasswordRequest struct {
	Token           string `json:"token" binding:"required"`
	NewPassword     string `json:"new_password" binding:"required,pwd"`
	ConfirmPassword string `json:"confirm_password" binding:"required,eqfield=NewPassword"`
}

// Change POST /api/password/change (auth required)
func (h *PasswordHandler) Change(c *gin.Context) {
	var req changePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error[any](c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}

	err := h.Svc.ChangePassword(c.Request.Context(), c.GetString("userID"), req.CurrentPassword, req.NewPassword)
	if err != nil {
		switch {
		case errors.Is(err, application.ErrInvalidCredentials):
			response.Error[any](c, http.StatusBadRequest, "current password is incorrect", nil)
		case errors.Is(err, application.ErrPasswordPolicy):
			response.Error[any](c, http.StatusBadRequest, "password too short", nil)
		case errors.Is(err, application.ErrStoreUnavailable):
			response.Error[any](c, http.StatusServiceUnavailable, "service temporarily unavailable", nil)
		default:
			response.Error[any](c, http.StatusInternalServerError, "password change failed", nil)
		}
		return
	}
	response.Success[any](c, http.StatusOK, map[string]any{"changed": true}, "password changed successfully", nil)
}

// Forgot POST /api/password/forgot
func (h *PasswordHandler) Forgot(c *gin.Context) {
	var req forgotPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error[any](c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}

	res, err := h.Svc.RequestReset(c.Request.Context(), req.Email)
	if err != nil {
		response.Error[any](c, http.StatusServiceUnavailable, "service temporarily unavailable", nil)
		return
	}

	// Token issuance is already durable; a failed enqueue only delays
	// delivery and never rolls the token back.
	if res != nil && h.Pub != nil && h.Cfg.MailSendEnabled {
		link := h.Cfg.ResetPasswordURL + "?token=" + res.Token
		job := mailer.EmailJob{
			To:       res.User.Email,
			Template: tpl.ResetPassword,
			Data:     tpl.NewResetPasswordData(h.Cfg, res.User.Username, res.User.Email, link, res.ExpiresAt),
		}
		if err := h.Pub.PublishJSON(c.Request.Context(), job); err != nil && h.Logger != nil {
			h.Logger.WithError(err).WithField("user_id", res.User.ID).Warn("failed to enqueue reset email")
		}
	}

	response.Success[any](c, http.StatusOK, nil, forgotMessage, nil)
}

// Reset POST /api/password/reset
func (h *PasswordHandler) Reset(c *gin.Context) {
	var req resetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error[any](c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}

	u, err := h.Svc.ResetPassword(c.Request.Context(), req.Token, req.NewPassword)
	if err != nil {
		switch {
		case errors.Is(err, application.ErrInvalidToken):
			response.Error[any](c, http.StatusBadRequest, "invalid reset token", nil)
		case errors.Is(err, application.ErrExpiredToken):
			response.Error[any](c, http.StatusBadRequest, "reset token expired", nil)
		case errors.Is(err, application.ErrPasswordPolicy):
			response.Error[any](c, http.StatusBadRequest, "password too short", nil)
		case errors.Is(err, application.ErrStoreUnavailable):
			response.Error[any](c, http.StatusServiceUnavailable, "service temporarily unavailable", nil)
		default:
			response.Error[any](c, http.StatusInternalServerError, "password reset failed", nil)
		}
		return
	}

	// Drop any live session so the old credentials stop working everywhere.
	h.Svc.Logout(c.Request.Context(), u.ID)

	response.Success[any](c, http.StatusOK, map[string]any{"reset": true}, "password updated", nil)
}

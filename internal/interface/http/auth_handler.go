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

// AuthHandler exposes registration, login, logout and profile.
type AuthHandler struct {
	Svc     *application.Service
	Logger  *logrus.Logger
	Cfg     *config.Config
	Pub     *helpers.RabbitPublisher
	Cookies *helpers.CookieManager
}

func NewAuthHandler(svc *application.Service, logger *logrus.Logger, cfg *config.Config, pub *helpers.RabbitPublisher) *AuthHandler {
	return &AuthHandler{
		Svc:     svc,
		Logger:  logger,
		Cfg:     cfg,
		Pub:     pub,
		Cookies: helpers.NewCookie(cfg.CookieDomain, cfg.CookieSecure),
	}
}

type registerRequest struct {
	Username        string `json:"username" binding:"required,min=3,max=150"`
	Email           string `json:"email" binding:"omitempty,email,max=150"`
	Password        string `json:"password" binding:"required,pwd"`
	ConfirmPassword string `json:"confirm_password" binding:"required,eqfield=Password"`
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Register POST /api/register
func (h *AuthHandler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error[any](c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}

	u, err := h.Svc.Register(c.Request.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, application.ErrDuplicateUsername):
			response.Error[any](c, http.StatusConflict, "username already exists", nil)
		case errors.Is(err, application.ErrDuplicateEmail):
			response.Error[any](c, http.StatusConflict, "email already exists", nil)
		case errors.Is(err, application.ErrEmailRequired):
			response.Error[any](c, http.StatusBadRequest, "email is required", nil)
		case errors.Is(err, application.ErrPasswordPolicy):
			response.Error[any](c, http.StatusBadRequest, "password too short", nil)
		case errors.Is(err, application.ErrStoreUnavailable):
			response.Error[any](c, http.StatusServiceUnavailable, "service temporarily unavailable", nil)
		default:
			response.Error[any](c, http.StatusInternalServerError, "registration failed", nil)
		}
		return
	}

	// Welcome email is best effort; registration already succeeded.
	if h.Pub != nil && h.Cfg.MailSendEnabled && u.Email != "" {
		job := mailer.EmailJob{To: u.Email, Template: tpl.Welcome, Data: tpl.NewWelcomeData(h.Cfg, u.Username, u.Email)}
		if err := h.Pub.PublishJSON(c.Request.Context(), job); err != nil && h.Logger != nil {
			h.Logger.WithError(err).Warn("failed to enqueue welcome email")
		}
	}

	response.Success(c, http.StatusCreated, gin.H{
		"id":       u.ID,
		"username": u.Username,
		"email":    u.Email,
	}, "registration successful", nil)
}

// Login POST /api/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error[any](c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}

	res, pair, err := h.Svc.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, application.ErrStoreUnavailable) {
			response.Error[any](c, http.StatusServiceUnavailable, "service temporarily unavailable", nil)
			return
		}
		// Unknown username and wrong password are indistinguishable here.
		response.Error[any](c, http.StatusUnauthorized, "invalid credentials", nil)
		return
	}
	h.Cookies.SetPair(c, pair.AccessToken, pair.AccessTokenExpiry, pair.RefreshToken, pair.RefreshTokenExpiry)
	response.Success(c, http.StatusOK, res, "login successful", map[string]any{
		"access_expires_at":  pair.AccessTokenExpiry,
		"refresh_expires_at": pair.RefreshTokenExpiry,
	})
}

// Logout POST /api/logout (auth required)
func (h *AuthHandler) Logout(c *gin.Context) {
	h.Svc.Logout(c.Request.Context(), c.GetString("userID"))
	h.Cookies.Clear(c)
	response.Success[any](c, http.StatusOK, map[string]any{"logged_out": true}, "logged out", nil)
}

// Profile GET /api/profile (auth required)
func (h *AuthHandler) Profile(c *gin.Context) {
	u, err := h.Svc.GetProfile(c.Request.Context(), c.GetString("userID"))
	if err != nil {
		if errors.Is(err, application.ErrStoreUnavailable) {
			response.Error[any](c, http.StatusServiceUnavailable, "service temporarily unavailable", nil)
			return
		}
		response.Error[any](c, http.StatusNotFound, "user not found", nil)
		return
	}
	response.Success(c, http.StatusOK, gin.H{
		"id":            u.ID,
		"username":      u.Username,
		"email":         u.Email,
		"created_at":    u.CreatedAt,
		"last_login_at": u.LastLoginAt,
	}, "profile", nil)
}

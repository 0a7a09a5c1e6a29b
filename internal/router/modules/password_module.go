package modules

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/lucasbm92/go-auth-service/internal/container"
	handlers "github.com/lucasbm92/go-auth-service/internal/interface/http"
	"github.com/lucasbm92/go-auth-service/internal/interface/middleware"
	"github.com/lucasbm92/go-auth-service/pkg/helpers"
)

// PasswordModule wires the password lifecycle routes.
// Public: POST /api/password/forgot, POST /api/password/reset
// Protected: POST /api/password/change
type PasswordModule struct {
	Handler *handlers.PasswordHandler
	JWT     *helpers.JWTManager
}

func NewPasswordModule(h *handlers.PasswordHandler, jwt *helpers.JWTManager) *PasswordModule {
	return &PasswordModule{Handler: h, JWT: jwt}
}

func (m *PasswordModule) Register(rg *gin.RouterGroup) {
	// Forgot is the tightest limit; it triggers outbound email.
	forgotLimiter := middleware.RateLimit(container.GetRedis(), 5, time.Minute, middleware.KeyByIPAndPath(), nil)
	resetLimiter := middleware.RateLimit(container.GetRedis(), 30, time.Minute, middleware.KeyByIPAndPath(), nil)

	rg.POST("/password/forgot", forgotLimiter, m.Handler.Forgot)
	rg.POST("/password/reset", resetLimiter, m.Handler.Reset)

	auth := rg.Group("/")
	auth.Use(middleware.Auth(container.GetRedis(), m.JWT))
	auth.Use(middleware.RateLimit(container.GetRedis(), 30, time.Minute, middleware.KeyByUserID(), nil))
	{
		auth.POST("/password/change", m.Handler.Change)
	}
}

package router

import (
	"github.com/lucasbm92/go-auth-service/internal/application"
	"github.com/lucasbm92/go-auth-service/internal/container"
	pginfra "github.com/lucasbm92/go-auth-service/internal/infrastructure/postgres"
	handlers "github.com/lucasbm92/go-auth-service/internal/interface/http"
	"github.com/lucasbm92/go-auth-service/internal/router/modules"
)

// InitModules wires the credential store, application service and handlers
// from the container singletons and registers all feature modules.
func InitModules(r *Registry) {
	cfg := container.GetConfig()

	repo := pginfra.NewUserRepository(container.GetPGPool())
	svc := application.NewService(
		repo,
		container.GetJWT(),
		container.GetRedis(),
		container.GetLogger(),
		cfg.ResetTokenTTL,
		cfg.PasswordMinLength,
		cfg.RequireEmail,
	)

	authHandler := handlers.NewAuthHandler(svc, container.GetLogger(), cfg, container.GetRabbitPub())
	pwdHandler := handlers.NewPasswordHandler(svc, container.GetLogger(), cfg, container.GetRabbitPub())

	r.Add(modules.NewAuthModule(authHandler, container.GetJWT()))
	r.Add(modules.NewPasswordModule(pwdHandler, container.GetJWT()))
	if cfg.DebugMetricsEnabled {
		r.Add(modules.NewDebugModule())
	}
}

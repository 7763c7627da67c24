package routes

import (
	"github.com/BradenHooton/authguard/internal/handlers"
	"github.com/BradenHooton/authguard/internal/middleware"
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all application routes
func RegisterRoutes(
	router chi.Router,
	authHandler *handlers.AuthHandler,
	health handlers.HealthChecker,
	rateLimitConfig middleware.RateLimitConfig,
) {
	limited := middleware.RateLimitByIP(rateLimitConfig)

	router.Route("/auth", func(r chi.Router) {
		// Credential and email-sending endpoints share the per-IP budget
		r.Group(func(r chi.Router) {
			r.Use(limited)
			r.Post("/signin", authHandler.SignIn)
			r.Post("/signup", authHandler.SignUp)
			r.Post("/forgot-password", authHandler.ForgotPassword)
			r.Post("/reset-password", authHandler.ResetPassword)
			r.Post("/resend-verification", authHandler.ResendVerification)
			r.Get("/verify-email", authHandler.VerifyEmail)
		})

		r.Post("/signout", authHandler.SignOut)
		r.Post("/check", authHandler.Check)
		r.Get("/session", authHandler.Session)
		r.Get("/locked", authHandler.Locked)
	})

	router.Get("/security/logs", authHandler.SecurityLogs)
	router.Put("/profile", authHandler.UpdateProfile)
	router.Get("/health", handlers.Health(health))
}

package router

import (
	_ "lighthouse-api/docs"
	"lighthouse-api/handler"
	"lighthouse-api/token"
	"net/http"

	httpSwagger "github.com/swaggo/http-swagger/v2"
)

func NewRouter(authHandler *handler.AuthHandler, causeHandler *handler.CauseHandler, donationHandler *handler.DonationHandler, issuer *token.Issuer, metricsHandler http.Handler) http.Handler {
	mux := http.NewServeMux()
	authenticated := handler.NewAuthMiddleware(issuer)
	admin := func(h http.Handler) http.Handler {
		return authenticated(handler.AdminMiddleware(h))
	}

	mux.HandleFunc("GET /health", handler.HealthCheck)
	if metricsHandler != nil {
		mux.Handle("GET /metrics", metricsHandler)
	}
	mux.Handle("GET /swagger/", httpSwagger.Handler(httpSwagger.URL("/swagger/doc.json")))

	// --- Auth ---
	mux.Handle("POST /auth/register", handler.ErrorHandlingMiddleware(authHandler.Register))
	mux.Handle("POST /auth/login", handler.ErrorHandlingMiddleware(authHandler.Login))
	mux.Handle("POST /auth/refresh", handler.ErrorHandlingMiddleware(authHandler.RefreshToken))
	mux.Handle("POST /auth/forgot-password", handler.ErrorHandlingMiddleware(authHandler.ForgotPassword))
	mux.Handle("POST /auth/reset-password", handler.ErrorHandlingMiddleware(authHandler.ResetPassword))
	mux.Handle("POST /auth/logout", authenticated(handler.ErrorHandlingMiddleware(authHandler.Logout)))
	mux.Handle("POST /auth/change-password", authenticated(handler.ErrorHandlingMiddleware(authHandler.ChangePassword)))
	mux.Handle("GET /auth/me", authenticated(handler.ErrorHandlingMiddleware(authHandler.Me)))
	mux.Handle("GET /auth/profile", authenticated(handler.ErrorHandlingMiddleware(authHandler.Profile)))

	// --- Causes (admin) ---
	mux.Handle("GET /causes", admin(handler.ErrorHandlingMiddleware(causeHandler.ListCauses)))
	mux.Handle("POST /causes", admin(handler.ErrorHandlingMiddleware(causeHandler.CreateCause)))
	mux.Handle("GET /causes/{id}", admin(handler.ErrorHandlingMiddleware(causeHandler.GetCause)))
	mux.Handle("PATCH /causes/{id}", admin(handler.ErrorHandlingMiddleware(causeHandler.UpdateCause)))
	mux.Handle("DELETE /causes/{id}", admin(handler.ErrorHandlingMiddleware(causeHandler.DeleteCause)))
	mux.Handle("GET /causes/{id}/donations", admin(handler.ErrorHandlingMiddleware(donationHandler.ListDonationsForCause)))

	// --- Donations (admin) ---
	mux.Handle("GET /donations", admin(handler.ErrorHandlingMiddleware(donationHandler.ListDonations)))
	mux.Handle("POST /donations", admin(handler.ErrorHandlingMiddleware(donationHandler.CreateDonation)))

	return handler.RequestMiddleware(mux)
}

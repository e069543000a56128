package handler

import (
	"context"
	"errors"
	"lighthouse-api/common"
	"lighthouse-api/model"
	"lighthouse-api/token"
	"net/http"
	"strings"
)

type contextKey string

const (
	UserIDKey   contextKey = "userID"
	UserRoleKey contextKey = "userRole"
	ClaimsKey   contextKey = "claims"
)

// NewAuthMiddleware returns middleware that admits requests carrying a valid
// access token and stores its claims in the request context.
func NewAuthMiddleware(issuer *token.Issuer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				err := common.NewAppError(http.StatusUnauthorized, "Authorization header is required", nil)
				err.Send(w)
				return
			}

			headerParts := strings.Split(authHeader, " ")
			if len(headerParts) != 2 || strings.ToLower(headerParts[0]) != "bearer" || headerParts[1] == "" {
				err := common.NewAppError(http.StatusUnauthorized, "Invalid authorization header format", nil)
				err.Send(w)
				return
			}

			claims, err := issuer.Verify(headerParts[1], token.Access)
			if err != nil {
				message := "Invalid or expired token"
				if errors.Is(err, token.ErrExpired) {
					message = "Token has expired"
				}
				appErr := common.NewAppError(http.StatusUnauthorized, message, err)
				appErr.Send(w)
				return
			}

			ctx := context.WithValue(r.Context(), UserIDKey, claims.UserID)
			ctx = context.WithValue(ctx, UserRoleKey, claims.Role)
			ctx = context.WithValue(ctx, ClaimsKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func AdminMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		role, ok := r.Context().Value(UserRoleKey).(string)

		if !ok || role != string(model.RoleAdmin) {
			err := common.NewAppError(http.StatusForbidden, "Access denied. Admin privileges required.", nil)
			err.Send(w)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func claimsFrom(r *http.Request) (*model.AppClaims, bool) {
	claims, ok := r.Context().Value(ClaimsKey).(*model.AppClaims)
	return claims, ok
}

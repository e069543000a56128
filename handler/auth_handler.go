package handler

import (
	"lighthouse-api/common"
	"lighthouse-api/model"
	"lighthouse-api/service"
	"net/http"
)

type AuthHandler struct {
	authService *service.AuthService
	userService *service.UserService
}

func NewAuthHandler(authService *service.AuthService, userService *service.UserService) *AuthHandler {
	return &AuthHandler{authService: authService, userService: userService}
}

// Register godoc
// @Summary      Register a new administrator
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        user body model.RegisterRequest true "Registration details"
// @Success      201  {object}  model.AuthResponse
// @Failure      400  {object}  common.AppError "Validation failed"
// @Failure      409  {object}  common.AppError "Email or username already taken"
// @Router       /auth/register [post]
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) *common.AppError {
	var req model.RegisterRequest
	if err := common.ValidateAndDecode(r, &req); err != nil {
		return err
	}

	resp, err := h.authService.Register(r.Context(), req)
	if err != nil {
		return serviceError(err, "Could not register user")
	}

	common.WriteJSON(w, http.StatusCreated, resp)
	return nil
}

// Login godoc
// @Summary      Log in with username or email
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        credentials body model.LoginRequest true "Credentials"
// @Success      200  {object}  model.AuthResponse
// @Failure      401  {object}  common.AppError "Invalid credentials or deactivated account"
// @Router       /auth/login [post]
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) *common.AppError {
	var req model.LoginRequest
	if err := common.ValidateAndDecode(r, &req); err != nil {
		return err
	}

	resp, err := h.authService.Login(r.Context(), req)
	if err != nil {
		return serviceError(err, "Could not log in")
	}

	common.WriteJSON(w, http.StatusOK, resp)
	return nil
}

// RefreshToken godoc
// @Summary      Exchange a refresh token for a new access token
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        token body model.RefreshTokenRequest true "Refresh token"
// @Success      200  {object}  model.TokenResponse
// @Failure      401  {object}  common.AppError "Refresh token revoked, expired or invalid"
// @Router       /auth/refresh [post]
func (h *AuthHandler) RefreshToken(w http.ResponseWriter, r *http.Request) *common.AppError {
	var req model.RefreshTokenRequest
	if err := common.ValidateAndDecode(r, &req); err != nil {
		return err
	}

	resp, err := h.authService.RefreshToken(r.Context(), req.RefreshToken)
	if err != nil {
		return serviceError(err, "Could not refresh token")
	}

	common.WriteJSON(w, http.StatusOK, resp)
	return nil
}

// Logout godoc
// @Summary      Revoke a refresh token
// @Tags         auth
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        token body model.RefreshTokenRequest true "Refresh token to revoke"
// @Success      200  {object}  model.MessageResponse
// @Failure      401  {object}  common.AppError "Missing or invalid access token"
// @Router       /auth/logout [post]
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) *common.AppError {
	var req model.RefreshTokenRequest
	if err := common.ValidateAndDecode(r, &req); err != nil {
		return err
	}

	if err := h.authService.Logout(r.Context(), req.RefreshToken); err != nil {
		return serviceError(err, "Could not log out")
	}

	common.WriteJSON(w, http.StatusOK, model.MessageResponse{Message: "Logged out successfully"})
	return nil
}

// ForgotPassword godoc
// @Summary      Request a password reset email
// @Description  Responds the same way whether or not the email is registered.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request body model.ForgotPasswordRequest true "Account email"
// @Success      200  {object}  model.MessageResponse
// @Failure      400  {object}  common.AppError "Reset email could not be sent"
// @Router       /auth/forgot-password [post]
func (h *AuthHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) *common.AppError {
	var req model.ForgotPasswordRequest
	if err := common.ValidateAndDecode(r, &req); err != nil {
		return err
	}

	if err := h.authService.ForgotPassword(r.Context(), req.Email); err != nil {
		return serviceError(err, "Could not process password reset")
	}

	common.WriteJSON(w, http.StatusOK, model.MessageResponse{
		Message: "If the email exists, a password reset link has been sent",
	})
	return nil
}

// ResetPassword godoc
// @Summary      Set a new password with a reset token
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request body model.ResetPasswordRequest true "Reset token and new password"
// @Success      200  {object}  model.MessageResponse
// @Failure      400  {object}  common.AppError "Invalid or expired reset token"
// @Router       /auth/reset-password [post]
func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) *common.AppError {
	var req model.ResetPasswordRequest
	if err := common.ValidateAndDecode(r, &req); err != nil {
		return err
	}

	if err := h.authService.ResetPassword(r.Context(), req); err != nil {
		return serviceError(err, "Could not reset password")
	}

	common.WriteJSON(w, http.StatusOK, model.MessageResponse{Message: "Password has been reset successfully"})
	return nil
}

// ChangePassword godoc
// @Summary      Change the current user's password
// @Tags         auth
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request body model.ChangePasswordRequest true "Current and new password"
// @Success      200  {object}  model.MessageResponse
// @Failure      400  {object}  common.AppError "Current password is incorrect"
// @Failure      401  {object}  common.AppError "Missing or invalid access token"
// @Failure      404  {object}  common.AppError "User no longer exists"
// @Router       /auth/change-password [post]
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) *common.AppError {
	var req model.ChangePasswordRequest
	if err := common.ValidateAndDecode(r, &req); err != nil {
		return err
	}

	userID, ok := r.Context().Value(UserIDKey).(int)
	if !ok {
		return common.NewAppError(http.StatusUnauthorized, "Invalid user ID in token", nil)
	}

	if err := h.authService.ChangePassword(r.Context(), userID, req); err != nil {
		return serviceError(err, "Could not change password")
	}

	common.WriteJSON(w, http.StatusOK, model.MessageResponse{Message: "Password changed successfully"})
	return nil
}

// Profile returns the stored user row for the token's subject.
func (h *AuthHandler) Profile(w http.ResponseWriter, r *http.Request) *common.AppError {
	userID, ok := r.Context().Value(UserIDKey).(int)
	if !ok {
		return common.NewAppError(http.StatusUnauthorized, "Invalid user ID in token", nil)
	}

	user, err := h.userService.GetProfile(r.Context(), userID)
	if err != nil {
		return serviceError(err, "Could not load profile")
	}

	common.WriteJSON(w, http.StatusOK, user)
	return nil
}

// Me echoes the identity carried by the access token.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) *common.AppError {
	claims, ok := claimsFrom(r)
	if !ok {
		return common.NewAppError(http.StatusUnauthorized, "Invalid token claims", nil)
	}
	common.WriteJSON(w, http.StatusOK, claims.Summary())
	return nil
}

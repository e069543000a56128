package model

// AuthResponse is returned by register and login.
type AuthResponse struct {
	AccessToken  string      `json:"accessToken"`
	RefreshToken string      `json:"refreshToken"`
	User         UserSummary `json:"user"`
}

// TokenResponse is returned by refresh. RefreshToken stays empty because
// refresh does not rotate the refresh token.
type TokenResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken,omitempty"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

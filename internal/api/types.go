package api

import "time"

// PairRequest represents the request payload for UI shell pairing.
type PairRequest struct {
	PairingCode string `json:"pairing_code" validate:"required"`
}

// PairResponse represents the response payload for UI shell pairing.
type PairResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	ClientID  string    `json:"client_id"`
}

// SubmitMessageRequest represents a typed chat message.
type SubmitMessageRequest struct {
	Text string `json:"text" validate:"required"`
}

// ExitRequest represents a kiosk exit attempt.
type ExitRequest struct {
	Password string `json:"password" validate:"required"`
}

// ExitResponse reports the outcome of a kiosk exit attempt.
type ExitResponse struct {
	Success bool `json:"success"`
}

// SettingsResponse represents the readable device settings. The
// password hash is never exposed.
type SettingsResponse struct {
	ServerURL string `json:"server_url"`
}

// UpdateSettingsRequest represents a settings change. Password fields
// are optional; both must be present to rotate the exit password.
type UpdateSettingsRequest struct {
	ServerURL       string `json:"server_url,omitempty"`
	CurrentPassword string `json:"current_password,omitempty"`
	NewPassword     string `json:"new_password,omitempty"`
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

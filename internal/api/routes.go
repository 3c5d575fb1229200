package api

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/wayfindr/kiosk/adapters/settings"
	"github.com/wayfindr/kiosk/domain/entities"
	"github.com/wayfindr/kiosk/domain/repositories"
	"github.com/wayfindr/kiosk/internal/auth"
	"github.com/wayfindr/kiosk/internal/websocket"
	"github.com/wayfindr/kiosk/usecase"
)

// SessionController is the slice of the kiosk session the HTTP surface
// drives.
type SessionController interface {
	Activate()
	ExitAttempt(password string) bool
	SubmitText(text string)
	ClearError()
	Status() entities.KioskStatus
}

// BaseURLSetter repoints an HTTP collaborator after the server URL
// setting changes.
type BaseURLSetter interface {
	SetBaseURL(baseURL string)
}

// Deps carries everything the routes need.
type Deps struct {
	Session     SessionController
	Store       *usecase.Conversation
	Settings    repositories.SettingsStore
	Auth        *auth.Authenticator
	Hub         *websocket.Hub
	Endpoints   []BaseURLSetter
	PairingCode string
	Logger      *zap.Logger
}

// InitRoutes initializes all API routes.
func InitRoutes(e *echo.Echo, deps Deps) {
	// Health check
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"service": "wayfindr-kiosk",
		})
	})

	// API v1 routes
	v1 := e.Group("/api/v1")

	v1.POST("/pair", func(c echo.Context) error {
		return pair(c, deps)
	})
	v1.GET("/status", func(c echo.Context) error {
		return c.JSON(http.StatusOK, deps.Session.Status())
	})
	v1.POST("/messages", func(c echo.Context) error {
		return submitMessage(c, deps)
	})
	v1.DELETE("/messages", func(c echo.Context) error {
		deps.Store.ClearHistory()
		return c.NoContent(http.StatusNoContent)
	})
	v1.GET("/export", func(c echo.Context) error {
		return c.Blob(http.StatusOK, "text/markdown; charset=utf-8",
			[]byte(deps.Store.ExportMarkdown()))
	})
	v1.GET("/settings", func(c echo.Context) error {
		return getSettings(c, deps)
	})
	v1.PUT("/settings", func(c echo.Context) error {
		return updateSettings(c, deps)
	})
	v1.POST("/settings/password/reset", func(c echo.Context) error {
		return resetPassword(c, deps)
	})
	v1.POST("/kiosk/activate", func(c echo.Context) error {
		deps.Session.Activate()
		return c.NoContent(http.StatusAccepted)
	})
	v1.POST("/kiosk/exit", func(c echo.Context) error {
		return kioskExit(c, deps)
	})
	v1.POST("/errors/clear", func(c echo.Context) error {
		deps.Session.ClearError()
		return c.NoContent(http.StatusNoContent)
	})

	// WebSocket endpoint with JWT validation
	e.GET("/ws", func(c echo.Context) error {
		return websocketWithAuth(c, deps)
	})
}

// pair exchanges the device pairing code for a UI shell token.
func pair(c echo.Context, deps Deps) error {
	var req PairRequest
	if err := c.Bind(&req); err != nil {
		deps.Logger.Error("Failed to bind pair request", zap.Error(err))
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request format",
		})
	}

	if req.PairingCode == "" || req.PairingCode != deps.PairingCode {
		deps.Logger.Warn("Pairing attempt rejected")
		return c.JSON(http.StatusUnauthorized, ErrorResponse{
			Error:   "pairing_failed",
			Message: "Invalid pairing code",
		})
	}

	clientID := uuid.New().String()
	token, expiresAt, err := deps.Auth.GeneratePairingToken(clientID)
	if err != nil {
		deps.Logger.Error("Failed to generate pairing token",
			zap.String("client_id", clientID),
			zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "token_generation_failed",
			Message: "Failed to generate pairing token",
		})
	}

	deps.Logger.Info("UI shell paired", zap.String("client_id", clientID))
	return c.JSON(http.StatusOK, PairResponse{
		Token:     token,
		ExpiresAt: expiresAt,
		ClientID:  clientID,
	})
}

func submitMessage(c echo.Context, deps Deps) error {
	var req SubmitMessageRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request format",
		})
	}
	if strings.TrimSpace(req.Text) == "" {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "missing_fields",
			Message: "Message text is required",
		})
	}
	deps.Session.SubmitText(req.Text)
	return c.NoContent(http.StatusAccepted)
}

func getSettings(c echo.Context, deps Deps) error {
	serverURL, err := deps.Settings.ServerURL()
	if err != nil {
		deps.Logger.Error("Failed to read settings", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "settings_read_failed",
			Message: "Failed to read settings",
		})
	}
	return c.JSON(http.StatusOK, SettingsResponse{ServerURL: serverURL})
}

func updateSettings(c echo.Context, deps Deps) error {
	var req UpdateSettingsRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request format",
		})
	}

	if req.ServerURL != "" {
		if err := deps.Settings.SetServerURL(req.ServerURL); err != nil {
			deps.Logger.Error("Failed to update server URL", zap.Error(err))
			return c.JSON(http.StatusInternalServerError, ErrorResponse{
				Error:   "settings_write_failed",
				Message: "Failed to persist server URL",
			})
		}
		for _, endpoint := range deps.Endpoints {
			endpoint.SetBaseURL(req.ServerURL)
		}
		deps.Logger.Info("Server URL updated", zap.String("server_url", req.ServerURL))
	}

	if req.NewPassword != "" {
		hash, err := deps.Settings.PasswordHash()
		if err != nil {
			deps.Logger.Error("Failed to read password hash", zap.Error(err))
			return c.JSON(http.StatusInternalServerError, ErrorResponse{
				Error:   "settings_read_failed",
				Message: "Failed to read settings",
			})
		}
		if !settings.VerifyPassword(req.CurrentPassword, hash) {
			return c.JSON(http.StatusUnauthorized, ErrorResponse{
				Error:   "password_mismatch",
				Message: "Current password is incorrect",
			})
		}
		if err := deps.Settings.SetPasswordHash(settings.HashPassword(req.NewPassword)); err != nil {
			deps.Logger.Error("Failed to update password hash", zap.Error(err))
			return c.JSON(http.StatusInternalServerError, ErrorResponse{
				Error:   "settings_write_failed",
				Message: "Failed to persist password",
			})
		}
		deps.Logger.Info("Kiosk exit password rotated")
	}

	return c.NoContent(http.StatusNoContent)
}

// resetPassword restores the default exit password. The current
// password is still required, matching the rotation flow.
func resetPassword(c echo.Context, deps Deps) error {
	var req ExitRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request format",
		})
	}

	hash, err := deps.Settings.PasswordHash()
	if err != nil {
		deps.Logger.Error("Failed to read password hash", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "settings_read_failed",
			Message: "Failed to read settings",
		})
	}
	if !settings.VerifyPassword(req.Password, hash) {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{
			Error:   "password_mismatch",
			Message: "Current password is incorrect",
		})
	}
	if err := deps.Settings.SetPasswordHash(settings.HashPassword(settings.DefaultPassword)); err != nil {
		deps.Logger.Error("Failed to reset password hash", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "settings_write_failed",
			Message: "Failed to persist password",
		})
	}
	deps.Logger.Info("Kiosk exit password reset to default")
	return c.NoContent(http.StatusNoContent)
}

func kioskExit(c echo.Context, deps Deps) error {
	var req ExitRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request format",
		})
	}
	success := deps.Session.ExitAttempt(req.Password)
	if !success {
		return c.JSON(http.StatusUnauthorized, ExitResponse{Success: false})
	}
	return c.JSON(http.StatusOK, ExitResponse{Success: true})
}

// websocketWithAuth handles WebSocket connections with JWT authentication.
func websocketWithAuth(c echo.Context, deps Deps) error {
	var token string
	authHeader := c.Request().Header.Get("Authorization")
	if authHeader != "" && len(authHeader) > 7 && authHeader[:7] == "Bearer " {
		token = authHeader[7:]
	}
	if token == "" {
		// Browser WebSocket clients cannot set headers on the upgrade.
		token = c.QueryParam("token")
	}

	if token == "" {
		deps.Logger.Warn("WebSocket connection rejected: missing token")
		return c.JSON(http.StatusUnauthorized, ErrorResponse{
			Error:   "missing_token",
			Message: "JWT token is required",
		})
	}

	claims, err := deps.Auth.ValidateToken(token)
	if err != nil {
		deps.Logger.Warn("WebSocket connection rejected: invalid token", zap.Error(err))
		return c.JSON(http.StatusUnauthorized, ErrorResponse{
			Error:   "invalid_token",
			Message: "Invalid or expired JWT token",
		})
	}

	if claims.Role != auth.RoleUI {
		deps.Logger.Warn("WebSocket connection rejected: invalid role",
			zap.String("role", claims.Role))
		return c.JSON(http.StatusForbidden, ErrorResponse{
			Error:   "invalid_role",
			Message: "Only paired UI tokens may open the session socket",
		})
	}

	deps.Logger.Info("WebSocket connection authenticated",
		zap.String("client_id", claims.ClientID))
	return websocket.HandleWebSocket(deps.Hub, c, deps.Logger)
}

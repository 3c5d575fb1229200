package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/wayfindr/kiosk/adapters/llm"
	"github.com/wayfindr/kiosk/adapters/settings"
	"github.com/wayfindr/kiosk/domain/entities"
	"github.com/wayfindr/kiosk/internal/auth"
	"github.com/wayfindr/kiosk/internal/websocket"
	"github.com/wayfindr/kiosk/usecase"
)

// fakeSession records commands from the HTTP surface.
type fakeSession struct {
	activated bool
	submitted []string
	exitOK    bool
	cleared   bool
}

func (f *fakeSession) Activate()                       { f.activated = true }
func (f *fakeSession) ExitAttempt(password string) bool { return f.exitOK }
func (f *fakeSession) SubmitText(text string)          { f.submitted = append(f.submitted, text) }
func (f *fakeSession) ClearError()                     { f.cleared = true }
func (f *fakeSession) Status() entities.KioskStatus {
	return entities.KioskStatus{Active: f.activated, State: entities.KioskStateListening}
}

func newTestServer(t *testing.T, session *fakeSession) (*echo.Echo, Deps) {
	t.Helper()
	logger := zap.NewNop()

	settingsStore, err := settings.NewFileStore(filepath.Join(t.TempDir(), "settings.json"), logger)
	if err != nil {
		t.Fatalf("Failed to create settings store: %v", err)
	}
	store := usecase.NewConversation(llm.NewMockResponder(), usecase.ConversationConfig{}, logger)

	deps := Deps{
		Session:     session,
		Store:       store,
		Settings:    settingsStore,
		Auth:        auth.NewAuthenticator("test-secret", time.Hour),
		Hub:         websocket.NewHub(nil, logger),
		PairingCode: "424242",
		Logger:      logger,
	}

	e := echo.New()
	InitRoutes(e, deps)
	return e, deps
}

func doJSON(e *echo.Echo, method, path string, payload interface{}) *httptest.ResponseRecorder {
	var body bytes.Buffer
	if payload != nil {
		json.NewEncoder(&body).Encode(payload)
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	e, _ := newTestServer(t, &fakeSession{})
	rec := doJSON(e, http.MethodGet, "/health", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("Expected 200, got %d", rec.Code)
	}
}

func TestPairSuccess(t *testing.T) {
	e, _ := newTestServer(t, &fakeSession{})

	rec := doJSON(e, http.MethodPost, "/api/v1/pair", PairRequest{PairingCode: "424242"})
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp PairResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to decode pair response: %v", err)
	}
	if resp.Token == "" || resp.ClientID == "" {
		t.Errorf("Expected token and client ID, got %+v", resp)
	}
}

func TestPairWrongCode(t *testing.T) {
	e, _ := newTestServer(t, &fakeSession{})
	rec := doJSON(e, http.MethodPost, "/api/v1/pair", PairRequest{PairingCode: "000000"})
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401, got %d", rec.Code)
	}
}

func TestSubmitMessage(t *testing.T) {
	session := &fakeSession{}
	e, _ := newTestServer(t, session)

	rec := doJSON(e, http.MethodPost, "/api/v1/messages", SubmitMessageRequest{Text: "hello"})
	if rec.Code != http.StatusAccepted {
		t.Fatalf("Expected 202, got %d", rec.Code)
	}
	if len(session.submitted) != 1 || session.submitted[0] != "hello" {
		t.Errorf("Expected submitted message, got %v", session.submitted)
	}

	rec = doJSON(e, http.MethodPost, "/api/v1/messages", SubmitMessageRequest{Text: "  "})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for blank text, got %d", rec.Code)
	}
}

func TestKioskExit(t *testing.T) {
	session := &fakeSession{exitOK: false}
	e, _ := newTestServer(t, session)

	rec := doJSON(e, http.MethodPost, "/api/v1/kiosk/exit", ExitRequest{Password: "wrong"})
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 for rejected exit, got %d", rec.Code)
	}

	session.exitOK = true
	rec = doJSON(e, http.MethodPost, "/api/v1/kiosk/exit", ExitRequest{Password: "1234"})
	if rec.Code != http.StatusOK {
		t.Errorf("Expected 200 for accepted exit, got %d", rec.Code)
	}
}

func TestUpdateSettingsPasswordRotation(t *testing.T) {
	e, deps := newTestServer(t, &fakeSession{})

	rec := doJSON(e, http.MethodPut, "/api/v1/settings", UpdateSettingsRequest{
		CurrentPassword: "wrong",
		NewPassword:     "new-password",
	})
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 for wrong current password, got %d", rec.Code)
	}

	rec = doJSON(e, http.MethodPut, "/api/v1/settings", UpdateSettingsRequest{
		CurrentPassword: settings.DefaultPassword,
		NewPassword:     "new-password",
	})
	if rec.Code != http.StatusNoContent {
		t.Fatalf("Expected 204, got %d: %s", rec.Code, rec.Body.String())
	}

	hash, _ := deps.Settings.PasswordHash()
	if !settings.VerifyPassword("new-password", hash) {
		t.Error("Expected rotated password to verify")
	}
}

func TestResetPassword(t *testing.T) {
	e, deps := newTestServer(t, &fakeSession{})

	// Rotate away from the default first.
	doJSON(e, http.MethodPut, "/api/v1/settings", UpdateSettingsRequest{
		CurrentPassword: settings.DefaultPassword,
		NewPassword:     "temporary",
	})

	rec := doJSON(e, http.MethodPost, "/api/v1/settings/password/reset", ExitRequest{Password: "wrong"})
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 for wrong password, got %d", rec.Code)
	}

	rec = doJSON(e, http.MethodPost, "/api/v1/settings/password/reset", ExitRequest{Password: "temporary"})
	if rec.Code != http.StatusNoContent {
		t.Fatalf("Expected 204, got %d: %s", rec.Code, rec.Body.String())
	}

	hash, _ := deps.Settings.PasswordHash()
	if !settings.VerifyPassword(settings.DefaultPassword, hash) {
		t.Error("Expected default password restored")
	}
}

func TestGetSettingsHidesPasswordHash(t *testing.T) {
	e, _ := newTestServer(t, &fakeSession{})
	rec := doJSON(e, http.MethodGet, "/api/v1/settings", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	if bytes.Contains(rec.Body.Bytes(), []byte("hash")) {
		t.Errorf("Expected no hash material in settings response: %s", rec.Body.String())
	}
}

func TestExport(t *testing.T) {
	e, deps := newTestServer(t, &fakeSession{})
	rec := doJSON(e, http.MethodGet, "/api/v1/export", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	if rec.Body.String() != deps.Store.ExportMarkdown() {
		t.Errorf("Expected export body to match store export")
	}
}

func TestWebSocketRejectsMissingToken(t *testing.T) {
	e, _ := newTestServer(t, &fakeSession{})
	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 without token, got %d", rec.Code)
	}
}

package repositories

// SettingsStore persists the small set of device settings that survive
// restarts: the responder base URL and the kiosk exit password hash.
type SettingsStore interface {
	ServerURL() (string, error)
	SetServerURL(url string) error
	PasswordHash() (string, error)
	SetPasswordHash(hash string) error
}

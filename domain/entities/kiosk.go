package entities

// KioskState is the primary visual/functional state of the kiosk
// session. It is a pure projection of other state and is recomputed on
// every relevant change, never stored.
type KioskState string

const (
	KioskStateListening       KioskState = "listening"
	KioskStateUserSpeaking    KioskState = "user_speaking"
	KioskStateWaitingResponse KioskState = "waiting_response"
	KioskStateResponding      KioskState = "responding"
)

// DeriveKioskState projects the current kiosk state. Speech output
// takes precedence over an in-flight request, which takes precedence
// over the user speaking.
func DeriveKioskState(isSpeaking bool, snap ConversationSnapshot) KioskState {
	switch {
	case isSpeaking:
		return KioskStateResponding
	case snap.IsLoading:
		return KioskStateWaitingResponse
	case snap.IsUserSpeaking:
		return KioskStateUserSpeaking
	default:
		return KioskStateListening
	}
}

// PendingConfirmation is the transient confirm-or-cancel gate shown
// before a recognized utterance is sent. It exists only while the
// countdown is running.
type PendingConfirmation struct {
	RecognizedText   string `json:"recognized_text"`
	RemainingSeconds int    `json:"remaining_seconds"`
}

// KioskStatus is the full session status exposed to the UI shell.
type KioskStatus struct {
	Active       bool                 `json:"active"`
	State        KioskState           `json:"state"`
	HasError     bool                 `json:"has_error"`
	Confirmation *PendingConfirmation `json:"confirmation,omitempty"`
	Conversation ConversationSnapshot `json:"conversation"`
}

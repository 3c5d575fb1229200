package voice

import "github.com/wayfindr/kiosk/domain/repositories"

// DescribeSpeechError renders a speech error code as a human-readable
// cause, suitable for logs and the operator UI.
func DescribeSpeechError(code repositories.SpeechErrorCode) string {
	switch code {
	case repositories.SpeechErrorAudio:
		return "Audio recording error"
	case repositories.SpeechErrorPermission:
		return "Insufficient permissions"
	case repositories.SpeechErrorNetwork:
		return "Network error"
	case repositories.SpeechErrorNetworkTimeout:
		return "Network timeout"
	case repositories.SpeechErrorNoMatch:
		return "No speech match"
	case repositories.SpeechErrorBusy:
		return "Recognition service busy"
	case repositories.SpeechErrorServer:
		return "Error from server"
	case repositories.SpeechErrorSpeechTimeout:
		return "No speech input"
	default:
		return "Unknown speech error"
	}
}

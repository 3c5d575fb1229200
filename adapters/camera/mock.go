package camera

import (
	"context"
	"time"

	"github.com/wayfindr/kiosk/domain/repositories"
)

// MockFrameSource produces small static frames for development without
// camera hardware.
type MockFrameSource struct{}

var _ repositories.FrameSource = (*MockFrameSource)(nil)

// NewMockFrameSource creates a mock frame source.
func NewMockFrameSource() *MockFrameSource {
	return &MockFrameSource{}
}

// Capture implements repositories.FrameSource.
func (m *MockFrameSource) Capture(_ context.Context, cam repositories.CameraFacing) (repositories.Frame, error) {
	return repositories.Frame{
		Camera:    cam,
		Timestamp: time.Now().UnixMilli(),
		JPEG:      []byte{0xFF, 0xD8, 0xFF, 0xD9},
		Width:     640,
		Height:    480,
	}, nil
}

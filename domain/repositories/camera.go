package repositories

import "context"

// CameraFacing identifies which camera captured a frame.
type CameraFacing string

const (
	CameraFront CameraFacing = "front"
	CameraRear  CameraFacing = "rear"
)

// Frame is a single captured camera image.
type Frame struct {
	Camera    CameraFacing
	Timestamp int64 // epoch milliseconds
	JPEG      []byte
	Width     int
	Height    int
}

// FrameSource produces camera frames at the capture subsystem's pace.
type FrameSource interface {
	// Capture returns the most recent frame for the given camera.
	Capture(ctx context.Context, camera CameraFacing) (Frame, error)
}

// SnapshotUploader ships frames to the remote endpoint. Uploads are
// fire-and-forget: failures are logged, never surfaced to the session.
type SnapshotUploader interface {
	Upload(ctx context.Context, frame Frame) error
}

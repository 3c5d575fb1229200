package camera

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/wayfindr/kiosk/domain/repositories"
)

const uploadTimeout = 15 * time.Second

// HTTPUploader ships camera frames to the responder's image endpoint.
// Uploads never surface errors to the session; failures are logged and
// dropped.
type HTTPUploader struct {
	mu      sync.Mutex
	baseURL string
	client  *http.Client
	logger  *zap.Logger
}

var _ repositories.SnapshotUploader = (*HTTPUploader)(nil)

type uploadRequest struct {
	Camera    string `json:"camera"`
	Timestamp int64  `json:"timestamp"`
	Image     string `json:"image"`
	Format    string `json:"format"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
}

// NewHTTPUploader creates an uploader posting to baseURL + "/images".
func NewHTTPUploader(baseURL string, logger *zap.Logger) *HTTPUploader {
	return &HTTPUploader{
		baseURL: baseURL,
		client:  &http.Client{Timeout: uploadTimeout},
		logger:  logger,
	}
}

// SetBaseURL repoints the uploader, typically after an operator changes
// the server URL.
func (u *HTTPUploader) SetBaseURL(baseURL string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.baseURL = baseURL
}

// Upload implements repositories.SnapshotUploader.
func (u *HTTPUploader) Upload(ctx context.Context, frame repositories.Frame) error {
	u.mu.Lock()
	baseURL := u.baseURL
	u.mu.Unlock()

	body, err := json.Marshal(uploadRequest{
		Camera:    string(frame.Camera),
		Timestamp: frame.Timestamp,
		Image:     base64.StdEncoding.EncodeToString(frame.JPEG),
		Format:    "jpeg",
		Width:     frame.Width,
		Height:    frame.Height,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal frame: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/images", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create upload request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := u.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to upload frame: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("image endpoint returned HTTP %d", resp.StatusCode)
	}
	return nil
}

// Streamer periodically captures frames from a source and hands them to
// an uploader. It runs until its context is cancelled.
type Streamer struct {
	source   repositories.FrameSource
	uploader repositories.SnapshotUploader
	camera   repositories.CameraFacing
	interval time.Duration
	logger   *zap.Logger
}

// NewStreamer creates a periodic frame streamer.
func NewStreamer(
	source repositories.FrameSource,
	uploader repositories.SnapshotUploader,
	camera repositories.CameraFacing,
	interval time.Duration,
	logger *zap.Logger,
) *Streamer {
	return &Streamer{
		source:   source,
		uploader: uploader,
		camera:   camera,
		interval: interval,
		logger:   logger,
	}
}

// Run captures and uploads one frame per interval until ctx is done.
func (s *Streamer) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			frame, err := s.source.Capture(ctx, s.camera)
			if err != nil {
				s.logger.Warn("Failed to capture frame",
					zap.String("camera", string(s.camera)),
					zap.Error(err))
				continue
			}
			if err := s.uploader.Upload(ctx, frame); err != nil {
				s.logger.Warn("Failed to upload frame",
					zap.String("camera", string(s.camera)),
					zap.Error(err))
			}
		}
	}
}

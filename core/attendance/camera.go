package attendance

import (
	"image"

	"github.com/pkg/errors"
)

// cameraManager owns the camera stream of a session. Not safe for concurrent use; guarded by the Workflow mutex.
type cameraManager struct {
	source      CameraSource
	constraints Constraints
	stream      Stream
}

func newCameraManager(source CameraSource, c Constraints) *cameraManager {
	return &cameraManager{source: source, constraints: c}
}

func (cm *cameraManager) active() bool {
	return cm.stream != nil
}

// attach takes ownership of s. A stream already attached is released first.
func (cm *cameraManager) attach(s Stream) {
	cm.release()
	cm.stream = s
}

// release stops the current stream, if any. It is idempotent.
func (cm *cameraManager) release() {
	if cm.stream == nil {
		return
	}
	if cm.source != nil {
		cm.source.Release(cm.stream)
	}
	cm.stream = nil
}

func (cm *cameraManager) frame() (image.Image, error) {
	if cm.stream == nil {
		return nil, ErrCameraInactive
	}
	frame, err := cm.stream.CurrentFrame()
	if err != nil {
		return nil, errors.Wrapf(ErrNoFrameAvailable, "reading frame: %v", err)
	}
	if frame == nil || frame.Bounds().Empty() {
		return nil, ErrNoFrameAvailable
	}
	return frame, nil
}

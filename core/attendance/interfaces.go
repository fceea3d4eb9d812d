package attendance

import (
	"context"
	"image"
	"io"
)

type (
	// Constraints describe the stream requested from a camera.
	Constraints struct {
		Width      int
		Height     int
		FacingMode string
	}

	// Stream is a live camera stream, owned by a single session until released.
	Stream interface {
		// CurrentFrame returns the latest frame, or an error if none is available yet.
		CurrentFrame() (image.Image, error)
	}

	CameraSource interface {
		Acquire(ctx context.Context, c Constraints) (Stream, error)
		Release(s Stream)
	}

	// ImageSink turns camera frames and uploaded files into encoded still images.
	ImageSink interface {
		FromFrame(frame image.Image) (Image, error)
		FromFile(ctx context.Context, name string, r io.Reader) (Image, error)
	}

	ClassDirectory interface {
		ListClasses(ctx context.Context) ([]Class, error)
	}

	Recognizer interface {
		Recognize(ctx context.Context, img Image, classID int) ([]Candidate, error)
	}

	// Sink is where attendance records are delivered.
	Sink interface {
		Submit(ctx context.Context, sub Submission) (Receipt, error)
		SubmitManual(ctx context.Context, entry ManualEntry) (Receipt, error)
	}

	// RecordStore is a Sink that keeps the records it receives.
	RecordStore interface {
		Sink
		ListRecords(ctx context.Context, filter RecordFilter) ([]Record, error)
	}
)

// DefaultConstraints are the constraints of the capture screens.
var DefaultConstraints = Constraints{Width: 640, Height: 480, FacingMode: "user"}

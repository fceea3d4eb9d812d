package attendance

import (
	"github.com/pkg/errors"
)

var (
	ErrCameraUnavailable   = errors.New("camera unavailable")
	ErrCameraInactive      = errors.New("camera is not active")
	ErrNoFrameAvailable    = errors.New("no camera frame available yet")
	ErrDecode              = errors.New("unable to read image")
	ErrInvalidPrecondition = errors.New("an image and a class are required")
	ErrNoFile              = errors.New("no file provided")
	ErrBusy                = errors.New("another operation is in progress")
	ErrInvalidTransition   = errors.New("operation not allowed at this step")
	ErrNotPermitted        = errors.New("operation not permitted")
	ErrClassNotFound       = errors.New("class not found")
	ErrSessionClosed       = errors.New("session closed")
	ErrSessionNotFound     = errors.New("no open session")
	ErrStaleResult         = errors.New("result discarded: session has moved on")
)

// Notices shown to the operator.
const (
	noticeCamera      = "Unable to access camera. Please check permissions."
	noticeNoFrame     = "The camera is not ready yet. Please try again."
	noticeDecode      = "Unable to read the selected file. Please choose a valid image."
	noticeRecognition = "Face recognition failed. Please try again."
	noticeSubmission  = "Unable to submit attendance records. Please try again."
)

// RecognitionError is returned when the recognition service fails.
type RecognitionError struct {
	Err error
}

func (e *RecognitionError) Error() string { return "recognition failed: " + e.Err.Error() }
func (e *RecognitionError) Unwrap() error { return e.Err }

// SubmissionError is returned when the attendance sink rejects a submission.
type SubmissionError struct {
	Err error
}

func (e *SubmissionError) Error() string { return "submission failed: " + e.Err.Error() }
func (e *SubmissionError) Unwrap() error { return e.Err }

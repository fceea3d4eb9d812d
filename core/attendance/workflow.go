package attendance

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/rollcall/core"
)

var (
	NowFunc   = time.Now       // mockable
	newIDFunc = uuid.NewString // mockable
)

const subscriberBuffer = 8

type (
	Deps struct {
		Camera     CameraSource
		Images     ImageSink
		Classes    ClassDirectory
		Recognizer Recognizer
		Sink       Sink
		Logger     core.Logger
	}

	Options struct {
		Constraints Constraints
		// RecognitionTimeout bounds a recognition call; zero means no timeout.
		RecognitionTimeout time.Duration
	}

	session struct {
		id          string
		generation  uint64
		step        Step
		image       *Image
		classID     int
		results     []RecognitionRecord
		notice      string
		lastReceipt *Receipt
	}

	// Workflow drives the capture session of one operator screen:
	// capture (camera or upload) -> verify & select class -> process -> review & submit.
	// All methods are safe for concurrent use; a single asynchronous operation may run at a time.
	Workflow struct {
		op   Operator
		deps Deps
		opts Options
		log  core.Logger

		mu           sync.Mutex
		sess         session
		camera       *cameraManager
		busy         Busy
		cancel       context.CancelFunc
		closed       bool
		lastActivity time.Time
		subs         map[chan Snapshot]struct{}
	}
)

func NewWorkflow(op Operator, deps Deps, opts Options) *Workflow {
	if opts.Constraints == (Constraints{}) {
		opts.Constraints = DefaultConstraints
	}
	logger := deps.Logger
	if logger == nil {
		logger = core.NopLogger{}
	}
	w := &Workflow{
		op:           op,
		deps:         deps,
		opts:         opts,
		log:          logger,
		camera:       newCameraManager(deps.Camera, opts.Constraints),
		lastActivity: NowFunc(),
		subs:         make(map[chan Snapshot]struct{}),
	}
	w.sess = session{id: newIDFunc(), step: StepCapture}
	return w
}

func (w *Workflow) Operator() Operator { return w.op }

// Snapshot returns a copy of the current session state.
func (w *Workflow) Snapshot() Snapshot {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.snapshot()
}

func (w *Workflow) snapshot() Snapshot {
	snap := Snapshot{
		ID:           w.sess.id,
		Generation:   w.sess.generation,
		Flow:         w.op.Flow,
		Step:         w.sess.step,
		ClassID:      w.sess.classID,
		CameraActive: w.camera.active(),
		Busy:         w.busy,
		Notice:       w.sess.notice,
		Capabilities: w.op.Caps,
		Closed:       w.closed,
	}
	if w.sess.image != nil {
		snap.Image = w.sess.image.Info()
	}
	if len(w.sess.results) > 0 {
		snap.Results = append([]RecognitionRecord(nil), w.sess.results...)
		sum := Summarize(w.sess.results)
		snap.Summary = &sum
	}
	if w.sess.lastReceipt != nil {
		rcpt := *w.sess.lastReceipt
		snap.LastReceipt = &rcpt
	}
	return snap
}

// Subscribe returns a channel receiving a snapshot on every state change, and its cancel func.
// Slow subscribers miss intermediate snapshots; they are never blocked on.
func (w *Workflow) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, subscriberBuffer)
	w.mu.Lock()
	if w.closed {
		close(ch)
		w.mu.Unlock()
		return ch, func() {}
	}
	w.subs[ch] = struct{}{}
	w.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			w.mu.Lock()
			defer w.mu.Unlock()
			if _, ok := w.subs[ch]; ok {
				delete(w.subs, ch)
				close(ch)
			}
		})
	}
}

// notify publishes the current state. Must be called with w.mu held.
func (w *Workflow) notify() {
	if len(w.subs) == 0 {
		return
	}
	snap := w.snapshot()
	for ch := range w.subs {
		select {
		case ch <- snap:
		default:
		}
	}
}

// LastActivity returns when the operator last acted on the session.
func (w *Workflow) LastActivity() time.Time {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastActivity
}

// checkIdle must be called with w.mu held.
func (w *Workflow) checkIdle() error {
	if w.closed {
		return ErrSessionClosed
	}
	if w.busy != BusyNone {
		return ErrBusy
	}
	w.lastActivity = NowFunc()
	return nil
}

// begin marks the session busy with op and returns the generation the result must be applied to.
// Must be called with w.mu held.
func (w *Workflow) begin(ctx context.Context, op Busy) (context.Context, uint64) {
	ctx, cancel := context.WithCancel(ctx)
	w.busy = op
	w.cancel = cancel
	w.notify()
	return ctx, w.sess.generation
}

// end clears the busy state and reports whether a result for gen may still be applied.
// Must be called with w.mu held.
func (w *Workflow) end(gen uint64) bool {
	if w.closed || w.sess.generation != gen {
		return false
	}
	if w.cancel != nil {
		w.cancel()
		w.cancel = nil
	}
	w.busy = BusyNone
	return true
}

func (w *Workflow) setNotice(msg string) {
	w.sess.notice = msg
}

// DismissNotice clears the error message shown to the operator.
func (w *Workflow) DismissNotice() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.sess.notice != "" {
		w.sess.notice = ""
		w.notify()
	}
}

// StartCamera acquires a camera stream. It is a no-op if the camera is already active.
func (w *Workflow) StartCamera(ctx context.Context) error {
	w.mu.Lock()
	if err := w.checkIdle(); err != nil {
		w.mu.Unlock()
		return err
	}
	if w.sess.step != StepCapture {
		w.mu.Unlock()
		return ErrInvalidTransition
	}
	if w.camera.active() {
		w.mu.Unlock()
		return nil
	}
	if w.deps.Camera == nil {
		w.setNotice(noticeCamera)
		w.notify()
		w.mu.Unlock()
		return errors.Wrap(ErrCameraUnavailable, "no camera source")
	}
	ctx, gen := w.begin(ctx, BusyStartingCamera)
	w.mu.Unlock()

	stream, err := w.deps.Camera.Acquire(ctx, w.opts.Constraints)

	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.end(gen) {
		if err == nil {
			w.deps.Camera.Release(stream)
		}
		return ErrStaleResult
	}
	if err != nil {
		w.log.Warn(fmt.Sprintf("attendance.StartCamera: %v", err), err)
		w.setNotice(noticeCamera)
		w.notify()
		return errors.Wrapf(ErrCameraUnavailable, "acquiring camera: %v", err)
	}
	w.camera.attach(stream)
	w.sess.notice = ""
	w.notify()
	return nil
}

// StopCamera releases the camera stream. It is idempotent and aborts a pending StartCamera.
func (w *Workflow) StopCamera() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.busy == BusyStartingCamera {
		w.abortInFlight()
	}
	if w.camera.active() {
		w.camera.release()
	}
	w.notify()
}

// abortInFlight cancels the running operation and invalidates its result.
// Must be called with w.mu held.
func (w *Workflow) abortInFlight() {
	if w.cancel != nil {
		w.cancel()
		w.cancel = nil
	}
	w.busy = BusyNone
	w.sess.generation++
}

// CapturePhoto freezes the current camera frame as the session image and moves to verification.
func (w *Workflow) CapturePhoto() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.checkIdle(); err != nil {
		return err
	}
	if w.sess.step != StepCapture {
		return ErrInvalidTransition
	}
	frame, err := w.camera.frame()
	if err != nil {
		if errors.Is(err, ErrNoFrameAvailable) {
			w.setNotice(noticeNoFrame)
			w.notify()
		}
		return err
	}
	img, err := w.deps.Images.FromFrame(frame)
	if err != nil {
		return errors.Wrap(err, "encoding frame")
	}
	img.Source = SourceCamera

	w.camera.release()
	w.sess.image = &img
	w.sess.step = StepVerify
	w.sess.notice = ""
	w.notify()
	return nil
}

// AcceptUpload decodes an uploaded photo, makes it the session image and moves to verification.
// A live camera is released once the image is accepted.
func (w *Workflow) AcceptUpload(ctx context.Context, name string, r io.Reader) error {
	if r == nil {
		return ErrNoFile
	}

	w.mu.Lock()
	if err := w.checkIdle(); err != nil {
		w.mu.Unlock()
		return err
	}
	if w.sess.step != StepCapture {
		w.mu.Unlock()
		return ErrInvalidTransition
	}
	ctx, gen := w.begin(ctx, BusyUploading)
	w.mu.Unlock()

	img, err := w.deps.Images.FromFile(ctx, name, r)

	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.end(gen) {
		return ErrStaleResult
	}
	if err != nil {
		w.log.Info(fmt.Sprintf("attendance.AcceptUpload(%s): %v", name, err))
		w.setNotice(noticeDecode)
		w.notify()
		if errors.Is(err, ErrDecode) {
			return err
		}
		return errors.Wrapf(ErrDecode, "%s: %v", name, err)
	}
	img.Source = SourceUpload

	w.camera.release()
	w.sess.image = &img
	w.sess.step = StepVerify
	w.sess.notice = ""
	w.notify()
	return nil
}

// SelectClass sets the class the captured students are recognized against.
func (w *Workflow) SelectClass(ctx context.Context, classID int) error {
	w.mu.Lock()
	if err := w.checkIdle(); err != nil {
		w.mu.Unlock()
		return err
	}
	if w.sess.step != StepVerify {
		w.mu.Unlock()
		return ErrInvalidTransition
	}
	w.mu.Unlock()

	if err := w.checkClass(ctx, classID); err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.checkIdle(); err != nil {
		return err
	}
	if w.sess.step != StepVerify {
		return ErrInvalidTransition
	}
	w.sess.classID = classID
	w.notify()
	return nil
}

func (w *Workflow) checkClass(ctx context.Context, classID int) error {
	if classID <= 0 {
		return ErrClassNotFound
	}
	classes, err := w.deps.Classes.ListClasses(ctx)
	if err != nil {
		return errors.Wrap(err, "listing classes")
	}
	for _, c := range classes {
		if c.ID == classID {
			return nil
		}
	}
	return ErrClassNotFound
}

// Retake discards the image and goes back to capture, keeping the selected class.
// Screens with RearmCameraOnRetake restart the camera when the image came from it;
// a camera failure is then returned after the transition.
func (w *Workflow) Retake(ctx context.Context) error {
	w.mu.Lock()
	if err := w.checkIdle(); err != nil {
		w.mu.Unlock()
		return err
	}
	if w.sess.step != StepVerify {
		w.mu.Unlock()
		return ErrInvalidTransition
	}
	rearm := w.op.Caps.RearmCameraOnRetake && w.sess.image != nil && w.sess.image.Source == SourceCamera
	w.sess.image = nil
	w.sess.results = nil
	w.sess.step = StepCapture
	w.sess.notice = ""
	w.notify()
	w.mu.Unlock()

	if rearm {
		return w.StartCamera(ctx)
	}
	return nil
}

// Process sends the image to the recognition service and moves to results.
// On failure the session stays in verification.
func (w *Workflow) Process(ctx context.Context) error {
	w.mu.Lock()
	if err := w.checkIdle(); err != nil {
		w.mu.Unlock()
		return err
	}
	if w.sess.image == nil || w.sess.classID == 0 {
		w.mu.Unlock()
		return ErrInvalidPrecondition
	}
	if w.sess.step != StepVerify {
		w.mu.Unlock()
		return ErrInvalidTransition
	}
	img, classID := *w.sess.image, w.sess.classID
	ctx, gen := w.begin(ctx, BusyProcessing)
	w.mu.Unlock()

	if w.opts.RecognitionTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.opts.RecognitionTimeout)
		defer cancel()
	}
	cands, err := w.deps.Recognizer.Recognize(ctx, img, classID)

	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.end(gen) {
		return ErrStaleResult
	}
	if err != nil {
		w.log.Error(fmt.Sprintf("attendance.Process(class=%d): %v", classID, err), err)
		w.setNotice(noticeRecognition)
		w.notify()
		return &RecognitionError{Err: err}
	}

	w.sess.results = ClassifyAll(cands)
	w.sess.step = StepResults
	w.sess.notice = ""
	w.notify()
	return nil
}

// Reset starts over with an empty session. It is accepted from any step while no operation is running.
func (w *Workflow) Reset() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.checkIdle(); err != nil {
		return err
	}
	w.reset(nil)
	w.notify()
	return nil
}

// reset must be called with w.mu held.
func (w *Workflow) reset(rcpt *Receipt) {
	w.camera.release()
	w.sess = session{
		id:          newIDFunc(),
		generation:  w.sess.generation + 1,
		step:        StepCapture,
		lastReceipt: rcpt,
	}
}

// Submit delivers the reviewed results to the attendance sink, then starts over.
func (w *Workflow) Submit(ctx context.Context) (Receipt, error) {
	w.mu.Lock()
	if err := w.checkIdle(); err != nil {
		w.mu.Unlock()
		return Receipt{}, err
	}
	if w.sess.step != StepResults {
		w.mu.Unlock()
		return Receipt{}, ErrInvalidTransition
	}
	sub := Submission{
		SessionID:   w.sess.id,
		ClassID:     w.sess.classID,
		Operator:    w.op,
		Records:     append([]RecognitionRecord(nil), w.sess.results...),
		SubmittedAt: NowFunc().UTC(),
	}
	ctx, gen := w.begin(ctx, BusySubmitting)
	w.mu.Unlock()

	rcpt, err := w.deps.Sink.Submit(ctx, sub)

	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.end(gen) {
		// the records were delivered anyway
		if err == nil {
			return rcpt, ErrStaleResult
		}
		return Receipt{}, ErrStaleResult
	}
	if err != nil {
		w.log.Error(fmt.Sprintf("attendance.Submit(session=%s): %v", sub.SessionID, err), err)
		w.setNotice(noticeSubmission)
		w.notify()
		return Receipt{}, &SubmissionError{Err: err}
	}

	w.sess.step = StepSubmitted
	w.sess.lastReceipt = &rcpt
	w.notify()

	w.reset(&rcpt)
	w.notify()
	return rcpt, nil
}

// SubmitManual records a single student directly, outside of the capture flow.
func (w *Workflow) SubmitManual(ctx context.Context, studentID string, classID int) (Receipt, error) {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return Receipt{}, ErrSessionClosed
	}
	if !w.op.Caps.CanEnterManually {
		w.mu.Unlock()
		return Receipt{}, ErrNotPermitted
	}
	w.lastActivity = NowFunc()
	w.mu.Unlock()

	entry := ManualEntry{StudentID: core.CleanString(studentID), ClassID: classID, Operator: w.op}
	if err := core.Validate.Struct(entry); err != nil {
		return Receipt{}, err
	}
	if err := w.checkClass(ctx, classID); err != nil {
		return Receipt{}, err
	}
	rcpt, err := w.deps.Sink.SubmitManual(ctx, entry)
	if err != nil {
		return Receipt{}, &SubmissionError{Err: err}
	}
	return rcpt, nil
}

// Close tears the session down: the camera is released, any running operation is cancelled
// and its result discarded. Further calls fail with ErrSessionClosed.
func (w *Workflow) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	w.camera.release()
	if w.cancel != nil {
		w.cancel()
		w.cancel = nil
	}
	w.busy = BusyNone
	w.sess.generation++
	w.closed = true
	w.notify()
	for ch := range w.subs {
		delete(w.subs, ch)
		close(ch)
	}
}

func (w *Workflow) IsClosed() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closed
}

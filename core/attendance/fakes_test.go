package attendance

import (
	"context"
	"errors"
	"image"
	"image/color"
	"io"
	"sync"
	"time"

	"github.com/trezcool/rollcall/core/user"
)

var (
	teacherOp = OperatorFromUser(user.User{ID: 1, Name: "John Smith", Email: "teacher@example.com", Roles: []string{user.RoleTeacher}})
	studentOp = OperatorFromUser(user.User{ID: 2, Name: "John Doe", Email: "student@example.com", StudentID: "ST1001", Roles: []string{user.RoleStudent}})

	mockCandidates = []Candidate{
		{Identity: Identity{Name: "John Doe", StudentID: "ST1001"}, Confidence: 0.95},
		{Identity: Identity{Name: "Jane Smith", StudentID: "ST1002"}, Confidence: 0.98},
		{Identity: Identity{Name: "Bob Johnson", StudentID: "ST1003"}, Confidence: 0.72},
		{Identity: Identity{Name: "Alice Brown", StudentID: "ST1004"}, Confidence: 0.45},
		{Identity: Identity{Name: "Charlie Wilson", StudentID: "ST1005"}, Confidence: 0.88},
	}

	errBoom = errors.New("boom")
)

type fakeStream struct {
	frame image.Image
}

func (s *fakeStream) CurrentFrame() (image.Image, error) {
	if s.frame == nil {
		return nil, errors.New("not ready")
	}
	return s.frame, nil
}

type fakeCamera struct {
	mu       sync.Mutex
	err      error
	noFrame  bool
	gate     chan struct{} // when set, Acquire waits for it (or ctx)
	acquired int
	released int
}

func (c *fakeCamera) Acquire(ctx context.Context, cons Constraints) (Stream, error) {
	if c.gate != nil {
		select {
		case <-c.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return nil, c.err
	}
	c.acquired++
	if c.noFrame {
		return &fakeStream{}, nil
	}
	frame := image.NewRGBA(image.Rect(0, 0, cons.Width, cons.Height))
	frame.Set(1, 1, color.White)
	return &fakeStream{frame: frame}, nil
}

func (c *fakeCamera) Release(Stream) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.released++
}

func (c *fakeCamera) live() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.acquired - c.released
}

type fakeImages struct {
	gate chan struct{}
}

func (fakeImages) FromFrame(frame image.Image) (Image, error) {
	b := frame.Bounds()
	return Image{ContentType: "image/jpeg", Data: []byte("frame"), Width: b.Dx(), Height: b.Dy()}, nil
}

func (f fakeImages) FromFile(ctx context.Context, name string, r io.Reader) (Image, error) {
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return Image{}, ctx.Err()
		}
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return Image{}, err
	}
	if string(data) != "png" {
		return Image{}, ErrDecode
	}
	return Image{ContentType: "image/png", Data: data, Width: 10, Height: 10}, nil
}

type fakeClasses struct {
	err error
}

func (c fakeClasses) ListClasses(context.Context) ([]Class, error) {
	if c.err != nil {
		return nil, c.err
	}
	return []Class{
		{ID: 1, Name: "Web Development", Code: "CS101"},
		{ID: 2, Name: "Database Systems", Code: "CS202"},
		{ID: 3, Name: "Machine Learning", Code: "CS301"},
		{ID: 4, Name: "Computer Networks", Code: "CS401"},
	}, nil
}

type fakeRecognizer struct {
	mu    sync.Mutex
	cands []Candidate
	err   error
	gate  chan struct{}
	calls int
	last  int // classID
}

func (r *fakeRecognizer) Recognize(ctx context.Context, img Image, classID int) ([]Candidate, error) {
	r.mu.Lock()
	r.calls++
	r.last = classID
	gate := r.gate
	r.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if r.err != nil {
		return nil, r.err
	}
	return r.cands, nil
}

func (r *fakeRecognizer) callCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

type fakeSink struct {
	mu          sync.Mutex
	err         error
	submissions []Submission
	manual      []ManualEntry
}

func (s *fakeSink) Submit(_ context.Context, sub Submission) (Receipt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return Receipt{}, s.err
	}
	s.submissions = append(s.submissions, sub)
	return Receipt{ID: "rcpt-1", SessionID: sub.SessionID, ClassID: sub.ClassID, Count: len(sub.Records), Message: SubmittedMessage, ReceivedAt: time.Now()}, nil
}

func (s *fakeSink) SubmitManual(_ context.Context, entry ManualEntry) (Receipt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return Receipt{}, s.err
	}
	s.manual = append(s.manual, entry)
	return Receipt{ID: "rcpt-m", ClassID: entry.ClassID, Count: 1, Message: SubmittedMessage}, nil
}

type fixture struct {
	camera     *fakeCamera
	images     *fakeImages
	recognizer *fakeRecognizer
	sink       *fakeSink
	classes    *fakeClasses
}

func newFixture() *fixture {
	return &fixture{
		camera:     &fakeCamera{},
		images:     &fakeImages{},
		recognizer: &fakeRecognizer{cands: mockCandidates},
		sink:       &fakeSink{},
		classes:    &fakeClasses{},
	}
}

func (f *fixture) deps() Deps {
	return Deps{
		Camera:     f.camera,
		Images:     f.images,
		Classes:    f.classes,
		Recognizer: f.recognizer,
		Sink:       f.sink,
	}
}

func (f *fixture) workflow(op Operator) *Workflow {
	return NewWorkflow(op, f.deps(), Options{})
}

// Package camera provides camera sources for capture sessions.
package camera

import (
	"context"
	"image"
	"image/color"
	"sync"
	"time"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"

	"github.com/trezcool/rollcall/core"
	"github.com/trezcool/rollcall/core/attendance"
)

var (
	ErrPermissionDenied = errors.New("camera permission denied")
	errWarmingUp        = errors.New("camera is warming up")
)

var nowFunc = time.Now // mockable

// VirtualSource is a synthetic camera. It serves generated frames once the stream has warmed up.
type VirtualSource struct {
	enabled bool
	width   int
	height  int
	warmup  time.Duration

	mu   sync.Mutex
	live map[*virtualStream]struct{}
}

var _ attendance.CameraSource = (*VirtualSource)(nil)

func NewVirtualSource(conf core.AttendanceConfig) *VirtualSource {
	return &VirtualSource{
		enabled: conf.CameraEnabled,
		width:   conf.CameraWidth,
		height:  conf.CameraHeight,
		warmup:  conf.CameraWarmup,
		live:    make(map[*virtualStream]struct{}),
	}
}

func (src *VirtualSource) Acquire(ctx context.Context, c attendance.Constraints) (attendance.Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !src.enabled {
		return nil, ErrPermissionDenied
	}

	w, h := c.Width, c.Height
	if w <= 0 || h <= 0 {
		w, h = src.width, src.height
	}
	if w <= 0 || h <= 0 {
		return nil, errors.Errorf("camera: invalid constraints %dx%d", w, h)
	}

	s := &virtualStream{
		width:   w,
		height:  h,
		mirror:  c.FacingMode == "user",
		readyAt: nowFunc().Add(src.warmup),
	}
	src.mu.Lock()
	src.live[s] = struct{}{}
	src.mu.Unlock()
	return s, nil
}

// Release stops a stream. Releasing twice, or releasing a foreign stream, does nothing.
func (src *VirtualSource) Release(s attendance.Stream) {
	vs, ok := s.(*virtualStream)
	if !ok {
		return
	}
	src.mu.Lock()
	delete(src.live, vs)
	src.mu.Unlock()

	vs.mu.Lock()
	vs.stopped = true
	vs.mu.Unlock()
}

// Live returns the number of streams not yet released.
func (src *VirtualSource) Live() int {
	src.mu.Lock()
	defer src.mu.Unlock()
	return len(src.live)
}

type virtualStream struct {
	width   int
	height  int
	mirror  bool
	readyAt time.Time

	mu      sync.Mutex
	stopped bool
}

func (s *virtualStream) CurrentFrame() (image.Image, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return nil, attendance.ErrCameraInactive
	}
	now := nowFunc()
	if now.Before(s.readyAt) {
		return nil, errWarmingUp
	}
	return s.render(now), nil
}

// render draws a gradient with a bar that sweeps across the frame once per second.
func (s *virtualStream) render(now time.Time) image.Image {
	img := imaging.New(s.width, s.height, color.NRGBA{A: 255})
	barX := int(int64(now.Nanosecond()) * int64(s.width) / int64(time.Second))
	for y := 0; y < s.height; y++ {
		for x := 0; x < s.width; x++ {
			c := color.NRGBA{
				R: uint8(x * 255 / s.width),
				G: uint8(y * 255 / s.height),
				B: 128,
				A: 255,
			}
			if x >= barX && x < barX+s.width/32+1 {
				c = color.NRGBA{R: 255, G: 255, B: 255, A: 255}
			}
			img.SetNRGBA(x, y, c)
		}
	}
	if s.mirror {
		return imaging.FlipH(img)
	}
	return img
}

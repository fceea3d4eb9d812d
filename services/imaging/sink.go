// Package imagingsvc turns camera frames and uploaded photos into encoded still images.
package imagingsvc

import (
	"bytes"
	"context"
	"image"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
	"golang.org/x/image/draw"

	"github.com/trezcool/rollcall/core"
	"github.com/trezcool/rollcall/core/attendance"
)

const outputContentType = "image/jpeg"

type Sink struct {
	maxSize int64
	maxW    int
	maxH    int
	quality int
}

var _ attendance.ImageSink = (*Sink)(nil)

func NewSink(conf core.AttendanceConfig) *Sink {
	quality := conf.JPEGQuality
	if quality <= 0 || quality > 100 {
		quality = 90
	}
	return &Sink{
		maxSize: conf.MaxUploadSize,
		maxW:    conf.MaxImageWidth,
		maxH:    conf.MaxImageHeight,
		quality: quality,
	}
}

// FromFrame rasterizes a camera frame at its native size.
func (s *Sink) FromFrame(frame image.Image) (attendance.Image, error) {
	if frame == nil || frame.Bounds().Empty() {
		return attendance.Image{}, attendance.ErrNoFrameAvailable
	}
	b := frame.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), frame, b.Min, draw.Src)
	return s.encode(s.fit(dst))
}

// FromFile decodes an uploaded photo. Anything that is not a readable image is an attendance.ErrDecode.
func (s *Sink) FromFile(ctx context.Context, name string, r io.Reader) (attendance.Image, error) {
	if r == nil {
		return attendance.Image{}, attendance.ErrNoFile
	}
	if s.maxSize > 0 {
		r = io.LimitReader(r, s.maxSize+1)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return attendance.Image{}, errors.Wrapf(attendance.ErrDecode, "reading %s: %v", name, err)
	}
	if s.maxSize > 0 && int64(len(data)) > s.maxSize {
		return attendance.Image{}, errors.Wrapf(attendance.ErrDecode, "%s is larger than %d bytes", name, s.maxSize)
	}
	if err := ctx.Err(); err != nil {
		return attendance.Image{}, err
	}

	img, err := decode(data, name)
	if err != nil {
		return attendance.Image{}, errors.Wrapf(attendance.ErrDecode, "decoding %s: %v", name, err)
	}
	return s.encode(s.fit(img))
}

func decode(data []byte, name string) (image.Image, error) {
	if len(data) == 0 {
		return nil, errors.New("empty file")
	}
	head := data
	if len(head) > 512 {
		head = head[:512]
	}
	ct := http.DetectContentType(head)
	if strings.Contains(ct, "webp") || (ct == "application/octet-stream" && strings.EqualFold(filepath.Ext(name), ".webp")) {
		return webp.Decode(bytes.NewReader(data))
	}
	return imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
}

// fit downscales img to the configured bounds, keeping its aspect ratio.
func (s *Sink) fit(img image.Image) image.Image {
	if s.maxW <= 0 || s.maxH <= 0 {
		return img
	}
	b := img.Bounds()
	if b.Dx() <= s.maxW && b.Dy() <= s.maxH {
		return img
	}
	return imaging.Fit(img, s.maxW, s.maxH, imaging.Lanczos)
}

func (s *Sink) encode(img image.Image) (attendance.Image, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(s.quality)); err != nil {
		return attendance.Image{}, errors.Wrap(err, "encoding jpeg")
	}
	b := img.Bounds()
	return attendance.Image{
		ContentType: outputContentType,
		Data:        buf.Bytes(),
		Width:       b.Dx(),
		Height:      b.Dy(),
	}, nil
}

// Package recognition provides face recognition backends for capture sessions.
package recognition

import (
	"context"
	"io/fs"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/trezcool/rollcall/core/attendance"
)

var ErrEmptyImage = errors.New("recognition: empty image")

// Mock answers every request with the same candidates after a fixed delay.
type Mock struct {
	delay      time.Duration
	candidates []attendance.Candidate
}

var _ attendance.Recognizer = (*Mock)(nil)

func NewMock(delay time.Duration, candidates []attendance.Candidate) *Mock {
	return &Mock{delay: delay, candidates: candidates}
}

func (m *Mock) Recognize(ctx context.Context, img attendance.Image, classID int) ([]attendance.Candidate, error) {
	if len(img.Data) == 0 {
		return nil, ErrEmptyImage
	}
	if m.delay > 0 {
		timer := time.NewTimer(m.delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
		}
	} else if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := make([]attendance.Candidate, len(m.candidates))
	copy(out, m.candidates)
	return out, nil
}

// LoadCandidates reads the canned candidates of the mock from a YAML file.
func LoadCandidates(fsys fs.FS, path string) ([]attendance.Candidate, error) {
	data, err := fs.ReadFile(fsys, path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading candidates %s", path)
	}
	var doc struct {
		Candidates []attendance.Candidate `yaml:"candidates"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrapf(err, "decoding candidates %s", path)
	}
	return doc.Candidates, nil
}

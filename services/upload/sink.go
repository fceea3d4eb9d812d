// Package upload delivers attendance records to a remote attendance service.
package upload

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sendgrid/rest"

	"github.com/trezcool/rollcall/core/attendance"
)

type (
	submissionPayload struct {
		SessionID   string                         `json:"session_id"`
		ClassID     int                            `json:"class_id"`
		RecordedBy  int                            `json:"recorded_by"`
		Records     []attendance.RecognitionRecord `json:"records"`
		SubmittedAt time.Time                      `json:"submitted_at"`
	}

	manualPayload struct {
		StudentID  string `json:"student_id"`
		ClassID    int    `json:"class_id"`
		RecordedBy int    `json:"recorded_by"`
	}
)

// Sink posts submissions to `{baseURL}/submissions` and manual entries to `{baseURL}/manual-entries`.
type Sink struct {
	baseURL string
	rest    *rest.Client
}

var _ attendance.Sink = (*Sink)(nil)

func NewSink(baseURL string, timeout time.Duration) *Sink {
	return &Sink{
		baseURL: strings.TrimRight(baseURL, "/"),
		rest:    &rest.Client{HTTPClient: &http.Client{Timeout: timeout}},
	}
}

func (s *Sink) Submit(ctx context.Context, sub attendance.Submission) (attendance.Receipt, error) {
	records := sub.Records
	if records == nil {
		records = []attendance.RecognitionRecord{}
	}
	return s.post(ctx, "/submissions", submissionPayload{
		SessionID:   sub.SessionID,
		ClassID:     sub.ClassID,
		RecordedBy:  sub.Operator.UserID,
		Records:     records,
		SubmittedAt: sub.SubmittedAt.UTC(),
	})
}

func (s *Sink) SubmitManual(ctx context.Context, entry attendance.ManualEntry) (attendance.Receipt, error) {
	return s.post(ctx, "/manual-entries", manualPayload{
		StudentID:  entry.StudentID,
		ClassID:    entry.ClassID,
		RecordedBy: entry.Operator.UserID,
	})
}

func (s *Sink) post(ctx context.Context, path string, payload interface{}) (attendance.Receipt, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return attendance.Receipt{}, errors.Wrap(err, "encoding attendance payload")
	}
	resp, err := s.rest.SendWithContext(ctx, rest.Request{
		Method:  rest.Post,
		BaseURL: s.baseURL + path,
		Headers: map[string]string{
			"Content-Type": "application/json",
			"Accept":       "application/json",
		},
		Body: body,
	})
	if err != nil {
		return attendance.Receipt{}, errors.Wrapf(err, "posting %s", path)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return attendance.Receipt{}, errors.Errorf("attendance service: %s: status %d: %s", path, resp.StatusCode, resp.Body)
	}

	var rcpt attendance.Receipt
	if err := json.Unmarshal([]byte(resp.Body), &rcpt); err != nil {
		return attendance.Receipt{}, errors.Wrapf(err, "decoding receipt of %s", path)
	}
	if rcpt.Message == "" {
		rcpt.Message = attendance.SubmittedMessage
	}
	return rcpt, nil
}

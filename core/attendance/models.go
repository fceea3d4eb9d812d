package attendance

import (
	"encoding/base64"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/rollcall/core/user"
)

// Recognition thresholds
const (
	MatchedThreshold       = 0.85
	LowConfidenceThreshold = 0.60
)

// SubmittedMessage is the confirmation shown once records reach the attendance sink.
const SubmittedMessage = "Attendance records have been submitted successfully!"

// Step is the position of a capture session in the roll-call flow.
type Step int

const (
	StepCapture Step = iota
	StepVerify
	StepResults
	StepSubmitted
)

var stepNames = [...]string{"capture", "verify", "results", "submitted"}

func (s Step) String() string {
	if s < 0 || int(s) >= len(stepNames) {
		return "unknown"
	}
	return stepNames[s]
}

func (s Step) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Step) UnmarshalText(b []byte) error {
	for i, name := range stepNames {
		if name == string(b) {
			*s = Step(i)
			return nil
		}
	}
	return errors.Errorf("unknown step %q", b)
}

type MatchStatus string

const (
	StatusMatched       MatchStatus = "matched"
	StatusLowConfidence MatchStatus = "low_confidence"
	StatusUnmatched     MatchStatus = "unmatched"
)

// Classify maps a confidence score to its match status.
func Classify(confidence float64) MatchStatus {
	switch {
	case confidence >= MatchedThreshold:
		return StatusMatched
	case confidence >= LowConfidenceThreshold:
		return StatusLowConfidence
	default:
		return StatusUnmatched
	}
}

// Flow is the screen variant an operator runs.
type Flow string

const (
	FlowTeacher Flow = "teacher"
	FlowStudent Flow = "student"
)

// Busy is the asynchronous operation a session is waiting on, if any.
type Busy string

const (
	BusyNone           Busy = ""
	BusyStartingCamera Busy = "starting_camera"
	BusyUploading      Busy = "uploading"
	BusyProcessing     Busy = "processing"
	BusySubmitting     Busy = "submitting"
)

type ImageSource string

const (
	SourceCamera ImageSource = "camera"
	SourceUpload ImageSource = "upload"
)

type (
	Identity struct {
		Name      string `json:"name" yaml:"name"`
		StudentID string `json:"student_id" yaml:"student_id"`
	}

	// Candidate is a raw answer of the recognition service.
	Candidate struct {
		Identity   `yaml:",inline"`
		Confidence float64 `json:"confidence" yaml:"confidence"`
	}

	RecognitionRecord struct {
		Identity
		Confidence float64     `json:"confidence"`
		Status     MatchStatus `json:"status"`
	}

	// Image is an encoded still image attached to a session.
	Image struct {
		ContentType string
		Data        []byte
		Width       int
		Height      int
		Source      ImageSource
	}

	ImageInfo struct {
		ContentType string      `json:"content_type"`
		Width       int         `json:"width"`
		Height      int         `json:"height"`
		Size        int         `json:"size"`
		Source      ImageSource `json:"source"`
		DataURL     string      `json:"data_url"`
	}

	Class struct {
		ID   int    `json:"id"`
		Name string `json:"name"`
		Code string `json:"code"`
	}

	// Operator is the user running a capture session.
	Operator struct {
		UserID int               `json:"user_id"`
		Name   string            `json:"name"`
		Email  string            `json:"email"`
		Flow   Flow              `json:"flow"`
		Caps   user.Capabilities `json:"capabilities"`
	}

	Summary struct {
		Total         int `json:"total"`
		Matched       int `json:"matched"`
		LowConfidence int `json:"low_confidence"`
		Unmatched     int `json:"unmatched"`
	}

	// Snapshot is a read-only copy of a capture session.
	Snapshot struct {
		ID           string              `json:"id"`
		Generation   uint64              `json:"generation"`
		Flow         Flow                `json:"flow"`
		Step         Step                `json:"step"`
		Image        *ImageInfo          `json:"image,omitempty"`
		ClassID      int                 `json:"class_id,omitempty"`
		Results      []RecognitionRecord `json:"results,omitempty"`
		Summary      *Summary            `json:"summary,omitempty"`
		CameraActive bool                `json:"camera_active"`
		Busy         Busy                `json:"busy,omitempty"`
		Notice       string              `json:"notice,omitempty"`
		LastReceipt  *Receipt            `json:"last_receipt,omitempty"`
		Capabilities user.Capabilities   `json:"capabilities"`
		Closed       bool                `json:"closed,omitempty"`
	}

	Submission struct {
		SessionID   string
		ClassID     int
		Operator    Operator
		Records     []RecognitionRecord
		SubmittedAt time.Time
	}

	ManualEntry struct {
		StudentID string   `json:"student_id" validate:"required,alphanum"`
		ClassID   int      `json:"class_id" validate:"required,min=1"`
		Operator  Operator `json:"-"`
	}

	Receipt struct {
		ID         string    `json:"id"`
		SessionID  string    `json:"session_id,omitempty"`
		ClassID    int       `json:"class_id"`
		Count      int       `json:"count"`
		Message    string    `json:"message"`
		ReceivedAt time.Time `json:"received_at"`
	}

	// Record is a single stored attendance line.
	Record struct {
		ID         string      `json:"id"`
		SessionID  string      `json:"session_id,omitempty"`
		ClassID    int         `json:"class_id"`
		StudentID  string      `json:"student_id"`
		Name       string      `json:"name,omitempty"`
		Confidence float64     `json:"confidence"`
		Status     MatchStatus `json:"status"`
		Manual     bool        `json:"manual"`
		RecordedBy int         `json:"recorded_by"`
		RecordedAt time.Time   `json:"recorded_at"` // UTC
	}

	RecordFilter struct {
		ClassID   int       `query:"class_id"`
		StudentID string    `query:"student_id"`
		Since     time.Time `query:"-"` // zero: no lower bound
	}
)

// NewRecognitionRecord classifies a candidate.
func NewRecognitionRecord(c Candidate) RecognitionRecord {
	return RecognitionRecord{Identity: c.Identity, Confidence: c.Confidence, Status: Classify(c.Confidence)}
}

// ClassifyAll classifies candidates in service order.
func ClassifyAll(cands []Candidate) []RecognitionRecord {
	records := make([]RecognitionRecord, 0, len(cands))
	for _, c := range cands {
		records = append(records, NewRecognitionRecord(c))
	}
	return records
}

func Summarize(records []RecognitionRecord) Summary {
	sum := Summary{Total: len(records)}
	for _, r := range records {
		switch r.Status {
		case StatusMatched:
			sum.Matched++
		case StatusLowConfidence:
			sum.LowConfidence++
		default:
			sum.Unmatched++
		}
	}
	return sum
}

// DataURL returns the image as a base64 `data:` URL, the format the recognition service expects.
func (img Image) DataURL() string {
	if len(img.Data) == 0 {
		return ""
	}
	return "data:" + img.ContentType + ";base64," + base64.StdEncoding.EncodeToString(img.Data)
}

func (img Image) Info() *ImageInfo {
	return &ImageInfo{
		ContentType: img.ContentType,
		Width:       img.Width,
		Height:      img.Height,
		Size:        len(img.Data),
		Source:      img.Source,
		DataURL:     img.DataURL(),
	}
}

// OperatorFromUser derives the operator, and so the screen variant, from the user's roles.
func OperatorFromUser(usr user.User) Operator {
	flow := FlowStudent
	if usr.IsStaff() {
		flow = FlowTeacher
	}
	return Operator{
		UserID: usr.ID,
		Name:   usr.Name,
		Email:  usr.Email,
		Flow:   flow,
		Caps:   usr.Capabilities(),
	}
}

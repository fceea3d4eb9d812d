package student

import (
	"strings"
	"time"

	"github.com/trezcool/rollcall/core"
)

// Statuses
const (
	StatusActive   = "active"
	StatusInactive = "inactive"
)

type Student struct {
	ID        int       `json:"id"`
	Name      string    `json:"name" yaml:"name"`
	StudentID string    `json:"student_id" yaml:"student_id"`
	Email     string    `json:"email" yaml:"email"`
	ClassID   int       `json:"class_id" yaml:"class_id"`
	PhotoURL  string    `json:"photo_url,omitempty" yaml:"photo_url"`
	Status    string    `json:"status" yaml:"status"`
	CreatedAt time.Time `json:"created_at" yaml:"-"` // UTC
	UpdatedAt time.Time `json:"updated_at" yaml:"-"` // UTC
}

// NewStudent contains information needed to enrol a new Student.
type NewStudent struct {
	Name      string `json:"name" validate:"required"`
	StudentID string `json:"student_id" validate:"required,alphanum"`
	Email     string `json:"email" validate:"required,email"`
	ClassID   int    `json:"class_id" validate:"required,min=1"`
	PhotoURL  string `json:"photo_url" validate:"omitempty,url"`
	Status    string `json:"status" validate:"omitempty,oneof=active inactive"`
}

func (ns *NewStudent) Validate(svc *Service) error {
	ns.Name = core.CleanString(ns.Name)
	ns.StudentID = strings.ToUpper(core.CleanString(ns.StudentID))
	ns.Email = core.CleanString(ns.Email, true /* lower */)
	ns.PhotoURL = core.CleanString(ns.PhotoURL)
	ns.Status = core.CleanString(ns.Status, true /* lower */)
	if ns.Status == "" {
		ns.Status = StatusActive
	}

	if err := core.Validate.Struct(ns); err != nil {
		return err
	}
	if err := svc.checkClass(ns.ClassID); err != nil {
		return err
	}
	return svc.checkUniqueness(ns.StudentID, ns.Email)
}

// UpdateStudent defines what information may be provided to modify an existing Student.
// Empty fields keep their current value.
type UpdateStudent struct {
	Name      string `json:"name"`
	StudentID string `json:"student_id" validate:"omitempty,alphanum"`
	Email     string `json:"email" validate:"omitempty,email"`
	ClassID   int    `json:"class_id" validate:"omitempty,min=1"`
	PhotoURL  string `json:"photo_url" validate:"omitempty,url"`
	Status    string `json:"status" validate:"omitempty,oneof=active inactive"`
}

func (us *UpdateStudent) Validate(orig Student, svc *Service) error {
	if name := core.CleanString(us.Name); name != "" {
		us.Name = name
	} else {
		us.Name = orig.Name
	}
	if sid := strings.ToUpper(core.CleanString(us.StudentID)); sid != "" {
		us.StudentID = sid
	} else {
		us.StudentID = orig.StudentID
	}
	if email := core.CleanString(us.Email, true /* lower */); email != "" {
		us.Email = email
	} else {
		us.Email = orig.Email
	}
	if url := core.CleanString(us.PhotoURL); url != "" {
		us.PhotoURL = url
	} else {
		us.PhotoURL = orig.PhotoURL
	}
	if status := core.CleanString(us.Status, true /* lower */); status != "" {
		us.Status = status
	} else {
		us.Status = orig.Status
	}
	if us.ClassID == 0 {
		us.ClassID = orig.ClassID
	}

	if err := core.Validate.Struct(us); err != nil {
		return err
	}
	if us.ClassID != orig.ClassID {
		if err := svc.checkClass(us.ClassID); err != nil {
			return err
		}
	}
	return svc.checkUniqueness(us.StudentID, us.Email, orig)
}

type QueryFilter struct {
	// Search does a case-insensitive match on one of Student.Name, Student.StudentID or Student.Email.
	Search  string `query:"search"`
	ClassID int    `query:"class_id"`
	Status  string `query:"status"`
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	qf.Status = core.CleanString(qf.Status, true /* lower */)
	if qf.Status == "all" {
		qf.Status = ""
	}
}

package class

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

type Class struct {
	ID            int       `json:"id" yaml:"id"`
	Name          string    `json:"name" yaml:"name"`
	Code          string    `json:"code" yaml:"code"`
	Schedule      string    `json:"schedule" yaml:"schedule"`
	Room          string    `json:"room" yaml:"room"`
	Instructor    string    `json:"instructor" yaml:"instructor"`
	TotalStudents int       `json:"total_students" yaml:"total_students"`
	Status        string    `json:"status" yaml:"status"`
	CreatedAt     time.Time `json:"created_at" yaml:"-"` // UTC
	UpdatedAt     time.Time `json:"updated_at" yaml:"-"` // UTC
}

func (c Class) IsActive() bool { return c.Status == StatusActive }

// NewClass contains information needed to create a new Class.
type NewClass struct {
	Name          string `json:"name" validate:"required"`
	Code          string `json:"code" validate:"required,alphanum,max=16"`
	Schedule      string `json:"schedule"`
	Room          string `json:"room"`
	Instructor    string `json:"instructor"`
	TotalStudents int    `json:"total_students" validate:"min=0"`
	Status        string `json:"status" validate:"omitempty,oneof=active inactive"`
}

func (nc *NewClass) Validate(svc *Service) error {
	nc.Name = core.CleanString(nc.Name)
	nc.Code = strings.ToUpper(core.CleanString(nc.Code))
	nc.Schedule = core.CleanString(nc.Schedule)
	nc.Room = core.CleanString(nc.Room)
	nc.Instructor = core.CleanString(nc.Instructor)
	nc.Status = core.CleanString(nc.Status, true /* lower */)
	if nc.Status == "" {
		nc.Status = StatusActive
	}

	if err := core.Validate.Struct(nc); err != nil {
		return err
	}
	return svc.checkUniqueness(nc.Code)
}

// UpdateClass defines what information may be provided to modify an existing Class.
// Empty fields keep their current value.
type UpdateClass struct {
	Name          string `json:"name"`
	Code          string `json:"code" validate:"omitempty,alphanum,max=16"`
	Schedule      string `json:"schedule"`
	Room          string `json:"room"`
	Instructor    string `json:"instructor"`
	TotalStudents *int   `json:"total_students" validate:"omitempty,min=0"`
	Status        string `json:"status" validate:"omitempty,oneof=active inactive"`
}

func (uc *UpdateClass) Validate(orig Class, svc *Service) error {
	uc.Name = orDefault(core.CleanString(uc.Name), orig.Name)
	uc.Code = orDefault(strings.ToUpper(core.CleanString(uc.Code)), orig.Code)
	uc.Schedule = orDefault(core.CleanString(uc.Schedule), orig.Schedule)
	uc.Room = orDefault(core.CleanString(uc.Room), orig.Room)
	uc.Instructor = orDefault(core.CleanString(uc.Instructor), orig.Instructor)
	uc.Status = orDefault(core.CleanString(uc.Status, true /* lower */), orig.Status)
	if uc.TotalStudents == nil {
		total := orig.TotalStudents
		uc.TotalStudents = &total
	}

	if err := core.Validate.Struct(uc); err != nil {
		return err
	}
	return svc.checkUniqueness(uc.Code, orig)
}

func orDefault(val, def string) string {
	if val == "" {
		return def
	}
	return val
}

type QueryFilter struct {
	// Search does a case-insensitive match on one of Class.Name, Class.Code or Class.Instructor.
	Search string `query:"search"`
	Status string `query:"status"`
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	qf.Status = core.CleanString(qf.Status, true /* lower */)
	if qf.Status == "all" {
		qf.Status = ""
	}
}

package class

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/rollcall/core"
	"github.com/trezcool/rollcall/core/attendance"
)

var (
	// errors
	ErrNotFound   = errors.New("class not found")
	ErrCodeExists = errors.New("a class with this code already exists")

	NowFunc = time.Now // mockable
)

type (
	Repository interface {
		CheckCodeUniqueness(code string, excludedClasses ...Class) error
		CreateClass(class Class) (Class, error)
		QueryAllClasses() ([]Class, error)
		GetClassByID(id int) (Class, error)
		// FilterClasses applies AND operation on available QueryFilter fields.
		FilterClasses(filter QueryFilter) ([]Class, error)
		UpdateClass(class Class) (Class, error)
		DeleteClassesByID(ids ...int) error
	}

	Service struct {
		repo Repository
	}
)

var _ attendance.ClassDirectory = (*Service)(nil)

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (svc *Service) checkUniqueness(code string, excl ...Class) error {
	if err := svc.repo.CheckCodeUniqueness(code, excl...); err != nil {
		if err == ErrCodeExists {
			return core.NewValidationError(err, core.FieldError{Field: "code", Error: err.Error()})
		}
		return err
	}
	return nil
}

func (svc *Service) Create(nc NewClass) (Class, error) {
	now := NowFunc().UTC()
	return svc.repo.CreateClass(Class{
		Name:          nc.Name,
		Code:          nc.Code,
		Schedule:      nc.Schedule,
		Room:          nc.Room,
		Instructor:    nc.Instructor,
		TotalStudents: nc.TotalStudents,
		Status:        nc.Status,
		CreatedAt:     now,
		UpdatedAt:     now,
	})
}

func (svc *Service) QueryAll() ([]Class, error) {
	return svc.repo.QueryAllClasses()
}

func (svc *Service) GetByID(id int) (Class, error) {
	return svc.repo.GetClassByID(id)
}

// Filter returns the classes matching filter, sorted by orderings (id by default).
func (svc *Service) Filter(filter QueryFilter, orderings ...core.Ordering) ([]Class, error) {
	filter.Clean()
	classes, err := svc.repo.FilterClasses(filter)
	if err != nil {
		return nil, err
	}
	if len(orderings) == 0 {
		orderings = []core.Ordering{{Field: "id", Ascending: true}}
	}
	Sort(classes, orderings)
	return classes, nil
}

func (svc *Service) Update(id int, uc UpdateClass) (Class, error) {
	cls := Class{
		ID:         id,
		Name:       uc.Name,
		Code:       uc.Code,
		Schedule:   uc.Schedule,
		Room:       uc.Room,
		Instructor: uc.Instructor,
		Status:     uc.Status,
		UpdatedAt:  NowFunc().UTC(),
	}
	if uc.TotalStudents != nil {
		cls.TotalStudents = *uc.TotalStudents
	}
	return svc.repo.UpdateClass(cls)
}

func (svc *Service) Delete(ids ...int) error {
	return svc.repo.DeleteClassesByID(ids...)
}

// ListClasses lists the classes attendance can be taken for.
func (svc *Service) ListClasses(_ context.Context) ([]attendance.Class, error) {
	classes, err := svc.Filter(QueryFilter{})
	if err != nil {
		return nil, errors.Wrap(err, "querying classes")
	}
	dir := make([]attendance.Class, 0, len(classes))
	for _, c := range classes {
		dir = append(dir, attendance.Class{ID: c.ID, Name: c.Name, Code: c.Code})
	}
	return dir, nil
}

// Sort stable sorts classes by the given orderings. Unknown fields are ignored.
func Sort(classes []Class, orderings []core.Ordering) {
	core.SortBy(len(classes), orderings,
		func(i, j int) { classes[i], classes[j] = classes[j], classes[i] },
		func(field string, i, j int) int {
			a, b := classes[i], classes[j]
			switch field {
			case "id":
				return a.ID - b.ID
			case "name":
				return strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name))
			case "code":
				return strings.Compare(a.Code, b.Code)
			case "instructor":
				return strings.Compare(strings.ToLower(a.Instructor), strings.ToLower(b.Instructor))
			case "total_students":
				return a.TotalStudents - b.TotalStudents
			case "created_at":
				return compareTime(a.CreatedAt, b.CreatedAt)
			}
			return 0
		},
	)
}

func compareTime(a, b time.Time) int {
	switch {
	case a.Before(b):
		return -1
	case a.After(b):
		return 1
	}
	return 0
}

package student

import (
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/rollcall/core"
	"github.com/trezcool/rollcall/core/class"
)

var (
	// errors
	ErrNotFound        = errors.New("student not found")
	ErrStudentIDExists = errors.New("a student with this student id already exists")
	ErrEmailExists     = errors.New("a student with this email already exists")
	errUnknownClass    = errors.New("class does not exist")

	NowFunc = time.Now // mockable
)

type (
	Repository interface {
		CheckUniqueness(studentID, email string, excludedStudents ...Student) error
		CreateStudent(student Student) (Student, error)
		QueryAllStudents() ([]Student, error)
		GetStudentByID(id int) (Student, error)
		GetStudentByStudentID(studentID string) (Student, error)
		// FilterStudents applies AND operation on available QueryFilter fields.
		FilterStudents(filter QueryFilter) ([]Student, error)
		UpdateStudent(student Student) (Student, error)
		DeleteStudentsByID(ids ...int) error
	}

	// ClassGetter is the part of class.Service students depend on.
	ClassGetter interface {
		GetByID(id int) (class.Class, error)
	}

	Service struct {
		repo    Repository
		classes ClassGetter
	}
)

func NewService(repo Repository, classes ClassGetter) *Service {
	return &Service{repo: repo, classes: classes}
}

func (svc *Service) checkUniqueness(studentID, email string, excl ...Student) error {
	if err := svc.repo.CheckUniqueness(studentID, email, excl...); err != nil {
		var field string
		switch err {
		case ErrStudentIDExists:
			field = "student_id"
		case ErrEmailExists:
			field = "email"
		default:
			return err
		}
		return core.NewValidationError(err, core.FieldError{Field: field, Error: err.Error()})
	}
	return nil
}

func (svc *Service) checkClass(classID int) error {
	if _, err := svc.classes.GetByID(classID); err != nil {
		if errors.Cause(err) == class.ErrNotFound {
			return core.NewValidationError(errUnknownClass, core.FieldError{Field: "class_id", Error: errUnknownClass.Error()})
		}
		return errors.Wrap(err, "getting class")
	}
	return nil
}

func (svc *Service) Create(ns NewStudent) (Student, error) {
	now := NowFunc().UTC()
	return svc.repo.CreateStudent(Student{
		Name:      ns.Name,
		StudentID: ns.StudentID,
		Email:     ns.Email,
		ClassID:   ns.ClassID,
		PhotoURL:  ns.PhotoURL,
		Status:    ns.Status,
		CreatedAt: now,
		UpdatedAt: now,
	})
}

func (svc *Service) QueryAll() ([]Student, error) {
	return svc.repo.QueryAllStudents()
}

func (svc *Service) GetByID(id int) (Student, error) {
	return svc.repo.GetStudentByID(id)
}

func (svc *Service) GetByStudentID(studentID string) (Student, error) {
	return svc.repo.GetStudentByStudentID(strings.ToUpper(core.CleanString(studentID)))
}

// Filter returns the students matching filter, sorted by orderings (id by default).
func (svc *Service) Filter(filter QueryFilter, orderings ...core.Ordering) ([]Student, error) {
	filter.Clean()
	students, err := svc.repo.FilterStudents(filter)
	if err != nil {
		return nil, err
	}
	if len(orderings) == 0 {
		orderings = []core.Ordering{{Field: "id", Ascending: true}}
	}
	core.SortBy(len(students), orderings,
		func(i, j int) { students[i], students[j] = students[j], students[i] },
		func(field string, i, j int) int {
			a, b := students[i], students[j]
			switch field {
			case "id":
				return a.ID - b.ID
			case "name":
				return strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name))
			case "student_id":
				return strings.Compare(a.StudentID, b.StudentID)
			case "email":
				return strings.Compare(a.Email, b.Email)
			case "class_id":
				return a.ClassID - b.ClassID
			}
			return 0
		},
	)
	return students, nil
}

func (svc *Service) Update(id int, us UpdateStudent) (Student, error) {
	return svc.repo.UpdateStudent(Student{
		ID:        id,
		Name:      us.Name,
		StudentID: us.StudentID,
		Email:     us.Email,
		ClassID:   us.ClassID,
		PhotoURL:  us.PhotoURL,
		Status:    us.Status,
		UpdatedAt: NowFunc().UTC(),
	})
}

func (svc *Service) Delete(ids ...int) error {
	return svc.repo.DeleteStudentsByID(ids...)
}

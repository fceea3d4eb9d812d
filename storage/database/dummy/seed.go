package dummydb

import (
	"io/fs"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/trezcool/rollcall/core/class"
	"github.com/trezcool/rollcall/core/student"
	"github.com/trezcool/rollcall/core/user"
)

type (
	userFixture struct {
		Name      string   `yaml:"name"`
		Email     string   `yaml:"email"`
		StudentID string   `yaml:"student_id"`
		Password  string   `yaml:"password"`
		Roles     []string `yaml:"roles"`
	}

	fixtures struct {
		Users    []userFixture     `yaml:"users"`
		Classes  []class.Class     `yaml:"classes"`
		Students []student.Student `yaml:"students"`
	}
)

// Seed loads the YAML fixtures at path into db.
func Seed(db *DB, fsys fs.FS, path string) error {
	data, err := fs.ReadFile(fsys, path)
	if err != nil {
		return errors.Wrapf(err, "reading fixtures %s", path)
	}
	var fx fixtures
	if err := yaml.Unmarshal(data, &fx); err != nil {
		return errors.Wrapf(err, "decoding fixtures %s", path)
	}

	now := nowFunc().UTC()

	usrRepo := NewUserRepository(db)
	for _, uf := range fx.Users {
		usr := user.User{
			Name:      uf.Name,
			Email:     uf.Email,
			StudentID: uf.StudentID,
			IsActive:  true,
			Roles:     uf.Roles,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := usr.SetPassword(uf.Password); err != nil {
			return errors.Wrapf(err, "hashing password of %s", uf.Email)
		}
		if _, err := usrRepo.CreateUser(usr); err != nil {
			return errors.Wrapf(err, "creating user %s", uf.Email)
		}
	}

	classRepo := NewClassRepository(db)
	for _, c := range fx.Classes {
		c.CreatedAt, c.UpdatedAt = now, now
		if _, err := classRepo.CreateClass(c); err != nil {
			return errors.Wrapf(err, "creating class %s", c.Code)
		}
	}

	studentRepo := NewStudentRepository(db)
	for _, s := range fx.Students {
		s.CreatedAt, s.UpdatedAt = now, now
		if _, err := studentRepo.CreateStudent(s); err != nil {
			return errors.Wrapf(err, "creating student %s", s.StudentID)
		}
	}
	return nil
}

package dummydb

import (
	"sort"

	"github.com/trezcool/rollcall/core"
	"github.com/trezcool/rollcall/core/class"
)

type classRepository struct {
	db *classTable
}

var _ class.Repository = (*classRepository)(nil) // interface compliance check

func NewClassRepository(db *DB) class.Repository {
	return &classRepository{db: db.class}
}

func (repo *classRepository) query() []class.Class {
	classes := make([]class.Class, 0, len(repo.db.table))
	for _, c := range repo.db.table {
		classes = append(classes, *c)
	}
	sort.Slice(classes, func(i, j int) bool { return classes[i].ID < classes[j].ID })
	return classes
}

func (repo *classRepository) CheckCodeUniqueness(code string, excludedClasses ...class.Class) error {
	repo.db.RLock()
	defer repo.db.RUnlock()

	excl := make([]int, 0, len(excludedClasses))
	for _, c := range excludedClasses {
		excl = append(excl, c.ID)
	}
	for _, c := range repo.db.table {
		if c.Code == code && !isExcluded(c.ID, excl) {
			return class.ErrCodeExists
		}
	}
	return nil
}

func (repo *classRepository) CreateClass(cls class.Class) (class.Class, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if cls.ID > 0 { // fixtures carry their own ids
		if _, ok := repo.db.table[cls.ID]; ok {
			return class.Class{}, class.ErrCodeExists
		}
		if cls.ID > repo.db.pk {
			repo.db.pk = cls.ID
		}
	} else {
		repo.db.pk++
		cls.ID = repo.db.pk
	}
	repo.db.table[cls.ID] = &cls
	return cls, nil
}

func (repo *classRepository) QueryAllClasses() ([]class.Class, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	return repo.query(), nil
}

func (repo *classRepository) GetClassByID(id int) (class.Class, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if c, ok := repo.db.table[id]; ok {
		return *c, nil
	}
	return class.Class{}, class.ErrNotFound
}

func (repo *classRepository) FilterClasses(filter class.QueryFilter) ([]class.Class, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var classes []class.Class
	for _, c := range repo.query() {
		if filter.Search != "" && !core.ContainsFold(filter.Search, c.Name, c.Code, c.Instructor) {
			continue
		}
		if filter.Status != "" && c.Status != filter.Status {
			continue
		}
		classes = append(classes, c)
	}
	return classes, nil
}

func (repo *classRepository) UpdateClass(cls class.Class) (class.Class, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	orig, ok := repo.db.table[cls.ID]
	if !ok {
		return class.Class{}, class.ErrNotFound
	}
	cls.CreatedAt = orig.CreatedAt
	repo.db.table[cls.ID] = &cls
	return cls, nil
}

func (repo *classRepository) DeleteClassesByID(ids ...int) error {
	repo.db.Lock()
	defer repo.db.Unlock()
	for _, id := range ids {
		delete(repo.db.table, id)
	}
	return nil
}

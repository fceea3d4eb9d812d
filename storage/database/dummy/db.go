package dummydb

import (
	"sync"

	"github.com/trezcool/rollcall/core/attendance"
	"github.com/trezcool/rollcall/core/class"
	"github.com/trezcool/rollcall/core/student"
	"github.com/trezcool/rollcall/core/user"
)

type (
	// DB is an in-memory database: its tables live as long as the process.
	DB struct {
		user       *userTable
		class      *classTable
		student    *studentTable
		attendance *attendanceTable
	}

	userTable struct {
		sync.RWMutex
		pk    int
		table map[int]*user.User
	}

	classTable struct {
		sync.RWMutex
		pk    int
		table map[int]*class.Class
	}

	studentTable struct {
		sync.RWMutex
		pk    int
		table map[int]*student.Student
	}

	attendanceTable struct {
		sync.RWMutex
		rows []attendance.Record
	}
)

func Open() *DB {
	return &DB{
		user:       &userTable{table: make(map[int]*user.User)},
		class:      &classTable{table: make(map[int]*class.Class)},
		student:    &studentTable{table: make(map[int]*student.Student)},
		attendance: &attendanceTable{},
	}
}

// Truncate empties every table. Used by tests.
func (db *DB) Truncate() {
	db.user.Lock()
	db.user.table = make(map[int]*user.User)
	db.user.pk = 0
	db.user.Unlock()

	db.class.Lock()
	db.class.table = make(map[int]*class.Class)
	db.class.pk = 0
	db.class.Unlock()

	db.student.Lock()
	db.student.table = make(map[int]*student.Student)
	db.student.pk = 0
	db.student.Unlock()

	db.attendance.Lock()
	db.attendance.rows = nil
	db.attendance.Unlock()
}

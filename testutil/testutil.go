// Package testutil holds helpers shared by the tests of several packages.
package testutil

import (
	"testing"
	"time"

	"github.com/trezcool/rollcall/core/user"
	appfs "github.com/trezcool/rollcall/fs"
	dummydb "github.com/trezcool/rollcall/storage/database/dummy"
)

// PrepareDB returns an in-memory database seeded with the demo fixtures.
func PrepareDB(t *testing.T) *dummydb.DB {
	t.Helper()
	db := dummydb.Open()
	if err := dummydb.Seed(db, appfs.FS, appfs.FixturesDir+"/seed.yaml"); err != nil {
		t.Fatalf("PrepareDB() failed: %v", err)
	}
	return db
}

// ResetDB empties db.
func ResetDB(t *testing.T, db *dummydb.DB) {
	t.Helper()
	db.Truncate()
}

func CreateUser(
	t *testing.T,
	repo user.Repository,
	name, email, pwd string,
	roles []string,
	isActive bool,
	createdAt ...time.Time,
) user.User {
	t.Helper()
	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	usr := user.User{
		Name:      name,
		Email:     email,
		Roles:     roles,
		IsActive:  isActive,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("CreateUser() failed: %v", err)
		}
	}
	usr, err := repo.CreateUser(usr)
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}

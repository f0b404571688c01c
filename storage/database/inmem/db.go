package inmemdb

import (
	"sync"

	"github.com/studywala/backend/core/plan"
	"github.com/studywala/backend/core/user"
)

// DB is a process-local database used in tests and local hacking.
type DB struct {
	user *userTable
	plan *planTable
}

type userTable struct {
	mutex sync.RWMutex
	table map[string]*user.User
}

type planTable struct {
	mutex sync.RWMutex
	table map[string]*plan.StudyPlan
}

func NewDB() *DB {
	return &DB{
		user: &userTable{table: make(map[string]*user.User)},
		plan: &planTable{table: make(map[string]*plan.StudyPlan)},
	}
}

package inmemdb

import (
	"github.com/google/uuid"

	"github.com/studywala/backend/core/user"
)

type userRepository struct {
	db *userTable
}

func NewUserRepository(db *DB) user.Repository {
	return &userRepository{db: db.user}
}

func (repo *userRepository) query() []user.User {
	users := make([]user.User, 0, len(repo.db.table))
	for _, u := range repo.db.table {
		users = append(users, *u)
	}
	return users
}

func (repo *userRepository) CheckUsernameUniqueness(username, email string, excludedUsers ...user.User) error {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	for _, usr := range repo.query() {
		if isExcluded(usr, excludedUsers) {
			continue
		}
		if username != "" && usr.Username == username {
			return user.ErrUsernameExists
		}
		if email != "" && usr.Email == email {
			return user.ErrEmailExists
		}
	}
	return nil
}

func (repo *userRepository) CreateUser(usr user.User) (user.User, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if usr.ID == "" {
		usr.ID = uuid.New().String()
	}
	repo.db.table[usr.ID] = &usr
	return usr, nil
}

func (repo *userRepository) GetUserByID(id string) (user.User, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if usr, ok := repo.db.table[id]; ok {
		return *usr, nil
	}
	return user.User{}, user.ErrNotFound
}

func (repo *userRepository) GetUserByUsername(username string) (user.User, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	for _, usr := range repo.query() {
		if usr.Username != "" && usr.Username == username {
			return usr, nil
		}
	}
	return user.User{}, user.ErrNotFound
}

func (repo *userRepository) GetUserByEmail(email string) (user.User, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	for _, usr := range repo.query() {
		if usr.Email != "" && usr.Email == email {
			return usr, nil
		}
	}
	return user.User{}, user.ErrNotFound
}

func (repo *userRepository) GetUserByUsernameOrEmail(username string) (user.User, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if username == "" {
		return user.User{}, user.ErrNotFound
	}
	for _, usr := range repo.query() {
		if (usr.Username == username) || (usr.Email == username) {
			return usr, nil
		}
	}
	return user.User{}, user.ErrNotFound
}

func (repo *userRepository) UpdateUser(usr user.User, isActive *bool) (user.User, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	// only save set fields
	origUsr, ok := repo.db.table[usr.ID]
	if !ok {
		return user.User{}, user.ErrNotFound
	}
	if usr.Name != "" {
		origUsr.Name = usr.Name
	}
	if usr.Username != "" {
		origUsr.Username = usr.Username
	}
	if usr.Email != "" {
		origUsr.Email = usr.Email
	}
	if usr.PasswordHash != nil {
		origUsr.PasswordHash = usr.PasswordHash
	}
	if !usr.LastLogin.IsZero() {
		origUsr.LastLogin = usr.LastLogin
	}
	if !usr.UpdatedAt.IsZero() {
		origUsr.UpdatedAt = usr.UpdatedAt
	}
	if isActive != nil {
		origUsr.IsActive = *isActive
	}

	repo.db.table[usr.ID] = origUsr
	return *origUsr, nil
}

func isExcluded(usr user.User, excludedUsers []user.User) bool {
	for _, excl := range excludedUsers {
		if usr.ID == excl.ID {
			return true
		}
	}
	return false
}

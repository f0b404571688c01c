package sqlxrepos

import (
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/studywala/backend/core/user"
)

type userRow struct {
	ID           string    `db:"id"`
	Name         string    `db:"name"`
	Username     string    `db:"username"`
	Email        string    `db:"email"`
	IsActive     bool      `db:"is_active"`
	PasswordHash []byte    `db:"password_hash"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
	LastLogin    time.Time `db:"last_login"`
}

func (row userRow) user() user.User {
	return user.User{
		ID:           row.ID,
		Name:         row.Name,
		Username:     row.Username,
		Email:        row.Email,
		IsActive:     row.IsActive,
		PasswordHash: row.PasswordHash,
		CreatedAt:    row.CreatedAt,
		UpdatedAt:    row.UpdatedAt,
		LastLogin:    row.LastLogin,
	}
}

type userRepository struct {
	db *sqlx.DB
}

func NewUserRepository(db *sql.DB) user.Repository {
	return &userRepository{db: sqlx.NewDb(db, "postgres")}
}

func (repo *userRepository) CheckUsernameUniqueness(username, email string, excludedUsers ...user.User) error {
	exclIDs := make([]string, 0, len(excludedUsers))
	for _, usr := range excludedUsers {
		exclIDs = append(exclIDs, usr.ID)
	}

	check := func(field, value string, sentinel error) error {
		if value == "" {
			return nil
		}
		query := "SELECT EXISTS (SELECT 1 FROM app_user WHERE " + field + " = ?"
		args := []interface{}{value}
		if len(exclIDs) > 0 {
			query += " AND id::text NOT IN (?)"
			args = append(args, exclIDs)
		}
		query += ")"

		q, qargs, err := sqlx.In(query, args...)
		if err != nil {
			return errors.Wrap(err, "building uniqueness query")
		}
		var exists bool
		if err = repo.db.Get(&exists, repo.db.Rebind(q), qargs...); err != nil {
			return errors.Wrap(err, "checking uniqueness")
		}
		if exists {
			return sentinel
		}
		return nil
	}

	if err := check("username", username, user.ErrUsernameExists); err != nil {
		return err
	}
	return check("email", email, user.ErrEmailExists)
}

func (repo *userRepository) CreateUser(usr user.User) (user.User, error) {
	const q = `
		INSERT INTO app_user (id, name, username, email, is_active, password_hash, created_at, updated_at, last_login)
		VALUES (:id, :name, :username, :email, :is_active, :password_hash, :created_at, :updated_at, :last_login)`

	row := userRow(usr)
	if _, err := repo.db.NamedExec(q, row); err != nil {
		return user.User{}, errors.Wrap(err, "inserting user")
	}
	return usr, nil
}

func (repo *userRepository) get(query string, args ...interface{}) (user.User, error) {
	var row userRow
	if err := repo.db.Get(&row, query, args...); err != nil {
		if err == sql.ErrNoRows {
			return user.User{}, user.ErrNotFound
		}
		return user.User{}, errors.Wrap(err, "fetching user")
	}
	return row.user(), nil
}

func (repo *userRepository) GetUserByID(id string) (user.User, error) {
	return repo.get(`SELECT * FROM app_user WHERE id = $1`, id)
}

func (repo *userRepository) GetUserByUsername(username string) (user.User, error) {
	return repo.get(`SELECT * FROM app_user WHERE username = $1 AND username <> ''`, username)
}

func (repo *userRepository) GetUserByEmail(email string) (user.User, error) {
	return repo.get(`SELECT * FROM app_user WHERE email = $1 AND email <> ''`, email)
}

func (repo *userRepository) GetUserByUsernameOrEmail(username string) (user.User, error) {
	return repo.get(`SELECT * FROM app_user WHERE (username = $1 OR email = $1) AND $1 <> ''`, username)
}

func (repo *userRepository) UpdateUser(usr user.User, isActive *bool) (user.User, error) {
	// only save set fields
	origUsr, err := repo.GetUserByID(usr.ID)
	if err != nil {
		return user.User{}, err
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
	if isActive != nil {
		origUsr.IsActive = *isActive
	}
	if !usr.UpdatedAt.IsZero() {
		origUsr.UpdatedAt = usr.UpdatedAt
	} else {
		origUsr.UpdatedAt = time.Now().UTC()
	}

	const q = `
		UPDATE app_user
		SET name = :name, username = :username, email = :email, is_active = :is_active,
		    password_hash = :password_hash, updated_at = :updated_at, last_login = :last_login
		WHERE id = :id`

	row := userRow(origUsr)
	if _, err = repo.db.NamedExec(q, row); err != nil {
		return user.User{}, errors.Wrap(err, "updating user")
	}
	return origUsr, nil
}

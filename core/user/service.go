package user

import (
	"errors"
	"fmt"
	"net/mail"
	"time"

	"github.com/google/uuid"

	"github.com/studywala/backend/core"
)

var (
	// errors
	ErrNotFound       = errors.New("user not found")
	ErrEmailExists    = errors.New("a user with this email already exists")
	ErrUsernameExists = errors.New("a user with this username already exists")
)

type (
	Repository interface {
		CheckUsernameUniqueness(username, email string, excludedUsers ...User) error
		CreateUser(user User) (User, error)
		GetUserByID(id string) (User, error)
		GetUserByUsername(username string) (User, error)
		GetUserByEmail(email string) (User, error)
		GetUserByUsernameOrEmail(username string) (User, error)
		UpdateUser(user User, isActive *bool) (User, error)
	}

	Service struct {
		conf    *core.Config
		repo    Repository
		mailSvc core.EmailService
	}
)

func NewService(conf *core.Config, repo Repository, mailSvc core.EmailService) *Service {
	secretKey = conf.SecretKey
	passwordResetTimeoutDelta = conf.PasswordResetTimeoutDelta
	return &Service{
		conf:    conf,
		repo:    repo,
		mailSvc: mailSvc,
	}
}

func (svc *Service) checkUniqueness(uname, email string, exclUsers ...User) error {
	if err := svc.repo.CheckUsernameUniqueness(uname, email, exclUsers...); err != nil {
		var field string
		switch err {
		case ErrUsernameExists:
			field = "username"
		case ErrEmailExists:
			field = "email"
		default:
			return err
		}
		return core.NewValidationError(err, core.FieldError{Field: field, Error: err.Error()})
	}
	return nil
}

func (svc *Service) Create(nu NewUser) (User, error) {
	now := time.Now().UTC()
	usr := User{
		ID:        uuid.New().String(),
		Name:      nu.Name,
		Username:  nu.Username,
		Email:     nu.Email,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := usr.SetPassword(nu.Password); err != nil {
		return User{}, err
	}

	usr, err := svc.repo.CreateUser(usr)
	if err != nil {
		return User{}, err
	}

	if usr.Email != "" {
		go svc.sendWelcomeMail(usr)
	}
	return usr, nil
}

func (svc *Service) GetByID(id string) (User, error) {
	return svc.repo.GetUserByID(id)
}

func (svc *Service) GetByUsername(uname string) (User, error) {
	return svc.repo.GetUserByUsername(core.CleanString(uname, true /* lower */))
}

func (svc *Service) GetByEmail(email string) (User, error) {
	return svc.repo.GetUserByEmail(core.CleanString(email, true /* lower */))
}

func (svc *Service) GetByUsernameOrEmail(uname string) (User, error) {
	return svc.repo.GetUserByUsernameOrEmail(core.CleanString(uname, true /* lower */))
}

func (svc *Service) Update(id string, uu UpdateUser) (User, error) {
	usr := User{
		ID:        id,
		Name:      uu.Name,
		Username:  uu.Username,
		Email:     uu.Email,
		UpdatedAt: time.Now().UTC(),
	}
	if uu.Password != "" {
		if err := usr.SetPassword(uu.Password); err != nil {
			return User{}, err
		}
	}
	return svc.repo.UpdateUser(usr, uu.IsActive)
}

func (svc *Service) SetLastLogin(usr User) (User, error) {
	usr.LastLogin = time.Now().UTC()
	return svc.repo.UpdateUser(usr, nil)
}

// RequestPasswordReset emails a single-use reset link to the account
// attached to email, if any.
func (svc *Service) RequestPasswordReset(email string) error {
	usr, err := svc.GetByEmail(email)
	if err != nil {
		return err
	}
	go svc.sendPasswordResetMail(usr)
	return nil
}

// ResetPassword consumes a reset token and sets the new password. The
// token is bound to the user's current password hash and last login, so
// it cannot be replayed once used.
func (svc *Service) ResetPassword(rp ResetUserPassword) error {
	id, err := decodeUID(rp.UID)
	if err != nil {
		return core.NewValidationError(errInvalidToken)
	}
	usr, err := svc.GetByID(id)
	if err != nil {
		if err == ErrNotFound {
			return core.NewValidationError(errInvalidToken)
		}
		return err
	}
	if err = verifyToken(usr, rp.Token); err != nil {
		return core.NewValidationError(err)
	}
	if err = usr.SetPassword(rp.Password); err != nil {
		return err
	}
	_, err = svc.repo.UpdateUser(usr, nil)
	return err
}

func (svc *Service) sendWelcomeMail(usr User) {
	msg := &core.EmailMessage{
		To:           []mail.Address{{Name: usr.Name, Address: usr.Email}},
		Subject:      fmt.Sprintf("Welcome to %s", svc.conf.AppName),
		TemplateName: "welcome",
		TemplateData: map[string]interface{}{
			"User":    usr,
			"AppName": svc.conf.AppName,
		},
	}
	svc.mailSvc.SendMessages(msg)
}

func (svc *Service) sendPasswordResetMail(usr User) {
	link := fmt.Sprintf("%s/password-reset?uid=%s&token=%s", svc.conf.FrontendBaseURL, encodeUID(usr), makeToken(usr))
	msg := &core.EmailMessage{
		To:           []mail.Address{{Name: usr.Name, Address: usr.Email}},
		Subject:      fmt.Sprintf("Password reset on %s", svc.conf.AppName),
		TemplateName: "password-reset",
		TemplateData: map[string]interface{}{
			"User":    usr,
			"AppName": svc.conf.AppName,
			"Link":    link,
		},
	}
	svc.mailSvc.SendMessages(msg)
}

package account

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"net/mail"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/universidad/core"
)

var (
	// errors
	ErrNotFound           = core.NewNotFoundError("user not found")
	ErrLoginExists        = errors.New("an account with this login already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountDeactivated = errors.New("account deactivated")

	errInvalidValue = "invalid value"
)

type Repository interface {
	// CheckLoginUniqueness returns ErrLoginExists if an account other than excludedIDs already uses login.
	CheckLoginUniqueness(ctx context.Context, login string, excludedIDs ...string) error
	CreateUser(ctx context.Context, usr User) (User, error)
	// QueryUsers applies AND operation on available QueryFilter fields.
	// QueryFilter.Search does a case-insensitive match on one of User.Name, User.Login or User.Email.
	QueryUsers(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]User, error)
	GetUser(ctx context.Context, filter GetFilter) (User, error)
	UpdateUser(ctx context.Context, usr User) (User, error)
	DeleteUsersByID(ctx context.Context, ids ...string) (int, error)
}

// Service manages user accounts: provisioning, authentication and password resets.
type Service struct {
	repo    Repository
	mailSvc core.EmailService
	conf    *core.Config
	tokens  *tokenGenerator
}

func NewService(repo Repository, mailSvc core.EmailService, conf *core.Config) *Service {
	return &Service{
		repo:    repo,
		mailSvc: mailSvc,
		conf:    conf,
		tokens:  newTokenGenerator(conf.SecretKey, conf.PasswordResetTimeoutDelta),
	}
}

// CheckLoginAvailable returns a validation error on the "email" field if login is already taken.
func (svc *Service) CheckLoginAvailable(ctx context.Context, login string, excludedIDs ...string) error {
	login = core.CleanString(login, true /* lower */)
	return loginErr(svc.repo.CheckLoginUniqueness(ctx, login, excludedIDs...), "checking login uniqueness")
}

// loginErr turns ErrLoginExists into a validation error on the "email" field and wraps other errors.
// The repositories also report ErrLoginExists on write, when a concurrent request took the login first.
func loginErr(err error, msg string) error {
	if err == nil {
		return nil
	}
	if errors.Cause(err) == ErrLoginExists {
		return core.NewValidationError(err, core.FieldError{Field: "email", Error: ErrLoginExists.Error()})
	}
	return errors.Wrap(err, msg)
}

func (svc *Service) Create(ctx context.Context, nu NewUser) (User, error) {
	nu.Clean()
	if err := svc.CheckLoginAvailable(ctx, nu.Email); err != nil {
		return User{}, err
	}

	now := time.Now().UTC()
	usr := User{
		Name:      nu.Name,
		Login:     nu.Email,
		Email:     nu.Email,
		IsActive:  true,
		Roles:     nu.Roles,
		CreatedAt: now,
		UpdatedAt: now,
	}
	pwd := nu.Password
	if pwd == "" {
		var err error
		if pwd, err = randomPassword(); err != nil {
			return User{}, errors.Wrap(err, "generating password")
		}
	}
	if err := usr.SetPassword(pwd); err != nil {
		return User{}, errors.Wrap(err, "setting password")
	}

	usr, err := svc.repo.CreateUser(ctx, usr)
	if err != nil {
		return User{}, loginErr(err, "creating user")
	}
	return usr, nil
}

// Provision creates an account bound to login, with a random password and the given roles.
// It fails with a validation error if login is already used.
func (svc *Service) Provision(ctx context.Context, name, login string, roles ...string) (User, error) {
	return svc.Create(ctx, NewUser{Name: name, Email: login, Roles: roles})
}

// ChangeLogin moves the account to a new login (and email).
func (svc *Service) ChangeLogin(ctx context.Context, id, login string) (User, error) {
	usr, err := svc.Get(ctx, id)
	if err != nil {
		return User{}, err
	}
	login = core.CleanString(login, true /* lower */)
	if login == "" || login == usr.Login {
		return usr, nil
	}
	if err = svc.CheckLoginAvailable(ctx, login, usr.ID); err != nil {
		return User{}, err
	}
	usr.Login = login
	usr.Email = login
	usr.UpdatedAt = time.Now().UTC()
	usr, err = svc.repo.UpdateUser(ctx, usr)
	if err != nil {
		return User{}, loginErr(err, "updating login")
	}
	return usr, nil
}

func (svc *Service) Get(ctx context.Context, id string) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{ID: id})
}

func (svc *Service) GetByLogin(ctx context.Context, login string) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{Login: core.CleanString(login, true /* lower */)})
}

func (svc *Service) Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]User, error) {
	return svc.repo.QueryUsers(ctx, filter, ordering)
}

func (svc *Service) Update(ctx context.Context, usr User, uu UpdateUser) (User, error) {
	uu.Clean(usr)
	if uu.Email != usr.Email {
		if err := svc.CheckLoginAvailable(ctx, uu.Email, usr.ID); err != nil {
			return User{}, err
		}
	}

	usr.Name = uu.Name
	usr.Login = uu.Email
	usr.Email = uu.Email
	if uu.IsActive != nil {
		usr.IsActive = *uu.IsActive
	}
	if uu.Roles != nil {
		usr.Roles = uu.Roles
	}
	if uu.Password != "" {
		if err := usr.SetPassword(uu.Password); err != nil {
			return User{}, errors.Wrap(err, "setting password")
		}
	}
	usr.UpdatedAt = time.Now().UTC()

	usr, err := svc.repo.UpdateUser(ctx, usr)
	if err != nil {
		return User{}, loginErr(err, "updating user")
	}
	return usr, nil
}

func (svc *Service) Delete(ctx context.Context, ids ...string) error {
	_, err := svc.repo.DeleteUsersByID(ctx, ids...)
	return errors.Wrap(err, "deleting users")
}

// Authenticate checks the credentials of an active account and records the login.
func (svc *Service) Authenticate(ctx context.Context, login, pwd string) (User, error) {
	usr, err := svc.GetByLogin(ctx, login)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return User{}, ErrInvalidCredentials
		}
		return User{}, errors.Wrap(err, "finding user by login")
	}
	if err = usr.CheckPassword(pwd); err != nil {
		return User{}, ErrInvalidCredentials
	}
	if !usr.IsActive {
		return User{}, ErrAccountDeactivated
	}
	return svc.SetLastLogin(ctx, usr)
}

func (svc *Service) SetLastLogin(ctx context.Context, usr User) (User, error) {
	usr.LastLogin = time.Now().UTC()
	usr, err := svc.repo.UpdateUser(ctx, usr)
	return usr, errors.Wrap(err, "setting last login")
}

// SetPassword sets the password of the account bound to login.
func (svc *Service) SetPassword(ctx context.Context, login, pwd string) error {
	usr, err := svc.GetByLogin(ctx, login)
	if err != nil {
		return err
	}
	if err = usr.SetPassword(pwd); err != nil {
		return errors.Wrap(err, "setting password")
	}
	usr.UpdatedAt = time.Now().UTC()
	_, err = svc.repo.UpdateUser(ctx, usr)
	return errors.Wrap(err, "updating user")
}

// PasswordResetLink returns the frontend link where usr may choose a new password.
func (svc *Service) PasswordResetLink(usr User) string {
	return svc.conf.FrontendBaseURL + "/password-reset/" + EncodeUID(usr) + "/" + svc.tokens.makeToken(usr)
}

// RequestPasswordReset mails a password reset link to the active account using email.
func (svc *Service) RequestPasswordReset(ctx context.Context, email string) error {
	usr, err := svc.GetByLogin(ctx, email)
	if err != nil {
		return err
	}
	if !usr.IsActive {
		return ErrAccountDeactivated
	}

	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: usr.Name, Address: usr.Email}},
		Subject:      "Password Reset",
		TemplateName: "password_reset",
		TemplateData: map[string]interface{}{
			"Name": usr.Name,
			"URL":  svc.PasswordResetLink(usr),
		},
	})
	return nil
}

func (svc *Service) ResetPassword(ctx context.Context, data ResetUserPassword) error {
	uidErr := core.NewValidationError(nil, core.FieldError{Field: "uid", Error: errInvalidValue})

	id, err := decodeUID(data.UID)
	if err != nil {
		return uidErr
	}
	usr, err := svc.Get(ctx, id)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return uidErr
		}
		return errors.Wrap(err, "finding user by ID")
	}

	if err = svc.tokens.verifyToken(usr, data.Token); err != nil {
		return core.NewValidationError(err, core.FieldError{Field: "token", Error: errInvalidValue})
	}

	if err = usr.SetPassword(data.Password); err != nil {
		return errors.Wrap(err, "setting password")
	}
	usr.UpdatedAt = time.Now().UTC()
	_, err = svc.repo.UpdateUser(ctx, usr)
	return errors.Wrap(err, "updating user")
}

func randomPassword() (string, error) {
	b := make([]byte, 18)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

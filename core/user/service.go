package user

import (
	"context"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/edusys/core"
)

var (
	// errors
	ErrNotFound       = core.NewNotFoundError("user")
	ErrEmailExists    = errors.New("a user with this email already exists")
	ErrUsernameExists = errors.New("a user with this username already exists")
)

type (
	Repository interface {
		// CheckUsernameUniqueness returns ErrUsernameExists or ErrEmailExists when another user,
		// not in excludedUsers, already uses username or email.
		CheckUsernameUniqueness(ctx context.Context, username, email string, excludedUsers []User, exec ...core.DBExecutor) error
		CreateUser(ctx context.Context, usr User, exec ...core.DBExecutor) (User, error)
		// QueryUsers applies AND operation on available QueryFilter fields.
		// QueryFilter.Search does a case-insensitive match on one of User.Name, User.Username or User.Email.
		QueryUsers(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]User, error)
		GetUser(ctx context.Context, filter GetFilter, exec ...core.DBExecutor) (User, error)
		UpdateUser(ctx context.Context, usr User, exec ...core.DBExecutor) (User, error)
		DeleteUsersByID(ctx context.Context, ids []string, exec ...core.DBExecutor) (int, error)

		CreateResetToken(ctx context.Context, tok ResetToken, exec ...core.DBExecutor) error
		GetResetToken(ctx context.Context, token string, exec ...core.DBExecutor) (ResetToken, error)
		DeleteResetToken(ctx context.Context, token string, exec ...core.DBExecutor) error
	}

	Service struct {
		db      core.DB
		repo    Repository
		mailSvc core.EmailService
	}
)

func NewService(db core.DB, repo Repository, mailSvc core.EmailService) *Service {
	return &Service{db: db, repo: repo, mailSvc: mailSvc}
}

func (svc *Service) CheckUniqueness(ctx context.Context, uname, email string, exclUsers ...User) error {
	if err := svc.repo.CheckUsernameUniqueness(ctx, uname, email, exclUsers); err != nil {
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

// Create stores a new active user; nu is expected to be validated.
func (svc *Service) Create(ctx context.Context, nu NewUser) (User, error) {
	now := time.Now().UTC()
	usr := User{
		ID:        uuid.NewString(),
		Name:      nu.Name,
		Username:  nu.Username,
		Email:     nu.Email,
		IsActive:  true,
		Roles:     nu.Roles,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if usr.Username == "" {
		usr.Username = usr.Email
	}
	if err := usr.SetPassword(nu.Password); err != nil {
		return User{}, errors.Wrap(err, "user.Service.Create")
	}
	return svc.repo.CreateUser(ctx, usr)
}

func (svc *Service) Query(ctx context.Context, filter *QueryFilter, ordering ...core.DBOrdering) ([]User, error) {
	if filter != nil {
		filter.Clean()
	}
	return svc.repo.QueryUsers(ctx, filter, ordering)
}

func (svc *Service) GetByID(ctx context.Context, id string) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{ID: id})
}

// GetByIDs returns the users having the given ids, ignoring unknown ones.
func (svc *Service) GetByIDs(ctx context.Context, ids []string) ([]User, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	return svc.repo.QueryUsers(ctx, &QueryFilter{IDs: ids}, nil)
}

func (svc *Service) GetByUsername(ctx context.Context, uname string) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{Username: core.CleanString(uname, true /* lower */)})
}

func (svc *Service) GetByEmail(ctx context.Context, email string) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{Email: core.CleanString(email, true /* lower */)})
}

func (svc *Service) GetByUsernameOrEmail(ctx context.Context, uname string) (User, error) {
	uname = core.CleanString(uname, true /* lower */)
	return svc.repo.GetUser(ctx, GetFilter{UsernameOrEmail: []string{uname}})
}

// GetOrCreateByEmail returns the user owning email, creating an active student without a usable
// password when there is none. The boolean reports whether the user was created.
func (svc *Service) GetOrCreateByEmail(ctx context.Context, email string, exec ...core.DBExecutor) (User, bool, error) {
	email = core.CleanString(email, true /* lower */)
	usr, err := svc.repo.GetUser(ctx, GetFilter{Email: email}, exec...)
	if err == nil {
		return usr, false, nil
	}
	if !core.IsNotFound(err) {
		return User{}, false, err
	}

	now := time.Now().UTC()
	usr = User{
		ID:        uuid.NewString(),
		Name:      strings.SplitN(email, "@", 2)[0],
		Username:  email,
		Email:     email,
		IsActive:  true,
		Roles:     []string{RoleStudent},
		CreatedAt: now,
		UpdatedAt: now,
	}
	usr, err = svc.repo.CreateUser(ctx, usr, exec...)
	if err != nil {
		return User{}, false, err
	}
	return usr, true, nil
}

// Update applies uu to usr; uu is expected to be validated against usr.
func (svc *Service) Update(ctx context.Context, usr User, uu UpdateUser) (User, error) {
	usr.Name = uu.Name
	usr.Username = uu.Username
	usr.Email = uu.Email
	if uu.Roles != nil {
		usr.Roles = uu.Roles
	}
	if uu.IsActive != nil {
		usr.IsActive = *uu.IsActive
	}
	if uu.Password != "" {
		if err := usr.SetPassword(uu.Password); err != nil {
			return User{}, errors.Wrap(err, "user.Service.Update")
		}
	}
	usr.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateUser(ctx, usr)
}

func (svc *Service) SetLastLogin(ctx context.Context, usr User) (User, error) {
	usr.LastLogin = time.Now().UTC()
	return svc.repo.UpdateUser(ctx, usr)
}

// SetPassword sets a new password without applying the password policy.
func (svc *Service) SetPassword(ctx context.Context, usr User, pwd string) (User, error) {
	if err := usr.SetPassword(pwd); err != nil {
		return User{}, errors.Wrap(err, "user.Service.SetPassword")
	}
	usr.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateUser(ctx, usr)
}

func (svc *Service) Delete(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	n, err := svc.repo.DeleteUsersByID(ctx, ids)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

type passwordResetData struct {
	Name     string
	Link     string
	ValidFor string
}

// RequestPasswordReset issues a reset token for the user owning email and mails them the reset link.
// It returns ErrNotFound for an unknown email; callers should not disclose it.
func (svc *Service) RequestPasswordReset(ctx context.Context, email string) error {
	usr, err := svc.GetByEmail(ctx, email)
	if err != nil {
		return err
	}

	tok, err := newResetToken(usr.ID)
	if err != nil {
		return err
	}
	if err = svc.repo.CreateResetToken(ctx, tok); err != nil {
		return err
	}

	msg := core.NewEmailMessage(
		mail.Address{Name: usr.Name, Address: usr.Email},
		"Password Reset Request",
		"password_reset",
		passwordResetData{
			Name:     usr.Name,
			Link:     fmt.Sprintf("%s/reset-password/%s", core.Conf.FrontendBaseURL, tok.Token),
			ValidFor: core.Conf.PasswordResetTimeout.String(),
		},
	)
	if err = svc.mailSvc.SendMessages(msg); err != nil {
		return core.NewDependencyError("email", err)
	}
	return nil
}

// ResetPassword sets the password of the token's owner and consumes the token.
// data is expected to be validated.
func (svc *Service) ResetPassword(ctx context.Context, data ResetUserPassword) error {
	tok, err := svc.repo.GetResetToken(ctx, data.Token)
	if err != nil {
		if core.IsNotFound(err) {
			return ErrInvalidResetToken
		}
		return err
	}
	if tok.IsExpired(NowFunc(), core.Conf.PasswordResetTimeout) {
		return ErrExpiredResetToken
	}

	return core.RunInTx(ctx, svc.db, func(exec core.DBExecutor) error {
		usr, err := svc.repo.GetUser(ctx, GetFilter{ID: tok.UserID}, exec)
		if err != nil {
			if core.IsNotFound(err) {
				return ErrInvalidResetToken
			}
			return err
		}
		if err = usr.SetPassword(data.Password); err != nil {
			return errors.Wrap(err, "user.Service.ResetPassword")
		}
		usr.UpdatedAt = time.Now().UTC()
		if _, err = svc.repo.UpdateUser(ctx, usr, exec); err != nil {
			return err
		}
		return svc.repo.DeleteResetToken(ctx, tok.Token, exec)
	})
}

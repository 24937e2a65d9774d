package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/edusys/core"
	"github.com/trezcool/edusys/core/user"
)

var (
	errUserExists = core.NewConflictError("a user with this username or email already exists")
	errTokenTaken = core.NewConflictError("reset token already exists")
	errUserInUse  = core.NewConflictError("user is still referenced by tasks or assignments")

	userColumns = map[string]string{
		"name":       "name",
		"username":   "username",
		"email":      "email",
		"is_active":  "is_active",
		"created_at": "created_at",
		"updated_at": "updated_at",
		"last_login": "last_login",
	}
)

const userSelect = `SELECT id, name, username, email, is_active, roles, password_hash, created_at, updated_at, last_login FROM users`

type userRow struct {
	ID           string         `db:"id"`
	Name         string         `db:"name"`
	Username     string         `db:"username"`
	Email        null.String    `db:"email"`
	IsActive     bool           `db:"is_active"`
	Roles        pq.StringArray `db:"roles"`
	PasswordHash []byte         `db:"password_hash"`
	CreatedAt    time.Time      `db:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at"`
	LastLogin    null.Time      `db:"last_login"`
}

type userRepository struct {
	base
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(exec core.DBExecutor) *userRepository {
	return &userRepository{base{exec: exec}}
}

func (repo userRepository) toRow(usr user.User) userRow {
	roles := usr.Roles
	if roles == nil {
		roles = []string{}
	}
	return userRow{
		ID:           usr.ID,
		Name:         usr.Name,
		Username:     usr.Username,
		Email:        null.NewString(usr.Email, usr.Email != ""),
		IsActive:     usr.IsActive,
		Roles:        roles,
		PasswordHash: usr.PasswordHash,
		CreatedAt:    usr.CreatedAt.UTC(),
		UpdatedAt:    usr.UpdatedAt.UTC(),
		LastLogin:    null.NewTime(usr.LastLogin.UTC(), !usr.LastLogin.IsZero()),
	}
}

func (repo userRepository) fromRow(row userRow) user.User {
	return user.User{
		ID:           row.ID,
		Name:         row.Name,
		Username:     row.Username,
		Email:        row.Email.String,
		IsActive:     row.IsActive,
		Roles:        row.Roles,
		PasswordHash: row.PasswordHash,
		CreatedAt:    row.CreatedAt.UTC(),
		UpdatedAt:    row.UpdatedAt.UTC(),
		LastLogin:    row.LastLogin.Time.UTC(),
	}
}

func (repo userRepository) CheckUsernameUniqueness(ctx context.Context, username, email string, excludedUsers []user.User, exec ...core.DBExecutor) error {
	ex := repo.getExec(exec)

	var w where
	w.add("(username = ? OR email = ?)", username, email)
	if len(excludedUsers) > 0 {
		ids := make([]string, 0, len(excludedUsers))
		for _, u := range excludedUsers {
			ids = append(ids, u.ID)
		}
		w.add("NOT (id = ANY(?))", pq.Array(ids))
	}

	var rows []userRow
	q := ex.Rebind(userSelect + w.String() + " LIMIT 2")
	if err := sqlx.SelectContext(ctx, ex, &rows, q, w.args...); err != nil {
		return errors.Wrap(err, "checking user uniqueness")
	}
	for _, row := range rows {
		if username != "" && row.Username == username {
			return user.ErrUsernameExists
		}
	}
	for _, row := range rows {
		if email != "" && row.Email.String == email {
			return user.ErrEmailExists
		}
	}
	return nil
}

func (repo userRepository) CreateUser(ctx context.Context, usr user.User, exec ...core.DBExecutor) (user.User, error) {
	row := repo.toRow(usr)
	q := `INSERT INTO users (id, name, username, email, is_active, roles, password_hash, created_at, updated_at, last_login)
		VALUES (:id, :name, :username, :email, :is_active, :roles, :password_hash, :created_at, :updated_at, :last_login)`
	if _, err := sqlx.NamedExecContext(ctx, repo.getExec(exec), q, row); err != nil {
		return user.User{}, trapPQErr(err, errUserExists, nil, "inserting user")
	}
	return repo.fromRow(row), nil
}

func (repo userRepository) QueryUsers(ctx context.Context, filter *user.QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]user.User, error) {
	ex := repo.getExec(exec)

	var w where
	if filter != nil {
		if filter.IDs != nil {
			w.add("id = ANY(?)", pq.Array(filter.IDs))
		}
		if filter.Search != "" {
			pattern := "%" + filter.Search + "%"
			w.add("(name ILIKE ? OR username ILIKE ? OR email ILIKE ?)", pattern, pattern, pattern)
		}
		if filter.Roles != nil {
			w.add("roles && ?", pq.Array(filter.Roles))
		}
		if filter.IsActive != nil {
			w.add("is_active = ?", *filter.IsActive)
		}
		if !filter.CreatedFrom.IsZero() {
			w.add("created_at >= ?", filter.CreatedFrom.UTC())
		}
		if !filter.CreatedTo.IsZero() {
			w.add("created_at <= ?", filter.CreatedTo.UTC())
		}
	}

	var rows []userRow
	q := ex.Rebind(userSelect + w.String() + orderBy(ordering, userColumns, "created_at ASC, id ASC"))
	if err := sqlx.SelectContext(ctx, ex, &rows, q, w.args...); err != nil {
		return nil, errors.Wrap(err, "selecting users")
	}

	users := make([]user.User, 0, len(rows))
	for _, row := range rows {
		users = append(users, repo.fromRow(row))
	}
	return users, nil
}

func (repo userRepository) GetUser(ctx context.Context, filter user.GetFilter, exec ...core.DBExecutor) (user.User, error) {
	ex := repo.getExec(exec)

	var w where
	switch {
	case filter.ID != "":
		w.add("id = ?", filter.ID)
	case filter.Username != "":
		w.add("username = ?", filter.Username)
	case filter.Email != "":
		w.add("email = ?", filter.Email)
	case len(filter.UsernameOrEmail) > 0:
		w.add("(username = ANY(?) OR email = ANY(?))", pq.Array(filter.UsernameOrEmail), pq.Array(filter.UsernameOrEmail))
	default:
		return user.User{}, user.ErrNotFound
	}

	var row userRow
	q := ex.Rebind(userSelect + w.String() + " LIMIT 1")
	if err := sqlx.GetContext(ctx, ex, &row, q, w.args...); err != nil {
		return user.User{}, trapNoRowsErr(err, user.ErrNotFound, "selecting user")
	}
	return repo.fromRow(row), nil
}

func (repo userRepository) UpdateUser(ctx context.Context, usr user.User, exec ...core.DBExecutor) (user.User, error) {
	row := repo.toRow(usr)
	q := `UPDATE users SET name = :name, username = :username, email = :email, is_active = :is_active, roles = :roles,
		password_hash = :password_hash, updated_at = :updated_at, last_login = :last_login WHERE id = :id`
	res, err := sqlx.NamedExecContext(ctx, repo.getExec(exec), q, row)
	if err != nil {
		return user.User{}, trapPQErr(err, errUserExists, nil, "updating user")
	}
	if err = mustAffect(res, user.ErrNotFound, "updating user"); err != nil {
		return user.User{}, err
	}
	return repo.fromRow(row), nil
}

func (repo userRepository) DeleteUsersByID(ctx context.Context, ids []string, exec ...core.DBExecutor) (int, error) {
	ex := repo.getExec(exec)
	res, err := ex.ExecContext(ctx, ex.Rebind("DELETE FROM users WHERE id = ANY(?)"), pq.Array(ids))
	if err != nil {
		return 0, trapPQErr(err, nil, errUserInUse, "deleting users")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, "deleting users")
	}
	return int(n), nil
}

type resetTokenRow struct {
	Token     string    `db:"token"`
	UserID    string    `db:"user_id"`
	CreatedAt time.Time `db:"created_at"`
}

func (repo userRepository) CreateResetToken(ctx context.Context, tok user.ResetToken, exec ...core.DBExecutor) error {
	row := resetTokenRow{Token: tok.Token, UserID: tok.UserID, CreatedAt: tok.CreatedAt.UTC()}
	q := `INSERT INTO password_reset_tokens (token, user_id, created_at) VALUES (:token, :user_id, :created_at)`
	if _, err := sqlx.NamedExecContext(ctx, repo.getExec(exec), q, row); err != nil {
		return trapPQErr(err, errTokenTaken, user.ErrNotFound, "inserting reset token")
	}
	return nil
}

func (repo userRepository) GetResetToken(ctx context.Context, token string, exec ...core.DBExecutor) (user.ResetToken, error) {
	ex := repo.getExec(exec)

	var row resetTokenRow
	q := ex.Rebind("SELECT token, user_id, created_at FROM password_reset_tokens WHERE token = ?")
	if err := sqlx.GetContext(ctx, ex, &row, q, token); err != nil {
		return user.ResetToken{}, trapNoRowsErr(err, core.NewNotFoundError("reset token"), "selecting reset token")
	}
	return user.ResetToken{Token: row.Token, UserID: row.UserID, CreatedAt: row.CreatedAt.UTC()}, nil
}

func (repo userRepository) DeleteResetToken(ctx context.Context, token string, exec ...core.DBExecutor) error {
	ex := repo.getExec(exec)
	if _, err := ex.ExecContext(ctx, ex.Rebind("DELETE FROM password_reset_tokens WHERE token = ?"), token); err != nil {
		return errors.Wrap(err, "deleting reset token")
	}
	return nil
}

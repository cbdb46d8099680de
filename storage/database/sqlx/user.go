package sqlxrepos

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/universidad/core"
	"github.com/trezcool/universidad/core/account"
)

const userLoginConstraint = "users_login_key"

// orderable columns of the users table
var userOrderings = map[string]string{
	"name":       "name",
	"login":      "login",
	"email":      "email",
	"is_active":  "is_active",
	"created_at": "created_at",
	"last_login": "last_login",
}

type userRow struct {
	ID           string         `db:"id"`
	Name         string         `db:"name"`
	Login        string         `db:"login"`
	Email        string         `db:"email"`
	IsActive     bool           `db:"is_active"`
	Roles        pq.StringArray `db:"roles"`
	PasswordHash []byte         `db:"password_hash"`
	CreatedAt    time.Time      `db:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at"`
	LastLogin    null.Time      `db:"last_login"`
}

func toUserRow(usr account.User) userRow {
	roles := pq.StringArray{}
	if usr.Roles != nil {
		roles = usr.Roles
	}
	return userRow{
		ID:           usr.ID,
		Name:         usr.Name,
		Login:        usr.Login,
		Email:        usr.Email,
		IsActive:     usr.IsActive,
		Roles:        roles,
		PasswordHash: usr.PasswordHash,
		CreatedAt:    usr.CreatedAt.UTC(),
		UpdatedAt:    usr.UpdatedAt.UTC(),
		LastLogin:    null.NewTime(usr.LastLogin.UTC(), !usr.LastLogin.IsZero()),
	}
}

func (r userRow) user() account.User {
	usr := account.User{
		ID:           r.ID,
		Name:         r.Name,
		Login:        r.Login,
		Email:        r.Email,
		IsActive:     r.IsActive,
		Roles:        []string(r.Roles),
		PasswordHash: r.PasswordHash,
		CreatedAt:    r.CreatedAt.UTC(),
		UpdatedAt:    r.UpdatedAt.UTC(),
	}
	if r.LastLogin.Valid {
		usr.LastLogin = r.LastLogin.Time.UTC()
	}
	return usr
}

const userColumns = `id, name, login, email, is_active, roles, password_hash, created_at, updated_at, last_login`

type userRepository struct {
	db *sqlx.DB
}

var _ account.Repository = (*userRepository)(nil)

func NewUserRepository(db *sqlx.DB) account.Repository {
	return &userRepository{db: db}
}

func isUUID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func (repo *userRepository) CheckLoginUniqueness(ctx context.Context, login string, excludedIDs ...string) error {
	q := `SELECT EXISTS (SELECT 1 FROM users WHERE login = ?`
	args := []interface{}{login}

	ids := make([]string, 0, len(excludedIDs))
	for _, id := range excludedIDs {
		if isUUID(id) {
			ids = append(ids, id)
		}
	}
	if len(ids) > 0 {
		q += ` AND id NOT IN (?)`
		args = append(args, ids)
	}
	q += `)`

	q, args, err := sqlx.In(q, args...)
	if err != nil {
		return errors.Wrap(err, "building login uniqueness query")
	}
	var exists bool
	if err = repo.db.GetContext(ctx, &exists, repo.db.Rebind(q), args...); err != nil {
		return errors.Wrap(err, "checking login uniqueness")
	}
	if exists {
		return account.ErrLoginExists
	}
	return nil
}

func (repo *userRepository) CreateUser(ctx context.Context, usr account.User) (account.User, error) {
	usr.ID = uuid.New().String()
	_, err := repo.db.NamedExecContext(ctx,
		`INSERT INTO users (`+userColumns+`)
VALUES (:id, :name, :login, :email, :is_active, :roles, :password_hash, :created_at, :updated_at, :last_login)`,
		toUserRow(usr))
	if err != nil {
		if isUniqueViolation(err, userLoginConstraint) {
			return account.User{}, account.ErrLoginExists
		}
		return account.User{}, errors.Wrap(err, "inserting user")
	}
	return repo.GetUser(ctx, account.GetFilter{ID: usr.ID})
}

func (repo *userRepository) QueryUsers(ctx context.Context, filter *account.QueryFilter, ordering []core.DBOrdering) ([]account.User, error) {
	var w where
	if filter != nil {
		// users with Name, Login or Email matching the search keyword
		if filter.Search != "" {
			pattern := likePattern(filter.Search)
			w.add("(name ILIKE ? OR login ILIKE ? OR email ILIKE ?)", pattern, pattern, pattern)
		}
		// users with any role that starts with any of the provided roles
		if len(filter.Roles) > 0 {
			conds := make([]string, 0, len(filter.Roles))
			args := make([]interface{}, 0, len(filter.Roles))
			for _, role := range filter.Roles {
				conds = append(conds, "EXISTS (SELECT 1 FROM unnest(roles) user_role WHERE user_role LIKE ?)")
				args = append(args, likeEscaper.Replace(role)+"%")
			}
			w.add("("+strings.Join(conds, " OR ")+")", args...)
		}
		if filter.IsActive != nil {
			w.add("is_active = ?", *filter.IsActive)
		}
	}

	orderList := make([]string, 0, len(ordering)+1)
	for _, ord := range ordering {
		if col, ok := userOrderings[ord.Field]; ok {
			orderList = append(orderList, core.DBOrdering{Field: col, Ascending: ord.Ascending}.String())
		}
	}
	orderList = append(orderList, "created_at ASC")

	q := `SELECT ` + userColumns + ` FROM users` + w.String() + ` ORDER BY ` + strings.Join(orderList, ", ")
	var rows []userRow
	if err := repo.db.SelectContext(ctx, &rows, repo.db.Rebind(q), w.args...); err != nil {
		return nil, errors.Wrap(err, "querying users")
	}
	users := make([]account.User, 0, len(rows))
	for _, r := range rows {
		users = append(users, r.user())
	}
	return users, nil
}

func (repo *userRepository) GetUser(ctx context.Context, filter account.GetFilter) (account.User, error) {
	var (
		row userRow
		err error
	)
	switch {
	case filter.ID != "":
		if !isUUID(filter.ID) {
			return account.User{}, account.ErrNotFound
		}
		err = repo.db.GetContext(ctx, &row, `SELECT `+userColumns+` FROM users WHERE id = $1`, filter.ID)
	case filter.Login != "":
		err = repo.db.GetContext(ctx, &row, `SELECT `+userColumns+` FROM users WHERE login = $1`, filter.Login)
	default:
		return account.User{}, account.ErrNotFound
	}
	if err != nil {
		if err == sql.ErrNoRows {
			return account.User{}, account.ErrNotFound
		}
		return account.User{}, errors.Wrap(err, "finding user")
	}
	return row.user(), nil
}

func (repo *userRepository) UpdateUser(ctx context.Context, usr account.User) (account.User, error) {
	if !isUUID(usr.ID) {
		return account.User{}, account.ErrNotFound
	}
	res, err := repo.db.NamedExecContext(ctx,
		`UPDATE users SET name = :name, login = :login, email = :email, is_active = :is_active, roles = :roles,
    password_hash = :password_hash, updated_at = :updated_at, last_login = :last_login
WHERE id = :id`,
		toUserRow(usr))
	if err != nil {
		if isUniqueViolation(err, userLoginConstraint) {
			return account.User{}, account.ErrLoginExists
		}
		return account.User{}, errors.Wrap(err, "updating user")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return account.User{}, account.ErrNotFound
	}
	return repo.GetUser(ctx, account.GetFilter{ID: usr.ID})
}

func (repo *userRepository) DeleteUsersByID(ctx context.Context, ids ...string) (int, error) {
	valid := make([]string, 0, len(ids))
	for _, id := range ids {
		if isUUID(id) {
			valid = append(valid, id)
		}
	}
	if len(valid) == 0 {
		return 0, nil
	}

	q, args, err := sqlx.In(`DELETE FROM users WHERE id IN (?)`, valid)
	if err != nil {
		return 0, errors.Wrap(err, "building delete users query")
	}
	res, err := repo.db.ExecContext(ctx, repo.db.Rebind(q), args...)
	if err != nil {
		return 0, errors.Wrap(err, "deleting users")
	}
	n, err := res.RowsAffected()
	return int(n), errors.Wrap(err, "deleting users")
}

package inmemdb

import (
	"context"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/trezcool/universidad/core"
	"github.com/trezcool/universidad/core/account"
)

type userRepository struct {
	db *userTable
}

func NewUserRepository(db *DB) account.Repository {
	return &userRepository{db: db.user}
}

func (repo *userRepository) query() []account.User {
	users := make([]account.User, 0, len(repo.db.table))
	for _, u := range repo.db.table {
		users = append(users, *u)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].CreatedAt.Before(users[j].CreatedAt) })
	return users
}

func (repo *userRepository) CheckLoginUniqueness(ctx context.Context, login string, excludedIDs ...string) error {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, usr := range repo.db.table {
		if usr.Login == login && !isExcluded(usr.ID, excludedIDs) {
			return account.ErrLoginExists
		}
	}
	return nil
}

func (repo *userRepository) CreateUser(ctx context.Context, usr account.User) (account.User, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	for _, u := range repo.db.table {
		if u.Login == usr.Login {
			return account.User{}, account.ErrLoginExists
		}
	}
	usr.ID = uuid.New().String()
	repo.db.table[usr.ID] = &usr
	return usr, nil
}

func (repo *userRepository) QueryUsers(ctx context.Context, filter *account.QueryFilter, ordering []core.DBOrdering) ([]account.User, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	users := repo.query()
	if filter != nil && !filter.IsEmpty() {
		filtered := users[:0]
		for _, usr := range users {
			if userMatches(usr, filter) {
				filtered = append(filtered, usr)
			}
		}
		users = filtered
	}
	sortUsers(users, ordering)
	return users, nil
}

func userMatches(usr account.User, filter *account.QueryFilter) bool {
	if s := strings.ToLower(filter.Search); s != "" &&
		!strings.Contains(strings.ToLower(usr.Name), s) &&
		!strings.Contains(usr.Login, s) &&
		!strings.Contains(usr.Email, s) {
		return false
	}
	if filter.IsActive != nil && usr.IsActive != *filter.IsActive {
		return false
	}
	if len(filter.Roles) > 0 {
		for _, role := range filter.Roles {
			if usr.RoleStartsWith(role) {
				return true
			}
		}
		return false
	}
	return true
}

var userLess = map[string]func(a, b account.User) bool{
	"name":       func(a, b account.User) bool { return a.Name < b.Name },
	"login":      func(a, b account.User) bool { return a.Login < b.Login },
	"email":      func(a, b account.User) bool { return a.Email < b.Email },
	"created_at": func(a, b account.User) bool { return a.CreatedAt.Before(b.CreatedAt) },
	"last_login": func(a, b account.User) bool { return a.LastLogin.Before(b.LastLogin) },
}

func sortUsers(users []account.User, ordering []core.DBOrdering) {
	if len(ordering) == 0 {
		return
	}
	sort.SliceStable(users, func(i, j int) bool {
		for _, ord := range ordering {
			less, ok := userLess[ord.Field]
			if !ok {
				continue
			}
			a, b := users[i], users[j]
			if !ord.Ascending {
				a, b = b, a
			}
			if less(a, b) {
				return true
			}
			if less(b, a) {
				return false
			}
		}
		return false
	})
}

func (repo *userRepository) GetUser(ctx context.Context, filter account.GetFilter) (account.User, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if filter.ID != "" {
		if usr, ok := repo.db.table[filter.ID]; ok {
			return *usr, nil
		}
		return account.User{}, account.ErrNotFound
	}
	for _, usr := range repo.db.table {
		if filter.Login != "" && usr.Login == filter.Login {
			return *usr, nil
		}
	}
	return account.User{}, account.ErrNotFound
}

func (repo *userRepository) UpdateUser(ctx context.Context, usr account.User) (account.User, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.table[usr.ID]; !ok {
		return account.User{}, account.ErrNotFound
	}
	for _, u := range repo.db.table {
		if u.Login == usr.Login && u.ID != usr.ID {
			return account.User{}, account.ErrLoginExists
		}
	}
	repo.db.table[usr.ID] = &usr
	return usr, nil
}

func (repo *userRepository) DeleteUsersByID(ctx context.Context, ids ...string) (int, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	var n int
	for _, id := range ids {
		if _, ok := repo.db.table[id]; ok {
			delete(repo.db.table, id)
			n++
		}
	}
	return n, nil
}

func isExcluded(id string, excludedIDs []string) bool {
	for _, excl := range excludedIDs {
		if excl == id {
			return true
		}
	}
	return false
}

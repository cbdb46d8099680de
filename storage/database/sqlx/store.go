package sqlxrepos

import (
	"context"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"
	"github.com/volatiletech/sqlboiler/v4/boil"

	"github.com/trezcool/universidad/core/campus"
)

// executor is satisfied by both *sqlx.DB and *sqlx.Tx.
type executor interface {
	sqlx.ExtContext
	boil.ContextExecutor
}

// Store implements campus.Store on a postgres database.
type Store struct {
	db *sqlx.DB
}

var _ campus.Store = (*Store)(nil)

func NewStore(db *sqlx.DB) *Store {
	return &Store{db: db}
}

func (s *Store) View(ctx context.Context, fn func(repo campus.Repository) error) error {
	return fn(newCampusRepository(s.db))
}

func (s *Store) WithinTx(ctx context.Context, fn func(repo campus.Repository) error) (err error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "beginning transaction")
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err = fn(newCampusRepository(tx)); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return errors.Wrapf(err, "rolling back: %v", rbErr)
		}
		return err
	}
	return errors.Wrap(tx.Commit(), "committing transaction")
}

// helpers

func nullID(id int64) null.Int64 {
	return null.NewInt64(id, id != 0)
}

func nullString(s string) null.String {
	return null.NewString(s, s != "")
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// likePattern turns a search keyword into an ILIKE "contains" pattern.
func likePattern(search string) string {
	return "%" + likeEscaper.Replace(search) + "%"
}

// where accumulates AND-ed conditions written with "?" bind vars.
type where struct {
	conds []string
	args  []interface{}
}

func (w *where) add(cond string, args ...interface{}) {
	w.conds = append(w.conds, cond)
	w.args = append(w.args, args...)
}

func (w *where) eq(col string, id int64) {
	if id != 0 {
		w.add(col+" = ?", id)
	}
}

func (w *where) String() string {
	if len(w.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.conds, " AND ")
}

func isUniqueViolation(err error, constraint string) bool {
	pqErr, ok := errors.Cause(err).(*pq.Error)
	return ok && pqErr.Code == "23505" && (constraint == "" || pqErr.Constraint == constraint)
}

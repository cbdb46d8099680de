package inmemdb

import (
	"context"
	"sync"

	"github.com/pkg/errors"

	"github.com/trezcool/universidad/core/account"
	"github.com/trezcool/universidad/core/campus"
)

var errReadOnly = errors.New("inmemdb: write attempted in a read-only view")

type (
	// DB keeps every record in memory. Campus transactions work on a copy of the whole state,
	// swapped in on commit; they are serialized.
	DB struct {
		mu    sync.RWMutex
		state *state
		user  *userTable
	}

	seqKey struct {
		subjectID int64
		year      int
	}

	state struct {
		universities map[int64]campus.University
		departments  map[int64]campus.Department
		professors   map[int64]campus.Professor
		students     map[int64]campus.Student
		subjects     map[int64]campus.Subject
		enrollments  map[int64]campus.Enrollment
		grades       map[int64]campus.Grade
		sequences    map[seqKey]int
		lastID       map[string]int64 // per table
	}

	userTable struct {
		sync.RWMutex
		table map[string]*account.User
	}
)

func Open() *DB {
	return &DB{
		state: newState(),
		user:  &userTable{table: make(map[string]*account.User)},
	}
}

func newState() *state {
	return &state{
		universities: make(map[int64]campus.University),
		departments:  make(map[int64]campus.Department),
		professors:   make(map[int64]campus.Professor),
		students:     make(map[int64]campus.Student),
		subjects:     make(map[int64]campus.Subject),
		enrollments:  make(map[int64]campus.Enrollment),
		grades:       make(map[int64]campus.Grade),
		sequences:    make(map[seqKey]int),
		lastID:       make(map[string]int64),
	}
}

// clone copies the tables. Stored records never share mutable memory, so copying the maps is enough.
func (st *state) clone() *state {
	c := &state{
		universities: make(map[int64]campus.University, len(st.universities)),
		departments:  make(map[int64]campus.Department, len(st.departments)),
		professors:   make(map[int64]campus.Professor, len(st.professors)),
		students:     make(map[int64]campus.Student, len(st.students)),
		subjects:     make(map[int64]campus.Subject, len(st.subjects)),
		enrollments:  make(map[int64]campus.Enrollment, len(st.enrollments)),
		grades:       make(map[int64]campus.Grade, len(st.grades)),
		sequences:    make(map[seqKey]int, len(st.sequences)),
		lastID:       make(map[string]int64, len(st.lastID)),
	}
	for k, v := range st.universities {
		c.universities[k] = v
	}
	for k, v := range st.departments {
		c.departments[k] = v
	}
	for k, v := range st.professors {
		c.professors[k] = v
	}
	for k, v := range st.students {
		c.students[k] = v
	}
	for k, v := range st.subjects {
		c.subjects[k] = v
	}
	for k, v := range st.enrollments {
		c.enrollments[k] = v
	}
	for k, v := range st.grades {
		c.grades[k] = v
	}
	for k, v := range st.sequences {
		c.sequences[k] = v
	}
	for k, v := range st.lastID {
		c.lastID[k] = v
	}
	return c
}

func (st *state) nextID(table string) int64 {
	st.lastID[table]++
	return st.lastID[table]
}

// View implements campus.Store.
func (db *DB) View(ctx context.Context, fn func(repo campus.Repository) error) error {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return fn(&campusRepository{st: db.state, readOnly: true})
}

// WithinTx implements campus.Store: fn works on a copy of the state, kept only if fn succeeds.
func (db *DB) WithinTx(ctx context.Context, fn func(repo campus.Repository) error) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	staged := db.state.clone()
	if err := fn(&campusRepository{st: staged}); err != nil {
		return err
	}
	db.state = staged
	return nil
}

// Reset drops every record.
func (db *DB) Reset() {
	db.mu.Lock()
	db.state = newState()
	db.mu.Unlock()

	db.user.Lock()
	db.user.table = make(map[string]*account.User)
	db.user.Unlock()
}

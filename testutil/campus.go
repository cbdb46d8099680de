package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/trezcool/universidad/core"
	"github.com/trezcool/universidad/core/account"
	"github.com/trezcool/universidad/core/campus"
	appfs "github.com/trezcool/universidad/fs"
	emailsvc "github.com/trezcool/universidad/services/email"
	inmemdb "github.com/trezcool/universidad/storage/database/inmem"
)

// Env is a campus service stack mailing to the console mock.
type Env struct {
	Conf     *core.Config
	Store    campus.Store
	UserRepo account.Repository
	Accounts *account.Service
	Campus   *campus.Service
	MailSvc  core.EmailService
}

// NewEnv builds a fresh Env on the in-memory store; the messages sent so far are forgotten.
func NewEnv(t *testing.T) *Env {
	t.Helper()
	db := inmemdb.Open()
	return NewStoreEnv(t, db, inmemdb.NewUserRepository(db))
}

// NewStoreEnv builds a fresh Env on the given store & account repository.
func NewStoreEnv(t *testing.T, store campus.Store, usrRepo account.Repository) *Env {
	t.Helper()

	conf := core.NewTestConfig()
	mailSvc := emailsvc.NewConsoleServiceMock(conf, core.NopLogger)
	accounts := account.NewService(usrRepo, mailSvc, conf)

	core.ParseEmailTemplates(appfs.FS, true /* strict */, core.NopLogger)
	emailsvc.ResetSentMessages()

	return &Env{
		Conf:     conf,
		Store:    store,
		UserRepo: usrRepo,
		Accounts: accounts,
		Campus:   campus.NewService(store, accounts, mailSvc, conf, core.NopLogger),
		MailSvc:  mailSvc,
	}
}

func (env *Env) University(t *testing.T, name string) campus.University {
	t.Helper()
	u, err := env.Campus.CreateUniversity(context.Background(), campus.UniversityData{Name: name})
	require.NoError(t, err, "CreateUniversity(%q)", name)
	return u
}

func (env *Env) Department(t *testing.T, universityID int64, name string) campus.Department {
	t.Helper()
	d, err := env.Campus.CreateDepartment(context.Background(), campus.DepartmentData{Name: name, UniversityID: universityID})
	require.NoError(t, err, "CreateDepartment(%q)", name)
	return d
}

func (env *Env) Professor(t *testing.T, universityID, departmentID int64, name, email string) campus.Professor {
	t.Helper()
	p, err := env.Campus.CreateProfessor(context.Background(), campus.ProfessorData{
		Name:         name,
		Email:        email,
		UniversityID: universityID,
		DepartmentID: departmentID,
	})
	require.NoError(t, err, "CreateProfessor(%q)", name)
	return p
}

func (env *Env) Student(t *testing.T, universityID int64, name, email string) campus.Student {
	t.Helper()
	st, err := env.Campus.CreateStudent(context.Background(), campus.StudentData{
		Name:         name,
		Email:        email,
		UniversityID: universityID,
	})
	require.NoError(t, err, "CreateStudent(%q)", name)
	return st
}

func (env *Env) Subject(t *testing.T, universityID, departmentID int64, name string, professorIDs ...int64) campus.Subject {
	t.Helper()
	s, err := env.Campus.CreateSubject(context.Background(), campus.SubjectData{
		Name:         name,
		UniversityID: universityID,
		DepartmentID: departmentID,
		ProfessorIDs: professorIDs,
	})
	require.NoError(t, err, "CreateSubject(%q)", name)
	return s
}

// Enrollment creates a numbered enrollment dated date (today if zero).
func (env *Env) Enrollment(t *testing.T, studentID, subjectID int64, date time.Time) campus.Enrollment {
	t.Helper()
	data := campus.EnrollmentData{StudentID: studentID, SubjectID: subjectID}
	if !date.IsZero() {
		data.Date = date.Format(campus.DateLayout)
	}
	e, err := env.Campus.CreateEnrollment(context.Background(), data)
	require.NoError(t, err, "CreateEnrollment(%d, %d)", studentID, subjectID)
	return e
}

func (env *Env) Grade(t *testing.T, studentID, enrollmentID int64, value float64) campus.Grade {
	t.Helper()
	g, err := env.Campus.CreateGrade(context.Background(), campus.GradeData{
		StudentID:    studentID,
		EnrollmentID: enrollmentID,
		Value:        value,
	})
	require.NoError(t, err, "CreateGrade(%d, %v)", enrollmentID, value)
	return g
}

// Campus is a small populated campus: one university with a department, two professors,
// two students and a subject taught by both professors.
type Campus struct {
	University campus.University
	Department campus.Department
	Prof1      campus.Professor
	Prof2      campus.Professor
	Student1   campus.Student
	Student2   campus.Student
	Subject    campus.Subject
}

func (env *Env) Populate(t *testing.T) Campus {
	t.Helper()
	var c Campus
	c.University = env.University(t, "Universidad Central")
	c.Department = env.Department(t, c.University.ID, "Mathematics")
	c.Prof1 = env.Professor(t, c.University.ID, c.Department.ID, "Ada Lovelace", "ada@uc.test")
	c.Prof2 = env.Professor(t, c.University.ID, c.Department.ID, "Alan Turing", "alan@uc.test")
	c.Student1 = env.Student(t, c.University.ID, "Maria Perez", "maria@uc.test")
	c.Student2 = env.Student(t, c.University.ID, "Juan Lopez", "juan@uc.test")
	c.Subject = env.Subject(t, c.University.ID, c.Department.ID, "Algebra", c.Prof1.ID, c.Prof2.ID)
	return c
}

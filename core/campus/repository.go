package campus

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/universidad/core"
)

var (
	// errors
	ErrUniversityNotFound = core.NewNotFoundError("university not found")
	ErrDepartmentNotFound = core.NewNotFoundError("department not found")
	ErrProfessorNotFound  = core.NewNotFoundError("professor not found")
	ErrStudentNotFound    = core.NewNotFoundError("student not found")
	ErrSubjectNotFound    = core.NewNotFoundError("subject not found")
	ErrEnrollmentNotFound = core.NewNotFoundError("enrollment not found")
	ErrGradeNotFound      = core.NewNotFoundError("grade not found")

	// ErrDuplicateCode is returned by repositories when an enrollment code is already taken.
	ErrDuplicateCode = errors.New("an enrollment with this code already exists")
	// ErrRestricted is the cause of validation errors raised when deleting a record still referenced.
	ErrRestricted = errors.New("record is still referenced")
)

// Repository reads and writes campus records. Save* inserts records with a zero ID and updates the others.
// Get* and Query* fill the counts computed on read.
type Repository interface {
	GetUniversity(ctx context.Context, id int64) (University, error)
	QueryUniversities(ctx context.Context, filter UniversityFilter) ([]University, error)
	SaveUniversity(ctx context.Context, u University) (University, error)
	DeleteUniversity(ctx context.Context, id int64) error

	GetDepartment(ctx context.Context, id int64) (Department, error)
	QueryDepartments(ctx context.Context, filter DepartmentFilter) ([]Department, error)
	SaveDepartment(ctx context.Context, d Department) (Department, error)
	DeleteDepartment(ctx context.Context, id int64) error

	GetProfessor(ctx context.Context, id int64) (Professor, error)
	GetProfessorByUser(ctx context.Context, userID string) (Professor, error)
	QueryProfessors(ctx context.Context, filter ProfessorFilter) ([]Professor, error)
	SaveProfessor(ctx context.Context, p Professor) (Professor, error)
	DeleteProfessor(ctx context.Context, id int64) error

	GetStudent(ctx context.Context, id int64) (Student, error)
	GetStudentByUser(ctx context.Context, userID string) (Student, error)
	QueryStudents(ctx context.Context, filter StudentFilter) ([]Student, error)
	SaveStudent(ctx context.Context, s Student) (Student, error)
	DeleteStudent(ctx context.Context, id int64) error

	GetSubject(ctx context.Context, id int64) (Subject, error)
	QuerySubjects(ctx context.Context, filter SubjectFilter) ([]Subject, error)
	SaveSubject(ctx context.Context, s Subject) (Subject, error)
	DeleteSubject(ctx context.Context, id int64) error

	GetEnrollment(ctx context.Context, id int64) (Enrollment, error)
	QueryEnrollments(ctx context.Context, filter EnrollmentFilter) ([]Enrollment, error)
	// EnrollmentCodeExists reports whether code is used by another enrollment than excludedID.
	EnrollmentCodeExists(ctx context.Context, code string, excludedID int64) (bool, error)
	// SaveEnrollment returns ErrDuplicateCode if the code is already taken.
	SaveEnrollment(ctx context.Context, e Enrollment) (Enrollment, error)
	DeleteEnrollment(ctx context.Context, id int64) error
	// NextEnrollmentSequence atomically allocates the next sequence number of (subjectID, year).
	// The first allocation is seeded with the count of enrollments of the subject dated in year.
	NextEnrollmentSequence(ctx context.Context, subjectID int64, year int) (int, error)

	GetGrade(ctx context.Context, id int64) (Grade, error)
	QueryGrades(ctx context.Context, filter GradeFilter) ([]Grade, error)
	SaveGrade(ctx context.Context, g Grade) (Grade, error)
	DeleteGrade(ctx context.Context, id int64) error

	// QueryGradeReport groups grades by (university, professor, department, student, subject).
	// Grades whose enrollment has no professor are left out.
	QueryGradeReport(ctx context.Context, filter ReportFilter) ([]GradeReport, error)
}

// Store gives access to a Repository.
type Store interface {
	// View runs fn against the current state of the store. fn must not write.
	View(ctx context.Context, fn func(repo Repository) error) error
	// WithinTx runs fn in a transaction, committed only if fn returns nil.
	WithinTx(ctx context.Context, fn func(repo Repository) error) error
}

// Sequencer allocates enrollment sequence numbers outside of the store.
type Sequencer interface {
	// Next returns the next number of (subjectID, year); the counter starts right after seed.
	Next(ctx context.Context, subjectID int64, year int, seed int) (int, error)
}

package campus

import (
	"strings"
	"time"

	"github.com/trezcool/universidad/core"
)

// DateLayout is the layout of enrollment & grade dates on input.
const DateLayout = "2006-01-02"

// Address fields shared by University and Student.
type Address struct {
	Street  string `json:"street"`
	City    string `json:"city"`
	Zip     string `json:"zip"`
	State   string `json:"state"`
	Country string `json:"country"`
}

func (a *Address) clean() {
	a.Street = core.CleanString(a.Street)
	a.City = core.CleanString(a.City)
	a.Zip = core.CleanString(a.Zip)
	a.State = core.CleanString(a.State)
	a.Country = core.CleanString(a.Country)
}

// Zero ids mean "no reference" in every entity below.
type (
	University struct {
		ID         int64  `json:"id"`
		Name       string `json:"name"`
		DirectorID int64  `json:"director_id"`
		Address

		// computed on read
		StudentCount    int `json:"student_count"`
		ProfessorCount  int `json:"professor_count"`
		DepartmentCount int `json:"department_count"`
		EnrollmentCount int `json:"enrollment_count"`
	}

	Department struct {
		ID           int64  `json:"id"`
		UniversityID int64  `json:"university_id"`
		Name         string `json:"name"`
		HeadID       int64  `json:"head_id"`

		// computed on read
		ProfessorCount int `json:"professor_count"`
	}

	Professor struct {
		ID           int64  `json:"id"`
		UniversityID int64  `json:"university_id"`
		DepartmentID int64  `json:"department_id"`
		Name         string `json:"name"`
		Email        string `json:"email"`
		UserID       string `json:"user_id"`

		// derived, stored
		IsDepartmentHead bool `json:"is_department_head"`
		// computed on read
		EnrollmentCount int `json:"enrollment_count"`
	}

	Student struct {
		ID           int64  `json:"id"`
		UniversityID int64  `json:"university_id"`
		TutorID      int64  `json:"tutor_id"`
		Name         string `json:"name"`
		Email        string `json:"email"`
		UserID       string `json:"user_id"`
		Active       bool   `json:"active"`
		Address

		// computed on read
		EnrollmentCount int `json:"enrollment_count"`
		GradeCount      int `json:"grade_count"`
	}

	Subject struct {
		ID           int64   `json:"id"`
		UniversityID int64   `json:"university_id"`
		DepartmentID int64   `json:"department_id"`
		Name         string  `json:"name"`
		ProfessorIDs []int64 `json:"professor_ids"` // ordered

		// computed on read
		EnrollmentCount int `json:"enrollment_count"`
	}

	Enrollment struct {
		ID        int64     `json:"id"`
		Code      string    `json:"code"`
		StudentID int64     `json:"student_id"`
		SubjectID int64     `json:"subject_id"`
		Date      time.Time `json:"date"`

		// derived, stored
		UniversityID int64 `json:"university_id"`
		ProfessorID  int64 `json:"professor_id"`
		DepartmentID int64 `json:"department_id"`
	}

	Grade struct {
		ID           int64     `json:"id"`
		StudentID    int64     `json:"student_id"`
		EnrollmentID int64     `json:"enrollment_id"`
		Value        float64   `json:"value"`
		Date         time.Time `json:"date"`

		// derived, stored
		UniversityID int64  `json:"university_id"`
		SubjectID    int64  `json:"subject_id"`
		DisplayName  string `json:"display_name"`
	}

	// GradeReport is one row of the grade aggregation, read-only.
	GradeReport struct {
		ID           int64   `json:"id"` // min grade id of the group
		UniversityID int64   `json:"university_id"`
		ProfessorID  int64   `json:"professor_id"`
		DepartmentID int64   `json:"department_id"`
		StudentID    int64   `json:"student_id"`
		SubjectID    int64   `json:"subject_id"`
		Total        float64 `json:"total"`
		Count        int     `json:"count"`
		Average      float64 `json:"average"`
		Adjusted     float64 `json:"adjusted"`
	}

	// Stats are the public counters of the landing page.
	Stats struct {
		Universities int `json:"universities"`
		Departments  int `json:"departments"`
		Professors   int `json:"professors"`
		Students     int `json:"students"`
		Subjects     int `json:"subjects"`
	}
)

// HasProfessor reports whether pid may teach the subject.
func (s Subject) HasProfessor(pid int64) bool {
	for _, id := range s.ProfessorIDs {
		if id == pid {
			return true
		}
	}
	return false
}

// Input payloads. Derived fields cannot be set through them.
type (
	UniversityData struct {
		Name       string `json:"name" validate:"required,notblank"`
		DirectorID int64  `json:"director_id" validate:"omitempty,min=1"`
		Address
	}

	DepartmentData struct {
		Name         string `json:"name" validate:"required,notblank"`
		UniversityID int64  `json:"university_id" validate:"required"`
		HeadID       int64  `json:"head_id" validate:"omitempty,min=1"`
	}

	ProfessorData struct {
		Name         string `json:"name" validate:"required,notblank"`
		Email        string `json:"email" validate:"required,email"`
		UniversityID int64  `json:"university_id" validate:"required"`
		DepartmentID int64  `json:"department_id" validate:"omitempty,min=1"`
	}

	StudentData struct {
		Name         string `json:"name" validate:"required,notblank"`
		Email        string `json:"email" validate:"required,email"`
		UniversityID int64  `json:"university_id" validate:"required"`
		TutorID      int64  `json:"tutor_id" validate:"omitempty,min=1"`
		Active       *bool  `json:"active"`
		Address
	}

	SubjectData struct {
		Name         string  `json:"name" validate:"required,notblank"`
		UniversityID int64   `json:"university_id" validate:"required"`
		DepartmentID int64   `json:"department_id" validate:"required"`
		ProfessorIDs []int64 `json:"professor_ids" validate:"dive,min=1"`
	}

	EnrollmentData struct {
		Code      string `json:"code"` // generated when empty or "New"
		StudentID int64  `json:"student_id" validate:"required"`
		SubjectID int64  `json:"subject_id" validate:"required"`
		Date      string `json:"date" validate:"omitempty,datetime=2006-01-02"`
	}

	GradeData struct {
		StudentID    int64   `json:"student_id" validate:"required"`
		EnrollmentID int64   `json:"enrollment_id" validate:"required"`
		Value        float64 `json:"value" validate:"grade"`
		Date         string  `json:"date" validate:"omitempty,datetime=2006-01-02"`
	}
)

func (d *UniversityData) Clean() {
	d.Name = core.CleanString(d.Name)
	d.Address.clean()
}

func (d *DepartmentData) Clean() {
	d.Name = core.CleanString(d.Name)
}

func (d *ProfessorData) Clean() {
	d.Name = core.CleanString(d.Name)
	d.Email = core.CleanString(d.Email, true /* lower */)
}

func (d *StudentData) Clean() {
	d.Name = core.CleanString(d.Name)
	d.Email = core.CleanString(d.Email, true /* lower */)
	d.Address.clean()
}

func (d *SubjectData) Clean() {
	d.Name = core.CleanString(d.Name)
}

func (d *EnrollmentData) Clean() {
	d.Code = core.CleanString(d.Code)
	d.Date = core.CleanString(d.Date)
}

func (d *GradeData) Clean() {
	d.Date = core.CleanString(d.Date)
}

// parseDate parses an input date, defaulting to today.
func parseDate(s string, today time.Time) (time.Time, error) {
	if s == "" {
		return truncateDay(today), nil
	}
	return time.Parse(DateLayout, s)
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Filters
type (
	UniversityFilter struct {
		// Search matches the name or the city, case-insensitively.
		Search     string `query:"search"`
		DirectorID int64  `query:"director_id"`
	}

	DepartmentFilter struct {
		UniversityID int64 `query:"university_id"`
		HeadID       int64 `query:"head_id"`
	}

	ProfessorFilter struct {
		// Search matches the name, the department name or a taught subject name, case-insensitively.
		Search       string `query:"search"`
		UniversityID int64  `query:"university_id"`
		DepartmentID int64  `query:"department_id"`
	}

	StudentFilter struct {
		// Search matches the name, the tutor name or an enrolled subject name, case-insensitively.
		Search          string `query:"search"`
		UniversityID    int64  `query:"university_id"`
		TutorID         int64  `query:"tutor_id"`
		IncludeInactive bool   `query:"include_inactive"`
	}

	SubjectFilter struct {
		UniversityID int64 `query:"university_id"`
		DepartmentID int64 `query:"department_id"`
		ProfessorID  int64 `query:"professor_id"`
	}

	EnrollmentFilter struct {
		UniversityID int64 `query:"university_id"`
		StudentID    int64 `query:"student_id"`
		SubjectID    int64 `query:"subject_id"`
		ProfessorID  int64 `query:"professor_id"`
		DepartmentID int64 `query:"department_id"`
		Year         int   `query:"year"`
	}

	GradeFilter struct {
		UniversityID int64  `query:"university_id"`
		StudentID    int64  `query:"student_id"`
		EnrollmentID int64  `query:"enrollment_id"`
		SubjectID    int64  `query:"subject_id"`
		Status       string `query:"status"` // passed, failed or all (default)

		// MinValue & MaxValue are set from Status: [MinValue, MaxValue)
		MinValue *float64 `query:"-"`
		MaxValue *float64 `query:"-"`
	}

	ReportFilter struct {
		UniversityID int64 `query:"university_id"`
		ProfessorID  int64 `query:"professor_id"`
		DepartmentID int64 `query:"department_id"`
		StudentID    int64 `query:"student_id"`
		SubjectID    int64 `query:"subject_id"`
	}
)

// Grade statuses
const (
	GradeStatusAll    = "all"
	GradeStatusPassed = "passed"
	GradeStatusFailed = "failed"
)

// applyStatus turns Status into a value range around passingGrade.
func (f *GradeFilter) applyStatus(passingGrade float64) error {
	f.MinValue, f.MaxValue = nil, nil
	switch strings.ToLower(core.CleanString(f.Status)) {
	case "", GradeStatusAll:
		f.Status = GradeStatusAll
	case GradeStatusPassed:
		f.Status = GradeStatusPassed
		f.MinValue = &passingGrade
	case GradeStatusFailed:
		f.Status = GradeStatusFailed
		f.MaxValue = &passingGrade
	default:
		return core.NewValidationError(nil, core.FieldError{Field: "status", Error: "must be one of passed, failed or all"})
	}
	return nil
}

// Match reports whether g passes the filter.
func (f GradeFilter) Match(g Grade) bool {
	return (f.UniversityID == 0 || g.UniversityID == f.UniversityID) &&
		(f.StudentID == 0 || g.StudentID == f.StudentID) &&
		(f.EnrollmentID == 0 || g.EnrollmentID == f.EnrollmentID) &&
		(f.SubjectID == 0 || g.SubjectID == f.SubjectID) &&
		(f.MinValue == nil || g.Value >= *f.MinValue) &&
		(f.MaxValue == nil || g.Value < *f.MaxValue)
}

// Match reports whether e passes the filter.
func (f EnrollmentFilter) Match(e Enrollment) bool {
	return (f.UniversityID == 0 || e.UniversityID == f.UniversityID) &&
		(f.StudentID == 0 || e.StudentID == f.StudentID) &&
		(f.SubjectID == 0 || e.SubjectID == f.SubjectID) &&
		(f.ProfessorID == 0 || e.ProfessorID == f.ProfessorID) &&
		(f.DepartmentID == 0 || e.DepartmentID == f.DepartmentID) &&
		(f.Year == 0 || e.Date.Year() == f.Year)
}

// Match reports whether r passes the filter.
func (f ReportFilter) Match(r GradeReport) bool {
	return (f.UniversityID == 0 || r.UniversityID == f.UniversityID) &&
		(f.ProfessorID == 0 || r.ProfessorID == f.ProfessorID) &&
		(f.DepartmentID == 0 || r.DepartmentID == f.DepartmentID) &&
		(f.StudentID == 0 || r.StudentID == f.StudentID) &&
		(f.SubjectID == 0 || r.SubjectID == f.SubjectID)
}

package campus

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/universidad/core"
	"github.com/trezcool/universidad/core/account"
)

// AccountProvisioner creates & maintains the accounts linked to professors and students.
type AccountProvisioner interface {
	CheckLoginAvailable(ctx context.Context, login string, excludedIDs ...string) error
	Provision(ctx context.Context, name, login string, roles ...string) (account.User, error)
	ChangeLogin(ctx context.Context, id, login string) (account.User, error)
	Get(ctx context.Context, id string) (account.User, error)
	Delete(ctx context.Context, ids ...string) error
	PasswordResetLink(usr account.User) string
}

// Service orchestrates every write on campus records: each one is staged in a transaction,
// derived fields are recomputed & invariants validated before commit.
type Service struct {
	store        Store
	accounts     AccountProvisioner
	mailSvc      core.EmailService
	logger       core.Logger
	sequencer    Sequencer
	passingGrade float64
	now          func() time.Time // mockable
}

func NewService(store Store, accounts AccountProvisioner, mailSvc core.EmailService, conf *core.Config, logger core.Logger) *Service {
	return &Service{
		store:        store,
		accounts:     accounts,
		mailSvc:      mailSvc,
		logger:       logger,
		passingGrade: conf.PassingGrade,
		now:          time.Now,
	}
}

// UseSequencer makes enrollment numbering allocate its sequences from seq instead of the store.
func (svc *Service) UseSequencer(seq Sequencer) {
	svc.sequencer = seq
}

func (svc *Service) today() time.Time {
	return truncateDay(svc.now())
}

type reference struct {
	name  string
	count int
}

// restricted reports the first non-empty reference, in the given order.
func restricted(what string, refs ...reference) error {
	for _, ref := range refs {
		if name, cnt := ref.name, ref.count; cnt > 0 {
			return core.NewValidationError(
				errors.Wrapf(ErrRestricted, "%s is referenced by %d %s", what, cnt, name),
				core.FieldError{Field: "id", Error: fmt.Sprintf("cannot delete a %s still referenced by %s", what, name)},
			)
		}
	}
	return nil
}

// Universities

func (svc *Service) GetUniversity(ctx context.Context, id int64) (u University, err error) {
	err = svc.store.View(ctx, func(repo Repository) error {
		u, err = repo.GetUniversity(ctx, id)
		return err
	})
	return u, err
}

func (svc *Service) QueryUniversities(ctx context.Context, filter UniversityFilter) (unis []University, err error) {
	err = svc.store.View(ctx, func(repo Repository) error {
		unis, err = repo.QueryUniversities(ctx, filter)
		return err
	})
	return unis, err
}

func (svc *Service) CreateUniversity(ctx context.Context, data UniversityData) (University, error) {
	return svc.saveUniversity(ctx, University{}, data)
}

func (svc *Service) UpdateUniversity(ctx context.Context, id int64, data UniversityData) (University, error) {
	return svc.saveUniversity(ctx, University{ID: id}, data)
}

func (svc *Service) saveUniversity(ctx context.Context, u University, data UniversityData) (University, error) {
	err := svc.store.WithinTx(ctx, func(repo Repository) error {
		if u.ID != 0 {
			var err error
			if u, err = repo.GetUniversity(ctx, u.ID); err != nil {
				return err
			}
		}
		u.Name = data.Name
		u.DirectorID = data.DirectorID
		u.Address = data.Address
		if err := validateUniversity(ctx, repo, u); err != nil {
			return err
		}

		saved, err := repo.SaveUniversity(ctx, u)
		if err != nil {
			return errors.Wrap(err, "saving university")
		}
		u, err = repo.GetUniversity(ctx, saved.ID)
		return err
	})
	return u, err
}

// DeleteUniversity fails with a validation error while departments, professors, students or subjects reference it.
func (svc *Service) DeleteUniversity(ctx context.Context, id int64) error {
	return svc.store.WithinTx(ctx, func(repo Repository) error {
		u, err := repo.GetUniversity(ctx, id)
		if err != nil {
			return err
		}
		subjects, err := repo.QuerySubjects(ctx, SubjectFilter{UniversityID: id})
		if err != nil {
			return errors.Wrap(err, "querying subjects")
		}
		students, err := repo.QueryStudents(ctx, StudentFilter{UniversityID: id, IncludeInactive: true})
		if err != nil {
			return errors.Wrap(err, "querying students")
		}
		if err = restricted("university",
			reference{"departments", u.DepartmentCount},
			reference{"professors", u.ProfessorCount},
			reference{"students", len(students)},
			reference{"subjects", len(subjects)},
		); err != nil {
			return err
		}
		return errors.Wrap(repo.DeleteUniversity(ctx, id), "deleting university")
	})
}

// Departments

func (svc *Service) GetDepartment(ctx context.Context, id int64) (d Department, err error) {
	err = svc.store.View(ctx, func(repo Repository) error {
		d, err = repo.GetDepartment(ctx, id)
		return err
	})
	return d, err
}

func (svc *Service) QueryDepartments(ctx context.Context, filter DepartmentFilter) (deps []Department, err error) {
	err = svc.store.View(ctx, func(repo Repository) error {
		deps, err = repo.QueryDepartments(ctx, filter)
		return err
	})
	return deps, err
}

func (svc *Service) CreateDepartment(ctx context.Context, data DepartmentData) (Department, error) {
	return svc.saveDepartment(ctx, Department{}, data)
}

func (svc *Service) UpdateDepartment(ctx context.Context, id int64, data DepartmentData) (Department, error) {
	return svc.saveDepartment(ctx, Department{ID: id}, data)
}

func (svc *Service) saveDepartment(ctx context.Context, d Department, data DepartmentData) (Department, error) {
	err := svc.store.WithinTx(ctx, func(repo Repository) error {
		var old Department
		if d.ID != 0 {
			var err error
			if old, err = repo.GetDepartment(ctx, d.ID); err != nil {
				return err
			}
			d = old
		}
		d.Name = data.Name
		d.UniversityID = data.UniversityID
		d.HeadID = data.HeadID
		if err := validateDepartment(ctx, repo, d); err != nil {
			return err
		}

		if d.ID != 0 && old.UniversityID != d.UniversityID {
			subjects, err := repo.QuerySubjects(ctx, SubjectFilter{DepartmentID: d.ID})
			if err != nil {
				return errors.Wrap(err, "querying subjects")
			}
			if old.ProfessorCount > 0 || len(subjects) > 0 {
				return invalid("university_id", "cannot move a department holding professors or subjects to another university")
			}
		}

		saved, err := repo.SaveDepartment(ctx, d)
		if err != nil {
			return errors.Wrap(err, "saving department")
		}
		if old.HeadID != saved.HeadID {
			if err = deriveDepartmentHead(ctx, repo, old.HeadID); err != nil {
				return err
			}
			if err = deriveDepartmentHead(ctx, repo, saved.HeadID); err != nil {
				return err
			}
		}
		d, err = repo.GetDepartment(ctx, saved.ID)
		return err
	})
	return d, err
}

// DeleteDepartment fails with a validation error while professors or subjects reference it.
func (svc *Service) DeleteDepartment(ctx context.Context, id int64) error {
	return svc.store.WithinTx(ctx, func(repo Repository) error {
		d, err := repo.GetDepartment(ctx, id)
		if err != nil {
			return err
		}
		subjects, err := repo.QuerySubjects(ctx, SubjectFilter{DepartmentID: id})
		if err != nil {
			return errors.Wrap(err, "querying subjects")
		}
		if err = restricted("department",
			reference{"professors", d.ProfessorCount},
			reference{"subjects", len(subjects)},
		); err != nil {
			return err
		}
		if err = repo.DeleteDepartment(ctx, id); err != nil {
			return errors.Wrap(err, "deleting department")
		}
		return deriveDepartmentHead(ctx, repo, d.HeadID)
	})
}

// Subjects

func (svc *Service) GetSubject(ctx context.Context, id int64) (s Subject, err error) {
	err = svc.store.View(ctx, func(repo Repository) error {
		s, err = repo.GetSubject(ctx, id)
		return err
	})
	return s, err
}

func (svc *Service) QuerySubjects(ctx context.Context, filter SubjectFilter) (subjects []Subject, err error) {
	err = svc.store.View(ctx, func(repo Repository) error {
		subjects, err = repo.QuerySubjects(ctx, filter)
		return err
	})
	return subjects, err
}

func (svc *Service) CreateSubject(ctx context.Context, data SubjectData) (Subject, error) {
	return svc.saveSubject(ctx, Subject{}, data)
}

// UpdateSubject also refreshes the enrollments & grades deriving from the subject.
func (svc *Service) UpdateSubject(ctx context.Context, id int64, data SubjectData) (Subject, error) {
	return svc.saveSubject(ctx, Subject{ID: id}, data)
}

func (svc *Service) saveSubject(ctx context.Context, s Subject, data SubjectData) (Subject, error) {
	err := svc.store.WithinTx(ctx, func(repo Repository) error {
		var old Subject
		if s.ID != 0 {
			var err error
			if old, err = repo.GetSubject(ctx, s.ID); err != nil {
				return err
			}
			s = old
		}
		s.Name = data.Name
		s.UniversityID = data.UniversityID
		s.DepartmentID = data.DepartmentID
		s.ProfessorIDs = append([]int64(nil), data.ProfessorIDs...)
		if err := validateSubject(ctx, repo, s); err != nil {
			return err
		}

		saved, err := repo.SaveSubject(ctx, s)
		if err != nil {
			return errors.Wrap(err, "saving subject")
		}
		if old.ID != 0 {
			if err = propagate(ctx, repo, saved.ID, subjectChanges(old, saved)...); err != nil {
				return err
			}
		}
		s, err = repo.GetSubject(ctx, saved.ID)
		return err
	})
	return s, err
}

// DeleteSubject fails with a validation error while enrollments reference it.
func (svc *Service) DeleteSubject(ctx context.Context, id int64) error {
	return svc.store.WithinTx(ctx, func(repo Repository) error {
		s, err := repo.GetSubject(ctx, id)
		if err != nil {
			return err
		}
		if err = restricted("subject", reference{"enrollments", s.EnrollmentCount}); err != nil {
			return err
		}
		return errors.Wrap(repo.DeleteSubject(ctx, id), "deleting subject")
	})
}

// Enrollments

func (svc *Service) GetEnrollment(ctx context.Context, id int64) (e Enrollment, err error) {
	err = svc.store.View(ctx, func(repo Repository) error {
		e, err = repo.GetEnrollment(ctx, id)
		return err
	})
	return e, err
}

func (svc *Service) QueryEnrollments(ctx context.Context, filter EnrollmentFilter) (enrollments []Enrollment, err error) {
	err = svc.store.View(ctx, func(repo Repository) error {
		enrollments, err = repo.QueryEnrollments(ctx, filter)
		return err
	})
	return enrollments, err
}

// CreateEnrollment numbers the enrollment unless its code is given.
func (svc *Service) CreateEnrollment(ctx context.Context, data EnrollmentData) (Enrollment, error) {
	return svc.saveEnrollment(ctx, Enrollment{}, data)
}

// UpdateEnrollment keeps the current code unless a new one is given.
func (svc *Service) UpdateEnrollment(ctx context.Context, id int64, data EnrollmentData) (Enrollment, error) {
	return svc.saveEnrollment(ctx, Enrollment{ID: id}, data)
}

func (svc *Service) saveEnrollment(ctx context.Context, e Enrollment, data EnrollmentData) (Enrollment, error) {
	date, err := parseDate(data.Date, svc.today())
	if err != nil {
		return Enrollment{}, invalid("date", "invalid date")
	}

	err = svc.store.WithinTx(ctx, func(repo Repository) error {
		var old Enrollment
		if e.ID != 0 {
			var err error
			if old, err = repo.GetEnrollment(ctx, e.ID); err != nil {
				return err
			}
			e = old
		}
		if !needsCode(data.Code) {
			e.Code = data.Code
		}
		e.StudentID = data.StudentID
		e.SubjectID = data.SubjectID
		e.Date = date

		if err := deriveEnrollment(ctx, repo, &e); err != nil {
			return err
		}
		if err := validateEnrollment(ctx, repo, e); err != nil {
			return err
		}
		if err := svc.numberEnrollment(ctx, repo, &e); err != nil {
			return err
		}
		if e.Code != old.Code {
			exists, err := repo.EnrollmentCodeExists(ctx, e.Code, e.ID)
			if err != nil {
				return errors.Wrap(err, "checking enrollment code")
			}
			if exists {
				return core.NewValidationError(ErrDuplicateCode, core.FieldError{Field: "code", Error: ErrDuplicateCode.Error()})
			}
		}

		saved, err := repo.SaveEnrollment(ctx, e)
		if err != nil {
			if errors.Cause(err) == ErrDuplicateCode {
				return core.NewValidationError(err, core.FieldError{Field: "code", Error: ErrDuplicateCode.Error()})
			}
			return errors.Wrap(err, "saving enrollment")
		}
		if old.ID != 0 {
			if err = propagate(ctx, repo, saved.ID, enrollmentChanges(old, saved)...); err != nil {
				return err
			}
		}
		e = saved
		return nil
	})
	return e, err
}

// DeleteEnrollment deletes the enrollment and its grades.
func (svc *Service) DeleteEnrollment(ctx context.Context, id int64) error {
	return svc.store.WithinTx(ctx, func(repo Repository) error {
		if _, err := repo.GetEnrollment(ctx, id); err != nil {
			return err
		}
		return deleteEnrollment(ctx, repo, id)
	})
}

func deleteEnrollment(ctx context.Context, repo Repository, id int64) error {
	grades, err := repo.QueryGrades(ctx, GradeFilter{EnrollmentID: id})
	if err != nil {
		return errors.Wrap(err, "querying grades")
	}
	for _, g := range grades {
		if err = repo.DeleteGrade(ctx, g.ID); err != nil {
			return errors.Wrap(err, "deleting grade")
		}
	}
	return errors.Wrap(repo.DeleteEnrollment(ctx, id), "deleting enrollment")
}

// AdjustEnrollmentDraft applies the interactive adjustments to an enrollment being edited.
func (svc *Service) AdjustEnrollmentDraft(ctx context.Context, draft EnrollmentData) (adjusted EnrollmentData, err error) {
	err = svc.store.View(ctx, func(repo Repository) error {
		adjusted, err = AdjustEnrollmentDraft(ctx, repo, draft)
		return err
	})
	return adjusted, err
}

// Grades

func (svc *Service) GetGrade(ctx context.Context, id int64) (g Grade, err error) {
	err = svc.store.View(ctx, func(repo Repository) error {
		g, err = repo.GetGrade(ctx, id)
		return err
	})
	return g, err
}

// QueryGrades filters grades; filter.Status selects passed or failed grades.
func (svc *Service) QueryGrades(ctx context.Context, filter GradeFilter) (grades []Grade, err error) {
	if err = filter.applyStatus(svc.passingGrade); err != nil {
		return nil, err
	}
	err = svc.store.View(ctx, func(repo Repository) error {
		grades, err = repo.QueryGrades(ctx, filter)
		return err
	})
	return grades, err
}

func (svc *Service) CreateGrade(ctx context.Context, data GradeData) (Grade, error) {
	return svc.saveGrade(ctx, Grade{}, data)
}

func (svc *Service) UpdateGrade(ctx context.Context, id int64, data GradeData) (Grade, error) {
	return svc.saveGrade(ctx, Grade{ID: id}, data)
}

func (svc *Service) saveGrade(ctx context.Context, g Grade, data GradeData) (Grade, error) {
	date, err := parseDate(data.Date, svc.today())
	if err != nil {
		return Grade{}, invalid("date", "invalid date")
	}

	err = svc.store.WithinTx(ctx, func(repo Repository) error {
		if g.ID != 0 {
			var err error
			if g, err = repo.GetGrade(ctx, g.ID); err != nil {
				return err
			}
		}
		g.StudentID = data.StudentID
		g.EnrollmentID = data.EnrollmentID
		g.Value = data.Value
		g.Date = date

		if err := deriveGrade(ctx, repo, &g); err != nil {
			return err
		}
		if err := validateGrade(ctx, repo, g); err != nil {
			return err
		}
		saved, err := repo.SaveGrade(ctx, g)
		if err != nil {
			return errors.Wrap(err, "saving grade")
		}
		g = saved
		return nil
	})
	return g, err
}

func (svc *Service) DeleteGrade(ctx context.Context, id int64) error {
	return svc.store.WithinTx(ctx, func(repo Repository) error {
		if _, err := repo.GetGrade(ctx, id); err != nil {
			return err
		}
		return errors.Wrap(repo.DeleteGrade(ctx, id), "deleting grade")
	})
}

// AdjustGradeDraft applies the interactive adjustments to a grade being edited.
func (svc *Service) AdjustGradeDraft(ctx context.Context, draft GradeData) (adjusted GradeData, err error) {
	err = svc.store.View(ctx, func(repo Repository) error {
		adjusted, err = AdjustGradeDraft(ctx, repo, draft)
		return err
	})
	return adjusted, err
}

// Reports

func (svc *Service) GradeReport(ctx context.Context, filter ReportFilter) (rows []GradeReport, err error) {
	err = svc.store.View(ctx, func(repo Repository) error {
		rows, err = repo.QueryGradeReport(ctx, filter)
		return err
	})
	return rows, err
}

// Stats returns the public counters. Archived students are not counted.
func (svc *Service) Stats(ctx context.Context) (stats Stats, err error) {
	err = svc.store.View(ctx, func(repo Repository) error {
		unis, err := repo.QueryUniversities(ctx, UniversityFilter{})
		if err != nil {
			return errors.Wrap(err, "querying universities")
		}
		deps, err := repo.QueryDepartments(ctx, DepartmentFilter{})
		if err != nil {
			return errors.Wrap(err, "querying departments")
		}
		profs, err := repo.QueryProfessors(ctx, ProfessorFilter{})
		if err != nil {
			return errors.Wrap(err, "querying professors")
		}
		students, err := repo.QueryStudents(ctx, StudentFilter{})
		if err != nil {
			return errors.Wrap(err, "querying students")
		}
		subjects, err := repo.QuerySubjects(ctx, SubjectFilter{})
		if err != nil {
			return errors.Wrap(err, "querying subjects")
		}
		stats = Stats{
			Universities: len(unis),
			Departments:  len(deps),
			Professors:   len(profs),
			Students:     len(students),
			Subjects:     len(subjects),
		}
		return nil
	})
	return stats, err
}

package campus

import (
	"context"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/trezcool/universidad/core"
)

// Stored derived fields. Each rule is a function of its declared sources only:
//
//	Enrollment.UniversityID   <- Student.UniversityID
//	Enrollment.ProfessorID    <- Subject.ProfessorIDs[0]
//	Enrollment.DepartmentID   <- Subject.DepartmentID
//	Grade.UniversityID        <- Enrollment.UniversityID
//	Grade.SubjectID           <- Enrollment.SubjectID
//	Grade.DisplayName         <- Subject.Name, Grade.Value
//	Professor.IsDepartmentHead <- Department.HeadID
//
// Counts are computed on read by the repositories.

// source is a field other records derive from.
type source int

const (
	srcStudentUniversity source = iota + 1
	srcSubjectUniversity
	srcSubjectDepartment
	srcSubjectProfessors
	srcSubjectName
	srcEnrollmentStudent
	srcEnrollmentSubject
)

// target is a set of records whose derived fields must be recomputed.
type target int

const (
	tgtEnrollmentsOfStudent target = iota + 1
	tgtEnrollmentsOfSubject
	tgtGradesOfSubject
	tgtGradesOfEnrollment
)

// observers is the propagation list: the records to refresh when a source changes.
// Refreshing enrollments also refreshes their grades.
var observers = map[source][]target{
	srcStudentUniversity: {tgtEnrollmentsOfStudent},
	srcSubjectUniversity: {tgtEnrollmentsOfSubject}, // invariant check only
	srcSubjectDepartment: {tgtEnrollmentsOfSubject},
	srcSubjectProfessors: {tgtEnrollmentsOfSubject},
	srcSubjectName:       {tgtGradesOfSubject},
	srcEnrollmentStudent: {tgtGradesOfEnrollment},
	srcEnrollmentSubject: {tgtGradesOfEnrollment},
}

var refreshers = map[target]func(ctx context.Context, repo Repository, id int64) error{
	tgtEnrollmentsOfStudent: func(ctx context.Context, repo Repository, id int64) error {
		return refreshEnrollments(ctx, repo, EnrollmentFilter{StudentID: id})
	},
	tgtEnrollmentsOfSubject: func(ctx context.Context, repo Repository, id int64) error {
		return refreshEnrollments(ctx, repo, EnrollmentFilter{SubjectID: id})
	},
	tgtGradesOfSubject: func(ctx context.Context, repo Repository, id int64) error {
		return refreshGrades(ctx, repo, GradeFilter{SubjectID: id})
	},
	tgtGradesOfEnrollment: func(ctx context.Context, repo Repository, id int64) error {
		return refreshGrades(ctx, repo, GradeFilter{EnrollmentID: id})
	},
}

// propagate recomputes the derived fields depending on the changed sources of record id.
func propagate(ctx context.Context, repo Repository, id int64, changed ...source) error {
	done := make(map[target]bool)
	for _, src := range changed {
		for _, tgt := range observers[src] {
			if done[tgt] {
				continue
			}
			done[tgt] = true
			if err := refreshers[tgt](ctx, repo, id); err != nil {
				return err
			}
		}
	}
	return nil
}

func studentChanges(old, cur Student) []source {
	var changed []source
	if old.UniversityID != cur.UniversityID {
		changed = append(changed, srcStudentUniversity)
	}
	return changed
}

func subjectChanges(old, cur Subject) []source {
	var changed []source
	if old.UniversityID != cur.UniversityID {
		changed = append(changed, srcSubjectUniversity)
	}
	if old.DepartmentID != cur.DepartmentID {
		changed = append(changed, srcSubjectDepartment)
	}
	if firstID(old.ProfessorIDs) != firstID(cur.ProfessorIDs) {
		changed = append(changed, srcSubjectProfessors)
	}
	if old.Name != cur.Name {
		changed = append(changed, srcSubjectName)
	}
	return changed
}

func enrollmentChanges(old, cur Enrollment) []source {
	var changed []source
	if old.StudentID != cur.StudentID {
		changed = append(changed, srcEnrollmentStudent)
	}
	if old.SubjectID != cur.SubjectID {
		changed = append(changed, srcEnrollmentSubject)
	}
	return changed
}

// refreshEnrollments re-derives, re-validates and saves the matching enrollments and their grades.
func refreshEnrollments(ctx context.Context, repo Repository, filter EnrollmentFilter) error {
	enrollments, err := repo.QueryEnrollments(ctx, filter)
	if err != nil {
		return errors.Wrap(err, "querying enrollments")
	}
	for _, e := range enrollments {
		if err = deriveEnrollment(ctx, repo, &e); err != nil {
			return err
		}
		if err = validateEnrollment(ctx, repo, e); err != nil {
			return err
		}
		if _, err = repo.SaveEnrollment(ctx, e); err != nil {
			return errors.Wrap(err, "saving enrollment")
		}
		if err = refreshGrades(ctx, repo, GradeFilter{EnrollmentID: e.ID}); err != nil {
			return err
		}
	}
	return nil
}

// refreshGrades re-derives, re-validates and saves the matching grades.
func refreshGrades(ctx context.Context, repo Repository, filter GradeFilter) error {
	grades, err := repo.QueryGrades(ctx, filter)
	if err != nil {
		return errors.Wrap(err, "querying grades")
	}
	for _, g := range grades {
		if err = deriveGrade(ctx, repo, &g); err != nil {
			return err
		}
		if err = validateGrade(ctx, repo, g); err != nil {
			return err
		}
		if _, err = repo.SaveGrade(ctx, g); err != nil {
			return errors.Wrap(err, "saving grade")
		}
	}
	return nil
}

// deriveEnrollment computes the stored derived fields of e from its student and subject.
func deriveEnrollment(ctx context.Context, repo Repository, e *Enrollment) error {
	e.UniversityID, e.ProfessorID, e.DepartmentID = 0, 0, 0

	if e.StudentID != 0 {
		st, err := repo.GetStudent(ctx, e.StudentID)
		if err != nil && !core.IsNotFound(err) {
			return errors.Wrap(err, "finding student")
		}
		e.UniversityID = st.UniversityID
	}
	if e.SubjectID != 0 {
		sub, err := repo.GetSubject(ctx, e.SubjectID)
		if err != nil && !core.IsNotFound(err) {
			return errors.Wrap(err, "finding subject")
		}
		e.ProfessorID = firstID(sub.ProfessorIDs)
		e.DepartmentID = sub.DepartmentID
	}
	return nil
}

// deriveGrade computes the stored derived fields of g from its enrollment.
func deriveGrade(ctx context.Context, repo Repository, g *Grade) error {
	g.UniversityID, g.SubjectID = 0, 0

	var subjectName string
	if g.EnrollmentID != 0 {
		enr, err := repo.GetEnrollment(ctx, g.EnrollmentID)
		if err != nil && !core.IsNotFound(err) {
			return errors.Wrap(err, "finding enrollment")
		}
		g.UniversityID = enr.UniversityID
		g.SubjectID = enr.SubjectID

		if enr.SubjectID != 0 {
			sub, err := repo.GetSubject(ctx, enr.SubjectID)
			if err != nil && !core.IsNotFound(err) {
				return errors.Wrap(err, "finding subject")
			}
			subjectName = sub.Name
		}
	}
	g.DisplayName = GradeDisplayName(subjectName, g.Value)
	return nil
}

// deriveDepartmentHead recomputes Professor.IsDepartmentHead of professorID.
func deriveDepartmentHead(ctx context.Context, repo Repository, professorID int64) error {
	if professorID == 0 {
		return nil
	}
	prof, err := repo.GetProfessor(ctx, professorID)
	if err != nil {
		if core.IsNotFound(err) {
			return nil
		}
		return errors.Wrap(err, "finding professor")
	}
	deps, err := repo.QueryDepartments(ctx, DepartmentFilter{HeadID: professorID})
	if err != nil {
		return errors.Wrap(err, "querying departments")
	}
	if isHead := len(deps) > 0; prof.IsDepartmentHead != isHead {
		prof.IsDepartmentHead = isHead
		if _, err = repo.SaveProfessor(ctx, prof); err != nil {
			return errors.Wrap(err, "saving professor")
		}
	}
	return nil
}

// GradeDisplayName returns "<subject> / <value>", eg. "Mathematics / 8.0".
func GradeDisplayName(subject string, value float64) string {
	if subject == "" {
		return FormatGrade(value)
	}
	return subject + " / " + FormatGrade(value)
}

// FormatGrade prints value in its shortest form with at least one decimal digit.
func FormatGrade(value float64) string {
	s := strconv.FormatFloat(value, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

func firstID(ids []int64) int64 {
	if len(ids) == 0 {
		return 0
	}
	return ids[0]
}

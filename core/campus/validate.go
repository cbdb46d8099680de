package campus

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	"github.com/trezcool/universidad/core"
)

// invalid returns a validation error on field.
func invalid(field, format string, args ...interface{}) error {
	return core.NewValidationError(nil, core.FieldError{Field: field, Error: fmt.Sprintf(format, args...)})
}

// lookupErr turns a not found error on a referenced record into a validation error on field.
func lookupErr(err error, field, what string) error {
	if core.IsNotFound(err) {
		return invalid(field, "%s not found", what)
	}
	return errors.Wrap(err, "finding "+what)
}

// validateEnrollment enforces the university-match rule: the student and the subject share a university.
func validateEnrollment(ctx context.Context, repo Repository, e Enrollment) error {
	st, err := repo.GetStudent(ctx, e.StudentID)
	if err != nil {
		return lookupErr(err, "student_id", "student")
	}
	sub, err := repo.GetSubject(ctx, e.SubjectID)
	if err != nil {
		return lookupErr(err, "subject_id", "subject")
	}
	if st.UniversityID != sub.UniversityID {
		return core.NewValidationError(
			errors.Errorf("student %q and subject %q belong to different universities", st.Name, sub.Name),
			core.FieldError{Field: "subject_id", Error: "the student and the subject must belong to the same university"},
		)
	}
	return nil
}

// validateGrade enforces the student-enrollment-match rule: the grade's student is the enrollment's student.
func validateGrade(ctx context.Context, repo Repository, g Grade) error {
	if _, err := repo.GetStudent(ctx, g.StudentID); err != nil {
		return lookupErr(err, "student_id", "student")
	}
	enr, err := repo.GetEnrollment(ctx, g.EnrollmentID)
	if err != nil {
		return lookupErr(err, "enrollment_id", "enrollment")
	}
	if enr.StudentID != g.StudentID {
		return core.NewValidationError(
			errors.Errorf("enrollment %q does not belong to student #%d", enr.Code, g.StudentID),
			core.FieldError{Field: "enrollment_id", Error: "the enrollment must belong to the grade's student"},
		)
	}
	return nil
}

// validateDepartment checks that the department's university exists and that its head is one of its professors.
func validateDepartment(ctx context.Context, repo Repository, d Department) error {
	if _, err := repo.GetUniversity(ctx, d.UniversityID); err != nil {
		return lookupErr(err, "university_id", "university")
	}
	if d.HeadID == 0 {
		return nil
	}
	head, err := repo.GetProfessor(ctx, d.HeadID)
	if err != nil {
		return lookupErr(err, "head_id", "professor")
	}
	if head.UniversityID != d.UniversityID {
		return invalid("head_id", "the head must be a professor of the department's university")
	}
	return nil
}

// validateProfessor checks that the professor's department belongs to the professor's university.
func validateProfessor(ctx context.Context, repo Repository, p Professor) error {
	if _, err := repo.GetUniversity(ctx, p.UniversityID); err != nil {
		return lookupErr(err, "university_id", "university")
	}
	if p.DepartmentID == 0 {
		return nil
	}
	dep, err := repo.GetDepartment(ctx, p.DepartmentID)
	if err != nil {
		return lookupErr(err, "department_id", "department")
	}
	if dep.UniversityID != p.UniversityID {
		return invalid("department_id", "the department must belong to the professor's university")
	}
	return nil
}

func validateStudent(ctx context.Context, repo Repository, s Student) error {
	if _, err := repo.GetUniversity(ctx, s.UniversityID); err != nil {
		return lookupErr(err, "university_id", "university")
	}
	if s.TutorID != 0 {
		if _, err := repo.GetProfessor(ctx, s.TutorID); err != nil {
			return lookupErr(err, "tutor_id", "professor")
		}
	}
	return nil
}

// validateUniversity checks that the director is a professor of the university.
func validateUniversity(ctx context.Context, repo Repository, u University) error {
	if u.DirectorID == 0 {
		return nil
	}
	director, err := repo.GetProfessor(ctx, u.DirectorID)
	if err != nil {
		return lookupErr(err, "director_id", "professor")
	}
	if director.UniversityID != u.ID {
		return invalid("director_id", "the director must be a professor of the university")
	}
	return nil
}

// validateSubject checks that the subject's department belongs to its university
// and that its professors belong to its department.
func validateSubject(ctx context.Context, repo Repository, s Subject) error {
	if _, err := repo.GetUniversity(ctx, s.UniversityID); err != nil {
		return lookupErr(err, "university_id", "university")
	}
	dep, err := repo.GetDepartment(ctx, s.DepartmentID)
	if err != nil {
		return lookupErr(err, "department_id", "department")
	}
	if dep.UniversityID != s.UniversityID {
		return invalid("department_id", "the department must belong to the subject's university")
	}

	seen := make(map[int64]bool, len(s.ProfessorIDs))
	for _, pid := range s.ProfessorIDs {
		if seen[pid] {
			return invalid("professor_ids", "professor #%d is listed twice", pid)
		}
		seen[pid] = true

		prof, err := repo.GetProfessor(ctx, pid)
		if err != nil {
			return lookupErr(err, "professor_ids", "professor")
		}
		if prof.DepartmentID != s.DepartmentID {
			return invalid("professor_ids", "professor %q does not belong to the subject's department", prof.Name)
		}
	}
	return nil
}

// AdjustEnrollmentDraft clears the subject of a draft enrollment whose student belongs to another university.
// It never fails on unknown references: the draft is returned as is.
func AdjustEnrollmentDraft(ctx context.Context, repo Repository, draft EnrollmentData) (EnrollmentData, error) {
	if draft.StudentID == 0 || draft.SubjectID == 0 {
		return draft, nil
	}
	st, err := repo.GetStudent(ctx, draft.StudentID)
	if err != nil {
		return draft, ignoreNotFound(err)
	}
	sub, err := repo.GetSubject(ctx, draft.SubjectID)
	if err != nil {
		return draft, ignoreNotFound(err)
	}
	if st.UniversityID != sub.UniversityID {
		draft.SubjectID = 0
	}
	return draft, nil
}

// AdjustGradeDraft clears the enrollment of a draft grade when it does not belong to the draft's student.
func AdjustGradeDraft(ctx context.Context, repo Repository, draft GradeData) (GradeData, error) {
	if draft.EnrollmentID == 0 {
		return draft, nil
	}
	enr, err := repo.GetEnrollment(ctx, draft.EnrollmentID)
	if err != nil {
		return draft, ignoreNotFound(err)
	}
	if enr.StudentID != draft.StudentID {
		draft.EnrollmentID = 0
	}
	return draft, nil
}

func ignoreNotFound(err error) error {
	if core.IsNotFound(err) {
		return nil
	}
	return err
}

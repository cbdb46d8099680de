package campus

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/universidad/core"
	"github.com/trezcool/universidad/core/account"
)

// Professors

func (svc *Service) GetProfessor(ctx context.Context, id int64) (p Professor, err error) {
	err = svc.store.View(ctx, func(repo Repository) error {
		p, err = repo.GetProfessor(ctx, id)
		return err
	})
	return p, err
}

func (svc *Service) QueryProfessors(ctx context.Context, filter ProfessorFilter) (profs []Professor, err error) {
	err = svc.store.View(ctx, func(repo Repository) error {
		profs, err = repo.QueryProfessors(ctx, filter)
		return err
	})
	return profs, err
}

// CreateProfessor creates the professor and provisions its account (login = email, role professor).
// The professor is removed if the account cannot be provisioned.
func (svc *Service) CreateProfessor(ctx context.Context, data ProfessorData) (Professor, error) {
	if err := svc.accounts.CheckLoginAvailable(ctx, data.Email); err != nil {
		return Professor{}, err
	}

	var p Professor
	err := svc.store.WithinTx(ctx, func(repo Repository) error {
		p = Professor{
			Name:         data.Name,
			Email:        data.Email,
			UniversityID: data.UniversityID,
			DepartmentID: data.DepartmentID,
		}
		if err := validateProfessor(ctx, repo, p); err != nil {
			return err
		}
		var err error
		p, err = repo.SaveProfessor(ctx, p)
		return errors.Wrap(err, "saving professor")
	})
	if err != nil {
		return Professor{}, err
	}

	usr, err := svc.accounts.Provision(ctx, p.Name, p.Email, account.RoleProfessor)
	if err != nil {
		svc.rollbackProfessor(ctx, p.ID, "")
		return Professor{}, err
	}

	err = svc.store.WithinTx(ctx, func(repo Repository) error {
		cur, err := repo.GetProfessor(ctx, p.ID)
		if err != nil {
			return err
		}
		cur.UserID = usr.ID
		p, err = repo.SaveProfessor(ctx, cur)
		return errors.Wrap(err, "linking account")
	})
	if err != nil {
		svc.rollbackProfessor(ctx, p.ID, usr.ID)
		return Professor{}, err
	}
	return p, nil
}

func (svc *Service) rollbackProfessor(ctx context.Context, id int64, userID string) {
	if userID != "" {
		if err := svc.accounts.Delete(ctx, userID); err != nil {
			svc.logger.Error("removing provisioned account", err)
		}
	}
	err := svc.store.WithinTx(ctx, func(repo Repository) error {
		return repo.DeleteProfessor(ctx, id)
	})
	if err != nil {
		svc.logger.Error("removing professor without account", err)
	}
}

// UpdateProfessor re-validates the departments it heads, the subjects it teaches and the university it directs.
// A new email becomes the login of the linked account.
func (svc *Service) UpdateProfessor(ctx context.Context, id int64, data ProfessorData) (Professor, error) {
	var p, old Professor
	err := svc.store.WithinTx(ctx, func(repo Repository) error {
		var err error
		if old, err = repo.GetProfessor(ctx, id); err != nil {
			return err
		}
		p = old
		p.Name = data.Name
		p.Email = data.Email
		p.UniversityID = data.UniversityID
		p.DepartmentID = data.DepartmentID
		if err = validateProfessor(ctx, repo, p); err != nil {
			return err
		}
		if p.Email != old.Email && p.UserID != "" {
			if err = svc.accounts.CheckLoginAvailable(ctx, p.Email, p.UserID); err != nil {
				return err
			}
		}

		if p, err = repo.SaveProfessor(ctx, p); err != nil {
			return errors.Wrap(err, "saving professor")
		}
		if err = svc.checkProfessorReferences(ctx, repo, p); err != nil {
			return err
		}
		p, err = repo.GetProfessor(ctx, p.ID)
		return err
	})
	if err != nil {
		return Professor{}, err
	}

	if p.Email != old.Email && p.UserID != "" {
		if _, err = svc.accounts.ChangeLogin(ctx, p.UserID, p.Email); err != nil {
			svc.restoreProfessorEmail(ctx, p.ID, old.Email)
			return Professor{}, err
		}
	}
	return p, nil
}

func (svc *Service) restoreProfessorEmail(ctx context.Context, id int64, email string) {
	err := svc.store.WithinTx(ctx, func(repo Repository) error {
		p, err := repo.GetProfessor(ctx, id)
		if err != nil {
			return err
		}
		p.Email = email
		_, err = repo.SaveProfessor(ctx, p)
		return err
	})
	if err != nil {
		svc.logger.Error("restoring professor email", err)
	}
}

func (svc *Service) checkProfessorReferences(ctx context.Context, repo Repository, p Professor) error {
	deps, err := repo.QueryDepartments(ctx, DepartmentFilter{HeadID: p.ID})
	if err != nil {
		return errors.Wrap(err, "querying departments")
	}
	for _, d := range deps {
		if err = validateDepartment(ctx, repo, d); err != nil {
			return err
		}
	}

	subjects, err := repo.QuerySubjects(ctx, SubjectFilter{ProfessorID: p.ID})
	if err != nil {
		return errors.Wrap(err, "querying subjects")
	}
	for _, s := range subjects {
		if err = validateSubject(ctx, repo, s); err != nil {
			return err
		}
	}

	unis, err := repo.QueryUniversities(ctx, UniversityFilter{DirectorID: p.ID})
	if err != nil {
		return errors.Wrap(err, "querying universities")
	}
	for _, u := range unis {
		if err = validateUniversity(ctx, repo, u); err != nil {
			return err
		}
	}
	return nil
}

// DeleteProfessor refuses to delete a department head. Otherwise it clears every other reference to
// the professor (university director, student tutor, subject teaching lists) before deleting it,
// then deletes its account.
func (svc *Service) DeleteProfessor(ctx context.Context, id int64) error {
	var p Professor
	err := svc.store.WithinTx(ctx, func(repo Repository) error {
		var err error
		if p, err = repo.GetProfessor(ctx, id); err != nil {
			return err
		}

		deps, err := repo.QueryDepartments(ctx, DepartmentFilter{HeadID: id})
		if err != nil {
			return errors.Wrap(err, "querying departments")
		}
		if err = restricted("professor", reference{"departments (as head)", len(deps)}); err != nil {
			return err
		}

		unis, err := repo.QueryUniversities(ctx, UniversityFilter{DirectorID: id})
		if err != nil {
			return errors.Wrap(err, "querying universities")
		}
		for _, u := range unis {
			u.DirectorID = 0
			if _, err = repo.SaveUniversity(ctx, u); err != nil {
				return errors.Wrap(err, "saving university")
			}
		}

		students, err := repo.QueryStudents(ctx, StudentFilter{TutorID: id, IncludeInactive: true})
		if err != nil {
			return errors.Wrap(err, "querying students")
		}
		for _, st := range students {
			st.TutorID = 0
			if _, err = repo.SaveStudent(ctx, st); err != nil {
				return errors.Wrap(err, "saving student")
			}
		}

		subjects, err := repo.QuerySubjects(ctx, SubjectFilter{ProfessorID: id})
		if err != nil {
			return errors.Wrap(err, "querying subjects")
		}
		for _, old := range subjects {
			s := old
			s.ProfessorIDs = make([]int64, 0, len(old.ProfessorIDs))
			for _, pid := range old.ProfessorIDs {
				if pid != id {
					s.ProfessorIDs = append(s.ProfessorIDs, pid)
				}
			}
			if _, err = repo.SaveSubject(ctx, s); err != nil {
				return errors.Wrap(err, "saving subject")
			}
			if err = propagate(ctx, repo, s.ID, subjectChanges(old, s)...); err != nil {
				return err
			}
		}

		return errors.Wrap(repo.DeleteProfessor(ctx, id), "deleting professor")
	})
	if err != nil {
		return err
	}

	if p.UserID != "" {
		if err = svc.accounts.Delete(ctx, p.UserID); err != nil {
			svc.logger.Error("deleting professor account", err)
		}
	}
	return nil
}

// Students

func (svc *Service) GetStudent(ctx context.Context, id int64) (st Student, err error) {
	err = svc.store.View(ctx, func(repo Repository) error {
		st, err = repo.GetStudent(ctx, id)
		return err
	})
	return st, err
}

// QueryStudents hides archived students unless filter.IncludeInactive is set.
func (svc *Service) QueryStudents(ctx context.Context, filter StudentFilter) (students []Student, err error) {
	err = svc.store.View(ctx, func(repo Repository) error {
		students, err = repo.QueryStudents(ctx, filter)
		return err
	})
	return students, err
}

// CreateStudent creates the student and provisions its portal account (login = email, role student).
// The student is removed if the account cannot be provisioned.
func (svc *Service) CreateStudent(ctx context.Context, data StudentData) (Student, error) {
	if err := svc.accounts.CheckLoginAvailable(ctx, data.Email); err != nil {
		return Student{}, err
	}

	var st Student
	err := svc.store.WithinTx(ctx, func(repo Repository) error {
		st = Student{
			Name:         data.Name,
			Email:        data.Email,
			UniversityID: data.UniversityID,
			TutorID:      data.TutorID,
			Active:       data.Active == nil || *data.Active,
			Address:      data.Address,
		}
		if err := validateStudent(ctx, repo, st); err != nil {
			return err
		}
		var err error
		st, err = repo.SaveStudent(ctx, st)
		return errors.Wrap(err, "saving student")
	})
	if err != nil {
		return Student{}, err
	}

	usr, err := svc.accounts.Provision(ctx, st.Name, st.Email, account.RoleStudent)
	if err != nil {
		svc.rollbackStudent(ctx, st.ID, "")
		return Student{}, err
	}

	err = svc.store.WithinTx(ctx, func(repo Repository) error {
		cur, err := repo.GetStudent(ctx, st.ID)
		if err != nil {
			return err
		}
		cur.UserID = usr.ID
		st, err = repo.SaveStudent(ctx, cur)
		return errors.Wrap(err, "linking account")
	})
	if err != nil {
		svc.rollbackStudent(ctx, st.ID, usr.ID)
		return Student{}, err
	}
	return st, nil
}

func (svc *Service) rollbackStudent(ctx context.Context, id int64, userID string) {
	if userID != "" {
		if err := svc.accounts.Delete(ctx, userID); err != nil {
			svc.logger.Error("removing provisioned account", err)
		}
	}
	err := svc.store.WithinTx(ctx, func(repo Repository) error {
		return repo.DeleteStudent(ctx, id)
	})
	if err != nil {
		svc.logger.Error("removing student without account", err)
	}
}

// UpdateStudent re-derives the student's enrollments & grades when its university changes;
// the write is rejected if an enrollment no longer matches the student's university.
func (svc *Service) UpdateStudent(ctx context.Context, id int64, data StudentData) (Student, error) {
	var st, old Student
	err := svc.store.WithinTx(ctx, func(repo Repository) error {
		var err error
		if old, err = repo.GetStudent(ctx, id); err != nil {
			return err
		}
		st = old
		st.Name = data.Name
		st.Email = data.Email
		st.UniversityID = data.UniversityID
		st.TutorID = data.TutorID
		st.Address = data.Address
		if data.Active != nil {
			st.Active = *data.Active
		}
		if err = validateStudent(ctx, repo, st); err != nil {
			return err
		}
		if st.Email != old.Email && st.UserID != "" {
			if err = svc.accounts.CheckLoginAvailable(ctx, st.Email, st.UserID); err != nil {
				return err
			}
		}

		if st, err = repo.SaveStudent(ctx, st); err != nil {
			return errors.Wrap(err, "saving student")
		}
		if err = propagate(ctx, repo, st.ID, studentChanges(old, st)...); err != nil {
			return err
		}
		st, err = repo.GetStudent(ctx, st.ID)
		return err
	})
	if err != nil {
		return Student{}, err
	}

	if st.Email != old.Email && st.UserID != "" {
		if _, err = svc.accounts.ChangeLogin(ctx, st.UserID, st.Email); err != nil {
			svc.restoreStudentEmail(ctx, st.ID, old.Email)
			return Student{}, err
		}
	}
	return st, nil
}

func (svc *Service) restoreStudentEmail(ctx context.Context, id int64, email string) {
	err := svc.store.WithinTx(ctx, func(repo Repository) error {
		st, err := repo.GetStudent(ctx, id)
		if err != nil {
			return err
		}
		st.Email = email
		_, err = repo.SaveStudent(ctx, st)
		return err
	})
	if err != nil {
		svc.logger.Error("restoring student email", err)
	}
}

// DeleteStudent deletes the student with its enrollments & grades, then its account.
func (svc *Service) DeleteStudent(ctx context.Context, id int64) error {
	var st Student
	err := svc.store.WithinTx(ctx, func(repo Repository) error {
		var err error
		if st, err = repo.GetStudent(ctx, id); err != nil {
			return err
		}

		// grades may point to enrollments of another student until re-validated
		grades, err := repo.QueryGrades(ctx, GradeFilter{StudentID: id})
		if err != nil {
			return errors.Wrap(err, "querying grades")
		}
		for _, g := range grades {
			if err = repo.DeleteGrade(ctx, g.ID); err != nil {
				return errors.Wrap(err, "deleting grade")
			}
		}
		enrollments, err := repo.QueryEnrollments(ctx, EnrollmentFilter{StudentID: id})
		if err != nil {
			return errors.Wrap(err, "querying enrollments")
		}
		for _, e := range enrollments {
			if err = deleteEnrollment(ctx, repo, e.ID); err != nil {
				return err
			}
		}
		return errors.Wrap(repo.DeleteStudent(ctx, id), "deleting student")
	})
	if err != nil {
		return err
	}

	if st.UserID != "" {
		if err = svc.accounts.Delete(ctx, st.UserID); err != nil {
			svc.logger.Error("deleting student account", err)
		}
	}
	return nil
}

// ViewerStudent returns the student linked to the viewer's account, or core.ErrForbidden.
func (svc *Service) ViewerStudent(ctx context.Context, viewer account.User) (st Student, err error) {
	err = svc.store.View(ctx, func(repo Repository) error {
		st, err = repo.GetStudentByUser(ctx, viewer.ID)
		return err
	})
	if core.IsNotFound(err) {
		return Student{}, core.ErrForbidden
	}
	return st, err
}

package inmemdb

import (
	"context"
	"sort"
	"strings"

	"github.com/trezcool/universidad/core/campus"
)

type campusRepository struct {
	st       *state
	readOnly bool
}

var _ campus.Repository = (*campusRepository)(nil)

func (repo *campusRepository) checkWritable() error {
	if repo.readOnly {
		return errReadOnly
	}
	return nil
}

func contains(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

func sortedIDs(n int, each func(func(id int64))) []int64 {
	ids := make([]int64, 0, n)
	each(func(id int64) { ids = append(ids, id) })
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Universities

func (repo *campusRepository) university(u campus.University) campus.University {
	u.StudentCount, u.ProfessorCount, u.DepartmentCount, u.EnrollmentCount = 0, 0, 0, 0
	for _, st := range repo.st.students {
		if st.UniversityID == u.ID {
			u.StudentCount++
		}
	}
	for _, p := range repo.st.professors {
		if p.UniversityID == u.ID {
			u.ProfessorCount++
		}
	}
	for _, d := range repo.st.departments {
		if d.UniversityID == u.ID {
			u.DepartmentCount++
		}
	}
	for _, e := range repo.st.enrollments {
		if e.UniversityID == u.ID {
			u.EnrollmentCount++
		}
	}
	return u
}

func (repo *campusRepository) GetUniversity(ctx context.Context, id int64) (campus.University, error) {
	u, ok := repo.st.universities[id]
	if !ok {
		return campus.University{}, campus.ErrUniversityNotFound
	}
	return repo.university(u), nil
}

func (repo *campusRepository) QueryUniversities(ctx context.Context, filter campus.UniversityFilter) ([]campus.University, error) {
	ids := sortedIDs(len(repo.st.universities), func(add func(int64)) {
		for id := range repo.st.universities {
			add(id)
		}
	})
	unis := make([]campus.University, 0, len(ids))
	for _, id := range ids {
		u := repo.st.universities[id]
		if filter.DirectorID != 0 && u.DirectorID != filter.DirectorID {
			continue
		}
		if filter.Search != "" && !contains(u.Name, filter.Search) && !contains(u.City, filter.Search) {
			continue
		}
		unis = append(unis, repo.university(u))
	}
	return unis, nil
}

func (repo *campusRepository) SaveUniversity(ctx context.Context, u campus.University) (campus.University, error) {
	if err := repo.checkWritable(); err != nil {
		return campus.University{}, err
	}
	if u.ID == 0 {
		u.ID = repo.st.nextID("university")
	} else if _, ok := repo.st.universities[u.ID]; !ok {
		return campus.University{}, campus.ErrUniversityNotFound
	}
	repo.st.universities[u.ID] = u
	return repo.university(u), nil
}

func (repo *campusRepository) DeleteUniversity(ctx context.Context, id int64) error {
	if err := repo.checkWritable(); err != nil {
		return err
	}
	delete(repo.st.universities, id)
	return nil
}

// Departments

func (repo *campusRepository) department(d campus.Department) campus.Department {
	d.ProfessorCount = 0
	for _, p := range repo.st.professors {
		if p.DepartmentID == d.ID {
			d.ProfessorCount++
		}
	}
	return d
}

func (repo *campusRepository) GetDepartment(ctx context.Context, id int64) (campus.Department, error) {
	d, ok := repo.st.departments[id]
	if !ok {
		return campus.Department{}, campus.ErrDepartmentNotFound
	}
	return repo.department(d), nil
}

func (repo *campusRepository) QueryDepartments(ctx context.Context, filter campus.DepartmentFilter) ([]campus.Department, error) {
	ids := sortedIDs(len(repo.st.departments), func(add func(int64)) {
		for id := range repo.st.departments {
			add(id)
		}
	})
	deps := make([]campus.Department, 0, len(ids))
	for _, id := range ids {
		d := repo.st.departments[id]
		if (filter.UniversityID != 0 && d.UniversityID != filter.UniversityID) ||
			(filter.HeadID != 0 && d.HeadID != filter.HeadID) {
			continue
		}
		deps = append(deps, repo.department(d))
	}
	return deps, nil
}

func (repo *campusRepository) SaveDepartment(ctx context.Context, d campus.Department) (campus.Department, error) {
	if err := repo.checkWritable(); err != nil {
		return campus.Department{}, err
	}
	if d.ID == 0 {
		d.ID = repo.st.nextID("department")
	} else if _, ok := repo.st.departments[d.ID]; !ok {
		return campus.Department{}, campus.ErrDepartmentNotFound
	}
	repo.st.departments[d.ID] = d
	return repo.department(d), nil
}

func (repo *campusRepository) DeleteDepartment(ctx context.Context, id int64) error {
	if err := repo.checkWritable(); err != nil {
		return err
	}
	delete(repo.st.departments, id)
	return nil
}

// Professors

func (repo *campusRepository) professor(p campus.Professor) campus.Professor {
	p.EnrollmentCount = 0
	for _, e := range repo.st.enrollments {
		if e.ProfessorID == p.ID {
			p.EnrollmentCount++
		}
	}
	return p
}

func (repo *campusRepository) GetProfessor(ctx context.Context, id int64) (campus.Professor, error) {
	p, ok := repo.st.professors[id]
	if !ok {
		return campus.Professor{}, campus.ErrProfessorNotFound
	}
	return repo.professor(p), nil
}

func (repo *campusRepository) GetProfessorByUser(ctx context.Context, userID string) (campus.Professor, error) {
	if userID != "" {
		for _, p := range repo.st.professors {
			if p.UserID == userID {
				return repo.professor(p), nil
			}
		}
	}
	return campus.Professor{}, campus.ErrProfessorNotFound
}

func (repo *campusRepository) professorMatches(p campus.Professor, search string) bool {
	if contains(p.Name, search) {
		return true
	}
	if d, ok := repo.st.departments[p.DepartmentID]; ok && contains(d.Name, search) {
		return true
	}
	for _, s := range repo.st.subjects {
		if s.HasProfessor(p.ID) && contains(s.Name, search) {
			return true
		}
	}
	return false
}

func (repo *campusRepository) QueryProfessors(ctx context.Context, filter campus.ProfessorFilter) ([]campus.Professor, error) {
	ids := sortedIDs(len(repo.st.professors), func(add func(int64)) {
		for id := range repo.st.professors {
			add(id)
		}
	})
	profs := make([]campus.Professor, 0, len(ids))
	for _, id := range ids {
		p := repo.st.professors[id]
		if (filter.UniversityID != 0 && p.UniversityID != filter.UniversityID) ||
			(filter.DepartmentID != 0 && p.DepartmentID != filter.DepartmentID) ||
			(filter.Search != "" && !repo.professorMatches(p, filter.Search)) {
			continue
		}
		profs = append(profs, repo.professor(p))
	}
	return profs, nil
}

func (repo *campusRepository) SaveProfessor(ctx context.Context, p campus.Professor) (campus.Professor, error) {
	if err := repo.checkWritable(); err != nil {
		return campus.Professor{}, err
	}
	if p.ID == 0 {
		p.ID = repo.st.nextID("professor")
	} else if _, ok := repo.st.professors[p.ID]; !ok {
		return campus.Professor{}, campus.ErrProfessorNotFound
	}
	repo.st.professors[p.ID] = p
	return repo.professor(p), nil
}

func (repo *campusRepository) DeleteProfessor(ctx context.Context, id int64) error {
	if err := repo.checkWritable(); err != nil {
		return err
	}
	delete(repo.st.professors, id)
	return nil
}

// Students

func (repo *campusRepository) student(st campus.Student) campus.Student {
	st.EnrollmentCount, st.GradeCount = 0, 0
	for _, e := range repo.st.enrollments {
		if e.StudentID == st.ID {
			st.EnrollmentCount++
		}
	}
	for _, g := range repo.st.grades {
		if g.StudentID == st.ID {
			st.GradeCount++
		}
	}
	return st
}

func (repo *campusRepository) GetStudent(ctx context.Context, id int64) (campus.Student, error) {
	st, ok := repo.st.students[id]
	if !ok {
		return campus.Student{}, campus.ErrStudentNotFound
	}
	return repo.student(st), nil
}

func (repo *campusRepository) GetStudentByUser(ctx context.Context, userID string) (campus.Student, error) {
	if userID != "" {
		for _, st := range repo.st.students {
			if st.UserID == userID {
				return repo.student(st), nil
			}
		}
	}
	return campus.Student{}, campus.ErrStudentNotFound
}

func (repo *campusRepository) studentMatches(st campus.Student, search string) bool {
	if contains(st.Name, search) {
		return true
	}
	if tutor, ok := repo.st.professors[st.TutorID]; ok && contains(tutor.Name, search) {
		return true
	}
	for _, e := range repo.st.enrollments {
		if e.StudentID != st.ID {
			continue
		}
		if s, ok := repo.st.subjects[e.SubjectID]; ok && contains(s.Name, search) {
			return true
		}
	}
	return false
}

func (repo *campusRepository) QueryStudents(ctx context.Context, filter campus.StudentFilter) ([]campus.Student, error) {
	ids := sortedIDs(len(repo.st.students), func(add func(int64)) {
		for id := range repo.st.students {
			add(id)
		}
	})
	students := make([]campus.Student, 0, len(ids))
	for _, id := range ids {
		st := repo.st.students[id]
		if (!filter.IncludeInactive && !st.Active) ||
			(filter.UniversityID != 0 && st.UniversityID != filter.UniversityID) ||
			(filter.TutorID != 0 && st.TutorID != filter.TutorID) ||
			(filter.Search != "" && !repo.studentMatches(st, filter.Search)) {
			continue
		}
		students = append(students, repo.student(st))
	}
	return students, nil
}

func (repo *campusRepository) SaveStudent(ctx context.Context, st campus.Student) (campus.Student, error) {
	if err := repo.checkWritable(); err != nil {
		return campus.Student{}, err
	}
	if st.ID == 0 {
		st.ID = repo.st.nextID("student")
	} else if _, ok := repo.st.students[st.ID]; !ok {
		return campus.Student{}, campus.ErrStudentNotFound
	}
	repo.st.students[st.ID] = st
	return repo.student(st), nil
}

func (repo *campusRepository) DeleteStudent(ctx context.Context, id int64) error {
	if err := repo.checkWritable(); err != nil {
		return err
	}
	delete(repo.st.students, id)
	return nil
}

// Subjects

func (repo *campusRepository) subject(s campus.Subject) campus.Subject {
	s.ProfessorIDs = append([]int64(nil), s.ProfessorIDs...)
	s.EnrollmentCount = 0
	for _, e := range repo.st.enrollments {
		if e.SubjectID == s.ID {
			s.EnrollmentCount++
		}
	}
	return s
}

func (repo *campusRepository) GetSubject(ctx context.Context, id int64) (campus.Subject, error) {
	s, ok := repo.st.subjects[id]
	if !ok {
		return campus.Subject{}, campus.ErrSubjectNotFound
	}
	return repo.subject(s), nil
}

func (repo *campusRepository) QuerySubjects(ctx context.Context, filter campus.SubjectFilter) ([]campus.Subject, error) {
	ids := sortedIDs(len(repo.st.subjects), func(add func(int64)) {
		for id := range repo.st.subjects {
			add(id)
		}
	})
	subjects := make([]campus.Subject, 0, len(ids))
	for _, id := range ids {
		s := repo.st.subjects[id]
		if (filter.UniversityID != 0 && s.UniversityID != filter.UniversityID) ||
			(filter.DepartmentID != 0 && s.DepartmentID != filter.DepartmentID) ||
			(filter.ProfessorID != 0 && !s.HasProfessor(filter.ProfessorID)) {
			continue
		}
		subjects = append(subjects, repo.subject(s))
	}
	return subjects, nil
}

func (repo *campusRepository) SaveSubject(ctx context.Context, s campus.Subject) (campus.Subject, error) {
	if err := repo.checkWritable(); err != nil {
		return campus.Subject{}, err
	}
	if s.ID == 0 {
		s.ID = repo.st.nextID("subject")
	} else if _, ok := repo.st.subjects[s.ID]; !ok {
		return campus.Subject{}, campus.ErrSubjectNotFound
	}
	s.ProfessorIDs = append([]int64(nil), s.ProfessorIDs...)
	repo.st.subjects[s.ID] = s
	return repo.subject(s), nil
}

func (repo *campusRepository) DeleteSubject(ctx context.Context, id int64) error {
	if err := repo.checkWritable(); err != nil {
		return err
	}
	delete(repo.st.subjects, id)
	return nil
}

// Enrollments

func (repo *campusRepository) GetEnrollment(ctx context.Context, id int64) (campus.Enrollment, error) {
	e, ok := repo.st.enrollments[id]
	if !ok {
		return campus.Enrollment{}, campus.ErrEnrollmentNotFound
	}
	return e, nil
}

func (repo *campusRepository) QueryEnrollments(ctx context.Context, filter campus.EnrollmentFilter) ([]campus.Enrollment, error) {
	ids := sortedIDs(len(repo.st.enrollments), func(add func(int64)) {
		for id := range repo.st.enrollments {
			add(id)
		}
	})
	enrollments := make([]campus.Enrollment, 0, len(ids))
	for _, id := range ids {
		if e := repo.st.enrollments[id]; filter.Match(e) {
			enrollments = append(enrollments, e)
		}
	}
	return enrollments, nil
}

func (repo *campusRepository) EnrollmentCodeExists(ctx context.Context, code string, excludedID int64) (bool, error) {
	for _, e := range repo.st.enrollments {
		if e.Code == code && e.ID != excludedID {
			return true, nil
		}
	}
	return false, nil
}

func (repo *campusRepository) SaveEnrollment(ctx context.Context, e campus.Enrollment) (campus.Enrollment, error) {
	if err := repo.checkWritable(); err != nil {
		return campus.Enrollment{}, err
	}
	if exists, _ := repo.EnrollmentCodeExists(ctx, e.Code, e.ID); exists {
		return campus.Enrollment{}, campus.ErrDuplicateCode
	}
	if e.ID == 0 {
		e.ID = repo.st.nextID("enrollment")
	} else if _, ok := repo.st.enrollments[e.ID]; !ok {
		return campus.Enrollment{}, campus.ErrEnrollmentNotFound
	}
	repo.st.enrollments[e.ID] = e
	return e, nil
}

func (repo *campusRepository) DeleteEnrollment(ctx context.Context, id int64) error {
	if err := repo.checkWritable(); err != nil {
		return err
	}
	delete(repo.st.enrollments, id)
	return nil
}

func (repo *campusRepository) NextEnrollmentSequence(ctx context.Context, subjectID int64, year int) (int, error) {
	if err := repo.checkWritable(); err != nil {
		return 0, err
	}
	key := seqKey{subjectID: subjectID, year: year}
	last, ok := repo.st.sequences[key]
	if !ok {
		for _, e := range repo.st.enrollments {
			if e.SubjectID == subjectID && e.Date.Year() == year {
				last++
			}
		}
	}
	last++
	repo.st.sequences[key] = last
	return last, nil
}

// Grades

func (repo *campusRepository) GetGrade(ctx context.Context, id int64) (campus.Grade, error) {
	g, ok := repo.st.grades[id]
	if !ok {
		return campus.Grade{}, campus.ErrGradeNotFound
	}
	return g, nil
}

func (repo *campusRepository) QueryGrades(ctx context.Context, filter campus.GradeFilter) ([]campus.Grade, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ids := sortedIDs(len(repo.st.grades), func(add func(int64)) {
		for id := range repo.st.grades {
			add(id)
		}
	})
	grades := make([]campus.Grade, 0, len(ids))
	for _, id := range ids {
		if g := repo.st.grades[id]; filter.Match(g) {
			grades = append(grades, g)
		}
	}
	return grades, nil
}

func (repo *campusRepository) SaveGrade(ctx context.Context, g campus.Grade) (campus.Grade, error) {
	if err := repo.checkWritable(); err != nil {
		return campus.Grade{}, err
	}
	if g.ID == 0 {
		g.ID = repo.st.nextID("grade")
	} else if _, ok := repo.st.grades[g.ID]; !ok {
		return campus.Grade{}, campus.ErrGradeNotFound
	}
	repo.st.grades[g.ID] = g
	return g, nil
}

func (repo *campusRepository) DeleteGrade(ctx context.Context, id int64) error {
	if err := repo.checkWritable(); err != nil {
		return err
	}
	delete(repo.st.grades, id)
	return nil
}

func (repo *campusRepository) QueryGradeReport(ctx context.Context, filter campus.ReportFilter) ([]campus.GradeReport, error) {
	grades, err := repo.QueryGrades(ctx, campus.GradeFilter{})
	if err != nil {
		return nil, err
	}
	rows := campus.AggregateGrades(grades, repo.st.enrollments, repo.st.professors, campus.DefaultReportAdjustment)

	report := rows[:0]
	for _, r := range rows {
		if filter.Match(r) {
			report = append(report, r)
		}
	}
	return report, nil
}

package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"
	"github.com/volatiletech/strmangle"

	"github.com/trezcool/universidad/core/campus"
	boiledrepos "github.com/trezcool/universidad/storage/database/sqlboiler"
)

const enrollmentCodeConstraint = "enrollment_code_key"

type campusRepository struct {
	exec   executor
	report *boiledrepos.ReportRepository
}

var _ campus.Repository = (*campusRepository)(nil)

func newCampusRepository(exec executor) *campusRepository {
	return &campusRepository{exec: exec, report: boiledrepos.NewReportRepository(exec)}
}

func (repo *campusRepository) get(ctx context.Context, dest interface{}, notFound error, query string, args ...interface{}) error {
	if err := sqlx.GetContext(ctx, repo.exec, dest, repo.exec.Rebind(query), args...); err != nil {
		if err == sql.ErrNoRows {
			return notFound
		}
		return err
	}
	return nil
}

func (repo *campusRepository) query(ctx context.Context, dest interface{}, query string, w *where, order string) error {
	return sqlx.SelectContext(ctx, repo.exec, dest, repo.exec.Rebind(query+w.String()+" ORDER BY "+order), w.args...)
}

// update runs an UPDATE and maps "no row updated" to notFound.
func (repo *campusRepository) update(ctx context.Context, notFound error, query string, args ...interface{}) error {
	res, err := repo.exec.ExecContext(ctx, repo.exec.Rebind(query), args...)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return notFound
	}
	return nil
}

func (repo *campusRepository) insert(ctx context.Context, query string, args ...interface{}) (int64, error) {
	var id int64
	err := sqlx.GetContext(ctx, repo.exec, &id, repo.exec.Rebind(query+" RETURNING id"), args...)
	return id, err
}

func (repo *campusRepository) delete(ctx context.Context, table string, id int64) error {
	_, err := repo.exec.ExecContext(ctx, "DELETE FROM "+table+" WHERE id = $1", id)
	return errors.Wrapf(err, "deleting %s", table)
}

// Universities

const universitySelect = `
SELECT u.id, u.name, u.director_id, u.street, u.city, u.zip, u.state, u.country,
       (SELECT count(*) FROM student s WHERE s.university_id = u.id)    AS student_count,
       (SELECT count(*) FROM professor p WHERE p.university_id = u.id)  AS professor_count,
       (SELECT count(*) FROM department d WHERE d.university_id = u.id) AS department_count,
       (SELECT count(*) FROM enrollment e WHERE e.university_id = u.id) AS enrollment_count
FROM university u`

type addressRow struct {
	Street  string `db:"street"`
	City    string `db:"city"`
	Zip     string `db:"zip"`
	State   string `db:"state"`
	Country string `db:"country"`
}

func (a addressRow) address() campus.Address {
	return campus.Address{Street: a.Street, City: a.City, Zip: a.Zip, State: a.State, Country: a.Country}
}

type universityRow struct {
	ID         int64      `db:"id"`
	Name       string     `db:"name"`
	DirectorID null.Int64 `db:"director_id"`
	addressRow

	StudentCount    int `db:"student_count"`
	ProfessorCount  int `db:"professor_count"`
	DepartmentCount int `db:"department_count"`
	EnrollmentCount int `db:"enrollment_count"`
}

func (r universityRow) university() campus.University {
	return campus.University{
		ID:              r.ID,
		Name:            r.Name,
		DirectorID:      r.DirectorID.Int64,
		Address:         r.address(),
		StudentCount:    r.StudentCount,
		ProfessorCount:  r.ProfessorCount,
		DepartmentCount: r.DepartmentCount,
		EnrollmentCount: r.EnrollmentCount,
	}
}

func (repo *campusRepository) GetUniversity(ctx context.Context, id int64) (campus.University, error) {
	var row universityRow
	if err := repo.get(ctx, &row, campus.ErrUniversityNotFound, universitySelect+" WHERE u.id = ?", id); err != nil {
		return campus.University{}, errors.Wrap(err, "finding university")
	}
	return row.university(), nil
}

func (repo *campusRepository) QueryUniversities(ctx context.Context, filter campus.UniversityFilter) ([]campus.University, error) {
	var w where
	w.eq("u.director_id", filter.DirectorID)
	if filter.Search != "" {
		pattern := likePattern(filter.Search)
		w.add("(u.name ILIKE ? OR u.city ILIKE ?)", pattern, pattern)
	}

	var rows []universityRow
	if err := repo.query(ctx, &rows, universitySelect, &w, "u.id"); err != nil {
		return nil, errors.Wrap(err, "querying universities")
	}
	unis := make([]campus.University, 0, len(rows))
	for _, r := range rows {
		unis = append(unis, r.university())
	}
	return unis, nil
}

func (repo *campusRepository) SaveUniversity(ctx context.Context, u campus.University) (campus.University, error) {
	args := []interface{}{u.Name, nullID(u.DirectorID), u.Street, u.City, u.Zip, u.State, u.Country}
	var err error
	if u.ID == 0 {
		u.ID, err = repo.insert(ctx,
			`INSERT INTO university (name, director_id, street, city, zip, state, country) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			args...)
	} else {
		err = repo.update(ctx, campus.ErrUniversityNotFound,
			`UPDATE university SET name = ?, director_id = ?, street = ?, city = ?, zip = ?, state = ?, country = ? WHERE id = ?`,
			append(args, u.ID)...)
	}
	if err != nil {
		return campus.University{}, errors.Wrap(err, "saving university")
	}
	return repo.GetUniversity(ctx, u.ID)
}

func (repo *campusRepository) DeleteUniversity(ctx context.Context, id int64) error {
	return repo.delete(ctx, "university", id)
}

// Departments

const departmentSelect = `
SELECT d.id, d.university_id, d.name, d.head_id,
       (SELECT count(*) FROM professor p WHERE p.department_id = d.id) AS professor_count
FROM department d`

type departmentRow struct {
	ID             int64      `db:"id"`
	UniversityID   int64      `db:"university_id"`
	Name           string     `db:"name"`
	HeadID         null.Int64 `db:"head_id"`
	ProfessorCount int        `db:"professor_count"`
}

func (r departmentRow) department() campus.Department {
	return campus.Department{
		ID:             r.ID,
		UniversityID:   r.UniversityID,
		Name:           r.Name,
		HeadID:         r.HeadID.Int64,
		ProfessorCount: r.ProfessorCount,
	}
}

func (repo *campusRepository) GetDepartment(ctx context.Context, id int64) (campus.Department, error) {
	var row departmentRow
	if err := repo.get(ctx, &row, campus.ErrDepartmentNotFound, departmentSelect+" WHERE d.id = ?", id); err != nil {
		return campus.Department{}, errors.Wrap(err, "finding department")
	}
	return row.department(), nil
}

func (repo *campusRepository) QueryDepartments(ctx context.Context, filter campus.DepartmentFilter) ([]campus.Department, error) {
	var w where
	w.eq("d.university_id", filter.UniversityID)
	w.eq("d.head_id", filter.HeadID)

	var rows []departmentRow
	if err := repo.query(ctx, &rows, departmentSelect, &w, "d.id"); err != nil {
		return nil, errors.Wrap(err, "querying departments")
	}
	deps := make([]campus.Department, 0, len(rows))
	for _, r := range rows {
		deps = append(deps, r.department())
	}
	return deps, nil
}

func (repo *campusRepository) SaveDepartment(ctx context.Context, d campus.Department) (campus.Department, error) {
	args := []interface{}{d.UniversityID, d.Name, nullID(d.HeadID)}
	var err error
	if d.ID == 0 {
		d.ID, err = repo.insert(ctx, `INSERT INTO department (university_id, name, head_id) VALUES (?, ?, ?)`, args...)
	} else {
		err = repo.update(ctx, campus.ErrDepartmentNotFound,
			`UPDATE department SET university_id = ?, name = ?, head_id = ? WHERE id = ?`, append(args, d.ID)...)
	}
	if err != nil {
		return campus.Department{}, errors.Wrap(err, "saving department")
	}
	return repo.GetDepartment(ctx, d.ID)
}

func (repo *campusRepository) DeleteDepartment(ctx context.Context, id int64) error {
	return repo.delete(ctx, "department", id)
}

// Professors

const professorSelect = `
SELECT p.id, p.university_id, p.department_id, p.name, p.email, p.user_id, p.is_department_head,
       (SELECT count(*) FROM enrollment e WHERE e.professor_id = p.id) AS enrollment_count
FROM professor p
         LEFT JOIN department d ON d.id = p.department_id`

type professorRow struct {
	ID               int64       `db:"id"`
	UniversityID     int64       `db:"university_id"`
	DepartmentID     null.Int64  `db:"department_id"`
	Name             string      `db:"name"`
	Email            string      `db:"email"`
	UserID           null.String `db:"user_id"`
	IsDepartmentHead bool        `db:"is_department_head"`
	EnrollmentCount  int         `db:"enrollment_count"`
}

func (r professorRow) professor() campus.Professor {
	return campus.Professor{
		ID:               r.ID,
		UniversityID:     r.UniversityID,
		DepartmentID:     r.DepartmentID.Int64,
		Name:             r.Name,
		Email:            r.Email,
		UserID:           r.UserID.String,
		IsDepartmentHead: r.IsDepartmentHead,
		EnrollmentCount:  r.EnrollmentCount,
	}
}

func (repo *campusRepository) GetProfessor(ctx context.Context, id int64) (campus.Professor, error) {
	var row professorRow
	if err := repo.get(ctx, &row, campus.ErrProfessorNotFound, professorSelect+" WHERE p.id = ?", id); err != nil {
		return campus.Professor{}, errors.Wrap(err, "finding professor")
	}
	return row.professor(), nil
}

func (repo *campusRepository) GetProfessorByUser(ctx context.Context, userID string) (campus.Professor, error) {
	if !isUUID(userID) {
		return campus.Professor{}, campus.ErrProfessorNotFound
	}
	var row professorRow
	if err := repo.get(ctx, &row, campus.ErrProfessorNotFound, professorSelect+" WHERE p.user_id = ?", userID); err != nil {
		return campus.Professor{}, errors.Wrap(err, "finding professor by user")
	}
	return row.professor(), nil
}

func (repo *campusRepository) QueryProfessors(ctx context.Context, filter campus.ProfessorFilter) ([]campus.Professor, error) {
	var w where
	w.eq("p.university_id", filter.UniversityID)
	w.eq("p.department_id", filter.DepartmentID)
	if filter.Search != "" {
		pattern := likePattern(filter.Search)
		w.add(`(p.name ILIKE ? OR d.name ILIKE ? OR EXISTS (
    SELECT 1 FROM subject_professor sp JOIN subject s ON s.id = sp.subject_id
    WHERE sp.professor_id = p.id AND s.name ILIKE ?))`, pattern, pattern, pattern)
	}

	var rows []professorRow
	if err := repo.query(ctx, &rows, professorSelect, &w, "p.id"); err != nil {
		return nil, errors.Wrap(err, "querying professors")
	}
	profs := make([]campus.Professor, 0, len(rows))
	for _, r := range rows {
		profs = append(profs, r.professor())
	}
	return profs, nil
}

func (repo *campusRepository) SaveProfessor(ctx context.Context, p campus.Professor) (campus.Professor, error) {
	args := []interface{}{p.UniversityID, nullID(p.DepartmentID), p.Name, p.Email, nullString(p.UserID), p.IsDepartmentHead}
	var err error
	if p.ID == 0 {
		p.ID, err = repo.insert(ctx,
			`INSERT INTO professor (university_id, department_id, name, email, user_id, is_department_head) VALUES (?, ?, ?, ?, ?, ?)`,
			args...)
	} else {
		err = repo.update(ctx, campus.ErrProfessorNotFound,
			`UPDATE professor SET university_id = ?, department_id = ?, name = ?, email = ?, user_id = ?, is_department_head = ? WHERE id = ?`,
			append(args, p.ID)...)
	}
	if err != nil {
		return campus.Professor{}, errors.Wrap(err, "saving professor")
	}
	return repo.GetProfessor(ctx, p.ID)
}

func (repo *campusRepository) DeleteProfessor(ctx context.Context, id int64) error {
	return repo.delete(ctx, "professor", id)
}

// Students

const studentSelect = `
SELECT s.id, s.university_id, s.tutor_id, s.name, s.email, s.user_id, s.active,
       s.street, s.city, s.zip, s.state, s.country,
       (SELECT count(*) FROM enrollment e WHERE e.student_id = s.id) AS enrollment_count,
       (SELECT count(*) FROM grade g WHERE g.student_id = s.id)      AS grade_count
FROM student s
         LEFT JOIN professor t ON t.id = s.tutor_id`

type studentRow struct {
	ID           int64       `db:"id"`
	UniversityID int64       `db:"university_id"`
	TutorID      null.Int64  `db:"tutor_id"`
	Name         string      `db:"name"`
	Email        string      `db:"email"`
	UserID       null.String `db:"user_id"`
	Active       bool        `db:"active"`
	addressRow

	EnrollmentCount int `db:"enrollment_count"`
	GradeCount      int `db:"grade_count"`
}

func (r studentRow) student() campus.Student {
	return campus.Student{
		ID:              r.ID,
		UniversityID:    r.UniversityID,
		TutorID:         r.TutorID.Int64,
		Name:            r.Name,
		Email:           r.Email,
		UserID:          r.UserID.String,
		Active:          r.Active,
		Address:         r.address(),
		EnrollmentCount: r.EnrollmentCount,
		GradeCount:      r.GradeCount,
	}
}

func (repo *campusRepository) GetStudent(ctx context.Context, id int64) (campus.Student, error) {
	var row studentRow
	if err := repo.get(ctx, &row, campus.ErrStudentNotFound, studentSelect+" WHERE s.id = ?", id); err != nil {
		return campus.Student{}, errors.Wrap(err, "finding student")
	}
	return row.student(), nil
}

func (repo *campusRepository) GetStudentByUser(ctx context.Context, userID string) (campus.Student, error) {
	if !isUUID(userID) {
		return campus.Student{}, campus.ErrStudentNotFound
	}
	var row studentRow
	if err := repo.get(ctx, &row, campus.ErrStudentNotFound, studentSelect+" WHERE s.user_id = ?", userID); err != nil {
		return campus.Student{}, errors.Wrap(err, "finding student by user")
	}
	return row.student(), nil
}

func (repo *campusRepository) QueryStudents(ctx context.Context, filter campus.StudentFilter) ([]campus.Student, error) {
	var w where
	if !filter.IncludeInactive {
		w.add("s.active")
	}
	w.eq("s.university_id", filter.UniversityID)
	w.eq("s.tutor_id", filter.TutorID)
	if filter.Search != "" {
		pattern := likePattern(filter.Search)
		w.add(`(s.name ILIKE ? OR t.name ILIKE ? OR EXISTS (
    SELECT 1 FROM enrollment e JOIN subject sj ON sj.id = e.subject_id
    WHERE e.student_id = s.id AND sj.name ILIKE ?))`, pattern, pattern, pattern)
	}

	var rows []studentRow
	if err := repo.query(ctx, &rows, studentSelect, &w, "s.id"); err != nil {
		return nil, errors.Wrap(err, "querying students")
	}
	students := make([]campus.Student, 0, len(rows))
	for _, r := range rows {
		students = append(students, r.student())
	}
	return students, nil
}

func (repo *campusRepository) SaveStudent(ctx context.Context, st campus.Student) (campus.Student, error) {
	args := []interface{}{
		st.UniversityID, nullID(st.TutorID), st.Name, st.Email, nullString(st.UserID), st.Active,
		st.Street, st.City, st.Zip, st.State, st.Country,
	}
	var err error
	if st.ID == 0 {
		st.ID, err = repo.insert(ctx,
			`INSERT INTO student (university_id, tutor_id, name, email, user_id, active, street, city, zip, state, country)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			args...)
	} else {
		err = repo.update(ctx, campus.ErrStudentNotFound,
			`UPDATE student SET university_id = ?, tutor_id = ?, name = ?, email = ?, user_id = ?, active = ?,
    street = ?, city = ?, zip = ?, state = ?, country = ? WHERE id = ?`,
			append(args, st.ID)...)
	}
	if err != nil {
		return campus.Student{}, errors.Wrap(err, "saving student")
	}
	return repo.GetStudent(ctx, st.ID)
}

func (repo *campusRepository) DeleteStudent(ctx context.Context, id int64) error {
	return repo.delete(ctx, "student", id)
}

// Subjects

const subjectSelect = `
SELECT sj.id, sj.university_id, sj.department_id, sj.name,
       (SELECT count(*) FROM enrollment e WHERE e.subject_id = sj.id) AS enrollment_count
FROM subject sj`

type subjectRow struct {
	ID              int64  `db:"id"`
	UniversityID    int64  `db:"university_id"`
	DepartmentID    int64  `db:"department_id"`
	Name            string `db:"name"`
	EnrollmentCount int    `db:"enrollment_count"`
}

type subjectProfessorRow struct {
	SubjectID   int64 `db:"subject_id"`
	ProfessorID int64 `db:"professor_id"`
}

// subjects loads the ordered professor lists of rows.
func (repo *campusRepository) subjects(ctx context.Context, rows []subjectRow) ([]campus.Subject, error) {
	subjects := make([]campus.Subject, 0, len(rows))
	if len(rows) == 0 {
		return subjects, nil
	}

	ids := make([]int64, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.ID)
	}
	q, args, err := sqlx.In(
		`SELECT subject_id, professor_id FROM subject_professor WHERE subject_id IN (?) ORDER BY subject_id, position`, ids)
	if err != nil {
		return nil, errors.Wrap(err, "building subject professors query")
	}
	var links []subjectProfessorRow
	if err = sqlx.SelectContext(ctx, repo.exec, &links, repo.exec.Rebind(q), args...); err != nil {
		return nil, errors.Wrap(err, "querying subject professors")
	}
	profIDs := make(map[int64][]int64, len(rows))
	for _, l := range links {
		profIDs[l.SubjectID] = append(profIDs[l.SubjectID], l.ProfessorID)
	}

	for _, r := range rows {
		subjects = append(subjects, campus.Subject{
			ID:              r.ID,
			UniversityID:    r.UniversityID,
			DepartmentID:    r.DepartmentID,
			Name:            r.Name,
			ProfessorIDs:    profIDs[r.ID],
			EnrollmentCount: r.EnrollmentCount,
		})
	}
	return subjects, nil
}

func (repo *campusRepository) GetSubject(ctx context.Context, id int64) (campus.Subject, error) {
	var row subjectRow
	if err := repo.get(ctx, &row, campus.ErrSubjectNotFound, subjectSelect+" WHERE sj.id = ?", id); err != nil {
		return campus.Subject{}, errors.Wrap(err, "finding subject")
	}
	subjects, err := repo.subjects(ctx, []subjectRow{row})
	if err != nil {
		return campus.Subject{}, err
	}
	return subjects[0], nil
}

func (repo *campusRepository) QuerySubjects(ctx context.Context, filter campus.SubjectFilter) ([]campus.Subject, error) {
	var w where
	w.eq("sj.university_id", filter.UniversityID)
	w.eq("sj.department_id", filter.DepartmentID)
	if filter.ProfessorID != 0 {
		w.add("EXISTS (SELECT 1 FROM subject_professor sp WHERE sp.subject_id = sj.id AND sp.professor_id = ?)", filter.ProfessorID)
	}

	var rows []subjectRow
	if err := repo.query(ctx, &rows, subjectSelect, &w, "sj.id"); err != nil {
		return nil, errors.Wrap(err, "querying subjects")
	}
	return repo.subjects(ctx, rows)
}

func (repo *campusRepository) SaveSubject(ctx context.Context, s campus.Subject) (campus.Subject, error) {
	args := []interface{}{s.UniversityID, s.DepartmentID, s.Name}
	var err error
	if s.ID == 0 {
		s.ID, err = repo.insert(ctx, `INSERT INTO subject (university_id, department_id, name) VALUES (?, ?, ?)`, args...)
	} else {
		err = repo.update(ctx, campus.ErrSubjectNotFound,
			`UPDATE subject SET university_id = ?, department_id = ?, name = ? WHERE id = ?`, append(args, s.ID)...)
	}
	if err != nil {
		return campus.Subject{}, errors.Wrap(err, "saving subject")
	}
	if err = repo.setSubjectProfessors(ctx, s.ID, s.ProfessorIDs); err != nil {
		return campus.Subject{}, err
	}
	return repo.GetSubject(ctx, s.ID)
}

func (repo *campusRepository) setSubjectProfessors(ctx context.Context, subjectID int64, profIDs []int64) error {
	if _, err := repo.exec.ExecContext(ctx, `DELETE FROM subject_professor WHERE subject_id = $1`, subjectID); err != nil {
		return errors.Wrap(err, "clearing subject professors")
	}
	if len(profIDs) == 0 {
		return nil
	}

	args := make([]interface{}, 0, 3*len(profIDs))
	for pos, pid := range profIDs {
		args = append(args, subjectID, pid, pos)
	}
	q := "INSERT INTO subject_professor (subject_id, professor_id, position) VALUES " +
		strmangle.Placeholders(true, len(args), 1, 3)
	_, err := repo.exec.ExecContext(ctx, q, args...)
	return errors.Wrap(err, "inserting subject professors")
}

func (repo *campusRepository) DeleteSubject(ctx context.Context, id int64) error {
	return repo.delete(ctx, "subject", id)
}

// Enrollments

const enrollmentSelect = `
SELECT e.id, e.code, e.student_id, e.subject_id, e.date, e.university_id, e.professor_id, e.department_id
FROM enrollment e`

type enrollmentRow struct {
	ID           int64      `db:"id"`
	Code         string     `db:"code"`
	StudentID    int64      `db:"student_id"`
	SubjectID    int64      `db:"subject_id"`
	Date         time.Time  `db:"date"`
	UniversityID null.Int64 `db:"university_id"`
	ProfessorID  null.Int64 `db:"professor_id"`
	DepartmentID null.Int64 `db:"department_id"`
}

func (r enrollmentRow) enrollment() campus.Enrollment {
	return campus.Enrollment{
		ID:           r.ID,
		Code:         r.Code,
		StudentID:    r.StudentID,
		SubjectID:    r.SubjectID,
		Date:         utcDate(r.Date),
		UniversityID: r.UniversityID.Int64,
		ProfessorID:  r.ProfessorID.Int64,
		DepartmentID: r.DepartmentID.Int64,
	}
}

func (repo *campusRepository) GetEnrollment(ctx context.Context, id int64) (campus.Enrollment, error) {
	var row enrollmentRow
	if err := repo.get(ctx, &row, campus.ErrEnrollmentNotFound, enrollmentSelect+" WHERE e.id = ?", id); err != nil {
		return campus.Enrollment{}, errors.Wrap(err, "finding enrollment")
	}
	return row.enrollment(), nil
}

func (repo *campusRepository) QueryEnrollments(ctx context.Context, filter campus.EnrollmentFilter) ([]campus.Enrollment, error) {
	var w where
	w.eq("e.university_id", filter.UniversityID)
	w.eq("e.student_id", filter.StudentID)
	w.eq("e.subject_id", filter.SubjectID)
	w.eq("e.professor_id", filter.ProfessorID)
	w.eq("e.department_id", filter.DepartmentID)
	if filter.Year != 0 {
		w.add("date_part('year', e.date) = ?", filter.Year)
	}

	var rows []enrollmentRow
	if err := repo.query(ctx, &rows, enrollmentSelect, &w, "e.id"); err != nil {
		return nil, errors.Wrap(err, "querying enrollments")
	}
	enrollments := make([]campus.Enrollment, 0, len(rows))
	for _, r := range rows {
		enrollments = append(enrollments, r.enrollment())
	}
	return enrollments, nil
}

func (repo *campusRepository) EnrollmentCodeExists(ctx context.Context, code string, excludedID int64) (bool, error) {
	var exists bool
	err := sqlx.GetContext(ctx, repo.exec, &exists,
		`SELECT EXISTS (SELECT 1 FROM enrollment WHERE code = $1 AND id <> $2)`, code, excludedID)
	return exists, errors.Wrap(err, "checking enrollment code")
}

func (repo *campusRepository) SaveEnrollment(ctx context.Context, e campus.Enrollment) (campus.Enrollment, error) {
	args := []interface{}{
		e.Code, e.StudentID, e.SubjectID, e.Date,
		nullID(e.UniversityID), nullID(e.ProfessorID), nullID(e.DepartmentID),
	}
	var err error
	if e.ID == 0 {
		e.ID, err = repo.insert(ctx,
			`INSERT INTO enrollment (code, student_id, subject_id, date, university_id, professor_id, department_id)
VALUES (?, ?, ?, ?, ?, ?, ?)`,
			args...)
	} else {
		err = repo.update(ctx, campus.ErrEnrollmentNotFound,
			`UPDATE enrollment SET code = ?, student_id = ?, subject_id = ?, date = ?,
    university_id = ?, professor_id = ?, department_id = ? WHERE id = ?`,
			append(args, e.ID)...)
	}
	if err != nil {
		if isUniqueViolation(err, enrollmentCodeConstraint) {
			return campus.Enrollment{}, campus.ErrDuplicateCode
		}
		return campus.Enrollment{}, errors.Wrap(err, "saving enrollment")
	}
	return repo.GetEnrollment(ctx, e.ID)
}

func (repo *campusRepository) DeleteEnrollment(ctx context.Context, id int64) error {
	return repo.delete(ctx, "enrollment", id)
}

// nextSequenceQuery seeds the counter of (subject, year) with the count of its enrollments on first use.
// The upsert locks the counter row until the end of the transaction.
const nextSequenceQuery = `
INSERT INTO enrollment_sequence (subject_id, year, last_value)
VALUES ($1, $2, (SELECT count(*) FROM enrollment
                 WHERE subject_id = $1 AND date BETWEEN make_date($2, 1, 1) AND make_date($2, 12, 31)) + 1)
ON CONFLICT (subject_id, year) DO UPDATE SET last_value = enrollment_sequence.last_value + 1
RETURNING last_value`

func (repo *campusRepository) NextEnrollmentSequence(ctx context.Context, subjectID int64, year int) (int, error) {
	var next int
	err := sqlx.GetContext(ctx, repo.exec, &next, nextSequenceQuery, subjectID, year)
	return next, errors.Wrap(err, "allocating enrollment sequence")
}

// Grades

const gradeSelect = `
SELECT g.id, g.student_id, g.enrollment_id, g.value, g.date, g.university_id, g.subject_id, g.display_name
FROM grade g`

type gradeRow struct {
	ID           int64      `db:"id"`
	StudentID    int64      `db:"student_id"`
	EnrollmentID int64      `db:"enrollment_id"`
	Value        float64    `db:"value"`
	Date         time.Time  `db:"date"`
	UniversityID null.Int64 `db:"university_id"`
	SubjectID    null.Int64 `db:"subject_id"`
	DisplayName  string     `db:"display_name"`
}

func (r gradeRow) grade() campus.Grade {
	return campus.Grade{
		ID:           r.ID,
		StudentID:    r.StudentID,
		EnrollmentID: r.EnrollmentID,
		Value:        r.Value,
		Date:         utcDate(r.Date),
		UniversityID: r.UniversityID.Int64,
		SubjectID:    r.SubjectID.Int64,
		DisplayName:  r.DisplayName,
	}
}

func (repo *campusRepository) GetGrade(ctx context.Context, id int64) (campus.Grade, error) {
	var row gradeRow
	if err := repo.get(ctx, &row, campus.ErrGradeNotFound, gradeSelect+" WHERE g.id = ?", id); err != nil {
		return campus.Grade{}, errors.Wrap(err, "finding grade")
	}
	return row.grade(), nil
}

func (repo *campusRepository) QueryGrades(ctx context.Context, filter campus.GradeFilter) ([]campus.Grade, error) {
	var w where
	w.eq("g.university_id", filter.UniversityID)
	w.eq("g.student_id", filter.StudentID)
	w.eq("g.enrollment_id", filter.EnrollmentID)
	w.eq("g.subject_id", filter.SubjectID)
	if filter.MinValue != nil {
		w.add("g.value >= ?", *filter.MinValue)
	}
	if filter.MaxValue != nil {
		w.add("g.value < ?", *filter.MaxValue)
	}

	var rows []gradeRow
	if err := repo.query(ctx, &rows, gradeSelect, &w, "g.id"); err != nil {
		return nil, errors.Wrap(err, "querying grades")
	}
	grades := make([]campus.Grade, 0, len(rows))
	for _, r := range rows {
		grades = append(grades, r.grade())
	}
	return grades, nil
}

func (repo *campusRepository) SaveGrade(ctx context.Context, g campus.Grade) (campus.Grade, error) {
	args := []interface{}{
		g.StudentID, g.EnrollmentID, g.Value, g.Date, nullID(g.UniversityID), nullID(g.SubjectID), g.DisplayName,
	}
	var err error
	if g.ID == 0 {
		g.ID, err = repo.insert(ctx,
			`INSERT INTO grade (student_id, enrollment_id, value, date, university_id, subject_id, display_name)
VALUES (?, ?, ?, ?, ?, ?, ?)`,
			args...)
	} else {
		err = repo.update(ctx, campus.ErrGradeNotFound,
			`UPDATE grade SET student_id = ?, enrollment_id = ?, value = ?, date = ?,
    university_id = ?, subject_id = ?, display_name = ? WHERE id = ?`,
			append(args, g.ID)...)
	}
	if err != nil {
		return campus.Grade{}, errors.Wrap(err, "saving grade")
	}
	return repo.GetGrade(ctx, g.ID)
}

func (repo *campusRepository) DeleteGrade(ctx context.Context, id int64) error {
	return repo.delete(ctx, "grade", id)
}

func (repo *campusRepository) QueryGradeReport(ctx context.Context, filter campus.ReportFilter) ([]campus.GradeReport, error) {
	return repo.report.QueryGradeReport(ctx, filter)
}

// utcDate drops the location lib/pq attaches to DATE columns.
func utcDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

package tests

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	echoapi "github.com/trezcool/universidad/apps/api/echo"
	"github.com/trezcool/universidad/core/account"
	"github.com/trezcool/universidad/core/campus"
	emailsvc "github.com/trezcool/universidad/services/email"
)

func date(s string) time.Time {
	d, _ := time.Parse(campus.DateLayout, s)
	return d
}

func Test_campusApi_permissions(t *testing.T) {
	env := setup(t)
	c := env.Populate(t)
	profToken := getToken(t, env.Conf, env.accountOf(t, c.Prof1.UserID))
	studentToken := getToken(t, env.Conf, env.accountOf(t, c.Student1.UserID))
	forbidden := marshalObj(t, httpErr{Error: "permission denied"})

	var tests []httpTest
	for _, path := range []string{
		"/v1/universities", "/v1/departments", "/v1/professors", "/v1/students",
		"/v1/subjects", "/v1/enrollments", "/v1/grades", "/v1/reports/grades",
	} {
		tests = append(tests,
			httpTest{
				name: "missing token " + path, method: http.MethodGet, path: path,
				wantCode: http.StatusUnauthorized, wantData: marshalObj(t, errMissingToken),
			},
			httpTest{
				name: "professor " + path, method: http.MethodGet, path: path, token: profToken,
				wantCode: http.StatusForbidden, wantData: forbidden,
			},
			httpTest{
				name: "student " + path, method: http.MethodGet, path: path, token: studentToken,
				wantCode: http.StatusForbidden, wantData: forbidden,
			},
		)
	}
	runHTTPTests(t, env, tests)
}

func Test_campusApi_universities(t *testing.T) {
	env := setup(t)
	c := env.Populate(t)
	empty := env.University(t, "Instituto Norte")
	token := getToken(t, env.Conf, env.admin(t))

	uni, err := env.Campus.GetUniversity(context.Background(), c.University.ID)
	require.NoError(t, err)
	emptyUni, err := env.Campus.GetUniversity(context.Background(), empty.ID)
	require.NoError(t, err)

	runHTTPTests(t, env, []httpTest{
		{
			name: "list", method: http.MethodGet, path: "/v1/universities", token: token,
			wantData: marshalList(t, uni, emptyUni),
		},
		{
			name: "search", method: http.MethodGet, path: "/v1/universities?search=norte", token: token,
			wantData: marshalList(t, emptyUni),
		},
		{
			name: "retrieve", method: http.MethodGet, path: fmt.Sprintf("/v1/universities/%d", uni.ID), token: token,
			wantData: marshalObj(t, uni),
		},
		{
			name: "unknown", method: http.MethodGet, path: "/v1/universities/999", token: token,
			wantCode: http.StatusNotFound,
		},
		{
			name: "invalid id", method: http.MethodGet, path: "/v1/universities/abc", token: token,
			wantCode: http.StatusNotFound, wantData: marshalObj(t, httpErr{Error: "not found"}),
		},
		{
			name: "create without name", method: http.MethodPost, path: "/v1/universities", token: token,
			body:     marshalObj(t, campus.UniversityData{Name: "   "}),
			wantCode: http.StatusBadRequest,
			wantData: marshalObj(t, map[string]string{"name": "this field is required"}),
		},
		{
			name: "director from another university", method: http.MethodPut,
			path: fmt.Sprintf("/v1/universities/%d", empty.ID), token: token,
			body:     marshalObj(t, campus.UniversityData{Name: "Instituto Norte", DirectorID: c.Prof1.ID}),
			wantCode: http.StatusBadRequest,
			wantData: marshalObj(t, map[string]string{"director_id": "the director must be a professor of the university"}),
		},
		{
			name: "delete referenced", method: http.MethodDelete, path: fmt.Sprintf("/v1/universities/%d", uni.ID), token: token,
			wantCode: http.StatusBadRequest,
		},
		{
			name: "delete", method: http.MethodDelete, path: fmt.Sprintf("/v1/universities/%d", empty.ID), token: token,
			wantCode: http.StatusNoContent,
		},
	})

	t.Run("create", func(t *testing.T) {
		body := marshalObj(t, campus.UniversityData{
			Name:    "  Universidad del Sur ",
			Address: campus.Address{City: "Valdivia", Country: "Chile"},
		})
		req, rec := newAuthRequest(http.MethodPost, "/v1/universities", token, body)
		env.serve(req, rec)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		var got campus.University
		unmarshal(t, rec, &got)
		assert.NotZero(t, got.ID)
		assert.Equal(t, "Universidad del Sur", got.Name)
		assert.Equal(t, "Valdivia", got.City)
	})

	t.Run("set director", func(t *testing.T) {
		body := marshalObj(t, campus.UniversityData{Name: uni.Name, DirectorID: c.Prof1.ID})
		req, rec := newAuthRequest(http.MethodPut, fmt.Sprintf("/v1/universities/%d", uni.ID), token, body)
		env.serve(req, rec)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var got campus.University
		unmarshal(t, rec, &got)
		assert.Equal(t, c.Prof1.ID, got.DirectorID)
		assert.Equal(t, 2, got.ProfessorCount)
		assert.Equal(t, 2, got.StudentCount)
	})
}

func Test_campusApi_departments(t *testing.T) {
	env := setup(t)
	c := env.Populate(t)
	token := getToken(t, env.Conf, env.admin(t))
	other := env.University(t, "Instituto Norte")
	otherProf := env.Professor(t, other.ID, 0, "Grace Hopper", "grace@in.test")

	path := fmt.Sprintf("/v1/departments/%d", c.Department.ID)
	runHTTPTests(t, env, []httpTest{
		{
			name: "unknown university", method: http.MethodPost, path: "/v1/departments", token: token,
			body:     marshalObj(t, campus.DepartmentData{Name: "Physics", UniversityID: 999}),
			wantCode: http.StatusBadRequest,
			wantData: marshalObj(t, map[string]string{"university_id": "university not found"}),
		},
		{
			name: "head from another university", method: http.MethodPut, path: path, token: token,
			body: marshalObj(t, campus.DepartmentData{
				Name: "Mathematics", UniversityID: c.University.ID, HeadID: otherProf.ID,
			}),
			wantCode: http.StatusBadRequest,
			wantData: marshalObj(t, map[string]string{"head_id": "the head must be a professor of the department's university"}),
		},
		{
			name: "delete referenced", method: http.MethodDelete, path: path, token: token,
			wantCode: http.StatusBadRequest,
		},
	})

	t.Run("set head", func(t *testing.T) {
		body := marshalObj(t, campus.DepartmentData{Name: "Mathematics", UniversityID: c.University.ID, HeadID: c.Prof2.ID})
		req, rec := newAuthRequest(http.MethodPut, path, token, body)
		env.serve(req, rec)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var got campus.Department
		unmarshal(t, rec, &got)
		assert.Equal(t, c.Prof2.ID, got.HeadID)
		assert.Equal(t, 2, got.ProfessorCount)

		req, rec = newAuthRequest(http.MethodGet, fmt.Sprintf("/v1/professors/%d", c.Prof2.ID), token)
		env.serve(req, rec)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var prof campus.Professor
		unmarshal(t, rec, &prof)
		assert.True(t, prof.IsDepartmentHead)
	})

	t.Run("filter by university", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, fmt.Sprintf("/v1/departments?university_id=%d", other.ID), token)
		env.serve(req, rec)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.JSONEq(t, "[]", rec.Body.String())
	})
}

func Test_campusApi_people(t *testing.T) {
	env := setup(t)
	c := env.Populate(t)
	token := getToken(t, env.Conf, env.admin(t))

	t.Run("create professor provisions an account", func(t *testing.T) {
		body := marshalObj(t, campus.ProfessorData{
			Name: "Emmy Noether", Email: "  Emmy@UC.test", UniversityID: c.University.ID, DepartmentID: c.Department.ID,
		})
		req, rec := newAuthRequest(http.MethodPost, "/v1/professors", token, body)
		env.serve(req, rec)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		var got campus.Professor
		unmarshal(t, rec, &got)
		assert.Equal(t, "emmy@uc.test", got.Email)
		require.NotEmpty(t, got.UserID)

		usr := env.accountOf(t, got.UserID)
		assert.Equal(t, "emmy@uc.test", usr.Login)
		assert.True(t, usr.IsProfessor())
		assert.True(t, usr.IsActive)
	})

	runHTTPTests(t, env, []httpTest{
		{
			name: "duplicate professor email", method: http.MethodPost, path: "/v1/professors", token: token,
			body:     marshalObj(t, campus.ProfessorData{Name: "Ada", Email: "ada@uc.test", UniversityID: c.University.ID}),
			wantCode: http.StatusBadRequest,
			wantData: marshalObj(t, map[string]string{"email": account.ErrLoginExists.Error()}),
		},
		{
			name: "duplicate student email", method: http.MethodPost, path: "/v1/students", token: token,
			body:     marshalObj(t, campus.StudentData{Name: "Maria", Email: "maria@uc.test", UniversityID: c.University.ID}),
			wantCode: http.StatusBadRequest,
			wantData: marshalObj(t, map[string]string{"email": account.ErrLoginExists.Error()}),
		},
		{
			name: "invalid student email", method: http.MethodPost, path: "/v1/students", token: token,
			body:     marshalObj(t, campus.StudentData{Name: "Pedro", Email: "pedro", UniversityID: c.University.ID}),
			wantCode: http.StatusBadRequest,
			wantData: marshalObj(t, map[string]string{"email": "email must be a valid email address"}),
		},
		{
			name: "unknown tutor", method: http.MethodPut, path: fmt.Sprintf("/v1/students/%d", c.Student1.ID), token: token,
			body: marshalObj(t, campus.StudentData{
				Name: c.Student1.Name, Email: c.Student1.Email, UniversityID: c.University.ID, TutorID: 999,
			}),
			wantCode: http.StatusBadRequest,
			wantData: marshalObj(t, map[string]string{"tutor_id": "professor not found"}),
		},
	})

	t.Run("student email change moves the login", func(t *testing.T) {
		body := marshalObj(t, campus.StudentData{
			Name: "Juan Lopez", Email: "juan.lopez@uc.test", UniversityID: c.University.ID, TutorID: c.Prof1.ID,
		})
		req, rec := newAuthRequest(http.MethodPut, fmt.Sprintf("/v1/students/%d", c.Student2.ID), token, body)
		env.serve(req, rec)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var got campus.Student
		unmarshal(t, rec, &got)
		assert.Equal(t, c.Prof1.ID, got.TutorID)
		assert.Equal(t, "juan.lopez@uc.test", env.accountOf(t, got.UserID).Login)
	})

	t.Run("archived students are hidden", func(t *testing.T) {
		inactive := false
		body := marshalObj(t, campus.StudentData{
			Name: c.Student1.Name, Email: c.Student1.Email, UniversityID: c.University.ID, Active: &inactive,
		})
		req, rec := newAuthRequest(http.MethodPut, fmt.Sprintf("/v1/students/%d", c.Student1.ID), token, body)
		env.serve(req, rec)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var students []campus.Student
		req, rec = newAuthRequest(http.MethodGet, "/v1/students", token)
		env.serve(req, rec)
		unmarshal(t, rec, &students)
		require.Len(t, students, 1)
		assert.Equal(t, c.Student2.ID, students[0].ID)

		req, rec = newAuthRequest(http.MethodGet, "/v1/students?include_inactive=true", token)
		env.serve(req, rec)
		unmarshal(t, rec, &students)
		assert.Len(t, students, 2)
	})

	t.Run("delete student removes its account", func(t *testing.T) {
		st := env.Student(t, c.University.ID, "Pablo Diaz", "pablo@uc.test")
		req, rec := newAuthRequest(http.MethodDelete, fmt.Sprintf("/v1/students/%d", st.ID), token)
		env.serve(req, rec)
		require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

		_, err := env.Accounts.Get(context.Background(), st.UserID)
		assert.Error(t, err)
	})
}

func Test_campusApi_subjects(t *testing.T) {
	env := setup(t)
	c := env.Populate(t)
	token := getToken(t, env.Conf, env.admin(t))
	physics := env.Department(t, c.University.ID, "Physics")
	outsider := env.Professor(t, c.University.ID, physics.ID, "Marie Curie", "marie@uc.test")

	runHTTPTests(t, env, []httpTest{
		{
			name: "professor of another department", method: http.MethodPost, path: "/v1/subjects", token: token,
			body: marshalObj(t, campus.SubjectData{
				Name: "Geometry", UniversityID: c.University.ID, DepartmentID: c.Department.ID,
				ProfessorIDs: []int64{c.Prof1.ID, outsider.ID},
			}),
			wantCode: http.StatusBadRequest,
		},
		{
			name: "professor listed twice", method: http.MethodPost, path: "/v1/subjects", token: token,
			body: marshalObj(t, campus.SubjectData{
				Name: "Geometry", UniversityID: c.University.ID, DepartmentID: c.Department.ID,
				ProfessorIDs: []int64{c.Prof1.ID, c.Prof1.ID},
			}),
			wantCode: http.StatusBadRequest,
			wantData: marshalObj(t, map[string]string{"professor_ids": fmt.Sprintf("professor #%d is listed twice", c.Prof1.ID)}),
		},
	})

	t.Run("create & filter by professor", func(t *testing.T) {
		body := marshalObj(t, campus.SubjectData{
			Name: "Geometry", UniversityID: c.University.ID, DepartmentID: c.Department.ID, ProfessorIDs: []int64{c.Prof2.ID},
		})
		req, rec := newAuthRequest(http.MethodPost, "/v1/subjects", token, body)
		env.serve(req, rec)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		var geometry campus.Subject
		unmarshal(t, rec, &geometry)
		assert.Equal(t, []int64{c.Prof2.ID}, geometry.ProfessorIDs)

		var subjects []campus.Subject
		req, rec = newAuthRequest(http.MethodGet, fmt.Sprintf("/v1/subjects?professor_id=%d", c.Prof1.ID), token)
		env.serve(req, rec)
		unmarshal(t, rec, &subjects)
		require.Len(t, subjects, 1)
		assert.Equal(t, c.Subject.ID, subjects[0].ID)
	})

	t.Run("delete subject with enrollments", func(t *testing.T) {
		env.Enrollment(t, c.Student1.ID, c.Subject.ID, date("2024-03-01"))
		req, rec := newAuthRequest(http.MethodDelete, fmt.Sprintf("/v1/subjects/%d", c.Subject.ID), token)
		env.serve(req, rec)
		assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
	})
}

func Test_campusApi_enrollments(t *testing.T) {
	env := setup(t)
	c := env.Populate(t)
	token := getToken(t, env.Conf, env.admin(t))
	other := env.University(t, "Instituto Norte")
	stranger := env.Student(t, other.ID, "Lucia Gomez", "lucia@in.test")

	create := func(t *testing.T, data campus.EnrollmentData) campus.Enrollment {
		t.Helper()
		req, rec := newAuthRequest(http.MethodPost, "/v1/enrollments", token, marshalObj(t, data))
		env.serve(req, rec)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		var e campus.Enrollment
		unmarshal(t, rec, &e)
		return e
	}

	first := create(t, campus.EnrollmentData{StudentID: c.Student1.ID, SubjectID: c.Subject.ID, Date: "2024-03-01"})
	assert.Equal(t, "ALG/2024/0001", first.Code)
	assert.Equal(t, c.University.ID, first.UniversityID)
	assert.Equal(t, c.Prof1.ID, first.ProfessorID)
	assert.Equal(t, c.Department.ID, first.DepartmentID)

	second := create(t, campus.EnrollmentData{Code: "New", StudentID: c.Student2.ID, SubjectID: c.Subject.ID, Date: "2024-09-15"})
	assert.Equal(t, "ALG/2024/0002", second.Code)

	runHTTPTests(t, env, []httpTest{
		{
			name: "student of another university", method: http.MethodPost, path: "/v1/enrollments", token: token,
			body:     marshalObj(t, campus.EnrollmentData{StudentID: stranger.ID, SubjectID: c.Subject.ID}),
			wantCode: http.StatusBadRequest,
			wantData: marshalObj(t, map[string]string{"subject_id": "the student and the subject must belong to the same university"}),
		},
		{
			name: "invalid date", method: http.MethodPost, path: "/v1/enrollments", token: token,
			body:     marshalObj(t, campus.EnrollmentData{StudentID: c.Student1.ID, SubjectID: c.Subject.ID, Date: "01/03/2024"}),
			wantCode: http.StatusBadRequest,
		},
		{
			name: "duplicate code", method: http.MethodPost, path: "/v1/enrollments", token: token,
			body: marshalObj(t, campus.EnrollmentData{
				Code: first.Code, StudentID: c.Student2.ID, SubjectID: c.Subject.ID, Date: "2024-10-01",
			}),
			wantCode: http.StatusBadRequest,
			wantData: marshalObj(t, map[string]string{"code": campus.ErrDuplicateCode.Error()}),
		},
		{
			name: "draft keeps a matching subject", method: http.MethodPost, path: "/v1/enrollments/draft", token: token,
			body:     marshalObj(t, campus.EnrollmentData{StudentID: c.Student1.ID, SubjectID: c.Subject.ID}),
			wantData: marshalObj(t, campus.EnrollmentData{StudentID: c.Student1.ID, SubjectID: c.Subject.ID}),
		},
		{
			name: "draft clears a foreign subject", method: http.MethodPost, path: "/v1/enrollments/draft", token: token,
			body:     marshalObj(t, campus.EnrollmentData{StudentID: stranger.ID, SubjectID: c.Subject.ID}),
			wantData: marshalObj(t, campus.EnrollmentData{StudentID: stranger.ID}),
		},
		{
			name: "filter by year", method: http.MethodGet, path: "/v1/enrollments?year=2023", token: token,
			wantData: marshalList(t),
		},
	})

	t.Run("update keeps the code", func(t *testing.T) {
		body := marshalObj(t, campus.EnrollmentData{StudentID: c.Student1.ID, SubjectID: c.Subject.ID, Date: "2024-04-01"})
		req, rec := newAuthRequest(http.MethodPut, fmt.Sprintf("/v1/enrollments/%d", first.ID), token, body)
		env.serve(req, rec)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var got campus.Enrollment
		unmarshal(t, rec, &got)
		assert.Equal(t, first.Code, got.Code)
		assert.Equal(t, date("2024-04-01"), got.Date.UTC())
	})

	t.Run("delete removes grades", func(t *testing.T) {
		g := env.Grade(t, c.Student2.ID, second.ID, 7)
		req, rec := newAuthRequest(http.MethodDelete, fmt.Sprintf("/v1/enrollments/%d", second.ID), token)
		env.serve(req, rec)
		require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

		req, rec = newAuthRequest(http.MethodGet, fmt.Sprintf("/v1/grades/%d", g.ID), token)
		env.serve(req, rec)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func Test_campusApi_grades(t *testing.T) {
	env := setup(t)
	c := env.Populate(t)
	token := getToken(t, env.Conf, env.admin(t))
	enr1 := env.Enrollment(t, c.Student1.ID, c.Subject.ID, date("2024-03-01"))
	enr2 := env.Enrollment(t, c.Student2.ID, c.Subject.ID, date("2024-03-01"))

	runHTTPTests(t, env, []httpTest{
		{
			name: "value out of range", method: http.MethodPost, path: "/v1/grades", token: token,
			body:     marshalObj(t, campus.GradeData{StudentID: c.Student1.ID, EnrollmentID: enr1.ID, Value: 10.5}),
			wantCode: http.StatusBadRequest,
			wantData: marshalObj(t, map[string]string{"value": "a grade must be between 0 and 10"}),
		},
		{
			name: "enrollment of another student", method: http.MethodPost, path: "/v1/grades", token: token,
			body:     marshalObj(t, campus.GradeData{StudentID: c.Student1.ID, EnrollmentID: enr2.ID, Value: 6}),
			wantCode: http.StatusBadRequest,
			wantData: marshalObj(t, map[string]string{"enrollment_id": "the enrollment must belong to the grade's student"}),
		},
		{
			name: "draft clears a foreign enrollment", method: http.MethodPost, path: "/v1/grades/draft", token: token,
			body:     marshalObj(t, campus.GradeData{StudentID: c.Student1.ID, EnrollmentID: enr2.ID, Value: 6}),
			wantData: marshalObj(t, campus.GradeData{StudentID: c.Student1.ID, Value: 6}),
		},
	})

	var grade campus.Grade
	t.Run("create", func(t *testing.T) {
		body := marshalObj(t, campus.GradeData{StudentID: c.Student1.ID, EnrollmentID: enr1.ID, Value: 8, Date: "2024-06-30"})
		req, rec := newAuthRequest(http.MethodPost, "/v1/grades", token, body)
		env.serve(req, rec)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		unmarshal(t, rec, &grade)
		assert.Equal(t, "Algebra / 8.0", grade.DisplayName)
		assert.Equal(t, c.Subject.ID, grade.SubjectID)
		assert.Equal(t, c.University.ID, grade.UniversityID)
	})

	t.Run("renaming the subject renames the grade", func(t *testing.T) {
		body := marshalObj(t, campus.SubjectData{
			Name: "Linear Algebra", UniversityID: c.University.ID, DepartmentID: c.Department.ID,
			ProfessorIDs: c.Subject.ProfessorIDs,
		})
		req, rec := newAuthRequest(http.MethodPut, fmt.Sprintf("/v1/subjects/%d", c.Subject.ID), token, body)
		env.serve(req, rec)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		req, rec = newAuthRequest(http.MethodGet, fmt.Sprintf("/v1/grades/%d", grade.ID), token)
		env.serve(req, rec)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var got campus.Grade
		unmarshal(t, rec, &got)
		assert.Equal(t, "Linear Algebra / 8.0", got.DisplayName)
	})

	t.Run("report", func(t *testing.T) {
		env.Grade(t, c.Student1.ID, enr1.ID, 6)
		env.Grade(t, c.Student2.ID, enr2.ID, 3)

		req, rec := newAuthRequest(http.MethodGet, fmt.Sprintf("/v1/reports/grades?student_id=%d", c.Student1.ID), token)
		env.serve(req, rec)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var rows []campus.GradeReport
		unmarshal(t, rec, &rows)
		require.Len(t, rows, 1)
		assert.Equal(t, grade.ID, rows[0].ID)
		assert.Equal(t, c.Prof1.ID, rows[0].ProfessorID)
		assert.Equal(t, c.Department.ID, rows[0].DepartmentID)
		assert.Equal(t, 2, rows[0].Count)
		assert.Equal(t, 14.0, rows[0].Total)
		assert.Equal(t, 7.0, rows[0].Average)
		assert.Equal(t, 7.7, rows[0].Adjusted)

		req, rec = newAuthRequest(http.MethodGet, "/v1/reports/grades", token)
		env.serve(req, rec)
		unmarshal(t, rec, &rows)
		assert.Len(t, rows, 2)
	})
}

func Test_campusApi_mail(t *testing.T) {
	env := setup(t)
	c := env.Populate(t)
	token := getToken(t, env.Conf, env.admin(t))
	enr := env.Enrollment(t, c.Student1.ID, c.Subject.ID, date("2024-03-01"))
	env.Grade(t, c.Student1.ID, enr.ID, 9)

	tests := []struct {
		httpTest
		wantTo []string
	}{
		{
			httpTest: httpTest{
				name: "welcome professor", method: http.MethodPost, path: fmt.Sprintf("/v1/professors/%d/welcome", c.Prof1.ID),
				token: token, wantData: marshalObj(t, echoapi.SuccessResponse{Success: "Welcome message sent."}),
			},
			wantTo: []string{c.Prof1.Email},
		},
		{
			httpTest: httpTest{
				name: "welcome student", method: http.MethodPost, path: fmt.Sprintf("/v1/students/%d/welcome", c.Student2.ID),
				token: token, wantData: marshalObj(t, echoapi.SuccessResponse{Success: "Welcome message sent."}),
			},
			wantTo: []string{c.Student2.Email},
		},
		{
			httpTest: httpTest{
				name: "student report", method: http.MethodPost, path: fmt.Sprintf("/v1/students/%d/report", c.Student1.ID),
				token: token, wantData: marshalObj(t, echoapi.SuccessResponse{Success: "Report sent."}),
			},
			wantTo: []string{c.Student1.Email},
		},
		{
			httpTest: httpTest{
				name: "university reports", method: http.MethodPost, path: fmt.Sprintf("/v1/universities/%d/reports", c.University.ID),
				token: token, wantData: marshalObj(t, echoapi.SentResponse{Sent: 2}),
			},
			wantTo: []string{c.Student1.Email, c.Student2.Email},
		},
		{
			httpTest: httpTest{
				name: "unknown student", method: http.MethodPost, path: "/v1/students/999/report",
				token: token, wantCode: http.StatusNotFound,
			},
		},
	}
	for _, tt := range tests {
		tt := tt
		if tt.wantCode == 0 {
			tt.wantCode = http.StatusOK
		}
		t.Run(tt.name, func(t *testing.T) {
			emailsvc.ResetSentMessages()

			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			env.serve(req, rec)
			checkCodeAndData(t, tt.httpTest, rec)

			sent := emailsvc.SentMessages()
			var to []string
			for _, msg := range sent {
				to = append(to, msg.To[0].Address)
			}
			assert.ElementsMatch(t, tt.wantTo, to)
		})
	}

	t.Run("report carries the grades as csv", func(t *testing.T) {
		emailsvc.ResetSentMessages()
		req, rec := newAuthRequest(http.MethodPost, fmt.Sprintf("/v1/students/%d/report", c.Student1.ID), token)
		env.serve(req, rec)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		sent := emailsvc.SentMessages()
		require.Len(t, sent, 1)
		require.Len(t, sent[0].Attachments, 1)
		at := sent[0].Attachments[0]
		assert.Equal(t, "text/csv", at.ContentType)
		content, err := base64.StdEncoding.DecodeString(at.Content.String())
		require.NoError(t, err)
		assert.Contains(t, string(content), "Algebra")
	})
}

func Test_campusApi_welcomeColleagues(t *testing.T) {
	env := setup(t)
	c := env.Populate(t)
	physics := env.Department(t, c.University.ID, "Physics")
	outsider := env.Professor(t, c.University.ID, physics.ID, "Marie Curie", "marie@uc.test")
	profToken := getToken(t, env.Conf, env.accountOf(t, c.Prof1.UserID))
	studentToken := getToken(t, env.Conf, env.accountOf(t, c.Student1.UserID))
	adminToken := getToken(t, env.Conf, env.admin(t))

	welcome := func(ids ...int64) []byte {
		return marshalObj(t, echoapi.WelcomeRequest{ProfessorIDs: ids})
	}

	tests := []struct {
		httpTest
		wantSent int
	}{
		{httpTest: httpTest{
			name: "student", token: studentToken, body: welcome(c.Prof2.ID),
			wantCode: http.StatusForbidden,
		}},
		{httpTest: httpTest{
			name: "admin without professor record", token: adminToken, body: welcome(c.Prof2.ID),
			wantCode: http.StatusForbidden,
		}},
		{httpTest: httpTest{
			name: "no professors", token: profToken, body: welcome(),
			wantCode: http.StatusBadRequest,
			wantData: marshalObj(t, map[string]string{"professor_ids": "select at least one professor"}),
		}},
		{httpTest: httpTest{
			name: "self", token: profToken, body: welcome(c.Prof1.ID),
			wantCode: http.StatusBadRequest,
			wantData: marshalObj(t, map[string]string{"professor_ids": "you cannot welcome yourself"}),
		}},
		{httpTest: httpTest{
			name: "other department", token: profToken, body: welcome(outsider.ID),
			wantCode: http.StatusBadRequest,
			wantData: marshalObj(t, map[string]string{
				"professor_ids": fmt.Sprintf("professor %q is not a member of your department", outsider.Name),
			}),
		}},
		{
			httpTest: httpTest{
				name: "colleague", token: profToken, body: welcome(c.Prof2.ID),
				wantCode: http.StatusOK, wantData: marshalObj(t, echoapi.SentResponse{Sent: 1}),
			},
			wantSent: 1,
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			emailsvc.ResetSentMessages()

			req, rec := newAuthRequest(http.MethodPost, "/v1/professors/welcome", tt.token, tt.body)
			env.serve(req, rec)
			checkCodeAndData(t, tt.httpTest, rec)
			assert.Len(t, emailsvc.SentMessages(), tt.wantSent)
		})
	}
}

func Test_portalApi(t *testing.T) {
	env := setup(t)
	c := env.Populate(t)
	enr1 := env.Enrollment(t, c.Student1.ID, c.Subject.ID, date("2024-03-01"))
	enr2 := env.Enrollment(t, c.Student2.ID, c.Subject.ID, date("2024-03-01"))
	passed := env.Grade(t, c.Student1.ID, enr1.ID, 8)
	failed := env.Grade(t, c.Student1.ID, enr1.ID, 4)
	other := env.Grade(t, c.Student2.ID, enr2.ID, 9)

	studentToken := getToken(t, env.Conf, env.accountOf(t, c.Student1.UserID))
	profToken := getToken(t, env.Conf, env.accountOf(t, c.Prof1.UserID))
	adminToken := getToken(t, env.Conf, env.admin(t))

	view := func(g campus.Grade, ok bool) echoapi.GradeView {
		return echoapi.GradeView{Grade: g, Passed: ok}
	}
	student1, err := env.Campus.GetStudent(context.Background(), c.Student1.ID)
	require.NoError(t, err)

	runHTTPTests(t, env, []httpTest{
		{
			name: "missing token", method: http.MethodGet, path: "/v1/my/grades",
			wantCode: http.StatusUnauthorized, wantData: marshalObj(t, errMissingToken),
		},
		{
			name: "own student record", method: http.MethodGet, path: "/v1/my/student", token: studentToken,
			wantData: marshalObj(t, student1),
		},
		{
			name: "professor has no student record", method: http.MethodGet, path: "/v1/my/grades", token: profToken,
			wantCode: http.StatusForbidden,
		},
		{
			name: "own grades", method: http.MethodGet, path: "/v1/my/grades", token: studentToken,
			wantData: marshalList(t, view(passed, true), view(failed, false)),
		},
		{
			name: "other student's id is ignored", method: http.MethodGet, token: studentToken,
			path:     fmt.Sprintf("/v1/my/grades?student_id=%d", c.Student2.ID),
			wantData: marshalList(t, view(passed, true), view(failed, false)),
		},
		{
			name: "passed", method: http.MethodGet, path: "/v1/my/grades?status=passed", token: studentToken,
			wantData: marshalList(t, view(passed, true)),
		},
		{
			name: "failed", method: http.MethodGet, path: "/v1/my/grades?status=failed", token: studentToken,
			wantData: marshalList(t, view(failed, false)),
		},
		{
			name: "invalid status", method: http.MethodGet, path: "/v1/my/grades?status=lol", token: studentToken,
			wantCode: http.StatusBadRequest,
		},
		{
			name: "admin sees every grade", method: http.MethodGet, path: "/v1/my/grades", token: adminToken,
			wantData: marshalList(t, view(passed, true), view(failed, false), view(other, true)),
		},
	})
}

func Test_publicApi(t *testing.T) {
	env := setup(t)
	c := env.Populate(t)
	archived := env.Student(t, c.University.ID, "Pablo Diaz", "pablo@uc.test")
	inactive := false
	_, err := env.Campus.UpdateStudent(context.Background(), archived.ID, campus.StudentData{
		Name: archived.Name, Email: archived.Email, UniversityID: c.University.ID, Active: &inactive,
	})
	require.NoError(t, err)

	runHTTPTests(t, env, []httpTest{
		{
			name: "stats", method: http.MethodGet, path: "/v1/public/stats",
			wantData: marshalObj(t, campus.Stats{Universities: 1, Departments: 1, Professors: 2, Students: 2, Subjects: 1}),
		},
		{
			name: "universities", method: http.MethodGet, path: "/v1/public/universities?search=central",
			wantData: marshalList(t, echoapi.PublicUniversity{
				ID: c.University.ID, Name: c.University.Name, StudentCount: 3, ProfessorCount: 2, DepartmentCount: 1,
			}),
		},
		{
			name: "professors", method: http.MethodGet, path: "/v1/public/professors?search=algebra",
			wantData: marshalList(t,
				echoapi.PublicProfessor{ID: c.Prof1.ID, Name: c.Prof1.Name, UniversityID: c.University.ID, DepartmentID: c.Department.ID},
				echoapi.PublicProfessor{ID: c.Prof2.ID, Name: c.Prof2.Name, UniversityID: c.University.ID, DepartmentID: c.Department.ID},
			),
		},
		{
			name: "archived students stay hidden", method: http.MethodGet, path: "/v1/public/students?include_inactive=true",
			wantData: marshalList(t,
				echoapi.PublicStudent{ID: c.Student1.ID, Name: c.Student1.Name, UniversityID: c.University.ID},
				echoapi.PublicStudent{ID: c.Student2.ID, Name: c.Student2.Name, UniversityID: c.University.ID},
			),
		},
	})
}

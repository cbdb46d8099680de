package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/universidad/core/campus"
)

type campusApi struct {
	srv *Server
	svc *campus.Service
}

func registerCampusAPI(g *echo.Group, jwt echo.MiddlewareFunc, srv *Server) {
	api := campusApi{srv: srv, svc: srv.deps.Campus}
	admin := adminMiddleware()

	ug := g.Group("/universities", jwt, admin)
	ug.GET("", api.queryUniversities)
	ug.POST("", api.createUniversity)
	ug.GET("/:id", api.retrieveUniversity)
	ug.PUT("/:id", api.updateUniversity)
	ug.DELETE("/:id", api.destroyUniversity)
	ug.POST("/:id/reports", api.sendUniversityReports)

	dg := g.Group("/departments", jwt, admin)
	dg.GET("", api.queryDepartments)
	dg.POST("", api.createDepartment)
	dg.GET("/:id", api.retrieveDepartment)
	dg.PUT("/:id", api.updateDepartment)
	dg.DELETE("/:id", api.destroyDepartment)

	pg := g.Group("/professors", jwt)
	pg.POST("/welcome", api.welcomeColleagues, professorMiddleware())
	pg.GET("", api.queryProfessors, admin)
	pg.POST("", api.createProfessor, admin)
	pg.GET("/:id", api.retrieveProfessor, admin)
	pg.PUT("/:id", api.updateProfessor, admin)
	pg.DELETE("/:id", api.destroyProfessor, admin)
	pg.POST("/:id/welcome", api.welcomeProfessor, admin)

	sg := g.Group("/students", jwt, admin)
	sg.GET("", api.queryStudents)
	sg.POST("", api.createStudent)
	sg.GET("/:id", api.retrieveStudent)
	sg.PUT("/:id", api.updateStudent)
	sg.DELETE("/:id", api.destroyStudent)
	sg.POST("/:id/welcome", api.welcomeStudent)
	sg.POST("/:id/report", api.sendStudentReport)

	subg := g.Group("/subjects", jwt, admin)
	subg.GET("", api.querySubjects)
	subg.POST("", api.createSubject)
	subg.GET("/:id", api.retrieveSubject)
	subg.PUT("/:id", api.updateSubject)
	subg.DELETE("/:id", api.destroySubject)

	eg := g.Group("/enrollments", jwt, admin)
	eg.GET("", api.queryEnrollments)
	eg.POST("", api.createEnrollment)
	eg.POST("/draft", api.adjustEnrollmentDraft)
	eg.GET("/:id", api.retrieveEnrollment)
	eg.PUT("/:id", api.updateEnrollment)
	eg.DELETE("/:id", api.destroyEnrollment)

	gg := g.Group("/grades", jwt, admin)
	gg.GET("", api.queryGrades)
	gg.POST("", api.createGrade)
	gg.POST("/draft", api.adjustGradeDraft)
	gg.GET("/:id", api.retrieveGrade)
	gg.PUT("/:id", api.updateGrade)
	gg.DELETE("/:id", api.destroyGrade)

	g.GET("/reports/grades", api.gradeReport, jwt, admin)
}

// Universities

func (api *campusApi) queryUniversities(ctx echo.Context) error {
	var filter campus.UniversityFilter
	if err := ctx.Bind(&filter); err != nil {
		return errors.Wrap(err, "binding to UniversityFilter")
	}
	unis, err := api.svc.QueryUniversities(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying universities")
	}
	if unis == nil {
		unis = []campus.University{}
	}
	return ctx.JSON(http.StatusOK, unis)
}

func (api *campusApi) retrieveUniversity(ctx echo.Context) error {
	id, err := idParam(ctx)
	if err != nil {
		return err
	}
	u, err := api.svc.GetUniversity(ctx.Request().Context(), id)
	if err != nil {
		return errors.Wrap(err, "finding university")
	}
	return ctx.JSON(http.StatusOK, u)
}

func (api *campusApi) createUniversity(ctx echo.Context) error {
	var data campus.UniversityData
	if err := api.srv.bindPayload(ctx, &data); err != nil {
		return err
	}
	u, err := api.svc.CreateUniversity(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating university")
	}
	return ctx.JSON(http.StatusCreated, u)
}

func (api *campusApi) updateUniversity(ctx echo.Context) error {
	id, err := idParam(ctx)
	if err != nil {
		return err
	}
	var data campus.UniversityData
	if err = api.srv.bindPayload(ctx, &data); err != nil {
		return err
	}
	u, err := api.svc.UpdateUniversity(ctx.Request().Context(), id, data)
	if err != nil {
		return errors.Wrap(err, "updating university")
	}
	return ctx.JSON(http.StatusOK, u)
}

func (api *campusApi) destroyUniversity(ctx echo.Context) error {
	id, err := idParam(ctx)
	if err != nil {
		return err
	}
	if err = api.svc.DeleteUniversity(ctx.Request().Context(), id); err != nil {
		return errors.Wrap(err, "deleting university")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Departments

func (api *campusApi) queryDepartments(ctx echo.Context) error {
	var filter campus.DepartmentFilter
	if err := ctx.Bind(&filter); err != nil {
		return errors.Wrap(err, "binding to DepartmentFilter")
	}
	deps, err := api.svc.QueryDepartments(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying departments")
	}
	if deps == nil {
		deps = []campus.Department{}
	}
	return ctx.JSON(http.StatusOK, deps)
}

func (api *campusApi) retrieveDepartment(ctx echo.Context) error {
	id, err := idParam(ctx)
	if err != nil {
		return err
	}
	d, err := api.svc.GetDepartment(ctx.Request().Context(), id)
	if err != nil {
		return errors.Wrap(err, "finding department")
	}
	return ctx.JSON(http.StatusOK, d)
}

func (api *campusApi) createDepartment(ctx echo.Context) error {
	var data campus.DepartmentData
	if err := api.srv.bindPayload(ctx, &data); err != nil {
		return err
	}
	d, err := api.svc.CreateDepartment(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating department")
	}
	return ctx.JSON(http.StatusCreated, d)
}

func (api *campusApi) updateDepartment(ctx echo.Context) error {
	id, err := idParam(ctx)
	if err != nil {
		return err
	}
	var data campus.DepartmentData
	if err = api.srv.bindPayload(ctx, &data); err != nil {
		return err
	}
	d, err := api.svc.UpdateDepartment(ctx.Request().Context(), id, data)
	if err != nil {
		return errors.Wrap(err, "updating department")
	}
	return ctx.JSON(http.StatusOK, d)
}

func (api *campusApi) destroyDepartment(ctx echo.Context) error {
	id, err := idParam(ctx)
	if err != nil {
		return err
	}
	if err = api.svc.DeleteDepartment(ctx.Request().Context(), id); err != nil {
		return errors.Wrap(err, "deleting department")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Subjects

func (api *campusApi) querySubjects(ctx echo.Context) error {
	var filter campus.SubjectFilter
	if err := ctx.Bind(&filter); err != nil {
		return errors.Wrap(err, "binding to SubjectFilter")
	}
	subjects, err := api.svc.QuerySubjects(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying subjects")
	}
	if subjects == nil {
		subjects = []campus.Subject{}
	}
	return ctx.JSON(http.StatusOK, subjects)
}

func (api *campusApi) retrieveSubject(ctx echo.Context) error {
	id, err := idParam(ctx)
	if err != nil {
		return err
	}
	s, err := api.svc.GetSubject(ctx.Request().Context(), id)
	if err != nil {
		return errors.Wrap(err, "finding subject")
	}
	return ctx.JSON(http.StatusOK, s)
}

func (api *campusApi) createSubject(ctx echo.Context) error {
	var data campus.SubjectData
	if err := api.srv.bindPayload(ctx, &data); err != nil {
		return err
	}
	s, err := api.svc.CreateSubject(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating subject")
	}
	return ctx.JSON(http.StatusCreated, s)
}

func (api *campusApi) updateSubject(ctx echo.Context) error {
	id, err := idParam(ctx)
	if err != nil {
		return err
	}
	var data campus.SubjectData
	if err = api.srv.bindPayload(ctx, &data); err != nil {
		return err
	}
	s, err := api.svc.UpdateSubject(ctx.Request().Context(), id, data)
	if err != nil {
		return errors.Wrap(err, "updating subject")
	}
	return ctx.JSON(http.StatusOK, s)
}

func (api *campusApi) destroySubject(ctx echo.Context) error {
	id, err := idParam(ctx)
	if err != nil {
		return err
	}
	if err = api.svc.DeleteSubject(ctx.Request().Context(), id); err != nil {
		return errors.Wrap(err, "deleting subject")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Reports

func (api *campusApi) gradeReport(ctx echo.Context) error {
	var filter campus.ReportFilter
	if err := ctx.Bind(&filter); err != nil {
		return errors.Wrap(err, "binding to ReportFilter")
	}
	rows, err := api.svc.GradeReport(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying grade report")
	}
	if rows == nil {
		rows = []campus.GradeReport{}
	}
	return ctx.JSON(http.StatusOK, rows)
}

func (api *campusApi) sendUniversityReports(ctx echo.Context) error {
	id, err := idParam(ctx)
	if err != nil {
		return err
	}
	sent, err := api.svc.SendUniversityReports(ctx.Request().Context(), id)
	if err != nil {
		return errors.Wrap(err, "sending university reports")
	}
	return ctx.JSON(http.StatusOK, SentResponse{Sent: sent})
}

type SentResponse struct {
	Sent int `json:"sent"`
}

package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/universidad/core/campus"
)

type publicApi struct {
	svc *campus.Service
}

// registerPublicAPI serves the landing page data. No authentication; contact details are never exposed.
func registerPublicAPI(g *echo.Group, srv *Server) {
	api := publicApi{svc: srv.deps.Campus}

	pg := g.Group("/public")
	pg.GET("/stats", api.stats)
	pg.GET("/universities", api.universities)
	pg.GET("/professors", api.professors)
	pg.GET("/students", api.students)
}

type (
	PublicUniversity struct {
		ID              int64  `json:"id"`
		Name            string `json:"name"`
		City            string `json:"city"`
		Country         string `json:"country"`
		StudentCount    int    `json:"student_count"`
		ProfessorCount  int    `json:"professor_count"`
		DepartmentCount int    `json:"department_count"`
	}

	PublicProfessor struct {
		ID               int64  `json:"id"`
		Name             string `json:"name"`
		UniversityID     int64  `json:"university_id"`
		DepartmentID     int64  `json:"department_id"`
		IsDepartmentHead bool   `json:"is_department_head"`
	}

	PublicStudent struct {
		ID           int64  `json:"id"`
		Name         string `json:"name"`
		UniversityID int64  `json:"university_id"`
	}
)

func (api *publicApi) stats(ctx echo.Context) error {
	stats, err := api.svc.Stats(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "computing stats")
	}
	return ctx.JSON(http.StatusOK, stats)
}

func (api *publicApi) universities(ctx echo.Context) error {
	filter := campus.UniversityFilter{Search: ctx.QueryParam("search")}
	unis, err := api.svc.QueryUniversities(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying universities")
	}
	res := make([]PublicUniversity, 0, len(unis))
	for _, u := range unis {
		res = append(res, PublicUniversity{
			ID:              u.ID,
			Name:            u.Name,
			City:            u.City,
			Country:         u.Country,
			StudentCount:    u.StudentCount,
			ProfessorCount:  u.ProfessorCount,
			DepartmentCount: u.DepartmentCount,
		})
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *publicApi) professors(ctx echo.Context) error {
	var filter campus.ProfessorFilter
	if err := ctx.Bind(&filter); err != nil {
		return errors.Wrap(err, "binding to ProfessorFilter")
	}
	profs, err := api.svc.QueryProfessors(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying professors")
	}
	res := make([]PublicProfessor, 0, len(profs))
	for _, p := range profs {
		res = append(res, PublicProfessor{
			ID:               p.ID,
			Name:             p.Name,
			UniversityID:     p.UniversityID,
			DepartmentID:     p.DepartmentID,
			IsDepartmentHead: p.IsDepartmentHead,
		})
	}
	return ctx.JSON(http.StatusOK, res)
}

// students never lists archived students.
func (api *publicApi) students(ctx echo.Context) error {
	var filter campus.StudentFilter
	if err := ctx.Bind(&filter); err != nil {
		return errors.Wrap(err, "binding to StudentFilter")
	}
	filter.IncludeInactive = false
	students, err := api.svc.QueryStudents(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying students")
	}
	res := make([]PublicStudent, 0, len(students))
	for _, st := range students {
		res = append(res, PublicStudent{ID: st.ID, Name: st.Name, UniversityID: st.UniversityID})
	}
	return ctx.JSON(http.StatusOK, res)
}

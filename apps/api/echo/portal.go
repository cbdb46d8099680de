package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/universidad/core/campus"
)

type portalApi struct {
	srv *Server
	svc *campus.Service
}

func registerPortalAPI(g *echo.Group, jwt echo.MiddlewareFunc, srv *Server) {
	api := portalApi{srv: srv, svc: srv.deps.Campus}

	mg := g.Group("/my", jwt)
	mg.GET("/student", api.student)
	mg.GET("/grades", api.grades)
}

// GradeView is a grade as shown in the portal.
type GradeView struct {
	campus.Grade
	Passed bool `json:"passed"`
}

func (api *portalApi) student(ctx echo.Context) error {
	viewer, err := getContextUser(ctx, api.srv.deps.Accounts)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	st, err := api.svc.ViewerStudent(ctx.Request().Context(), viewer)
	if err != nil {
		return errors.Wrap(err, "finding viewer student")
	}
	return ctx.JSON(http.StatusOK, st)
}

// grades lists the viewer's grades; admins see every grade matching the filter.
func (api *portalApi) grades(ctx echo.Context) error {
	var filter campus.GradeFilter
	if err := ctx.Bind(&filter); err != nil {
		return errors.Wrap(err, "binding to GradeFilter")
	}
	viewer, err := getContextUser(ctx, api.srv.deps.Accounts)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	grades, err := api.svc.StudentGrades(ctx.Request().Context(), viewer, filter)
	if err != nil {
		return errors.Wrap(err, "querying student grades")
	}
	views := make([]GradeView, 0, len(grades))
	for _, g := range grades {
		views = append(views, GradeView{Grade: g, Passed: api.svc.Passed(g.Value)})
	}
	return ctx.JSON(http.StatusOK, views)
}

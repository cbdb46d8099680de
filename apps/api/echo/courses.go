package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/universidad/core/campus"
)

// Enrollments

func (api *campusApi) queryEnrollments(ctx echo.Context) error {
	var filter campus.EnrollmentFilter
	if err := ctx.Bind(&filter); err != nil {
		return errors.Wrap(err, "binding to EnrollmentFilter")
	}
	enrollments, err := api.svc.QueryEnrollments(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying enrollments")
	}
	if enrollments == nil {
		enrollments = []campus.Enrollment{}
	}
	return ctx.JSON(http.StatusOK, enrollments)
}

func (api *campusApi) retrieveEnrollment(ctx echo.Context) error {
	id, err := idParam(ctx)
	if err != nil {
		return err
	}
	e, err := api.svc.GetEnrollment(ctx.Request().Context(), id)
	if err != nil {
		return errors.Wrap(err, "finding enrollment")
	}
	return ctx.JSON(http.StatusOK, e)
}

func (api *campusApi) createEnrollment(ctx echo.Context) error {
	var data campus.EnrollmentData
	if err := api.srv.bindPayload(ctx, &data); err != nil {
		return err
	}
	e, err := api.svc.CreateEnrollment(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating enrollment")
	}
	return ctx.JSON(http.StatusCreated, e)
}

func (api *campusApi) updateEnrollment(ctx echo.Context) error {
	id, err := idParam(ctx)
	if err != nil {
		return err
	}
	var data campus.EnrollmentData
	if err = api.srv.bindPayload(ctx, &data); err != nil {
		return err
	}
	e, err := api.svc.UpdateEnrollment(ctx.Request().Context(), id, data)
	if err != nil {
		return errors.Wrap(err, "updating enrollment")
	}
	return ctx.JSON(http.StatusOK, e)
}

func (api *campusApi) destroyEnrollment(ctx echo.Context) error {
	id, err := idParam(ctx)
	if err != nil {
		return err
	}
	if err = api.svc.DeleteEnrollment(ctx.Request().Context(), id); err != nil {
		return errors.Wrap(err, "deleting enrollment")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// adjustEnrollmentDraft returns the draft as the edit form should show it. Nothing is saved.
func (api *campusApi) adjustEnrollmentDraft(ctx echo.Context) error {
	var draft campus.EnrollmentData
	if err := ctx.Bind(&draft); err != nil {
		return errors.Wrap(err, "binding to EnrollmentData")
	}
	draft.Clean()
	adjusted, err := api.svc.AdjustEnrollmentDraft(ctx.Request().Context(), draft)
	if err != nil {
		return errors.Wrap(err, "adjusting enrollment draft")
	}
	return ctx.JSON(http.StatusOK, adjusted)
}

// Grades

func (api *campusApi) queryGrades(ctx echo.Context) error {
	var filter campus.GradeFilter
	if err := ctx.Bind(&filter); err != nil {
		return errors.Wrap(err, "binding to GradeFilter")
	}
	grades, err := api.svc.QueryGrades(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying grades")
	}
	if grades == nil {
		grades = []campus.Grade{}
	}
	return ctx.JSON(http.StatusOK, grades)
}

func (api *campusApi) retrieveGrade(ctx echo.Context) error {
	id, err := idParam(ctx)
	if err != nil {
		return err
	}
	g, err := api.svc.GetGrade(ctx.Request().Context(), id)
	if err != nil {
		return errors.Wrap(err, "finding grade")
	}
	return ctx.JSON(http.StatusOK, g)
}

func (api *campusApi) createGrade(ctx echo.Context) error {
	var data campus.GradeData
	if err := api.srv.bindPayload(ctx, &data); err != nil {
		return err
	}
	g, err := api.svc.CreateGrade(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating grade")
	}
	return ctx.JSON(http.StatusCreated, g)
}

func (api *campusApi) updateGrade(ctx echo.Context) error {
	id, err := idParam(ctx)
	if err != nil {
		return err
	}
	var data campus.GradeData
	if err = api.srv.bindPayload(ctx, &data); err != nil {
		return err
	}
	g, err := api.svc.UpdateGrade(ctx.Request().Context(), id, data)
	if err != nil {
		return errors.Wrap(err, "updating grade")
	}
	return ctx.JSON(http.StatusOK, g)
}

func (api *campusApi) destroyGrade(ctx echo.Context) error {
	id, err := idParam(ctx)
	if err != nil {
		return err
	}
	if err = api.svc.DeleteGrade(ctx.Request().Context(), id); err != nil {
		return errors.Wrap(err, "deleting grade")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *campusApi) adjustGradeDraft(ctx echo.Context) error {
	var draft campus.GradeData
	if err := ctx.Bind(&draft); err != nil {
		return errors.Wrap(err, "binding to GradeData")
	}
	draft.Clean()
	adjusted, err := api.svc.AdjustGradeDraft(ctx.Request().Context(), draft)
	if err != nil {
		return errors.Wrap(err, "adjusting grade draft")
	}
	return ctx.JSON(http.StatusOK, adjusted)
}

package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/universidad/core/campus"
)

type WelcomeRequest struct {
	ProfessorIDs []int64 `json:"professor_ids"`
}

// Professors

func (api *campusApi) queryProfessors(ctx echo.Context) error {
	var filter campus.ProfessorFilter
	if err := ctx.Bind(&filter); err != nil {
		return errors.Wrap(err, "binding to ProfessorFilter")
	}
	profs, err := api.svc.QueryProfessors(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying professors")
	}
	if profs == nil {
		profs = []campus.Professor{}
	}
	return ctx.JSON(http.StatusOK, profs)
}

func (api *campusApi) retrieveProfessor(ctx echo.Context) error {
	id, err := idParam(ctx)
	if err != nil {
		return err
	}
	p, err := api.svc.GetProfessor(ctx.Request().Context(), id)
	if err != nil {
		return errors.Wrap(err, "finding professor")
	}
	return ctx.JSON(http.StatusOK, p)
}

func (api *campusApi) createProfessor(ctx echo.Context) error {
	var data campus.ProfessorData
	if err := api.srv.bindPayload(ctx, &data); err != nil {
		return err
	}
	p, err := api.svc.CreateProfessor(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating professor")
	}
	return ctx.JSON(http.StatusCreated, p)
}

func (api *campusApi) updateProfessor(ctx echo.Context) error {
	id, err := idParam(ctx)
	if err != nil {
		return err
	}
	var data campus.ProfessorData
	if err = api.srv.bindPayload(ctx, &data); err != nil {
		return err
	}
	p, err := api.svc.UpdateProfessor(ctx.Request().Context(), id, data)
	if err != nil {
		return errors.Wrap(err, "updating professor")
	}
	return ctx.JSON(http.StatusOK, p)
}

func (api *campusApi) destroyProfessor(ctx echo.Context) error {
	id, err := idParam(ctx)
	if err != nil {
		return err
	}
	if err = api.svc.DeleteProfessor(ctx.Request().Context(), id); err != nil {
		return errors.Wrap(err, "deleting professor")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *campusApi) welcomeProfessor(ctx echo.Context) error {
	id, err := idParam(ctx)
	if err != nil {
		return err
	}
	if err = api.svc.SendProfessorWelcome(ctx.Request().Context(), id); err != nil {
		return errors.Wrap(err, "sending professor welcome")
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{Success: "Welcome message sent."})
}

// welcomeColleagues lets a professor welcome the professors of its own department.
func (api *campusApi) welcomeColleagues(ctx echo.Context) error {
	var data WelcomeRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to WelcomeRequest")
	}
	viewer, err := getContextUser(ctx, api.srv.deps.Accounts)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	if err = api.svc.WelcomeColleagues(ctx.Request().Context(), viewer, data.ProfessorIDs); err != nil {
		return errors.Wrap(err, "welcoming colleagues")
	}
	return ctx.JSON(http.StatusOK, SentResponse{Sent: len(data.ProfessorIDs)})
}

// Students

func (api *campusApi) queryStudents(ctx echo.Context) error {
	var filter campus.StudentFilter
	if err := ctx.Bind(&filter); err != nil {
		return errors.Wrap(err, "binding to StudentFilter")
	}
	students, err := api.svc.QueryStudents(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying students")
	}
	if students == nil {
		students = []campus.Student{}
	}
	return ctx.JSON(http.StatusOK, students)
}

func (api *campusApi) retrieveStudent(ctx echo.Context) error {
	id, err := idParam(ctx)
	if err != nil {
		return err
	}
	st, err := api.svc.GetStudent(ctx.Request().Context(), id)
	if err != nil {
		return errors.Wrap(err, "finding student")
	}
	return ctx.JSON(http.StatusOK, st)
}

func (api *campusApi) createStudent(ctx echo.Context) error {
	var data campus.StudentData
	if err := api.srv.bindPayload(ctx, &data); err != nil {
		return err
	}
	st, err := api.svc.CreateStudent(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating student")
	}
	return ctx.JSON(http.StatusCreated, st)
}

func (api *campusApi) updateStudent(ctx echo.Context) error {
	id, err := idParam(ctx)
	if err != nil {
		return err
	}
	var data campus.StudentData
	if err = api.srv.bindPayload(ctx, &data); err != nil {
		return err
	}
	st, err := api.svc.UpdateStudent(ctx.Request().Context(), id, data)
	if err != nil {
		return errors.Wrap(err, "updating student")
	}
	return ctx.JSON(http.StatusOK, st)
}

func (api *campusApi) destroyStudent(ctx echo.Context) error {
	id, err := idParam(ctx)
	if err != nil {
		return err
	}
	if err = api.svc.DeleteStudent(ctx.Request().Context(), id); err != nil {
		return errors.Wrap(err, "deleting student")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *campusApi) welcomeStudent(ctx echo.Context) error {
	id, err := idParam(ctx)
	if err != nil {
		return err
	}
	if err = api.svc.SendStudentWelcome(ctx.Request().Context(), id); err != nil {
		return errors.Wrap(err, "sending student welcome")
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{Success: "Welcome message sent."})
}

func (api *campusApi) sendStudentReport(ctx echo.Context) error {
	id, err := idParam(ctx)
	if err != nil {
		return err
	}
	if err = api.svc.SendStudentReport(ctx.Request().Context(), id); err != nil {
		return errors.Wrap(err, "sending student report")
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{Success: "Report sent."})
}

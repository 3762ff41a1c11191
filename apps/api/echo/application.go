package echoapi

import (
	"context"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/practicas-ubb/practicas/core/application"
	"github.com/practicas-ubb/practicas/core/practice"
	"github.com/practicas-ubb/practicas/core/user"
)

type applicationApi struct {
	svc      application.Service
	usrSvc   user.Service
	validate *validator.Validate
}

func registerApplicationAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps *Deps) {
	api := applicationApi{
		svc:      deps.ApplicationSvc,
		usrSvc:   deps.UserSvc,
		validate: deps.Validate,
	}

	sg := g.Group("/student", jwt, rolesMiddleware(deps.UserSvc, user.RoleStudent))
	sg.POST("/applications", api.apply)
	sg.GET("/applications", api.queryOwnApplications)
	sg.POST("/practice-requests", api.submitRequest)
	sg.GET("/practice-requests", api.queryOwnRequests)
	sg.GET("/requests", api.studentRequests)

	cg := g.Group("/coord", jwt, rolesMiddleware(deps.UserSvc, user.RoleCoordination))
	cg.GET("/applications", api.queryApplications)
	cg.POST("/applications/:id/approve", api.approveApplication)
	cg.POST("/applications/:id/reject", api.rejectApplication)
	cg.GET("/external-requests", api.queryRequests)
	cg.POST("/external-requests/:id/approve", api.approveRequest)
	cg.POST("/external-requests/:id/reject", api.rejectRequest)
}

// Student handlers

func (api *applicationApi) apply(ctx echo.Context) error {
	st, err := getContextStudent(ctx, api.usrSvc)
	if err != nil {
		return err
	}

	var data application.NewApplication
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewApplication")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	app, err := api.svc.Apply(ctx.Request().Context(), st.ID, data)
	if err != nil {
		return errors.Wrap(err, "applying to offer")
	}
	return ctx.JSON(http.StatusCreated, app)
}

func (api *applicationApi) queryOwnApplications(ctx echo.Context) error {
	st, err := getContextStudent(ctx, api.usrSvc)
	if err != nil {
		return err
	}
	apps, err := api.svc.QueryApplications(ctx.Request().Context(), application.QueryFilter{StudentID: st.ID})
	if err != nil {
		return errors.Wrap(err, "querying applications")
	}
	return ctx.JSON(http.StatusOK, apps)
}

func (api *applicationApi) submitRequest(ctx echo.Context) error {
	st, err := getContextStudent(ctx, api.usrSvc)
	if err != nil {
		return err
	}

	var data application.NewPracticeRequest
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewPracticeRequest")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	req, err := api.svc.SubmitRequest(ctx.Request().Context(), st.ID, data)
	if err != nil {
		return errors.Wrap(err, "submitting practice request")
	}
	return ctx.JSON(http.StatusCreated, req)
}

func (api *applicationApi) queryOwnRequests(ctx echo.Context) error {
	st, err := getContextStudent(ctx, api.usrSvc)
	if err != nil {
		return err
	}
	reqs, err := api.svc.QueryRequests(ctx.Request().Context(), application.QueryFilter{StudentID: st.ID})
	if err != nil {
		return errors.Wrap(err, "querying practice requests")
	}
	return ctx.JSON(http.StatusOK, reqs)
}

func (api *applicationApi) studentRequests(ctx echo.Context) error {
	st, err := getContextStudent(ctx, api.usrSvc)
	if err != nil {
		return err
	}
	reqs, err := api.svc.StudentRequests(ctx.Request().Context(), st.ID)
	if err != nil {
		return errors.Wrap(err, "querying student requests")
	}
	return ctx.JSON(http.StatusOK, reqs)
}

// Coordination handlers

func (api *applicationApi) queryApplications(ctx echo.Context) error {
	filter, err := bindApplicationFilter(ctx)
	if err != nil {
		return err
	}
	apps, err := api.svc.QueryApplications(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying applications")
	}
	return ctx.JSON(http.StatusOK, apps)
}

func (api *applicationApi) queryRequests(ctx echo.Context) error {
	filter, err := bindApplicationFilter(ctx)
	if err != nil {
		return err
	}
	reqs, err := api.svc.QueryRequests(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying practice requests")
	}
	return ctx.JSON(http.StatusOK, reqs)
}

// decide runs fn with the path ID and the ID of the deciding user.
func (api *applicationApi) decide(ctx echo.Context, fn func(c context.Context, id, deciderID int64) (interface{}, error)) error {
	id, err := pathID(ctx)
	if err != nil {
		return err
	}
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return err
	}
	res, err := fn(ctx.Request().Context(), id, usr.ID)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *applicationApi) approveApplication(ctx echo.Context) error {
	return api.decide(ctx, func(c context.Context, id, deciderID int64) (interface{}, error) {
		app, p, err := api.svc.ApproveApplication(c, id, deciderID)
		if err != nil {
			return nil, errors.Wrap(err, "approving application")
		}
		return ApplicationApproval{Application: &app, Practice: p}, nil
	})
}

func (api *applicationApi) rejectApplication(ctx echo.Context) error {
	return api.decide(ctx, func(c context.Context, id, deciderID int64) (interface{}, error) {
		app, err := api.svc.RejectApplication(c, id, deciderID)
		return app, errors.Wrap(err, "rejecting application")
	})
}

func (api *applicationApi) approveRequest(ctx echo.Context) error {
	return api.decide(ctx, func(c context.Context, id, deciderID int64) (interface{}, error) {
		req, p, err := api.svc.ApproveRequest(c, id, deciderID)
		if err != nil {
			return nil, errors.Wrap(err, "approving practice request")
		}
		return RequestApproval{Request: &req, Practice: p}, nil
	})
}

func (api *applicationApi) rejectRequest(ctx echo.Context) error {
	return api.decide(ctx, func(c context.Context, id, deciderID int64) (interface{}, error) {
		req, err := api.svc.RejectRequest(c, id, deciderID)
		return req, errors.Wrap(err, "rejecting practice request")
	})
}

type (
	ApplicationApproval struct {
		Application *application.Application `json:"application"`
		Practice    practice.Practice        `json:"practice"`
	}

	RequestApproval struct {
		Request  *application.PracticeRequest `json:"request"`
		Practice practice.Practice            `json:"practice"`
	}
)

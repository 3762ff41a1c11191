package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/practicas-ubb/practicas/core/offer"
	"github.com/practicas-ubb/practicas/core/user"
)

type offerApi struct {
	svc      offer.Service
	validate *validator.Validate
}

func registerOfferAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps *Deps) {
	api := offerApi{
		svc:      deps.OfferSvc,
		validate: deps.Validate,
	}

	sg := g.Group("/student", jwt, rolesMiddleware(deps.UserSvc, user.RoleStudent))
	sg.GET("/offers", api.queryOpen)

	cg := g.Group("/coord", jwt, rolesMiddleware(deps.UserSvc, user.RoleCoordination))
	cg.GET("/offers", api.queryAll)
	cg.POST("/offers", api.create)
	cg.POST("/offers/:id/deactivate", api.deactivate)
}

func (api *offerApi) queryOpen(ctx echo.Context) error {
	offers, err := api.svc.QueryOpen(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying open offers")
	}
	return ctx.JSON(http.StatusOK, offers)
}

func (api *offerApi) queryAll(ctx echo.Context) error {
	offers, err := api.svc.QueryAll(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying offers")
	}
	return ctx.JSON(http.StatusOK, offers)
}

func (api *offerApi) create(ctx echo.Context) error {
	var data offer.NewOffer
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewOffer")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	o, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating offer")
	}
	return ctx.JSON(http.StatusCreated, o)
}

func (api *offerApi) deactivate(ctx echo.Context) error {
	id, err := pathID(ctx)
	if err != nil {
		return err
	}
	o, err := api.svc.Deactivate(ctx.Request().Context(), id)
	if err != nil {
		return errors.Wrap(err, "deactivating offer")
	}
	return ctx.JSON(http.StatusOK, o)
}

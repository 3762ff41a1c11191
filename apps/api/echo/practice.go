package echoapi

import (
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/practicas-ubb/practicas/core"
	"github.com/practicas-ubb/practicas/core/practice"
	"github.com/practicas-ubb/practicas/core/user"
)

type practiceApi struct {
	svc      practice.Service
	usrSvc   user.Service
	validate *validator.Validate
}

func registerPracticeAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps *Deps) {
	api := practiceApi{
		svc:      deps.PracticeSvc,
		usrSvc:   deps.UserSvc,
		validate: deps.Validate,
	}

	sg := g.Group("/student", jwt, rolesMiddleware(deps.UserSvc, user.RoleStudent))
	sg.GET("/practices", api.queryOwn)

	cg := g.Group("/coord", jwt, rolesMiddleware(deps.UserSvc, user.RoleCoordination))
	cg.GET("/practices", api.query)
	cg.GET("/practices/:id", api.retrieve)
	cg.POST("/practices/:id/evaluator", api.assignEvaluator)
	cg.GET("/practices/:id/readiness", api.readiness)
	cg.POST("/practices/:id/close", api.close)
	cg.GET("/evaluators", api.queryEvaluators)
	cg.POST("/evaluators", api.createEvaluator)

	eg := g.Group("/evaluator", jwt, rolesMiddleware(deps.UserSvc, user.RoleEvaluator))
	eg.GET("/practices", api.queryAssigned)

	pg := g.Group("/practices/:id", jwt)
	pg.POST("/documents", api.recordDocument, rolesMiddleware(deps.UserSvc, user.RoleStudent, user.RoleSupervisor, user.RoleCoordination))
	pg.POST("/evaluations", api.recordEvaluation, rolesMiddleware(deps.UserSvc, user.RoleSupervisor, user.RoleEvaluator, user.RoleCoordination))
}

// Student & evaluator handlers

func (api *practiceApi) queryOwn(ctx echo.Context) error {
	st, err := getContextStudent(ctx, api.usrSvc)
	if err != nil {
		return err
	}
	practices, err := api.svc.Query(ctx.Request().Context(), practice.QueryFilter{StudentID: st.ID})
	if err != nil {
		return errors.Wrap(err, "querying practices")
	}
	return ctx.JSON(http.StatusOK, practices)
}

// queryAssigned lists the practices assigned to the evaluator linked to the user's email.
func (api *practiceApi) queryAssigned(ctx echo.Context) error {
	ev, ok, err := api.contextEvaluator(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return ctx.JSON(http.StatusOK, []practice.Practice{})
	}
	practices, err := api.svc.Query(ctx.Request().Context(), practice.QueryFilter{EvaluatorID: ev.ID})
	if err != nil {
		return errors.Wrap(err, "querying assigned practices")
	}
	return ctx.JSON(http.StatusOK, practices)
}

// Coordination handlers

func (api *practiceApi) query(ctx echo.Context) error {
	filter, err := bindPracticeFilter(ctx)
	if err != nil {
		return err
	}
	practices, err := api.svc.Query(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying practices")
	}
	return ctx.JSON(http.StatusOK, practices)
}

func (api *practiceApi) retrieve(ctx echo.Context) error {
	id, err := pathID(ctx)
	if err != nil {
		return err
	}
	p, err := api.svc.Get(ctx.Request().Context(), id)
	if err != nil {
		return errors.Wrap(err, "getting practice")
	}
	return ctx.JSON(http.StatusOK, p)
}

func (api *practiceApi) assignEvaluator(ctx echo.Context) error {
	id, err := pathID(ctx)
	if err != nil {
		return err
	}

	var data practice.AssignEvaluator
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to AssignEvaluator")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	p, err := api.svc.AssignEvaluator(ctx.Request().Context(), id, data.EvaluatorID)
	if err != nil {
		return errors.Wrap(err, "assigning evaluator")
	}
	return ctx.JSON(http.StatusOK, p)
}

func (api *practiceApi) readiness(ctx echo.Context) error {
	id, err := pathID(ctx)
	if err != nil {
		return err
	}
	r, err := api.svc.CheckClosureReadiness(ctx.Request().Context(), id)
	if err != nil {
		return errors.Wrap(err, "checking closure readiness")
	}
	return ctx.JSON(http.StatusOK, r)
}

func (api *practiceApi) close(ctx echo.Context) error {
	id, err := pathID(ctx)
	if err != nil {
		return err
	}
	p, err := api.svc.Close(ctx.Request().Context(), id)
	if err != nil {
		return errors.Wrap(err, "closing practice")
	}
	return ctx.JSON(http.StatusOK, p)
}

func (api *practiceApi) queryEvaluators(ctx echo.Context) error {
	evs, err := api.svc.QueryEvaluators(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying evaluators")
	}
	return ctx.JSON(http.StatusOK, evs)
}

func (api *practiceApi) createEvaluator(ctx echo.Context) error {
	var data practice.NewEvaluator
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewEvaluator")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	ev, err := api.svc.CreateEvaluator(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating evaluator")
	}
	return ctx.JSON(http.StatusCreated, ev)
}

// Shared handlers

func (api *practiceApi) recordDocument(ctx echo.Context) error {
	p, usr, err := api.contextPractice(ctx)
	if err != nil {
		return err
	}

	switch usr.Role {
	case user.RoleStudent:
		st, err := getContextStudent(ctx, api.usrSvc)
		if err != nil {
			return err
		}
		if st.ID != p.StudentID {
			return errHttpNotFound // students cannot see others' practices
		}
	case user.RoleSupervisor:
		if !supervises(usr, p) {
			return errHttpForbidden
		}
	case user.RoleCoordination:
	default:
		return errHttpForbidden
	}

	var data practice.NewDocument
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewDocument")
	}
	data.UploadedBy = usr.ID
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	doc, err := api.svc.RecordDocument(ctx.Request().Context(), p.ID, data)
	if err != nil {
		return errors.Wrap(err, "recording document")
	}
	return ctx.JSON(http.StatusCreated, doc)
}

func (api *practiceApi) recordEvaluation(ctx echo.Context) error {
	p, usr, err := api.contextPractice(ctx)
	if err != nil {
		return err
	}

	var data practice.NewEvaluation
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewEvaluation")
	}

	// evaluators & supervisors can only evaluate in their own capacity
	switch usr.Role {
	case user.RoleEvaluator:
		ev, ok, err := api.contextEvaluator(ctx)
		if err != nil {
			return err
		}
		if !ok || !p.EvaluatorID.Valid || p.EvaluatorID.Int64 != ev.ID {
			return errHttpForbidden
		}
		data.Role = practice.RoleEvaluator
	case user.RoleSupervisor:
		if !supervises(usr, p) {
			return errHttpForbidden
		}
		data.Role = practice.RoleSupervisor
	case user.RoleCoordination:
	default:
		return errHttpForbidden
	}

	data.SubmittedBy = usr.ID
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	eval, err := api.svc.RecordEvaluation(ctx.Request().Context(), p.ID, data)
	if err != nil {
		return errors.Wrap(err, "recording evaluation")
	}
	return ctx.JSON(http.StatusCreated, eval)
}

// contextPractice loads the practice of the `:id` path param along with the context user.
func (api *practiceApi) contextPractice(ctx echo.Context) (practice.Practice, user.User, error) {
	id, err := pathID(ctx)
	if err != nil {
		return practice.Practice{}, user.User{}, err
	}
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return practice.Practice{}, user.User{}, err
	}
	p, err := api.svc.Get(ctx.Request().Context(), id)
	if err != nil {
		return practice.Practice{}, user.User{}, errors.Wrap(err, "getting practice")
	}
	return p, usr, nil
}

// contextEvaluator finds the directory entry linked to the context user's email.
func (api *practiceApi) contextEvaluator(ctx echo.Context) (practice.Evaluator, bool, error) {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return practice.Evaluator{}, false, err
	}
	ev, err := api.svc.GetEvaluatorByEmail(ctx.Request().Context(), usr.Email)
	if err != nil {
		if core.IsNotFound(err) {
			return practice.Evaluator{}, false, nil
		}
		return practice.Evaluator{}, false, errors.Wrap(err, "finding evaluator by email")
	}
	return ev, true, nil
}

// supervises reports whether the supervisor may act on p: any supervisor when no supervisor email is set.
func supervises(usr user.User, p practice.Practice) bool {
	if !p.SupervisorEmail.Valid || p.SupervisorEmail.String == "" {
		return true
	}
	return strings.EqualFold(p.SupervisorEmail.String, usr.Email)
}
